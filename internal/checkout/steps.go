package checkout

// Step indexes the fixed checkout sequence.
type Step int

const (
	StepAddresses Step = iota
	StepShipping
	StepPayment
	StepReview
)

var stepTitles = [...]string{"Addresses", "Shipping", "Payment", "Review"}

// Steps lists every step in order.
func Steps() []Step {
	return []Step{StepAddresses, StepShipping, StepPayment, StepReview}
}

func (s Step) Valid() bool {
	return s >= StepAddresses && s <= StepReview
}

func (s Step) String() string {
	if !s.Valid() {
		return "unknown"
	}
	return stepTitles[s]
}

// Next never moves past Review.
func (s Step) Next() Step {
	if s >= StepReview {
		return StepReview
	}
	if s < StepAddresses {
		return StepAddresses
	}
	return s + 1
}

// Previous never moves before Addresses.
func (s Step) Previous() Step {
	if s <= StepAddresses {
		return StepAddresses
	}
	if s > StepReview {
		return StepReview
	}
	return s - 1
}
