package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storefront"

// CheckoutMetrics records checkout funnel and upstream call metadata.
type CheckoutMetrics struct {
	stepTransitions *prometheus.CounterVec
	commerceCalls   *prometheus.HistogramVec
	payments        *prometheus.CounterVec
	orders          prometheus.Counter
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	stepTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkout_step_transitions_total",
		Help:      "Checkout step transitions.",
	}, []string{"from", "to"})
	commerceCalls := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "commerce_request_duration_seconds",
		Help:      "Duration of commerce Store API calls in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "outcome"})
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_confirmations_total",
		Help:      "Card payment confirmation attempts by outcome.",
	}, []string{"outcome"})
	orders := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_completed_total",
		Help:      "Carts completed into orders.",
	})
	reg.MustRegister(stepTransitions, commerceCalls, payments, orders)
	return &CheckoutMetrics{
		stepTransitions: stepTransitions,
		commerceCalls:   commerceCalls,
		payments:        payments,
		orders:          orders,
	}
}

// ObserveStep records a move between two named checkout steps.
func (m *CheckoutMetrics) ObserveStep(from, to string) {
	if m == nil || m.stepTransitions == nil {
		return
	}
	m.stepTransitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// ObserveCommerceCall records the latency of one Store API operation.
func (m *CheckoutMetrics) ObserveCommerceCall(operation string, duration time.Duration, err error) {
	if m == nil || m.commerceCalls == nil {
		return
	}
	m.commerceCalls.WithLabelValues(normalizeLabel(operation), outcome(err)).Observe(duration.Seconds())
}

// ObservePayment records a payment confirmation attempt.
func (m *CheckoutMetrics) ObservePayment(err error) {
	if m == nil || m.payments == nil {
		return
	}
	m.payments.WithLabelValues(outcome(err)).Inc()
}

// IncOrdersCompleted counts a cart completed into an order.
func (m *CheckoutMetrics) IncOrdersCompleted() {
	if m == nil || m.orders == nil {
		return
	}
	m.orders.Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
