package checkout

import (
	"context"
	"strings"

	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

// InitializePayment runs the payment reactions until nothing is left to do.
func (s *service) InitializePayment(ctx context.Context, actor Actor) (*Page, error) {
	return s.run(ctx, actor, func(ctx context.Context, o *op) error {
		if err := s.requirePaymentStep(o); err != nil {
			return err
		}
		return s.react(ctx, o)
	})
}

func (s *service) LoadPaymentProviders(ctx context.Context, actor Actor) (*Page, error) {
	return s.run(ctx, actor, func(ctx context.Context, o *op) error {
		if err := s.requirePaymentStep(o); err != nil {
			return err
		}
		if o.state.Payment.Phase != PhaseUninitialized {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment providers already loaded")
		}
		if err := s.loadProviders(ctx, o); err != nil {
			return err
		}
		return s.react(ctx, o)
	})
}

// CreatePaymentCollection opens the single payment collection of the cart.
func (s *service) CreatePaymentCollection(ctx context.Context, actor Actor) (*Page, error) {
	return s.run(ctx, actor, func(ctx context.Context, o *op) error {
		if err := s.requirePaymentStep(o); err != nil {
			return err
		}
		p := &o.state.Payment
		if p.Phase != PhaseProvidersLoaded || p.Collection != nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment collection cannot be created now").
				WithDetails(map[string]any{"phase": string(p.Phase)})
		}
		if err := s.createCollection(ctx, o); err != nil {
			return err
		}
		return s.react(ctx, o)
	})
}

// CreatePaymentSession opens a session for providerID, replacing the session list.
func (s *service) CreatePaymentSession(ctx context.Context, actor Actor, providerID string) (*Page, error) {
	return s.run(ctx, actor, func(ctx context.Context, o *op) error {
		if err := s.requirePaymentStep(o); err != nil {
			return err
		}
		p := &o.state.Payment
		if p.Collection == nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment collection is required")
		}
		providerID = strings.TrimSpace(providerID)
		if providerID != p.SelectedProviderID {
			if err := p.SelectProvider(providerID); err != nil {
				return err
			}
		}
		if err := s.createSession(ctx, o); err != nil {
			return err
		}
		return s.react(ctx, o)
	})
}

// SelectProvider switches provider and lets the reactions open its session.
func (s *service) SelectProvider(ctx context.Context, actor Actor, providerID string) (*Page, error) {
	return s.run(ctx, actor, func(ctx context.Context, o *op) error {
		if err := s.requirePaymentStep(o); err != nil {
			return err
		}
		if err := o.state.Payment.SelectProvider(strings.TrimSpace(providerID)); err != nil {
			return err
		}
		return s.react(ctx, o)
	})
}

// ConfirmPayment confirms the selected session with the gateway and moves to Review.
func (s *service) ConfirmPayment(ctx context.Context, actor Actor, paymentMethodID string) (*Page, error) {
	return s.run(ctx, actor, func(ctx context.Context, o *op) error {
		if err := s.requirePaymentStep(o); err != nil {
			return err
		}
		if strings.TrimSpace(paymentMethodID) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "payment method is required")
		}
		p := &o.state.Payment
		if !p.CanConfirm() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, msgPaymentNotReady)
		}

		res, err := s.payments.ConfirmCardPayment(ctx, p.SelectedSession().ClientSecret(), paymentMethodID)
		if s.metrics != nil {
			s.metrics.ObservePayment(err)
		}
		if err != nil {
			s.logg.Warn(ctx, "checkout.payment_rejected")
			return err
		}
		p.Confirmed = true
		p.ConfirmedIntentID = res.IntentID
		s.advance(o)
		return nil
	})
}

func (s *service) requirePaymentStep(o *op) error {
	if err := s.requireCart(o); err != nil {
		return err
	}
	return requireStep(o, StepPayment)
}

// react fires reactions until a fixed point. The first failing action stops the run.
func (s *service) react(ctx context.Context, o *op) error {
	for i := 0; i < maxReactions; i++ {
		switch NextAction(&o.state.Payment) {
		case ActionNone:
			return nil
		case ActionLoadProviders:
			if err := s.loadProviders(ctx, o); err != nil {
				return err
			}
		case ActionCreateCollection:
			if err := s.createCollection(ctx, o); err != nil {
				return err
			}
		case ActionCreateSession:
			if err := s.createSession(ctx, o); err != nil {
				return err
			}
		}
	}
	s.logg.Warn(ctx, "checkout.payment_reactions_exhausted")
	return nil
}

func (s *service) loadProviders(ctx context.Context, o *op) error {
	if o.cart.RegionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart has no region")
	}
	providers, err := s.backend.ListPaymentProviders(ctx, o.cart.RegionID)
	if err != nil {
		return wrapAs(err, msgLoadProviders)
	}
	return o.state.Payment.SetProviders(providers)
}

// createCollection reuses a collection the cart already carries.
func (s *service) createCollection(ctx context.Context, o *op) error {
	collection := o.cart.PaymentCollection
	if collection == nil {
		created, err := s.backend.CreatePaymentCollection(ctx, o.cartID)
		if err != nil {
			return wrapAs(err, msgCreateCollection)
		}
		collection = created
	}
	return o.state.Payment.SetCollection(collection)
}

func (s *service) createSession(ctx context.Context, o *op) error {
	p := &o.state.Payment
	if p.SelectedProviderID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment provider is required")
	}
	collection, err := s.backend.InitiatePaymentSession(ctx, p.Collection.ID, p.SelectedProviderID)
	if err != nil {
		return wrapAs(err, msgCreateSession)
	}
	if len(collection.PaymentSessions) == 0 {
		return pkgerrors.New(pkgerrors.CodeDependency, msgCreateSession)
	}
	return p.SetSessions(collection)
}
