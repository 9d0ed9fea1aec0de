package checkout

import (
	"context"

	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

// CompleteOrder turns the cart into an order. On success the session forgets
// the cart and the returned page carries the confirmation redirect.
func (s *service) CompleteOrder(ctx context.Context, actor Actor) (*Page, error) {
	return s.run(ctx, actor, func(ctx context.Context, o *op) error {
		if err := s.requireCart(o); err != nil {
			return err
		}
		if err := requireStep(o, StepReview); err != nil {
			return err
		}
		if o.state.Payment.SelectedSessionID == "" {
			return pkgerrors.New(pkgerrors.CodeStateConflict, msgPaymentNotReady)
		}

		result, err := s.backend.CompleteCart(ctx, o.cartID)
		if err != nil {
			return wrapAs(err, msgCompleteOrder)
		}
		if !result.IsOrder() {
			details := map[string]any{"type": result.Type}
			if result.Error != nil {
				details["reason"] = result.Error.Message
			}
			return pkgerrors.New(pkgerrors.CodeDependency, msgCompleteOrder).WithDetails(details)
		}

		o.state.CompletedOrder = result.Order
		o.state.CompletionSignaled = false
		if s.metrics != nil {
			s.metrics.IncOrdersCompleted()
		}
		if err := s.carts.Forget(ctx, o.actor.SessionID, o.cartID); err != nil {
			s.logg.Error(ctx, "checkout.forget_cart_failed", err)
		}
		s.logg.Info(s.logg.WithField(ctx, "order_id", result.Order.ID), "checkout.order_completed")
		return nil
	})
}
