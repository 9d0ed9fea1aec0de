package checkout

import (
	"context"
	"strings"

	"github.com/angelmondragon/storefront-checkout/pkg/commerce"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

// LoadShippingOptions lists the options for the cart and selects the first
// one unless the current selection is still offered.
func (s *service) LoadShippingOptions(ctx context.Context, actor Actor) (*ShippingView, error) {
	var view *ShippingView
	_, err := s.run(ctx, actor, func(ctx context.Context, o *op) error {
		if err := s.requireCart(o); err != nil {
			return err
		}
		if err := s.loadShippingOptions(ctx, o); err != nil {
			return err
		}
		view = shippingView(o)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *service) SubmitShipping(ctx context.Context, actor Actor, optionID string) (*Page, error) {
	return s.run(ctx, actor, func(ctx context.Context, o *op) error {
		if err := s.requireCart(o); err != nil {
			return err
		}
		if err := requireStep(o, StepShipping); err != nil {
			return err
		}
		id := strings.TrimSpace(optionID)
		if id == "" {
			id = o.state.SelectedShippingOptionID
		}
		if id == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, msgMissingOption)
		}
		if o.state.ShippingOptions == nil {
			if err := s.loadShippingOptions(ctx, o); err != nil {
				return err
			}
		}
		if !hasOption(o.state.ShippingOptions, id) {
			return pkgerrors.New(pkgerrors.CodeValidation, "shipping option is not available").
				WithDetails(map[string]any{"option_id": id})
		}

		snap, err := s.carts.AddShippingMethod(ctx, o.actor.SessionID, id)
		if err != nil {
			return wrapAs(err, msgSubmitShipping)
		}
		o.cart = snap.Cart
		o.state.SelectedShippingOptionID = id
		s.advance(o)
		return nil
	})
}

func (s *service) loadShippingOptions(ctx context.Context, o *op) error {
	options, err := s.backend.ListShippingOptions(ctx, o.cartID)
	if err != nil {
		return wrapAs(err, msgLoadShipping)
	}
	if options == nil {
		options = []commerce.ShippingOption{}
	}
	o.state.ShippingOptions = options
	if !hasOption(options, o.state.SelectedShippingOptionID) {
		o.state.SelectedShippingOptionID = ""
		if len(options) > 0 {
			o.state.SelectedShippingOptionID = options[0].ID
		}
	}
	return nil
}

func hasOption(options []commerce.ShippingOption, id string) bool {
	if id == "" {
		return false
	}
	for _, option := range options {
		if option.ID == id {
			return true
		}
	}
	return false
}
