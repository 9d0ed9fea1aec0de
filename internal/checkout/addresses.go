package checkout

import (
	"context"
	"strings"

	"github.com/angelmondragon/storefront-checkout/internal/address"
	"github.com/angelmondragon/storefront-checkout/internal/session"
	"github.com/angelmondragon/storefront-checkout/pkg/commerce"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

// SubmitAddresses writes the chosen shipping and billing addresses to the cart
// and moves to Shipping. A missing shipping address never reaches the backend.
func (s *service) SubmitAddresses(ctx context.Context, actor Actor, input AddressesInput) (*Page, error) {
	return s.run(ctx, actor, func(ctx context.Context, o *op) error {
		if err := s.requireCart(o); err != nil {
			return err
		}
		if err := requireStep(o, StepAddresses); err != nil {
			return err
		}
		shippingID := strings.TrimSpace(input.ShippingAddressID)
		if shippingID == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, msgMissingShipping)
		}
		if err := s.loadCustomerContext(ctx, o); err != nil {
			return err
		}

		book := o.profile.Customer.Addresses
		shipping, ok := address.FindByID(book, shippingID)
		if !ok {
			return pkgerrors.New(pkgerrors.CodeValidation, "shipping address not found").
				WithDetails(map[string]any{"shipping_address_id": shippingID})
		}
		billing, err := resolveBilling(o.profile.Customer, shipping, input.BillingAddressID)
		if err != nil {
			return err
		}

		shipPayload := address.Sanitize(shipping)
		billPayload := address.Sanitize(billing)
		if err := s.policy.Check(shipPayload, o.allowedCountries()); err != nil {
			return err
		}
		if err := s.policy.Check(billPayload, nil); err != nil {
			return err
		}

		snap, err := s.carts.UpdateDetails(ctx, o.actor.SessionID, commerce.UpdateCartInput{
			Email:           o.profile.Customer.Email,
			ShippingAddress: &shipPayload,
			BillingAddress:  &billPayload,
		})
		if err != nil {
			return wrapAs(err, msgSubmitAddresses)
		}

		o.cart = snap.Cart
		o.state.ShippingAddressID = shipping.ID
		o.state.BillingAddressID = strings.TrimSpace(input.BillingAddressID)
		o.state.ShippingOptions = nil
		o.state.SelectedShippingOptionID = ""
		s.advance(o)
		return nil
	})
}

// resolveBilling maps the submitted billing id to an address. An empty id
// means billing is the shipping address. A chosen id is looked up in the
// address book first and then matched against the customer billing address.
func resolveBilling(cust *commerce.Customer, shipping commerce.Address, billingID string) (commerce.Address, error) {
	billingID = strings.TrimSpace(billingID)
	if billingID == "" {
		return shipping, nil
	}
	if billing, ok := address.FindByID(cust.Addresses, billingID); ok {
		return billing, nil
	}
	if cust.BillingAddress != nil && cust.BillingAddress.ID == billingID {
		return *cust.BillingAddress, nil
	}
	return commerce.Address{}, pkgerrors.New(pkgerrors.CodeValidation, "billing address not found").
		WithDetails(map[string]any{"billing_address_id": billingID})
}

// syncCustomer copies the customer identity and first acceptable addresses
// onto the cart, once per cart. Failures are logged and retried on the next load.
func (s *service) syncCustomer(ctx context.Context, o *op) {
	if o.cartID == "" || o.state.CustomerSyncedCartID == o.cartID || !session.ValidToken(o.actor.Token) {
		return
	}
	if err := s.loadCustomerContext(ctx, o); err != nil {
		s.logg.Warn(ctx, "checkout.customer_sync_skipped")
		return
	}

	cust := o.profile.Customer
	input := commerce.UpdateCartInput{Email: cust.Email, CustomerID: cust.ID}
	for _, addr := range cust.Addresses {
		payload := address.Sanitize(addr)
		if s.policy.Accepts(payload, o.allowedCountries()) {
			input.ShippingAddress = &payload
			break
		}
	}
	if cust.BillingAddress != nil {
		payload := address.Sanitize(*cust.BillingAddress)
		if s.policy.Accepts(payload, nil) {
			input.BillingAddress = &payload
		}
	}

	snap, err := s.carts.UpdateDetails(ctx, o.actor.SessionID, input)
	if err != nil {
		s.logg.Error(ctx, "checkout.customer_sync_failed", err)
		return
	}
	o.cart = snap.Cart
	o.state.CustomerSyncedCartID = o.cartID
	s.logg.Info(s.logg.WithCustomerID(ctx, cust.ID), "checkout.customer_synced")
}
