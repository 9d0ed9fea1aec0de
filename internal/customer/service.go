package customer

import (
	"context"
	"errors"

	"github.com/angelmondragon/storefront-checkout/internal/address"
	"github.com/angelmondragon/storefront-checkout/internal/session"
	"github.com/angelmondragon/storefront-checkout/pkg/commerce"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

type backend interface {
	RetrieveCustomer(ctx context.Context, token string) (*commerce.Customer, error)
}

// Profile is the customer plus the address book split the way checkout presents it.
type Profile struct {
	Customer        *commerce.Customer `json:"customer"`
	DefaultShipping *commerce.Address  `json:"default_shipping,omitempty"`
	DefaultBilling  *commerce.Address  `json:"default_billing,omitempty"`
	ShippingChoices []commerce.Address `json:"shipping_choices"`
}

// Service is a read-only view of the authenticated customer.
type Service interface {
	Profile(ctx context.Context, token string) (*Profile, error)
}

type service struct {
	backend backend
}

func NewService(b backend) (Service, error) {
	if b == nil {
		return nil, errors.New("commerce backend required")
	}
	return &service{backend: b}, nil
}

func (s *service) Profile(ctx context.Context, token string) (*Profile, error) {
	if !session.ValidToken(token) {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer token is required")
	}
	cust, err := s.backend.RetrieveCustomer(ctx, token)
	if err != nil {
		return nil, err
	}
	if cust.Addresses == nil {
		cust.Addresses = []commerce.Address{}
	}

	profile := &Profile{
		Customer:        cust,
		ShippingChoices: address.ShippingChoices(cust.Addresses),
	}
	if addr, ok := address.DefaultShipping(cust.Addresses); ok {
		profile.DefaultShipping = &addr
	}
	if addr, ok := address.DefaultBilling(cust.Addresses); ok {
		profile.DefaultBilling = &addr
	} else if cust.BillingAddress != nil {
		billing := *cust.BillingAddress
		profile.DefaultBilling = &billing
	}
	return profile, nil
}
