package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/storefront-checkout/api/middleware"
	"github.com/angelmondragon/storefront-checkout/api/responses"
	"github.com/angelmondragon/storefront-checkout/api/validators"
	"github.com/angelmondragon/storefront-checkout/internal/checkout"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

func checkoutActor(r *http.Request) checkout.Actor {
	return checkout.Actor{
		SessionID: middleware.SessionIDFromContext(r.Context()),
		Token:     middleware.CustomerTokenFromContext(r.Context()),
	}
}

// pageHandler adapts a body-less checkout operation to HTTP.
func pageHandler(logg *logger.Logger, fn func(context.Context, checkout.Actor) (*checkout.Page, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := fn(r.Context(), checkoutActor(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func CheckoutPage(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return pageHandler(logg, svc.Page)
}

func CheckoutPrevious(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return pageHandler(logg, svc.Previous)
}

func CheckoutInitializePayment(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return pageHandler(logg, svc.InitializePayment)
}

func CheckoutLoadPaymentProviders(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return pageHandler(logg, svc.LoadPaymentProviders)
}

func CheckoutCreatePaymentCollection(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return pageHandler(logg, svc.CreatePaymentCollection)
}

func CheckoutComplete(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return pageHandler(logg, svc.CompleteOrder)
}

type addressesRequest struct {
	ShippingAddressID string `json:"shipping_address_id"`
	BillingAddressID  string `json:"billing_address_id,omitempty"`
}

func CheckoutSubmitAddresses(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload addressesRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.SubmitAddresses(r.Context(), checkoutActor(r), checkout.AddressesInput{
			ShippingAddressID: validators.SanitizeString(payload.ShippingAddressID, maxIDLength),
			BillingAddressID:  validators.SanitizeString(payload.BillingAddressID, maxIDLength),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func CheckoutShippingOptions(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := svc.LoadShippingOptions(r.Context(), checkoutActor(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

type shippingRequest struct {
	OptionID string `json:"option_id,omitempty"`
}

func CheckoutSubmitShipping(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload shippingRequest
		if err := validators.DecodeOptionalJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.SubmitShipping(r.Context(), checkoutActor(r), validators.SanitizeString(payload.OptionID, maxIDLength))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

type providerRequest struct {
	ProviderID string `json:"provider_id" validate:"required"`
}

func CheckoutSelectProvider(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload providerRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.SelectProvider(r.Context(), checkoutActor(r), validators.SanitizeString(payload.ProviderID, maxIDLength))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func CheckoutCreatePaymentSession(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload providerRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.CreatePaymentSession(r.Context(), checkoutActor(r), validators.SanitizeString(payload.ProviderID, maxIDLength))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

type confirmPaymentRequest struct {
	PaymentMethodID string `json:"payment_method_id" validate:"required"`
}

// CheckoutConfirmPayment confirms the card payment. The browser only ever
// sends a PaymentMethod id; the client secret stays server side.
func CheckoutConfirmPayment(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload confirmPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ConfirmPayment(r.Context(), checkoutActor(r), validators.SanitizeString(payload.PaymentMethodID, maxIDLength))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}
