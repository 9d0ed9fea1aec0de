package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-checkout/api/middleware"
	"github.com/angelmondragon/storefront-checkout/api/responses"
	"github.com/angelmondragon/storefront-checkout/api/validators"
	"github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

// CartStore is the slice of the cart service the HTTP layer drives.
type CartStore interface {
	Load(ctx context.Context, sessionID string) (*cart.Snapshot, error)
	AddItem(ctx context.Context, sessionID, variantID string, quantity int) (*cart.Snapshot, error)
	UpdateItem(ctx context.Context, sessionID, lineID string, quantity int) (*cart.Snapshot, error)
	RemoveItem(ctx context.Context, sessionID, lineID string) (*cart.Snapshot, error)
	Refresh(ctx context.Context, sessionID string) (*cart.Snapshot, error)
}

// CartFetch loads the session cart, creating it when a region is selected.
func CartFetch(svc CartStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := svc.Load(r.Context(), middleware.SessionIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snap)
	}
}

type addItemRequest struct {
	VariantID string `json:"variant_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

func CartAddItem(svc CartStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload addItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		snap, err := svc.AddItem(r.Context(), middleware.SessionIDFromContext(r.Context()),
			validators.SanitizeString(payload.VariantID, maxIDLength), payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, snap)
	}
}

type updateItemRequest struct {
	Quantity int `json:"quantity" validate:"gt=0"`
}

func CartUpdateItem(svc CartStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload updateItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		lineID := validators.SanitizeString(chi.URLParam(r, "itemId"), maxIDLength)
		snap, err := svc.UpdateItem(r.Context(), middleware.SessionIDFromContext(r.Context()), lineID, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snap)
	}
}

func CartRemoveItem(svc CartStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lineID := validators.SanitizeString(chi.URLParam(r, "itemId"), maxIDLength)
		snap, err := svc.RemoveItem(r.Context(), middleware.SessionIDFromContext(r.Context()), lineID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snap)
	}
}

func CartRefresh(svc CartStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := svc.Refresh(r.Context(), middleware.SessionIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snap)
	}
}
