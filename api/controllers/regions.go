package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/storefront-checkout/api/middleware"
	"github.com/angelmondragon/storefront-checkout/api/responses"
	"github.com/angelmondragon/storefront-checkout/api/validators"
	"github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/pkg/commerce"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

type regionReader interface {
	List(ctx context.Context) ([]commerce.Region, error)
	Get(ctx context.Context, regionID string) (*commerce.Region, error)
}

type regionSelector interface {
	SelectRegion(ctx context.Context, sessionID, regionID string) (*cart.Snapshot, error)
}

func RegionsList(regions regionReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := regions.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if list == nil {
			list = []commerce.Region{}
		}
		responses.WriteSuccess(w, list)
	}
}

type selectRegionRequest struct {
	RegionID string `json:"region_id" validate:"required"`
}

// SessionSelectRegion binds the session to a region, creating its cart if needed.
func SessionSelectRegion(regions regionReader, carts regionSelector, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload selectRegionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		regionID := validators.SanitizeString(payload.RegionID, maxIDLength)

		region, err := regions.Get(r.Context(), regionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snap, err := carts.SelectRegion(r.Context(), middleware.SessionIDFromContext(r.Context()), region.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"region": region, "cart": snap})
	}
}
