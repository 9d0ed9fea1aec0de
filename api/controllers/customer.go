package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/storefront-checkout/api/middleware"
	"github.com/angelmondragon/storefront-checkout/api/responses"
	"github.com/angelmondragon/storefront-checkout/internal/customer"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

type profileReader interface {
	Profile(ctx context.Context, token string) (*customer.Profile, error)
}

func CustomerMe(svc profileReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profile, err := svc.Profile(r.Context(), middleware.CustomerTokenFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}
