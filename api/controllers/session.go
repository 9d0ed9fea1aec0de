package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/storefront-checkout/api/middleware"
	"github.com/angelmondragon/storefront-checkout/api/responses"
	"github.com/angelmondragon/storefront-checkout/api/validators"
	"github.com/angelmondragon/storefront-checkout/internal/session"
	"github.com/angelmondragon/storefront-checkout/pkg/auth"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

const maxIDLength = 128

var timeNow = time.Now

type sessionUpdater interface {
	Update(ctx context.Context, id string, fn func(*session.State) error) (*session.State, error)
}

type sessionView struct {
	Authenticated bool   `json:"authenticated"`
	RegionID      string `json:"region_id,omitempty"`
	CartID        string `json:"cart_id,omitempty"`
}

func newSessionView(st *session.State) sessionView {
	return sessionView{
		Authenticated: st.IsAuthenticated(),
		RegionID:      st.RegionID,
		CartID:        st.CartID,
	}
}

type signInRequest struct {
	Token string `json:"token" validate:"required"`
}

// SessionSignIn stores the customer token issued by the commerce backend.
func SessionSignIn(sessions sessionUpdater, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload signInRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if auth.CustomerTokenExpired(payload.Token, timeNow()) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer token expired"))
			return
		}

		st, err := sessions.Update(r.Context(), middleware.SessionIDFromContext(r.Context()), func(st *session.State) error {
			if !st.SignIn(payload.Token) {
				return pkgerrors.New(pkgerrors.CodeValidation, "token is invalid")
			}
			return nil
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSessionView(st))
	}
}

func SessionSignOut(sessions sessionUpdater, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := sessions.Update(r.Context(), middleware.SessionIDFromContext(r.Context()), func(st *session.State) error {
			st.SignOut()
			return nil
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSessionView(st))
	}
}
