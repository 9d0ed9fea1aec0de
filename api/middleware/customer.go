package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/storefront-checkout/api/responses"
	"github.com/angelmondragon/storefront-checkout/internal/session"
	"github.com/angelmondragon/storefront-checkout/pkg/auth"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

// SessionReader loads the storefront session state.
type SessionReader interface {
	Get(ctx context.Context, id string) (*session.State, error)
}

// RequireCustomer lets a request through only when its session holds a
// usable customer token. Expired JWTs are rejected before any backend call.
func RequireCustomer(sessions SessionReader, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sessionID := SessionIDFromContext(ctx)
			if sessionID == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session missing"))
				return
			}

			st, err := sessions.Get(ctx, sessionID)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session"))
				return
			}
			if !st.IsAuthenticated() {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in to continue"))
				return
			}
			if auth.CustomerTokenExpired(st.AuthToken, time.Now()) {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer session expired"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithCustomerToken(ctx, st.AuthToken)))
		})
	}
}
