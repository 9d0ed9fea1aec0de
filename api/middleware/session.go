package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-checkout/api/responses"
	"github.com/angelmondragon/storefront-checkout/pkg/auth"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

// SessionHeader carries the signed session token for clients without cookies.
const SessionHeader = "X-Storefront-Session"

// Session resolves the storefront session from the signed cookie or header,
// issuing a new one when none is present or the signature does not verify.
func Session(cfg config.SessionConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			raw := strings.TrimSpace(r.Header.Get(SessionHeader))
			if raw == "" {
				if cookie, err := r.Cookie(cfg.CookieName); err == nil {
					raw = strings.TrimSpace(cookie.Value)
				}
			}

			sessionID := ""
			if raw != "" {
				sid, err := auth.ParseSessionToken(cfg, raw)
				if err != nil {
					if logg != nil {
						logg.Warn(ctx, "session.token_rejected")
					}
				} else {
					sessionID = sid
				}
			}

			if sessionID == "" {
				sessionID = auth.NewSessionID()
				token, err := auth.MintSessionToken(cfg, time.Now().UTC(), sessionID)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "issue session"))
					return
				}
				http.SetCookie(w, &http.Cookie{
					Name:     cfg.CookieName,
					Value:    token,
					Path:     "/",
					MaxAge:   int(cfg.TTL.Seconds()),
					HttpOnly: true,
					Secure:   cfg.CookieSecure,
					SameSite: http.SameSiteLaxMode,
				})
				w.Header().Set(SessionHeader, token)
			}

			ctx = WithSessionID(ctx, sessionID)
			if logg != nil {
				ctx = logg.WithSessionID(ctx, sessionID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
