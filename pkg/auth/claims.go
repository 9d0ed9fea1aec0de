package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the signed payload of the storefront session cookie.
type SessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// CustomerClaims is the subset of the commerce customer token we inspect.
// The backend remains the authority on its validity.
type CustomerClaims struct {
	ActorID   string `json:"actor_id,omitempty"`
	ActorType string `json:"actor_type,omitempty"`
	jwt.RegisteredClaims
}
