package session

import (
	"strings"
	"time"

	"github.com/angelmondragon/storefront-checkout/pkg/commerce"
)

// State is everything the storefront remembers about one browser session.
type State struct {
	ID            string         `json:"id"`
	CartID        string         `json:"cart_id,omitempty"`
	RegionID      string         `json:"region_id,omitempty"`
	AuthToken     string         `json:"auth_token,omitempty"`
	Authenticated bool           `json:"authenticated"`
	Cart          *commerce.Cart `json:"cart,omitempty"`
	CartError     string         `json:"cart_error,omitempty"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// ValidToken rejects the empty token and the stringified placeholders some
// clients persist after logout.
func ValidToken(token string) bool {
	switch strings.TrimSpace(token) {
	case "", "null", "undefined":
		return false
	}
	return true
}

// IsAuthenticated requires both a usable token and the authenticated flag.
func (s *State) IsAuthenticated() bool {
	return s != nil && s.Authenticated && ValidToken(s.AuthToken)
}

// ClearCart drops the cart reference, its snapshot and error.
func (s *State) ClearCart() {
	s.CartID = ""
	s.Cart = nil
	s.CartError = ""
}

// SignIn stores the customer token. Placeholder tokens are rejected.
func (s *State) SignIn(token string) bool {
	token = strings.TrimSpace(token)
	if !ValidToken(token) {
		return false
	}
	s.AuthToken = token
	s.Authenticated = true
	return true
}

// SignOut forgets the customer token. The cart stays with the session.
func (s *State) SignOut() {
	s.AuthToken = ""
	s.Authenticated = false
}
