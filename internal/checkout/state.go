package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront-checkout/pkg/commerce"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	pkgredis "github.com/angelmondragon/storefront-checkout/pkg/redis"
)

// State is the checkout progress of one session for one cart.
type State struct {
	SessionID                string                    `json:"session_id"`
	CartID                   string                    `json:"cart_id"`
	Step                     Step                      `json:"step"`
	Payment                  Payment                   `json:"payment"`
	ShippingOptions          []commerce.ShippingOption `json:"shipping_options,omitempty"`
	SelectedShippingOptionID string                    `json:"selected_shipping_option_id,omitempty"`
	ShippingAddressID        string                    `json:"shipping_address_id,omitempty"`
	BillingAddressID         string                    `json:"billing_address_id,omitempty"`
	CustomerSyncedCartID     string                    `json:"customer_synced_cart_id,omitempty"`
	CompletedOrder           *commerce.Order           `json:"completed_order,omitempty"`
	CompletionSignaled       bool                      `json:"completion_signaled"`
	Error                    string                    `json:"error,omitempty"`
	UpdatedAt                time.Time                 `json:"updated_at"`
}

func newState(sessionID, cartID string) *State {
	return &State{
		SessionID: sessionID,
		CartID:    cartID,
		Step:      StepAddresses,
		Payment:   newPayment(),
	}
}

// pendingCompletion is true between order completion and the one redirect.
func (s *State) pendingCompletion() bool {
	return s.CompletedOrder != nil && !s.CompletionSignaled
}

// Repository persists checkout state per session.
type Repository interface {
	Get(ctx context.Context, sessionID string) (*State, error)
	Save(ctx context.Context, state *State) error
}

type redisRepository struct {
	kv  pkgredis.KV
	ttl time.Duration
}

func NewRedisRepository(kv pkgredis.KV, ttl time.Duration) (Repository, error) {
	if kv == nil {
		return nil, errors.New("redis store required")
	}
	return &redisRepository{kv: kv, ttl: ttl}, nil
}

// Get returns nil, nil when the session has no checkout yet.
func (r *redisRepository) Get(ctx context.Context, sessionID string) (*State, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	raw, err := r.kv.Get(ctx, r.kv.CheckoutKey(sessionID))
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load checkout state")
	}
	var state State
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode checkout state")
	}
	return &state, nil
}

func (r *redisRepository) Save(ctx context.Context, state *State) error {
	if state == nil || state.SessionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode checkout state")
	}
	if err := r.kv.Set(ctx, r.kv.CheckoutKey(state.SessionID), string(payload), r.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save checkout state")
	}
	return nil
}
