package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/angelmondragon/storefront-checkout/internal/session"
	"github.com/angelmondragon/storefront-checkout/pkg/commerce"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/keylock"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

const (
	msgLoadNotFound   = "Failed to load cart: Not found."
	msgLoadFailed     = "Failed to load cart."
	msgCreateFailed   = "Failed to create cart"
	msgAddFailed      = "Failed to add item to cart"
	msgUpdateFailed   = "Failed to update cart item"
	msgRemoveFailed   = "Failed to remove item from cart"
	msgDetailsFailed  = "Failed to update cart"
	msgShippingFailed = "Failed to add shipping method"

	cartLockPrefix = "cart:"
)

var errStale = errors.New("cart changed while the operation was in flight")

type backend interface {
	CreateCart(ctx context.Context, regionID string) (*commerce.Cart, error)
	RetrieveCart(ctx context.Context, cartID string) (*commerce.Cart, error)
	UpdateCart(ctx context.Context, cartID string, input commerce.UpdateCartInput) (*commerce.Cart, error)
	AddLineItem(ctx context.Context, cartID, variantID string, quantity int) (*commerce.Cart, error)
	UpdateLineItem(ctx context.Context, cartID, lineID string, quantity int) (*commerce.Cart, error)
	DeleteLineItem(ctx context.Context, cartID, lineID string) error
	AddShippingMethod(ctx context.Context, cartID, optionID string) (*commerce.Cart, error)
}

type sessionStore interface {
	Get(ctx context.Context, id string) (*session.State, error)
	Update(ctx context.Context, id string, fn func(*session.State) error) (*session.State, error)
}

// Snapshot is the cart as a session currently sees it.
type Snapshot struct {
	CartID    string         `json:"cart_id,omitempty"`
	Cart      *commerce.Cart `json:"cart"`
	RegionID  string         `json:"region_id,omitempty"`
	Loading   bool           `json:"loading"`
	Error     string         `json:"error,omitempty"`
	ItemCount int            `json:"item_count"`
}

// Service owns the single active cart of each session.
type Service interface {
	Snapshot(ctx context.Context, sessionID string) (*Snapshot, error)
	Load(ctx context.Context, sessionID string) (*Snapshot, error)
	SelectRegion(ctx context.Context, sessionID, regionID string) (*Snapshot, error)
	AddItem(ctx context.Context, sessionID, variantID string, quantity int) (*Snapshot, error)
	UpdateItem(ctx context.Context, sessionID, lineID string, quantity int) (*Snapshot, error)
	RemoveItem(ctx context.Context, sessionID, lineID string) (*Snapshot, error)
	Refresh(ctx context.Context, sessionID string) (*Snapshot, error)
	UpdateDetails(ctx context.Context, sessionID string, input commerce.UpdateCartInput) (*Snapshot, error)
	AddShippingMethod(ctx context.Context, sessionID, optionID string) (*Snapshot, error)
	Forget(ctx context.Context, sessionID, cartID string) error
}

type service struct {
	backend  backend
	sessions sessionStore
	locks    *keylock.Locker
	logg     *logger.Logger
	creates  singleflight.Group

	mu       sync.Mutex
	inflight map[string]int
}

// NewService wires the cart store to the commerce backend and the session store.
func NewService(b backend, sessions sessionStore, locks *keylock.Locker, logg *logger.Logger) (Service, error) {
	if b == nil {
		return nil, fmt.Errorf("commerce backend required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if locks == nil {
		locks = keylock.New()
	}
	return &service{
		backend:  b,
		sessions: sessions,
		locks:    locks,
		logg:     logg,
		inflight: make(map[string]int),
	}, nil
}

func (s *service) Snapshot(ctx context.Context, sessionID string) (*Snapshot, error) {
	st, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	snap := s.snapshot(st)
	snap.Loading = s.loading(sessionID)
	return snap, nil
}

// Load re-reads the session cart from the backend, creating one when a region
// is selected and no cart exists yet.
func (s *service) Load(ctx context.Context, sessionID string) (*Snapshot, error) {
	done := s.begin(sessionID)
	defer done()

	st, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if st.CartID == "" {
		if st.RegionID == "" {
			return s.snapshot(st), nil
		}
		return s.ensureCart(ctx, sessionID, st.RegionID)
	}
	return s.refetch(ctx, sessionID, st.CartID)
}

// SelectRegion records the region and makes sure exactly one cart exists for it.
func (s *service) SelectRegion(ctx context.Context, sessionID, regionID string) (*Snapshot, error) {
	regionID = strings.TrimSpace(regionID)
	if regionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "region id is required")
	}
	done := s.begin(sessionID)
	defer done()

	st, err := s.sessions.Update(ctx, sessionID, func(st *session.State) error {
		st.RegionID = regionID
		return nil
	})
	if err != nil {
		return nil, err
	}
	if st.CartID == "" {
		return s.ensureCart(ctx, sessionID, regionID)
	}
	if st.Cart != nil && st.Cart.RegionID == regionID {
		return s.snapshot(st), nil
	}
	return s.mutate(ctx, sessionID, st.CartID, msgDetailsFailed, false, func(ctx context.Context, cartID string) error {
		_, err := s.backend.UpdateCart(ctx, cartID, commerce.UpdateCartInput{RegionID: regionID})
		return err
	})
}

// AddItem creates the cart first when the session has none.
func (s *service) AddItem(ctx context.Context, sessionID, variantID string, quantity int) (*Snapshot, error) {
	if strings.TrimSpace(variantID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant id is required")
	}
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	done := s.begin(sessionID)
	defer done()

	st, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	cartID := st.CartID
	if cartID == "" {
		if st.RegionID == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "select a region before adding items")
		}
		snap, err := s.ensureCart(ctx, sessionID, st.RegionID)
		if err != nil {
			return nil, err
		}
		cartID = snap.CartID
	}
	return s.mutate(ctx, sessionID, cartID, msgAddFailed, true, func(ctx context.Context, cartID string) error {
		_, err := s.backend.AddLineItem(ctx, cartID, variantID, quantity)
		return err
	})
}

func (s *service) UpdateItem(ctx context.Context, sessionID, lineID string, quantity int) (*Snapshot, error) {
	if strings.TrimSpace(lineID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "line item id is required")
	}
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	done := s.begin(sessionID)
	defer done()

	cartID, err := s.requireCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, sessionID, cartID, msgUpdateFailed, false, func(ctx context.Context, cartID string) error {
		_, err := s.backend.UpdateLineItem(ctx, cartID, lineID, quantity)
		return err
	})
}

func (s *service) RemoveItem(ctx context.Context, sessionID, lineID string) (*Snapshot, error) {
	if strings.TrimSpace(lineID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "line item id is required")
	}
	done := s.begin(sessionID)
	defer done()

	cartID, err := s.requireCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, sessionID, cartID, msgRemoveFailed, false, func(ctx context.Context, cartID string) error {
		return s.backend.DeleteLineItem(ctx, cartID, lineID)
	})
}

func (s *service) Refresh(ctx context.Context, sessionID string) (*Snapshot, error) {
	done := s.begin(sessionID)
	defer done()

	cartID, err := s.requireCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.refetch(ctx, sessionID, cartID)
}

// UpdateDetails sets addresses, email or customer on the cart.
func (s *service) UpdateDetails(ctx context.Context, sessionID string, input commerce.UpdateCartInput) (*Snapshot, error) {
	done := s.begin(sessionID)
	defer done()

	cartID, err := s.requireCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, sessionID, cartID, msgDetailsFailed, false, func(ctx context.Context, cartID string) error {
		_, err := s.backend.UpdateCart(ctx, cartID, input)
		return err
	})
}

func (s *service) AddShippingMethod(ctx context.Context, sessionID, optionID string) (*Snapshot, error) {
	if strings.TrimSpace(optionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping option id is required")
	}
	done := s.begin(sessionID)
	defer done()

	cartID, err := s.requireCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, sessionID, cartID, msgShippingFailed, false, func(ctx context.Context, cartID string) error {
		_, err := s.backend.AddShippingMethod(ctx, cartID, optionID)
		return err
	})
}

// Forget drops cartID from the session once it has become an order. A session
// that already moved to another cart is left alone.
func (s *service) Forget(ctx context.Context, sessionID, cartID string) error {
	_, err := s.sessions.Update(ctx, sessionID, func(st *session.State) error {
		if st.CartID != cartID {
			return errStale
		}
		st.ClearCart()
		return nil
	})
	if errors.Is(err, errStale) {
		return nil
	}
	return err
}

func (s *service) requireCart(ctx context.Context, sessionID string) (string, error) {
	st, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if st.CartID == "" {
		return "", pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}
	return st.CartID, nil
}

// ensureCart collapses concurrent creations for one session and region into a
// single backend call. The shared call outlives the caller that started it.
func (s *service) ensureCart(ctx context.Context, sessionID, regionID string) (*Snapshot, error) {
	v, err, _ := s.creates.Do(sessionID+"|"+regionID, func() (any, error) {
		ctx := context.WithoutCancel(ctx)
		st, err := s.sessions.Get(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if st.CartID != "" {
			return s.refetch(ctx, sessionID, st.CartID)
		}

		cart, err := s.backend.CreateCart(ctx, regionID)
		if err != nil {
			s.recordError(ctx, sessionID, "", msgCreateFailed)
			return nil, wrapAs(err, msgCreateFailed)
		}

		updated, err := s.sessions.Update(ctx, sessionID, func(st *session.State) error {
			if st.CartID != "" {
				return errStale
			}
			st.CartID = cart.ID
			st.Cart = cart
			st.CartError = ""
			return nil
		})
		if errors.Is(err, errStale) {
			s.logg.Warn(s.logg.WithCartID(ctx, cart.ID), "cart.stale_result")
			return s.snapshot(updated), nil
		}
		if err != nil {
			return nil, err
		}
		s.logg.Info(s.logg.WithCartID(ctx, cart.ID), "cart.created")
		return s.snapshot(updated), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

// mutate applies op to cartID then re-fetches the cart. Operations on one cart
// run one at a time in the order they acquire the lock.
func (s *service) mutate(ctx context.Context, sessionID, cartID, failMsg string, withCause bool, op func(context.Context, string) error) (*Snapshot, error) {
	unlock, err := s.locks.Lock(ctx, cartLockPrefix+cartID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := op(ctx, cartID); err != nil {
		msg := failMsg
		if withCause {
			msg = fmt.Sprintf("%s: %s", failMsg, causeMessage(err))
		}
		s.recordError(ctx, sessionID, cartID, msg)
		return nil, wrapAs(err, msg)
	}
	return s.fetchAndApply(ctx, sessionID, cartID)
}

func (s *service) refetch(ctx context.Context, sessionID, cartID string) (*Snapshot, error) {
	unlock, err := s.locks.Lock(ctx, cartLockPrefix+cartID)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return s.fetchAndApply(ctx, sessionID, cartID)
}

func (s *service) fetchAndApply(ctx context.Context, sessionID, cartID string) (*Snapshot, error) {
	cart, err := s.backend.RetrieveCart(ctx, cartID)
	if err != nil {
		return nil, s.handleFetchError(ctx, sessionID, cartID, err)
	}

	st, err := s.sessions.Update(ctx, sessionID, func(st *session.State) error {
		if st.CartID != cartID {
			return errStale
		}
		st.Cart = cart
		st.CartError = ""
		return nil
	})
	if errors.Is(err, errStale) {
		s.logg.Warn(s.logg.WithCartID(ctx, cartID), "cart.stale_result")
		return nil, pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, errStale.Error())
	}
	if err != nil {
		return nil, err
	}
	return s.snapshot(st), nil
}

// handleFetchError clears a cart the backend no longer knows. Other failures
// keep the cart id so the next load can retry.
func (s *service) handleFetchError(ctx context.Context, sessionID, cartID string, fetchErr error) error {
	if pkgerrors.IsCode(fetchErr, pkgerrors.CodeNotFound) {
		_, err := s.sessions.Update(ctx, sessionID, func(st *session.State) error {
			if st.CartID != cartID {
				return errStale
			}
			st.ClearCart()
			st.CartError = msgLoadNotFound
			return nil
		})
		if err != nil && !errors.Is(err, errStale) {
			return err
		}
		s.logg.Warn(s.logg.WithCartID(ctx, cartID), "cart.not_found")
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, fetchErr, msgLoadNotFound)
	}
	s.recordError(ctx, sessionID, cartID, msgLoadFailed)
	return wrapAs(fetchErr, msgLoadFailed)
}

// recordError stores msg in the session error slot unless the session moved to another cart.
func (s *service) recordError(ctx context.Context, sessionID, cartID, msg string) {
	_, err := s.sessions.Update(ctx, sessionID, func(st *session.State) error {
		if st.CartID != cartID {
			return errStale
		}
		st.CartError = msg
		return nil
	})
	if err != nil && !errors.Is(err, errStale) {
		s.logg.Error(ctx, "cart.record_error_failed", err)
	}
}

func (s *service) snapshot(st *session.State) *Snapshot {
	snap := &Snapshot{}
	if st == nil {
		return snap
	}
	snap.CartID = st.CartID
	snap.Cart = st.Cart
	snap.RegionID = st.RegionID
	snap.Error = st.CartError
	snap.ItemCount = st.Cart.ItemCount()
	return snap
}

func (s *service) begin(sessionID string) func() {
	s.mu.Lock()
	s.inflight[sessionID]++
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.inflight[sessionID]--
		if s.inflight[sessionID] <= 0 {
			delete(s.inflight, sessionID)
		}
	}
}

func (s *service) loading(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight[sessionID] > 0
}

func causeMessage(err error) string {
	if typed := pkgerrors.As(err); typed != nil && typed.Message() != "" {
		return typed.Message()
	}
	return err.Error()
}

// wrapAs keeps the code of a typed cause and replaces the message with msg.
func wrapAs(err error, msg string) error {
	code := pkgerrors.CodeDependency
	if typed := pkgerrors.As(err); typed != nil {
		code = typed.Code()
	}
	return pkgerrors.Wrap(code, err, msg)
}
