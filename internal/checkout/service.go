package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/storefront-checkout/internal/address"
	"github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/internal/customer"
	"github.com/angelmondragon/storefront-checkout/internal/session"
	"github.com/angelmondragon/storefront-checkout/pkg/commerce"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/keylock"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	pkgstripe "github.com/angelmondragon/storefront-checkout/pkg/stripe"
)

const (
	lockPrefix   = "checkout:"
	maxReactions = 8

	msgLoadProviders     = "Failed to load payment providers"
	msgCreateCollection  = "Failed to create payment collection"
	msgCreateSession     = "Failed to create payment session"
	msgCompleteOrder     = "Failed to complete order"
	msgLoadShipping      = "Failed to load shipping options"
	msgSubmitShipping    = "Failed to set shipping method"
	msgSubmitAddresses   = "Failed to update addresses"
	msgMissingShipping   = "Please select a shipping address"
	msgMissingOption     = "Please select a shipping method"
	msgPaymentNotReady   = "Payment is not ready yet"
	msgUnexpectedFailure = "Something went wrong"
)

type cartStore interface {
	Snapshot(ctx context.Context, sessionID string) (*cart.Snapshot, error)
	Refresh(ctx context.Context, sessionID string) (*cart.Snapshot, error)
	UpdateDetails(ctx context.Context, sessionID string, input commerce.UpdateCartInput) (*cart.Snapshot, error)
	AddShippingMethod(ctx context.Context, sessionID, optionID string) (*cart.Snapshot, error)
	Forget(ctx context.Context, sessionID, cartID string) error
}

type customerStore interface {
	Profile(ctx context.Context, token string) (*customer.Profile, error)
}

type regionStore interface {
	Get(ctx context.Context, regionID string) (*commerce.Region, error)
}

type backend interface {
	ListShippingOptions(ctx context.Context, cartID string) ([]commerce.ShippingOption, error)
	ListPaymentProviders(ctx context.Context, regionID string) ([]commerce.PaymentProvider, error)
	CreatePaymentCollection(ctx context.Context, cartID string) (*commerce.PaymentCollection, error)
	InitiatePaymentSession(ctx context.Context, collectionID, providerID string) (*commerce.PaymentCollection, error)
	CompleteCart(ctx context.Context, cartID string) (*commerce.CompleteResult, error)
}

type recorder interface {
	ObserveStep(from, to string)
	ObservePayment(err error)
	IncOrdersCompleted()
}

// Actor identifies who drives a checkout.
type Actor struct {
	SessionID string
	Token     string
}

// AddressesInput is the Addresses step submission. An empty billing id
// means billing follows shipping.
type AddressesInput struct {
	ShippingAddressID string
	BillingAddressID  string
}

// Service orchestrates the four checkout steps of a session.
type Service interface {
	Page(ctx context.Context, actor Actor) (*Page, error)
	Previous(ctx context.Context, actor Actor) (*Page, error)
	SubmitAddresses(ctx context.Context, actor Actor, input AddressesInput) (*Page, error)
	LoadShippingOptions(ctx context.Context, actor Actor) (*ShippingView, error)
	SubmitShipping(ctx context.Context, actor Actor, optionID string) (*Page, error)
	InitializePayment(ctx context.Context, actor Actor) (*Page, error)
	LoadPaymentProviders(ctx context.Context, actor Actor) (*Page, error)
	CreatePaymentCollection(ctx context.Context, actor Actor) (*Page, error)
	CreatePaymentSession(ctx context.Context, actor Actor, providerID string) (*Page, error)
	SelectProvider(ctx context.Context, actor Actor, providerID string) (*Page, error)
	ConfirmPayment(ctx context.Context, actor Actor, paymentMethodID string) (*Page, error)
	CompleteOrder(ctx context.Context, actor Actor) (*Page, error)
}

// Deps are the collaborators of the checkout service.
type Deps struct {
	Carts     cartStore
	Customers customerStore
	Regions   regionStore
	Backend   backend
	Payments  pkgstripe.PaymentConfirmer
	Repo      Repository
	Locks     *keylock.Locker
	Metrics   recorder
	Policy    address.Policy
	Logger    *logger.Logger
}

type service struct {
	carts     cartStore
	customers customerStore
	regions   regionStore
	backend   backend
	payments  pkgstripe.PaymentConfirmer
	repo      Repository
	locks     *keylock.Locker
	metrics   recorder
	policy    address.Policy
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(deps Deps) (Service, error) {
	switch {
	case deps.Carts == nil:
		return nil, fmt.Errorf("cart store required")
	case deps.Customers == nil:
		return nil, fmt.Errorf("customer store required")
	case deps.Regions == nil:
		return nil, fmt.Errorf("region store required")
	case deps.Backend == nil:
		return nil, fmt.Errorf("commerce backend required")
	case deps.Payments == nil:
		return nil, fmt.Errorf("payment confirmer required")
	case deps.Repo == nil:
		return nil, fmt.Errorf("checkout repository required")
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	locks := deps.Locks
	if locks == nil {
		locks = keylock.New()
	}
	policy := deps.Policy
	if len(policy.Rules) == 0 {
		policy = address.DefaultPolicy()
	}
	return &service{
		carts:     deps.Carts,
		customers: deps.Customers,
		regions:   deps.Regions,
		backend:   deps.Backend,
		payments:  deps.Payments,
		repo:      deps.Repo,
		locks:     locks,
		metrics:   deps.Metrics,
		policy:    policy,
		logg:      deps.Logger,
		now:       time.Now,
	}, nil
}

// op is the working set of one checkout operation.
type op struct {
	actor   Actor
	state   *State
	cart    *commerce.Cart
	cartID  string
	profile *customer.Profile
	region  *commerce.Region
}

func (o *op) hasItems() bool {
	return o.cart != nil && len(o.cart.Items) > 0
}

// run loads state under the session lock, applies fn, records the error slot
// and persists the result.
func (s *service) run(ctx context.Context, actor Actor, fn func(context.Context, *op) error) (*Page, error) {
	if strings.TrimSpace(actor.SessionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	ctx = s.logg.WithSessionID(ctx, actor.SessionID)
	if session.ValidToken(actor.Token) {
		ctx = commerce.WithCustomerToken(ctx, actor.Token)
	}

	unlock, err := s.locks.Lock(ctx, lockPrefix+actor.SessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	o, err := s.load(ctx, actor)
	if err != nil {
		return nil, err
	}
	if o.cartID != "" {
		ctx = s.logg.WithCartID(ctx, o.cartID)
	}

	o.state.Error = ""
	from := o.state.Step
	opErr := fn(ctx, o)

	if opErr == nil {
		opErr = s.prepare(ctx, o)
	}
	var page *Page
	if opErr != nil {
		o.state.Error = userMessage(opErr)
	} else {
		page = s.buildPage(o)
	}
	if from != o.state.Step && s.metrics != nil {
		s.metrics.ObserveStep(from.String(), o.state.Step.String())
	}

	o.state.UpdatedAt = s.now().UTC()
	if err := s.repo.Save(ctx, o.state); err != nil {
		if opErr != nil {
			s.logg.Error(ctx, "checkout.save_failed", err)
			return nil, opErr
		}
		return nil, err
	}
	if opErr != nil {
		return nil, opErr
	}
	return page, nil
}

func (s *service) load(ctx context.Context, actor Actor) (*op, error) {
	snap, err := s.carts.Snapshot(ctx, actor.SessionID)
	if err != nil {
		return nil, err
	}
	if snap.CartID != "" && snap.Cart == nil {
		snap, err = s.carts.Refresh(ctx, actor.SessionID)
		if err != nil {
			return nil, err
		}
	}

	st, err := s.repo.Get(ctx, actor.SessionID)
	if err != nil {
		return nil, err
	}
	switch {
	case st == nil:
		st = newState(actor.SessionID, snap.CartID)
	case st.CartID != snap.CartID && !st.pendingCompletion():
		s.logg.Info(s.logg.WithCartID(ctx, snap.CartID), "checkout.reset")
		st = newState(actor.SessionID, snap.CartID)
	}

	return &op{actor: actor, state: st, cart: snap.Cart, cartID: snap.CartID}, nil
}

// loadCustomerContext fetches the profile and the cart region in parallel.
// A region failure only drops the country restriction.
func (s *service) loadCustomerContext(ctx context.Context, o *op) error {
	if o.profile != nil {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	var profile *customer.Profile
	var region *commerce.Region
	g.Go(func() error {
		p, err := s.customers.Profile(gctx, o.actor.Token)
		if err != nil {
			return err
		}
		profile = p
		return nil
	})
	if o.cart != nil && o.cart.RegionID != "" {
		g.Go(func() error {
			r, err := s.regions.Get(gctx, o.cart.RegionID)
			if err != nil {
				s.logg.Warn(ctx, "checkout.region_lookup_failed")
				return nil
			}
			region = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	o.profile = profile
	o.region = region
	return nil
}

func (o *op) allowedCountries() []string {
	if o.region == nil {
		return nil
	}
	return o.region.CountryCodes()
}

func (s *service) requireCart(o *op) error {
	if o.cartID == "" || o.cart == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}
	if !o.hasItems() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "cart has no items")
	}
	return nil
}

func requireStep(o *op, step Step) error {
	if o.state.Step != step {
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("checkout is at %s, not %s", o.state.Step, step)).
			WithDetails(map[string]any{"step": int(o.state.Step)})
	}
	return nil
}

func (s *service) advance(o *op) {
	o.state.Step = o.state.Step.Next()
}

func (s *service) Previous(ctx context.Context, actor Actor) (*Page, error) {
	return s.run(ctx, actor, func(_ context.Context, o *op) error {
		o.state.Step = o.state.Step.Previous()
		return nil
	})
}

// wrapAs keeps the code of a typed cause and replaces the message with msg.
func wrapAs(err error, msg string) error {
	code := pkgerrors.CodeDependency
	if typed := pkgerrors.As(err); typed != nil {
		code = typed.Code()
	}
	return pkgerrors.Wrap(code, err, msg)
}

func userMessage(err error) string {
	if typed := pkgerrors.As(err); typed != nil && typed.Message() != "" {
		return typed.Message()
	}
	return msgUnexpectedFailure
}
