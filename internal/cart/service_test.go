package cart

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-checkout/internal/session"
	"github.com/angelmondragon/storefront-checkout/pkg/commerce"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

type memRepo struct {
	mu     sync.Mutex
	states map[string]session.State
}

func (m *memRepo) Get(_ context.Context, id string) (*session.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[id]
	if !ok {
		return &session.State{ID: id}, nil
	}
	return &st, nil
}

func (m *memRepo) Save(_ context.Context, st *session.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[st.ID] = *st
	return nil
}

func (m *memRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, id)
	return nil
}

type fakeBackend struct {
	mu          sync.Mutex
	carts       map[string]*commerce.Cart
	creates     int32
	retrieves   int32
	createDelay time.Duration
	retrieveErr error
	addErr      error
	onAdd       func()
	active      int32
	maxActive   int32
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{carts: map[string]*commerce.Cart{}}
}

func (f *fakeBackend) enter() func() {
	n := atomic.AddInt32(&f.active, 1)
	for {
		cur := atomic.LoadInt32(&f.maxActive)
		if n <= cur || atomic.CompareAndSwapInt32(&f.maxActive, cur, n) {
			break
		}
	}
	return func() { atomic.AddInt32(&f.active, -1) }
}

func (f *fakeBackend) CreateCart(ctx context.Context, regionID string) (*commerce.Cart, error) {
	atomic.AddInt32(&f.creates, 1)
	time.Sleep(f.createDelay)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cart := &commerce.Cart{ID: "cart_1", RegionID: regionID, CurrencyCode: "usd"}
	f.carts[cart.ID] = cart
	copied := *cart
	return &copied, nil
}

func (f *fakeBackend) RetrieveCart(_ context.Context, cartID string) (*commerce.Cart, error) {
	atomic.AddInt32(&f.retrieves, 1)
	if f.retrieveErr != nil {
		return nil, f.retrieveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cart, ok := f.carts[cartID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}
	copied := *cart
	copied.Items = append([]commerce.LineItem(nil), cart.Items...)
	return &copied, nil
}

func (f *fakeBackend) UpdateCart(_ context.Context, cartID string, input commerce.UpdateCartInput) (*commerce.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cart := f.carts[cartID]
	if input.RegionID != "" {
		cart.RegionID = input.RegionID
	}
	if input.Email != "" {
		cart.Email = input.Email
	}
	return cart, nil
}

func (f *fakeBackend) AddLineItem(_ context.Context, cartID, variantID string, quantity int) (*commerce.Cart, error) {
	if f.onAdd != nil {
		f.onAdd()
	}
	if f.addErr != nil {
		return nil, f.addErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cart := f.carts[cartID]
	cart.Items = append(cart.Items, commerce.LineItem{ID: "li_" + variantID, VariantID: variantID, Quantity: quantity, UnitPrice: 1500})
	retotal(cart)
	return cart, nil
}

func (f *fakeBackend) UpdateLineItem(_ context.Context, cartID, lineID string, quantity int) (*commerce.Cart, error) {
	defer f.enter()()
	time.Sleep(2 * time.Millisecond)
	f.mu.Lock()
	defer f.mu.Unlock()
	cart := f.carts[cartID]
	for i := range cart.Items {
		if cart.Items[i].ID == lineID {
			cart.Items[i].Quantity = quantity
		}
	}
	retotal(cart)
	return cart, nil
}

func retotal(cart *commerce.Cart) {
	cart.Subtotal = 0
	for _, item := range cart.Items {
		cart.Subtotal += item.UnitPrice * int64(item.Quantity)
	}
	cart.Total = cart.Subtotal + cart.ShippingTotal + cart.TaxTotal
}

func (f *fakeBackend) DeleteLineItem(_ context.Context, cartID, lineID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cart := f.carts[cartID]
	kept := cart.Items[:0]
	for _, item := range cart.Items {
		if item.ID != lineID {
			kept = append(kept, item)
		}
	}
	cart.Items = kept
	return nil
}

func (f *fakeBackend) AddShippingMethod(_ context.Context, cartID, optionID string) (*commerce.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cart := f.carts[cartID]
	cart.ShippingMethods = []commerce.ShippingMethod{{ShippingOptionID: optionID}}
	return cart, nil
}

func newTestService(t *testing.T, b *fakeBackend) (Service, *session.Manager) {
	t.Helper()
	mgr, err := session.NewManager(&memRepo{states: map[string]session.State{}}, nil)
	require.NoError(t, err)
	svc, err := NewService(b, mgr, nil, logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	require.NoError(t, err)
	return svc, mgr
}

func TestLoadWithoutRegionReturnsEmptySnapshot(t *testing.T) {
	b := newFakeBackend()
	svc, _ := newTestService(t, b)

	snap, err := svc.Load(context.Background(), "sess")
	require.NoError(t, err)
	require.Nil(t, snap.Cart)
	require.Zero(t, atomic.LoadInt32(&b.creates))
}

func TestSelectRegionCreatesExactlyOneCart(t *testing.T) {
	b := newFakeBackend()
	b.createDelay = 20 * time.Millisecond
	svc, mgr := newTestService(t, b)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.SelectRegion(context.Background(), "sess", "reg_us")
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), atomic.LoadInt32(&b.creates))
	st, err := mgr.Get(context.Background(), "sess")
	require.NoError(t, err)
	require.Equal(t, "cart_1", st.CartID)
	require.Equal(t, "reg_us", st.RegionID)
}

func TestCartCreationSurvivesFirstCallerCancel(t *testing.T) {
	b := newFakeBackend()
	b.createDelay = 30 * time.Millisecond
	svc, mgr := newTestService(t, b)
	s := svc.(*service)

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := s.ensureCart(ctx, "sess", "reg_us")
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&b.creates) == 1 }, time.Second, time.Millisecond)

	joined := make(chan *Snapshot, 1)
	go func() {
		snap, err := s.ensureCart(context.Background(), "sess", "reg_us")
		if err != nil {
			joined <- nil
			return
		}
		joined <- snap
	}()
	cancel()

	require.NoError(t, <-firstErr)
	snap := <-joined
	require.NotNil(t, snap)
	require.Equal(t, "cart_1", snap.CartID)
	require.Equal(t, int32(1), atomic.LoadInt32(&b.creates))

	st, err := mgr.Get(context.Background(), "sess")
	require.NoError(t, err)
	require.Equal(t, "cart_1", st.CartID)
}

func TestLoadNotFoundClearsCart(t *testing.T) {
	b := newFakeBackend()
	svc, mgr := newTestService(t, b)
	_, err := mgr.Update(context.Background(), "sess", func(st *session.State) error {
		st.CartID = "cart_gone"
		return nil
	})
	require.NoError(t, err)

	_, err = svc.Load(context.Background(), "sess")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	snap, err := svc.Snapshot(context.Background(), "sess")
	require.NoError(t, err)
	require.Empty(t, snap.CartID)
	require.Equal(t, "Failed to load cart: Not found.", snap.Error)
	require.Equal(t, int32(1), atomic.LoadInt32(&b.retrieves))
}

func TestLoadOtherFailureKeepsCartID(t *testing.T) {
	b := newFakeBackend()
	b.retrieveErr = pkgerrors.New(pkgerrors.CodeDependency, "boom")
	svc, mgr := newTestService(t, b)
	_, _ = mgr.Update(context.Background(), "sess", func(st *session.State) error {
		st.CartID = "cart_1"
		return nil
	})

	_, err := svc.Load(context.Background(), "sess")
	require.Error(t, err)
	require.Equal(t, "Failed to load cart.", pkgerrors.As(err).Message())

	snap, _ := svc.Snapshot(context.Background(), "sess")
	require.Equal(t, "cart_1", snap.CartID)
	require.Equal(t, "Failed to load cart.", snap.Error)
}

func TestAddItemCreatesCartAndRefetches(t *testing.T) {
	b := newFakeBackend()
	svc, mgr := newTestService(t, b)
	_, _ = mgr.Update(context.Background(), "sess", func(st *session.State) error {
		st.RegionID = "reg_us"
		return nil
	})

	snap, err := svc.AddItem(context.Background(), "sess", "var_1", 2)
	require.NoError(t, err)
	require.Equal(t, 2, snap.ItemCount)
	require.Equal(t, int32(1), atomic.LoadInt32(&b.creates))
	require.GreaterOrEqual(t, atomic.LoadInt32(&b.retrieves), int32(1))
}

func TestAddItemWithoutRegionIsValidationError(t *testing.T) {
	svc, _ := newTestService(t, newFakeBackend())
	_, err := svc.AddItem(context.Background(), "sess", "var_1", 1)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestAddItemFailureCarriesCause(t *testing.T) {
	b := newFakeBackend()
	b.addErr = pkgerrors.New(pkgerrors.CodeValidation, "Variant out of stock")
	svc, mgr := newTestService(t, b)
	_, err := svc.SelectRegion(context.Background(), "sess", "reg_us")
	require.NoError(t, err)

	_, err = svc.AddItem(context.Background(), "sess", "var_1", 1)
	require.Error(t, err)
	require.Equal(t, "Failed to add item to cart: Variant out of stock", pkgerrors.As(err).Message())

	st, _ := mgr.Get(context.Background(), "sess")
	require.Equal(t, "Failed to add item to cart: Variant out of stock", st.CartError)
}

func TestStaleResultIsDiscarded(t *testing.T) {
	b := newFakeBackend()
	svc, mgr := newTestService(t, b)
	_, err := svc.SelectRegion(context.Background(), "sess", "reg_us")
	require.NoError(t, err)

	b.onAdd = func() {
		_, _ = mgr.Update(context.Background(), "sess", func(st *session.State) error {
			st.CartID = "cart_other"
			st.Cart = nil
			return nil
		})
	}

	_, err = svc.AddItem(context.Background(), "sess", "var_1", 1)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	st, _ := mgr.Get(context.Background(), "sess")
	require.Equal(t, "cart_other", st.CartID)
	require.Nil(t, st.Cart)
}

func TestMutationsOnOneCartAreSerialized(t *testing.T) {
	b := newFakeBackend()
	svc, _ := newTestService(t, b)
	_, err := svc.SelectRegion(context.Background(), "sess", "reg_us")
	require.NoError(t, err)
	_, err = svc.AddItem(context.Background(), "sess", "var_1", 1)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 1; i <= 5; i++ {
		wg.Add(1)
		go func(qty int) {
			defer wg.Done()
			_, _ = svc.UpdateItem(context.Background(), "sess", "li_var_1", qty)
		}(i)
	}
	wg.Wait()

	require.Equal(t, int32(1), atomic.LoadInt32(&b.maxActive))

	final, err := b.RetrieveCart(context.Background(), "cart_1")
	require.NoError(t, err)
	require.Len(t, final.Items, 1)

	snap, err := svc.Snapshot(context.Background(), "sess")
	require.NoError(t, err)
	require.Len(t, snap.Cart.Items, 1)
	require.Equal(t, final.Items[0].Quantity, snap.Cart.Items[0].Quantity)
	require.Equal(t, final.Items[0].Quantity, snap.ItemCount)
	require.Equal(t, final.Total, snap.Cart.Total)
	require.Equal(t, int64(1500*final.Items[0].Quantity), snap.Cart.Total)
}

func TestUpdateItemWithoutCartIsNotFound(t *testing.T) {
	svc, _ := newTestService(t, newFakeBackend())
	_, err := svc.UpdateItem(context.Background(), "sess", "li_1", 1)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestRemoveItemAndShippingMethodRefetch(t *testing.T) {
	b := newFakeBackend()
	svc, _ := newTestService(t, b)
	_, _ = svc.SelectRegion(context.Background(), "sess", "reg_us")
	_, err := svc.AddItem(context.Background(), "sess", "var_1", 1)
	require.NoError(t, err)

	snap, err := svc.RemoveItem(context.Background(), "sess", "li_var_1")
	require.NoError(t, err)
	require.Zero(t, snap.ItemCount)

	snap, err = svc.AddShippingMethod(context.Background(), "sess", "so_1")
	require.NoError(t, err)
	require.Len(t, snap.Cart.ShippingMethods, 1)
}

func TestForgetOnlyClearsMatchingCart(t *testing.T) {
	b := newFakeBackend()
	svc, mgr := newTestService(t, b)
	_, _ = svc.SelectRegion(context.Background(), "sess", "reg_us")

	require.NoError(t, svc.Forget(context.Background(), "sess", "cart_other"))
	st, _ := mgr.Get(context.Background(), "sess")
	require.Equal(t, "cart_1", st.CartID)

	require.NoError(t, svc.Forget(context.Background(), "sess", "cart_1"))
	st, _ = mgr.Get(context.Background(), "sess")
	require.Empty(t, st.CartID)
	require.Equal(t, "reg_us", st.RegionID)
}
