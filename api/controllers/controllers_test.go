package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-checkout/api/middleware"
	"github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/internal/session"
	"github.com/angelmondragon/storefront-checkout/pkg/commerce"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

func withSession(req *http.Request, sid string) *http.Request {
	return req.WithContext(middleware.WithSessionID(req.Context(), sid))
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

type stubCarts struct {
	sessionID string
	variantID string
	lineID    string
	quantity  int
	err       error
}

func (s *stubCarts) snap() (*cart.Snapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &cart.Snapshot{CartID: "cart_1", ItemCount: s.quantity}, nil
}

func (s *stubCarts) Load(_ context.Context, sid string) (*cart.Snapshot, error) {
	s.sessionID = sid
	return s.snap()
}

func (s *stubCarts) AddItem(_ context.Context, sid, variantID string, quantity int) (*cart.Snapshot, error) {
	s.sessionID, s.variantID, s.quantity = sid, variantID, quantity
	return s.snap()
}

func (s *stubCarts) UpdateItem(_ context.Context, sid, lineID string, quantity int) (*cart.Snapshot, error) {
	s.sessionID, s.lineID, s.quantity = sid, lineID, quantity
	return s.snap()
}

func (s *stubCarts) RemoveItem(_ context.Context, sid, lineID string) (*cart.Snapshot, error) {
	s.sessionID, s.lineID = sid, lineID
	return s.snap()
}

func (s *stubCarts) Refresh(_ context.Context, sid string) (*cart.Snapshot, error) {
	s.sessionID = sid
	return s.snap()
}

func (s *stubCarts) SelectRegion(_ context.Context, sid, regionID string) (*cart.Snapshot, error) {
	s.sessionID = sid
	return &cart.Snapshot{CartID: "cart_1", RegionID: regionID}, nil
}

func TestCartAddItem(t *testing.T) {
	carts := &stubCarts{}
	req := withSession(httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(`{"variant_id":" var_1 ","quantity":2}`)), "sess")
	rec := httptest.NewRecorder()
	CartAddItem(carts, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "sess", carts.sessionID)
	require.Equal(t, "var_1", carts.variantID)
	require.Equal(t, 2, carts.quantity)
}

func TestCartAddItemRejectsZeroQuantity(t *testing.T) {
	carts := &stubCarts{}
	req := withSession(httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(`{"variant_id":"var_1","quantity":0}`)), "sess")
	rec := httptest.NewRecorder()
	CartAddItem(carts, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, carts.variantID)
}

func TestCartUpdateItemUsesPathParam(t *testing.T) {
	carts := &stubCarts{}
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/cart/items/li_9", strings.NewReader(`{"quantity":3}`))
	req = withURLParam(withSession(req, "sess"), "itemId", "li_9")
	rec := httptest.NewRecorder()
	CartUpdateItem(carts, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "li_9", carts.lineID)
	require.Equal(t, 3, carts.quantity)
}

func TestCartFetchMapsNotFound(t *testing.T) {
	carts := &stubCarts{err: pkgerrors.New(pkgerrors.CodeNotFound, "Failed to load cart: Not found.")}
	rec := httptest.NewRecorder()
	CartFetch(carts, nil).ServeHTTP(rec, withSession(httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil), "sess"))

	require.Equal(t, http.StatusNotFound, rec.Code)
	env := decodeEnvelope(t, rec)
	require.Equal(t, "Failed to load cart: Not found.", env.Error.Message)
}

type stubRegions struct {
	regions []commerce.Region
}

func (s stubRegions) List(context.Context) ([]commerce.Region, error) {
	return s.regions, nil
}

func (s stubRegions) Get(_ context.Context, id string) (*commerce.Region, error) {
	for _, r := range s.regions {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "region not found")
}

func TestSessionSelectRegion(t *testing.T) {
	regions := stubRegions{regions: []commerce.Region{{ID: "reg_us", CurrencyCode: "usd"}}}
	carts := &stubCarts{}

	rec := httptest.NewRecorder()
	req := withSession(httptest.NewRequest(http.MethodPost, "/api/v1/session/region", strings.NewReader(`{"region_id":"reg_us"}`)), "sess")
	SessionSelectRegion(regions, carts, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "sess", carts.sessionID)

	rec = httptest.NewRecorder()
	req = withSession(httptest.NewRequest(http.MethodPost, "/api/v1/session/region", strings.NewReader(`{"region_id":"reg_xx"}`)), "sess")
	SessionSelectRegion(regions, &stubCarts{}, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

type memSessions struct {
	state session.State
}

func (m *memSessions) Update(_ context.Context, id string, fn func(*session.State) error) (*session.State, error) {
	next := m.state
	next.ID = id
	if err := fn(&next); err != nil {
		return &next, err
	}
	m.state = next
	return &m.state, nil
}

func TestSessionSignInAndOut(t *testing.T) {
	sessions := &memSessions{}

	rec := httptest.NewRecorder()
	req := withSession(httptest.NewRequest(http.MethodPost, "/api/v1/session/auth", strings.NewReader(`{"token":"tok"}`)), "sess")
	SessionSignIn(sessions, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, sessions.state.IsAuthenticated())

	rec = httptest.NewRecorder()
	SessionSignOut(sessions, nil).ServeHTTP(rec, withSession(httptest.NewRequest(http.MethodDelete, "/api/v1/session/auth", nil), "sess"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, sessions.state.IsAuthenticated())
}

func TestSessionSignInRejectsPlaceholder(t *testing.T) {
	sessions := &memSessions{}
	rec := httptest.NewRecorder()
	req := withSession(httptest.NewRequest(http.MethodPost, "/api/v1/session/auth", strings.NewReader(`{"token":"undefined"}`)), "sess")
	SessionSignIn(sessions, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.False(t, sessions.state.IsAuthenticated())
}

type failingPinger struct{ err error }

func (f failingPinger) Ping(context.Context) error { return f.err }

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}

	rec := httptest.NewRecorder()
	HealthReady(cfg, nil, map[string]Pinger{"redis": failingPinger{}}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "dev", rec.Header().Get(envHeader))

	rec = httptest.NewRecorder()
	HealthReady(cfg, nil, map[string]Pinger{"redis": failingPinger{err: errors.New("down")}}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
