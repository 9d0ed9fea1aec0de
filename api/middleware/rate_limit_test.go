package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	pkgredis "github.com/angelmondragon/storefront-checkout/pkg/redis"
)

type fakeRateStore struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newFakeRateStore() *fakeRateStore {
	return &fakeRateStore{counts: make(map[string]int64)}
}

func (f *fakeRateStore) FixedWindowAllow(_ context.Context, scope string, limit int64, window time.Duration) (pkgredis.Window, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[scope]++
	count := f.counts[scope]
	return pkgredis.Window{Allowed: count <= limit, Count: count, ResetIn: window}, nil
}

func TestRateLimitBlocksAfterLimit(t *testing.T) {
	store := newFakeRateStore()
	policy := NewRateLimitPolicy("payment", time.Minute, 2)
	handler := RateLimit(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/payment", nil)
		req = req.WithContext(WithSessionID(req.Context(), "sess-1"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		switch {
		case i < 2 && rec.Code != http.StatusOK:
			t.Fatalf("expected success before limit, got %d", rec.Code)
		case i >= 2:
			if rec.Code != http.StatusTooManyRequests {
				t.Fatalf("expected 429 after limit, got %d", rec.Code)
			}
			if rec.Header().Get("Retry-After") != "60" {
				t.Fatalf("expected Retry-After 60, got %q", rec.Header().Get("Retry-After"))
			}
		}
	}
}

func TestRateLimitCountsSessionsSeparately(t *testing.T) {
	store := newFakeRateStore()
	policy := NewRateLimitPolicy("payment", time.Minute, 1)
	handler := RateLimit(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, sid := range []string{"sess-1", "sess-2"} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/payment", nil)
		req = req.WithContext(WithSessionID(req.Context(), sid))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("session %s: expected 200, got %d", sid, rec.Code)
		}
	}
	if _, ok := store.counts["payment:session:sess-1"]; !ok {
		t.Fatalf("expected session scoped key, got %v", store.counts)
	}
}

func TestRateLimitFallsBackToClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("X-Forwarded-For", "9.9.9.9, 10.0.0.1")
	if got := clientIP(req); got != "9.9.9.9" {
		t.Fatalf("expected forwarded ip, got %q", got)
	}
	policy := NewRateLimitPolicy("", time.Minute, 1)
	if got := policy.scope("", "9.9.9.9"); got != "default:ip:9.9.9.9" {
		t.Fatalf("unexpected scope %q", got)
	}
}

func TestRetryAfterRoundsUp(t *testing.T) {
	cases := []struct {
		resetIn time.Duration
		want    int
	}{
		{1500 * time.Millisecond, 2},
		{40 * time.Second, 40},
		{0, 60},
		{time.Millisecond, 1},
	}
	for _, tc := range cases {
		if got := retryAfterSeconds(tc.resetIn, time.Minute); got != tc.want {
			t.Fatalf("resetIn=%v: expected %d, got %d", tc.resetIn, tc.want, got)
		}
	}
}

func TestRateLimitDisabledPolicyPassesThrough(t *testing.T) {
	called := false
	handler := RateLimit(NewRateLimitPolicy("payment", 0, 0), newFakeRateStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))
	if !called {
		t.Fatal("expected disabled policy to pass through")
	}
}
