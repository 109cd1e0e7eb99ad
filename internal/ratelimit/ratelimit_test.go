package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shieldline/siteapi/config"
	"github.com/shieldline/siteapi/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestStore() (*MemoryStore, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	store.now = clock.Now
	return store, clock
}

func TestMemoryStoreFixedWindow(t *testing.T) {
	store, clock := newTestStore()
	ctx := context.Background()

	count, resetIn, err := store.Hit(ctx, "login:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, time.Minute, resetIn)

	clock.now = clock.now.Add(20 * time.Second)
	count, resetIn, _ = store.Hit(ctx, "login:1.2.3.4", time.Minute)
	assert.Equal(t, 2, count)
	assert.Equal(t, 40*time.Second, resetIn)

	// a different key has its own window
	count, _, _ = store.Hit(ctx, "login:5.6.7.8", time.Minute)
	assert.Equal(t, 1, count)

	// window ends 60s after the first hit, not the last one
	clock.now = clock.now.Add(40 * time.Second)
	count, resetIn, _ = store.Hit(ctx, "login:1.2.3.4", time.Minute)
	assert.Equal(t, 1, count)
	assert.Equal(t, time.Minute, resetIn)
}

func TestMemoryStoreSweepsExpiredWindows(t *testing.T) {
	store, clock := newTestStore()
	ctx := context.Background()

	_, _, _ = store.Hit(ctx, "a", 10*time.Second)
	_, _, _ = store.Hit(ctx, "b", 10*time.Second)
	assert.Equal(t, 2, store.Len())

	clock.now = clock.now.Add(2 * time.Minute)
	_, _, _ = store.Hit(ctx, "c", 10*time.Second)
	assert.Equal(t, 1, store.Len())
}

func TestLimiterAllow(t *testing.T) {
	store, _ := newTestStore()
	limiter := NewLimiter(store, logging.Discard())
	policy := Policy{Prefix: "login", Limit: 5, Window: 15 * time.Minute}
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		d, err := limiter.Allow(ctx, policy, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "hit %d", i)
		assert.Equal(t, 5-i, d.Remaining)
	}

	d, err := limiter.Allow(ctx, policy, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 6, d.Count)
	assert.Equal(t, 15*time.Minute, d.RetryAfter)

	// other IPs and other policies are unaffected
	d, _ = limiter.Allow(ctx, policy, "10.0.0.2")
	assert.True(t, d.Allowed)
	d, _ = limiter.Allow(ctx, Policy{Prefix: "contact", Limit: 5, Window: time.Hour}, "10.0.0.1")
	assert.True(t, d.Allowed)
}

func TestMiddlewareRejectsWith429(t *testing.T) {
	store, _ := newTestStore()
	limiter := NewLimiter(store, logging.Discard())
	policy := Policy{Prefix: "register", Limit: 2, Window: time.Hour}

	handler := limiter.Middleware(policy)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", nil)
		req.RemoteAddr = "192.0.2.10:4000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusCreated, do().Code)
	assert.Equal(t, http.StatusCreated, do().Code)

	rec := do()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "3600", rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "too many requests")
}

type failingStore struct{}

func (failingStore) Hit(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	return 0, 0, errors.New("redis unavailable")
}

func TestMiddlewareFailsOpen(t *testing.T) {
	limiter := NewLimiter(failingStore{}, logging.Discard())
	handler := limiter.Middleware(Policy{Prefix: "contact", Limit: 1, Window: time.Hour})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/contact", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 1, RetryAfterSeconds(0))
	assert.Equal(t, 1, RetryAfterSeconds(200*time.Millisecond))
	assert.Equal(t, 2, RetryAfterSeconds(1500*time.Millisecond))
	assert.Equal(t, 900, RetryAfterSeconds(15*time.Minute))
}

func TestPoliciesFromConfig(t *testing.T) {
	p := PoliciesFromConfig(config.RateLimitConfig{
		Login:  config.Window{Limit: 5, Window: 15 * time.Minute},
		Upload: config.Window{Limit: 20, Window: time.Hour},
	})
	assert.Equal(t, Policy{Prefix: "login", Limit: 5, Window: 15 * time.Minute}, p.Login)
	assert.Equal(t, "upload", p.Upload.Prefix)
	assert.Equal(t, "login:1.2.3.4", Key(p.Login.Prefix, "1.2.3.4"))
}

func TestNewRedisStoreRequiresURL(t *testing.T) {
	_, err := NewRedisStore(context.Background(), "", "siteapi:")
	assert.Error(t, err)

	_, err = NewRedisStore(context.Background(), "not a url", "siteapi:")
	assert.Error(t, err)
}
