package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shieldline/siteapi/config"
	"github.com/shieldline/siteapi/internal/logging"
	"github.com/shieldline/siteapi/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRouter(t *testing.T, cfg config.Config) http.Handler {
	t.Helper()
	return NewRouter(cfg, logging.Discard(), Dependencies{
		Limiter: ratelimit.NewLimiter(ratelimit.NewMemoryStore(), logging.Discard()),
	})
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Config{Env: config.EnvProduction}
	cfg.Storage.Backend = "local"
	cfg.Storage.Local.Dir = t.TempDir()
	cfg.RateLimits = config.RateLimitConfig{
		Login:        config.Window{Limit: 5, Window: time.Minute},
		Register:     config.Window{Limit: 3, Window: time.Minute},
		Contact:      config.Window{Limit: 1, Window: time.Minute},
		Consultation: config.Window{Limit: 1, Window: time.Minute},
		Upload:       config.Window{Limit: 20, Window: time.Minute},
	}
	return cfg
}

func TestHealthzCarriesSecurityHeaders(t *testing.T) {
	router := testRouter(t, testConfig(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	router := testRouter(t, testConfig(t))

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/auth/me"},
		{http.MethodPut, "/api/auth/password"},
		{http.MethodPost, "/api/upload"},
		{http.MethodGet, "/api/admin/stats"},
		{http.MethodGet, "/api/admin/blog"},
		{http.MethodGet, "/api/admin/users"},
		{http.MethodGet, "/api/admin/roles"},
		{http.MethodGet, "/api/admin/consultations"},
		{http.MethodGet, "/api/admin/contacts"},
		{http.MethodGet, "/api/admin/activity"},
		{http.MethodGet, "/api/admin/permissions"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, false, body["success"])
		})
	}
}

func TestUnknownRouteIsJSON(t *testing.T) {
	router := testRouter(t, testConfig(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"success":false`)
}

func TestContactRouteIsRateLimited(t *testing.T) {
	router := testRouter(t, testConfig(t))

	// The first request passes the limiter and fails on the empty body
	// before reaching the lead service.
	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader("")))
	assert.Equal(t, http.StatusBadRequest, first.Code)

	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader("")))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
}

func TestLocalUploadsAreServed(t *testing.T) {
	cfg := testConfig(t)
	dir := filepath.Join(cfg.Storage.Local.Dir, "uploads", "2025", "02")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644))

	router := testRouter(t, cfg)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/uploads/2025/02/a.txt", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", rec.Body.String())

	listing := httptest.NewRecorder()
	router.ServeHTTP(listing, httptest.NewRequest(http.MethodGet, "/uploads/2025/02/", nil))
	assert.Equal(t, http.StatusNotFound, listing.Code)
}

func TestForwardedHeadersFromUntrustedPeerShareOneCounter(t *testing.T) {
	router := testRouter(t, testConfig(t))

	var codes []int
	for i := 1; i <= 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(""))
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		req.Header.Set("X-Real-IP", fmt.Sprintf("10.0.1.%d", i))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{400, 429, 429, 429, 429}, codes)
}

func TestForwardedHeadersFromTrustedProxyKeyByClient(t *testing.T) {
	cfg := testConfig(t)
	cfg.TrustedProxies = []string{"192.0.2.0/24"}
	router := testRouter(t, cfg)

	send := func(client string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(""))
		req.Header.Set("X-Forwarded-For", client)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusBadRequest, send("198.51.100.1"))
	assert.Equal(t, http.StatusBadRequest, send("198.51.100.2"))
	assert.Equal(t, http.StatusTooManyRequests, send("198.51.100.1"))
	// A spoofed left-most hop does not change the key.
	assert.Equal(t, http.StatusTooManyRequests, send("203.0.113.9, 198.51.100.2"))
}
