// Package ratelimit implements fixed-window request limits keyed by
// endpoint class and client IP.
package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/shieldline/siteapi/config"
	"github.com/shieldline/siteapi/internal/middleware"
)

// Store counts hits per key. Hit records one hit and returns the count in
// the key's current window and the time until that window ends. A window
// starts at the first hit after the previous one expired.
type Store interface {
	Hit(ctx context.Context, key string, window time.Duration) (count int, resetIn time.Duration, err error)
}

// Policy limits one endpoint class.
type Policy struct {
	Prefix string
	Limit  int
	Window time.Duration
}

// NewPolicy builds a Policy from a configured window.
func NewPolicy(prefix string, w config.Window) Policy {
	return Policy{Prefix: prefix, Limit: w.Limit, Window: w.Window}
}

// Policies holds the per-endpoint limits.
type Policies struct {
	Login        Policy
	Register     Policy
	Contact      Policy
	Consultation Policy
	Upload       Policy
}

func PoliciesFromConfig(cfg config.RateLimitConfig) Policies {
	return Policies{
		Login:        NewPolicy("login", cfg.Login),
		Register:     NewPolicy("register", cfg.Register),
		Contact:      NewPolicy("contact", cfg.Contact),
		Consultation: NewPolicy("consultation", cfg.Consultation),
		Upload:       NewPolicy("upload", cfg.Upload),
	}
}

// Decision is the outcome of a single check.
type Decision struct {
	Allowed    bool
	Count      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter applies policies against a Store.
type Limiter struct {
	store  Store
	logger *slog.Logger
}

func NewLimiter(store Store, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{store: store, logger: logger}
}

// Key returns the counter key for a policy and client IP.
func Key(prefix, ip string) string {
	return prefix + ":" + ip
}

// Allow records a hit for ip under policy.
func (l *Limiter) Allow(ctx context.Context, policy Policy, ip string) (Decision, error) {
	count, resetIn, err := l.store.Hit(ctx, Key(policy.Prefix, ip), policy.Window)
	if err != nil {
		return Decision{Allowed: true}, err
	}

	d := Decision{
		Allowed:   count <= policy.Limit,
		Count:     count,
		Remaining: max(policy.Limit-count, 0),
	}
	if !d.Allowed {
		d.RetryAfter = resetIn
	}
	return d, nil
}

// Middleware rejects requests over the policy limit with 429 and a
// Retry-After header. Store failures let the request through.
func (l *Limiter) Middleware(policy Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := middleware.ClientIP(r)
			d, err := l.Allow(r.Context(), policy, ip)
			if err != nil {
				l.logger.Error("rate limit store failed", "policy", policy.Prefix, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(policy.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

			if !d.Allowed {
				seconds := RetryAfterSeconds(d.RetryAfter)
				l.logger.Warn("rate limit exceeded", "policy", policy.Prefix, "ip", ip, "path", r.URL.Path, "retry_after", seconds)
				writeTooManyRequests(w, seconds)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RetryAfterSeconds rounds d up to whole seconds, at least one.
func RetryAfterSeconds(d time.Duration) int {
	seconds := int(math.Ceil(d.Seconds()))
	if seconds < 1 {
		return 1
	}
	return seconds
}

func writeTooManyRequests(w http.ResponseWriter, seconds int) {
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   fmt.Sprintf("too many requests, try again in %d seconds", seconds),
		"details": map[string]any{"retry_after": seconds},
	})
}
