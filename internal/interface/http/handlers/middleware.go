package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/DeclineZ/brain-train-sub002/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER AUTHENTICATION
// ══════════════════════════════════════════════════════════════════════════════

// UserIDHeader carries the authenticated user id set by the gateway.
const UserIDHeader = "X-User-ID"

// ContextKey is a type for context keys.
type ContextKey string

const (
	// ContextKeyUserID is the context key for the authenticated user id.
	ContextKeyUserID ContextKey = "user_id"
)

// UserFromRequest validates the user id header.
func UserFromRequest(r *http.Request) (shared.UserID, error) {
	return shared.NewUserID(r.Header.Get(UserIDHeader))
}

// WithUserID stores the authenticated user id in ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ContextKeyUserID, userID)
}

// UserIDFromContext returns the authenticated user id, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ContextKeyUserID).(string)
	return id, ok && id != ""
}

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITING
// ══════════════════════════════════════════════════════════════════════════════

// RateLimiter is a fixed-window request counter keyed by caller.
type RateLimiter struct {
	counters *cache.Cache
	limit    int
	window   time.Duration
}

// NewRateLimiter allows limit requests per key in each window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		counters: cache.New(window, 2*window),
		limit:    limit,
		window:   window,
	}
}

// Allow counts one request for key and reports whether it is within limit.
func (l *RateLimiter) Allow(key string) bool {
	if err := l.counters.Add(key, 1, l.window); err == nil {
		return l.limit >= 1
	}
	n, err := l.counters.IncrementInt(key, 1)
	if err != nil {
		// Entry expired between Add and Increment.
		l.counters.Set(key, 1, l.window)
		return l.limit >= 1
	}
	return n <= l.limit
}

// RetryAfter is the Retry-After header value for rejected requests.
func (l *RateLimiter) RetryAfter() string {
	return strconv.Itoa(int(l.window.Seconds()))
}

// ══════════════════════════════════════════════════════════════════════════════
// SECURITY HEADERS MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// SecurityHeadersMiddleware adds security-related headers.
func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

// NoCacheMiddleware prevents caching of per-user responses.
func NoCacheMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
		next.ServeHTTP(w, r)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST SIZE LIMIT MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// RequestSizeLimitMiddleware limits the size of request bodies.
func RequestSizeLimitMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				http.Error(w, `{"success":false,"error":{"code":"PAYLOAD_TOO_LARGE","message":"request body too large"}}`,
					http.StatusRequestEntityTooLarge)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE CHAIN BUILDER
// ══════════════════════════════════════════════════════════════════════════════

// MiddlewareFunc is a function that wraps an http.Handler.
type MiddlewareFunc func(http.Handler) http.Handler

// Chain chains multiple middleware functions; the first one is outermost.
func Chain(middlewares ...MiddlewareFunc) MiddlewareFunc {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}
