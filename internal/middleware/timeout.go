package middleware

import (
	"context"
	"net/http"
	"time"
)

const (
	// DefaultRequestTimeout is the default request timeout. The only blocking
	// work in this service is the account-store lookup during sync.
	DefaultRequestTimeout = 10 * time.Second
)

// Timeout creates a middleware that enforces a timeout on request handlers.
// A cancelled request aborts before any cookie is written.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			r = r.WithContext(ctx)

			handler := http.TimeoutHandler(next, timeout, "Request Timeout")
			handler.ServeHTTP(w, r)
		})
	}
}
