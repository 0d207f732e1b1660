package middleware

import (
	"net/http"
)

const (
	// DefaultMaxRequestSize is the maximum request body size (16KB).
	// Session requests carry at most a user id and a bearer token.
	DefaultMaxRequestSize int64 = 16 << 10
)

// MaxRequestSize limits the size of request bodies to prevent DoS attacks
func MaxRequestSize(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxRequestSize
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				http.Error(w, "Request Entity Too Large", http.StatusRequestEntityTooLarge)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			defer r.Body.Close()

			next.ServeHTTP(w, r)
		})
	}
}
