package middleware

import (
	"net/http"
	"strings"
)

// ContentType validates Content-Type headers for requests with bodies.
// Clear and gate requests may carry no body at all; those pass through.
func ContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if (r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch) && r.ContentLength > 0 {
			contentType := r.Header.Get("Content-Type")

			if contentType == "" {
				http.Error(w, "Content-Type header is required", http.StatusBadRequest)
				return
			}

			if !strings.HasPrefix(strings.ToLower(contentType), "application/json") {
				http.Error(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}
