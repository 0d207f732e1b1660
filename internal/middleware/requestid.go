package middleware

import (
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader is the response header carrying the per-request id.
const RequestIDHeader = "X-Request-ID"

// RequestID assigns each request a uuid, echoed in the response headers so
// clients can reference it in support requests. An inbound id from a trusted
// proxy is preserved.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}
