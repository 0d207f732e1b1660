package request

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/viziersvault/vault-session/internal/models"
)

type contextKey string

const hintContextKey contextKey = "hint"

// ClientIP extracts the client IP from the request, respecting X-Forwarded-For and X-Real-IP.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// WithHint returns a context with the verified session hint attached.
func WithHint(ctx context.Context, h models.Hint) context.Context {
	return context.WithValue(ctx, hintContextKey, h)
}

// HintFromContext returns the verified hint, or ok=false for anonymous
// callers (no cookie, or a cookie that failed verification).
func HintFromContext(r *http.Request) (models.Hint, bool) {
	h, ok := r.Context().Value(hintContextKey).(models.Hint)
	return h, ok
}

// CallerKey returns the identity to rate-limit against: the authenticated
// subject when a verified hint is present, otherwise a network-address key.
// An action is always keyed the same way for the same caller.
func CallerKey(r *http.Request) string {
	if h, ok := HintFromContext(r); ok {
		return h.Subject
	}
	return "ip:" + ClientIP(r)
}

// Tier returns the caller's tier: the verified hint's tier, or free for
// anonymous callers.
func Tier(r *http.Request) models.Tier {
	if h, ok := HintFromContext(r); ok {
		return h.Tier
	}
	return models.TierFree
}
