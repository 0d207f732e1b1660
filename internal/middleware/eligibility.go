package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/viziersvault/vault-session/internal/hint"
	logpkg "github.com/viziersvault/vault-session/internal/logger"
	"github.com/viziersvault/vault-session/internal/request"
	"go.uber.org/zap"
)

// Eligibility reads the session-hint cookie, verifies it, and attaches the
// decoded hint to the request context. This answers "what is this caller
// entitled to" without an account-store round trip.
//
// Any verification failure (missing cookie, malformed token, bad signature,
// expired hint) degrades the caller to anonymous/free: a forged or stale
// cookie strips elevated entitlement, it never fails the request. codec may
// be nil when no signing secret is configured; every caller is then
// anonymous.
func Eligibility(codec *hint.Codec, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if codec == nil {
				next.ServeHTTP(w, r)
				return
			}

			cookie, err := r.Cookie(hint.CookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			h, err := codec.Verify(cookie.Value, time.Now())
			if err != nil {
				// Expired hints are routine; anything else is worth a line.
				if !errors.Is(err, hint.ErrExpired) {
					logger.Debug("hint_verification_failed",
						zap.String("path", logpkg.SanitizePath(r.URL.Path)),
						zap.String("reason", logpkg.SanitizeError(err)),
					)
				}
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(request.WithHint(r.Context(), h)))
		})
	}
}
