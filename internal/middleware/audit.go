package middleware

import (
	"net/http"

	logpkg "github.com/viziersvault/vault-session/internal/logger"
	"github.com/viziersvault/vault-session/internal/request"
	"go.uber.org/zap"
)

// Audit logs security-related events for monitoring and compliance
func Audit(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := &auditResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			statusCode := wrapped.statusCode
			if statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden {
				// Failed origin checks and rejected identity tokens
				logger.Warn("security_event",
					zap.Int("status_code", statusCode),
					zap.String("method", r.Method),
					zap.String("path", logpkg.SanitizePath(r.URL.Path)),
					zap.String("ip", logpkg.SanitizeString(request.ClientIP(r), logpkg.MaxGeneralStringLength)),
					zap.String("origin", logpkg.SanitizeOrigin(r.Header.Get("Origin"))),
				)
			}

			if statusCode == http.StatusTooManyRequests {
				logger.Warn("rate_limit_violation",
					zap.String("method", r.Method),
					zap.String("path", logpkg.SanitizePath(r.URL.Path)),
					zap.String("ip", logpkg.SanitizeString(request.ClientIP(r), logpkg.MaxGeneralStringLength)),
				)
			}
		})
	}
}

// auditResponseWriter wraps http.ResponseWriter to capture status code
type auditResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (aw *auditResponseWriter) WriteHeader(code int) {
	aw.statusCode = code
	aw.ResponseWriter.WriteHeader(code)
}
