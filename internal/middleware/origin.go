package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	logpkg "github.com/viziersvault/vault-session/internal/logger"
	"go.uber.org/zap"
)

// OriginCheck enforces the application-origin allow-list on state-changing
// session endpoints. Without it, any third-party page could silently trigger
// a sync or clear for a visiting browser (cross-site request forgery). The
// check runs before any account-store work.
//
// origins is a func so a hot-reloaded allow-list (see OriginReloader) is
// picked up without re-wiring the middleware.
func OriginCheck(origins func() []string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Safe methods cannot mutate session state; only cross-site
			// writes are the forgery vector.
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			origin := strings.ToLower(r.Header.Get("Origin"))
			referer := strings.ToLower(r.Header.Get("Referer"))

			if !originAllowed(origin, referer, origins()) {
				logger.Warn("origin_check_failed",
					zap.String("path", logpkg.SanitizePath(r.URL.Path)),
					zap.String("origin", logpkg.SanitizeOrigin(origin)),
					zap.String("referer", logpkg.SanitizeOrigin(referer)),
				)
				respondForbidden(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// originAllowed accepts a request when its Origin matches an allow-listed
// origin exactly, or, with no Origin header, when the Referer starts with
// one. Requests carrying neither header are rejected.
func originAllowed(origin, referer string, allowed []string) bool {
	for _, a := range allowed {
		if origin != "" {
			if origin == a {
				return true
			}
			continue
		}
		if referer != "" && strings.HasPrefix(referer, a) {
			return true
		}
	}
	return false
}

// respondForbidden sends a 403 with no internal detail.
func respondForbidden(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok":    false,
		"error": "Forbidden",
	})
}
