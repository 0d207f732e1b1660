package middleware

import (
	"net/http"

	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/viziersvault/vault-session/internal/request"
)

const defaultServiceRate = "30-M"

// ServiceRateLimit returns a coarse per-IP rate limit for the session
// endpoints themselves, using ulule/limiter with the given store. This is a
// DoS guard on the service surface; the per-tier action quotas live in the
// ratelimit package.
func ServiceRateLimit(store limiter.Store, rate string) (func(http.Handler) http.Handler, error) {
	if rate == "" {
		rate = defaultServiceRate
	}
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, err
	}
	instance := limiter.New(store, parsed)
	keyGetter := func(r *http.Request) string {
		return request.ClientIP(r)
	}
	mw := stdlibmw.NewMiddleware(instance, stdlibmw.WithKeyGetter(keyGetter))
	return mw.Handler, nil
}
