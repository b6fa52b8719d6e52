package middlewares

import (
	"net/http"
	"strconv"

	"github.com/teedineasyteam-boop/teedin-identity/internal/httperr"
	"github.com/teedineasyteam-boop/teedin-identity/internal/observability/logger"
	"github.com/teedineasyteam-boop/teedin-identity/internal/rate"
)

// WithRateLimit applies a per-IP limit. A limiter error fails open: the
// auth flow must not depend on the limiter backend being up.
func WithRateLimit(limiter rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := limiter.Allow(r.Context(), "ip:"+clientIP(r))
			if err != nil {
				logger.From(r.Context()).Warn("rate limiter unavailable", logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}
			if !res.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())))
				httperr.WriteError(w, httperr.ErrTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
