package middlewares

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/teedineasyteam-boop/teedin-identity/internal/httperr"
	"github.com/teedineasyteam-boop/teedin-identity/internal/observability/logger"
)

// WithRecover turns a handler panic into a 500 instead of tearing down the
// connection.
func WithRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.From(r.Context()).Error("panic recovered",
					logger.Op("recover"),
					zap.Any("panic", rec),
				)
				httperr.WriteError(w, httperr.ErrInternal)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
