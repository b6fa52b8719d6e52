package middlewares

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/teedineasyteam-boop/teedin-identity/internal/observability/logger"
)

// statusWriter captures the status code for the access log line.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// WithLogging injects a request-scoped logger (request id + client ip) into
// the context and emits one access line per request.
func WithLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rid := RequestIDFrom(r.Context())
		ip := clientIP(r)

		reqLog := logger.From(r.Context()).With(
			logger.RequestID(rid),
			logger.ClientIP(ip),
		)
		ctx := logger.ToContext(r.Context(), reqLog)

		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r.WithContext(ctx))

		if sw.status == 0 {
			sw.status = http.StatusOK
		}
		reqLog.Info("request",
			logger.Method(r.Method),
			logger.Path(r.URL.Path),
			logger.Status(sw.status),
			logger.Duration(time.Since(start)),
		)
	})
}

// clientIP prefers X-Forwarded-For (first hop) over RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i > 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
