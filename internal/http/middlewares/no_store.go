package middlewares

import "net/http"

// WithNoStore marks responses uncacheable. Applied to the whole auth
// surface: every response there carries either tokens or error detail.
func WithNoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		next.ServeHTTP(w, r)
	})
}
