// Package router assembles the HTTP surface.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	bridgectrl "github.com/teedineasyteam-boop/teedin-identity/internal/http/controllers/bridge"
	healthctrl "github.com/teedineasyteam-boop/teedin-identity/internal/http/controllers/health"
	socialctrl "github.com/teedineasyteam-boop/teedin-identity/internal/http/controllers/social"
	mw "github.com/teedineasyteam-boop/teedin-identity/internal/http/middlewares"
	"github.com/teedineasyteam-boop/teedin-identity/internal/rate"
)

// Deps are the wired controllers and the optional rate limiter.
type Deps struct {
	Start     *socialctrl.StartController
	Callback  *socialctrl.CallbackController
	Providers *socialctrl.ProvidersController
	Bridge    *bridgectrl.Controller
	Health    *healthctrl.Controller
	Limiter   rate.Limiter
}

// New builds the router. The auth surface gets the full chain (recover,
// request id, no-store, rate limit, access log); probes and metrics stay
// bare so they never log or get limited.
func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", d.Health.Healthz)
	r.Get("/readyz", d.Health.Readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1/auth", func(r chi.Router) {
		r.Use(mw.WithRecover)
		r.Use(mw.WithRequestID)
		r.Use(mw.WithLogging)
		r.Use(mw.WithNoStore)
		r.Use(mw.WithRateLimit(d.Limiter))

		r.Get("/providers", d.Providers.List)
		r.Post("/bridge", d.Bridge.Issue)
		r.Get("/bridge/{token}", d.Bridge.Redeem)
		r.Get("/{provider}/start", d.Start.Start)
		r.Get("/{provider}/callback", d.Callback.Callback)
	})

	return r
}
