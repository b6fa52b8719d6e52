// Package health exposes liveness and readiness probes.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Pinger is anything with a health check (directory, cache).
type Pinger interface {
	Ping(ctx context.Context) error
}

// Controller answers healthz/readyz.
type Controller struct {
	deps map[string]Pinger
}

// NewController creates a health Controller over named dependencies.
func NewController(deps map[string]Pinger) *Controller {
	return &Controller{deps: deps}
}

// Healthz handles GET /healthz: process is up, nothing else checked.
func (c *Controller) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Readyz handles GET /readyz: every dependency must answer a ping.
func (c *Controller) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string, len(c.deps))
	ready := true
	for name, dep := range c.deps {
		if err := dep.Ping(ctx); err != nil {
			checks[name] = err.Error()
			ready = false
		} else {
			checks[name] = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"ready": ready, "checks": checks})
}
