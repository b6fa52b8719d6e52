package social

import (
	"encoding/json"
	"net/http"

	"github.com/teedineasyteam-boop/teedin-identity/internal/oauth"
)

// ProvidersController exposes which sign-in providers hold credentials, so
// clients render only the buttons that will work.
type ProvidersController struct {
	registry *oauth.Registry
}

// NewProvidersController creates a ProvidersController.
func NewProvidersController(registry *oauth.Registry) *ProvidersController {
	return &ProvidersController{registry: registry}
}

type providersResponse struct {
	Providers []string `json:"providers"`
}

// List handles GET /v1/auth/providers.
func (c *ProvidersController) List(w http.ResponseWriter, r *http.Request) {
	resp := providersResponse{Providers: []string{}}
	for _, p := range c.registry.Configured() {
		resp.Providers = append(resp.Providers, string(p))
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(resp)
}
