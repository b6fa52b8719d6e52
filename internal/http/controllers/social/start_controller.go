package social

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/teedineasyteam-boop/teedin-identity/internal/http/state"
	svc "github.com/teedineasyteam-boop/teedin-identity/internal/http/services/social"
	"github.com/teedineasyteam-boop/teedin-identity/internal/httperr"
	"github.com/teedineasyteam-boop/teedin-identity/internal/identity"
	"github.com/teedineasyteam-boop/teedin-identity/internal/observability/logger"
)

// StartController initiates the OAuth round trip: mints the state token,
// mirrors it into the cookie, and redirects to the provider.
type StartController struct {
	service       svc.StartService
	signer        *state.Signer
	secureCookies bool
	// callbackHost vets the optional redirect_uri override: only same-host
	// destinations ride along in the state.
	callbackHost string
}

// NewStartController creates a StartController.
func NewStartController(service svc.StartService, signer *state.Signer, appCallbackURL string, secureCookies bool) *StartController {
	host := ""
	if u, err := url.Parse(appCallbackURL); err == nil {
		host = u.Host
	}
	return &StartController{
		service:       service,
		signer:        signer,
		secureCookies: secureCookies,
		callbackHost:  host,
	}
}

// Start handles GET /v1/auth/{provider}/start.
func (c *StartController) Start(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("StartController.Start"))

	provider := identity.Provider(strings.ToLower(chi.URLParam(r, "provider")))
	if !provider.Valid() {
		httperr.WriteError(w, httperr.ErrNotFound.WithDetail("unknown provider"))
		return
	}

	redirectURI := strings.TrimSpace(r.URL.Query().Get("redirect_uri"))
	if redirectURI != "" {
		u, err := url.Parse(redirectURI)
		if err != nil || u.Host != c.callbackHost {
			httperr.WriteError(w, httperr.ErrBadRequest.WithDetail("redirect_uri not allowed"))
			return
		}
	}

	res, err := c.service.Start(ctx, svc.StartRequest{Provider: provider, RedirectURI: redirectURI})
	if err != nil {
		log.Error("start failed", logger.Provider(string(provider)), logger.Err(err))
		httperr.WriteError(w, httperr.FromError(err))
		return
	}

	state.WriteCookie(w, res.StateToken, c.signer.TTL(), c.secureCookies)
	http.Redirect(w, r, res.AuthURL, http.StatusFound)
}
