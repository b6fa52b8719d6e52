package social

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/teedineasyteam-boop/teedin-identity/internal/http/state"
	svc "github.com/teedineasyteam-boop/teedin-identity/internal/http/services/social"
	"github.com/teedineasyteam-boop/teedin-identity/internal/httperr"
	"github.com/teedineasyteam-boop/teedin-identity/internal/identity"
	"github.com/teedineasyteam-boop/teedin-identity/internal/observability/logger"
)

// CallbackController handles the provider's inbound redirect. Every
// terminal outcome, success or failure, routes back to the one app
// callback surface; only the query parameters differ.
type CallbackController struct {
	service svc.CallbackService
	signer  *state.Signer
	// appCallbackURL is the default surface when the state carries no
	// vetted redirect of its own.
	appCallbackURL string
	secureCookies  bool
}

// NewCallbackController creates a CallbackController.
func NewCallbackController(service svc.CallbackService, signer *state.Signer, appCallbackURL string, secureCookies bool) *CallbackController {
	return &CallbackController{
		service:        service,
		signer:         signer,
		appCallbackURL: appCallbackURL,
		secureCookies:  secureCookies,
	}
}

// Callback handles GET /v1/auth/{provider}/callback.
func (c *CallbackController) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("CallbackController.Callback"))

	provider := identity.Provider(strings.ToLower(chi.URLParam(r, "provider")))
	if !provider.Valid() {
		httperr.WriteError(w, httperr.ErrNotFound.WithDetail("unknown provider"))
		return
	}

	q := r.URL.Query()
	stateParam := strings.TrimSpace(q.Get("state"))
	cookieState := state.ReadCookie(r)

	// single use either way
	state.ClearCookie(w, c.secureCookies)

	dest := c.redirectSurface(stateParam)

	if provErr := strings.TrimSpace(q.Get("error")); provErr != "" {
		log.Warn("provider reported error",
			logger.Provider(string(provider)),
			logger.State(provErr),
		)
		c.redirectError(w, r, dest, "callback_error", nil)
		return
	}

	result, err := c.service.Callback(ctx, svc.CallbackRequest{
		Provider:    provider,
		Code:        strings.TrimSpace(q.Get("code")),
		State:       stateParam,
		CookieState: cookieState,
	})
	if err != nil {
		var mismatch *svc.MismatchError
		if errors.As(err, &mismatch) {
			c.redirectError(w, r, dest, "provider_mismatch", url.Values{
				"required": {string(mismatch.Required)},
				"email":    {mismatch.Email},
			})
			return
		}
		log.Warn("callback failed", logger.Provider(string(provider)), logger.Err(err))
		c.redirectError(w, r, dest, mapCallbackError(err), nil)
		return
	}

	u, err := url.Parse(dest)
	if err != nil {
		httperr.WriteError(w, httperr.ErrInternal)
		return
	}
	qq := u.Query()
	qq.Set("provider", string(result.Provider))
	qq.Set("email", result.Email)
	qq.Set("name", result.Name)
	qq.Set("picture", result.Picture)
	qq.Set("userId", result.UserID)
	qq.Set("isNewUser", strconv.FormatBool(result.IsNewUser))
	u.RawQuery = qq.Encode()

	http.Redirect(w, r, u.String(), http.StatusFound)
}

// redirectSurface picks the redirect destination: the state's vetted
// redirect when the token parses, otherwise the configured surface.
func (c *CallbackController) redirectSurface(stateParam string) string {
	if stateParam != "" && c.signer != nil {
		if claims, err := c.signer.Parse(stateParam); err == nil && claims.RedirectURI != "" {
			return claims.RedirectURI
		}
	}
	return c.appCallbackURL
}

func (c *CallbackController) redirectError(w http.ResponseWriter, r *http.Request, dest, code string, extra url.Values) {
	u, err := url.Parse(dest)
	if err != nil {
		httperr.WriteError(w, httperr.ErrInternal)
		return
	}
	q := u.Query()
	q.Set("error", code)
	for k, vs := range extra {
		for _, v := range vs {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()
	http.Redirect(w, r, u.String(), http.StatusFound)
}

// mapCallbackError maps service failures to the redirect error codes the
// app callback surface understands.
func mapCallbackError(err error) string {
	switch {
	case errors.Is(err, svc.ErrMissingState), errors.Is(err, svc.ErrCsrfRejected):
		return "invalid_state"
	case errors.Is(err, svc.ErrMissingCode):
		return "no_code"
	case errors.Is(err, svc.ErrNotConfigured):
		return "config_error"
	case errors.Is(err, svc.ErrExchangeFailed):
		return "token_exchange_failed"
	case errors.Is(err, svc.ErrVerifyFailed):
		return "token_verify_failed"
	case errors.Is(err, svc.ErrDirectoryWrite):
		return "user_creation_failed"
	default:
		return "callback_error"
	}
}
