// Package bridge exposes the session hand-off endpoints: minting a one-time
// magic link for a reconciled user id, and redeeming it to establish the
// client-held session under the app's own cookie jar.
package bridge

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	br "github.com/teedineasyteam-boop/teedin-identity/internal/bridge"
	"github.com/teedineasyteam-boop/teedin-identity/internal/directory"
	"github.com/teedineasyteam-boop/teedin-identity/internal/httperr"
	"github.com/teedineasyteam-boop/teedin-identity/internal/identity"
	"github.com/teedineasyteam-boop/teedin-identity/internal/metrics"
	"github.com/teedineasyteam-boop/teedin-identity/internal/observability/logger"
	"github.com/teedineasyteam-boop/teedin-identity/internal/session"
)

// Session cookie names set at redemption time.
const (
	AccessCookie  = "teedin_access"
	RefreshCookie = "teedin_refresh"
)

var errTokenGone = httperr.New(http.StatusGone, "bridge_token_invalid", "This sign-in link has expired or was already used.")

// Controller handles bridge issue and redeem.
type Controller struct {
	bridge        *br.Bridge
	dir           directory.Directory
	sessions      *session.Manager
	publicBaseURL string
	homeURL       string
	secureCookies bool
}

// Deps wires a Controller.
type Deps struct {
	Bridge        *br.Bridge
	Dir           directory.Directory
	Sessions      *session.Manager
	PublicBaseURL string
	HomeURL       string
	SecureCookies bool
}

// NewController creates a bridge Controller.
func NewController(d Deps) *Controller {
	return &Controller{
		bridge:        d.Bridge,
		dir:           d.Dir,
		sessions:      d.Sessions,
		publicBaseURL: strings.TrimRight(d.PublicBaseURL, "/"),
		homeURL:       d.HomeURL,
		secureCookies: d.SecureCookies,
	}
}

type issueRequest struct {
	UserID string `json:"user_id"`
}

type issueResponse struct {
	MagicLink string `json:"magic_link"`
}

// Issue handles POST /v1/auth/bridge. The user id must belong to an
// existing, non-elevated account; minting a link for an admin would let
// the OAuth surface reach an admin session.
func (c *Controller) Issue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("Bridge.Issue"))

	var req issueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.UserID) == "" {
		httperr.WriteError(w, httperr.ErrBadRequest.WithDetail("user_id required"))
		return
	}

	rec, err := c.dir.GetByID(ctx, req.UserID)
	if errors.Is(err, directory.ErrNotFound) {
		httperr.WriteError(w, httperr.ErrNotFound.WithDetail("unknown user"))
		return
	}
	if err != nil {
		log.Error("directory lookup failed", logger.Err(err))
		httperr.WriteError(w, httperr.ErrServiceUnavailable)
		return
	}
	if rec.Role.Elevated() {
		log.Warn("bridge refused for elevated role", logger.UserID(rec.ID), logger.Role(string(rec.Role)))
		httperr.WriteError(w, httperr.ErrForbidden)
		return
	}

	token, err := c.bridge.Issue(ctx, rec.ID)
	if err != nil {
		log.Error("bridge issuance failed", logger.Err(err))
		httperr.WriteError(w, httperr.ErrServiceUnavailable)
		return
	}
	metrics.BridgeIssued.Inc()

	link := c.publicBaseURL + "/v1/auth/bridge/" + url.PathEscape(token)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(issueResponse{MagicLink: link})
}

// Redeem handles GET /v1/auth/bridge/{token}: consume the token exactly
// once, establish the session with the explicit line provider tag, and
// send the browser home.
func (c *Controller) Redeem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("Bridge.Redeem"))

	token := chi.URLParam(r, "token")

	userID, err := c.bridge.Redeem(ctx, token)
	if err != nil {
		switch {
		case errors.Is(err, br.ErrConsumed):
			metrics.BridgeRedeemed.WithLabelValues("consumed").Inc()
			log.Warn("bridge token replayed")
			httperr.WriteError(w, errTokenGone)
		case errors.Is(err, br.ErrExpired):
			metrics.BridgeRedeemed.WithLabelValues("expired").Inc()
			httperr.WriteError(w, errTokenGone)
		case errors.Is(err, br.ErrNotFound):
			metrics.BridgeRedeemed.WithLabelValues("not_found").Inc()
			httperr.WriteError(w, httperr.ErrNotFound)
		default:
			log.Error("bridge redemption failed", logger.Err(err))
			httperr.WriteError(w, httperr.ErrServiceUnavailable)
		}
		return
	}

	rec, err := c.dir.GetByID(ctx, userID)
	if err != nil {
		log.Error("directory lookup failed after redemption", logger.Err(err), logger.UserID(userID))
		httperr.WriteError(w, httperr.ErrServiceUnavailable)
		return
	}
	if rec.Role.Elevated() {
		metrics.BridgeRedeemed.WithLabelValues("blocked").Inc()
		httperr.WriteError(w, httperr.ErrForbidden)
		return
	}

	s, err := c.sessions.Issue(ctx, rec.ID, identity.ProviderLine)
	if err != nil {
		log.Error("session issuance failed", logger.Err(err), logger.UserID(rec.ID))
		httperr.WriteError(w, httperr.ErrInternal)
		return
	}
	metrics.BridgeRedeemed.WithLabelValues("ok").Inc()

	c.setSessionCookies(w, s)
	log.Info("bridged session established", logger.UserID(rec.ID), logger.Provider(string(s.Provider)))
	http.Redirect(w, r, c.homeURL, http.StatusFound)
}

func (c *Controller) setSessionCookies(w http.ResponseWriter, s *session.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessCookie,
		Value:    s.AccessToken,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   c.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookie,
		Value:    s.RefreshToken,
		Path:     "/v1/auth",
		Expires:  time.Now().Add(c.sessions.RefreshTTL()),
		HttpOnly: true,
		Secure:   c.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
