// Package reconcile owns the end-to-end decision for an incoming third-party
// sign-in: brand-new account, returning same-provider account, or a
// collision with an account created through a different method. It is an
// explicit state machine with single cancellable timers, so timeout and
// cancellation behavior stays testable.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/teedineasyteam-boop/teedin-identity/internal/directory"
	"github.com/teedineasyteam-boop/teedin-identity/internal/identity"
	"github.com/teedineasyteam-boop/teedin-identity/internal/metrics"
	"github.com/teedineasyteam-boop/teedin-identity/internal/observability/logger"
	"github.com/teedineasyteam-boop/teedin-identity/internal/session"
)

// State of the reconciliation flow.
type State string

const (
	StateInit           State = "init"
	StateLineBridge     State = "line_bridge"
	StateManualRecovery State = "manual_recovery"
	StateListen         State = "listen"
	StateProcessSession State = "process_session"
	StateNeedsSignup    State = "needs_signup_form"
	StateBlocked        State = "blocked"
	StateError          State = "error"
	StateDone           State = "done"
)

// EventType of a session-change notification.
type EventType int

const (
	EventSignedIn EventType = iota
	EventSignedOut
)

// Event is a session-change notification consumed in the listen state.
type Event struct {
	Type    EventType
	Session *session.Session
}

// SessionClient abstracts the client-held session the flow consumes. The
// reconcile machine never owns the session; it only reads it, and kills it
// when the provider lock fails.
type SessionClient interface {
	// Current returns the live session, or (nil, nil) when none exists.
	Current(ctx context.Context) (*session.Session, error)

	// SetFromTokens installs tokens recovered from the callback URL.
	SetFromTokens(ctx context.Context, accessToken, refreshToken string) (*session.Session, error)

	// Refresh performs a direct user lookup and session refresh for a known
	// user id.
	Refresh(ctx context.Context, userID string) (*session.Session, error)

	// WhoAmI asks the auth backend who the current caller is.
	WhoAmI(ctx context.Context) (*session.Session, error)

	// Events delivers session-change notifications until ctx is done.
	Events(ctx context.Context) <-chan Event

	// Invalidate terminates a session server-side.
	Invalidate(ctx context.Context, s *session.Session) error
}

// BridgeClient mints one-time redeemable hand-off links.
type BridgeClient interface {
	MagicLink(ctx context.Context, userID string) (string, error)
}

// Params are the inputs the flow starts from: the callback URL's query and
// fragment, already parsed.
type Params struct {
	// ErrorCode is the error= marker, when present.
	ErrorCode string
	// RequiredProvider accompanies a provider_mismatch marker.
	RequiredProvider identity.Provider
	// ProviderMarker is the provider= marker ("line" on the bridged path).
	ProviderMarker string
	// UserID accompanies the LINE marker.
	UserID string

	// Claims carried on the success redirect (non-sensitive only).
	Email     string
	Name      string
	Picture   string
	SubjectID string
	IsNewUser bool

	// HasOAuthResponse is true when raw OAuth response parameters are
	// present without an established session.
	HasOAuthResponse bool
	// FragmentAccessToken / FragmentRefreshToken are tokens found in the
	// URL fragment, when the provider SDK put them there.
	FragmentAccessToken  string
	FragmentRefreshToken string
}

// Outcome is the terminal result of a run. RedirectURL is set when the flow
// ends by navigating (home on success, or into a magic link).
type Outcome struct {
	State            State
	Reason           string
	RequiredProvider identity.Provider
	UserID           string
	IsNewUser        bool
	RedirectURL      string
}

// Config tunes the machine's two timers.
type Config struct {
	// ListenTimeout bounds the listen state. Default 15s; on expiry the
	// flow degrades to the signup form instead of hanging.
	ListenTimeout time.Duration
	// RecoveryDelay is the single wait-and-recheck delay in manual
	// recovery. Default 2s.
	RecoveryDelay time.Duration
	// HomeURL is where a completed flow redirects. Default "/".
	HomeURL string
}

// Controller drives one reconciliation flow per callback landing.
type Controller struct {
	dir      directory.Directory
	sessions SessionClient
	bridge   BridgeClient
	cfg      Config
}

// NewController wires a Controller.
func NewController(dir directory.Directory, sessions SessionClient, bridge BridgeClient, cfg Config) *Controller {
	if cfg.ListenTimeout <= 0 {
		cfg.ListenTimeout = 15 * time.Second
	}
	if cfg.RecoveryDelay <= 0 {
		cfg.RecoveryDelay = 2 * time.Second
	}
	if cfg.HomeURL == "" {
		cfg.HomeURL = "/"
	}
	return &Controller{dir: dir, sessions: sessions, bridge: bridge, cfg: cfg}
}

// Run executes the flow from the initial inspection to a terminal outcome.
func (c *Controller) Run(ctx context.Context, p Params) Outcome {
	log := logger.From(ctx).With(logger.Component("reconcile"))

	// error markers first: terminal, no side effects
	if p.ErrorCode == "provider_mismatch" {
		return Outcome{
			State:            StateBlocked,
			Reason:           mismatchReason(p.RequiredProvider),
			RequiredProvider: p.RequiredProvider,
		}
	}
	if p.ErrorCode != "" {
		return Outcome{State: StateError, Reason: p.ErrorCode}
	}

	if p.ProviderMarker == string(identity.ProviderLine) && p.UserID != "" {
		return c.lineBridge(ctx, p)
	}

	cur, err := c.sessions.Current(ctx)
	if err != nil {
		log.Warn("session check failed", logger.Err(err))
		cur = nil
	}
	if cur != nil {
		return c.processSession(ctx, cur, p)
	}

	if p.HasOAuthResponse {
		return c.manualRecovery(ctx, p)
	}

	// callback route with nothing at all: wait briefly for the session to
	// materialize rather than failing outright
	return c.listen(ctx, p)
}

// lineBridge handles the provider=line landing: reuse a matching session if
// one is live, refresh directly, or mint a magic link and navigate into it.
func (c *Controller) lineBridge(ctx context.Context, p Params) Outcome {
	log := logger.From(ctx).With(logger.Component("reconcile"), logger.State(string(StateLineBridge)))

	cur, err := c.sessions.Current(ctx)
	if err == nil && cur != nil && cur.UserID == p.UserID {
		return c.processSession(ctx, cur, p)
	}

	if s, err := c.sessions.Refresh(ctx, p.UserID); err == nil && s != nil {
		return c.processSession(ctx, s, p)
	}

	link, err := c.bridge.MagicLink(ctx, p.UserID)
	if err != nil {
		log.Error("magic link issuance failed", logger.Err(err), logger.UserID(p.UserID))
		return Outcome{State: StateError, Reason: "bridge_failed"}
	}
	return Outcome{State: StateLineBridge, UserID: p.UserID, RedirectURL: link}
}

// manualRecovery tries, in order: installing tokens from the URL fragment, a
// single bounded wait-and-recheck, and a direct who-am-I. Exhausting all
// three falls through to listen.
func (c *Controller) manualRecovery(ctx context.Context, p Params) Outcome {
	log := logger.From(ctx).With(logger.Component("reconcile"), logger.State(string(StateManualRecovery)))

	if p.FragmentAccessToken != "" {
		if s, err := c.sessions.SetFromTokens(ctx, p.FragmentAccessToken, p.FragmentRefreshToken); err == nil && s != nil {
			return c.processSession(ctx, s, p)
		}
		log.Debug("fragment token install failed")
	}

	// one bounded recheck, single retry by design
	t := time.NewTimer(c.cfg.RecoveryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return Outcome{State: StateError, Reason: "cancelled"}
	case <-t.C:
	}
	if s, err := c.sessions.Current(ctx); err == nil && s != nil {
		return c.processSession(ctx, s, p)
	}

	if s, err := c.sessions.WhoAmI(ctx); err == nil && s != nil {
		return c.processSession(ctx, s, p)
	}

	return c.listen(ctx, p)
}

// listen subscribes to session-change notifications with one timeout. The
// timeout degrades to the signup form as the safe default.
func (c *Controller) listen(ctx context.Context, p Params) Outcome {
	events := c.sessions.Events(ctx)

	t := time.NewTimer(c.cfg.ListenTimeout)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return Outcome{State: StateError, Reason: "cancelled"}
		case <-t.C:
			return Outcome{State: StateNeedsSignup, Reason: "listen_timeout"}
		case ev, ok := <-events:
			if !ok {
				return Outcome{State: StateNeedsSignup, Reason: "events_closed"}
			}
			switch ev.Type {
			case EventSignedIn:
				if ev.Session != nil {
					return c.processSession(ctx, ev.Session, p)
				}
			case EventSignedOut:
				return Outcome{State: StateBlocked, Reason: "cancelled"}
			}
		}
	}
}

// processSession is the only path to done. The provider lock runs before
// any directory mutation; elevated roles never complete the flow.
func (c *Controller) processSession(ctx context.Context, s *session.Session, p Params) Outcome {
	log := logger.From(ctx).With(logger.Component("reconcile"), logger.State(string(StateProcessSession)), logger.UserID(s.UserID))

	required, ok, err := c.checkProviderLock(ctx, s)
	if err != nil {
		log.Error("provider lock check failed", logger.Err(err))
		return Outcome{State: StateError, Reason: "lock_check_failed"}
	}
	if !ok {
		metrics.ProviderMismatchTotal.WithLabelValues(string(required)).Inc()
		if err := c.sessions.Invalidate(ctx, s); err != nil {
			log.Error("session invalidation failed", logger.Err(err))
		}
		return Outcome{
			State:            StateBlocked,
			Reason:           mismatchReason(required),
			RequiredProvider: required,
		}
	}

	rec, err := c.dir.GetByID(ctx, s.UserID)
	isNew := false
	switch {
	case err == nil:
	case errors.Is(err, directory.ErrNotFound):
		if p.Email == "" {
			// live session, no directory record, and no claims to build one
			// from: hand off to the signup form
			return Outcome{State: StateNeedsSignup, Reason: "unprovisioned"}
		}
		rec, err = c.provision(ctx, s, p)
		if err != nil {
			log.Error("signup provisioning failed", logger.Err(err))
			return Outcome{State: StateError, Reason: "user_creation_failed"}
		}
		isNew = true
	default:
		log.Error("directory lookup failed", logger.Err(err))
		return Outcome{State: StateError, Reason: "directory_unavailable"}
	}

	if rec.Role.Elevated() {
		if err := c.sessions.Invalidate(ctx, s); err != nil {
			log.Error("session invalidation failed", logger.Err(err))
		}
		metrics.SigninTotal.WithLabelValues(string(s.Provider), "blocked_admin").Inc()
		return Outcome{State: StateBlocked, Reason: "admin accounts must use the admin sign-in"}
	}

	metrics.SigninTotal.WithLabelValues(string(s.Provider), "done").Inc()
	return Outcome{
		State:       StateDone,
		UserID:      rec.ID,
		IsNewUser:   isNew,
		RedirectURL: c.cfg.HomeURL,
	}
}

// provision creates identity + profile for a first-time OAuth signup,
// converging on the existing row when the unique-email insert loses a race.
func (c *Controller) provision(ctx context.Context, s *session.Session, p Params) (*identity.Identity, error) {
	log := logger.From(ctx).With(logger.Component("reconcile"))

	if p.Email == "" {
		return nil, fmt.Errorf("reconcile: no email to provision from")
	}

	first, last := identity.SplitName(p.Name)
	rec, err := c.dir.Insert(ctx, directory.NewIdentity{
		ID:        s.UserID,
		Email:     p.Email,
		Role:      identity.RoleCustomer,
		FirstName: first,
		LastName:  last,
	})
	if errors.Is(err, directory.ErrDuplicateEmail) {
		// someone (another tab, a double submit) created it first; that is
		// success, not failure
		metrics.DuplicateRaceRecovered.Inc()
		log.Info("duplicate signup converged", logger.EmailMasked(p.Email))
		return c.dir.GetByEmail(ctx, p.Email)
	}
	if err != nil {
		return nil, err
	}

	if s.Provider.Valid() && p.SubjectID != "" {
		if err := c.dir.LinkIdentity(ctx, rec.ID, identity.LinkedIdentity{
			Provider:  s.Provider,
			SubjectID: p.SubjectID,
			Email:     p.Email,
		}); err != nil {
			return nil, err
		}
	}

	if err := c.dir.CreateProfile(ctx, identity.Profile{
		UserID:      rec.ID,
		Role:        identity.RoleCustomer,
		DisplayName: p.Name,
		AvatarURL:   p.Picture,
	}); err != nil {
		return nil, err
	}
	return rec, nil
}

func mismatchReason(required identity.Provider) string {
	switch required {
	case identity.ProviderGoogle:
		return "this email is registered with Google; sign in with Google"
	case identity.ProviderLine:
		return "this email is registered with LINE; sign in with LINE"
	case identity.ProviderEmail:
		return "this email is registered with a password; sign in with email"
	default:
		return "this email is registered with a different sign-in method"
	}
}
