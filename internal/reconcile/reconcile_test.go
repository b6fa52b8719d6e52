package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/teedineasyteam-boop/teedin-identity/internal/directory"
	"github.com/teedineasyteam-boop/teedin-identity/internal/identity"
	"github.com/teedineasyteam-boop/teedin-identity/internal/session"
)

// fakeSessions is a scriptable SessionClient.
type fakeSessions struct {
	current    *session.Session
	currentErr error

	refreshed   *session.Session
	refreshErr  error
	whoami      *session.Session
	whoamiErr   error
	fromTokens  *session.Session
	tokensErr   error
	invalidated []*session.Session

	events chan Event
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{
		refreshErr: errors.New("no refresh"),
		whoamiErr:  errors.New("no whoami"),
		tokensErr:  errors.New("no tokens"),
		events:     make(chan Event, 4),
	}
}

func (f *fakeSessions) Current(ctx context.Context) (*session.Session, error) {
	return f.current, f.currentErr
}

func (f *fakeSessions) SetFromTokens(ctx context.Context, access, refresh string) (*session.Session, error) {
	return f.fromTokens, f.tokensErr
}

func (f *fakeSessions) Refresh(ctx context.Context, userID string) (*session.Session, error) {
	return f.refreshed, f.refreshErr
}

func (f *fakeSessions) WhoAmI(ctx context.Context) (*session.Session, error) {
	return f.whoami, f.whoamiErr
}

func (f *fakeSessions) Events(ctx context.Context) <-chan Event { return f.events }

func (f *fakeSessions) Invalidate(ctx context.Context, s *session.Session) error {
	f.invalidated = append(f.invalidated, s)
	f.current = nil
	return nil
}

type fakeBridge struct {
	link string
	err  error
	hits int
}

func (f *fakeBridge) MagicLink(ctx context.Context, userID string) (string, error) {
	f.hits++
	return f.link, f.err
}

func newController(t *testing.T, dir directory.Directory, sess SessionClient, br BridgeClient) *Controller {
	t.Helper()
	return NewController(dir, sess, br, Config{
		ListenTimeout: 50 * time.Millisecond,
		RecoveryDelay: 5 * time.Millisecond,
		HomeURL:       "/",
	})
}

// seedAccount creates an account locked to the given provider.
func seedAccount(t *testing.T, dir *directory.MemoryDirectory, email string, p identity.Provider, role identity.Role) *identity.Identity {
	t.Helper()
	rec, err := dir.Insert(context.Background(), directory.NewIdentity{Email: email, Role: role})
	require.NoError(t, err)
	if p != "" {
		require.NoError(t, dir.LinkIdentity(context.Background(), rec.ID, identity.LinkedIdentity{
			Provider:  p,
			SubjectID: "sub-" + string(p),
			Email:     email,
		}))
	}
	return rec
}

func TestMismatchMarkerBlocksTerminally(t *testing.T) {
	c := newController(t, directory.NewMemory(), newFakeSessions(), &fakeBridge{})

	out := c.Run(context.Background(), Params{
		ErrorCode:        "provider_mismatch",
		RequiredProvider: identity.ProviderGoogle,
	})
	require.Equal(t, StateBlocked, out.State)
	require.Equal(t, identity.ProviderGoogle, out.RequiredProvider)
	require.Contains(t, out.Reason, "Google")
}

func TestProviderErrorMarker(t *testing.T) {
	c := newController(t, directory.NewMemory(), newFakeSessions(), &fakeBridge{})

	out := c.Run(context.Background(), Params{ErrorCode: "token_exchange_failed"})
	require.Equal(t, StateError, out.State)
	require.Equal(t, "token_exchange_failed", out.Reason)
}

func TestGoogleLockedAccountRejectsLineSession(t *testing.T) {
	dir := directory.NewMemory()
	rec := seedAccount(t, dir, "locked@example.com", identity.ProviderGoogle, identity.RoleCustomer)

	sess := newFakeSessions()
	sess.current = &session.Session{ID: "s1", UserID: rec.ID, Provider: identity.ProviderLine}

	c := newController(t, dir, sess, &fakeBridge{})
	out := c.Run(context.Background(), Params{})

	require.Equal(t, StateBlocked, out.State)
	require.Equal(t, identity.ProviderGoogle, out.RequiredProvider)
	require.Len(t, sess.invalidated, 1, "mismatched session must not stay active")
	require.Equal(t, 1, dir.IdentityCount(), "no directory mutation on mismatch")
	require.Equal(t, 0, dir.ProfileCount())
}

func TestLineLockedAccountRejectsGoogleSession(t *testing.T) {
	dir := directory.NewMemory()
	rec := seedAccount(t, dir, "locked@example.com", identity.ProviderLine, identity.RoleCustomer)

	sess := newFakeSessions()
	sess.current = &session.Session{ID: "s1", UserID: rec.ID, Provider: identity.ProviderGoogle}

	c := newController(t, dir, sess, &fakeBridge{})
	out := c.Run(context.Background(), Params{})

	require.Equal(t, StateBlocked, out.State)
	require.Equal(t, identity.ProviderLine, out.RequiredProvider)
	require.Len(t, sess.invalidated, 1)
}

func TestEmailFirstAccountAcceptsEitherProvider(t *testing.T) {
	for _, p := range []identity.Provider{identity.ProviderGoogle, identity.ProviderLine} {
		t.Run(string(p), func(t *testing.T) {
			dir := directory.NewMemory()
			rec := seedAccount(t, dir, "pwd@example.com", identity.ProviderEmail, identity.RoleCustomer)

			sess := newFakeSessions()
			sess.current = &session.Session{ID: "s1", UserID: rec.ID, Provider: p}

			c := newController(t, dir, sess, &fakeBridge{})
			out := c.Run(context.Background(), Params{})

			require.Equal(t, StateDone, out.State)
			require.Empty(t, sess.invalidated)
		})
	}
}

func TestBridgedLineSessionPassesLineLock(t *testing.T) {
	// the bridged session keeps its explicit line tag, so the lock holds
	// with no transient exception
	dir := directory.NewMemory()
	rec := seedAccount(t, dir, "line@example.com", identity.ProviderLine, identity.RoleCustomer)

	sess := newFakeSessions()
	sess.current = &session.Session{ID: "s1", UserID: rec.ID, Provider: identity.ProviderLine}

	c := newController(t, dir, sess, &fakeBridge{})
	out := c.Run(context.Background(), Params{})
	require.Equal(t, StateDone, out.State)
}

func TestNewSignupProvisionsIdentityAndProfile(t *testing.T) {
	dir := directory.NewMemory()
	sess := newFakeSessions()
	sess.current = &session.Session{ID: "s1", UserID: "auth-123", Provider: identity.ProviderGoogle}

	c := newController(t, dir, sess, &fakeBridge{})
	out := c.Run(context.Background(), Params{
		Email:     "new@example.com",
		Name:      "Nok Chaiyo",
		Picture:   "https://lh3.example.com/p.jpg",
		SubjectID: "g-sub-1",
	})

	require.Equal(t, StateDone, out.State)
	require.True(t, out.IsNewUser)
	require.Equal(t, "auth-123", out.UserID, "directory id pinned to the auth subject")

	rec, err := dir.GetByID(context.Background(), "auth-123")
	require.NoError(t, err)
	require.Equal(t, identity.RoleCustomer, rec.Role)
	require.Equal(t, "Nok", rec.FirstName)
	require.Equal(t, "Chaiyo", rec.LastName)

	auth, err := dir.AuthRecord(context.Background(), "auth-123")
	require.NoError(t, err)
	require.Equal(t, identity.ProviderGoogle, identity.ResolveProvider(auth))

	require.Equal(t, 1, dir.ProfileCount())
}

func TestSessionWithoutRecordOrClaimsNeedsSignupForm(t *testing.T) {
	dir := directory.NewMemory()
	sess := newFakeSessions()
	sess.current = &session.Session{ID: "s1", UserID: "unknown-user", Provider: identity.ProviderGoogle}

	c := newController(t, dir, sess, &fakeBridge{})
	out := c.Run(context.Background(), Params{})

	require.Equal(t, StateNeedsSignup, out.State)
	require.Equal(t, "unprovisioned", out.Reason)
	require.Zero(t, dir.IdentityCount(), "no record created without claims")
	require.Empty(t, sess.invalidated, "session stays live for the signup form")
}

func TestDuplicateSignupRaceConverges(t *testing.T) {
	dir := directory.NewMemory()
	// the other tab won the race: same email, different auth subject
	winner := seedAccount(t, dir, "race@example.com", identity.ProviderGoogle, identity.RoleCustomer)

	sess := newFakeSessions()
	sess.current = &session.Session{ID: "s2", UserID: "auth-loser", Provider: identity.ProviderGoogle}

	c := newController(t, dir, sess, &fakeBridge{})
	out := c.Run(context.Background(), Params{Email: "race@example.com", Name: "Race"})

	require.Equal(t, StateDone, out.State, "second request must not error")
	require.Equal(t, winner.ID, out.UserID, "converges to the existing row")
	require.Equal(t, 1, dir.IdentityCount(), "exactly one identity row")
}

func TestAdminNeverCompletesFlow(t *testing.T) {
	for _, role := range []identity.Role{identity.RoleAdmin, identity.RoleSuperAdmin} {
		t.Run(string(role), func(t *testing.T) {
			dir := directory.NewMemory()
			rec := seedAccount(t, dir, "admin@example.com", identity.ProviderGoogle, role)

			sess := newFakeSessions()
			sess.current = &session.Session{ID: "s1", UserID: rec.ID, Provider: identity.ProviderGoogle}

			c := newController(t, dir, sess, &fakeBridge{})
			out := c.Run(context.Background(), Params{})

			require.Equal(t, StateBlocked, out.State)
			require.Len(t, sess.invalidated, 1, "admin session is always invalidated")
		})
	}
}

func TestLineBridgeReusesMatchingSession(t *testing.T) {
	dir := directory.NewMemory()
	rec := seedAccount(t, dir, "line@example.com", identity.ProviderLine, identity.RoleCustomer)

	sess := newFakeSessions()
	sess.current = &session.Session{ID: "s1", UserID: rec.ID, Provider: identity.ProviderLine}
	br := &fakeBridge{link: "https://id.example.com/v1/auth/bridge/tok"}

	c := newController(t, dir, sess, br)
	out := c.Run(context.Background(), Params{
		ProviderMarker: "line",
		UserID:         rec.ID,
	})

	require.Equal(t, StateDone, out.State)
	require.Zero(t, br.hits, "no magic link needed when the session already matches")
}

func TestLineBridgeMintsMagicLink(t *testing.T) {
	dir := directory.NewMemory()
	rec := seedAccount(t, dir, "line@example.com", identity.ProviderLine, identity.RoleCustomer)

	sess := newFakeSessions() // no session, refresh fails
	br := &fakeBridge{link: "https://id.example.com/v1/auth/bridge/tok-1"}

	c := newController(t, dir, sess, br)
	out := c.Run(context.Background(), Params{ProviderMarker: "line", UserID: rec.ID})

	require.Equal(t, StateLineBridge, out.State)
	require.Equal(t, br.link, out.RedirectURL)
	require.Equal(t, 1, br.hits)
}

func TestLineBridgeFailure(t *testing.T) {
	sess := newFakeSessions()
	br := &fakeBridge{err: errors.New("cache down")}

	c := newController(t, directory.NewMemory(), sess, br)
	out := c.Run(context.Background(), Params{ProviderMarker: "line", UserID: "u1"})

	require.Equal(t, StateError, out.State)
	require.Equal(t, "bridge_failed", out.Reason)
}

func TestManualRecoveryInstallsFragmentTokens(t *testing.T) {
	dir := directory.NewMemory()
	rec := seedAccount(t, dir, "frag@example.com", identity.ProviderGoogle, identity.RoleCustomer)

	sess := newFakeSessions()
	sess.fromTokens = &session.Session{ID: "s1", UserID: rec.ID, Provider: identity.ProviderGoogle}
	sess.tokensErr = nil

	c := newController(t, dir, sess, &fakeBridge{})
	out := c.Run(context.Background(), Params{
		HasOAuthResponse:     true,
		FragmentAccessToken:  "at",
		FragmentRefreshToken: "rt",
	})
	require.Equal(t, StateDone, out.State)
}

func TestManualRecoveryWhoAmIFallback(t *testing.T) {
	dir := directory.NewMemory()
	rec := seedAccount(t, dir, "who@example.com", identity.ProviderGoogle, identity.RoleCustomer)

	sess := newFakeSessions()
	sess.whoami = &session.Session{ID: "s1", UserID: rec.ID, Provider: identity.ProviderGoogle}
	sess.whoamiErr = nil

	c := newController(t, dir, sess, &fakeBridge{})
	out := c.Run(context.Background(), Params{HasOAuthResponse: true})
	require.Equal(t, StateDone, out.State)
}

func TestManualRecoveryExhaustedFallsToListenTimeout(t *testing.T) {
	sess := newFakeSessions()

	c := newController(t, directory.NewMemory(), sess, &fakeBridge{})
	start := time.Now()
	out := c.Run(context.Background(), Params{HasOAuthResponse: true})

	require.Equal(t, StateNeedsSignup, out.State)
	require.Equal(t, "listen_timeout", out.Reason)
	require.Less(t, time.Since(start), 2*time.Second, "bounded, not hanging")
}

func TestListenSignedInEvent(t *testing.T) {
	dir := directory.NewMemory()
	rec := seedAccount(t, dir, "late@example.com", identity.ProviderGoogle, identity.RoleCustomer)

	sess := newFakeSessions()
	sess.events <- Event{
		Type:    EventSignedIn,
		Session: &session.Session{ID: "s1", UserID: rec.ID, Provider: identity.ProviderGoogle},
	}

	c := newController(t, dir, sess, &fakeBridge{})
	out := c.Run(context.Background(), Params{})
	require.Equal(t, StateDone, out.State)
}

func TestListenSignedOutEventBlocks(t *testing.T) {
	sess := newFakeSessions()
	sess.events <- Event{Type: EventSignedOut}

	c := newController(t, directory.NewMemory(), sess, &fakeBridge{})
	out := c.Run(context.Background(), Params{})

	require.Equal(t, StateBlocked, out.State)
	require.Equal(t, "cancelled", out.Reason)
}

func TestListenTimeoutDegradesToSignupForm(t *testing.T) {
	c := newController(t, directory.NewMemory(), newFakeSessions(), &fakeBridge{})

	out := c.Run(context.Background(), Params{})
	require.Equal(t, StateNeedsSignup, out.State)
}
