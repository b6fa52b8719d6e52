package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	br "github.com/teedineasyteam-boop/teedin-identity/internal/bridge"
	"github.com/teedineasyteam-boop/teedin-identity/internal/cache"
	"github.com/teedineasyteam-boop/teedin-identity/internal/directory"
	"github.com/teedineasyteam-boop/teedin-identity/internal/identity"
	"github.com/teedineasyteam-boop/teedin-identity/internal/session"
)

type fixture struct {
	handler  http.Handler
	dir      *directory.MemoryDirectory
	sessions *session.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c := cache.NewMemory("test")
	dir := directory.NewMemory()
	sessions := session.NewManager(session.Config{
		Issuer: "https://id.test",
		Secret: []byte("session-secret"),
	}, c)

	ctrl := NewController(Deps{
		Bridge:        br.New(c, time.Minute),
		Dir:           dir,
		Sessions:      sessions,
		PublicBaseURL: "https://id.test",
		HomeURL:       "https://app.test/",
		SecureCookies: false,
	})

	r := chi.NewRouter()
	r.Post("/v1/auth/bridge", ctrl.Issue)
	r.Get("/v1/auth/bridge/{token}", ctrl.Redeem)
	return &fixture{handler: r, dir: dir, sessions: sessions}
}

func (f *fixture) seedUser(t *testing.T, role identity.Role) *identity.Identity {
	t.Helper()
	rec, err := f.dir.Insert(context.Background(), directory.NewIdentity{
		Email: "u@example.com", Role: role,
	})
	require.NoError(t, err)
	return rec
}

func (f *fixture) issue(t *testing.T, userID string) (*httptest.ResponseRecorder, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/bridge",
		strings.NewReader(`{"user_id":"`+userID+`"}`))
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)

	var body struct {
		MagicLink string `json:"magic_link"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body.MagicLink
}

func (f *fixture) redeem(t *testing.T, link string) *httptest.ResponseRecorder {
	t.Helper()
	path := strings.TrimPrefix(link, "https://id.test")
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func TestIssueAndRedeemEstablishesLineSession(t *testing.T) {
	f := newFixture(t)
	rec := f.seedUser(t, identity.RoleCustomer)

	w, link := f.issue(t, rec.ID)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, link, "https://id.test/v1/auth/bridge/")

	rw := f.redeem(t, link)
	require.Equal(t, http.StatusFound, rw.Code)
	require.Equal(t, "https://app.test/", rw.Header().Get("Location"))

	var access string
	for _, c := range rw.Result().Cookies() {
		if c.Name == AccessCookie {
			access = c.Value
			require.True(t, c.HttpOnly)
		}
	}
	require.NotEmpty(t, access)

	s, err := f.sessions.Verify(context.Background(), access)
	require.NoError(t, err)
	require.Equal(t, rec.ID, s.UserID)
	require.Equal(t, identity.ProviderLine, s.Provider, "bridged sessions carry the explicit line tag")
}

func TestRedeemTwiceFails(t *testing.T) {
	f := newFixture(t)
	rec := f.seedUser(t, identity.RoleCustomer)

	_, link := f.issue(t, rec.ID)
	require.Equal(t, http.StatusFound, f.redeem(t, link).Code)
	require.Equal(t, http.StatusGone, f.redeem(t, link).Code, "a redeemed token never redeems again")
}

func TestRedeemUnknownToken(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusNotFound, f.redeem(t, "https://id.test/v1/auth/bridge/ghost").Code)
}

func TestIssueUnknownUser(t *testing.T) {
	f := newFixture(t)
	w, _ := f.issue(t, "nobody")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestIssueRefusedForAdmin(t *testing.T) {
	f := newFixture(t)
	rec := f.seedUser(t, identity.RoleAdmin)

	w, _ := f.issue(t, rec.ID)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestIssueRejectsEmptyBody(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/bridge", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
