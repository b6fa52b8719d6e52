package line

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := New("2001234567", "channel-secret", "https://id.example.com/v1/auth/line/callback")
	c.TokenEndpoint = srv.URL + "/oauth2/v2.1/token"
	c.VerifyEndpoint = srv.URL + "/oauth2/v2.1/verify"
	c.ProfileEndpoint = srv.URL + "/v2/profile"
	return c, srv
}

func TestAuthURL(t *testing.T) {
	c := New("2001234567", "secret", "https://id.example.com/cb")

	raw, err := c.AuthURL(context.Background(), "st-1", "n-1")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, "2001234567", q.Get("client_id"))
	require.Equal(t, "st-1", q.Get("state"))
	require.Equal(t, "n-1", q.Get("nonce"))
	require.Equal(t, "profile openid email", q.Get("scope"))
}

func TestExchangeCode(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/v2.1/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		require.Equal(t, "code-abc", r.PostForm.Get("code"))
		require.Equal(t, "2001234567", r.PostForm.Get("client_id"))
		require.Equal(t, "channel-secret", r.PostForm.Get("client_secret"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "at-1", "id_token": "idt-1", "expires_in": 2592000,
		})
	})
	c, _ := newTestClient(t, mux)

	tokens, err := c.ExchangeCode(context.Background(), "code-abc")
	require.NoError(t, err)
	require.Equal(t, "at-1", tokens.AccessToken)
	require.Equal(t, "idt-1", tokens.IDToken)
}

func TestExchangeCodeUpstreamError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/v2.1/token", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error": "invalid_grant", "error_description": "authorization code expired",
		})
	})
	c, _ := newTestClient(t, mux)

	_, err := c.ExchangeCode(context.Background(), "stale")
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid_grant")
}

func TestVerifyIDToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/v2.1/verify", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "idt-1", r.PostForm.Get("id_token"))
		require.Equal(t, "2001234567", r.PostForm.Get("client_id"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"iss":     "https://access.line.me",
			"sub":     "U4af4980629abc",
			"aud":     "2001234567",
			"exp":     time.Now().Add(time.Hour).Unix(),
			"nonce":   "n-1",
			"name":    "Somchai",
			"picture": "https://profile.line-scdn.net/abc",
			"email":   "somchai@example.com",
		})
	})
	c, _ := newTestClient(t, mux)

	claims, err := c.VerifyIDToken(context.Background(), "idt-1", "n-1")
	require.NoError(t, err)
	require.Equal(t, "U4af4980629abc", claims.Sub)
	require.Equal(t, "somchai@example.com", claims.Email)
	require.True(t, claims.EmailVerified)
}

func TestVerifyIDTokenRejectsWrongAudience(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/v2.1/verify", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"sub": "U1", "aud": "someone-else",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
	})
	c, _ := newTestClient(t, mux)

	_, err := c.VerifyIDToken(context.Background(), "idt-1", "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "bad aud")
}

func TestVerifyIDTokenNoEmail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/v2.1/verify", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"sub": "U4af4980629abc", "aud": "2001234567",
			"exp": time.Now().Add(time.Hour).Unix(), "name": "Somchai",
		})
	})
	c, _ := newTestClient(t, mux)

	claims, err := c.VerifyIDToken(context.Background(), "idt-1", "")
	require.NoError(t, err)
	require.Empty(t, claims.Email)
	require.False(t, claims.EmailVerified)
}

func TestProfileEnrichment(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/profile", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer at-1", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]string{
			"userId":      "U4af4980629abc",
			"displayName": "Somchai K.",
			"pictureUrl":  "https://profile.line-scdn.net/xyz",
		})
	})
	c, _ := newTestClient(t, mux)

	claims, err := c.Profile(context.Background(), "at-1")
	require.NoError(t, err)
	require.Equal(t, "Somchai K.", claims.Name)
	require.Equal(t, "https://profile.line-scdn.net/xyz", claims.Picture)
}
