// Package line implements the oauth.Exchanger against LINE Login v2.1.
// Unlike Google, the ID token is not verified locally: LINE's documented
// path is the POST /oauth2/v2.1/verify endpoint, which validates signature,
// audience and nonce server-side and returns the claims.
package line

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/teedineasyteam-boop/teedin-identity/internal/oauth"
)

// Published LINE Login v2.1 endpoints.
const (
	DefaultAuthEndpoint    = "https://access.line.me/oauth2/v2.1/authorize"
	DefaultTokenEndpoint   = "https://api.line.me/oauth2/v2.1/token"
	DefaultVerifyEndpoint  = "https://api.line.me/oauth2/v2.1/verify"
	DefaultProfileEndpoint = "https://api.line.me/v2/profile"
)

// Client is a LINE Login client. Endpoint fields default to the published
// URLs and are overridable for tests.
type Client struct {
	ChannelID     string
	ChannelSecret string
	RedirectURL   string

	AuthEndpoint    string
	TokenEndpoint   string
	VerifyEndpoint  string
	ProfileEndpoint string

	http *http.Client
}

// New builds a Client for a LINE Login channel.
func New(channelID, channelSecret, redirectURL string) *Client {
	return &Client{
		ChannelID:     channelID,
		ChannelSecret: channelSecret,
		RedirectURL:   redirectURL,
		http:          &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) endpoint(configured, fallback string) string {
	if configured != "" {
		return configured
	}
	return fallback
}

// AuthURL builds the authorization redirect. Scope must include openid and
// email; LINE only returns the email claim when the channel has email
// permission approved.
func (c *Client) AuthURL(ctx context.Context, state, nonce string) (string, error) {
	u, err := url.Parse(c.endpoint(c.AuthEndpoint, DefaultAuthEndpoint))
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("response_type", "code")
	q.Set("client_id", c.ChannelID)
	q.Set("redirect_uri", c.RedirectURL)
	q.Set("state", state)
	q.Set("nonce", nonce)
	q.Set("scope", "profile openid email")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ExchangeCode trades the authorization code for tokens.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*oauth.Tokens, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", c.RedirectURL)
	form.Set("client_id", c.ChannelID)
	form.Set("client_secret", c.ChannelSecret)

	req, _ := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint(c.TokenEndpoint, DefaultTokenEndpoint), strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var body struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return nil, fmt.Errorf("line: token http %d: %s %s", resp.StatusCode, body.Error, body.ErrorDescription)
	}

	var tr struct {
		AccessToken  string `json:"access_token"`
		IDToken      string `json:"id_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, err
	}
	return &oauth.Tokens{
		AccessToken:  tr.AccessToken,
		IDToken:      tr.IDToken,
		RefreshToken: tr.RefreshToken,
		ExpiresIn:    tr.ExpiresIn,
	}, nil
}

// VerifyIDToken introspects the ID token against LINE's verify endpoint.
func (c *Client) VerifyIDToken(ctx context.Context, idToken, nonce string) (*oauth.Claims, error) {
	form := url.Values{}
	form.Set("id_token", idToken)
	form.Set("client_id", c.ChannelID)
	if nonce != "" {
		form.Set("nonce", nonce)
	}

	req, _ := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint(c.VerifyEndpoint, DefaultVerifyEndpoint), strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var body struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return nil, fmt.Errorf("line: verify http %d: %s %s", resp.StatusCode, body.Error, body.ErrorDescription)
	}

	var vr struct {
		Iss     string `json:"iss"`
		Sub     string `json:"sub"`
		Aud     string `json:"aud"`
		Exp     int64  `json:"exp"`
		Nonce   string `json:"nonce"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
		Email   string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return nil, err
	}

	if vr.Aud != "" && vr.Aud != c.ChannelID {
		return nil, fmt.Errorf("line: bad aud %q", vr.Aud)
	}
	if vr.Exp > 0 && time.Unix(vr.Exp, 0).Before(time.Now().Add(-30*time.Second)) {
		return nil, fmt.Errorf("line: id_token expired")
	}
	if nonce != "" && vr.Nonce != "" && vr.Nonce != nonce {
		return nil, fmt.Errorf("line: bad nonce")
	}

	return &oauth.Claims{
		Sub:     vr.Sub,
		Email:   vr.Email,
		Name:    vr.Name,
		Picture: vr.Picture,
		Nonce:   vr.Nonce,
		// LINE asserts emails it returns; there is no email_verified claim.
		EmailVerified: vr.Email != "",
	}, nil
}

// Profile enriches display name and avatar from the profile endpoint.
// Callers treat failures here as non-fatal.
func (c *Client) Profile(ctx context.Context, accessToken string) (*oauth.Claims, error) {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet,
		c.endpoint(c.ProfileEndpoint, DefaultProfileEndpoint), nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("line: profile http %d", resp.StatusCode)
	}

	var pr struct {
		UserID      string `json:"userId"`
		DisplayName string `json:"displayName"`
		PictureURL  string `json:"pictureUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, err
	}
	return &oauth.Claims{
		Sub:     pr.UserID,
		Name:    pr.DisplayName,
		Picture: pr.PictureURL,
	}, nil
}

var (
	_ oauth.Exchanger = (*Client)(nil)
	_ oauth.Enricher  = (*Client)(nil)
)
