// Package google implements the oauth.Exchanger against Google's OIDC
// surface: discovery document, JWKS, authorization-code exchange and local
// RS256 verification of the ID token.
package google

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/teedineasyteam-boop/teedin-identity/internal/oauth"
)

// DefaultDiscoveryURL is Google's published OIDC configuration.
const DefaultDiscoveryURL = "https://accounts.google.com/.well-known/openid-configuration"

type discoveryDoc struct {
	Issuer        string `json:"issuer"`
	AuthEndpoint  string `json:"authorization_endpoint"`
	TokenEndpoint string `json:"token_endpoint"`
	JWKSURI       string `json:"jwks_uri"`
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jwkSet struct {
	Keys []jwk `json:"keys"`
}

// Client is a Google OIDC client. Discovery and JWKS responses are cached;
// both endpoints are overridable for tests.
type Client struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// DiscoveryURL defaults to DefaultDiscoveryURL when empty.
	DiscoveryURL string

	http *http.Client

	mu     sync.RWMutex
	disc   *discoveryDoc
	discAt time.Time
	keys   *jwkSet
	keysAt time.Time
}

// New builds a Client with the standard openid/profile/email scopes.
func New(clientID, clientSecret, redirectURL string) *Client {
	return &Client{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"openid", "profile", "email"},
		http:         &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) discovery(ctx context.Context) (*discoveryDoc, error) {
	c.mu.RLock()
	disc := c.disc
	stale := time.Since(c.discAt) > 24*time.Hour
	c.mu.RUnlock()
	if disc != nil && !stale {
		return disc, nil
	}

	u := c.DiscoveryURL
	if u == "" {
		u = DefaultDiscoveryURL
	}
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("google: discovery http %d", resp.StatusCode)
	}

	var dd discoveryDoc
	if err := json.NewDecoder(resp.Body).Decode(&dd); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.disc = &dd
	c.discAt = time.Now()
	c.mu.Unlock()
	return &dd, nil
}

func (c *Client) jwks(ctx context.Context, uri string) (*jwkSet, error) {
	c.mu.RLock()
	keys := c.keys
	age := time.Since(c.keysAt)
	c.mu.RUnlock()
	if keys != nil && age < time.Hour {
		return keys, nil
	}

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("google: jwks http %d", resp.StatusCode)
	}

	var set jwkSet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.keys = &set
	c.keysAt = time.Now()
	c.mu.Unlock()
	return &set, nil
}

func (c *Client) keyForKid(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	disc, err := c.discovery(ctx)
	if err != nil {
		return nil, err
	}
	set, err := c.jwks(ctx, disc.JWKSURI)
	if err != nil {
		return nil, err
	}
	for _, k := range set.Keys {
		if k.Kid != kid || !strings.EqualFold(k.Kty, "RSA") {
			continue
		}
		nb, err := base64.RawURLEncoding.DecodeString(k.N)
		if err != nil {
			return nil, err
		}
		eb, err := base64.RawURLEncoding.DecodeString(k.E)
		if err != nil {
			return nil, err
		}
		e := 65537
		if len(eb) > 0 {
			e = 0
			for _, b := range eb {
				e = (e << 8) | int(b)
			}
		}
		return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: e}, nil
	}
	return nil, errors.New("google: kid not found in jwks")
}

// AuthURL builds the authorization redirect.
func (c *Client) AuthURL(ctx context.Context, state, nonce string) (string, error) {
	disc, err := c.discovery(ctx)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(disc.AuthEndpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("response_type", "code")
	q.Set("client_id", c.ClientID)
	q.Set("redirect_uri", c.RedirectURL)
	q.Set("scope", strings.Join(c.Scopes, " "))
	q.Set("state", state)
	q.Set("nonce", nonce)
	q.Set("access_type", "offline")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ExchangeCode trades the authorization code for tokens.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*oauth.Tokens, error) {
	disc, err := c.discovery(ctx)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", c.ClientID)
	form.Set("client_secret", c.ClientSecret)
	form.Set("redirect_uri", c.RedirectURL)

	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, disc.TokenEndpoint, strings.NewReader(form.Encode()))
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
		return nil, fmt.Errorf("google: token http %d: %s %s", resp.StatusCode, body.Error, body.ErrorDescription)
	}

	var tr struct {
		AccessToken  string `json:"access_token"`
		IDToken      string `json:"id_token"`
		ExpiresIn    int    `json:"expires_in"`
		RefreshToken string `json:"refresh_token"`
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

// VerifyIDToken checks signature, issuer, audience, nonce and expiry, then
// extracts the identity claims.
func (c *Client) VerifyIDToken(ctx context.Context, idToken, nonce string) (*oauth.Claims, error) {
	parts := strings.Split(idToken, ".")
	if len(parts) != 3 {
		return nil, errors.New("google: malformed jwt")
	}
	hb, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, err
	}
	var header struct {
		Alg string `json:"alg"`
		Kid string `json:"kid"`
	}
	if err := json.Unmarshal(hb, &header); err != nil {
		return nil, err
	}
	if header.Alg != "RS256" {
		return nil, fmt.Errorf("google: unexpected alg %s", header.Alg)
	}

	key, err := c.keyForKid(ctx, header.Kid)
	if err != nil {
		return nil, err
	}

	tok, err := jwtv5.Parse(idToken,
		func(t *jwtv5.Token) (any, error) { return key, nil },
		jwtv5.WithValidMethods([]string{"RS256"}))
	if err != nil || !tok.Valid {
		return nil, errors.New("google: invalid id_token")
	}
	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, errors.New("google: unexpected claims type")
	}

	if iss, _ := claims["iss"].(string); iss != "https://accounts.google.com" && iss != "accounts.google.com" {
		return nil, fmt.Errorf("google: bad iss %q", iss)
	}
	if !audienceMatches(claims["aud"], c.ClientID) {
		return nil, errors.New("google: bad aud")
	}
	if nonce != "" {
		if got, _ := claims["nonce"].(string); got != nonce {
			return nil, errors.New("google: bad nonce")
		}
	}
	if expf, ok := claims["exp"].(float64); ok {
		if time.Unix(int64(expf), 0).Before(time.Now().Add(-30 * time.Second)) {
			return nil, errors.New("google: id_token expired")
		}
	}

	return &oauth.Claims{
		Sub:           strClaim(claims, "sub"),
		Email:         strClaim(claims, "email"),
		EmailVerified: boolClaim(claims, "email_verified"),
		Name:          strClaim(claims, "name"),
		Picture:       strClaim(claims, "picture"),
		Locale:        strClaim(claims, "locale"),
		Nonce:         strClaim(claims, "nonce"),
	}, nil
}

func audienceMatches(aud any, clientID string) bool {
	switch a := aud.(type) {
	case string:
		return a == clientID
	case []any:
		for _, v := range a {
			if s, _ := v.(string); s == clientID {
				return true
			}
		}
	}
	return false
}

func strClaim(m jwtv5.MapClaims, k string) string {
	s, _ := m[k].(string)
	return s
}

func boolClaim(m jwtv5.MapClaims, k string) bool {
	b, _ := m[k].(bool)
	return b
}
