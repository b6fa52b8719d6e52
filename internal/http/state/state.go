// Package state issues and checks the CSRF state token for the OAuth
// round trip. The token is a short-lived signed JWT: the same value goes
// out as the state query parameter and into a narrowly scoped cookie, and
// the callback requires a byte-for-byte match between the two before the
// signature is even looked at.
package state

import (
	"errors"
	"net/http"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// CookieName holds the state nonce between the authorization redirect and
// the callback.
const CookieName = "teedin_oauth_state"

// Audience for state tokens, so a session JWT can never pass as state.
const Audience = "oauth-state"

var (
	ErrInvalid = errors.New("state: invalid token")
	ErrExpired = errors.New("state: token expired")
)

// Claims carried through the OAuth round trip.
type Claims struct {
	Provider    string
	Nonce       string
	RedirectURI string
}

// Signer signs and parses state tokens.
type Signer struct {
	issuer string
	secret []byte
	ttl    time.Duration
}

// NewSigner creates a Signer. ttl defaults to 10 minutes.
func NewSigner(issuer string, secret []byte, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Signer{issuer: issuer, secret: secret, ttl: ttl}
}

// TTL returns the state token lifetime.
func (s *Signer) TTL() time.Duration { return s.ttl }

// Sign mints a state token. When c.Nonce is empty a fresh one is generated.
func (s *Signer) Sign(c Claims) (string, error) {
	if c.Nonce == "" {
		c.Nonce = uuid.NewString()
	}
	now := time.Now().UTC()
	mc := jwtv5.MapClaims{
		"iss":      s.issuer,
		"aud":      Audience,
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"exp":      now.Add(s.ttl).Unix(),
		"provider": c.Provider,
		"nonce":    c.Nonce,
	}
	if c.RedirectURI != "" {
		mc["redir"] = c.RedirectURI
	}
	return jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, mc).SignedString(s.secret)
}

// Parse validates a state token and extracts its claims.
func (s *Signer) Parse(token string) (*Claims, error) {
	tk, err := jwtv5.Parse(token, func(t *jwtv5.Token) (any, error) {
		return s.secret, nil
	}, jwtv5.WithValidMethods([]string{"HS256"}))
	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}
	mc, ok := tk.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, ErrInvalid
	}
	if iss, _ := mc["iss"].(string); iss != s.issuer {
		return nil, ErrInvalid
	}
	if aud, _ := mc["aud"].(string); aud != Audience {
		return nil, ErrInvalid
	}
	return &Claims{
		Provider:    getString(mc, "provider"),
		Nonce:       getString(mc, "nonce"),
		RedirectURI: getString(mc, "redir"),
	}, nil
}

func getString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// WriteCookie stores the state token client-side for the round trip.
// Path is scoped to the auth surface so the cookie never rides along on
// unrelated requests.
func WriteCookie(w http.ResponseWriter, token string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/v1/auth",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ReadCookie returns the stored state token, or "" when absent.
func ReadCookie(r *http.Request) string {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// ClearCookie removes the state cookie. Single use: the callback clears it
// whether or not the check passed.
func ClearCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/v1/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
