// Package session issues and validates the client-held sessions produced at
// the end of a successful reconciliation. Tokens are HS256 JWTs carrying the
// user id and an explicit provider tag; revocation is a cache-backed
// denylist so a provider-lock rejection can kill a live session immediately.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/teedineasyteam-boop/teedin-identity/internal/cache"
	"github.com/teedineasyteam-boop/teedin-identity/internal/identity"
)

var (
	ErrInvalidToken = errors.New("session: invalid token")
	ErrRevoked      = errors.New("session: revoked")
)

// Session is the client-held credential set.
type Session struct {
	ID           string
	UserID       string
	Provider     identity.Provider // asserted provider; explicit and persistent, bridged LINE sessions keep "line"
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Config for the Manager.
type Config struct {
	Issuer     string
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Manager issues, verifies and revokes sessions.
type Manager struct {
	cfg   Config
	cache cache.Client
}

// NewManager builds a Manager. TTLs default to 1h access / 30d refresh.
func NewManager(cfg Config, c cache.Client) *Manager {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = time.Hour
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}
	return &Manager{cfg: cfg, cache: c}
}

// RefreshTTL is the refresh token lifetime, for cookie expiry alignment.
func (m *Manager) RefreshTTL() time.Duration { return m.cfg.RefreshTTL }

// Issue creates a session for a user with the given asserted provider.
func (m *Manager) Issue(ctx context.Context, userID string, provider identity.Provider) (*Session, error) {
	id := uuid.NewString()
	now := time.Now().UTC()
	exp := now.Add(m.cfg.AccessTTL)

	access, err := m.sign(jwtv5.MapClaims{
		"iss":      m.cfg.Issuer,
		"sub":      userID,
		"jti":      id,
		"iat":      now.Unix(),
		"exp":      exp.Unix(),
		"provider": string(provider),
		"typ":      "access",
	})
	if err != nil {
		return nil, err
	}

	refresh, err := m.sign(jwtv5.MapClaims{
		"iss":      m.cfg.Issuer,
		"sub":      userID,
		"jti":      id,
		"iat":      now.Unix(),
		"exp":      now.Add(m.cfg.RefreshTTL).Unix(),
		"provider": string(provider),
		"typ":      "refresh",
	})
	if err != nil {
		return nil, err
	}

	return &Session{
		ID:           id,
		UserID:       userID,
		Provider:     provider,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    exp,
	}, nil
}

func (m *Manager) sign(claims jwtv5.MapClaims) (string, error) {
	tok := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	return tok.SignedString(m.cfg.Secret)
}

// Verify parses an access token, checks the denylist, and returns the
// session view it represents.
func (m *Manager) Verify(ctx context.Context, accessToken string) (*Session, error) {
	tok, err := jwtv5.Parse(accessToken,
		func(t *jwtv5.Token) (any, error) { return m.cfg.Secret, nil },
		jwtv5.WithValidMethods([]string{"HS256"}))
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	if iss, _ := claims["iss"].(string); iss != m.cfg.Issuer {
		return nil, ErrInvalidToken
	}
	if typ, _ := claims["typ"].(string); typ != "access" {
		return nil, ErrInvalidToken
	}

	id, _ := claims["jti"].(string)
	userID, _ := claims["sub"].(string)
	provider, _ := claims["provider"].(string)
	if id == "" || userID == "" {
		return nil, ErrInvalidToken
	}

	if m.cache != nil {
		if _, err := m.cache.Get(ctx, revokeKey(id)); err == nil {
			return nil, ErrRevoked
		} else if !errors.Is(err, cache.ErrNotFound) {
			return nil, fmt.Errorf("session: denylist check: %w", err)
		}
	}

	var exp time.Time
	if expf, ok := claims["exp"].(float64); ok {
		exp = time.Unix(int64(expf), 0)
	}
	return &Session{
		ID:          id,
		UserID:      userID,
		Provider:    identity.Provider(provider),
		AccessToken: accessToken,
		ExpiresAt:   exp,
	}, nil
}

// Invalidate revokes a session. A mismatched session must never stay active,
// so this is called before any provider-lock failure is surfaced.
func (m *Manager) Invalidate(ctx context.Context, s *Session) error {
	if s == nil || s.ID == "" {
		return nil
	}
	if m.cache == nil {
		return nil
	}
	// the denylist entry must outlive the refresh token too, since the
	// pair shares one jti
	return m.cache.Set(ctx, revokeKey(s.ID), "revoked", m.cfg.RefreshTTL)
}

func revokeKey(id string) string { return "sess:revoked:" + id }
