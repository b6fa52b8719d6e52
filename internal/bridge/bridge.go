// Package bridge implements the single-use session hand-off ("magic link").
// The LINE callback runs in a server context that cannot set the browser's
// session cookie on the application domain, so the verified user id is
// parked under an opaque one-shot token; redeeming that token from the
// client context is what finally establishes the session.
package bridge

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/teedineasyteam-boop/teedin-identity/internal/cache"
)

var (
	// ErrNotFound: the token never existed (or was garbage).
	ErrNotFound = errors.New("bridge: token not found")
	// ErrConsumed: the token was already redeemed once.
	ErrConsumed = errors.New("bridge: token already consumed")
	// ErrExpired: the token existed but its TTL lapsed before redemption.
	ErrExpired = errors.New("bridge: token expired")
)

const (
	liveKeyPrefix   = "bridge:tok:"
	usedKeyPrefix   = "bridge:used:"
	issuedKeyPrefix = "bridge:issued:"

	// markerGrace keeps the issued/used markers around long enough after
	// the live token dies to tell "expired" and "consumed" apart from
	// "never existed".
	markerGrace = time.Hour
)

// Bridge mints and redeems one-shot hand-off tokens.
type Bridge struct {
	cache cache.Client
	ttl   time.Duration
}

// New builds a Bridge. TTL defaults to 5 minutes; bridge tokens are
// minutes-lived by contract, never hours.
func New(c cache.Client, ttl time.Duration) *Bridge {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Bridge{cache: c, ttl: ttl}
}

// TTL returns the configured token lifetime.
func (b *Bridge) TTL() time.Duration { return b.ttl }

// Issue mints a token bound to exactly one user id.
func (b *Bridge) Issue(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("bridge: empty user id")
	}

	token, err := newToken()
	if err != nil {
		return "", err
	}

	if err := b.cache.Set(ctx, liveKeyPrefix+token, userID, b.ttl); err != nil {
		return "", fmt.Errorf("bridge: store token: %w", err)
	}
	// issued marker outlives the live key so expiry is distinguishable
	if err := b.cache.Set(ctx, issuedKeyPrefix+token, "1", b.ttl+markerGrace); err != nil {
		return "", fmt.Errorf("bridge: store issued marker: %w", err)
	}
	return token, nil
}

// Redeem consumes a token and returns the bound user id. A second redemption
// of the same token fails with ErrConsumed regardless of timing.
func (b *Bridge) Redeem(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrNotFound
	}

	userID, err := b.cache.GetDel(ctx, liveKeyPrefix+token)
	if err == nil {
		// tombstone before returning: a racing second redeemer must see
		// consumed, not not-found
		if err := b.cache.Set(ctx, usedKeyPrefix+token, "1", b.ttl+markerGrace); err != nil {
			return "", fmt.Errorf("bridge: store used marker: %w", err)
		}
		return userID, nil
	}
	if !errors.Is(err, cache.ErrNotFound) {
		return "", fmt.Errorf("bridge: lookup: %w", err)
	}

	if _, err := b.cache.Get(ctx, usedKeyPrefix+token); err == nil {
		return "", ErrConsumed
	}
	if _, err := b.cache.Get(ctx, issuedKeyPrefix+token); err == nil {
		return "", ErrExpired
	}
	return "", ErrNotFound
}

func newToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("bridge: entropy: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
