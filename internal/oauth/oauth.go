// Package oauth defines the provider-neutral contract for authorization-code
// exchange and identity assertion, plus the registry that maps a provider tag
// to its configured client.
package oauth

import (
	"context"
	"errors"

	"github.com/teedineasyteam-boop/teedin-identity/internal/identity"
)

// Tokens is the result of an authorization-code exchange.
type Tokens struct {
	AccessToken  string
	IDToken      string
	RefreshToken string
	ExpiresIn    int
}

// Claims is the verified identity assertion extracted from a provider's
// ID token (or equivalent verification endpoint).
type Claims struct {
	Sub           string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
	Locale        string
	Nonce         string
}

// Exchanger talks to one external OAuth provider.
type Exchanger interface {
	// AuthURL builds the authorization redirect for the user's browser.
	AuthURL(ctx context.Context, state, nonce string) (string, error)

	// ExchangeCode trades an authorization code for tokens.
	ExchangeCode(ctx context.Context, code string) (*Tokens, error)

	// VerifyIDToken verifies the assertion and extracts claims. The nonce
	// must match the one bound into the authorization request.
	VerifyIDToken(ctx context.Context, idToken, nonce string) (*Claims, error)
}

// Enricher is implemented by providers with a secondary profile endpoint
// that can improve display name and avatar. Enrichment failures are
// non-fatal by contract.
type Enricher interface {
	Profile(ctx context.Context, accessToken string) (*Claims, error)
}

// ErrProviderNotConfigured marks a provider without credentials. Mapped to
// the config_error outcome, never to a user-caused one.
var ErrProviderNotConfigured = errors.New("oauth: provider not configured")

// Registry holds the configured exchangers by provider tag.
type Registry struct {
	clients map[identity.Provider]Exchanger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[identity.Provider]Exchanger)}
}

// Register adds a configured exchanger. Nil clients are ignored so wiring
// can pass results of conditional construction directly.
func (r *Registry) Register(p identity.Provider, e Exchanger) {
	if e == nil {
		return
	}
	r.clients[p] = e
}

// Get returns the exchanger for p or ErrProviderNotConfigured.
func (r *Registry) Get(p identity.Provider) (Exchanger, error) {
	e, ok := r.clients[p]
	if !ok {
		return nil, ErrProviderNotConfigured
	}
	return e, nil
}

// Configured lists the provider tags that have credentials, for the
// discovery endpoint.
func (r *Registry) Configured() []identity.Provider {
	out := make([]identity.Provider, 0, len(r.clients))
	for _, p := range []identity.Provider{identity.ProviderGoogle, identity.ProviderLine} {
		if _, ok := r.clients[p]; ok {
			out = append(out, p)
		}
	}
	return out
}
