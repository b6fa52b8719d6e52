// Package social implements the server-side OAuth callback flow: CSRF state
// validation, code exchange, ID-token verification, directory reconciliation
// under the one-email-one-provider lock, and the redirect back to the app.
package social

import (
	"context"
	"errors"
	"fmt"

	"github.com/teedineasyteam-boop/teedin-identity/internal/identity"
)

// Service errors, mapped to redirect error codes by the controller.
var (
	ErrMissingState   = errors.New("social: state required")
	ErrCsrfRejected   = errors.New("social: state does not match stored nonce")
	ErrMissingCode    = errors.New("social: code required")
	ErrNotConfigured  = errors.New("social: provider not configured")
	ErrExchangeFailed = errors.New("social: code exchange failed")
	ErrVerifyFailed   = errors.New("social: id token verification failed")
	ErrDirectoryWrite = errors.New("social: directory write failed")
)

// MismatchError reports a cross-provider collision: the email is locked to
// Required and the attempted provider must not get a session.
type MismatchError struct {
	Required identity.Provider
	Email    string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("social: email locked to provider %s", e.Required)
}

// CallbackRequest is the parsed inbound redirect plus the stored nonce.
type CallbackRequest struct {
	Provider identity.Provider
	Code     string
	State    string
	// CookieState is the value of the state cookie written at initiation.
	CookieState string
	// ProviderError is the error query parameter, when the provider
	// reported one instead of a code.
	ProviderError string
}

// CallbackResult is the reconciled identity, ready for the redirect. Only
// non-sensitive short-lived fields; no token ever rides in the URL.
type CallbackResult struct {
	UserID    string
	Provider  identity.Provider
	Email     string
	Name      string
	Picture   string
	IsNewUser bool
}

// CallbackService runs the callback flow for one provider landing.
type CallbackService interface {
	Callback(ctx context.Context, req CallbackRequest) (*CallbackResult, error)
}

// StartRequest asks for an authorization redirect.
type StartRequest struct {
	Provider identity.Provider
	// RedirectURI optionally overrides the app callback surface for this
	// round trip; must be vetted by the caller.
	RedirectURI string
}

// StartResult carries the provider authorization URL and the state token
// the controller must mirror into the cookie.
type StartResult struct {
	AuthURL    string
	StateToken string
}

// StartService builds the authorization redirect for one provider.
type StartService interface {
	Start(ctx context.Context, req StartRequest) (*StartResult, error)
}
