// Package directory is the adapter over the Identity Directory: the
// persistent store of account records, their linked external identities and
// their role profiles. The pgx implementation is the production one; the
// memory implementation backs tests with identical unique-email semantics.
package directory

import (
	"context"
	"errors"

	"github.com/teedineasyteam-boop/teedin-identity/internal/identity"
)

var (
	// ErrNotFound is returned for missing records.
	ErrNotFound = errors.New("directory: not found")

	// ErrDuplicateEmail is returned when an insert loses the unique-email
	// race. Callers treat it as "someone already succeeded": re-read and
	// converge, never surface it.
	ErrDuplicateEmail = errors.New("directory: email already registered")
)

// NewIdentity is the input for creating a directory record.
type NewIdentity struct {
	// ID, when set, pins the record id to an externally assigned identifier
	// (the auth subject id). Left empty, the store assigns one.
	ID        string
	Email     string
	Role      identity.Role
	FirstName string
	LastName  string
	Phone     string
}

// Directory is the store contract consumed by the reconciliation flow.
type Directory interface {
	GetByID(ctx context.Context, id string) (*identity.Identity, error)
	GetByEmail(ctx context.Context, email string) (*identity.Identity, error)

	// Insert creates a record, assigning the immutable id. Fails with
	// ErrDuplicateEmail when the email is already taken.
	Insert(ctx context.Context, in NewIdentity) (*identity.Identity, error)

	Update(ctx context.Context, rec *identity.Identity) error

	// AuthRecord returns the authoritative external-identity metadata for an
	// account. An account with no links yields an empty record.
	AuthRecord(ctx context.Context, userID string) (identity.AuthRecord, error)

	// LinkIdentity attaches an external identity to an account. Linking the
	// same (provider, subject) twice is a no-op.
	LinkIdentity(ctx context.Context, userID string, link identity.LinkedIdentity) error

	// CreateProfile creates the role-specific record. Creating one that
	// already exists is a no-op.
	CreateProfile(ctx context.Context, p identity.Profile) error

	// GetProfile returns ErrNotFound for unprovisioned accounts; callers
	// tolerate that.
	GetProfile(ctx context.Context, userID string) (*identity.Profile, error)

	Ping(ctx context.Context) error
	Close()
}
