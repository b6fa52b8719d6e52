// Package identity holds the domain model for marketplace accounts: the
// directory record, its role, the linked external identities, and the
// canonical-provider resolution that the provider lock is built on.
package identity

import "time"

// Provider tags the authentication method that backs an account. It is a
// closed set; ResolveProvider is the single place that produces one.
type Provider string

const (
	ProviderEmail  Provider = "email"
	ProviderGoogle Provider = "google"
	ProviderLine   Provider = "line"
)

// Valid reports whether p is one of the known tags.
func (p Provider) Valid() bool {
	switch p {
	case ProviderEmail, ProviderGoogle, ProviderLine:
		return true
	}
	return false
}

// Role of a directory record.
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleAgent      Role = "agent"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// Elevated reports whether the role is barred from the OAuth sign-in flow.
// Admin accounts authenticate through their own surface only.
func (r Role) Elevated() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Identity is a directory record. ID is immutable once assigned and Email is
// unique across the directory; that unique constraint is the only
// serialization point the signup flow relies on.
type Identity struct {
	ID        string
	Email     string
	Role      Role
	FirstName string
	LastName  string
	Phone     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LinkedIdentity is one external authentication record attached to an
// account: which provider, and the subject id that provider asserts.
type LinkedIdentity struct {
	Provider  Provider
	SubjectID string
	Email     string
	CreatedAt time.Time
}

// AuthRecord is the authoritative external-identity metadata for an account:
// the set of linked identities plus the legacy single "provider" column that
// predates multi-provider linking. The resolver consumes this, never the
// directory row.
type AuthRecord struct {
	Linked         []LinkedIdentity
	LegacyProvider Provider
}

// Profile is the role-specific record (customer or agent) keyed 1:1 by
// identity id. Its absence means "not yet provisioned", never an error.
type Profile struct {
	UserID      string
	Role        Role
	DisplayName string
	AvatarURL   string
	CreatedAt   time.Time
}
