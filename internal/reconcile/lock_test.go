package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/teedineasyteam-boop/teedin-identity/internal/directory"
	"github.com/teedineasyteam-boop/teedin-identity/internal/identity"
	"github.com/teedineasyteam-boop/teedin-identity/internal/session"
)

func TestLockHonorsLegacyProviderColumn(t *testing.T) {
	// accounts that predate multi-provider linking carry only the legacy
	// single-provider column; the lock still applies
	dir := directory.NewMemory()
	rec, err := dir.Insert(context.Background(), directory.NewIdentity{
		Email: "old@example.com", Role: identity.RoleCustomer,
	})
	require.NoError(t, err)
	dir.SetLegacyProvider(rec.ID, identity.ProviderGoogle)

	c := newController(t, dir, newFakeSessions(), &fakeBridge{})

	required, ok, err := c.checkProviderLock(context.Background(),
		&session.Session{ID: "s1", UserID: rec.ID, Provider: identity.ProviderLine})
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, identity.ProviderGoogle, required)
}

func TestLockPassesWhenNothingIsLinked(t *testing.T) {
	// no auth record at all: nothing is locked, the session proceeds
	dir := directory.NewMemory()
	rec, err := dir.Insert(context.Background(), directory.NewIdentity{
		Email: "fresh@example.com", Role: identity.RoleCustomer,
	})
	require.NoError(t, err)

	c := newController(t, dir, newFakeSessions(), &fakeBridge{})

	_, ok, err := c.checkProviderLock(context.Background(),
		&session.Session{ID: "s1", UserID: rec.ID, Provider: identity.ProviderGoogle})
	require.NoError(t, err)
	require.True(t, ok)
}
