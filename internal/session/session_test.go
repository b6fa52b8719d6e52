package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/teedineasyteam-boop/teedin-identity/internal/cache"
	"github.com/teedineasyteam-boop/teedin-identity/internal/identity"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(Config{
		Issuer:    "https://id.teedin.test",
		Secret:    []byte("test-secret-0123456789"),
		AccessTTL: time.Hour,
	}, cache.NewMemory("t"))
}

func TestIssueAndVerify(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	s, err := m.Issue(ctx, "user-1", identity.ProviderLine)
	require.NoError(t, err)
	require.NotEmpty(t, s.AccessToken)
	require.NotEmpty(t, s.RefreshToken)

	got, err := m.Verify(ctx, s.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "user-1", got.UserID)
	require.Equal(t, identity.ProviderLine, got.Provider, "provider tag survives the round trip")
}

func TestVerifyRejectsRefreshTokenAsAccess(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	s, err := m.Issue(ctx, "user-1", identity.ProviderGoogle)
	require.NoError(t, err)

	_, err = m.Verify(ctx, s.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsForeignIssuer(t *testing.T) {
	other := NewManager(Config{
		Issuer: "https://other.test",
		Secret: []byte("test-secret-0123456789"),
	}, nil)
	m := newTestManager(t)
	ctx := context.Background()

	s, err := other.Issue(ctx, "user-1", identity.ProviderGoogle)
	require.NoError(t, err)

	_, err = m.Verify(ctx, s.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestInvalidateKillsSession(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	s, err := m.Issue(ctx, "user-1", identity.ProviderGoogle)
	require.NoError(t, err)

	require.NoError(t, m.Invalidate(ctx, s))

	_, err = m.Verify(ctx, s.AccessToken)
	require.ErrorIs(t, err, ErrRevoked)
}

func TestVerifyGarbage(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Verify(context.Background(), "not-a-jwt")
	require.ErrorIs(t, err, ErrInvalidToken)
}
