package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryGetSet(t *testing.T) {
	c := NewMemory("t")
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", got)

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryGetDelIsOneShot(t *testing.T) {
	c := NewMemory("")
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "once", "payload", time.Minute))

	got, err := c.GetDel(ctx, "once")
	require.NoError(t, err)
	require.Equal(t, "payload", got)

	_, err = c.GetDel(ctx, "once")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryTTLExpiry(t *testing.T) {
	c := NewMemory("")
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", "v", 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, err := c.Get(ctx, "short")
	require.ErrorIs(t, err, ErrNotFound)
}
