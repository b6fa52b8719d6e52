package directory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// closableDirectory records Close so eviction can be observed.
type closableDirectory struct {
	*MemoryDirectory
	closed bool
}

func (c *closableDirectory) Close() { c.closed = true }

func TestManagerReturnsCachedConnection(t *testing.T) {
	m := NewManager()
	d := &closableDirectory{MemoryDirectory: NewMemory()}
	m.conns["dsn-a"] = d

	got, err := m.Get(context.Background(), "dsn-a")
	require.NoError(t, err)
	require.Same(t, d, got.(*closableDirectory))
}

func TestManagerCachedConnectionSharedAcrossCallers(t *testing.T) {
	m := NewManager()
	d := &closableDirectory{MemoryDirectory: NewMemory()}
	m.conns["dsn-a"] = d

	var wg sync.WaitGroup
	results := make([]Directory, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, _ := m.Get(context.Background(), "dsn-a")
			results[i] = got
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		require.Same(t, d, got.(*closableDirectory))
	}
}

func TestManagerEvictClosesConnection(t *testing.T) {
	m := NewManager()
	d := &closableDirectory{MemoryDirectory: NewMemory()}
	m.conns["dsn-a"] = d

	m.Evict("dsn-a")
	require.True(t, d.closed)
	require.NotContains(t, m.conns, "dsn-a")

	// evicting an unknown dsn is a no-op
	m.Evict("dsn-b")
}

func TestManagerCloseAll(t *testing.T) {
	m := NewManager()
	a := &closableDirectory{MemoryDirectory: NewMemory()}
	b := &closableDirectory{MemoryDirectory: NewMemory()}
	m.conns["dsn-a"] = a
	m.conns["dsn-b"] = b

	m.CloseAll()
	require.True(t, a.closed)
	require.True(t, b.closed)
	require.Empty(t, m.conns)
}
