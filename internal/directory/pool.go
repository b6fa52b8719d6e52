package directory

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Manager caches Directory connections by DSN. Concurrent callers asking for
// the same DSN share a single dial via singleflight, so a burst of requests
// during startup or after a connection drop opens exactly one pool.
type Manager struct {
	mu    sync.RWMutex
	conns map[string]Directory
	sf    singleflight.Group
}

// NewManager creates an empty connection manager.
func NewManager() *Manager {
	return &Manager{conns: make(map[string]Directory)}
}

// Get returns the Directory for dsn, dialing it on first use.
func (m *Manager) Get(ctx context.Context, dsn string) (Directory, error) {
	m.mu.RLock()
	d, ok := m.conns[dsn]
	m.mu.RUnlock()
	if ok {
		return d, nil
	}

	v, err, _ := m.sf.Do(dsn, func() (any, error) {
		m.mu.RLock()
		d, ok := m.conns[dsn]
		m.mu.RUnlock()
		if ok {
			return d, nil
		}

		d, err := NewPG(ctx, dsn)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		m.conns[dsn] = d
		m.mu.Unlock()
		return d, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Directory), nil
}

// Evict drops a cached connection so the next Get re-dials. Called when a
// pool turns out to be dead.
func (m *Manager) Evict(dsn string) {
	m.mu.Lock()
	d, ok := m.conns[dsn]
	delete(m.conns, dsn)
	m.mu.Unlock()
	if ok {
		d.Close()
	}
}

// CloseAll closes every cached connection.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for dsn, d := range m.conns {
		d.Close()
		delete(m.conns, dsn)
	}
}
