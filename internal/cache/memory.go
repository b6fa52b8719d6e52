package cache

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryClient implements Client on patrickmn/go-cache. go-cache has no
// atomic read-and-delete, so GetDel serializes through a mutex; fine for a
// single process, which is the only place this backend runs.
type memoryClient struct {
	prefix string
	mu     sync.Mutex
	store  *gocache.Cache
}

// NewMemory creates an in-process cache client.
func NewMemory(prefix string) Client {
	return &memoryClient{
		prefix: prefix,
		store:  gocache.New(gocache.NoExpiration, time.Minute),
	}
}

func (c *memoryClient) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}

func (c *memoryClient) Get(ctx context.Context, key string) (string, error) {
	v, ok := c.store.Get(c.key(key))
	if !ok {
		return "", ErrNotFound
	}
	return v.(string), nil
}

func (c *memoryClient) GetDel(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := c.key(key)
	v, ok := c.store.Get(k)
	if !ok {
		return "", ErrNotFound
	}
	c.store.Delete(k)
	return v.(string), nil
}

func (c *memoryClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	d := ttl
	if d == 0 {
		d = gocache.NoExpiration
	}
	c.store.Set(c.key(key), value, d)
	return nil
}

func (c *memoryClient) Delete(ctx context.Context, key string) error {
	c.store.Delete(c.key(key))
	return nil
}

func (c *memoryClient) Ping(ctx context.Context) error { return nil }

func (c *memoryClient) Close() error { return nil }
