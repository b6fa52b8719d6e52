// Package cache provides the key/value store used for short-lived auth
// artifacts: bridge tokens, login state and rate-limit windows.
//
// Two backends:
//   - memory (in-process, dev and tests)
//   - redis (production)
package cache

import (
	"context"
	"errors"
	"time"
)

// Client is the cache contract shared by both backends.
type Client interface {
	// Get returns a value or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// GetDel atomically reads and removes a value. Returns ErrNotFound when
	// the key is absent. This is what makes one-shot tokens one-shot.
	GetDel(ctx context.Context, key string) (string, error)

	// Set stores a value. A ttl of 0 means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes a key. Removing a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	// Close releases the backend.
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Driver   string // "memory" | "redis"
	Addr     string
	Password string
	DB       int
	Prefix   string
}

var (
	ErrNotFound      = errors.New("cache: key not found")
	ErrUnknownDriver = errors.New("cache: unknown driver")
)

// New builds a Client from config.
func New(cfg Config) (Client, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemory(cfg.Prefix), nil
	case "redis":
		return NewRedis(cfg)
	default:
		return nil, ErrUnknownDriver
	}
}
