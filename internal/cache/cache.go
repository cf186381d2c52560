package cache

import (
	"context"
	"errors"
	"time"
)

// Cache stores opaque values under string keys
type Cache interface {
	// Get retrieves a value, returning ErrCacheMiss when absent or expired
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value; a zero ttl uses the backend default
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value
	Delete(ctx context.Context, key string) error

	// Clear removes every value under the backend's prefix
	Clear(ctx context.Context) error

	// Exists checks if a key is present
	Exists(ctx context.Context, key string) (bool, error)

	// Close releases backend resources
	Close() error
}

// Config holds settings shared by cache backends
type Config struct {
	// DefaultTTL applies when Set is called with a zero ttl. Negative values
	// store without expiry.
	DefaultTTL time.Duration
	// Prefix is prepended to all keys
	Prefix string
}

// DefaultConfig returns the default cache settings
func DefaultConfig() Config {
	return Config{
		DefaultTTL: time.Hour,
		Prefix:     "bidsflow:",
	}
}

// ErrCacheMiss is returned when a key is not in the cache
type ErrCacheMiss struct {
	Key string
}

func (e ErrCacheMiss) Error() string {
	return "cache miss: " + e.Key
}

// IsCacheMiss checks if an error is a cache miss
func IsCacheMiss(err error) bool {
	var miss ErrCacheMiss
	return errors.As(err, &miss)
}
