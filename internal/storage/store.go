package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key does not exist or has expired
var ErrNotFound = errors.New("storage: key not found")

// NoTTL is reported by TTL for keys that are missing or carry no expiry
const NoTTL time.Duration = -1

// Store is the counter store contract used by the rate limiter and the CSRF manager.
// Implementations must make Incr atomic for a single key.
type Store interface {
	// Increments the integer value at key, creating it at 1 when absent
	Incr(ctx context.Context, key string) (int64, error)

	// Sets the expiry only when the key exists and has none yet
	ExpireIfUnset(ctx context.Context, key string, ttl time.Duration) error

	// Returns the remaining time to live, or NoTTL
	TTL(ctx context.Context, key string) (time.Duration, error)

	Exists(ctx context.Context, key string) (bool, error)

	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error

	// Returns ErrNotFound for missing keys
	Get(ctx context.Context, key string) (string, error)

	Del(ctx context.Context, key string) error
}
