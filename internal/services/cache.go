package services

import (
	"context"
	"time"
)

// Cache is the small key/value surface used for memoizing embeddings.
type Cache interface {
	Ping(ctx context.Context) error

	// Set stores a key-value pair with optional expiration
	Set(ctx context.Context, key string, value any, expiration time.Duration) error

	// Get returns "" and no error for a missing key.
	Get(ctx context.Context, key string) (string, error)

	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, keys ...string) (bool, error)
	Close() error

	// WaitForConnection waits for cache to be available with retries
	WaitForConnection(ctx context.Context) error
}
