package port

import (
	"context"
	"time"
)

// Cache is a TTL key-value store for memoized upstream responses.
// Get reports false for both missing and expired keys.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
}
