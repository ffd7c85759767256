package postgres

import (
	"context"
	"fmt"
	"time"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
)

// CacheStore implements port.Cache on the api_cache table.
// Expired rows are invisible to Get and removed by Sweep.
type CacheStore struct {
	pool *Pool
	now  func() time.Time
}

// NewCacheStore creates a new PostgreSQL-backed cache.
func NewCacheStore(pool *Pool) *CacheStore {
	return &CacheStore{pool: pool, now: time.Now}
}

var _ port.Cache = (*CacheStore)(nil)

// Get returns data for a live key. Database errors are reported as a miss.
func (s *CacheStore) Get(ctx context.Context, key string) ([]byte, bool) {
	entry := entity.CacheEntry{Key: key}
	err := s.pool.QueryRow(ctx,
		`SELECT data, created_at, expires_at FROM api_cache WHERE key = $1`,
		key,
	).Scan(&entry.Data, &entry.CreatedAt, &entry.ExpiresAt)
	if err != nil || entry.Expired(s.now().UTC()) {
		return nil, false
	}
	return entry.Data, true
}

// Set stores data under key for ttl, replacing any previous entry.
func (s *CacheStore) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	now := s.now().UTC()
	query := `
		INSERT INTO api_cache (key, data, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE SET
			data = EXCLUDED.data,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at
	`
	if _, err := s.pool.Exec(ctx, query, key, data, now, now.Add(ttl)); err != nil {
		return fmt.Errorf("set cache entry: %w", err)
	}
	return nil
}

// Sweep deletes expired rows and returns how many were removed.
func (s *CacheStore) Sweep(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM api_cache WHERE expires_at <= $1`, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("sweep cache: %w", err)
	}
	return tag.RowsAffected(), nil
}
