package cache

import (
	"context"
	"time"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/sync/singleflight"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/infrastructure/metrics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Memoizer puts a port.Cache in front of upstream calls.
// Concurrent misses for the same key share one fetch. The shared fetch runs on a
// context that keeps the first caller's values but not its cancellation, so one
// caller going away does not fail the others waiting on the key.
type Memoizer struct {
	cache   port.Cache
	metrics *metrics.Metrics
	logger  port.Logger
	group   singleflight.Group
}

// NewMemoizer creates a memoizer. metrics may be nil.
func NewMemoizer(c port.Cache, m *metrics.Metrics, logger port.Logger) *Memoizer {
	return &Memoizer{cache: c, metrics: m, logger: logger}
}

// Memoize returns the cached value under key or calls fetch and caches its result for ttl.
// Fetch errors are returned as is and nothing is cached. Undecodable entries count as a miss.
func Memoize[T any](ctx context.Context, m *Memoizer, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	if data, ok := m.cache.Get(ctx, key); ok {
		var cached T
		if err := json.Unmarshal(data, &cached); err == nil {
			m.metrics.ObserveCache(true)
			return cached, nil
		}
		m.logger.Warn("Не удалось декодировать запись кэша, запрашиваем заново", "key", key)
	}
	m.metrics.ObserveCache(false)

	v, err, _ := m.group.Do(key, func() (any, error) {
		fctx := context.WithoutCancel(ctx)
		value, err := fetch(fctx)
		if err != nil {
			return value, err
		}
		data, err := json.Marshal(value)
		if err != nil {
			m.logger.Warn("Не удалось сериализовать значение для кэша", "key", key, "error", err)
			return value, nil
		}
		if err := m.cache.Set(fctx, key, data, ttl); err != nil {
			m.logger.Warn("Не удалось записать значение в кэш", "key", key, "error", err)
		}
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	out, _ := v.(T)
	return out, nil
}
