package service

import (
	"context"
	"time"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/cache"
	"portfolio_aggregator/internal/infrastructure/configloader"
)

const coinMarketCapProvider = "coinmarketcap"

// coinMarketCapAPI is satisfied by *httpclient.CoinMarketCapClient.
type coinMarketCapAPI interface {
	Enabled() bool
	GlobalMetrics(ctx context.Context) (entity.RawJSON, error)
	GlobalMetricsHistorical(ctx context.Context) (entity.RawJSON, error)
	Listings(ctx context.Context) (entity.RawJSON, error)
}

// GlobalMetricsService implements port.GlobalMetricsProvider on CoinMarketCap.
// Without an API key every method returns nil without touching the network.
type GlobalMetricsService struct {
	cmc        coinMarketCapAPI
	memo       *cache.Memoizer
	logger     port.Logger
	spotTTL    time.Duration
	historyTTL time.Duration
}

// NewGlobalMetricsService creates a new GlobalMetricsService.
func NewGlobalMetricsService(cmc coinMarketCapAPI, memo *cache.Memoizer, cfg configloader.CacheConfig, l port.Logger) *GlobalMetricsService {
	if !cmc.Enabled() {
		l.Warn("Ключ CoinMarketCap не задан, глобальные метрики CMC отключены")
	}
	return &GlobalMetricsService{
		cmc:        cmc,
		memo:       memo,
		logger:     l,
		spotTTL:    time.Duration(cfg.SpotTTLSeconds) * time.Second,
		historyTTL: time.Duration(cfg.HistoryTTLSeconds) * time.Second,
	}
}

var _ port.GlobalMetricsProvider = (*GlobalMetricsService)(nil)

func (s *GlobalMetricsService) fetch(ctx context.Context, endpoint string, ttl time.Duration, fn func(context.Context) (entity.RawJSON, error)) entity.RawJSON {
	if !s.cmc.Enabled() {
		return nil
	}
	doc, err := cache.Memoize(ctx, s.memo, cache.Key(coinMarketCapProvider, endpoint, nil), ttl, fn)
	if err != nil {
		s.logger.Warn("Запрос к CoinMarketCap завершился ошибкой", "endpoint", endpoint, "error", err)
		return nil
	}
	return doc
}

// GetGlobalMetrics returns the latest global metrics or nil.
func (s *GlobalMetricsService) GetGlobalMetrics(ctx context.Context) entity.RawJSON {
	return s.fetch(ctx, "global-metrics/quotes/latest", s.spotTTL, s.cmc.GlobalMetrics)
}

// GetGlobalMetricsHistorical returns 30 daily global metric quotes or nil.
func (s *GlobalMetricsService) GetGlobalMetricsHistorical(ctx context.Context) entity.RawJSON {
	return s.fetch(ctx, "global-metrics/quotes/historical", s.historyTTL, s.cmc.GlobalMetricsHistorical)
}

// GetListings returns the latest listings or nil.
func (s *GlobalMetricsService) GetListings(ctx context.Context) entity.RawJSON {
	return s.fetch(ctx, "cryptocurrency/listings/latest", s.spotTTL, s.cmc.Listings)
}
