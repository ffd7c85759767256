package httpclient

import (
	"context"
	"net/url"

	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/configloader"
	"portfolio_aggregator/internal/infrastructure/metrics"

	"go.uber.org/zap"
)

// CoinMarketCapClient talks to the CoinMarketCap Pro API. Without an API key every
// method returns nil, nil so the enrichment degrades instead of failing.
type CoinMarketCapClient struct {
	http    *JSONClient
	enabled bool
}

// NewCoinMarketCapClient creates a new CoinMarketCapClient.
func NewCoinMarketCapClient(cfg configloader.UpstreamConfig, logger *zap.Logger, m *metrics.Metrics) *CoinMarketCapClient {
	return &CoinMarketCapClient{
		http: NewJSONClient(Options{
			Provider:  "coinmarketcap",
			BaseURL:   cfg.BaseURL,
			Timeout:   cfg.RequestTimeout(),
			RateLimit: cfg.RateLimitPerSecond,
			Burst:     cfg.Burst,
			Headers:   map[string]string{"X-CMC_PRO_API_KEY": cfg.APIKey},
			Logger:    logger,
			Metrics:   m,
		}),
		enabled: cfg.APIKey != "",
	}
}

// Enabled reports whether an API key is configured.
func (c *CoinMarketCapClient) Enabled() bool {
	return c.enabled
}

func (c *CoinMarketCapClient) get(ctx context.Context, op, path string, q url.Values) (entity.RawJSON, error) {
	if !c.enabled {
		return nil, nil
	}
	var out entity.RawJSON
	if err := c.http.GetJSON(ctx, op, path, q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GlobalMetrics returns the latest global market metrics.
func (c *CoinMarketCapClient) GlobalMetrics(ctx context.Context) (entity.RawJSON, error) {
	return c.get(ctx, "global-metrics/latest", "/v1/global-metrics/quotes/latest", nil)
}

// GlobalMetricsHistorical returns daily global metrics for the last 30 days.
func (c *CoinMarketCapClient) GlobalMetricsHistorical(ctx context.Context) (entity.RawJSON, error) {
	return c.get(ctx, "global-metrics/historical", "/v1/global-metrics/quotes/historical",
		url.Values{"interval": {"daily"}, "count": {"30"}})
}

// Listings returns the latest top listings.
func (c *CoinMarketCapClient) Listings(ctx context.Context) (entity.RawJSON, error) {
	return c.get(ctx, "listings/latest", "/v1/cryptocurrency/listings/latest",
		url.Values{"start": {"1"}, "limit": {"100"}, "convert": {"USD"}})
}
