package httpclient

import (
	"context"
	"net/url"
	"strings"

	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/configloader"
	"portfolio_aggregator/internal/infrastructure/metrics"

	"go.uber.org/zap"
)

// CoinGeckoClient is a thin typed wrapper over the CoinGecko v3 API. It does no caching;
// the price oracle service memoizes its calls.
type CoinGeckoClient struct {
	http       *JSONClient
	apiKey     string
	vsCurrency string
}

// NewCoinGeckoClient creates a new CoinGeckoClient.
func NewCoinGeckoClient(cfg configloader.CoinGeckoConfig, logger *zap.Logger, m *metrics.Metrics) *CoinGeckoClient {
	return &CoinGeckoClient{
		http: NewJSONClient(Options{
			Provider:  "coingecko",
			BaseURL:   cfg.BaseURL,
			Timeout:   cfg.RequestTimeout(),
			RateLimit: cfg.RateLimitPerSecond,
			Burst:     cfg.Burst,
			Logger:    logger,
			Metrics:   m,
		}),
		apiKey:     cfg.APIKey,
		vsCurrency: cfg.VsCurrency,
	}
}

func (c *CoinGeckoClient) query(kv ...string) url.Values {
	q := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		q.Set(kv[i], kv[i+1])
	}
	if c.apiKey != "" {
		q.Set("x_cg_demo_api_key", c.apiKey)
	}
	return q
}

// SimplePrice returns {id: {usd: price}} for the given ids in one call.
func (c *CoinGeckoClient) SimplePrice(ctx context.Context, ids []string) (map[string]map[string]float64, error) {
	var out map[string]map[string]float64
	err := c.http.GetJSON(ctx, "simple/price", "/simple/price",
		c.query("ids", strings.Join(ids, ","), "vs_currencies", c.vsCurrency), &out)
	return out, err
}

// Markets returns market rows with a 7-day sparkline for the given ids.
func (c *CoinGeckoClient) Markets(ctx context.Context, ids []string) ([]entity.MarketEntry, error) {
	var out []entity.MarketEntry
	err := c.http.GetJSON(ctx, "coins/markets", "/coins/markets",
		c.query("vs_currency", c.vsCurrency, "ids", strings.Join(ids, ","), "sparkline", "true"), &out)
	return out, err
}

// TopMarkets returns the top 100 coins by market cap.
func (c *CoinGeckoClient) TopMarkets(ctx context.Context) ([]entity.MarketEntry, error) {
	var out []entity.MarketEntry
	err := c.http.GetJSON(ctx, "coins/markets", "/coins/markets",
		c.query(
			"vs_currency", c.vsCurrency,
			"order", "market_cap_desc",
			"per_page", "100",
			"page", "1",
			"sparkline", "true",
			"price_change_percentage", "7d",
		), &out)
	return out, err
}

// MarketChart returns price, market cap and volume series for the last days.
func (c *CoinGeckoClient) MarketChart(ctx context.Context, id, days string) (*entity.MarketChart, error) {
	var out entity.MarketChart
	if err := c.http.GetJSON(ctx, "coins/market_chart", "/coins/"+url.PathEscape(id)+"/market_chart",
		c.query("vs_currency", c.vsCurrency, "days", days), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CoinDetails returns the full coin document.
func (c *CoinGeckoClient) CoinDetails(ctx context.Context, id string) (entity.RawJSON, error) {
	var out entity.RawJSON
	err := c.http.GetJSON(ctx, "coins", "/coins/"+url.PathEscape(id), c.query(), &out)
	return out, err
}

// Global returns global market metrics.
func (c *CoinGeckoClient) Global(ctx context.Context) (entity.RawJSON, error) {
	var out entity.RawJSON
	err := c.http.GetJSON(ctx, "global", "/global", c.query(), &out)
	return out, err
}

// Trending returns trending search results.
func (c *CoinGeckoClient) Trending(ctx context.Context) (entity.RawJSON, error) {
	var out entity.RawJSON
	err := c.http.GetJSON(ctx, "search/trending", "/search/trending", c.query(), &out)
	return out, err
}

// CompanyTreasury returns public company holdings of a coin.
func (c *CoinGeckoClient) CompanyTreasury(ctx context.Context, id string) (entity.RawJSON, error) {
	var out entity.RawJSON
	err := c.http.GetJSON(ctx, "companies/public_treasury", "/companies/public_treasury/"+url.PathEscape(id), c.query(), &out)
	return out, err
}
