package port

import (
	"context"

	"portfolio_aggregator/internal/domain/entity"
)

// TokenProvider maps token metadata onto the price oracle's identifier space.
type TokenProvider interface {
	// CoinGeckoID resolves a ticker symbol, case-insensitively.
	CoinGeckoID(symbol string) (string, bool)

	// TokenByAddress returns static metadata for a contract address or mint on a chain.
	TokenByAddress(chain, address string) (entity.TokenInfo, bool)
}

// PriceOracle serves USD prices and market data. Every method degrades to an empty
// or nil result on upstream failure; none of them return errors.
type PriceOracle interface {
	GetPrices(ctx context.Context, ids []string) map[string]entity.PriceQuote
	GetMarketData(ctx context.Context, ids []string) []entity.MarketEntry
	GetMarketChart(ctx context.Context, id string, days string) *entity.MarketChart
	GetCoinDetails(ctx context.Context, id string) entity.RawJSON
	GetGlobal(ctx context.Context) entity.RawJSON
	GetCoinsMarkets(ctx context.Context) []entity.MarketEntry
	GetTrending(ctx context.Context) entity.RawJSON
	GetCompanyTreasury(ctx context.Context, id string) entity.RawJSON
}

// TokenAddressPricer is an optional secondary price source keyed by contract address.
type TokenAddressPricer interface {
	GetTokenPricesByAddress(ctx context.Context, network entity.NetworkDefinition, addresses []string) map[string]float64
}

// GlobalMetricsProvider serves secondary market metrics. Without credentials it returns nil.
type GlobalMetricsProvider interface {
	GetGlobalMetrics(ctx context.Context) entity.RawJSON
	GetGlobalMetricsHistorical(ctx context.Context) entity.RawJSON
	GetListings(ctx context.Context) entity.RawJSON
}
