package port

import (
	"context"

	"portfolio_aggregator/internal/domain/entity"
)

// PortfolioService serves the per-(chain, address) aggregation API.
type PortfolioService interface {
	GetAssets(ctx context.Context, chain, address string) ([]entity.Asset, error)
	GetTransactions(ctx context.Context, chain, address string, limit, offset int) ([]entity.Transaction, error)
	GetNfts(ctx context.Context, chain, address string) ([]entity.Nft, error)
	VerifyContract(ctx context.Context, chain, address string) (entity.ContractVerification, error)

	// GetPortfolioAssets aggregates every registered wallet of a user.
	// Per-wallet failures are reported in the second return value, not as an error.
	GetPortfolioAssets(ctx context.Context, userID string) ([]entity.Asset, []entity.PortfolioError, error)
}

// WalletService serves wallet management.
type WalletService interface {
	List(ctx context.Context, userID string) ([]entity.Wallet, error)
	Add(ctx context.Context, userID, name, address, chain string) (entity.Wallet, error)
	Delete(ctx context.Context, userID, id string) error
}

// MarketService serves market data pass-through and portfolio history.
type MarketService interface {
	CoinDetails(ctx context.Context, id string) entity.RawJSON
	MarketChart(ctx context.Context, id, days string) *entity.MarketChart
	Global(ctx context.Context) entity.RawJSON
	CoinsMarkets(ctx context.Context) []entity.MarketEntry
	Trending(ctx context.Context) entity.RawJSON
	CompanyTreasury(ctx context.Context, id string) entity.RawJSON
	CMCGlobalMetrics(ctx context.Context) entity.RawJSON
	CMCGlobalMetricsHistorical(ctx context.Context) entity.RawJSON
	CMCListings(ctx context.Context) entity.RawJSON
	PortfolioHistory(ctx context.Context, holdings []entity.HistoryHolding, days string) []entity.ValuePoint
	AssetHistory(ctx context.Context, id, days string) []entity.PricePoint
}
