package client

import (
	"context"
	"math/big"
	"time"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/cache"
)

// cachedAdapter memoizes the balance and NFT reads of an adapter for a short TTL.
// Transaction history is not cached here; it is persisted by the portfolio service.
type cachedAdapter struct {
	port.ChainAdapter
	memo *cache.Memoizer
	ttl  time.Duration
}

func newCachedAdapter(inner port.ChainAdapter, memo *cache.Memoizer, ttl time.Duration) port.ChainAdapter {
	return &cachedAdapter{ChainAdapter: inner, memo: memo, ttl: ttl}
}

func (a *cachedAdapter) key(endpoint, address string) string {
	return cache.Key("adapter:"+a.Network().Identifier, endpoint, map[string]string{"address": address})
}

func (a *cachedAdapter) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	return cache.Memoize(ctx, a.memo, a.key("balance", address), a.ttl, func(ctx context.Context) (*big.Int, error) {
		return a.ChainAdapter.GetBalance(ctx, address)
	})
}

func (a *cachedAdapter) GetTokenBalances(ctx context.Context, address string) ([]entity.TokenBalance, error) {
	return cache.Memoize(ctx, a.memo, a.key("tokens", address), a.ttl, func(ctx context.Context) ([]entity.TokenBalance, error) {
		return a.ChainAdapter.GetTokenBalances(ctx, address)
	})
}

func (a *cachedAdapter) GetNfts(ctx context.Context, address string) ([]entity.Nft, error) {
	return cache.Memoize(ctx, a.memo, a.key("nfts", address), a.ttl, func(ctx context.Context) ([]entity.Nft, error) {
		return a.ChainAdapter.GetNfts(ctx, address)
	})
}
