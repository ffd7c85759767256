package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/cache"
	"portfolio_aggregator/internal/infrastructure/configloader"
	"portfolio_aggregator/internal/infrastructure/httpclient"
)

func newMemo() *cache.Memoizer {
	return cache.NewMemoizer(cache.NewMemoryCache(time.Minute), nil, nopLogger{})
}

var testCacheCfg = configloader.CacheConfig{SpotTTLSeconds: 300, HistoryTTLSeconds: 3600}

func TestPortfolioHistory_SumsAlignedSamples(t *testing.T) {
	day1 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	day2 := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC).UnixMilli()
	oracle := &fakeOracle{charts: map[string]*entity.MarketChart{
		"bitcoin":  {Prices: [][2]float64{{float64(day2), 60000}, {float64(day1), 50000}}},
		"ethereum": {Prices: [][2]float64{{float64(day1), 3000}, {float64(day2), 3500}}},
	}}
	svc := NewMarketService(oracle, nil, nopLogger{}, 2)

	points := svc.PortfolioHistory(context.Background(), []entity.HistoryHolding{
		{CoinGeckoID: "bitcoin", Balance: 0.5},
		{CoinGeckoID: "ethereum", Balance: 2},
		{CoinGeckoID: "unknown-coin", Balance: 10},
	}, "")

	require.Len(t, points, 2)
	assert.Equal(t, "2024-03-01", points[0].Name)
	assert.Equal(t, day1, points[0].Timestamp)
	assert.InDelta(t, 31000.0, points[0].Value, 1e-9)
	assert.Equal(t, "2024-03-02", points[1].Name)
	assert.InDelta(t, 37000.0, points[1].Value, 1e-9)
}

func TestAssetHistory(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	oracle := &fakeOracle{charts: map[string]*entity.MarketChart{
		"solana": {Prices: [][2]float64{{float64(ts.UnixMilli()), 150}}},
	}}
	svc := NewMarketService(oracle, nil, nopLogger{}, 1)

	points := svc.AssetHistory(context.Background(), "solana", "7")
	require.Len(t, points, 1)
	assert.True(t, ts.Equal(points[0].Date))
	assert.InDelta(t, 150.0, points[0].Price, 1e-9)

	assert.Empty(t, svc.AssetHistory(context.Background(), "missing", ""))
	assert.NotNil(t, svc.CoinsMarkets(context.Background()))
}

func TestMarketService_CMCDisabled(t *testing.T) {
	svc := NewMarketService(&fakeOracle{}, nil, nopLogger{}, 1)
	assert.Nil(t, svc.CMCGlobalMetrics(context.Background()))
	assert.Nil(t, svc.CMCListings(context.Background()))
}

func TestTokenPriceService_EmptyIDsMakeNoCall(t *testing.T) {
	cg := &fakeCoinGecko{}
	svc := NewTokenPriceService(cg, nil, newMemo(), testCacheCfg, nopLogger{})

	assert.Empty(t, svc.GetPrices(context.Background(), nil))
	assert.Empty(t, svc.GetPrices(context.Background(), []string{""}))
	assert.Empty(t, svc.GetMarketData(context.Background(), nil))
	assert.Zero(t, cg.calls.Load())
}

func TestTokenPriceService_UnknownIDAbsentAndCached(t *testing.T) {
	cg := &fakeCoinGecko{simplePrice: map[string]map[string]float64{"bitcoin": {"usd": 60000}}}
	svc := NewTokenPriceService(cg, nil, newMemo(), testCacheCfg, nopLogger{})
	ctx := context.Background()

	prices := svc.GetPrices(ctx, []string{"bitcoin", "not-a-coin"})
	require.Contains(t, prices, "bitcoin")
	assert.InDelta(t, 60000.0, prices["bitcoin"].USD, 1e-9)
	assert.NotContains(t, prices, "not-a-coin")

	_ = svc.GetPrices(ctx, []string{"not-a-coin", "bitcoin"})
	assert.EqualValues(t, 1, cg.calls.Load(), "same id set is served from cache")
}

func TestTokenPriceService_FailureDegrades(t *testing.T) {
	cg := &fakeCoinGecko{err: &entity.UpstreamError{Provider: "coingecko", Op: "simple/price", StatusCode: 429, Err: errors.New("rate limited")}}
	svc := NewTokenPriceService(cg, nil, newMemo(), testCacheCfg, nopLogger{})
	ctx := context.Background()

	assert.Empty(t, svc.GetPrices(ctx, []string{"bitcoin"}))
	assert.Nil(t, svc.GetMarketChart(ctx, "bitcoin", "30"))
	assert.Nil(t, svc.GetGlobal(ctx))
	assert.NotNil(t, svc.GetCoinsMarkets(ctx))

	_ = svc.GetPrices(ctx, []string{"bitcoin"})
	assert.EqualValues(t, 5, cg.calls.Load(), "failures are not cached")
}

func TestTokenPriceService_DexPricesPreferStablecoinPair(t *testing.T) {
	const token = "0x3333333333333333333333333333333333333333"
	dex := &fakeDexScreener{pairs: []httpclient.PairData{
		{
			BaseToken:  httpclient.DEXToken{Address: token},
			QuoteToken: httpclient.DEXToken{Symbol: "WETH"},
			PriceUsd:   "0.40",
			Liquidity:  &httpclient.DEXLiquidity{Usd: 1_000_000},
		},
		{
			BaseToken:  httpclient.DEXToken{Address: token},
			QuoteToken: httpclient.DEXToken{Symbol: "USDC"},
			PriceUsd:   "0.50",
			Liquidity:  &httpclient.DEXLiquidity{Usd: 10_000},
		},
	}}
	svc := NewTokenPriceService(&fakeCoinGecko{}, dex, newMemo(), testCacheCfg, nopLogger{})
	network := entity.NetworkDefinition{Identifier: "ethereum", Family: entity.FamilyEVM, DEXScreenerChainID: "ethereum"}

	prices := svc.GetTokenPricesByAddress(context.Background(), network, []string{"0x3333333333333333333333333333333333333333"})
	assert.InDelta(t, 0.5, prices[token], 1e-9)

	assert.Empty(t, svc.GetTokenPricesByAddress(context.Background(), entity.NetworkDefinition{Identifier: "bitcoin"}, []string{"x"}))
	assert.EqualValues(t, 1, dex.calls.Load())
}

func TestGlobalMetricsService(t *testing.T) {
	disabled := &fakeCMC{}
	svc := NewGlobalMetricsService(disabled, newMemo(), testCacheCfg, nopLogger{})
	assert.Nil(t, svc.GetGlobalMetrics(context.Background()))
	assert.Zero(t, disabled.calls.Load())

	enabled := &fakeCMC{enabled: true}
	svc = NewGlobalMetricsService(enabled, newMemo(), testCacheCfg, nopLogger{})
	assert.JSONEq(t, `{"data":{}}`, string(svc.GetGlobalMetrics(context.Background())))
	assert.Nil(t, svc.GetGlobalMetricsHistorical(context.Background()))
	assert.JSONEq(t, `[]`, string(svc.GetListings(context.Background())))
}
