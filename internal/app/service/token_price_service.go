package service

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/cache"
	"portfolio_aggregator/internal/infrastructure/configloader"
	"portfolio_aggregator/internal/infrastructure/httpclient"
	"portfolio_aggregator/internal/pkg/utils"

	"golang.org/x/sync/errgroup"
)

const (
	stablecoinUSDCSymbol = "USDC"
	stablecoinUSDTSymbol = "USDT"
	stablecoinDAISymbol  = "DAI"

	coinGeckoProvider   = "coingecko"
	dexScreenerProvider = "dexscreener"
	dexFetchConcurrency = 4
)

var stablecoinSymbols = map[string]struct{}{
	stablecoinUSDCSymbol: {},
	stablecoinUSDTSymbol: {},
	stablecoinDAISymbol:  {},
}

// coinGeckoAPI is satisfied by *httpclient.CoinGeckoClient.
type coinGeckoAPI interface {
	SimplePrice(ctx context.Context, ids []string) (map[string]map[string]float64, error)
	Markets(ctx context.Context, ids []string) ([]entity.MarketEntry, error)
	TopMarkets(ctx context.Context) ([]entity.MarketEntry, error)
	MarketChart(ctx context.Context, id, days string) (*entity.MarketChart, error)
	CoinDetails(ctx context.Context, id string) (entity.RawJSON, error)
	Global(ctx context.Context) (entity.RawJSON, error)
	Trending(ctx context.Context) (entity.RawJSON, error)
	CompanyTreasury(ctx context.Context, id string) (entity.RawJSON, error)
}

// dexScreenerAPI is satisfied by *httpclient.DEXScreenerClient.
type dexScreenerAPI interface {
	GetTokenPairsByAddresses(ctx context.Context, dexscreenerChainID string, tokenAddresses []string) ([]httpclient.PairData, error)
	MaxTokensPerRequest() int
}

// TokenPriceService implements port.PriceOracle on CoinGecko and port.TokenAddressPricer
// on DEX Screener. Every call goes through the cache; failures are logged and
// degrade to empty results.
type TokenPriceService struct {
	coingecko   coinGeckoAPI
	dexscreener dexScreenerAPI // nil disables address pricing
	memo        *cache.Memoizer
	logger      port.Logger
	spotTTL     time.Duration
	historyTTL  time.Duration
}

// NewTokenPriceService creates a new TokenPriceService. dex may be nil.
func NewTokenPriceService(cg coinGeckoAPI, dex dexScreenerAPI, memo *cache.Memoizer, cfg configloader.CacheConfig, l port.Logger) *TokenPriceService {
	s := &TokenPriceService{
		coingecko:   cg,
		dexscreener: dex,
		memo:        memo,
		logger:      l,
		spotTTL:     time.Duration(cfg.SpotTTLSeconds) * time.Second,
		historyTTL:  time.Duration(cfg.HistoryTTLSeconds) * time.Second,
	}
	l.Info("TokenPriceService успешно инициализирован.", "spotTTL", s.spotTTL, "historyTTL", s.historyTTL)
	return s
}

var (
	_ port.PriceOracle        = (*TokenPriceService)(nil)
	_ port.TokenAddressPricer = (*TokenPriceService)(nil)
)

// GetPrices returns USD quotes for the known ids. An empty id set makes no upstream call.
func (s *TokenPriceService) GetPrices(ctx context.Context, ids []string) map[string]entity.PriceQuote {
	result := make(map[string]entity.PriceQuote)
	ids = utils.SortedUnique(ids)
	if len(ids) == 0 {
		return result
	}

	key := cache.Key(coinGeckoProvider, "simple/price", map[string]string{"ids": strings.Join(ids, ",")})
	raw, err := cache.Memoize(ctx, s.memo, key, s.spotTTL, func(ctx context.Context) (map[string]map[string]float64, error) {
		return s.coingecko.SimplePrice(ctx, ids)
	})
	if err != nil {
		s.logger.Warn("Не удалось получить цены, продолжаем без них", "ids", ids, "error", err)
		return result
	}

	for _, id := range ids {
		if quote, ok := raw[id]["usd"]; ok {
			result[id] = entity.PriceQuote{USD: quote}
		}
	}
	return result
}

// GetMarketData returns market rows for the ids; unknown ids are absent.
func (s *TokenPriceService) GetMarketData(ctx context.Context, ids []string) []entity.MarketEntry {
	ids = utils.SortedUnique(ids)
	if len(ids) == 0 {
		return []entity.MarketEntry{}
	}
	key := cache.Key(coinGeckoProvider, "coins/markets", map[string]string{"ids": strings.Join(ids, ","), "sparkline": "true"})
	rows, err := cache.Memoize(ctx, s.memo, key, s.spotTTL, func(ctx context.Context) ([]entity.MarketEntry, error) {
		return s.coingecko.Markets(ctx, ids)
	})
	if err != nil {
		s.logger.Warn("Не удалось получить рыночные данные", "ids", ids, "error", err)
		return []entity.MarketEntry{}
	}
	if rows == nil {
		rows = []entity.MarketEntry{}
	}
	return rows
}

// GetMarketChart returns the price history of one coin or nil.
func (s *TokenPriceService) GetMarketChart(ctx context.Context, id string, days string) *entity.MarketChart {
	if id == "" {
		return nil
	}
	key := cache.Key(coinGeckoProvider, "coins/market_chart", map[string]string{"id": id, "days": days})
	chart, err := cache.Memoize(ctx, s.memo, key, s.historyTTL, func(ctx context.Context) (*entity.MarketChart, error) {
		return s.coingecko.MarketChart(ctx, id, days)
	})
	if err != nil {
		s.logger.Warn("Не удалось получить историю цены", "id", id, "days", days, "error", err)
		return nil
	}
	return chart
}

func (s *TokenPriceService) rawDocument(ctx context.Context, endpoint string, params map[string]string, ttl time.Duration, fetch func(context.Context) (entity.RawJSON, error)) entity.RawJSON {
	doc, err := cache.Memoize(ctx, s.memo, cache.Key(coinGeckoProvider, endpoint, params), ttl, fetch)
	if err != nil {
		s.logger.Warn("Запрос к CoinGecko завершился ошибкой", "endpoint", endpoint, "error", err)
		return nil
	}
	return doc
}

// GetCoinDetails returns the coin document or nil.
func (s *TokenPriceService) GetCoinDetails(ctx context.Context, id string) entity.RawJSON {
	return s.rawDocument(ctx, "coins", map[string]string{"id": id}, s.historyTTL, func(ctx context.Context) (entity.RawJSON, error) {
		return s.coingecko.CoinDetails(ctx, id)
	})
}

// GetGlobal returns global market metrics or nil.
func (s *TokenPriceService) GetGlobal(ctx context.Context) entity.RawJSON {
	return s.rawDocument(ctx, "global", nil, s.spotTTL, s.coingecko.Global)
}

// GetTrending returns trending coins or nil.
func (s *TokenPriceService) GetTrending(ctx context.Context) entity.RawJSON {
	return s.rawDocument(ctx, "search/trending", nil, s.spotTTL, s.coingecko.Trending)
}

// GetCompanyTreasury returns public company holdings of a coin or nil.
func (s *TokenPriceService) GetCompanyTreasury(ctx context.Context, id string) entity.RawJSON {
	return s.rawDocument(ctx, "companies/public_treasury", map[string]string{"id": id}, s.historyTTL, func(ctx context.Context) (entity.RawJSON, error) {
		return s.coingecko.CompanyTreasury(ctx, id)
	})
}

// GetCoinsMarkets returns the top coins by market cap.
func (s *TokenPriceService) GetCoinsMarkets(ctx context.Context) []entity.MarketEntry {
	rows, err := cache.Memoize(ctx, s.memo, cache.Key(coinGeckoProvider, "coins/markets", map[string]string{"top": "100"}), s.spotTTL, s.coingecko.TopMarkets)
	if err != nil {
		s.logger.Warn("Не удалось получить список рынков", "error", err)
		return []entity.MarketEntry{}
	}
	if rows == nil {
		rows = []entity.MarketEntry{}
	}
	return rows
}

// GetTokenPricesByAddress prices token contracts via DEX Screener pairs.
// The result is keyed by lower-cased address; unpriced tokens are absent.
func (s *TokenPriceService) GetTokenPricesByAddress(ctx context.Context, network entity.NetworkDefinition, addresses []string) map[string]float64 {
	result := make(map[string]float64)
	if s.dexscreener == nil || network.DEXScreenerChainID == "" || len(addresses) == 0 {
		return result
	}

	normalized := make([]string, 0, len(addresses))
	for _, a := range addresses {
		if network.IsEVM() {
			a = strings.ToLower(a)
		}
		normalized = append(normalized, a)
	}
	batches := utils.BatchStrings(utils.SortedUnique(normalized), s.dexscreener.MaxTokensPerRequest())

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(dexFetchConcurrency)
	for _, batch := range batches {
		g.Go(func() error {
			key := cache.Key(dexScreenerProvider, "tokens/v1", map[string]string{
				"chain":     network.DEXScreenerChainID,
				"addresses": strings.Join(batch, ","),
			})
			pairs, err := cache.Memoize(gctx, s.memo, key, s.spotTTL, func(ctx context.Context) ([]httpclient.PairData, error) {
				return s.dexscreener.GetTokenPairsByAddresses(ctx, network.DEXScreenerChainID, batch)
			})
			if err != nil {
				s.logger.Warn("Failed to get token pairs from DEXScreener",
					"dexScreenerID", network.DEXScreenerChainID,
					"token_addresses_count", len(batch),
					"error", err)
				return nil
			}

			for _, address := range batch {
				priceStr := s.selectBestPriceFromPairs(pairs, address)
				if priceStr == "" {
					continue
				}
				price, errConv := strconv.ParseFloat(priceStr, 64)
				if errConv != nil || price <= 0 {
					s.logger.Warn("Failed to parse token price from DEXScreener",
						"tokenAddress", address, "price_string", priceStr, "error", errConv)
					continue
				}
				mu.Lock()
				result[strings.ToLower(address)] = price
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return result
}

// selectBestPriceFromPairs prefers the deepest stablecoin-quoted pair, then the deepest pair overall.
func (s *TokenPriceService) selectBestPriceFromPairs(pairs []httpclient.PairData, baseTokenAddress string) string {
	var bestOverallPair *httpclient.PairData
	var bestStablecoinPair *httpclient.PairData

	for i := range pairs {
		pair := &pairs[i]
		if !strings.EqualFold(pair.BaseToken.Address, baseTokenAddress) {
			continue
		}
		if pair.PriceUsd == "" || pair.PriceUsd == "0" {
			continue
		}

		if _, isStablecoin := stablecoinSymbols[strings.ToUpper(pair.QuoteToken.Symbol)]; isStablecoin {
			if bestStablecoinPair == nil || pair.LiquidityUSD() > bestStablecoinPair.LiquidityUSD() {
				bestStablecoinPair = pair
			}
		}
		if bestOverallPair == nil || pair.LiquidityUSD() > bestOverallPair.LiquidityUSD() {
			bestOverallPair = pair
		}
	}

	if bestStablecoinPair != nil {
		s.logger.Debug("Selected best price from stablecoin pair",
			"baseTokenAddress", baseTokenAddress,
			"pairAddress", bestStablecoinPair.PairAddress,
			"priceUsd", bestStablecoinPair.PriceUsd,
			"liquidityUsd", bestStablecoinPair.LiquidityUSD())
		return bestStablecoinPair.PriceUsd
	}
	if bestOverallPair != nil {
		s.logger.Debug("Selected best price from overall highest liquidity pair",
			"baseTokenAddress", baseTokenAddress,
			"pairAddress", bestOverallPair.PairAddress,
			"priceUsd", bestOverallPair.PriceUsd,
			"liquidityUsd", bestOverallPair.LiquidityUSD())
		return bestOverallPair.PriceUsd
	}
	return ""
}
