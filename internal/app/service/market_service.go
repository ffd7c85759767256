package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"

	"golang.org/x/sync/errgroup"
)

const defaultHistoryDays = "30"

// MarketServiceImpl implements port.MarketService on top of the price oracle
// and the optional secondary metrics provider.
type MarketServiceImpl struct {
	oracle        port.PriceOracle
	globalMetrics port.GlobalMetricsProvider // optional
	logger        port.Logger
	maxConcurrent int
}

// NewMarketService creates a new instance of MarketServiceImpl.
func NewMarketService(oracle port.PriceOracle, gm port.GlobalMetricsProvider, l port.Logger, maxConcurrent int) *MarketServiceImpl {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &MarketServiceImpl{oracle: oracle, globalMetrics: gm, logger: l, maxConcurrent: maxConcurrent}
}

var _ port.MarketService = (*MarketServiceImpl)(nil)

func (s *MarketServiceImpl) CoinDetails(ctx context.Context, id string) entity.RawJSON {
	return s.oracle.GetCoinDetails(ctx, id)
}

func (s *MarketServiceImpl) MarketChart(ctx context.Context, id, days string) *entity.MarketChart {
	return s.oracle.GetMarketChart(ctx, id, daysOrDefault(days))
}

func (s *MarketServiceImpl) Global(ctx context.Context) entity.RawJSON {
	return s.oracle.GetGlobal(ctx)
}

func (s *MarketServiceImpl) CoinsMarkets(ctx context.Context) []entity.MarketEntry {
	rows := s.oracle.GetCoinsMarkets(ctx)
	if rows == nil {
		rows = []entity.MarketEntry{}
	}
	return rows
}

func (s *MarketServiceImpl) Trending(ctx context.Context) entity.RawJSON {
	return s.oracle.GetTrending(ctx)
}

func (s *MarketServiceImpl) CompanyTreasury(ctx context.Context, id string) entity.RawJSON {
	return s.oracle.GetCompanyTreasury(ctx, id)
}

func (s *MarketServiceImpl) CMCGlobalMetrics(ctx context.Context) entity.RawJSON {
	if s.globalMetrics == nil {
		return nil
	}
	return s.globalMetrics.GetGlobalMetrics(ctx)
}

func (s *MarketServiceImpl) CMCGlobalMetricsHistorical(ctx context.Context) entity.RawJSON {
	if s.globalMetrics == nil {
		return nil
	}
	return s.globalMetrics.GetGlobalMetricsHistorical(ctx)
}

func (s *MarketServiceImpl) CMCListings(ctx context.Context) entity.RawJSON {
	if s.globalMetrics == nil {
		return nil
	}
	return s.globalMetrics.GetListings(ctx)
}

// PortfolioHistory sums price(t) × balance over the charts of all holdings.
// Samples are aligned by their exact timestamp; a holding without a chart contributes nothing.
func (s *MarketServiceImpl) PortfolioHistory(ctx context.Context, holdings []entity.HistoryHolding, days string) []entity.ValuePoint {
	days = daysOrDefault(days)

	var (
		mu     sync.Mutex
		totals = make(map[int64]float64)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)
	for _, h := range holdings {
		if strings.TrimSpace(h.CoinGeckoID) == "" {
			continue
		}
		g.Go(func() error {
			chart := s.oracle.GetMarketChart(gctx, h.CoinGeckoID, days)
			if chart == nil {
				s.logger.Debug("Нет истории цен для актива", "coingecko_id", h.CoinGeckoID)
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			for _, p := range chart.Prices {
				totals[int64(p[0])] += p[1] * h.Balance
			}
			return nil
		})
	}
	_ = g.Wait()

	points := make([]entity.ValuePoint, 0, len(totals))
	for ts, value := range totals {
		points = append(points, entity.ValuePoint{
			Name:      time.UnixMilli(ts).UTC().Format("2006-01-02"),
			Timestamp: ts,
			Value:     value,
		})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Timestamp < points[j].Timestamp })
	return points
}

// AssetHistory returns the price samples of one asset, oldest first.
func (s *MarketServiceImpl) AssetHistory(ctx context.Context, id, days string) []entity.PricePoint {
	chart := s.oracle.GetMarketChart(ctx, id, daysOrDefault(days))
	if chart == nil {
		return []entity.PricePoint{}
	}
	points := make([]entity.PricePoint, 0, len(chart.Prices))
	for _, p := range chart.Prices {
		points = append(points, entity.PricePoint{
			Date:  time.UnixMilli(int64(p[0])).UTC(),
			Price: p[1],
		})
	}
	return points
}

func daysOrDefault(days string) string {
	days = strings.TrimSpace(days)
	if days == "" {
		return defaultHistoryDays
	}
	return days
}
