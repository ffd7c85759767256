package service

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"sync/atomic"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/httpclient"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

type fakeAdapter struct {
	network    entity.NetworkDefinition
	balance    *big.Int
	balanceErr error
	tokens     []entity.TokenBalance
	tokenErr   error
	raws       []entity.RawTransaction
	fetchErr   error
	nfts       []entity.Nft
	nftErr     error
	verify     entity.ContractVerification
	verifyErr  error

	fetchCalls atomic.Int32
}

func (a *fakeAdapter) Network() entity.NetworkDefinition { return a.network }

func (a *fakeAdapter) ValidateAddress(address string) error {
	if a.network.IsEVM() && !strings.HasPrefix(address, "0x") {
		return entity.NewValidationError("address", "invalid %s address", a.network.Identifier)
	}
	return nil
}

func (a *fakeAdapter) GetBalance(context.Context, string) (*big.Int, error) {
	return a.balance, a.balanceErr
}

func (a *fakeAdapter) GetTokenBalances(context.Context, string) ([]entity.TokenBalance, error) {
	return a.tokens, a.tokenErr
}

func (a *fakeAdapter) FetchTransactions(context.Context, string) ([]entity.RawTransaction, error) {
	a.fetchCalls.Add(1)
	return a.raws, a.fetchErr
}

func (a *fakeAdapter) GetNfts(context.Context, string) ([]entity.Nft, error) {
	return a.nfts, a.nftErr
}

func (a *fakeAdapter) VerifyContract(context.Context, string) (entity.ContractVerification, error) {
	return a.verify, a.verifyErr
}

type fakeAdapters map[string]*fakeAdapter

func (f fakeAdapters) GetAdapter(chain string) (port.ChainAdapter, error) {
	a, ok := f[strings.ToLower(chain)]
	if !ok {
		return nil, &entity.UnsupportedChainError{Chain: chain}
	}
	return a, nil
}

type fakeOracle struct {
	mu         sync.Mutex
	prices     map[string]float64
	markets    map[string]entity.MarketEntry
	charts     map[string]*entity.MarketChart
	priceCalls [][]string
}

func (o *fakeOracle) GetPrices(_ context.Context, ids []string) map[string]entity.PriceQuote {
	o.mu.Lock()
	o.priceCalls = append(o.priceCalls, ids)
	o.mu.Unlock()
	out := make(map[string]entity.PriceQuote)
	for _, id := range ids {
		if p, ok := o.prices[id]; ok {
			out[id] = entity.PriceQuote{USD: p}
		}
	}
	return out
}

func (o *fakeOracle) GetMarketData(_ context.Context, ids []string) []entity.MarketEntry {
	var out []entity.MarketEntry
	for _, id := range ids {
		if m, ok := o.markets[id]; ok {
			out = append(out, m)
		}
	}
	return out
}

func (o *fakeOracle) GetMarketChart(_ context.Context, id, _ string) *entity.MarketChart {
	return o.charts[id]
}

func (o *fakeOracle) GetCoinDetails(context.Context, string) entity.RawJSON { return nil }
func (o *fakeOracle) GetGlobal(context.Context) entity.RawJSON              { return nil }
func (o *fakeOracle) GetCoinsMarkets(context.Context) []entity.MarketEntry  { return nil }
func (o *fakeOracle) GetTrending(context.Context) entity.RawJSON            { return nil }
func (o *fakeOracle) GetCompanyTreasury(context.Context, string) entity.RawJSON {
	return nil
}

type fakeTokens struct {
	byAddress map[string]entity.TokenInfo
}

func (f fakeTokens) CoinGeckoID(symbol string) (string, bool) {
	for _, t := range f.byAddress {
		if strings.EqualFold(t.Symbol, symbol) {
			return t.CoinGeckoID, true
		}
	}
	return "", false
}

func (f fakeTokens) TokenByAddress(_ string, address string) (entity.TokenInfo, bool) {
	t, ok := f.byAddress[strings.ToLower(address)]
	return t, ok
}

type fakeDexPricer struct {
	prices map[string]float64
}

func (f fakeDexPricer) GetTokenPricesByAddress(_ context.Context, _ entity.NetworkDefinition, addresses []string) map[string]float64 {
	out := make(map[string]float64)
	for _, a := range addresses {
		if p, ok := f.prices[strings.ToLower(a)]; ok {
			out[strings.ToLower(a)] = p
		}
	}
	return out
}

type fakeCoinGecko struct {
	simplePrice map[string]map[string]float64
	err         error
	calls       atomic.Int32
}

func (f *fakeCoinGecko) SimplePrice(_ context.Context, ids []string) (map[string]map[string]float64, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]map[string]float64)
	for _, id := range ids {
		if v, ok := f.simplePrice[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func (f *fakeCoinGecko) Markets(context.Context, []string) ([]entity.MarketEntry, error) {
	f.calls.Add(1)
	return nil, f.err
}

func (f *fakeCoinGecko) TopMarkets(context.Context) ([]entity.MarketEntry, error) {
	f.calls.Add(1)
	return nil, f.err
}

func (f *fakeCoinGecko) MarketChart(context.Context, string, string) (*entity.MarketChart, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &entity.MarketChart{Prices: [][2]float64{{1700000000000, 10}}}, nil
}

func (f *fakeCoinGecko) CoinDetails(context.Context, string) (entity.RawJSON, error) {
	f.calls.Add(1)
	return entity.RawJSON(`{"id":"bitcoin"}`), f.err
}

func (f *fakeCoinGecko) Global(context.Context) (entity.RawJSON, error) {
	f.calls.Add(1)
	return nil, f.err
}

func (f *fakeCoinGecko) Trending(context.Context) (entity.RawJSON, error) {
	f.calls.Add(1)
	return nil, f.err
}

func (f *fakeCoinGecko) CompanyTreasury(context.Context, string) (entity.RawJSON, error) {
	f.calls.Add(1)
	return nil, f.err
}

type fakeDexScreener struct {
	pairs []httpclient.PairData
	calls atomic.Int32
}

func (f *fakeDexScreener) GetTokenPairsByAddresses(context.Context, string, []string) ([]httpclient.PairData, error) {
	f.calls.Add(1)
	return f.pairs, nil
}

func (f *fakeDexScreener) MaxTokensPerRequest() int { return 30 }

type fakeCMC struct {
	enabled bool
	calls   atomic.Int32
}

func (f *fakeCMC) Enabled() bool { return f.enabled }

func (f *fakeCMC) GlobalMetrics(context.Context) (entity.RawJSON, error) {
	f.calls.Add(1)
	return entity.RawJSON(`{"data":{}}`), nil
}

func (f *fakeCMC) GlobalMetricsHistorical(context.Context) (entity.RawJSON, error) {
	f.calls.Add(1)
	return nil, errors.New("boom")
}

func (f *fakeCMC) Listings(context.Context) (entity.RawJSON, error) {
	f.calls.Add(1)
	return entity.RawJSON(`[]`), nil
}

type staticWallets []entity.Wallet

func (s staticWallets) GetWallets() ([]entity.Wallet, error) { return s, nil }
