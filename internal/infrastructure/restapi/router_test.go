package restapi

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/configloader"
	"portfolio_aggregator/internal/infrastructure/metrics"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

type stubPortfolio struct {
	lastLimit, lastOffset int
}

func (s *stubPortfolio) check(chain, address string) error {
	if chain != "ethereum" {
		return &entity.UnsupportedChainError{Chain: chain}
	}
	if !strings.HasPrefix(address, "0x") {
		return entity.NewValidationError("address", "invalid ethereum address")
	}
	return nil
}

func (s *stubPortfolio) GetAssets(_ context.Context, chain, address string) ([]entity.Asset, error) {
	if err := s.check(chain, address); err != nil {
		return nil, err
	}
	if address == "0xdead" {
		return nil, &entity.UpstreamError{Provider: "etherscan", Op: "balance", Err: errors.New("NOTOK")}
	}
	return []entity.Asset{entity.Asset{ID: "ethereum", Chain: chain, Ticker: "ETH", BalanceCrypto: 2, Price: 3000}.Valued()}, nil
}

func (s *stubPortfolio) GetTransactions(_ context.Context, chain, address string, limit, offset int) ([]entity.Transaction, error) {
	if err := s.check(chain, address); err != nil {
		return nil, err
	}
	s.lastLimit, s.lastOffset = limit, offset
	return []entity.Transaction{}, nil
}

func (s *stubPortfolio) GetNfts(_ context.Context, chain, address string) ([]entity.Nft, error) {
	if err := s.check(chain, address); err != nil {
		return nil, err
	}
	return []entity.Nft{}, nil
}

func (s *stubPortfolio) VerifyContract(_ context.Context, chain, address string) (entity.ContractVerification, error) {
	if err := s.check(chain, address); err != nil {
		return entity.ContractVerification{}, err
	}
	return entity.ContractVerification{IsVerified: true}, nil
}

func (s *stubPortfolio) GetPortfolioAssets(context.Context, string) ([]entity.Asset, []entity.PortfolioError, error) {
	return []entity.Asset{}, []entity.PortfolioError{{WalletID: "w1", Chain: "bitcoin", Message: "boom"}}, nil
}

type stubWallets struct {
	wallets map[string]entity.Wallet
}

func (s *stubWallets) List(context.Context, string) ([]entity.Wallet, error) {
	out := []entity.Wallet{}
	for _, w := range s.wallets {
		out = append(out, w)
	}
	return out, nil
}

func (s *stubWallets) Add(_ context.Context, userID, name, address, chain string) (entity.Wallet, error) {
	if name == "" || address == "" || chain == "" {
		return entity.Wallet{}, &entity.ValidationError{Message: "Wallet name, address, and chain are required."}
	}
	for _, w := range s.wallets {
		if w.Address == address && w.Chain == chain {
			return entity.Wallet{}, entity.ErrDuplicateKey
		}
	}
	w := entity.Wallet{ID: "id-" + address, UserID: userID, Name: name, Address: address, Chain: chain, CreatedAt: time.Now()}
	s.wallets[w.ID] = w
	return w, nil
}

func (s *stubWallets) Delete(_ context.Context, _ string, id string) error {
	if _, ok := s.wallets[id]; !ok {
		return entity.ErrNotFound
	}
	delete(s.wallets, id)
	return nil
}

type stubMarkets struct{}

func (stubMarkets) CoinDetails(_ context.Context, id string) entity.RawJSON {
	if id == "bitcoin" {
		return entity.RawJSON(`{"id":"bitcoin"}`)
	}
	return nil
}
func (stubMarkets) MarketChart(context.Context, string, string) *entity.MarketChart { return nil }
func (stubMarkets) Global(context.Context) entity.RawJSON                           { return nil }
func (stubMarkets) CoinsMarkets(context.Context) []entity.MarketEntry               { return []entity.MarketEntry{} }
func (stubMarkets) Trending(context.Context) entity.RawJSON                         { return nil }
func (stubMarkets) CompanyTreasury(context.Context, string) entity.RawJSON          { return nil }
func (stubMarkets) CMCGlobalMetrics(context.Context) entity.RawJSON                 { return nil }
func (stubMarkets) CMCGlobalMetricsHistorical(context.Context) entity.RawJSON       { return nil }
func (stubMarkets) CMCListings(context.Context) entity.RawJSON                      { return nil }

func (stubMarkets) PortfolioHistory(_ context.Context, holdings []entity.HistoryHolding, days string) []entity.ValuePoint {
	return []entity.ValuePoint{{Name: days, Timestamp: int64(len(holdings)), Value: 1}}
}

func (stubMarkets) AssetHistory(context.Context, string, string) []entity.PricePoint {
	return []entity.PricePoint{}
}

func newTestRouter(t *testing.T) (*gin.Engine, *stubPortfolio) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ps := &stubPortfolio{}
	cfg := &configloader.Config{}
	h := Handlers{
		Portfolio: NewPortfolioHandler(ps),
		Wallets:   NewWalletHandler(&stubWallets{wallets: map[string]entity.Wallet{}}),
		Markets:   NewMarketHandler(stubMarkets{}),
	}
	return SetupRouter(cfg, h, metrics.NewMetrics("test", prometheus.NewRegistry()), zap.NewNop()), ps
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestChainRoutes(t *testing.T) {
	r, ps := newTestRouter(t)

	rec := do(r, http.MethodGet, "/ethereum/assets/0xabc", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var assets []entity.Asset
	require.NoError(t, jsonAPI.Unmarshal(rec.Body.Bytes(), &assets))
	require.Len(t, assets, 1)
	assert.InDelta(t, 6000.0, assets[0].BalanceUSD, 1e-9)

	rec = do(r, http.MethodGet, "/dogecoin/assets/0xabc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Unsupported chain"}`, rec.Body.String())

	rec = do(r, http.MethodGet, "/ethereum/assets/nope", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(r, http.MethodGet, "/ethereum/assets/0xdead", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOTOK")

	rec = do(r, http.MethodGet, "/ethereum/transactions/0xabc?limit=25&offset=50", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
	assert.Equal(t, 25, ps.lastLimit)
	assert.Equal(t, 50, ps.lastOffset)

	rec = do(r, http.MethodGet, "/ethereum/transactions/0xabc?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(r, http.MethodGet, "/ethereum/nfts/0xabc", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(r, http.MethodGet, "/ethereum/contract/verify/0xabc", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"isVerified":true}`, rec.Body.String())
}

func TestWalletRoutes(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := do(r, http.MethodGet, "/api/wallets", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(r, http.MethodPost, "/api/wallets", `{"name":"main","address":"0xabc","chain":"ethereum"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var w entity.Wallet
	require.NoError(t, jsonAPI.Unmarshal(rec.Body.Bytes(), &w))
	assert.Equal(t, "id-0xabc", w.ID)

	rec = do(r, http.MethodPost, "/api/wallets", `{"name":"again","address":"0xabc","chain":"ethereum"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(r, http.MethodPost, "/api/wallets", `{"name":"","address":"0xabc","chain":"ethereum"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Wallet name, address, and chain are required."}`, rec.Body.String())

	rec = do(r, http.MethodPost, "/api/wallets", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(r, http.MethodDelete, "/api/wallets/id-0xabc", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(r, http.MethodDelete, "/api/wallets/id-0xabc", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Wallet not found."}`, rec.Body.String())
}

func TestPortfolioAndMarketRoutes(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := do(r, http.MethodGet, "/api/portfolio/assets", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp APIPortfolioResponse
	require.NoError(t, jsonAPI.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Assets)
	require.Len(t, resp.ServiceErrors, 1)
	assert.Equal(t, "Failed to retrieve any assets due to service errors.", resp.StatusMessage)

	rec = do(r, http.MethodGet, "/api/markets/coin/bitcoin", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"bitcoin"}`, rec.Body.String())

	rec = do(r, http.MethodGet, "/api/markets/coingecko/global", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = do(r, http.MethodGet, "/api/markets/coingecko/coins/markets", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(r, http.MethodPost, "/portfolio/history", `{"assets":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid assets array"}`, rec.Body.String())

	rec = do(r, http.MethodPost, "/portfolio/history", `{"assets":[{"coingeckoId":"bitcoin","balance":1}],"days":7}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var points []entity.ValuePoint
	require.NoError(t, jsonAPI.Unmarshal(rec.Body.Bytes(), &points))
	require.Len(t, points, 1)
	assert.Equal(t, "7", points[0].Name)

	rec = do(r, http.MethodPost, "/portfolio/history", `{"assets":[{"coingeckoId":"bitcoin","balance":1}],"days":"90"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, jsonAPI.Unmarshal(rec.Body.Bytes(), &points))
	assert.Equal(t, "90", points[0].Name)

	rec = do(r, http.MethodPost, "/portfolio/history", `{"assets":[{"coingeckoId":"bitcoin","balance":1}],"days":null}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, jsonAPI.Unmarshal(rec.Body.Bytes(), &points))
	assert.Equal(t, "", points[0].Name)

	rec = do(r, http.MethodGet, "/portfolio/asset-history/bitcoin", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := do(r, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	_ = do(r, http.MethodGet, "/ethereum/nfts/0xabc", "")
	rec = do(r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="/:chain/nfts/:address"`)
}
