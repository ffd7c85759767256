package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/configloader"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *JSONClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewJSONClient(Options{
		Provider: "test",
		BaseURL:  srv.URL,
		Timeout:  timeout,
		Headers:  map[string]string{"X-API-Key": "secret"},
		Logger:   zap.NewNop(),
	})
}

func TestJSONClient_GetJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/thing", r.URL.Path)
		assert.Equal(t, "b", r.URL.Query().Get("a"))
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"value": 42}`))
	}, time.Second)

	var out struct {
		Value int `json:"value"`
	}
	require.NoError(t, c.GetJSON(context.Background(), "thing", "/v1/thing", url.Values{"a": {"b"}}, &out))
	assert.Equal(t, 42, out.Value)
}

func TestJSONClient_PostJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		_, _ = w.Write([]byte(`{"echo":"` + in["say"] + `"}`))
	}, time.Second)

	var out map[string]string
	require.NoError(t, c.PostJSON(context.Background(), "echo", "/", map[string]string{"say": "hi"}, &out))
	assert.Equal(t, "hi", out["echo"])
}

func TestJSONClient_Non2xxIsUpstreamError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`rate limited`))
	}, time.Second)

	err := c.GetJSON(context.Background(), "thing", "/", nil, &struct{}{})
	var upErr *entity.UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, "test", upErr.Provider)
	assert.Equal(t, http.StatusTooManyRequests, upErr.StatusCode)
	assert.Contains(t, upErr.Error(), "rate limited")
}

func TestJSONClient_Timeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		_, _ = w.Write([]byte(`{}`))
	}, 50*time.Millisecond)

	started := time.Now()
	err := c.GetJSON(context.Background(), "slow", "/", nil, &struct{}{})
	var upErr *entity.UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Zero(t, upErr.StatusCode)
	assert.Less(t, time.Since(started), 250*time.Millisecond)
}

func TestJSONClient_CanceledContext(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.GetJSON(ctx, "x", "/", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, calls.Load())
}

func TestJSONClient_DecodeError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}, time.Second)

	var out map[string]any
	err := c.GetJSON(context.Background(), "x", "/", nil, &out)
	var upErr *entity.UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, http.StatusOK, upErr.StatusCode)
}

func TestCoinGeckoClient_SimplePrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/price", r.URL.Path)
		assert.Equal(t, "bitcoin,ethereum", r.URL.Query().Get("ids"))
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))
		assert.Equal(t, "demo", r.URL.Query().Get("x_cg_demo_api_key"))
		_, _ = w.Write([]byte(`{"bitcoin":{"usd":60000},"ethereum":{"usd":3000}}`))
	}))
	defer srv.Close()

	c := NewCoinGeckoClient(configloader.CoinGeckoConfig{
		UpstreamConfig: configloader.UpstreamConfig{BaseURL: srv.URL, APIKey: "demo", RequestTimeoutMillis: 1000},
		VsCurrency:     "usd",
	}, zap.NewNop(), nil)

	prices, err := c.SimplePrice(context.Background(), []string{"bitcoin", "ethereum"})
	require.NoError(t, err)
	assert.Equal(t, 3000.0, prices["ethereum"]["usd"])
}

func TestCoinGeckoClient_MarketsAndChart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/coins/markets":
			assert.Equal(t, "true", r.URL.Query().Get("sparkline"))
			_, _ = w.Write([]byte(`[{"id":"ethereum","symbol":"eth","name":"Ethereum","current_price":3000,
				"price_change_percentage_24h":1.5,"market_cap":1,"total_volume":2,"sparkline_in_7d":{"price":[1,2,3]}}]`))
		case "/coins/ethereum/market_chart":
			assert.Equal(t, "30", r.URL.Query().Get("days"))
			_, _ = w.Write([]byte(`{"prices":[[1700000000000,3000.5]],"market_caps":[],"total_volumes":[]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewCoinGeckoClient(configloader.CoinGeckoConfig{
		UpstreamConfig: configloader.UpstreamConfig{BaseURL: srv.URL, RequestTimeoutMillis: 1000},
		VsCurrency:     "usd",
	}, zap.NewNop(), nil)

	markets, err := c.Markets(context.Background(), []string{"ethereum"})
	require.NoError(t, err)
	require.Len(t, markets, 1)
	assert.Equal(t, 3000.0, markets[0].CurrentPrice)
	assert.Len(t, markets[0].Sparkline(), 3)
	assert.Equal(t, "d2", markets[0].Sparkline()[2].Name)

	chart, err := c.MarketChart(context.Background(), "ethereum", "30")
	require.NoError(t, err)
	require.Len(t, chart.Prices, 1)
	assert.Equal(t, 3000.5, chart.Prices[0][1])
}

func TestCoinMarketCapClient_DisabledWithoutKey(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c := NewCoinMarketCapClient(configloader.UpstreamConfig{BaseURL: srv.URL}, zap.NewNop(), nil)
	assert.False(t, c.Enabled())

	out, err := c.GlobalMetrics(context.Background())
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Zero(t, calls.Load())
}

func TestCoinMarketCapClient_SendsKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "cmc-key", r.Header.Get("X-CMC_PRO_API_KEY"))
		assert.Equal(t, "/v1/cryptocurrency/listings/latest", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c := NewCoinMarketCapClient(configloader.UpstreamConfig{BaseURL: srv.URL, APIKey: "cmc-key"}, zap.NewNop(), nil)
	out, err := c.Listings(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[]}`, string(out))
}

func TestDEXScreenerClient_BothResponseShapes(t *testing.T) {
	bodies := []string{
		`[{"chainId":"ethereum","baseToken":{"address":"0xabc","symbol":"X"},"priceUsd":"2.5","liquidity":{"usd":1000}}]`,
		`{"schemaVersion":"1.0.0","pairs":[{"chainId":"ethereum","baseToken":{"address":"0xabc","symbol":"X"},"priceUsd":"2.5"}]}`,
	}
	for _, body := range bodies {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/tokens/v1/ethereum/0xabc", r.URL.Path)
			_, _ = w.Write([]byte(body))
		}))

		c := NewDEXScreenerClient(configloader.DEXScreenerConfig{
			UpstreamConfig:           configloader.UpstreamConfig{BaseURL: srv.URL, RequestTimeoutMillis: 1000},
			MaxTokensPerBatchRequest: 30,
		}, zap.NewNop(), nil)

		pairs, err := c.GetTokenPairsByAddresses(context.Background(), "ethereum", []string{"0xabc"})
		require.NoError(t, err)
		require.Len(t, pairs, 1)
		assert.Equal(t, "2.5", pairs[0].PriceUsd)
		srv.Close()
	}
}

func TestDEXScreenerClient_RejectsOversizedBatch(t *testing.T) {
	c := NewDEXScreenerClient(configloader.DEXScreenerConfig{MaxTokensPerBatchRequest: 1}, zap.NewNop(), nil)
	_, err := c.GetTokenPairsByAddresses(context.Background(), "ethereum", []string{"0x1", "0x2"})
	assert.Error(t, err)
	_, err = c.GetTokenPairsByAddresses(context.Background(), "ethereum", nil)
	assert.Error(t, err)
}
