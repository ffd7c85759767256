package httpclient

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/configloader"
	"portfolio_aggregator/internal/infrastructure/metrics"

	"go.uber.org/zap"
)

// DEXScreenerClient looks up token pairs by contract address.
type DEXScreenerClient struct {
	http                *JSONClient
	logger              *zap.Logger
	maxTokensPerRequest int
}

// NewDEXScreenerClient creates a new DEXScreenerClient.
func NewDEXScreenerClient(cfg configloader.DEXScreenerConfig, logger *zap.Logger, m *metrics.Metrics) *DEXScreenerClient {
	return &DEXScreenerClient{
		http: NewJSONClient(Options{
			Provider:  "dexscreener",
			BaseURL:   cfg.BaseURL,
			Timeout:   cfg.RequestTimeout(),
			RateLimit: cfg.RateLimitPerSecond,
			Burst:     cfg.Burst,
			Logger:    logger,
			Metrics:   m,
		}),
		logger:              logger.Named("DEXScreenerClient"),
		maxTokensPerRequest: cfg.MaxTokensPerBatchRequest,
	}
}

// MaxTokensPerRequest returns the batch size limit.
func (c *DEXScreenerClient) MaxTokensPerRequest() int {
	return c.maxTokensPerRequest
}

// GetTokenPairsByAddresses returns every pair that trades one of the given tokens.
func (c *DEXScreenerClient) GetTokenPairsByAddresses(ctx context.Context, dexscreenerChainID string, tokenAddresses []string) ([]PairData, error) {
	if len(tokenAddresses) == 0 {
		return nil, fmt.Errorf("tokenAddresses cannot be empty")
	}
	if len(tokenAddresses) > c.maxTokensPerRequest {
		c.logger.Warn("Number of token addresses exceeds maxTokensPerRequest",
			zap.Int("requestedCount", len(tokenAddresses)),
			zap.Int("maxAllowed", c.maxTokensPerRequest))
		return nil, fmt.Errorf("number of token addresses (%d) exceeds max tokens per request (%d)", len(tokenAddresses), c.maxTokensPerRequest)
	}

	path := fmt.Sprintf("/tokens/v1/%s/%s", url.PathEscape(dexscreenerChainID), strings.Join(tokenAddresses, ","))

	var raw entity.RawJSON
	if err := c.http.GetJSON(ctx, "tokens/v1", path, nil, &raw); err != nil {
		return nil, err
	}

	// The endpoint answers with a bare array; older deployments wrap it in {"pairs": [...]}.
	var directPairs []PairData
	if err := json.Unmarshal(raw, &directPairs); err == nil {
		return directPairs, nil
	}

	var wrapped DEXTokenPair
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		c.logger.Error("Failed to unmarshal DEX Screener response",
			zap.String("dexscreenerChainID", dexscreenerChainID),
			zap.ByteString("responseBody", truncate(raw)),
			zap.Error(err),
		)
		return nil, &entity.UpstreamError{Provider: "dexscreener", Op: "tokens/v1", Err: fmt.Errorf("decode response: %w", err)}
	}
	return wrapped.Pairs, nil
}
