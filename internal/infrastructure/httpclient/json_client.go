package httpclient

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/metrics"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultTimeout  = 10 * time.Second
	maxLoggedBody   = 512
	contentTypeJSON = "application/json"
)

// Options configures a JSONClient.
type Options struct {
	Provider  string
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables limiting
	Burst     int
	Headers   map[string]string
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
}

// JSONClient is a fasthttp client for JSON upstream APIs. Every call has a bounded
// timeout, waits on the provider's rate limiter, and fails with *entity.UpstreamError.
type JSONClient struct {
	client   *fasthttp.Client
	provider string
	baseURL  string
	timeout  time.Duration
	limiter  *rate.Limiter
	headers  map[string]string
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewJSONClient creates a new JSONClient.
func NewJSONClient(opts Options) *JSONClient {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return &JSONClient{
		client: &fasthttp.Client{
			Name:                "portfolio-aggregator",
			MaxIdleConnDuration: 30 * time.Second,
		},
		provider: opts.Provider,
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		timeout:  opts.Timeout,
		limiter:  limiter,
		headers:  opts.Headers,
		logger:   opts.Logger.Named(opts.Provider),
		metrics:  opts.Metrics,
	}
}

// Provider returns the provider name used in errors and metrics.
func (c *JSONClient) Provider() string {
	return c.provider
}

// GetJSON performs GET baseURL+path?query and decodes the body into out.
func (c *JSONClient) GetJSON(ctx context.Context, op, path string, query url.Values, out any) error {
	return c.do(ctx, op, fasthttp.MethodGet, path, query, nil, out)
}

// PostJSON performs POST baseURL+path with a JSON body and decodes the response into out.
func (c *JSONClient) PostJSON(ctx context.Context, op, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return c.upstreamErr(op, 0, fmt.Errorf("encode request: %w", err))
	}
	return c.do(ctx, op, fasthttp.MethodPost, path, nil, payload, out)
}

func (c *JSONClient) do(ctx context.Context, op, method, path string, query url.Values, body []byte, out any) (err error) {
	started := time.Now()
	defer func() { c.metrics.ObserveUpstream(c.provider, started, err) }()

	if err := ctx.Err(); err != nil {
		return c.upstreamErr(op, 0, err)
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return c.upstreamErr(op, 0, fmt.Errorf("rate limiter: %w", err))
		}
	}

	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(method)
	req.Header.Set("Accept", contentTypeJSON)
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if body != nil {
		req.Header.SetContentType(contentTypeJSON)
		req.SetBody(body)
	}

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	deadline := started.Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.logger.Debug("Upstream request", zap.String("op", op), zap.String("method", method), zap.String("path", path))

	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		c.logger.Warn("Upstream request failed", zap.String("op", op), zap.String("path", path), zap.Error(err))
		return c.upstreamErr(op, 0, err)
	}

	rawBody := resp.Body()
	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		c.logger.Warn("Upstream returned non-2xx status",
			zap.String("op", op),
			zap.String("path", path),
			zap.Int("statusCode", status),
			zap.ByteString("responseBody", truncate(rawBody)),
		)
		return c.upstreamErr(op, status, fmt.Errorf("unexpected status: %s", truncate(rawBody)))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(rawBody, out); err != nil {
		c.logger.Warn("Failed to decode upstream response", zap.String("op", op), zap.String("path", path), zap.Error(err))
		return c.upstreamErr(op, status, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *JSONClient) upstreamErr(op string, status int, err error) error {
	return &entity.UpstreamError{Provider: c.provider, Op: op, StatusCode: status, Err: err}
}

func truncate(b []byte) []byte {
	if len(b) <= maxLoggedBody {
		return b
	}
	return b[:maxLoggedBody]
}
