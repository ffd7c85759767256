package client

import (
	"fmt"
	"sync"
	"time"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/cache"
	"portfolio_aggregator/internal/infrastructure/configloader"
	"portfolio_aggregator/internal/infrastructure/httpclient"
	"portfolio_aggregator/internal/infrastructure/metrics"

	"go.uber.org/zap"
)

const (
	defaultProviderConnectionTimeout = 10 * time.Second
	defaultRPCCallTimeout            = 15 * time.Second
)

// AdapterProvider implements port.AdapterProvider. Adapters are created on first
// use and cached per network identifier. Upstream HTTP clients are shared so one
// API key shares one rate limiter across chains.
type AdapterProvider struct {
	networks port.NetworkDefinitionProvider
	cfg      *configloader.Config
	memo     *cache.Memoizer
	logger   port.Logger

	etherscan *httpclient.JSONClient
	solana    *httpclient.JSONClient
	bitcoin   *httpclient.JSONClient
	ton       *httpclient.JSONClient

	mu       sync.Mutex
	adapters map[string]port.ChainAdapter
	rpcs     []*EVMRPCClient
}

// NewAdapterProvider creates a new AdapterProvider. memo may be nil to disable adapter caching.
func NewAdapterProvider(
	cfg *configloader.Config,
	networks port.NetworkDefinitionProvider,
	memo *cache.Memoizer,
	zapLogger *zap.Logger,
	logger port.Logger,
	m *metrics.Metrics,
) *AdapterProvider {
	tonHeaders := map[string]string{}
	if cfg.TON.APIKey != "" {
		tonHeaders["X-API-Key"] = cfg.TON.APIKey
	}

	return &AdapterProvider{
		networks: networks,
		cfg:      cfg,
		memo:     memo,
		logger:   logger,
		etherscan: httpclient.NewJSONClient(httpclient.Options{
			Provider:  "etherscan",
			BaseURL:   cfg.Etherscan.BaseURL,
			Timeout:   cfg.Etherscan.RequestTimeout(),
			RateLimit: cfg.Etherscan.RateLimitPerSecond,
			Burst:     cfg.Etherscan.Burst,
			Logger:    zapLogger,
			Metrics:   m,
		}),
		solana: httpclient.NewJSONClient(httpclient.Options{
			Provider:  "solana",
			BaseURL:   cfg.Solana.BaseURL,
			Timeout:   cfg.Solana.RequestTimeout(),
			RateLimit: cfg.Solana.RateLimitPerSecond,
			Burst:     cfg.Solana.Burst,
			Logger:    zapLogger,
			Metrics:   m,
		}),
		bitcoin: httpclient.NewJSONClient(httpclient.Options{
			Provider:  "blockstream",
			BaseURL:   cfg.Bitcoin.BaseURL,
			Timeout:   cfg.Bitcoin.RequestTimeout(),
			RateLimit: cfg.Bitcoin.RateLimitPerSecond,
			Burst:     cfg.Bitcoin.Burst,
			Logger:    zapLogger,
			Metrics:   m,
		}),
		ton: httpclient.NewJSONClient(httpclient.Options{
			Provider:  "toncenter",
			BaseURL:   cfg.TON.BaseURL,
			Timeout:   cfg.TON.RequestTimeout(),
			RateLimit: cfg.TON.RateLimitPerSecond,
			Burst:     cfg.TON.Burst,
			Headers:   tonHeaders,
			Logger:    zapLogger,
			Metrics:   m,
		}),
		adapters: make(map[string]port.ChainAdapter),
	}
}

var _ port.AdapterProvider = (*AdapterProvider)(nil)

// GetAdapter resolves chain (identifier or alias) to its adapter.
func (p *AdapterProvider) GetAdapter(chain string) (port.ChainAdapter, error) {
	netDef, ok := p.networks.GetNetworkDefinitionByName(chain)
	if !ok {
		return nil, &entity.UnsupportedChainError{Chain: chain}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if adapter, exists := p.adapters[netDef.Identifier]; exists {
		return adapter, nil
	}

	adapter, err := p.newAdapter(netDef)
	if err != nil {
		p.logger.Error("Failed to create chain adapter", "network", netDef.Identifier, "error", err)
		return nil, err
	}
	if p.memo != nil && p.cfg.Cache.AdapterTTLSeconds > 0 {
		adapter = newCachedAdapter(adapter, p.memo, time.Duration(p.cfg.Cache.AdapterTTLSeconds)*time.Second)
	}

	p.adapters[netDef.Identifier] = adapter
	p.logger.Info("Chain adapter created", "network", netDef.Identifier, "family", netDef.Family)
	return adapter, nil
}

func (p *AdapterProvider) newAdapter(netDef entity.NetworkDefinition) (port.ChainAdapter, error) {
	switch netDef.Family {
	case entity.FamilyEVM:
		var rpc nativeBalanceReader
		if p.cfg.EVMRPC.UseForNativeBalance && netDef.PrimaryRPCURL != "" {
			rpcClient := NewEVMRPCClient(netDef, p.secondsOr(p.cfg.EVMRPC.ConnectionTimeoutSeconds, defaultProviderConnectionTimeout), p.secondsOr(p.cfg.EVMRPC.RPCCallTimeoutSeconds, defaultRPCCallTimeout))
			p.rpcs = append(p.rpcs, rpcClient)
			rpc = rpcClient
		}
		return NewEVMClient(netDef, p.etherscan, p.cfg.Etherscan.APIKey, rpc, p.logger), nil
	case entity.FamilySolana:
		return NewSolanaClient(netDef, p.solana, p.cfg.Solana.APIKey, p.cfg.Solana.MaxSignatures, p.logger), nil
	case entity.FamilyBitcoin:
		return NewBitcoinClient(netDef, p.bitcoin, p.logger), nil
	case entity.FamilyTON:
		return NewTONClient(netDef, p.ton, p.cfg.TON.Limit, p.logger), nil
	default:
		return nil, fmt.Errorf("network %s: unknown chain family %q", netDef.Identifier, netDef.Family)
	}
}

func (p *AdapterProvider) secondsOr(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// Close releases RPC connections held by EVM adapters.
func (p *AdapterProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, rpc := range p.rpcs {
		rpc.Close()
	}
}
