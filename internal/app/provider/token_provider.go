package provider

import (
	"sync"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/tokenloader"
)

type tokenProviderImpl struct {
	tokenDir string
	networks port.NetworkDefinitionProvider
	logger   port.Logger

	once   sync.Once
	loader *tokenloader.TokenFileLoader
}

// NewTokenProvider creates a new TokenProvider. Token files are read on first use.
func NewTokenProvider(tokenDir string, networks port.NetworkDefinitionProvider, logger port.Logger) port.TokenProvider {
	return &tokenProviderImpl{
		tokenDir: tokenDir,
		networks: networks,
		logger:   logger,
	}
}

func (p *tokenProviderImpl) table() *tokenloader.TokenFileLoader {
	p.once.Do(func() {
		p.logger.Debug("Loading tokens from disk", "directory", p.tokenDir)
		p.loader = tokenloader.NewTokenLoader(p.tokenDir, p.networks.GetAllNetworkDefinitions(), p.logger.Info, p.logger.Warn)
		p.logger.Info("Tokens loaded and cached successfully", "directory", p.tokenDir)
	})
	return p.loader
}

// CoinGeckoID resolves a ticker symbol to a price oracle id.
func (p *tokenProviderImpl) CoinGeckoID(symbol string) (string, bool) {
	return p.table().CoinGeckoID(symbol)
}

// TokenByAddress returns static token metadata.
func (p *tokenProviderImpl) TokenByAddress(chain, address string) (entity.TokenInfo, bool) {
	return p.table().TokenByAddress(chain, address)
}
