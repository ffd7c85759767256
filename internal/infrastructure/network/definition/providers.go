package networkdefinition

import (
	"sort"
	"strings"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/configloader"
)

// NetworkDefinitionProvider provides network definitions.
type NetworkDefinitionProvider struct {
	logger  port.Logger
	byID    map[string]entity.NetworkDefinition
	aliases map[string]string
}

// Predefined network definitions
var ( //nolint:gochecknoglobals // Global for definitions
	Ethereum = entity.NetworkDefinition{
		Identifier:                "ethereum",
		Name:                      "Ethereum Mainnet",
		Family:                    entity.FamilyEVM,
		ChainID:                   1,
		NativeSymbol:              "ETH",
		NativeName:                "Ethereum",
		NativeAssetID:             "ethereum",
		Decimals:                  18,
		CoinGeckoID:               "ethereum",
		PrimaryRPCURL:             "https://ethereum-rpc.publicnode.com",
		FallbackRPCURLs:           []string{"https://rpc.ankr.com/eth", "https://ethereum.publicnode.com"},
		BlockExplorerURL:          "https://etherscan.io",
		DEXScreenerChainID:        "ethereum",
		WrappedNativeTokenAddress: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", // WETH
	}
	Polygon = entity.NetworkDefinition{
		Identifier:                "polygon",
		Name:                      "Polygon PoS",
		Family:                    entity.FamilyEVM,
		ChainID:                   137,
		NativeSymbol:              "POL",
		NativeName:                "Polygon",
		NativeAssetID:             "polygon",
		Decimals:                  18,
		CoinGeckoID:               "polygon-ecosystem-token",
		PrimaryRPCURL:             "https://polygon-rpc.com/",
		FallbackRPCURLs:           []string{"https://rpc.ankr.com/polygon", "https://polygon.publicnode.com"},
		BlockExplorerURL:          "https://polygonscan.com",
		DEXScreenerChainID:        "polygon",
		WrappedNativeTokenAddress: "0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270", // WMATIC
	}
	Avalanche = entity.NetworkDefinition{
		Identifier:                "avalanche",
		Name:                      "Avalanche C-Chain",
		Family:                    entity.FamilyEVM,
		ChainID:                   43114,
		NativeSymbol:              "AVAX",
		NativeName:                "Avalanche",
		NativeAssetID:             "avalanche",
		Decimals:                  18,
		CoinGeckoID:               "avalanche-2",
		PrimaryRPCURL:             "https://api.avax.network/ext/bc/C/rpc",
		FallbackRPCURLs:           []string{"https://rpc.ankr.com/avalanche", "https://avalanche-c-chain-rpc.publicnode.com"},
		BlockExplorerURL:          "https://snowtrace.io",
		DEXScreenerChainID:        "avalanche",
		WrappedNativeTokenAddress: "0xB31f66AA3C1e785363F0875A1B74E27b85FD66c7", // WAVAX
	}
	BSC = entity.NetworkDefinition{
		Identifier:                "binance-smart-chain",
		Name:                      "BNB Smart Chain",
		Family:                    entity.FamilyEVM,
		ChainID:                   56,
		NativeSymbol:              "BNB",
		NativeName:                "BNB",
		NativeAssetID:             "binance-smart-chain",
		Decimals:                  18,
		CoinGeckoID:               "binancecoin",
		PrimaryRPCURL:             "https://1rpc.io/bnb",
		FallbackRPCURLs:           []string{"https://bsc-dataseed2.binance.org/", "https://bsc.publicnode.com"},
		BlockExplorerURL:          "https://bscscan.com",
		DEXScreenerChainID:        "bsc",
		WrappedNativeTokenAddress: "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c", // WBNB
	}
	Optimism = entity.NetworkDefinition{
		Identifier:                "optimism",
		Name:                      "OP Mainnet",
		Family:                    entity.FamilyEVM,
		ChainID:                   10,
		NativeSymbol:              "ETH",
		NativeName:                "Ethereum",
		NativeAssetID:             "optimism",
		Decimals:                  18,
		CoinGeckoID:               "ethereum",
		PrimaryRPCURL:             "https://mainnet.optimism.io",
		FallbackRPCURLs:           []string{"https://rpc.ankr.com/optimism", "https://optimism.publicnode.com"},
		BlockExplorerURL:          "https://optimistic.etherscan.io",
		DEXScreenerChainID:        "optimism",
		WrappedNativeTokenAddress: "0x4200000000000000000000000000000000000006", // WETH
	}
	Arbitrum = entity.NetworkDefinition{
		Identifier:                "arbitrum",
		Name:                      "Arbitrum One",
		Family:                    entity.FamilyEVM,
		ChainID:                   42161,
		NativeSymbol:              "ETH",
		NativeName:                "Ethereum",
		NativeAssetID:             "arbitrum",
		Decimals:                  18,
		CoinGeckoID:               "ethereum",
		PrimaryRPCURL:             "https://arb1.arbitrum.io/rpc",
		FallbackRPCURLs:           []string{"https://rpc.ankr.com/arbitrum", "https://arbitrum-one.publicnode.com"},
		BlockExplorerURL:          "https://arbiscan.io",
		DEXScreenerChainID:        "arbitrum",
		WrappedNativeTokenAddress: "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1", // WETH
	}
	Base = entity.NetworkDefinition{
		Identifier:                "base",
		Name:                      "Base",
		Family:                    entity.FamilyEVM,
		ChainID:                   8453,
		NativeSymbol:              "ETH",
		NativeName:                "Ethereum",
		NativeAssetID:             "base",
		Decimals:                  18,
		CoinGeckoID:               "ethereum",
		PrimaryRPCURL:             "https://mainnet.base.org",
		FallbackRPCURLs:           []string{"https://base.publicnode.com", "https://1rpc.io/base"},
		BlockExplorerURL:          "https://basescan.org",
		DEXScreenerChainID:        "base",
		WrappedNativeTokenAddress: "0x4200000000000000000000000000000000000006", // WETH
	}
	Solana = entity.NetworkDefinition{
		Identifier:       "solana",
		Name:             "Solana",
		Family:           entity.FamilySolana,
		NativeSymbol:     "SOL",
		NativeName:       "Solana",
		NativeAssetID:    "solana",
		Decimals:         9,
		CoinGeckoID:      "solana",
		BlockExplorerURL: "https://solscan.io",
	}
	Bitcoin = entity.NetworkDefinition{
		Identifier:       "bitcoin",
		Name:             "Bitcoin",
		Family:           entity.FamilyBitcoin,
		NativeSymbol:     "BTC",
		NativeName:       "Bitcoin",
		NativeAssetID:    "bitcoin",
		Decimals:         8,
		CoinGeckoID:      "bitcoin",
		BlockExplorerURL: "https://blockstream.info",
	}
	TON = entity.NetworkDefinition{
		Identifier:       "ton",
		Name:             "TON",
		Family:           entity.FamilyTON,
		NativeSymbol:     "TON",
		NativeName:       "Toncoin",
		NativeAssetID:    "ton",
		Decimals:         9,
		CoinGeckoID:      "the-open-network",
		BlockExplorerURL: "https://tonviewer.com",
	}
)

// All returns every built-in definition.
func All() []entity.NetworkDefinition {
	return []entity.NetworkDefinition{Ethereum, Polygon, Avalanche, BSC, Optimism, Arbitrum, Base, Solana, Bitcoin, TON}
}

// NewNetworkDefinitionProvider creates a provider over the built-in table with RPC overrides applied.
func NewNetworkDefinitionProvider(logger port.Logger, overrides []configloader.NetworkNodeConfig) *NetworkDefinitionProvider {
	p := &NetworkDefinitionProvider{
		logger:  logger,
		byID:    make(map[string]entity.NetworkDefinition),
		aliases: map[string]string{"bsc": BSC.Identifier, "eth": Ethereum.Identifier, "avax": Avalanche.Identifier},
	}
	for _, def := range All() {
		p.byID[def.Identifier] = def
	}

	for _, o := range overrides {
		id := p.resolve(o.Identifier)
		def, ok := p.byID[id]
		if !ok {
			logger.Warn("RPC override for unknown network is ignored", "identifier", o.Identifier)
			continue
		}
		if o.RPCURL != "" {
			def.PrimaryRPCURL = o.RPCURL
		}
		if len(o.FallbackRPCURLs) > 0 {
			def.FallbackRPCURLs = o.FallbackRPCURLs
		}
		p.byID[id] = def
		logger.Debug("Network RPC override applied", "network", id, "rpc_primary", def.PrimaryRPCURL)
	}

	logger.Info("NetworkDefinitionProvider initialized", "networks", len(p.byID))
	return p
}

func (p *NetworkDefinitionProvider) resolve(nameOrIdentifier string) string {
	id := strings.ToLower(strings.TrimSpace(nameOrIdentifier))
	if alias, ok := p.aliases[id]; ok {
		return alias
	}
	return id
}

// GetAllNetworkDefinitions returns every known network sorted by identifier.
func (p *NetworkDefinitionProvider) GetAllNetworkDefinitions() []entity.NetworkDefinition {
	if p == nil {
		return []entity.NetworkDefinition{}
	}
	defs := make([]entity.NetworkDefinition, 0, len(p.byID))
	for _, def := range p.byID {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Identifier < defs[j].Identifier })
	return defs
}

// GetNetworkDefinitionByName returns a network by identifier or alias, case-insensitively.
func (p *NetworkDefinitionProvider) GetNetworkDefinitionByName(nameOrIdentifier string) (entity.NetworkDefinition, bool) {
	if p == nil {
		return entity.NetworkDefinition{}, false
	}
	def, ok := p.byID[p.resolve(nameOrIdentifier)]
	return def, ok
}

// GetNetworkDefinitionByChainID returns an EVM network by its numeric chain id.
func (p *NetworkDefinitionProvider) GetNetworkDefinitionByChainID(chainID uint64) (entity.NetworkDefinition, bool) {
	if p == nil {
		return entity.NetworkDefinition{}, false
	}
	for _, def := range p.byID {
		if def.IsEVM() && def.ChainID == chainID {
			return def, true
		}
	}
	return entity.NetworkDefinition{}, false
}
