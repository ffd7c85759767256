package entity

// ChainFamily groups networks that share one upstream protocol and one raw data shape.
type ChainFamily string

const (
	FamilyEVM     ChainFamily = "evm"
	FamilySolana  ChainFamily = "solana"
	FamilyBitcoin ChainFamily = "bitcoin"
	FamilyTON     ChainFamily = "ton"
)

// NetworkDefinition holds the configuration for a specific blockchain network.
// This structure is defined at the domain level to be used across application and infrastructure layers.
type NetworkDefinition struct {
	Identifier    string      `json:"identifier" yaml:"identifier"` // Уникальный идентификатор сети, он же сегмент пути API ("ethereum", "solana")
	Name          string      `json:"name" yaml:"name"`
	Family        ChainFamily `json:"family" yaml:"family"`
	ChainID       uint64      `json:"chainId,omitempty" yaml:"chainId,omitempty"` // only meaningful for EVM
	NativeSymbol  string      `json:"nativeSymbol" yaml:"nativeSymbol"`
	NativeName    string      `json:"nativeName" yaml:"nativeName"`
	NativeAssetID string      `json:"nativeAssetId" yaml:"nativeAssetId"`
	Decimals      uint8       `json:"decimals" yaml:"decimals"` // Количество десятичных знаков для нативного токена
	CoinGeckoID   string      `json:"coingeckoId" yaml:"coingeckoId"`

	PrimaryRPCURL    string   `json:"primaryRpcUrl,omitempty" yaml:"primaryRpcUrl,omitempty"`
	FallbackRPCURLs  []string `json:"fallbackRpcUrls,omitempty" yaml:"fallbackRpcUrls,omitempty"`
	BlockExplorerURL string   `json:"blockExplorerUrl,omitempty" yaml:"blockExplorerUrl,omitempty"`

	DEXScreenerChainID        string `json:"dexScreenerChainId,omitempty" yaml:"dexScreenerChainId,omitempty"`
	WrappedNativeTokenAddress string `json:"wrappedNativeTokenAddress,omitempty" yaml:"wrappedNativeTokenAddress,omitempty"`
}

// IsEVM reports whether the network is served by the Etherscan-compatible adapter.
func (n NetworkDefinition) IsEVM() bool {
	return n.Family == FamilyEVM
}
