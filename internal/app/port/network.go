package port

import (
	"context"
	"math/big"

	"portfolio_aggregator/internal/domain/entity"
)

// ChainAdapter wraps one upstream explorer API behind the uniform fetch contract.
// Balance and transaction calls propagate *entity.UpstreamError; GetNfts and
// VerifyContract report "nothing available" instead of failing where the chain has no support.
type ChainAdapter interface {
	// Network returns the network definition the adapter serves.
	Network() entity.NetworkDefinition

	// ValidateAddress rejects malformed addresses with *entity.ValidationError, without network calls.
	ValidateAddress(address string) error

	// GetBalance returns the native balance in raw chain units.
	GetBalance(ctx context.Context, address string) (*big.Int, error)

	// GetTokenBalances returns fungible token positions in raw units.
	GetTokenBalances(ctx context.Context, address string) ([]entity.TokenBalance, error)

	// FetchTransactions returns the full upstream history known to the explorer.
	// Pagination over it is served from storage by the portfolio service.
	FetchTransactions(ctx context.Context, address string) ([]entity.RawTransaction, error)

	// GetNfts returns current NFT holdings, empty when unsupported.
	GetNfts(ctx context.Context, address string) ([]entity.Nft, error)

	// VerifyContract asks the chain's source-verification endpoint about a contract.
	VerifyContract(ctx context.Context, address string) (entity.ContractVerification, error)
}

// NetworkDefinitionProvider defines the interface for providing network definitions.
type NetworkDefinitionProvider interface {
	// GetAllNetworkDefinitions returns all available network definitions as a slice.
	GetAllNetworkDefinitions() []entity.NetworkDefinition

	// GetNetworkDefinitionByName returns a specific network definition by its identifier.
	// Возвращает определение и true, если найдено, иначе false.
	GetNetworkDefinitionByName(nameOrIdentifier string) (entity.NetworkDefinition, bool)
}

// AdapterProvider resolves a chain identifier to its adapter.
type AdapterProvider interface {
	// GetAdapter fails with *entity.UnsupportedChainError before any network call.
	GetAdapter(chain string) (ChainAdapter, error)
}
