package port

import (
	"context"

	"portfolio_aggregator/internal/domain/entity"
)

// WalletProvider defines the interface for reading wallets to import at startup.
type WalletProvider interface {
	GetWallets() ([]entity.Wallet, error)
}

// WalletStore persists wallet records.
type WalletStore interface {
	// Create inserts a wallet. Returns entity.ErrDuplicateKey if (userId, address, chain) exists.
	Create(ctx context.Context, wallet entity.Wallet) (entity.Wallet, error)

	// ListByUser returns wallets for a user ordered by creation time.
	ListByUser(ctx context.Context, userID string) ([]entity.Wallet, error)

	// GetByID returns entity.ErrNotFound if no wallet has the id.
	GetByID(ctx context.Context, id string) (entity.Wallet, error)

	// Delete returns entity.ErrNotFound if no wallet has the id.
	Delete(ctx context.Context, id string) error
}
