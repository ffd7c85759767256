package port

import (
	"context"
	"time"

	"portfolio_aggregator/internal/domain/entity"
)

// TransactionStore persists normalized transactions keyed by (id, wallet, chain).
// wallet and chain arguments are compared lower-cased.
type TransactionStore interface {
	// Upsert is idempotent: writing the same transactions twice leaves one copy of each.
	Upsert(ctx context.Context, wallet, chain string, txs []entity.Transaction) error

	// GetPage returns transactions sorted by date descending, offset applied before limit.
	GetPage(ctx context.Context, wallet, chain string, limit, offset int) ([]entity.Transaction, error)

	// Count returns how many transactions are stored for the partition.
	Count(ctx context.Context, wallet, chain string) (int, error)

	// GetLatestTimestamp returns nil when nothing is stored.
	GetLatestTimestamp(ctx context.Context, wallet, chain string) (*time.Time, error)

	// DeleteByWallet removes every transaction of the partition and returns how many were removed.
	DeleteByWallet(ctx context.Context, wallet, chain string) (int64, error)
}
