package postgres

import (
	"context"
	"fmt"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
)

// WalletStore implements port.WalletStore using PostgreSQL.
type WalletStore struct {
	pool *Pool
}

// NewWalletStore creates a new PostgreSQL wallet store.
func NewWalletStore(pool *Pool) *WalletStore {
	return &WalletStore{pool: pool}
}

var _ port.WalletStore = (*WalletStore)(nil)

// Create inserts a wallet. Returns entity.ErrDuplicateKey if (user_id, address, chain) exists.
func (s *WalletStore) Create(ctx context.Context, w entity.Wallet) (entity.Wallet, error) {
	query := `
		INSERT INTO wallets (id, user_id, name, address, chain, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.pool.Exec(ctx, query, w.ID, w.UserID, w.Name, w.Address, w.Chain, w.CreatedAt.UTC())
	if err != nil {
		if isDuplicateKeyError(err) {
			return entity.Wallet{}, entity.ErrDuplicateKey
		}
		return entity.Wallet{}, fmt.Errorf("insert wallet: %w", err)
	}
	return w, nil
}

// ListByUser returns wallets ordered by creation time.
func (s *WalletStore) ListByUser(ctx context.Context, userID string) ([]entity.Wallet, error) {
	query := `
		SELECT id, user_id, name, address, chain, created_at
		FROM wallets
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query wallets: %w", err)
	}
	defer rows.Close()

	var result []entity.Wallet
	for rows.Next() {
		var w entity.Wallet
		if err := rows.Scan(&w.ID, &w.UserID, &w.Name, &w.Address, &w.Chain, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan wallet: %w", err)
		}
		w.CreatedAt = w.CreatedAt.UTC()
		result = append(result, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallets: %w", err)
	}
	return result, nil
}

// GetByID returns entity.ErrNotFound if no wallet has the id.
func (s *WalletStore) GetByID(ctx context.Context, id string) (entity.Wallet, error) {
	query := `
		SELECT id, user_id, name, address, chain, created_at
		FROM wallets
		WHERE id = $1
	`
	var w entity.Wallet
	err := s.pool.QueryRow(ctx, query, id).Scan(&w.ID, &w.UserID, &w.Name, &w.Address, &w.Chain, &w.CreatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return entity.Wallet{}, entity.ErrNotFound
		}
		return entity.Wallet{}, fmt.Errorf("get wallet: %w", err)
	}
	w.CreatedAt = w.CreatedAt.UTC()
	return w, nil
}

// Delete returns entity.ErrNotFound if no wallet has the id.
func (s *WalletStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM wallets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete wallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return entity.ErrNotFound
	}
	return nil
}
