package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	jsoniter "github.com/json-iterator/go"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// TransactionStore implements port.TransactionStore using PostgreSQL.
type TransactionStore struct {
	pool *Pool
}

// NewTransactionStore creates a new PostgreSQL transaction store.
func NewTransactionStore(pool *Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

var _ port.TransactionStore = (*TransactionStore)(nil)

// Only status may change after a transaction is first written (Pending -> Completed/Failed).
const upsertTransactionSQL = `
	INSERT INTO transactions (
		hash, wallet, chain, ts, type, asset,
		amount_crypto, amount_usd, status, counterparty, gas_fee_usd
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (hash, wallet, chain) DO UPDATE SET status = EXCLUDED.status
`

// Upsert writes transactions in a single batch. Rows sharing a hash collapse to the first occurrence.
func (s *TransactionStore) Upsert(ctx context.Context, wallet, chain string, txs []entity.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	wallet, chain = entity.NormalizeKey(wallet), entity.NormalizeKey(chain)

	batch := &pgx.Batch{}
	seen := make(map[string]struct{}, len(txs))
	for _, tx := range txs {
		if _, dup := seen[tx.ID]; dup {
			continue
		}
		seen[tx.ID] = struct{}{}

		asset, err := json.Marshal(tx.Asset)
		if err != nil {
			return fmt.Errorf("marshal asset of %s: %w", tx.ID, err)
		}
		batch.Queue(upsertTransactionSQL,
			tx.ID, wallet, chain, tx.Date.UTC(), string(tx.Type), asset,
			tx.AmountCrypto, tx.AmountUSD, string(tx.Status), tx.Address, tx.GasFeeUSD,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("upsert transaction: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("upsert transactions: %w", err)
	}
	return nil
}

// GetPage returns transactions sorted by date descending; hash breaks ties.
func (s *TransactionStore) GetPage(ctx context.Context, wallet, chain string, limit, offset int) ([]entity.Transaction, error) {
	query := `
		SELECT hash, wallet, chain, ts, type, asset,
		       amount_crypto, amount_usd, status, counterparty, gas_fee_usd
		FROM transactions
		WHERE wallet = $1 AND chain = $2
		ORDER BY ts DESC, hash ASC
		LIMIT $3 OFFSET $4
	`
	rows, err := s.pool.Query(ctx, query, entity.NormalizeKey(wallet), entity.NormalizeKey(chain), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	result := make([]entity.Transaction, 0, limit)
	for rows.Next() {
		var (
			tx     entity.Transaction
			txType string
			status string
			asset  []byte
		)
		if err := rows.Scan(
			&tx.ID, &tx.Wallet, &tx.Chain, &tx.Date, &txType, &asset,
			&tx.AmountCrypto, &tx.AmountUSD, &status, &tx.Address, &tx.GasFeeUSD,
		); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if err := json.Unmarshal(asset, &tx.Asset); err != nil {
			return nil, fmt.Errorf("unmarshal asset of %s: %w", tx.ID, err)
		}
		tx.Type = entity.TxType(txType)
		tx.Status = entity.TxStatus(status)
		tx.Date = tx.Date.UTC()
		result = append(result, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return result, nil
}

// Count returns the number of stored transactions for the partition.
func (s *TransactionStore) Count(ctx context.Context, wallet, chain string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM transactions WHERE wallet = $1 AND chain = $2`,
		entity.NormalizeKey(wallet), entity.NormalizeKey(chain),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

// GetLatestTimestamp returns the newest stored transaction date or nil.
func (s *TransactionStore) GetLatestTimestamp(ctx context.Context, wallet, chain string) (*time.Time, error) {
	var ts *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT MAX(ts) FROM transactions WHERE wallet = $1 AND chain = $2`,
		entity.NormalizeKey(wallet), entity.NormalizeKey(chain),
	).Scan(&ts)
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest transaction timestamp: %w", err)
	}
	if ts != nil {
		utc := ts.UTC()
		ts = &utc
	}
	return ts, nil
}

// DeleteByWallet removes the partition.
func (s *TransactionStore) DeleteByWallet(ctx context.Context, wallet, chain string) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM transactions WHERE wallet = $1 AND chain = $2`,
		entity.NormalizeKey(wallet), entity.NormalizeKey(chain),
	)
	if err != nil {
		return 0, fmt.Errorf("delete transactions: %w", err)
	}
	return tag.RowsAffected(), nil
}
