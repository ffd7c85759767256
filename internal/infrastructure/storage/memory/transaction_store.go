package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
)

type partition struct {
	wallet string
	chain  string
}

// TransactionStore is an in-process port.TransactionStore for development and tests.
type TransactionStore struct {
	mu   sync.RWMutex
	data map[partition]map[string]entity.Transaction
}

// NewTransactionStore creates an empty in-memory transaction store.
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{data: make(map[partition]map[string]entity.Transaction)}
}

var _ port.TransactionStore = (*TransactionStore)(nil)

func key(wallet, chain string) partition {
	return partition{wallet: entity.NormalizeKey(wallet), chain: entity.NormalizeKey(chain)}
}

// Upsert inserts new transactions; for known ids only the status is updated.
func (s *TransactionStore) Upsert(_ context.Context, wallet, chain string, txs []entity.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	k := key(wallet, chain)

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.data[k]
	if !ok {
		rows = make(map[string]entity.Transaction, len(txs))
		s.data[k] = rows
	}
	seen := make(map[string]struct{}, len(txs))
	for _, tx := range txs {
		if _, dup := seen[tx.ID]; dup {
			continue
		}
		seen[tx.ID] = struct{}{}

		if existing, found := rows[tx.ID]; found {
			existing.Status = tx.Status
			rows[tx.ID] = existing
			continue
		}
		tx.Wallet, tx.Chain = k.wallet, k.chain
		tx.Date = tx.Date.UTC()
		rows[tx.ID] = tx
	}
	return nil
}

// GetPage returns transactions sorted by date descending; id breaks ties.
func (s *TransactionStore) GetPage(_ context.Context, wallet, chain string, limit, offset int) ([]entity.Transaction, error) {
	s.mu.RLock()
	rows := s.data[key(wallet, chain)]
	all := make([]entity.Transaction, 0, len(rows))
	for _, tx := range rows {
		all = append(all, tx)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].Date.Equal(all[j].Date) {
			return all[i].Date.After(all[j].Date)
		}
		return all[i].ID < all[j].ID
	})

	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) || limit <= 0 {
		return []entity.Transaction{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

// Count returns the partition size.
func (s *TransactionStore) Count(_ context.Context, wallet, chain string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data[key(wallet, chain)]), nil
}

// GetLatestTimestamp returns the newest stored date or nil.
func (s *TransactionStore) GetLatestTimestamp(_ context.Context, wallet, chain string) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *time.Time
	for _, tx := range s.data[key(wallet, chain)] {
		if latest == nil || tx.Date.After(*latest) {
			d := tx.Date
			latest = &d
		}
	}
	return latest, nil
}

// DeleteByWallet drops the partition.
func (s *TransactionStore) DeleteByWallet(_ context.Context, wallet, chain string) (int64, error) {
	k := key(wallet, chain)

	s.mu.Lock()
	defer s.mu.Unlock()

	n := int64(len(s.data[k]))
	delete(s.data, k)
	return n, nil
}
