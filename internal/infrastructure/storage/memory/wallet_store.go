package memory

import (
	"context"
	"sort"
	"sync"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
)

// WalletStore is an in-process port.WalletStore.
type WalletStore struct {
	mu      sync.RWMutex
	wallets map[string]entity.Wallet
}

// NewWalletStore creates an empty in-memory wallet store.
func NewWalletStore() *WalletStore {
	return &WalletStore{wallets: make(map[string]entity.Wallet)}
}

var _ port.WalletStore = (*WalletStore)(nil)

// Create inserts a wallet unless (user, address, chain) is already registered.
func (s *WalletStore) Create(_ context.Context, w entity.Wallet) (entity.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.wallets[w.ID]; exists {
		return entity.Wallet{}, entity.ErrDuplicateKey
	}
	for _, existing := range s.wallets {
		if existing.UserID == w.UserID && existing.Address == w.Address && existing.Chain == w.Chain {
			return entity.Wallet{}, entity.ErrDuplicateKey
		}
	}
	s.wallets[w.ID] = w
	return w, nil
}

// ListByUser returns the user's wallets ordered by creation time.
func (s *WalletStore) ListByUser(_ context.Context, userID string) ([]entity.Wallet, error) {
	s.mu.RLock()
	var result []entity.Wallet
	for _, w := range s.wallets {
		if w.UserID == userID {
			result = append(result, w)
		}
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// GetByID returns entity.ErrNotFound for unknown ids.
func (s *WalletStore) GetByID(_ context.Context, id string) (entity.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.wallets[id]
	if !ok {
		return entity.Wallet{}, entity.ErrNotFound
	}
	return w, nil
}

// Delete returns entity.ErrNotFound for unknown ids.
func (s *WalletStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.wallets[id]; !ok {
		return entity.ErrNotFound
	}
	delete(s.wallets, id)
	return nil
}
