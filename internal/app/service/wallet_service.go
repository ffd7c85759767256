package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// WalletServiceImpl implements port.WalletService.
type WalletServiceImpl struct {
	store    port.WalletStore
	txStore  port.TransactionStore
	adapters port.AdapterProvider
	logger   port.Logger
	now      func() time.Time
}

// NewWalletService creates a new instance of WalletServiceImpl.
func NewWalletService(store port.WalletStore, txStore port.TransactionStore, ap port.AdapterProvider, l port.Logger) *WalletServiceImpl {
	return &WalletServiceImpl{
		store:    store,
		txStore:  txStore,
		adapters: ap,
		logger:   l,
		now:      time.Now,
	}
}

var _ port.WalletService = (*WalletServiceImpl)(nil)

// List returns the user's wallets in creation order, never nil.
func (s *WalletServiceImpl) List(ctx context.Context, userID string) ([]entity.Wallet, error) {
	wallets, err := retryRead(ctx, s.logger, "list wallets", func(ctx context.Context) ([]entity.Wallet, error) {
		return s.store.ListByUser(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	if wallets == nil {
		wallets = []entity.Wallet{}
	}
	return wallets, nil
}

// Add validates and registers a wallet. The chain is stored under its canonical
// identifier and EVM addresses in checksum form, so aliases cannot create duplicates.
func (s *WalletServiceImpl) Add(ctx context.Context, userID, name, address, chain string) (entity.Wallet, error) {
	name = strings.TrimSpace(name)
	address = strings.TrimSpace(address)
	chain = strings.TrimSpace(chain)
	if name == "" || address == "" || chain == "" {
		return entity.Wallet{}, &entity.ValidationError{Message: "Wallet name, address, and chain are required."}
	}

	adapter, err := s.adapters.GetAdapter(chain)
	if err != nil {
		return entity.Wallet{}, err
	}
	if err := adapter.ValidateAddress(address); err != nil {
		return entity.Wallet{}, err
	}
	netDef := adapter.Network()
	if netDef.IsEVM() {
		address = common.HexToAddress(address).Hex()
	}

	w, err := s.store.Create(ctx, entity.Wallet{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		Address:   address,
		Chain:     netDef.Identifier,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, entity.ErrDuplicateKey) {
			return entity.Wallet{}, err
		}
		return entity.Wallet{}, &entity.PersistenceError{Op: "create wallet", Err: err}
	}
	s.logger.Info("Кошелек добавлен", "id", w.ID, "chain", w.Chain, "address", w.Address)
	return w, nil
}

// Delete removes a wallet of the user together with its stored transactions.
// Wallets of other users read as missing.
func (s *WalletServiceImpl) Delete(ctx context.Context, userID, id string) error {
	w, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return err
		}
		return &entity.PersistenceError{Op: "get wallet", Err: err}
	}
	if w.UserID != userID {
		return entity.ErrNotFound
	}

	removed, err := s.txStore.DeleteByWallet(ctx, w.Address, w.Chain)
	if err != nil {
		return &entity.PersistenceError{Op: "delete wallet transactions", Err: err}
	}
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return err
		}
		return &entity.PersistenceError{Op: "delete wallet", Err: err}
	}
	s.logger.Info("Кошелек удален", "id", id, "transactions_removed", removed)
	return nil
}

// SeedFromProvider registers every wallet the provider yields for userID.
// Invalid lines and already registered wallets are skipped. Returns how many were added.
func (s *WalletServiceImpl) SeedFromProvider(ctx context.Context, provider port.WalletProvider, userID string) (int, error) {
	wallets, err := provider.GetWallets()
	if err != nil {
		return 0, err
	}
	added := 0
	for _, w := range wallets {
		if _, err := s.Add(ctx, userID, w.Name, w.Address, w.Chain); err != nil {
			if errors.Is(err, entity.ErrDuplicateKey) {
				continue
			}
			var pErr *entity.PersistenceError
			if errors.As(err, &pErr) {
				return added, err
			}
			s.logger.Warn("Пропускаем кошелек из файла", "chain", w.Chain, "address", w.Address, "error", err)
			continue
		}
		added++
	}
	return added, nil
}
