package service

import (
	"context"
	"errors"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"portfolio_aggregator/internal/app/normalizer"
	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/metrics"
	"portfolio_aggregator/internal/pkg/utils"

	"golang.org/x/sync/errgroup"
)

const (
	defaultPageLimit = 100
	maxPageLimit     = 1000
)

// PortfolioOptions tunes the portfolio service.
type PortfolioOptions struct {
	MaxConcurrentRoutines int
	DefaultPageLimit      int
	MaxPageLimit          int
}

// PortfolioServiceImpl implements port.PortfolioService.
type PortfolioServiceImpl struct {
	adapters  port.AdapterProvider
	oracle    port.PriceOracle
	dexPricer port.TokenAddressPricer // optional
	tokens    port.TokenProvider
	txStore   port.TransactionStore
	wallets   port.WalletStore
	metrics   *metrics.Metrics
	logger    port.Logger
	opts      PortfolioOptions
	now       func() time.Time
}

// NewPortfolioService creates a new instance of PortfolioServiceImpl. dexPricer and m may be nil.
func NewPortfolioService(
	ap port.AdapterProvider,
	oracle port.PriceOracle,
	dexPricer port.TokenAddressPricer,
	tp port.TokenProvider,
	txStore port.TransactionStore,
	wallets port.WalletStore,
	m *metrics.Metrics,
	l port.Logger,
	opts PortfolioOptions,
) *PortfolioServiceImpl {
	if opts.MaxConcurrentRoutines <= 0 {
		opts.MaxConcurrentRoutines = 1
	}
	if opts.DefaultPageLimit <= 0 {
		opts.DefaultPageLimit = defaultPageLimit
	}
	if opts.MaxPageLimit <= 0 {
		opts.MaxPageLimit = maxPageLimit
	}
	return &PortfolioServiceImpl{
		adapters:  ap,
		oracle:    oracle,
		dexPricer: dexPricer,
		tokens:    tp,
		txStore:   txStore,
		wallets:   wallets,
		metrics:   m,
		logger:    l,
		opts:      opts,
		now:       time.Now,
	}
}

var _ port.PortfolioService = (*PortfolioServiceImpl)(nil)

// adapterFor resolves the adapter and validates the address before any network call.
func (s *PortfolioServiceImpl) adapterFor(chain, address string) (port.ChainAdapter, error) {
	adapter, err := s.adapters.GetAdapter(chain)
	if err != nil {
		return nil, err
	}
	if err := adapter.ValidateAddress(strings.TrimSpace(address)); err != nil {
		return nil, err
	}
	return adapter, nil
}

// retryRead runs a storage read and retries it once before reporting a PersistenceError.
func retryRead[T any](ctx context.Context, logger port.Logger, op string, read func(context.Context) (T, error)) (T, error) {
	v, err := read(ctx)
	if err == nil {
		return v, nil
	}
	if ctx.Err() == nil {
		logger.Warn("Ошибка чтения из хранилища, повторяем", "op", op, "error", err)
		v, err = read(ctx)
		if err == nil {
			return v, nil
		}
	}
	var zero T
	return zero, &entity.PersistenceError{Op: op, Err: err}
}

type tokenPosition struct {
	balance entity.TokenBalance
	asset   entity.Asset
}

// GetAssets returns the native asset followed by every positive token position, valued in USD.
// A failed native balance fails the call; token and price failures only drop data.
func (s *PortfolioServiceImpl) GetAssets(ctx context.Context, chain, address string) ([]entity.Asset, error) {
	adapter, err := s.adapterFor(chain, address)
	if err != nil {
		return nil, err
	}
	netDef := adapter.Network()
	address = strings.TrimSpace(address)

	var (
		native   *big.Int
		balances []entity.TokenBalance
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := adapter.GetBalance(gctx, address)
		native = v
		return err
	})
	g.Go(func() error {
		v, err := adapter.GetTokenBalances(gctx, address)
		if err != nil {
			s.logger.Warn("Не удалось получить балансы токенов", "network", netDef.Identifier, "address", address, "error", err)
			return nil
		}
		balances = v
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	nativeAsset := entity.Asset{
		ID:            netDef.NativeAssetID,
		Chain:         netDef.Identifier,
		Name:          netDef.NativeName,
		Ticker:        netDef.NativeSymbol,
		BalanceCrypto: utils.ToFloat(native, netDef.Decimals),
		CoinGeckoID:   netDef.CoinGeckoID,
	}

	positions := make([]tokenPosition, 0, len(balances))
	priceIDs := []string{netDef.CoinGeckoID}
	var unpriced []string
	for _, b := range balances {
		if b.Amount == nil || b.Amount.Sign() <= 0 {
			continue
		}
		pos := tokenPosition{balance: b, asset: s.tokenAsset(netDef, b)}
		if pos.asset.CoinGeckoID != "" {
			priceIDs = append(priceIDs, pos.asset.CoinGeckoID)
		} else {
			unpriced = append(unpriced, b.ContractAddress)
		}
		positions = append(positions, pos)
	}

	market := s.marketByID(ctx, priceIDs)
	nativeAsset = applyMarket(nativeAsset, market)

	var dexPrices map[string]float64
	if len(unpriced) > 0 && s.dexPricer != nil {
		dexPrices = s.dexPricer.GetTokenPricesByAddress(ctx, netDef, unpriced)
	}

	assets := make([]entity.Asset, 0, len(positions)+1)
	assets = append(assets, nativeAsset.Valued())
	for _, pos := range positions {
		asset := applyMarket(pos.asset, market)
		if asset.Price == 0 {
			asset.Price = dexPrices[strings.ToLower(pos.balance.ContractAddress)]
		}
		assets = append(assets, asset.Valued())
	}
	return assets, nil
}

func (s *PortfolioServiceImpl) tokenAsset(netDef entity.NetworkDefinition, b entity.TokenBalance) entity.Asset {
	id := b.ContractAddress
	if netDef.IsEVM() {
		id = strings.ToLower(id)
	}
	asset := entity.Asset{
		ID:     id,
		Chain:  netDef.Identifier,
		Name:   b.Name,
		Ticker: b.Symbol,
	}
	if b.UIAmount != nil {
		asset.BalanceCrypto = *b.UIAmount
	} else {
		asset.BalanceCrypto = utils.ToFloat(b.Amount, b.Decimals)
	}

	if s.tokens != nil {
		if info, ok := s.tokens.TokenByAddress(netDef.Identifier, b.ContractAddress); ok {
			if asset.Name == "" {
				asset.Name = info.Name
			}
			if asset.Ticker == "" {
				asset.Ticker = info.Symbol
			}
			asset.CoinGeckoID = info.CoinGeckoID
		}
		if asset.CoinGeckoID == "" && asset.Ticker != "" {
			if cgID, ok := s.tokens.CoinGeckoID(asset.Ticker); ok {
				asset.CoinGeckoID = cgID
			}
		}
	}
	if asset.Name == "" {
		asset.Name = asset.Ticker
	}
	return asset
}

// marketByID loads market rows for ids and fills gaps from the spot price endpoint.
func (s *PortfolioServiceImpl) marketByID(ctx context.Context, ids []string) map[string]entity.MarketEntry {
	ids = utils.SortedUnique(ids)
	result := make(map[string]entity.MarketEntry, len(ids))
	if len(ids) == 0 {
		return result
	}
	for _, row := range s.oracle.GetMarketData(ctx, ids) {
		result[row.ID] = row
	}

	var missing []string
	for _, id := range ids {
		if _, ok := result[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		for id, quote := range s.oracle.GetPrices(ctx, missing) {
			result[id] = entity.MarketEntry{ID: id, CurrentPrice: quote.USD}
		}
	}
	return result
}

func applyMarket(asset entity.Asset, market map[string]entity.MarketEntry) entity.Asset {
	row, ok := market[asset.CoinGeckoID]
	if !ok || asset.CoinGeckoID == "" {
		return asset
	}
	asset.Price = row.CurrentPrice
	asset.Change24h = row.PriceChangePercentage24h
	asset.MarketCap = row.MarketCap
	asset.Volume24h = row.TotalVolume
	asset.SparklineData = row.Sparkline()
	return asset
}

// GetTransactions serves a page from storage. When fewer than limit+offset
// transactions are stored, the full upstream history is fetched, normalized and
// upserted first.
func (s *PortfolioServiceImpl) GetTransactions(ctx context.Context, chain, address string, limit, offset int) ([]entity.Transaction, error) {
	adapter, err := s.adapterFor(chain, address)
	if err != nil {
		return nil, err
	}
	netDef := adapter.Network()
	address = strings.TrimSpace(address)
	limit, offset = s.clampPage(limit, offset)

	stored, err := retryRead(ctx, s.logger, "count transactions", func(ctx context.Context) (int, error) {
		return s.txStore.Count(ctx, address, netDef.Identifier)
	})
	if err != nil {
		return nil, err
	}

	if stored < limit+offset {
		if err := s.backfill(ctx, adapter, address); err != nil {
			return nil, err
		}
	}

	page, err := retryRead(ctx, s.logger, "get transactions page", func(ctx context.Context) ([]entity.Transaction, error) {
		return s.txStore.GetPage(ctx, address, netDef.Identifier, limit, offset)
	})
	if err != nil {
		return nil, err
	}
	if page == nil {
		page = []entity.Transaction{}
	}
	return page, nil
}

func (s *PortfolioServiceImpl) clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = s.opts.DefaultPageLimit
	}
	if limit > s.opts.MaxPageLimit {
		limit = s.opts.MaxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (s *PortfolioServiceImpl) backfill(ctx context.Context, adapter port.ChainAdapter, address string) error {
	netDef := adapter.Network()
	s.metrics.IncBackfill(netDef.Identifier)
	s.logger.Info("Загружаем историю транзакций из внешнего источника", "network", netDef.Identifier, "address", address)

	latest, err := s.txStore.GetLatestTimestamp(ctx, address, netDef.Identifier)
	if err != nil {
		s.logger.Warn("Не удалось прочитать дату последней транзакции", "network", netDef.Identifier, "address", address, "error", err)
	}

	raws, err := adapter.FetchTransactions(ctx, address)
	if err != nil {
		return err
	}

	nctx := normalizer.Context{
		Wallet:  address,
		Network: netDef,
		Tokens:  s.tokens,
		Now:     s.now(),
	}
	quotes := s.oracle.GetPrices(ctx, normalizer.PriceIDs(nctx, raws))
	nctx.Prices = make(map[string]float64, len(quotes))
	for id, q := range quotes {
		nctx.Prices[id] = q.USD
	}

	txs, err := normalizer.NormalizeAll(nctx, raws)
	if err != nil {
		return err
	}
	if err := s.txStore.Upsert(ctx, address, netDef.Identifier, txs); err != nil {
		return &entity.PersistenceError{Op: "upsert transactions", Err: err}
	}
	s.metrics.AddUpserted(len(txs))
	s.logger.Debug("История транзакций сохранена", "network", netDef.Identifier, "address", address,
		"count", len(txs), "newer_than_stored", countNewer(txs, latest))
	return nil
}

// countNewer counts transactions dated after latest; all of them when latest is nil.
func countNewer(txs []entity.Transaction, latest *time.Time) int {
	if latest == nil {
		return len(txs)
	}
	n := 0
	for _, tx := range txs {
		if tx.Date.After(*latest) {
			n++
		}
	}
	return n
}

// GetNfts returns current NFT holdings; upstream failures yield an empty list.
func (s *PortfolioServiceImpl) GetNfts(ctx context.Context, chain, address string) ([]entity.Nft, error) {
	adapter, err := s.adapterFor(chain, address)
	if err != nil {
		return nil, err
	}
	nfts, err := adapter.GetNfts(ctx, strings.TrimSpace(address))
	if err != nil {
		s.logger.Warn("Не удалось получить NFT", "network", adapter.Network().Identifier, "address", address, "error", err)
		return []entity.Nft{}, nil
	}
	if nfts == nil {
		nfts = []entity.Nft{}
	}
	return nfts, nil
}

// VerifyContract reports source verification; upstream failures read as "not verified".
func (s *PortfolioServiceImpl) VerifyContract(ctx context.Context, chain, address string) (entity.ContractVerification, error) {
	adapter, err := s.adapterFor(chain, address)
	if err != nil {
		return entity.ContractVerification{}, err
	}
	res, err := adapter.VerifyContract(ctx, strings.TrimSpace(address))
	if err != nil {
		s.logger.Warn("Не удалось проверить контракт", "network", adapter.Network().Identifier, "address", address, "error", err)
		var upstream *entity.UpstreamError
		msg := err.Error()
		if errors.As(err, &upstream) && upstream.Err != nil {
			msg = upstream.Err.Error()
		}
		return entity.ContractVerification{IsVerified: false, Message: msg}, nil
	}
	return res, nil
}

// GetPortfolioAssets aggregates the assets of every wallet the user registered.
// Wallets are fetched concurrently; a failing wallet is reported, not fatal.
func (s *PortfolioServiceImpl) GetPortfolioAssets(ctx context.Context, userID string) ([]entity.Asset, []entity.PortfolioError, error) {
	wallets, err := retryRead(ctx, s.logger, "list wallets", func(ctx context.Context) ([]entity.Wallet, error) {
		return s.wallets.ListByUser(ctx, userID)
	})
	if err != nil {
		return nil, nil, err
	}

	var (
		mu        sync.Mutex
		merged    = make(map[string]entity.Asset)
		order     []string
		errorsOut []entity.PortfolioError
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.MaxConcurrentRoutines)
	for _, w := range wallets {
		g.Go(func() error {
			assets, err := s.GetAssets(gctx, w.Chain, w.Address)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Warn("Не удалось получить активы кошелька", "wallet", w.ID, "chain", w.Chain, "error", err)
				errorsOut = append(errorsOut, entity.PortfolioError{
					WalletID:      w.ID,
					WalletAddress: w.Address,
					Chain:         w.Chain,
					Message:       err.Error(),
				})
				return nil
			}
			for _, a := range assets {
				key := a.Key()
				if existing, ok := merged[key]; ok {
					merged[key] = existing.Merge(a)
					continue
				}
				merged[key] = a.Valued()
				order = append(order, key)
			}
			return nil
		})
	}
	_ = g.Wait()

	result := make([]entity.Asset, 0, len(order))
	for _, key := range order {
		result = append(result, merged[key])
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].BalanceUSD != result[j].BalanceUSD {
			return result[i].BalanceUSD > result[j].BalanceUSD
		}
		return result[i].Key() < result[j].Key()
	})
	sort.SliceStable(errorsOut, func(i, j int) bool { return errorsOut[i].WalletID < errorsOut[j].WalletID })
	return result, errorsOut, nil
}
