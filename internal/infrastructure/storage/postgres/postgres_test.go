package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/storage/migrations"
	"portfolio_aggregator/internal/infrastructure/storage/postgres"
)

func sampleTx(id string, date time.Time, status entity.TxStatus) entity.Transaction {
	return entity.Transaction{
		ID:           id,
		Date:         date,
		Type:         entity.TxTypeReceive,
		Asset:        entity.Asset{ID: "bitcoin", Chain: "bitcoin", Name: "Bitcoin", Ticker: "BTC", Price: 60000, SparklineData: []entity.SparklinePoint{}},
		AmountCrypto: 0.5,
		AmountUSD:    30000,
		Status:       status,
		Address:      "bc1qsender",
		Wallet:       "bc1qwallet",
		Chain:        "bitcoin",
		GasFeeUSD:    1.5,
	}
}

func TestTransactionStore_UpsertIdempotentAndPaged(t *testing.T) {
	pool := setupTestDB(t)
	store := postgres.NewTransactionStore(pool)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	txs := []entity.Transaction{
		sampleTx("a", base, entity.TxStatusCompleted),
		sampleTx("b", base.Add(time.Hour), entity.TxStatusPending),
		sampleTx("c", base.Add(2*time.Hour), entity.TxStatusCompleted),
	}

	require.NoError(t, store.Upsert(ctx, "BC1QWALLET", "Bitcoin", txs))
	require.NoError(t, store.Upsert(ctx, "bc1qwallet", "bitcoin", txs))

	n, err := store.Count(ctx, "bc1qwallet", "bitcoin")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	page, err := store.GetPage(ctx, "bc1qwallet", "bitcoin", 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "c", page[0].ID)
	assert.Equal(t, "b", page[1].ID)
	assert.Equal(t, "BTC", page[0].Asset.Ticker)
	assert.InDelta(t, 30000.0, page[0].AmountUSD, 1e-9)

	page, err = store.GetPage(ctx, "bc1qwallet", "bitcoin", 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "a", page[0].ID)

	latest, err := store.GetLatestTimestamp(ctx, "bc1qwallet", "bitcoin")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, latest.Equal(base.Add(2*time.Hour)))
}

func TestTransactionStore_StatusTransitionOnly(t *testing.T) {
	pool := setupTestDB(t)
	store := postgres.NewTransactionStore(pool)
	ctx := context.Background()

	tx := sampleTx("p", time.Now().UTC().Truncate(time.Second), entity.TxStatusPending)
	require.NoError(t, store.Upsert(ctx, tx.Wallet, tx.Chain, []entity.Transaction{tx}))

	updated := tx
	updated.Status = entity.TxStatusCompleted
	updated.AmountUSD = 1
	require.NoError(t, store.Upsert(ctx, tx.Wallet, tx.Chain, []entity.Transaction{updated}))

	page, err := store.GetPage(ctx, tx.Wallet, tx.Chain, 10, 0)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, entity.TxStatusCompleted, page[0].Status)
	assert.InDelta(t, 30000.0, page[0].AmountUSD, 1e-9)
}

func TestTransactionStore_EmptyPartition(t *testing.T) {
	pool := setupTestDB(t)
	store := postgres.NewTransactionStore(pool)
	ctx := context.Background()

	latest, err := store.GetLatestTimestamp(ctx, "nobody", "ethereum")
	require.NoError(t, err)
	assert.Nil(t, latest)

	deleted, err := store.DeleteByWallet(ctx, "nobody", "ethereum")
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestWalletStore_CRUD(t *testing.T) {
	pool := setupTestDB(t)
	store := postgres.NewWalletStore(pool)
	ctx := context.Background()

	w := entity.Wallet{
		ID:        "11111111-1111-1111-1111-111111111111",
		UserID:    entity.DefaultUserID,
		Name:      "cold",
		Address:   "bc1qwallet",
		Chain:     "bitcoin",
		CreatedAt: time.Now().UTC(),
	}
	_, err := store.Create(ctx, w)
	require.NoError(t, err)

	dup := w
	dup.ID = "22222222-2222-2222-2222-222222222222"
	_, err = store.Create(ctx, dup)
	assert.ErrorIs(t, err, entity.ErrDuplicateKey)

	list, err := store.ListByUser(ctx, entity.DefaultUserID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "cold", list[0].Name)

	got, err := store.GetByID(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, w.Address, got.Address)

	require.NoError(t, store.Delete(ctx, w.ID))
	assert.ErrorIs(t, store.Delete(ctx, w.ID), entity.ErrNotFound)
	_, err = store.GetByID(ctx, w.ID)
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestCacheStore_TTL(t *testing.T) {
	pool := setupTestDB(t)
	store := postgres.NewCacheStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte(`{"a":1}`), time.Second))
	data, ok := store.Get(ctx, "k")
	require.True(t, ok)
	assert.JSONEq(t, `{"a":1}`, string(data))

	time.Sleep(1500 * time.Millisecond)
	_, ok = store.Get(ctx, "k")
	assert.False(t, ok)

	removed, err := store.Sweep(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)
}

func TestMigrations_Idempotent(t *testing.T) {
	pool := setupTestDB(t)
	require.NoError(t, migrations.RunPostgresMigrations(context.Background(), pool))
}
