package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pumpstream/pumpfun-indexer/internal/domain"
	"github.com/pumpstream/pumpfun-indexer/internal/storage"
)

func testToken(mint string) *domain.Token {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &domain.Token{
		MintAddress:          mint,
		Name:                 "Doge Classic",
		Symbol:               "DOGE",
		URI:                  "https://ipfs.io/ipfs/QmDoge",
		Creator:              "creator-wallet",
		BondingCurveAddress:  "curve-" + mint,
		TokenTotalSupply:     1_000_000_000_000_000,
		VirtualSolReserves:   30_000_000_000,
		VirtualTokenReserves: 1_073_000_000_000_000,
		RealTokenReserves:    793_100_000_000_000,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

func TestTokenStore_UpsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenStore(pool)

	tok := testToken("mint-1")
	require.NoError(t, store.Upsert(ctx, tok))

	got, err := store.Get(ctx, "mint-1")
	require.NoError(t, err)
	assert.Equal(t, "DOGE", got.Symbol)
	assert.Equal(t, int64(30_000_000_000), got.VirtualSolReserves)
	assert.False(t, got.Complete)

	// A replayed creation must not clobber the stored row.
	replay := testToken("mint-1")
	replay.Name = "Replayed"
	require.NoError(t, store.Upsert(ctx, replay))

	got, err = store.Get(ctx, "mint-1")
	require.NoError(t, err)
	assert.Equal(t, "Doge Classic", got.Name)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTokenStore_UpdateReservesAndDerived(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenStore(pool)
	require.NoError(t, store.Upsert(ctx, testToken("mint-1")))

	require.NoError(t, store.UpdateReserves(ctx, "mint-1",
		30_100_000_000, 1_069_435_000_000_000, 100_000_000, 789_535_000_000_000))

	require.NoError(t, store.UpdateDerived(ctx, storage.DerivedUpdate{
		MintAddress:          "mint-1",
		MarketCapSol:         28.15,
		MarketCapUSD:         5650.3,
		BondingCurveProgress: 0.118,
		VirtualSolReserves:   30_100_000_000,
		VirtualTokenReserves: 1_069_435_000_000_000,
		RealSolReserves:      100_000_000,
		RealTokenReserves:    789_535_000_000_000,
		UpdatedAt:            time.Now().UTC(),
	}))

	got, err := store.Get(ctx, "mint-1")
	require.NoError(t, err)
	assert.Equal(t, int64(30_100_000_000), got.VirtualSolReserves)
	assert.InEpsilon(t, 28.15, got.MarketCapSol, 1e-9)
	assert.InEpsilon(t, 0.118, got.BondingCurveProgress, 1e-9)
}

func TestTokenStore_MarkComplete(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenStore(pool)
	require.NoError(t, store.Upsert(ctx, testToken("mint-1")))

	require.NoError(t, store.MarkComplete(ctx, "mint-1",
		115_005_359_056, 279_900_000_000_000, 85_005_359_056, 0))

	got, err := store.Get(ctx, "mint-1")
	require.NoError(t, err)
	assert.True(t, got.Complete)
	assert.Equal(t, float64(100), got.BondingCurveProgress)
	assert.Equal(t, int64(85_005_359_056), got.RealSolReserves)

	// Completion is monotone: a second event changes nothing.
	require.NoError(t, store.MarkComplete(ctx, "mint-1", 1, 1, 1, 1))
	got, err = store.Get(ctx, "mint-1")
	require.NoError(t, err)
	assert.Equal(t, int64(85_005_359_056), got.RealSolReserves)

	assert.ErrorIs(t, store.MarkComplete(ctx, "unseen", 0, 0, 0, 0), storage.ErrNotFound)
}

func TestTokenStore_ListAndCount(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenStore(pool)

	base := time.Now().UTC().Add(-time.Hour)
	for i, mint := range []string{"mint-a", "mint-b", "mint-c"} {
		tok := testToken(mint)
		tok.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		tok.MarketCapSol = float64(i * 10)
		require.NoError(t, store.Upsert(ctx, tok))
	}
	require.NoError(t, store.MarkComplete(ctx, "mint-b", 1, 1, 85_000_000_000, 0))

	newest, err := store.List(ctx, storage.TokenFilter{Limit: 2, Sort: storage.SortByCreatedAt})
	require.NoError(t, err)
	require.Len(t, newest, 2)
	assert.Equal(t, "mint-c", newest[0].MintAddress)

	completed, err := store.List(ctx, storage.TokenFilter{Complete: ptr(true)})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, "mint-b", completed[0].MintAddress)

	n, err := store.CountAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	all, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
