package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pumpstream/pumpfun-indexer/internal/pump/pumptest"
	"github.com/pumpstream/pumpfun-indexer/internal/state"
	"github.com/pumpstream/pumpfun-indexer/internal/storage"
	"github.com/pumpstream/pumpfun-indexer/internal/storage/memory"
)

// seedToken registers a default token in state and storage and applies
// one trade so the derived fields move off their creation values.
func seedToken(t *testing.T, st *state.Store, tokens *memory.TokenStore) {
	t.Helper()

	view, created := st.GetOrCreate(state.Creation{
		Mint:                 pumptest.Mint,
		Name:                 "Test Token",
		Symbol:               "TEST",
		BondingCurve:         pumptest.Curve,
		Creator:              pumptest.Creator,
		TokenTotalSupply:     1_000_000_000_000_000,
		VirtualSolReserves:   30_000_000_000,
		VirtualTokenReserves: 1_073_000_000_000_000,
		RealTokenReserves:    793_100_000_000_000,
		Timestamp:            1_700_000_000,
	}, 200)
	require.True(t, created)
	require.NoError(t, tokens.Upsert(context.Background(), state.TokenFromView(view)))

	_, err := st.ApplyTrade(pumptest.Mint, state.Reserves{
		VirtualSol:   31_000_000_000,
		VirtualToken: 1_040_000_000_000_000,
		RealSol:      1_000_000_000,
		RealToken:    760_100_000_000_000,
	}, 1_700_000_010, 200)
	require.NoError(t, err)
}

func TestFlusher_Flush(t *testing.T) {
	st := state.NewStore()
	tokens := memory.NewTokenStore()
	seedToken(t, st, tokens)

	f := NewFlusher(FlushOptions{State: st, Tokens: tokens})
	require.NoError(t, f.Flush(context.Background()))

	row, err := tokens.Get(context.Background(), pumptest.Mint)
	require.NoError(t, err)
	assert.Equal(t, int64(31_000_000_000), row.VirtualSolReserves)
	assert.Equal(t, int64(760_100_000_000_000), row.RealTokenReserves)
	assert.Greater(t, row.MarketCapSol, 0.0)
	assert.Greater(t, row.MarketCapUSD, 0.0)
	assert.Greater(t, row.BondingCurveProgress, 0.0)
}

// failingTokens rejects every derived update.
type failingTokens struct {
	storage.TokenStore
}

func (f *failingTokens) UpdateDerived(context.Context, storage.DerivedUpdate) error {
	return errors.New("connection reset")
}

func TestFlusher_FlushReportsFailures(t *testing.T) {
	st := state.NewStore()
	tokens := memory.NewTokenStore()
	seedToken(t, st, tokens)

	f := NewFlusher(FlushOptions{State: st, Tokens: &failingTokens{TokenStore: tokens}})
	err := f.Flush(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 tokens failed")
}

func TestFlusher_FlushEmptyState(t *testing.T) {
	f := NewFlusher(FlushOptions{State: state.NewStore(), Tokens: memory.NewTokenStore()})
	assert.NoError(t, f.Flush(context.Background()))
}

func TestFlusher_Run(t *testing.T) {
	st := state.NewStore()
	tokens := memory.NewTokenStore()
	seedToken(t, st, tokens)

	f := NewFlusher(FlushOptions{
		State:    st,
		Tokens:   tokens,
		Interval: 5 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- f.Run(ctx) }()

	waitFor(t, func() bool {
		row, err := tokens.Get(context.Background(), pumptest.Mint)
		return err == nil && row.VirtualSolReserves == 31_000_000_000
	})

	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)
}
