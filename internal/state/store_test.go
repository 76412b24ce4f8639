package state

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCreation(mint string) Creation {
	return Creation{
		Mint:                 mint,
		Name:                 "Doge Classic",
		Symbol:               "DOGE",
		URI:                  "https://ipfs.io/ipfs/QmDoge",
		BondingCurve:         "curve-" + mint,
		Creator:              "creator-wallet",
		TokenTotalSupply:     1_000_000_000_000_000,
		VirtualSolReserves:   30_000_000_000,
		VirtualTokenReserves: 1_073_000_000_000_000,
		RealTokenReserves:    793_100_000_000_000,
		Timestamp:            1_700_000_000,
	}
}

func TestGetOrCreate_Idempotent(t *testing.T) {
	s := NewStore()

	v1, created := s.GetOrCreate(testCreation("mint-1"), 0)
	require.True(t, created)
	assert.Equal(t, "DOGE", v1.Symbol)
	assert.Equal(t, 1, s.Len())

	dup := testCreation("mint-1")
	dup.Name = "Replayed Name"
	v2, created := s.GetOrCreate(dup, 0)
	assert.False(t, created)
	assert.Equal(t, "Doge Classic", v2.Name)
	assert.Equal(t, 1, s.Len())
}

func TestGetOrCreate_DerivedFields(t *testing.T) {
	s := NewStore()

	v, _ := s.GetOrCreate(testCreation("mint-1"), 200)
	assert.InEpsilon(t, 30.0/1_073_000_000.0, v.PriceSol, 1e-12)
	assert.InEpsilon(t, v.PriceSol*1_000_000_000, v.MarketCapSol, 1e-12)
	assert.InEpsilon(t, v.MarketCapSol*200, v.MarketCapUSD, 1e-12)
	assert.Zero(t, v.Progress)
}

func TestApplyTrade(t *testing.T) {
	s := NewStore()
	s.GetOrCreate(testCreation("mint-1"), 0)

	v, err := s.ApplyTrade("mint-1", Reserves{
		VirtualSol:   30_100_000_000,
		VirtualToken: 1_069_435_000_000_000,
		RealSol:      100_000_000,
		RealToken:    789_535_000_000_000,
	}, 1_700_000_100, 0)
	require.NoError(t, err)

	assert.InEpsilon(t, 30.1/1_069_435_000.0, v.PriceSol, 1e-12)
	assert.Zero(t, v.MarketCapUSD)
	assert.InEpsilon(t, 0.1/85.0*100, v.Progress, 1e-9)
	assert.Equal(t, int64(1_700_000_100), v.LastEventTime)
}

func TestApplyTrade_UnknownToken(t *testing.T) {
	s := NewStore()

	_, err := s.ApplyTrade("missing", Reserves{}, 0, 0)
	assert.ErrorIs(t, err, ErrUnknownToken)
}

func TestMarkComplete_Monotone(t *testing.T) {
	s := NewStore()
	s.GetOrCreate(testCreation("mint-1"), 0)

	final := Reserves{
		VirtualSol:   115_005_359_056,
		VirtualToken: 279_900_000_000_000,
		RealSol:      85_005_359_056,
	}
	v, err := s.MarkComplete("mint-1", final, 1_700_001_000, 0)
	require.NoError(t, err)
	assert.True(t, v.Complete)
	assert.Equal(t, float64(100), v.Progress)

	// A replayed completion must not move anything.
	v2, err := s.MarkComplete("mint-1", Reserves{RealSol: 1}, 1_700_002_000, 0)
	require.NoError(t, err)
	assert.Equal(t, v.VirtualSolReserves, v2.VirtualSolReserves)
	assert.Equal(t, v.LastEventTime, v2.LastEventTime)
	assert.Equal(t, float64(100), v2.Progress)
}

func TestMarkComplete_PinsProgressOverTarget(t *testing.T) {
	s := NewStore()
	s.GetOrCreate(testCreation("mint-1"), 0)

	v, err := s.MarkComplete("mint-1", Reserves{RealSol: 42_500_000_000}, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, float64(100), v.Progress)
}

func TestSnapshotAndLoad(t *testing.T) {
	s := NewStore()
	s.GetOrCreate(testCreation("mint-1"), 0)
	s.GetOrCreate(testCreation("mint-2"), 0)

	snap := s.Snapshot()
	require.Len(t, snap, 2)

	restored := NewStore()
	restored.Load(snap)
	assert.Equal(t, 2, restored.Len())

	v, ok := restored.Get("mint-1")
	require.True(t, ok)
	assert.Equal(t, "DOGE", v.Symbol)
}

func TestConcurrentTrades(t *testing.T) {
	s := NewStore()
	mints := []string{"mint-1", "mint-2", "mint-3"}
	for _, m := range mints {
		s.GetOrCreate(testCreation(m), 0)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		for _, m := range mints {
			wg.Add(1)
			go func(mint string, i int) {
				defer wg.Done()
				_, err := s.ApplyTrade(mint, Reserves{
					VirtualSol:   30_000_000_000 + uint64(i),
					VirtualToken: 1_073_000_000_000_000,
				}, int64(i), 0)
				assert.NoError(t, err)
			}(m, i)
		}
	}
	wg.Wait()

	assert.Equal(t, len(mints), s.Len())
	for _, v := range s.Snapshot() {
		assert.Positive(t, v.PriceSol)
	}
}
