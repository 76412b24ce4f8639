package state

import (
	"time"

	"github.com/pumpstream/pumpfun-indexer/internal/domain"
)

// TokenFromView converts a state view into a token row.
func TokenFromView(v TokenView) *domain.Token {
	return &domain.Token{
		MintAddress:          v.Mint,
		Name:                 v.Name,
		Symbol:               v.Symbol,
		URI:                  v.URI,
		Creator:              v.Creator,
		BondingCurveAddress:  v.BondingCurve,
		TokenTotalSupply:     int64(v.TokenTotalSupply),
		VirtualSolReserves:   int64(v.VirtualSolReserves),
		VirtualTokenReserves: int64(v.VirtualTokenReserves),
		RealSolReserves:      int64(v.RealSolReserves),
		RealTokenReserves:    int64(v.RealTokenReserves),
		Complete:             v.Complete,
		MarketCapSol:         v.MarketCapSol,
		MarketCapUSD:         v.MarketCapUSD,
		BondingCurveProgress: v.Progress,
		CreatedAt:            time.Unix(v.LastEventTime, 0).UTC(),
		UpdatedAt:            v.UpdatedAt,
	}
}

// ViewFromToken converts a persisted token row into a state view.
func ViewFromToken(t *domain.Token) TokenView {
	return TokenView{
		Mint:                 t.MintAddress,
		Name:                 t.Name,
		Symbol:               t.Symbol,
		URI:                  t.URI,
		BondingCurve:         t.BondingCurveAddress,
		Creator:              t.Creator,
		TokenTotalSupply:     uint64(t.TokenTotalSupply),
		VirtualSolReserves:   uint64(t.VirtualSolReserves),
		VirtualTokenReserves: uint64(t.VirtualTokenReserves),
		RealSolReserves:      uint64(t.RealSolReserves),
		RealTokenReserves:    uint64(t.RealTokenReserves),
		Complete:             t.Complete,
		MarketCapSol:         t.MarketCapSol,
		MarketCapUSD:         t.MarketCapUSD,
		Progress:             t.BondingCurveProgress,
		UpdatedAt:            t.UpdatedAt,
	}
}
