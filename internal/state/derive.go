package state

import "github.com/pumpstream/pumpfun-indexer/internal/pump"

// recompute refreshes the derived fields from the current reserves.
// Progress is pinned to 100 once the curve completes.
func recompute(v *TokenView, solPriceUSD float64) {
	v.PriceSol = pump.PriceSOL(v.VirtualSolReserves, v.VirtualTokenReserves)
	v.MarketCapSol = pump.MarketCapSOL(v.VirtualSolReserves, v.VirtualTokenReserves, v.TokenTotalSupply)
	v.MarketCapUSD = pump.MarketCapUSD(v.MarketCapSol, solPriceUSD)
	if v.Complete {
		v.Progress = 100
	} else {
		v.Progress = pump.Progress(v.RealSolReserves)
	}
}
