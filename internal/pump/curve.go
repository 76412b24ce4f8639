package pump

const (
	lamportsPerSol = 1_000_000_000.0
	tokenDecimals  = 1_000_000.0
	graduationSol  = 85.0
)

// PriceSOL returns the spot price in SOL per whole token implied by the
// virtual reserves. Zero token reserves yield 0, meaning no price.
func PriceSOL(virtualSolReserves, virtualTokenReserves uint64) float64 {
	if virtualTokenReserves == 0 {
		return 0
	}
	sol := float64(virtualSolReserves) / lamportsPerSol
	tokens := float64(virtualTokenReserves) / tokenDecimals
	return sol / tokens
}

// MarketCapSOL returns the fully-diluted market cap in SOL.
func MarketCapSOL(virtualSolReserves, virtualTokenReserves, totalSupply uint64) float64 {
	return PriceSOL(virtualSolReserves, virtualTokenReserves) * float64(totalSupply) / tokenDecimals
}

// MarketCapUSD converts a SOL market cap with the given SOL/USD price.
// A non-positive price means no USD value is available and 0 is returned.
func MarketCapUSD(marketCapSOL, solPriceUSD float64) float64 {
	if solPriceUSD <= 0 {
		return 0
	}
	return marketCapSOL * solPriceUSD
}

// Progress returns bonding-curve completion as a percentage in [0,100],
// based on real SOL collected toward the 85 SOL graduation target.
func Progress(realSolReserves uint64) float64 {
	pct := float64(realSolReserves) / lamportsPerSol / graduationSol * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
