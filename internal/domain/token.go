package domain

import "time"

// Token is a launchpad token row. Reserve and supply values are raw
// on-chain units (lamports and 6-decimal token units) stored as int64
// to match the relational schema.
type Token struct {
	MintAddress          string
	Name                 string
	Symbol               string
	URI                  string
	Creator              string
	BondingCurveAddress  string
	TokenTotalSupply     int64
	VirtualSolReserves   int64
	VirtualTokenReserves int64
	RealSolReserves      int64
	RealTokenReserves    int64
	Complete             bool
	MarketCapSol         float64
	MarketCapUSD         float64
	BondingCurveProgress float64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}
