package domain

import "time"

// Trade is a single buy or sell against a token's bonding curve,
// keyed by transaction signature.
type Trade struct {
	Signature            string
	TokenMint            string
	UserWallet           string
	IsBuy                bool
	SolAmount            int64
	TokenAmount          int64
	VirtualSolReserves   int64
	VirtualTokenReserves int64
	RealSolReserves      int64
	RealTokenReserves    int64
	FeeBasisPoints       int64
	Fee                  int64
	Creator              string
	CreatorFee           int64
	IxName               string
	Timestamp            time.Time
	CreatedAt            time.Time
}

// CreatorSummary aggregates launch and trading activity for one wallet.
type CreatorSummary struct {
	Wallet         string
	TokensCreated  int64
	TradeCount     int64
	VolumeSolTotal int64
	LastActivity   time.Time
}
