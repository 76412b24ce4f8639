package domain

import "time"

// IndexerStats is the single global counters row.
type IndexerStats struct {
	TotalTransactions int64
	TotalTokens       int64
	TotalTrades       int64
	TotalVolumeSol    int64
	LastProcessedSlot int64
	UpdatedAt         time.Time
}

// StatsDelta is applied atomically to the counters row.
type StatsDelta struct {
	Transactions int64
	Tokens       int64
	Trades       int64
	VolumeSol    int64
	Slot         int64
}

// HolderBalance tracks a wallet's running token balance for one mint,
// aggregated from trades.
type HolderBalance struct {
	TokenMint    string
	UserWallet   string
	TokenBalance int64
	UpdatedAt    time.Time
}
