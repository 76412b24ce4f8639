package storage

import (
	"context"
	"time"

	"github.com/pumpstream/pumpfun-indexer/internal/domain"
)

// TokenSort selects the ordering of token listings.
type TokenSort string

const (
	SortByCreatedAt TokenSort = "created_at"
	SortByMarketCap TokenSort = "market_cap"
)

// TokenFilter narrows and pages token listings. Complete nil means both
// live and graduated tokens.
type TokenFilter struct {
	Limit    int
	Offset   int
	Sort     TokenSort
	Complete *bool
}

// DerivedUpdate carries the flusher-owned derived columns for one token.
type DerivedUpdate struct {
	MintAddress          string
	MarketCapSol         float64
	MarketCapUSD         float64
	BondingCurveProgress float64
	VirtualSolReserves   int64
	VirtualTokenReserves int64
	RealSolReserves      int64
	RealTokenReserves    int64
	UpdatedAt            time.Time
}

// TokenStore provides access to the tokens table.
type TokenStore interface {
	// Upsert inserts a token creation. An existing mint is left untouched.
	Upsert(ctx context.Context, t *domain.Token) error

	// UpdateReserves writes the raw post-trade reserves for a mint.
	UpdateReserves(ctx context.Context, mint string, virtualSol, virtualToken, realSol, realToken int64) error

	// UpdateDerived writes the derived market columns for a mint.
	UpdateDerived(ctx context.Context, u DerivedUpdate) error

	// MarkComplete flags a token as graduated and pins its final reserves.
	// Returns ErrNotFound when the mint has never been seen.
	MarkComplete(ctx context.Context, mint string, virtualSol, virtualToken, realSol, realToken int64) error

	// Get retrieves a token by mint. Returns ErrNotFound if not exists.
	Get(ctx context.Context, mint string) (*domain.Token, error)

	// List retrieves tokens per the filter, newest or largest first.
	List(ctx context.Context, f TokenFilter) ([]*domain.Token, error)

	// ListAll streams every token row for state rebuild.
	ListAll(ctx context.Context) ([]*domain.Token, error)

	// CountAll returns the number of token rows.
	CountAll(ctx context.Context) (int64, error)
}

// TradeStore provides access to the trades table.
type TradeStore interface {
	// Insert adds a trade. Returns ErrDuplicateKey if the signature exists.
	Insert(ctx context.Context, t *domain.Trade) error

	// ListByMint retrieves trades for a mint, newest first.
	ListByMint(ctx context.Context, mint string, limit, offset int) ([]*domain.Trade, error)

	// CreatorSummary aggregates launch and trade activity for a wallet.
	CreatorSummary(ctx context.Context, wallet string) (*domain.CreatorSummary, error)
}

// TransactionStore provides access to the transactions table.
type TransactionStore interface {
	// Upsert records a transaction envelope, replacing nothing on replay.
	Upsert(ctx context.Context, tx *domain.TransactionRecord) error
}

// StatsStore maintains the single indexer_stats counters row.
type StatsStore interface {
	// Apply adds the delta to the counters row, creating it if absent.
	Apply(ctx context.Context, d domain.StatsDelta) error

	// Get returns the current counters row.
	Get(ctx context.Context) (*domain.IndexerStats, error)
}

// HolderStore maintains per-wallet token balances aggregated from trades.
type HolderStore interface {
	// ApplyTrade adjusts the wallet's balance for a mint by delta.
	ApplyTrade(ctx context.Context, mint, wallet string, delta int64, at time.Time) error

	// TopHolders lists the largest balances for a mint.
	TopHolders(ctx context.Context, mint string, limit int) ([]*domain.HolderBalance, error)
}
