package postgres

import (
	"context"
	"fmt"

	"github.com/pumpstream/pumpfun-indexer/internal/domain"
	"github.com/pumpstream/pumpfun-indexer/internal/storage"
)

// StatsStore implements storage.StatsStore using PostgreSQL.
type StatsStore struct {
	pool *Pool
}

// NewStatsStore creates a new StatsStore.
func NewStatsStore(pool *Pool) *StatsStore {
	return &StatsStore{pool: pool}
}

// Compile-time interface check.
var _ storage.StatsStore = (*StatsStore)(nil)

// Apply adds the delta to the counters row, creating it if absent.
// The last processed slot only moves forward.
func (s *StatsStore) Apply(ctx context.Context, d domain.StatsDelta) error {
	query := `
		INSERT INTO indexer_stats (
			id, total_transactions, total_tokens, total_trades,
			total_volume_sol, last_processed_slot, updated_at
		) VALUES (1, $1, $2, $3, $4, $5, now())
		ON CONFLICT (id) DO UPDATE
		SET total_transactions = indexer_stats.total_transactions + EXCLUDED.total_transactions,
		    total_tokens = indexer_stats.total_tokens + EXCLUDED.total_tokens,
		    total_trades = indexer_stats.total_trades + EXCLUDED.total_trades,
		    total_volume_sol = indexer_stats.total_volume_sol + EXCLUDED.total_volume_sol,
		    last_processed_slot = GREATEST(indexer_stats.last_processed_slot, EXCLUDED.last_processed_slot),
		    updated_at = now()
	`

	_, err := s.pool.Exec(ctx, query,
		d.Transactions,
		d.Tokens,
		d.Trades,
		d.VolumeSol,
		d.Slot,
	)
	if err != nil {
		return fmt.Errorf("apply stats delta: %w", err)
	}
	return nil
}

// Get returns the current counters row. A missing row reads as zeros.
func (s *StatsStore) Get(ctx context.Context) (*domain.IndexerStats, error) {
	query := `
		SELECT total_transactions, total_tokens, total_trades,
		       total_volume_sol, last_processed_slot, updated_at
		FROM indexer_stats
		WHERE id = 1
	`

	var st domain.IndexerStats
	err := s.pool.QueryRow(ctx, query).Scan(
		&st.TotalTransactions,
		&st.TotalTokens,
		&st.TotalTrades,
		&st.TotalVolumeSol,
		&st.LastProcessedSlot,
		&st.UpdatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return &domain.IndexerStats{}, nil
		}
		return nil, fmt.Errorf("get stats: %w", err)
	}
	return &st, nil
}
