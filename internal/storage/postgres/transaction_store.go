package postgres

import (
	"context"
	"fmt"

	"github.com/pumpstream/pumpfun-indexer/internal/domain"
	"github.com/pumpstream/pumpfun-indexer/internal/storage"
)

// TransactionStore implements storage.TransactionStore using PostgreSQL.
type TransactionStore struct {
	pool *Pool
}

// NewTransactionStore creates a new TransactionStore.
func NewTransactionStore(pool *Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TransactionStore = (*TransactionStore)(nil)

// Upsert records a transaction envelope. Replays keep the first row.
func (s *TransactionStore) Upsert(ctx context.Context, tx *domain.TransactionRecord) error {
	query := `
		INSERT INTO transactions (
			signature, slot, block_time, success,
			fee_lamports, compute_units, instruction_count,
			log_message_count, has_program_data, sol_balance_change,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (signature) DO NOTHING
	`

	_, err := s.pool.Exec(ctx, query,
		tx.Signature,
		tx.Slot,
		tx.BlockTime,
		tx.Success,
		tx.FeeLamports,
		tx.ComputeUnits,
		tx.InstructionCount,
		tx.LogMessageCount,
		tx.HasProgramData,
		tx.SolBalanceChange,
		tx.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert transaction: %w", err)
	}
	return nil
}
