package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/pumpstream/pumpfun-indexer/internal/domain"
	"github.com/pumpstream/pumpfun-indexer/internal/storage"
)

// HolderStore implements storage.HolderStore using PostgreSQL.
type HolderStore struct {
	pool *Pool
}

// NewHolderStore creates a new HolderStore.
func NewHolderStore(pool *Pool) *HolderStore {
	return &HolderStore{pool: pool}
}

// Compile-time interface check.
var _ storage.HolderStore = (*HolderStore)(nil)

// ApplyTrade adjusts the wallet's balance for a mint by delta. Balances
// floor at zero so replay gaps never drive them negative.
func (s *HolderStore) ApplyTrade(ctx context.Context, mint, wallet string, delta int64, at time.Time) error {
	query := `
		INSERT INTO token_holders (token_mint, user_wallet, token_balance, updated_at)
		VALUES ($1, $2, GREATEST($3, 0), $4)
		ON CONFLICT (token_mint, user_wallet) DO UPDATE
		SET token_balance = GREATEST(token_holders.token_balance + $3, 0),
		    updated_at = $4
	`

	if _, err := s.pool.Exec(ctx, query, mint, wallet, delta, at); err != nil {
		return fmt.Errorf("apply holder trade: %w", err)
	}
	return nil
}

// TopHolders lists the largest balances for a mint.
func (s *HolderStore) TopHolders(ctx context.Context, mint string, limit int) ([]*domain.HolderBalance, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT token_mint, user_wallet, token_balance, updated_at
		FROM token_holders
		WHERE token_mint = $1 AND token_balance > 0
		ORDER BY token_balance DESC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, mint, limit)
	if err != nil {
		return nil, fmt.Errorf("top holders: %w", err)
	}
	defer rows.Close()

	var out []*domain.HolderBalance
	for rows.Next() {
		var h domain.HolderBalance
		if err := rows.Scan(&h.TokenMint, &h.UserWallet, &h.TokenBalance, &h.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan holder row: %w", err)
		}
		out = append(out, &h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate holder rows: %w", err)
	}
	return out, nil
}
