package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pumpstream/pumpfun-indexer/internal/domain"
	"github.com/pumpstream/pumpfun-indexer/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// Insert adds a trade. Returns ErrDuplicateKey if the signature exists.
func (s *TradeStore) Insert(ctx context.Context, t *domain.Trade) error {
	query := `
		INSERT INTO trades (
			signature, token_mint, user_wallet, is_buy,
			sol_amount, token_amount,
			virtual_sol_reserves, virtual_token_reserves,
			real_sol_reserves, real_token_reserves,
			fee_basis_points, fee, creator, creator_fee, ix_name,
			timestamp, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err := s.pool.Exec(ctx, query,
		t.Signature,
		t.TokenMint,
		t.UserWallet,
		t.IsBuy,
		t.SolAmount,
		t.TokenAmount,
		t.VirtualSolReserves,
		t.VirtualTokenReserves,
		t.RealSolReserves,
		t.RealTokenReserves,
		t.FeeBasisPoints,
		t.Fee,
		t.Creator,
		t.CreatorFee,
		t.IxName,
		t.Timestamp,
		t.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// ListByMint retrieves trades for a mint, newest first.
func (s *TradeStore) ListByMint(ctx context.Context, mint string, limit, offset int) ([]*domain.Trade, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT signature, token_mint, user_wallet, is_buy,
		       sol_amount, token_amount,
		       virtual_sol_reserves, virtual_token_reserves,
		       real_sol_reserves, real_token_reserves,
		       fee_basis_points, fee, creator, creator_fee, ix_name,
		       timestamp, created_at
		FROM trades
		WHERE token_mint = $1
		ORDER BY timestamp DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := s.pool.Query(ctx, query, mint, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list trades by mint: %w", err)
	}
	defer rows.Close()

	var out []*domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}
	return out, nil
}

// CreatorSummary aggregates launch and trade activity for a wallet.
// Wallets with no tokens and no trades return a zeroed summary.
func (s *TradeStore) CreatorSummary(ctx context.Context, wallet string) (*domain.CreatorSummary, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM tokens WHERE creator = $1),
			(SELECT COUNT(*) FROM trades t JOIN tokens k ON t.token_mint = k.mint_address WHERE k.creator = $1),
			(SELECT COALESCE(SUM(t.sol_amount), 0) FROM trades t JOIN tokens k ON t.token_mint = k.mint_address WHERE k.creator = $1),
			(SELECT COALESCE(MAX(GREATEST(k.updated_at, k.created_at)), to_timestamp(0)) FROM tokens k WHERE k.creator = $1)
	`

	sum := &domain.CreatorSummary{Wallet: wallet}
	err := s.pool.QueryRow(ctx, query, wallet).Scan(
		&sum.TokensCreated,
		&sum.TradeCount,
		&sum.VolumeSolTotal,
		&sum.LastActivity,
	)
	if err != nil {
		return nil, fmt.Errorf("creator summary: %w", err)
	}
	return sum, nil
}

// scanTrade scans a single row into Trade.
func scanTrade(row pgx.Row) (*domain.Trade, error) {
	var t domain.Trade

	err := row.Scan(
		&t.Signature,
		&t.TokenMint,
		&t.UserWallet,
		&t.IsBuy,
		&t.SolAmount,
		&t.TokenAmount,
		&t.VirtualSolReserves,
		&t.VirtualTokenReserves,
		&t.RealSolReserves,
		&t.RealTokenReserves,
		&t.FeeBasisPoints,
		&t.Fee,
		&t.Creator,
		&t.CreatorFee,
		&t.IxName,
		&t.Timestamp,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &t, nil
}
