package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pumpstream/pumpfun-indexer/internal/domain"
	"github.com/pumpstream/pumpfun-indexer/internal/storage"
)

// TokenStore implements storage.TokenStore using PostgreSQL.
type TokenStore struct {
	pool *Pool
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(pool *Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenStore = (*TokenStore)(nil)

const tokenColumns = `
	mint_address, name, symbol, uri, creator, bonding_curve_address,
	token_total_supply, virtual_sol_reserves, virtual_token_reserves,
	real_sol_reserves, real_token_reserves, complete,
	market_cap_sol, market_cap_usd, bonding_curve_progress,
	created_at, updated_at
`

// Upsert inserts a token creation. A replayed creation for an existing
// mint leaves the stored row untouched.
func (s *TokenStore) Upsert(ctx context.Context, t *domain.Token) error {
	query := `
		INSERT INTO tokens (
			mint_address, name, symbol, uri, creator, bonding_curve_address,
			token_total_supply, virtual_sol_reserves, virtual_token_reserves,
			real_sol_reserves, real_token_reserves, complete,
			market_cap_sol, market_cap_usd, bonding_curve_progress,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (mint_address) DO NOTHING
	`

	_, err := s.pool.Exec(ctx, query,
		t.MintAddress,
		t.Name,
		t.Symbol,
		t.URI,
		t.Creator,
		t.BondingCurveAddress,
		t.TokenTotalSupply,
		t.VirtualSolReserves,
		t.VirtualTokenReserves,
		t.RealSolReserves,
		t.RealTokenReserves,
		t.Complete,
		t.MarketCapSol,
		t.MarketCapUSD,
		t.BondingCurveProgress,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert token: %w", err)
	}
	return nil
}

// UpdateReserves writes the raw post-trade reserves for a mint.
func (s *TokenStore) UpdateReserves(ctx context.Context, mint string, virtualSol, virtualToken, realSol, realToken int64) error {
	query := `
		UPDATE tokens
		SET virtual_sol_reserves = $2,
		    virtual_token_reserves = $3,
		    real_sol_reserves = $4,
		    real_token_reserves = $5
		WHERE mint_address = $1
	`

	if _, err := s.pool.Exec(ctx, query, mint, virtualSol, virtualToken, realSol, realToken); err != nil {
		return fmt.Errorf("update token reserves: %w", err)
	}
	return nil
}

// UpdateDerived writes the derived market columns for a mint.
func (s *TokenStore) UpdateDerived(ctx context.Context, u storage.DerivedUpdate) error {
	query := `
		UPDATE tokens
		SET market_cap_sol = $2,
		    market_cap_usd = $3,
		    bonding_curve_progress = $4,
		    virtual_sol_reserves = $5,
		    virtual_token_reserves = $6,
		    real_sol_reserves = $7,
		    real_token_reserves = $8,
		    updated_at = $9
		WHERE mint_address = $1
	`

	_, err := s.pool.Exec(ctx, query,
		u.MintAddress,
		u.MarketCapSol,
		u.MarketCapUSD,
		u.BondingCurveProgress,
		u.VirtualSolReserves,
		u.VirtualTokenReserves,
		u.RealSolReserves,
		u.RealTokenReserves,
		u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update token derived fields: %w", err)
	}
	return nil
}

// MarkComplete flags a token as graduated and pins its final reserves.
// Completion never reverts.
func (s *TokenStore) MarkComplete(ctx context.Context, mint string, virtualSol, virtualToken, realSol, realToken int64) error {
	query := `
		UPDATE tokens
		SET complete = TRUE,
		    virtual_sol_reserves = $2,
		    virtual_token_reserves = $3,
		    real_sol_reserves = $4,
		    real_token_reserves = $5,
		    bonding_curve_progress = 100,
		    updated_at = now()
		WHERE mint_address = $1 AND NOT complete
	`

	tag, err := s.pool.Exec(ctx, query, mint, virtualSol, virtualToken, realSol, realToken)
	if err != nil {
		return fmt.Errorf("mark token complete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tokens WHERE mint_address = $1)`, mint).Scan(&exists); err != nil {
			return fmt.Errorf("mark token complete: %w", err)
		}
		if !exists {
			return storage.ErrNotFound
		}
	}
	return nil
}

// Get retrieves a token by mint. Returns ErrNotFound if not exists.
func (s *TokenStore) Get(ctx context.Context, mint string) (*domain.Token, error) {
	query := `SELECT ` + tokenColumns + ` FROM tokens WHERE mint_address = $1`

	row := s.pool.QueryRow(ctx, query, mint)
	t, err := scanToken(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token: %w", err)
	}
	return t, nil
}

// List retrieves tokens per the filter, newest or largest first.
func (s *TokenStore) List(ctx context.Context, f storage.TokenFilter) ([]*domain.Token, error) {
	orderBy := "created_at DESC"
	if f.Sort == storage.SortByMarketCap {
		orderBy = "market_cap_sol DESC"
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + tokenColumns + ` FROM tokens`
	args := []any{}
	if f.Complete != nil {
		query += ` WHERE complete = $1`
		args = append(args, *f.Complete)
	}
	query += fmt.Sprintf(` ORDER BY %s LIMIT %d OFFSET %d`, orderBy, limit, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	defer rows.Close()

	return scanTokens(rows)
}

// ListAll streams every token row for state rebuild.
func (s *TokenStore) ListAll(ctx context.Context) ([]*domain.Token, error) {
	query := `SELECT ` + tokenColumns + ` FROM tokens`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list all tokens: %w", err)
	}
	defer rows.Close()

	return scanTokens(rows)
}

// CountAll returns the number of token rows.
func (s *TokenStore) CountAll(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tokens`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count tokens: %w", err)
	}
	return n, nil
}

// scanToken scans a single row into Token.
func scanToken(row pgx.Row) (*domain.Token, error) {
	var t domain.Token

	err := row.Scan(
		&t.MintAddress,
		&t.Name,
		&t.Symbol,
		&t.URI,
		&t.Creator,
		&t.BondingCurveAddress,
		&t.TokenTotalSupply,
		&t.VirtualSolReserves,
		&t.VirtualTokenReserves,
		&t.RealSolReserves,
		&t.RealTokenReserves,
		&t.Complete,
		&t.MarketCapSol,
		&t.MarketCapUSD,
		&t.BondingCurveProgress,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &t, nil
}

func scanTokens(rows pgx.Rows) ([]*domain.Token, error) {
	var out []*domain.Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token row: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token rows: %w", err)
	}
	return out, nil
}
