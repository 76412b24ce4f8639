package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pumpstream/pumpfun-indexer/internal/observability"
	"github.com/pumpstream/pumpfun-indexer/internal/state"
	"github.com/pumpstream/pumpfun-indexer/internal/storage"
)

// Rebuild seeds the in-memory state store from the persisted token
// rows so trades arriving after a restart find their mints.
func Rebuild(ctx context.Context, tokens storage.TokenStore, st *state.Store, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	rows, err := tokens.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list tokens: %w", err)
	}

	views := make([]state.TokenView, 0, len(rows))
	for _, t := range rows {
		views = append(views, state.ViewFromToken(t))
	}
	st.Load(views)
	observability.UpdateTokensInState(st.Len())

	logger.Info("state rebuilt", zap.Int("tokens", len(views)))
	return nil
}
