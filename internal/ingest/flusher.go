package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pumpstream/pumpfun-indexer/internal/observability"
	"github.com/pumpstream/pumpfun-indexer/internal/state"
	"github.com/pumpstream/pumpfun-indexer/internal/storage"
)

// FlushOptions configures a Flusher.
type FlushOptions struct {
	State  *state.Store
	Tokens storage.TokenStore

	// Interval between flush cycles. Defaults to one minute.
	Interval time.Duration

	Logger *zap.Logger
}

// Flusher periodically writes the derived market fields of every
// tracked token from the state store to storage. It is the only writer
// of those columns.
type Flusher struct {
	state    *state.Store
	tokens   storage.TokenStore
	interval time.Duration
	logger   *zap.Logger
}

// NewFlusher creates a flusher from its options.
func NewFlusher(opts FlushOptions) *Flusher {
	interval := opts.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Flusher{
		state:    opts.State,
		tokens:   opts.Tokens,
		interval: interval,
		logger:   logger,
	}
}

// Run flushes on every tick until the context is cancelled. A cycle in
// progress finishes before Run returns.
func (f *Flusher) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	f.logger.Info("flusher started", zap.Duration("interval", f.interval))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := f.Flush(ctx); err != nil {
				f.logger.Error("flush cycle failed", zap.Error(err))
			}
		}
	}
}

// Flush snapshots the state store and writes each token's derived
// fields. Per-token failures are logged and counted; the cycle always
// visits every token.
func (f *Flusher) Flush(ctx context.Context) error {
	start := time.Now()
	views := f.state.Snapshot()

	failed := 0
	for _, v := range views {
		u := storage.DerivedUpdate{
			MintAddress:          v.Mint,
			MarketCapSol:         v.MarketCapSol,
			MarketCapUSD:         v.MarketCapUSD,
			BondingCurveProgress: v.Progress,
			VirtualSolReserves:   int64(v.VirtualSolReserves),
			VirtualTokenReserves: int64(v.VirtualTokenReserves),
			RealSolReserves:      int64(v.RealSolReserves),
			RealTokenReserves:    int64(v.RealTokenReserves),
			UpdatedAt:            v.UpdatedAt,
		}
		if err := f.tokens.UpdateDerived(ctx, u); err != nil {
			failed++
			observability.RecordDBError("token_derived")
			f.logger.Warn("derived update failed",
				zap.String("mint", v.Mint), zap.Error(err))
		}
	}

	elapsed := time.Since(start)
	observability.UpdateTokensInState(len(views))

	var err error
	if failed > 0 {
		err = fmt.Errorf("flush: %d of %d tokens failed", failed, len(views))
	}
	observability.RecordFlush(elapsed.Seconds(), err)

	f.logger.Debug("state flushed",
		zap.Int("tokens", len(views)),
		zap.Int("failed", failed),
		zap.Duration("elapsed", elapsed))
	return err
}
