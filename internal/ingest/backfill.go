package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pumpstream/pumpfun-indexer/internal/observability"
	"github.com/pumpstream/pumpfun-indexer/internal/pump"
	"github.com/pumpstream/pumpfun-indexer/internal/router"
	"github.com/pumpstream/pumpfun-indexer/internal/solana"
)

// Mode selects which event family a backfill run applies.
type Mode string

const (
	ModeTokens Mode = "tokens"
	ModeTrades Mode = "trades"
)

// AcceptForMode returns the router event filter for a backfill mode.
// Token runs apply creations only; trade runs apply trades and
// completions.
func AcceptForMode(m Mode) map[pump.EventKind]bool {
	switch m {
	case ModeTokens:
		return map[pump.EventKind]bool{pump.KindCreate: true}
	case ModeTrades:
		return map[pump.EventKind]bool{
			pump.KindTrade:    true,
			pump.KindComplete: true,
		}
	}
	return nil
}

// BackfillOptions configures a Backfiller.
type BackfillOptions struct {
	RPC       solana.RPCClient
	Router    *router.Router
	ProgramID string

	// Before starts the signature walk backward from this signature.
	// Empty starts from the most recent.
	Before string

	// BatchSize is the signature page size. Defaults to 1000.
	BatchSize int

	// Concurrency bounds parallel transaction fetches. Defaults to 10.
	Concurrency int

	// MaxTxs caps the number of signatures processed. 0 is unlimited.
	MaxTxs int

	Logger *zap.Logger
}

// Backfiller replays historical program transactions through the
// router by walking getSignaturesForAddress pages backward in time.
type Backfiller struct {
	rpc         solana.RPCClient
	router      *router.Router
	programID   string
	before      string
	batchSize   int
	concurrency int
	maxTxs      int
	logger      *zap.Logger
}

// NewBackfiller creates a backfiller from its options.
func NewBackfiller(opts BackfillOptions) *Backfiller {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 1000
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backfiller{
		rpc:         opts.RPC,
		router:      opts.Router,
		programID:   opts.ProgramID,
		before:      opts.Before,
		batchSize:   batchSize,
		concurrency: concurrency,
		maxTxs:      opts.MaxTxs,
		logger:      logger,
	}
}

// BackfillResult contains statistics from a backfill run.
type BackfillResult struct {
	Pages        int
	Transactions int
	Tokens       int
	Trades       int
	Completions  int
	Orphans      int
	Skipped      int
	Duration     time.Duration
}

// Run walks signature pages backward from the configured cursor until
// the history is exhausted, the transaction cap is reached or the
// context is cancelled. Signatures whose transactions cannot be
// fetched are counted as skipped and do not stop the run.
func (b *Backfiller) Run(ctx context.Context) (*BackfillResult, error) {
	start := time.Now()
	result := &BackfillResult{}
	before := b.before

	b.logger.Info("backfill started",
		zap.String("program", b.programID),
		zap.String("before", before),
		zap.Int("batch_size", b.batchSize),
		zap.Int("concurrency", b.concurrency),
		zap.Int("max_txs", b.maxTxs))

	for {
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(start)
			return result, err
		}

		limit := b.batchSize
		if b.maxTxs > 0 {
			remaining := b.maxTxs - result.Transactions - result.Skipped
			if remaining <= 0 {
				break
			}
			if limit > remaining {
				limit = remaining
			}
		}

		sigs, err := b.rpc.GetSignaturesForAddress(ctx, b.programID, &solana.SignaturesOpts{
			Before: before,
			Limit:  limit,
		})
		if err != nil {
			result.Duration = time.Since(start)
			return result, fmt.Errorf("fetch signatures before %q: %w", before, err)
		}
		if len(sigs) == 0 {
			break
		}

		result.Pages++
		if err := b.processPage(ctx, sigs, result); err != nil {
			result.Duration = time.Since(start)
			return result, err
		}

		before = sigs[len(sigs)-1].Signature
		b.logger.Info("backfill page complete",
			zap.Int("page", result.Pages),
			zap.Int("signatures", len(sigs)),
			zap.String("cursor", before),
			zap.Int("transactions", result.Transactions),
			zap.Int("tokens", result.Tokens),
			zap.Int("trades", result.Trades),
			zap.Int("completions", result.Completions),
			zap.Int("orphans", result.Orphans),
			zap.Int("skipped", result.Skipped))
	}

	result.Duration = time.Since(start)
	b.logger.Info("backfill complete",
		zap.Int("pages", result.Pages),
		zap.Int("transactions", result.Transactions),
		zap.Int("tokens", result.Tokens),
		zap.Int("trades", result.Trades),
		zap.Int("completions", result.Completions),
		zap.Int("orphans", result.Orphans),
		zap.Int("skipped", result.Skipped),
		zap.Duration("duration", result.Duration))
	return result, nil
}

// processPage fetches and routes every transaction of one signature
// page with bounded concurrency.
func (b *Backfiller) processPage(ctx context.Context, sigs []solana.SignatureInfo, result *BackfillResult) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	var mu sync.Mutex
	for _, info := range sigs {
		g.Go(func() error {
			tx, err := b.rpc.GetTransaction(gctx, info.Signature)
			if err != nil || tx == nil {
				if err != nil {
					b.logger.Warn("transaction fetch failed",
						zap.String("signature", info.Signature), zap.Error(err))
				}
				observability.RecordBackfillTransaction("skipped")
				mu.Lock()
				result.Skipped++
				mu.Unlock()
				return nil
			}

			res, err := b.router.HandleTransaction(gctx, envelopeFromTransaction(info.Signature, tx), tx.LogMessages())
			if err != nil {
				b.logger.Warn("handle transaction failed",
					zap.String("signature", info.Signature), zap.Error(err))
				observability.RecordBackfillTransaction("skipped")
				mu.Lock()
				result.Skipped++
				mu.Unlock()
				return nil
			}

			observability.RecordBackfillTransaction("processed")
			mu.Lock()
			result.Transactions++
			result.Tokens += res.Tokens
			result.Trades += res.Trades
			result.Completions += res.Completions
			result.Orphans += res.Orphans
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}
