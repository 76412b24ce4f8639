// Package ingest feeds the router from the live WebSocket stream and
// from historical RPC backfills, rebuilds state on startup and flushes
// derived token fields to storage on a timer.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pumpstream/pumpfun-indexer/internal/observability"
	"github.com/pumpstream/pumpfun-indexer/internal/pump"
	"github.com/pumpstream/pumpfun-indexer/internal/router"
	"github.com/pumpstream/pumpfun-indexer/internal/solana"
)

// LiveOptions configures a LiveSource.
type LiveOptions struct {
	WS        solana.WSClient
	RPC       solana.RPCClient
	Router    *router.Router
	ProgramID string
	Logger    *zap.Logger
}

// LiveSource consumes the logsSubscribe stream for the launchpad
// program and routes each notification as one transaction.
type LiveSource struct {
	ws        solana.WSClient
	rpc       solana.RPCClient
	router    *router.Router
	programID string
	logger    *zap.Logger
	clock     func() time.Time
}

// NewLiveSource creates a live source from its options.
func NewLiveSource(opts LiveOptions) *LiveSource {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LiveSource{
		ws:        opts.WS,
		rpc:       opts.RPC,
		router:    opts.Router,
		programID: opts.ProgramID,
		logger:    logger,
		clock:     time.Now,
	}
}

// Run subscribes to program logs and processes notifications until the
// context is cancelled or the stream closes.
func (s *LiveSource) Run(ctx context.Context) error {
	notifs, err := s.ws.SubscribeLogs(ctx, solana.LogsFilter{
		Mentions: []string{s.programID},
	})
	if err != nil {
		return fmt.Errorf("subscribe logs: %w", err)
	}

	s.logger.Info("live ingestion started",
		zap.String("program", s.programID))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-notifs:
			if !ok {
				return errors.New("ingest: notification stream closed")
			}
			s.handleNotification(ctx, n)
		}
	}
}

// handleNotification routes one logs notification. Notifications whose
// logs carry an event payload are enriched with transaction metadata
// fetched over RPC; the fetch is skipped for everything else.
func (s *LiveSource) handleNotification(ctx context.Context, n solana.LogNotification) {
	env := router.Envelope{
		Signature: n.Signature,
		Slot:      n.Slot,
		Success:   n.Err == nil,
	}
	logs := n.Logs

	if n.Err == nil && pump.ContainsProgramData(n.Logs) {
		tx, err := s.rpc.GetTransaction(ctx, n.Signature)
		switch {
		case err != nil:
			s.logger.Warn("transaction fetch failed",
				zap.String("signature", n.Signature), zap.Error(err))
		case tx != nil:
			env = envelopeFromTransaction(n.Signature, tx)
			if full := tx.LogMessages(); len(full) > 0 {
				logs = full
			}
		}
	}

	if env.BlockTime.IsZero() {
		env.BlockTime = s.clock().UTC()
	}

	if _, err := s.router.HandleTransaction(ctx, env, logs); err != nil {
		s.logger.Error("handle transaction failed",
			zap.String("signature", n.Signature), zap.Error(err))
		return
	}
	observability.UpdateHighestSlot(env.Slot)
}

// envelopeFromTransaction builds the router envelope from a fully
// fetched transaction.
func envelopeFromTransaction(signature string, tx *solana.Transaction) router.Envelope {
	env := router.Envelope{
		Signature:        signature,
		Slot:             tx.Slot,
		Success:          tx.Success(),
		SolBalanceChange: tx.FeePayerBalanceChange(),
	}
	if tx.BlockTime != 0 {
		env.BlockTime = time.Unix(tx.BlockTime, 0).UTC()
	}
	if tx.Meta != nil {
		env.FeeLamports = int64(tx.Meta.Fee)
		env.ComputeUnits = int64(tx.Meta.ComputeUnitsConsumed)
	}
	if tx.Message != nil {
		env.InstructionCount = tx.Message.InstructionCount
	}
	return env
}
