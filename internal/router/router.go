// Package router applies decoded program events to the in-memory state
// and relational stores, and broadcasts accepted events on the bus.
package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pumpstream/pumpfun-indexer/internal/bus"
	"github.com/pumpstream/pumpfun-indexer/internal/domain"
	"github.com/pumpstream/pumpfun-indexer/internal/observability"
	"github.com/pumpstream/pumpfun-indexer/internal/pump"
	"github.com/pumpstream/pumpfun-indexer/internal/state"
	"github.com/pumpstream/pumpfun-indexer/internal/storage"
)

// Envelope carries transaction-level context for one batch of logs.
type Envelope struct {
	Signature        string
	Slot             int64
	BlockTime        time.Time
	Success          bool
	FeeLamports      int64
	ComputeUnits     int64
	InstructionCount int
	SolBalanceChange int64
}

// Result counts what one transaction contributed.
type Result struct {
	Tokens      int
	Trades      int
	Completions int
	Orphans     int
}

// Options configures a Router. Stats, Holders and Bus are optional;
// a nil Logger falls back to a no-op logger.
type Options struct {
	State        *state.Store
	Tokens       storage.TokenStore
	Trades       storage.TradeStore
	Transactions storage.TransactionStore
	Stats        storage.StatsStore
	Holders      storage.HolderStore
	Bus          bus.Publisher

	// SolPrice returns the current SOL/USD reference price, 0 when
	// unavailable.
	SolPrice func() float64

	// Accept limits the event kinds the router applies. Nil accepts all.
	Accept map[pump.EventKind]bool

	Logger *zap.Logger
}

// Router routes decoded events into state, storage and the bus.
type Router struct {
	state    *state.Store
	tokens   storage.TokenStore
	trades   storage.TradeStore
	txs      storage.TransactionStore
	stats    storage.StatsStore
	holders  storage.HolderStore
	bus      bus.Publisher
	solPrice func() float64
	accept   map[pump.EventKind]bool
	logger   *zap.Logger
}

// New creates a Router from its options.
func New(opts Options) *Router {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	solPrice := opts.SolPrice
	if solPrice == nil {
		solPrice = func() float64 { return 0 }
	}
	return &Router{
		state:    opts.State,
		tokens:   opts.Tokens,
		trades:   opts.Trades,
		txs:      opts.Transactions,
		stats:    opts.Stats,
		holders:  opts.Holders,
		bus:      opts.Bus,
		solPrice: solPrice,
		accept:   opts.Accept,
		logger:   logger,
	}
}

// HandleTransaction records the transaction envelope and applies every
// decodable event from its logs. Failed transactions are recorded but
// contribute no events. Storage errors on individual events are logged
// and skipped so one bad event never stalls the stream; only a failure
// to record the envelope itself is returned.
func (r *Router) HandleTransaction(ctx context.Context, env Envelope, logs []string) (Result, error) {
	var res Result

	record := &domain.TransactionRecord{
		Signature:        env.Signature,
		Slot:             env.Slot,
		BlockTime:        env.BlockTime,
		Success:          env.Success,
		FeeLamports:      env.FeeLamports,
		ComputeUnits:     env.ComputeUnits,
		InstructionCount: env.InstructionCount,
		LogMessageCount:  len(logs),
		HasProgramData:   pump.ContainsProgramData(logs),
		SolBalanceChange: env.SolBalanceChange,
	}
	if err := r.txs.Upsert(ctx, record); err != nil {
		observability.RecordDBError("transaction_upsert")
		return res, fmt.Errorf("record transaction %s: %w", env.Signature, err)
	}

	delta := domain.StatsDelta{Transactions: 1, Slot: env.Slot}

	if env.Success {
		for _, line := range logs {
			ev, err := pump.ParseLogLine(line)
			if err != nil {
				r.logger.Debug("undecodable event payload",
					zap.String("signature", env.Signature),
					zap.Error(err))
				continue
			}
			if ev == nil {
				continue
			}
			observability.RecordEventDecoded(string(ev.Kind()))
			if r.accept != nil && !r.accept[ev.Kind()] {
				continue
			}
			r.applyEvent(ctx, env, ev, &res, &delta)
		}
	}

	r.applyStats(ctx, delta)
	return res, nil
}

func (r *Router) applyEvent(ctx context.Context, env Envelope, ev pump.Event, res *Result, delta *domain.StatsDelta) {
	switch e := ev.(type) {
	case *pump.CreateEvent:
		if r.handleCreate(ctx, e) {
			res.Tokens++
			delta.Tokens++
		}
	case *pump.TradeEvent:
		accepted, orphan := r.handleTrade(ctx, env, e)
		if orphan {
			res.Orphans++
		}
		if accepted {
			res.Trades++
			delta.Trades++
			delta.VolumeSol += int64(e.SolAmount)
		}
	case *pump.CompleteEvent:
		if r.handleComplete(ctx, e) {
			res.Completions++
		}
	}
}

// handleCreate registers the token and reports whether this was a first
// sighting. Replays leave state and storage untouched and publish nothing.
func (r *Router) handleCreate(ctx context.Context, e *pump.CreateEvent) bool {
	if e.CurveOnCurve {
		r.logger.Warn("bonding curve account is on-curve",
			zap.String("mint", e.Mint),
			zap.String("bonding_curve", e.BondingCurve))
	}

	price := r.solPrice()
	view, created := r.state.GetOrCreate(state.Creation{
		Mint:                 e.Mint,
		Name:                 e.Name,
		Symbol:               e.Symbol,
		URI:                  e.URI,
		BondingCurve:         e.BondingCurve,
		Creator:              e.Creator,
		TokenTotalSupply:     e.TokenTotalSupply,
		VirtualSolReserves:   e.VirtualSolReserves,
		VirtualTokenReserves: e.VirtualTokenReserves,
		RealTokenReserves:    e.RealTokenReserves,
		Timestamp:            e.Timestamp,
	}, price)

	token := state.TokenFromView(view)
	if err := r.tokens.Upsert(ctx, token); err != nil {
		observability.RecordDBError("token_upsert")
		r.logger.Error("token upsert failed",
			zap.String("mint", e.Mint), zap.Error(err))
		return false
	}

	if !created {
		return false
	}

	observability.RecordEventProcessed(string(pump.KindCreate))
	observability.RecordEventTimestamp(e.Timestamp)
	r.publish(ctx, bus.ChannelNewTokens, bus.NewTokenMessage{
		Mint:                 e.Mint,
		Name:                 e.Name,
		Symbol:               e.Symbol,
		URI:                  e.URI,
		Creator:              e.Creator,
		BondingCurve:         e.BondingCurve,
		Timestamp:            e.Timestamp,
		VirtualSolReserves:   e.VirtualSolReserves,
		VirtualTokenReserves: e.VirtualTokenReserves,
		PriceSol:             view.PriceSol,
		MarketCapSol:         view.MarketCapSol,
	})

	r.logger.Info("new token",
		zap.String("mint", e.Mint),
		zap.String("symbol", e.Symbol),
		zap.String("creator", e.Creator))
	return true
}

// handleTrade applies the trade to state and storage. It returns
// (accepted, orphan): duplicates are benign but not accepted, and
// trades for mints absent from both state and storage are dropped.
func (r *Router) handleTrade(ctx context.Context, env Envelope, e *pump.TradeEvent) (bool, bool) {
	price := r.solPrice()
	reserves := state.Reserves{
		VirtualSol:   e.VirtualSolReserves,
		VirtualToken: e.VirtualTokenReserves,
		RealSol:      e.RealSolReserves,
		RealToken:    e.RealTokenReserves,
	}

	view, err := r.state.ApplyTrade(e.Mint, reserves, e.Timestamp, price)
	if errors.Is(err, state.ErrUnknownToken) {
		if !r.loadToken(ctx, e.Mint) {
			observability.RecordOrphanTrade()
			r.logger.Warn("orphan trade dropped",
				zap.String("signature", env.Signature),
				zap.String("mint", e.Mint))
			return false, true
		}
		view, err = r.state.ApplyTrade(e.Mint, reserves, e.Timestamp, price)
	}
	if err != nil {
		r.logger.Error("apply trade failed",
			zap.String("mint", e.Mint), zap.Error(err))
		return false, false
	}

	trade := &domain.Trade{
		Signature:            env.Signature,
		TokenMint:            e.Mint,
		UserWallet:           e.User,
		IsBuy:                e.IsBuy,
		SolAmount:            int64(e.SolAmount),
		TokenAmount:          int64(e.TokenAmount),
		VirtualSolReserves:   int64(e.VirtualSolReserves),
		VirtualTokenReserves: int64(e.VirtualTokenReserves),
		RealSolReserves:      int64(e.RealSolReserves),
		RealTokenReserves:    int64(e.RealTokenReserves),
		FeeBasisPoints:       int64(e.FeeBasisPoints),
		Fee:                  int64(e.Fee),
		Creator:              e.Creator,
		CreatorFee:           int64(e.CreatorFee),
		IxName:               e.IxName,
		Timestamp:            time.Unix(e.Timestamp, 0).UTC(),
	}
	if err := r.trades.Insert(ctx, trade); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			observability.RecordDuplicateTrade()
			return false, false
		}
		observability.RecordDBError("trade_insert")
		r.logger.Error("trade insert failed",
			zap.String("signature", env.Signature), zap.Error(err))
		return false, false
	}

	if err := r.tokens.UpdateReserves(ctx, e.Mint,
		int64(e.VirtualSolReserves), int64(e.VirtualTokenReserves),
		int64(e.RealSolReserves), int64(e.RealTokenReserves)); err != nil {
		observability.RecordDBError("token_reserves")
		r.logger.Error("reserve update failed",
			zap.String("mint", e.Mint), zap.Error(err))
	}

	r.applyHolder(ctx, e)

	observability.RecordEventProcessed(string(pump.KindTrade))
	observability.RecordEventTimestamp(e.Timestamp)
	r.publish(ctx, bus.ChannelTrades, bus.TradeMessage{
		Signature:            env.Signature,
		Mint:                 e.Mint,
		User:                 e.User,
		IsBuy:                e.IsBuy,
		SolAmount:            e.SolAmount,
		TokenAmount:          e.TokenAmount,
		Timestamp:            e.Timestamp,
		PriceSol:             view.PriceSol,
		MarketCapSol:         view.MarketCapSol,
		MarketCapUSD:         view.MarketCapUSD,
		BondingCurveProgress: view.Progress,
	})
	return true, false
}

// handleComplete marks the token graduated. Completing an unseen mint is
// logged, not an error, and replays publish nothing.
func (r *Router) handleComplete(ctx context.Context, e *pump.CompleteEvent) bool {
	price := r.solPrice()
	reserves := state.Reserves{
		VirtualSol:   e.VirtualSolReserves,
		VirtualToken: e.VirtualTokenReserves,
		RealSol:      e.RealSolReserves,
		RealToken:    e.RealTokenReserves,
	}

	if prior, ok := r.state.Get(e.Mint); ok && prior.Complete {
		return false
	}

	if _, err := r.state.MarkComplete(e.Mint, reserves, e.Timestamp, price); errors.Is(err, state.ErrUnknownToken) {
		if r.loadToken(ctx, e.Mint) {
			r.state.MarkComplete(e.Mint, reserves, e.Timestamp, price)
		}
	}

	err := r.tokens.MarkComplete(ctx, e.Mint,
		int64(e.VirtualSolReserves), int64(e.VirtualTokenReserves),
		int64(e.RealSolReserves), int64(e.RealTokenReserves))
	if errors.Is(err, storage.ErrNotFound) {
		r.logger.Warn("completion for unseen mint",
			zap.String("mint", e.Mint))
		return false
	}
	if err != nil {
		observability.RecordDBError("token_complete")
		r.logger.Error("mark complete failed",
			zap.String("mint", e.Mint), zap.Error(err))
		return false
	}

	observability.RecordEventProcessed(string(pump.KindComplete))
	observability.RecordEventTimestamp(e.Timestamp)
	r.publish(ctx, bus.ChannelCompletions, bus.CompletionMessage{
		Mint:         e.Mint,
		User:         e.User,
		BondingCurve: e.BondingCurve,
		Timestamp:    e.Timestamp,
	})

	r.logger.Info("bonding curve complete", zap.String("mint", e.Mint))
	return true
}

// loadToken seeds the state store from the token row, if one exists.
func (r *Router) loadToken(ctx context.Context, mint string) bool {
	token, err := r.tokens.Get(ctx, mint)
	if errors.Is(err, storage.ErrNotFound) {
		return false
	}
	if err != nil {
		observability.RecordDBError("token_get")
		r.logger.Error("token lookup failed",
			zap.String("mint", mint), zap.Error(err))
		return false
	}
	r.state.Load([]state.TokenView{state.ViewFromToken(token)})
	return true
}

// applyHolder updates the per-wallet balance aggregation, best-effort.
func (r *Router) applyHolder(ctx context.Context, e *pump.TradeEvent) {
	if r.holders == nil {
		return
	}
	delta := int64(e.TokenAmount)
	if !e.IsBuy {
		delta = -delta
	}
	at := time.Unix(e.Timestamp, 0).UTC()
	if err := r.holders.ApplyTrade(ctx, e.Mint, e.User, delta, at); err != nil {
		observability.RecordDBError("holder_apply")
		r.logger.Warn("holder update failed",
			zap.String("mint", e.Mint), zap.Error(err))
	}
}

// applyStats applies the counters delta, best-effort.
func (r *Router) applyStats(ctx context.Context, d domain.StatsDelta) {
	if r.stats == nil {
		return
	}
	if err := r.stats.Apply(ctx, d); err != nil {
		observability.RecordDBError("stats_apply")
		r.logger.Warn("stats update failed", zap.Error(err))
	}
}

// publish broadcasts a payload, best-effort. Bus errors never abort
// ingestion.
func (r *Router) publish(ctx context.Context, channel string, payload any) {
	if r.bus == nil {
		return
	}
	if err := r.bus.Publish(ctx, channel, payload); err != nil {
		observability.RecordPublishError(channel)
		r.logger.Warn("publish failed",
			zap.String("channel", channel), zap.Error(err))
	}
}
