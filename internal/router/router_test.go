package router

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pumpstream/pumpfun-indexer/internal/bus"
	"github.com/pumpstream/pumpfun-indexer/internal/pump"
	"github.com/pumpstream/pumpfun-indexer/internal/pump/pumptest"
	"github.com/pumpstream/pumpfun-indexer/internal/state"
	"github.com/pumpstream/pumpfun-indexer/internal/storage/memory"
)

func createLog(ts int64) string {
	return pumptest.CreateLogLine(pumptest.DefaultCreate(ts))
}

func tradeLog(ts int64) string {
	return pumptest.TradeLogLine(pumptest.DefaultTrade(ts))
}

func completeLog(ts int64) string {
	return pumptest.CompleteLogLine(pumptest.DefaultComplete(ts))
}

// fakeBus records every publish and can be told to fail.
type fakeBus struct {
	mu       sync.Mutex
	messages []fakeMessage
	err      error
}

type fakeMessage struct {
	channel string
	payload any
}

func (f *fakeBus) Publish(_ context.Context, channel string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, fakeMessage{channel: channel, payload: payload})
	return nil
}

func (f *fakeBus) byChannel(channel string) []fakeMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fakeMessage
	for _, m := range f.messages {
		if m.channel == channel {
			out = append(out, m)
		}
	}
	return out
}

type harness struct {
	router  *Router
	state   *state.Store
	tokens  *memory.TokenStore
	trades  *memory.TradeStore
	txs     *memory.TransactionStore
	stats   *memory.StatsStore
	holders *memory.HolderStore
	bus     *fakeBus
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()
	h := &harness{
		state:   state.NewStore(),
		tokens:  memory.NewTokenStore(),
		trades:  memory.NewTradeStore(),
		txs:     memory.NewTransactionStore(),
		stats:   memory.NewStatsStore(),
		holders: memory.NewHolderStore(),
		bus:     &fakeBus{},
	}
	o := Options{
		State:        h.state,
		Tokens:       h.tokens,
		Trades:       h.trades,
		Transactions: h.txs,
		Stats:        h.stats,
		Holders:      h.holders,
		Bus:          h.bus,
		SolPrice:     func() float64 { return 200 },
	}
	if mutate != nil {
		mutate(&o)
	}
	h.router = New(o)
	return h
}

func envelope(sig string) Envelope {
	return Envelope{
		Signature:        sig,
		Slot:             1000,
		BlockTime:        time.Unix(1_700_000_000, 0).UTC(),
		Success:          true,
		FeeLamports:      5000,
		InstructionCount: 2,
	}
}

func TestRouter_CreateToken(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	res, err := h.router.HandleTransaction(ctx, envelope("sig-create"), []string{
		"Program log: Instruction: Create",
		createLog(1_700_000_000),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Tokens)

	token, err := h.tokens.Get(ctx, pumptest.Mint)
	require.NoError(t, err)
	assert.Equal(t, "Test Token", token.Name)
	assert.Equal(t, "TEST", token.Symbol)
	assert.Equal(t, pumptest.Creator, token.Creator)
	assert.Equal(t, pumptest.Curve, token.BondingCurveAddress)
	assert.False(t, token.Complete)
	assert.Greater(t, token.MarketCapSol, 0.0)
	assert.Greater(t, token.MarketCapUSD, 0.0)

	view, ok := h.state.Get(pumptest.Mint)
	require.True(t, ok)
	assert.Equal(t, "TEST", view.Symbol)

	msgs := h.bus.byChannel(bus.ChannelNewTokens)
	require.Len(t, msgs, 1)
	payload := msgs[0].payload.(bus.NewTokenMessage)
	assert.Equal(t, pumptest.Mint, payload.Mint)
	assert.Greater(t, payload.PriceSol, 0.0)
}

func TestRouter_CreateReplay(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.router.HandleTransaction(ctx, envelope("sig-1"), []string{createLog(1_700_000_000)})
	require.NoError(t, err)
	res, err := h.router.HandleTransaction(ctx, envelope("sig-2"), []string{createLog(1_700_000_000)})
	require.NoError(t, err)

	assert.Equal(t, 0, res.Tokens)
	assert.Len(t, h.bus.byChannel(bus.ChannelNewTokens), 1)
	assert.Equal(t, 1, h.state.Len())
}

func TestRouter_Trade(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.router.HandleTransaction(ctx, envelope("sig-create"), []string{createLog(1_700_000_000)})
	require.NoError(t, err)

	res, err := h.router.HandleTransaction(ctx, envelope("sig-trade"), []string{
		tradeLog(1_700_000_100),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Trades)
	assert.Equal(t, 0, res.Orphans)

	trades, err := h.trades.ListByMint(ctx, pumptest.Mint, 10, 0)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "sig-trade", trades[0].Signature)
	assert.True(t, trades[0].IsBuy)
	assert.Equal(t, int64(1_000_000_000), trades[0].SolAmount)

	// Raw post-trade reserves land on the token row.
	token, err := h.tokens.Get(ctx, pumptest.Mint)
	require.NoError(t, err)
	assert.Equal(t, int64(31_000_000_000), token.VirtualSolReserves)

	msgs := h.bus.byChannel(bus.ChannelTrades)
	require.Len(t, msgs, 1)
	payload := msgs[0].payload.(bus.TradeMessage)
	assert.Equal(t, "sig-trade", payload.Signature)
	assert.Greater(t, payload.MarketCapUSD, 0.0)
	assert.Greater(t, payload.BondingCurveProgress, 0.0)

	// Holder aggregation follows the buy.
	holders, err := h.holders.TopHolders(ctx, pumptest.Mint, 10)
	require.NoError(t, err)
	require.Len(t, holders, 1)
	assert.Equal(t, pumptest.User, holders[0].UserWallet)
	assert.Equal(t, int64(30_000_000_000_000), holders[0].TokenBalance)
}

func TestRouter_TradeReplaySuppressesPublish(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.router.HandleTransaction(ctx, envelope("sig-create"), []string{createLog(1_700_000_000)})
	require.NoError(t, err)

	logs := []string{tradeLog(1_700_000_100)}
	_, err = h.router.HandleTransaction(ctx, envelope("sig-trade"), logs)
	require.NoError(t, err)
	res, err := h.router.HandleTransaction(ctx, envelope("sig-trade"), logs)
	require.NoError(t, err)

	assert.Equal(t, 0, res.Trades)
	assert.Len(t, h.bus.byChannel(bus.ChannelTrades), 1)
}

func TestRouter_OrphanTradeDropped(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	res, err := h.router.HandleTransaction(ctx, envelope("sig-orphan"), []string{
		tradeLog(1_700_000_100),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Trades)
	assert.Equal(t, 1, res.Orphans)

	trades, err := h.trades.ListByMint(ctx, pumptest.Mint, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, trades)
	assert.Empty(t, h.bus.byChannel(bus.ChannelTrades))
}

func TestRouter_TradeLazyLoadsToken(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	// Token row exists in storage but the state store is cold.
	_, err := h.router.HandleTransaction(ctx, envelope("sig-create"), []string{createLog(1_700_000_000)})
	require.NoError(t, err)

	cold := newHarness(t, func(o *Options) {
		o.Tokens = h.tokens
		o.Trades = h.trades
	})
	cold.tokens = h.tokens
	cold.trades = h.trades

	res, err := cold.router.HandleTransaction(ctx, envelope("sig-trade"), []string{
		tradeLog(1_700_000_100),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Trades)
	assert.Equal(t, 0, res.Orphans)

	view, ok := cold.state.Get(pumptest.Mint)
	require.True(t, ok)
	assert.Equal(t, uint64(31_000_000_000), view.VirtualSolReserves)
}

func TestRouter_Complete(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.router.HandleTransaction(ctx, envelope("sig-create"), []string{createLog(1_700_000_000)})
	require.NoError(t, err)

	res, err := h.router.HandleTransaction(ctx, envelope("sig-complete"), []string{
		completeLog(1_700_000_200),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Completions)

	token, err := h.tokens.Get(ctx, pumptest.Mint)
	require.NoError(t, err)
	assert.True(t, token.Complete)
	assert.Equal(t, 100.0, token.BondingCurveProgress)

	view, ok := h.state.Get(pumptest.Mint)
	require.True(t, ok)
	assert.True(t, view.Complete)
	assert.Equal(t, 100.0, view.Progress)

	msgs := h.bus.byChannel(bus.ChannelCompletions)
	require.Len(t, msgs, 1)
	payload := msgs[0].payload.(bus.CompletionMessage)
	assert.Equal(t, pumptest.Mint, payload.Mint)
	assert.Equal(t, pumptest.Curve, payload.BondingCurve)

	// Replay publishes nothing.
	res, err = h.router.HandleTransaction(ctx, envelope("sig-complete-2"), []string{
		completeLog(1_700_000_201),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Completions)
	assert.Len(t, h.bus.byChannel(bus.ChannelCompletions), 1)
}

func TestRouter_CompleteUnseenMint(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	res, err := h.router.HandleTransaction(ctx, envelope("sig-complete"), []string{
		completeLog(1_700_000_200),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Completions)
	assert.Empty(t, h.bus.byChannel(bus.ChannelCompletions))
}

func TestRouter_FailedTransactionRecordedWithoutEvents(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	env := envelope("sig-failed")
	env.Success = false
	res, err := h.router.HandleTransaction(ctx, env, []string{createLog(1_700_000_000)})
	require.NoError(t, err)

	assert.Equal(t, 0, res.Tokens)
	assert.Equal(t, 1, h.txs.Len())
	assert.Equal(t, 0, h.state.Len())
	assert.Empty(t, h.bus.messages)

	stats, err := h.stats.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalTransactions)
	assert.Equal(t, int64(0), stats.TotalTokens)
}

func TestRouter_StatsAccumulate(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.router.HandleTransaction(ctx, envelope("sig-create"), []string{createLog(1_700_000_000)})
	require.NoError(t, err)
	_, err = h.router.HandleTransaction(ctx, envelope("sig-trade"), []string{tradeLog(1_700_000_100)})
	require.NoError(t, err)

	stats, err := h.stats.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalTransactions)
	assert.Equal(t, int64(1), stats.TotalTokens)
	assert.Equal(t, int64(1), stats.TotalTrades)
	assert.Equal(t, int64(1_000_000_000), stats.TotalVolumeSol)
	assert.Equal(t, int64(1000), stats.LastProcessedSlot)
}

func TestRouter_BusErrorDoesNotAbort(t *testing.T) {
	h := newHarness(t, nil)
	h.bus.err = errors.New("redis down")
	ctx := context.Background()

	res, err := h.router.HandleTransaction(ctx, envelope("sig-create"), []string{createLog(1_700_000_000)})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Tokens)

	_, getErr := h.tokens.Get(ctx, pumptest.Mint)
	assert.NoError(t, getErr)
}

func TestRouter_AcceptFilter(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.Accept = map[pump.EventKind]bool{pump.KindCreate: true}
	})
	ctx := context.Background()

	res, err := h.router.HandleTransaction(ctx, envelope("sig-mixed"), []string{
		createLog(1_700_000_000),
		tradeLog(1_700_000_100),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Tokens)
	assert.Equal(t, 0, res.Trades)

	trades, err := h.trades.ListByMint(ctx, pumptest.Mint, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestRouter_NonProgramLogsIgnored(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	res, err := h.router.HandleTransaction(ctx, envelope("sig-plain"), []string{
		"Program log: Instruction: Buy",
		"Program consumed: 40000 compute units",
	})
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	assert.Equal(t, 1, h.txs.Len())
}
