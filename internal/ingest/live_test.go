package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pumpstream/pumpfun-indexer/internal/pump/pumptest"
	"github.com/pumpstream/pumpfun-indexer/internal/solana"
	"github.com/pumpstream/pumpfun-indexer/internal/storage"
)

// fakeWS hands out a prepared notification channel.
type fakeWS struct {
	mu      sync.Mutex
	notifs  chan solana.LogNotification
	filters []solana.LogsFilter
}

func newFakeWS() *fakeWS {
	return &fakeWS{notifs: make(chan solana.LogNotification, 16)}
}

func (f *fakeWS) SubscribeLogs(_ context.Context, filter solana.LogsFilter) (<-chan solana.LogNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filter)
	return f.notifs, nil
}

func (f *fakeWS) Close() error { return nil }

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestLiveSource_RoutesNotifications(t *testing.T) {
	fix := newRouterFixture(nil)
	createLine := pumptest.CreateLogLine(pumptest.DefaultCreate(1_700_000_000))

	ws := newFakeWS()
	rpc := &fakeRPC{
		txs: map[string]*solana.Transaction{
			"sig-live": programTx("sig-live", 1200, 1_700_000_000, createLine),
		},
	}

	src := NewLiveSource(LiveOptions{
		WS:        ws,
		RPC:       rpc,
		Router:    fix.router,
		ProgramID: pumptest.User,
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- src.Run(ctx) }()

	ws.notifs <- solana.LogNotification{
		Signature: "sig-live",
		Slot:      1200,
		Logs:      []string{createLine},
	}

	waitFor(t, func() bool {
		_, err := fix.tokens.Get(context.Background(), pumptest.Mint)
		return err == nil
	})

	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)

	ws.mu.Lock()
	require.Len(t, ws.filters, 1)
	assert.Equal(t, []string{pumptest.User}, ws.filters[0].Mentions)
	ws.mu.Unlock()

	assert.Equal(t, 1, fix.txs.Len())
	assert.Equal(t, 1, rpc.transactionCalls())
}

func TestLiveSource_FailedTransactionSkipsFetch(t *testing.T) {
	fix := newRouterFixture(nil)
	createLine := pumptest.CreateLogLine(pumptest.DefaultCreate(1_700_000_000))

	ws := newFakeWS()
	rpc := &fakeRPC{}

	src := NewLiveSource(LiveOptions{
		WS:        ws,
		RPC:       rpc,
		Router:    fix.router,
		ProgramID: pumptest.User,
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- src.Run(ctx) }()

	ws.notifs <- solana.LogNotification{
		Signature: "sig-failed",
		Slot:      1201,
		Logs:      []string{createLine},
		Err:       map[string]any{"InstructionError": []any{}},
	}

	waitFor(t, func() bool { return fix.txs.Len() == 1 })

	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)

	// Failed transactions are recorded but never fetched or applied.
	assert.Equal(t, 0, rpc.transactionCalls())
	_, err := fix.tokens.Get(context.Background(), pumptest.Mint)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLiveSource_SkipsFetchWithoutProgramData(t *testing.T) {
	fix := newRouterFixture(nil)

	ws := newFakeWS()
	rpc := &fakeRPC{}

	src := NewLiveSource(LiveOptions{
		WS:        ws,
		RPC:       rpc,
		Router:    fix.router,
		ProgramID: pumptest.User,
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- src.Run(ctx) }()

	ws.notifs <- solana.LogNotification{
		Signature: "sig-plain",
		Slot:      1202,
		Logs:      []string{"Program log: Instruction: SetParams"},
	}

	waitFor(t, func() bool { return fix.txs.Len() == 1 })

	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)
	assert.Equal(t, 0, rpc.transactionCalls())
}

func TestLiveSource_StreamClosed(t *testing.T) {
	fix := newRouterFixture(nil)
	ws := newFakeWS()

	src := NewLiveSource(LiveOptions{
		WS:        ws,
		RPC:       &fakeRPC{},
		Router:    fix.router,
		ProgramID: pumptest.User,
	})

	close(ws.notifs)

	err := src.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stream closed")
}
