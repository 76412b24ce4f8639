// Command indexer runs the full real-time pipeline: live WebSocket
// ingestion, the SOL price oracle, the derived-field flusher and the
// HTTP/WebSocket API, all backed by PostgreSQL and Redis.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pumpstream/pumpfun-indexer/internal/api"
	"github.com/pumpstream/pumpfun-indexer/internal/bus"
	"github.com/pumpstream/pumpfun-indexer/internal/config"
	"github.com/pumpstream/pumpfun-indexer/internal/ingest"
	"github.com/pumpstream/pumpfun-indexer/internal/oracle"
	"github.com/pumpstream/pumpfun-indexer/internal/pump"
	"github.com/pumpstream/pumpfun-indexer/internal/router"
	"github.com/pumpstream/pumpfun-indexer/internal/solana"
	"github.com/pumpstream/pumpfun-indexer/internal/state"
	"github.com/pumpstream/pumpfun-indexer/internal/storage/migrations"
	pgstore "github.com/pumpstream/pumpfun-indexer/internal/storage/postgres"
)

func main() {
	if err := run(); err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "indexer: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !pump.ValidateAddress(cfg.ProgramID) {
		return fmt.Errorf("invalid program ID %q", cfg.ProgramID)
	}

	logger, err := cfg.Logger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals with graceful timeout.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("shutting down", zap.String("signal", sig.String()))
		cancel()

		select {
		case <-sigCh:
			logger.Warn("second signal, forcing exit")
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Warn("graceful shutdown timed out, forcing exit")
			os.Exit(1)
		case <-ctx.Done():
		}
	}()

	pool, err := pgstore.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		return err
	}
	logger.Info("database ready")

	tokens := pgstore.NewTokenStore(pool)
	trades := pgstore.NewTradeStore(pool)
	txs := pgstore.NewTransactionStore(pool)
	stats := pgstore.NewStatsStore(pool)
	holders := pgstore.NewHolderStore(pool)

	publisher, err := bus.NewRedisPublisher(ctx, cfg.RedisURL, logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	st := state.NewStore()
	if err := ingest.Rebuild(ctx, tokens, st, logger); err != nil {
		return fmt.Errorf("rebuild state: %w", err)
	}

	priceOracle := oracle.New(oracle.Options{
		CoinGeckoAPIKey: cfg.CoinGeckoAPIKey,
		Logger:          logger,
	})

	rpc := solana.NewHTTPClient(cfg.RPCEndpoint)
	ws, err := solana.NewWSClient(ctx, cfg.WSEndpoint, nil, logger)
	if err != nil {
		return fmt.Errorf("connect websocket: %w", err)
	}
	defer ws.Close()

	rt := router.New(router.Options{
		State:        st,
		Tokens:       tokens,
		Trades:       trades,
		Transactions: txs,
		Stats:        stats,
		Holders:      holders,
		Bus:          publisher,
		SolPrice:     priceOracle.Price,
		Logger:       logger,
	})

	live := ingest.NewLiveSource(ingest.LiveOptions{
		WS:        ws,
		RPC:       rpc,
		Router:    rt,
		ProgramID: cfg.ProgramID,
		Logger:    logger,
	})

	flusher := ingest.NewFlusher(ingest.FlushOptions{
		State:  st,
		Tokens: tokens,
		Logger: logger,
	})

	hub := api.NewHub(bus.NewRedisSubscriber(publisher.Client(), logger), logger)

	server := api.NewServer(api.Options{
		Addr:      cfg.APIAddr(),
		Tokens:    tokens,
		Trades:    trades,
		Stats:     stats,
		Holders:   holders,
		State:     st,
		Hub:       hub,
		SolPrice:  priceOracle.Price,
		DBPing:    pool.Ping,
		RedisPing: publisher.Ping,
		LivePing: func(context.Context) error {
			if !ws.Alive() {
				return fmt.Errorf("websocket closed")
			}
			return nil
		},
		Logger:    logger,
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return priceOracle.Run(ctx) })
	g.Go(func() error { return live.Run(ctx) })
	g.Go(func() error { return flusher.Run(ctx) })
	g.Go(func() error { return hub.Run(ctx) })
	g.Go(func() error { return server.Run(ctx) })

	logger.Info("indexer started",
		zap.String("program", cfg.ProgramID),
		zap.String("addr", cfg.APIAddr()))

	return g.Wait()
}
