// Command backfill replays historical launchpad transactions into
// PostgreSQL by walking the program's signature history backward. It
// runs in one of two modes: --tokens-only records creations, then
// --trades-only replays trades and completions against them.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/pumpstream/pumpfun-indexer/internal/config"
	"github.com/pumpstream/pumpfun-indexer/internal/ingest"
	"github.com/pumpstream/pumpfun-indexer/internal/pump"
	"github.com/pumpstream/pumpfun-indexer/internal/router"
	"github.com/pumpstream/pumpfun-indexer/internal/solana"
	"github.com/pumpstream/pumpfun-indexer/internal/state"
	"github.com/pumpstream/pumpfun-indexer/internal/storage/migrations"
	pgstore "github.com/pumpstream/pumpfun-indexer/internal/storage/postgres"
)

func main() {
	if err := run(); err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "backfill: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	config.LoadDotEnv(".env")

	tokensOnly := flag.Bool("tokens-only", false, "Backfill token creations only")
	tradesOnly := flag.Bool("trades-only", false, "Backfill trades and completions only")
	before := flag.String("before", "", "Start walking backward from this signature (default: most recent)")
	batchSize := flag.Int("batch-size", 1000, "Signature page size")
	concurrency := flag.Int("concurrency", 10, "Parallel transaction fetches")
	maxTxs := flag.Int("max-txs", 0, "Stop after this many transactions (0 is unlimited)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	rpcEndpoint := flag.String("rpc-endpoint", "", "Solana RPC HTTP endpoint")
	programID := flag.String("program", "", "Launchpad program ID")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	if *tokensOnly == *tradesOnly {
		return fmt.Errorf("exactly one of --tokens-only or --trades-only is required")
	}
	mode := ingest.ModeTokens
	if *tradesOnly {
		mode = ingest.ModeTrades
	}

	if *postgresDSN == "" {
		return fmt.Errorf("--postgres-dsn or DATABASE_URL is required")
	}
	if *rpcEndpoint == "" {
		*rpcEndpoint = os.Getenv("RPC_ENDPOINT")
	}
	if *rpcEndpoint == "" {
		*rpcEndpoint = "https://api.mainnet-beta.solana.com"
	}
	if *programID == "" {
		*programID = os.Getenv("PUMP_PROGRAM_ID")
	}
	if *programID == "" {
		*programID = config.DefaultProgramID
	}
	if !pump.ValidateAddress(*programID) {
		return fmt.Errorf("invalid program ID %q", *programID)
	}

	cfg := &config.Config{LogLevel: *logLevel}
	logger, err := cfg.Logger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		return err
	}

	tokens := pgstore.NewTokenStore(pool)

	st := state.NewStore()
	if mode == ingest.ModeTrades {
		// Trades need the creation-time curve state to replay against.
		if err := ingest.Rebuild(ctx, tokens, st, logger); err != nil {
			return fmt.Errorf("rebuild state: %w", err)
		}
	}

	rt := router.New(router.Options{
		State:        st,
		Tokens:       tokens,
		Trades:       pgstore.NewTradeStore(pool),
		Transactions: pgstore.NewTransactionStore(pool),
		Stats:        pgstore.NewStatsStore(pool),
		Holders:      pgstore.NewHolderStore(pool),
		Accept:       ingest.AcceptForMode(mode),
		Logger:       logger,
	})

	backfiller := ingest.NewBackfiller(ingest.BackfillOptions{
		RPC:         solana.NewHTTPClient(*rpcEndpoint),
		Router:      rt,
		ProgramID:   *programID,
		Before:      *before,
		BatchSize:   *batchSize,
		Concurrency: *concurrency,
		MaxTxs:      *maxTxs,
		Logger:      logger,
	})

	logger.Info("backfill started",
		zap.String("mode", string(mode)),
		zap.String("program", *programID))

	result, err := backfiller.Run(ctx)
	if err != nil {
		return err
	}

	// Flush derived fields computed during replay before exiting.
	flusher := ingest.NewFlusher(ingest.FlushOptions{
		State:  st,
		Tokens: tokens,
		Logger: logger,
	})
	if err := flusher.Flush(context.Background()); err != nil {
		logger.Warn("final flush incomplete", zap.Error(err))
	}

	logger.Info("backfill complete",
		zap.Int("pages", result.Pages),
		zap.Int("transactions", result.Transactions),
		zap.Int("tokens", result.Tokens),
		zap.Int("trades", result.Trades),
		zap.Int("completions", result.Completions),
		zap.Int("orphans", result.Orphans),
		zap.Int("skipped", result.Skipped),
		zap.Duration("duration", result.Duration))

	return nil
}
