// Package api serves the REST query surface and the WebSocket stream.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/pumpstream/pumpfun-indexer/internal/domain"
	"github.com/pumpstream/pumpfun-indexer/internal/observability"
	"github.com/pumpstream/pumpfun-indexer/internal/pump"
	"github.com/pumpstream/pumpfun-indexer/internal/state"
	"github.com/pumpstream/pumpfun-indexer/internal/storage"
)

// Listing limits.
const (
	defaultTokenLimit = 50
	maxTokenLimit     = 500
	defaultTradeLimit = 100
	maxTradeLimit     = 1000
	defaultHolders    = 20
	maxHolders        = 100
)

// Options configures a Server. Hub, Holders and the ping functions are
// optional.
type Options struct {
	Addr    string
	Tokens  storage.TokenStore
	Trades  storage.TradeStore
	Stats   storage.StatsStore
	Holders storage.HolderStore
	State   *state.Store
	Hub     *Hub

	// SolPrice returns the current SOL/USD reference price, 0 when
	// unavailable.
	SolPrice func() float64

	// DBPing, RedisPing and LivePing report backend liveness for
	// /health.
	DBPing    func(ctx context.Context) error
	RedisPing func(ctx context.Context) error
	LivePing  func(ctx context.Context) error

	Logger *zap.Logger
}

// Server is the HTTP query surface of the indexer.
type Server struct {
	addr      string
	tokens    storage.TokenStore
	trades    storage.TradeStore
	stats     storage.StatsStore
	holders   storage.HolderStore
	state     *state.Store
	hub       *Hub
	solPrice  func() float64
	dbPing    func(ctx context.Context) error
	redisPing func(ctx context.Context) error
	livePing  func(ctx context.Context) error
	logger    *zap.Logger
	router    *mux.Router
	started   time.Time
}

// NewServer creates the server and wires its routes.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	solPrice := opts.SolPrice
	if solPrice == nil {
		solPrice = func() float64 { return 0 }
	}
	s := &Server{
		addr:      opts.Addr,
		tokens:    opts.Tokens,
		trades:    opts.Trades,
		stats:     opts.Stats,
		holders:   opts.Holders,
		state:     opts.State,
		hub:       opts.Hub,
		solPrice:  solPrice,
		dbPing:    opts.DBPing,
		redisPing: opts.RedisPing,
		livePing:  opts.LivePing,
		logger:    logger,
		started:   time.Now(),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", observability.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/tokens", s.handleListTokens).Methods(http.MethodGet)
	api.HandleFunc("/tokens/{mint}", s.handleGetToken).Methods(http.MethodGet)
	api.HandleFunc("/tokens/{mint}/trades", s.handleListTrades).Methods(http.MethodGet)
	api.HandleFunc("/tokens/{mint}/holders", s.handleTopHolders).Methods(http.MethodGet)
	api.HandleFunc("/creators/{wallet}", s.handleCreator).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)

	if s.hub != nil {
		r.HandleFunc("/ws/trades", func(w http.ResponseWriter, r *http.Request) {
			s.hub.ServeWS(w, r, "")
		}).Methods(http.MethodGet)
		r.HandleFunc("/ws/trades/{mint}", func(w http.ResponseWriter, r *http.Request) {
			s.hub.ServeWS(w, r, mux.Vars(r)["mint"])
		}).Methods(http.MethodGet)
	}
	return r
}

// Handler returns the HTTP handler for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api server listening", zap.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	components := map[string]string{}
	healthy := true
	check := func(name string, ping func(ctx context.Context) error) {
		if ping == nil {
			return
		}
		if err := ping(ctx); err != nil {
			components[name] = "down"
			healthy = false
			return
		}
		components[name] = "ok"
	}
	check("database", s.dbPing)
	check("redis", s.redisPing)
	check("live_source", s.livePing)

	body := map[string]any{
		"status":         "ok",
		"components":     components,
		"sol_price_usd":  s.solPrice(),
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	}
	if s.state != nil {
		body["tokens_in_state"] = s.state.Len()
	}
	status := http.StatusOK
	if !healthy {
		body["status"] = "degraded"
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, body)
}

func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := storage.TokenFilter{
		Limit:  clampInt(q.Get("limit"), defaultTokenLimit, maxTokenLimit),
		Offset: atoiDefault(q.Get("offset"), 0),
		Sort:   storage.SortByCreatedAt,
	}
	if q.Get("sort") == string(storage.SortByMarketCap) {
		f.Sort = storage.SortByMarketCap
	}
	if v := q.Get("complete"); v != "" {
		complete, err := strconv.ParseBool(v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid complete parameter")
			return
		}
		f.Complete = &complete
	}

	rows, err := s.tokens.List(r.Context(), f)
	if err != nil {
		s.internalError(w, "list tokens", err)
		return
	}

	out := make([]tokenJSON, 0, len(rows))
	for _, t := range rows {
		out = append(out, tokenToJSON(t))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"tokens": out,
		"limit":  f.Limit,
		"offset": f.Offset,
	})
}

func (s *Server) handleGetToken(w http.ResponseWriter, r *http.Request) {
	mint := mux.Vars(r)["mint"]
	if !pump.ValidateAddress(mint) {
		s.writeError(w, http.StatusBadRequest, "invalid mint address")
		return
	}
	token, err := s.tokens.Get(r.Context(), mint)
	if errors.Is(err, storage.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "token not found")
		return
	}
	if err != nil {
		s.internalError(w, "get token", err)
		return
	}

	body := tokenToJSON(token)
	// Prefer the live in-memory view over the last flushed row.
	if s.state != nil {
		if view, ok := s.state.Get(mint); ok {
			body = tokenToJSON(state.TokenFromView(view))
			body.CreatedAt = token.CreatedAt
		}
	}
	s.writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleListTrades(w http.ResponseWriter, r *http.Request) {
	mint := mux.Vars(r)["mint"]
	if !pump.ValidateAddress(mint) {
		s.writeError(w, http.StatusBadRequest, "invalid mint address")
		return
	}
	q := r.URL.Query()
	limit := clampInt(q.Get("limit"), defaultTradeLimit, maxTradeLimit)
	offset := atoiDefault(q.Get("offset"), 0)

	rows, err := s.trades.ListByMint(r.Context(), mint, limit, offset)
	if err != nil {
		s.internalError(w, "list trades", err)
		return
	}

	out := make([]tradeJSON, 0, len(rows))
	for _, t := range rows {
		out = append(out, tradeToJSON(t))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"mint":   mint,
		"trades": out,
		"limit":  limit,
		"offset": offset,
	})
}

func (s *Server) handleTopHolders(w http.ResponseWriter, r *http.Request) {
	if s.holders == nil {
		s.writeError(w, http.StatusNotFound, "holders not tracked")
		return
	}
	mint := mux.Vars(r)["mint"]
	if !pump.ValidateAddress(mint) {
		s.writeError(w, http.StatusBadRequest, "invalid mint address")
		return
	}
	limit := clampInt(r.URL.Query().Get("limit"), defaultHolders, maxHolders)

	rows, err := s.holders.TopHolders(r.Context(), mint, limit)
	if err != nil {
		s.internalError(w, "top holders", err)
		return
	}

	out := make([]holderJSON, 0, len(rows))
	for _, h := range rows {
		out = append(out, holderJSON{
			Wallet:       h.UserWallet,
			TokenBalance: h.TokenBalance,
			UpdatedAt:    h.UpdatedAt,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"mint": mint, "holders": out})
}

func (s *Server) handleCreator(w http.ResponseWriter, r *http.Request) {
	wallet := mux.Vars(r)["wallet"]
	if !pump.ValidateAddress(wallet) {
		s.writeError(w, http.StatusBadRequest, "invalid wallet address")
		return
	}
	summary, err := s.trades.CreatorSummary(r.Context(), wallet)
	if err != nil {
		s.internalError(w, "creator summary", err)
		return
	}
	s.writeJSON(w, http.StatusOK, creatorJSON{
		Wallet:         summary.Wallet,
		TokensCreated:  summary.TokensCreated,
		TradeCount:     summary.TradeCount,
		VolumeSolTotal: summary.VolumeSolTotal,
		LastActivity:   summary.LastActivity,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.stats.Get(r.Context())
	if err != nil {
		s.internalError(w, "get stats", err)
		return
	}
	s.writeJSON(w, http.StatusOK, statsJSON{
		TotalTransactions: stats.TotalTransactions,
		TotalTokens:       stats.TotalTokens,
		TotalTrades:       stats.TotalTrades,
		TotalVolumeSol:    stats.TotalVolumeSol,
		LastProcessedSlot: stats.LastProcessedSlot,
		SolPriceUSD:       s.solPrice(),
		UpdatedAt:         stats.UpdatedAt,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("response encode failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.logger.Error(op+" failed", zap.Error(err))
	s.writeError(w, http.StatusInternalServerError, "internal error")
}

func atoiDefault(v string, def int) int {
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func clampInt(v string, def, max int) int {
	n := atoiDefault(v, def)
	if n == 0 {
		n = def
	}
	if n > max {
		n = max
	}
	return n
}

type tokenJSON struct {
	MintAddress          string    `json:"mint_address"`
	Name                 string    `json:"name"`
	Symbol               string    `json:"symbol"`
	URI                  string    `json:"uri"`
	Creator              string    `json:"creator"`
	BondingCurveAddress  string    `json:"bonding_curve_address"`
	TokenTotalSupply     int64     `json:"token_total_supply"`
	VirtualSolReserves   int64     `json:"virtual_sol_reserves"`
	VirtualTokenReserves int64     `json:"virtual_token_reserves"`
	RealSolReserves      int64     `json:"real_sol_reserves"`
	RealTokenReserves    int64     `json:"real_token_reserves"`
	Complete             bool      `json:"complete"`
	MarketCapSol         float64   `json:"market_cap_sol"`
	MarketCapUSD         float64   `json:"market_cap_usd"`
	BondingCurveProgress float64   `json:"bonding_curve_progress"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func tokenToJSON(t *domain.Token) tokenJSON {
	return tokenJSON{
		MintAddress:          t.MintAddress,
		Name:                 t.Name,
		Symbol:               t.Symbol,
		URI:                  t.URI,
		Creator:              t.Creator,
		BondingCurveAddress:  t.BondingCurveAddress,
		TokenTotalSupply:     t.TokenTotalSupply,
		VirtualSolReserves:   t.VirtualSolReserves,
		VirtualTokenReserves: t.VirtualTokenReserves,
		RealSolReserves:      t.RealSolReserves,
		RealTokenReserves:    t.RealTokenReserves,
		Complete:             t.Complete,
		MarketCapSol:         t.MarketCapSol,
		MarketCapUSD:         t.MarketCapUSD,
		BondingCurveProgress: t.BondingCurveProgress,
		CreatedAt:            t.CreatedAt,
		UpdatedAt:            t.UpdatedAt,
	}
}

type tradeJSON struct {
	Signature   string    `json:"signature"`
	TokenMint   string    `json:"token_mint"`
	UserWallet  string    `json:"user_wallet"`
	IsBuy       bool      `json:"is_buy"`
	SolAmount   int64     `json:"sol_amount"`
	TokenAmount int64     `json:"token_amount"`
	Fee         int64     `json:"fee"`
	CreatorFee  int64     `json:"creator_fee"`
	IxName      string    `json:"ix_name"`
	Timestamp   time.Time `json:"timestamp"`
}

func tradeToJSON(t *domain.Trade) tradeJSON {
	return tradeJSON{
		Signature:   t.Signature,
		TokenMint:   t.TokenMint,
		UserWallet:  t.UserWallet,
		IsBuy:       t.IsBuy,
		SolAmount:   t.SolAmount,
		TokenAmount: t.TokenAmount,
		Fee:         t.Fee,
		CreatorFee:  t.CreatorFee,
		IxName:      t.IxName,
		Timestamp:   t.Timestamp,
	}
}

type holderJSON struct {
	Wallet       string    `json:"wallet"`
	TokenBalance int64     `json:"token_balance"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type creatorJSON struct {
	Wallet         string    `json:"wallet"`
	TokensCreated  int64     `json:"tokens_created"`
	TradeCount     int64     `json:"trade_count"`
	VolumeSolTotal int64     `json:"volume_sol_total"`
	LastActivity   time.Time `json:"last_activity"`
}

type statsJSON struct {
	TotalTransactions int64     `json:"total_transactions"`
	TotalTokens       int64     `json:"total_tokens"`
	TotalTrades       int64     `json:"total_trades"`
	TotalVolumeSol    int64     `json:"total_volume_sol"`
	LastProcessedSlot int64     `json:"last_processed_slot"`
	SolPriceUSD       float64   `json:"sol_price_usd"`
	UpdatedAt         time.Time `json:"updated_at"`
}
