package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pumpstream/pumpfun-indexer/internal/domain"
	"github.com/pumpstream/pumpfun-indexer/internal/storage"
)

// TransactionStore is an in-memory implementation of storage.TransactionStore.
type TransactionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TransactionRecord
}

// NewTransactionStore creates a new in-memory transaction store.
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{
		data: make(map[string]*domain.TransactionRecord),
	}
}

// Compile-time interface check.
var _ storage.TransactionStore = (*TransactionStore)(nil)

// Upsert records a transaction envelope. Replays keep the first record.
func (s *TransactionStore) Upsert(_ context.Context, tx *domain.TransactionRecord) error {
	if tx == nil || tx.Signature == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[tx.Signature]; exists {
		return nil
	}
	copy := *tx
	s.data[tx.Signature] = &copy
	return nil
}

// Len returns the number of stored transaction records.
func (s *TransactionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// StatsStore is an in-memory implementation of storage.StatsStore.
type StatsStore struct {
	mu    sync.Mutex
	stats domain.IndexerStats
}

// NewStatsStore creates a new in-memory stats store.
func NewStatsStore() *StatsStore {
	return &StatsStore{}
}

// Compile-time interface check.
var _ storage.StatsStore = (*StatsStore)(nil)

// Apply adds the delta to the counters.
func (s *StatsStore) Apply(_ context.Context, d domain.StatsDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.TotalTransactions += d.Transactions
	s.stats.TotalTokens += d.Tokens
	s.stats.TotalTrades += d.Trades
	s.stats.TotalVolumeSol += d.VolumeSol
	if d.Slot > s.stats.LastProcessedSlot {
		s.stats.LastProcessedSlot = d.Slot
	}
	s.stats.UpdatedAt = time.Now()
	return nil
}

// Get returns the current counters.
func (s *StatsStore) Get(_ context.Context) (*domain.IndexerStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy := s.stats
	return &copy, nil
}

// HolderStore is an in-memory implementation of storage.HolderStore.
type HolderStore struct {
	mu   sync.RWMutex
	data map[string]map[string]*domain.HolderBalance
}

// NewHolderStore creates a new in-memory holder store.
func NewHolderStore() *HolderStore {
	return &HolderStore{
		data: make(map[string]map[string]*domain.HolderBalance),
	}
}

// Compile-time interface check.
var _ storage.HolderStore = (*HolderStore)(nil)

// ApplyTrade adjusts the wallet's balance for a mint by delta,
// flooring at zero.
func (s *HolderStore) ApplyTrade(_ context.Context, mint, wallet string, delta int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wallets, ok := s.data[mint]
	if !ok {
		wallets = make(map[string]*domain.HolderBalance)
		s.data[mint] = wallets
	}
	h, ok := wallets[wallet]
	if !ok {
		h = &domain.HolderBalance{TokenMint: mint, UserWallet: wallet}
		wallets[wallet] = h
	}
	h.TokenBalance += delta
	if h.TokenBalance < 0 {
		h.TokenBalance = 0
	}
	h.UpdatedAt = at
	return nil
}

// TopHolders lists the largest balances for a mint.
func (s *HolderStore) TopHolders(_ context.Context, mint string, limit int) ([]*domain.HolderBalance, error) {
	s.mu.RLock()
	var out []*domain.HolderBalance
	for _, h := range s.data[mint] {
		if h.TokenBalance <= 0 {
			continue
		}
		copy := *h
		out = append(out, &copy)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].TokenBalance > out[j].TokenBalance })
	if limit <= 0 {
		limit = 20
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
