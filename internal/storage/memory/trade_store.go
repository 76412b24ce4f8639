package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/pumpstream/pumpfun-indexer/internal/domain"
	"github.com/pumpstream/pumpfun-indexer/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStore.
// Foreign-key safety against tokens is not enforced here.
type TradeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Trade
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		data: make(map[string]*domain.Trade),
	}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// Insert adds a trade. Returns ErrDuplicateKey if the signature exists.
func (s *TradeStore) Insert(_ context.Context, t *domain.Trade) error {
	if t == nil || t.Signature == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.Signature]; exists {
		return storage.ErrDuplicateKey
	}
	copy := *t
	s.data[t.Signature] = &copy
	return nil
}

// ListByMint retrieves trades for a mint, newest first.
func (s *TradeStore) ListByMint(_ context.Context, mint string, limit, offset int) ([]*domain.Trade, error) {
	s.mu.RLock()
	var all []*domain.Trade
	for _, t := range s.data {
		if t.TokenMint != mint {
			continue
		}
		copy := *t
		all = append(all, &copy)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].Timestamp.After(all[j].Timestamp) })

	if limit <= 0 {
		limit = 50
	}
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

// CreatorSummary aggregates trade activity by the trade creator field.
func (s *TradeStore) CreatorSummary(_ context.Context, wallet string) (*domain.CreatorSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := &domain.CreatorSummary{Wallet: wallet}
	for _, t := range s.data {
		if t.Creator != wallet {
			continue
		}
		sum.TradeCount++
		sum.VolumeSolTotal += t.SolAmount
		if t.Timestamp.After(sum.LastActivity) {
			sum.LastActivity = t.Timestamp
		}
	}
	return sum, nil
}
