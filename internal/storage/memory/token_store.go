// Package memory provides in-memory implementations of the storage
// interfaces for tests and local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pumpstream/pumpfun-indexer/internal/domain"
	"github.com/pumpstream/pumpfun-indexer/internal/storage"
)

// TokenStore is an in-memory implementation of storage.TokenStore.
type TokenStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Token
}

// NewTokenStore creates a new in-memory token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{
		data: make(map[string]*domain.Token),
	}
}

// Compile-time interface check.
var _ storage.TokenStore = (*TokenStore)(nil)

// Upsert inserts a token creation. An existing mint is left untouched.
func (s *TokenStore) Upsert(_ context.Context, t *domain.Token) error {
	if t == nil || t.MintAddress == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.MintAddress]; exists {
		return nil
	}
	copy := *t
	s.data[t.MintAddress] = &copy
	return nil
}

// UpdateReserves writes the raw post-trade reserves for a mint.
func (s *TokenStore) UpdateReserves(_ context.Context, mint string, virtualSol, virtualToken, realSol, realToken int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.data[mint]
	if !ok {
		return nil
	}
	t.VirtualSolReserves = virtualSol
	t.VirtualTokenReserves = virtualToken
	t.RealSolReserves = realSol
	t.RealTokenReserves = realToken
	return nil
}

// UpdateDerived writes the derived market columns for a mint.
func (s *TokenStore) UpdateDerived(_ context.Context, u storage.DerivedUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.data[u.MintAddress]
	if !ok {
		return nil
	}
	t.MarketCapSol = u.MarketCapSol
	t.MarketCapUSD = u.MarketCapUSD
	t.BondingCurveProgress = u.BondingCurveProgress
	t.VirtualSolReserves = u.VirtualSolReserves
	t.VirtualTokenReserves = u.VirtualTokenReserves
	t.RealSolReserves = u.RealSolReserves
	t.RealTokenReserves = u.RealTokenReserves
	t.UpdatedAt = u.UpdatedAt
	return nil
}

// MarkComplete flags a token as graduated and pins its final reserves.
func (s *TokenStore) MarkComplete(_ context.Context, mint string, virtualSol, virtualToken, realSol, realToken int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.data[mint]
	if !ok {
		return storage.ErrNotFound
	}
	if t.Complete {
		return nil
	}
	t.Complete = true
	t.VirtualSolReserves = virtualSol
	t.VirtualTokenReserves = virtualToken
	t.RealSolReserves = realSol
	t.RealTokenReserves = realToken
	t.BondingCurveProgress = 100
	t.UpdatedAt = time.Now()
	return nil
}

// Get retrieves a token by mint. Returns ErrNotFound if not exists.
func (s *TokenStore) Get(_ context.Context, mint string) (*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.data[mint]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copy := *t
	return &copy, nil
}

// List retrieves tokens per the filter.
func (s *TokenStore) List(_ context.Context, f storage.TokenFilter) ([]*domain.Token, error) {
	s.mu.RLock()
	all := make([]*domain.Token, 0, len(s.data))
	for _, t := range s.data {
		if f.Complete != nil && t.Complete != *f.Complete {
			continue
		}
		copy := *t
		all = append(all, &copy)
	}
	s.mu.RUnlock()

	if f.Sort == storage.SortByMarketCap {
		sort.Slice(all, func(i, j int) bool { return all[i].MarketCapSol > all[j].MarketCapSol })
	} else {
		sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := f.Offset
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

// ListAll returns every token row.
func (s *TokenStore) ListAll(_ context.Context) ([]*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Token, 0, len(s.data))
	for _, t := range s.data {
		copy := *t
		out = append(out, &copy)
	}
	return out, nil
}

// CountAll returns the number of token rows.
func (s *TokenStore) CountAll(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.data)), nil
}
