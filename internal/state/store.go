// Package state keeps the in-memory view of every tracked token,
// updated on each decoded event and periodically flushed to storage.
package state

import (
	"errors"
	"sync"
	"time"
)

// ErrUnknownToken is returned when a trade or completion references a
// mint the store has never seen.
var ErrUnknownToken = errors.New("state: unknown token")

// TokenView is an immutable copy of one token's current state.
type TokenView struct {
	Mint                 string
	Name                 string
	Symbol               string
	URI                  string
	BondingCurve         string
	Creator              string
	TokenTotalSupply     uint64
	VirtualSolReserves   uint64
	VirtualTokenReserves uint64
	RealSolReserves      uint64
	RealTokenReserves    uint64
	Complete             bool
	PriceSol             float64
	MarketCapSol         float64
	MarketCapUSD         float64
	Progress             float64
	LastEventTime        int64
	UpdatedAt            time.Time
}

// Reserves carries the post-event curve reserves of a trade or
// completion.
type Reserves struct {
	VirtualSol   uint64
	VirtualToken uint64
	RealSol      uint64
	RealToken    uint64
}

type entry struct {
	mu   sync.Mutex
	view TokenView
}

// Store is a concurrent token-state map. The outer lock guards the map
// itself; each entry has its own lock for field mutation, so updates to
// different mints never contend.
type Store struct {
	mu     sync.RWMutex
	tokens map[string]*entry

	clock func() time.Time
}

// NewStore creates an empty token-state store.
func NewStore() *Store {
	return &Store{
		tokens: make(map[string]*entry),
		clock:  time.Now,
	}
}

// Creation carries the fields of a token launch.
type Creation struct {
	Mint                 string
	Name                 string
	Symbol               string
	URI                  string
	BondingCurve         string
	Creator              string
	TokenTotalSupply     uint64
	VirtualSolReserves   uint64
	VirtualTokenReserves uint64
	RealSolReserves      uint64
	RealTokenReserves    uint64
	Timestamp            int64
}

// GetOrCreate registers a token if absent and returns its current view.
// Replayed creations leave the existing entry untouched.
func (s *Store) GetOrCreate(c Creation, solPriceUSD float64) (TokenView, bool) {
	s.mu.Lock()
	e, ok := s.tokens[c.Mint]
	if !ok {
		e = &entry{}
		s.tokens[c.Mint] = e
	}
	s.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if ok {
		return e.view, false
	}
	e.view = TokenView{
		Mint:                 c.Mint,
		Name:                 c.Name,
		Symbol:               c.Symbol,
		URI:                  c.URI,
		BondingCurve:         c.BondingCurve,
		Creator:              c.Creator,
		TokenTotalSupply:     c.TokenTotalSupply,
		VirtualSolReserves:   c.VirtualSolReserves,
		VirtualTokenReserves: c.VirtualTokenReserves,
		RealSolReserves:      c.RealSolReserves,
		RealTokenReserves:    c.RealTokenReserves,
		LastEventTime:        c.Timestamp,
		UpdatedAt:            s.clock(),
	}
	recompute(&e.view, solPriceUSD)
	return e.view, true
}

// ApplyTrade replaces the token's reserves with the post-trade values
// and recomputes derived fields. Unknown mints return ErrUnknownToken.
func (s *Store) ApplyTrade(mint string, r Reserves, ts int64, solPriceUSD float64) (TokenView, error) {
	e := s.lookup(mint)
	if e == nil {
		return TokenView{}, ErrUnknownToken
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.view.VirtualSolReserves = r.VirtualSol
	e.view.VirtualTokenReserves = r.VirtualToken
	e.view.RealSolReserves = r.RealSol
	e.view.RealTokenReserves = r.RealToken
	e.view.LastEventTime = ts
	e.view.UpdatedAt = s.clock()
	recompute(&e.view, solPriceUSD)
	return e.view, nil
}

// MarkComplete flags the token as graduated and pins its final
// reserves. Completion is monotone: replays are no-ops.
func (s *Store) MarkComplete(mint string, r Reserves, ts int64, solPriceUSD float64) (TokenView, error) {
	e := s.lookup(mint)
	if e == nil {
		return TokenView{}, ErrUnknownToken
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.view.Complete {
		return e.view, nil
	}
	e.view.Complete = true
	e.view.VirtualSolReserves = r.VirtualSol
	e.view.VirtualTokenReserves = r.VirtualToken
	e.view.RealSolReserves = r.RealSol
	e.view.RealTokenReserves = r.RealToken
	e.view.LastEventTime = ts
	e.view.UpdatedAt = s.clock()
	recompute(&e.view, solPriceUSD)
	return e.view, nil
}

// Get returns the current view of one token.
func (s *Store) Get(mint string) (TokenView, bool) {
	e := s.lookup(mint)
	if e == nil {
		return TokenView{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view, true
}

// Snapshot returns a copy of every token's state. Each entry is
// internally consistent; the list as a whole is not a point-in-time
// cut across tokens.
func (s *Store) Snapshot() []TokenView {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.tokens))
	for _, e := range s.tokens {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]TokenView, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.view)
		e.mu.Unlock()
	}
	return out
}

// Len returns the number of tracked tokens.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}

// Load seeds the store from persisted token rows, replacing any
// existing entry for the same mint. Used to rebuild state on startup.
func (s *Store) Load(views []TokenView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range views {
		s.tokens[v.Mint] = &entry{view: v}
	}
}

func (s *Store) lookup(mint string) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens[mint]
}
