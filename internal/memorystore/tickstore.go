package memorystore

import (
	"sync"

	"digitdash/internal/market"
)

// TickStore keeps a bounded history of recent ticks per symbol.
type TickStore struct {
	globalMu sync.RWMutex
	data     map[string]*symbolTickStore
	capacity int
}

type symbolTickStore struct {
	mu    sync.Mutex
	ticks *Ring[market.Tick]
}

func NewTickStore(capacity int) *TickStore {
	return &TickStore{
		data:     make(map[string]*symbolTickStore),
		capacity: capacity,
	}
}

func (s *TickStore) Add(t market.Tick) {
	// Fast path: lock per-symbol store only
	s.globalMu.RLock()
	store, ok := s.data[t.Symbol]
	s.globalMu.RUnlock()

	if !ok {
		s.globalMu.Lock()
		if store, ok = s.data[t.Symbol]; !ok {
			store = &symbolTickStore{ticks: NewRing[market.Tick](s.capacity)}
			s.data[t.Symbol] = store
		}
		s.globalMu.Unlock()
	}

	store.mu.Lock()
	store.ticks.Push(t)
	store.mu.Unlock()
}

// GetBySymbol returns the retained ticks for symbol, oldest first.
func (s *TickStore) GetBySymbol(symbol string) []market.Tick {
	s.globalMu.RLock()
	store, ok := s.data[symbol]
	s.globalMu.RUnlock()
	if !ok {
		return nil
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	return store.ticks.Items()
}

// Latest returns the newest tick for symbol.
func (s *TickStore) Latest(symbol string) (market.Tick, bool) {
	s.globalMu.RLock()
	store, ok := s.data[symbol]
	s.globalMu.RUnlock()
	if !ok {
		return market.Tick{}, false
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	return store.ticks.Last()
}

// CountAll returns the total number of ticks stored across all symbols.
func (s *TickStore) CountAll() int {
	s.globalMu.RLock()
	defer s.globalMu.RUnlock()

	total := 0
	for _, store := range s.data {
		store.mu.Lock()
		total += store.ticks.Len()
		store.mu.Unlock()
	}
	return total
}

// Drop forgets the history of symbol.
func (s *TickStore) Drop(symbol string) {
	s.globalMu.Lock()
	delete(s.data, symbol)
	s.globalMu.Unlock()
}

func (s *TickStore) Reset() {
	s.globalMu.Lock()
	s.data = make(map[string]*symbolTickStore)
	s.globalMu.Unlock()
}
