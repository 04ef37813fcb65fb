package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"digitdash/internal/journal"
)

// Store keeps journal entries in a map. It backs the journal when Postgres
// is disabled and in tests.
type Store struct {
	mu     sync.Mutex
	trades map[string]journal.Entry
}

func NewStore() *Store {
	return &Store{
		trades: make(map[string]journal.Entry),
	}
}

// SaveTrade ignores a trade id that is already stored.
func (m *Store) SaveTrade(_ context.Context, e journal.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.trades[e.TradeID]; ok {
		return nil
	}
	m.trades[e.TradeID] = e
	return nil
}

// CloseTrade upserts the closed entry; a result may arrive for a trade
// whose open record was dropped.
func (m *Store) CloseTrade(_ context.Context, e journal.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades[e.TradeID] = e
	return nil
}

func (m *Store) GetTrade(id string) (journal.Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.trades[id]
	return e, ok
}

// GetTrades returns a copy ordered by open time.
func (m *Store) GetTrades() []journal.Entry {
	m.mu.Lock()
	out := make([]journal.Entry, 0, len(m.trades))
	for _, e := range m.trades {
		out = append(out, e)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, k int) bool {
		if out[i].OpenedAt.Equal(out[k].OpenedAt) {
			return out[i].TradeID < out[k].TradeID
		}
		return out[i].OpenedAt.Before(out[k].OpenedAt)
	})
	return out
}

func (m *Store) DeleteOlderThan(before time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, e := range m.trades {
		if e.OpenedAt.Before(before) {
			delete(m.trades, id)
			n++
		}
	}
	return n
}
