package memorystore

import (
	"sort"
	"sync"
	"time"
)

// SymbolInfo describes a tradable symbol as discovered from the feed.
type SymbolInfo struct {
	Symbol      string `json:"symbol"`
	DisplayName string `json:"display_name"`
	Market      string `json:"market"`
	Submarket   string `json:"submarket"`
	Pip         int    `json:"pip"` // quoted decimals
	Open        bool   `json:"open"`
}

type SymbolStore struct {
	mu        sync.RWMutex
	symbols   map[string]SymbolInfo
	updatedAt time.Time
}

func NewSymbolStore() *SymbolStore {
	return &SymbolStore{
		symbols: make(map[string]SymbolInfo),
	}
}

// Replace swaps the whole symbol set, as done after each discovery run.
func (s *SymbolStore) Replace(infos []SymbolInfo) {
	next := make(map[string]SymbolInfo, len(infos))
	for _, info := range infos {
		next[info.Symbol] = info
	}

	s.mu.Lock()
	s.symbols = next
	s.updatedAt = time.Now()
	s.mu.Unlock()
}

func (s *SymbolStore) Get(symbol string) (SymbolInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.symbols[symbol]
	return info, ok
}

// Pip returns the quoted decimals for symbol, or -1 when unknown.
func (s *SymbolStore) Pip(symbol string) int {
	if info, ok := s.Get(symbol); ok {
		return info.Pip
	}
	return -1
}

// GetAll returns all symbols sorted by name.
func (s *SymbolStore) GetAll() []SymbolInfo {
	s.mu.RLock()
	out := make([]SymbolInfo, 0, len(s.symbols))
	for _, info := range s.symbols {
		out = append(out, info)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func (s *SymbolStore) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}
