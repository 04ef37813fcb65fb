package bots

import (
	"fmt"
	"sync"

	"digitdash/internal/analysis"
)

// Set holds one bot per kind. Bots share no state with each other.
type Set struct {
	mu   sync.RWMutex
	bots map[Kind]*Bot
}

func NewSet(bots ...*Bot) *Set {
	s := &Set{bots: make(map[Kind]*Bot)}
	for _, b := range bots {
		s.bots[b.Kind()] = b
	}
	return s
}

// NewDefaultSet creates an inactive bot of every kind with default params.
func NewDefaultSet() *Set {
	s := NewSet()
	for _, k := range AllKinds() {
		b, _ := New(k, Params{})
		s.Put(b)
	}
	return s
}

// Put adds or replaces the bot of its kind.
func (s *Set) Put(b *Bot) {
	s.mu.Lock()
	s.bots[b.Kind()] = b
	s.mu.Unlock()
}

func (s *Set) Get(kind Kind) (*Bot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bots[kind]
	return b, ok
}

// SetActive toggles the bot named name.
func (s *Set) SetActive(name string, active bool) error {
	kind, err := ParseKind(name)
	if err != nil {
		return err
	}
	b, ok := s.Get(kind)
	if !ok {
		return fmt.Errorf("bots: %s is not configured", kind)
	}
	b.SetActive(active)
	return nil
}

func (s *Set) Activate(name string) error { return s.SetActive(name, true) }

func (s *Set) Deactivate(name string) error { return s.SetActive(name, false) }

// ConsumeAll offers snap to every bot, in kind order.
func (s *Set) ConsumeAll(snap analysis.Snapshot) []Signal {
	var out []Signal
	for _, b := range s.ordered() {
		if sig, ok := b.Consume(snap); ok {
			out = append(out, sig)
		}
	}
	return out
}

func (s *Set) States() []State {
	bots := s.ordered()
	out := make([]State, len(bots))
	for i, b := range bots {
		out[i] = b.State()
	}
	return out
}

func (s *Set) Reset() {
	for _, b := range s.ordered() {
		b.Reset()
	}
}

func (s *Set) ordered() []*Bot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Bot, 0, len(s.bots))
	for _, k := range AllKinds() {
		if b, ok := s.bots[k]; ok {
			out = append(out, b)
		}
	}
	return out
}
