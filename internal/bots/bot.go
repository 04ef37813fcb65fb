package bots

import (
	"fmt"
	"sync"
	"time"

	"digitdash/internal/analysis"
)

// Bot runs one strategy and keeps its win/loss bookkeeping.
type Bot struct {
	mu       sync.Mutex
	kind     Kind
	strategy Strategy
	state    State
	lastSeq  map[string]uint64
	now      func() time.Time
}

// New builds a bot of kind from the registry.
func New(kind Kind, params Params) (*Bot, error) {
	factory, ok := Lookup(kind)
	if !ok {
		return nil, fmt.Errorf("bots: no strategy registered for %s", kind)
	}
	params = params.withDefaults(kind)
	return &Bot{
		kind:     kind,
		strategy: factory(params),
		state:    State{Kind: kind, Params: params},
		lastSeq:  make(map[string]uint64),
		now:      time.Now,
	}, nil
}

func (b *Bot) Kind() Kind { return b.kind }

// Consume evaluates snap and returns at most one signal per (symbol, sequence).
func (b *Bot) Consume(snap analysis.Snapshot) (Signal, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p := b.state.Params
	if !b.state.Active || snap.Empty() {
		return Signal{}, false
	}
	if p.Symbol != "" && p.Symbol != snap.Symbol {
		return Signal{}, false
	}
	if last, seen := b.lastSeq[snap.Symbol]; seen && snap.Sequence <= last {
		return Signal{}, false
	}
	b.lastSeq[snap.Symbol] = snap.Sequence

	if b.state.Paused() {
		b.state = b.state.withPausedTick()
		return Signal{}, false
	}

	sig, ok := b.strategy.Evaluate(snap, b.state)
	if !ok || sig.Action == ActionHold {
		return Signal{}, false
	}

	penalty := 1 - p.LossPenalty*float64(b.state.ConsecutiveLosses)
	sig.Confidence = clamp(sig.Confidence*max(penalty, 0), 0, 1)
	sig.Bot = b.kind
	sig.Symbol = snap.Symbol
	sig.Stake = p.Stake
	sig.Sequence = snap.Sequence
	sig.Digit = snap.Digit
	sig.Price = snap.Price
	sig.Timestamp = b.now()

	b.state.Signals++
	b.state.LastSignalAt = sig.Timestamp
	return sig, true
}

// RecordResult feeds a settled trade outcome back into the streak counters.
func (b *Bot) RecordResult(won bool) {
	b.mu.Lock()
	b.state = b.state.withResult(won)
	b.mu.Unlock()
}

func (b *Bot) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Bot) SetActive(active bool) {
	b.mu.Lock()
	b.state.Active = active
	b.mu.Unlock()
}

func (b *Bot) Active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.Active
}

// Reset clears counters and the per-symbol sequence memory; params and Active stay.
func (b *Bot) Reset() {
	b.mu.Lock()
	b.state = State{Kind: b.kind, Active: b.state.Active, Params: b.state.Params}
	b.lastSeq = make(map[string]uint64)
	b.mu.Unlock()
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}
