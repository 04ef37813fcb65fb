package events

import (
	"sync"
	"sync/atomic"
)

type Handler func(Event)

// Bus delivers events synchronously, in subscription order, on the
// publisher's goroutine.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []*subscriber
}

type subscriber struct {
	id     uint64
	kind   Kind // 0 receives every kind
	fn     Handler
	active atomic.Bool
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers h for events of kind.
func (b *Bus) Subscribe(kind Kind, h Handler) (unsubscribe func()) {
	return b.add(kind, h)
}

// SubscribeAll registers h for every event.
func (b *Bus) SubscribeAll(h Handler) (unsubscribe func()) {
	return b.add(0, h)
}

func (b *Bus) add(kind Kind, h Handler) func() {
	b.mu.Lock()
	b.nextID++
	s := &subscriber{id: b.nextID, kind: kind, fn: h}
	s.active.Store(true)
	b.subs = append(b.subs, s)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.active.Store(false)
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, cur := range b.subs {
				if cur == s {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()

	kind := e.Kind()
	for _, s := range subs {
		if (s.kind == 0 || s.kind == kind) && s.active.Load() {
			s.fn(e)
		}
	}
}

func (b *Bus) OnTick(fn func(TickEvent)) func() {
	return b.Subscribe(KindTick, func(e Event) { fn(e.(TickEvent)) })
}

func (b *Bus) OnSignals(fn func(SignalsEvent)) func() {
	return b.Subscribe(KindSignals, func(e Event) { fn(e.(SignalsEvent)) })
}

func (b *Bus) OnStateChange(fn func(StateChangeEvent)) func() {
	return b.Subscribe(KindStateChange, func(e Event) { fn(e.(StateChangeEvent)) })
}

func (b *Bus) OnTradeExecuted(fn func(TradeExecutedEvent)) func() {
	return b.Subscribe(KindTradeExecuted, func(e Event) { fn(e.(TradeExecutedEvent)) })
}

func (b *Bus) OnTradeResult(fn func(TradeResultEvent)) func() {
	return b.Subscribe(KindTradeResult, func(e Event) { fn(e.(TradeResultEvent)) })
}

func (b *Bus) OnConnection(fn func(ConnectionEvent)) func() {
	return b.Subscribe(KindConnection, func(e Event) { fn(e.(ConnectionEvent)) })
}
