package events

import (
	"testing"

	"digitdash/internal/feed"
	"digitdash/internal/market"
	"digitdash/internal/trading"
)

// go test -v --run TestBusDeliversByKind
func TestBusDeliversByKind(t *testing.T) {
	bus := NewBus()

	var order []string
	bus.OnTick(func(e TickEvent) { order = append(order, "tick:"+e.Tick.Symbol) })
	bus.OnConnection(func(e ConnectionEvent) { order = append(order, "conn:"+e.Status.String()) })
	bus.SubscribeAll(func(e Event) { order = append(order, "all:"+e.Kind().String()) })

	bus.Publish(TickEvent{Tick: market.Tick{Symbol: "R_100"}})
	bus.Publish(ConnectionEvent{Status: feed.StatusConnected})
	bus.Publish(TradeResultEvent{Trade: trading.Trade{ID: "x"}})

	want := []string{"tick:R_100", "all:tick", "conn:connected", "all:connection", "all:trade_result"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}

// go test -v --run TestBusUnsubscribe
func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus()

	var a, b int
	var unsubB func()
	unsubA := bus.OnTradeExecuted(func(TradeExecutedEvent) {
		a++
		// Unsubscribing a later handler during dispatch suppresses it immediately.
		unsubB()
	})
	unsubB = bus.OnTradeExecuted(func(TradeExecutedEvent) { b++ })

	bus.Publish(TradeExecutedEvent{})
	if a != 1 || b != 0 {
		t.Fatalf("expected a=1 b=0, got a=%d b=%d", a, b)
	}

	unsubA()
	unsubA()
	bus.Publish(TradeExecutedEvent{})
	if a != 1 {
		t.Errorf("handler fired after unsubscribe")
	}
}
