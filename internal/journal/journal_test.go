package journal_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"digitdash/internal/bots"
	"digitdash/internal/events"
	"digitdash/internal/journal"
	"digitdash/internal/trading"
	"digitdash/pkg/storage/memory"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func sampleTrade(id string) trading.Trade {
	return trading.Trade{
		ID:         id,
		Bot:        bots.KindOverUnder,
		Symbol:     "R_50",
		Contract:   bots.Contract{Type: bots.ContractOver, Barrier: 4},
		Direction:  bots.ActionBuy,
		Stake:      decimal.NewFromInt(1),
		Mode:       trading.ModePaper,
		Status:     trading.StatusOpen,
		EntryPrice: decimal.RequireFromString("231.45"),
		EntryDigit: 5,
		OpenedAt:   time.Now(),
	}
}

// go test -v --run TestJournalWritesTradeEvents
func TestJournalWritesTradeEvents(t *testing.T) {
	bus := events.NewBus()
	store := memory.NewStore()
	j := journal.New(store, zap.NewNop(), journal.Options{})
	j.Start(bus)

	trade := sampleTrade("t-1")
	bus.Publish(events.TradeExecutedEvent{Trade: trade})

	trade.Status = trading.StatusClosed
	trade.Result = trading.ResultWin
	trade.Profit = decimal.RequireFromString("0.95")
	bus.Publish(events.TradeResultEvent{Trade: trade})

	j.Stop()

	e, ok := store.GetTrade("t-1")
	if !ok {
		t.Fatal("trade not journaled")
	}
	if e.Status != "closed" || e.Result != "win" || e.Contract != "DIGITOVER" || e.Barrier != 4 {
		t.Errorf("unexpected entry: %+v", e)
	}
	if !e.Profit.Equal(decimal.RequireFromString("0.95")) {
		t.Errorf("unexpected profit: %s", e.Profit)
	}

	// Events after Stop are ignored.
	bus.Publish(events.TradeExecutedEvent{Trade: sampleTrade("t-2")})
	if _, ok := store.GetTrade("t-2"); ok {
		t.Error("journal wrote after stop")
	}
	j.Stop()
}

type failingStore struct {
	mu    sync.Mutex
	calls int
}

func (f *failingStore) SaveTrade(context.Context, journal.Entry) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return errors.New("db down")
}

func (f *failingStore) CloseTrade(context.Context, journal.Entry) error {
	return f.SaveTrade(context.Background(), journal.Entry{})
}

// go test -v --run TestJournalSurvivesStoreErrors
func TestJournalSurvivesStoreErrors(t *testing.T) {
	bus := events.NewBus()
	store := &failingStore{}
	j := journal.New(store, zap.NewNop(), journal.Options{QueueSize: 4})
	j.Start(bus)

	for _, id := range []string{"a", "b", "c"} {
		bus.Publish(events.TradeExecutedEvent{Trade: sampleTrade(id)})
	}
	j.Stop()

	store.mu.Lock()
	defer store.mu.Unlock()
	if store.calls != 3 {
		t.Errorf("expected 3 write attempts, got %d", store.calls)
	}
}

// go test -v --run TestJournalStopWithoutStart
func TestJournalStopWithoutStart(t *testing.T) {
	store := memory.NewStore()
	j := journal.New(store, zap.NewNop(), journal.Options{})

	stopped := make(chan struct{})
	go func() {
		j.Stop()
		j.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on a journal that never started")
	}

	// Start after Stop stays inert.
	bus := events.NewBus()
	j.Start(bus)
	bus.Publish(events.TradeExecutedEvent{Trade: sampleTrade("late")})
	if _, ok := store.GetTrade("late"); ok {
		t.Error("journal wrote after stop")
	}
}
