package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"digitdash/internal/analysis"
	"digitdash/internal/bots"
	"digitdash/internal/events"
	"digitdash/internal/feed"
	"digitdash/internal/market"
	"digitdash/internal/trading"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// fakeFeed delivers ticks synchronously to its subscribers.
type fakeFeed struct {
	mu       sync.Mutex
	handlers map[string][]feed.TickHandler
	watchers []func(feed.Status)
	status   feed.Status
	seq      map[string]uint64
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{
		handlers: make(map[string][]feed.TickHandler),
		seq:      make(map[string]uint64),
	}
}

func (f *fakeFeed) Connect(context.Context) error {
	f.setStatus(feed.StatusConnected)
	return nil
}

func (f *fakeFeed) Disconnect() error {
	f.setStatus(feed.StatusDisconnected)
	return nil
}

func (f *fakeFeed) setStatus(s feed.Status) {
	f.mu.Lock()
	f.status = s
	watchers := append([]func(feed.Status){}, f.watchers...)
	f.mu.Unlock()
	for _, w := range watchers {
		w(s)
	}
}

func (f *fakeFeed) SubscribeTicks(symbol string, h feed.TickHandler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[symbol] = append(f.handlers[symbol], h)
	idx := len(f.handlers[symbol]) - 1
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.handlers[symbol][idx] = nil
	}
}

func (f *fakeFeed) OnConnectionStatus(fn func(feed.Status)) func() {
	f.mu.Lock()
	f.watchers = append(f.watchers, fn)
	f.mu.Unlock()
	return func() {}
}

func (f *fakeFeed) Status() feed.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeFeed) emit(symbol string, digit int) {
	f.mu.Lock()
	f.seq[symbol]++
	tick := market.Tick{
		Symbol:   symbol,
		Price:    decimal.New(int64(1000+digit), -1),
		Epoch:    time.Now(),
		Digit:    digit,
		Pip:      1,
		Sequence: f.seq[symbol],
	}
	handlers := append([]feed.TickHandler{}, f.handlers[symbol]...)
	f.mu.Unlock()

	for _, h := range handlers {
		if h != nil {
			h(tick)
		}
	}
}

type recorder struct {
	executed []trading.Trade
	results  []trading.Trade
	signals  int
	ticks    int
	states   []events.StateChangeEvent
	conn     []feed.Status
}

func record(bus *events.Bus) *recorder {
	r := &recorder{}
	bus.OnTick(func(events.TickEvent) { r.ticks++ })
	bus.OnSignals(func(e events.SignalsEvent) { r.signals += len(e.Signals) })
	bus.OnTradeExecuted(func(e events.TradeExecutedEvent) { r.executed = append(r.executed, e.Trade) })
	bus.OnTradeResult(func(e events.TradeResultEvent) { r.results = append(r.results, e.Trade) })
	bus.OnStateChange(func(e events.StateChangeEvent) { r.states = append(r.states, e) })
	bus.OnConnection(func(e events.ConnectionEvent) { r.conn = append(r.conn, e.Status) })
	return r
}

func newTestSession(t *testing.T, autoTrade bool) (*Session, *fakeFeed, *recorder) {
	t.Helper()
	evenOdd, err := bots.New(bots.KindEvenOdd, bots.Params{MinSamples: 3, Threshold: 60})
	if err != nil {
		t.Fatalf("new bot: %v", err)
	}
	evenOdd.SetActive(true)
	overUnder, _ := bots.New(bots.KindOverUnder, bots.Params{MinSamples: 3})

	f := newFakeFeed()
	bus := events.NewBus()
	rec := record(bus)
	tracker := trading.NewTracker(trading.Options{}, zap.NewNop())
	s := New(f, bots.NewSet(evenOdd, overUnder), tracker, bus, zap.NewNop(), Options{
		Symbols:   []string{"R_100"},
		Analysis:  analysis.Options{Capacity: 10, Precision: -1},
		AutoTrade: autoTrade,
		Settler:   trading.NewPaperSettler(decimal.Zero),
	})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	return s, f, rec
}

// go test -v --run TestTickToTradePipeline
func TestTickToTradePipeline(t *testing.T) {
	s, f, rec := newTestSession(t, true)
	defer s.Stop()

	if len(rec.conn) != 1 || rec.conn[0] != feed.StatusConnected {
		t.Errorf("expected a connected event, got %v", rec.conn)
	}

	f.emit("R_100", 2)
	f.emit("R_100", 4)
	if len(rec.executed) != 0 {
		t.Fatal("traded before the minimum sample count")
	}

	f.emit("R_100", 6)
	if rec.signals != 1 || len(rec.executed) != 1 {
		t.Fatalf("expected one signal and one trade, got %d/%d", rec.signals, len(rec.executed))
	}
	first := rec.executed[0]
	if first.Contract.Type != bots.ContractEven || first.EntrySequence != 3 {
		t.Errorf("unexpected trade: %+v", first)
	}

	// The next tick settles the open paper trade, then trades again.
	f.emit("R_100", 8)
	if len(rec.results) != 1 || rec.results[0].ID != first.ID || rec.results[0].Result != trading.ResultWin {
		t.Fatalf("expected the first trade to settle as a win, got %+v", rec.results)
	}
	if !rec.results[0].Profit.Equal(decimal.RequireFromString("0.95")) {
		t.Errorf("unexpected profit: %s", rec.results[0].Profit)
	}
	if len(rec.executed) != 2 {
		t.Fatalf("expected a second trade, got %d", len(rec.executed))
	}
	if rec.ticks != 4 {
		t.Errorf("expected 4 tick events, got %d", rec.ticks)
	}

	risk := s.Risk()
	if risk.Wins != 1 || risk.OpenTrades != 1 {
		t.Errorf("unexpected risk: %+v", risk)
	}
	if st := s.Bots()[0]; st.Wins != 1 || st.Signals != 2 {
		t.Errorf("bot did not see its result: %+v", st)
	}
	if last := rec.states[len(rec.states)-1]; last.Risk.Trades != 2 {
		t.Errorf("state event out of date: %+v", last.Risk)
	}

	snap, ok := s.Snapshot("R_100")
	if !ok || snap.Size != 4 || snap.EvenPercent != 100 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
	if ticks := s.RecentTicks("R_100"); len(ticks) != 4 {
		t.Errorf("expected 4 recent ticks, got %d", len(ticks))
	}
}

// go test -v --run TestRecordTradeResultUpdatesBot
func TestRecordTradeResultUpdatesBot(t *testing.T) {
	s, f, rec := newTestSession(t, false)
	defer s.Stop()

	for _, d := range []int{2, 4, 6} {
		f.emit("R_100", d)
	}
	if rec.signals != 1 || len(rec.executed) != 0 {
		t.Fatalf("expected a signal without trading, got %d/%d", rec.signals, len(rec.executed))
	}

	sig := bots.Signal{
		Bot:      bots.KindEvenOdd,
		Symbol:   "R_100",
		Action:   bots.ActionBuy,
		Contract: bots.Contract{Type: bots.ContractEven},
		Stake:    decimal.NewFromInt(2),
		Sequence: 3,
	}
	trade, err := s.ExecuteSignal(sig)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	if s.RecordTradeResult("missing", true, decimal.NewFromInt(1)) {
		t.Error("unknown trade reported as recorded")
	}
	if !s.RecordTradeResult(trade.ID, false, decimal.NewFromInt(-2)) {
		t.Fatal("expected result to be recorded")
	}
	if s.RecordTradeResult(trade.ID, true, decimal.NewFromInt(2)) {
		t.Error("trade closed twice")
	}

	if st := s.Bots()[0]; st.Losses != 1 || st.ConsecutiveLosses != 1 {
		t.Errorf("bot streak not updated: %+v", st)
	}
	if len(rec.results) != 1 {
		t.Errorf("expected one result event, got %d", len(rec.results))
	}
	if risk := s.Risk(); !risk.TotalProfit.Equal(decimal.NewFromInt(-2)) {
		t.Errorf("unexpected profit: %s", risk.TotalProfit)
	}
}

// go test -v --run TestExecuteLatestSignal
func TestExecuteLatestSignal(t *testing.T) {
	s, f, rec := newTestSession(t, false)
	defer s.Stop()

	if _, err := s.ExecuteLatest("even_odd", "R_100"); !errors.Is(err, ErrNoSignal) {
		t.Fatalf("expected ErrNoSignal before any tick, got %v", err)
	}
	if _, err := s.ExecuteLatest("martingale", "R_100"); err == nil || errors.Is(err, ErrNoSignal) {
		t.Errorf("expected an unknown bot error, got %v", err)
	}

	for _, d := range []int{2, 4, 6} {
		f.emit("R_100", d)
	}
	if len(rec.executed) != 0 {
		t.Fatal("traded without auto trading")
	}
	if sigs := s.LatestSignals("R_100"); len(sigs) != 1 || sigs[0].Bot != bots.KindEvenOdd {
		t.Fatalf("unexpected latest signals: %+v", sigs)
	}

	trade, err := s.ExecuteLatest("Even/Odd", "R_100")
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if trade.Contract.Type != bots.ContractEven || trade.EntrySequence != 3 || trade.Status != trading.StatusOpen {
		t.Errorf("unexpected trade: %+v", trade)
	}
	if len(rec.executed) != 1 || rec.executed[0].ID != trade.ID {
		t.Errorf("expected one executed event, got %+v", rec.executed)
	}
	if _, err := s.ExecuteLatest("even_odd", "R_100"); !errors.Is(err, ErrNoSignal) {
		t.Errorf("signal traded twice: %v", err)
	}

	// A tick without a signal clears the previous one.
	f.emit("R_100", 8)
	if len(s.LatestSignals("R_100")) != 1 {
		t.Fatal("expected a fresh signal")
	}
	if err := s.SetBotActive("even_odd", false); err != nil {
		t.Fatal(err)
	}
	f.emit("R_100", 3)
	if _, err := s.ExecuteLatest("even_odd", "R_100"); !errors.Is(err, ErrNoSignal) {
		t.Errorf("expected a stale signal to be cleared, got %v", err)
	}
	if len(s.Trades()) != 1 {
		t.Errorf("expected a single trade, got %d", len(s.Trades()))
	}
}

// go test -v --run TestLoadStrategy
func TestLoadStrategy(t *testing.T) {
	s, _, rec := newTestSession(t, false)
	defer s.Stop()

	err := s.LoadStrategy(LoadRequest{StrategyID: "s-1", Bots: []string{"Over/Under", "martingale"}, Active: true})
	if err == nil {
		t.Error("expected an error for the unknown bot")
	}
	states := s.Bots()
	if !states[1].Active {
		t.Errorf("over_under was not activated: %+v", states[1])
	}
	if len(rec.states) == 0 || rec.states[len(rec.states)-1].Reason != "strategy s-1" {
		t.Errorf("expected a state change for the strategy")
	}

	if err := s.SetBotActive("even_odd", false); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}
	if s.Bots()[0].Active {
		t.Error("even_odd still active")
	}
}

// go test -v --run TestUnwatchAndReset
func TestUnwatchAndReset(t *testing.T) {
	s, f, rec := newTestSession(t, true)
	defer s.Stop()

	for _, d := range []int{2, 4, 6} {
		f.emit("R_100", d)
	}
	s.Reset()
	if len(s.Trades()) != 0 {
		t.Error("reset kept trades")
	}
	if snap, _ := s.Snapshot("R_100"); !snap.Empty() {
		t.Error("reset kept the analytics window")
	}

	s.Unwatch("R_100")
	before := rec.ticks
	f.emit("R_100", 2)
	if rec.ticks != before {
		t.Error("unwatched symbol still processed")
	}
	if _, ok := s.Snapshot("R_100"); ok {
		t.Error("unwatched symbol still has a snapshot")
	}
	if len(s.Symbols()) != 0 {
		t.Errorf("unexpected symbols: %v", s.Symbols())
	}
}
