package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"digitdash/internal/analysis"
	"digitdash/internal/bots"
	"digitdash/internal/events"
	"digitdash/internal/feed"
	"digitdash/internal/market"
	"digitdash/internal/memorystore"
	"digitdash/internal/trading"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Feed is the part of feed.Manager the session drives.
type Feed interface {
	Connect(ctx context.Context) error
	Disconnect() error
	SubscribeTicks(symbol string, handler feed.TickHandler) (unsubscribe func())
	OnConnectionStatus(fn func(feed.Status)) (unsubscribe func())
	Status() feed.Status
}

// Metrics receives trading counters. internal/metrics.Recorder implements it.
type Metrics interface {
	RecordSignal(bot, action string)
	RecordTrade(bot string)
	RecordTradeRejected(reason string)
	RecordTradeResult(bot, result string)
	RecordRisk(exposure, profit float64)
}

type nopMetrics struct{}

func (nopMetrics) RecordSignal(string, string)      {}
func (nopMetrics) RecordTrade(string)               {}
func (nopMetrics) RecordTradeRejected(string)       {}
func (nopMetrics) RecordTradeResult(string, string) {}
func (nopMetrics) RecordRisk(float64, float64)      {}

type Options struct {
	Symbols     []string
	Analysis    analysis.Options
	AutoTrade   bool // route signals to the tracker
	HistorySize int  // recent ticks kept per symbol
	Settler     *trading.PaperSettler
	Metrics     Metrics
}

// ErrNoSignal is returned when a bot has no signal on the latest tick of a symbol.
var ErrNoSignal = errors.New("session: no current signal")

// LoadRequest toggles bots by name, as sent by the strategy loader.
type LoadRequest struct {
	StrategyID string   `json:"strategy_id" validate:"required"`
	Bots       []string `json:"bots" validate:"required,min=1,dive,required"`
	Active     bool     `json:"active"`
}

// Session wires the feed to the analytics engines, the bots and the trade
// tracker. Tick processing is serialized by mu; events are published after
// mu is released, within the same call.
type Session struct {
	feed    Feed
	bots    *bots.Set
	tracker *trading.Tracker
	bus     *events.Bus
	ticks   *memorystore.TickStore
	opts    Options
	logger  *zap.Logger
	metrics Metrics

	mu         sync.Mutex
	engines    map[string]*analysis.Engine
	watching   map[string]func()
	signals    map[string]map[bots.Kind]bots.Signal // latest tick's signals per symbol
	stopStatus func()
}

func New(f Feed, botSet *bots.Set, tracker *trading.Tracker, bus *events.Bus, logger *zap.Logger, opts Options) *Session {
	if opts.HistorySize <= 0 {
		opts.HistorySize = 500
	}
	m := opts.Metrics
	if m == nil {
		m = nopMetrics{}
	}
	return &Session{
		feed:     f,
		bots:     botSet,
		tracker:  tracker,
		bus:      bus,
		ticks:    memorystore.NewTickStore(opts.HistorySize),
		opts:     opts,
		logger:   logger.Named("session"),
		metrics:  m,
		engines:  make(map[string]*analysis.Engine),
		watching: make(map[string]func()),
		signals:  make(map[string]map[bots.Kind]bots.Signal),
	}
}

// Start watches the configured symbols and connects the feed.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.stopStatus == nil {
		s.stopStatus = s.feed.OnConnectionStatus(func(st feed.Status) {
			s.bus.Publish(events.ConnectionEvent{Status: st})
		})
	}
	s.mu.Unlock()

	for _, symbol := range s.opts.Symbols {
		s.Watch(symbol)
	}
	if err := s.feed.Connect(ctx); err != nil {
		return fmt.Errorf("session: connect feed: %w", err)
	}
	return nil
}

// Stop drops every subscription and disconnects the feed.
func (s *Session) Stop() error {
	s.mu.Lock()
	unsubs := make([]func(), 0, len(s.watching)+1)
	for symbol, unsub := range s.watching {
		unsubs = append(unsubs, unsub)
		delete(s.watching, symbol)
	}
	if s.stopStatus != nil {
		unsubs = append(unsubs, s.stopStatus)
		s.stopStatus = nil
	}
	s.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	return s.feed.Disconnect()
}

// Watch starts analysing symbol. Watching twice is a no-op.
func (s *Session) Watch(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.watching[symbol]; ok {
		return
	}
	s.engines[symbol] = analysis.NewEngine(symbol, s.opts.Analysis)
	s.watching[symbol] = s.feed.SubscribeTicks(symbol, s.HandleTick)
	s.logger.Info("Watching symbol", zap.String("symbol", symbol))
}

// Unwatch stops analysing symbol and forgets its window.
func (s *Session) Unwatch(symbol string) {
	s.mu.Lock()
	unsub, ok := s.watching[symbol]
	delete(s.watching, symbol)
	delete(s.engines, symbol)
	delete(s.signals, symbol)
	s.mu.Unlock()

	if ok {
		unsub()
		s.ticks.Drop(symbol)
	}
}

// Symbols lists the watched symbols.
func (s *Session) Symbols() []string {
	s.mu.Lock()
	out := make([]string, 0, len(s.engines))
	for symbol := range s.engines {
		out = append(out, symbol)
	}
	s.mu.Unlock()
	sort.Strings(out)
	return out
}

// HandleTick runs one tick through settlement, analytics, bots and the tracker.
func (s *Session) HandleTick(t market.Tick) {
	s.mu.Lock()
	engine, ok := s.engines[t.Symbol]
	if !ok {
		s.mu.Unlock()
		return
	}

	snap := engine.Process(t)
	t.Sequence = snap.Sequence
	s.ticks.Add(t)

	// Settle before evaluating so a bot sees its own results on this tick.
	var settled []trading.Trade
	if s.opts.Settler != nil {
		for _, st := range s.opts.Settler.Settle(s.tracker.OpenTrades(t.Symbol), t) {
			if trade, ok := s.recordLocked(st.TradeID, st.Won, st.Profit); ok {
				settled = append(settled, trade)
			}
		}
	}

	signals := s.bots.ConsumeAll(snap)
	s.keepSignalsLocked(t.Symbol, signals)
	var executed []trading.Trade
	if s.opts.AutoTrade {
		for _, sig := range signals {
			trade, err := s.tracker.ExecuteTrade(sig.Bot, sig)
			if err != nil {
				s.logger.Debug("Signal not traded", zap.Stringer("bot", sig.Bot), zap.Error(err))
				s.metrics.RecordTradeRejected(rejectReason(err))
				continue
			}
			s.metrics.RecordTrade(trade.Bot.String())
			s.dropSignalLocked(sig)
			executed = append(executed, trade)
		}
	}

	var state *events.StateChangeEvent
	if len(settled) > 0 || len(executed) > 0 {
		st := s.stateLocked("trades updated")
		state = &st
	}
	s.mu.Unlock()

	for _, sig := range signals {
		s.metrics.RecordSignal(sig.Bot.String(), sig.Action.String())
	}

	s.bus.Publish(events.TickEvent{Tick: t, Snapshot: snap})
	if len(signals) > 0 {
		s.bus.Publish(events.SignalsEvent{Symbol: t.Symbol, Sequence: snap.Sequence, Signals: signals})
	}
	for _, trade := range settled {
		s.bus.Publish(events.TradeResultEvent{Trade: trade})
	}
	for _, trade := range executed {
		s.bus.Publish(events.TradeExecutedEvent{Trade: trade})
	}
	if state != nil {
		s.bus.Publish(*state)
	}
}

// ExecuteSignal opens a trade for a signal outside auto trading.
func (s *Session) ExecuteSignal(sig bots.Signal) (trading.Trade, error) {
	s.mu.Lock()
	trade, state, err := s.executeLocked(sig)
	s.mu.Unlock()
	return s.publishExecuted(trade, state, err)
}

// ExecuteLatest trades the signal botName emitted on the latest tick of
// symbol. A signal is traded at most once.
func (s *Session) ExecuteLatest(botName, symbol string) (trading.Trade, error) {
	kind, err := bots.ParseKind(botName)
	if err != nil {
		return trading.Trade{}, err
	}

	s.mu.Lock()
	sig, ok := s.signals[symbol][kind]
	if !ok {
		s.mu.Unlock()
		return trading.Trade{}, fmt.Errorf("%w: %s on %s", ErrNoSignal, kind, symbol)
	}
	trade, state, err := s.executeLocked(sig)
	s.mu.Unlock()
	return s.publishExecuted(trade, state, err)
}

// LatestSignals returns the signals of the latest tick of symbol.
func (s *Session) LatestSignals(symbol string) []bots.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]bots.Signal, 0, len(s.signals[symbol]))
	for _, sig := range s.signals[symbol] {
		out = append(out, sig)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Bot < out[j].Bot })
	return out
}

func (s *Session) executeLocked(sig bots.Signal) (trading.Trade, events.StateChangeEvent, error) {
	trade, err := s.tracker.ExecuteTrade(sig.Bot, sig)
	if err != nil {
		return trading.Trade{}, events.StateChangeEvent{}, err
	}
	s.dropSignalLocked(sig)
	return trade, s.stateLocked("trade executed"), nil
}

func (s *Session) publishExecuted(trade trading.Trade, state events.StateChangeEvent, err error) (trading.Trade, error) {
	if err != nil {
		s.metrics.RecordTradeRejected(rejectReason(err))
		return trading.Trade{}, err
	}
	s.metrics.RecordTrade(trade.Bot.String())
	s.bus.Publish(events.TradeExecutedEvent{Trade: trade})
	s.bus.Publish(state)
	return trade, nil
}

// keepSignalsLocked replaces the kept signals of symbol with this tick's.
func (s *Session) keepSignalsLocked(symbol string, signals []bots.Signal) {
	if len(signals) == 0 {
		delete(s.signals, symbol)
		return
	}
	byKind := make(map[bots.Kind]bots.Signal, len(signals))
	for _, sig := range signals {
		byKind[sig.Bot] = sig
	}
	s.signals[symbol] = byKind
}

func (s *Session) dropSignalLocked(sig bots.Signal) {
	kept, ok := s.signals[sig.Symbol][sig.Bot]
	if ok && kept.Sequence == sig.Sequence {
		delete(s.signals[sig.Symbol], sig.Bot)
	}
}

// RecordTradeResult closes a trade and feeds the outcome to its bot.
// It reports false for unknown or already closed trades.
func (s *Session) RecordTradeResult(id string, won bool, profit decimal.Decimal) bool {
	s.mu.Lock()
	trade, ok := s.recordLocked(id, won, profit)
	if !ok {
		s.mu.Unlock()
		return false
	}
	state := s.stateLocked("trade result")
	s.mu.Unlock()

	s.bus.Publish(events.TradeResultEvent{Trade: trade})
	s.bus.Publish(state)
	return true
}

func (s *Session) recordLocked(id string, won bool, profit decimal.Decimal) (trading.Trade, bool) {
	trade, ok := s.tracker.RecordTradeResult(id, won, profit)
	if !ok {
		return trading.Trade{}, false
	}
	if b, found := s.bots.Get(trade.Bot); found {
		b.RecordResult(won)
	}
	s.metrics.RecordTradeResult(trade.Bot.String(), string(trade.Result))
	return trade, true
}

// LoadStrategy activates or deactivates the named bots. Unknown names are
// reported together; known ones are still applied.
func (s *Session) LoadStrategy(req LoadRequest) error {
	var errs []error
	for _, name := range req.Bots {
		if err := s.bots.SetActive(name, req.Active); err != nil {
			errs = append(errs, err)
		}
	}
	s.logger.Info("Strategy loaded",
		zap.String("strategy_id", req.StrategyID),
		zap.Strings("bots", req.Bots),
		zap.Bool("active", req.Active),
	)
	s.publishState("strategy " + req.StrategyID)
	return errors.Join(errs...)
}

func (s *Session) SetBotActive(name string, active bool) error {
	if err := s.bots.SetActive(name, active); err != nil {
		return err
	}
	s.publishState("bot " + name)
	return nil
}

// Snapshot returns the latest analytics for symbol.
func (s *Session) Snapshot(symbol string) (analysis.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	engine, ok := s.engines[symbol]
	if !ok {
		return analysis.Snapshot{}, false
	}
	return engine.Snapshot(), true
}

func (s *Session) RecentTicks(symbol string) []market.Tick {
	return s.ticks.GetBySymbol(symbol)
}

func (s *Session) Trades() []trading.Trade { return s.tracker.Trades() }

func (s *Session) Risk() trading.RiskMetrics { return s.tracker.Metrics() }

func (s *Session) Bots() []bots.State { return s.bots.States() }

func (s *Session) ConnectionStatus() feed.Status { return s.feed.Status() }

// Reset clears analytics windows, bot counters and trades.
func (s *Session) Reset() {
	s.mu.Lock()
	for _, engine := range s.engines {
		engine.Reset()
	}
	clear(s.signals)
	s.bots.Reset()
	s.tracker.Reset()
	s.ticks.Reset()
	state := s.stateLocked("reset")
	s.mu.Unlock()

	s.bus.Publish(state)
}

func (s *Session) publishState(reason string) {
	s.mu.Lock()
	state := s.stateLocked(reason)
	s.mu.Unlock()
	s.bus.Publish(state)
}

func (s *Session) stateLocked(reason string) events.StateChangeEvent {
	risk := s.tracker.Metrics()
	s.metrics.RecordRisk(risk.Exposure.InexactFloat64(), risk.TotalProfit.InexactFloat64())
	return events.StateChangeEvent{
		Reason: reason,
		Bots:   s.bots.States(),
		Risk:   risk,
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, trading.ErrExposureLimit):
		return "exposure"
	case errors.Is(err, trading.ErrTooManyOpenTrades):
		return "open_trades"
	case errors.Is(err, trading.ErrLossLimit):
		return "loss_streak"
	case errors.Is(err, trading.ErrInvalidStake):
		return "stake"
	}
	return "other"
}
