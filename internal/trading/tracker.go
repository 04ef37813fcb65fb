package trading

import (
	"sync"
	"time"

	"digitdash/internal/bots"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const DefaultCapacity = 200

// Limits gate new trades. Zero values disable a limit.
type Limits struct {
	MaxExposure          decimal.Decimal
	MaxOpenTrades        int
	MaxConsecutiveLosses int
}

type Options struct {
	Mode     Mode
	Capacity int // retained trades, oldest trimmed first
	Limits   Limits
}

// Tracker records executed trades and their results.
type Tracker struct {
	mu         sync.Mutex
	opts       Options
	trades     []Trade
	closeCount uint64
	logger     *zap.Logger
	now        func() time.Time
	newID      func() string
}

func NewTracker(opts Options, logger *zap.Logger) *Tracker {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.Mode == "" {
		opts.Mode = ModePaper
	}
	return &Tracker{
		opts:   opts,
		logger: logger.Named("trading"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

func (t *Tracker) Mode() Mode { return t.opts.Mode }

// ExecuteTrade opens a trade for sig unless a risk limit blocks it. Every
// accepted call creates a new trade, even for identical signals.
func (t *Tracker) ExecuteTrade(bot bots.Kind, sig bots.Signal) (Trade, error) {
	if sig.Stake.Sign() <= 0 {
		return Trade{}, ErrInvalidStake
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	risk := ComputeRisk(t.trades)
	lim := t.opts.Limits
	if lim.MaxOpenTrades > 0 && risk.OpenTrades >= lim.MaxOpenTrades {
		return Trade{}, ErrTooManyOpenTrades
	}
	if lim.MaxExposure.Sign() > 0 && risk.Exposure.Add(sig.Stake).GreaterThan(lim.MaxExposure) {
		return Trade{}, ErrExposureLimit
	}
	if lim.MaxConsecutiveLosses > 0 && risk.ConsecutiveLosses >= lim.MaxConsecutiveLosses {
		return Trade{}, ErrLossLimit
	}

	trade := Trade{
		ID:            t.newID(),
		Bot:           bot,
		Symbol:        sig.Symbol,
		Contract:      sig.Contract,
		Direction:     sig.Action,
		Stake:         sig.Stake,
		Confidence:    sig.Confidence,
		Mode:          t.opts.Mode,
		Status:        StatusOpen,
		Profit:        decimal.Zero,
		EntryPrice:    sig.Price,
		EntryDigit:    sig.Digit,
		EntrySequence: sig.Sequence,
		OpenedAt:      t.now(),
	}
	t.trades = append(t.trades, trade)
	if over := len(t.trades) - t.opts.Capacity; over > 0 {
		t.trades = append(t.trades[:0:0], t.trades[over:]...)
	}

	t.logger.Debug("Trade opened",
		zap.String("id", trade.ID),
		zap.Stringer("bot", bot),
		zap.String("symbol", trade.Symbol),
		zap.String("contract", string(trade.Contract.Type)),
		zap.Stringer("stake", trade.Stake),
	)
	return trade, nil
}

// RecordTradeResult closes trade id. Unknown and already closed ids are logged
// and ignored; the boolean reports whether the trade was closed by this call.
func (t *Tracker) RecordTradeResult(id string, won bool, profit decimal.Decimal) (Trade, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := t.indexOf(id)
	if idx < 0 {
		t.logger.Warn("Ignoring result", zap.Error(&UnknownTradeError{ID: id}))
		return Trade{}, false
	}
	trade := &t.trades[idx]
	if !trade.Open() {
		t.logger.Debug("Trade already closed", zap.String("id", id), zap.String("result", string(trade.Result)))
		return Trade{}, false
	}

	t.closeCount++
	trade.Status = StatusClosed
	trade.Profit = profit
	trade.ClosedAt = t.now()
	trade.closeOrder = t.closeCount
	if won {
		trade.Result = ResultWin
	} else {
		trade.Result = ResultLoss
	}
	return *trade, true
}

// Metrics recomputes the risk figures from the retained trades.
func (t *Tracker) Metrics() RiskMetrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	return ComputeRisk(t.trades)
}

// Trades returns the retained trades, oldest first.
func (t *Tracker) Trades() []Trade {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Trade(nil), t.trades...)
}

func (t *Tracker) Get(id string) (Trade, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if idx := t.indexOf(id); idx >= 0 {
		return t.trades[idx], true
	}
	return Trade{}, false
}

// OpenTrades returns open trades on symbol, oldest first.
func (t *Tracker) OpenTrades(symbol string) []Trade {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Trade
	for _, tr := range t.trades {
		if tr.Open() && tr.Symbol == symbol {
			out = append(out, tr)
		}
	}
	return out
}

func (t *Tracker) Reset() {
	t.mu.Lock()
	t.trades = nil
	t.mu.Unlock()
}

func (t *Tracker) indexOf(id string) int {
	for i := range t.trades {
		if t.trades[i].ID == id {
			return i
		}
	}
	return -1
}
