package journal

import (
	"context"
	"sync"
	"time"

	"digitdash/internal/events"
	"digitdash/internal/trading"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Entry is the persisted form of a trade.
type Entry struct {
	TradeID    string
	Bot        string
	Symbol     string
	Contract   string
	Barrier    int
	Direction  string
	Mode       string
	Status     string
	Result     string
	Stake      decimal.Decimal
	Profit     decimal.Decimal
	Confidence float64
	EntryPrice decimal.Decimal
	EntryDigit int
	OpenedAt   time.Time
	ClosedAt   time.Time
}

func FromTrade(t trading.Trade) Entry {
	return Entry{
		TradeID:    t.ID,
		Bot:        t.Bot.String(),
		Symbol:     t.Symbol,
		Contract:   string(t.Contract.Type),
		Barrier:    t.Contract.Barrier,
		Direction:  t.Direction.String(),
		Mode:       string(t.Mode),
		Status:     string(t.Status),
		Result:     string(t.Result),
		Stake:      t.Stake,
		Profit:     t.Profit,
		Confidence: t.Confidence,
		EntryPrice: t.EntryPrice,
		EntryDigit: t.EntryDigit,
		OpenedAt:   t.OpenedAt,
		ClosedAt:   t.ClosedAt,
	}
}

type Store interface {
	SaveTrade(ctx context.Context, e Entry) error
	CloseTrade(ctx context.Context, e Entry) error
}

type op int

const (
	opSave op = iota
	opClose
)

type job struct {
	op    op
	entry Entry
}

type Options struct {
	QueueSize    int
	WriteTimeout time.Duration
}

// Journal copies trade events into a Store on its own goroutine so bus
// publishers never wait on the database.
type Journal struct {
	store  Store
	opts   Options
	logger *zap.Logger

	queue chan job
	done  chan struct{}

	mu      sync.Mutex
	unsubs  []func()
	started bool
	closed  bool
}

func New(store Store, logger *zap.Logger, opts Options) *Journal {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	return &Journal{
		store:  store,
		opts:   opts,
		logger: logger.Named("journal"),
		queue:  make(chan job, opts.QueueSize),
		done:   make(chan struct{}),
	}
}

// Start subscribes to trade events and runs the writer until Stop.
// It does nothing once the journal is started or stopped.
func (j *Journal) Start(bus *events.Bus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.started || j.closed {
		return
	}
	j.started = true
	j.unsubs = append(j.unsubs,
		bus.OnTradeExecuted(func(e events.TradeExecutedEvent) { j.enqueue(opSave, e.Trade) }),
		bus.OnTradeResult(func(e events.TradeResultEvent) { j.enqueue(opClose, e.Trade) }),
	)

	go j.run()
}

// Stop unsubscribes, drains the queue and waits for the writer.
func (j *Journal) Stop() {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return
	}
	j.closed = true
	unsubs := j.unsubs
	j.unsubs = nil
	close(j.queue)
	if !j.started {
		close(j.done)
	}
	j.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	<-j.done
}

func (j *Journal) enqueue(o op, t trading.Trade) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return
	}
	select {
	case j.queue <- job{op: o, entry: FromTrade(t)}:
	default:
		j.logger.Warn("Journal queue full, dropping trade", zap.String("trade_id", t.ID))
	}
}

func (j *Journal) run() {
	defer close(j.done)
	for jb := range j.queue {
		ctx, cancel := context.WithTimeout(context.Background(), j.opts.WriteTimeout)
		var err error
		switch jb.op {
		case opSave:
			err = j.store.SaveTrade(ctx, jb.entry)
		case opClose:
			err = j.store.CloseTrade(ctx, jb.entry)
		}
		cancel()
		if err != nil {
			j.logger.Error("Failed to write trade",
				zap.String("trade_id", jb.entry.TradeID),
				zap.String("status", jb.entry.Status),
				zap.Error(err),
			)
		}
	}
}
