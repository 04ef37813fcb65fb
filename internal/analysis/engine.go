package analysis

import (
	"time"

	"digitdash/internal/market"
	"digitdash/internal/memorystore"

	"github.com/shopspring/decimal"
)

const (
	DefaultCapacity = 100
	recentDigits    = 20
)

type Options struct {
	Capacity  int // window size
	Precision int // quoted decimals, negative uses the tick's pip or the price as quoted
}

type sample struct {
	digit int
	price decimal.Decimal
	epoch time.Time
}

// Engine maintains the digit window for one symbol. It is not safe for
// concurrent use; the session serializes access.
type Engine struct {
	symbol   string
	opts     Options
	window   *memorystore.Ring[sample]
	sequence uint64
	last     Snapshot
}

func NewEngine(symbol string, opts Options) *Engine {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	e := &Engine{
		symbol: symbol,
		opts:   opts,
		window: memorystore.NewRing[sample](opts.Capacity),
	}
	e.last = e.empty()
	return e
}

func (e *Engine) Symbol() string { return e.symbol }

// ProcessTick appends price to the window and returns its digit and the new snapshot.
func (e *Engine) ProcessTick(price decimal.Decimal, epoch time.Time) (int, Snapshot) {
	digit := market.LastDigit(price, e.opts.Precision)
	e.sequence++
	snap := e.push(sample{digit: digit, price: price, epoch: epoch}, e.sequence)
	return digit, snap
}

// Process consumes a normalized tick. A configured precision overrides the tick's own digit.
func (e *Engine) Process(t market.Tick) Snapshot {
	digit := t.Digit
	if e.opts.Precision >= 0 {
		digit = market.LastDigit(t.Price, e.opts.Precision)
	}

	seq := t.Sequence
	if seq <= e.sequence {
		seq = e.sequence + 1
	}
	e.sequence = seq
	return e.push(sample{digit: digit, price: t.Price, epoch: t.Epoch}, seq)
}

// Snapshot returns the latest snapshot.
func (e *Engine) Snapshot() Snapshot { return e.last }

// Reset clears the window and indicators. The sequence keeps counting.
func (e *Engine) Reset() {
	e.window.Reset()
	e.last = e.empty()
}

func (e *Engine) empty() Snapshot {
	snap := Snapshot{
		Symbol:       e.symbol,
		Sequence:     e.sequence,
		Capacity:     e.window.Cap(),
		ParityStreak: Streak{Parity: ParityEven},
		DigitTrend:   Trend{Direction: DirectionFlat},
		RecentDigits: []int{},
	}
	for d := range snap.Frequencies {
		snap.Frequencies[d].Digit = d
	}
	return snap
}

func (e *Engine) push(s sample, seq uint64) Snapshot {
	e.window.Push(s)
	e.last = e.compute(s, seq)
	return e.last
}

// compute derives every indicator from the current window.
func (e *Engine) compute(latest sample, seq uint64) Snapshot {
	snap := e.empty()
	snap.Sequence = seq
	snap.Price = latest.price
	snap.Digit = latest.digit
	snap.Epoch = latest.epoch

	size := e.window.Len()
	snap.Size = size

	digits := make([]int, size)
	evens := 0
	for i := 0; i < size; i++ {
		d := e.window.At(i).digit
		digits[i] = d
		snap.Frequencies[d].Count++
		if d%2 == 0 {
			evens++
		}
	}
	for d := range snap.Frequencies {
		snap.Frequencies[d].Percent = percent(snap.Frequencies[d].Count, size)
	}
	snap.EvenPercent = percent(evens, size)
	snap.OddPercent = percent(size-evens, size)

	most, least := 0, 0
	for d := 1; d < 10; d++ {
		if snap.Frequencies[d].Count > snap.Frequencies[most].Count {
			most = d
		}
		if snap.Frequencies[d].Count < snap.Frequencies[least].Count {
			least = d
		}
	}
	snap.MostFrequent = most
	snap.LeastFrequent = least

	snap.ParityStreak = parityStreak(digits)
	snap.DigitTrend = digitTrend(digits)

	start := max(0, size-recentDigits)
	snap.RecentDigits = append([]int(nil), digits[start:]...)
	return snap
}

func parityStreak(digits []int) Streak {
	if len(digits) == 0 {
		return Streak{Parity: ParityEven}
	}
	p := parityOf(digits[len(digits)-1])
	n := 0
	for i := len(digits) - 1; i >= 0 && parityOf(digits[i]) == p; i-- {
		n++
	}
	return Streak{Parity: p, Length: n}
}

func digitTrend(digits []int) Trend {
	if len(digits) < 2 {
		return Trend{Direction: DirectionFlat}
	}
	dir := direction(digits[len(digits)-2], digits[len(digits)-1])
	n := 0
	for i := len(digits) - 1; i > 0 && direction(digits[i-1], digits[i]) == dir; i-- {
		n++
	}
	return Trend{Direction: dir, Length: n}
}

func direction(prev, next int) Direction {
	switch {
	case next > prev:
		return DirectionUp
	case next < prev:
		return DirectionDown
	default:
		return DirectionFlat
	}
}
