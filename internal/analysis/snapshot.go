package analysis

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

type Parity string

const (
	ParityEven Parity = "even"
	ParityOdd  Parity = "odd"
)

func parityOf(d int) Parity {
	if d%2 == 0 {
		return ParityEven
	}
	return ParityOdd
}

type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
	DirectionFlat Direction = "flat"
)

// DigitStat is the frequency of one digit in the window.
type DigitStat struct {
	Digit   int     `json:"digit"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// Streak is the run of same-parity digits at the end of the window.
type Streak struct {
	Parity Parity `json:"parity"`
	Length int    `json:"length"`
}

// Trend is the run of same-direction digit changes at the end of the window.
type Trend struct {
	Direction Direction `json:"direction"`
	Length    int       `json:"length"`
}

// Snapshot is an immutable view of the analytics for one symbol after one tick.
// It holds no references into engine state.
type Snapshot struct {
	Symbol   string          `json:"symbol"`
	Sequence uint64          `json:"sequence"`
	Price    decimal.Decimal `json:"price"`
	Digit    int             `json:"digit"`
	Epoch    time.Time       `json:"epoch"`
	Size     int             `json:"size"`
	Capacity int             `json:"capacity"`

	Frequencies   [10]DigitStat `json:"frequencies"`
	EvenPercent   float64       `json:"even_percent"`
	OddPercent    float64       `json:"odd_percent"`
	MostFrequent  int           `json:"most_frequent"`
	LeastFrequent int           `json:"least_frequent"`
	ParityStreak  Streak        `json:"parity_streak"`
	DigitTrend    Trend         `json:"digit_trend"`
	RecentDigits  []int         `json:"recent_digits"`
}

func (s Snapshot) Empty() bool { return s.Size == 0 }

// Percent returns the frequency of digit d.
func (s Snapshot) Percent(d int) float64 {
	if d < 0 || d > 9 {
		return 0
	}
	return s.Frequencies[d].Percent
}

// PercentAbove returns the share of digits strictly greater than barrier.
func (s Snapshot) PercentAbove(barrier int) float64 {
	n := 0
	for d := barrier + 1; d <= 9; d++ {
		if d >= 0 {
			n += s.Frequencies[d].Count
		}
	}
	return percent(n, s.Size)
}

// PercentBelow returns the share of digits strictly lower than barrier.
func (s Snapshot) PercentBelow(barrier int) float64 {
	n := 0
	for d := 0; d < barrier && d <= 9; d++ {
		n += s.Frequencies[d].Count
	}
	return percent(n, s.Size)
}

// percent is count/size*100 rounded to one decimal.
func percent(count, size int) float64 {
	if size == 0 {
		return 0
	}
	return math.Round(float64(count)*1000/float64(size)) / 10
}
