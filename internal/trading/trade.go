package trading

import (
	"time"

	"digitdash/internal/bots"
	"digitdash/internal/market"

	"github.com/shopspring/decimal"
)

type Mode string

const (
	ModePaper Mode = "paper"
	ModeReal  Mode = "real"
)

type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

type Result string

const (
	ResultNone Result = ""
	ResultWin  Result = "win"
	ResultLoss Result = "loss"
)

// Trade is one position opened from a bot signal.
type Trade struct {
	ID            string          `json:"id"`
	Bot           bots.Kind       `json:"bot"`
	Symbol        string          `json:"symbol"`
	Contract      bots.Contract   `json:"contract"`
	Direction     bots.Action     `json:"direction"`
	Stake         decimal.Decimal `json:"stake"`
	Confidence    float64         `json:"confidence"`
	Mode          Mode            `json:"mode"`
	Status        Status          `json:"status"`
	Result        Result          `json:"result,omitempty"`
	Profit        decimal.Decimal `json:"profit"`
	EntryPrice    decimal.Decimal `json:"entry_price"`
	EntryDigit    int             `json:"entry_digit"`
	EntrySequence uint64          `json:"entry_sequence"`
	OpenedAt      time.Time       `json:"opened_at"`
	ClosedAt      time.Time       `json:"closed_at,omitzero"`

	closeOrder uint64
}

func (t Trade) Open() bool { return t.Status == StatusOpen }

// EntryTick reconstructs the tick the trade was opened on.
func (t Trade) EntryTick() market.Tick {
	return market.Tick{
		Symbol:   t.Symbol,
		Price:    t.EntryPrice,
		Digit:    t.EntryDigit,
		Sequence: t.EntrySequence,
	}
}
