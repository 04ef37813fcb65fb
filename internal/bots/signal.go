package bots

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Action int

const (
	ActionHold Action = iota
	ActionBuy         // the bot's primary side: even, over, differs, rise
	ActionSell        // the opposite side
)

var actionNames = map[Action]string{
	ActionHold: "hold",
	ActionBuy:  "buy",
	ActionSell: "sell",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("action(%d)", int(a))
}

func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Action) UnmarshalText(b []byte) error {
	for act, name := range actionNames {
		if name == string(b) {
			*a = act
			return nil
		}
	}
	return fmt.Errorf("bots: unknown action %q", b)
}

// Signal is a recommendation produced by one bot for one tick.
type Signal struct {
	Bot        Kind            `json:"bot"`
	Symbol     string          `json:"symbol"`
	Action     Action          `json:"action"`
	Contract   Contract        `json:"contract"`
	Confidence float64         `json:"confidence"` // 0..1
	Stake      decimal.Decimal `json:"stake"`
	Sequence   uint64          `json:"sequence"`
	Digit      int             `json:"digit"` // digit of the tick the signal was made on
	Price      decimal.Decimal `json:"price"`
	Timestamp  time.Time       `json:"timestamp"`
	Reason     string          `json:"reason"`
}
