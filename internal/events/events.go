package events

import (
	"fmt"

	"digitdash/internal/analysis"
	"digitdash/internal/bots"
	"digitdash/internal/feed"
	"digitdash/internal/market"
	"digitdash/internal/trading"
)

type Kind int

const (
	KindTick Kind = iota + 1
	KindSignals
	KindStateChange
	KindTradeExecuted
	KindTradeResult
	KindConnection
)

var kindNames = map[Kind]string{
	KindTick:          "tick",
	KindSignals:       "signals",
	KindStateChange:   "state_change",
	KindTradeExecuted: "trade_executed",
	KindTradeResult:   "trade_result",
	KindConnection:    "connection",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Event is one of the concrete event types below.
type Event interface {
	Kind() Kind
}

type TickEvent struct {
	Tick     market.Tick       `json:"tick"`
	Snapshot analysis.Snapshot `json:"snapshot"`
}

type SignalsEvent struct {
	Symbol   string        `json:"symbol"`
	Sequence uint64        `json:"sequence"`
	Signals  []bots.Signal `json:"signals"`
}

type StateChangeEvent struct {
	Reason string              `json:"reason"`
	Bots   []bots.State        `json:"bots"`
	Risk   trading.RiskMetrics `json:"risk"`
}

type TradeExecutedEvent struct {
	Trade trading.Trade `json:"trade"`
}

type TradeResultEvent struct {
	Trade trading.Trade `json:"trade"`
}

type ConnectionEvent struct {
	Status feed.Status `json:"status"`
}

func (TickEvent) Kind() Kind          { return KindTick }
func (SignalsEvent) Kind() Kind       { return KindSignals }
func (StateChangeEvent) Kind() Kind   { return KindStateChange }
func (TradeExecutedEvent) Kind() Kind { return KindTradeExecuted }
func (TradeResultEvent) Kind() Kind   { return KindTradeResult }
func (ConnectionEvent) Kind() Kind    { return KindConnection }
