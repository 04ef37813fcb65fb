package trading

import (
	"digitdash/internal/market"

	"github.com/shopspring/decimal"
)

var DefaultPayoutRate = decimal.RequireFromString("0.95")

// Settlement is the outcome of one paper trade.
type Settlement struct {
	TradeID string
	Won     bool
	Profit  decimal.Decimal
}

// PaperSettler resolves paper trades on the first later tick of their symbol.
type PaperSettler struct {
	PayoutRate decimal.Decimal
}

func NewPaperSettler(payout decimal.Decimal) *PaperSettler {
	if payout.Sign() <= 0 {
		payout = DefaultPayoutRate
	}
	return &PaperSettler{PayoutRate: payout}
}

// Settle returns a settlement for every open paper trade that tick resolves.
func (p *PaperSettler) Settle(open []Trade, tick market.Tick) []Settlement {
	var out []Settlement
	for _, tr := range open {
		if tr.Mode != ModePaper || !tr.Open() || tr.Symbol != tick.Symbol || tick.Sequence <= tr.EntrySequence {
			continue
		}
		won := tr.Contract.Wins(tr.EntryTick(), tick)
		profit := tr.Stake.Neg()
		if won {
			profit = tr.Stake.Mul(p.PayoutRate)
		}
		out = append(out, Settlement{TradeID: tr.ID, Won: won, Profit: profit})
	}
	return out
}
