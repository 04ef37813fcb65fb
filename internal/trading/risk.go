package trading

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// RiskMetrics aggregates the retained trades.
type RiskMetrics struct {
	Trades            int             `json:"trades"`
	OpenTrades        int             `json:"open_trades"`
	ClosedTrades      int             `json:"closed_trades"`
	Wins              int             `json:"wins"`
	Losses            int             `json:"losses"`
	WinRate           float64         `json:"win_rate"` // percent of closed trades
	TotalProfit       decimal.Decimal `json:"total_profit"`
	Exposure          decimal.Decimal `json:"exposure"` // stake of open trades
	ConsecutiveLosses int             `json:"consecutive_losses"`
	MaxDrawdown       decimal.Decimal `json:"max_drawdown"`
}

// ComputeRisk folds trades into RiskMetrics. Closed trades are replayed in the
// order they were closed, so streaks and drawdown follow settlement order.
func ComputeRisk(trades []Trade) RiskMetrics {
	m := RiskMetrics{
		Trades:      len(trades),
		TotalProfit: decimal.Zero,
		Exposure:    decimal.Zero,
		MaxDrawdown: decimal.Zero,
	}

	closed := make([]Trade, 0, len(trades))
	for _, t := range trades {
		if t.Open() {
			m.OpenTrades++
			m.Exposure = m.Exposure.Add(t.Stake)
			continue
		}
		closed = append(closed, t)
	}
	sort.SliceStable(closed, func(i, j int) bool { return closed[i].closeOrder < closed[j].closeOrder })

	peak := decimal.Zero
	for _, t := range closed {
		m.ClosedTrades++
		m.TotalProfit = m.TotalProfit.Add(t.Profit)
		if t.Result == ResultWin {
			m.Wins++
			m.ConsecutiveLosses = 0
		} else {
			m.Losses++
			m.ConsecutiveLosses++
		}

		if m.TotalProfit.GreaterThan(peak) {
			peak = m.TotalProfit
		}
		if dd := peak.Sub(m.TotalProfit); dd.GreaterThan(m.MaxDrawdown) {
			m.MaxDrawdown = dd
		}
	}

	if m.ClosedTrades > 0 {
		m.WinRate = math.Round(float64(m.Wins)*1000/float64(m.ClosedTrades)) / 10
	}
	return m
}
