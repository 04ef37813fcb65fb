package bots

import (
	"fmt"

	"digitdash/internal/analysis"
)

// newEvenOdd follows the dominant parity once it crosses the threshold.
func newEvenOdd(p Params) Strategy {
	return StrategyFunc(func(snap analysis.Snapshot, _ State) (Signal, bool) {
		if snap.Size < p.MinSamples {
			return Signal{}, false
		}
		switch {
		case snap.EvenPercent >= p.Threshold && snap.EvenPercent > snap.OddPercent:
			return Signal{
				Action:     ActionBuy,
				Contract:   Contract{Type: ContractEven},
				Confidence: snap.EvenPercent / 100,
				Reason:     fmt.Sprintf("even %.1f%% >= %.1f%%", snap.EvenPercent, p.Threshold),
			}, true
		case snap.OddPercent >= p.Threshold && snap.OddPercent > snap.EvenPercent:
			return Signal{
				Action:     ActionSell,
				Contract:   Contract{Type: ContractOdd},
				Confidence: snap.OddPercent / 100,
				Reason:     fmt.Sprintf("odd %.1f%% >= %.1f%%", snap.OddPercent, p.Threshold),
			}, true
		}
		return Signal{}, false
	})
}

// newOverUnder compares digits above Barrier with digits below Barrier+1,
// which together cover the whole range.
func newOverUnder(p Params) Strategy {
	return StrategyFunc(func(snap analysis.Snapshot, _ State) (Signal, bool) {
		if snap.Size < p.MinSamples {
			return Signal{}, false
		}
		over := snap.PercentAbove(p.Barrier)
		under := snap.PercentBelow(p.Barrier + 1)
		switch {
		case over >= p.Threshold && over > under:
			return Signal{
				Action:     ActionBuy,
				Contract:   Contract{Type: ContractOver, Barrier: p.Barrier},
				Confidence: over / 100,
				Reason:     fmt.Sprintf("over %d at %.1f%%", p.Barrier, over),
			}, true
		case under >= p.Threshold && under > over:
			return Signal{
				Action:     ActionSell,
				Contract:   Contract{Type: ContractUnder, Barrier: p.Barrier + 1},
				Confidence: under / 100,
				Reason:     fmt.Sprintf("under %d at %.1f%%", p.Barrier+1, under),
			}, true
		}
		return Signal{}, false
	})
}

// newMatchesDiffers bets that the rarest digit stays rare.
func newMatchesDiffers(p Params) Strategy {
	return StrategyFunc(func(snap analysis.Snapshot, _ State) (Signal, bool) {
		if snap.Size < p.MinSamples {
			return Signal{}, false
		}
		least := snap.LeastFrequent
		pct := snap.Percent(least)
		if pct > p.Threshold {
			return Signal{}, false
		}
		return Signal{
			Action:     ActionBuy,
			Contract:   Contract{Type: ContractDiffer, Barrier: least},
			Confidence: 1 - pct/100,
			Reason:     fmt.Sprintf("digit %d at %.1f%% <= %.1f%%", least, pct, p.Threshold),
		}, true
	})
}

// newRiseFall follows a run of rising or falling digits.
func newRiseFall(p Params) Strategy {
	return StrategyFunc(func(snap analysis.Snapshot, _ State) (Signal, bool) {
		if snap.Size < p.MinSamples || snap.DigitTrend.Length < p.TrendLength {
			return Signal{}, false
		}
		confidence := min(0.5+0.1*float64(snap.DigitTrend.Length), 0.95)
		switch snap.DigitTrend.Direction {
		case analysis.DirectionUp:
			return Signal{
				Action:     ActionBuy,
				Contract:   Contract{Type: ContractRise},
				Confidence: confidence,
				Reason:     fmt.Sprintf("digits rising for %d ticks", snap.DigitTrend.Length),
			}, true
		case analysis.DirectionDown:
			return Signal{
				Action:     ActionSell,
				Contract:   Contract{Type: ContractFall},
				Confidence: confidence,
				Reason:     fmt.Sprintf("digits falling for %d ticks", snap.DigitTrend.Length),
			}, true
		}
		return Signal{}, false
	})
}
