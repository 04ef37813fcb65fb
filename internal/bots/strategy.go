package bots

import "digitdash/internal/analysis"

// Strategy decides on a snapshot. Evaluate must be pure: the same snapshot and
// state always give the same answer.
type Strategy interface {
	Evaluate(snap analysis.Snapshot, state State) (Signal, bool)
}

type StrategyFunc func(snap analysis.Snapshot, state State) (Signal, bool)

func (f StrategyFunc) Evaluate(snap analysis.Snapshot, state State) (Signal, bool) {
	return f(snap, state)
}

// Factory builds the strategy of one kind from its params.
type Factory func(p Params) Strategy

var registry = map[Kind]Factory{
	KindEvenOdd:        newEvenOdd,
	KindOverUnder:      newOverUnder,
	KindMatchesDiffers: newMatchesDiffers,
	KindRiseFall:       newRiseFall,
}

// Lookup returns the factory registered for kind.
func Lookup(kind Kind) (Factory, bool) {
	f, ok := registry[kind]
	return f, ok
}
