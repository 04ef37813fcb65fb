package bots

import "github.com/shopspring/decimal"

// Params configures one bot. Zero fields take the kind's defaults.
type Params struct {
	Symbol      string          `json:"symbol,omitempty"` // empty listens to every symbol
	Stake       decimal.Decimal `json:"stake"`
	Threshold   float64         `json:"threshold"` // percent
	Barrier     int             `json:"barrier"`   // 1..9, over/under only
	MinSamples  int             `json:"min_samples"`
	TrendLength int             `json:"trend_length"`

	MaxConsecutiveLosses int     `json:"max_consecutive_losses"` // pause trigger, negative disables
	CooldownTicks        int     `json:"cooldown_ticks"`
	LossPenalty          float64 `json:"loss_penalty"` // confidence cut per consecutive loss
}

// DefaultParams returns the tuned defaults for kind.
func DefaultParams(kind Kind) Params {
	p := Params{
		Stake:                decimal.NewFromInt(1),
		MinSamples:           20,
		MaxConsecutiveLosses: 3,
		CooldownTicks:        10,
		LossPenalty:          0.1,
	}
	switch kind {
	case KindEvenOdd:
		p.Threshold = 55
	case KindOverUnder:
		p.Threshold = 60
		p.Barrier = 4
	case KindMatchesDiffers:
		p.Threshold = 5
		p.MinSamples = 50
	case KindRiseFall:
		p.TrendLength = 3
		p.MinSamples = 5
	}
	return p
}

func (p Params) withDefaults(kind Kind) Params {
	d := DefaultParams(kind)
	if p.Stake.Sign() <= 0 {
		p.Stake = d.Stake
	}
	if p.Threshold <= 0 {
		p.Threshold = d.Threshold
	}
	if p.Barrier <= 0 {
		p.Barrier = d.Barrier
	}
	if p.MinSamples <= 0 {
		p.MinSamples = d.MinSamples
	}
	if p.TrendLength <= 0 {
		p.TrendLength = d.TrendLength
	}
	if p.MaxConsecutiveLosses == 0 {
		p.MaxConsecutiveLosses = d.MaxConsecutiveLosses
	}
	if p.CooldownTicks <= 0 {
		p.CooldownTicks = d.CooldownTicks
	}
	if p.LossPenalty < 0 || p.LossPenalty > 1 {
		p.LossPenalty = d.LossPenalty
	}
	return p
}
