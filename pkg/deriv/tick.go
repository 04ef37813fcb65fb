package deriv

import (
	"errors"
	"fmt"
	"time"

	"digitdash/internal/market"
	"digitdash/internal/memorystore"

	"github.com/shopspring/decimal"
)

var ErrEmptySymbol = errors.New("deriv: tick without symbol")

// ToMarketTick converts a wire tick into a market.Tick. Sequence is left to the caller.
func ToMarketTick(t Tick) (market.Tick, error) {
	if t.Symbol == "" {
		return market.Tick{}, ErrEmptySymbol
	}
	price, err := decimal.NewFromString(t.Quote.String())
	if err != nil {
		return market.Tick{}, fmt.Errorf("deriv: invalid quote %q: %w", t.Quote, err)
	}

	pip := -1
	if t.PipSize != nil && *t.PipSize >= 0 {
		pip = *t.PipSize
	}

	return market.Tick{
		Symbol: t.Symbol,
		Price:  price,
		Epoch:  time.Unix(t.Epoch, 0).UTC(),
		Digit:  market.LastDigit(price, pip),
		Pip:    pip,
	}, nil
}

// ToSymbolInfo converts discovery results, skipping rows with unusable pip sizes.
func ToSymbolInfo(list []ActiveSymbol) []memorystore.SymbolInfo {
	out := make([]memorystore.SymbolInfo, 0, len(list))
	for _, s := range list {
		if s.Symbol == "" {
			continue
		}
		pip, err := decimal.NewFromString(s.Pip.String())
		if err != nil {
			continue
		}
		out = append(out, memorystore.SymbolInfo{
			Symbol:      s.Symbol,
			DisplayName: s.DisplayName,
			Market:      s.Market,
			Submarket:   s.Submarket,
			Pip:         market.PipDecimals(pip),
			Open:        s.ExchangeIsOpen == 1 && s.IsTradingSuspended == 0,
		})
	}
	return out
}
