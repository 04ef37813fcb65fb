package market

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Tick is a single normalized price update for one symbol.
type Tick struct {
	Symbol   string          `json:"symbol"`
	Price    decimal.Decimal `json:"price"`
	Epoch    time.Time       `json:"epoch"`
	Digit    int             `json:"digit"`    // last decimal digit of Price at Pip decimals
	Pip      int             `json:"pip"`      // quoted decimals, -1 when unknown
	Sequence uint64          `json:"sequence"` // per-symbol, strictly increasing
}

// LastDigit returns the last decimal digit of price rendered with pip decimals.
// A negative pip renders the price as quoted, without padding.
func LastDigit(price decimal.Decimal, pip int) int {
	var s string
	if pip >= 0 {
		s = price.StringFixed(int32(pip))
	} else {
		s = price.String()
	}
	for i := len(s) - 1; i >= 0; i-- {
		if c := s[i]; c >= '0' && c <= '9' {
			return int(c - '0')
		}
	}
	return 0
}

// PipDecimals converts a pip size such as 0.001 into its number of decimals.
func PipDecimals(pip decimal.Decimal) int {
	if pip.Sign() <= 0 {
		return -1
	}
	s := pip.String()
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return len(s) - i - 1
	}
	return 0
}
