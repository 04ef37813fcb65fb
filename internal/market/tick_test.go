package market

import (
	"testing"

	"github.com/shopspring/decimal"
)

// go test -v --run TestLastDigit
func TestLastDigit(t *testing.T) {
	cases := []struct {
		price string
		pip   int
		want  int
	}{
		{"10.3", 1, 3},
		{"10.7", 1, 7},
		{"10.1", 1, 1},
		{"1234.5", 2, 0}, // padded to 1234.50
		{"1234.56", -1, 6},
		{"987", 0, 7},
		{"0.123456", 3, 3}, // rounded to 0.123
		{"-5.42", 2, 2},
	}

	for _, c := range cases {
		got := LastDigit(decimal.RequireFromString(c.price), c.pip)
		if got != c.want {
			t.Errorf("LastDigit(%s, %d) = %d, want %d", c.price, c.pip, got, c.want)
		}
		if got < 0 || got > 9 {
			t.Errorf("digit out of range: %d", got)
		}
	}
}

// go test -v --run TestPipDecimals
func TestPipDecimals(t *testing.T) {
	cases := map[string]int{
		"0.01":   2,
		"0.001":  3,
		"0.0010": 3,
		"1":      0,
		"0":      -1,
	}
	for in, want := range cases {
		if got := PipDecimals(decimal.RequireFromString(in)); got != want {
			t.Errorf("PipDecimals(%s) = %d, want %d", in, got, want)
		}
	}
}
