package bots

import "digitdash/internal/market"

// ContractType names a binary contract as the broker does.
type ContractType string

const (
	ContractEven   ContractType = "DIGITEVEN"
	ContractOdd    ContractType = "DIGITODD"
	ContractOver   ContractType = "DIGITOVER"
	ContractUnder  ContractType = "DIGITUNDER"
	ContractMatch  ContractType = "DIGITMATCH"
	ContractDiffer ContractType = "DIGITDIFF"
	ContractRise   ContractType = "CALL"
	ContractFall   ContractType = "PUT"
)

type Contract struct {
	Type    ContractType `json:"type"`
	Barrier int          `json:"barrier,omitempty"` // digit barrier for over/under/match/differ
}

// Wins reports whether the contract pays out when settled on exit after entry.
func (c Contract) Wins(entry, exit market.Tick) bool {
	switch c.Type {
	case ContractEven:
		return exit.Digit%2 == 0
	case ContractOdd:
		return exit.Digit%2 == 1
	case ContractOver:
		return exit.Digit > c.Barrier
	case ContractUnder:
		return exit.Digit < c.Barrier
	case ContractMatch:
		return exit.Digit == c.Barrier
	case ContractDiffer:
		return exit.Digit != c.Barrier
	case ContractRise:
		return exit.Price.GreaterThan(entry.Price)
	case ContractFall:
		return exit.Price.LessThan(entry.Price)
	}
	return false
}
