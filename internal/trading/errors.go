package trading

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidStake      = errors.New("trading: stake must be positive")
	ErrExposureLimit     = errors.New("trading: exposure limit reached")
	ErrTooManyOpenTrades = errors.New("trading: too many open trades")
	ErrLossLimit         = errors.New("trading: consecutive loss limit reached")
)

// UnknownTradeError is logged when a result arrives for an id that is not tracked.
type UnknownTradeError struct {
	ID string
}

func (e *UnknownTradeError) Error() string {
	return fmt.Sprintf("trading: unknown trade %q", e.ID)
}
