package bots

import "time"

// State is a copy of a bot's bookkeeping.
type State struct {
	Kind              Kind      `json:"kind"`
	Active            bool      `json:"active"`
	Wins              int       `json:"wins"`
	Losses            int       `json:"losses"`
	ConsecutiveWins   int       `json:"consecutive_wins"`
	ConsecutiveLosses int       `json:"consecutive_losses"`
	CooldownRemaining int       `json:"cooldown_remaining"`
	Signals           int       `json:"signals"`
	LastSignalAt      time.Time `json:"last_signal_at"`
	Params            Params    `json:"params"`
}

func (s State) Paused() bool { return s.CooldownRemaining > 0 }

func (s State) withResult(won bool) State {
	if won {
		s.Wins++
		s.ConsecutiveWins++
		s.ConsecutiveLosses = 0
		return s
	}
	s.Losses++
	s.ConsecutiveLosses++
	s.ConsecutiveWins = 0
	if limit := s.Params.MaxConsecutiveLosses; limit > 0 && s.ConsecutiveLosses >= limit {
		s.CooldownRemaining = s.Params.CooldownTicks
	}
	return s
}

// withPausedTick counts down the cooldown. The loss streak is cleared when it ends.
func (s State) withPausedTick() State {
	if s.CooldownRemaining == 0 {
		return s
	}
	s.CooldownRemaining--
	if s.CooldownRemaining == 0 {
		s.ConsecutiveLosses = 0
	}
	return s
}
