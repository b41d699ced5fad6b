package bots

import (
	"marketduel/internal/market"
	"marketduel/internal/match"
)

// MomentumBot chases the last price move: up after a rise, down after a
// fall, HOLD when flat or before any move.
type MomentumBot struct{}

func (MomentumBot) Name() string { return "momentum" }

func (MomentumBot) Choose(role market.Role, gs match.GameState) market.Action {
	switch lastMove(gs) {
	case 1:
		return push(role, true)
	case -1:
		return push(role, false)
	default:
		return market.ActionHold
	}
}

// ContrarianBot bets on reversion: it pushes against the last move.
type ContrarianBot struct{}

func (ContrarianBot) Name() string { return "contrarian" }

func (ContrarianBot) Choose(role market.Role, gs match.GameState) market.Action {
	switch lastMove(gs) {
	case 1:
		return push(role, false)
	case -1:
		return push(role, true)
	default:
		return market.ActionHold
	}
}

// lastMove returns the sign of the most recent price change.
func lastMove(gs match.GameState) int {
	n := len(gs.PriceHistory)
	if n < 2 {
		return 0
	}
	return gs.PriceHistory[n-1].Price.Cmp(gs.PriceHistory[n-2].Price)
}
