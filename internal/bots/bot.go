// Package bots holds scripted players and a headless runner that plays them
// against each other on a match.Session.
package bots

import (
	"context"
	"errors"
	"fmt"

	"marketduel/internal/market"
	"marketduel/internal/match"
)

// Bot picks the action for one side of the next round.
type Bot interface {
	Name() string
	Choose(role market.Role, gs match.GameState) market.Action
}

// ErrUnfinished is returned when a game stops before its last round.
var ErrUnfinished = errors.New("game did not finish")

// Play seats both bots in a fresh session, readies them and plays every
// round. The session must still be in the lobby and empty.
func Play(ctx context.Context, sess *match.Session, retail, hedge Bot) (match.GameStats, error) {
	rp, err := sess.AddPlayer(retail.Name(), market.RoleRetail)
	if err != nil {
		return match.GameStats{}, fmt.Errorf("seat retail: %w", err)
	}
	hp, err := sess.AddPlayer(hedge.Name(), market.RoleHedge)
	if err != nil {
		return match.GameStats{}, fmt.Errorf("seat hedge: %w", err)
	}
	for _, id := range []string{rp.ID, hp.ID} {
		if _, err := sess.SetReady(id); err != nil {
			return match.GameStats{}, err
		}
	}

	for sess.Phase() == match.PhaseInProgress {
		if err := ctx.Err(); err != nil {
			return match.GameStats{}, err
		}
		gs := sess.Snapshot()
		ra := retail.Choose(market.RoleRetail, gs)
		ha := hedge.Choose(market.RoleHedge, gs)

		if _, err := sess.SubmitAction(rp.ID, ra); err != nil {
			return match.GameStats{}, fmt.Errorf("round %d: retail %s: %w", gs.Round, ra, err)
		}
		if _, err := sess.SubmitAction(hp.ID, ha); err != nil {
			return match.GameStats{}, fmt.Errorf("round %d: hedge %s: %w", gs.Round, ha, err)
		}
	}

	stats, ok := sess.Stats()
	if !ok {
		return match.GameStats{}, ErrUnfinished
	}
	return stats, nil
}

// legalOr returns a when role may play it, HOLD otherwise.
func legalOr(role market.Role, a market.Action) market.Action {
	if market.Legal(role, a) {
		return a
	}
	return market.ActionHold
}

// push returns the role's action that moves the price up (up=true) or down.
func push(role market.Role, up bool) market.Action {
	switch {
	case role == market.RoleRetail && up:
		return market.ActionBuy
	case role == market.RoleRetail:
		return market.ActionSell
	case up:
		return market.ActionCover
	default:
		return market.ActionShort
	}
}
