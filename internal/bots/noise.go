package bots

import (
	"strings"

	"marketduel/internal/market"
	"marketduel/internal/match"
)

// RandomBot picks uniformly among the legal actions.
type RandomBot struct {
	src market.Source
}

func NewRandomBot(src market.Source) *RandomBot {
	return &RandomBot{src: src}
}

func (b *RandomBot) Name() string { return "random" }

func (b *RandomBot) Choose(role market.Role, _ match.GameState) market.Action {
	actions := market.ActionsFor(role)
	i := min(int(b.src.Float64()*float64(len(actions))), len(actions)-1)
	return actions[i]
}

// AlwaysBot plays the same action every round. Actions illegal for the seat
// fall back to HOLD.
type AlwaysBot struct {
	Action market.Action
}

func (b AlwaysBot) Name() string { return "always-" + strings.ToLower(b.Action.String()) }

func (b AlwaysBot) Choose(role market.Role, _ match.GameState) market.Action {
	return legalOr(role, b.Action)
}
