package bots

import (
	"fmt"
	"strings"

	"marketduel/internal/market"
)

// Names lists the bot names New accepts, always-<action> aside.
func Names() []string {
	return []string{"random", "momentum", "contrarian", "best"}
}

// New builds a bot by name. "always-<action>" (e.g. always-buy) plays a fixed
// action. seed feeds the random bot; zero seeds from the clock.
func New(name string, seed int64) (Bot, error) {
	name = strings.ToLower(strings.TrimSpace(name))

	if action, ok := strings.CutPrefix(name, "always-"); ok {
		a, err := market.ParseAction(action)
		if err != nil {
			return nil, fmt.Errorf("bot %q: %w", name, err)
		}
		return AlwaysBot{Action: a}, nil
	}

	switch name {
	case "random":
		return NewRandomBot(market.NewSource(seed)), nil
	case "momentum":
		return MomentumBot{}, nil
	case "contrarian":
		return ContrarianBot{}, nil
	case "best":
		return BestResponseBot{}, nil
	default:
		return nil, fmt.Errorf("unknown bot %q (want one of %s or always-<action>)", name, strings.Join(Names(), ", "))
	}
}

// Lineup is one pairing for a batch of simulated games.
type Lineup struct {
	Retail string
	Hedge  string
}

// RoundRobin pairs every retail name with every hedge name.
func RoundRobin(retail, hedge []string) []Lineup {
	out := make([]Lineup, 0, len(retail)*len(hedge))
	for _, r := range retail {
		for _, h := range hedge {
			out = append(out, Lineup{Retail: r, Hedge: h})
		}
	}
	return out
}
