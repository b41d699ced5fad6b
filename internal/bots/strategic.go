package bots

import (
	"marketduel/internal/market"
	"marketduel/internal/match"
	"marketduel/internal/payoff"
)

// BestResponseBot builds the round's payoff matrix and plays the action with
// the highest expected payoff against the opponent's mixed-strategy weights.
// A flat opponent distribution is treated as uniform. Ties go to the earlier
// action in canonical order.
type BestResponseBot struct{}

func (BestResponseBot) Name() string { return "best" }

func (BestResponseBot) Choose(role market.Role, gs match.GameState) market.Action {
	m := payoff.Build(gs.Price, gs.Sentiment)
	mixed := payoff.Mixed(m)

	opp := mixed.Hedge
	if role == market.RoleHedge {
		opp = mixed.Retail
	}
	weights := opponentWeights(role.Opponent(), opp)

	actions := market.ActionsFor(role)
	best, bestValue := 0, expected(m, role, 0, weights)
	for i := 1; i < len(actions); i++ {
		if v := expected(m, role, i, weights); v > bestValue {
			best, bestValue = i, v
		}
	}
	return actions[best]
}

func opponentWeights(opp market.Role, dist map[market.Action]float64) [3]float64 {
	var w [3]float64
	var total float64
	for i, a := range market.ActionsFor(opp) {
		w[i] = dist[a]
		total += w[i]
	}
	if total == 0 {
		return [3]float64{1, 1, 1}
	}
	return w
}

// expected is the weighted payoff of the role's i-th action.
func expected(m payoff.Matrix, role market.Role, i int, w [3]float64) float64 {
	var v float64
	for j := range w {
		if role == market.RoleRetail {
			v += w[j] * float64(m[i][j].Retail)
		} else {
			v += w[j] * float64(m[j][i].Hedge)
		}
	}
	return v
}
