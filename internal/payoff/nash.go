package payoff

import (
	"github.com/shopspring/decimal"

	"marketduel/internal/market"
)

// Equilibrium is an action pair neither side can strictly improve on alone.
type Equilibrium struct {
	Retail market.Action `json:"retailAction"`
	Hedge  market.Action `json:"hedgeAction"`
}

// Equilibria returns every pure-strategy Nash equilibrium in retail-major
// canonical order. Ties do not disqualify a cell.
func Equilibria(m Matrix) []Equilibrium {
	var out []Equilibrium
	for ri := range market.RetailActions {
		for hi := range market.HedgeActions {
			if isEquilibrium(m, ri, hi) {
				out = append(out, Equilibrium{
					Retail: market.RetailActions[ri],
					Hedge:  market.HedgeActions[hi],
				})
			}
		}
	}
	return out
}

func isEquilibrium(m Matrix, ri, hi int) bool {
	for alt := range market.RetailActions {
		if m[alt][hi].Retail > m[ri][hi].Retail {
			return false
		}
	}
	for alt := range market.HedgeActions {
		if m[ri][alt].Hedge > m[ri][hi].Hedge {
			return false
		}
	}
	return true
}

// MixedStrategy is a display-only distribution over each role's actions, in
// percent with one decimal.
type MixedStrategy struct {
	Retail map[market.Action]float64 `json:"retailStrategy"`
	Hedge  map[market.Action]float64 `json:"hedgeStrategy"`
}

// Mixed weights each action by its payoff summed over the opponent's actions,
// ignoring negative sums. This is a heuristic, not a solved equilibrium.
func Mixed(m Matrix) MixedStrategy {
	var retailSums, hedgeSums [3]int64
	for ri := range market.RetailActions {
		for hi := range market.HedgeActions {
			retailSums[ri] += m[ri][hi].Retail
			hedgeSums[hi] += m[ri][hi].Hedge
		}
	}
	return MixedStrategy{
		Retail: percentages(market.RetailActions, retailSums),
		Hedge:  percentages(market.HedgeActions, hedgeSums),
	}
}

func percentages(actions [3]market.Action, sums [3]int64) map[market.Action]float64 {
	var total int64
	for i := range sums {
		sums[i] = max(0, sums[i])
		total += sums[i]
	}
	if total == 0 {
		total = 1
	}

	hundred := decimal.NewFromInt(100)
	denom := decimal.NewFromInt(total)
	out := make(map[market.Action]float64, len(actions))
	for i, a := range actions {
		pct := decimal.NewFromInt(sums[i]).Mul(hundred).Div(denom).Round(1)
		out[a] = pct.InexactFloat64()
	}
	return out
}

// OptimalPlay judges whether each realized move was a best response to the
// opponent's realized move.
type OptimalPlay struct {
	RetailOptimal    bool          `json:"retailOptimal"`
	HedgeOptimal     bool          `json:"hedgeOptimal"`
	BestRetailAction market.Action `json:"bestRetailAction"`
	BestHedgeAction  market.Action `json:"bestHedgeAction"`
	RetailLostPayoff int64         `json:"retailLostPayoff"`
	HedgeLostPayoff  int64         `json:"hedgeLostPayoff"`
}

// Judge checks the realized pair against the matrix. ok is false when either
// action is not legal for its role.
func Judge(m Matrix, retail, hedge market.Action) (op OptimalPlay, ok bool) {
	ri := market.IndexOf(market.RoleRetail, retail)
	hi := market.IndexOf(market.RoleHedge, hedge)
	if ri < 0 || hi < 0 {
		return OptimalPlay{}, false
	}

	bestR, bestRPayoff := ri, m[ri][hi].Retail
	for alt := range market.RetailActions {
		if m[alt][hi].Retail > bestRPayoff {
			bestR, bestRPayoff = alt, m[alt][hi].Retail
		}
	}

	bestH, bestHPayoff := hi, m[ri][hi].Hedge
	for alt := range market.HedgeActions {
		if m[ri][alt].Hedge > bestHPayoff {
			bestH, bestHPayoff = alt, m[ri][alt].Hedge
		}
	}

	return OptimalPlay{
		RetailOptimal:    bestR == ri,
		HedgeOptimal:     bestH == hi,
		BestRetailAction: market.RetailActions[bestR],
		BestHedgeAction:  market.HedgeActions[bestH],
		RetailLostPayoff: bestRPayoff - m[ri][hi].Retail,
		HedgeLostPayoff:  bestHPayoff - m[ri][hi].Hedge,
	}, true
}

// Analysis bundles everything derived from one matrix.
type Analysis struct {
	Equilibria  []Equilibrium
	Mixed       MixedStrategy
	OptimalPlay OptimalPlay
}

// Analyze runs all three analyses for a realized action pair. ok is false when
// the pair cannot be judged.
func Analyze(m Matrix, retail, hedge market.Action) (Analysis, bool) {
	op, ok := Judge(m, retail, hedge)
	if !ok {
		return Analysis{}, false
	}
	return Analysis{
		Equilibria:  Equilibria(m),
		Mixed:       Mixed(m),
		OptimalPlay: op,
	}, true
}
