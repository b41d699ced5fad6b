// Package payoff projects a round's hypothetical outcomes into a 3x3 payoff
// matrix and analyzes it: pure Nash equilibria, a mixed-strategy heuristic,
// and best-response checks of the moves actually played.
package payoff

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"marketduel/internal/market"
)

// Canonical position sizes used for the projection. They stand in for a
// player's book so the matrix does not depend on live positions.
var (
	lotOpen = decimal.NewFromInt(100)
	lotHalf = decimal.NewFromInt(50)
)

// Cell holds the payoffs of one action pair.
type Cell struct {
	Retail int64 `json:"retail"`
	Hedge  int64 `json:"hedge"`
}

// Matrix is indexed [retail][hedge] by canonical action position
// (market.RetailActions, market.HedgeActions).
type Matrix [3][3]Cell

// At returns the cell for an action pair. ok is false when either action is
// not legal for its role.
func (m *Matrix) At(retail, hedge market.Action) (Cell, bool) {
	ri := market.IndexOf(market.RoleRetail, retail)
	hi := market.IndexOf(market.RoleHedge, hedge)
	if ri < 0 || hi < 0 {
		return Cell{}, false
	}
	return m[ri][hi], true
}

// Build projects every action pair from the current price and sentiment. No
// noise is applied.
func Build(price decimal.Decimal, s market.Sentiment) Matrix {
	var m Matrix
	mult := decimal.NewFromFloat(s.Multiplier())

	for ri, ra := range market.RetailActions {
		for hi, ha := range market.HedgeActions {
			impact := decimal.NewFromInt(int64(market.Impact(ra) + market.Impact(ha)))
			next := decimal.Max(market.MinPrice, price.Add(impact.Mul(mult)))
			delta := next.Sub(price)

			m[ri][hi] = Cell{
				Retail: round(retailPayoff(ra, delta)),
				Hedge:  round(hedgePayoff(ha, delta)),
			}
		}
	}
	return m
}

func retailPayoff(a market.Action, delta decimal.Decimal) decimal.Decimal {
	switch a {
	case market.ActionBuy:
		return delta.Mul(lotOpen)
	case market.ActionSell:
		return delta.Neg().Mul(lotHalf)
	default:
		return delta.Mul(lotHalf)
	}
}

func hedgePayoff(a market.Action, delta decimal.Decimal) decimal.Decimal {
	switch a {
	case market.ActionShort:
		return delta.Neg().Mul(lotOpen)
	case market.ActionCover:
		return delta.Mul(lotHalf)
	default:
		return delta.Neg().Mul(lotHalf)
	}
}

// round is half away from zero.
func round(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}

// MarshalJSON renders the matrix as {"BUY":{"SHORT":{...},...},...}.
func (m Matrix) MarshalJSON() ([]byte, error) {
	out := make(map[string]map[string]Cell, 3)
	for ri, ra := range market.RetailActions {
		row := make(map[string]Cell, 3)
		for hi, ha := range market.HedgeActions {
			row[ha.String()] = m[ri][hi]
		}
		out[ra.String()] = row
	}
	return json.Marshal(out)
}

func (m *Matrix) UnmarshalJSON(b []byte) error {
	var in map[string]map[string]Cell
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	var out Matrix
	for ri, ra := range market.RetailActions {
		row, ok := in[ra.String()]
		if !ok {
			return fmt.Errorf("payoff matrix missing row %s", ra)
		}
		for hi, ha := range market.HedgeActions {
			c, ok := row[ha.String()]
			if !ok {
				return fmt.Errorf("payoff matrix missing cell %s/%s", ra, ha)
			}
			out[ri][hi] = c
		}
	}
	*m = out
	return nil
}
