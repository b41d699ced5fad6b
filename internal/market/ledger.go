package market

import "github.com/shopspring/decimal"

const (
	// OpenLot is added to exposure by BUY and SHORT.
	OpenLot int64 = 100
	// CloseLot is removed from exposure by SELL and COVER.
	CloseLot int64 = 50
)

// Ledger tracks each role's running share exposure. Retail is long, hedge is
// short; both counters are non-negative.
//
// Opening a lot grows the position before the round's move is booked, so the
// new shares ride this round. Closing books the move on the full position and
// only then shrinks it.
type Ledger struct {
	shares [2]int64
}

// Shares returns the current exposure of r.
func (l *Ledger) Shares(r Role) int64 {
	return l.shares[r]
}

// Settle applies one round's actions and returns the profit per role,
// rounded to cents.
func (l *Ledger) Settle(priceChange decimal.Decimal, retail, hedge Action) (retailProfit, hedgeProfit decimal.Decimal) {
	retailProfit = l.book(RoleRetail, retail, priceChange)
	hedgeProfit = l.book(RoleHedge, hedge, priceChange.Neg())
	return retailProfit.Round(2), hedgeProfit.Round(2)
}

// book applies a for role r where move is the price change from r's point of
// view.
func (l *Ledger) book(r Role, a Action, move decimal.Decimal) decimal.Decimal {
	switch a {
	case ActionBuy, ActionShort:
		l.shares[r] += OpenLot
		return move.Mul(decimal.NewFromInt(l.shares[r]))
	case ActionSell, ActionCover:
		if l.shares[r] == 0 {
			return decimal.Zero
		}
		profit := move.Mul(decimal.NewFromInt(l.shares[r]))
		l.shares[r] = max(0, l.shares[r]-CloseLot)
		return profit
	default:
		return move.Mul(decimal.NewFromInt(l.shares[r]))
	}
}
