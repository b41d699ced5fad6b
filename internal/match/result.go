package match

import (
	"github.com/shopspring/decimal"

	"marketduel/internal/market"
	"marketduel/internal/payoff"
)

// Nice-price window for the achievement, inclusive.
var (
	nicePriceLow  = decimal.RequireFromString("69.41")
	nicePriceHigh = decimal.RequireFromString("69.43")
)

// PricePoint is one entry of the price history. Round 0 is the opening price.
type PricePoint struct {
	Round int             `json:"round"`
	Price decimal.Decimal `json:"price"`
}

// Achievement is a cosmetic flag attached to a round.
type Achievement struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// RoundResult is the immutable record of one resolved round.
type RoundResult struct {
	Round        int                  `json:"round"`
	RetailAction market.Action        `json:"retailAction"`
	HedgeAction  market.Action        `json:"hedgeAction"`
	OldPrice     decimal.Decimal      `json:"oldPrice"`
	NewPrice     decimal.Decimal      `json:"newPrice"`
	PriceChange  decimal.Decimal      `json:"priceChange"`
	RetailProfit decimal.Decimal      `json:"retailProfit"`
	HedgeProfit  decimal.Decimal      `json:"hedgeProfit"`
	Sentiment    market.Sentiment     `json:"sentiment"`
	PayoffMatrix payoff.Matrix        `json:"payoffMatrix"`
	Equilibria   []payoff.Equilibrium `json:"equilibria"`
	Mixed        payoff.MixedStrategy `json:"optimalStrategy"`
	OptimalPlay  payoff.OptimalPlay   `json:"optimalPlay"`
	Achievement  *Achievement         `json:"achievement,omitempty"`
}

func achievementFor(price decimal.Decimal) *Achievement {
	if price.LessThan(nicePriceLow) || price.GreaterThan(nicePriceHigh) {
		return nil
	}
	return &Achievement{Title: "Nice!", Message: "Stock hit $69.42!"}
}

// PlayerView is the public part of a player.
type PlayerView struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Role  market.Role `json:"role"`
	Ready bool        `json:"ready"`
}

// GameState is a read-only copy of a session for broadcasting. Pending
// actions are reduced to who has submitted so nothing leaks to the opponent.
type GameState struct {
	Code               string           `json:"code"`
	Phase              Phase            `json:"phase"`
	Players            []PlayerView     `json:"players"`
	Round              int              `json:"round"`
	MaxRounds          int              `json:"maxRounds"`
	Price              decimal.Decimal  `json:"stockPrice"`
	PriceHistory       []PricePoint     `json:"priceHistory"`
	Sentiment          market.Sentiment `json:"sentiment"`
	RetailScore        decimal.Decimal  `json:"retailScore"`
	HedgeScore         decimal.Decimal  `json:"hedgeScore"`
	RetailShares       int64            `json:"retailShares"`
	HedgeShares        int64            `json:"hedgeShares"`
	RetailSubmitted    bool             `json:"retailSubmitted"`
	HedgeSubmitted     bool             `json:"hedgeSubmitted"`
	RetailOptimalCount int              `json:"retailOptimalCount"`
	HedgeOptimalCount  int              `json:"hedgeOptimalCount"`
	RoundHistory       []RoundResult    `json:"roundHistory"`
	Winner             *market.Role     `json:"winner,omitempty"`
}

// GameStats summarizes a finished game.
type GameStats struct {
	Winner                  market.Role     `json:"winner"`
	RetailScore             decimal.Decimal `json:"retailScore"`
	HedgeScore              decimal.Decimal `json:"hedgeScore"`
	RetailOptimalPercentage float64         `json:"retailOptimalPercentage"`
	HedgeOptimalPercentage  float64         `json:"hedgeOptimalPercentage"`
	FinalPrice              decimal.Decimal `json:"finalPrice"`
	PriceChangePercentage   float64         `json:"priceChange"`
	RoundHistory            []RoundResult   `json:"roundHistory"`
}

// percentOf returns part/whole*100 to one decimal.
func percentOf(part, whole decimal.Decimal) float64 {
	if whole.IsZero() {
		return 0
	}
	return part.Mul(decimal.NewFromInt(100)).Div(whole).Round(1).InexactFloat64()
}
