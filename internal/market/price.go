package market

import (
	"math"

	"github.com/shopspring/decimal"
)

// MinPrice is the floor every price is clamped to.
var MinPrice = decimal.NewFromInt(1)

// PriceModel turns a pair of actions into the next price.
type PriceModel struct {
	src Source
}

// NewPriceModel creates a price model drawing its noise from src.
func NewPriceModel(src Source) *PriceModel {
	return &PriceModel{src: src}
}

// Next returns max(1, old + (ri+hi)*mult + noise) rounded to cents, with
// noise uniform in [-1, 1).
func (pm *PriceModel) Next(old decimal.Decimal, retail, hedge Action, s Sentiment) decimal.Decimal {
	noise := pm.src.Float64()*2 - 1
	net := float64(Impact(retail)+Impact(hedge))*s.Multiplier() + noise
	raw := math.Max(1, old.InexactFloat64()+net)
	p := decimal.NewFromFloat(raw).Round(2)
	if p.LessThan(MinPrice) {
		return MinPrice
	}
	return p
}
