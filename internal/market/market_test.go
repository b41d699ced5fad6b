package market

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

// fixedSource returns the same draw every time.
type fixedSource float64

func (f fixedSource) Float64() float64 { return float64(f) }

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// ==================== CATALOG TESTS ====================

func TestImpacts(t *testing.T) {
	tests := []struct {
		action Action
		impact int
	}{
		{ActionBuy, 3},
		{ActionHold, 0},
		{ActionSell, -2},
		{ActionShort, -2},
		{ActionCover, 3},
	}
	for _, tt := range tests {
		if got := Impact(tt.action); got != tt.impact {
			t.Errorf("Impact(%s) = %d, want %d", tt.action, got, tt.impact)
		}
	}
}

func TestLegalActions(t *testing.T) {
	if !Legal(RoleRetail, ActionBuy) || !Legal(RoleRetail, ActionHold) || !Legal(RoleRetail, ActionSell) {
		t.Error("retail should be able to BUY, HOLD and SELL")
	}
	if Legal(RoleRetail, ActionShort) || Legal(RoleRetail, ActionCover) {
		t.Error("retail must not SHORT or COVER")
	}
	if !Legal(RoleHedge, ActionShort) || !Legal(RoleHedge, ActionCover) || !Legal(RoleHedge, ActionHold) {
		t.Error("hedge should be able to SHORT, COVER and HOLD")
	}
	if Legal(RoleHedge, ActionBuy) || Legal(RoleHedge, ActionSell) {
		t.Error("hedge must not BUY or SELL")
	}
	if IndexOf(RoleHedge, ActionHold) != 2 {
		t.Errorf("expected hedge HOLD at index 2, got %d", IndexOf(RoleHedge, ActionHold))
	}
}

func TestParseRoundTrip(t *testing.T) {
	for _, a := range []Action{ActionBuy, ActionHold, ActionSell, ActionShort, ActionCover} {
		got, err := ParseAction(a.String())
		if err != nil || got != a {
			t.Errorf("ParseAction(%q) = %v, %v", a.String(), got, err)
		}
	}
	if _, err := ParseAction("yolo"); err == nil {
		t.Error("expected error for unknown action")
	}
	if r, err := ParseRole("hedge"); err != nil || r != RoleHedge {
		t.Errorf("ParseRole(hedge) = %v, %v", r, err)
	}
	if s, err := ParseSentiment("Manic"); err != nil || s != SentimentManic {
		t.Errorf("ParseSentiment(Manic) = %v, %v", s, err)
	}
}

func TestSentimentMultipliers(t *testing.T) {
	want := map[Sentiment]float64{
		SentimentBearish: 0.7,
		SentimentNeutral: 1.0,
		SentimentBullish: 1.5,
		SentimentManic:   2.0,
	}
	for s, m := range want {
		if s.Multiplier() != m {
			t.Errorf("%s multiplier = %v, want %v", s, s.Multiplier(), m)
		}
	}
}

// ==================== SENTIMENT CHAIN TESTS ====================

func TestBaseRowsSumToOne(t *testing.T) {
	for _, s := range Sentiments {
		var sum float64
		for _, p := range BaseRow(s) {
			sum += p
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("row %s sums to %v", s, sum)
		}
	}
}

func TestWeightsWithoutAdjustment(t *testing.T) {
	chain := SentimentChain{ClampNegative: true}
	w := chain.Weights(SentimentNeutral, ActionHold, ActionHold)
	base := BaseRow(SentimentNeutral)
	for i := range w {
		if math.Abs(w[i]-base[i]) > 1e-9 {
			t.Errorf("weight %s = %v, want %v", Sentiments[i], w[i], base[i])
		}
	}
}

func TestWeightsBullishAdjustment(t *testing.T) {
	chain := SentimentChain{ClampNegative: true}
	// NEUTRAL row + BUY/COVER: 0.0, 0.4, 0.5, 0.2 over 1.1
	w := chain.Weights(SentimentNeutral, ActionBuy, ActionCover)
	want := [4]float64{0, 0.4 / 1.1, 0.5 / 1.1, 0.2 / 1.1}
	for i := range w {
		if math.Abs(w[i]-want[i]) > 1e-9 {
			t.Errorf("weight %s = %v, want %v", Sentiments[i], w[i], want[i])
		}
	}
}

func TestWeightsBearishAdjustment(t *testing.T) {
	chain := SentimentChain{ClampNegative: true}
	// BULLISH row + SELL/SHORT: 0.3, 0.2, 0.4, 0.1 over 1.0
	w := chain.Weights(SentimentBullish, ActionSell, ActionShort)
	want := [4]float64{0.3, 0.2, 0.4, 0.1}
	for i := range w {
		if math.Abs(w[i]-want[i]) > 1e-9 {
			t.Errorf("weight %s = %v, want %v", Sentiments[i], w[i], want[i])
		}
	}
}

// The MANIC row under BUY/COVER drives BEARISH to -0.15. Clamping zeroes it;
// the legacy behaviour keeps the negative mass, which also swallows NEUTRAL.
func TestNegativeWeightClamped(t *testing.T) {
	chain := SentimentChain{ClampNegative: true}
	w := chain.Weights(SentimentManic, ActionBuy, ActionCover)
	want := [4]float64{0, 0.12, 0.4, 0.48}
	for i := range w {
		if math.Abs(w[i]-want[i]) > 1e-9 {
			t.Errorf("clamped weight %s = %v, want %v", Sentiments[i], w[i], want[i])
		}
	}
	if got := chain.Next(SentimentManic, ActionBuy, ActionCover, fixedSource(0.05)); got != SentimentNeutral {
		t.Errorf("clamped draw 0.05: got %s, want NEUTRAL", got)
	}
}

func TestNegativeWeightUnclamped(t *testing.T) {
	chain := SentimentChain{ClampNegative: false}
	w := chain.Weights(SentimentManic, ActionBuy, ActionCover)
	want := [4]float64{-0.15 / 1.1, 0.15 / 1.1, 0.5 / 1.1, 0.6 / 1.1}
	for i := range w {
		if math.Abs(w[i]-want[i]) > 1e-9 {
			t.Errorf("unclamped weight %s = %v, want %v", Sentiments[i], w[i], want[i])
		}
	}
	// cumulative after NEUTRAL is ~0, so the same draw lands on BULLISH
	if got := chain.Next(SentimentManic, ActionBuy, ActionCover, fixedSource(0.05)); got != SentimentBullish {
		t.Errorf("unclamped draw 0.05: got %s, want BULLISH", got)
	}
}

func TestNextWalksCanonicalOrder(t *testing.T) {
	chain := SentimentChain{ClampNegative: true}
	tests := []struct {
		draw float64
		want Sentiment
	}{
		{0.0, SentimentBearish},
		{0.19, SentimentBearish},
		{0.21, SentimentNeutral},
		{0.59, SentimentNeutral},
		{0.61, SentimentBullish},
		{0.89, SentimentBullish},
		{0.91, SentimentManic},
		{0.999, SentimentManic},
	}
	for _, tt := range tests {
		if got := chain.Next(SentimentNeutral, ActionHold, ActionHold, fixedSource(tt.draw)); got != tt.want {
			t.Errorf("draw %v: got %s, want %s", tt.draw, got, tt.want)
		}
	}
}

func TestPickFallsBackToNeutral(t *testing.T) {
	w := [4]float64{0.1, 0.1, 0.1, 0.1}
	if got := pick(w, 0.9); got != SentimentNeutral {
		t.Errorf("expected NEUTRAL fallback, got %s", got)
	}
}

// ==================== PRICE MODEL TESTS ====================

func TestPriceNoNoise(t *testing.T) {
	pm := NewPriceModel(fixedSource(0.5)) // noise = 0
	got := pm.Next(dec("20"), ActionBuy, ActionShort, SentimentNeutral)
	if !got.Equal(dec("21")) {
		t.Errorf("expected 21.00, got %s", got)
	}
}

func TestPriceNoiseBounds(t *testing.T) {
	low := NewPriceModel(fixedSource(0)).Next(dec("20"), ActionHold, ActionHold, SentimentNeutral)
	if !low.Equal(dec("19")) {
		t.Errorf("noise floor: expected 19.00, got %s", low)
	}
	high := NewPriceModel(fixedSource(0.99)).Next(dec("20"), ActionHold, ActionHold, SentimentNeutral)
	if !high.Equal(dec("20.98")) {
		t.Errorf("noise near ceiling: expected 20.98, got %s", high)
	}
}

func TestPriceSentimentScaling(t *testing.T) {
	pm := NewPriceModel(fixedSource(0.5))
	// BUY + COVER = +6, MANIC x2
	got := pm.Next(dec("20"), ActionBuy, ActionCover, SentimentManic)
	if !got.Equal(dec("32")) {
		t.Errorf("expected 32.00, got %s", got)
	}
	// SELL + SHORT = -4, BEARISH x0.7
	got = pm.Next(dec("20"), ActionSell, ActionShort, SentimentBearish)
	if !got.Equal(dec("17.2")) {
		t.Errorf("expected 17.20, got %s", got)
	}
}

func TestPriceFloor(t *testing.T) {
	pm := NewPriceModel(fixedSource(0))
	got := pm.Next(dec("1.50"), ActionSell, ActionShort, SentimentManic)
	if !got.Equal(MinPrice) {
		t.Errorf("expected floor 1.00, got %s", got)
	}
}

func TestPriceRoundsToCents(t *testing.T) {
	pm := NewPriceModel(fixedSource(0.5615)) // noise 0.123
	got := pm.Next(dec("20"), ActionBuy, ActionShort, SentimentNeutral)
	if !got.Equal(dec("21.12")) {
		t.Errorf("expected 21.12, got %s", got)
	}
}

func TestPriceInvariantsRandomized(t *testing.T) {
	src := NewSource(42)
	pm := NewPriceModel(src)
	price := dec("20")
	for i := 0; i < 2000; i++ {
		r := RetailActions[src.Intn(3)]
		h := HedgeActions[src.Intn(3)]
		s := Sentiments[src.Intn(4)]
		price = pm.Next(price, r, h, s)
		if price.LessThan(MinPrice) {
			t.Fatalf("step %d: price %s below floor", i, price)
		}
		if !price.Equal(price.Round(2)) {
			t.Fatalf("step %d: price %s has more than 2 decimals", i, price)
		}
	}
}

// ==================== LEDGER TESTS ====================

func TestLedgerBuyIncrementsBeforeProfit(t *testing.T) {
	var l Ledger
	rp, hp := l.Settle(dec("0.75"), ActionBuy, ActionShort)
	if l.Shares(RoleRetail) != 100 || l.Shares(RoleHedge) != 100 {
		t.Fatalf("expected 100/100 shares, got %d/%d", l.Shares(RoleRetail), l.Shares(RoleHedge))
	}
	if !rp.Equal(dec("75")) {
		t.Errorf("retail profit = %s, want 75", rp)
	}
	if !hp.Equal(dec("-75")) {
		t.Errorf("hedge profit = %s, want -75", hp)
	}
}

func TestLedgerSellDecrementsAfterProfit(t *testing.T) {
	var l Ledger
	l.Settle(dec("1"), ActionBuy, ActionHold) // retail 100 shares

	rp, _ := l.Settle(dec("-0.5"), ActionSell, ActionHold)
	if !rp.Equal(dec("-50")) {
		t.Errorf("profit booked on pre-decrement 100 shares: got %s, want -50", rp)
	}
	if l.Shares(RoleRetail) != 50 {
		t.Errorf("expected 50 shares after SELL, got %d", l.Shares(RoleRetail))
	}

	rp, _ = l.Settle(dec("2"), ActionSell, ActionHold)
	if !rp.Equal(dec("100")) {
		t.Errorf("profit on 50 shares: got %s, want 100", rp)
	}
	if l.Shares(RoleRetail) != 0 {
		t.Errorf("expected flat after second SELL, got %d", l.Shares(RoleRetail))
	}
}

func TestLedgerCloseWhenFlat(t *testing.T) {
	var l Ledger
	rp, hp := l.Settle(dec("3"), ActionSell, ActionCover)
	if !rp.IsZero() || !hp.IsZero() {
		t.Errorf("closing a flat book must earn nothing, got %s/%s", rp, hp)
	}
	if l.Shares(RoleRetail) != 0 || l.Shares(RoleHedge) != 0 {
		t.Error("closing a flat book must not change shares")
	}
}

func TestLedgerHedgeMirror(t *testing.T) {
	var l Ledger
	l.Settle(dec("0"), ActionHold, ActionShort)
	l.Settle(dec("0"), ActionHold, ActionShort) // 200 short

	_, hp := l.Settle(dec("-1.25"), ActionHold, ActionHold)
	if !hp.Equal(dec("250")) {
		t.Errorf("hedge HOLD on falling price: got %s, want 250", hp)
	}

	_, hp = l.Settle(dec("0.5"), ActionHold, ActionCover)
	if !hp.Equal(dec("-100")) {
		t.Errorf("hedge COVER booked on 200 shares: got %s, want -100", hp)
	}
	if l.Shares(RoleHedge) != 150 {
		t.Errorf("expected 150 short after COVER, got %d", l.Shares(RoleHedge))
	}
}

func TestLedgerFloorsAtZero(t *testing.T) {
	var l Ledger
	l.Settle(dec("0"), ActionBuy, ActionHold)
	for i := 0; i < 3; i++ {
		l.Settle(dec("0"), ActionSell, ActionHold)
	}
	if l.Shares(RoleRetail) != 0 {
		t.Errorf("shares must floor at 0, got %d", l.Shares(RoleRetail))
	}
}
