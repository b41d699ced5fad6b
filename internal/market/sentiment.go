package market

import (
	"math/rand"
	"time"
)

// Source supplies uniform draws in [0, 1). *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// NewSource returns a seeded math/rand source. A zero seed means "seed from
// the clock".
func NewSource(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// baseTransitions[from][to], rows in canonical sentiment order. Every row sums
// to 1.
var baseTransitions = [4][4]float64{
	SentimentBearish: {0.50, 0.30, 0.15, 0.05},
	SentimentNeutral: {0.20, 0.40, 0.30, 0.10},
	SentimentBullish: {0.10, 0.20, 0.50, 0.20},
	SentimentManic:   {0.05, 0.15, 0.30, 0.50},
}

// BaseRow returns the unadjusted transition probabilities out of s.
func BaseRow(s Sentiment) [4]float64 {
	return baseTransitions[s]
}

// SentimentChain advances the market mood one round at a time.
//
// The action adjustment can push a weight below zero (MANIC row under
// BUY/COVER loses 0.20 BEARISH from 0.05). With ClampNegative set such weights
// are zeroed before normalization. Without it the negative mass is kept, which
// also starves the state that follows it in the walk.
type SentimentChain struct {
	ClampNegative bool
}

// Weights returns the normalized transition weights out of current after the
// action adjustment.
func (c SentimentChain) Weights(current Sentiment, retail, hedge Action) [4]float64 {
	w := BaseRow(current)

	switch {
	case retail == ActionBuy && hedge == ActionCover:
		w[SentimentBullish] += 0.2
		w[SentimentManic] += 0.1
		w[SentimentBearish] -= 0.2
	case retail == ActionSell && hedge == ActionShort:
		w[SentimentBearish] += 0.2
		w[SentimentBullish] -= 0.1
		w[SentimentManic] -= 0.1
	}

	if c.ClampNegative {
		for i := range w {
			if w[i] < 0 {
				w[i] = 0
			}
		}
	}

	var total float64
	for _, p := range w {
		total += p
	}
	for i := range w {
		w[i] /= total
	}
	return w
}

// Next draws the following sentiment.
func (c SentimentChain) Next(current Sentiment, retail, hedge Action, src Source) Sentiment {
	return pick(c.Weights(current, retail, hedge), src.Float64())
}

func pick(w [4]float64, u float64) Sentiment {
	var cumulative float64
	for i, p := range w {
		cumulative += p
		if cumulative >= u {
			return Sentiments[i]
		}
	}
	// rounding left the last cumulative just under u
	return SentimentNeutral
}
