package bots

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"marketduel/internal/market"
	"marketduel/internal/match"
)

type fixedSource float64

func (f fixedSource) Float64() float64 { return float64(f) }

func newSession(rounds int) *match.Session {
	cfg := match.DefaultConfig()
	cfg.MaxRounds = rounds
	cfg.Source = fixedSource(0.5)
	return match.NewSession("BOTS01", cfg)
}

func stateWithPrices(prices ...string) match.GameState {
	gs := match.GameState{
		Price:     decimal.RequireFromString(prices[len(prices)-1]),
		Sentiment: market.SentimentNeutral,
	}
	for i, p := range prices {
		gs.PriceHistory = append(gs.PriceHistory, match.PricePoint{Round: i, Price: decimal.RequireFromString(p)})
	}
	return gs
}

// ==== STRATEGY TESTS ====

func TestAlwaysBotFallsBackToHold(t *testing.T) {
	b := AlwaysBot{Action: market.ActionBuy}
	if got := b.Choose(market.RoleRetail, match.GameState{}); got != market.ActionBuy {
		t.Errorf("retail got %s, want BUY", got)
	}
	if got := b.Choose(market.RoleHedge, match.GameState{}); got != market.ActionHold {
		t.Errorf("hedge got %s, want HOLD", got)
	}
	if b.Name() != "always-buy" {
		t.Errorf("unexpected name %q", b.Name())
	}
}

func TestRandomBotStaysLegal(t *testing.T) {
	for _, u := range []float64{0, 0.34, 0.67, 0.999999} {
		b := NewRandomBot(fixedSource(u))
		for _, role := range market.Roles {
			if a := b.Choose(role, match.GameState{}); !market.Legal(role, a) {
				t.Errorf("u=%v role %s: illegal action %s", u, role, a)
			}
		}
	}
	if got := NewRandomBot(fixedSource(0.999999)).Choose(market.RoleHedge, match.GameState{}); got != market.ActionHold {
		t.Errorf("top draw should pick the last hedge action, got %s", got)
	}
}

func TestDirectionalBots(t *testing.T) {
	tests := []struct {
		name   string
		bot    Bot
		prices []string
		retail market.Action
		hedge  market.Action
	}{
		{"momentum opening", MomentumBot{}, []string{"20"}, market.ActionHold, market.ActionHold},
		{"momentum rise", MomentumBot{}, []string{"20", "21"}, market.ActionBuy, market.ActionCover},
		{"momentum fall", MomentumBot{}, []string{"20", "19.5"}, market.ActionSell, market.ActionShort},
		{"momentum flat", MomentumBot{}, []string{"20", "21", "21"}, market.ActionHold, market.ActionHold},
		{"contrarian rise", ContrarianBot{}, []string{"20", "21"}, market.ActionSell, market.ActionShort},
		{"contrarian fall", ContrarianBot{}, []string{"20", "19"}, market.ActionBuy, market.ActionCover},
	}
	for _, tt := range tests {
		gs := stateWithPrices(tt.prices...)
		if got := tt.bot.Choose(market.RoleRetail, gs); got != tt.retail {
			t.Errorf("%s: retail got %s, want %s", tt.name, got, tt.retail)
		}
		if got := tt.bot.Choose(market.RoleHedge, gs); got != tt.hedge {
			t.Errorf("%s: hedge got %s, want %s", tt.name, got, tt.hedge)
		}
	}
}

func TestBestResponseAtOpening(t *testing.T) {
	// Neutral at $20: hedge weights are 50/50 SHORT/COVER, so BUY is worth
	// 350 against 25 and 75. Retail weights favour BUY, where COVER pays most.
	gs := stateWithPrices("20")
	b := BestResponseBot{}
	if got := b.Choose(market.RoleRetail, gs); got != market.ActionBuy {
		t.Errorf("retail got %s, want BUY", got)
	}
	if got := b.Choose(market.RoleHedge, gs); got != market.ActionCover {
		t.Errorf("hedge got %s, want COVER", got)
	}
}

func TestOpponentWeightsUniformWhenFlat(t *testing.T) {
	w := opponentWeights(market.RoleHedge, map[market.Action]float64{})
	if w != [3]float64{1, 1, 1} {
		t.Errorf("got %v, want uniform", w)
	}
}

// ==== ROSTER TESTS ====

func TestNew(t *testing.T) {
	for _, name := range append(Names(), "always-short", " Always-Hold ") {
		b, err := New(name, 1)
		if err != nil {
			t.Errorf("New(%q): %v", name, err)
			continue
		}
		if b.Name() == "" {
			t.Errorf("New(%q) returned an unnamed bot", name)
		}
	}
	for _, name := range []string{"", "genius", "always-moon"} {
		if _, err := New(name, 1); err == nil {
			t.Errorf("New(%q) should fail", name)
		}
	}
}

func TestRoundRobin(t *testing.T) {
	got := RoundRobin([]string{"a", "b"}, []string{"x", "y", "z"})
	if len(got) != 6 {
		t.Fatalf("expected 6 pairings, got %d", len(got))
	}
	if got[0] != (Lineup{"a", "x"}) || got[5] != (Lineup{"b", "z"}) {
		t.Errorf("unexpected order %v", got)
	}
}

// ==== RUNNER TESTS ====

func TestPlayFullGame(t *testing.T) {
	sess := newSession(10)
	stats, err := Play(context.Background(), sess, AlwaysBot{Action: market.ActionBuy}, AlwaysBot{Action: market.ActionShort})
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if stats.Winner != market.RoleRetail {
		t.Errorf("expected RETAIL to win, got %s", stats.Winner)
	}
	if !stats.RetailScore.Equal(decimal.NewFromInt(5500)) {
		t.Errorf("retail score %s, want 5500", stats.RetailScore)
	}
	if len(stats.RoundHistory) != 10 {
		t.Errorf("expected 10 rounds, got %d", len(stats.RoundHistory))
	}
}

func TestPlayEveryBotFinishes(t *testing.T) {
	for _, l := range RoundRobin(Names(), Names()) {
		r, _ := New(l.Retail, 7)
		h, _ := New(l.Hedge, 8)
		if _, err := Play(context.Background(), newSession(5), r, h); err != nil {
			t.Errorf("%s vs %s: %v", l.Retail, l.Hedge, err)
		}
	}
}

func TestPlayHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Play(ctx, newSession(3), MomentumBot{}, MomentumBot{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestPlayRejectsStartedSession(t *testing.T) {
	sess := newSession(3)
	sess.AddPlayer("someone", market.RoleRetail)
	if _, err := Play(context.Background(), sess, MomentumBot{}, MomentumBot{}); !errors.Is(err, match.ErrRoleTaken) {
		t.Errorf("expected ErrRoleTaken, got %v", err)
	}
}
