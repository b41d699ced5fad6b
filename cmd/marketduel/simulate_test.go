package main

import (
	"bytes"
	"context"
	"math"
	"strings"
	"testing"

	"marketduel/internal/match"
)

func testSimOptions() simOptions {
	cfg := match.DefaultConfig()
	cfg.MaxRounds = 5
	return simOptions{
		Games:    4,
		Retail:   []string{"best", "random"},
		Hedge:    []string{"momentum", "always-short"},
		Parallel: 3,
		Seed:     42,
		Session:  cfg,
	}
}

func TestSimulateCountsEveryGame(t *testing.T) {
	results, err := simulate(context.Background(), testSimOptions())
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 pairings, got %d", len(results))
	}
	for _, r := range results {
		if r.Games != 4 {
			t.Errorf("%v: played %d games, want 4", r.Lineup, r.Games)
		}
		if r.RetailWins < 0 || r.RetailWins > r.Games {
			t.Errorf("%v: impossible win count %d", r.Lineup, r.RetailWins)
		}
	}
}

func TestSimulateIsReproducible(t *testing.T) {
	a, err := simulate(context.Background(), testSimOptions())
	if err != nil {
		t.Fatal(err)
	}
	b, err := simulate(context.Background(), testSimOptions())
	if err != nil {
		t.Fatal(err)
	}
	for i := range a {
		if a[i].RetailWins != b[i].RetailWins || !a[i].RetailScore.Equal(b[i].RetailScore) || !a[i].FinalPrice.Equal(b[i].FinalPrice) {
			t.Errorf("pairing %v differs between runs with the same seed", a[i].Lineup)
		}
	}
}

func TestGameSeedsNeverZero(t *testing.T) {
	tests := []struct {
		name string
		base int64
		n    int
	}{
		{"zero", 0, 0},
		{"negative base lands on zero", -3, 3},
		{"old retail mask", 0x5eed, 0},
		{"old hedge mask", 0xbeef, 0},
		{"wraps", math.MaxInt64, 1},
		{"min", math.MinInt64, 0},
	}
	for _, tt := range tests {
		session, retail, hedge := gameSeeds(tt.base, tt.n)
		if session == 0 || retail == 0 || hedge == 0 {
			t.Errorf("%s: got a zero seed (%d, %d, %d)", tt.name, session, retail, hedge)
		}
		if session == retail || retail == hedge || session == hedge {
			t.Errorf("%s: seeds should differ (%d, %d, %d)", tt.name, session, retail, hedge)
		}
	}
}

func TestSimulateReproducibleAtEdgeSeeds(t *testing.T) {
	for _, base := range []int64{0x5eed, 0xbeef, -2} {
		opts := testSimOptions()
		opts.Seed = base
		opts.Retail = []string{"random"}
		opts.Hedge = []string{"random"}
		a, err := simulate(context.Background(), opts)
		if err != nil {
			t.Fatal(err)
		}
		b, err := simulate(context.Background(), opts)
		if err != nil {
			t.Fatal(err)
		}
		if !a[0].RetailScore.Equal(b[0].RetailScore) || !a[0].HedgeScore.Equal(b[0].HedgeScore) || !a[0].FinalPrice.Equal(b[0].FinalPrice) {
			t.Errorf("seed %d: runs differ", base)
		}
	}
}

func TestSimulateRejectsBadInput(t *testing.T) {
	opts := testSimOptions()
	opts.Hedge = []string{"oracle"}
	if _, err := simulate(context.Background(), opts); err == nil {
		t.Error("expected error for unknown bot")
	}

	opts = testSimOptions()
	opts.Games = 0
	if _, err := simulate(context.Background(), opts); err == nil {
		t.Error("expected error for zero games")
	}

	opts = testSimOptions()
	opts.Retail = nil
	if _, err := simulate(context.Background(), opts); err == nil {
		t.Error("expected error for empty lineup")
	}
}

func TestPrintTally(t *testing.T) {
	results, err := simulate(context.Background(), testSimOptions())
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	printTally(&buf, results)

	out := buf.String()
	if lines := strings.Count(out, "\n"); lines != 5 {
		t.Errorf("expected header plus 4 rows, got %d lines:\n%s", lines, out)
	}
	if !strings.Contains(out, "always-short") {
		t.Errorf("missing bot name in output:\n%s", out)
	}
}
