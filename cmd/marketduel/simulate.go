package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"marketduel/internal/bots"
	"marketduel/internal/market"
	"marketduel/internal/match"
)

var (
	accent  = color.New(color.FgCyan, color.Bold)
	success = color.New(color.FgGreen, color.Bold)
	danger  = color.New(color.FgRed, color.Bold)
	neutral = color.New(color.FgHiWhite)
)

type simOptions struct {
	Games    int
	Retail   []string
	Hedge    []string
	Parallel int
	Seed     int64
	Session  match.Config
}

// tally aggregates the games of one lineup.
type tally struct {
	Lineup        bots.Lineup
	Games         int
	RetailWins    int
	RetailScore   decimal.Decimal
	HedgeScore    decimal.Decimal
	RetailOptimal float64
	HedgeOptimal  float64
	FinalPrice    decimal.Decimal
}

func (t *tally) add(s match.GameStats) {
	t.Games++
	if s.Winner == market.RoleRetail {
		t.RetailWins++
	}
	t.RetailScore = t.RetailScore.Add(s.RetailScore)
	t.HedgeScore = t.HedgeScore.Add(s.HedgeScore)
	t.RetailOptimal += s.RetailOptimalPercentage
	t.HedgeOptimal += s.HedgeOptimalPercentage
	t.FinalPrice = t.FinalPrice.Add(s.FinalPrice)
}

func (t *tally) mean(d decimal.Decimal) decimal.Decimal {
	if t.Games == 0 {
		return decimal.Zero
	}
	return d.Div(decimal.NewFromInt(int64(t.Games))).Round(2)
}

func newSimulateCmd(configPath *string) *cobra.Command {
	var opts simOptions
	var rounds int

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Play headless games between scripted bots and print a summary",
		Long: "Plays --games games for every retail/hedge pairing. Bots: " +
			"random, momentum, contrarian, best, always-<action>.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			opts.Session = cfg.Game.Session()
			if rounds > 0 {
				opts.Session.MaxRounds = rounds
			}
			if opts.Seed == 0 {
				opts.Seed = cfg.Game.Seed
			}
			if opts.Seed == 0 {
				opts.Seed = time.Now().UnixNano()
			}

			start := time.Now()
			results, err := simulate(cmd.Context(), opts)
			if err != nil {
				return err
			}
			printTally(os.Stdout, results)
			neutral.Printf("\n%d games in %s (seed %d)\n", opts.Games*len(results), time.Since(start).Round(time.Millisecond), opts.Seed)
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.Games, "games", "n", 100, "games per pairing")
	cmd.Flags().StringSliceVar(&opts.Retail, "retail", bots.Names(), "retail bots")
	cmd.Flags().StringSliceVar(&opts.Hedge, "hedge", bots.Names(), "hedge bots")
	cmd.Flags().IntVar(&opts.Parallel, "parallel", runtime.NumCPU(), "games played at once")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "base seed (0 = config seed, then clock)")
	cmd.Flags().IntVar(&rounds, "rounds", 0, "rounds per game (0 = config)")
	return cmd
}

// gameSeeds derives the session and bot seeds for game n of a run. All three
// are odd, so none can fall through to clock seeding.
func gameSeeds(base int64, n int) (session, retail, hedge int64) {
	s := (base + int64(n)) * 8
	return s + 1, s + 3, s + 5
}

// simulate plays every pairing opts.Games times. Game i of pairing j takes its
// seeds from gameSeeds(opts.Seed, j*opts.Games+i) so a run is reproducible.
func simulate(ctx context.Context, opts simOptions) ([]tally, error) {
	if opts.Games < 1 {
		return nil, fmt.Errorf("games must be >= 1, got %d", opts.Games)
	}
	lineups := bots.RoundRobin(opts.Retail, opts.Hedge)
	if len(lineups) == 0 {
		return nil, fmt.Errorf("need at least one retail and one hedge bot")
	}
	// Fail fast on bad names before spawning anything.
	for _, l := range lineups {
		if _, err := bots.New(l.Retail, 1); err != nil {
			return nil, err
		}
		if _, err := bots.New(l.Hedge, 1); err != nil {
			return nil, err
		}
	}

	stats := make([][]match.GameStats, len(lineups))
	for j := range stats {
		stats[j] = make([]match.GameStats, opts.Games)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Parallel, 1))

	for j, l := range lineups {
		for i := range opts.Games {
			seed, retailSeed, hedgeSeed := gameSeeds(opts.Seed, j*opts.Games+i)
			g.Go(func() error {
				retail, _ := bots.New(l.Retail, retailSeed)
				hedge, _ := bots.New(l.Hedge, hedgeSeed)

				cfg := opts.Session
				cfg.Seed = seed
				cfg.Source = nil
				sess := match.NewSession(fmt.Sprintf("SIM%d", j*opts.Games+i), cfg)

				s, err := bots.Play(gctx, sess, retail, hedge)
				if err != nil {
					return fmt.Errorf("%s vs %s, game %d: %w", l.Retail, l.Hedge, i+1, err)
				}
				stats[j][i] = s
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]tally, len(lineups))
	for j, l := range lineups {
		out[j].Lineup = l
		for _, s := range stats[j] {
			out[j].add(s)
		}
	}
	return out, nil
}

func printTally(w io.Writer, results []tally) {
	accent.Fprintf(w, "%-14s %-14s %6s %8s %12s %12s %8s %8s %10s\n",
		"RETAIL", "HEDGE", "GAMES", "RETAIL%", "AVG RETAIL", "AVG HEDGE", "R-OPT%", "H-OPT%", "AVG PRICE")

	for _, t := range results {
		winRate := 100 * float64(t.RetailWins) / float64(t.Games)
		rate := neutral.Sprintf("%7.1f%%", winRate)
		switch {
		case winRate > 50:
			rate = success.Sprintf("%7.1f%%", winRate)
		case winRate < 50:
			rate = danger.Sprintf("%7.1f%%", winRate)
		}

		fmt.Fprintf(w, "%-14s %-14s %6d %s %12s %12s %8.1f %8.1f %10s\n",
			t.Lineup.Retail, t.Lineup.Hedge, t.Games, rate,
			t.mean(t.RetailScore).StringFixed(2), t.mean(t.HedgeScore).StringFixed(2),
			t.RetailOptimal/float64(t.Games), t.HedgeOptimal/float64(t.Games),
			t.mean(t.FinalPrice).StringFixed(2),
		)
	}
}
