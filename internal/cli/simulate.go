package cli

import (
	"errors"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/terra-clan/dungeon-engine/internal/catalog"
	"github.com/terra-clan/dungeon-engine/internal/dungeon"
	"github.com/terra-clan/dungeon-engine/internal/instance"
	"github.com/terra-clan/dungeon-engine/internal/models"
	"github.com/terra-clan/dungeon-engine/internal/reward"
)

// SimulateOptions controls an offline simulation
type SimulateOptions struct {
	Template   string
	Difficulty string
	Level      int
	Gold       int
	Runs       int
	Seed       int64
}

// SimulationReport aggregates the outcome of simulated runs
type SimulationReport struct {
	Runs        int
	Completed   int
	Failed      int
	FirstClears int
	Kills       int
	Exp         int
	GoldEarned  int
	GoldSpent   int
	FinalGold   int
	Items       map[string]int
	// StoppedBy is set when the character could no longer enter
	StoppedBy error
}

// SimulateCommand creates the simulate command
func SimulateCommand() *cobra.Command {
	var (
		dir  string
		opts SimulateOptions
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run dungeon sessions offline and print reward totals",
		Long: `Run dungeon sessions without a server, killing every enemy until each run
completes, and print the accumulated rewards. Useful to sanity check drop rates.

Examples:
  dungeon-engine simulate --template dark_mine --difficulty hard --level 20 --runs 1000 --seed 42`,
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := catalog.NewLoader()
			if err := loader.LoadFromDir(dir); err != nil {
				return err
			}

			report, err := Simulate(loader, opts)
			if err != nil {
				return err
			}
			return printReport(cmd, opts, report)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "./templates", "Catalog directory")
	cmd.Flags().StringVar(&opts.Template, "template", "", "Template id to simulate")
	cmd.Flags().StringVar(&opts.Difficulty, "difficulty", "normal", "Difficulty (easy, normal, hard, nightmare)")
	cmd.Flags().IntVar(&opts.Level, "level", 1, "Character level")
	cmd.Flags().IntVar(&opts.Gold, "gold", 0, "Starting gold")
	cmd.Flags().IntVar(&opts.Runs, "runs", 100, "Number of runs")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "Reward seed, 0 for a random seed")
	_ = cmd.MarkFlagRequired("template")

	return cmd
}

// Simulate enters the template opts.Runs times with one character and kills
// every enemy of each run. The template is unlocked first and the daily
// counter is cleared between runs. The simulation stops early once the
// character cannot pay the entry cost.
func Simulate(loader *catalog.Loader, opts SimulateOptions) (*SimulationReport, error) {
	if opts.Runs <= 0 {
		return nil, fmt.Errorf("runs must be positive: %d", opts.Runs)
	}
	difficulty, err := models.ParseDifficulty(opts.Difficulty)
	if err != nil {
		return nil, err
	}

	resolver := reward.NewResolver(nil)
	if opts.Seed != 0 {
		resolver = reward.NewSeededResolver(opts.Seed)
	}

	runID := 0
	engine := dungeon.New(loader,
		dungeon.WithResolver(resolver),
		dungeon.WithSessionOptions(instance.WithWaveDelay(0)),
		dungeon.WithIDGenerator(func() string {
			runID++
			return fmt.Sprintf("sim-%d", runID)
		}),
	)
	if err := engine.UnlockDungeon(opts.Template); err != nil {
		return nil, err
	}
	tmpl := engine.GetTemplate(opts.Template)

	c := models.NewCharacter("simulator", "Simulator", opts.Level, opts.Gold)
	report := &SimulationReport{Items: make(map[string]int)}

	for i := 0; i < opts.Runs; i++ {
		c.ResetDungeonCounts()

		s, err := engine.Enter(tmpl.ID, c, difficulty)
		if errors.Is(err, catalog.ErrInsufficientGold) {
			report.StoppedBy = err
			break
		}
		if err != nil {
			return nil, err
		}
		report.Runs++
		report.GoldSpent += tmpl.EntryCost

		for !s.State.IsTerminal() {
			_, accepted, err := engine.ReportKills(s.ID, 1)
			if err != nil {
				return nil, err
			}
			if accepted == 0 {
				return nil, fmt.Errorf("session %s stalled at wave %d", s.ID, s.CurrentWaveIndex+1)
			}
		}
		report.Kills += s.Stats.EnemiesKilled

		if s.State != models.StateCompleted || s.Rewards == nil {
			report.Failed++
			continue
		}
		report.Completed++
		report.Exp += s.Rewards.Exp
		report.GoldEarned += s.Rewards.Gold
		if s.Rewards.FirstClear {
			report.FirstClears++
		}
		for _, item := range s.Rewards.Items {
			report.Items[item.ItemID] += item.Quantity
		}
	}

	report.FinalGold = c.Gold
	return report, nil
}

func printReport(cmd *cobra.Command, opts SimulateOptions, r *SimulationReport) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%s), level %d: %d run(s), %d completed, %d failed, %d first clear(s)\n",
		opts.Template, opts.Difficulty, opts.Level, r.Runs, r.Completed, r.Failed, r.FirstClears)
	fmt.Fprintf(out, "kills %d, exp %d, gold earned %d, gold spent %d, final gold %d\n",
		r.Kills, r.Exp, r.GoldEarned, r.GoldSpent, r.FinalGold)
	if r.StoppedBy != nil {
		fmt.Fprintf(out, "stopped early: %v\n", r.StoppedBy)
	}
	if len(r.Items) == 0 {
		return nil
	}

	ids := make([]string, 0, len(r.Items))
	for id := range r.Items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ITEM\tQUANTITY\tPER RUN")
	for _, id := range ids {
		perRun := 0.0
		if r.Completed > 0 {
			perRun = float64(r.Items[id]) / float64(r.Completed)
		}
		fmt.Fprintf(w, "%s\t%d\t%.3f\n", id, r.Items[id], perRun)
	}
	return w.Flush()
}
