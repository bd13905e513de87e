package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"RetireSentinel/internal/montecarlo"
	"RetireSentinel/internal/notifier"
	"RetireSentinel/internal/recorder"
	"RetireSentinel/internal/scheduler"
	"RetireSentinel/internal/state"
)

// newRootCmd creates the root command.
func newRootCmd() *cobra.Command {
	var cfgPath string

	rootCmd := &cobra.Command{
		Use:          "sentinel",
		Short:        "RetireSentinel - retirement withdrawal and liquidity planner",
		SilenceUsage: true,
	}

	def := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		def = v
	}
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", def, "Configuration file path")

	rootCmd.AddCommand(newDecideCmd(&cfgPath))
	rootCmd.AddCommand(newSimulateCmd(&cfgPath))
	rootCmd.AddCommand(newSweepCmd(&cfgPath))
	rootCmd.AddCommand(newServeCmd(&cfgPath))
	rootCmd.AddCommand(newStateCmd(&cfgPath))
	rootCmd.AddCommand(newPresetsCmd())

	return rootCmd
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// newDecideCmd computes this year's decision.
func newDecideCmd(cfgPath *string) *cobra.Command {
	var (
		inputPath string
		commit    bool
		notify    bool
	)
	cmd := &cobra.Command{
		Use:   "decide",
		Short: "Compute this year's withdrawal and liquidity decision",
		Long: `Run the yearly decision for the household input. Without --commit the
decision is a preview and the carried state is left untouched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()

			in, err := a.input(inputPath)
			if err != nil {
				return err
			}
			sm, err := a.stateManager(in)
			if err != nil {
				return err
			}
			s := scheduler.NewScheduler(cmd.Context(), a.engine, sm, nil, a.notifier(), a.recorder, a.inputLoader(inputPath))
			year, res, err := s.Decide(commit)
			if errors.Is(err, state.ErrAlreadyDecided) {
				return fmt.Errorf("%w; run without --commit to preview", err)
			}
			if err != nil {
				return err
			}

			fmt.Println(renderDecision(year, res, commit))
			if notify {
				return s.Notifier.SendWithRetry(cmd.Context(), notifier.FormatDecision(year, res), 3)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&inputPath, "input", "", "Household input file (defaults to household.input_file)")
	cmd.Flags().BoolVar(&commit, "commit", false, "Record the decision and advance the carried state")
	cmd.Flags().BoolVar(&notify, "notify", false, "Send the decision via Telegram")
	return cmd
}

type simFlags struct {
	inputPath string
	runs      int
	years     int
	method    string
	stress    string
	seed      int64
	workers   int
	cape      bool
}

func (f *simFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.inputPath, "input", "", "Household input file (defaults to household.input_file)")
	cmd.Flags().IntVar(&f.runs, "runs", 0, "Number of trials per combo")
	cmd.Flags().IntVar(&f.years, "years", 0, "Maximum simulated years")
	cmd.Flags().StringVar(&f.method, "method", "", "Sampling method: historical, regime_iid, regime_markov, block")
	cmd.Flags().StringVar(&f.stress, "stress", "", "Stress preset (see 'sentinel presets')")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "Base seed")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Parallel workers (0 = all CPUs)")
	cmd.Flags().BoolVar(&f.cape, "cape", false, "Start trials in years with a similar CAPE")
}

// pool builds a harness from the config, overridden by the flags.
func (f *simFlags) pool(ctx context.Context, a *app, progress bool) (*montecarlo.Pool, error) {
	sim := a.cfg.Simulation
	if f.runs > 0 {
		sim.Runs = f.runs
	}
	if f.years > 0 {
		sim.MaxYears = f.years
	}
	if f.method != "" {
		sim.Method = f.method
	}
	if f.stress != "" {
		sim.StressPreset = f.stress
	}
	if f.seed != 0 {
		sim.Seed = f.seed
	}
	if f.workers > 0 {
		sim.Workers = f.workers
	}
	if f.cape {
		sim.CapeSampling = true
	}

	d, err := a.dataset(ctx)
	if err != nil {
		return nil, err
	}
	var notify func(montecarlo.Message)
	if progress {
		notify = progressPrinter()
	}
	return montecarlo.NewPool(a.engine, d, sim, notify)
}

// newSimulateCmd runs the Monte Carlo harness.
func newSimulateCmd(cfgPath *string) *cobra.Command {
	var f simFlags
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a Monte Carlo simulation of the household",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := loadApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()

			in, err := a.input(f.inputPath)
			if err != nil {
				return err
			}
			sm, err := a.stateManager(in)
			if err != nil {
				return err
			}
			in, _ = sm.Prepare(in)

			p, err := f.pool(ctx, a, true)
			if err != nil {
				return err
			}
			defer p.Close()

			started := time.Now()
			sum, err := p.Run(ctx, in)
			if err != nil {
				return err
			}
			elapsed := time.Since(started)
			if err := a.recorder.RecordSimulation(recorder.NewSimulationRun(sum, started, elapsed)); err != nil {
				log.Printf("[ERROR] record simulation: %v", err)
			}
			fmt.Println(renderSummary(sum, elapsed))
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

// newSweepCmd runs the harness over a parameter grid.
func newSweepCmd(cfgPath *string) *cobra.Command {
	var (
		f        simFlags
		gridPath string
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run the simulation for every combination of a parameter grid",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			grid, err := montecarlo.LoadGrid(gridPath)
			if err != nil {
				return err
			}
			a, err := loadApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()

			in, err := a.input(f.inputPath)
			if err != nil {
				return err
			}
			p, err := f.pool(ctx, a, false)
			if err != nil {
				return err
			}
			defer p.Close()

			combos := grid.Combos()
			log.Printf("[INFO] sweeping %d combos x %d runs", len(combos), p.Config().Runs)
			started := time.Now()
			rows, err := p.Sweep(ctx, in, combos)
			if err != nil {
				return err
			}
			log.Printf("[INFO] sweep done in %v", time.Since(started).Round(time.Millisecond))
			if err := a.recorder.RecordSweep(recorder.NewRunID(), rows); err != nil {
				log.Printf("[ERROR] record sweep: %v", err)
			}
			fmt.Println(renderSweep(rows))
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&gridPath, "grid", "configs/sweep.yaml", "Sweep grid file")
	return cmd
}

// newServeCmd runs the scheduler and the Telegram command loop.
func newServeCmd(cfgPath *string) *cobra.Command {
	var runOnStart bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run scheduled decisions and simulations and answer Telegram commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := loadApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()
			log.Println("[INFO] RetireSentinel starting...")

			in, err := a.input("")
			if err != nil {
				return err
			}
			sm, err := a.stateManager(in)
			if err != nil {
				return err
			}
			var f simFlags
			pool, err := f.pool(ctx, a, false)
			if err != nil {
				return err
			}
			defer pool.Close()

			n := a.notifier()
			sched := scheduler.NewScheduler(ctx, a.engine, sm, pool, n, a.recorder, a.inputLoader(""))
			if err := sched.RegisterAll(a.cfg.Schedule.DecisionCron, a.cfg.Schedule.SimulationCron); err != nil {
				return fmt.Errorf("register cron tasks: %w", err)
			}
			sched.Start()
			defer sched.Stop()

			if tn, ok := n.(*notifier.TelegramNotifier); ok {
				go tn.StartPolling(ctx, sched.HandleCommand)
				log.Println("[INFO] Telegram polling started")
			}
			if runOnStart || os.Getenv("RUN_ON_START") == "true" {
				log.Println("[INFO] run on start enabled, executing decision now")
				go sched.RunDecisionNow()
			}

			log.Println("[INFO] RetireSentinel is running. Press Ctrl+C to stop.")
			<-ctx.Done()
			log.Println("[INFO] shutdown signal received, stopping...")
			return nil
		},
	}
	cmd.Flags().BoolVar(&runOnStart, "run-on-start", false, "Run the yearly decision immediately")
	return cmd
}

// newStateCmd manages the carried household state.
func newStateCmd(cfgPath *string) *cobra.Command {
	stateCmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect or update the carried household state",
	}

	withManager := func(fn func(a *app, sm *state.Manager) error) error {
		a, err := loadApp(*cfgPath)
		if err != nil {
			return err
		}
		defer a.Close()
		in, err := a.input("")
		if err != nil {
			return err
		}
		sm, err := a.stateManager(in)
		if err != nil {
			return err
		}
		return fn(a, sm)
	}

	stateCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the carried state and recent decisions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(a *app, sm *state.Manager) error {
				h := sm.Get()
				ds, err := a.recorder.RecentDecisions(10)
				if err != nil {
					return err
				}
				fmt.Println(renderState(&h, ds))
				return nil
			})
		},
	})

	stateCmd.AddCommand(&cobra.Command{
		Use:   "loss-carry AMOUNT",
		Short: "Set the loss carry from the year-end tax statement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var v float64
			if _, err := fmt.Sscanf(args[0], "%g", &v); err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[0], err)
			}
			return withManager(func(_ *app, sm *state.Manager) error {
				return sm.SetLossCarry(v)
			})
		},
	})

	stateCmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Drop the carried state and start over from the household input",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(a *app, sm *state.Manager) error {
				in, err := a.input("")
				if err != nil {
					return err
				}
				return sm.Reset(in.Household)
			})
		},
	})

	return stateCmd
}

// newPresetsCmd lists the stress presets.
func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List stress presets",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(renderPresets())
		},
	}
}
