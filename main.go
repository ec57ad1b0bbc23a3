package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/flock/config"
	"github.com/pthm-cable/flock/telemetry"
	"github.com/pthm-cable/flock/world"
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "flock",
		Short: "Multi-species boids simulation",
		Long: `flock runs a headless multi-species boids simulation with
predator/prey behavior, writing flock telemetry as CSV.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// JSON to stdout for structured logging
			logger := slog.New(slog.NewJSONHandler(cmd.OutOrStdout(), nil))
			slog.SetDefault(logger)
		},
	}

	rootCmd.PersistentFlags().String("config", "", "Path to config.yaml (empty = use defaults)")

	rootCmd.AddCommand(
		newRunCmd(),
		newDefaultsCmd(),
		newValidateCmd(),
	)
	return rootCmd
}

// runOptions are the knobs of a headless run.
type runOptions struct {
	Seed        int64
	MaxTicks    int
	OutputDir   string
	LogStats    bool
	StatsWindow float64
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the simulation headless",
		Long: `Run the simulation without graphics until --max-ticks is reached or
the process is interrupted.

Examples:
  flock run --max-ticks 3600 --output-dir out/
  flock run --config flock.yaml --seed 42 --log-stats`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			if err := config.Init(configPath); err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			cfg := config.Cfg()

			if opts.Seed == 0 {
				opts.Seed = time.Now().UnixNano()
			}
			if opts.StatsWindow > 0 {
				cfg.Telemetry.StatsWindow = opts.StatsWindow
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runSimulation(ctx, cfg, opts)
		},
	}

	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "RNG seed (0 = time-based)")
	cmd.Flags().IntVar(&opts.MaxTicks, "max-ticks", 0, "Stop after N ticks (0 = unlimited)")
	cmd.Flags().StringVar(&opts.OutputDir, "output-dir", "", "Output directory for CSV logs and config snapshot")
	cmd.Flags().BoolVar(&opts.LogStats, "log-stats", false, "Output window stats via slog")
	cmd.Flags().Float64Var(&opts.StatsWindow, "stats-window", 0, "Stats window size in seconds (0 = use config)")
	return cmd
}

// runSimulation ticks a world built from cfg until ctx is done or
// MaxTicks is reached. Ticks are never interrupted midway.
func runSimulation(ctx context.Context, cfg *config.Config, opts runOptions) error {
	w, err := world.New(cfg, world.Options{Seed: opts.Seed})
	if err != nil {
		return fmt.Errorf("creating world: %w", err)
	}
	defer w.Close()

	om, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		return err
	}
	defer om.Close()
	if err := om.WriteConfig(cfg); err != nil {
		return err
	}

	slog.Info("starting headless simulation",
		"seed", opts.Seed,
		"agents", w.AgentCount(),
		"species", len(w.Species()),
		"max_ticks", opts.MaxTicks,
		"output_dir", opts.OutputDir,
	)

	for {
		if err := ctx.Err(); err != nil {
			slog.Info("interrupted", "tick", w.TickCount())
			break
		}

		w.Tick(cfg.Physics.DT)

		if stats, ok := w.FlushStats(); ok {
			if err := writeWindow(om, w, stats, opts.LogStats); err != nil {
				return err
			}
		}

		if opts.MaxTicks > 0 && int(w.TickCount()) >= opts.MaxTicks {
			slog.Info("max ticks reached", "tick", w.TickCount())
			break
		}
	}

	slog.Info("simulation finished",
		"tick", w.TickCount(),
		"violations", w.Diagnostics().Total(),
	)
	return nil
}

func writeWindow(om *telemetry.OutputManager, w *world.World, stats telemetry.WindowStats, logStats bool) error {
	perf := w.PerfStats()
	violations := w.Diagnostics().Drain()

	if logStats {
		slog.Info("stats", "window", stats)
		slog.Info("perf", "stats", perf)
		for _, v := range violations {
			slog.Warn("invariant violation", "violation", v)
		}
	}

	if err := om.WriteTelemetry(stats); err != nil {
		return err
	}
	if err := om.WritePerf(perf, stats.WindowEndTick); err != nil {
		return err
	}
	return om.WriteViolations(violations)
}

func newDefaultsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "defaults",
		Short: "Print the default configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.Default().Encode(cmd.OutOrStdout())
		},
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config.yaml>",
		Short: "Check a config file against the schema and species rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d species)\n", args[0], len(cfg.Species))
			return nil
		},
	}
}
