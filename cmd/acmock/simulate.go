package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Agrid-Dev/acmock/internal/sim"
	"github.com/Agrid-Dev/acmock/internal/weather"
)

var (
	simDuration time.Duration
	simStep     time.Duration
	simOutput   string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the unit in batch and write a CSV time series",
	Long: `Run the unit in batch over simulation.duration with a fixed step,
write one CSV row per step and print a YAML summary on stdout.`,
	Args: cobra.NoArgs,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().DurationVar(&simDuration, "duration", 0, "simulated horizon (overrides simulation.duration)")
	simulateCmd.Flags().DurationVar(&simStep, "step", 0, "simulation step (overrides simulation.step)")
	simulateCmd.Flags().StringVarP(&simOutput, "output", "o", "", "CSV output path (overrides simulation.output)")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("duration") {
		cfg.Simulation.Duration = simDuration
	}
	if cmd.Flags().Changed("step") {
		cfg.Simulation.Step = simStep
	}
	if cmd.Flags().Changed("output") {
		cfg.Simulation.Output = simOutput
	}

	snap, err := cfg.Snapshot()
	if err != nil {
		return err
	}
	opts := sim.Options{
		Initial:   snap,
		Params:    cfg.ThermalParams(),
		Regulator: cfg.RegulatorParams(),
		Step:      cfg.Simulation.Step,
		Duration:  cfg.Simulation.Duration,
		Setpoints: cfg.SetpointCommands(),
		Logger:    logger,
	}
	if cfg.Weather.File != "" {
		series, err := weather.Load(cfg.Weather.File, cfg.Weather.Loop)
		if err != nil {
			return err
		}
		opts.Weather = series
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	res, err := sim.Run(ctx, opts)
	if err != nil {
		return err
	}
	if err := sim.WriteCSVFile(cfg.Simulation.Output, res.Records); err != nil {
		return err
	}
	logger.Info("simulation written",
		zap.String("run_id", res.RunID.String()),
		zap.String("output", cfg.Simulation.Output),
		zap.Int("records", len(res.Records)),
	)

	out := struct {
		RunID   string      `yaml:"run_id"`
		Device  string      `yaml:"device_id"`
		Output  string      `yaml:"output"`
		Summary sim.Summary `yaml:"summary"`
	}{res.RunID.String(), cfg.DeviceID, cfg.Simulation.Output, res.Summary}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	defer enc.Close()
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}
