package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Agrid-Dev/acmock/cmd/app"
	"github.com/Agrid-Dev/acmock/internal/conditioner"
	httpctrl "github.com/Agrid-Dev/acmock/internal/controllers/http"
	modbusctrl "github.com/Agrid-Dev/acmock/internal/controllers/modbus"
	mqttctrl "github.com/Agrid-Dev/acmock/internal/controllers/mqtt"
	"github.com/Agrid-Dev/acmock/internal/device"
	"github.com/Agrid-Dev/acmock/internal/thermal"
	"github.com/Agrid-Dev/acmock/internal/weather"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the simulated unit and its controllers",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	c, err := newConditioner(cfg)
	if err != nil {
		return err
	}

	runners, err := controllers(cfg, c)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	d := device.New(cfg.DeviceID, c, cfg.Regulator.Interval, logger)
	return d.Run(ctx, runners...)
}

func newConditioner(cfg app.Config) (*conditioner.Conditioner, error) {
	snap, err := cfg.Snapshot()
	if err != nil {
		return nil, err
	}
	model, err := thermal.New(cfg.ThermalParams())
	if err != nil {
		return nil, fmt.Errorf("thermal model: %w", err)
	}

	opts := []conditioner.Option{
		conditioner.WithLogger(logger.With(zap.String("device_id", cfg.DeviceID))),
		conditioner.WithTimeScale(cfg.Regulator.TimeScale),
	}
	if cfg.Weather.File != "" {
		series, err := weather.Load(cfg.Weather.File, cfg.Weather.Loop)
		if err != nil {
			return nil, err
		}
		logger.Info("outdoor conditions from weather file",
			zap.String("file", cfg.Weather.File),
			zap.Bool("loop", cfg.Weather.Loop),
			zap.Duration("span", series.Span()),
		)
		opts = append(opts, conditioner.WithOutdoorSource(series))
	}
	return conditioner.New(snap, model, cfg.RegulatorParams(), opts...)
}

func controllers(cfg app.Config, c *conditioner.Conditioner) ([]device.Runner, error) {
	var runners []device.Runner
	if cfg.Controllers.HTTP.Enabled {
		runners = append(runners, httpctrl.New(c, cfg.Controllers.HTTP.Addr, cfg.DeviceID, logger))
	}
	if cfg.Controllers.MQTT.Enabled {
		m, err := mqttctrl.New(c, cfg.MQTTConfig(), logger)
		if err != nil {
			return nil, err
		}
		runners = append(runners, m)
	}
	if cfg.Controllers.Modbus.Enabled {
		m, err := modbusctrl.New(c, cfg.ModbusConfig(), logger)
		if err != nil {
			return nil, err
		}
		runners = append(runners, m)
	}
	if len(runners) == 0 {
		logger.Warn("no controller enabled, the unit can only be observed through logs")
	}
	return runners, nil
}
