// Package sim runs the conditioner in batch over a fixed horizon.
package sim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/Agrid-Dev/acmock/internal/conditioner"
	"github.com/Agrid-Dev/acmock/internal/thermal"
)

var (
	ErrInvalidStep     = errors.New("simulation step must be positive")
	ErrInvalidDuration = errors.New("simulation duration must be at least one step")
)

// SetpointCommand changes the setpoint once the simulated time reaches At.
type SetpointCommand struct {
	At    time.Duration
	Value float64
}

type Options struct {
	Initial   conditioner.Snapshot
	Params    thermal.Params
	Regulator conditioner.RegulatorParams
	Weather   conditioner.OutdoorSource // overrides the outdoor conditions of Initial when set
	Step      time.Duration
	Duration  time.Duration
	Setpoints []SetpointCommand
	Logger    *zap.Logger
}

// Record is the state after one step.
type Record struct {
	Elapsed            float64 `csv:"elapsed_s"`
	OutdoorTemperature float64 `csv:"outdoor_temperature"`
	OutdoorHumidity    float64 `csv:"outdoor_humidity"`
	IndoorTemperature  float64 `csv:"indoor_temperature"`
	Setpoint           float64 `csv:"temperature_setpoint"`
	CompressorOn       bool    `csv:"compressor_on"`
	HeatGain           float64 `csv:"heat_gain_kw"`
	Power              float64 `csv:"power_kw"`
	Energy             float64 `csv:"energy_kwh"`
}

type Summary struct {
	Steps                int     `yaml:"steps"`
	StepErrors           int     `yaml:"step_errors"`
	MeanIndoorTemp       float64 `yaml:"mean_indoor_temperature"`
	MinIndoorTemp        float64 `yaml:"min_indoor_temperature"`
	MaxIndoorTemp        float64 `yaml:"max_indoor_temperature"`
	StdDevIndoorTemp     float64 `yaml:"stddev_indoor_temperature"`
	MeanPower            float64 `yaml:"mean_power_kw"`
	PeakPower            float64 `yaml:"peak_power_kw"`
	TotalEnergy          float64 `yaml:"total_energy_kwh"`
	CompressorDutyCycle  float64 `yaml:"compressor_duty_cycle"`
	CompressorStartCount int     `yaml:"compressor_starts"`
}

type Result struct {
	RunID   uuid.UUID
	Records []Record
	Summary Summary
}

func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Step <= 0 {
		return nil, ErrInvalidStep
	}
	if opts.Duration < opts.Step {
		return nil, ErrInvalidDuration
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	model, err := thermal.New(opts.Params)
	if err != nil {
		return nil, fmt.Errorf("thermal model: %w", err)
	}
	copts := []conditioner.Option{conditioner.WithLogger(log)}
	if opts.Weather != nil {
		copts = append(copts, conditioner.WithOutdoorSource(opts.Weather))
	}
	c, err := conditioner.New(opts.Initial, model, opts.Regulator, copts...)
	if err != nil {
		return nil, fmt.Errorf("conditioner: %w", err)
	}

	commands := append([]SetpointCommand(nil), opts.Setpoints...)
	sort.SliceStable(commands, func(i, j int) bool { return commands[i].At < commands[j].At })

	res := &Result{RunID: uuid.New()}
	log = log.With(zap.String("run_id", res.RunID.String()))
	steps := int(opts.Duration / opts.Step)
	res.Records = make([]Record, 0, steps)

	var stepErrors int
	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		elapsed := c.Get().Elapsed
		for len(commands) > 0 && commands[0].At <= elapsed {
			if err := c.SetSetpoint(commands[0].Value); err != nil {
				return nil, fmt.Errorf("setpoint command at %s: %w", commands[0].At, err)
			}
			commands = commands[1:]
		}

		if err := c.Step(opts.Step); err != nil {
			stepErrors++
			log.Warn("simulation step failed", zap.Int("step", i), zap.Error(err))
		}
		res.Records = append(res.Records, recordOf(c.Get()))
	}

	res.Summary = Summarize(res.Records)
	res.Summary.StepErrors = stepErrors
	log.Info("simulation finished",
		zap.Int("steps", steps),
		zap.Float64("total_energy_kwh", res.Summary.TotalEnergy),
		zap.Float64("duty_cycle", res.Summary.CompressorDutyCycle),
	)
	return res, nil
}

func recordOf(s conditioner.Snapshot) Record {
	return Record{
		Elapsed:            s.Elapsed.Seconds(),
		OutdoorTemperature: s.OutdoorTemperature,
		OutdoorHumidity:    s.OutdoorHumidity,
		IndoorTemperature:  s.IndoorTemperature,
		Setpoint:           s.TemperatureSetpoint,
		CompressorOn:       s.CompressorOn,
		HeatGain:           s.HeatGain,
		Power:              s.Power,
		Energy:             s.Energy,
	}
}

// Summarize computes aggregate statistics over records. Empty input
// yields a zero Summary.
func Summarize(records []Record) Summary {
	n := len(records)
	if n == 0 {
		return Summary{}
	}
	temps := make([]float64, n)
	power := make([]float64, n)
	var on, starts int
	prev := false
	for i, r := range records {
		temps[i] = r.IndoorTemperature
		power[i] = r.Power
		if r.CompressorOn {
			on++
			if !prev {
				starts++
			}
		}
		prev = r.CompressorOn
	}

	s := Summary{
		Steps:                n,
		MeanIndoorTemp:       stat.Mean(temps, nil),
		MinIndoorTemp:        floats.Min(temps),
		MaxIndoorTemp:        floats.Max(temps),
		MeanPower:            stat.Mean(power, nil),
		PeakPower:            floats.Max(power),
		TotalEnergy:          records[n-1].Energy,
		CompressorDutyCycle:  float64(on) / float64(n),
		CompressorStartCount: starts,
	}
	if n > 1 {
		s.StdDevIndoorTemp = stat.StdDev(temps, nil)
	}
	return s
}

func WriteCSV(w io.Writer, records []Record) error {
	if err := gocsv.Marshal(records, w); err != nil {
		return fmt.Errorf("write records: %w", err)
	}
	return nil
}

func WriteCSVFile(path string, records []Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteCSV(f, records); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
