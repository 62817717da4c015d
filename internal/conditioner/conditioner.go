// Package conditioner simulates a room air-conditioning unit on top of
// the thermal heat balance.
package conditioner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Agrid-Dev/acmock/internal/thermal"
)

type Snapshot struct {
	Enabled                bool
	TemperatureSetpoint    float64
	TemperatureSetpointMin float64
	TemperatureSetpointMax float64
	Mode                   Mode
	FanSpeed               FanSpeed

	IndoorTemperature  float64 // deg C
	IndoorHumidity     float64 // %
	OutdoorTemperature float64 // deg C
	OutdoorHumidity    float64 // %

	// Outputs of the last step.
	CompressorOn      bool
	TargetTemperature float64 // deg C, setpoint minus target hysteresis while running
	HeatGain          float64 // kW
	Power             float64 // kW
	Energy            float64 // kWh since start or last reset
	Elapsed           time.Duration
}

// OutdoorSource provides outdoor conditions at a simulated time offset.
type OutdoorSource interface {
	At(elapsed time.Duration) (temperature, humidity float64)
}

type Option func(*Conditioner)

func WithLogger(l *zap.Logger) Option {
	return func(c *Conditioner) { c.log = l }
}

func WithOutdoorSource(src OutdoorSource) Option {
	return func(c *Conditioner) { c.outdoor = src }
}

// WithTimeScale makes every wall-clock tick of Run simulate scale times
// as much time.
func WithTimeScale(scale float64) Option {
	return func(c *Conditioner) { c.timeScale = scale }
}

type Conditioner struct {
	mu        sync.RWMutex
	s         Snapshot
	model     *thermal.Model
	reg       Regulator
	outdoor   OutdoorSource
	timeScale float64
	log       *zap.Logger
}

func New(initial Snapshot, model *thermal.Model, regParams RegulatorParams, opts ...Option) (*Conditioner, error) {
	if model == nil {
		return nil, ErrMissingModel
	}
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	if err := regParams.Validate(); err != nil {
		return nil, err
	}
	c := &Conditioner{
		s:         initial,
		model:     model,
		reg:       *NewRegulator(regParams),
		timeScale: 1,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeScale <= 0 {
		return nil, ErrInvalidTimeScale
	}
	if c.outdoor != nil {
		c.s.OutdoorTemperature, c.s.OutdoorHumidity = c.outdoor.At(0)
	}
	if !thermal.ValidTemperature(c.s.OutdoorTemperature) {
		return nil, ErrInvalidTemperature
	}
	c.s.TargetTemperature = c.reg.Target(c.s.TemperatureSetpoint)
	c.s.HeatGain = model.TotalHeatGain(c.conditions()).Total
	return c, nil
}

// Validate checks the settings and measured conditions of s. Step
// outputs are not checked.
func (s Snapshot) Validate() error {
	if !s.Mode.Valid() {
		return ErrInvalidMode
	}
	if !s.FanSpeed.Valid() {
		return ErrInvalidFanSpeed
	}
	if s.TemperatureSetpointMin > s.TemperatureSetpointMax {
		return ErrInvalidMinMax
	}
	if s.TemperatureSetpoint < s.TemperatureSetpointMin || s.TemperatureSetpoint > s.TemperatureSetpointMax {
		return ErrSetpointOutOfRange
	}
	if !validHumidity(s.IndoorHumidity) || !validHumidity(s.OutdoorHumidity) {
		return ErrInvalidHumidity
	}
	if !thermal.ValidTemperature(s.IndoorTemperature) || !thermal.ValidTemperature(s.OutdoorTemperature) {
		return ErrInvalidTemperature
	}
	return nil
}

func validHumidity(rh float64) bool {
	return rh >= 0 && rh <= 100
}

func (c *Conditioner) Model() *thermal.Model {
	return c.model
}

func (c *Conditioner) Get() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.s
}

func (c *Conditioner) SetEnabled(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.s.Enabled = on
}

func (c *Conditioner) Enable() {
	c.SetEnabled(true)
}

func (c *Conditioner) Disable() {
	c.SetEnabled(false)
}

func (c *Conditioner) SetMode(m Mode) error {
	if !m.Valid() {
		return ErrInvalidMode
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.s.Mode = m
	return nil
}

func (c *Conditioner) SetFanSpeed(f FanSpeed) error {
	if !f.Valid() {
		return ErrInvalidFanSpeed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.s.FanSpeed = f
	return nil
}

func (c *Conditioner) SetMinMax(min, max float64) error {
	if min > max {
		return ErrInvalidMinMax
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Enforce current setpoint remains valid
	if c.s.TemperatureSetpoint < min || c.s.TemperatureSetpoint > max {
		return ErrSetpointOutOfRange
	}

	c.s.TemperatureSetpointMin = min
	c.s.TemperatureSetpointMax = max
	return nil
}

func (c *Conditioner) SetSetpoint(sp float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sp < c.s.TemperatureSetpointMin || sp > c.s.TemperatureSetpointMax {
		return ErrSetpointOutOfRange
	}
	c.s.TemperatureSetpoint = sp
	return nil
}

func (c *Conditioner) SetIndoorHumidity(rh float64) error {
	if !validHumidity(rh) {
		return ErrInvalidHumidity
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.s.IndoorHumidity = rh
	return nil
}

// SetOutdoor overrides outdoor conditions. With an outdoor source
// attached the next Step replaces them again.
func (c *Conditioner) SetOutdoor(temperature, rh float64) error {
	if !thermal.ValidTemperature(temperature) {
		return ErrInvalidTemperature
	}
	if !validHumidity(rh) {
		return ErrInvalidHumidity
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.s.OutdoorTemperature = temperature
	c.s.OutdoorHumidity = rh
	return nil
}

func (c *Conditioner) ResetEnergy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.s.Energy = 0
}

// Loads evaluates the heat balance breakdown for the current conditions.
func (c *Conditioner) Loads() thermal.Breakdown {
	c.mu.RLock()
	cond := c.conditions()
	c.mu.RUnlock()
	return c.model.TotalHeatGain(cond)
}

// conditions must be called with mu held.
func (c *Conditioner) conditions() thermal.Conditions {
	return thermal.Conditions{
		IndoorTemperature:  c.s.IndoorTemperature,
		OutdoorTemperature: c.s.OutdoorTemperature,
		IndoorHumidity:     c.s.IndoorHumidity,
		OutdoorHumidity:    c.s.OutdoorHumidity,
		Setpoint:           c.s.TemperatureSetpoint,
	}
}

// Step advances the room by dt. When the dynamic COP is not positive the
// temperature still advances, power is reported as zero and the error
// is returned.
func (c *Conditioner) Step(dt time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.outdoor != nil {
		c.s.OutdoorTemperature, c.s.OutdoorHumidity = c.outdoor.At(c.s.Elapsed)
	}

	cond := c.conditions()
	gain := c.model.TotalHeatGain(cond).Total
	running := c.reg.Update(c.s.Enabled, c.s.Mode, c.s.TemperatureSetpoint, c.s.IndoorTemperature)

	var (
		power float64
		err   error
	)
	if running {
		extracted := c.model.Params().Unit.CoolingCapacity * c.s.FanSpeed.CapacityFactor()
		c.s.IndoorTemperature = c.model.TemperatureWithExtraction(gain, extracted, c.s.IndoorTemperature, dt)
		power, err = c.model.EnergyConsumption(cond)
		if err != nil {
			power = 0
			err = fmt.Errorf("step at %s: %w", c.s.Elapsed, err)
		}
	} else {
		c.s.IndoorTemperature = c.model.TemperatureStandby(gain, c.s.IndoorTemperature, dt)
	}

	c.s.CompressorOn = running
	c.s.TargetTemperature = c.reg.Target(c.s.TemperatureSetpoint)
	c.s.HeatGain = gain
	c.s.Power = power
	c.s.Energy += thermal.Energy(power, dt)
	c.s.Elapsed += dt
	return err
}

// Run steps the simulation on every interval until ctx is canceled.
func (c *Conditioner) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	dt := time.Duration(float64(interval) * c.timeScale)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.Step(dt); err != nil {
				c.log.Warn("simulation step failed", zap.Error(err))
				continue
			}
			if ce := c.log.Check(zap.DebugLevel, "simulation step"); ce != nil {
				s := c.Get()
				ce.Write(
					zap.Float64("indoor_temperature", s.IndoorTemperature),
					zap.Bool("compressor", s.CompressorOn),
					zap.Float64("target_temperature", s.TargetTemperature),
					zap.Float64("power_kw", s.Power),
				)
			}
		}
	}
}
