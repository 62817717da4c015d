package thermal

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tolerance = 1e-9

func newTestModel(t *testing.T, opts ...func(*Params)) *Model {
	t.Helper()
	p := DefaultParams()
	for _, opt := range opts {
		opt(&p)
	}
	m, err := New(p)
	require.NoError(t, err)
	return m
}

// Reference room: 24 deg C / 50 % indoors, 34 deg C / 70 % outdoors.
func referenceConditions() Conditions {
	return Conditions{
		IndoorTemperature:  24,
		OutdoorTemperature: 34,
		IndoorHumidity:     50,
		OutdoorHumidity:    70,
		Setpoint:           22,
	}
}

func TestNewDerivedGeometry(t *testing.T) {
	m := newTestModel(t)

	assert.Equal(t, 36.0, m.FloorArea())
	assert.Equal(t, 180.0, m.Volume())
	assert.Equal(t, 30.0, m.WallArea())
	assert.InDelta(t, 0.0160446, m.Airflow(), tolerance)
}

func TestNewRejectsInvalidParams(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Params)
		want   error
	}{
		{"zero height", func(p *Params) { p.Room.Height = 0 }, ErrInvalidGeometry},
		{"negative window", func(p *Params) { p.Room.WindowArea = -1 }, ErrInvalidGeometry},
		{"negative occupants", func(p *Params) { p.Room.Occupants = -1 }, ErrInvalidOccupants},
		{"zero density", func(p *Params) { p.Air.Density = 0 }, ErrInvalidAir},
		{"SHGC above one", func(p *Params) { p.Envelope.SHGC = 1.5 }, ErrInvalidEnvelope},
		{"zero convection", func(p *Params) { p.Envelope.OutsideConvection = 0 }, ErrInvalidEnvelope},
		{"negative lighting", func(p *Params) { p.Gains.Lighting = -30 }, ErrInvalidGains},
		{"zero capacity", func(p *Params) { p.Unit.CoolingCapacity = 0 }, ErrInvalidUnit},
		{"negative pull down band", func(p *Params) { p.Unit.PullDownBand = -1 }, ErrInvalidUnit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.modify(&p)
			_, err := New(p)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestVentilationSensibleLoad(t *testing.T) {
	m := newTestModel(t)

	assert.InDelta(t, 0.19414286892, m.VentilationSensibleLoad(24, 34), tolerance)
	assert.Zero(t, m.VentilationSensibleLoad(24, 24))
	assert.Less(t, m.VentilationSensibleLoad(24, 14), 0.0, "cold outdoor air is a negative load")
}

func TestVentilationLatentLoad(t *testing.T) {
	m := newTestModel(t)

	assert.InDelta(t, 0.677523323155326, m.VentilationLatentLoad(50, 70, 24, 34), 1e-9)
	assert.InDelta(t, 0, m.VentilationLatentLoad(55, 55, 26, 26), tolerance)
	assert.Less(t, m.VentilationLatentLoad(60, 20, 24, 24), 0.0, "drier outdoor air is a negative load")
}

func TestVentilationLoadsScaleWithOccupants(t *testing.T) {
	m := newTestModel(t, func(p *Params) { p.Room.Occupants = 0 })

	assert.Zero(t, m.VentilationSensibleLoad(24, 34))
	assert.Zero(t, m.VentilationLatentLoad(50, 70, 24, 34))
}

func TestWallGain(t *testing.T) {
	m := newTestModel(t)

	assert.InDelta(t, 37.0, m.SolAirTemperature(34), tolerance)
	assert.InDelta(t, 0.78, m.WallGain(24, 34), tolerance)
	// Solar excess on the outer surface keeps the wall gain positive.
	assert.InDelta(t, 0.18, m.WallGain(24, 24), tolerance)
}

func TestWindowGain(t *testing.T) {
	m := newTestModel(t)

	assert.InDelta(t, 0.364, m.WindowGain(24, 34), tolerance)
	assert.InDelta(t, 0.3, m.WindowGain(24, 24), tolerance, "only solar at equal temperatures")
}

func TestInternalGains(t *testing.T) {
	m := newTestModel(t)
	b := m.InternalGains()

	assert.InDelta(t, 0.3888, b.Appliances, tolerance)
	assert.InDelta(t, 0.26, b.Occupants, tolerance)
	assert.InDelta(t, 0.03, b.Lighting, tolerance)
	assert.InDelta(t, 0.1, b.Auxiliary, tolerance)
	assert.Zero(t, b.Total)
}

func TestTotalHeatGain(t *testing.T) {
	m := newTestModel(t)
	b := m.TotalHeatGain(referenceConditions())

	assert.InDelta(t, 2.4304661920753254, b.Total, 1e-9)
	assert.InDelta(t, 0.364, b.Window, tolerance, "window is reported even when excluded")

	equal := m.TotalHeatGain(Conditions{
		IndoorTemperature:  24,
		OutdoorTemperature: 24,
		IndoorHumidity:     50,
		OutdoorHumidity:    50,
	})
	assert.InDelta(t, 0.9588, equal.Total, tolerance)
}

func TestTotalHeatGainIncludeWindow(t *testing.T) {
	without := newTestModel(t).TotalHeatGain(referenceConditions())
	with := newTestModel(t, func(p *Params) { p.Gains.IncludeWindow = true }).TotalHeatGain(referenceConditions())

	assert.InDelta(t, without.Total+0.364, with.Total, 1e-9)
}

func TestDynamicCOP(t *testing.T) {
	m := newTestModel(t)

	assert.InDelta(t, 3.25, m.DynamicCOP(24, 34), tolerance)
	assert.InDelta(t, 3.25, m.DynamicCOP(34, 24), tolerance)
	assert.InDelta(t, 4.25, m.DynamicCOP(24, 24), tolerance)
}

func TestEnergyConsumption(t *testing.T) {
	m := newTestModel(t)

	p, err := m.EnergyConsumption(referenceConditions())
	require.NoError(t, err)
	assert.InDelta(t, 0.7478357514077925, p, 1e-9)
}

func TestEnergyConsumptionNonPositiveCOP(t *testing.T) {
	m := newTestModel(t)
	c := referenceConditions()
	c.OutdoorTemperature = c.IndoorTemperature + 42.5

	_, err := m.EnergyConsumption(c)
	assert.ErrorIs(t, err, ErrNonPositiveCOP)
}

func TestEnergyConsumptionPullDown(t *testing.T) {
	m := newTestModel(t, func(p *Params) { p.Unit.PullDownBand = 2 })

	c := referenceConditions() // 2 K above setpoint
	p, err := m.EnergyConsumption(c)
	require.NoError(t, err)
	assert.InDelta(t, 5.25/4.25, p, tolerance)
	assert.Less(t, p, m.Params().Unit.CoolingCapacity, "rated electrical draw, not the thermal capacity")

	c.Setpoint = 23.5
	p, err = m.EnergyConsumption(c)
	require.NoError(t, err)
	assert.InDelta(t, 0.7478357514077925, p, 1e-9, "inside the band power follows the load")
}

func TestEnergy(t *testing.T) {
	assert.InDelta(t, 0.5, Energy(2, 15*time.Minute), tolerance)
	assert.Zero(t, Energy(3, 0))
}

func TestTemperatureAfterCooling(t *testing.T) {
	m := newTestModel(t)
	q := m.TotalHeatGain(referenceConditions()).Total

	assert.InDelta(t, 23.223281761754716, m.TemperatureAfterCooling(q, 24, time.Minute), 1e-9)
	assert.InDelta(t, 24, m.TemperatureAfterCooling(5.25, 24, time.Hour), tolerance, "balanced gain holds temperature")
}

func TestTemperatureStandby(t *testing.T) {
	m := newTestModel(t)
	q := m.TotalHeatGain(referenceConditions()).Total

	assert.InDelta(t, 24.66953884841444, m.TemperatureStandby(q, 24, time.Minute), 1e-9)
	assert.Equal(t, 24.0, m.TemperatureStandby(0, 24, time.Hour))
}

func TestTemperatureWithExtraction(t *testing.T) {
	m := newTestModel(t)

	full := m.TemperatureAfterCooling(1, 24, time.Minute)
	assert.Equal(t, full, m.TemperatureWithExtraction(1, 5.25, 24, time.Minute))

	partial := m.TemperatureWithExtraction(1, 0.6*5.25, 24, time.Minute)
	assert.Greater(t, partial, full)
	assert.Less(t, partial, 24.0)
}

func TestConditionsValidate(t *testing.T) {
	c := referenceConditions()
	assert.NoError(t, c.Validate())

	c.OutdoorHumidity = 101
	assert.ErrorIs(t, c.Validate(), ErrInvalidHumidity)

	c = referenceConditions()
	c.IndoorTemperature = -300
	assert.ErrorIs(t, c.Validate(), ErrInvalidTemperature)
}

func TestValidTemperature(t *testing.T) {
	assert.True(t, ValidTemperature(-237.29))
	assert.True(t, ValidTemperature(35))
	assert.False(t, ValidTemperature(-237.3))
	assert.False(t, ValidTemperature(-237.30001))
	assert.False(t, ValidTemperature(math.NaN()))
	assert.False(t, ValidTemperature(math.Inf(1)))

	c := referenceConditions()
	c.OutdoorTemperature = -237.30001
	assert.ErrorIs(t, c.Validate(), ErrInvalidTemperature)
}
