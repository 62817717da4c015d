// Package thermal is a lumped-parameter heat balance of one room cooled
// by one air-conditioning unit. Loads are in kW and positive when heat
// enters the room.
package thermal

import (
	"math"
	"time"
)

// Model is immutable once built and safe for concurrent use.
type Model struct {
	params Params

	floorArea float64 // m2
	volume    float64 // m3
	wallArea  float64 // m2
	airflow   float64 // m3/s of outdoor air
}

func New(params Params) (*Model, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	r := params.Room
	m := &Model{params: params}
	m.floorArea = r.Length * r.Width
	m.volume = m.floorArea * r.Height
	m.wallArea = r.Width * r.Height
	m.airflow = float64(r.Occupants) * params.Gains.VentilationPerPerson * CFM
	return m, nil
}

func (m *Model) Params() Params { return m.params }
func (m *Model) FloorArea() float64 { return m.floorArea }
func (m *Model) Volume() float64 { return m.volume }
func (m *Model) WallArea() float64 { return m.wallArea }
func (m *Model) Airflow() float64 { return m.airflow }

// Conditions is the set of inputs of one heat balance evaluation.
type Conditions struct {
	IndoorTemperature  float64 // deg C
	OutdoorTemperature float64 // deg C
	IndoorHumidity     float64 // %
	OutdoorHumidity    float64 // %
	Setpoint           float64 // deg C
}

func (c Conditions) Validate() error {
	if c.IndoorHumidity < 0 || c.IndoorHumidity > 100 || c.OutdoorHumidity < 0 || c.OutdoorHumidity > 100 {
		return ErrInvalidHumidity
	}
	if !ValidTemperature(c.IndoorTemperature) || !ValidTemperature(c.OutdoorTemperature) {
		return ErrInvalidTemperature
	}
	return nil
}

type Breakdown struct {
	VentilationSensible float64
	VentilationLatent   float64
	Wall                float64
	Window              float64
	Appliances          float64
	Occupants           float64
	Lighting            float64
	Auxiliary           float64
	Total               float64
}

// VentilationSensibleLoad is the sensible load of outdoor air replacing
// indoor air.
func (m *Model) VentilationSensibleLoad(tIn, tOut float64) float64 {
	a := m.params.Air
	return m.airflow * a.Density * a.SpecificHeat * (tOut - tIn)
}

// VentilationLatentLoad is the load of the moisture carried by outdoor
// air, from the humidity ratio difference.
func (m *Model) VentilationLatentLoad(rhIn, rhOut, tIn, tOut float64) float64 {
	a := m.params.Air
	wIn := HumidityRatio(rhIn, tIn, a.AtmosphericPressure)
	wOut := HumidityRatio(rhOut, tOut, a.AtmosphericPressure)
	return m.airflow * a.Density * a.LatentHeat * (wOut - wIn)
}

// SolAirTemperature is the outdoor wall surface temperature raised by
// absorbed solar irradiance.
func (m *Model) SolAirTemperature(tOut float64) float64 {
	e := m.params.Envelope
	return tOut + e.SolarIrradiance*e.Absorptivity/e.OutsideConvection
}

func (m *Model) WallGain(tIn, tOut float64) float64 {
	e := m.params.Envelope
	return e.WallU * m.wallArea * (m.SolAirTemperature(tOut) - tIn) * 0.001
}

// WindowGain is conduction through the glazing plus transmitted solar.
func (m *Model) WindowGain(tIn, tOut float64) float64 {
	e := m.params.Envelope
	area := m.params.Room.WindowArea
	conduction := e.WindowU * area * (tOut - tIn)
	solar := area * e.SHGC * e.SolarIrradiance
	return (conduction + solar) * 0.001
}

// InternalGains fills the occupant, appliance, lighting and auxiliary
// terms. They do not depend on temperatures.
func (m *Model) InternalGains() Breakdown {
	g := m.params.Gains
	n := float64(m.params.Room.Occupants)
	return Breakdown{
		Appliances: g.ApplianceDensity * m.floorArea * 0.001,
		Occupants:  n * (g.SensiblePerPerson + g.LatentPerPerson) * 0.001,
		Lighting:   g.Lighting * 0.001,
		Auxiliary:  g.Auxiliary * 0.001,
	}
}

func (m *Model) TotalHeatGain(c Conditions) Breakdown {
	b := m.InternalGains()
	b.VentilationSensible = m.VentilationSensibleLoad(c.IndoorTemperature, c.OutdoorTemperature)
	b.VentilationLatent = m.VentilationLatentLoad(c.IndoorHumidity, c.OutdoorHumidity, c.IndoorTemperature, c.OutdoorTemperature)
	b.Wall = m.WallGain(c.IndoorTemperature, c.OutdoorTemperature)
	b.Window = m.WindowGain(c.IndoorTemperature, c.OutdoorTemperature)

	b.Total = b.VentilationSensible + b.VentilationLatent + b.Wall +
		b.Appliances + b.Occupants + b.Lighting + b.Auxiliary
	if m.params.Gains.IncludeWindow {
		b.Total += b.Window
	}
	return b
}

// DynamicCOP degrades the rated COP linearly with the indoor/outdoor
// temperature difference.
func (m *Model) DynamicCOP(tIn, tOut float64) float64 {
	u := m.params.Unit
	return u.RatedCOP - u.COPSlope*math.Abs(tIn-tOut)
}

// RatedPower is the electric power (kW) drawn at full capacity and rated COP.
func (m *Model) RatedPower() float64 {
	u := m.params.Unit
	return u.CoolingCapacity / u.RatedCOP
}

// EnergyConsumption returns the electric power (kW) the unit draws to
// remove the total heat gain under c.
func (m *Model) EnergyConsumption(c Conditions) (float64, error) {
	u := m.params.Unit
	if u.PullDownBand > 0 && c.IndoorTemperature-c.Setpoint >= u.PullDownBand {
		return m.RatedPower(), nil
	}
	cop := m.DynamicCOP(c.IndoorTemperature, c.OutdoorTemperature)
	if cop <= 0 {
		return 0, ErrNonPositiveCOP
	}
	return m.TotalHeatGain(c).Total / cop, nil
}

// Energy converts a power (kW) held for dt into kWh.
func Energy(power float64, dt time.Duration) float64 {
	return power * dt.Hours()
}

// HeatCapacity is the thermal mass of the room air in kJ/K.
func (m *Model) HeatCapacity() float64 {
	a := m.params.Air
	return a.Density * m.volume * a.SpecificHeat
}

// TemperatureWithExtraction advances the room temperature from tInit by
// one explicit Euler step of dt, with qGain entering and qRemoved
// extracted by the unit.
func (m *Model) TemperatureWithExtraction(qGain, qRemoved, tInit float64, dt time.Duration) float64 {
	return tInit + (qGain-qRemoved)/m.HeatCapacity()*dt.Seconds()
}

func (m *Model) TemperatureAfterCooling(qGain, tInit float64, dt time.Duration) float64 {
	return m.TemperatureWithExtraction(qGain, m.params.Unit.CoolingCapacity, tInit, dt)
}

func (m *Model) TemperatureStandby(qGain, tInit float64, dt time.Duration) float64 {
	return m.TemperatureWithExtraction(qGain, 0, tInit, dt)
}
