package thermal

// CFM is one cubic foot per minute expressed in m3/s.
const CFM = 0.0004719

type RoomParams struct {
	Length     float64 // m
	Width      float64 // m
	Height     float64 // m
	WindowArea float64 // m2
	Occupants  int
}

type AirParams struct {
	SpecificHeat        float64 // kJ/(kg K)
	Density             float64 // kg/m3
	LatentHeat          float64 // kJ/kg, vaporisation
	AtmosphericPressure float64 // kPa
}

type EnvelopeParams struct {
	WallU             float64 // W/(m2 K)
	WindowU           float64 // W/(m2 K)
	SHGC              float64 // fraction of incident solar transmitted by the glazing
	SolarIrradiance   float64 // W/m2 on the wall and window
	Absorptivity      float64 // fraction of irradiance absorbed by the wall
	OutsideConvection float64 // W/(m2 K)
}

type GainParams struct {
	VentilationPerPerson float64 // cfm
	SensiblePerPerson    float64 // W
	LatentPerPerson      float64 // W
	ApplianceDensity     float64 // W/m2 of floor
	Lighting             float64 // W
	Auxiliary            float64 // W, compressor fan and electronics
	IncludeWindow        bool
}

type UnitParams struct {
	RatedCOP        float64
	CoolingCapacity float64 // kW
	COPSlope        float64 // COP lost per K of indoor/outdoor difference
	PullDownBand    float64 // K above setpoint at which the unit runs flat out, 0 disables
}

type Params struct {
	Room     RoomParams
	Air      AirParams
	Envelope EnvelopeParams
	Gains    GainParams
	Unit     UnitParams
}

// DefaultParams describes a 6x6x5 m room with one 10 inch concrete wall
// exposed, a 2x2 m window, two occupants and a 5.25 kW split unit.
func DefaultParams() Params {
	return Params{
		Room: RoomParams{
			Length:     6,
			Width:      6,
			Height:     5,
			WindowArea: 4,
			Occupants:  2,
		},
		Air: AirParams{
			SpecificHeat:        1.005,
			Density:             1.204,
			LatentHeat:          2430,
			AtmosphericPressure: 101.325,
		},
		Envelope: EnvelopeParams{
			WallU:             2,
			WindowU:           1.6,
			SHGC:              0.5,
			SolarIrradiance:   150,
			Absorptivity:      0.4,
			OutsideConvection: 20,
		},
		Gains: GainParams{
			VentilationPerPerson: 17,
			SensiblePerPerson:    75,
			LatentPerPerson:      55,
			ApplianceDensity:     10.8,
			Lighting:             30,
			Auxiliary:            100,
		},
		Unit: UnitParams{
			RatedCOP:        4.25,
			CoolingCapacity: 5.25,
			COPSlope:        0.1,
		},
	}
}

func (p *Params) Validate() error {
	r := p.Room
	if r.Length <= 0 || r.Width <= 0 || r.Height <= 0 || r.WindowArea < 0 {
		return ErrInvalidGeometry
	}
	if r.Occupants < 0 {
		return ErrInvalidOccupants
	}
	a := p.Air
	if a.SpecificHeat <= 0 || a.Density <= 0 || a.LatentHeat <= 0 || a.AtmosphericPressure <= 0 {
		return ErrInvalidAir
	}
	e := p.Envelope
	if e.WallU < 0 || e.WindowU < 0 || e.SolarIrradiance < 0 || e.OutsideConvection <= 0 {
		return ErrInvalidEnvelope
	}
	if !unitInterval(e.SHGC) || !unitInterval(e.Absorptivity) {
		return ErrInvalidEnvelope
	}
	g := p.Gains
	if g.VentilationPerPerson < 0 || g.SensiblePerPerson < 0 || g.LatentPerPerson < 0 ||
		g.ApplianceDensity < 0 || g.Lighting < 0 || g.Auxiliary < 0 {
		return ErrInvalidGains
	}
	u := p.Unit
	if u.RatedCOP <= 0 || u.CoolingCapacity <= 0 || u.COPSlope < 0 || u.PullDownBand < 0 {
		return ErrInvalidUnit
	}
	return nil
}

func unitInterval(v float64) bool {
	return v >= 0 && v <= 1
}
