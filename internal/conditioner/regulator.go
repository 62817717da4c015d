package conditioner

type RegulatorParams struct {
	TriggerHysteresis float64 // K above setpoint at which the compressor starts
	TargetHysteresis  float64 // K below setpoint at which it stops (target reached)
}

func (params *RegulatorParams) Validate() error {
	if params.TargetHysteresis > params.TriggerHysteresis || params.TargetHysteresis < 0 {
		return ErrInvalidRegulatorHysteresis
	}
	return nil
}

// Regulator switches the compressor on and off inside a hysteresis band
// around the setpoint. It carries no other control action.
type Regulator struct {
	params  RegulatorParams
	running bool
}

func NewRegulator(params RegulatorParams) *Regulator {
	return &Regulator{params: params}
}

// Update returns whether the compressor runs for the next step.
func (r *Regulator) Update(enabled bool, mode Mode, setpoint, indoor float64) bool {
	if !enabled || mode != ModeCool {
		r.running = false
		return false
	}
	if !r.running && indoor > setpoint+r.params.TriggerHysteresis {
		r.running = true
	} else if r.running && indoor <= setpoint-r.params.TargetHysteresis {
		r.running = false
	}
	return r.running
}

// Target is the temperature the room is pulled to while the compressor runs.
func (r *Regulator) Target(setpoint float64) float64 {
	if r.running {
		return setpoint - r.params.TargetHysteresis
	}
	return setpoint
}
