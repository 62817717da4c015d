package testutil

import (
	"github.com/Agrid-Dev/acmock/internal/conditioner"
	"github.com/Agrid-Dev/acmock/internal/thermal"
)

// FakeConditionerService is a reusable fake implementing ports.ConditionerService.
// Put ONLY what multiple test packages need here.
type FakeConditionerService struct {
	S conditioner.Snapshot
	B thermal.Breakdown

	SetEnabledCalled bool
	SetEnabledArg    bool

	SetSetpointCalled bool
	SetSetpointArg    float64
	SetSetpointErr    error

	SetMinMaxCalled bool
	SetMinMaxMin    float64
	SetMinMaxMax    float64
	SetMinMaxErr    error

	SetModeCalled bool
	SetModeArg    conditioner.Mode
	SetModeErr    error

	SetFanSpeedCalled bool
	SetFanSpeedArg    conditioner.FanSpeed
	SetFanSpeedErr    error

	SetIndoorHumidityCalled bool
	SetIndoorHumidityArg    float64
	SetIndoorHumidityErr    error

	SetOutdoorCalled      bool
	SetOutdoorTemperature float64
	SetOutdoorHumidity    float64
	SetOutdoorErr         error

	ResetEnergyCalled bool
}

func NewFakeConditionerService() *FakeConditionerService {
	return &FakeConditionerService{
		S: conditioner.Snapshot{
			Enabled:                true,
			TemperatureSetpoint:    22,
			TemperatureSetpointMin: 16,
			TemperatureSetpointMax: 28,
			Mode:                   conditioner.ModeCool,
			FanSpeed:               conditioner.FanAuto,
			IndoorTemperature:      24,
			IndoorHumidity:         50,
			OutdoorTemperature:     34,
			OutdoorHumidity:        70,
			HeatGain:               2.43,
		},
		B: thermal.Breakdown{
			Wall:  0.78,
			Total: 2.43,
		},
	}
}

func (f *FakeConditionerService) Get() conditioner.Snapshot { return f.S }

func (f *FakeConditionerService) Loads() thermal.Breakdown { return f.B }

func (f *FakeConditionerService) SetEnabled(b bool) {
	f.SetEnabledCalled = true
	f.SetEnabledArg = b
	f.S.Enabled = b
}

func (f *FakeConditionerService) SetSetpoint(v float64) error {
	f.SetSetpointCalled = true
	f.SetSetpointArg = v
	if f.SetSetpointErr != nil {
		return f.SetSetpointErr
	}
	f.S.TemperatureSetpoint = v
	return nil
}

func (f *FakeConditionerService) SetMinMax(min, max float64) error {
	f.SetMinMaxCalled = true
	f.SetMinMaxMin = min
	f.SetMinMaxMax = max
	if f.SetMinMaxErr != nil {
		return f.SetMinMaxErr
	}
	f.S.TemperatureSetpointMin = min
	f.S.TemperatureSetpointMax = max
	return nil
}

func (f *FakeConditionerService) SetMode(m conditioner.Mode) error {
	f.SetModeCalled = true
	f.SetModeArg = m
	if f.SetModeErr != nil {
		return f.SetModeErr
	}
	f.S.Mode = m
	return nil
}

func (f *FakeConditionerService) SetFanSpeed(fs conditioner.FanSpeed) error {
	f.SetFanSpeedCalled = true
	f.SetFanSpeedArg = fs
	if f.SetFanSpeedErr != nil {
		return f.SetFanSpeedErr
	}
	f.S.FanSpeed = fs
	return nil
}

func (f *FakeConditionerService) SetIndoorHumidity(rh float64) error {
	f.SetIndoorHumidityCalled = true
	f.SetIndoorHumidityArg = rh
	if f.SetIndoorHumidityErr != nil {
		return f.SetIndoorHumidityErr
	}
	f.S.IndoorHumidity = rh
	return nil
}

func (f *FakeConditionerService) SetOutdoor(temperature, rh float64) error {
	f.SetOutdoorCalled = true
	f.SetOutdoorTemperature = temperature
	f.SetOutdoorHumidity = rh
	if f.SetOutdoorErr != nil {
		return f.SetOutdoorErr
	}
	f.S.OutdoorTemperature = temperature
	f.S.OutdoorHumidity = rh
	return nil
}

func (f *FakeConditionerService) ResetEnergy() {
	f.ResetEnergyCalled = true
	f.S.Energy = 0
}
