package ports

import (
	"github.com/Agrid-Dev/acmock/internal/conditioner"
	"github.com/Agrid-Dev/acmock/internal/thermal"
)

// ConditionerService is the control-plane port used by controllers (HTTP/MQTT/Modbus).
type ConditionerService interface {
	Get() conditioner.Snapshot
	Loads() thermal.Breakdown
	SetEnabled(bool)
	SetSetpoint(float64) error
	SetMinMax(min, max float64) error
	SetMode(conditioner.Mode) error
	SetFanSpeed(conditioner.FanSpeed) error
	SetIndoorHumidity(float64) error
	SetOutdoor(temperature, humidity float64) error
	ResetEnergy()
}
