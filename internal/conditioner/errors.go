package conditioner

import (
	"errors"

	"github.com/Agrid-Dev/acmock/internal/thermal"
)

var (
	ErrInvalidMode                = errors.New("invalid mode")
	ErrInvalidFanSpeed            = errors.New("invalid fan speed")
	ErrInvalidMinMax              = errors.New("invalid min/max setpoints")
	ErrSetpointOutOfRange         = errors.New("setpoint out of range")
	ErrInvalidHumidity            = errors.New("relative humidity must be within [0, 100]")
	ErrInvalidTemperature         = thermal.ErrInvalidTemperature
	ErrInvalidRegulatorHysteresis = errors.New("trigger hysteresis must be greater or equal to target hysteresis")
	ErrInvalidTimeScale           = errors.New("time scale must be strictly positive")
	ErrMissingModel               = errors.New("thermal model is required")
)
