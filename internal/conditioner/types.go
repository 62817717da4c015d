package conditioner

import "fmt"

// Mode is an integer enum.
type Mode int

const (
	ModeUnknown Mode = iota
	ModeCool
	ModeFan
)

func (m Mode) Valid() bool {
	return m == ModeCool || m == ModeFan
}

func (m Mode) String() string {
	switch m {
	case ModeCool:
		return "cool"
	case ModeFan:
		return "fan"
	default:
		return "unknown"
	}
}

// ParseMode is used by the config layer and the controllers.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "cool":
		return ModeCool, nil
	case "fan":
		return ModeFan, nil
	default:
		return ModeUnknown, fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// FanSpeed is an integer enum.
type FanSpeed int

const (
	FanUnknown FanSpeed = iota
	FanAuto
	FanLow
	FanMedium
	FanHigh
)

func (f FanSpeed) Valid() bool {
	return f == FanAuto || f == FanLow || f == FanMedium || f == FanHigh
}

func (f FanSpeed) String() string {
	switch f {
	case FanAuto:
		return "auto"
	case FanLow:
		return "low"
	case FanMedium:
		return "medium"
	case FanHigh:
		return "high"
	default:
		return "unknown"
	}
}

// CapacityFactor is the share of the rated cooling capacity the unit
// extracts at this fan speed.
func (f FanSpeed) CapacityFactor() float64 {
	switch f {
	case FanLow:
		return 0.6
	case FanMedium:
		return 0.8
	case FanAuto, FanHigh:
		return 1
	default:
		return 0
	}
}

func ParseFanSpeed(s string) (FanSpeed, error) {
	switch s {
	case "auto":
		return FanAuto, nil
	case "low":
		return FanLow, nil
	case "medium":
		return FanMedium, nil
	case "high":
		return FanHigh, nil
	default:
		return FanUnknown, fmt.Errorf("%w: %q", ErrInvalidFanSpeed, s)
	}
}
