package thermal

import "errors"

var (
	ErrInvalidGeometry    = errors.New("room dimensions must be strictly positive")
	ErrInvalidOccupants   = errors.New("number of occupants must be greater or equal to zero")
	ErrInvalidAir         = errors.New("air properties must be strictly positive")
	ErrInvalidEnvelope    = errors.New("invalid envelope coefficients")
	ErrInvalidGains       = errors.New("internal gains must be greater or equal to zero")
	ErrInvalidUnit        = errors.New("cooling capacity and rated COP must be strictly positive")
	ErrInvalidHumidity    = errors.New("relative humidity must be within [0, 100]")
	ErrInvalidTemperature = errors.New("temperature below the saturation formula domain")
	ErrNonPositiveCOP     = errors.New("dynamic COP is not positive")
)
