package thermal

import "math"

// Magnus coefficients for saturation vapour pressure over water.
const (
	magnusA = 0.61078 // kPa
	magnusB = 17.27
	magnusC = 237.3 // deg C
)

// ValidTemperature reports whether t (deg C) is finite and above the pole
// of the Magnus formula.
func ValidTemperature(t float64) bool {
	return t > -magnusC && !math.IsInf(t, 1)
}

// SaturationPressure returns the saturation vapour pressure (kPa) of
// water at temperature t (deg C).
func SaturationPressure(t float64) float64 {
	return magnusA * math.Exp(magnusB*t/(t+magnusC))
}

// HumidityRatio returns the mass of water vapour per mass of dry air
// (kg/kg) for relative humidity rh (%) at temperature t (deg C) and
// atmospheric pressure patm (kPa).
func HumidityRatio(rh, t, patm float64) float64 {
	pv := rh / 100 * SaturationPressure(t)
	return 0.622 * pv / (patm - pv)
}
