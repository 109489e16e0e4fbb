// Package units holds the unit conversions used at the wire and simulator
// boundaries. Everything inside the bridge is SI: meters, meters/second,
// radians, pascals.
package units

import "math"

const (
	metersPerFoot = 0.3048
	msPerKnot     = 0.51444444
	paPerHPa      = 100.0
	hPaPerInHg    = 33.8638866667

	// StandardPressurePa is the ISA sea-level pressure, also the default
	// altimeter setting.
	StandardPressurePa = 101325.0
)

// International barometric formula constants.
const (
	baroT0 = 288.15  // K
	baroL  = 0.0065  // K/m
	baroR  = 287.058 // J/(kg·K)
	baroG  = 9.80665 // m/s²
	baroN  = baroR * baroL / baroG
)

func FeetToMeters(ft float64) float64 { return ft * metersPerFoot }
func MetersToFeet(m float64) float64  { return m / metersPerFoot }

func KnotsToMs(kt float64) float64 { return kt * msPerKnot }
func MsToKnots(ms float64) float64 { return ms / msPerKnot }

func DegToRad(deg float64) float64 { return deg / 180 * math.Pi }
func RadToDeg(rad float64) float64 { return rad / math.Pi * 180 }

func HPaToPa(hpa float64) float64    { return hpa * paPerHPa }
func PaToHPa(pa float64) float64     { return pa / paPerHPa }
func InHgToHPa(inhg float64) float64 { return inhg * hPaPerInHg }
func HPaToInHg(hpa float64) float64  { return hpa / hPaPerInHg }

// PressureToAltitude returns the pressure altitude in meters of pressurePa
// relative to referencePa. Non-positive or non-finite inputs yield 0.
func PressureToAltitude(referencePa, pressurePa float64) float64 {
	if !(referencePa > 0) || !(pressurePa > 0) || math.IsInf(referencePa, 0) || math.IsInf(pressurePa, 0) {
		return 0
	}
	return baroT0 / baroL * (1 - math.Pow(pressurePa/referencePa, baroN))
}

// AltitudeToPressure inverts PressureToAltitude. Altitudes at or above the
// top of the model (T0/L) yield 0.
func AltitudeToPressure(referencePa, altitudeM float64) float64 {
	if !(referencePa > 0) {
		return 0
	}
	base := 1 - altitudeM*baroL/baroT0
	if base <= 0 {
		return 0
	}
	return referencePa * math.Pow(base, 1/baroN)
}

// WrapPi maps an angle to [-π, π].
func WrapPi(rad float64) float64 {
	if math.IsNaN(rad) || math.IsInf(rad, 0) {
		return 0
	}
	rad = math.Mod(rad+math.Pi, 2*math.Pi)
	if rad < 0 {
		rad += 2 * math.Pi
	}
	return rad - math.Pi
}

// Wrap2Pi maps an angle to [0, 2π).
func Wrap2Pi(rad float64) float64 {
	if math.IsNaN(rad) || math.IsInf(rad, 0) {
		return 0
	}
	rad = math.Mod(rad, 2*math.Pi)
	if rad < 0 {
		rad += 2 * math.Pi
	}
	return rad
}

// Clamp01 clamps v to [0,1]; NaN maps to 0.
func Clamp01(v float64) float64 {
	return Clamp(v, 0, 1)
}

// Clamp clamps v to [lo,hi]; NaN maps to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Finite reports whether v is neither NaN nor ±Inf.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
