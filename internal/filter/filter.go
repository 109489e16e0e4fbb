// Package filter contains the first-order low-pass primitives shared by the
// autopilot and flight-path loops.
package filter

import "math"

// LowPass blends value toward target: value*(1-c) + target*c.
// c is clamped to [0,1].
func LowPass(value, target, c float64) float64 {
	if c <= 0 || math.IsNaN(c) {
		return value
	}
	if c >= 1 {
		return target
	}
	return value*(1-c) + target*c
}

// Coefficient maps a proximity factor f in [0,1] onto [min,max]. f is
// clamped, so callers may pass raw ratios.
func Coefficient(min, max, f float64) float64 {
	if math.IsNaN(f) || f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	return min + (max-min)*f
}

// Proximity is |err|/scale clamped to [0,1]: 0 at the set point, 1 at or
// beyond scale. A non-positive scale yields 1.
func Proximity(err, scale float64) float64 {
	if math.IsNaN(err) {
		return 0
	}
	if scale <= 0 {
		return 1
	}
	return math.Min(math.Abs(err)/scale, 1)
}

// Interpolator is a stateful low-pass value chasing Target at Factor per Tick.
//
// Not safe for concurrent use.
type Interpolator struct {
	Factor float64
	Target float64
	Value  float64
}

func (i *Interpolator) Tick() float64 {
	i.Value = LowPass(i.Value, i.Target, i.Factor)
	return i.Value
}
