package autopilot

import "simlink/internal/units"

// trend extrapolates a channel from its last two samples.
//
// Not safe for concurrent use.
type trend struct {
	horizon float64 // seconds
	wrap    bool    // angular channel: deltas are wrapped to [-pi, pi]

	prev     float64
	havePrev bool
}

// predict records cur and returns cur + horizon*delta/dt. The first sample
// (and any non-finite one) predicts no motion.
func (t *trend) predict(cur, dt float64) float64 {
	if !units.Finite(cur) {
		if t.havePrev {
			return t.prev
		}
		return 0
	}

	delta := 0.0
	if t.havePrev {
		delta = cur - t.prev
		if t.wrap {
			delta = units.WrapPi(delta)
		}
	}
	t.prev = cur
	t.havePrev = true

	if dt <= 0 {
		return cur
	}
	return cur + t.horizon*delta/dt
}

func (t *trend) reset() {
	t.prev = 0
	t.havePrev = false
}
