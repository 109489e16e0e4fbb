// Package flightpath derives ground speed and the flight-path vector from
// successive geodetic fixes.
package flightpath

import (
	"log"
	"math"
	"time"

	"github.com/tevino/abool/v2"

	"simlink/internal/filter"
	"simlink/internal/state"
	"simlink/internal/units"
)

const (
	DefaultInterval = 500 * time.Millisecond
	DefaultFilter   = 0.2

	// Below this share of the displacement the motion counts as vertical.
	minHorizontalFraction = 1e-6
)

type Config struct {
	// Interval is the tick period; ground speed is |delta| / Interval.
	Interval time.Duration
	Model    EarthModel
	// Filter is the low-pass coefficient applied to both angles.
	Filter float64
}

// Computer keeps the previous Cartesian fix and the filtered angles.
//
// Step and Tick must be driven from a single periodic task; Reset may be
// called from anywhere.
type Computer struct {
	cfg Config

	resetPending *abool.AtomicBool

	prev     vec3
	havePrev bool

	pitch filter.Interpolator
	yaw   filter.Interpolator
}

func New(cfg Config) *Computer {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Filter <= 0 || cfg.Filter > 1 {
		cfg.Filter = DefaultFilter
	}
	return &Computer{
		cfg:          cfg,
		resetPending: abool.New(),
		pitch:        filter.Interpolator{Factor: cfg.Filter},
		yaw:          filter.Interpolator{Factor: cfg.Filter},
	}
}

// Result is one tick's output.
type Result struct {
	GroundSpeedMs      float64
	FlightPathPitchRad float64
	FlightPathYawRad   float64
}

// Step consumes a fix and returns the derived values.
func (c *Computer) Step(latRad, lonRad, altM, yawRad float64) Result {
	if c.resetPending.SetToIf(true, false) {
		c.clear()
	}
	if !units.Finite(latRad) || !units.Finite(lonRad) || !units.Finite(altM) || !units.Finite(yawRad) {
		return Result{FlightPathPitchRad: c.pitch.Value, FlightPathYawRad: c.yaw.Value}
	}

	pos := toCartesian(c.cfg.Model, latRad, lonRad, altM)
	var delta vec3
	if c.havePrev {
		delta = pos.sub(c.prev)
	}
	c.prev = pos
	c.havePrev = true

	length := delta.length()
	if length == 0 {
		c.pitch.Value, c.pitch.Target = 0, 0
		c.yaw.Value, c.yaw.Target = 0, 0
		return Result{}
	}

	// Earth frame -> local frame (x south, y east, z up) -> heading frame.
	v := delta.rotateZ(-lonRad).rotateY(-math.Pi/2 + latRad).rotateZ(yawRad)

	c.pitch.Target = math.Asin(units.Clamp(v.z/length, -1, 1))
	// ECEF rounding leaves a residue of about 1e-9 m in the horizontal
	// components, so purely vertical motion needs a tolerance.
	if math.Hypot(v.x, v.y) <= minHorizontalFraction*length {
		c.yaw.Target = 0
	} else {
		c.yaw.Target = -math.Atan(v.y / v.x)
	}

	return Result{
		GroundSpeedMs:      length / c.cfg.Interval.Seconds(),
		FlightPathPitchRad: c.pitch.Tick(),
		FlightPathYawRad:   c.yaw.Tick(),
	}
}

// Reset forgets the previous fix; the next Step reports a stationary aircraft.
func (c *Computer) Reset() {
	c.resetPending.Set()
}

func (c *Computer) clear() {
	c.havePrev = false
	c.pitch.Value, c.pitch.Target = 0, 0
	c.yaw.Value, c.yaw.Target = 0, 0
}

// Tick reads the current fix from the store and publishes the result.
func (c *Computer) Tick(s *state.Store) {
	if s == nil {
		log.Printf("flightpath tick skipped: store is nil")
		return
	}
	s.UpdateAircraft(func(ac *state.AircraftState) {
		r := c.Step(ac.LatitudeRad, ac.LongitudeRad, ac.Computed.AltitudeM, ac.YawRad)
		ac.Computed.GroundSpeedMs = r.GroundSpeedMs
		ac.Computed.FlightPathPitchRad = r.FlightPathPitchRad
		ac.Computed.FlightPathYawRad = r.FlightPathYawRad
	})
}
