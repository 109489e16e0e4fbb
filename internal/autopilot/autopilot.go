// Package autopilot turns the panel's speed, altitude and heading targets
// into throttle, elevator and aileron positions plus flight-director cues.
//
// Every channel follows the same shape: predict where the aircraft will be a
// few seconds out, pick a binary target from the sign of the predicted error,
// then low-pass toward it with a coefficient that grows with the error. Large
// errors move the output quickly; near the set point it barely moves.
package autopilot

import (
	"log"
	"math"
	"time"

	"github.com/tevino/abool/v2"

	"simlink/internal/filter"
	"simlink/internal/state"
	"simlink/internal/units"
)

// TickInterval is the nominal period between Tick calls.
const TickInterval = time.Second / 30

// Control-law constants, declared in the units pilots use.
const (
	speedHorizonS    = 2.0
	altitudeHorizonS = 2.0
	pitchHorizonS    = 1.0
	rollHorizonS     = 1.0
	yawHorizonS      = 3.0

	groundSpeedKt      = 20.0
	speedMarginKt      = 10.0
	climbPowerMarginFt = 150.0
	levelBandFt        = 50.0
	altitudeScaleFt    = 300.0

	climbAngleDeg   = 5.0
	descentAngleDeg = -3.0
	fdPitchScaleDeg = 5.0
	pitchErrorDeg   = 3.0

	maxBankDeg      = 25.0
	headingScaleDeg = 15.0
	fdRollScaleDeg  = 10.0
	rollErrorDeg    = 5.0

	// Fraction of full travel the binary elevator/aileron targets use,
	// centered on neutral (0.5).
	elevatorAuthority = 0.8
	aileronAuthority  = 0.6
)

// SI versions of the constants above.
var (
	groundSpeedMs      = units.KnotsToMs(groundSpeedKt)
	speedMarginMs      = units.KnotsToMs(speedMarginKt)
	climbPowerMarginM  = units.FeetToMeters(climbPowerMarginFt)
	levelBandM         = units.FeetToMeters(levelBandFt)
	altitudeScaleM     = units.FeetToMeters(altitudeScaleFt)
	climbAngleRad      = units.DegToRad(climbAngleDeg)
	descentAngleRad    = units.DegToRad(descentAngleDeg)
	fdPitchScaleRad    = units.DegToRad(fdPitchScaleDeg)
	pitchErrorScaleRad = units.DegToRad(pitchErrorDeg)
	maxBankRad         = units.DegToRad(maxBankDeg)
	headingScaleRad    = units.DegToRad(headingScaleDeg)
	fdRollScaleRad     = units.DegToRad(fdRollScaleDeg)
	rollErrorScaleRad  = units.DegToRad(rollErrorDeg)
)

// coefficient bounds per channel, applied per tick
type coeff struct{ min, max float64 }

var (
	throttleCoeff = coeff{0.002, 0.05}
	fdPitchCoeff  = coeff{0.005, 0.1}
	elevatorCoeff = coeff{0.002, 0.03}
	fdRollCoeff   = coeff{0.005, 0.1}
	aileronsCoeff = coeff{0.002, 0.03}
)

func (c coeff) at(f float64) float64 { return filter.Coefficient(c.min, c.max, f) }

// Engine holds the trend and filter state between ticks. Tick and Step must
// be called from one goroutine; Reset may be called from any.
type Engine struct {
	dt float64

	speed    trend
	altitude trend
	pitch    trend
	roll     trend
	yaw      trend

	// altimeterPa is the reference the altitude trend was built on.
	altimeterPa float64

	throttle float64
	fdPitch  float64
	elevator float64
	fdRoll   float64
	ailerons float64

	resetPending *abool.AtomicBool
}

// New returns an engine for the given tick period (TickInterval when zero).
func New(interval time.Duration) *Engine {
	if interval <= 0 {
		interval = TickInterval
	}
	e := &Engine{
		dt:           interval.Seconds(),
		speed:        trend{horizon: speedHorizonS},
		altitude:     trend{horizon: altitudeHorizonS},
		pitch:        trend{horizon: pitchHorizonS},
		roll:         trend{horizon: rollHorizonS},
		yaw:          trend{horizon: yawHorizonS, wrap: true},
		resetPending: abool.New(),
	}
	e.clear()
	return e
}

// Reset drops trend and filter state before the next tick. Used when the
// simulator reconnects and the previous samples no longer describe the
// same flight.
func (e *Engine) Reset() {
	e.resetPending.Set()
}

func (e *Engine) clear() {
	e.speed.reset()
	e.altitude.reset()
	e.pitch.reset()
	e.roll.reset()
	e.yaw.reset()
	e.altimeterPa = 0
	e.throttle = 0
	e.fdPitch = 0
	e.elevator = 0.5
	e.fdRoll = 0
	e.ailerons = 0.5
}

// Tick runs one evaluation with both shared records locked.
func (e *Engine) Tick(s *state.Store) {
	if s == nil {
		log.Printf("autopilot tick skipped: store is nil")
		return
	}
	s.Update(func(ac *state.AircraftState, rc *state.RemoteCommand) {
		e.Step(ac, *rc)
	})
}

// Step evaluates every channel and writes the outputs into ac.Computed.
// ac.Computed.AltitudeM must already reflect rc's altimeter reference.
func (e *Engine) Step(ac *state.AircraftState, rc state.RemoteCommand) {
	if e.resetPending.SetToIf(true, false) {
		e.clear()
	}
	// Resetting the altimeter shifts the indicated altitude in one step.
	if rc.AltimeterPressurePa != e.altimeterPa {
		e.altitude.reset()
		e.altimeterPa = rc.AltimeterPressurePa
	}

	speed := e.speed.predict(ac.AirSpeedMs, e.dt)
	altitude := e.altitude.predict(ac.Computed.AltitudeM, e.dt)
	pitch := e.pitch.predict(ac.PitchRad, e.dt)
	roll := e.roll.predict(ac.RollRad, e.dt)
	yaw := e.yaw.predict(ac.YawRad, e.dt)

	airborne := ac.AirSpeedMs > groundSpeedMs
	speedErr := rc.AutopilotAirSpeedMs - speed
	altErr := rc.AutopilotAltitudeM - altitude

	// Throttle.
	throttleTarget := 0.0
	if speedErr >= 0 {
		throttleTarget = 1
	}
	if airborne {
		switch {
		case altErr > climbPowerMarginM && speedErr >= -speedMarginMs:
			throttleTarget = 1
		case altErr < -climbPowerMarginM && speedErr <= speedMarginMs:
			throttleTarget = 0
		}
	}
	e.throttle = settle(e.throttle, filter.LowPass(e.throttle, throttleTarget,
		throttleCoeff.at(filter.Proximity(speedErr, speedMarginMs))))
	if !rc.AutoThrottle {
		e.throttle = units.Clamp01(rc.Throttle)
	}

	// Flight-director pitch.
	pitchTarget := 0.0
	if airborne {
		switch {
		case altErr > levelBandM && speedErr <= speedMarginMs:
			pitchTarget = climbAngleRad
		case altErr < -levelBandM && speedErr >= -speedMarginMs:
			pitchTarget = descentAngleRad
		}
	}
	f := filter.Proximity(pitchTarget-e.fdPitch, fdPitchScaleRad) *
		filter.Proximity(speedErr, speedMarginMs) *
		filter.Proximity(altErr, altitudeScaleM)
	e.fdPitch = finiteOr(e.fdPitch, filter.LowPass(e.fdPitch, pitchTarget, fdPitchCoeff.at(f)))

	// Elevator: below neutral is nose-up.
	pitchErr := e.fdPitch - pitch
	elevatorTarget := 0.5 + elevatorAuthority/2
	if pitchErr >= 0 {
		elevatorTarget = 0.5 - elevatorAuthority/2
	}
	e.elevator = settle(e.elevator, filter.LowPass(e.elevator, elevatorTarget,
		elevatorCoeff.at(filter.Proximity(pitchErr, pitchErrorScaleRad))))
	if !rc.LevelChange {
		e.elevator = units.Clamp01(rc.Elevator)
	}

	// Flight-director roll toward the heading bug, shorter way round.
	headingErr := units.WrapPi(rc.AutopilotHeadingRad - yaw)
	rollTarget := 0.0
	if airborne && units.Finite(headingErr) {
		rollTarget = math.Copysign(maxBankRad*filter.Proximity(headingErr, headingScaleRad), headingErr)
	}
	f = math.Min(filter.Proximity(headingErr, headingScaleRad), filter.Proximity(rollTarget-e.fdRoll, fdRollScaleRad))
	e.fdRoll = finiteOr(e.fdRoll, filter.LowPass(e.fdRoll, rollTarget, fdRollCoeff.at(f)))

	// Ailerons: above neutral rolls right.
	rollErr := e.fdRoll - roll
	aileronsTarget := 0.5 - aileronAuthority/2
	if rollErr >= 0 {
		aileronsTarget = 0.5 + aileronAuthority/2
	}
	e.ailerons = settle(e.ailerons, filter.LowPass(e.ailerons, aileronsTarget,
		aileronsCoeff.at(filter.Proximity(rollErr, rollErrorScaleRad))))
	if !rc.HeadingHold {
		e.ailerons = units.Clamp01(rc.Ailerons)
	}

	ac.Computed.Throttle = e.throttle
	ac.Computed.FlightDirectorPitchRad = e.fdPitch
	ac.Computed.Elevator = e.elevator
	ac.Computed.FlightDirectorRollRad = e.fdRoll
	ac.Computed.Ailerons = e.ailerons
}

// settle keeps prev when next is not a number, otherwise clamps next to [0,1].
func settle(prev, next float64) float64 {
	if !units.Finite(next) {
		return prev
	}
	return units.Clamp01(next)
}

func finiteOr(prev, next float64) float64 {
	if !units.Finite(next) {
		return prev
	}
	return next
}
