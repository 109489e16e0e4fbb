package sim

import (
	"fmt"
	"sync"

	"simlink/internal/metrics"
	"simlink/internal/state"
	"simlink/internal/units"
)

// ApplySample folds s into ac, converting to the bridge convention
// (nose-up and right-bank positive, SI speeds).
func ApplySample(ac *state.AircraftState, s Sample) {
	ac.LatitudeRad = s.LatitudeRad
	ac.LongitudeRad = s.LongitudeRad

	ac.PitchRad = -s.PitchRad
	ac.YawRad = s.HeadingRad
	ac.RollRad = -s.BankRad

	ac.AirSpeedMs = units.KnotsToMs(s.AirSpeedKt)
	ac.PressureHPa = s.PressureHPa
	ac.TemperatureC = s.TemperatureC

	ac.Computed.SlipSkidG = s.SlipSkidG
	ac.Computed.WindDirectionDeg = s.WindDirectionDeg
	ac.Computed.WindSpeedMs = units.KnotsToMs(s.WindSpeedKt)
}

// Value is a command with its value in Source units.
type Value struct {
	Command Command
	Value   float64
}

// Commands lists every control input implied by the panel command and the
// autopilot outputs. Throttle, elevator and ailerons come from
// ac.Computed, which already tracks the manual input when the matching
// autopilot mode is off.
func Commands(ac state.AircraftState, rc state.RemoteCommand) []Value {
	return []Value{
		{Throttle1, ac.Computed.Throttle},
		{Throttle2, ac.Computed.Throttle},
		{Elevator, ac.Computed.Elevator},
		{Ailerons, ac.Computed.Ailerons},
		{Rudder, rc.Rudder},
		{Flaps, rc.Flaps},
		{Spoilers, rc.Spoilers},
		{Gear, boolValue(rc.LandingGear)},
		{StrobeLights, boolValue(rc.StrobeLights)},
		{AutopilotSpeed, units.MsToKnots(rc.AutopilotAirSpeedMs)},
		{HeadingBug, units.RadToDeg(units.Wrap2Pi(rc.AutopilotHeadingRad))},
		{AutopilotAltitude, units.MetersToFeet(rc.AutopilotAltitudeM)},
		{Altimeter, units.PaToHPa(rc.AltimeterPressurePa)},
		{LevelChange, boolValue(rc.LevelChange)},
		{HeadingHold, boolValue(rc.HeadingHold)},
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Translator forwards Commands to a Source, skipping values that have not
// changed since they were last delivered.
type Translator struct {
	metrics *metrics.Metrics

	mu   sync.Mutex
	sent [numCommands]float64
	have [numCommands]bool
}

func NewTranslator(m *metrics.Metrics) *Translator {
	return &Translator{metrics: m}
}

// Push sends the changed commands for ac/rc to dst. A failed command is
// retried on the next Push. Returns how many were delivered and the first
// error seen.
func (t *Translator) Push(dst Applier, ac state.AircraftState, rc state.RemoteCommand) (int, error) {
	if dst == nil {
		return 0, ErrNotConnected
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	sent := 0
	var firstErr error
	for _, v := range Commands(ac, rc) {
		if t.have[v.Command] && t.sent[v.Command] == v.Value {
			continue
		}
		if err := dst.Apply(v.Command, v.Value); err != nil {
			t.have[v.Command] = false
			if firstErr == nil {
				firstErr = fmt.Errorf("apply %s: %w", v.Command, err)
			}
			continue
		}
		t.sent[v.Command] = v.Value
		t.have[v.Command] = true
		sent++
	}
	t.metrics.SimCommands(sent)
	return sent, firstErr
}

// Forget drops the delivered-value cache so the next Push resends
// everything. Call after the simulator reconnects.
func (t *Translator) Forget() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.have = [numCommands]bool{}
}
