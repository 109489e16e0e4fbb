package packet

import (
	"math"

	"simlink/internal/state"
	"simlink/internal/units"
)

// Accepted altimeter reference range. Values outside are clamped so the
// barometric formula never sees a zero or absurd reference.
const (
	MinAltimeterPa = 85000
	MaxAltimeterPa = 110000
)

// Slip/skid is carried as a 16-bit normalized value spanning ±slipRangeG.
const slipRangeG = 1.0

// Apply writes the decoded command into rc, converting to SI units and
// clamping every field into range.
func (c Command) Apply(rc *state.RemoteCommand) {
	rc.Throttle = FromU8(c.Throttle)
	rc.Ailerons = FromU8(c.Ailerons)
	rc.Elevator = FromU8(c.Elevator)
	rc.Rudder = FromU8(c.Rudder)
	rc.Flaps = FromU8(c.Flaps)
	rc.Spoilers = FromU8(c.Spoilers)

	rc.AltimeterPressurePa = units.Clamp(float64(c.AltimeterPressurePa), MinAltimeterPa, MaxAltimeterPa)

	rc.AutopilotAirSpeedMs = float64(c.AutopilotAirSpeedMs)
	rc.AutoThrottle = c.AutoThrottle

	rc.AutopilotHeadingRad = units.DegToRad(float64(c.AutopilotHeadingDeg % 360))
	rc.HeadingHold = c.HeadingHold

	rc.AutopilotAltitudeM = float64(c.AutopilotAltitudeM)
	rc.LevelChange = c.LevelChange

	rc.LandingGear = c.LandingGear
	rc.StrobeLights = c.StrobeLights
}

// CommandFrom encodes rc back into wire units.
func CommandFrom(rc state.RemoteCommand) Command {
	return Command{
		Throttle: ToU8(rc.Throttle),
		Ailerons: ToU8(rc.Ailerons),
		Elevator: ToU8(rc.Elevator),
		Rudder:   ToU8(rc.Rudder),
		Flaps:    ToU8(rc.Flaps),
		Spoilers: ToU8(rc.Spoilers),

		AltimeterPressurePa: uint32(math.Round(units.Clamp(rc.AltimeterPressurePa, MinAltimeterPa, MaxAltimeterPa))),

		AutopilotAirSpeedMs: toU16(rc.AutopilotAirSpeedMs),
		AutoThrottle:        rc.AutoThrottle,

		AutopilotHeadingDeg: toU16(math.Mod(units.RadToDeg(units.Wrap2Pi(rc.AutopilotHeadingRad)), 360)),
		HeadingHold:         rc.HeadingHold,

		AutopilotAltitudeM: toU16(rc.AutopilotAltitudeM),
		LevelChange:        rc.LevelChange,

		LandingGear:  rc.LandingGear,
		StrobeLights: rc.StrobeLights,
	}
}

// TelemetryFrom encodes the aircraft state. ac.Computed.AltitudeM is
// expected to be fresh (state.Store.Snapshot guarantees it).
func TelemetryFrom(ac state.AircraftState) Telemetry {
	c := ac.Computed
	return Telemetry{
		Throttle: ToU8(c.Throttle),

		LatitudeRad:  f32(ac.LatitudeRad),
		LongitudeRad: f32(ac.LongitudeRad),
		AltitudeM:    f32(c.AltitudeM),

		PitchRad: f32(ac.PitchRad),
		YawRad:   f32(ac.YawRad),
		RollRad:  f32(ac.RollRad),

		AirSpeedMs:    f32(ac.AirSpeedMs),
		GroundSpeedMs: f32(c.GroundSpeedMs),

		FlightPathPitch: f32(c.FlightPathPitchRad),
		FlightPathYaw:   f32(c.FlightPathYawRad),

		FlightDirectorPitch: f32(c.FlightDirectorPitchRad),
		FlightDirectorRoll:  f32(c.FlightDirectorRollRad),

		SlipAndSkid:      ToU16((units.Clamp(c.SlipSkidG, -slipRangeG, slipRangeG) + slipRangeG) / (2 * slipRangeG)),
		WindDirectionDeg: toU16(math.Mod(math.Mod(c.WindDirectionDeg, 360)+360, 360)),
		WindSpeedMs:      f32(c.WindSpeedMs),
	}
}

// SlipSkidG decodes the slip/skid field back to g.
func (t Telemetry) SlipSkidG() float64 {
	return FromU16(t.SlipAndSkid)*2*slipRangeG - slipRangeG
}

// FromU8 maps [0,255] onto [0,1].
func FromU8(v uint8) float64 { return float64(v) / 255 }

// ToU8 maps [0,1] onto [0,255], clamping out-of-range and NaN input.
func ToU8(v float64) uint8 { return uint8(math.Round(units.Clamp01(v) * 255)) }

// FromU16 maps [0,65535] onto [0,1].
func FromU16(v uint16) float64 { return float64(v) / 65535 }

// ToU16 maps [0,1] onto [0,65535], clamping out-of-range and NaN input.
func ToU16(v float64) uint16 { return uint16(math.Round(units.Clamp01(v) * 65535)) }

func toU16(v float64) uint16 {
	return uint16(math.Round(units.Clamp(v, 0, math.MaxUint16)))
}

func f32(v float64) float32 {
	if !units.Finite(v) {
		return 0
	}
	return float32(v)
}
