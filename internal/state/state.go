// Package state owns the two mutable records shared across the bridge:
// AircraftState (what the simulator reports plus what the bridge computes)
// and RemoteCommand (what the panel asks for).
//
// Each record has its own mutex. Whenever both are needed they are taken in
// the order aircraft, then command; callers never see the raw locks, so the
// order cannot be violated from outside this package.
package state

import (
	"sync"

	"simlink/internal/units"
)

// Computed holds values derived by the bridge. Nothing outside the bridge
// writes these.
type Computed struct {
	Throttle float64 `json:"throttle"`
	Elevator float64 `json:"elevator"`
	Ailerons float64 `json:"ailerons"`

	AltitudeM float64 `json:"altitude_m"`
	SlipSkidG float64 `json:"slip_skid_g"`

	WindDirectionDeg float64 `json:"wind_direction_deg"`
	WindSpeedMs      float64 `json:"wind_speed_ms"`

	GroundSpeedMs      float64 `json:"ground_speed_ms"`
	FlightPathPitchRad float64 `json:"flight_path_pitch_rad"`
	FlightPathYawRad   float64 `json:"flight_path_yaw_rad"`

	FlightDirectorPitchRad float64 `json:"flight_director_pitch_rad"`
	FlightDirectorRollRad  float64 `json:"flight_director_roll_rad"`
}

// AircraftState is the bridge's view of the simulated aircraft.
//
// Pitch is nose-up positive, roll is right-bank positive, yaw is the true
// heading (clockwise from north).
type AircraftState struct {
	PitchRad float64 `json:"pitch_rad"`
	YawRad   float64 `json:"yaw_rad"`
	RollRad  float64 `json:"roll_rad"`

	LatitudeRad  float64 `json:"latitude_rad"`
	LongitudeRad float64 `json:"longitude_rad"`
	PressureHPa  float64 `json:"pressure_hpa"`
	TemperatureC float64 `json:"temperature_c"`

	AirSpeedMs float64 `json:"air_speed_ms"`

	Computed Computed `json:"computed"`
}

// RemoteCommand is the last command decoded from the panel.
type RemoteCommand struct {
	Throttle float64 `json:"throttle"`
	Ailerons float64 `json:"ailerons"`
	Elevator float64 `json:"elevator"`
	Rudder   float64 `json:"rudder"`
	Flaps    float64 `json:"flaps"`
	Spoilers float64 `json:"spoilers"`

	AltimeterPressurePa float64 `json:"altimeter_pressure_pa"`

	AutopilotAirSpeedMs float64 `json:"autopilot_air_speed_ms"`
	AutoThrottle        bool    `json:"auto_throttle"`

	AutopilotHeadingRad float64 `json:"autopilot_heading_rad"`
	HeadingHold         bool    `json:"heading_hold"`

	AutopilotAltitudeM float64 `json:"autopilot_altitude_m"`
	LevelChange        bool    `json:"level_change"`

	LandingGear  bool `json:"landing_gear"`
	StrobeLights bool `json:"strobe_lights"`
}

// DefaultRemoteCommand is the command in effect before the panel has sent
// anything: neutral surfaces, idle throttle, standard altimeter.
func DefaultRemoteCommand() RemoteCommand {
	return RemoteCommand{
		Ailerons:            0.5,
		Elevator:            0.5,
		Rudder:              0.5,
		AltimeterPressurePa: units.StandardPressurePa,
	}
}

// DefaultAircraftState has neutral computed surfaces so the first telemetry
// and the first autopilot tick start from rest.
func DefaultAircraftState() AircraftState {
	return AircraftState{
		PressureHPa: units.PaToHPa(units.StandardPressurePa),
		Computed: Computed{
			Elevator: 0.5,
			Ailerons: 0.5,
		},
	}
}

// Store holds the process-wide records.
type Store struct {
	aircraftMu sync.Mutex
	aircraft   AircraftState

	commandMu sync.Mutex
	command   RemoteCommand
}

func New() *Store {
	return &Store{
		aircraft: DefaultAircraftState(),
		command:  DefaultRemoteCommand(),
	}
}

// Update runs fn with both records locked (aircraft first). The derived
// altitude is refreshed before and after fn so it always reflects the
// current altimeter reference.
func (s *Store) Update(fn func(ac *AircraftState, rc *RemoteCommand)) {
	s.aircraftMu.Lock()
	defer s.aircraftMu.Unlock()
	s.commandMu.Lock()
	defer s.commandMu.Unlock()

	refreshAltitude(&s.aircraft, &s.command)
	fn(&s.aircraft, &s.command)
	refreshAltitude(&s.aircraft, &s.command)
}

// UpdateAircraft runs fn with only the aircraft record locked. fn must not
// change PressureHPa; use Update for that.
func (s *Store) UpdateAircraft(fn func(ac *AircraftState)) {
	s.aircraftMu.Lock()
	defer s.aircraftMu.Unlock()
	fn(&s.aircraft)
}

// Snapshot returns consistent copies of both records with the altitude
// recomputed from the current reference.
func (s *Store) Snapshot() (AircraftState, RemoteCommand) {
	s.aircraftMu.Lock()
	defer s.aircraftMu.Unlock()
	s.commandMu.Lock()
	defer s.commandMu.Unlock()

	ac := s.aircraft
	rc := s.command
	refreshAltitude(&ac, &rc)
	return ac, rc
}

// Aircraft returns a copy of the aircraft record.
func (s *Store) Aircraft() AircraftState {
	ac, _ := s.Snapshot()
	return ac
}

// Command returns a copy of the remote command.
func (s *Store) Command() RemoteCommand {
	s.commandMu.Lock()
	defer s.commandMu.Unlock()
	return s.command
}

// Altitude is the pressure altitude of ac against the reference in rc.
func Altitude(ac AircraftState, rc RemoteCommand) float64 {
	return units.PressureToAltitude(rc.AltimeterPressurePa, units.HPaToPa(ac.PressureHPa))
}

func refreshAltitude(ac *AircraftState, rc *RemoteCommand) {
	ac.Computed.AltitudeM = Altitude(*ac, *rc)
}
