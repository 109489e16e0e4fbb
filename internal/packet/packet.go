// Package packet implements the two fixed-layout records exchanged with the
// remote panel. Both are little-endian, byte-packed, with no padding and no
// delimiter: the transports rely on reading exactly CommandSize or
// TelemetrySize bytes.
package packet

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	// CommandSize is the wire size of a Command.
	CommandSize = 21
	// TelemetrySize is the wire size of a Telemetry.
	TelemetrySize = 57
)

// Command is the remote → bridge packet in wire units.
type Command struct {
	Throttle uint8
	Ailerons uint8
	Elevator uint8
	Rudder   uint8
	Flaps    uint8
	Spoilers uint8

	AltimeterPressurePa uint32

	AutopilotAirSpeedMs uint16
	AutoThrottle        bool

	AutopilotHeadingDeg uint16
	HeadingHold         bool

	AutopilotAltitudeM uint16
	LevelChange        bool

	LandingGear  bool
	StrobeLights bool
}

// Telemetry is the bridge → remote packet in wire units.
type Telemetry struct {
	Throttle uint8

	LatitudeRad  float32
	LongitudeRad float32
	AltitudeM    float32

	PitchRad float32
	YawRad   float32
	RollRad  float32

	AirSpeedMs    float32
	GroundSpeedMs float32

	FlightPathPitch float32
	FlightPathYaw   float32

	FlightDirectorPitch float32
	FlightDirectorRoll  float32

	SlipAndSkid      uint16
	WindDirectionDeg uint16
	WindSpeedMs      float32
}

// MarshalBinary encodes c into CommandSize bytes.
func (c Command) MarshalBinary() ([]byte, error) {
	b := make([]byte, CommandSize)
	c.Put(b)
	return b, nil
}

// Put encodes c into b, which must hold at least CommandSize bytes.
func (c Command) Put(b []byte) {
	_ = b[CommandSize-1]
	b[0] = c.Throttle
	b[1] = c.Ailerons
	b[2] = c.Elevator
	b[3] = c.Rudder
	b[4] = c.Flaps
	b[5] = c.Spoilers
	binary.LittleEndian.PutUint32(b[6:10], c.AltimeterPressurePa)
	binary.LittleEndian.PutUint16(b[10:12], c.AutopilotAirSpeedMs)
	b[12] = boolByte(c.AutoThrottle)
	binary.LittleEndian.PutUint16(b[13:15], c.AutopilotHeadingDeg)
	b[15] = boolByte(c.HeadingHold)
	binary.LittleEndian.PutUint16(b[16:18], c.AutopilotAltitudeM)
	b[18] = boolByte(c.LevelChange)
	b[19] = boolByte(c.LandingGear)
	b[20] = boolByte(c.StrobeLights)
}

// UnmarshalBinary decodes exactly CommandSize bytes.
func (c *Command) UnmarshalBinary(b []byte) error {
	if len(b) != CommandSize {
		return fmt.Errorf("command packet: got %d bytes want %d", len(b), CommandSize)
	}
	c.Throttle = b[0]
	c.Ailerons = b[1]
	c.Elevator = b[2]
	c.Rudder = b[3]
	c.Flaps = b[4]
	c.Spoilers = b[5]
	c.AltimeterPressurePa = binary.LittleEndian.Uint32(b[6:10])
	c.AutopilotAirSpeedMs = binary.LittleEndian.Uint16(b[10:12])
	c.AutoThrottle = b[12] != 0
	c.AutopilotHeadingDeg = binary.LittleEndian.Uint16(b[13:15])
	c.HeadingHold = b[15] != 0
	c.AutopilotAltitudeM = binary.LittleEndian.Uint16(b[16:18])
	c.LevelChange = b[18] != 0
	c.LandingGear = b[19] != 0
	c.StrobeLights = b[20] != 0
	return nil
}

// MarshalBinary encodes t into TelemetrySize bytes.
func (t Telemetry) MarshalBinary() ([]byte, error) {
	b := make([]byte, TelemetrySize)
	t.Put(b)
	return b, nil
}

// Put encodes t into b, which must hold at least TelemetrySize bytes.
func (t Telemetry) Put(b []byte) {
	_ = b[TelemetrySize-1]
	b[0] = t.Throttle
	off := 1
	for _, f := range [...]float32{
		t.LatitudeRad, t.LongitudeRad, t.AltitudeM,
		t.PitchRad, t.YawRad, t.RollRad,
		t.AirSpeedMs, t.GroundSpeedMs,
		t.FlightPathPitch, t.FlightPathYaw,
		t.FlightDirectorPitch, t.FlightDirectorRoll,
	} {
		binary.LittleEndian.PutUint32(b[off:off+4], math.Float32bits(f))
		off += 4
	}
	binary.LittleEndian.PutUint16(b[49:51], t.SlipAndSkid)
	binary.LittleEndian.PutUint16(b[51:53], t.WindDirectionDeg)
	binary.LittleEndian.PutUint32(b[53:57], math.Float32bits(t.WindSpeedMs))
}

// UnmarshalBinary decodes exactly TelemetrySize bytes.
func (t *Telemetry) UnmarshalBinary(b []byte) error {
	if len(b) != TelemetrySize {
		return fmt.Errorf("telemetry packet: got %d bytes want %d", len(b), TelemetrySize)
	}
	t.Throttle = b[0]
	fields := [...]*float32{
		&t.LatitudeRad, &t.LongitudeRad, &t.AltitudeM,
		&t.PitchRad, &t.YawRad, &t.RollRad,
		&t.AirSpeedMs, &t.GroundSpeedMs,
		&t.FlightPathPitch, &t.FlightPathYaw,
		&t.FlightDirectorPitch, &t.FlightDirectorRoll,
	}
	off := 1
	for _, f := range fields {
		*f = math.Float32frombits(binary.LittleEndian.Uint32(b[off : off+4]))
		off += 4
	}
	t.SlipAndSkid = binary.LittleEndian.Uint16(b[49:51])
	t.WindDirectionDeg = binary.LittleEndian.Uint16(b[51:53])
	t.WindSpeedMs = math.Float32frombits(binary.LittleEndian.Uint32(b[53:57]))
	return nil
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
