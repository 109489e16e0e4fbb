// Package sim connects the bridge to a flight simulator.
//
// A Source delivers Samples in the simulator's own sign convention and
// accepts Commands from the closed set below. The Supervisor keeps one
// Source connected, folds its samples into the shared store and retries
// after failures.
package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNotConnected is returned by Apply while no simulator session is live.
var ErrNotConnected = errors.New("sim: not connected")

// Sample is one reading from the simulator.
//
// Attitude follows the simulator convention: pitch is positive nose-down
// and bank is positive left-wing-down. Heading is true, clockwise.
type Sample struct {
	LatitudeRad  float64
	LongitudeRad float64

	PitchRad   float64
	HeadingRad float64
	BankRad    float64
	// SlipSkidG is the lateral acceleration felt by the ball, in g.
	SlipSkidG float64

	AltitudeFt float64
	AirSpeedKt float64

	PressureHPa  float64
	TemperatureC float64

	WindDirectionDeg float64
	WindSpeedKt      float64
}

// Command names one simulator control input.
type Command int

// Value units: surfaces, throttle, flaps and spoilers are [0,1] with 0.5
// neutral for surfaces (elevator below 0.5 pitches up, ailerons above 0.5
// roll right); switches are 0 or 1; AutopilotSpeed is knots, HeadingBug is
// degrees, AutopilotAltitude is feet, Altimeter is hPa.
const (
	Throttle1 Command = iota
	Throttle2
	Elevator
	Ailerons
	Rudder
	Flaps
	Spoilers
	Gear
	StrobeLights
	AutopilotSpeed
	HeadingBug
	AutopilotAltitude
	Altimeter
	LevelChange
	HeadingHold

	numCommands
)

var commandNames = [numCommands]string{
	Throttle1:         "throttle1",
	Throttle2:         "throttle2",
	Elevator:          "elevator",
	Ailerons:          "ailerons",
	Rudder:            "rudder",
	Flaps:             "flaps",
	Spoilers:          "spoilers",
	Gear:              "gear",
	StrobeLights:      "strobe_lights",
	AutopilotSpeed:    "autopilot_speed",
	HeadingBug:        "heading_bug",
	AutopilotAltitude: "autopilot_altitude",
	Altimeter:         "altimeter",
	LevelChange:       "level_change",
	HeadingHold:       "heading_hold",
}

func (c Command) String() string {
	if c < 0 || c >= numCommands {
		return fmt.Sprintf("command(%d)", int(c))
	}
	return commandNames[c]
}

// Source is a simulator binding.
type Source interface {
	Name() string
	// Run connects and calls onSample for every reading until ctx is done
	// or the session fails. It returns nil only when ctx was cancelled.
	Run(ctx context.Context, onSample func(Sample)) error
	// Apply sends one command. Safe to call concurrently with Run.
	Applier
}

// Applier accepts simulator commands.
type Applier interface {
	Apply(cmd Command, value float64) error
}

// commandLog keeps the last value per command for sources that accept
// commands without acting on them.
type commandLog struct {
	mu      sync.Mutex
	applied map[Command]float64
}

func (l *commandLog) Apply(cmd Command, value float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.applied == nil {
		l.applied = make(map[Command]float64)
	}
	l.applied[cmd] = value
	return nil
}

// Applied returns the last value received for each command.
func (l *commandLog) Applied() map[Command]float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[Command]float64, len(l.applied))
	for k, v := range l.applied {
		out[k] = v
	}
	return out
}
