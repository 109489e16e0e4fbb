package sim

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"math"
	"net"
	"sync"
	"time"

	"go.uber.org/ratelimit"

	"simlink/internal/units"
)

// X-Plane UDP packet layout.
const (
	rrefPathLen = 400
	rrefReqLen  = 5 + 4 + 4 + rrefPathLen
	drefPathLen = 500
	drefLen     = 5 + 4 + drefPathLen
)

// Indexes into xplaneDatarefs; also the RREF subscription index.
const (
	xpLatitude = iota
	xpLongitude
	xpPitch
	xpHeading
	xpRoll
	xpSideG
	xpElevation
	xpAirspeed
	xpBarometer
	xpTemperature
	xpWindDirection
	xpWindSpeed
)

var xplaneDatarefs = []string{
	xpLatitude:      "sim/flightmodel/position/latitude",           // deg
	xpLongitude:     "sim/flightmodel/position/longitude",          // deg
	xpPitch:         "sim/flightmodel/position/theta",              // deg, nose up
	xpHeading:       "sim/flightmodel/position/true_psi",           // deg true
	xpRoll:          "sim/flightmodel/position/phi",                // deg, right wing down
	xpSideG:         "sim/flightmodel/forces/g_side",               // g
	xpElevation:     "sim/flightmodel/position/elevation",          // m MSL
	xpAirspeed:      "sim/flightmodel/position/indicated_airspeed", // kias
	xpBarometer:     "sim/weather/barometer_current_inhg",          // inHg at aircraft
	xpTemperature:   "sim/weather/temperature_ambient_c",           // C
	xpWindDirection: "sim/weather/wind_direction_degt",             // deg true
	xpWindSpeed:     "sim/weather/wind_speed_kt",                   // kt
}

// Writable datarefs per command, with the conversion from Command units.
// LevelChange and HeadingHold have no writable dataref and are ignored:
// the bridge's own autopilot drives the surfaces.
var xplaneWrites = map[Command]struct {
	path    string
	convert func(float64) float64
}{
	Throttle1:         {"sim/cockpit2/engine/actuators/throttle_ratio[0]", identity},
	Throttle2:         {"sim/cockpit2/engine/actuators/throttle_ratio[1]", identity},
	Elevator:          {"sim/joystick/yoke_pitch_ratio", func(v float64) float64 { return 1 - 2*v }},
	Ailerons:          {"sim/joystick/yoke_roll_ratio", centered},
	Rudder:            {"sim/joystick/yoke_heading_ratio", centered},
	Flaps:             {"sim/cockpit2/controls/flap_ratio", identity},
	Spoilers:          {"sim/cockpit2/controls/speedbrake_ratio", identity},
	Gear:              {"sim/cockpit2/controls/gear_handle_down", identity},
	StrobeLights:      {"sim/cockpit2/switches/strobe_lights_on", identity},
	AutopilotSpeed:    {"sim/cockpit2/autopilot/airspeed_dial_kts_mach", identity},
	HeadingBug:        {"sim/cockpit2/autopilot/heading_dial_deg_mag_pilot", identity},
	AutopilotAltitude: {"sim/cockpit2/autopilot/altitude_dial_ft", identity},
	Altimeter:         {"sim/cockpit2/gauges/actuators/barometer_setting_in_hg_pilot", units.HPaToInHg},
}

func identity(v float64) float64 { return v }
func centered(v float64) float64 { return 2*v - 1 }

type XPlaneConfig struct {
	// Addr is X-Plane's UDP receive address, usually host:49000.
	Addr string
	// RateHz is the requested RREF rate (default 30).
	RateHz int
	// Timeout is how long without data before the session is declared
	// lost (default 5 s).
	Timeout time.Duration
}

// XPlane talks to X-Plane over its UDP dataref protocol.
type XPlane struct {
	cfg XPlaneConfig

	mu   sync.Mutex
	conn *net.UDPConn
}

func NewXPlane(cfg XPlaneConfig) *XPlane {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:49000"
	}
	if cfg.RateHz <= 0 {
		cfg.RateHz = 30
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &XPlane{cfg: cfg}
}

func (x *XPlane) Name() string { return "xplane" }

func (x *XPlane) Run(ctx context.Context, onSample func(Sample)) error {
	raddr, err := net.ResolveUDPAddr("udp", x.cfg.Addr)
	if err != nil {
		return fmt.Errorf("xplane resolve %q: %w", x.cfg.Addr, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return fmt.Errorf("xplane dial %s: %w", raddr, err)
	}
	x.mu.Lock()
	x.conn = conn
	x.mu.Unlock()

	stop := make(chan struct{})
	defer func() {
		close(stop)
		_ = x.subscribe(conn, 0)
		x.mu.Lock()
		x.conn = nil
		x.mu.Unlock()
		_ = conn.Close()
	}()
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.SetReadDeadline(time.Now())
		case <-stop:
		}
	}()

	if err := x.subscribe(conn, x.cfg.RateHz); err != nil {
		return fmt.Errorf("xplane subscribe: %w", err)
	}

	values := make([]float64, len(xplaneDatarefs))
	seen := make([]bool, len(xplaneDatarefs))
	buf := make([]byte, 4096)
	lastData := time.Now()
	for {
		if ctx.Err() != nil {
			return nil
		}
		_ = conn.SetReadDeadline(time.Now().Add(time.Second))
		n, err := conn.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var ne net.Error
			if !errors.As(err, &ne) || !ne.Timeout() {
				return fmt.Errorf("xplane read: %w", err)
			}
			if time.Since(lastData) > x.cfg.Timeout {
				return fmt.Errorf("xplane: no data for %s", x.cfg.Timeout)
			}
			// X-Plane drops subscriptions when it reloads; ask again.
			if err := x.subscribe(conn, x.cfg.RateHz); err != nil {
				return fmt.Errorf("xplane subscribe: %w", err)
			}
			continue
		}

		if !parseRREF(buf[:n], values, seen) {
			continue
		}
		lastData = time.Now()
		if allSeen(seen) {
			onSample(xplaneSample(values))
		}
	}
}

func (x *XPlane) Apply(cmd Command, value float64) error {
	w, ok := xplaneWrites[cmd]
	if !ok {
		return nil
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.conn == nil {
		return ErrNotConnected
	}
	if _, err := x.conn.Write(encodeDREF(w.path, float32(w.convert(value)))); err != nil {
		return fmt.Errorf("xplane dref %s: %w", w.path, err)
	}
	return nil
}

func (x *XPlane) subscribe(conn *net.UDPConn, freq int) error {
	// X-Plane drops bursts on a busy frame; spread the requests.
	rl := ratelimit.New(500)
	for i, path := range xplaneDatarefs {
		rl.Take()
		if _, err := conn.Write(encodeRREFRequest(freq, i, path)); err != nil {
			return err
		}
	}
	if freq == 0 {
		log.Printf("xplane: unsubscribed %d datarefs", len(xplaneDatarefs))
	}
	return nil
}

func xplaneSample(v []float64) Sample {
	return Sample{
		LatitudeRad:      units.DegToRad(v[xpLatitude]),
		LongitudeRad:     units.DegToRad(v[xpLongitude]),
		PitchRad:         -units.DegToRad(v[xpPitch]),
		HeadingRad:       units.DegToRad(v[xpHeading]),
		BankRad:          -units.DegToRad(v[xpRoll]),
		SlipSkidG:        v[xpSideG],
		AltitudeFt:       units.MetersToFeet(v[xpElevation]),
		AirSpeedKt:       v[xpAirspeed],
		PressureHPa:      units.InHgToHPa(v[xpBarometer]),
		TemperatureC:     v[xpTemperature],
		WindDirectionDeg: v[xpWindDirection],
		WindSpeedKt:      v[xpWindSpeed],
	}
}

func allSeen(seen []bool) bool {
	for _, s := range seen {
		if !s {
			return false
		}
	}
	return true
}

// encodeRREFRequest builds "RREF\0" + freq + index + 400-byte path.
// freq 0 cancels the subscription.
func encodeRREFRequest(freq, index int, path string) []byte {
	b := make([]byte, rrefReqLen)
	copy(b[0:4], "RREF")
	binary.LittleEndian.PutUint32(b[5:9], uint32(freq))
	binary.LittleEndian.PutUint32(b[9:13], uint32(index))
	copy(b[13:13+rrefPathLen-1], path)
	return b
}

// encodeDREF builds "DREF\0" + float32 + 500-byte path.
func encodeDREF(path string, v float32) []byte {
	b := make([]byte, drefLen)
	copy(b[0:4], "DREF")
	binary.LittleEndian.PutUint32(b[5:9], math.Float32bits(v))
	copy(b[9:9+drefPathLen-1], path)
	return b
}

// parseRREF decodes an "RREF" + 5-byte header reply of (index, float32)
// pairs into values. Unknown indexes are skipped.
func parseRREF(b []byte, values []float64, seen []bool) bool {
	if len(b) < 5 || string(b[0:4]) != "RREF" {
		return false
	}
	ok := false
	for off := 5; off+8 <= len(b); off += 8 {
		idx := int(binary.LittleEndian.Uint32(b[off : off+4]))
		v := float64(math.Float32frombits(binary.LittleEndian.Uint32(b[off+4 : off+8])))
		if idx < 0 || idx >= len(values) || !units.Finite(v) {
			continue
		}
		values[idx] = v
		seen[idx] = true
		ok = true
	}
	return ok
}
