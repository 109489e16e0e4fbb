package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"simlink/internal/units"
)

// ScenarioScript is a keyframed flight profile.
//
// Time is expressed as Go duration strings (e.g. "0s", "250ms", "10s").
// If Duration is zero, it is derived from the latest keyframe time.
//
// YAML schema (v1):
//
//	version: 1
//	duration: 60s
//	keyframes:
//	  - t: 0s
//	    lat_deg: 45.0
//	    lon_deg: -122.0
//	    alt_feet: 3000
//	    airspeed_kt: 100
//	    heading_deg: 90
//	    wind_dir_deg: 270
//	    wind_kt: 10
//
// Keyframes must use non-decreasing t values. Pitch and bank are not
// scripted; they follow from the climb and turn rate of each segment.
type ScenarioScript struct {
	Version   int           `yaml:"version"`
	Duration  time.Duration `yaml:"duration"`
	Keyframes []Keyframe    `yaml:"keyframes"`
}

type Keyframe struct {
	T          time.Duration `yaml:"t"`
	LatDeg     float64       `yaml:"lat_deg"`
	LonDeg     float64       `yaml:"lon_deg"`
	AltFeet    float64       `yaml:"alt_feet"`
	AirspeedKt float64       `yaml:"airspeed_kt"`
	HeadingDeg float64       `yaml:"heading_deg"`
	WindDirDeg float64       `yaml:"wind_dir_deg"`
	WindKt     float64       `yaml:"wind_kt"`
}

// Scenario plays a ScenarioScript as a Source. Commands are recorded but
// do not change the profile.
type Scenario struct {
	// Loop restarts the profile at the end instead of ending the session.
	Loop bool
	// Rate is the sample period (default 1/30 s).
	Rate time.Duration

	script   ScenarioScript
	duration time.Duration
	now      func() time.Time

	commandLog
}

func LoadScenario(path string) (*Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(b)
}

// ParseScenario parses and validates a YAML script.
func ParseScenario(b []byte) (*Scenario, error) {
	var script ScenarioScript
	if err := yaml.Unmarshal(b, &script); err != nil {
		return nil, err
	}
	return NewScenario(script)
}

func NewScenario(script ScenarioScript) (*Scenario, error) {
	if script.Version == 0 {
		script.Version = 1
	}
	if script.Version != 1 {
		return nil, fmt.Errorf("unsupported scenario version %d", script.Version)
	}
	kfs := script.Keyframes
	if len(kfs) == 0 {
		return nil, fmt.Errorf("keyframes is required")
	}
	for i := range kfs {
		if kfs[i].T < 0 {
			return nil, fmt.Errorf("keyframes[%d].t must be >= 0", i)
		}
		if i > 0 && kfs[i].T < kfs[i-1].T {
			return nil, fmt.Errorf("keyframes must be sorted by t (index %d)", i)
		}
	}

	dur := script.Duration
	if dur <= 0 {
		dur = kfs[len(kfs)-1].T
	}
	if dur <= 0 {
		return nil, fmt.Errorf("duration is required (or derivable from keyframes)")
	}
	return &Scenario{script: script, duration: dur}, nil
}

func (s *Scenario) Name() string { return "scenario" }

// Duration returns the effective scenario duration.
func (s *Scenario) Duration() time.Duration {
	if s == nil {
		return 0
	}
	return s.duration
}

// Run emits samples from the start of the profile. Without Loop it
// returns an error once the profile has played out so the supervisor
// treats the session as ended.
func (s *Scenario) Run(ctx context.Context, onSample func(Sample)) error {
	rate := s.Rate
	if rate <= 0 {
		rate = time.Second / 30
	}
	now := s.now
	if now == nil {
		now = time.Now
	}

	start := now()
	t := time.NewTicker(rate)
	defer t.Stop()
	for {
		elapsed := now().Sub(start)
		if !s.Loop && elapsed > s.duration {
			return errors.New("scenario finished")
		}
		onSample(s.SampleAt(elapsed))
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

// SampleAt returns the profile at elapsed. Elapsed wraps around Duration
// when Loop is set and is clamped to [0, Duration] otherwise.
func (s *Scenario) SampleAt(elapsed time.Duration) Sample {
	if elapsed < 0 {
		elapsed = 0
	}
	if s.Loop {
		elapsed %= s.duration
	} else if elapsed > s.duration {
		elapsed = s.duration
	}

	k0, k1, alpha := selectSegment(s.script.Keyframes, elapsed)
	altFeet := lerp(k0.AltFeet, k1.AltFeet, alpha)
	airKt := lerp(k0.AirspeedKt, k1.AirspeedKt, alpha)
	airMs := units.KnotsToMs(airKt)

	var pitch, bank float64
	if dt := (k1.T - k0.T).Seconds(); dt > 0 {
		climbMs := units.FeetToMeters(k1.AltFeet-k0.AltFeet) / dt
		pitch = math.Atan2(climbMs, math.Max(airMs, 1))
		turnRate := units.WrapPi(units.DegToRad(k1.HeadingDeg-k0.HeadingDeg)) / dt
		bank = math.Atan(airMs * turnRate / gravityMs2)
	}

	altM := units.FeetToMeters(altFeet)
	return Sample{
		LatitudeRad:      units.DegToRad(lerp(k0.LatDeg, k1.LatDeg, alpha)),
		LongitudeRad:     units.DegToRad(lerp(k0.LonDeg, k1.LonDeg, alpha)),
		PitchRad:         -pitch,
		HeadingRad:       units.DegToRad(lerpAngleDeg(k0.HeadingDeg, k1.HeadingDeg, alpha)),
		BankRad:          -bank,
		AltitudeFt:       altFeet,
		AirSpeedKt:       airKt,
		PressureHPa:      units.PaToHPa(units.AltitudeToPressure(units.StandardPressurePa, altM)),
		TemperatureC:     15 - 0.0065*altM,
		WindDirectionDeg: lerpAngleDeg(k0.WindDirDeg, k1.WindDirDeg, alpha),
		WindSpeedKt:      lerp(k0.WindKt, k1.WindKt, alpha),
	}
}

func selectSegment(kfs []Keyframe, t time.Duration) (Keyframe, Keyframe, float64) {
	if len(kfs) == 1 {
		return kfs[0], kfs[0], 0
	}
	idx := sort.Search(len(kfs), func(i int) bool { return kfs[i].T > t })
	if idx <= 0 {
		return kfs[0], kfs[0], 0
	}
	if idx >= len(kfs) {
		last := kfs[len(kfs)-1]
		return last, last, 0
	}
	k0, k1 := kfs[idx-1], kfs[idx]
	dt := k1.T - k0.T
	if dt <= 0 {
		return k1, k1, 0
	}
	alpha := float64(t-k0.T) / float64(dt)
	return k0, k1, units.Clamp01(alpha)
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// lerpAngleDeg interpolates along the shorter arc; the result is in [0, 360).
func lerpAngleDeg(a0, a1, t float64) float64 {
	a0 = math.Mod(a0, 360)
	if a0 < 0 {
		a0 += 360
	}
	delta := math.Mod(a1-a0, 360)
	if delta > 180 {
		delta -= 360
	} else if delta < -180 {
		delta += 360
	}
	out := math.Mod(a0+delta*t, 360)
	if out < 0 {
		out += 360
	}
	return out
}
