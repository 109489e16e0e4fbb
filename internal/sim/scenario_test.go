package sim

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"simlink/internal/units"
)

const climbingTurn = `
version: 1
keyframes:
  - t: 0s
    lat_deg: 0
    lon_deg: 0
    alt_feet: 1000
    airspeed_kt: 100
    heading_deg: 350
  - t: 10s
    lat_deg: 10
    lon_deg: 20
    alt_feet: 2000
    airspeed_kt: 120
    heading_deg: 10
    wind_dir_deg: 90
    wind_kt: 20
`

func TestScenario_ParseAndInterpolateAngleWrap(t *testing.T) {
	scn, err := ParseScenario([]byte(climbingTurn))
	if err != nil {
		t.Fatalf("ParseScenario: %v", err)
	}
	if scn.Duration() != 10*time.Second {
		t.Fatalf("duration=%s want %s", scn.Duration(), 10*time.Second)
	}

	s := scn.SampleAt(5 * time.Second)
	// 350 -> 10 goes the short way through north.
	if hdg := units.RadToDeg(s.HeadingRad); math.Abs(hdg) > 1e-9 {
		t.Fatalf("heading=%v want 0", hdg)
	}
	if lat := units.RadToDeg(s.LatitudeRad); math.Abs(lat-5) > 1e-9 {
		t.Fatalf("lat=%v want 5", lat)
	}
	if lon := units.RadToDeg(s.LongitudeRad); math.Abs(lon-10) > 1e-9 {
		t.Fatalf("lon=%v want 10", lon)
	}
	if s.AltitudeFt != 1500 || s.AirSpeedKt != 110 {
		t.Fatalf("alt=%v airspeed=%v want 1500/110", s.AltitudeFt, s.AirSpeedKt)
	}
	if s.WindSpeedKt != 10 || s.WindDirectionDeg != 45 {
		t.Fatalf("wind=%v@%v want 10@45", s.WindSpeedKt, s.WindDirectionDeg)
	}

	// Climbing right turn: simulator convention is nose-down and
	// left-bank positive, so both come out negative.
	if s.PitchRad >= 0 || s.BankRad >= 0 {
		t.Fatalf("pitch=%v bank=%v want both < 0", s.PitchRad, s.BankRad)
	}
	wantPitch := math.Atan2(units.FeetToMeters(1000)/10, units.KnotsToMs(110))
	if math.Abs(-s.PitchRad-wantPitch) > 1e-9 {
		t.Fatalf("pitch=%v want %v", -s.PitchRad, wantPitch)
	}
}

func TestScenario_ClampsAndLoops(t *testing.T) {
	scn, err := ParseScenario([]byte(climbingTurn))
	if err != nil {
		t.Fatalf("ParseScenario: %v", err)
	}

	if s := scn.SampleAt(-time.Second); s.AltitudeFt != 1000 {
		t.Fatalf("before start alt=%v want 1000", s.AltitudeFt)
	}
	end := scn.SampleAt(time.Minute)
	if end.AltitudeFt != 2000 || end.PitchRad != 0 || end.BankRad != 0 {
		t.Fatalf("after end=%+v want level at 2000", end)
	}

	scn.Loop = true
	if s := scn.SampleAt(12500 * time.Millisecond); s.AltitudeFt != 1250 {
		t.Fatalf("looped alt=%v want 1250", s.AltitudeFt)
	}
}

func TestScenario_Validation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"no keyframes", "version: 1\n", "keyframes is required"},
		{"bad version", "version: 2\nkeyframes: [{t: 1s}]\n", "unsupported scenario version 2"},
		{"unsorted", "keyframes: [{t: 2s}, {t: 1s}]\n", "keyframes must be sorted by t (index 1)"},
		{"negative", "keyframes: [{t: -1s}]\n", "keyframes[0].t must be >= 0"},
		{"no duration", "keyframes: [{t: 0s}]\n", "duration is required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tc.yaml))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err=%v want %q", err, tc.want)
			}
		})
	}
}

func TestScenario_RunEndsWithoutLoop(t *testing.T) {
	scn, err := NewScenario(ScenarioScript{
		Duration:  time.Second,
		Keyframes: []Keyframe{{AltFeet: 500}},
	})
	if err != nil {
		t.Fatalf("NewScenario: %v", err)
	}

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	scn.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * 400 * time.Millisecond)
	}
	scn.Rate = time.Millisecond

	var samples int
	err = scn.Run(context.Background(), func(s Sample) {
		samples++
		if s.AltitudeFt != 500 {
			t.Errorf("alt=%v want 500", s.AltitudeFt)
		}
	})
	if err == nil || err.Error() != "scenario finished" {
		t.Fatalf("err=%v want scenario finished", err)
	}
	if samples != 2 {
		t.Fatalf("samples=%d want 2", samples)
	}
}

func TestScenario_RecordsCommands(t *testing.T) {
	scn, err := ParseScenario([]byte(climbingTurn))
	if err != nil {
		t.Fatalf("ParseScenario: %v", err)
	}
	_ = scn.Apply(Flaps, 0.5)
	_ = scn.Apply(Flaps, 1)
	if got := scn.Applied()[Flaps]; got != 1 {
		t.Fatalf("flaps=%v want 1", got)
	}
}
