package sim

import (
	"context"
	"math"
	"testing"
	"time"

	"simlink/internal/units"
)

func TestOwnship_Position_Invariants(t *testing.T) {
	s := &Ownship{
		CenterLatDeg: 45.0,
		CenterLonDeg: -122.0,
		RadiusNm:     1.0,
		Period:       60 * time.Second,
	}

	now := time.Date(2025, 12, 20, 19, 0, 0, 0, time.UTC)
	lat, lon, trk := s.Position(now)

	for name, v := range map[string]float64{"lat": lat, "lon": lon, "track": trk} {
		if !units.Finite(v) {
			t.Fatalf("%s invalid: %v", name, v)
		}
	}
	if trk < 0 || trk >= 360 {
		t.Fatalf("track out of range: %v", trk)
	}

	radiusDeg := s.RadiusNm / 60.0
	if math.Abs(lat-s.CenterLatDeg) > radiusDeg*1.01 {
		t.Fatalf("lat offset too large: got %f want <= %f", math.Abs(lat-s.CenterLatDeg), radiusDeg)
	}
	maxLonDeg := radiusDeg / math.Cos(s.CenterLatDeg*math.Pi/180.0)
	if math.Abs(lon-s.CenterLonDeg) > maxLonDeg*1.01 {
		t.Fatalf("lon offset too large: got %f want <= %f", math.Abs(lon-s.CenterLonDeg), maxLonDeg)
	}
}

func TestOwnship_Sample_DeterministicForNow(t *testing.T) {
	s := &Ownship{CenterLatDeg: 1, CenterLonDeg: 2, RadiusNm: 0.5, Period: 120 * time.Second}
	now := time.Date(2025, 12, 20, 19, 0, 0, 123, time.UTC)

	if a, b := s.Sample(now), s.Sample(now); a != b {
		t.Fatalf("expected deterministic result for same now: %+v vs %+v", a, b)
	}
}

func TestOwnship_Sample_UsesSimConventions(t *testing.T) {
	s := &Ownship{CenterLatDeg: 45, CenterLonDeg: 7, AltFeet: 3000, AirspeedKt: 100, Period: 120 * time.Second}

	// Phase 0: heading north in a right turn; vertical phase 0: climbing.
	now := time.Unix(0, 0)
	smp := s.Sample(now)

	if smp.AirSpeedKt != 100 {
		t.Fatalf("airspeed=%v want 100", smp.AirSpeedKt)
	}
	if smp.PitchRad >= 0 {
		t.Fatalf("pitch=%v want negative (nose-up while climbing)", smp.PitchRad)
	}
	if smp.PressureHPa >= 1013.25 || smp.PressureHPa < 900 {
		t.Fatalf("pressure=%v want ~908 hPa at 3000 ft", smp.PressureHPa)
	}
	if math.Abs(smp.AltitudeFt-3000) > 1 {
		t.Fatalf("altitude=%v want 3000", smp.AltitudeFt)
	}
}

func TestOwnship_RunAndApply(t *testing.T) {
	s := &Ownship{Rate: time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())

	got := make(chan Sample, 1)
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(smp Sample) {
			select {
			case got <- smp:
			default:
			}
		})
	}()

	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatalf("no sample")
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run err=%v want nil after cancel", err)
	}

	if err := s.Apply(Flaps, 0.25); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if v := s.Applied()[Flaps]; v != 0.25 {
		t.Fatalf("flaps=%v want 0.25", v)
	}
}
