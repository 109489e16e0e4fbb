package flightpath

import (
	"math"
	"testing"
	"time"

	"simlink/internal/state"
	"simlink/internal/units"
)

func TestStep_FirstCallIsStationary(t *testing.T) {
	c := New(Config{Interval: time.Second})
	r := c.Step(0.5, 0.5, 1000, 0)
	if r != (Result{}) {
		t.Fatalf("first step=%+v want zero", r)
	}
}

func TestStep_StationaryYieldsZero(t *testing.T) {
	for _, model := range []EarthModel{Spherical, WGS84} {
		c := New(Config{Interval: time.Second, Model: model})
		// Prime the filters with motion first so we know they collapse.
		c.Step(0, 0, 0, 0)
		c.Step(0.0001, 0, 10, 0)
		r := c.Step(0.0001, 0, 10, 0)
		if r.GroundSpeedMs != 0 || r.FlightPathPitchRad != 0 || r.FlightPathYawRad != 0 {
			t.Fatalf("model=%s stationary=%+v want zero", model, r)
		}
	}
}

func TestStep_NorthwardLevelAtEquator(t *testing.T) {
	c := New(Config{Interval: time.Second, Filter: 1})
	c.Step(0, 0, 0, 0)
	// ~111 m north.
	r := c.Step(units.DegToRad(0.001), 0, 0, 0)
	if math.Abs(r.FlightPathPitchRad) > 1e-4 {
		t.Fatalf("pitch=%v want ~0", r.FlightPathPitchRad)
	}
	if math.Abs(r.FlightPathYawRad) > 1e-6 {
		t.Fatalf("yaw=%v want ~0", r.FlightPathYawRad)
	}
	if math.Abs(r.GroundSpeedMs-111.32) > 0.5 {
		t.Fatalf("ground speed=%v want ~111.3", r.GroundSpeedMs)
	}
}

func TestStep_ClimbGivesPositivePitch(t *testing.T) {
	c := New(Config{Interval: time.Second, Filter: 1})
	c.Step(0.8, 0.3, 1000, 0)
	r := c.Step(0.8, 0.3, 1010, 0)
	if math.Abs(r.FlightPathPitchRad-math.Pi/2) > 1e-3 {
		t.Fatalf("pitch=%v want pi/2", r.FlightPathPitchRad)
	}
	if r.FlightPathYawRad != 0 {
		t.Fatalf("yaw=%v want 0 for vertical motion", r.FlightPathYawRad)
	}
}

func TestStep_VerticalMotionHasZeroYaw(t *testing.T) {
	for _, model := range []EarthModel{Spherical, WGS84} {
		for _, alt := range []float64{0, 1000, 5000, 12000} {
			for _, yaw := range []float64{0, 1.2, -2.5} {
				c := New(Config{Interval: time.Second, Model: model, Filter: 1})
				c.Step(0.8, 0.3, alt, yaw)
				r := c.Step(0.8, 0.3, alt+10, yaw)
				if r.FlightPathYawRad != 0 {
					t.Fatalf("model=%s alt=%v heading=%v yaw=%v want 0", model, alt, yaw, r.FlightPathYawRad)
				}
				if math.Abs(r.FlightPathPitchRad-math.Pi/2) > 1e-3 {
					t.Fatalf("model=%s alt=%v pitch=%v want pi/2", model, alt, r.FlightPathPitchRad)
				}
			}
		}
	}
}

func TestStep_CrosswindDriftSign(t *testing.T) {
	// Heading north, track slightly east of north: drift to the right is positive.
	c := New(Config{Interval: time.Second, Filter: 1})
	lat := units.DegToRad(45)
	c.Step(lat, 0, 500, 0)
	r := c.Step(lat+units.DegToRad(0.001), units.DegToRad(0.0002), 500, 0)
	if r.FlightPathYawRad <= 0 {
		t.Fatalf("yaw=%v want positive", r.FlightPathYawRad)
	}

	// Pointing east along an eastbound track: no drift.
	c = New(Config{Interval: time.Second, Filter: 1})
	c.Step(0, 0, 500, math.Pi/2)
	r = c.Step(0, units.DegToRad(0.001), 500, math.Pi/2)
	if math.Abs(r.FlightPathYawRad) > 1e-6 {
		t.Fatalf("yaw=%v want ~0", r.FlightPathYawRad)
	}
}

func TestStep_FilterSmoothsAngles(t *testing.T) {
	c := New(Config{Interval: time.Second})
	c.Step(0, 0, 0, 0)
	r := c.Step(0, 0, 10, 0)
	want := 0.2 * math.Pi / 2
	if math.Abs(r.FlightPathPitchRad-want) > 1e-3 {
		t.Fatalf("pitch=%v want %v after one filtered step", r.FlightPathPitchRad, want)
	}
}

func TestStep_NonFiniteInputIgnored(t *testing.T) {
	c := New(Config{Interval: time.Second})
	c.Step(0, 0, 0, 0)
	r := c.Step(math.NaN(), 0, 0, 0)
	if math.IsNaN(r.FlightPathPitchRad) || math.IsNaN(r.FlightPathYawRad) || math.IsNaN(r.GroundSpeedMs) {
		t.Fatalf("NaN leaked: %+v", r)
	}
}

func TestTick_PublishesIntoStore(t *testing.T) {
	s := state.New()
	c := New(Config{Interval: 500 * time.Millisecond})
	c.Tick(s)
	s.Update(func(ac *state.AircraftState, rc *state.RemoteCommand) {
		ac.LatitudeRad = units.DegToRad(0.001)
	})
	c.Tick(s)
	ac := s.Aircraft()
	if ac.Computed.GroundSpeedMs < 200 || ac.Computed.GroundSpeedMs > 250 {
		t.Fatalf("ground speed=%v want ~222", ac.Computed.GroundSpeedMs)
	}
}

func TestParseEarthModel(t *testing.T) {
	if m, ok := ParseEarthModel("wgs84"); !ok || m != WGS84 {
		t.Fatalf("wgs84 -> %v %v", m, ok)
	}
	if m, ok := ParseEarthModel(""); !ok || m != Spherical {
		t.Fatalf("empty -> %v %v", m, ok)
	}
	if _, ok := ParseEarthModel("flat"); ok {
		t.Fatalf("flat accepted")
	}
}
