package state

import (
	"math"
	"sync"
	"testing"
	"time"

	"simlink/internal/units"
)

func TestNew_Defaults(t *testing.T) {
	s := New()
	ac, rc := s.Snapshot()
	if rc.AltimeterPressurePa != units.StandardPressurePa {
		t.Fatalf("altimeter=%v want %v", rc.AltimeterPressurePa, units.StandardPressurePa)
	}
	if rc.Elevator != 0.5 || rc.Ailerons != 0.5 || rc.Rudder != 0.5 {
		t.Fatalf("surfaces not neutral: %+v", rc)
	}
	if ac.Computed.AltitudeM != 0 {
		t.Fatalf("altitude=%v want 0 at standard pressure", ac.Computed.AltitudeM)
	}
}

func TestAltitude_FollowsReference(t *testing.T) {
	s := New()
	s.Update(func(ac *AircraftState, rc *RemoteCommand) {
		ac.PressureHPa = 1000
	})
	before := s.Aircraft().Computed.AltitudeM

	s.Update(func(ac *AircraftState, rc *RemoteCommand) {
		rc.AltimeterPressurePa = 100000
	})
	after := s.Aircraft().Computed.AltitudeM
	if after != 0 {
		t.Fatalf("altitude=%v want 0 when reference equals static pressure", after)
	}
	if before <= after {
		t.Fatalf("before=%v after=%v", before, after)
	}
}

func TestAltitude_NotCachedAcrossUpdateAircraft(t *testing.T) {
	s := New()
	s.UpdateAircraft(func(ac *AircraftState) {
		ac.Computed.AltitudeM = 12345
	})
	if got := s.Aircraft().Computed.AltitudeM; got != 0 {
		t.Fatalf("altitude=%v want recomputed 0", got)
	}
}

func TestSnapshot_IsCopy(t *testing.T) {
	s := New()
	ac, rc := s.Snapshot()
	ac.PitchRad = 1
	rc.Throttle = 1
	ac2, rc2 := s.Snapshot()
	if ac2.PitchRad != 0 || rc2.Throttle != 0 {
		t.Fatalf("snapshot aliased store")
	}
}

func TestStore_NoDeadlockUnderContention(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	stop := make(chan struct{})

	worker := func(fn func()) {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				fn()
			}
		}
	}

	wg.Add(4)
	go worker(func() {
		s.Update(func(ac *AircraftState, rc *RemoteCommand) {
			ac.Computed.Throttle = math.Mod(ac.Computed.Throttle+0.01, 1)
		})
	})
	go worker(func() { _, _ = s.Snapshot() })
	go worker(func() { _ = s.Command() })
	go worker(func() {
		s.UpdateAircraft(func(ac *AircraftState) { ac.Computed.GroundSpeedMs++ })
	})

	time.Sleep(200 * time.Millisecond)
	close(stop)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("workers did not finish: deadlock")
	}
}
