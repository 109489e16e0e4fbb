package sim

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"simlink/internal/packet"
	"simlink/internal/replay"
	"simlink/internal/state"
	"simlink/internal/units"
)

func TestSampleFromTelemetry_InvertsApplySample(t *testing.T) {
	ac := state.DefaultAircraftState()
	ac.PitchRad = 0.1
	ac.RollRad = -0.3
	ac.YawRad = 2
	ac.AirSpeedMs = 60
	ac.Computed.AltitudeM = 1200
	ac.Computed.SlipSkidG = 0.2

	tel := packet.TelemetryFrom(ac)
	got := state.DefaultAircraftState()
	ApplySample(&got, SampleFromTelemetry(tel))

	if math.Abs(got.PitchRad-0.1) > 1e-6 || math.Abs(got.RollRad+0.3) > 1e-6 || math.Abs(got.YawRad-2) > 1e-6 {
		t.Fatalf("attitude=%v/%v/%v", got.PitchRad, got.RollRad, got.YawRad)
	}
	if math.Abs(got.AirSpeedMs-60) > 1e-4 {
		t.Fatalf("airspeed=%v want 60", got.AirSpeedMs)
	}
	alt := state.Altitude(got, state.DefaultRemoteCommand())
	if math.Abs(alt-1200) > 0.5 {
		t.Fatalf("altitude=%v want 1200", alt)
	}
	if math.Abs(got.Computed.SlipSkidG-0.2) > 1e-3 {
		t.Fatalf("slip=%v want 0.2", got.Computed.SlipSkidG)
	}
}

func TestReplay_PlaysRecording(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.log.zst")
	w, err := replay.CreateWriter(path)
	if err != nil {
		t.Fatalf("CreateWriter: %v", err)
	}
	now := time.Now()
	for i := 0; i < 3; i++ {
		ac := state.DefaultAircraftState()
		ac.AirSpeedMs = units.KnotsToMs(float64(100 + i))
		b, _ := packet.TelemetryFrom(ac).MarshalBinary()
		if err := w.WriteFrame(now, b); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r := &Replay{Path: path}
	var speeds []float64
	err = r.Run(context.Background(), func(s Sample) { speeds = append(speeds, s.AirSpeedKt) })
	if err == nil {
		t.Fatalf("expected end-of-recording error")
	}
	if len(speeds) != 3 || math.Abs(speeds[2]-102) > 1e-3 {
		t.Fatalf("speeds=%v", speeds)
	}

	if err := (&Replay{Path: filepath.Join(t.TempDir(), "missing.log")}).Run(context.Background(), func(Sample) {}); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
