package main

import (
	"bytes"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"simlink/internal/packet"
	"simlink/internal/replay"
)

func telemetryFrame(t *testing.T, altM, airMs float32) []byte {
	t.Helper()
	b, err := packet.Telemetry{AltitudeM: altM, AirSpeedMs: airMs}.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary() error: %v", err)
	}
	return b
}

func TestSummarizeTelemetryLog(t *testing.T) {
	recs := []replay.Record{
		{At: 0, Frame: nil},
		{At: 0, Frame: telemetryFrame(t, 304.8, 51.444444)},
		{At: 200 * time.Millisecond, Frame: telemetryFrame(t, 609.6, 61.733333)},
		{At: 300 * time.Millisecond, Frame: []byte{0x01, 0x02}},
		{At: 0, Frame: nil},
		{At: 1 * time.Second, Frame: telemetryFrame(t, 152.4, 30.866666)},
	}

	s := summarizeTelemetryLog(recs)
	if s.Segments != 2 {
		t.Fatalf("segments=%d want %d", s.Segments, 2)
	}
	if s.Frames != 4 {
		t.Fatalf("frames=%d want %d", s.Frames, 4)
	}
	if s.Invalid != 1 {
		t.Fatalf("invalid=%d want %d", s.Invalid, 1)
	}
	if s.MaxDuration != 1*time.Second {
		t.Fatalf("maxDuration=%s want %s", s.MaxDuration, 1*time.Second)
	}
	if math.Abs(s.MinAltitudeFt-500) > 0.01 || math.Abs(s.MaxAltitudeFt-2000) > 0.01 {
		t.Fatalf("altitude=%.3f..%.3f want 500..2000", s.MinAltitudeFt, s.MaxAltitudeFt)
	}
	if math.Abs(s.MaxAirspeedKt-120) > 0.01 {
		t.Fatalf("maxAirspeed=%.3f want 120", s.MaxAirspeedKt)
	}
}

func TestSummarizeTelemetryLog_NoStartMarker(t *testing.T) {
	s := summarizeTelemetryLog([]replay.Record{{At: time.Second, Frame: telemetryFrame(t, 0, 0)}})
	if s.Segments != 1 || s.Frames != 1 {
		t.Fatalf("summary=%+v", s)
	}
}

func TestPrintLogSummary_PrintsExpectedFields(t *testing.T) {
	for _, name := range []string{"flight.log", "flight.log.zst"} {
		t.Run(name, func(t *testing.T) {
			logPath := filepath.Join(t.TempDir(), name)

			w, err := replay.CreateWriter(logPath)
			if err != nil {
				t.Fatalf("CreateWriter() error: %v", err)
			}
			now := time.Now()
			for i := 0; i < 3; i++ {
				if err := w.WriteFrame(now.Add(time.Duration(i)*time.Second), telemetryFrame(t, 1000, 50)); err != nil {
					_ = w.Close()
					t.Fatalf("WriteFrame() error: %v", err)
				}
			}
			if err := w.Close(); err != nil {
				t.Fatalf("Close() error: %v", err)
			}

			var out bytes.Buffer
			if err := printLogSummary(&out, logPath); err != nil {
				t.Fatalf("printLogSummary() error: %v", err)
			}
			got := out.String()
			for _, want := range []string{"segments: 1\n", "frames: 3\n", "invalid_frames: 0\n", "altitude_ft: 3281..3281\n"} {
				if !strings.Contains(got, want) {
					t.Fatalf("output missing %q:\n%s", want, got)
				}
			}
		})
	}
}

func TestPrintLogSummary_EmptyPath(t *testing.T) {
	if err := printLogSummary(&bytes.Buffer{}, "  "); err == nil {
		t.Fatalf("expected error")
	}
}
