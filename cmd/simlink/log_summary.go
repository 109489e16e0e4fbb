package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"simlink/internal/packet"
	"simlink/internal/replay"
	"simlink/internal/units"
)

type logSummary struct {
	Segments    int
	Frames      int
	Invalid     int
	MaxDuration time.Duration

	MinAltitudeFt float64
	MaxAltitudeFt float64
	MaxAirspeedKt float64
	MaxGroundKt   float64
}

func summarizeTelemetryLog(records []replay.Record) logSummary {
	var s logSummary
	if len(records) == 0 {
		return s
	}

	origin := time.Duration(0)
	hasFrames := false
	haveAlt := false

	for _, r := range records {
		if r.Frame == nil {
			s.Segments++
			origin = r.At
			continue
		}
		hasFrames = true

		s.Frames++
		if at := r.At - origin; at > s.MaxDuration {
			s.MaxDuration = at
		}

		var t packet.Telemetry
		if err := t.UnmarshalBinary(r.Frame); err != nil {
			s.Invalid++
			continue
		}
		alt := units.MetersToFeet(float64(t.AltitudeM))
		if !haveAlt || alt < s.MinAltitudeFt {
			s.MinAltitudeFt = alt
		}
		if !haveAlt || alt > s.MaxAltitudeFt {
			s.MaxAltitudeFt = alt
		}
		haveAlt = true
		if kt := units.MsToKnots(float64(t.AirSpeedMs)); kt > s.MaxAirspeedKt {
			s.MaxAirspeedKt = kt
		}
		if kt := units.MsToKnots(float64(t.GroundSpeedMs)); kt > s.MaxGroundKt {
			s.MaxGroundKt = kt
		}
	}
	if s.Segments == 0 && hasFrames {
		s.Segments = 1
	}
	return s
}

func printLogSummary(w io.Writer, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("path is empty")
	}

	recs, err := replay.ReadFile(path)
	if err != nil {
		return err
	}
	s := summarizeTelemetryLog(recs)

	fmt.Fprintf(w, "path: %s\n", path)
	fmt.Fprintf(w, "segments: %d\n", s.Segments)
	fmt.Fprintf(w, "frames: %d\n", s.Frames)
	fmt.Fprintf(w, "invalid_frames: %d\n", s.Invalid)
	fmt.Fprintf(w, "max_duration: %s\n", s.MaxDuration)
	if s.Frames > s.Invalid {
		fmt.Fprintf(w, "altitude_ft: %.0f..%.0f\n", s.MinAltitudeFt, s.MaxAltitudeFt)
		fmt.Fprintf(w, "max_airspeed_kt: %.1f\n", s.MaxAirspeedKt)
		fmt.Fprintf(w, "max_ground_speed_kt: %.1f\n", s.MaxGroundKt)
	}
	return nil
}
