package sim

import (
	"context"
	"errors"
	"fmt"

	"simlink/internal/packet"
	"simlink/internal/replay"
	"simlink/internal/units"
)

// Replay plays a recorded telemetry log back as simulator samples.
// Commands are accepted and dropped.
type Replay struct {
	Path  string
	Speed float64
	Loop  bool

	sleeper replay.Sleeper
}

func (r *Replay) Name() string { return "replay" }

func (r *Replay) Run(ctx context.Context, onSample func(Sample)) error {
	recs, err := replay.ReadFile(r.Path)
	if err != nil {
		return fmt.Errorf("replay %s: %w", r.Path, err)
	}
	speed := r.Speed
	if speed <= 0 {
		speed = 1
	}

	err = replay.Play(ctx, recs, speed, r.Loop, r.sleeper, func(frame []byte) error {
		var tel packet.Telemetry
		if err := tel.UnmarshalBinary(frame); err != nil {
			return err
		}
		onSample(SampleFromTelemetry(tel))
		return nil
	})
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("replay %s: %w", r.Path, err)
	}
	return errors.New("replay finished")
}

func (r *Replay) Apply(Command, float64) error { return nil }

// SampleFromTelemetry reconstructs a sample from a recorded packet. The
// packet carries altitude rather than static pressure, so pressure is
// derived against the standard atmosphere.
func SampleFromTelemetry(t packet.Telemetry) Sample {
	altM := float64(t.AltitudeM)
	return Sample{
		LatitudeRad:      float64(t.LatitudeRad),
		LongitudeRad:     float64(t.LongitudeRad),
		PitchRad:         -float64(t.PitchRad),
		HeadingRad:       float64(t.YawRad),
		BankRad:          -float64(t.RollRad),
		SlipSkidG:        t.SlipSkidG(),
		AltitudeFt:       units.MetersToFeet(altM),
		AirSpeedKt:       units.MsToKnots(float64(t.AirSpeedMs)),
		PressureHPa:      units.PaToHPa(units.AltitudeToPressure(units.StandardPressurePa, altM)),
		TemperatureC:     15 - 0.0065*altM,
		WindDirectionDeg: float64(t.WindDirectionDeg),
		WindSpeedKt:      units.MsToKnots(float64(t.WindSpeedMs)),
	}
}
