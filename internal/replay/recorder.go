package replay

import (
	"context"
	"fmt"
	"log"
	"time"

	"simlink/internal/metrics"
	"simlink/internal/packet"
	"simlink/internal/periodic"
	"simlink/internal/state"
)

// RecorderConfig describes a telemetry recording.
type RecorderConfig struct {
	Path     string
	Interval time.Duration
	// FlushEvery bounds how much is lost on a crash (uncompressed logs only).
	FlushEvery time.Duration
}

// RecordTelemetry writes a telemetry packet from store every cfg.Interval until ctx
// is done, then closes the log.
func RecordTelemetry(ctx context.Context, cfg RecorderConfig, store *state.Store, m *metrics.Metrics) error {
	if store == nil {
		return fmt.Errorf("replay: store is nil")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 100 * time.Millisecond
	}
	if cfg.FlushEvery <= 0 {
		cfg.FlushEvery = 5 * time.Second
	}

	w, err := CreateWriter(cfg.Path)
	if err != nil {
		return fmt.Errorf("replay: create %s: %w", cfg.Path, err)
	}
	log.Printf("recording telemetry to %s every %s", cfg.Path, cfg.Interval)

	var lastFlush time.Time
	var writeErr error
	periodic.Run(ctx, "record", cfg.Interval, m, func() {
		if writeErr != nil {
			return
		}
		ac, _ := store.Snapshot()
		b, _ := packet.TelemetryFrom(ac).MarshalBinary()
		now := time.Now()
		if err := w.WriteFrame(now, b); err != nil {
			writeErr = err
			log.Printf("recording stopped: %v", err)
			return
		}
		if now.Sub(lastFlush) >= cfg.FlushEvery {
			lastFlush = now
			if err := w.Flush(); err != nil {
				writeErr = err
				log.Printf("recording flush failed: %v", err)
			}
		}
	})

	if err := w.Close(); err != nil {
		return fmt.Errorf("replay: close %s: %w", cfg.Path, err)
	}
	return writeErr
}
