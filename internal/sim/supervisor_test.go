package sim

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"simlink/internal/state"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestSupervisor_ReconnectsAfterFailure(t *testing.T) {
	src := &fakeSource{failRuns: 2, sample: Sample{PitchRad: 0.05, AirSpeedKt: 80, PressureHPa: 1013.25}}
	store := state.New()
	var connects, samples atomic.Int32

	s := NewSupervisor(SupervisorConfig{
		Source:    src,
		Store:     store,
		Retry:     5 * time.Millisecond,
		OnConnect: func() { connects.Add(1) },
		OnSample:  func() { samples.Add(1) },
	})
	if s.Connected() {
		t.Fatalf("connected before Start")
	}
	if err := s.Apply(Flaps, 1); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Apply before connect err=%v", err)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	waitFor(t, "first sample", func() bool { return samples.Load() == 1 })

	if src.Runs() != 3 {
		t.Fatalf("runs=%d want 3", src.Runs())
	}
	if connects.Load() != 1 || samples.Load() != 1 {
		t.Fatalf("connects=%d samples=%d want 1,1", connects.Load(), samples.Load())
	}
	if got := store.Aircraft().PitchRad; got != -0.05 {
		t.Fatalf("pitch=%v want -0.05", got)
	}
	snap := s.Snapshot()
	if !snap.Connected || snap.Sessions != 1 || snap.Source != "fake" || snap.LastError != "" {
		t.Fatalf("snapshot=%+v", snap)
	}

	if err := s.Apply(Flaps, 1); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := src.Applied(); len(got) != 1 || got[0].Command != Flaps {
		t.Fatalf("applied=%+v", got)
	}

	s.Stop()
	s.Stop()
	if s.Connected() {
		t.Fatalf("connected after Stop")
	}
	if s.Snapshot().Started {
		t.Fatalf("started after Stop")
	}
}

func TestSupervisor_StartValidates(t *testing.T) {
	if err := NewSupervisor(SupervisorConfig{Store: state.New()}).Start(context.Background()); err == nil {
		t.Fatalf("expected error without source")
	}
	if err := NewSupervisor(SupervisorConfig{Source: &fakeSource{}}).Start(context.Background()); err == nil {
		t.Fatalf("expected error without store")
	}
}

func TestSupervisor_StopDuringRetry(t *testing.T) {
	src := &fakeSource{failRuns: 1000}
	s := NewSupervisor(SupervisorConfig{Source: src, Store: state.New(), Retry: time.Hour})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "first failure", func() bool { return s.Snapshot().LastError != "" })

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Stop blocked during retry wait")
	}
	if src.Runs() != 1 {
		t.Fatalf("runs=%d want 1", src.Runs())
	}
}
