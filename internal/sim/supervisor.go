package sim

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/tevino/abool/v2"

	"simlink/internal/metrics"
	"simlink/internal/state"
)

// DefaultRetry is the pause between a failed or ended session and the next
// connection attempt.
const DefaultRetry = 5 * time.Second

type SupervisorConfig struct {
	Source Source
	Store  *state.Store
	Retry  time.Duration
	// OnConnect runs on the first sample of every session, before the
	// sample is stored.
	OnConnect func()
	// OnSample runs after each sample has been stored.
	OnSample func()
	Metrics  *metrics.Metrics
}

type Snapshot struct {
	Source       string    `json:"source"`
	Started      bool      `json:"started"`
	Connected    bool      `json:"connected"`
	Sessions     int       `json:"sessions"`
	LastSampleAt time.Time `json:"last_sample_utc,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
}

// Supervisor keeps a Source connected.
type Supervisor struct {
	cfg SupervisorConfig

	started   *abool.AtomicBool
	connected *abool.AtomicBool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	snap   Snapshot
}

func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	if cfg.Retry <= 0 {
		cfg.Retry = DefaultRetry
	}
	s := &Supervisor{
		cfg:       cfg,
		started:   abool.New(),
		connected: abool.New(),
	}
	if cfg.Source != nil {
		s.snap.Source = cfg.Source.Name()
	}
	return s
}

// Start launches the connect loop. Calling Start while running is a no-op.
func (s *Supervisor) Start(ctx context.Context) error {
	if s == nil || s.cfg.Source == nil {
		return errors.New("sim: no source configured")
	}
	if s.cfg.Store == nil {
		return errors.New("sim: store is nil")
	}
	if !s.started.SetToIf(false, true) {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.snap.Started = true
	s.mu.Unlock()

	go func() {
		defer close(done)
		s.loop(runCtx)
	}()
	return nil
}

// Stop cancels the session and waits for the loop to exit. Safe to call
// when not started.
func (s *Supervisor) Stop() {
	if s == nil || !s.started.SetToIf(true, false) {
		return
	}
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	cancel()
	<-done

	s.mu.Lock()
	s.snap.Started = false
	s.mu.Unlock()
}

func (s *Supervisor) Connected() bool {
	return s != nil && s.connected.IsSet()
}

func (s *Supervisor) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snap
	snap.Connected = s.connected.IsSet()
	return snap
}

// Apply forwards cmd to the source while a session is live.
func (s *Supervisor) Apply(cmd Command, value float64) error {
	if !s.Connected() {
		return ErrNotConnected
	}
	return s.cfg.Source.Apply(cmd, value)
}

func (s *Supervisor) loop(ctx context.Context) {
	name := s.cfg.Source.Name()
	for {
		log.Printf("sim %s: connecting", name)
		err := s.cfg.Source.Run(ctx, s.handleSample)
		wasConnected := s.connected.SetToIf(true, false)
		s.cfg.Metrics.SetSimConnected(false)

		if ctx.Err() != nil {
			if wasConnected {
				log.Printf("sim %s: disconnected (stopping)", name)
			}
			return
		}

		msg := "session ended"
		if err != nil {
			msg = err.Error()
		}
		s.mu.Lock()
		s.snap.LastError = msg
		s.mu.Unlock()
		log.Printf("sim %s: %s; reconnecting in %s", name, msg, s.cfg.Retry)

		if !sleepCtx(ctx, s.cfg.Retry) {
			return
		}
		s.cfg.Metrics.SimReconnect()
	}
}

func (s *Supervisor) handleSample(smp Sample) {
	if s.connected.SetToIf(false, true) {
		log.Printf("sim %s: connected", s.cfg.Source.Name())
		s.cfg.Metrics.SetSimConnected(true)
		s.mu.Lock()
		s.snap.Sessions++
		s.snap.LastError = ""
		s.mu.Unlock()
		if s.cfg.OnConnect != nil {
			s.cfg.OnConnect()
		}
	}

	s.cfg.Store.Update(func(ac *state.AircraftState, _ *state.RemoteCommand) {
		ApplySample(ac, smp)
	})

	s.mu.Lock()
	s.snap.LastSampleAt = time.Now().UTC()
	s.mu.Unlock()

	if s.cfg.OnSample != nil {
		s.cfg.OnSample()
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
