// Package statusled drives a GPIO output that is lit while the simulator
// is connected.
package statusled

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"simlink/internal/metrics"
	"simlink/internal/periodic"
)

type lineDriver interface {
	SetValue(v int) error
	Close() error
}

var openLineFn = openLine

type Config struct {
	Enable bool
	// Chip is a gpiochip device path; empty searches all chips.
	Chip string
	// Pin is BCM GPIO numbering; the line is looked up by name "GPIO<pin>".
	Pin int
	// Interval is how often the connected flag is sampled.
	Interval time.Duration
}

type Snapshot struct {
	Enabled   bool   `json:"enabled"`
	Available bool   `json:"available"`
	Lit       bool   `json:"lit"`
	LastError string `json:"last_error,omitempty"`
}

type Service struct {
	cfg       Config
	connected func() bool
	metrics   *metrics.Metrics

	mu   sync.Mutex
	snap Snapshot
	drv  lineDriver

	wg sync.WaitGroup
}

func New(cfg Config, connected func() bool, m *metrics.Metrics) *Service {
	if cfg.Pin == 0 {
		cfg.Pin = 17
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 250 * time.Millisecond
	}
	return &Service{cfg: cfg, connected: connected, metrics: m}
}

func (s *Service) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Start opens the line and follows the connected flag until ctx is done,
// then turns the LED off and releases the line.
func (s *Service) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("statusled: service is nil")
	}
	if !s.cfg.Enable {
		return nil
	}
	if s.connected == nil {
		return fmt.Errorf("statusled: connected func is nil")
	}

	drv, err := openLineFn(s.cfg.Chip, s.cfg.Pin)
	s.mu.Lock()
	s.snap.Enabled = true
	if err != nil {
		s.snap.LastError = err.Error()
		s.mu.Unlock()
		return err
	}
	s.drv = drv
	s.snap.Available = true
	s.mu.Unlock()
	log.Printf("statusled: driving GPIO%d", s.cfg.Pin)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release()
		s.update()
		periodic.Run(ctx, "statusled", s.cfg.Interval, s.metrics, s.update)
	}()
	return nil
}

// Wait blocks until the LED loop has released the line.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) update() {
	want := s.connected()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drv == nil || (want == s.snap.Lit && s.snap.LastError == "") {
		return
	}
	v := 0
	if want {
		v = 1
	}
	if err := s.drv.SetValue(v); err != nil {
		if s.snap.LastError == "" {
			log.Printf("statusled: set value failed: %v", err)
		}
		s.snap.LastError = err.Error()
		return
	}
	s.snap.Lit = want
	s.snap.LastError = ""
}

func (s *Service) release() {
	s.mu.Lock()
	drv := s.drv
	s.drv = nil
	s.snap.Lit = false
	s.snap.Available = false
	s.mu.Unlock()
	if drv != nil {
		_ = drv.SetValue(0)
		_ = drv.Close()
	}
}
