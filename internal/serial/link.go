// Package serial serves the panel protocol over a serial line. Frames are
// the packet bytes prefixed with packet.Magic; every command frame read is
// answered with one telemetry frame.
package serial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/tevino/abool/v2"

	"simlink/internal/metrics"
	"simlink/internal/packet"
	"simlink/internal/periodic"
)

const (
	transport = "serial"

	DefaultBaud      = 115200
	DefaultLifeCheck = 2 * time.Second
	writeRetry       = time.Second
	maxQueued        = 64
)

// Port is an open serial device.
type Port io.ReadWriteCloser

// Handler consumes command packets and produces telemetry packets.
type Handler interface {
	HandleCommand(transport string, p []byte) error
	Telemetry(transport string) []byte
}

type Config struct {
	Device string
	Baud   int
	// LifeCheck is how often a closed port is reopened.
	LifeCheck time.Duration
}

type Snapshot struct {
	Device       string `json:"device"`
	Baud         int    `json:"baud"`
	Open         bool   `json:"open"`
	FramesIn     uint64 `json:"frames_in"`
	FramesOut    uint64 `json:"frames_out"`
	DroppedBytes uint64 `json:"dropped_bytes"`
	LastError    string `json:"last_error,omitempty"`
}

// Link owns one serial device and keeps it open.
type Link struct {
	h       Handler
	metrics *metrics.Metrics
	openFn  func(device string, baud int) (Port, error)

	lifeCheck time.Duration
	started   *abool.AtomicBool
	signal    chan struct{}
	warn      *periodic.Limiter

	mu     sync.Mutex
	cfg    Config
	port   Port
	asm    *packet.Assembler
	queue  [][]byte
	snap   Snapshot
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config, h Handler, m *metrics.Metrics) *Link {
	if cfg.Baud <= 0 {
		cfg.Baud = DefaultBaud
	}
	lc := cfg.LifeCheck
	if lc <= 0 {
		lc = DefaultLifeCheck
	}
	return &Link{
		h:         h,
		metrics:   m,
		openFn:    openPort,
		lifeCheck: lc,
		started:   abool.New(),
		signal:    make(chan struct{}, 1),
		warn:      periodic.NewLimiter(10 * time.Second),
		cfg:       cfg,
		asm:       packet.NewAssembler(packet.CommandSize),
	}
}

// Start launches the life-check and writer loops. No-op while running.
func (l *Link) Start(ctx context.Context) error {
	if l.h == nil {
		return errors.New("serial: handler is nil")
	}
	if !l.started.SetToIf(false, true) {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	l.mu.Lock()
	l.cancel = cancel
	l.mu.Unlock()

	l.wg.Add(2)
	go func() {
		defer l.wg.Done()
		l.lifeCheckLoop(runCtx)
	}()
	go func() {
		defer l.wg.Done()
		l.writeLoop(runCtx)
	}()
	return nil
}

// Close stops the loops and closes the port.
func (l *Link) Close() {
	if !l.started.SetToIf(true, false) {
		return
	}
	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()
	cancel()

	l.mu.Lock()
	p := l.port
	l.port = nil
	l.snap.Open = false
	l.mu.Unlock()
	if p != nil {
		_ = p.Close()
	}
	l.wg.Wait()
}

// SetDevice switches to another device. The current port is closed now;
// the next life-check opens the new one.
func (l *Link) SetDevice(device string) {
	l.mu.Lock()
	if device == l.cfg.Device {
		l.mu.Unlock()
		return
	}
	log.Printf("serial: device %s -> %s", l.cfg.Device, device)
	l.cfg.Device = device
	p := l.port
	l.port = nil
	l.snap.Open = false
	l.mu.Unlock()

	if p != nil {
		_ = p.Close()
	}
}

func (l *Link) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.port != nil
}

func (l *Link) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.snap
	s.Device = l.cfg.Device
	s.Baud = l.cfg.Baud
	return s
}

// Enqueue queues one frame for the writer. When the queue is full the
// oldest frame is dropped.
func (l *Link) Enqueue(frame []byte) {
	l.mu.Lock()
	if len(l.queue) >= maxQueued {
		l.queue = l.queue[1:]
	}
	l.queue = append(l.queue, frame)
	l.mu.Unlock()

	select {
	case l.signal <- struct{}{}:
	default:
	}
}

func (l *Link) lifeCheckLoop(ctx context.Context) {
	t := time.NewTicker(l.lifeCheck)
	defer t.Stop()
	for {
		l.ensureOpen(ctx)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func (l *Link) ensureOpen(ctx context.Context) {
	l.mu.Lock()
	if l.port != nil || l.cfg.Device == "" {
		l.mu.Unlock()
		return
	}
	device, baud := l.cfg.Device, l.cfg.Baud
	l.mu.Unlock()

	p, err := l.openFn(device, baud)
	if err != nil {
		l.mu.Lock()
		msg := fmt.Sprintf("open %s: %v", device, err)
		if msg != l.snap.LastError {
			log.Printf("serial: %s (retrying every %s)", msg, l.lifeCheck)
		}
		l.snap.LastError = msg
		l.mu.Unlock()
		return
	}

	l.mu.Lock()
	if ctx.Err() != nil || device != l.cfg.Device {
		l.mu.Unlock()
		_ = p.Close()
		return
	}
	l.port = p
	l.asm.Reset()
	l.snap.Open = true
	l.snap.LastError = ""
	l.mu.Unlock()
	log.Printf("serial: opened %s baud=%d", device, baud)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.readLoop(p)
	}()

	select {
	case l.signal <- struct{}{}:
	default:
	}
}

// markClosed drops p if it is still the current port.
func (l *Link) markClosed(p Port, err error) {
	l.mu.Lock()
	current := l.port == p
	if current {
		l.port = nil
		l.snap.Open = false
		l.snap.LastError = err.Error()
	}
	running := l.started.IsSet()
	l.mu.Unlock()

	_ = p.Close()
	if current && running {
		log.Printf("serial: port closed: %v", err)
	}
}

func (l *Link) readLoop(p Port) {
	buf := make([]byte, 256)
	for {
		n, err := p.Read(buf)
		if n > 0 {
			l.handleBytes(buf[:n])
		}
		if err != nil {
			l.markClosed(p, err)
			return
		}
	}
}

func (l *Link) handleBytes(b []byte) {
	l.mu.Lock()
	payloads, dropped := l.asm.Feed(b)
	l.snap.DroppedBytes += uint64(dropped)
	l.snap.FramesIn += uint64(len(payloads))
	l.mu.Unlock()

	if dropped > 0 {
		l.metrics.DroppedBytes(dropped)
		if n, ok := l.warn.Allow(dropped); ok {
			log.Printf("serial: header mismatch, dropped %d bytes", n)
		}
	}
	for _, p := range payloads {
		if err := l.h.HandleCommand(transport, p); err != nil {
			log.Printf("serial: %v", err)
			continue
		}
		l.Enqueue(packet.Frame(l.h.Telemetry(transport)))
	}
}

func (l *Link) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.signal:
		}

		for {
			l.mu.Lock()
			if len(l.queue) == 0 {
				l.mu.Unlock()
				break
			}
			frame, p := l.queue[0], l.port
			l.mu.Unlock()

			if p == nil {
				if !sleepCtx(ctx, writeRetry) {
					return
				}
				continue
			}
			if _, err := p.Write(frame); err != nil {
				l.markClosed(p, err)
				if !sleepCtx(ctx, writeRetry) {
					return
				}
				continue
			}

			l.mu.Lock()
			if len(l.queue) > 0 {
				l.queue = l.queue[1:]
			}
			l.snap.FramesOut++
			l.mu.Unlock()
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
