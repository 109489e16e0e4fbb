// Package bridge connects the panel transports to the shared state and the
// simulator: command packets in, telemetry packets out.
package bridge

import (
	"errors"
	"fmt"
	"log"
	"time"

	"simlink/internal/metrics"
	"simlink/internal/packet"
	"simlink/internal/periodic"
	"simlink/internal/sim"
	"simlink/internal/state"
)

type Bridge struct {
	store      *state.Store
	sim        sim.Applier
	translator *sim.Translator
	metrics    *metrics.Metrics

	warn *periodic.Limiter
}

// New wires a bridge. dst may be nil when no simulator is configured;
// commands are then stored but not forwarded.
func New(store *state.Store, dst sim.Applier, m *metrics.Metrics) *Bridge {
	return &Bridge{
		store:      store,
		sim:        dst,
		translator: sim.NewTranslator(m),
		metrics:    m,
		warn:       periodic.NewLimiter(10 * time.Second),
	}
}

// HandleCommand decodes one command packet into the shared state and
// forwards the resulting control inputs to the simulator. A decode error
// leaves the state untouched.
func (b *Bridge) HandleCommand(transport string, p []byte) error {
	var c packet.Command
	if err := c.UnmarshalBinary(p); err != nil {
		b.metrics.DecodeError(transport)
		return fmt.Errorf("%s command: %w", transport, err)
	}
	b.store.Update(func(_ *state.AircraftState, rc *state.RemoteCommand) {
		c.Apply(rc)
	})
	b.metrics.PacketIn(transport)
	b.Push()
	return nil
}

// Telemetry encodes the current aircraft state.
func (b *Bridge) Telemetry(transport string) []byte {
	ac, _ := b.store.Snapshot()
	out, _ := packet.TelemetryFrom(ac).MarshalBinary()
	b.metrics.PacketOut(transport)
	return out
}

// Push forwards changed control inputs to the simulator.
func (b *Bridge) Push() {
	if b.sim == nil {
		return
	}
	ac, rc := b.store.Snapshot()
	if _, err := b.translator.Push(b.sim, ac, rc); err != nil && !errors.Is(err, sim.ErrNotConnected) {
		if n, ok := b.warn.Allow(1); ok {
			log.Printf("bridge: sim command failed (%d since last report): %v", n, err)
		}
	}
}

// SimReconnected makes the next Push resend every input.
func (b *Bridge) SimReconnected() {
	b.translator.Forget()
}
