// Package udp mirrors telemetry packets to a fixed UDP destination.
package udp

import (
	"context"
	"fmt"
	"log"
	"net"
	"time"

	"simlink/internal/metrics"
	"simlink/internal/periodic"
)

type udpConn interface {
	Write(p []byte) (int, error)
	Close() error
}

type resolveFunc func(network, address string) (*net.UDPAddr, error)
type dialFunc func(network string, laddr, raddr *net.UDPAddr) (udpConn, error)

// Mirror sends a copy of each telemetry packet to dest. Sends are
// fire-and-forget; nobody is expected to answer.
type Mirror struct {
	dest    string
	conn    udpConn
	metrics *metrics.Metrics
	warn    *periodic.Limiter
}

func NewMirror(dest string, m *metrics.Metrics) (*Mirror, error) {
	mr, err := newMirror(dest, net.ResolveUDPAddr, func(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
		return net.DialUDP(network, laddr, raddr)
	})
	if err != nil {
		return nil, err
	}
	mr.metrics = m
	return mr, nil
}

func newMirror(dest string, resolve resolveFunc, dial dialFunc) (*Mirror, error) {
	addr, err := resolve("udp", dest)
	if err != nil {
		return nil, fmt.Errorf("resolve dest: %w", err)
	}

	// DialUDP selects a suitable local address automatically.
	conn, err := dial("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial udp: %w", err)
	}

	return &Mirror{
		dest: dest,
		conn: conn,
		warn: periodic.NewLimiter(10 * time.Second),
	}, nil
}

func (m *Mirror) Dest() string { return m.dest }

func (m *Mirror) Send(payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	_, err := m.conn.Write(payload)
	return err
}

// Run sends one packet from next every interval until ctx is done.
// Send errors are logged (throttled) and do not stop the loop.
func (m *Mirror) Run(ctx context.Context, interval time.Duration, next func() []byte) {
	log.Printf("udp: mirroring telemetry to %s every %s", m.dest, interval)
	periodic.Run(ctx, "udp", interval, m.metrics, func() {
		if err := m.Send(next()); err != nil {
			if n, ok := m.warn.Allow(1); ok {
				log.Printf("udp: send to %s failed (%d times): %v", m.dest, n, err)
			}
		}
	})
}

func (m *Mirror) Close() error {
	if m.conn == nil {
		return nil
	}
	return m.conn.Close()
}
