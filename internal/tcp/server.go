// Package tcp serves the panel protocol over TCP: each command packet read
// is answered by one telemetry packet.
package tcp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strconv"
	"sync"

	"github.com/tevino/abool/v2"

	"simlink/internal/metrics"
	"simlink/internal/packet"
)

const transport = "tcp"

var ErrNotStarted = errors.New("tcp: server not started")

// Handler consumes command packets and produces telemetry packets.
type Handler interface {
	HandleCommand(transport string, p []byte) error
	Telemetry(transport string) []byte
}

type Server struct {
	h       Handler
	metrics *metrics.Metrics

	running *abool.AtomicBool

	mu    sync.Mutex
	ln    net.Listener
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

func New(h Handler, m *metrics.Metrics) *Server {
	return &Server{
		h:       h,
		metrics: m,
		running: abool.New(),
		conns:   make(map[net.Conn]struct{}),
	}
}

// Start listens on port (0 picks a free one) and accepts sessions in the
// background. It is a no-op while already running; call Stop first to
// change the port.
func (s *Server) Start(port int) error {
	if s.h == nil {
		return errors.New("tcp: handler is nil")
	}
	if port < 0 || port > 65535 {
		return fmt.Errorf("tcp: invalid port %d", port)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running.IsSet() {
		return nil
	}

	ln, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("tcp listen :%d: %w", port, err)
	}
	s.ln = ln
	s.running.Set()
	log.Printf("tcp: listening on %s", ln.Addr())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop(ln)
	}()
	return nil
}

// Stop closes the listener and every live session, then waits for their
// goroutines. Safe to call when not running.
func (s *Server) Stop() {
	s.mu.Lock()
	if !s.running.IsSet() {
		s.mu.Unlock()
		return
	}
	s.running.UnSet()
	ln := s.ln
	s.ln = nil
	_ = ln.Close()
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	log.Printf("tcp: stopped")
}

func (s *Server) Running() bool { return s.running.IsSet() }

// Addr is the bound listen address.
func (s *Server) Addr() (net.Addr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil, ErrNotStarted
	}
	return s.ln.Addr(), nil
}

// Sessions is the number of live sessions.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		c, err := ln.Accept()
		if err != nil {
			if !s.running.IsSet() || errors.Is(err, net.ErrClosed) {
				return
			}
			log.Printf("tcp: accept failed: %v", err)
			continue
		}

		s.mu.Lock()
		if !s.running.IsSet() {
			s.mu.Unlock()
			_ = c.Close()
			return
		}
		s.conns[c] = struct{}{}
		s.wg.Add(1)
		s.mu.Unlock()

		go func() {
			defer s.wg.Done()
			s.serve(c)
		}()
	}
}

func (s *Server) serve(c net.Conn) {
	remote := c.RemoteAddr().String()
	log.Printf("tcp: session %s opened", remote)
	s.metrics.SessionOpened()
	defer func() {
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
		_ = c.Close()
		s.metrics.SessionClosed()
		log.Printf("tcp: session %s closed", remote)
	}()

	br := bufio.NewReaderSize(c, 4096)
	buf := make([]byte, packet.CommandSize)
	for {
		if err := s.readCommand(br, buf); err != nil {
			if !errors.Is(err, io.EOF) && s.running.IsSet() {
				log.Printf("tcp: session %s: %v", remote, err)
			}
			return
		}
		// Drain packets that are already here so the reply reflects the
		// newest command.
		for br.Buffered() > 0 {
			if err := s.readCommand(br, buf); err != nil {
				if s.running.IsSet() {
					log.Printf("tcp: session %s: %v", remote, err)
				}
				return
			}
		}

		if _, err := c.Write(s.h.Telemetry(transport)); err != nil {
			if s.running.IsSet() {
				log.Printf("tcp: session %s write: %v", remote, err)
			}
			return
		}
	}
}

func (s *Server) readCommand(br *bufio.Reader, buf []byte) error {
	if _, err := io.ReadFull(br, buf); err != nil {
		return err
	}
	if err := s.h.HandleCommand(transport, buf); err != nil {
		log.Printf("tcp: %v", err)
	}
	return nil
}
