//go:build !linux

package serial

import (
	"io"
	"time"

	"github.com/tarm/serial"
	"github.com/tevino/abool/v2"
)

// tarmPort polls with a short read timeout so Close can interrupt a read.
type tarmPort struct {
	p      *serial.Port
	closed *abool.AtomicBool
}

func openPort(path string, baud int) (Port, error) {
	p, err := serial.OpenPort(&serial.Config{
		Name:        path,
		Baud:        baud,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: 500 * time.Millisecond,
	})
	if err != nil {
		return nil, err
	}
	return &tarmPort{p: p, closed: abool.New()}, nil
}

func (t *tarmPort) Read(b []byte) (int, error) {
	for {
		n, err := t.p.Read(b)
		if n > 0 {
			return n, nil
		}
		if t.closed.IsSet() {
			return 0, io.ErrClosedPipe
		}
		// A timed-out read reports 0 bytes (EOF on some platforms).
		if err != nil && err != io.EOF {
			return 0, err
		}
	}
}

func (t *tarmPort) Write(b []byte) (int, error) {
	return t.p.Write(b)
}

func (t *tarmPort) Close() error {
	if !t.closed.SetToIf(false, true) {
		return nil
	}
	return t.p.Close()
}
