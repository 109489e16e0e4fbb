// Package replay records telemetry packets to a text log and plays them
// back with their original timing.
package replay

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Log format: line-oriented text.
//
// - Blank lines ignored.
// - Lines starting with '#' ignored.
// - Line "START" resets the origin (next record time is relative to 0 again).
// - Data lines are: <t_ns>,<hex>
//   where t_ns is nanoseconds since START and hex is one raw telemetry packet.
//
// Files whose name ends in ".zst" are zstd-compressed as a whole.

type Record struct {
	At    time.Duration
	Frame []byte
}

func compressed(path string) bool {
	return strings.HasSuffix(path, ".zst")
}

type Reader struct {
	r io.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// ReadFile reads every record in path, decompressing .zst files.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if compressed(path) {
		zr, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(0))
		if err != nil {
			return nil, fmt.Errorf("open zstd %s: %w", path, err)
		}
		defer zr.Close()
		r = zr
	}
	return NewReader(r).ReadAll()
}

func (rr *Reader) ReadAll() ([]Record, error) {
	s := bufio.NewScanner(rr.r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	recs := make([]Record, 0, 1024)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == "START" {
			recs = append(recs, Record{At: 0, Frame: nil})
			continue
		}

		comma := strings.IndexByte(line, ',')
		if comma < 0 {
			return nil, fmt.Errorf("invalid replay line (missing comma): %q", line)
		}
		tsStr := strings.TrimSpace(line[:comma])
		hexStr := strings.TrimSpace(line[comma+1:])
		if tsStr == "" || hexStr == "" {
			return nil, fmt.Errorf("invalid replay line (empty field): %q", line)
		}

		tsNs, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid replay timestamp %q: %w", tsStr, err)
		}
		if tsNs < 0 {
			return nil, fmt.Errorf("invalid replay timestamp (negative): %d", tsNs)
		}

		b, err := hex.DecodeString(strings.ReplaceAll(hexStr, " ", ""))
		if err != nil {
			return nil, fmt.Errorf("invalid replay hex payload: %w", err)
		}
		if len(b) == 0 {
			return nil, fmt.Errorf("invalid replay payload (empty)")
		}

		recs = append(recs, Record{At: time.Duration(tsNs), Frame: b})
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

type Writer struct {
	f      *os.File
	zw     *zstd.Encoder
	w      *bufio.Writer
	start  time.Time
	closed bool
}

// CreateWriter truncates path and writes the START marker. A ".zst" suffix
// selects compression.
func CreateWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	ww := &Writer{f: f, start: time.Now()}

	var out io.Writer = f
	if compressed(path) {
		zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("create zstd %s: %w", path, err)
		}
		ww.zw = zw
		out = zw
	}
	ww.w = bufio.NewWriterSize(out, 64*1024)
	if _, err := ww.w.WriteString("START\n"); err != nil {
		_ = ww.Close()
		return nil, err
	}
	return ww, nil
}

func (ww *Writer) WriteFrame(now time.Time, frame []byte) error {
	if ww.closed {
		return errors.New("replay writer is closed")
	}
	if frame == nil {
		return errors.New("frame is nil")
	}

	d := now.Sub(ww.start)
	if d < 0 {
		d = 0
	}
	_, err := fmt.Fprintf(ww.w, "%d,%s\n", d.Nanoseconds(), hex.EncodeToString(frame))
	return err
}

// Flush pushes buffered lines to the file. For compressed logs the data is
// only complete once Close has written the final zstd frame.
func (ww *Writer) Flush() error {
	if ww.closed {
		return nil
	}
	if err := ww.w.Flush(); err != nil {
		return err
	}
	if ww.zw != nil {
		return ww.zw.Flush()
	}
	return nil
}

func (ww *Writer) Close() error {
	if ww.closed {
		return nil
	}
	ww.closed = true
	err := ww.w.Flush()
	if ww.zw != nil {
		if zerr := ww.zw.Close(); err == nil {
			err = zerr
		}
	}
	if ferr := ww.f.Close(); err == nil {
		err = ferr
	}
	return err
}

type Sleeper interface {
	// Sleep waits d and reports false if ctx ended first.
	Sleep(ctx context.Context, d time.Duration) bool
}

type realSleeper struct{}

func (realSleeper) Sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Play replays records with their relative timing.
//
// The callback is invoked for each record that contains a frame. START
// markers reset the origin. speedMultiplier: 1.0 = real time, 2.0 = half
// the waits. Returns ctx.Err() when cancelled.
func Play(ctx context.Context, records []Record, speedMultiplier float64, loop bool, sleeper Sleeper, cb func(frame []byte) error) error {
	if speedMultiplier <= 0 {
		return fmt.Errorf("speedMultiplier must be > 0")
	}
	if sleeper == nil {
		sleeper = realSleeper{}
	}
	if cb == nil {
		return errors.New("callback is nil")
	}
	if len(records) == 0 {
		return errors.New("no records")
	}

	for {
		var origin, lastAt time.Duration
		var haveLast bool

		for _, r := range records {
			if r.Frame == nil {
				origin = r.At
				lastAt = 0
				haveLast = false
				continue
			}

			at := r.At - origin
			if at < 0 {
				at = 0
			}
			if haveLast {
				wait := at - lastAt
				if wait < 0 {
					wait = 0
				}
				wait = time.Duration(float64(wait) / speedMultiplier)
				if wait > 0 && !sleeper.Sleep(ctx, wait) {
					return ctx.Err()
				}
			}
			if err := ctx.Err(); err != nil {
				return err
			}

			if err := cb(r.Frame); err != nil {
				return err
			}

			lastAt = at
			haveLast = true
		}

		if !loop {
			return nil
		}
	}
}
