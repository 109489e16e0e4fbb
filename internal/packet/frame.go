package packet

import "bytes"

// Magic prefixes every packet on the serial link.
var Magic = [2]byte{0x53, 0x4C}

// Frame returns Magic followed by payload.
func Frame(payload []byte) []byte {
	b := make([]byte, len(Magic)+len(payload))
	copy(b, Magic[:])
	copy(b[len(Magic):], payload)
	return b
}

// FrameTelemetry returns Magic followed by the encoded telemetry.
func FrameTelemetry(t Telemetry) []byte {
	b := make([]byte, len(Magic)+TelemetrySize)
	copy(b, Magic[:])
	t.Put(b[len(Magic):])
	return b
}

// FrameCommand returns Magic followed by the encoded command.
func FrameCommand(c Command) []byte {
	b := make([]byte, len(Magic)+CommandSize)
	copy(b, Magic[:])
	c.Put(b[len(Magic):])
	return b
}

// Assembler reassembles fixed-size framed packets from an arbitrary byte
// stream. Bytes that do not start with Magic are discarded.
//
// Not safe for concurrent use.
type Assembler struct {
	size int
	buf  []byte
}

// NewAssembler returns an assembler for payloads of payloadSize bytes.
func NewAssembler(payloadSize int) *Assembler {
	return &Assembler{size: payloadSize}
}

// Feed appends p and returns every complete payload now available, plus
// the number of bytes discarded while resynchronizing on Magic.
func (a *Assembler) Feed(p []byte) (payloads [][]byte, dropped int) {
	a.buf = append(a.buf, p...)
	frameLen := len(Magic) + a.size
	for {
		idx := bytes.Index(a.buf, Magic[:])
		if idx < 0 {
			// Keep a trailing first magic byte; it may be completed by the next read.
			keep := 0
			if n := len(a.buf); n > 0 && a.buf[n-1] == Magic[0] {
				keep = 1
			}
			dropped += len(a.buf) - keep
			a.buf = append(a.buf[:0], a.buf[len(a.buf)-keep:]...)
			return payloads, dropped
		}
		if idx > 0 {
			dropped += idx
			a.buf = append(a.buf[:0], a.buf[idx:]...)
		}
		if len(a.buf) < frameLen {
			return payloads, dropped
		}
		payload := make([]byte, a.size)
		copy(payload, a.buf[len(Magic):frameLen])
		payloads = append(payloads, payload)
		a.buf = append(a.buf[:0], a.buf[frameLen:]...)
	}
}

// Reset discards any partial frame.
func (a *Assembler) Reset() {
	a.buf = a.buf[:0]
}
