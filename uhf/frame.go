package uhf

import (
	"encoding/binary"
	"fmt"
)

// Frame delimiters.
const (
	Header  byte = 0xBB
	Trailer byte = 0x7E
)

// Frame types.
const (
	TypeCommand  byte = 0x00
	TypeResponse byte = 0x01
	TypeNotice   byte = 0x02
)

// Command codes.
const (
	CmdGetSelect     byte = 0x0B
	CmdSetSelect     byte = 0x0C
	CmdSetSelectMode byte = 0x12
	CmdSinglePoll    byte = 0x22
	CmdMultiPoll     byte = 0x27
	CmdStopPoll      byte = 0x28
	CmdWriteData     byte = 0x49
	CmdLock          byte = 0x82
	CmdError         byte = 0xFF
)

// frameOverhead is header, type, command, 2 length bytes, checksum and trailer.
const frameOverhead = 7

// MinFrameLen is the length of a frame with an empty payload.
const MinFrameLen = frameOverhead

// MaxPayloadLen is the largest payload the 16-bit length field can describe.
const MaxPayloadLen = 0xFFFF

// Frame is one protocol frame without its delimiters.
type Frame struct {
	Type    byte
	Command byte
	Payload []byte
}

// Checksum returns the low byte of the sum of b.
func Checksum(b []byte) byte {
	var sum byte
	for _, v := range b {
		sum += v
	}

	return sum
}

// Pack serializes the frame to its wire format.
func (f *Frame) Pack() []byte {
	buf := make([]byte, frameOverhead+len(f.Payload))
	buf[0] = Header
	buf[1] = f.Type
	buf[2] = f.Command
	binary.BigEndian.PutUint16(buf[3:5], uint16(len(f.Payload))) //nolint:gosec // payload size bounded by builders
	copy(buf[5:], f.Payload)
	buf[len(buf)-2] = Checksum(buf[1 : len(buf)-2])
	buf[len(buf)-1] = Trailer

	return buf
}

// Build returns the wire frame for the given type, command and payload.
func Build(typ byte, cmd byte, payload []byte) []byte {
	f := Frame{Type: typ, Command: cmd, Payload: payload}
	return f.Pack()
}

// ParseFrame strictly decodes exactly one wire frame: delimiters, declared
// length and checksum must all agree with raw.
func ParseFrame(raw []byte) (*Frame, error) {
	if len(raw) < MinFrameLen {
		return nil, fmt.Errorf("%w: got %d bytes, want at least %d", ErrTooShort, len(raw), MinFrameLen)
	}
	if raw[0] != Header {
		return nil, fmt.Errorf("%w: 0x%02X", ErrBadHeader, raw[0])
	}
	if raw[len(raw)-1] != Trailer {
		return nil, fmt.Errorf("%w: last byte 0x%02X", ErrPartialFrame, raw[len(raw)-1])
	}

	n := int(binary.BigEndian.Uint16(raw[3:5]))
	if n+frameOverhead != len(raw) {
		return nil, fmt.Errorf("%w: length field %d, frame %d bytes", ErrLengthMismatch, n, len(raw))
	}
	if err := verifyChecksum(raw); err != nil {
		return nil, err
	}

	f := &Frame{Type: raw[1], Command: raw[2]}
	if n > 0 {
		f.Payload = make([]byte, n)
		copy(f.Payload, raw[5:5+n])
	}

	return f, nil
}

// FrameLen reports the wire length of the frame at the start of buf as
// declared by its length field. ok is false until the header and length bytes
// are available.
func FrameLen(buf []byte) (n int, ok bool) {
	if len(buf) < 5 || buf[0] != Header {
		return 0, false
	}

	return int(binary.BigEndian.Uint16(buf[3:5])) + frameOverhead, true
}

func verifyChecksum(raw []byte) error {
	wire := raw[len(raw)-2]
	calc := Checksum(raw[1 : len(raw)-2])
	if wire != calc {
		return fmt.Errorf("%w: wire=0x%02X, computed=0x%02X", ErrChecksumMismatch, wire, calc)
	}

	return nil
}
