package uhf

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/arloliu/go-uhf/epc"
)

// TagFrameStride is the spacing of tag notifications packed back to back in
// one read buffer.
const TagFrameStride = 26

// TagFrameMinLen is the shortest tag notification that still holds a full
// EPC window.
const TagFrameMinLen = 21

// defaultEPCLen is used when the PC word does not describe a usable EPC length.
const defaultEPCLen = 12

// Response is a decoded frame received from the reader: *TagData or *Ack.
type Response interface {
	// FrameType returns the frame type byte the response was decoded from.
	FrameType() byte
}

// TagData is a tag notification produced by a poll.
//
// Frame layout: BB 02 22 | len(2) | RSSI | PC(2) | EPC | CRC(2) | ... | chk | 7E
type TagData struct {
	raw    []byte
	RSSI   int8
	PC     uint16
	EPC    []byte
	CRC    uint16
	hasCRC bool
}

// FrameType implements Response.
func (t *TagData) FrameType() byte { return TypeNotice }

// Raw returns a copy of the notification bytes.
func (t *TagData) Raw() []byte { return clone(t.raw) }

// Key returns the uppercase hex of the EPC, used to identify a tag.
func (t *TagData) Key() string {
	return strings.ToUpper(hex.EncodeToString(t.EPC))
}

// Window returns a copy of the bytes holding the EPC payload as laid out for
// l, or nil when the frame is too short for that layout.
func (t *TagData) Window(l epc.Layout) []byte {
	start, end := l.Window()
	if end > len(t.raw) {
		return nil
	}

	return clone(t.raw[start:end])
}

// Record decodes the EPC payload with layout l.
func (t *TagData) Record(l epc.Layout) (epc.Record, error) {
	w := t.Window(l)
	if w == nil {
		start, end := l.Window()
		return epc.Record{}, fmt.Errorf("%w: %d bytes, %s window needs [%d:%d]", ErrTooShort, len(t.raw), l, start, end)
	}

	return epc.Parse(l, w)
}

// HasCRC reports whether the notification carried the tag's CRC word.
func (t *TagData) HasCRC() bool { return t.hasCRC }

// CRCValid reports whether the tag CRC matches PC and EPC.
func (t *TagData) CRCValid() bool {
	if !t.hasCRC {
		return false
	}
	pcEPC := make([]byte, 2+len(t.EPC))
	binary.BigEndian.PutUint16(pcEPC, t.PC)
	copy(pcEPC[2:], t.EPC)

	return TagCRC(pcEPC) == t.CRC
}

// Ack is a response to a command. A failed Ack carries a reader error code.
type Ack struct {
	Command byte
	Failed  bool
	Code    byte
	Payload []byte
}

// FrameType implements Response.
func (a *Ack) FrameType() byte { return TypeResponse }

// Err returns an *AckError for a failed Ack and nil otherwise.
func (a *Ack) Err() error {
	if !a.Failed {
		return nil
	}

	return &AckError{Code: a.Code}
}

// Decode validates one frame read from the reader and classifies it.
//
// The declared length selects the frame within raw; bytes past it are
// ignored. That frame must end with the trailer and carry a valid checksum.
func Decode(raw []byte) (Response, error) {
	if len(raw) < 4 {
		return nil, fmt.Errorf("%w: got %d bytes", ErrTooShort, len(raw))
	}
	if raw[0] != Header {
		return nil, fmt.Errorf("%w: 0x%02X", ErrBadHeader, raw[0])
	}
	n, ok := FrameLen(raw)
	if !ok {
		return nil, fmt.Errorf("%w: got %d bytes", ErrTooShort, len(raw))
	}
	if n > len(raw) {
		return nil, fmt.Errorf("%w: declared %d bytes, got %d", ErrLengthMismatch, n, len(raw))
	}
	raw = raw[:n]
	if raw[n-1] != Trailer {
		return nil, fmt.Errorf("%w: last byte 0x%02X", ErrPartialFrame, raw[n-1])
	}
	if err := verifyChecksum(raw); err != nil {
		return nil, err
	}

	switch raw[1] {
	case TypeNotice:
		return decodeTagData(raw)
	case TypeResponse:
		return decodeAck(raw), nil
	default:
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownType, raw[1])
	}
}

// DecodeBatch decodes a read buffer that may hold several tag notifications
// back to back, walking it at TagFrameStride. Chunks that fail to decode are
// skipped; their errors are joined into the returned error alongside the
// responses that did decode.
//
// Buffers that do not start with a tag notification decode as one frame.
func DecodeBatch(raw []byte) ([]Response, error) {
	if len(raw) <= TagFrameStride || raw[0] != Header || raw[1] != TypeNotice {
		resp, err := Decode(raw)
		if err != nil {
			return nil, err
		}

		return []Response{resp}, nil
	}

	var (
		out  []Response
		errs []error
	)
	for i := 0; i < len(raw); i += TagFrameStride {
		end := min(i+TagFrameStride, len(raw))
		resp, err := Decode(raw[i:end])
		if err != nil {
			errs = append(errs, fmt.Errorf("offset %d: %w", i, err))
			continue
		}
		out = append(out, resp)
	}

	return out, errors.Join(errs...)
}

func decodeTagData(raw []byte) (*TagData, error) {
	if len(raw) < TagFrameMinLen {
		return nil, fmt.Errorf("%w: tag notification of %d bytes, need %d", ErrTooShort, len(raw), TagFrameMinLen)
	}

	t := &TagData{
		raw:  clone(raw),
		RSSI: int8(raw[5]), //nolint:gosec // RSSI is a signed dBm value
		PC:   binary.BigEndian.Uint16(raw[6:8]),
	}

	// the last two bytes are checksum and trailer
	body := len(raw) - 2
	epcLen := int(t.PC>>11) * 2
	if epcLen == 0 || 8+epcLen > body {
		epcLen = min(defaultEPCLen, body-8)
	}
	t.EPC = clone(raw[8 : 8+epcLen])

	if crcEnd := 8 + epcLen + 2; crcEnd <= body {
		t.CRC = binary.BigEndian.Uint16(raw[8+epcLen : crcEnd])
		t.hasCRC = true
	}

	return t, nil
}

func decodeAck(raw []byte) *Ack {
	a := &Ack{
		Command: raw[2],
		Payload: clone(raw[5 : len(raw)-2]),
	}
	if a.Command == CmdError {
		a.Failed = true
		// status byte, then the error code
		if len(a.Payload) > 1 {
			a.Code = a.Payload[1]
		}
	}

	return a
}
