package uhf

import (
	"errors"
	"fmt"
)

// Framing errors. A frame that fails any of these checks is discarded; the
// caller may keep reading.
var (
	ErrTooShort         = errors.New("uhf: frame too short")
	ErrBadHeader        = errors.New("uhf: bad frame header")
	ErrPartialFrame     = errors.New("uhf: missing frame trailer")
	ErrChecksumMismatch = errors.New("uhf: checksum mismatch")
	ErrUnknownType      = errors.New("uhf: unknown frame type")
	ErrLengthMismatch   = errors.New("uhf: declared length does not match frame")
)

// ErrInvalidArgument is returned by builders given out of range parameters.
var ErrInvalidArgument = errors.New("uhf: invalid argument")

// IsFramingError reports whether err means the bytes read were not a usable
// frame, as opposed to a reader-reported failure.
func IsFramingError(err error) bool {
	return errors.Is(err, ErrTooShort) ||
		errors.Is(err, ErrBadHeader) ||
		errors.Is(err, ErrPartialFrame) ||
		errors.Is(err, ErrChecksumMismatch) ||
		errors.Is(err, ErrUnknownType) ||
		errors.Is(err, ErrLengthMismatch)
}

// Reader error codes carried by error responses.
const (
	CodeTagNotFound      byte = 0x09
	CodeWriteFailed      byte = 0x15
	CodeAccessPassword   byte = 0x16
	CodeTagCommunication byte = 0x17
	CodeExceedsCapacity  byte = 0xA3
)

var ackMessages = map[byte]string{
	CodeTagNotFound:      "tag not found",
	CodeWriteFailed:      "write failed",
	CodeAccessPassword:   "access password incorrect",
	CodeTagCommunication: "tag communication error",
	CodeExceedsCapacity:  "exceeds chip capacity",
}

// AckMessage returns the description of a reader error code. Codes outside the
// known table produce "unknown error (0xNN)".
func AckMessage(code byte) string {
	if msg, ok := ackMessages[code]; ok {
		return msg
	}

	return fmt.Sprintf("unknown error (0x%02X)", code)
}

// AckError is a failure reported by the reader in an error response.
type AckError struct {
	Code byte
}

func (e *AckError) Error() string {
	return "uhf: reader error: " + AckMessage(e.Code)
}

// Message returns the bare description of the error code.
func (e *AckError) Message() string { return AckMessage(e.Code) }

// Is matches another *AckError with the same code, so callers can compare
// against values such as &AckError{Code: CodeTagNotFound}.
func (e *AckError) Is(target error) bool {
	t, ok := target.(*AckError)
	return ok && t.Code == e.Code
}
