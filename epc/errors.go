package epc

import (
	"errors"
	"fmt"
)

// Parse failure kinds, matched with errors.Is against a *ParseError.
var (
	ErrTooShort  = errors.New("epc: payload too short")
	ErrBadLength = errors.New("epc: payload length mismatch")
	ErrMalformed = errors.New("epc: malformed field")
)

// Format failure kinds, matched with errors.Is against an *EncodeError.
var (
	ErrInvalidProductID = errors.New("epc: invalid product id")
	ErrInvalidTagID     = errors.New("epc: invalid tag id")
	ErrInvalidDate      = errors.New("epc: invalid date")
	ErrInvalidStatus    = errors.New("epc: invalid status")
)

// ParseError reports an EPC payload that could not be decoded with a layout.
// Raw carries the uppercase hex that was inspected so the caller can surface it.
type ParseError struct {
	Layout string
	Kind   error
	Need   int
	Got    int
	Raw    string
}

func (e *ParseError) Error() string {
	switch {
	case errors.Is(e.Kind, ErrTooShort):
		return fmt.Sprintf("%v: layout %s needs at least %d hex digits, got %d (raw=%s)", e.Kind, e.Layout, e.Need, e.Got, e.Raw)
	case errors.Is(e.Kind, ErrBadLength):
		return fmt.Sprintf("%v: layout %s needs exactly %d hex digits, got %d (raw=%s)", e.Kind, e.Layout, e.Need, e.Got, e.Raw)
	default:
		return fmt.Sprintf("%v: layout %s (raw=%s)", e.Kind, e.Layout, e.Raw)
	}
}

func (e *ParseError) Unwrap() error { return e.Kind }

// EncodeError reports a record field rejected by Format.
type EncodeError struct {
	Field  string
	Reason string
	Err    error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("%v: %s %s", e.Err, e.Field, e.Reason)
}

func (e *EncodeError) Unwrap() error { return e.Err }
