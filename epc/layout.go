package epc

import (
	"fmt"
	"strings"
)

// EPCHexLen is the number of hex digits in a formatted EPC (12 bytes, 6 words).
const EPCHexLen = 24

// EPCWords is the EPC length in 16-bit words as written to the EPC bank.
const EPCWords = EPCHexLen / 4

// Layout describes how one firmware generation packs record fields into the EPC.
type Layout struct {
	name        string
	tagIDLen    int
	productLen  int
	monthLen    int
	hasStatus   bool
	stripPrefix string // removed before slicing when present
	skipPrefix  int    // digits always skipped before slicing
	exactLen    int    // 0 means minLen is a lower bound only
	minLen      int
	winStart    int
	winEnd      int
}

var (
	// LayoutA is the newer firmware layout: 4-digit tag id, 13-digit product id,
	// one-nibble month and no status field.
	//
	// Its read window inside a tag notification spans the PC low byte, the EPC
	// and the first CRC byte; a leading "0000" is stripped before the fields are
	// sliced.
	LayoutA = Layout{
		name:        "A",
		tagIDLen:    4,
		productLen:  13,
		monthLen:    1,
		stripPrefix: "0000",
		minLen:      22,
		winStart:    7,
		winEnd:      21,
	}

	// LayoutB is the older firmware layout: 6-digit tag id, 8-digit product id,
	// two-digit month and a two-digit status code.
	LayoutB = Layout{
		name:       "B",
		tagIDLen:   6,
		productLen: 8,
		monthLen:   2,
		hasStatus:  true,
		skipPrefix: 2,
		exactLen:   EPCHexLen,
		minLen:     EPCHexLen,
		winStart:   8,
		winEnd:     20,
	}
)

// ParseLayout resolves a layout by name. "A"/"new" and "B"/"old" are accepted,
// case-insensitively.
func ParseLayout(name string) (Layout, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "A", "NEW":
		return LayoutA, nil
	case "B", "OLD":
		return LayoutB, nil
	default:
		return Layout{}, fmt.Errorf("epc: unknown layout %q", name)
	}
}

// Name returns the layout name ("A" or "B").
func (l Layout) Name() string { return l.name }

// String implements fmt.Stringer.
func (l Layout) String() string { return "layout " + l.name }

// TagIDLen returns the tag id width in hex digits.
func (l Layout) TagIDLen() int { return l.tagIDLen }

// ProductIDLen returns the product id width in hex digits.
func (l Layout) ProductIDLen() int { return l.productLen }

// HasStatus reports whether the layout carries a status code.
func (l Layout) HasStatus() bool { return l.hasStatus }

// Window returns the byte range [start, end) of a tag notification frame
// that holds this layout's EPC payload.
func (l Layout) Window() (start int, end int) { return l.winStart, l.winEnd }

func (l Layout) isZero() bool { return l.name == "" }
