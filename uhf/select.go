package uhf

import (
	"encoding/binary"
	"fmt"
)

// SelectTarget is the inventoried flag or SL flag a select command modifies.
type SelectTarget byte

// Select targets.
const (
	TargetS0 SelectTarget = iota
	TargetS1
	TargetS2
	TargetS3
	TargetSL
)

// SelectMode controls when the reader issues the configured select command.
type SelectMode byte

// Select modes.
const (
	// SelectModeAlways sends select before every tag operation.
	SelectModeAlways SelectMode = 0x00
	// SelectModeNever disables select.
	SelectModeNever SelectMode = 0x01
	// SelectModeExceptPoll sends select before every operation except polling.
	SelectModeExceptPoll SelectMode = 0x02
)

// SelectParam holds the parameters of a set-select command.
type SelectParam struct {
	Target SelectTarget
	// Action is the 3-bit Gen2 select action.
	Action byte
	Bank   MemBank
	// Pointer is the mask start address in bits.
	Pointer  uint32
	Truncate bool
	Mask     []byte
}

// DefaultSelectParam matches tags whose EPC starts with the mask the reader
// tools ship with.
func DefaultSelectParam() SelectParam {
	return SelectParam{
		Target:  TargetS0,
		Action:  0,
		Bank:    BankEPC,
		Pointer: 0x20,
		Mask:    []byte{0x30, 0x75, 0x1F, 0xEB, 0x70, 0x5C},
	}
}

// MaskBits returns the mask length in bits.
func (p SelectParam) MaskBits() int { return len(p.Mask) * 8 }

func (p SelectParam) marshal() ([]byte, error) {
	if p.Target > TargetSL {
		return nil, fmt.Errorf("%w: select target %d", ErrInvalidArgument, p.Target)
	}
	if p.Action > 7 {
		return nil, fmt.Errorf("%w: select action %d", ErrInvalidArgument, p.Action)
	}
	if p.Bank > BankUser {
		return nil, fmt.Errorf("%w: memory bank %d", ErrInvalidArgument, p.Bank)
	}
	if p.MaskBits() > 0xFF {
		return nil, fmt.Errorf("%w: mask of %d bits exceeds 255", ErrInvalidArgument, p.MaskBits())
	}

	buf := make([]byte, 7+len(p.Mask))
	buf[0] = byte(p.Target)<<5 | p.Action<<2 | byte(p.Bank)
	binary.BigEndian.PutUint32(buf[1:5], p.Pointer)
	buf[5] = byte(p.MaskBits())
	if p.Truncate {
		buf[6] = 0x80
	}
	copy(buf[7:], p.Mask)

	return buf, nil
}
