package uhf

import (
	"encoding/binary"
	"fmt"

	"github.com/arloliu/go-uhf/epc"
)

// pollReserved is the fixed first payload byte of a multi-poll command.
const pollReserved byte = 0x22

// ContinuousCount is the poll count that keeps the reader polling until a
// stop command arrives.
const ContinuousCount uint16 = 0xFFFF

// EPCWordPointer is the word address of the EPC inside the EPC bank; words 0
// and 1 hold the stored CRC and PC.
const EPCWordPointer uint16 = 0x0002

var (
	readTagFrame        = Build(TypeCommand, CmdSinglePoll, nil)
	stopInventoryFrame  = Build(TypeCommand, CmdStopPoll, nil)
	startInventoryFrame = StartInventoryCount(ContinuousCount)
	getSelectFrame      = Build(TypeCommand, CmdGetSelect, nil)
)

// ReadTag returns the single-poll command: BB 00 22 00 00 22 7E.
func ReadTag() []byte { return clone(readTagFrame) }

// StartInventory returns the continuous multi-poll command:
// BB 00 27 00 03 22 FF FF 4A 7E.
func StartInventory() []byte { return clone(startInventoryFrame) }

// StartInventoryCount returns a multi-poll command that stops by itself after
// count polling rounds.
func StartInventoryCount(count uint16) []byte {
	payload := []byte{pollReserved, 0, 0}
	binary.BigEndian.PutUint16(payload[1:], count)

	return Build(TypeCommand, CmdMultiPoll, payload)
}

// StopInventory returns the stop multi-poll command: BB 00 28 00 00 28 7E.
func StopInventory() []byte { return clone(stopInventoryFrame) }

// WriteTag returns the command that writes rec, encoded with layout l, to the
// EPC of the tag in the field using the default all-zero access password.
func WriteTag(l epc.Layout, rec epc.Record) ([]byte, error) {
	data, err := epc.FormatBytes(l, rec)
	if err != nil {
		return nil, err
	}

	return WriteMemory(WriteMemoryRequest{
		Bank:    BankEPC,
		WordPtr: EPCWordPointer,
		Data:    data,
	})
}

// GetSelectParam returns the command that queries the select parameters.
func GetSelectParam() []byte { return clone(getSelectFrame) }

// SetSelectParam returns the command that configures tag selection.
func SetSelectParam(p SelectParam) ([]byte, error) {
	payload, err := p.marshal()
	if err != nil {
		return nil, err
	}

	return Build(TypeCommand, CmdSetSelect, payload), nil
}

// SetSelectMode returns the command that sets when the select parameters apply.
func SetSelectMode(mode SelectMode) ([]byte, error) {
	if mode > SelectModeExceptPoll {
		return nil, fmt.Errorf("%w: select mode %d", ErrInvalidArgument, mode)
	}

	return Build(TypeCommand, CmdSetSelectMode, []byte{byte(mode)}), nil
}

// WriteMemory returns the command that writes r.Data to a tag memory bank.
func WriteMemory(r WriteMemoryRequest) ([]byte, error) {
	payload, err := r.marshal()
	if err != nil {
		return nil, err
	}

	return Build(TypeCommand, CmdWriteData, payload), nil
}

// LockMemory returns the command that applies a lock payload to the tag.
func LockMemory(r LockRequest) []byte {
	payload := make([]byte, 7)
	binary.BigEndian.PutUint32(payload[0:4], r.AccessPassword)
	copy(payload[4:], r.Payload[:])

	return Build(TypeCommand, CmdLock, payload)
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)

	return out
}
