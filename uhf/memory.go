package uhf

import (
	"encoding/binary"
	"fmt"
)

// MemBank selects one of the four Gen2 tag memory banks.
type MemBank byte

// Memory banks.
const (
	BankReserved MemBank = 0x00
	BankEPC      MemBank = 0x01
	BankTID      MemBank = 0x02
	BankUser     MemBank = 0x03
)

// String implements fmt.Stringer.
func (b MemBank) String() string {
	switch b {
	case BankReserved:
		return "reserved"
	case BankEPC:
		return "epc"
	case BankTID:
		return "tid"
	case BankUser:
		return "user"
	default:
		return fmt.Sprintf("bank(%d)", byte(b))
	}
}

// WriteMemoryRequest describes a write of whole words to a tag memory bank.
type WriteMemoryRequest struct {
	AccessPassword uint32
	Bank           MemBank
	// WordPtr is the start address in 16-bit words.
	WordPtr uint16
	// Data must hold a whole number of words.
	Data []byte
}

// DefaultWriteMemoryRequest writes 0x12345678 to the start of user memory.
func DefaultWriteMemoryRequest() WriteMemoryRequest {
	return WriteMemoryRequest{
		Bank: BankUser,
		Data: []byte{0x12, 0x34, 0x56, 0x78},
	}
}

// Words returns the number of 16-bit words in Data.
func (r WriteMemoryRequest) Words() int { return len(r.Data) / 2 }

func (r WriteMemoryRequest) marshal() ([]byte, error) {
	if r.Bank > BankUser {
		return nil, fmt.Errorf("%w: memory bank %d", ErrInvalidArgument, r.Bank)
	}
	if len(r.Data) == 0 || len(r.Data)%2 != 0 {
		return nil, fmt.Errorf("%w: write data must be a non-empty whole number of words, got %d bytes", ErrInvalidArgument, len(r.Data))
	}
	if 9+len(r.Data) > MaxPayloadLen {
		return nil, fmt.Errorf("%w: write data of %d bytes too large", ErrInvalidArgument, len(r.Data))
	}

	buf := make([]byte, 9+len(r.Data))
	binary.BigEndian.PutUint32(buf[0:4], r.AccessPassword)
	buf[4] = byte(r.Bank)
	binary.BigEndian.PutUint16(buf[5:7], r.WordPtr)
	binary.BigEndian.PutUint16(buf[7:9], uint16(r.Words())) //nolint:gosec // bounded by MaxPayloadLen above
	copy(buf[9:], r.Data)

	return buf, nil
}

// Lock field masks. Each memory area owns two bits in the 10-bit mask and
// action fields of a lock payload.
const (
	LockKillPassword   uint16 = 0x300
	LockAccessPassword uint16 = 0x0C0
	LockEPC            uint16 = 0x030
	LockTID            uint16 = 0x00C
	LockUser           uint16 = 0x003
)

// LockRequest holds the parameters of a lock command.
type LockRequest struct {
	AccessPassword uint32
	// Payload is the 20-bit mask/action pair, see NewLockPayload.
	Payload [3]byte
}

// NewLockPayload packs a 10-bit mask and 10-bit action into the 3-byte lock
// payload.
func NewLockPayload(mask uint16, action uint16) [3]byte {
	v := uint32(mask&0x3FF)<<10 | uint32(action&0x3FF)
	return [3]byte{byte(v >> 16), byte(v >> 8), byte(v)}
}

// DefaultLockRequest write-locks the EPC bank.
func DefaultLockRequest() LockRequest {
	return LockRequest{
		Payload: NewLockPayload(LockEPC, LockEPC&0x2AA),
	}
}
