package uhf

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/arloliu/go-uhf/epc"
)

var timeFixture = time.Date(2025, time.June, 15, 8, 30, 0, 0, time.UTC)

// productFor returns a product id sized for the layout.
func productFor(l epc.Layout) string {
	return "0123456789ABC"[:l.ProductIDLen()]
}

// buildTagNotice returns a tag notification for epcBytes padded with two
// trailing bytes so that it spans exactly TagFrameStride bytes.
func buildTagNotice(t *testing.T, rssi int8, epcBytes []byte) []byte {
	t.Helper()

	if len(epcBytes) != 12 {
		t.Fatalf("buildTagNotice: want a 12-byte EPC, got %d", len(epcBytes))
	}

	pc := uint16(len(epcBytes)/2) << 11
	pcEPC := make([]byte, 2+len(epcBytes))
	binary.BigEndian.PutUint16(pcEPC, pc)
	copy(pcEPC[2:], epcBytes)

	payload := make([]byte, 0, 19)
	payload = append(payload, byte(rssi))
	payload = append(payload, pcEPC...)
	payload = binary.BigEndian.AppendUint16(payload, TagCRC(pcEPC))
	payload = append(payload, 0x01, 0x00)

	frame := Build(TypeNotice, CmdSinglePoll, payload)
	if len(frame) != TagFrameStride {
		t.Fatalf("buildTagNotice: frame is %d bytes", len(frame))
	}

	return frame
}

// sumChecksum recomputes a frame checksum byte by byte.
func sumChecksum(frame []byte) byte {
	sum := 0
	for _, b := range frame[1 : len(frame)-2] {
		sum += int(b)
	}

	return byte(sum % 256)
}
