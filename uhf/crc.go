package uhf

import "github.com/sigurn/crc16"

// Gen2 tags protect PC+EPC with CRC-16/GENIBUS (poly 0x1021, init and
// xor-out 0xFFFF).
var tagCRCTable = crc16.MakeTable(crc16.CRC16_GENIBUS)

// TagCRC returns the Gen2 CRC-16 of data.
func TagCRC(data []byte) uint16 {
	return crc16.Checksum(data, tagCRCTable)
}
