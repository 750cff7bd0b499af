// Package uhf implements the serial command protocol spoken by UHF RFID
// reader/writer modules.
//
// Every exchange uses the same frame shape:
//
//	BB | type | command | length(2, big endian) | payload | checksum | 7E
//
// The checksum is the low byte of the sum of all bytes from type through the
// end of the payload. Three frame types exist: commands sent by the host
// (0x00), responses to commands (0x01) and tag notifications pushed by the
// reader during inventory (0x02).
//
// Builders such as ReadTag, StartInventory and WriteTag return complete wire
// frames. Decode and DecodeBatch validate raw buffers read back from the
// reader and classify them as *TagData or *Ack values.
package uhf
