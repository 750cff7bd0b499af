// Package epc encodes and decodes the 12-byte EPC payload that the UHF reader
// firmware stores on a tag.
//
// Two incompatible firmware generations exist in the field. Both store a
// 24-hex-digit (6-word) EPC beginning with a "00" prefix, but they pack the
// fields differently:
//
//	Layout A:  00 | tag(4) | product(13) | year(2) | month(1) | day(2)
//	Layout B:  00 | tag(6) | product(8)  | year(2) | month(2) | day(2) | status(2)
//
// Widths are in hex digits. Years are stored as the offset from 2000.
//
// A Layout is a plain descriptor value; Parse and Format take the layout as an
// argument so a single codec serves both firmware generations.
package epc
