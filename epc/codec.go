package epc

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Parse decodes raw EPC bytes, as cut from a tag notification with
// Layout.Window, into a Record.
func Parse(l Layout, raw []byte) (Record, error) {
	return ParseHex(l, strings.ToUpper(hex.EncodeToString(raw)))
}

// ParseHex decodes an EPC given as hex digits.
//
// Layout A drops a leading "0000" when present and then requires at least 22
// digits; trailing digits past the fields are ignored. Layout B requires
// exactly 24 digits and never strips anything beyond its fixed "00" prefix.
func ParseHex(l Layout, s string) (Record, error) {
	if l.isZero() {
		return Record{}, fmt.Errorf("epc: layout is not set")
	}

	s = strings.ToUpper(strings.TrimSpace(s))
	raw := s

	if l.stripPrefix != "" && strings.HasPrefix(s, l.stripPrefix) {
		s = s[len(l.stripPrefix):]
	}

	if l.exactLen > 0 && len(s) != l.exactLen {
		return Record{}, &ParseError{Layout: l.name, Kind: ErrBadLength, Need: l.exactLen, Got: len(s), Raw: raw}
	}
	if len(s) < l.minLen {
		return Record{}, &ParseError{Layout: l.name, Kind: ErrTooShort, Need: l.minLen, Got: len(s), Raw: raw}
	}

	f := fieldReader{s: s, pos: l.skipPrefix}
	rec := Record{
		TagID:     f.take(l.tagIDLen),
		ProductID: f.take(l.productLen),
	}

	year, err := f.number(2)
	if err != nil {
		return Record{}, &ParseError{Layout: l.name, Kind: ErrMalformed, Raw: raw}
	}
	month, err := f.number(l.monthLen)
	if err != nil {
		return Record{}, &ParseError{Layout: l.name, Kind: ErrMalformed, Raw: raw}
	}
	day, err := f.number(2)
	if err != nil {
		return Record{}, &ParseError{Layout: l.name, Kind: ErrMalformed, Raw: raw}
	}

	rec.Year = BaseYear + year
	rec.Month = month
	rec.Day = day

	if l.hasStatus {
		rec.Status = f.take(2)
	}

	if !isHex(rec.TagID) || !isHex(rec.ProductID) || !isHex(rec.Status) {
		return Record{}, &ParseError{Layout: l.name, Kind: ErrMalformed, Raw: raw}
	}

	return rec, nil
}

// Format encodes rec as the 24 hex digits written to the tag's EPC bank.
func Format(l Layout, rec Record) (string, error) {
	if l.isZero() {
		return "", fmt.Errorf("epc: layout is not set")
	}

	tagID := strings.ToUpper(rec.TagID)
	if len(tagID) != l.tagIDLen || !isHex(tagID) {
		return "", &EncodeError{Field: "tag_id", Reason: fmt.Sprintf("must be %d hex digits, got %q", l.tagIDLen, rec.TagID), Err: ErrInvalidTagID}
	}

	productID := strings.ToUpper(rec.ProductID)
	if len(productID) != l.productLen || !isHex(productID) {
		return "", &EncodeError{Field: "product_id", Reason: fmt.Sprintf("must be %d hex digits, got %q", l.productLen, rec.ProductID), Err: ErrInvalidProductID}
	}

	if rec.Year < BaseYear || rec.Year > MaxYear {
		return "", &EncodeError{Field: "year", Reason: fmt.Sprintf("%d out of range [%d, %d]", rec.Year, BaseYear, MaxYear), Err: ErrInvalidDate}
	}
	if rec.Month < 1 || rec.Month > 12 {
		return "", &EncodeError{Field: "month", Reason: fmt.Sprintf("%d out of range [1, 12]", rec.Month), Err: ErrInvalidDate}
	}
	if rec.Day < 1 || rec.Day > 31 {
		return "", &EncodeError{Field: "day", Reason: fmt.Sprintf("%d out of range [1, 31]", rec.Day), Err: ErrInvalidDate}
	}

	var sb strings.Builder
	sb.Grow(EPCHexLen)
	sb.WriteString("00")
	sb.WriteString(tagID)
	sb.WriteString(productID)
	fmt.Fprintf(&sb, "%02X", rec.Year-BaseYear)
	if l.monthLen == 1 {
		fmt.Fprintf(&sb, "%X", rec.Month)
	} else {
		fmt.Fprintf(&sb, "%02X", rec.Month)
	}
	fmt.Fprintf(&sb, "%02X", rec.Day)

	if l.hasStatus {
		status := strings.ToUpper(rec.Status)
		if status == "" {
			status = StatusUnsold
		}
		if len(status) != 2 || !isHex(status) {
			return "", &EncodeError{Field: "status", Reason: fmt.Sprintf("must be 2 hex digits, got %q", rec.Status), Err: ErrInvalidStatus}
		}
		sb.WriteString(status)
	}

	return sb.String(), nil
}

// FormatBytes is Format returning the 12 raw EPC bytes.
func FormatBytes(l Layout, rec Record) ([]byte, error) {
	s, err := Format(l, rec)
	if err != nil {
		return nil, err
	}

	return hex.DecodeString(s)
}

type fieldReader struct {
	s   string
	pos int
}

func (f *fieldReader) take(n int) string {
	v := f.s[f.pos : f.pos+n]
	f.pos += n

	return v
}

func (f *fieldReader) number(n int) (int, error) {
	v, err := strconv.ParseUint(f.take(n), 16, 8)
	if err != nil {
		return 0, err
	}

	return int(v), nil
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'A' || c > 'F') {
			return false
		}
	}

	return true
}
