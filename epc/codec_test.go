package epc

import (
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat_LayoutB(t *testing.T) {
	rec := Record{
		TagID:     "ABCDEF",
		ProductID: "12345678",
		Year:      2025,
		Month:     6,
		Day:       15,
		Status:    StatusSold,
	}

	s, err := Format(LayoutB, rec)
	require.NoError(t, err)
	assert.Equal(t, "00ABCDEF1234567819060F02", s)

	b, err := FormatBytes(LayoutB, rec)
	require.NoError(t, err)
	assert.Len(t, b, 12)
}

func TestFormat_LayoutA(t *testing.T) {
	rec := Record{
		TagID:     "1A2B",
		ProductID: "0123456789ABC",
		Year:      2024,
		Month:     12,
		Day:       31,
	}

	s, err := Format(LayoutA, rec)
	require.NoError(t, err)
	assert.Equal(t, "001A2B0123456789ABC18C1F", s)
	assert.Len(t, s, EPCHexLen)
}

func TestFormat_LowercaseIsNormalized(t *testing.T) {
	rec := Record{TagID: "abcdef", ProductID: "deadbeef", Year: 2001, Month: 1, Day: 2, Status: "03"}

	s, err := Format(LayoutB, rec)
	require.NoError(t, err)
	assert.Equal(t, "00ABCDEFDEADBEEF01010203", s)
}

func TestFormat_DefaultStatus(t *testing.T) {
	rec := Record{TagID: "000001", ProductID: "00000002", Year: 2000, Month: 1, Day: 1}

	s, err := Format(LayoutB, rec)
	require.NoError(t, err)
	assert.Equal(t, "000000010000000200010101", s)
}

func TestFormat_InvalidFields(t *testing.T) {
	valid := Record{TagID: "ABCDEF", ProductID: "12345678", Year: 2025, Month: 6, Day: 15, Status: "02"}

	tests := []struct {
		name   string
		layout Layout
		mutate func(*Record)
		want   error
		field  string
	}{
		{"product too short", LayoutB, func(r *Record) { r.ProductID = "1234567" }, ErrInvalidProductID, "product_id"},
		{"product not hex", LayoutB, func(r *Record) { r.ProductID = "1234567G" }, ErrInvalidProductID, "product_id"},
		{"product wrong layout width", LayoutA, func(r *Record) { r.TagID = "ABCD" }, ErrInvalidProductID, "product_id"},
		{"tag id too long", LayoutB, func(r *Record) { r.TagID = "ABCDEF0" }, ErrInvalidTagID, "tag_id"},
		{"tag id empty", LayoutB, func(r *Record) { r.TagID = "" }, ErrInvalidTagID, "tag_id"},
		{"year before base", LayoutB, func(r *Record) { r.Year = 1999 }, ErrInvalidDate, "year"},
		{"year after max", LayoutB, func(r *Record) { r.Year = 2256 }, ErrInvalidDate, "year"},
		{"month zero", LayoutB, func(r *Record) { r.Month = 0 }, ErrInvalidDate, "month"},
		{"month thirteen", LayoutB, func(r *Record) { r.Month = 13 }, ErrInvalidDate, "month"},
		{"day zero", LayoutB, func(r *Record) { r.Day = 0 }, ErrInvalidDate, "day"},
		{"day overflow", LayoutB, func(r *Record) { r.Day = 32 }, ErrInvalidDate, "day"},
		{"status too long", LayoutB, func(r *Record) { r.Status = "002" }, ErrInvalidStatus, "status"},
		{"status not hex", LayoutB, func(r *Record) { r.Status = "ZZ" }, ErrInvalidStatus, "status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := valid
			tt.mutate(&rec)

			_, err := Format(tt.layout, rec)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var encErr *EncodeError
			require.True(t, errors.As(err, &encErr))
			assert.Equal(t, tt.field, encErr.Field)
		})
	}
}

func TestParseHex_LayoutB(t *testing.T) {
	rec, err := ParseHex(LayoutB, "00ABCDEF1234567819060F02")
	require.NoError(t, err)

	assert.Equal(t, "ABCDEF", rec.TagID)
	assert.Equal(t, "12345678", rec.ProductID)
	assert.Equal(t, 2025, rec.Year)
	assert.Equal(t, 6, rec.Month)
	assert.Equal(t, 15, rec.Day)
	assert.Equal(t, "02", rec.Status)
	assert.Equal(t, "sold", rec.StatusText())
	assert.Equal(t, "2025-06-15", rec.Date())
}

func TestParseHex_LayoutB_ExactLength(t *testing.T) {
	for _, s := range []string{
		"00ABCDEF1234567819060F0",   // 23
		"00ABCDEF1234567819060F020", // 25
		"",
	} {
		_, err := ParseHex(LayoutB, s)
		require.Error(t, err, "input %q", s)
		assert.ErrorIs(t, err, ErrBadLength)

		var parseErr *ParseError
		require.True(t, errors.As(err, &parseErr))
		assert.Equal(t, EPCHexLen, parseErr.Need)
		assert.Equal(t, len(s), parseErr.Got)
		assert.Equal(t, s, parseErr.Raw)
	}
}

func TestParseHex_LayoutB_UnknownStatus(t *testing.T) {
	rec, err := ParseHex(LayoutB, "00ABCDEF1234567819060F7F")
	require.NoError(t, err)
	assert.Equal(t, "7F", rec.Status)
	assert.Equal(t, "unknown status (7F)", rec.StatusText())
}

func TestParseHex_LayoutA_StripsLeadingZeros(t *testing.T) {
	// PC low byte + EPC + CRC high byte, as cut from a tag notification.
	rec, err := ParseHex(LayoutA, "00001A2B0123456789ABC18C1FAB")
	require.NoError(t, err)

	assert.Equal(t, "1A2B", rec.TagID)
	assert.Equal(t, "0123456789ABC", rec.ProductID)
	assert.Equal(t, 2024, rec.Year)
	assert.Equal(t, 12, rec.Month)
	assert.Equal(t, 31, rec.Day)
	assert.Empty(t, rec.Status)
}

func TestParseHex_LayoutA_NoPrefixParsesFromStart(t *testing.T) {
	// Without a leading "0000" the fields are sliced from the first digit.
	rec, err := ParseHex(LayoutA, "1A2B0123456789ABC18C1F")
	require.NoError(t, err)
	assert.Equal(t, "1A2B", rec.TagID)
	assert.Equal(t, "0123456789ABC", rec.ProductID)

	// A bare EPC whose tag id begins with "00" loses those digits to the
	// strip and no longer has enough digits left.
	_, err = ParseHex(LayoutA, "0000AB0123456789ABC18C1F")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooShort)
}

func TestParseHex_LayoutA_TooShort(t *testing.T) {
	_, err := ParseHex(LayoutA, "0000ABCD")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooShort)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, 22, parseErr.Need)
	assert.Equal(t, 4, parseErr.Got)
	assert.Equal(t, "0000ABCD", parseErr.Raw)
	assert.Contains(t, parseErr.Error(), "layout A")
}

func TestParseHex_Malformed(t *testing.T) {
	_, err := ParseHex(LayoutB, "00ABCDEF12345678ZZ060F02")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParseHex_FullYearRange(t *testing.T) {
	rec, err := ParseHex(LayoutB, "00ABCDEF12345678FF0C1F01")
	require.NoError(t, err)
	assert.Equal(t, MaxYear, rec.Year)

	rec, err = ParseHex(LayoutB, "00ABCDEF12345678000C1F01")
	require.NoError(t, err)
	assert.Equal(t, BaseYear, rec.Year)
}

func TestParse_Bytes(t *testing.T) {
	raw, err := hex.DecodeString("00abcdef1234567819060f02")
	require.NoError(t, err)

	rec, err := Parse(LayoutB, raw)
	require.NoError(t, err)
	assert.Equal(t, "ABCDEF", rec.TagID)
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		layout Layout
		rec    Record
	}{
		{LayoutA, Record{TagID: "FFFF", ProductID: "ABCDEF0123456", Year: 2099, Month: 9, Day: 1}},
		{LayoutA, Record{TagID: "1234", ProductID: "0000000000001", Year: 2000, Month: 1, Day: 31}},
		{LayoutB, Record{TagID: "ABCDEF", ProductID: "12345678", Year: 2025, Month: 6, Day: 15, Status: "02"}},
		{LayoutB, Record{TagID: "000000", ProductID: "FFFFFFFF", Year: 2255, Month: 12, Day: 1, Status: "04"}},
	}

	for _, tt := range tests {
		t.Run(tt.layout.String()+"/"+tt.rec.TagID, func(t *testing.T) {
			epcHex, err := Format(tt.layout, tt.rec)
			require.NoError(t, err)

			// Layout A is read through a window that carries the PC low byte
			// in front of the EPC and the CRC high byte after it.
			input := epcHex
			if tt.layout.Name() == "A" {
				input = "00" + epcHex + "5A"
			}

			got, err := ParseHex(tt.layout, input)
			require.NoError(t, err)
			assert.Equal(t, tt.rec, got)
		})
	}
}
