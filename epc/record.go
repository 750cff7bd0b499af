package epc

import (
	"fmt"
	"time"
)

// BaseYear is the epoch that stored two-digit year offsets are relative to.
const BaseYear = 2000

// MaxYear is the latest year a one-byte offset can represent.
const MaxYear = BaseYear + 0xFF

// Record is the decoded content of a product tag's EPC.
type Record struct {
	TagID     string `json:"tag_id"`
	ProductID string `json:"product_id"`
	Year      int    `json:"year"`
	Month     int    `json:"month"`
	Day       int    `json:"day"`
	// Status is the two-digit status code; only Layout B stores it.
	Status string `json:"status,omitempty"`
}

// NewRecord returns a record for productID dated t, with a random tag id of
// the layout's width. Layout B records start out unsold.
func NewRecord(l Layout, productID string, t time.Time) Record {
	rec := Record{
		TagID:     NewTagID(l),
		ProductID: productID,
		Year:      t.Year(),
		Month:     int(t.Month()),
		Day:       t.Day(),
	}
	if l.hasStatus {
		rec.Status = StatusUnsold
	}

	return rec
}

// Date returns the production date as YYYY-MM-DD.
func (r Record) Date() string {
	return fmt.Sprintf("%04d-%02d-%02d", r.Year, r.Month, r.Day)
}

// StatusText returns the human readable status, or "" when the record has none.
func (r Record) StatusText() string {
	if r.Status == "" {
		return ""
	}

	return StatusText(r.Status)
}
