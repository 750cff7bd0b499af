package epc

import "fmt"

// Status codes stored by Layout B tags.
const (
	StatusUnsold   = "01"
	StatusSold     = "02"
	StatusReturned = "03"
	StatusScrapped = "04"
)

var statusText = map[string]string{
	StatusUnsold:   "unsold",
	StatusSold:     "sold",
	StatusReturned: "returned",
	StatusScrapped: "scrapped",
}

// StatusText maps a status code to its description. Codes outside the table
// yield an "unknown status" placeholder instead of an error.
func StatusText(code string) string {
	if text, ok := statusText[code]; ok {
		return text
	}

	return fmt.Sprintf("unknown status (%s)", code)
}

// IsKnownStatus reports whether code is in the status table.
func IsKnownStatus(code string) bool {
	_, ok := statusText[code]
	return ok
}
