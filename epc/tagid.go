package epc

import (
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// NewTagID returns a random uppercase hex tag id sized for the layout.
func NewTagID(l Layout) string {
	id := uuid.New()
	s := strings.ToUpper(hex.EncodeToString(id[:]))

	return s[:l.tagIDLen]
}
