package bankconnect

import (
	"strings"

	"github.com/google/uuid"
)

// IsValidUUID4 reports whether s parses as a UUID and is written in the hyphenated
// 8-4-4-4-12 form. Hex strings without hyphens are rejected. The version nibble
// is not inspected, so any hyphenated UUID passes.
func IsValidUUID4(s string) bool {
	if _, err := uuid.Parse(s); err != nil {
		return false
	}
	return strings.Count(s, "-") == 4
}
