package utils

import "strings"

// NormalizeUsername maps a raw principal name onto the key used by the
// connection registry and every storage row: surrounding whitespace trimmed,
// lower-cased. It is idempotent.
func NormalizeUsername(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
