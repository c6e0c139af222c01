package util

import (
	"strings"
	"unicode/utf8"
)

// SanitizePostgresText drops invalid UTF-8 and NUL bytes, which Postgres
// rejects in text columns.
func SanitizePostgresText(value string) string {
	if value == "" {
		return value
	}

	sanitized := strings.ToValidUTF8(value, "")
	return strings.ReplaceAll(sanitized, "\x00", "")
}

// TruncateRunes shortens s to at most n runes, appending "..." when cut.
func TruncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	if n <= 3 {
		return string([]rune(s)[:n])
	}
	return string([]rune(s)[:n-3]) + "..."
}
