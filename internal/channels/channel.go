// Package channels holds helpers shared by inbound messaging channels.
package channels

import (
	"strings"
	"unicode/utf8"
)

// Truncate shortens s to at most maxLen bytes for log previews, never splitting a rune.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// DigitsOnly strips everything but ASCII digits, so "+55 (11) 99999-9999"
// and "5511999999999" compare equal.
func DigitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
