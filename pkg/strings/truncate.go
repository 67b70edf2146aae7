package strings

import (
	"strings"
	"unicode"
)

// DefaultTextMaxLen is the default maximum length of a notice pushed to
// management clients.
const DefaultTextMaxLen = 512

// MinTruncateLen is the minimum maxLen value for TruncateText.
const MinTruncateLen = 4

// TruncateText collapses all whitespace runs (including newlines) into single
// spaces and cuts the result to maxLen runes, ending in "..." when cut.
// A maxLen below MinTruncateLen is clamped. A maxLen of zero or less disables
// the length limit but still collapses whitespace.
func TruncateText(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	if maxLen <= 0 {
		return s
	}
	if maxLen < MinTruncateLen {
		maxLen = MinTruncateLen
	}

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}

// HasWhitespace reports whether s contains any Unicode whitespace.
func HasWhitespace(s string) bool {
	return strings.IndexFunc(s, unicode.IsSpace) >= 0
}
