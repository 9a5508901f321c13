package scoring

import (
	"strings"
	"unicode"
)

// Normalize replaces NUL bytes with spaces, collapses every run of
// whitespace into a single space and trims the result.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	pendingSpace := false
	for _, r := range text {
		if r == 0 || unicode.IsSpace(r) {
			pendingSpace = b.Len() > 0
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteRune(r)
	}

	return b.String()
}
