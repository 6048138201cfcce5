package cache

import (
	"sort"
	"strings"
	"unicode"
)

// Fingerprint normalizes a prompt into its cache key: lower-cased,
// punctuation stripped, whitespace collapsed, tokens sorted so that
// reordered wordings of the same request map to the same key.
func Fingerprint(prompt string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return unicode.ToLower(r)
		default:
			return ' '
		}
	}, prompt)

	tokens := strings.Fields(cleaned)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}
