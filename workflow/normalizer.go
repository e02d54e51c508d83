package workflow

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// transform.Chain keeps state, so every call builds its own chain.
func newAccentStripper() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// NormalizeName lower-cases raw, strips diacritics and collapses whitespace.
// It is the comparison key for exact catalog matching.
func NormalizeName(raw string) string {
	stripped, _, err := transform.String(newAccentStripper(), raw)
	if err != nil {
		stripped = raw
	}
	return strings.Join(strings.Fields(strings.ToLower(stripped)), " ")
}

// nameTokens normalizes raw and also drops every non-letter character
// before splitting on whitespace.
func nameTokens(raw string) []string {
	lettersOnly := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, NormalizeName(raw))
	return strings.Fields(lettersOnly)
}
