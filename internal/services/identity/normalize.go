package identity

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lowercases, strips accents and folds punctuation so that
// "Trail-Blazers", "trail blazers" and "Tráil Blazers" compare equal.
func Normalize(s string) string {
	s = strings.ToLower(s)

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, _ = transform.String(t, s)

	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, s)

	return strings.Join(strings.Fields(s), " ")
}

// containsPhrase reports whether needle appears in haystack on word boundaries.
// Both arguments must already be normalized.
func containsPhrase(haystack, needle string) bool {
	if needle == "" || haystack == "" {
		return false
	}
	return strings.Contains(" "+haystack+" ", " "+needle+" ")
}
