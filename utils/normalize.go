package utils

import (
	"strings"
	"unicode"

	"github.com/gosimple/unidecode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes to NFD, drops combining marks, then recomposes, so
// "Mbappé" and "Mbappe" normalize identically.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeName reduces a display name or guess to a canonical comparison
// form: diacritics stripped, transliterated to ASCII, lower-cased, with all
// non-alphanumeric runes removed.
func NormalizeName(s string) string {
	if out, _, err := transform.String(stripMarks, s); err == nil {
		s = out
	}
	s = unidecode.Unidecode(s)
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsNameMatch reports whether a guess matches a correct name, accepting the
// full normalized name or any single space-separated token of it (so an
// iconic single name like "Ronaldinho" is enough).
func IsNameMatch(correctName, guess string) bool {
	g := NormalizeName(guess)
	if g == "" {
		return false
	}
	if g == NormalizeName(correctName) {
		return true
	}
	for _, token := range strings.Fields(correctName) {
		if t := NormalizeName(token); t != "" && g == t {
			return true
		}
	}
	return false
}
