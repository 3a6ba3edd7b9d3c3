package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Fold returns the NFC-normalized, case-folded form of s.
func Fold(s string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}

// Tokenize splits text on anything that is not a letter or digit and returns
// folded tokens at least minLen runes long, in order of appearance.
func Tokenize(text string, minLen int) []string {
	raw := strings.FieldsFunc(Fold(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := make([]string, 0, len(raw))
	for _, token := range raw {
		if len([]rune(token)) < minLen {
			continue
		}
		terms = append(terms, token)
	}
	return terms
}

// IsNumeric reports whether token consists only of digits.
func IsNumeric(token string) bool {
	if token == "" {
		return false
	}
	for _, r := range token {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
