package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName replaces filesystem-unsafe characters in a filename.
// Slashes, backslashes, colons, and asterisks become dashes; other unsafe
// characters are removed. The result is NFC normalized and trimmed.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return strings.TrimSpace(fileNameReplacer.Replace(norm.NFC.String(name)))
}

// SanitizePathSegment makes value safe to use as a single directory or file
// name: separators and unsafe characters are replaced, control characters
// dropped, and parent/current directory tokens removed. Trailing dots and
// spaces are trimmed. The result may be empty.
func SanitizePathSegment(value string) string {
	value = SanitizeFileName(value)
	value = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, value)
	for strings.Contains(value, "..") {
		value = strings.ReplaceAll(value, "..", "")
	}
	value = strings.TrimRight(strings.TrimSpace(value), ". ")
	if value == "." {
		return ""
	}
	return value
}
