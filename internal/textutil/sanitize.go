package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// SanitizeFileName makes name usable as a single path element on common
// filesystems. Separators, colons and asterisks turn into dashes and the other
// reserved characters are dropped. The result is NFC, with surrounding
// whitespace and dots removed.
func SanitizeFileName(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*':
			return '-'
		case '?', '"', '<', '>', '|', 0:
			return -1
		}
		return r
	}, norm.NFC.String(strings.TrimSpace(name)))
	return strings.Trim(strings.TrimSpace(cleaned), ".")
}

// FoldDiacritics strips combining marks, turning "Café" into "Cafe".
func FoldDiacritics(value string) string {
	chain := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(chain, value)
	if err != nil {
		return value
	}
	return folded
}

// SanitizeToken reduces value to a lowercase ASCII token of letters, digits,
// '-' and '_'. Anything else becomes '_'. Empty results yield "unknown".
func SanitizeToken(value string) string {
	token := strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z':
			return unicode.ToLower(r)
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, strings.TrimSpace(FoldDiacritics(value)))
	if token = strings.Trim(token, "_-"); token == "" {
		return "unknown"
	}
	return token
}
