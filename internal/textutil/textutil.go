package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases s with French casing rules and strips combining marks, so
// "Février" and "FEVRIER" both become "fevrier".
func Fold(s string) string {
	lower := cases.Lower(language.French).String(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, lower)
	if err != nil {
		return lower
	}
	return out
}

// Collapse squeezes whitespace runs, non-breaking spaces included, into one
// space and trims the ends.
func Collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// SplitPipe splits "a | b | c" into its trimmed, non-empty parts.
func SplitPipe(s string) []string {
	var out []string
	for _, part := range strings.Split(s, "|") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// CityName tidies a scraped city: whitespace is collapsed, and names shouted
// in capitals ("BOULOGNE-BILLANCOURT") are title-cased the French way.
func CityName(s string) string {
	s = Collapse(s)
	if s == "" || strings.ToUpper(s) != s || strings.ToLower(s) == s {
		return s
	}
	return cases.Title(language.French).String(strings.ToLower(s))
}
