package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	reSpaces = regexp.MustCompile(`\s+`)
	reDigits = regexp.MustCompile(`\d+`)
)

// Fold lower-cases s and strips diacritics ("Concluída" -> "concluida").
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return strings.ToLower(out)
}

// Key is the natural-key form used for case-insensitive entity lookups.
func Key(s string) string {
	return Spaces(Fold(s))
}

// NameKey is the lookup key for customer and supplier names: trimmed and
// lower-cased, accents kept, so "José" and "Jose" stay distinct.
func NameKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func Spaces(s string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(strings.ReplaceAll(s, "\u00a0", " "), " "))
}

// Text returns the trimmed value or nil when nothing is left.
func Text(raw string) *string {
	s := Spaces(raw)
	if s == "" {
		return nil
	}
	return &s
}

func Email(raw string) *string {
	s := strings.ToLower(Spaces(raw))
	if s == "" || !strings.Contains(s, "@") {
		return nil
	}
	return &s
}

func WarrantyDays(raw string, fallback int) int {
	m := reDigits.FindString(raw)
	if m == "" {
		return fallback
	}
	days, err := strconv.Atoi(m)
	if err != nil {
		return fallback
	}
	return days
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
