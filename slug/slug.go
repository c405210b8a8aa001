// Package slug normalizes topic and entity names for matching and
// display: lowercase slugs for stable keys, capitalized forms for the
// rendered trend panels.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonAlnumPattern  = regexp.MustCompile("[^a-z0-9-]+")
	hyphenRunPattern = regexp.MustCompile("-+")
)

// Generate creates a URL-friendly slug from a topic or entity name
func Generate(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ToLower(s)

	// Transliterate unicode to ASCII
	s = transliterate(s)

	// Replace spaces and underscores with hyphens
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, "_", "-")

	s = nonAlnumPattern.ReplaceAllString(s, "")
	s = hyphenRunPattern.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")

	// Limit length to 100 characters
	if len(s) > 100 {
		s = s[:100]
		s = strings.TrimRight(s, "-")
	}

	return s
}

// Display converts a raw topic name or slug to display form: slugged
// first for consistency, then hyphens to spaces with each word
// capitalized ("awards-shows" -> "Awards Shows").
func Display(s string) string {
	slugged := Generate(s)
	if slugged == "" {
		return ""
	}

	words := strings.Split(slugged, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Normalize lowercases and trims an entity name for registry keys
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// transliterate converts unicode characters to ASCII equivalents
func transliterate(s string) string {
	// Normalize unicode characters to NFD form (decomposed)
	t := transform.Chain(norm.NFD, transform.RemoveFunc(isMn), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// isMn checks if a rune is a nonspacing mark (accents, diacritics)
func isMn(r rune) bool {
	return unicode.Is(unicode.Mn, r)
}
