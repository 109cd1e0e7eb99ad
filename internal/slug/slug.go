// Package slug builds URL slugs for blog posts. Titles in Arabic or other
// non-Latin scripts are transliterated to ASCII first.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxLength is the longest slug Make returns.
const MaxLength = 200

var (
	validRegex    = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	nonAlnumRegex = regexp.MustCompile(`[^a-z0-9]+`)
)

// Make converts s to a slug of lowercase ASCII letters, digits and single
// hyphens. It returns "" when s has nothing transliterable.
func Make(s string) string {
	// Strip combining marks first so Latin accents and Arabic harakat
	// do not leave stray letters after transliteration.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, s)
	if err != nil {
		result = s
	}

	result = strings.ToLower(unidecode.Unidecode(result))
	result = nonAlnumRegex.ReplaceAllString(result, "-")
	result = strings.Trim(result, "-")

	if len(result) > MaxLength {
		result = strings.TrimRight(result[:MaxLength], "-")
	}
	return result
}

// IsValid reports whether s is already a well-formed slug.
func IsValid(s string) bool {
	return len(s) <= MaxLength && validRegex.MatchString(s)
}
