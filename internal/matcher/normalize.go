// Package matcher screens organization names against a sanctions list
// snapshot, exactly and approximately.
package matcher

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9 ]+`)

var multiSpace = regexp.MustCompile(`\s{2,}`)

// corporateSuffixes are trailing tokens stripped during normalization.
// Stripping repeats until no suffix remains, so stacked forms like
// "x corp llc" reduce the same way on every pass.
var corporateSuffixes = map[string]bool{
	"inc":          true,
	"incorporated": true,
	"llc":          true,
	"llp":          true,
	"lp":           true,
	"ltd":          true,
	"limited":      true,
	"corp":         true,
	"corporation":  true,
	"co":           true,
	"company":      true,
	"foundation":   true,
	"fdn":          true,
	"trust":        true,
	"assn":         true,
	"association":  true,
	"org":          true,
	"organization": true,
	"pllc":         true,
	"pc":           true,
}

var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize canonicalizes a name for matching: lowercase, diacritics and
// punctuation stripped, whitespace collapsed, trailing corporate suffixes
// removed. Normalize is idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if folded, _, err := transform.String(deaccent, n); err == nil {
		n = folded
	}
	n = nonAlnum.ReplaceAllString(n, " ")
	n = multiSpace.ReplaceAllString(n, " ")
	n = strings.TrimSpace(n)

	words := strings.Fields(n)
	for len(words) > 1 && corporateSuffixes[words[len(words)-1]] {
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}
