package ingest

import (
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// tatweel is the Arabic elongation character; it carries no letter identity.
const tatweel = 'ـ'

// Normalize prepares text for exact surface-form matching in lang:
// canonical decomposition, removal of combining marks (Latin accents,
// Arabic harakat and hamza carriers), recomposition, and the language's
// lower-case mapping. Letters are never stemmed or substituted.
func Normalize(lang Language, text string) string {
	if text == "" {
		return ""
	}
	// Transformers and casers keep state, so each call builds its own.
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		runes.Remove(runes.Predicate(func(r rune) bool { return r == tatweel })),
		norm.NFC,
	)
	out, _, err := transform.String(t, text)
	if err != nil {
		out = text
	}
	return cases.Lower(lang.Tag()).String(out)
}
