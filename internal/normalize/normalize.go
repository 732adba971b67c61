// Package normalize canonicalizes Arabic text so that indexed passages and incoming
// questions compare equal regardless of diacritics, letter variants, and spacing.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// Diacritics is the set of marks removed from text: harakat and tanween, the
// superscript alef, and Quranic annotation marks.
var Diacritics = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x064B, Hi: 0x065F, Stride: 1},
		{Lo: 0x0670, Hi: 0x0670, Stride: 1},
		{Lo: 0x06D6, Hi: 0x06ED, Stride: 1},
	},
}

var folds = map[rune]rune{
	'أ': 'ا',
	'إ': 'ا',
	'آ': 'ا',
	'ؤ': 'و',
	'“': '"',
	'”': '"',
	'„': '"',
	'‟': '"',
	'″': '"',
	'«': '"',
	'»': '"',
	'‘': '\'',
	'’': '\'',
	'‚': '\'',
	'‛': '\'',
	'′': '\'',
}

func fold(r rune) rune {
	if f, ok := folds[r]; ok {
		return f
	}
	return r
}

// Text returns the canonical form of s. It is idempotent.
func Text(s string) string {
	if s == "" {
		return s
	}
	// A chained transformer keeps internal buffers, so build one per call.
	t := transform.Chain(runes.Remove(runes.In(Diacritics)), runes.Map(fold))
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(out), " ")
}

// Value normalizes strings and returns any other value unchanged.
func Value(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	return Text(s)
}

// Fields normalizes each string in place and returns the slice.
func Fields(values []string) []string {
	for i := range values {
		values[i] = Text(values[i])
	}
	return values
}
