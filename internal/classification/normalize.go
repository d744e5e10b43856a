// Package classification assigns spending categories to transaction
// descriptions: an ordered keyword rule table first, then a naive Bayes model
// trained on labelled examples.
package classification

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize folds a description for matching: diacritics stripped,
// lowercased, punctuation replaced by spaces, whitespace collapsed.
// "Hemköp Södermalm!" becomes "hemkop sodermalm".
func Normalize(s string) string {
	// transform chains are stateful and cannot be shared between goroutines
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	fields := strings.FieldsFunc(strings.ToLower(folded), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, " ")
}

// terms returns the unigrams and bigrams of an already normalized string.
func terms(normalized string) []string {
	tokens := strings.Fields(normalized)
	if len(tokens) == 0 {
		return nil
	}

	out := make([]string, 0, 2*len(tokens)-1)
	out = append(out, tokens...)
	for i := 0; i+1 < len(tokens); i++ {
		out = append(out, tokens[i]+"_"+tokens[i+1])
	}
	return out
}
