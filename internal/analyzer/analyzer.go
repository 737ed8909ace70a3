// Package analyzer turns raw text into normalized search tokens. Indexing
// and querying must run through the same Analyzer instance: the match
// semantics of the whole search subsystem depend on both sides normalizing
// identically.
package analyzer

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/kljensen/snowball"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var wordPattern = regexp.MustCompile(`[a-z0-9]+`)

type Analyzer struct {
	stem bool
}

func New(stem bool) *Analyzer {
	return &Analyzer{stem: stem}
}

// Tokenize lower-cases text, strips diacritics, and splits on
// non-alphanumeric boundaries. Empty or all-punctuation input yields an
// empty sequence. Deterministic and side-effect free.
func (a *Analyzer) Tokenize(text string) []string {
	text = strings.ToLower(text)
	text = stripDiacritics(text)

	words := wordPattern.FindAllString(text, -1)
	if !a.stem {
		return words
	}

	tokens := make([]string, 0, len(words))
	for _, word := range words {
		tokens = append(tokens, stem(word))
	}
	return tokens
}

// Frequencies tokenizes every field and returns the combined term
// frequency map.
func (a *Analyzer) Frequencies(fields ...string) map[string]int {
	freqs := make(map[string]int)
	for _, field := range fields {
		for _, token := range a.Tokenize(field) {
			freqs[token]++
		}
	}
	return freqs
}

func stem(word string) string {
	stemmed, err := snowball.Stem(word, "english", true)
	if err != nil {
		return word
	}
	return stemmed
}

// stripDiacritics decomposes to NFD, drops combining marks, and recomposes,
// so "café" and "cafe" index to the same token.
func stripDiacritics(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, text)
	if err != nil {
		return text
	}
	return stripped
}
