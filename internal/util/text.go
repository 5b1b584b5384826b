package util

import (
	"strings"
	"unicode"
)

// stopwords are dropped from token sets used for similarity
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true,
	"of": true, "to": true, "in": true, "on": true, "for": true, "with": true,
	"at": true, "by": true, "from": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "been": true, "it": true, "its": true, "this": true,
	"that": true, "as": true, "so": true, "if": true, "than": true, "then": true,
	"into": true, "about": true, "during": true, "over": true, "just": true,
}

// NormalizeText lowercases, strips punctuation and collapses whitespace.
// Apostrophes are dropped so "can't" and "cant" normalize alike.
func NormalizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r == '\'' || r == '’':
			continue
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			space = false
		default:
			if !space && b.Len() > 0 {
				b.WriteByte(' ')
				space = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// Tokens returns the normalized words of s, stopwords included
func Tokens(s string) []string {
	return strings.Fields(NormalizeText(s))
}

// TokenSet returns the distinct non-stopword tokens of s
func TokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range Tokens(s) {
		if stopwords[tok] {
			continue
		}
		set[tok] = true
	}
	return set
}

// WordSet returns the distinct tokens of s, stopwords included. Short titles
// lean on their function words, so dropping them skews the ratio.
func WordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range Tokens(s) {
		set[tok] = true
	}
	return set
}

// SharedRatio is |a ∩ b| divided by the size of the larger set
func SharedRatio(a, b map[string]bool) float64 {
	larger := len(a)
	if len(b) > larger {
		larger = len(b)
	}
	if larger == 0 {
		return 0
	}
	return float64(intersect(a, b)) / float64(larger)
}

// Coverage is the share of query tokens present in doc
func Coverage(query, doc map[string]bool) float64 {
	if len(query) == 0 {
		return 0
	}
	return float64(intersect(query, doc)) / float64(len(query))
}

func intersect(a, b map[string]bool) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for tok := range a {
		if b[tok] {
			n++
		}
	}
	return n
}
