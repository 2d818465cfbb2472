package engine

import (
	"strings"
	"unicode"
)

// stopwords are dropped before comparing token sets.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "but": true, "by": true, "for": true, "from": true, "has": true,
	"have": true, "in": true, "is": true, "it": true, "its": true, "of": true,
	"on": true, "or": true, "that": true, "the": true, "this": true, "to": true,
	"was": true, "were": true, "will": true, "with": true,
}

// stem applies a naive suffix strip: trailing "ing", else trailing "ed".
// Deliberately crude — "training" and "trained" both reduce to "train",
// which is all the overlap measure needs.
func stem(token string) string {
	if len(token) > 4 && strings.HasSuffix(token, "ing") {
		return token[:len(token)-3]
	}
	if len(token) > 3 && strings.HasSuffix(token, "ed") {
		return token[:len(token)-2]
	}
	return token
}

// tokenize normalizes text to a comparable token set: lower-cased,
// non-alphanumerics stripped, stopwords dropped, suffixes stemmed.
func tokenize(text string) map[string]bool {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}

	tokens := make(map[string]bool)
	for _, tok := range strings.Fields(b.String()) {
		if stopwords[tok] {
			continue
		}
		tokens[stem(tok)] = true
	}
	return tokens
}

// Similarity returns the Jaccard index of the two texts' token sets,
// in [0, 1]. An empty union scores 0.
//
// This is lexical overlap, not semantic similarity: "vet appointment" and
// "dog doctor visit" score 0. That limitation is a design constraint —
// recall stays dependency-free and deterministic.
func Similarity(a, b string) float64 {
	setA := tokenize(a)
	setB := tokenize(b)

	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
