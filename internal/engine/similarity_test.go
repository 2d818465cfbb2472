package engine

import (
	"testing"
)

func TestSimilarityIdentical(t *testing.T) {
	got := Similarity("the quick brown fox", "the quick brown fox")
	if got != 1.0 {
		t.Errorf("identical texts: expected 1.0, got %v", got)
	}
}

func TestSimilarityDisjoint(t *testing.T) {
	got := Similarity("quick brown fox", "lazy sleeping dog")
	if got != 0.0 {
		t.Errorf("disjoint texts: expected 0.0, got %v", got)
	}
}

func TestSimilarityEmpty(t *testing.T) {
	if got := Similarity("", ""); got != 0.0 {
		t.Errorf("both empty: expected 0.0, got %v", got)
	}
	if got := Similarity("something here", ""); got != 0.0 {
		t.Errorf("one empty: expected 0.0, got %v", got)
	}
}

func TestSimilarityStopwordsOnly(t *testing.T) {
	// Every token is a stopword, so both sets are empty.
	if got := Similarity("the and of", "is was were"); got != 0.0 {
		t.Errorf("stopwords only: expected 0.0, got %v", got)
	}
}

func TestSimilarityStemming(t *testing.T) {
	// "training" and "trained" both stem to "train".
	got := Similarity("training sessions scheduled", "trained sessions scheduled")
	if got != 1.0 {
		t.Errorf("stemmed variants: expected 1.0, got %v", got)
	}
}

func TestSimilarityCaseAndPunctuation(t *testing.T) {
	got := Similarity("Deploy finished, ship it!", "deploy finished ship it")
	if got != 1.0 {
		t.Errorf("case/punctuation: expected 1.0, got %v", got)
	}
}

func TestSimilarityPartialOverlap(t *testing.T) {
	// Sets: {quick, brown, fox} and {quick, red, fox} — 2 shared of 4 total.
	got := Similarity("quick brown fox", "quick red fox")
	if got != 0.5 {
		t.Errorf("partial overlap: expected 0.5, got %v", got)
	}
}

func TestStem(t *testing.T) {
	cases := []struct{ in, want string }{
		{"training", "train"},
		{"walked", "walk"},
		{"sing", "sing"}, // too short to strip "ing"
		{"red", "red"},   // too short to strip "ed"
		{"fox", "fox"},
	}
	for _, c := range cases {
		if got := stem(c.in); got != c.want {
			t.Errorf("stem(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
