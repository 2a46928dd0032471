package moderation

import (
	"math"
	"strings"
)

// WordSet splits normalized text into its unique words. Duplicates collapse
// and order is irrelevant.
func WordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, word := range strings.Split(text, " ") {
		if word != "" {
			set[word] = struct{}{}
		}
	}
	return set
}

// Similarity computes the Jaccard index of the two normalized texts' word
// sets as an integer percentage 0..100, rounded to the nearest percent. An
// empty set on either side yields 0. Symmetric by construction and
// deliberately insensitive to word order and frequency.
func Similarity(a, b string) int {
	setA := WordSet(a)
	setB := WordSet(b)

	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for word := range setA {
		if _, ok := setB[word]; ok {
			intersection++
		}
	}

	union := len(setA) + len(setB) - intersection
	return int(math.Round(float64(intersection) / float64(union) * 100))
}

// PhraseOverlap measures how much of the phrase's word set appears in the
// content, as an integer percentage 0..100. A phrase quoted verbatim inside a
// longer text scores 100, which full-text Jaccard never would; phrase rules
// match on this containment score so short reserved lines are still caught
// inside longer submissions.
func PhraseOverlap(content, phrase string) int {
	contentSet := WordSet(content)
	phraseSet := WordSet(phrase)

	if len(contentSet) == 0 || len(phraseSet) == 0 {
		return 0
	}

	intersection := 0
	for word := range phraseSet {
		if _, ok := contentSet[word]; ok {
			intersection++
		}
	}

	return int(math.Round(float64(intersection) / float64(len(phraseSet)) * 100))
}
