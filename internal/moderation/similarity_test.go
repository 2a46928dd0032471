package moderation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilaritySymmetric(t *testing.T) {
	pairs := [][2]string{
		{"i move in silence", "silence is how i move"},
		{"cold world outside", "warm heart inside"},
		{"one two three", "three two one four"},
	}
	for _, pair := range pairs {
		a := Normalize(pair[0])
		b := Normalize(pair[1])
		assert.Equal(t, Similarity(a, b), Similarity(b, a), "similarity(%q,%q)", a, b)
	}
}

func TestSimilaritySelfIsFull(t *testing.T) {
	texts := []string{"i move in silence", "late night freestyle over broken drums"}
	for _, text := range texts {
		normalized := Normalize(text)
		assert.Equal(t, 100, Similarity(normalized, normalized))
	}
}

func TestSimilarityEmptySides(t *testing.T) {
	assert.Equal(t, 0, Similarity("", "anything"))
	assert.Equal(t, 0, Similarity("anything", ""))
	assert.Equal(t, 0, Similarity("", ""))
}

func TestSimilarityOrderAndFrequencyInsensitive(t *testing.T) {
	a := "the the the quick fox"
	b := "fox quick the"
	assert.Equal(t, 100, Similarity(a, b))
}

func TestSimilarityRounding(t *testing.T) {
	// 2 shared words, union of 3 -> 66.67 rounds to 67.
	assert.Equal(t, 67, Similarity("alpha beta", "alpha beta gamma"))
	// 1 shared word, union of 3 -> 33.33 rounds to 33.
	assert.Equal(t, 33, Similarity("alpha beta", "alpha gamma"))
}

func TestPhraseOverlapContainedPhrase(t *testing.T) {
	rule := Normalize("i move in silence")
	content := Normalize("I Move In Silence Like The G In Lasagna")
	assert.Equal(t, 100, PhraseOverlap(content, rule))
	// Full-text Jaccard dilutes the contained phrase.
	assert.Equal(t, 50, Similarity(content, rule))
}

func TestPhraseOverlapPartial(t *testing.T) {
	// 3 of 4 phrase words present -> 75.
	assert.Equal(t, 75, PhraseOverlap("i move in lasagna", "i move in silence"))
	assert.Equal(t, 0, PhraseOverlap("", "i move in silence"))
	assert.Equal(t, 0, PhraseOverlap("content here", ""))
}
