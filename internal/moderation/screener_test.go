package moderation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScreenBlocksLiteralTerms(t *testing.T) {
	screener := NewTermScreener()

	blocked, reason := screener.Screen("some bar about CSAM content")
	assert.True(t, blocked)
	assert.Equal(t, termReason, reason)

	blocked, _ = screener.Screen("JAILBAIT in uppercase")
	assert.True(t, blocked)
}

func TestScreenBlocksPatterns(t *testing.T) {
	screener := NewTermScreener()

	blocked, reason := screener.Screen("talking about a 12 y.o. girl")
	assert.True(t, blocked)
	assert.Equal(t, patternReason, reason)
}

func TestScreenAllowsCleanContent(t *testing.T) {
	screener := NewTermScreener()

	blocked, reason := screener.Screen("I move in silence like the g in lasagna")
	assert.False(t, blocked)
	assert.Empty(t, reason)
}

func TestScreenCaseInsensitive(t *testing.T) {
	screener := NewTermScreener()

	for _, raw := range []string{"PeDoPhIlE bars", "pedophile bars"} {
		blocked, _ := screener.Screen(raw)
		assert.True(t, blocked, raw)
	}
}
