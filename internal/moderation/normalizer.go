// Package moderation holds the pure text analysis primitives shared by the
// acceptance pipeline: normalization, Jaccard similarity and the
// prohibited-content screener. Everything here is deterministic and
// side-effect free.
package moderation

import (
	"regexp"
	"strings"
)

var (
	structuralTagPattern = regexp.MustCompile(`(?i)<br\s*/?>|</p>|</li>|</div>`)
	tagPattern           = regexp.MustCompile(`<[^>]*>`)
	nonWordPattern       = regexp.MustCompile(`[^\w\s]`)
	whitespacePattern    = regexp.MustCompile(`\s+`)

	// Leetspeak digit substitutions. 2, 6 and 9 have no common letter
	// equivalent and pass through.
	leetReplacer = strings.NewReplacer(
		"0", "o",
		"1", "i",
		"3", "e",
		"4", "a",
		"5", "s",
		"7", "t",
		"8", "b",
	)
)

// Normalize canonicalizes raw markup into the comparable token form used for
// every similarity comparison. The screener and the phrase engine must share
// this exact function; divergence between them creates bypass risk.
func Normalize(raw string) string {
	text := strings.ToLower(raw)
	text = structuralTagPattern.ReplaceAllString(text, "\n")
	text = tagPattern.ReplaceAllString(text, "")
	text = leetReplacer.Replace(text)
	text = nonWordPattern.ReplaceAllString(text, "")
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
