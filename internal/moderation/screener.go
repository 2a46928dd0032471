package moderation

import (
	"regexp"
	"strings"
)

// Screener decides whether raw content must be blocked unconditionally before
// any other check runs. Implementations must be pure; the blocking,
// no-override, highest-priority contract is fixed even if the predicate is
// swapped for a smarter classifier.
type Screener interface {
	Screen(raw string) (blocked bool, reason string)
}

// Fixed term list targeting child-exploitation content. Matched
// case-insensitively as substrings of the raw text.
var blockedTerms = []string{
	"cp",
	"child porn",
	"childporn",
	"pedo",
	"pedophile",
	"pedophilia",
	"underage",
	"minor sex",
	"kid sex",
	"child sex",
	"loli",
	"shota",
	"preteen",
	"jailbait",
	"csam",
	"child abuse",
	"molest child",
	"molest kid",
}

var blockedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b\d+\s*y\.?o\.?\s*(boy|girl|kid|child)`),
	regexp.MustCompile(`(?i)\b(sex|fuck|rape)\s*(with|a|the)?\s*(child|kid|minor|underage|preteen)`),
	regexp.MustCompile(`(?i)(child|kid|minor|underage|preteen)\s*(sex|fuck|rape)`),
}

const (
	termReason    = "Content contains prohibited terms related to child exploitation"
	patternReason = "Content contains prohibited patterns related to child exploitation"
)

// TermScreener is the fixed-list prohibited-content screener. Content it
// blocks never reaches storage or similarity scoring.
type TermScreener struct{}

// NewTermScreener returns the default screener.
func NewTermScreener() *TermScreener {
	return &TermScreener{}
}

// Screen reports whether the raw text contains prohibited terms or patterns.
func (s *TermScreener) Screen(raw string) (bool, string) {
	lower := strings.ToLower(raw)
	for _, term := range blockedTerms {
		if strings.Contains(lower, term) {
			return true, termReason
		}
	}
	for _, pattern := range blockedPatterns {
		if pattern.MatchString(raw) {
			return true, patternReason
		}
	}
	return false, ""
}
