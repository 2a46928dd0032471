package models

import "time"

// PhraseRuleSeverity determines the verdict issued when a rule matches.
type PhraseRuleSeverity string

const (
	SeverityBlock PhraseRuleSeverity = "block"
	SeverityFlag  PhraseRuleSeverity = "flag"
)

// PhraseRule is an administrator-curated fuzzy phrase pattern. Rules evaluate
// in ascending priority order and the first rule whose similarity meets its
// threshold wins. NormalizedPhrase is always re-derived server-side whenever
// Phrase changes.
type PhraseRule struct {
	ID                  string             `db:"id" json:"id"`
	Phrase              string             `db:"phrase" json:"phrase"`
	NormalizedPhrase    string             `db:"normalized_phrase" json:"normalized_phrase"`
	Severity            PhraseRuleSeverity `db:"severity" json:"severity"`
	SimilarityThreshold int                `db:"similarity_threshold" json:"similarity_threshold"`
	Priority            int                `db:"priority" json:"priority"`
	Active              bool               `db:"active" json:"active"`
	CreatedBy           string             `db:"created_by" json:"created_by"`
	CreatedAt           time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time          `db:"updated_at" json:"updated_at"`
}
