package models

// VerdictRefusal identifies which stage refused the content outright.
type VerdictRefusal string

const (
	RefusalScreened  VerdictRefusal = "screened"
	RefusalRule      VerdictRefusal = "rule"
	RefusalProtected VerdictRefusal = "protected"
	RefusalModerator VerdictRefusal = "moderator"
)

// ModerationVerdict is the outcome of running content through the acceptance
// pipeline. Allowed reports whether the content may be stored at all; when it
// is false the Reason explains the refusal and the content must not be
// persisted. Duplicates are advisory and never change the verdict.
type ModerationVerdict struct {
	Allowed          bool             `json:"allowed"`
	Refusal          VerdictRefusal   `json:"refusal,omitempty"`
	Status           SubmissionStatus `json:"status"`
	Reason           string           `json:"reason,omitempty"`
	MatchedRuleID    *string          `json:"matched_rule_id,omitempty"`
	SimilarityScore  *int             `json:"similarity_score,omitempty"`
	Duplicates       []DuplicateMatch `json:"duplicates,omitempty"`
	ModeratorReasons []string         `json:"moderator_reasons,omitempty"`
}

// CheckContentRequest is the dry-run moderation request.
type CheckContentRequest struct {
	Content string `json:"content" validate:"required"`
}
