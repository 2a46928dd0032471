package models

// PhraseRuleRequest creates or updates a phrase rule. NormalizedPhrase is
// never accepted from clients; it is re-derived server-side.
type PhraseRuleRequest struct {
	Phrase              string             `json:"phrase" validate:"required,max=500"`
	Severity            PhraseRuleSeverity `json:"severity" validate:"required,oneof=block flag"`
	SimilarityThreshold int                `json:"similarity_threshold" validate:"required,min=1,max=100"`
	Priority            int                `json:"priority" validate:"min=0"`
	Active              *bool              `json:"active,omitempty"`
}

// ProtectedEntryRequest creates or updates a protected entry.
type ProtectedEntryRequest struct {
	Content             string  `json:"content" validate:"required,max=2000"`
	SimilarityThreshold int     `json:"similarity_threshold" validate:"required,min=1,max=100"`
	Note                *string `json:"note,omitempty" validate:"omitempty,max=500"`
}
