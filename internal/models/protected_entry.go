package models

import "time"

// ProtectedEntry is owner-curated reserved content. Submissions from other
// authors that match an entry above its threshold are rejected.
type ProtectedEntry struct {
	ID                  string    `db:"id" json:"id"`
	Content             string    `db:"content" json:"content"`
	NormalizedContent   string    `db:"normalized_content" json:"normalized_content"`
	SimilarityThreshold int       `db:"similarity_threshold" json:"similarity_threshold"`
	Note                *string   `db:"note" json:"note,omitempty"`
	CreatedBy           string    `db:"created_by" json:"created_by"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}
