package models

import (
	"time"

	"github.com/lib/pq"
)

// SubmissionStatus is the moderation status assigned by the acceptance pipeline.
type SubmissionStatus string

const (
	StatusApproved      SubmissionStatus = "approved"
	StatusPendingReview SubmissionStatus = "pending_review"
	StatusFlagged       SubmissionStatus = "flagged"
	StatusBlocked       SubmissionStatus = "blocked"
)

// SubmissionCategory enumerates the selectable categories.
var SubmissionCategories = []string{"Funny", "Serious", "Wordplay", "Storytelling", "Battle", "Freestyle"}

// Submission represents a user-submitted bar stored in the submissions table.
// CertificateID and ContentFingerprint are either both null or both set; once
// set they are immutable outside the offline renumbering tool.
type Submission struct {
	ID                 string           `db:"id" json:"id"`
	UserID             string           `db:"user_id" json:"user_id"`
	Content            string           `db:"content" json:"content"`
	Category           string           `db:"category" json:"category"`
	Tags               pq.StringArray   `db:"tags" json:"tags"`
	Status             SubmissionStatus `db:"status" json:"status"`
	MatchedRuleID      *string          `db:"matched_rule_id" json:"matched_rule_id,omitempty"`
	SimilarityScore    *int             `db:"similarity_score" json:"similarity_score,omitempty"`
	IsOriginalWork     bool             `db:"is_original_work" json:"is_original_work"`
	IsLocked           bool             `db:"is_locked" json:"is_locked"`
	LockedAt           *time.Time       `db:"locked_at" json:"locked_at,omitempty"`
	CertificateID      *string          `db:"certificate_id" json:"certificate_id,omitempty"`
	ContentFingerprint *string          `db:"content_fingerprint" json:"content_fingerprint,omitempty"`
	DeletedAt          *time.Time       `db:"deleted_at" json:"-"`
	CreatedAt          time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time        `db:"updated_at" json:"updated_at"`
}

// Certificate is the locked sub-record of a submission.
type Certificate struct {
	CertificateID string    `json:"certificate_id"`
	Fingerprint   string    `json:"fingerprint"`
	LockedAt      time.Time `json:"locked_at"`
}

// Locked returns the certificate sub-record when the submission is locked.
func (s *Submission) Locked() (*Certificate, bool) {
	if !s.IsLocked || s.CertificateID == nil || s.ContentFingerprint == nil || s.LockedAt == nil {
		return nil, false
	}
	return &Certificate{
		CertificateID: *s.CertificateID,
		Fingerprint:   *s.ContentFingerprint,
		LockedAt:      *s.LockedAt,
	}, true
}

// CreateSubmissionRequest is the payload for submitting a new bar.
type CreateSubmissionRequest struct {
	Content        string   `json:"content" validate:"required"`
	Category       string   `json:"category" validate:"required"`
	Tags           []string `json:"tags" validate:"max=10,dive,min=1,max=32"`
	IsOriginalWork bool     `json:"is_original_work"`
}

// UpdateSubmissionRequest edits an unlocked submission. The content is
// re-evaluated by the full acceptance pipeline on every edit.
type UpdateSubmissionRequest struct {
	Content        string   `json:"content" validate:"required"`
	Category       string   `json:"category" validate:"required"`
	Tags           []string `json:"tags" validate:"max=10,dive,min=1,max=32"`
	IsOriginalWork *bool    `json:"is_original_work,omitempty"`
}

// SubmissionFilter captures listing criteria for submissions.
type SubmissionFilter struct {
	UserID   string
	Category string
	Tag      string
	Status   *SubmissionStatus
	Page     int
	PageSize int
}

// DuplicateMatch pairs an accepted submission with its similarity to the
// candidate content. Advisory only, never blocking.
type DuplicateMatch struct {
	Submission Submission `json:"submission"`
	Similarity int        `json:"similarity"`
}
