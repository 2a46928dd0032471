package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/orphanbars/orphanbars-api/internal/models"
)

// ErrLockConflict is returned when a lock attempt races an already locked row.
var ErrLockConflict = errors.New("submission already locked")

const submissionColumns = `id, user_id, content, category, tags, status, matched_rule_id, similarity_score, is_original_work, is_locked, locked_at, certificate_id, content_fingerprint, deleted_at, created_at, updated_at`

// SubmissionRepository provides database access for submissions.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository creates a new instance of SubmissionRepository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// Create inserts a new submission row with generated defaults.
func (r *SubmissionRepository) Create(ctx context.Context, sub *models.Submission) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now

	const query = `INSERT INTO submissions (id, user_id, content, category, tags, status, matched_rule_id, similarity_score, is_original_work, is_locked, created_at, updated_at)
VALUES (:id, :user_id, :content, :category, :tags, :status, :matched_rule_id, :similarity_score, :is_original_work, :is_locked, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, sub); err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

// GetByID returns a submission by identifier, excluding soft-deleted rows.
func (r *SubmissionRepository) GetByID(ctx context.Context, id string) (*models.Submission, error) {
	query := fmt.Sprintf(`SELECT %s FROM submissions WHERE id = $1 AND deleted_at IS NULL`, submissionColumns)
	var sub models.Submission
	if err := r.db.GetContext(ctx, &sub, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return &sub, nil
}

// List returns submissions matching the filter plus the total count.
func (r *SubmissionRepository) List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, int, error) {
	where := []string{"deleted_at IS NULL"}
	args := make([]interface{}, 0, 4)
	argPos := 1

	if filter.UserID != "" {
		where = append(where, fmt.Sprintf("user_id = $%d", argPos))
		args = append(args, filter.UserID)
		argPos++
	}
	if filter.Category != "" {
		where = append(where, fmt.Sprintf("category = $%d", argPos))
		args = append(args, filter.Category)
		argPos++
	}
	if filter.Tag != "" {
		where = append(where, fmt.Sprintf("$%d = ANY(tags)", argPos))
		args = append(args, filter.Tag)
		argPos++
	}
	if filter.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *filter.Status)
		argPos++
	}

	clause := strings.Join(where, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM submissions WHERE %s", clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count submissions: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	listQuery := fmt.Sprintf("SELECT %s FROM submissions WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		submissionColumns, clause, argPos, argPos+1)
	args = append(args, pageSize, (page-1)*pageSize)

	var subs []models.Submission
	if err := r.db.SelectContext(ctx, &subs, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list submissions: %w", err)
	}
	return subs, total, nil
}

// ListAccepted returns the non-blocked corpus scanned by the duplicate finder.
func (r *SubmissionRepository) ListAccepted(ctx context.Context) ([]models.Submission, error) {
	query := fmt.Sprintf(`SELECT %s FROM submissions WHERE deleted_at IS NULL AND status <> $1 ORDER BY created_at ASC`, submissionColumns)
	var subs []models.Submission
	if err := r.db.SelectContext(ctx, &subs, query, models.StatusBlocked); err != nil {
		return nil, fmt.Errorf("list accepted submissions: %w", err)
	}
	return subs, nil
}

// ListLocked returns every locked submission in issuance order: created_at
// ascending with id as the deterministic tiebreak.
func (r *SubmissionRepository) ListLocked(ctx context.Context) ([]models.Submission, error) {
	query := fmt.Sprintf(`SELECT %s FROM submissions WHERE deleted_at IS NULL AND is_locked = TRUE ORDER BY created_at ASC, id ASC`, submissionColumns)
	var subs []models.Submission
	if err := r.db.SelectContext(ctx, &subs, query); err != nil {
		return nil, fmt.Errorf("list locked submissions: %w", err)
	}
	return subs, nil
}

// UpdateContent persists the mutable fields of an unlocked submission along
// with its re-evaluated moderation verdict.
func (r *SubmissionRepository) UpdateContent(ctx context.Context, sub *models.Submission) error {
	sub.UpdatedAt = time.Now().UTC()
	const query = `UPDATE submissions SET content = :content, category = :category, tags = :tags, status = :status, matched_rule_id = :matched_rule_id, similarity_score = :similarity_score, updated_at = :updated_at
WHERE id = :id AND is_locked = FALSE AND deleted_at IS NULL`
	res, err := r.db.NamedExecContext(ctx, query, sub)
	if err != nil {
		return fmt.Errorf("update submission: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetOriginalWork toggles the authorship attestation on an unlocked submission.
func (r *SubmissionRepository) SetOriginalWork(ctx context.Context, id string, original bool) error {
	const query = `UPDATE submissions SET is_original_work = $2, updated_at = $3 WHERE id = $1 AND is_locked = FALSE AND deleted_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, original, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set original work: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SoftDelete marks an unlocked submission as deleted.
func (r *SubmissionRepository) SoftDelete(ctx context.Context, id string) error {
	const query = `UPDATE submissions SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND is_locked = FALSE AND deleted_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("soft delete submission: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CertificateFields are the values written onto a submission when it is locked.
type CertificateFields struct {
	CertificateID string
	Fingerprint   string
	LockedAt      time.Time
}

// LockWithSequence atomically issues the next certificate number and locks the
// submission. The counter increment and the guarded lock update run in one
// transaction, so a failed lock never consumes a number and concurrent locks
// always receive distinct values. The build callback turns the issued number
// into the certificate fields, which lets the caller derive the fingerprint
// from the certificate identifier.
func (r *SubmissionRepository) LockWithSequence(ctx context.Context, id string, build func(seq int64) CertificateFields) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin lock transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const nextQuery = `UPDATE certificate_sequence SET current_value = current_value + 1, updated_at = $2 WHERE id = $1 RETURNING current_value`
	var seq int64
	if err := tx.GetContext(ctx, &seq, nextQuery, models.SequenceSingletonID, time.Now().UTC()); err != nil {
		return 0, fmt.Errorf("advance certificate sequence: %w", err)
	}

	fields := build(seq)

	const lockQuery = `UPDATE submissions SET is_locked = TRUE, locked_at = $2, certificate_id = $3, content_fingerprint = $4, updated_at = $2
WHERE id = $1 AND is_locked = FALSE AND deleted_at IS NULL`
	res, err := tx.ExecContext(ctx, lockQuery, id, fields.LockedAt, fields.CertificateID, fields.Fingerprint)
	if err != nil {
		return 0, fmt.Errorf("lock submission: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return 0, ErrLockConflict
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit lock transaction: %w", err)
	}
	return seq, nil
}

// UpdateCertificate rewrites the certificate fields of a locked submission.
// Only the offline renumbering tool calls this.
func (r *SubmissionRepository) UpdateCertificate(ctx context.Context, id, certificateID, fingerprint string) error {
	const query = `UPDATE submissions SET certificate_id = $2, content_fingerprint = $3, updated_at = $4 WHERE id = $1 AND is_locked = TRUE`
	res, err := r.db.ExecContext(ctx, query, id, certificateID, fingerprint, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update certificate fields: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
