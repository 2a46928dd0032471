package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/orphanbars/orphanbars-api/internal/models"
)

const protectedEntryColumns = `id, content, normalized_content, similarity_threshold, note, created_by, created_at, updated_at`

// ProtectedEntryRepository provides database access for protected entries.
type ProtectedEntryRepository struct {
	db *sqlx.DB
}

// NewProtectedEntryRepository creates a new instance of ProtectedEntryRepository.
func NewProtectedEntryRepository(db *sqlx.DB) *ProtectedEntryRepository {
	return &ProtectedEntryRepository{db: db}
}

// Create inserts a new protected entry.
func (r *ProtectedEntryRepository) Create(ctx context.Context, entry *models.ProtectedEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	const query = `INSERT INTO protected_entries (id, content, normalized_content, similarity_threshold, note, created_by, created_at, updated_at)
VALUES (:id, :content, :normalized_content, :similarity_threshold, :note, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create protected entry: %w", err)
	}
	return nil
}

// GetByID returns a protected entry by identifier.
func (r *ProtectedEntryRepository) GetByID(ctx context.Context, id string) (*models.ProtectedEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM protected_entries WHERE id = $1`, protectedEntryColumns)
	var entry models.ProtectedEntry
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get protected entry: %w", err)
	}
	return &entry, nil
}

// List returns all protected entries, newest first.
func (r *ProtectedEntryRepository) List(ctx context.Context) ([]models.ProtectedEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM protected_entries ORDER BY created_at DESC`, protectedEntryColumns)
	var entries []models.ProtectedEntry
	if err := r.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("list protected entries: %w", err)
	}
	return entries, nil
}

// Update persists the full entry row.
func (r *ProtectedEntryRepository) Update(ctx context.Context, entry *models.ProtectedEntry) error {
	entry.UpdatedAt = time.Now().UTC()
	const query = `UPDATE protected_entries SET content = :content, normalized_content = :normalized_content, similarity_threshold = :similarity_threshold, note = :note, updated_at = :updated_at
WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, entry)
	if err != nil {
		return fmt.Errorf("update protected entry: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a protected entry.
func (r *ProtectedEntryRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM protected_entries WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete protected entry: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
