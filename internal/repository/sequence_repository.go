package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/orphanbars/orphanbars-api/internal/models"
)

// SequenceRepository provides database access for the certificate counter.
type SequenceRepository struct {
	db *sqlx.DB
}

// NewSequenceRepository creates a new instance of SequenceRepository.
func NewSequenceRepository(db *sqlx.DB) *SequenceRepository {
	return &SequenceRepository{db: db}
}

// Get returns the singleton counter row.
func (r *SequenceRepository) Get(ctx context.Context) (*models.SequenceCounter, error) {
	const query = `SELECT id, current_value, updated_at FROM certificate_sequence WHERE id = $1`
	var counter models.SequenceCounter
	if err := r.db.GetContext(ctx, &counter, query, models.SequenceSingletonID); err != nil {
		return nil, fmt.Errorf("get certificate sequence: %w", err)
	}
	return &counter, nil
}

// Set overwrites the counter value. Only the offline repair tools call this.
func (r *SequenceRepository) Set(ctx context.Context, value int64) error {
	const query = `UPDATE certificate_sequence SET current_value = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, models.SequenceSingletonID, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("set certificate sequence: %w", err)
	}
	return nil
}
