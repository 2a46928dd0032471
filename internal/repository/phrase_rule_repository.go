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

const phraseRuleColumns = `id, phrase, normalized_phrase, severity, similarity_threshold, priority, active, created_by, created_at, updated_at`

// PhraseRuleRepository provides database access for phrase rules.
type PhraseRuleRepository struct {
	db *sqlx.DB
}

// NewPhraseRuleRepository creates a new instance of PhraseRuleRepository.
func NewPhraseRuleRepository(db *sqlx.DB) *PhraseRuleRepository {
	return &PhraseRuleRepository{db: db}
}

// Create inserts a new phrase rule.
func (r *PhraseRuleRepository) Create(ctx context.Context, rule *models.PhraseRule) error {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	const query = `INSERT INTO phrase_rules (id, phrase, normalized_phrase, severity, similarity_threshold, priority, active, created_by, created_at, updated_at)
VALUES (:id, :phrase, :normalized_phrase, :severity, :similarity_threshold, :priority, :active, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, rule); err != nil {
		return fmt.Errorf("create phrase rule: %w", err)
	}
	return nil
}

// GetByID returns a phrase rule by identifier.
func (r *PhraseRuleRepository) GetByID(ctx context.Context, id string) (*models.PhraseRule, error) {
	query := fmt.Sprintf(`SELECT %s FROM phrase_rules WHERE id = $1`, phraseRuleColumns)
	var rule models.PhraseRule
	if err := r.db.GetContext(ctx, &rule, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get phrase rule: %w", err)
	}
	return &rule, nil
}

// List returns every phrase rule in evaluation order.
func (r *PhraseRuleRepository) List(ctx context.Context) ([]models.PhraseRule, error) {
	query := fmt.Sprintf(`SELECT %s FROM phrase_rules ORDER BY priority ASC, created_at ASC`, phraseRuleColumns)
	var rules []models.PhraseRule
	if err := r.db.SelectContext(ctx, &rules, query); err != nil {
		return nil, fmt.Errorf("list phrase rules: %w", err)
	}
	return rules, nil
}

// ListActive returns the active rules in evaluation order. The pipeline walks
// them in ascending priority and stops at the first match.
func (r *PhraseRuleRepository) ListActive(ctx context.Context) ([]models.PhraseRule, error) {
	query := fmt.Sprintf(`SELECT %s FROM phrase_rules WHERE active = TRUE ORDER BY priority ASC, created_at ASC`, phraseRuleColumns)
	var rules []models.PhraseRule
	if err := r.db.SelectContext(ctx, &rules, query); err != nil {
		return nil, fmt.Errorf("list active phrase rules: %w", err)
	}
	return rules, nil
}

// Update persists the full rule row.
func (r *PhraseRuleRepository) Update(ctx context.Context, rule *models.PhraseRule) error {
	rule.UpdatedAt = time.Now().UTC()
	const query = `UPDATE phrase_rules SET phrase = :phrase, normalized_phrase = :normalized_phrase, severity = :severity, similarity_threshold = :similarity_threshold, priority = :priority, active = :active, updated_at = :updated_at
WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, rule)
	if err != nil {
		return fmt.Errorf("update phrase rule: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a phrase rule.
func (r *PhraseRuleRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM phrase_rules WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete phrase rule: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
