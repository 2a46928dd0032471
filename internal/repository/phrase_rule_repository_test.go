package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orphanbars/orphanbars-api/internal/models"
)

func TestListActivePhraseRulesOrder(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPhraseRuleRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "phrase", "normalized_phrase", "severity", "similarity_threshold", "priority", "active", "created_by", "created_at", "updated_at"}).
		AddRow("r1", "my lasagna is cold", "my lasagna is cold", string(models.SeverityBlock), 80, 1, true, "admin", now, now).
		AddRow("r2", "cold lasagna", "cold lasagna", string(models.SeverityFlag), 70, 2, true, "admin", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE active = TRUE ORDER BY priority ASC, created_at ASC")).
		WillReturnRows(rows)

	rules, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "r1", rules[0].ID)
	assert.Equal(t, models.SeverityBlock, rules[0].Severity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePhraseRuleGeneratesID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPhraseRuleRepository(db)

	mock.ExpectExec("INSERT INTO phrase_rules").WillReturnResult(sqlmock.NewResult(1, 1))

	rule := &models.PhraseRule{Phrase: "my lasagna is cold", NormalizedPhrase: "my lasagna is cold", Severity: models.SeverityBlock, SimilarityThreshold: 80, Priority: 1, Active: true, CreatedBy: "admin"}
	err := repo.Create(context.Background(), rule)
	require.NoError(t, err)
	assert.NotEmpty(t, rule.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeletePhraseRuleMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPhraseRuleRepository(db)

	mock.ExpectExec("DELETE FROM phrase_rules").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSequenceGetAndSet(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSequenceRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, current_value, updated_at FROM certificate_sequence WHERE id = $1")).
		WithArgs(models.SequenceSingletonID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "current_value", "updated_at"}).AddRow("singleton", int64(41), now))

	counter, err := repo.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(41), counter.CurrentValue)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE certificate_sequence SET current_value = $2")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Set(context.Background(), 97))
	assert.NoError(t, mock.ExpectationsWereMet())
}
