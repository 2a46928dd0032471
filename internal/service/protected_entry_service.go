package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/orphanbars/orphanbars-api/internal/models"
	"github.com/orphanbars/orphanbars-api/internal/moderation"
	appErrors "github.com/orphanbars/orphanbars-api/pkg/errors"
)

type protectedEntryRepository interface {
	Create(ctx context.Context, entry *models.ProtectedEntry) error
	GetByID(ctx context.Context, id string) (*models.ProtectedEntry, error)
	List(ctx context.Context) ([]models.ProtectedEntry, error)
	Update(ctx context.Context, entry *models.ProtectedEntry) error
	Delete(ctx context.Context, id string) error
}

// ProtectedEntryService manages the owner's reserved-content backlog.
type ProtectedEntryService struct {
	repo      protectedEntryRepository
	auditor   adminAuditor
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProtectedEntryService constructs a ProtectedEntryService.
func NewProtectedEntryService(repo protectedEntryRepository, auditor adminAuditor, validate *validator.Validate, logger *zap.Logger) *ProtectedEntryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ProtectedEntryService{repo: repo, auditor: auditor, validator: validate, logger: logger}
}

// Create validates and stores a new protected entry with its content
// normalized server-side.
func (s *ProtectedEntryService) Create(ctx context.Context, actorID string, req models.ProtectedEntryRequest) (*models.ProtectedEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid protected entry payload")
	}

	normalized := moderation.Normalize(req.Content)
	if normalized == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "content normalizes to nothing")
	}

	entry := &models.ProtectedEntry{
		Content:             req.Content,
		NormalizedContent:   normalized,
		SimilarityThreshold: req.SimilarityThreshold,
		Note:                req.Note,
		CreatedBy:           actorID,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create protected entry")
	}

	s.audit(ctx, actorID, entry.ID)
	return entry, nil
}

// List returns all protected entries.
func (s *ProtectedEntryService) List(ctx context.Context) ([]models.ProtectedEntry, error) {
	entries, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list protected entries")
	}
	return entries, nil
}

// Update replaces an entry's fields, re-normalizing the content.
func (s *ProtectedEntryService) Update(ctx context.Context, actorID, id string, req models.ProtectedEntryRequest) (*models.ProtectedEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid protected entry payload")
	}

	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "protected entry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load protected entry")
	}

	normalized := moderation.Normalize(req.Content)
	if normalized == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "content normalizes to nothing")
	}

	entry.Content = req.Content
	entry.NormalizedContent = normalized
	entry.SimilarityThreshold = req.SimilarityThreshold
	entry.Note = req.Note

	if err := s.repo.Update(ctx, entry); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "protected entry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update protected entry")
	}

	s.audit(ctx, actorID, entry.ID)
	return entry, nil
}

// Delete removes a protected entry.
func (s *ProtectedEntryService) Delete(ctx context.Context, actorID, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "protected entry not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete protected entry")
	}
	s.audit(ctx, actorID, id)
	return nil
}

func (s *ProtectedEntryService) audit(ctx context.Context, actorID, entryID string) {
	if err := s.auditor.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionProtectedEntryWrite,
		Resource:   "protected_entry",
		ResourceID: &entryID,
	}); err != nil {
		s.logger.Warn("failed to record protected entry audit log", zap.Error(err))
	}
}
