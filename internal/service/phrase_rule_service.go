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

type phraseRuleRepository interface {
	Create(ctx context.Context, rule *models.PhraseRule) error
	GetByID(ctx context.Context, id string) (*models.PhraseRule, error)
	List(ctx context.Context) ([]models.PhraseRule, error)
	Update(ctx context.Context, rule *models.PhraseRule) error
	Delete(ctx context.Context, id string) error
}

type adminAuditor interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// PhraseRuleService manages the administrator-curated fuzzy phrase rules.
type PhraseRuleService struct {
	repo      phraseRuleRepository
	auditor   adminAuditor
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPhraseRuleService constructs a PhraseRuleService.
func NewPhraseRuleService(repo phraseRuleRepository, auditor adminAuditor, validate *validator.Validate, logger *zap.Logger) *PhraseRuleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &PhraseRuleService{repo: repo, auditor: auditor, validator: validate, logger: logger}
}

// Create validates and stores a new rule. The phrase is normalized with the
// same normalizer used on submissions so rule and content scores compare
// like for like.
func (s *PhraseRuleService) Create(ctx context.Context, actorID string, req models.PhraseRuleRequest) (*models.PhraseRule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid phrase rule payload")
	}

	normalized := moderation.Normalize(req.Phrase)
	if normalized == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "phrase normalizes to nothing")
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	rule := &models.PhraseRule{
		Phrase:              req.Phrase,
		NormalizedPhrase:    normalized,
		Severity:            req.Severity,
		SimilarityThreshold: req.SimilarityThreshold,
		Priority:            req.Priority,
		Active:              active,
		CreatedBy:           actorID,
	}
	if err := s.repo.Create(ctx, rule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create phrase rule")
	}

	s.audit(ctx, actorID, rule.ID)
	return rule, nil
}

// List returns all rules in evaluation order.
func (s *PhraseRuleService) List(ctx context.Context) ([]models.PhraseRule, error) {
	rules, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list phrase rules")
	}
	return rules, nil
}

// Update replaces a rule's fields, re-normalizing the phrase.
func (s *PhraseRuleService) Update(ctx context.Context, actorID, id string, req models.PhraseRuleRequest) (*models.PhraseRule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid phrase rule payload")
	}

	rule, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "phrase rule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load phrase rule")
	}

	normalized := moderation.Normalize(req.Phrase)
	if normalized == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "phrase normalizes to nothing")
	}

	rule.Phrase = req.Phrase
	rule.NormalizedPhrase = normalized
	rule.Severity = req.Severity
	rule.SimilarityThreshold = req.SimilarityThreshold
	rule.Priority = req.Priority
	if req.Active != nil {
		rule.Active = *req.Active
	}

	if err := s.repo.Update(ctx, rule); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "phrase rule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update phrase rule")
	}

	s.audit(ctx, actorID, rule.ID)
	return rule, nil
}

// Delete removes a rule.
func (s *PhraseRuleService) Delete(ctx context.Context, actorID, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "phrase rule not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete phrase rule")
	}
	s.audit(ctx, actorID, id)
	return nil
}

func (s *PhraseRuleService) audit(ctx context.Context, actorID, ruleID string) {
	if err := s.auditor.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionPhraseRuleWrite,
		Resource:   "phrase_rule",
		ResourceID: &ruleID,
	}); err != nil {
		s.logger.Warn("failed to record phrase rule audit log", zap.Error(err))
	}
}
