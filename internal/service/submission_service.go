package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/orphanbars/orphanbars-api/internal/models"
	appErrors "github.com/orphanbars/orphanbars-api/pkg/errors"
)

type submissionRepository interface {
	Create(ctx context.Context, sub *models.Submission) error
	GetByID(ctx context.Context, id string) (*models.Submission, error)
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, int, error)
	UpdateContent(ctx context.Context, sub *models.Submission) error
	SetOriginalWork(ctx context.Context, id string, original bool) error
	SoftDelete(ctx context.Context, id string) error
}

type submissionUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type contentEvaluator interface {
	Evaluate(ctx context.Context, content string, author *models.User, excludeSubmissionID string) (*models.ModerationVerdict, error)
}

type feedCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// SubmissionListResponse is the paginated feed payload.
type SubmissionListResponse struct {
	Submissions []models.Submission `json:"submissions"`
	Pagination  models.Pagination   `json:"pagination"`
}

// CreateSubmissionResponse pairs the stored submission with its verdict so
// the author sees advisory duplicates immediately.
type CreateSubmissionResponse struct {
	Submission *models.Submission        `json:"submission"`
	Verdict    *models.ModerationVerdict `json:"verdict"`
}

// SubmissionService provides submission CRUD plus the public feed. Every
// write path routes content through the acceptance pipeline first.
type SubmissionService struct {
	repo      submissionRepository
	users     submissionUserRepository
	pipeline  contentEvaluator
	cache     feedCache
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	feedTTL   time.Duration
}

// SetMetrics attaches the optional metrics sink.
func (s *SubmissionService) SetMetrics(metrics *MetricsService) {
	s.metrics = metrics
}

// NewSubmissionService constructs a SubmissionService. The cache may be nil.
func NewSubmissionService(
	repo submissionRepository,
	users submissionUserRepository,
	pipeline contentEvaluator,
	cache feedCache,
	validate *validator.Validate,
	logger *zap.Logger,
	feedTTL time.Duration,
) *SubmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if feedTTL <= 0 {
		feedTTL = 2 * time.Minute
	}
	return &SubmissionService{
		repo:      repo,
		users:     users,
		pipeline:  pipeline,
		cache:     cache,
		validator: validate,
		logger:    logger,
		feedTTL:   feedTTL,
	}
}

// Create evaluates and stores a new submission.
func (s *SubmissionService) Create(ctx context.Context, userID string, req models.CreateSubmissionRequest) (*CreateSubmissionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}
	if !validCategory(req.Category) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown category")
	}

	author, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "author no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load author")
	}

	verdict, err := s.pipeline.Evaluate(ctx, req.Content, author, "")
	if err != nil {
		return nil, err
	}
	if !verdict.Allowed {
		return nil, refusalError(verdict)
	}

	sub := &models.Submission{
		UserID:          userID,
		Content:         req.Content,
		Category:        req.Category,
		Tags:            pq.StringArray(req.Tags),
		Status:          verdict.Status,
		MatchedRuleID:   verdict.MatchedRuleID,
		SimilarityScore: verdict.SimilarityScore,
		IsOriginalWork:  req.IsOriginalWork,
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store submission")
	}

	s.invalidateFeed(ctx)

	return &CreateSubmissionResponse{Submission: sub, Verdict: verdict}, nil
}

// Check runs the pipeline without persisting anything.
func (s *SubmissionService) Check(ctx context.Context, userID string, req models.CheckContentRequest) (*models.ModerationVerdict, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid check payload")
	}

	author, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "author no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load author")
	}

	return s.pipeline.Evaluate(ctx, req.Content, author, "")
}

// Get returns a single submission.
func (s *SubmissionService) Get(ctx context.Context, id string) (*models.Submission, error) {
	sub, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	return sub, nil
}

// List returns the paginated feed, served from cache when possible.
func (s *SubmissionService) List(ctx context.Context, filter models.SubmissionFilter) (*SubmissionListResponse, error) {
	key := feedCacheKey(filter)
	if s.cache != nil {
		var cached SubmissionListResponse
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			s.metrics.RecordCacheOperation(true)
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("feed cache read failed", zap.Error(err))
		}
		s.metrics.RecordCacheOperation(false)
	}

	subs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	resp := &SubmissionListResponse{
		Submissions: subs,
		Pagination:  models.Pagination{Page: page, PageSize: pageSize, TotalCount: total},
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, resp, s.feedTTL); err != nil {
			s.logger.Warn("feed cache write failed", zap.Error(err))
		}
	}
	return resp, nil
}

// Update edits an unlocked submission owned by the caller. The new content is
// re-evaluated by the full pipeline and the verdict replaces the old one.
func (s *SubmissionService) Update(ctx context.Context, userID, id string, req models.UpdateSubmissionRequest) (*CreateSubmissionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}
	if !validCategory(req.Category) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown category")
	}

	sub, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.UserID != userID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "submission belongs to another user")
	}
	if sub.IsLocked {
		return nil, appErrors.Clone(appErrors.ErrAlreadyLocked, "locked submissions are immutable")
	}

	author, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load author")
	}

	verdict, err := s.pipeline.Evaluate(ctx, req.Content, author, id)
	if err != nil {
		return nil, err
	}
	if !verdict.Allowed {
		return nil, refusalError(verdict)
	}

	sub.Content = req.Content
	sub.Category = req.Category
	sub.Tags = pq.StringArray(req.Tags)
	sub.Status = verdict.Status
	sub.MatchedRuleID = verdict.MatchedRuleID
	sub.SimilarityScore = verdict.SimilarityScore
	if req.IsOriginalWork != nil {
		sub.IsOriginalWork = *req.IsOriginalWork
	}

	if err := s.repo.UpdateContent(ctx, sub); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrAlreadyLocked, "locked submissions are immutable")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update submission")
	}
	if req.IsOriginalWork != nil {
		if err := s.repo.SetOriginalWork(ctx, id, *req.IsOriginalWork); err != nil && !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("failed to update original work flag", zap.Error(err))
		}
	}

	s.invalidateFeed(ctx)

	return &CreateSubmissionResponse{Submission: sub, Verdict: verdict}, nil
}

// Delete soft-deletes an unlocked submission owned by the caller. Admins may
// delete any unlocked submission.
func (s *SubmissionService) Delete(ctx context.Context, caller *models.JWTClaims, id string) error {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if sub.UserID != caller.UserID && caller.Role != models.RoleAdmin && caller.Role != models.RoleOwner {
		return appErrors.Clone(appErrors.ErrForbidden, "submission belongs to another user")
	}
	if sub.IsLocked {
		return appErrors.Clone(appErrors.ErrAlreadyLocked, "locked submissions cannot be deleted")
	}

	if err := s.repo.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrAlreadyLocked, "locked submissions cannot be deleted")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete submission")
	}

	s.invalidateFeed(ctx)
	return nil
}

func (s *SubmissionService) invalidateFeed(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "feed:*"); err != nil {
		s.logger.Warn("feed cache invalidation failed", zap.Error(err))
	}
}

func refusalError(verdict *models.ModerationVerdict) error {
	switch verdict.Refusal {
	case models.RefusalProtected:
		return appErrors.Clone(appErrors.ErrProtectedContent, verdict.Reason)
	case models.RefusalModerator:
		return appErrors.Clone(appErrors.ErrContentRejected, verdict.Reason)
	default:
		return appErrors.Clone(appErrors.ErrContentBlocked, verdict.Reason)
	}
}

func validCategory(category string) bool {
	for _, c := range models.SubmissionCategories {
		if c == category {
			return true
		}
	}
	return false
}

func feedCacheKey(filter models.SubmissionFilter) string {
	status := ""
	if filter.Status != nil {
		status = string(*filter.Status)
	}
	return fmt.Sprintf("feed:%s:%s:%s:%s:%d:%d", filter.UserID, filter.Category, filter.Tag, status, filter.Page, filter.PageSize)
}
