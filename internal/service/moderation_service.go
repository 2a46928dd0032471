package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/orphanbars/orphanbars-api/internal/models"
	"github.com/orphanbars/orphanbars-api/internal/moderation"
	"github.com/orphanbars/orphanbars-api/internal/moderator"
	appErrors "github.com/orphanbars/orphanbars-api/pkg/errors"
)

type moderationRuleRepository interface {
	ListActive(ctx context.Context) ([]models.PhraseRule, error)
}

type moderationCorpusRepository interface {
	ListAccepted(ctx context.Context) ([]models.Submission, error)
}

type moderationProtectedRepository interface {
	List(ctx context.Context) ([]models.ProtectedEntry, error)
}

// ModerationOptions tunes the acceptance pipeline.
type ModerationOptions struct {
	DuplicateThreshold int
	MaxContentLength   int
}

// ModerationService runs submitted content through the acceptance pipeline:
// prohibited-content screening, fuzzy phrase rules, the advisory duplicate
// scan, the protected backlog guard, and finally the external semantic
// moderator. Checks run strictly in that order and the screener can never be
// overridden by a later stage.
type ModerationService struct {
	rules     moderationRuleRepository
	corpus    moderationCorpusRepository
	protected moderationProtectedRepository
	screener  moderation.Screener
	oracle    moderator.Moderator
	metrics   *MetricsService
	logger    *zap.Logger
	opts      ModerationOptions
}

// SetMetrics attaches the optional metrics sink.
func (s *ModerationService) SetMetrics(metrics *MetricsService) {
	s.metrics = metrics
}

// NewModerationService constructs a ModerationService. The oracle may be nil
// when external moderation is disabled.
func NewModerationService(
	rules moderationRuleRepository,
	corpus moderationCorpusRepository,
	protected moderationProtectedRepository,
	screener moderation.Screener,
	oracle moderator.Moderator,
	logger *zap.Logger,
	opts ModerationOptions,
) *ModerationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if screener == nil {
		screener = moderation.NewTermScreener()
	}
	if opts.DuplicateThreshold <= 0 {
		opts.DuplicateThreshold = 80
	}
	if opts.MaxContentLength <= 0 {
		opts.MaxContentLength = 2000
	}
	return &ModerationService{
		rules:     rules,
		corpus:    corpus,
		protected: protected,
		screener:  screener,
		oracle:    oracle,
		logger:    logger,
		opts:      opts,
	}
}

// Evaluate runs the full pipeline for content authored by the given user and
// returns the verdict. excludeSubmissionID removes a submission from the
// duplicate scan so edits never collide with themselves. Evaluate never
// persists anything; callers decide what to do with the verdict.
func (s *ModerationService) Evaluate(ctx context.Context, content string, author *models.User, excludeSubmissionID string) (*models.ModerationVerdict, error) {
	start := time.Now()
	verdict, err := s.evaluate(ctx, content, author, excludeSubmissionID)
	if err == nil {
		s.metrics.ObserveVerdict(string(verdict.Status), time.Since(start))
	}
	return verdict, err
}

func (s *ModerationService) evaluate(ctx context.Context, content string, author *models.User, excludeSubmissionID string) (*models.ModerationVerdict, error) {
	if strings.TrimSpace(content) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "content must not be empty")
	}
	if len(content) > s.opts.MaxContentLength {
		return nil, appErrors.Clone(appErrors.ErrValidation, "content exceeds maximum length")
	}

	// Screener first, on the raw text. Nothing downstream can override it.
	if blocked, reason := s.screener.Screen(content); blocked {
		return &models.ModerationVerdict{
			Allowed: false,
			Refusal: models.RefusalScreened,
			Status:  models.StatusBlocked,
			Reason:  reason,
		}, nil
	}

	normalized := moderation.Normalize(content)
	verdict := &models.ModerationVerdict{
		Allowed: true,
		Status:  models.StatusApproved,
	}

	rules, err := s.rules.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load phrase rules")
	}

	// Rules evaluate in ascending priority; the first rule whose score meets
	// its threshold wins and later rules are ignored.
	for i := range rules {
		rule := rules[i]
		score := moderation.PhraseOverlap(normalized, rule.NormalizedPhrase)
		if score < rule.SimilarityThreshold {
			continue
		}
		verdict.MatchedRuleID = &rule.ID
		verdict.SimilarityScore = &score
		if rule.Severity == models.SeverityBlock {
			// Blocking rules are hard violations just like the screener:
			// the submission is refused outright, not stored as blocked.
			verdict.Allowed = false
			verdict.Refusal = models.RefusalRule
			verdict.Status = models.StatusBlocked
			verdict.Reason = "content matches a blocked phrase"
			return verdict, nil
		}
		verdict.Status = models.StatusPendingReview
		verdict.Reason = "content matches a flagged phrase"
		break
	}

	// Advisory duplicate scan against the stored corpus. High similarity is
	// surfaced to the author but never blocks on its own.
	duplicates, err := s.findDuplicates(ctx, normalized, excludeSubmissionID)
	if err != nil {
		return nil, err
	}
	verdict.Duplicates = duplicates

	// Protected backlog guard. Owner submissions skip it so the owner can
	// publish their own reserved material.
	if author == nil || author.Role != models.RoleOwner {
		entries, err := s.protected.List(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load protected entries")
		}
		for i := range entries {
			entry := entries[i]
			score := moderation.PhraseOverlap(normalized, entry.NormalizedContent)
			if score >= entry.SimilarityThreshold {
				verdict.Allowed = false
				verdict.Refusal = models.RefusalProtected
				verdict.Status = models.StatusBlocked
				verdict.Reason = "content matches protected material reserved by its author"
				verdict.SimilarityScore = &score
				return verdict, nil
			}
		}
	}

	// External semantic moderator runs last and fails open: an unreachable
	// or misbehaving oracle must never stop legitimate submissions.
	if s.oracle != nil {
		result, err := s.oracle.Moderate(ctx, content)
		if err != nil {
			s.metrics.RecordModeratorFault()
			s.logger.Warn("external moderator unavailable, failing open", zap.Error(err))
		} else if !result.Approved {
			verdict.Allowed = false
			verdict.Refusal = models.RefusalModerator
			verdict.Status = models.StatusBlocked
			verdict.Reason = "content rejected by moderation"
			verdict.ModeratorReasons = result.Reasons
			return verdict, nil
		} else if result.Flagged {
			if verdict.Status == models.StatusApproved {
				verdict.Status = models.StatusPendingReview
			}
			verdict.ModeratorReasons = result.Reasons
		}
	}

	return verdict, nil
}

func (s *ModerationService) findDuplicates(ctx context.Context, normalized, excludeID string) ([]models.DuplicateMatch, error) {
	existing, err := s.corpus.ListAccepted(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission corpus")
	}

	var matches []models.DuplicateMatch
	for i := range existing {
		sub := existing[i]
		if sub.ID == excludeID {
			continue
		}
		score := moderation.Similarity(normalized, moderation.Normalize(sub.Content))
		if score >= s.opts.DuplicateThreshold {
			matches = append(matches, models.DuplicateMatch{Submission: sub, Similarity: score})
		}
	}
	// Closest matches first so the author sees the strongest candidate on top.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	return matches, nil
}
