package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orphanbars/orphanbars-api/internal/models"
	"github.com/orphanbars/orphanbars-api/internal/moderator"
)

type mockRuleRepo struct {
	rules []models.PhraseRule
	err   error
}

func (m *mockRuleRepo) ListActive(ctx context.Context) ([]models.PhraseRule, error) {
	return m.rules, m.err
}

type mockCorpusRepo struct {
	subs []models.Submission
	err  error
}

func (m *mockCorpusRepo) ListAccepted(ctx context.Context) ([]models.Submission, error) {
	return m.subs, m.err
}

type mockProtectedRepo struct {
	entries []models.ProtectedEntry
	err     error
}

func (m *mockProtectedRepo) List(ctx context.Context) ([]models.ProtectedEntry, error) {
	return m.entries, m.err
}

type mockOracle struct {
	result *moderator.Result
	err    error
	called bool
}

func (m *mockOracle) Moderate(ctx context.Context, content string) (*moderator.Result, error) {
	m.called = true
	return m.result, m.err
}

func newPipeline(rules *mockRuleRepo, corpus *mockCorpusRepo, protected *mockProtectedRepo, oracle moderator.Moderator) *ModerationService {
	return NewModerationService(rules, corpus, protected, nil, oracle, nil, ModerationOptions{})
}

func regularUser() *models.User {
	return &models.User{ID: "u1", Username: "mcbarface", Role: models.RoleUser}
}

func TestEvaluateScreenerBlocksBeforeAnythingElse(t *testing.T) {
	rules := &mockRuleRepo{err: errors.New("must not be reached")}
	svc := newPipeline(rules, &mockCorpusRepo{}, &mockProtectedRepo{}, nil)

	verdict, err := svc.Evaluate(context.Background(), "selling child porn here", regularUser(), "")
	require.NoError(t, err)
	assert.False(t, verdict.Allowed)
	assert.Equal(t, models.RefusalScreened, verdict.Refusal)
	assert.Equal(t, models.StatusBlocked, verdict.Status)
	assert.NotEmpty(t, verdict.Reason)
}

func TestEvaluateEmptyContentRejected(t *testing.T) {
	svc := newPipeline(&mockRuleRepo{}, &mockCorpusRepo{}, &mockProtectedRepo{}, nil)

	_, err := svc.Evaluate(context.Background(), "   \n ", regularUser(), "")
	assert.Error(t, err)
}

func TestEvaluatePhraseRuleBlocksOnContainment(t *testing.T) {
	rules := &mockRuleRepo{rules: []models.PhraseRule{
		{ID: "r1", NormalizedPhrase: "my lasagna is cold", Severity: models.SeverityBlock, SimilarityThreshold: 80, Priority: 1},
	}}
	svc := newPipeline(rules, &mockCorpusRepo{}, &mockProtectedRepo{}, nil)

	// The phrase is quoted inside a longer bar; containment still scores 100.
	verdict, err := svc.Evaluate(context.Background(), "I came home and my lasagna is cold again tonight", regularUser(), "")
	require.NoError(t, err)
	assert.False(t, verdict.Allowed)
	assert.Equal(t, models.RefusalRule, verdict.Refusal)
	assert.Equal(t, models.StatusBlocked, verdict.Status)
	require.NotNil(t, verdict.MatchedRuleID)
	assert.Equal(t, "r1", *verdict.MatchedRuleID)
	require.NotNil(t, verdict.SimilarityScore)
	assert.Equal(t, 100, *verdict.SimilarityScore)
}

func TestEvaluateFirstMatchingRuleWins(t *testing.T) {
	rules := &mockRuleRepo{rules: []models.PhraseRule{
		{ID: "flag-rule", NormalizedPhrase: "cold lasagna", Severity: models.SeverityFlag, SimilarityThreshold: 50, Priority: 1},
		{ID: "block-rule", NormalizedPhrase: "cold lasagna", Severity: models.SeverityBlock, SimilarityThreshold: 50, Priority: 2},
	}}
	svc := newPipeline(rules, &mockCorpusRepo{}, &mockProtectedRepo{}, nil)

	verdict, err := svc.Evaluate(context.Background(), "cold lasagna for breakfast", regularUser(), "")
	require.NoError(t, err)
	assert.True(t, verdict.Allowed)
	assert.Equal(t, models.StatusPendingReview, verdict.Status)
	require.NotNil(t, verdict.MatchedRuleID)
	assert.Equal(t, "flag-rule", *verdict.MatchedRuleID)
}

func TestEvaluateFlagRuleQueuesForReview(t *testing.T) {
	rules := &mockRuleRepo{rules: []models.PhraseRule{
		{ID: "r1", NormalizedPhrase: "i move in silence", Severity: models.SeverityFlag, SimilarityThreshold: 80, Priority: 1},
	}}
	svc := newPipeline(rules, &mockCorpusRepo{}, &mockProtectedRepo{}, nil)

	verdict, err := svc.Evaluate(context.Background(), "I move in silence like the g in lasagna", regularUser(), "")
	require.NoError(t, err)
	assert.True(t, verdict.Allowed)
	assert.Equal(t, models.StatusPendingReview, verdict.Status)
}

func TestEvaluateDuplicatesAreAdvisory(t *testing.T) {
	corpus := &mockCorpusRepo{subs: []models.Submission{
		{ID: "s1", Content: "my cat walks sideways on Tuesdays"},
		{ID: "s2", Content: "completely unrelated text about trains"},
	}}
	svc := newPipeline(&mockRuleRepo{}, corpus, &mockProtectedRepo{}, nil)

	verdict, err := svc.Evaluate(context.Background(), "my cat walks sideways on tuesdays", regularUser(), "")
	require.NoError(t, err)
	assert.True(t, verdict.Allowed)
	assert.Equal(t, models.StatusApproved, verdict.Status)
	require.Len(t, verdict.Duplicates, 1)
	assert.Equal(t, "s1", verdict.Duplicates[0].Submission.ID)
	assert.Equal(t, 100, verdict.Duplicates[0].Similarity)
}

func TestEvaluateDuplicateScanExcludesSelf(t *testing.T) {
	corpus := &mockCorpusRepo{subs: []models.Submission{
		{ID: "s1", Content: "my cat walks sideways"},
	}}
	svc := newPipeline(&mockRuleRepo{}, corpus, &mockProtectedRepo{}, nil)

	verdict, err := svc.Evaluate(context.Background(), "my cat walks sideways", regularUser(), "s1")
	require.NoError(t, err)
	assert.Empty(t, verdict.Duplicates)
}

func TestEvaluateDuplicatesRankedByScore(t *testing.T) {
	// The weaker match sits first in corpus order; ranking must reorder it.
	corpus := &mockCorpusRepo{subs: []models.Submission{
		{ID: "partial", Content: "my cat walks sideways on tuesdays near the"},
		{ID: "exact", Content: "my cat walks sideways on tuesdays near the old station"},
	}}
	svc := newPipeline(&mockRuleRepo{}, corpus, &mockProtectedRepo{}, nil)

	verdict, err := svc.Evaluate(context.Background(), "my cat walks sideways on tuesdays near the old station", regularUser(), "")
	require.NoError(t, err)
	require.Len(t, verdict.Duplicates, 2)
	assert.Equal(t, "exact", verdict.Duplicates[0].Submission.ID)
	assert.Equal(t, 100, verdict.Duplicates[0].Similarity)
	assert.Equal(t, "partial", verdict.Duplicates[1].Submission.ID)
	assert.Equal(t, 80, verdict.Duplicates[1].Similarity)
}

func TestEvaluateProtectedGuardRejects(t *testing.T) {
	protected := &mockProtectedRepo{entries: []models.ProtectedEntry{
		{ID: "p1", NormalizedContent: "orphan bars never miss", SimilarityThreshold: 80},
	}}
	svc := newPipeline(&mockRuleRepo{}, &mockCorpusRepo{}, protected, nil)

	verdict, err := svc.Evaluate(context.Background(), "they say orphan bars never miss a beat", regularUser(), "")
	require.NoError(t, err)
	assert.False(t, verdict.Allowed)
	assert.Equal(t, models.RefusalProtected, verdict.Refusal)
}

func TestEvaluateOwnerSkipsProtectedGuard(t *testing.T) {
	protected := &mockProtectedRepo{err: errors.New("must not be reached")}
	svc := newPipeline(&mockRuleRepo{}, &mockCorpusRepo{}, protected, nil)

	owner := &models.User{ID: "o1", Role: models.RoleOwner}
	verdict, err := svc.Evaluate(context.Background(), "they say orphan bars never miss a beat", owner, "")
	require.NoError(t, err)
	assert.True(t, verdict.Allowed)
	assert.Equal(t, models.StatusApproved, verdict.Status)
}

func TestEvaluateModeratorFailsOpen(t *testing.T) {
	oracle := &mockOracle{err: errors.New("connection refused")}
	svc := newPipeline(&mockRuleRepo{}, &mockCorpusRepo{}, &mockProtectedRepo{}, oracle)

	verdict, err := svc.Evaluate(context.Background(), "a perfectly fine bar", regularUser(), "")
	require.NoError(t, err)
	assert.True(t, oracle.called)
	assert.True(t, verdict.Allowed)
	assert.Equal(t, models.StatusApproved, verdict.Status)
}

func TestEvaluateModeratorRejection(t *testing.T) {
	oracle := &mockOracle{result: &moderator.Result{Approved: false, Reasons: []string{"hate speech"}}}
	svc := newPipeline(&mockRuleRepo{}, &mockCorpusRepo{}, &mockProtectedRepo{}, oracle)

	verdict, err := svc.Evaluate(context.Background(), "a perfectly fine bar", regularUser(), "")
	require.NoError(t, err)
	assert.False(t, verdict.Allowed)
	assert.Equal(t, models.RefusalModerator, verdict.Refusal)
	assert.Equal(t, []string{"hate speech"}, verdict.ModeratorReasons)
}

func TestEvaluateModeratorFlagMeansPendingReview(t *testing.T) {
	oracle := &mockOracle{result: &moderator.Result{Approved: true, Flagged: true, Reasons: []string{"borderline"}}}
	svc := newPipeline(&mockRuleRepo{}, &mockCorpusRepo{}, &mockProtectedRepo{}, oracle)

	verdict, err := svc.Evaluate(context.Background(), "a perfectly fine bar", regularUser(), "")
	require.NoError(t, err)
	assert.True(t, verdict.Allowed)
	assert.Equal(t, models.StatusPendingReview, verdict.Status)
}

func TestEvaluateScreenedContentNeverReachesOracle(t *testing.T) {
	oracle := &mockOracle{result: &moderator.Result{Approved: true}}
	svc := newPipeline(&mockRuleRepo{}, &mockCorpusRepo{}, &mockProtectedRepo{}, oracle)

	verdict, err := svc.Evaluate(context.Background(), "jailbait content", regularUser(), "")
	require.NoError(t, err)
	assert.False(t, verdict.Allowed)
	assert.False(t, oracle.called)
}
