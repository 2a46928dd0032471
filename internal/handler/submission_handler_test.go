package handler

import (
	"bytes"
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/orphanbars/orphanbars-api/internal/middleware"
	"github.com/orphanbars/orphanbars-api/internal/models"
	"github.com/orphanbars/orphanbars-api/internal/service"
)

type stubSubRepo struct {
	subs map[string]*models.Submission
}

func (m *stubSubRepo) Create(ctx context.Context, sub *models.Submission) error {
	if sub.ID == "" {
		sub.ID = "s-new"
	}
	sub.CreatedAt = time.Now().UTC()
	if m.subs == nil {
		m.subs = make(map[string]*models.Submission)
	}
	m.subs[sub.ID] = sub
	return nil
}

func (m *stubSubRepo) GetByID(ctx context.Context, id string) (*models.Submission, error) {
	sub, ok := m.subs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *sub
	return &copied, nil
}

func (m *stubSubRepo) List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, int, error) {
	var out []models.Submission
	for _, sub := range m.subs {
		if filter.UserID != "" && sub.UserID != filter.UserID {
			continue
		}
		if filter.Status != nil && sub.Status != *filter.Status {
			continue
		}
		out = append(out, *sub)
	}
	return out, len(out), nil
}

func (m *stubSubRepo) UpdateContent(ctx context.Context, sub *models.Submission) error {
	existing, ok := m.subs[sub.ID]
	if !ok || existing.IsLocked {
		return sql.ErrNoRows
	}
	m.subs[sub.ID] = sub
	return nil
}

func (m *stubSubRepo) SetOriginalWork(ctx context.Context, id string, original bool) error {
	return nil
}

func (m *stubSubRepo) SoftDelete(ctx context.Context, id string) error {
	sub, ok := m.subs[id]
	if !ok || sub.IsLocked {
		return sql.ErrNoRows
	}
	delete(m.subs, id)
	return nil
}

type stubUserRepo struct {
	users map[string]*models.User
}

func (m *stubUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

type stubEvaluator struct {
	verdict *models.ModerationVerdict
}

func (m *stubEvaluator) Evaluate(ctx context.Context, content string, author *models.User, excludeSubmissionID string) (*models.ModerationVerdict, error) {
	if m.verdict != nil {
		return m.verdict, nil
	}
	return &models.ModerationVerdict{Allowed: true, Status: models.StatusApproved}, nil
}

func testClaims(role models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Username: "mcbarface", Role: role})
		c.Next()
	}
}

func buildSubmissionRouter(repo *stubSubRepo, eval *stubEvaluator, role models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	users := &stubUserRepo{users: map[string]*models.User{"u1": {ID: "u1", Username: "mcbarface", Role: role}}}
	svc := service.NewSubmissionService(repo, users, eval, nil, nil, nil, time.Minute)
	h := NewSubmissionHandler(svc)

	router := gin.New()
	router.GET("/submissions", h.List)
	auth := router.Group("/", testClaims(role))
	auth.GET("/submissions/user/:userId", h.ListByUser)
	auth.POST("/submissions", h.Create)
	auth.POST("/submissions/check", h.Check)
	auth.PUT("/submissions/:id", h.Update)
	auth.DELETE("/submissions/:id", h.Delete)
	return router
}

func performRequest(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestCreateSubmissionEndpoint(t *testing.T) {
	repo := &stubSubRepo{}
	router := buildSubmissionRouter(repo, &stubEvaluator{}, models.RoleUser)

	body := bytes.NewBufferString(`{"content":"my cat walks sideways","category":"Funny","tags":["cats"],"is_original_work":true}`)
	req, _ := http.NewRequest(http.MethodPost, "/submissions", body)
	req.Header.Set("Content-Type", "application/json")

	resp := performRequest(router, req)
	require.Equal(t, http.StatusCreated, resp.Code)
	require.Contains(t, resp.Body.String(), `"status":"approved"`)
	require.Len(t, repo.subs, 1)
}

func TestCreateSubmissionProtectedRefusal(t *testing.T) {
	eval := &stubEvaluator{verdict: &models.ModerationVerdict{
		Allowed: false,
		Refusal: models.RefusalProtected,
		Status:  models.StatusBlocked,
		Reason:  "content matches protected material reserved by its author",
	}}
	router := buildSubmissionRouter(&stubSubRepo{}, eval, models.RoleUser)

	body := bytes.NewBufferString(`{"content":"reserved line","category":"Funny"}`)
	req, _ := http.NewRequest(http.MethodPost, "/submissions", body)
	req.Header.Set("Content-Type", "application/json")

	resp := performRequest(router, req)
	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	require.Contains(t, resp.Body.String(), "PROTECTED_CONTENT")
}

func TestCheckEndpointDoesNotStore(t *testing.T) {
	repo := &stubSubRepo{}
	router := buildSubmissionRouter(repo, &stubEvaluator{}, models.RoleUser)

	body := bytes.NewBufferString(`{"content":"a perfectly fine bar"}`)
	req, _ := http.NewRequest(http.MethodPost, "/submissions/check", body)
	req.Header.Set("Content-Type", "application/json")

	resp := performRequest(router, req)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `"allowed":true`)
	require.Empty(t, repo.subs)
}

func TestUpdateLockedSubmissionEndpoint(t *testing.T) {
	lockedAt := time.Now().UTC()
	repo := &stubSubRepo{subs: map[string]*models.Submission{
		"s1": {ID: "s1", UserID: "u1", Content: "frozen", Category: "Funny", IsLocked: true, LockedAt: &lockedAt},
	}}
	router := buildSubmissionRouter(repo, &stubEvaluator{}, models.RoleUser)

	body := bytes.NewBufferString(`{"content":"thawed","category":"Funny"}`)
	req, _ := http.NewRequest(http.MethodPut, "/submissions/s1", body)
	req.Header.Set("Content-Type", "application/json")

	resp := performRequest(router, req)
	require.Equal(t, http.StatusConflict, resp.Code)
}

func TestListEndpointIsPublic(t *testing.T) {
	repo := &stubSubRepo{subs: map[string]*models.Submission{
		"s1": {ID: "s1", UserID: "u1", Content: "a bar", Category: "Funny", Status: models.StatusApproved},
	}}
	router := buildSubmissionRouter(repo, &stubEvaluator{}, models.RoleUser)

	req, _ := http.NewRequest(http.MethodGet, "/submissions?page=1&page_size=10", nil)
	resp := performRequest(router, req)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `"total_count":1`)
}

func TestListServesOnlyApprovedToAnonymous(t *testing.T) {
	repo := &stubSubRepo{subs: map[string]*models.Submission{
		"s1": {ID: "s1", UserID: "u1", Content: "clean bar", Category: "Funny", Status: models.StatusApproved},
		"s2": {ID: "s2", UserID: "u1", Content: "rejected bar", Category: "Funny", Status: models.StatusBlocked},
		"s3": {ID: "s3", UserID: "u1", Content: "iffy bar", Category: "Funny", Status: models.StatusPendingReview},
	}}
	router := buildSubmissionRouter(repo, &stubEvaluator{}, models.RoleUser)

	// An explicit status filter from an anonymous caller must not leak
	// unpublished material either.
	for _, target := range []string{"/submissions", "/submissions?status=blocked"} {
		req, _ := http.NewRequest(http.MethodGet, target, nil)
		resp := performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
		require.Contains(t, resp.Body.String(), `"s1"`)
		require.NotContains(t, resp.Body.String(), "blocked")
		require.NotContains(t, resp.Body.String(), "pending_review")
	}
}

func TestListAuthorSeesOwnPendingSubmissions(t *testing.T) {
	repo := &stubSubRepo{subs: map[string]*models.Submission{
		"s1": {ID: "s1", UserID: "u1", Content: "clean bar", Category: "Funny", Status: models.StatusApproved},
		"s3": {ID: "s3", UserID: "u1", Content: "iffy bar", Category: "Funny", Status: models.StatusPendingReview},
		"s4": {ID: "s4", UserID: "u2", Content: "someone else", Category: "Funny", Status: models.StatusPendingReview},
	}}
	router := buildSubmissionRouter(repo, &stubEvaluator{}, models.RoleUser)

	req, _ := http.NewRequest(http.MethodGet, "/submissions/user/u1?status=pending_review", nil)
	resp := performRequest(router, req)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `"s3"`)
	require.NotContains(t, resp.Body.String(), `"s1"`)
	require.NotContains(t, resp.Body.String(), `"s4"`)

	// The same filter on another author's feed falls back to approved only.
	req, _ = http.NewRequest(http.MethodGet, "/submissions/user/u2?status=pending_review", nil)
	resp = performRequest(router, req)
	require.Equal(t, http.StatusOK, resp.Code)
	require.NotContains(t, resp.Body.String(), `"s4"`)
}
