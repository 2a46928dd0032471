package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orphanbars/orphanbars-api/internal/models"
	"github.com/orphanbars/orphanbars-api/internal/repository"
)

type mockCertSubRepo struct {
	mu      sync.Mutex
	subs    map[string]*models.Submission
	counter int64
}

func (m *mockCertSubRepo) GetByID(ctx context.Context, id string) (*models.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *sub
	return &copied, nil
}

func (m *mockCertSubRepo) LockWithSequence(ctx context.Context, id string, build func(seq int64) repository.CertificateFields) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[id]
	if !ok {
		return 0, sql.ErrNoRows
	}
	if sub.IsLocked {
		return 0, repository.ErrLockConflict
	}
	m.counter++
	fields := build(m.counter)
	sub.IsLocked = true
	sub.LockedAt = &fields.LockedAt
	sub.CertificateID = &fields.CertificateID
	sub.ContentFingerprint = &fields.Fingerprint
	return m.counter, nil
}

type mockCertUserRepo struct {
	users     map[string]*models.User
	auditLogs []*models.AuditLog
}

func (m *mockCertUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (m *mockCertUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func lockableSubmission(id string) *models.Submission {
	return &models.Submission{
		ID:             id,
		UserID:         "u1",
		Content:        "my cat walks sideways",
		Category:       "Funny",
		Status:         models.StatusApproved,
		IsOriginalWork: true,
		CreatedAt:      time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
	}
}

func newCertService(subs *mockCertSubRepo, users *mockCertUserRepo) *CertificateService {
	return NewCertificateService(subs, users, nil, nil, nil, nil, CertificateConfig{Prefix: "orphanbars"})
}

func TestLockIssuesSequentialCertificate(t *testing.T) {
	subs := &mockCertSubRepo{subs: map[string]*models.Submission{"s1": lockableSubmission("s1")}, counter: 41}
	users := &mockCertUserRepo{}
	svc := newCertService(subs, users)

	locked, err := svc.Lock(context.Background(), "u1", "s1")
	require.NoError(t, err)
	require.NotNil(t, locked.CertificateID)
	assert.Equal(t, "orphanbars-#00042", *locked.CertificateID)
	assert.True(t, locked.IsLocked)
	require.NotNil(t, locked.ContentFingerprint)
	want := Fingerprint(locked.Content, locked.CreatedAt, locked.UserID, *locked.CertificateID)
	assert.Equal(t, want, *locked.ContentFingerprint)
	assert.Equal(t, int64(42), subs.counter)
	require.Len(t, users.auditLogs, 1)
	assert.Equal(t, models.AuditActionSubmissionLock, users.auditLogs[0].Action)
}

func TestLockPreconditions(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*models.Submission)
		caller string
	}{
		{"not author", func(s *models.Submission) {}, "someone-else"},
		{"already locked", func(s *models.Submission) { s.IsLocked = true }, "u1"},
		{"not original work", func(s *models.Submission) { s.IsOriginalWork = false }, "u1"},
		{"not approved", func(s *models.Submission) { s.Status = models.StatusFlagged }, "u1"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sub := lockableSubmission("s1")
			tc.mutate(sub)
			subs := &mockCertSubRepo{subs: map[string]*models.Submission{"s1": sub}}
			svc := newCertService(subs, &mockCertUserRepo{})

			_, err := svc.Lock(context.Background(), tc.caller, "s1")
			assert.Error(t, err)
			// a refused lock never consumes a sequence number
			assert.Equal(t, int64(0), subs.counter)
		})
	}
}

func TestConcurrentLocksGetDistinctNumbers(t *testing.T) {
	const n = 20
	subs := &mockCertSubRepo{subs: make(map[string]*models.Submission, n)}
	for i := 0; i < n; i++ {
		subs.subs[fmt.Sprintf("s%d", i)] = lockableSubmission(fmt.Sprintf("s%d", i))
	}
	svc := newCertService(subs, &mockCertUserRepo{})

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Lock(context.Background(), "u1", fmt.Sprintf("s%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for _, sub := range subs.subs {
		require.NotNil(t, sub.CertificateID)
		assert.False(t, seen[*sub.CertificateID], "duplicate certificate %s", *sub.CertificateID)
		seen[*sub.CertificateID] = true
	}
	assert.Equal(t, int64(n), subs.counter)
}

func TestFingerprintDeterministic(t *testing.T) {
	createdAt := time.Date(2026, 3, 14, 15, 9, 26, 535_000_000, time.UTC)
	a := Fingerprint("my cat walks sideways", createdAt, "u1", "orphanbars-#00042")
	b := Fingerprint("my cat walks sideways", createdAt, "u1", "orphanbars-#00042")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	// every component participates
	assert.NotEqual(t, a, Fingerprint("my cat walks forwards", createdAt, "u1", "orphanbars-#00042"))
	assert.NotEqual(t, a, Fingerprint("my cat walks sideways", createdAt.Add(time.Millisecond), "u1", "orphanbars-#00042"))
	assert.NotEqual(t, a, Fingerprint("my cat walks sideways", createdAt, "u2", "orphanbars-#00042"))
	assert.NotEqual(t, a, Fingerprint("my cat walks sideways", createdAt, "u1", "orphanbars-#00043"))
}

func TestVerifyDetectsTampering(t *testing.T) {
	subs := &mockCertSubRepo{subs: map[string]*models.Submission{"s1": lockableSubmission("s1")}}
	svc := newCertService(subs, &mockCertUserRepo{})

	_, err := svc.Lock(context.Background(), "u1", "s1")
	require.NoError(t, err)

	ok, cert, err := svc.Verify(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEmpty(t, cert.CertificateID)

	subs.subs["s1"].Content = "tampered content"
	ok, _, err = svc.Verify(context.Background(), "s1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCertificateRequiresLock(t *testing.T) {
	subs := &mockCertSubRepo{subs: map[string]*models.Submission{"s1": lockableSubmission("s1")}}
	svc := newCertService(subs, &mockCertUserRepo{})

	_, err := svc.Certificate(context.Background(), "s1")
	assert.Error(t, err)
}
