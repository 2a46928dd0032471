package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/orphanbars/orphanbars-api/internal/models"
	appErrors "github.com/orphanbars/orphanbars-api/pkg/errors"
)

type repairSubmissionRepository interface {
	ListLocked(ctx context.Context) ([]models.Submission, error)
	UpdateCertificate(ctx context.Context, id, certificateID, fingerprint string) error
}

type repairSequenceRepository interface {
	Get(ctx context.Context) (*models.SequenceCounter, error)
	Set(ctx context.Context, value int64) error
}

// SequenceAuditReport describes the health of the certificate sequence.
type SequenceAuditReport struct {
	CounterValue int64    `json:"counter_value"`
	MaxIssued    int64    `json:"max_issued"`
	LockedCount  int      `json:"locked_count"`
	Gaps         []int64  `json:"gaps,omitempty"`
	Duplicates   []string `json:"duplicates,omitempty"`
	Malformed    []string `json:"malformed,omitempty"`
	Corrected    bool     `json:"corrected"`
}

// RenumberChange records one certificate rewrite.
type RenumberChange struct {
	SubmissionID     string `json:"submission_id"`
	OldCertificateID string `json:"old_certificate_id"`
	NewCertificateID string `json:"new_certificate_id"`
}

// RenumberReport summarises a renumbering run.
type RenumberReport struct {
	Total   int              `json:"total"`
	Changed int              `json:"changed"`
	DryRun  bool             `json:"dry_run"`
	Changes []RenumberChange `json:"changes,omitempty"`
}

// SequenceRepairService repairs certificate numbering offline. It must only
// run while the API is stopped: it rewrites certificate identifiers and the
// shared counter without taking the locks the live path relies on.
type SequenceRepairService struct {
	subs    repairSubmissionRepository
	seq     repairSequenceRepository
	auditor adminAuditor
	logger  *zap.Logger
	prefix  string
}

// NewSequenceRepairService constructs a SequenceRepairService.
func NewSequenceRepairService(subs repairSubmissionRepository, seq repairSequenceRepository, auditor adminAuditor, logger *zap.Logger, prefix string) *SequenceRepairService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefix == "" {
		prefix = "orphanbars"
	}
	return &SequenceRepairService{subs: subs, seq: seq, auditor: auditor, logger: logger, prefix: prefix}
}

func (s *SequenceRepairService) certificateID(n int64) string {
	return fmt.Sprintf("%s-#%05d", s.prefix, n)
}

// parseNumber extracts the numeric part of a certificate identifier.
func parseNumber(certificateID string) (int64, bool) {
	idx := strings.LastIndex(certificateID, "#")
	if idx < 0 {
		return 0, false
	}
	n, err := strconv.ParseInt(certificateID[idx+1:], 10, 64)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// Audit compares the counter against the issued certificates and reports
// gaps and duplicate numbers. When fix is true the counter is corrected to
// the highest issued number, in either direction: a counter behind the
// issued numbers would hand out duplicates, a counter ahead of them wastes
// the range it skipped.
func (s *SequenceRepairService) Audit(ctx context.Context, fix bool) (*SequenceAuditReport, error) {
	counter, err := s.seq.Get(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sequence counter")
	}

	locked, err := s.subs.ListLocked(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list locked submissions")
	}

	report := &SequenceAuditReport{
		CounterValue: counter.CurrentValue,
		LockedCount:  len(locked),
	}

	seen := make(map[int64]string, len(locked))
	var maxIssued int64
	for i := range locked {
		sub := locked[i]
		if sub.CertificateID == nil {
			continue
		}
		n, ok := parseNumber(*sub.CertificateID)
		if !ok {
			report.Malformed = append(report.Malformed, *sub.CertificateID)
			continue
		}
		if prev, dup := seen[n]; dup {
			report.Duplicates = append(report.Duplicates, fmt.Sprintf("%s (also %s)", *sub.CertificateID, prev))
		}
		seen[n] = sub.ID
		if n > maxIssued {
			maxIssued = n
		}
	}
	report.MaxIssued = maxIssued

	for n := int64(1); n <= maxIssued; n++ {
		if _, ok := seen[n]; !ok {
			report.Gaps = append(report.Gaps, n)
		}
	}

	if fix && counter.CurrentValue != maxIssued {
		if err := s.seq.Set(ctx, maxIssued); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to correct sequence counter")
		}
		report.Corrected = true
		s.recordAudit(ctx, models.AuditActionSequenceAudit, fmt.Sprintf(`{"counter":%d,"max_issued":%d}`, counter.CurrentValue, maxIssued))
		s.logger.Info("sequence counter corrected",
			zap.Int64("was", counter.CurrentValue),
			zap.Int64("now", maxIssued))
	}

	return report, nil
}

// Renumber reassigns certificate numbers densely from 1 in lock issuance
// order (created_at ascending, id as tiebreak) and resets the counter to the
// new maximum. Fingerprints are recomputed because the certificate
// identifier participates in them; content, author and lock timestamps are
// untouched. Running it twice in a row changes nothing the second time.
func (s *SequenceRepairService) Renumber(ctx context.Context, dryRun bool) (*RenumberReport, error) {
	locked, err := s.subs.ListLocked(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list locked submissions")
	}

	report := &RenumberReport{Total: len(locked), DryRun: dryRun}

	for i := range locked {
		sub := locked[i]
		if sub.CertificateID == nil || sub.LockedAt == nil {
			continue
		}
		want := s.certificateID(int64(i + 1))
		wantFingerprint := Fingerprint(sub.Content, sub.CreatedAt, sub.UserID, want)
		if *sub.CertificateID == want && sub.ContentFingerprint != nil && *sub.ContentFingerprint == wantFingerprint {
			continue
		}

		report.Changes = append(report.Changes, RenumberChange{
			SubmissionID:     sub.ID,
			OldCertificateID: *sub.CertificateID,
			NewCertificateID: want,
		})
		report.Changed++

		if dryRun {
			continue
		}
		if err := s.subs.UpdateCertificate(ctx, sub.ID, want, wantFingerprint); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rewrite certificate")
		}
	}

	if !dryRun {
		if err := s.seq.Set(ctx, int64(len(locked))); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset sequence counter")
		}
		if report.Changed > 0 {
			s.recordAudit(ctx, models.AuditActionCertificateRenumber, fmt.Sprintf(`{"changed":%d,"total":%d}`, report.Changed, report.Total))
		}
	}

	return report, nil
}

func (s *SequenceRepairService) recordAudit(ctx context.Context, action, details string) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.CreateAuditLog(ctx, &models.AuditLog{
		Action:    action,
		Resource:  "certificate_sequence",
		NewValues: []byte(details),
	}); err != nil {
		s.logger.Warn("failed to record repair audit log", zap.Error(err))
	}
}
