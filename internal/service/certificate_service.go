package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orphanbars/orphanbars-api/internal/models"
	"github.com/orphanbars/orphanbars-api/internal/repository"
	appErrors "github.com/orphanbars/orphanbars-api/pkg/errors"
	"github.com/orphanbars/orphanbars-api/pkg/export"
	"github.com/orphanbars/orphanbars-api/pkg/jobs"
	"github.com/orphanbars/orphanbars-api/pkg/storage"
)

// fingerprintTimeLayout renders the lock timestamp with millisecond
// precision in UTC, matching the canonical certificate format.
const fingerprintTimeLayout = "2006-01-02T15:04:05.000Z"

type certificateSubmissionRepository interface {
	GetByID(ctx context.Context, id string) (*models.Submission, error)
	LockWithSequence(ctx context.Context, id string, build func(seq int64) repository.CertificateFields) (int64, error)
}

type certificateUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// CertificateConfig governs issuance and export.
type CertificateConfig struct {
	Prefix string
}

// ExportRequestResponse acknowledges an asynchronous PDF export.
type ExportRequestResponse struct {
	ExportID    string    `json:"export_id"`
	DownloadURL string    `json:"download_url"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// CertificateService issues authorship certificates. Locking a submission is
// irreversible: it freezes the content, stamps a sequential certificate
// identifier, and records a fingerprint binding content, author, timestamp
// and identifier together.
type CertificateService struct {
	subs     certificateSubmissionRepository
	users    certificateUserRepository
	exporter *export.CertificatePDFExporter
	store    *storage.LocalStorage
	signer   *storage.SignedURLSigner
	queue    *jobs.Queue
	metrics  *MetricsService
	logger   *zap.Logger
	config   CertificateConfig
}

// SetMetrics attaches the optional metrics sink.
func (s *CertificateService) SetMetrics(metrics *MetricsService) {
	s.metrics = metrics
}

// NewCertificateService constructs a CertificateService. The export queue,
// storage and signer may be nil when PDF export is disabled.
func NewCertificateService(
	subs certificateSubmissionRepository,
	users certificateUserRepository,
	exporter *export.CertificatePDFExporter,
	store *storage.LocalStorage,
	signer *storage.SignedURLSigner,
	logger *zap.Logger,
	config CertificateConfig,
) *CertificateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Prefix == "" {
		config.Prefix = "orphanbars"
	}
	return &CertificateService{
		subs:     subs,
		users:    users,
		exporter: exporter,
		store:    store,
		signer:   signer,
		logger:   logger,
		config:   config,
	}
}

// AttachQueue wires the background export queue. Called once at startup.
func (s *CertificateService) AttachQueue(queue *jobs.Queue) {
	s.queue = queue
}

// CertificateID renders the canonical identifier for a sequence number.
func (s *CertificateService) CertificateID(seq int64) string {
	return fmt.Sprintf("%s-#%05d", s.config.Prefix, seq)
}

// Fingerprint derives the content fingerprint bound to a certificate. The
// timestamp is the submission's creation time, so renumbering can reproduce
// fingerprints without knowing when each lock happened.
func Fingerprint(content string, createdAt time.Time, userID, certificateID string) string {
	payload := fmt.Sprintf("%s|%s|%s|%s", content, createdAt.UTC().Format(fingerprintTimeLayout), userID, certificateID)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// Lock freezes a submission and issues its certificate. Only the author may
// lock, the submission must claim original work, must be approved, and must
// not already hold a certificate. A failed lock never consumes a sequence
// number.
func (s *CertificateService) Lock(ctx context.Context, userID, submissionID string) (*models.Submission, error) {
	sub, err := s.subs.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}

	if sub.UserID != userID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the author can lock a submission")
	}
	if sub.IsLocked {
		return nil, appErrors.Clone(appErrors.ErrAlreadyLocked, "submission is already locked")
	}
	if !sub.IsOriginalWork {
		return nil, appErrors.Clone(appErrors.ErrNotOriginalWork, "submission does not claim original work")
	}
	if sub.Status != models.StatusApproved {
		return nil, appErrors.Clone(appErrors.ErrNotPublishable, "only approved submissions can be locked")
	}

	lockedAt := time.Now().UTC()
	var fields repository.CertificateFields
	_, err = s.subs.LockWithSequence(ctx, submissionID, func(seq int64) repository.CertificateFields {
		certID := s.CertificateID(seq)
		fields = repository.CertificateFields{
			CertificateID: certID,
			Fingerprint:   Fingerprint(sub.Content, sub.CreatedAt, sub.UserID, certID),
			LockedAt:      lockedAt,
		}
		return fields
	})
	if err != nil {
		if errors.Is(err, repository.ErrLockConflict) {
			return nil, appErrors.Clone(appErrors.ErrAlreadyLocked, "submission is already locked")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock submission")
	}

	sub.IsLocked = true
	sub.LockedAt = &fields.LockedAt
	sub.CertificateID = &fields.CertificateID
	sub.ContentFingerprint = &fields.Fingerprint
	s.metrics.RecordCertificateIssued()

	if err := s.users.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     models.AuditActionSubmissionLock,
		Resource:   "submission",
		ResourceID: &submissionID,
		NewValues:  []byte(fmt.Sprintf(`{"certificate_id":%q}`, fields.CertificateID)),
	}); err != nil {
		s.logger.Warn("failed to record lock audit log", zap.Error(err))
	}

	return sub, nil
}

// Certificate returns the certificate sub-record of a locked submission.
func (s *CertificateService) Certificate(ctx context.Context, submissionID string) (*models.Certificate, error) {
	sub, err := s.subs.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	cert, ok := sub.Locked()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotLocked, "submission has no certificate")
	}
	return cert, nil
}

// Verify recomputes the fingerprint of a locked submission and reports
// whether the stored value still matches.
func (s *CertificateService) Verify(ctx context.Context, submissionID string) (bool, *models.Certificate, error) {
	sub, err := s.subs.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return false, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	cert, ok := sub.Locked()
	if !ok {
		return false, nil, appErrors.Clone(appErrors.ErrNotLocked, "submission has no certificate")
	}
	expected := Fingerprint(sub.Content, sub.CreatedAt, sub.UserID, cert.CertificateID)
	return expected == cert.Fingerprint, cert, nil
}

// exportPayload is the queue payload for asynchronous PDF rendering.
type exportPayload struct {
	ExportID     string
	SubmissionID string
}

// RequestExport queues an asynchronous certificate PDF render and returns a
// signed download URL. The file appears under the export directory once a
// worker finishes; downloads before that return not found.
func (s *CertificateService) RequestExport(ctx context.Context, userID, submissionID string) (*ExportRequestResponse, error) {
	if s.queue == nil || s.store == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "certificate export is not configured")
	}

	sub, err := s.subs.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	if sub.UserID != userID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the author can export a certificate")
	}
	if _, ok := sub.Locked(); !ok {
		return nil, appErrors.Clone(appErrors.ErrNotLocked, "submission has no certificate")
	}

	exportID := uuid.NewString()
	relPath := exportID + ".pdf"
	token, expiresAt, err := s.signer.Generate(exportID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}

	if err := s.queue.Enqueue(jobs.Job{
		ID:      exportID,
		Type:    "certificate_pdf",
		Payload: exportPayload{ExportID: exportID, SubmissionID: submissionID},
	}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue export")
	}

	return &ExportRequestResponse{
		ExportID:    exportID,
		DownloadURL: "/api/v1/certificates/download?token=" + token,
		ExpiresAt:   expiresAt,
	}, nil
}

// HandleExportJob renders and stores a certificate PDF. Wired as the queue
// handler at startup.
func (s *CertificateService) HandleExportJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(exportPayload)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}

	sub, err := s.subs.GetByID(ctx, payload.SubmissionID)
	if err != nil {
		return fmt.Errorf("load submission for export: %w", err)
	}
	cert, ok := sub.Locked()
	if !ok {
		return fmt.Errorf("submission %s is not locked", sub.ID)
	}

	author, err := s.users.FindByID(ctx, sub.UserID)
	if err != nil {
		return fmt.Errorf("load author for export: %w", err)
	}

	pdf, err := s.exporter.Render(export.CertificateDocument{
		CertificateID: cert.CertificateID,
		Fingerprint:   cert.Fingerprint,
		Author:        author.Username,
		Content:       sub.Content,
		Category:      sub.Category,
		CreatedAt:     sub.CreatedAt,
		LockedAt:      cert.LockedAt,
	})
	if err != nil {
		return fmt.Errorf("render certificate pdf: %w", err)
	}

	if _, err := s.store.Save(payload.ExportID+".pdf", pdf); err != nil {
		return fmt.Errorf("store certificate pdf: %w", err)
	}

	s.logger.Info("certificate pdf exported",
		zap.String("export_id", payload.ExportID),
		zap.String("submission_id", sub.ID),
		zap.String("certificate_id", cert.CertificateID))
	return nil
}

// ResolveDownload validates a signed token and returns the stored file path.
func (s *CertificateService) ResolveDownload(token string) (string, error) {
	if s.signer == nil || s.store == nil {
		return "", appErrors.Clone(appErrors.ErrInternal, "certificate export is not configured")
	}
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}
	if !s.store.Exists(relPath) {
		return "", appErrors.Clone(appErrors.ErrNotFound, "export is not ready yet")
	}
	return s.store.Path(relPath), nil
}
