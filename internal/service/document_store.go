package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/noah-isme/railway-hrm-api/internal/models"
	"github.com/noah-isme/railway-hrm-api/internal/repository"
	appErrors "github.com/noah-isme/railway-hrm-api/pkg/errors"
	"github.com/noah-isme/railway-hrm-api/pkg/jobs"
)

// JobDiscardDocuments carries staged handles ([]string) to delete.
const JobDiscardDocuments = "documents.discard"

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// FileStore is the storage capability used for employee documents.
type FileStore interface {
	Store(ctx context.Context, data []byte, namespace, ext string) (string, error)
	Delete(ctx context.Context, handle string) (bool, error)
	Exists(ctx context.Context, handle string) (bool, error)
	Move(ctx context.Context, handle, namespace string) (string, error)
	URL(handle string) (string, bool)
}

// DocumentPolicy limits accepted uploads.
type DocumentPolicy struct {
	MaxBytes     int64
	AllowedMIMEs []string
}

// PendingDocumentStore stages uploads per employee and moves them into their
// permanent namespace once a change is approved.
type PendingDocumentStore struct {
	files   FileStore
	policy  DocumentPolicy
	metrics *MetricsService
	cleanup jobEnqueuer
	logger  *zap.Logger
	now     func() time.Time
}

// NewPendingDocumentStore constructs the store.
func NewPendingDocumentStore(files FileStore, policy DocumentPolicy, metrics *MetricsService, logger *zap.Logger) *PendingDocumentStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.MaxBytes <= 0 {
		policy.MaxBytes = 5 << 20
	}
	return &PendingDocumentStore{files: files, policy: policy, metrics: metrics, logger: logger, now: time.Now}
}

// StagingPrefix is the root of an employee's staging area.
func StagingPrefix(employeeID int64) string {
	return fmt.Sprintf("pending/employee_%d", employeeID)
}

// StagingNamespace is where uploads for target are staged.
func StagingNamespace(employeeID int64, target models.DocumentTarget) string {
	return StagingPrefix(employeeID) + "/" + target.Folder()
}

// InStaging reports whether handle lies inside the employee's staging area.
func InStaging(employeeID int64, handle string) bool {
	if handle == "" || strings.Contains(handle, "..") {
		return false
	}
	return strings.HasPrefix(path.Clean(handle), StagingPrefix(employeeID)+"/")
}

// upload is a validated file ready for storage.
type upload struct {
	data []byte
	ext  string
	kind models.ResourceKind
}

func (s *PendingDocumentStore) inspect(data []byte) (*upload, error) {
	if len(data) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is empty")
	}
	if int64(len(data)) > s.policy.MaxBytes {
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "file is too large"), "max_bytes", s.policy.MaxBytes)
	}
	mime := mimetype.Detect(data)
	if len(s.policy.AllowedMIMEs) > 0 {
		allowed := false
		for _, m := range s.policy.AllowedMIMEs {
			if mime.Is(m) {
				allowed = true
				break
			}
		}
		if !allowed {
			return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "file type is not allowed"), "mime_type", mime.String())
		}
	}
	kind := models.ResourceRaw
	if strings.HasPrefix(mime.String(), "image/") {
		kind = models.ResourceImage
	}
	return &upload{data: data, ext: mime.Extension(), kind: kind}, nil
}

// Stage writes data into the employee's staging area for target.
func (s *PendingDocumentStore) Stage(ctx context.Context, employeeID int64, data []byte, target models.DocumentTarget) (*models.PendingDocument, error) {
	if !target.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "document target is required")
	}
	file, err := s.inspect(data)
	if err != nil {
		return nil, err
	}
	handle, err := s.files.Store(ctx, file.data, StagingNamespace(employeeID, target), file.ext)
	if err != nil {
		s.logger.Error("failed to stage document", zap.Int64("employee_id", employeeID), zap.String("target", target.String()), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, appErrors.ErrStorage.Message)
	}
	s.metrics.RecordDocumentOperation(DocumentOpStage)
	uploadedAt := s.now().UTC()
	return &models.PendingDocument{
		Path:         handle,
		ResourceKind: file.kind,
		Target:       target,
		UploadedAt:   &uploadedAt,
	}, nil
}

// StorePermanent writes data straight into target's permanent namespace as
// part of uow. The new file is removed if uow rolls back; previous is removed
// once uow commits.
func (s *PendingDocumentStore) StorePermanent(ctx context.Context, uow *repository.UnitOfWork, data []byte, target models.DocumentTarget, previous *string) (string, error) {
	if !target.Valid() {
		return "", appErrors.Clone(appErrors.ErrValidation, "document target is required")
	}
	file, err := s.inspect(data)
	if err != nil {
		return "", err
	}
	handle, err := s.files.Store(ctx, file.data, target.PermanentNamespace(), file.ext)
	if err != nil {
		s.logger.Error("failed to store document", zap.String("target", target.String()), zap.Error(err))
		return "", appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, appErrors.ErrStorage.Message)
	}
	uow.OnRollback(func(ctx context.Context) {
		if _, err := s.files.Delete(ctx, handle); err != nil {
			s.logger.Error("failed to remove document after rollback", zap.String("handle", handle), zap.Error(err))
		}
	})
	s.replaceOnCommit(uow, previous, handle)
	s.metrics.RecordDocumentOperation(DocumentOpDirect)
	return handle, nil
}

// Promote moves a staged document into its permanent namespace as part of
// uow and returns the final handle. It reports false when the staged file is
// gone or lies outside the employee's staging area; such documents are skipped.
// A rollback of uow moves the file back to its staged handle, and previous is
// deleted only after uow commits.
func (s *PendingDocumentStore) Promote(ctx context.Context, uow *repository.UnitOfWork, employeeID int64, doc models.PendingDocument, previous *string) (string, bool, error) {
	if !InStaging(employeeID, doc.Path) {
		s.logger.Warn("skipping document outside staging area", zap.Int64("employee_id", employeeID), zap.String("path", doc.Path))
		return "", false, nil
	}
	final, err := s.files.Move(ctx, doc.Path, doc.Target.PermanentNamespace())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("pending document not found", zap.Int64("employee_id", employeeID), zap.String("path", doc.Path))
			s.metrics.RecordDocumentOperation(DocumentOpMissing)
			return "", false, nil
		}
		s.logger.Error("failed to promote document", zap.Int64("employee_id", employeeID), zap.String("path", doc.Path), zap.Error(err))
		return "", false, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, appErrors.ErrStorage.Message)
	}
	staged := path.Dir(doc.Path)
	uow.OnRollback(func(ctx context.Context) {
		if _, err := s.files.Move(ctx, final, staged); err != nil {
			s.logger.Error("failed to restore staged document", zap.String("handle", final), zap.String("staging", staged), zap.Error(err))
		}
	})
	s.replaceOnCommit(uow, previous, final)
	s.metrics.RecordDocumentOperation(DocumentOpPromote)
	return final, true, nil
}

func (s *PendingDocumentStore) replaceOnCommit(uow *repository.UnitOfWork, previous *string, current string) {
	if previous == nil || *previous == "" || *previous == current {
		return
	}
	old := *previous
	uow.OnCommit(func(ctx context.Context) {
		if _, err := s.files.Delete(ctx, old); err != nil {
			s.logger.Warn("failed to delete replaced document", zap.String("handle", old), zap.Error(err))
		}
	})
}

// DeleteOnCommit removes handles once uow commits. Used for files whose
// owning records are replaced in the same transaction.
func (s *PendingDocumentStore) DeleteOnCommit(uow *repository.UnitOfWork, handles []string) {
	if len(handles) == 0 {
		return
	}
	orphaned := append([]string(nil), handles...)
	uow.OnCommit(func(ctx context.Context) {
		for _, handle := range orphaned {
			if _, err := s.files.Delete(ctx, handle); err != nil {
				s.logger.Warn("failed to delete orphaned document", zap.String("handle", handle), zap.Error(err))
			}
		}
	})
}

// Discard deletes a staged file. Missing files are ignored.
func (s *PendingDocumentStore) Discard(ctx context.Context, handle string) error {
	if handle == "" {
		return nil
	}
	deleted, err := s.files.Delete(ctx, handle)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, appErrors.ErrStorage.Message)
	}
	if deleted {
		s.metrics.RecordDocumentOperation(DocumentOpDiscard)
	}
	return nil
}

// UseCleanupQueue hands DiscardAll deletions to q so failed deletes are retried.
func (s *PendingDocumentStore) UseCleanupQueue(q jobEnqueuer) {
	s.cleanup = q
}

// DiscardAll deletes every handle, logging failures instead of returning them.
func (s *PendingDocumentStore) DiscardAll(ctx context.Context, handles []string) {
	if len(handles) == 0 {
		return
	}
	if s.cleanup != nil {
		err := s.cleanup.Enqueue(jobs.Job{Type: JobDiscardDocuments, Payload: append([]string(nil), handles...)})
		if err == nil {
			return
		}
		s.logger.Warn("cleanup queue unavailable, discarding inline", zap.Int("documents", len(handles)), zap.Error(err))
	}
	for _, handle := range handles {
		if err := s.Discard(ctx, handle); err != nil {
			s.logger.Error("failed to discard staged document", zap.String("path", handle), zap.Error(err))
		}
	}
}

// HandleDiscardJob deletes the handles carried by a JobDiscardDocuments job.
func (s *PendingDocumentStore) HandleDiscardJob(ctx context.Context, job jobs.Job) error {
	handles, ok := job.Payload.([]string)
	if !ok {
		return fmt.Errorf("unexpected %s payload %T", JobDiscardDocuments, job.Payload)
	}
	var errs []error
	for _, handle := range handles {
		if err := s.Discard(ctx, handle); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// URL returns a download link for handle, or nil.
func (s *PendingDocumentStore) URL(handle *string) *string {
	if handle == nil || *handle == "" {
		return nil
	}
	link, ok := s.files.URL(*handle)
	if !ok {
		return nil
	}
	return &link
}
