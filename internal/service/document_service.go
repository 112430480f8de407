package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/railway-hrm-api/internal/dto"
	"github.com/noah-isme/railway-hrm-api/internal/models"
	"github.com/noah-isme/railway-hrm-api/internal/repository"
	appErrors "github.com/noah-isme/railway-hrm-api/pkg/errors"
	"github.com/noah-isme/railway-hrm-api/pkg/logger"
)

// Document kinds accepted in upload URLs.
const (
	DocumentKindPhoto       = "photo"
	DocumentKindNID         = "nid"
	DocumentKindBirth       = "birth"
	DocumentKindCertificate = "certificate"
	DocumentKindChild       = "child"
)

type pendingRequestReader interface {
	FindPendingByEmployee(ctx context.Context, exec sqlx.ExtContext, employeeID int64) (*models.ProfileRequest, error)
}

type requestCreator interface {
	Create(ctx context.Context, principal models.Principal, req dto.CreateProfileRequest) (*models.ProfileRequest, error)
}

// DocumentUploadResult reports where an upload ended up. Staged uploads carry
// Pending and, when submitted, the created Request; direct uploads carry Path.
type DocumentUploadResult struct {
	Staged  bool                    `json:"staged"`
	Pending *models.PendingDocument `json:"pending_document,omitempty"`
	Request *models.ProfileRequest  `json:"request,omitempty"`
	Path    string                  `json:"path,omitempty"`
	URL     *string                 `json:"url,omitempty"`
}

// DocumentService handles employee document uploads. Employees stage files for
// review; admins managing the employee write them directly.
type DocumentService struct {
	employees employeeStore
	requests  pendingRequestReader
	creator   requestCreator
	tx        transactor
	documents *PendingDocumentStore
	access    scopeResolver
	audit     auditLogger
	logger    *zap.Logger
}

// NewDocumentService constructs the service.
func NewDocumentService(employees employeeStore, requests pendingRequestReader, creator requestCreator, tx transactor, documents *PendingDocumentStore, access scopeResolver, audit auditLogger, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{
		employees: employees,
		requests:  requests,
		creator:   creator,
		tx:        tx,
		documents: documents,
		access:    access,
		audit:     audit,
		logger:    logger,
	}
}

// ResolveTarget maps an upload kind plus its identifiers to a DocumentTarget.
func ResolveTarget(req dto.UploadDocumentRequest) (models.DocumentTarget, error) {
	var (
		target models.DocumentTarget
		err    error
	)
	switch strings.ToLower(strings.TrimSpace(req.Kind)) {
	case DocumentKindPhoto:
		target, err = models.FieldTarget(models.FieldProfilePicture)
	case DocumentKindNID:
		target, err = models.FieldTarget(models.FieldNIDFile)
	case DocumentKindBirth:
		target, err = models.FieldTarget(models.FieldBirthFile)
	case DocumentKindCertificate:
		switch {
		case req.AcademicID != nil && req.AcademicIndex != nil:
			return target, validationError("academic_id and academic_index are mutually exclusive", "academic_id")
		case req.AcademicID != nil:
			target, err = models.AcademicIDTarget(*req.AcademicID)
		case req.AcademicIndex != nil:
			target, err = models.AcademicIndexTarget(*req.AcademicIndex)
		default:
			return target, validationError("academic_id or academic_index is required", "academic_id")
		}
	case DocumentKindChild:
		if req.FamilyMemberID == nil {
			return target, validationError("family_member_id is required", "family_member_id")
		}
		target, err = models.FamilyMemberTarget(*req.FamilyMemberID)
	default:
		return target, validationError("unknown document kind", "kind")
	}
	if err != nil {
		return target, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, err.Error()), "field", "kind")
	}
	return target, nil
}

// Upload stores one document for employeeID.
func (s *DocumentService) Upload(ctx context.Context, principal models.Principal, employeeID int64, req dto.UploadDocumentRequest) (*DocumentUploadResult, error) {
	target, err := ResolveTarget(req)
	if err != nil {
		return nil, err
	}
	employee, err := s.employees.FindByID(ctx, nil, employeeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}
	if principal.IsEmployee(employeeID) {
		return s.stage(ctx, principal, employeeID, target, req)
	}
	if principal.IsVerifiedUser() {
		return nil, appErrors.ErrForbidden
	}
	scope, err := s.access.ScopeFor(ctx, principal)
	if err != nil {
		return nil, err
	}
	if !scope.CanManageEmployee(employee) {
		return nil, appErrors.ErrForbidden
	}
	if target.Kind() == models.TargetAcademicIndex {
		return nil, validationError("academic_index is only valid for staged uploads", "academic_index")
	}
	return s.storeDirect(ctx, principal, employee, target, req.Data)
}

func (s *DocumentService) stage(ctx context.Context, principal models.Principal, employeeID int64, target models.DocumentTarget, req dto.UploadDocumentRequest) (*DocumentUploadResult, error) {
	if req.Submit {
		if existing, err := s.requests.FindPendingByEmployee(ctx, nil, employeeID); err == nil {
			return nil, duplicatePending(existing.ID)
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending requests")
		}
	}
	doc, err := s.documents.Stage(ctx, employeeID, req.Data, target)
	if err != nil {
		return nil, err
	}
	result := &DocumentUploadResult{Staged: true, Pending: doc, Path: doc.Path}
	if !req.Submit {
		return result, nil
	}
	request, err := s.creator.Create(ctx, principal, dto.CreateProfileRequest{
		RequestType:     models.DocumentUpdateRequestType,
		ProposedChanges: models.ProposedChanges{PendingDocuments: []models.PendingDocument{*doc}},
	})
	if err != nil {
		if discardErr := s.documents.Discard(context.WithoutCancel(ctx), doc.Path); discardErr != nil {
			logger.For(ctx, s.logger).Error("failed to discard staged document", zap.String("path", doc.Path), zap.Error(discardErr))
		}
		return nil, err
	}
	result.Request = request
	return result, nil
}

func (s *DocumentService) storeDirect(ctx context.Context, principal models.Principal, employee *models.Employee, target models.DocumentTarget, data []byte) (*DocumentUploadResult, error) {
	var (
		final    string
		previous *string
	)
	err := s.tx.Do(ctx, func(ctx context.Context, uow *repository.UnitOfWork) error {
		exec := uow.Exec()
		locked, err := s.employees.LockByID(ctx, exec, employee.ID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "employee not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock employee")
		}
		switch target.Kind() {
		case models.TargetField:
			previous = locked.FileField(target.Field())
			if final, err = s.documents.StorePermanent(ctx, uow, data, target, previous); err != nil {
				return err
			}
			if err := s.employees.UpdateFileField(ctx, exec, locked.ID, target.Field(), &final); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update employee document")
			}
		case models.TargetAcademicID:
			record, err := s.employees.FindAcademic(ctx, exec, locked.ID, target.ID())
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return appErrors.WithDetails(appErrors.Clone(appErrors.ErrNotFound, "academic record not found"), "academic_id", target.ID())
				}
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic record")
			}
			previous = record.CertificatePath
			if final, err = s.documents.StorePermanent(ctx, uow, data, target, previous); err != nil {
				return err
			}
			if err := s.employees.SetAcademicCertificate(ctx, exec, record.ID, &final); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update academic certificate")
			}
		case models.TargetFamilyMember:
			member, err := s.employees.FindFamilyMember(ctx, exec, locked.ID, target.ID())
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return appErrors.WithDetails(appErrors.Clone(appErrors.ErrNotFound, "family member not found"), "family_member_id", target.ID())
				}
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load family member")
			}
			previous = member.BirthCertificatePath
			if final, err = s.documents.StorePermanent(ctx, uow, data, target, previous); err != nil {
				return err
			}
			if err := s.employees.SetBirthCertificate(ctx, exec, member.ID, &final); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update birth certificate")
			}
		default:
			return validationError("unsupported document target", "kind")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	emitAudit(ctx, s.audit, s.logger, "document-service", &models.AuditLog{
		UserID:     int64Ptr(principal.UserID),
		Action:     models.AuditActionEmployeeDocumentUpdate,
		Resource:   "employee",
		ResourceID: int64Ptr(employee.ID),
		OldValues:  auditJSON(map[string]interface{}{"target": target.String(), "path": previous}),
		NewValues:  auditJSON(map[string]interface{}{"target": target.String(), "path": final}),
	})
	return &DocumentUploadResult{Path: final, URL: s.documents.URL(&final)}, nil
}

// DiscardPending deletes a staged file that no pending request references.
// The employee or an admin managing them may do this.
func (s *DocumentService) DiscardPending(ctx context.Context, principal models.Principal, employeeID int64, handle string) error {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return validationError("path is required", "path")
	}
	if !principal.IsEmployee(employeeID) {
		employee, err := s.employees.FindByID(ctx, nil, employeeID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "employee not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
		}
		scope, err := s.access.ScopeFor(ctx, principal)
		if err != nil {
			return err
		}
		if principal.IsVerifiedUser() || !scope.CanManageEmployee(employee) {
			return appErrors.ErrForbidden
		}
	}
	if !InStaging(employeeID, handle) {
		return appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "document is not staged for this employee"), "path", handle)
	}
	pending, err := s.requests.FindPendingByEmployee(ctx, nil, employeeID)
	switch {
	case err == nil:
		for _, p := range pending.ProposedChanges.StagedPaths() {
			if p == handle {
				return appErrors.WithDetails(appErrors.Clone(appErrors.ErrConflict, "document is referenced by a pending request"), "existing_request_id", pending.ID)
			}
		}
	case !errors.Is(err, sql.ErrNoRows):
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending requests")
	}
	return s.documents.Discard(ctx, handle)
}
