package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/wI2L/jsondiff"
	"go.uber.org/zap"

	"github.com/noah-isme/railway-hrm-api/internal/dto"
	"github.com/noah-isme/railway-hrm-api/internal/models"
	"github.com/noah-isme/railway-hrm-api/internal/repository"
	appErrors "github.com/noah-isme/railway-hrm-api/pkg/errors"
	"github.com/noah-isme/railway-hrm-api/pkg/logger"
)

// Outcomes recorded for processed requests.
const (
	OutcomeApproved  = "approved"
	OutcomeRejected  = "rejected"
	OutcomeCancelled = "cancelled"
)

type profileRequestStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, request *models.ProfileRequest) error
	FindByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.ProfileRequest, error)
	LockByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.ProfileRequest, error)
	FindPendingByEmployee(ctx context.Context, exec sqlx.ExtContext, employeeID int64) (*models.ProfileRequest, error)
	List(ctx context.Context, filter models.ProfileRequestFilter) ([]models.ProfileRequest, int, error)
	MarkProcessed(ctx context.Context, exec sqlx.ExtContext, params repository.MarkProcessedParams) error
	DeletePending(ctx context.Context, exec sqlx.ExtContext, id int64) error
}

type scopeResolver interface {
	ScopeFor(ctx context.Context, principal models.Principal) (*Scope, error)
}

// ProfileRequestService runs the employee change request workflow: create,
// approve or reject by an admin, and cancel by the requester.
type ProfileRequestService struct {
	requests  profileRequestStore
	employees employeeStore
	tx        transactor
	applier   *ProfileChangeApplier
	documents *PendingDocumentStore
	access    scopeResolver
	audit     auditLogger
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// ProfileRequestDeps groups the collaborators of ProfileRequestService.
type ProfileRequestDeps struct {
	Requests  profileRequestStore
	Employees employeeStore
	Tx        transactor
	Applier   *ProfileChangeApplier
	Documents *PendingDocumentStore
	Access    scopeResolver
	Audit     auditLogger
	Metrics   *MetricsService
	Validator *validator.Validate
	Logger    *zap.Logger
}

// NewProfileRequestService constructs the workflow service.
func NewProfileRequestService(deps ProfileRequestDeps) *ProfileRequestService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	return &ProfileRequestService{
		requests:  deps.Requests,
		employees: deps.Employees,
		tx:        deps.Tx,
		applier:   deps.Applier,
		documents: deps.Documents,
		access:    deps.Access,
		audit:     deps.Audit,
		metrics:   deps.Metrics,
		validator: deps.Validator,
		logger:    deps.Logger,
		now:       time.Now,
	}
}

// Create stores a pending request for the principal's own employee record.
func (s *ProfileRequestService) Create(ctx context.Context, principal models.Principal, req dto.CreateProfileRequest) (*models.ProfileRequest, error) {
	if principal.EmployeeID == nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "a linked employee record is required")
	}
	employeeID := *principal.EmployeeID
	req.RequestType = strings.TrimSpace(req.RequestType)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile request payload")
	}
	if req.ProposedChanges.IsEmpty() {
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "proposed_changes must not be empty"), "field", "proposed_changes")
	}
	if existing, err := s.requests.FindPendingByEmployee(ctx, nil, employeeID); err == nil {
		return nil, duplicatePending(existing.ID)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending requests")
	}

	profile, err := s.employees.LoadProfile(ctx, nil, employeeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee profile")
	}
	changes := req.ProposedChanges
	if err := ValidateChanges(&changes, profile.Employee); err != nil {
		return nil, err
	}
	if err := ValidateFileReferences(&changes, profile); err != nil {
		return nil, err
	}
	for _, p := range changes.StagedPaths() {
		if !InStaging(employeeID, p) {
			return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "document is not staged for this employee"), "path", p)
		}
	}
	if err := s.enrichDocuments(ctx, profile, &changes); err != nil {
		return nil, err
	}

	request := &models.ProfileRequest{
		EmployeeID:      employeeID,
		RequestType:     req.RequestType,
		Details:         models.BlankToNil(req.Details),
		ProposedChanges: models.ChangesColumn{ProposedChanges: changes},
	}
	if err := s.requests.Create(ctx, nil, request); err != nil {
		if errors.Is(err, repository.ErrDuplicatePending) {
			if existing, findErr := s.requests.FindPendingByEmployee(ctx, nil, employeeID); findErr == nil {
				return nil, duplicatePending(existing.ID)
			}
			return nil, appErrors.Clone(appErrors.ErrConflict, repository.ErrDuplicatePending.Error())
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create profile request")
	}
	s.metrics.RecordProfileRequestCreated()
	emitAudit(ctx, s.audit, s.logger, "profile-request-service", &models.AuditLog{
		UserID:     int64Ptr(principal.UserID),
		Action:     models.AuditActionProfileRequestCreate,
		Resource:   "profile_request",
		ResourceID: int64Ptr(request.ID),
		NewValues:  auditJSON(request.ProposedChanges),
	})
	return request, nil
}

func duplicatePending(existingID int64) error {
	err := appErrors.Clone(appErrors.ErrConflict, "employee already has a pending profile request")
	return appErrors.WithDetails(err, "existing_request_id", existingID)
}

// enrichDocuments records the current value of every document target so a
// reviewer can compare it with the staged file.
func (s *ProfileRequestService) enrichDocuments(ctx context.Context, profile *models.EmployeeProfile, changes *models.ProposedChanges) error {
	created := make([]string, 0, len(changes.Academics))
	for _, a := range changes.Academics {
		if name := strings.TrimSpace(a.ExamName); name != "" {
			created = append(created, name)
		}
	}
	for i := range changes.PendingDocuments {
		doc := &changes.PendingDocuments[i]
		switch doc.Target.Kind() {
		case models.TargetField:
			doc.CurrentFilePath = profile.Employee.FileField(doc.Target.Field())
		case models.TargetAcademicID:
			record := findAcademic(profile, doc.Target.ID())
			if record == nil {
				return appErrors.WithDetails(appErrors.Clone(appErrors.ErrNotFound, "academic record not found"), "academic_id", doc.Target.ID())
			}
			name := record.ExamName
			doc.CurrentFilePath = record.CertificatePath
			doc.AcademicExamName = &name
		case models.TargetAcademicIndex:
			if idx := doc.Target.Index(); idx < len(created) {
				name := created[idx]
				doc.AcademicExamName = &name
			}
		case models.TargetFamilyMember:
			member := findMember(profile, doc.Target.ID())
			if member == nil {
				return appErrors.WithDetails(appErrors.Clone(appErrors.ErrNotFound, "family member not found"), "family_member_id", doc.Target.ID())
			}
			name := member.Name
			doc.CurrentFilePath = member.BirthCertificatePath
			doc.FamilyMemberName = &name
		}
	}
	return nil
}

func findAcademic(profile *models.EmployeeProfile, id int64) *models.AcademicRecord {
	for i := range profile.Academics {
		if profile.Academics[i].ID == id {
			return &profile.Academics[i]
		}
	}
	return nil
}

func findMember(profile *models.EmployeeProfile, id int64) *models.FamilyMember {
	for i := range profile.Family {
		if profile.Family[i].ID == id {
			return &profile.Family[i]
		}
	}
	return nil
}

// Get returns the request with a snapshot of the employee's current data.
func (s *ProfileRequestService) Get(ctx context.Context, principal models.Principal, id int64) (*models.ProfileRequestView, error) {
	request, err := s.requests.FindByID(ctx, nil, id)
	if err != nil {
		return nil, s.mapLoadError(err)
	}
	scope, err := s.access.ScopeFor(ctx, principal)
	if err != nil {
		return nil, err
	}
	if !scope.CanAccessRequest(request) {
		return nil, appErrors.ErrForbidden
	}
	view := &models.ProfileRequestView{ProfileRequest: request}
	profile, err := s.employees.LoadProfile(ctx, nil, request.EmployeeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return view, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee profile")
	}
	view.CurrentData = s.currentData(profile)
	view.ChangesDiff = s.personalInfoDiff(profile.Employee, request.ProposedChanges.PersonalInfo)
	return view, nil
}

func (s *ProfileRequestService) currentData(profile *models.EmployeeProfile) *models.CurrentEmployeeData {
	files := make(map[string]*string, len(models.EmployeeFileFields))
	for _, field := range models.EmployeeFileFields {
		files[field] = s.documents.URL(profile.Employee.FileField(field))
	}
	return &models.CurrentEmployeeData{
		PersonalInfo: profile.Employee.PersonalInfo(),
		Files:        files,
		Family: models.CurrentFamily{
			Father:   profile.Member(models.RelationFather),
			Mother:   profile.Member(models.RelationMother),
			Spouses:  profile.Members(models.RelationSpouse),
			Children: profile.Members(models.RelationChild),
		},
		Addresses: models.CurrentAddresses{
			Present:   profile.Address(models.AddressPresent),
			Permanent: profile.Address(models.AddressPermanent),
		},
		Academics: profile.Academics,
	}
}

// personalInfoDiff renders the proposed personal info as a JSON patch against the current values.
func (s *ProfileRequestService) personalInfoDiff(employee *models.Employee, proposed models.PersonalInfoChanges) []byte {
	changes := proposed.Allowed()
	if len(changes) == 0 {
		return nil
	}
	current := employee.PersonalInfo()
	target := make(map[string]*string, len(current))
	for k, v := range current {
		target[k] = v
	}
	for k, v := range changes {
		target[k] = v
	}
	patch, err := jsondiff.Compare(current, target)
	if err != nil {
		s.logger.Warn("failed to diff personal info", zap.Int64("employee_id", employee.ID), zap.Error(err))
		return nil
	}
	if len(patch) == 0 {
		return nil
	}
	return auditJSON(patch)
}

// List returns the requests visible to principal.
func (s *ProfileRequestService) List(ctx context.Context, principal models.Principal, query dto.ProfileRequestQuery) ([]models.ProfileRequest, *models.Pagination, error) {
	scope, err := s.access.ScopeFor(ctx, principal)
	if err != nil {
		return nil, nil, err
	}
	filter := s.filterFromQuery(query)
	switch principal.Role {
	case models.RoleSuperAdmin:
		if query.OfficeID != nil {
			filter.OfficeIDs = []int64{*query.OfficeID}
		}
	case models.RoleOfficeAdmin:
		if query.OfficeID != nil {
			if !scope.CanManageOffice(*query.OfficeID) {
				return nil, nil, appErrors.ErrForbidden
			}
			filter.OfficeIDs = []int64{*query.OfficeID}
		} else {
			filter.OfficeIDs = scope.ManagedOfficeIDs()
			filter.OrEmployeeID = principal.EmployeeID
		}
		if len(filter.OfficeIDs) == 0 && filter.OrEmployeeID == nil {
			return emptyPage(filter)
		}
	default:
		if principal.EmployeeID == nil {
			return emptyPage(filter)
		}
		filter.EmployeeID = principal.EmployeeID
	}
	return s.list(ctx, filter)
}

// Pending returns the pending requests principal may process.
func (s *ProfileRequestService) Pending(ctx context.Context, principal models.Principal, query dto.ProfileRequestQuery) ([]models.ProfileRequest, *models.Pagination, error) {
	if !principal.IsSuperAdmin() && !principal.IsOfficeAdmin() {
		return nil, nil, appErrors.ErrForbidden
	}
	scope, err := s.access.ScopeFor(ctx, principal)
	if err != nil {
		return nil, nil, err
	}
	filter := s.filterFromQuery(query)
	status := models.ProfileRequestPending
	filter.Status = &status
	filter.ExcludeEmployeeID = principal.EmployeeID
	if !scope.Unrestricted() {
		filter.OfficeIDs = scope.ManagedOfficeIDs()
		if len(filter.OfficeIDs) == 0 {
			return emptyPage(filter)
		}
	}
	return s.list(ctx, filter)
}

// Mine returns the principal's own requests.
func (s *ProfileRequestService) Mine(ctx context.Context, principal models.Principal, query dto.ProfileRequestQuery) ([]models.ProfileRequest, *models.Pagination, error) {
	if principal.EmployeeID == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "a linked employee record is required")
	}
	filter := s.filterFromQuery(query)
	filter.EmployeeID = principal.EmployeeID
	return s.list(ctx, filter)
}

func (s *ProfileRequestService) filterFromQuery(query dto.ProfileRequestQuery) models.ProfileRequestFilter {
	page, size := query.Page, query.PageSize
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return models.ProfileRequestFilter{
		Status:   query.Status,
		Search:   strings.TrimSpace(query.Search),
		From:     query.From,
		To:       query.To,
		Page:     page,
		PageSize: size,
	}
}

func (s *ProfileRequestService) list(ctx context.Context, filter models.ProfileRequestFilter) ([]models.ProfileRequest, *models.Pagination, error) {
	requests, total, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list profile requests")
	}
	if requests == nil {
		requests = []models.ProfileRequest{}
	}
	return requests, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

func emptyPage(filter models.ProfileRequestFilter) ([]models.ProfileRequest, *models.Pagination, error) {
	return []models.ProfileRequest{}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize}, nil
}

// Process approves or rejects a pending request. Approval applies the
// proposal, or the reviewer's approved_changes, in the same transaction that
// marks the request processed.
func (s *ProfileRequestService) Process(ctx context.Context, principal models.Principal, id int64, req dto.ProcessProfileRequest) (*models.ProfileRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}
	approve := *req.IsApproved
	scope, err := s.access.ScopeFor(ctx, principal)
	if err != nil {
		return nil, err
	}

	var (
		request *models.ProfileRequest
		result  *ApplyResult
	)
	reviewedAt := s.now().UTC()
	err = s.tx.Do(ctx, func(ctx context.Context, uow *repository.UnitOfWork) error {
		locked, err := s.requests.LockByID(ctx, uow.Exec(), id)
		if err != nil {
			return s.mapLoadError(err)
		}
		if !scope.CanProcessRequest(locked) {
			return appErrors.ErrForbidden
		}
		if !locked.IsPending() {
			return appErrors.WithDetails(appErrors.Clone(appErrors.ErrConflict, "profile request has already been processed"), "status", locked.Status)
		}
		if approve {
			changes := &locked.ProposedChanges.ProposedChanges
			if req.ApprovedChanges != nil {
				changes = req.ApprovedChanges
			}
			result, err = s.applier.Apply(ctx, uow, locked.EmployeeID, changes)
			if err != nil {
				return err
			}
		}
		note := models.BlankToNil(req.AdminNote)
		if err := s.requests.MarkProcessed(ctx, uow.Exec(), repository.MarkProcessedParams{
			ID:         locked.ID,
			IsApproved: approve,
			AdminNote:  note,
			ReviewedBy: principal.UserID,
			ReviewedAt: reviewedAt,
		}); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrConflict, "profile request has already been processed")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark profile request processed")
		}
		locked.Status = models.ProfileRequestProcessed
		locked.IsApproved = &approve
		locked.AdminNote = note
		locked.ReviewedBy = int64Ptr(principal.UserID)
		locked.ReviewedAt = &reviewedAt
		locked.UpdatedAt = reviewedAt
		request = locked
		return nil
	})
	if err != nil {
		if approve {
			logger.For(ctx, s.logger).Warn("profile request approval rolled back", zap.Int64("request_id", id), zap.Error(err))
		}
		return nil, err
	}

	proposed := request.ProposedChanges.StagedPaths()
	outcome, action := OutcomeRejected, models.AuditActionProfileRequestReject
	leftovers := proposed
	if approve {
		outcome, action = OutcomeApproved, models.AuditActionProfileRequestApprove
		leftovers = append([]string(nil), result.Unapplied...)
		if req.ApprovedChanges != nil {
			leftovers = append(leftovers, unreferenced(proposed, req.ApprovedChanges.StagedPaths())...)
		}
	}
	s.documents.DiscardAll(context.WithoutCancel(ctx), stagedOnly(request.EmployeeID, leftovers))
	s.metrics.RecordProfileRequestOutcome(outcome)
	emitAudit(ctx, s.audit, s.logger, "profile-request-service", &models.AuditLog{
		UserID:     int64Ptr(principal.UserID),
		Action:     action,
		Resource:   "profile_request",
		ResourceID: int64Ptr(request.ID),
		NewValues:  auditJSON(map[string]interface{}{"is_approved": approve, "admin_note": request.AdminNote, "result": result}),
	})
	return request, nil
}

// Cancel deletes the principal's own pending request and its staged files.
func (s *ProfileRequestService) Cancel(ctx context.Context, principal models.Principal, id int64) error {
	var request *models.ProfileRequest
	err := s.tx.Do(ctx, func(ctx context.Context, uow *repository.UnitOfWork) error {
		locked, err := s.requests.LockByID(ctx, uow.Exec(), id)
		if err != nil {
			return s.mapLoadError(err)
		}
		if !principal.IsEmployee(locked.EmployeeID) {
			return appErrors.Clone(appErrors.ErrForbidden, "only the requesting employee can cancel a request")
		}
		if !locked.IsPending() {
			return appErrors.WithDetails(appErrors.Clone(appErrors.ErrConflict, "only pending requests can be cancelled"), "status", locked.Status)
		}
		if err := s.requests.DeletePending(ctx, uow.Exec(), locked.ID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrConflict, "only pending requests can be cancelled")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel profile request")
		}
		request = locked
		return nil
	})
	if err != nil {
		return err
	}
	s.documents.DiscardAll(context.WithoutCancel(ctx), stagedOnly(request.EmployeeID, request.ProposedChanges.StagedPaths()))
	s.metrics.RecordProfileRequestOutcome(OutcomeCancelled)
	emitAudit(ctx, s.audit, s.logger, "profile-request-service", &models.AuditLog{
		UserID:     int64Ptr(principal.UserID),
		Action:     models.AuditActionProfileRequestCancel,
		Resource:   "profile_request",
		ResourceID: int64Ptr(request.ID),
		OldValues:  auditJSON(request.ProposedChanges),
	})
	return nil
}

func (s *ProfileRequestService) mapLoadError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "profile request not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile request")
}

// unreferenced returns the paths of all that are missing from kept.
func unreferenced(all, kept []string) []string {
	keep := make(map[string]struct{}, len(kept))
	for _, p := range kept {
		keep[p] = struct{}{}
	}
	out := make([]string, 0)
	for _, p := range all {
		if _, ok := keep[p]; !ok {
			out = append(out, p)
		}
	}
	return out
}

// stagedOnly drops handles outside the employee's staging area so a crafted
// payload can never discard a permanent file.
func stagedOnly(employeeID int64, handles []string) []string {
	out := make([]string, 0, len(handles))
	seen := make(map[string]struct{}, len(handles))
	for _, h := range handles {
		if _, ok := seen[h]; ok || !InStaging(employeeID, h) {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}
