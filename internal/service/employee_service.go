package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/railway-hrm-api/internal/dto"
	"github.com/noah-isme/railway-hrm-api/internal/models"
	"github.com/noah-isme/railway-hrm-api/internal/repository"
	appErrors "github.com/noah-isme/railway-hrm-api/pkg/errors"
)

// EmployeeService exposes scoped reads of the employee aggregate and the
// direct admin edit.
type EmployeeService struct {
	employees employeeStore
	tx        transactor
	applier   *ProfileChangeApplier
	documents *PendingDocumentStore
	access    scopeResolver
	audit     auditLogger
	logger    *zap.Logger
}

// NewEmployeeService constructs the service.
func NewEmployeeService(employees employeeStore, tx transactor, applier *ProfileChangeApplier, documents *PendingDocumentStore, access scopeResolver, audit auditLogger, logger *zap.Logger) *EmployeeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmployeeService{employees: employees, tx: tx, applier: applier, documents: documents, access: access, audit: audit, logger: logger}
}

// Get returns the employee profile when principal may view it.
func (s *EmployeeService) Get(ctx context.Context, principal models.Principal, id int64) (*models.EmployeeView, error) {
	profile, err := s.employees.LoadProfile(ctx, nil, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}
	scope, err := s.access.ScopeFor(ctx, principal)
	if err != nil {
		return nil, err
	}
	if !scope.CanViewEmployee(profile.Employee) {
		return nil, appErrors.ErrForbidden
	}
	profile.Files = make(map[string]string)
	for _, field := range models.EmployeeFileFields {
		if link := s.documents.URL(profile.Employee.FileField(field)); link != nil {
			profile.Files[field] = *link
		}
	}
	limit := profile.Employee.MaxActiveSpouses()
	active := profile.ActiveSpouseCount()
	return &models.EmployeeView{
		EmployeeProfile:   profile,
		MaxSpouses:        limit,
		ActiveSpouseCount: active,
		CanAddSpouse:      active < limit,
	}, nil
}

// List returns the employees principal may view.
func (s *EmployeeService) List(ctx context.Context, principal models.Principal, query dto.EmployeeQuery) ([]models.Employee, *models.Pagination, error) {
	scope, err := s.access.ScopeFor(ctx, principal)
	if err != nil {
		return nil, nil, err
	}
	filter := repository.EmployeeFilter{Status: query.Status, Search: query.Search, Page: query.Page, PageSize: query.PageSize}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	empty := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize}

	switch {
	case scope.Unrestricted():
		if query.OfficeID != nil {
			filter.OfficeIDs = []int64{*query.OfficeID}
		}
	case principal.IsOfficeAdmin():
		if query.OfficeID != nil {
			if !scope.CanManageOffice(*query.OfficeID) {
				return nil, nil, appErrors.ErrForbidden
			}
			filter.OfficeIDs = []int64{*query.OfficeID}
		} else {
			filter.OfficeIDs = scope.ManagedOfficeIDs()
			filter.EmployeeID = principal.EmployeeID
		}
		if len(filter.OfficeIDs) == 0 && filter.EmployeeID == nil {
			return []models.Employee{}, empty, nil
		}
	default:
		if principal.EmployeeID == nil {
			return []models.Employee{}, empty, nil
		}
		filter.EmployeeID = principal.EmployeeID
	}

	employees, total, err := s.employees.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list employees")
	}
	if employees == nil {
		employees = []models.Employee{}
	}
	return employees, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// UpdateProfile applies changes directly, bypassing the request workflow.
// Only admins managing the employee may do this, never on their own record,
// and staged documents are not accepted.
func (s *EmployeeService) UpdateProfile(ctx context.Context, principal models.Principal, id int64, changes models.ProposedChanges) (*models.EmployeeView, error) {
	if principal.IsVerifiedUser() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "employees must submit a profile request")
	}
	if principal.IsEmployee(id) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admins cannot edit their own record directly")
	}
	if changes.IsEmpty() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no changes supplied")
	}
	if len(changes.StagedPaths()) > 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "documents must be uploaded through the document endpoint")
	}
	employee, err := s.employees.FindByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}
	scope, err := s.access.ScopeFor(ctx, principal)
	if err != nil {
		return nil, err
	}
	if !scope.CanManageEmployee(employee) {
		return nil, appErrors.ErrForbidden
	}

	before, err := s.employees.LoadProfile(ctx, nil, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}
	if err := s.tx.Do(ctx, func(ctx context.Context, uow *repository.UnitOfWork) error {
		_, err := s.applier.Apply(ctx, uow, id, &changes)
		return err
	}); err != nil {
		return nil, err
	}
	emitAudit(ctx, s.audit, s.logger, "employee-service", &models.AuditLog{
		UserID:     int64Ptr(principal.UserID),
		Action:     models.AuditActionEmployeeProfileUpdate,
		Resource:   "employee",
		ResourceID: int64Ptr(id),
		OldValues:  auditJSON(before),
		NewValues:  auditJSON(changes),
	})
	return s.Get(ctx, principal, id)
}
