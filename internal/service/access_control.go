package service

import (
	"context"
	"sort"

	"github.com/noah-isme/railway-hrm-api/internal/models"
	appErrors "github.com/noah-isme/railway-hrm-api/pkg/errors"
)

type hierarchySource interface {
	Hierarchy(ctx context.Context) (*OfficeHierarchy, error)
}

// AccessControl resolves what a principal may see and change.
type AccessControl struct {
	offices hierarchySource
}

// NewAccessControl constructs the access control service.
func NewAccessControl(offices hierarchySource) *AccessControl {
	return &AccessControl{offices: offices}
}

// Scope is the authorization view of one principal, resolved once per
// operation because admin coverage changes whenever admins are (de)activated.
type Scope struct {
	Principal models.Principal
	all       bool
	managed   map[int64]struct{}
}

// ScopeFor loads the managed office set for principal.
func (a *AccessControl) ScopeFor(ctx context.Context, principal models.Principal) (*Scope, error) {
	scope := &Scope{Principal: principal, managed: map[int64]struct{}{}}
	switch principal.Role {
	case models.RoleSuperAdmin:
		scope.all = true
		hierarchy, err := a.offices.Hierarchy(ctx)
		if err != nil {
			return nil, err
		}
		for _, id := range hierarchy.IDs() {
			scope.managed[id] = struct{}{}
		}
	case models.RoleOfficeAdmin:
		if principal.OfficeID == nil {
			return scope, nil
		}
		hierarchy, err := a.offices.Hierarchy(ctx)
		if err != nil {
			return nil, err
		}
		for _, id := range hierarchy.ManagedOfficeIDs(*principal.OfficeID) {
			scope.managed[id] = struct{}{}
		}
	case models.RoleVerifiedUser:
	default:
		return nil, appErrors.ErrForbidden
	}
	return scope, nil
}

// ManagedOfficeIDs returns the managed set in ascending order.
func (s *Scope) ManagedOfficeIDs() []int64 {
	ids := make([]int64, 0, len(s.managed))
	for id := range s.managed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Unrestricted reports whether the principal sees every office.
func (s *Scope) Unrestricted() bool { return s.all }

// CanManageOffice reports whether officeID lies in the managed set.
func (s *Scope) CanManageOffice(officeID int64) bool {
	if s.all {
		return true
	}
	_, ok := s.managed[officeID]
	return ok
}

// CanManageEmployee: admins by office, verified users only themselves.
func (s *Scope) CanManageEmployee(employee *models.Employee) bool {
	if employee == nil {
		return false
	}
	switch s.Principal.Role {
	case models.RoleSuperAdmin:
		return true
	case models.RoleOfficeAdmin:
		return s.CanManageOffice(employee.CurrentOfficeID)
	case models.RoleVerifiedUser:
		return s.Principal.IsEmployee(employee.ID)
	}
	return false
}

// CanViewEmployee currently matches CanManageEmployee for every role.
func (s *Scope) CanViewEmployee(employee *models.Employee) bool {
	return s.CanManageEmployee(employee)
}

// CanAccessRequest allows the requester, super admins, and admins managing
// the requester's office.
func (s *Scope) CanAccessRequest(request *models.ProfileRequest) bool {
	if request == nil {
		return false
	}
	if s.Principal.IsSuperAdmin() || s.Principal.IsEmployee(request.EmployeeID) {
		return true
	}
	return s.Principal.IsOfficeAdmin() && s.CanManageOffice(request.EmployeeOfficeID)
}

// CanProcessRequest allows admins other than the requester.
func (s *Scope) CanProcessRequest(request *models.ProfileRequest) bool {
	if request == nil || s.Principal.IsVerifiedUser() {
		return false
	}
	if s.Principal.IsEmployee(request.EmployeeID) {
		return false
	}
	if s.Principal.IsSuperAdmin() {
		return true
	}
	return s.Principal.IsOfficeAdmin() && s.CanManageOffice(request.EmployeeOfficeID)
}
