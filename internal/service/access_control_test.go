package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/railway-hrm-api/internal/models"
)

type hierarchyStub struct {
	hierarchy *OfficeHierarchy
	err       error
	calls     int
}

func (h *hierarchyStub) Hierarchy(context.Context) (*OfficeHierarchy, error) {
	h.calls++
	return h.hierarchy, h.err
}

func newRailwayAccess(adminOffices ...int64) *AccessControl {
	return NewAccessControl(&hierarchyStub{hierarchy: NewOfficeHierarchy(railwayOffices(), adminOffices)})
}

func scopeFor(t *testing.T, access *AccessControl, p models.Principal) *Scope {
	t.Helper()
	scope, err := access.ScopeFor(context.Background(), p)
	require.NoError(t, err)
	return scope
}

func TestScopeManagedOfficeIDsByRole(t *testing.T) {
	access := newRailwayAccess(1, 2)

	super := scopeFor(t, access, models.Principal{UserID: 1, Role: models.RoleSuperAdmin})
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 10}, super.ManagedOfficeIDs())
	assert.True(t, super.Unrestricted())

	admin := scopeFor(t, access, models.Principal{UserID: 2, Role: models.RoleOfficeAdmin, OfficeID: ptr64(1)})
	assert.Equal(t, []int64{1, 4, 5}, admin.ManagedOfficeIDs())

	user := scopeFor(t, access, models.Principal{UserID: 3, Role: models.RoleVerifiedUser, OfficeID: ptr64(1), EmployeeID: ptr64(50)})
	assert.Empty(t, user.ManagedOfficeIDs())

	orphan := scopeFor(t, access, models.Principal{UserID: 4, Role: models.RoleOfficeAdmin})
	assert.Empty(t, orphan.ManagedOfficeIDs())
}

func TestScopeRejectsUnknownRole(t *testing.T) {
	_, err := newRailwayAccess().ScopeFor(context.Background(), models.Principal{Role: "guest"})
	require.Error(t, err)
}

func TestScopePropagatesHierarchyErrors(t *testing.T) {
	access := NewAccessControl(&hierarchyStub{err: errors.New("db down")})
	_, err := access.ScopeFor(context.Background(), models.Principal{Role: models.RoleOfficeAdmin, OfficeID: ptr64(1)})
	require.Error(t, err)
}

func TestDivisionAdminCannotManageAdministeredStation(t *testing.T) {
	access := newRailwayAccess(1, 2)
	divisionAdmin := scopeFor(t, access, models.Principal{UserID: 7, Role: models.RoleOfficeAdmin, OfficeID: ptr64(1)})

	stationEmployee := &models.Employee{ID: 100, CurrentOfficeID: 2}
	yardEmployee := &models.Employee{ID: 101, CurrentOfficeID: 3}
	workshopEmployee := &models.Employee{ID: 102, CurrentOfficeID: 5}

	assert.False(t, divisionAdmin.CanManageOffice(2))
	assert.False(t, divisionAdmin.CanManageOffice(3))
	assert.False(t, divisionAdmin.CanManageEmployee(stationEmployee))
	assert.False(t, divisionAdmin.CanViewEmployee(yardEmployee))
	assert.True(t, divisionAdmin.CanManageOffice(1))
	assert.True(t, divisionAdmin.CanManageEmployee(workshopEmployee))
}

func TestVerifiedUserManagesOnlyThemselves(t *testing.T) {
	access := newRailwayAccess()
	user := scopeFor(t, access, models.Principal{UserID: 9, Role: models.RoleVerifiedUser, OfficeID: ptr64(2), EmployeeID: ptr64(100)})

	assert.True(t, user.CanManageEmployee(&models.Employee{ID: 100, CurrentOfficeID: 5}))
	assert.False(t, user.CanManageEmployee(&models.Employee{ID: 101, CurrentOfficeID: 2}))
	assert.False(t, user.CanManageOffice(2))
	assert.True(t, user.CanViewEmployee(&models.Employee{ID: 100}))
	assert.False(t, user.CanManageEmployee(nil))
}

func TestRequestPredicates(t *testing.T) {
	access := newRailwayAccess(1, 2)
	request := &models.ProfileRequest{ID: 1, EmployeeID: 100, EmployeeOfficeID: 4}

	super := scopeFor(t, access, models.Principal{UserID: 1, Role: models.RoleSuperAdmin})
	divisionAdmin := scopeFor(t, access, models.Principal{UserID: 2, Role: models.RoleOfficeAdmin, OfficeID: ptr64(1)})
	stationAdmin := scopeFor(t, access, models.Principal{UserID: 3, Role: models.RoleOfficeAdmin, OfficeID: ptr64(2)})
	requester := scopeFor(t, access, models.Principal{UserID: 4, Role: models.RoleVerifiedUser, EmployeeID: ptr64(100)})
	selfAdmin := scopeFor(t, access, models.Principal{UserID: 5, Role: models.RoleOfficeAdmin, OfficeID: ptr64(1), EmployeeID: ptr64(100)})
	selfSuper := scopeFor(t, access, models.Principal{UserID: 6, Role: models.RoleSuperAdmin, EmployeeID: ptr64(100)})
	stranger := scopeFor(t, access, models.Principal{UserID: 7, Role: models.RoleVerifiedUser, EmployeeID: ptr64(101)})

	assert.True(t, super.CanAccessRequest(request))
	assert.True(t, super.CanProcessRequest(request))

	assert.True(t, divisionAdmin.CanAccessRequest(request))
	assert.True(t, divisionAdmin.CanProcessRequest(request))

	assert.False(t, stationAdmin.CanAccessRequest(request))
	assert.False(t, stationAdmin.CanProcessRequest(request))

	assert.True(t, requester.CanAccessRequest(request))
	assert.False(t, requester.CanProcessRequest(request))

	assert.True(t, selfAdmin.CanAccessRequest(request))
	assert.False(t, selfAdmin.CanProcessRequest(request))
	assert.False(t, selfSuper.CanProcessRequest(request))

	assert.False(t, stranger.CanAccessRequest(request))
	assert.False(t, stranger.CanProcessRequest(request))
}
