package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/railway-hrm-api/internal/dto"
	"github.com/noah-isme/railway-hrm-api/internal/models"
	appErrors "github.com/noah-isme/railway-hrm-api/pkg/errors"
)

func approve(note string) dto.ProcessProfileRequest {
	return dto.ProcessProfileRequest{IsApproved: boolPtr(true), AdminNote: &note}
}

func reject(note string) dto.ProcessProfileRequest {
	return dto.ProcessProfileRequest{IsApproved: boolPtr(false), AdminNote: &note}
}

func (f *workflowFixture) submit(t *testing.T, employeeID int64, changes models.ProposedChanges) *models.ProfileRequest {
	t.Helper()
	request, err := f.svc.Create(context.Background(), employeePrincipal(employeeID+100, employeeID, 0), dto.CreateProfileRequest{
		RequestType:     "Profile Update",
		ProposedChanges: changes,
	})
	require.NoError(t, err)
	return request
}

func TestCreateRequiresLinkedEmployee(t *testing.T) {
	f := newWorkflowFixture(t)
	_, err := f.svc.Create(context.Background(), superAdmin(), dto.CreateProfileRequest{
		RequestType:     "Profile Update",
		ProposedChanges: models.ProposedChanges{PersonalInfo: models.PersonalInfoChanges{"phone": strPtr("01711000000")}},
	})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestCreateRejectsCertificateOfAnotherEmployee(t *testing.T) {
	f := newWorkflowFixture(t)
	foreign, err := f.files.Store(context.Background(), pdfBytes, "documents/nid", "pdf")
	require.NoError(t, err)
	e := f.employees.employees[8]
	e.NIDFilePath = &foreign
	f.employees.employees[8] = e

	_, err = f.svc.Create(context.Background(), employeePrincipal(107, 7, 2), dto.CreateProfileRequest{
		RequestType:     "Profile Update",
		ProposedChanges: models.ProposedChanges{Academics: []models.AcademicPayload{{ExamName: "SSC / Dakhil", CertificatePath: &foreign}}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Empty(t, f.requests.requests)
	assert.True(t, f.exists(t, foreign))
}

func TestCreateValidatesPayload(t *testing.T) {
	f := newWorkflowFixture(t)
	p := employeePrincipal(107, 7, 2)

	_, err := f.svc.Create(context.Background(), p, dto.CreateProfileRequest{RequestType: "Profile Update"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.Create(context.Background(), p, dto.CreateProfileRequest{
		RequestType:     "  ",
		ProposedChanges: models.ProposedChanges{PersonalInfo: models.PersonalInfoChanges{"phone": strPtr("017")}},
	})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	target, _ := models.FieldTarget(models.FieldProfilePicture)
	_, err = f.svc.Create(context.Background(), p, dto.CreateProfileRequest{
		RequestType: "Photo",
		ProposedChanges: models.ProposedChanges{PendingDocuments: []models.PendingDocument{
			{Path: "pending/employee_8/photos/someone-else.png", Target: target},
		}},
	})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Empty(t, f.requests.requests)
}

func TestCreateSecondPendingRequestReturnsExistingID(t *testing.T) {
	f := newWorkflowFixture(t)
	first := f.submit(t, 7, models.ProposedChanges{PersonalInfo: models.PersonalInfoChanges{"phone": strPtr("01711000000")}})

	_, err := f.svc.Create(context.Background(), employeePrincipal(107, 7, 2), dto.CreateProfileRequest{
		RequestType:     "Profile Update",
		ProposedChanges: models.ProposedChanges{PersonalInfo: models.PersonalInfoChanges{"religion": strPtr("Islam")}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.Equal(t, first.ID, appErrors.FromError(err).Details["existing_request_id"])

	f.requests.hidePending = true
	_, err = f.svc.Create(context.Background(), employeePrincipal(107, 7, 2), dto.CreateProfileRequest{
		RequestType:     "Profile Update",
		ProposedChanges: models.ProposedChanges{PersonalInfo: models.PersonalInfoChanges{"religion": strPtr("Islam")}},
	})
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.Equal(t, first.ID, appErrors.FromError(err).Details["existing_request_id"])
	assert.Len(t, f.requests.requests, 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.requestsCreated))
}

func TestCreateEnrichesPendingDocuments(t *testing.T) {
	f := newWorkflowFixture(t)
	current := "photos/current.png"
	e := f.employees.employees[7]
	e.ProfilePicture = &current
	f.employees.employees[7] = e
	f.employees.family = []models.FamilyMember{{ID: 501, EmployeeID: 7, Relation: models.RelationChild, Name: "Sadia"}}

	photo, _ := models.FieldTarget(models.FieldProfilePicture)
	child, _ := models.FamilyMemberTarget(501)
	index, _ := models.AcademicIndexTarget(0)
	request := f.submit(t, 7, models.ProposedChanges{
		Academics: []models.AcademicPayload{{ExamName: "Diploma"}},
		PendingDocuments: []models.PendingDocument{
			f.stage(t, 7, photo), f.stage(t, 7, child), f.stage(t, 7, index),
		},
	})

	docs := request.ProposedChanges.PendingDocuments
	require.Len(t, docs, 3)
	assert.Equal(t, &current, docs[0].CurrentFilePath)
	assert.Equal(t, "Sadia", *docs[1].FamilyMemberName)
	assert.Equal(t, "Diploma", *docs[2].AcademicExamName)
	assert.Equal(t, []string{models.AuditActionProfileRequestCreate}, f.audit.actions())
}

func TestApproveRejectsTooManySpousesAtomically(t *testing.T) {
	f := newWorkflowFixture(t)
	f.employees.family = []models.FamilyMember{{ID: 500, EmployeeID: 7, Relation: models.RelationSpouse, Name: "Fatema Begum", IsActiveMarriage: boolPtr(true)}}
	photo, _ := models.FieldTarget(models.FieldProfilePicture)
	doc := f.stage(t, 7, photo)
	request := f.submit(t, 7, models.ProposedChanges{
		PersonalInfo:     models.PersonalInfoChanges{"phone": strPtr("01811000000")},
		PendingDocuments: []models.PendingDocument{doc},
	})
	before := f.employees.snapshot()

	_, err := f.svc.Process(context.Background(), stationAdmin(), request.ID, dto.ProcessProfileRequest{
		IsApproved: boolPtr(true),
		ApprovedChanges: &models.ProposedChanges{
			PersonalInfo:     models.PersonalInfoChanges{"phone": strPtr("01811000000")},
			Family:           &models.FamilyChanges{Spouses: spouses(5)},
			PendingDocuments: []models.PendingDocument{doc},
		},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	assert.Equal(t, before.employees, f.employees.employees)
	assert.Equal(t, before.family, f.employees.family)
	stored := f.requests.requests[request.ID]
	assert.True(t, stored.IsPending())
	assert.True(t, f.exists(t, doc.Path))
	assert.Equal(t, 1, f.tx.rollbacks)
}

func TestApproveAttachesCertificateToFirstCreatedAcademic(t *testing.T) {
	f := newWorkflowFixture(t)
	f.employees.academics = []models.AcademicRecord{{ID: 300, EmployeeID: 8, ExamName: "SSC / Dakhil"}}
	target, _ := models.AcademicIndexTarget(0)
	doc := f.stage(t, 8, target)
	request := f.submit(t, 8, models.ProposedChanges{
		Academics:        []models.AcademicPayload{{ExamName: "Bachelor (Honors)", Institute: strPtr("University of Chittagong")}},
		PendingDocuments: []models.PendingDocument{doc},
	})

	processed, err := f.svc.Process(context.Background(), divisionAdmin(), request.ID, approve("verified"))
	require.NoError(t, err)
	assert.Equal(t, models.ProfileRequestProcessed, processed.Status)
	assert.True(t, *processed.IsApproved)
	assert.Equal(t, int64(50), *processed.ReviewedBy)

	require.Len(t, f.employees.academics, 1)
	record := f.employees.academics[0]
	assert.NotEqual(t, int64(300), record.ID)
	assert.Equal(t, "Bachelor (Honors)", record.ExamName)
	require.NotNil(t, record.CertificatePath)
	assert.True(t, strings.HasPrefix(*record.CertificatePath, "documents/certificates/"))
	assert.True(t, f.exists(t, *record.CertificatePath))
	assert.False(t, f.exists(t, doc.Path))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.requestsDone.WithLabelValues(OutcomeApproved)))
}

func TestApproveTwoSpousesForMaleEmployee(t *testing.T) {
	f := newWorkflowFixture(t)
	f.employees.family = []models.FamilyMember{
		{ID: 500, EmployeeID: 7, Relation: models.RelationSpouse, Name: "Fatema Begum", Gender: strPtr(models.GenderFemale), IsActiveMarriage: boolPtr(true)},
		{ID: 501, EmployeeID: 8, Relation: models.RelationSpouse, Name: "Jamal Uddin", Gender: strPtr(models.GenderMale), IsActiveMarriage: boolPtr(true)},
	}
	request := f.submit(t, 7, models.ProposedChanges{Family: &models.FamilyChanges{Spouses: []models.PersonPayload{
		{ID: ptr64(500), Name: "Fatema Begum"},
		{Name: "Ayesha Siddiqua", IsActiveMarriage: boolPtr(true)},
	}}})

	_, err := f.svc.Process(context.Background(), stationAdmin(), request.ID, approve(""))
	require.NoError(t, err)

	wives := f.employees.members(7, models.RelationSpouse)
	require.Len(t, wives, 2)
	names := []string{wives[0].Name, wives[1].Name}
	assert.ElementsMatch(t, []string{"Fatema Begum", "Ayesha Siddiqua"}, names)
	for _, w := range wives {
		assert.NotEqual(t, int64(500), w.ID)
		assert.Equal(t, models.GenderFemale, *w.Gender)
		assert.True(t, *w.IsActiveMarriage)
	}
	assert.Len(t, f.employees.members(8, models.RelationSpouse), 1)
	assert.Equal(t, 1, f.tx.commits)
}

func TestRejectDiscardsStagedFilesAndLeavesEmployeeUntouched(t *testing.T) {
	f := newWorkflowFixture(t)
	photo, _ := models.FieldTarget(models.FieldProfilePicture)
	nid, _ := models.FieldTarget(models.FieldNIDFile)
	pending := f.stage(t, 7, photo)
	legacy := f.stage(t, 7, nid)
	bare := f.stage(t, 7, nid)
	request := f.submit(t, 7, models.ProposedChanges{
		PersonalInfo:     models.PersonalInfoChanges{"phone": strPtr("01911000000")},
		PendingDocuments: []models.PendingDocument{pending},
		DocumentUpdate:   &models.LegacyDocumentUpdate{FilePath: legacy.Path, EmployeeField: strPtr(models.FieldNIDFile)},
		Files:            map[string]string{"birth_file": bare.Path},
	})
	before := f.employees.snapshot()

	processed, err := f.svc.Process(context.Background(), stationAdmin(), request.ID, reject("blurred scan"))
	require.NoError(t, err)
	assert.False(t, *processed.IsApproved)
	assert.Equal(t, "blurred scan", *processed.AdminNote)

	for _, p := range []string{pending.Path, legacy.Path, bare.Path} {
		assert.False(t, f.exists(t, p), p)
	}
	assert.Equal(t, before.employees, f.employees.employees)
	assert.Contains(t, f.audit.actions(), models.AuditActionProfileRequestReject)
}

func TestProcessTwiceIsConflict(t *testing.T) {
	f := newWorkflowFixture(t)
	request := f.submit(t, 7, models.ProposedChanges{PersonalInfo: models.PersonalInfoChanges{"phone": strPtr("017")}})
	_, err := f.svc.Process(context.Background(), stationAdmin(), request.ID, reject(""))
	require.NoError(t, err)

	_, err = f.svc.Process(context.Background(), stationAdmin(), request.ID, approve(""))
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestProcessRespectsAdminCoverage(t *testing.T) {
	f := newWorkflowFixture(t)
	station := f.submit(t, 7, models.ProposedChanges{PersonalInfo: models.PersonalInfoChanges{"phone": strPtr("017")}})
	own := f.submit(t, 9, models.ProposedChanges{PersonalInfo: models.PersonalInfoChanges{"phone": strPtr("018")}})

	_, err := f.svc.Process(context.Background(), divisionAdmin(), station.ID, approve(""))
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = f.svc.Process(context.Background(), divisionAdmin(), own.ID, approve(""))
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = f.svc.Process(context.Background(), employeePrincipal(108, 8, 4), station.ID, approve(""))
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = f.svc.Process(context.Background(), superAdmin(), own.ID, approve(""))
	assert.NoError(t, err)

	_, err = f.svc.Process(context.Background(), superAdmin(), 999, approve(""))
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestApproveWithOverrideDiscardsDroppedFiles(t *testing.T) {
	f := newWorkflowFixture(t)
	photo, _ := models.FieldTarget(models.FieldProfilePicture)
	nid, _ := models.FieldTarget(models.FieldNIDFile)
	keep := f.stage(t, 8, photo)
	drop := f.stage(t, 8, nid)
	request := f.submit(t, 8, models.ProposedChanges{PendingDocuments: []models.PendingDocument{keep, drop}})

	_, err := f.svc.Process(context.Background(), divisionAdmin(), request.ID, dto.ProcessProfileRequest{
		IsApproved:      boolPtr(true),
		ApprovedChanges: &models.ProposedChanges{PendingDocuments: []models.PendingDocument{keep}},
	})
	require.NoError(t, err)

	employee := f.employees.employees[8]
	require.NotNil(t, employee.ProfilePicture)
	assert.True(t, f.exists(t, *employee.ProfilePicture))
	assert.Nil(t, employee.NIDFilePath)
	assert.False(t, f.exists(t, drop.Path))
}

type flakyFiles struct {
	FileStore
	moves      int
	failOnMove int
}

func (f *flakyFiles) Move(ctx context.Context, handle, namespace string) (string, error) {
	f.moves++
	if f.moves == f.failOnMove {
		return "", errors.New("disk full")
	}
	return f.FileStore.Move(ctx, handle, namespace)
}

func TestFailedApprovalMovesPromotedFilesBack(t *testing.T) {
	f := newWorkflowFixture(t)
	photo, _ := models.FieldTarget(models.FieldProfilePicture)
	nid, _ := models.FieldTarget(models.FieldNIDFile)
	first := f.stage(t, 7, photo)
	second := f.stage(t, 7, nid)
	request := f.submit(t, 7, models.ProposedChanges{PendingDocuments: []models.PendingDocument{first, second}})
	f.documents.files = &flakyFiles{FileStore: f.files, failOnMove: 2}

	_, err := f.svc.Process(context.Background(), stationAdmin(), request.ID, approve(""))
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrStorage)

	assert.True(t, f.exists(t, first.Path))
	assert.True(t, f.exists(t, second.Path))
	assert.Nil(t, f.employees.employees[7].ProfilePicture)
	stored := f.requests.requests[request.ID]
	assert.True(t, stored.IsPending())
}

func TestCancel(t *testing.T) {
	f := newWorkflowFixture(t)
	photo, _ := models.FieldTarget(models.FieldProfilePicture)
	doc := f.stage(t, 7, photo)
	request := f.submit(t, 7, models.ProposedChanges{PendingDocuments: []models.PendingDocument{doc}})

	err := f.svc.Cancel(context.Background(), stationAdmin(), request.ID)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	require.NoError(t, f.svc.Cancel(context.Background(), employeePrincipal(107, 7, 2), request.ID))
	assert.Empty(t, f.requests.requests)
	assert.False(t, f.exists(t, doc.Path))

	err = f.svc.Cancel(context.Background(), employeePrincipal(107, 7, 2), request.ID)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestCancelProcessedRequestIsConflict(t *testing.T) {
	f := newWorkflowFixture(t)
	request := f.submit(t, 7, models.ProposedChanges{PersonalInfo: models.PersonalInfoChanges{"phone": strPtr("017")}})
	_, err := f.svc.Process(context.Background(), stationAdmin(), request.ID, approve(""))
	require.NoError(t, err)

	err = f.svc.Cancel(context.Background(), employeePrincipal(107, 7, 2), request.ID)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.Contains(t, f.requests.requests, request.ID)
}

func TestPendingQueueIsScopedToManagedOffices(t *testing.T) {
	f := newWorkflowFixture(t)
	f.submit(t, 7, models.ProposedChanges{PersonalInfo: models.PersonalInfoChanges{"phone": strPtr("017")}})
	workshop := f.submit(t, 8, models.ProposedChanges{PersonalInfo: models.PersonalInfoChanges{"phone": strPtr("018")}})
	f.submit(t, 9, models.ProposedChanges{PersonalInfo: models.PersonalInfoChanges{"phone": strPtr("019")}})

	items, page, err := f.svc.Pending(context.Background(), divisionAdmin(), dto.ProfileRequestQuery{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, workshop.ID, items[0].ID)
	assert.Equal(t, 1, page.TotalCount)

	items, _, err = f.svc.Pending(context.Background(), superAdmin(), dto.ProfileRequestQuery{})
	require.NoError(t, err)
	assert.Len(t, items, 3)

	_, _, err = f.svc.Pending(context.Background(), employeePrincipal(107, 7, 2), dto.ProfileRequestQuery{})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestListAndMine(t *testing.T) {
	f := newWorkflowFixture(t)
	station := f.submit(t, 7, models.ProposedChanges{PersonalInfo: models.PersonalInfoChanges{"phone": strPtr("017")}})
	f.submit(t, 8, models.ProposedChanges{PersonalInfo: models.PersonalInfoChanges{"phone": strPtr("018")}})
	own := f.submit(t, 9, models.ProposedChanges{PersonalInfo: models.PersonalInfoChanges{"phone": strPtr("019")}})

	items, _, err := f.svc.List(context.Background(), divisionAdmin(), dto.ProfileRequestQuery{})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	for _, item := range items {
		assert.NotEqual(t, station.ID, item.ID)
	}

	_, _, err = f.svc.List(context.Background(), divisionAdmin(), dto.ProfileRequestQuery{OfficeID: ptr64(2)})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	items, _, err = f.svc.List(context.Background(), employeePrincipal(107, 7, 2), dto.ProfileRequestQuery{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, station.ID, items[0].ID)

	items, page, err := f.svc.Mine(context.Background(), divisionAdmin(), dto.ProfileRequestQuery{PageSize: 500})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, own.ID, items[0].ID)
	assert.Equal(t, 100, page.PageSize)

	_, _, err = f.svc.Mine(context.Background(), stationAdmin(), dto.ProfileRequestQuery{})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestGetAttachesCurrentDataAndDiff(t *testing.T) {
	f := newWorkflowFixture(t)
	f.employees.family = []models.FamilyMember{{ID: 500, EmployeeID: 7, Relation: models.RelationFather, Name: "Abdul Uddin"}}
	request := f.submit(t, 7, models.ProposedChanges{PersonalInfo: models.PersonalInfoChanges{"phone": strPtr("01711000000"), "unknown": strPtr("x")}})

	view, err := f.svc.Get(context.Background(), stationAdmin(), request.ID)
	require.NoError(t, err)
	require.NotNil(t, view.CurrentData)
	assert.Equal(t, "Rahim", *view.CurrentData.PersonalInfo["first_name"])
	assert.Equal(t, "Abdul Uddin", view.CurrentData.Family.Father.Name)
	assert.Contains(t, view.CurrentData.Files, models.FieldNIDFile)

	var patch []map[string]interface{}
	require.NoError(t, json.Unmarshal(view.ChangesDiff, &patch))
	require.Len(t, patch, 1)
	assert.Equal(t, "/phone", patch[0]["path"])
	assert.Equal(t, "01711000000", patch[0]["value"])

	_, err = f.svc.Get(context.Background(), divisionAdmin(), request.ID)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = f.svc.Get(context.Background(), employeePrincipal(107, 7, 2), request.ID)
	assert.NoError(t, err)
}
