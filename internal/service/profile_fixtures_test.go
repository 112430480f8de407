package service

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/railway-hrm-api/internal/models"
	"github.com/noah-isme/railway-hrm-api/internal/repository"
	"github.com/noah-isme/railway-hrm-api/pkg/storage"
)

var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

func strPtr(v string) *string { return &v }

func boolPtr(v bool) *bool { return &v }

// employeeStoreStub is an in-memory employee aggregate.
type employeeStoreStub struct {
	employees map[int64]models.Employee
	family    []models.FamilyMember
	addresses []models.Address
	academics []models.AcademicRecord
	nextID    int64
	failOn    string
}

func newEmployeeStoreStub(employees ...models.Employee) *employeeStoreStub {
	stub := &employeeStoreStub{employees: map[int64]models.Employee{}, nextID: 1000}
	for _, e := range employees {
		stub.employees[e.ID] = e
	}
	return stub
}

func (s *employeeStoreStub) snapshot() *employeeStoreStub {
	cp := &employeeStoreStub{employees: map[int64]models.Employee{}, nextID: s.nextID, failOn: s.failOn}
	for id, e := range s.employees {
		cp.employees[id] = e
	}
	cp.family = append([]models.FamilyMember(nil), s.family...)
	cp.addresses = append([]models.Address(nil), s.addresses...)
	cp.academics = append([]models.AcademicRecord(nil), s.academics...)
	return cp
}

func (s *employeeStoreStub) restore(from *employeeStoreStub) {
	*s = *from
}

func (s *employeeStoreStub) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *employeeStoreStub) FindByID(_ context.Context, _ sqlx.ExtContext, id int64) (*models.Employee, error) {
	e, ok := s.employees[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &e, nil
}

func (s *employeeStoreStub) LockByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Employee, error) {
	return s.FindByID(ctx, exec, id)
}

func (s *employeeStoreStub) List(_ context.Context, filter repository.EmployeeFilter) ([]models.Employee, int, error) {
	out := make([]models.Employee, 0)
	for _, e := range s.employees {
		inOffice := false
		for _, id := range filter.OfficeIDs {
			if e.CurrentOfficeID == id {
				inOffice = true
			}
		}
		self := filter.EmployeeID != nil && *filter.EmployeeID == e.ID
		if (len(filter.OfficeIDs) > 0 || filter.EmployeeID != nil) && !inOffice && !self {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (s *employeeStoreStub) LoadProfile(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.EmployeeProfile, error) {
	e, err := s.FindByID(ctx, exec, id)
	if err != nil {
		return nil, err
	}
	profile := &models.EmployeeProfile{Employee: e}
	for _, m := range s.family {
		if m.EmployeeID == id {
			profile.Family = append(profile.Family, m)
		}
	}
	for _, a := range s.addresses {
		if a.EmployeeID == id {
			profile.Addresses = append(profile.Addresses, a)
		}
	}
	for _, a := range s.academics {
		if a.EmployeeID == id {
			profile.Academics = append(profile.Academics, a)
		}
	}
	return profile, nil
}

func (s *employeeStoreStub) UpdatePersonalInfo(_ context.Context, _ sqlx.ExtContext, id int64, fields map[string]*string) error {
	e := s.employees[id]
	for key, v := range fields {
		switch key {
		case "first_name":
			if v != nil {
				e.FirstName = *v
			}
		case "phone":
			e.Phone = v
		case "gender":
			e.Gender = v
		case "dob":
			e.DOB = v
		case "religion":
			e.Religion = v
		}
	}
	s.employees[id] = e
	return nil
}

func (s *employeeStoreStub) UpdateFileField(_ context.Context, _ sqlx.ExtContext, id int64, field string, handle *string) error {
	e := s.employees[id]
	setFileField(&e, field, handle)
	s.employees[id] = e
	return nil
}

func (s *employeeStoreStub) UpsertParent(_ context.Context, _ sqlx.ExtContext, member *models.FamilyMember) error {
	for i := range s.family {
		if s.family[i].EmployeeID == member.EmployeeID && s.family[i].Relation == member.Relation {
			member.ID = s.family[i].ID
			s.family[i] = *member
			return nil
		}
	}
	member.ID = s.id()
	s.family = append(s.family, *member)
	return nil
}

func (s *employeeStoreStub) ReplaceFamilyMembers(_ context.Context, _ sqlx.ExtContext, employeeID int64, relation models.FamilyRelation, members []models.FamilyMember) ([]int64, error) {
	if s.failOn == "family" {
		return nil, sql.ErrConnDone
	}
	kept := s.family[:0:0]
	for _, m := range s.family {
		if m.EmployeeID != employeeID || m.Relation != relation {
			kept = append(kept, m)
		}
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		m.ID = s.id()
		kept = append(kept, m)
		ids = append(ids, m.ID)
	}
	s.family = kept
	return ids, nil
}

func (s *employeeStoreStub) FindFamilyMember(_ context.Context, _ sqlx.ExtContext, employeeID, id int64) (*models.FamilyMember, error) {
	for _, m := range s.family {
		if m.EmployeeID == employeeID && m.ID == id {
			return &m, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *employeeStoreStub) SetBirthCertificate(_ context.Context, _ sqlx.ExtContext, id int64, handle *string) error {
	for i := range s.family {
		if s.family[i].ID == id {
			s.family[i].BirthCertificatePath = handle
		}
	}
	return nil
}

func (s *employeeStoreStub) UpsertAddress(_ context.Context, _ sqlx.ExtContext, address *models.Address) error {
	for i := range s.addresses {
		if s.addresses[i].EmployeeID == address.EmployeeID && s.addresses[i].Type == address.Type {
			address.ID = s.addresses[i].ID
			s.addresses[i] = *address
			return nil
		}
	}
	address.ID = s.id()
	s.addresses = append(s.addresses, *address)
	return nil
}

func (s *employeeStoreStub) ReplaceAcademics(_ context.Context, _ sqlx.ExtContext, employeeID int64, records []models.AcademicRecord) ([]int64, error) {
	kept := s.academics[:0:0]
	for _, a := range s.academics {
		if a.EmployeeID != employeeID {
			kept = append(kept, a)
		}
	}
	ids := make([]int64, 0, len(records))
	for _, r := range records {
		r.ID = s.id()
		r.EmployeeID = employeeID
		kept = append(kept, r)
		ids = append(ids, r.ID)
	}
	s.academics = kept
	return ids, nil
}

func (s *employeeStoreStub) FindAcademic(_ context.Context, _ sqlx.ExtContext, employeeID, id int64) (*models.AcademicRecord, error) {
	for _, a := range s.academics {
		if a.EmployeeID == employeeID && a.ID == id {
			return &a, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *employeeStoreStub) SetAcademicCertificate(_ context.Context, _ sqlx.ExtContext, id int64, handle *string) error {
	for i := range s.academics {
		if s.academics[i].ID == id {
			s.academics[i].CertificatePath = handle
		}
	}
	return nil
}

func (s *employeeStoreStub) members(employeeID int64, relation models.FamilyRelation) []models.FamilyMember {
	out := make([]models.FamilyMember, 0)
	for _, m := range s.family {
		if m.EmployeeID == employeeID && m.Relation == relation {
			out = append(out, m)
		}
	}
	return out
}

// requestStoreStub keeps profile requests in memory and enforces one pending
// request per employee like the partial unique index does.
type requestStoreStub struct {
	requests map[int64]models.ProfileRequest
	offices  map[int64]int64
	nextID   int64
	// hidePending makes FindPendingByEmployee miss, simulating a concurrent insert.
	hidePending bool
	lastFilter  models.ProfileRequestFilter
}

func newRequestStoreStub(employeeOffices map[int64]int64) *requestStoreStub {
	return &requestStoreStub{requests: map[int64]models.ProfileRequest{}, offices: employeeOffices}
}

func (s *requestStoreStub) snapshot() map[int64]models.ProfileRequest {
	cp := make(map[int64]models.ProfileRequest, len(s.requests))
	for id, r := range s.requests {
		cp[id] = r
	}
	return cp
}

func (s *requestStoreStub) Create(_ context.Context, _ sqlx.ExtContext, request *models.ProfileRequest) error {
	for _, r := range s.requests {
		if r.EmployeeID == request.EmployeeID && r.IsPending() {
			return repository.ErrDuplicatePending
		}
	}
	s.nextID++
	request.ID = s.nextID
	request.Status = models.ProfileRequestPending
	request.EmployeeOfficeID = s.offices[request.EmployeeID]
	request.CreatedAt = time.Now()
	s.requests[request.ID] = *request
	return nil
}

func (s *requestStoreStub) FindByID(_ context.Context, _ sqlx.ExtContext, id int64) (*models.ProfileRequest, error) {
	r, ok := s.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &r, nil
}

func (s *requestStoreStub) LockByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.ProfileRequest, error) {
	return s.FindByID(ctx, exec, id)
}

func (s *requestStoreStub) FindPendingByEmployee(_ context.Context, _ sqlx.ExtContext, employeeID int64) (*models.ProfileRequest, error) {
	if s.hidePending {
		s.hidePending = false
		return nil, sql.ErrNoRows
	}
	for _, r := range s.requests {
		if r.EmployeeID == employeeID && r.IsPending() {
			return &r, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *requestStoreStub) List(_ context.Context, filter models.ProfileRequestFilter) ([]models.ProfileRequest, int, error) {
	s.lastFilter = filter
	out := make([]models.ProfileRequest, 0)
	for _, r := range s.requests {
		if filter.Status != nil && r.Status != *filter.Status {
			continue
		}
		if filter.EmployeeID != nil && r.EmployeeID != *filter.EmployeeID {
			continue
		}
		if filter.ExcludeEmployeeID != nil && r.EmployeeID == *filter.ExcludeEmployeeID {
			continue
		}
		if len(filter.OfficeIDs) > 0 || filter.OrEmployeeID != nil {
			match := filter.OrEmployeeID != nil && *filter.OrEmployeeID == r.EmployeeID
			for _, id := range filter.OfficeIDs {
				if r.EmployeeOfficeID == id {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(r.RequestType), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, len(out), nil
}

func (s *requestStoreStub) MarkProcessed(_ context.Context, _ sqlx.ExtContext, params repository.MarkProcessedParams) error {
	r, ok := s.requests[params.ID]
	if !ok || !r.IsPending() {
		return sql.ErrNoRows
	}
	r.Status = models.ProfileRequestProcessed
	r.IsApproved = &params.IsApproved
	r.AdminNote = params.AdminNote
	r.ReviewedBy = &params.ReviewedBy
	r.ReviewedAt = &params.ReviewedAt
	s.requests[params.ID] = r
	return nil
}

func (s *requestStoreStub) DeletePending(_ context.Context, _ sqlx.ExtContext, id int64) error {
	r, ok := s.requests[id]
	if !ok || !r.IsPending() {
		return sql.ErrNoRows
	}
	delete(s.requests, id)
	return nil
}

// memoryTx mimics TxManager over the in-memory stores: state is restored and
// rollback hooks fire when fn fails.
type memoryTx struct {
	employees *employeeStoreStub
	requests  *requestStoreStub
	commits   int
	rollbacks int
}

func (m *memoryTx) Do(ctx context.Context, fn func(ctx context.Context, uow *repository.UnitOfWork) error) error {
	var employees *employeeStoreStub
	if m.employees != nil {
		employees = m.employees.snapshot()
	}
	var requests map[int64]models.ProfileRequest
	if m.requests != nil {
		requests = m.requests.snapshot()
	}
	uow := repository.NewUnitOfWork(nil)
	if err := fn(ctx, uow); err != nil {
		if m.employees != nil {
			m.employees.restore(employees)
		}
		if m.requests != nil {
			m.requests.requests = requests
		}
		m.rollbacks++
		uow.Complete(ctx, false)
		return err
	}
	m.commits++
	uow.Complete(ctx, true)
	return nil
}

type workflowFixture struct {
	svc       *ProfileRequestService
	employees *employeeStoreStub
	requests  *requestStoreStub
	tx        *memoryTx
	files     *storage.LocalFileStore
	documents *PendingDocumentStore
	audit     *auditRecorder
	metrics   *MetricsService
}

// Railway fixture: employee 7 (male) works at Chittagong Station (2),
// employee 8 (female) at Pahartali Workshop (4). User 50 administers the
// division (1), user 60 the station (2), user 1 is a super admin.
func newWorkflowFixture(t *testing.T) *workflowFixture {
	t.Helper()
	employees := newEmployeeStoreStub(
		models.Employee{ID: 7, FirstName: "Rahim", LastName: "Uddin", CurrentOfficeID: 2, Gender: strPtr(models.GenderMale), NIDNumber: "1990123456"},
		models.Employee{ID: 8, FirstName: "Nasrin", LastName: "Akter", CurrentOfficeID: 4, Gender: strPtr(models.GenderFemale), NIDNumber: "1992654321"},
		models.Employee{ID: 9, FirstName: "Karim", LastName: "Hossain", CurrentOfficeID: 1, Gender: strPtr(models.GenderMale), NIDNumber: "1985111222"},
	)
	requests := newRequestStoreStub(map[int64]int64{7: 2, 8: 4, 9: 1})
	files, err := storage.NewLocalFileStore(t.TempDir(), storage.WithPublicBaseURL("https://files.example.test"))
	require.NoError(t, err)
	metrics := NewMetricsService()
	documents := NewPendingDocumentStore(files, DocumentPolicy{AllowedMIMEs: []string{"application/pdf", "image/png", "image/jpeg"}}, metrics, nil)
	tx := &memoryTx{employees: employees, requests: requests}
	audit := &auditRecorder{}
	svc := NewProfileRequestService(ProfileRequestDeps{
		Requests:  requests,
		Employees: employees,
		Tx:        tx,
		Applier:   NewProfileChangeApplier(employees, documents, nil),
		Documents: documents,
		Access:    newRailwayAccess(2),
		Audit:     audit,
		Metrics:   metrics,
	})
	return &workflowFixture{svc: svc, employees: employees, requests: requests, tx: tx, files: files, documents: documents, audit: audit, metrics: metrics}
}

func (f *workflowFixture) stage(t *testing.T, employeeID int64, target models.DocumentTarget) models.PendingDocument {
	t.Helper()
	doc, err := f.documents.Stage(context.Background(), employeeID, pdfBytes, target)
	require.NoError(t, err)
	return *doc
}

func (f *workflowFixture) exists(t *testing.T, handle string) bool {
	t.Helper()
	ok, err := f.files.Exists(context.Background(), handle)
	require.NoError(t, err)
	return ok
}

func employeePrincipal(userID, employeeID, officeID int64) models.Principal {
	return models.Principal{UserID: userID, Role: models.RoleVerifiedUser, EmployeeID: &employeeID, OfficeID: &officeID}
}

func divisionAdmin() models.Principal {
	return models.Principal{UserID: 50, Role: models.RoleOfficeAdmin, OfficeID: ptr64(1), EmployeeID: ptr64(9)}
}

func stationAdmin() models.Principal {
	return models.Principal{UserID: 60, Role: models.RoleOfficeAdmin, OfficeID: ptr64(2)}
}

func superAdmin() models.Principal {
	return models.Principal{UserID: 1, Role: models.RoleSuperAdmin}
}
