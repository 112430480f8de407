package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/railway-hrm-api/internal/models"
)

var profileRequestRowColumns = []string{"id", "employee_id", "request_type", "details", "proposed_changes", "status",
	"is_approved", "admin_note", "reviewed_by", "reviewed_at", "created_at", "updated_at", "employee_name", "employee_office_id"}

func TestProfileRequestRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProfileRequestRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO profile_requests")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(31)))

	request := &models.ProfileRequest{EmployeeID: 5, RequestType: "Address Change"}
	request.ProposedChanges.PersonalInfo = models.PersonalInfoChanges{}
	require.NoError(t, repo.Create(context.Background(), nil, request))
	assert.Equal(t, int64(31), request.ID)
	assert.Equal(t, models.ProfileRequestPending, request.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRequestRepositoryCreateMapsPendingIndexViolation(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProfileRequestRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO profile_requests")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: OnePendingRequestIndex})

	err := repo.Create(context.Background(), nil, &models.ProfileRequest{EmployeeID: 5, RequestType: "Update"})
	require.ErrorIs(t, err, ErrDuplicatePending)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRequestRepositoryFindDecodesChanges(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProfileRequestRepository(db)

	now := time.Now()
	changes := `{"personal_info":{"phone":"01711"},"pending_documents":[{"path":"pending/employee_5/nid/a.pdf","field":"nid_file_path"}]}`
	mock.ExpectQuery(regexp.QuoteMeta("FROM profile_requests pr")).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(profileRequestRowColumns).
			AddRow(int64(9), int64(5), "Update", nil, []byte(changes), "pending", nil, nil, nil, nil, now, now, "Karim Uddin", int64(3)))

	request, err := repo.FindByID(context.Background(), nil, 9)
	require.NoError(t, err)
	assert.True(t, request.IsPending())
	assert.Equal(t, int64(3), request.EmployeeOfficeID)
	assert.Equal(t, "01711", *request.ProposedChanges.PersonalInfo["phone"])
	require.Len(t, request.ProposedChanges.PendingDocuments, 1)
	assert.Equal(t, models.FieldNIDFile, request.ProposedChanges.PendingDocuments[0].Target.Field())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRequestRepositoryListScopesByOfficesOrOwnEmployee(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProfileRequestRepository(db)

	status := models.ProfileRequestPending
	own := int64(8)
	filter := models.ProfileRequestFilter{OfficeIDs: []int64{1, 2}, OrEmployeeID: &own, Status: &status, Search: "nid"}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM profile_requests pr")).
		WithArgs(int64(1), int64(2), int64(8), status, "%nid%", "%nid%", "%nid%", "%nid%", "%nid%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	now := time.Now()
	mock.ExpectQuery(`\(e\.current_office_id IN \(\?, \?\) OR pr\.employee_id = \?\)`).
		WillReturnRows(sqlmock.NewRows(profileRequestRowColumns).
			AddRow(int64(2), int64(8), "NID", nil, `{}`, "pending", nil, nil, nil, nil, now, now, "Own", int64(4)))

	list, total, err := repo.List(context.Background(), filter)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, int64(8), list[0].EmployeeID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRequestRepositoryMarkProcessedGuardsStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProfileRequestRepository(db)

	now := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $5 AND status = 'pending'")).
		WithArgs(true, nil, int64(2), now, int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkProcessed(context.Background(), nil, MarkProcessedParams{ID: 9, IsApproved: true, ReviewedBy: 2, ReviewedAt: now})
	require.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRequestRepositoryDeletePending(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProfileRequestRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM profile_requests WHERE id = $1 AND status = 'pending'")).
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.DeletePending(context.Background(), nil, 9))
	assert.NoError(t, mock.ExpectationsWereMet())
}
