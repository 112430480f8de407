package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/railway-hrm-api/internal/models"
	"github.com/noah-isme/railway-hrm-api/pkg/database"
)

// OnePendingRequestIndex is the partial unique index allowing a single pending request per employee.
const OnePendingRequestIndex = "profile_requests_one_pending_idx"

// ErrDuplicatePending signals that the employee already has a pending request.
var ErrDuplicatePending = errors.New("employee already has a pending profile request")

const profileRequestSelect = `SELECT pr.id, pr.employee_id, pr.request_type, pr.details, pr.proposed_changes, pr.status,
	pr.is_approved, pr.admin_note, pr.reviewed_by, pr.reviewed_at, pr.created_at, pr.updated_at,
	TRIM(e.first_name || ' ' || e.last_name) AS employee_name, e.current_office_id AS employee_office_id
	FROM profile_requests pr
	JOIN employees e ON e.id = pr.employee_id`

// ProfileRequestRepository persists profile change requests.
type ProfileRequestRepository struct {
	db *sqlx.DB
}

// NewProfileRequestRepository constructs the repository.
func NewProfileRequestRepository(db *sqlx.DB) *ProfileRequestRepository {
	return &ProfileRequestRepository{db: db}
}

func (r *ProfileRequestRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a pending request. A concurrent pending request for the same
// employee surfaces as ErrDuplicatePending.
func (r *ProfileRequestRepository) Create(ctx context.Context, exec sqlx.ExtContext, request *models.ProfileRequest) error {
	now := time.Now().UTC()
	request.Status = models.ProfileRequestPending
	request.IsApproved = nil
	request.CreatedAt = now
	request.UpdatedAt = now
	const query = `INSERT INTO profile_requests (employee_id, request_type, details, proposed_changes, status, created_at, updated_at)
	VALUES (:employee_id, :request_type, :details, :proposed_changes, :status, :created_at, :updated_at) RETURNING id`
	if _, err := namedReturningIDInto(ctx, r.exec(exec), query, request, &request.ID); err != nil {
		if database.IsUniqueViolation(err, OnePendingRequestIndex) {
			return ErrDuplicatePending
		}
		return fmt.Errorf("create profile request: %w", err)
	}
	return nil
}

// FindByID fetches a request with its employee's name and office.
func (r *ProfileRequestRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.ProfileRequest, error) {
	return r.getOne(ctx, exec, profileRequestSelect+` WHERE pr.id = $1`, id)
}

// LockByID fetches a request row FOR UPDATE inside a transaction.
func (r *ProfileRequestRepository) LockByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.ProfileRequest, error) {
	return r.getOne(ctx, exec, profileRequestSelect+` WHERE pr.id = $1 FOR UPDATE OF pr`, id)
}

// FindPendingByEmployee returns the employee's pending request if any.
func (r *ProfileRequestRepository) FindPendingByEmployee(ctx context.Context, exec sqlx.ExtContext, employeeID int64) (*models.ProfileRequest, error) {
	return r.getOne(ctx, exec, profileRequestSelect+` WHERE pr.employee_id = $1 AND pr.status = 'pending' LIMIT 1`, employeeID)
}

func (r *ProfileRequestRepository) getOne(ctx context.Context, exec sqlx.ExtContext, query string, arg interface{}) (*models.ProfileRequest, error) {
	var request models.ProfileRequest
	if err := sqlx.GetContext(ctx, r.exec(exec), &request, query, arg); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find profile request: %w", err)
	}
	return &request, nil
}

// List returns requests matching the filter, newest first, with the total count.
func (r *ProfileRequestRepository) List(ctx context.Context, filter models.ProfileRequestFilter) ([]models.ProfileRequest, int, error) {
	conditions := make([]string, 0, 6)
	args := make([]interface{}, 0, 8)

	scope := make([]string, 0, 2)
	if len(filter.OfficeIDs) > 0 {
		q, inArgs, err := sqlx.In("e.current_office_id IN (?)", filter.OfficeIDs)
		if err != nil {
			return nil, 0, fmt.Errorf("build office filter: %w", err)
		}
		scope = append(scope, q)
		args = append(args, inArgs...)
	}
	if filter.OrEmployeeID != nil {
		scope = append(scope, "pr.employee_id = ?")
		args = append(args, *filter.OrEmployeeID)
	}
	if len(scope) > 0 {
		conditions = append(conditions, "("+strings.Join(scope, " OR ")+")")
	}
	if filter.EmployeeID != nil {
		conditions = append(conditions, "pr.employee_id = ?")
		args = append(args, *filter.EmployeeID)
	}
	if filter.ExcludeEmployeeID != nil {
		conditions = append(conditions, "pr.employee_id <> ?")
		args = append(args, *filter.ExcludeEmployeeID)
	}
	if filter.Status != nil {
		conditions = append(conditions, "pr.status = ?")
		args = append(args, *filter.Status)
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		like := "%" + term + "%"
		conditions = append(conditions, "(pr.request_type ILIKE ? OR pr.details ILIKE ? OR e.first_name ILIKE ? OR e.last_name ILIKE ? OR e.nid_number ILIKE ?)")
		args = append(args, like, like, like, like, like)
	}
	if filter.From != nil {
		conditions = append(conditions, "pr.created_at >= ?")
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, "pr.created_at < ?")
		args = append(args, *filter.To)
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := r.db.Rebind(`SELECT COUNT(*) FROM profile_requests pr JOIN employees e ON e.id = pr.employee_id` + where)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count profile requests: %w", err)
	}

	page, size := normalisePage(filter.Page, filter.PageSize)
	listQuery := r.db.Rebind(fmt.Sprintf(`%s%s ORDER BY pr.created_at DESC, pr.id DESC LIMIT %d OFFSET %d`,
		profileRequestSelect, where, size, (page-1)*size))
	var requests []models.ProfileRequest
	if err := r.db.SelectContext(ctx, &requests, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list profile requests: %w", err)
	}
	return requests, total, nil
}

// MarkProcessedParams groups the review outcome.
type MarkProcessedParams struct {
	ID         int64
	IsApproved bool
	AdminNote  *string
	ReviewedBy int64
	ReviewedAt time.Time
}

// MarkProcessed moves a pending request to processed. It returns sql.ErrNoRows
// when the request is missing or no longer pending.
func (r *ProfileRequestRepository) MarkProcessed(ctx context.Context, exec sqlx.ExtContext, params MarkProcessedParams) error {
	const query = `UPDATE profile_requests SET status = 'processed', is_approved = $1, admin_note = $2,
	reviewed_by = $3, reviewed_at = $4, updated_at = $4 WHERE id = $5 AND status = 'pending'`
	res, err := r.exec(exec).ExecContext(ctx, query, params.IsApproved, params.AdminNote, params.ReviewedBy, params.ReviewedAt, params.ID)
	if err != nil {
		return fmt.Errorf("mark profile request processed: %w", err)
	}
	return expectRows(res)
}

// DeletePending removes a request that is still pending. It returns
// sql.ErrNoRows when the request is missing or already processed.
func (r *ProfileRequestRepository) DeletePending(ctx context.Context, exec sqlx.ExtContext, id int64) error {
	res, err := r.exec(exec).ExecContext(ctx, `DELETE FROM profile_requests WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return fmt.Errorf("delete profile request: %w", err)
	}
	return expectRows(res)
}

// PendingChanges returns the proposed changes of every pending request for employeeIDs,
// or of all pending requests when employeeIDs is empty.
func (r *ProfileRequestRepository) PendingChanges(ctx context.Context, employeeIDs []int64) ([]models.ProfileRequest, error) {
	query := `SELECT id, employee_id, proposed_changes FROM profile_requests WHERE status = 'pending'`
	args := []interface{}{}
	if len(employeeIDs) > 0 {
		q, inArgs, err := sqlx.In(query+` AND employee_id IN (?)`, employeeIDs)
		if err != nil {
			return nil, fmt.Errorf("build employee filter: %w", err)
		}
		query, args = r.db.Rebind(q), inArgs
	}
	var requests []models.ProfileRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, fmt.Errorf("list pending changes: %w", err)
	}
	return requests, nil
}
