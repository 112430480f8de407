package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/railway-hrm-api/internal/models"
)

const employeeColumns = `id, designation_id, current_office_id, first_name, last_name, name_bn, nid_number, phone,
	dob::text AS dob, gender, religion, blood_group, marital_status, place_of_birth, height, passport, birth_reg,
	cadre_type, batch_no, profile_picture, nid_file_path, birth_file_path, is_verified, status,
	created_at, updated_at, deleted_at`

const familyColumns = `id, employee_id, relation, name, name_bn, gender, nid, dob::text AS dob, occupation, is_alive,
	is_active_marriage, birth_certificate_path, created_at, updated_at`

const addressColumns = `id, employee_id, type, division, district, upazila, post_office, house_no, village_road,
	created_at, updated_at`

const academicColumns = `id, employee_id, exam_name, board, institute, passing_year, result, certificate_path,
	created_at, updated_at`

// EmployeeFilter scopes employee listings.
type EmployeeFilter struct {
	OfficeIDs  []int64
	EmployeeID *int64
	Status     *models.EmployeeStatus
	Search     string
	Page       int
	PageSize   int
}

// EmployeeRepository persists the employee aggregate. Mutating methods take an
// optional executor so they can join a caller's transaction.
type EmployeeRepository struct {
	db *sqlx.DB
}

// NewEmployeeRepository constructs the repository.
func NewEmployeeRepository(db *sqlx.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

func (r *EmployeeRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByID returns a non-deleted employee.
func (r *EmployeeRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE id = $1 AND deleted_at IS NULL`
	var employee models.Employee
	if err := sqlx.GetContext(ctx, r.exec(exec), &employee, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find employee: %w", err)
	}
	return &employee, nil
}

// LockByID loads an employee row with FOR UPDATE so concurrent edits serialise.
func (r *EmployeeRepository) LockByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`
	var employee models.Employee
	if err := sqlx.GetContext(ctx, r.exec(exec), &employee, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock employee: %w", err)
	}
	return &employee, nil
}

// List returns employees matching the filter with the total count.
func (r *EmployeeRepository) List(ctx context.Context, filter EmployeeFilter) ([]models.Employee, int, error) {
	conditions := []string{"deleted_at IS NULL"}
	args := make([]interface{}, 0, 4)

	scope := make([]string, 0, 2)
	if len(filter.OfficeIDs) > 0 {
		q, inArgs, err := sqlx.In("current_office_id IN (?)", filter.OfficeIDs)
		if err != nil {
			return nil, 0, fmt.Errorf("build office filter: %w", err)
		}
		scope = append(scope, q)
		args = append(args, inArgs...)
	}
	if filter.EmployeeID != nil {
		scope = append(scope, "id = ?")
		args = append(args, *filter.EmployeeID)
	}
	if len(scope) > 0 {
		conditions = append(conditions, "("+strings.Join(scope, " OR ")+")")
	}
	if filter.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, *filter.Status)
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		like := "%" + term + "%"
		conditions = append(conditions, "(first_name ILIKE ? OR last_name ILIKE ? OR nid_number ILIKE ? OR phone ILIKE ?)")
		args = append(args, like, like, like, like)
	}
	where := " WHERE " + strings.Join(conditions, " AND ")

	var total int
	countQuery := r.db.Rebind(`SELECT COUNT(*) FROM employees` + where)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count employees: %w", err)
	}

	page, size := normalisePage(filter.Page, filter.PageSize)
	listQuery := r.db.Rebind(fmt.Sprintf(`SELECT %s FROM employees%s ORDER BY first_name ASC, id ASC LIMIT %d OFFSET %d`,
		employeeColumns, where, size, (page-1)*size))
	var employees []models.Employee
	if err := r.db.SelectContext(ctx, &employees, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list employees: %w", err)
	}
	return employees, total, nil
}

// LoadProfile returns the employee with family, addresses and academics.
func (r *EmployeeRepository) LoadProfile(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.EmployeeProfile, error) {
	employee, err := r.FindByID(ctx, exec, id)
	if err != nil {
		return nil, err
	}
	target := r.exec(exec)
	profile := &models.EmployeeProfile{Employee: employee}

	familyQuery := `SELECT ` + familyColumns + ` FROM family_members WHERE employee_id = $1 ORDER BY id ASC`
	if err := sqlx.SelectContext(ctx, target, &profile.Family, familyQuery, id); err != nil {
		return nil, fmt.Errorf("load family: %w", err)
	}
	addressQuery := `SELECT ` + addressColumns + ` FROM addresses WHERE employee_id = $1 ORDER BY type ASC`
	if err := sqlx.SelectContext(ctx, target, &profile.Addresses, addressQuery, id); err != nil {
		return nil, fmt.Errorf("load addresses: %w", err)
	}
	academicQuery := `SELECT ` + academicColumns + ` FROM academic_records WHERE employee_id = $1 ORDER BY id ASC`
	if err := sqlx.SelectContext(ctx, target, &profile.Academics, academicQuery, id); err != nil {
		return nil, fmt.Errorf("load academics: %w", err)
	}
	return profile, nil
}

// UpdatePersonalInfo writes allow-listed personal columns. Unknown keys are ignored.
func (r *EmployeeRepository) UpdatePersonalInfo(ctx context.Context, exec sqlx.ExtContext, id int64, fields map[string]*string) error {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		if models.IsPersonalInfoField(key) {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	sort.Strings(keys)

	setParts := make([]string, 0, len(keys)+1)
	args := make([]interface{}, 0, len(keys)+2)
	for _, key := range keys {
		args = append(args, fields[key])
		cast := ""
		if key == "dob" {
			cast = "::date"
		}
		setParts = append(setParts, fmt.Sprintf("%s = $%d%s", key, len(args), cast))
	}
	args = append(args, time.Now().UTC())
	setParts = append(setParts, fmt.Sprintf("updated_at = $%d", len(args)))
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE employees SET %s WHERE id = $%d AND deleted_at IS NULL`, strings.Join(setParts, ", "), len(args))

	res, err := r.exec(exec).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update personal info: %w", err)
	}
	return expectRows(res)
}

// UpdateFileField stores handle on one of the employee document columns.
func (r *EmployeeRepository) UpdateFileField(ctx context.Context, exec sqlx.ExtContext, id int64, field string, handle *string) error {
	if !models.IsEmployeeFileField(field) {
		return fmt.Errorf("unknown employee file field %q", field)
	}
	query := fmt.Sprintf(`UPDATE employees SET %s = $1, updated_at = $2 WHERE id = $3 AND deleted_at IS NULL`, field)
	res, err := r.exec(exec).ExecContext(ctx, query, handle, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update employee file: %w", err)
	}
	return expectRows(res)
}

// UpsertParent updates the single father or mother record, creating it when absent.
func (r *EmployeeRepository) UpsertParent(ctx context.Context, exec sqlx.ExtContext, member *models.FamilyMember) error {
	if member.Relation != models.RelationFather && member.Relation != models.RelationMother {
		return fmt.Errorf("relation %q is not a parent", member.Relation)
	}
	now := time.Now().UTC()
	member.UpdatedAt = now
	target := r.exec(exec)

	const update = `UPDATE family_members SET name = :name, name_bn = :name_bn, gender = :gender, nid = :nid,
	dob = CAST(:dob AS date), occupation = :occupation, is_alive = :is_alive, updated_at = :updated_at
	WHERE id = (SELECT id FROM family_members WHERE employee_id = :employee_id AND relation = :relation ORDER BY id LIMIT 1)
	RETURNING id`
	found, err := namedReturningID(ctx, target, update, member)
	if err != nil {
		return fmt.Errorf("update %s: %w", member.Relation, err)
	}
	if found {
		return nil
	}
	if _, err := r.insertFamilyMember(ctx, target, member); err != nil {
		return fmt.Errorf("create %s: %w", member.Relation, err)
	}
	return nil
}

// ReplaceFamilyMembers deletes every member with relation and inserts members
// in order, returning the new identifiers.
func (r *EmployeeRepository) ReplaceFamilyMembers(ctx context.Context, exec sqlx.ExtContext, employeeID int64, relation models.FamilyRelation, members []models.FamilyMember) ([]int64, error) {
	target := r.exec(exec)
	if _, err := target.ExecContext(ctx, `DELETE FROM family_members WHERE employee_id = $1 AND relation = $2`, employeeID, relation); err != nil {
		return nil, fmt.Errorf("delete %s records: %w", relation, err)
	}
	ids := make([]int64, 0, len(members))
	for i := range members {
		members[i].EmployeeID = employeeID
		members[i].Relation = relation
		id, err := r.insertFamilyMember(ctx, target, &members[i])
		if err != nil {
			return nil, fmt.Errorf("create %s record: %w", relation, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *EmployeeRepository) insertFamilyMember(ctx context.Context, exec sqlx.ExtContext, member *models.FamilyMember) (int64, error) {
	now := time.Now().UTC()
	member.CreatedAt = now
	member.UpdatedAt = now
	const query = `INSERT INTO family_members (employee_id, relation, name, name_bn, gender, nid, dob, occupation,
	is_alive, is_active_marriage, birth_certificate_path, created_at, updated_at)
	VALUES (:employee_id, :relation, :name, :name_bn, :gender, :nid, CAST(:dob AS date), :occupation,
	:is_alive, :is_active_marriage, :birth_certificate_path, :created_at, :updated_at) RETURNING id`
	if _, err := namedReturningIDInto(ctx, exec, query, member, &member.ID); err != nil {
		return 0, err
	}
	return member.ID, nil
}

// FindFamilyMember returns a member owned by employeeID.
func (r *EmployeeRepository) FindFamilyMember(ctx context.Context, exec sqlx.ExtContext, employeeID, id int64) (*models.FamilyMember, error) {
	query := `SELECT ` + familyColumns + ` FROM family_members WHERE employee_id = $1 AND id = $2`
	var member models.FamilyMember
	if err := sqlx.GetContext(ctx, r.exec(exec), &member, query, employeeID, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find family member: %w", err)
	}
	return &member, nil
}

// SetBirthCertificate stores the certificate handle on a family member.
func (r *EmployeeRepository) SetBirthCertificate(ctx context.Context, exec sqlx.ExtContext, id int64, handle *string) error {
	res, err := r.exec(exec).ExecContext(ctx, `UPDATE family_members SET birth_certificate_path = $1, updated_at = $2 WHERE id = $3`,
		handle, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update birth certificate: %w", err)
	}
	return expectRows(res)
}

// UpsertAddress writes the address keyed by (employee, type).
func (r *EmployeeRepository) UpsertAddress(ctx context.Context, exec sqlx.ExtContext, address *models.Address) error {
	now := time.Now().UTC()
	address.CreatedAt = now
	address.UpdatedAt = now
	const query = `INSERT INTO addresses (employee_id, type, division, district, upazila, post_office, house_no, village_road, created_at, updated_at)
	VALUES (:employee_id, :type, :division, :district, :upazila, :post_office, :house_no, :village_road, :created_at, :updated_at)
	ON CONFLICT (employee_id, type) DO UPDATE SET division = EXCLUDED.division, district = EXCLUDED.district,
	upazila = EXCLUDED.upazila, post_office = EXCLUDED.post_office, house_no = EXCLUDED.house_no,
	village_road = EXCLUDED.village_road, updated_at = EXCLUDED.updated_at
	RETURNING id`
	if _, err := namedReturningIDInto(ctx, r.exec(exec), query, address, &address.ID); err != nil {
		return fmt.Errorf("upsert %s address: %w", address.Type, err)
	}
	return nil
}

// ReplaceAcademics deletes all academic records and recreates them in order,
// returning the new identifiers in input order.
func (r *EmployeeRepository) ReplaceAcademics(ctx context.Context, exec sqlx.ExtContext, employeeID int64, records []models.AcademicRecord) ([]int64, error) {
	target := r.exec(exec)
	if _, err := target.ExecContext(ctx, `DELETE FROM academic_records WHERE employee_id = $1`, employeeID); err != nil {
		return nil, fmt.Errorf("delete academics: %w", err)
	}
	const query = `INSERT INTO academic_records (employee_id, exam_name, board, institute, passing_year, result, certificate_path, created_at, updated_at)
	VALUES (:employee_id, :exam_name, :board, :institute, :passing_year, :result, :certificate_path, :created_at, :updated_at)
	RETURNING id`
	ids := make([]int64, 0, len(records))
	now := time.Now().UTC()
	for i := range records {
		records[i].EmployeeID = employeeID
		records[i].CreatedAt = now
		records[i].UpdatedAt = now
		if _, err := namedReturningIDInto(ctx, target, query, &records[i], &records[i].ID); err != nil {
			return nil, fmt.Errorf("create academic: %w", err)
		}
		ids = append(ids, records[i].ID)
	}
	return ids, nil
}

// FindAcademic returns an academic record owned by employeeID.
func (r *EmployeeRepository) FindAcademic(ctx context.Context, exec sqlx.ExtContext, employeeID, id int64) (*models.AcademicRecord, error) {
	query := `SELECT ` + academicColumns + ` FROM academic_records WHERE employee_id = $1 AND id = $2`
	var record models.AcademicRecord
	if err := sqlx.GetContext(ctx, r.exec(exec), &record, query, employeeID, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find academic: %w", err)
	}
	return &record, nil
}

// SetAcademicCertificate stores the certificate handle on an academic record.
func (r *EmployeeRepository) SetAcademicCertificate(ctx context.Context, exec sqlx.ExtContext, id int64, handle *string) error {
	res, err := r.exec(exec).ExecContext(ctx, `UPDATE academic_records SET certificate_path = $1, updated_at = $2 WHERE id = $3`,
		handle, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update certificate: %w", err)
	}
	return expectRows(res)
}

func namedReturningID(ctx context.Context, exec sqlx.ExtContext, query string, arg interface{}) (bool, error) {
	var id int64
	return namedReturningIDInto(ctx, exec, query, arg, &id)
}

func namedReturningIDInto(ctx context.Context, exec sqlx.ExtContext, query string, arg interface{}, dest *int64) (bool, error) {
	rows, err := sqlx.NamedQueryContext(ctx, exec, query, arg)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	found := false
	if rows.Next() {
		if err := rows.Scan(dest); err != nil {
			return false, err
		}
		found = true
	}
	return found, rows.Err()
}

func expectRows(res sql.Result) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check affected rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func normalisePage(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return page, size
}
