package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/railway-hrm-api/internal/models"
	"github.com/noah-isme/railway-hrm-api/pkg/database"
)

// OfficeCodeConstraint is the unique constraint on offices.code.
const OfficeCodeConstraint = "offices_code_key"

// ErrDuplicateOfficeCode signals that another office already uses the code.
var ErrDuplicateOfficeCode = errors.New("office code already exists")

// ErrOfficeInUse signals that rows still reference the office.
var ErrOfficeInUse = errors.New("office is still referenced")

const officeColumns = `id, parent_id, name, code, location, zone, created_at, updated_at`

// OfficeRepository persists the office forest.
type OfficeRepository struct {
	db *sqlx.DB
}

// NewOfficeRepository constructs the repository.
func NewOfficeRepository(db *sqlx.DB) *OfficeRepository {
	return &OfficeRepository{db: db}
}

// List returns every office ordered by name.
func (r *OfficeRepository) List(ctx context.Context) ([]models.Office, error) {
	query := `SELECT ` + officeColumns + ` FROM offices ORDER BY name ASC, id ASC`
	var offices []models.Office
	if err := r.db.SelectContext(ctx, &offices, query); err != nil {
		return nil, fmt.Errorf("list offices: %w", err)
	}
	return offices, nil
}

// FindByID fetches an office by identifier.
func (r *OfficeRepository) FindByID(ctx context.Context, id int64) (*models.Office, error) {
	query := `SELECT ` + officeColumns + ` FROM offices WHERE id = $1`
	var office models.Office
	if err := r.db.GetContext(ctx, &office, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find office: %w", err)
	}
	return &office, nil
}

// Create inserts a new office.
func (r *OfficeRepository) Create(ctx context.Context, office *models.Office) error {
	now := time.Now().UTC()
	office.CreatedAt = now
	office.UpdatedAt = now
	const query = `INSERT INTO offices (parent_id, name, code, location, zone, created_at, updated_at)
	VALUES (:parent_id, :name, :code, :location, :zone, :created_at, :updated_at) RETURNING id`
	rows, err := r.db.NamedQueryContext(ctx, query, office)
	if err != nil {
		if database.IsUniqueViolation(err, OfficeCodeConstraint) {
			return ErrDuplicateOfficeCode
		}
		return fmt.Errorf("create office: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&office.ID); err != nil {
			return fmt.Errorf("scan office id: %w", err)
		}
	}
	return rows.Err()
}

// Update persists mutable office columns.
func (r *OfficeRepository) Update(ctx context.Context, office *models.Office) error {
	office.UpdatedAt = time.Now().UTC()
	const query = `UPDATE offices SET parent_id = :parent_id, name = :name, code = :code, location = :location,
	zone = :zone, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, office)
	if err != nil {
		if database.IsUniqueViolation(err, OfficeCodeConstraint) {
			return ErrDuplicateOfficeCode
		}
		return fmt.Errorf("update office: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes an office row.
func (r *OfficeRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM offices WHERE id = $1`, id)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return ErrOfficeInUse
		}
		return fmt.Errorf("delete office: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Usage counts child offices and assigned employees.
func (r *OfficeRepository) Usage(ctx context.Context, id int64) (*models.OfficeUsage, error) {
	const query = `SELECT
	(SELECT COUNT(*) FROM offices WHERE parent_id = $1) AS children,
	(SELECT COUNT(*) FROM employees WHERE current_office_id = $1 AND deleted_at IS NULL) AS employees`
	var usage models.OfficeUsage
	if err := r.db.GetContext(ctx, &usage, query, id); err != nil {
		return nil, fmt.Errorf("office usage: %w", err)
	}
	return &usage, nil
}

// ActiveAdminOfficeIDs returns offices that currently have at least one active office admin.
func (r *OfficeRepository) ActiveAdminOfficeIDs(ctx context.Context) ([]int64, error) {
	const query = `SELECT DISTINCT office_id FROM users
	WHERE role = $1 AND is_active = TRUE AND deleted_at IS NULL AND office_id IS NOT NULL`
	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, query, models.RoleOfficeAdmin); err != nil {
		return nil, fmt.Errorf("list admin offices: %w", err)
	}
	return ids, nil
}

// HasActiveAdmin reports whether officeID has an active office admin.
func (r *OfficeRepository) HasActiveAdmin(ctx context.Context, officeID int64) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users
	WHERE office_id = $1 AND role = $2 AND is_active = TRUE AND deleted_at IS NULL)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, officeID, models.RoleOfficeAdmin); err != nil {
		return false, fmt.Errorf("check office admin: %w", err)
	}
	return exists, nil
}

// EmployeeCounts returns the number of active employees per office.
func (r *OfficeRepository) EmployeeCounts(ctx context.Context) (map[int64]int, error) {
	const query = `SELECT current_office_id, COUNT(*) AS total FROM employees
	WHERE deleted_at IS NULL GROUP BY current_office_id`
	var rows []struct {
		OfficeID int64 `db:"current_office_id"`
		Total    int   `db:"total"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("count employees per office: %w", err)
	}
	counts := make(map[int64]int, len(rows))
	for _, row := range rows {
		counts[row.OfficeID] = row.Total
	}
	return counts, nil
}
