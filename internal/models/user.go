package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleSuperAdmin   UserRole = "super_admin"
	RoleOfficeAdmin  UserRole = "office_admin"
	RoleVerifiedUser UserRole = "verified_user"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleOfficeAdmin, RoleVerifiedUser:
		return true
	}
	return false
}

// User represents an application account stored in the users table.
type User struct {
	ID           int64      `db:"id" json:"id"`
	EmployeeID   *int64     `db:"employee_id" json:"employee_id,omitempty"`
	OfficeID     *int64     `db:"office_id" json:"office_id,omitempty"`
	Name         string     `db:"name" json:"name"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Role         UserRole   `db:"role" json:"role"`
	IsActive     bool       `db:"is_active" json:"is_active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Principal is the acting user as seen by authorization checks.
type Principal struct {
	UserID     int64
	Role       UserRole
	OfficeID   *int64
	EmployeeID *int64
}

// Principal projects the stored user onto the authorization view.
func (u *User) Principal() Principal {
	return Principal{UserID: u.ID, Role: u.Role, OfficeID: u.OfficeID, EmployeeID: u.EmployeeID}
}

// IsSuperAdmin reports whether the principal holds the super admin role.
func (p Principal) IsSuperAdmin() bool { return p.Role == RoleSuperAdmin }

// IsOfficeAdmin reports whether the principal administers an office.
func (p Principal) IsOfficeAdmin() bool { return p.Role == RoleOfficeAdmin }

// IsVerifiedUser reports whether the principal is a plain employee account.
func (p Principal) IsVerifiedUser() bool { return p.Role == RoleVerifiedUser }

// IsEmployee reports whether the principal is linked to employeeID.
func (p Principal) IsEmployee(employeeID int64) bool {
	return p.EmployeeID != nil && *p.EmployeeID == employeeID
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
