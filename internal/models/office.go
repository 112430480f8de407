package models

import "time"

// OfficeZone groups offices geographically.
type OfficeZone string

const (
	ZoneCenter OfficeZone = "center"
	ZoneEast   OfficeZone = "east"
	ZoneWest   OfficeZone = "west"
)

// Valid reports whether z is one of the configured zones.
func (z OfficeZone) Valid() bool {
	switch z {
	case ZoneCenter, ZoneEast, ZoneWest:
		return true
	}
	return false
}

// Office is a node of the office forest.
type Office struct {
	ID        int64       `db:"id" json:"id"`
	ParentID  *int64      `db:"parent_id" json:"parent_id,omitempty"`
	Name      string      `db:"name" json:"name"`
	Code      string      `db:"code" json:"code"`
	Location  string      `db:"location" json:"location"`
	Zone      *OfficeZone `db:"zone" json:"zone,omitempty"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt time.Time   `db:"updated_at" json:"updated_at"`
}

// OfficeNode is the tree rendering of an office.
type OfficeNode struct {
	Office
	HasAdmin      bool          `json:"has_admin"`
	EmployeeCount int           `json:"employee_count"`
	Children      []*OfficeNode `json:"children"`
}

// OfficeUsage counts the records that block deleting an office.
type OfficeUsage struct {
	Children  int `db:"children"`
	Employees int `db:"employees"`
}
