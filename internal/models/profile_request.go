package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// ProfileRequestStatus enumerates the workflow states persisted on a request.
type ProfileRequestStatus string

const (
	ProfileRequestPending   ProfileRequestStatus = "pending"
	ProfileRequestProcessed ProfileRequestStatus = "processed"
)

// DocumentUpdateRequestType labels requests created by a staged upload.
const DocumentUpdateRequestType = "Document Update"

// ProfileRequest is an employee proposal awaiting or past review.
type ProfileRequest struct {
	ID              int64                `db:"id" json:"id"`
	EmployeeID      int64                `db:"employee_id" json:"employee_id"`
	RequestType     string               `db:"request_type" json:"request_type"`
	Details         *string              `db:"details" json:"details,omitempty"`
	ProposedChanges ChangesColumn        `db:"proposed_changes" json:"proposed_changes"`
	Status          ProfileRequestStatus `db:"status" json:"status"`
	IsApproved      *bool                `db:"is_approved" json:"is_approved"`
	AdminNote       *string              `db:"admin_note" json:"admin_note,omitempty"`
	ReviewedBy      *int64               `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time           `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt       time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time            `db:"updated_at" json:"updated_at"`

	EmployeeName     string `db:"employee_name" json:"employee_name,omitempty"`
	EmployeeOfficeID int64  `db:"employee_office_id" json:"employee_office_id,omitempty"`
}

// IsPending reports whether the request can still be reviewed or cancelled.
func (r *ProfileRequest) IsPending() bool {
	return r.Status == ProfileRequestPending
}

// ProfileRequestFilter captures listing criteria.
type ProfileRequestFilter struct {
	Status            *ProfileRequestStatus
	EmployeeID        *int64
	ExcludeEmployeeID *int64
	OfficeIDs         []int64
	OrEmployeeID      *int64
	Search            string
	From              *time.Time
	To                *time.Time
	Page              int
	PageSize          int
}

// ChangesColumn stores ProposedChanges as JSONB.
type ChangesColumn struct {
	ProposedChanges
}

// Value implements driver.Valuer. JSONB parameters are sent as text.
func (c ChangesColumn) Value() (driver.Value, error) {
	raw, err := json.Marshal(c.ProposedChanges)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan implements sql.Scanner.
func (c *ChangesColumn) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		c.ProposedChanges = ProposedChanges{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("unsupported proposed_changes type")
	}
	if len(raw) == 0 {
		c.ProposedChanges = ProposedChanges{}
		return nil
	}
	return json.Unmarshal(raw, &c.ProposedChanges)
}

// MarshalJSON renders the embedded changes directly.
func (c ChangesColumn) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.ProposedChanges)
}

// UnmarshalJSON decodes the embedded changes directly.
func (c *ChangesColumn) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &c.ProposedChanges)
}

// ProfileRequestView is the enriched payload returned when a request is opened.
type ProfileRequestView struct {
	*ProfileRequest
	CurrentData *CurrentEmployeeData `json:"current_data,omitempty"`
	ChangesDiff json.RawMessage      `json:"changes_diff,omitempty"`
}

// CurrentEmployeeData is the snapshot a reviewer diffs the proposal against.
type CurrentEmployeeData struct {
	PersonalInfo map[string]*string `json:"personal_info"`
	Files        map[string]*string `json:"files"`
	Family       CurrentFamily      `json:"family"`
	Addresses    CurrentAddresses   `json:"addresses"`
	Academics    []AcademicRecord   `json:"academics"`
}

// CurrentFamily groups family members by relation.
type CurrentFamily struct {
	Father   *FamilyMember  `json:"father"`
	Mother   *FamilyMember  `json:"mother"`
	Spouses  []FamilyMember `json:"spouses"`
	Children []FamilyMember `json:"children"`
}

// CurrentAddresses holds the two address slots.
type CurrentAddresses struct {
	Present   *Address `json:"present"`
	Permanent *Address `json:"permanent"`
}
