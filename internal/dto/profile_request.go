package dto

import (
	"time"

	"github.com/noah-isme/railway-hrm-api/internal/models"
)

// CreateProfileRequest is submitted by an employee proposing changes to their own profile.
type CreateProfileRequest struct {
	RequestType     string                 `json:"request_type" validate:"required,max=100"`
	Details         *string                `json:"details" validate:"omitempty,max=2000"`
	ProposedChanges models.ProposedChanges `json:"proposed_changes"`
}

// ProcessProfileRequest carries the reviewer decision. ApprovedChanges, when
// present, replaces the proposal for the apply step.
type ProcessProfileRequest struct {
	IsApproved      *bool                   `json:"is_approved" validate:"required"`
	AdminNote       *string                 `json:"admin_note" validate:"omitempty,max=2000"`
	ApprovedChanges *models.ProposedChanges `json:"approved_changes"`
}

// ProfileRequestQuery mirrors supported listing filters.
type ProfileRequestQuery struct {
	Status   *models.ProfileRequestStatus
	OfficeID *int64
	Search   string
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}
