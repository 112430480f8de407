package dto

import "github.com/noah-isme/railway-hrm-api/internal/models"

// EmployeeQuery mirrors supported employee listing filters.
type EmployeeQuery struct {
	OfficeID *int64
	Status   *models.EmployeeStatus
	Search   string
	Page     int
	PageSize int
}

// UploadDocumentRequest describes one uploaded employee document. Kind is one
// of photo, nid, birth, certificate or child; certificates need AcademicID or,
// for staged uploads only, AcademicIndex, and child documents need FamilyMemberID.
type UploadDocumentRequest struct {
	Kind           string `form:"-"`
	AcademicID     *int64 `form:"academic_id"`
	AcademicIndex  *int   `form:"academic_index"`
	FamilyMemberID *int64 `form:"family_member_id"`
	Submit         bool   `form:"submit"`
	Data           []byte `form:"-"`
}

// DiscardDocumentRequest names a staged file to delete.
type DiscardDocumentRequest struct {
	Path string `json:"path" validate:"required"`
}
