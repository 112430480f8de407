package dto

import "github.com/noah-isme/railway-hrm-api/internal/models"

// CreateOfficeRequest is the payload for creating an office.
type CreateOfficeRequest struct {
	Name     string             `json:"name" validate:"required,max=255"`
	Code     string             `json:"code" validate:"required,max=50"`
	Location string             `json:"location" validate:"required,max=255"`
	Zone     *models.OfficeZone `json:"zone" validate:"omitempty,oneof=center east west"`
	ParentID *int64             `json:"parent_id" validate:"omitempty,gt=0"`
}

// UpdateOfficeRequest replaces the mutable office attributes.
type UpdateOfficeRequest struct {
	Name     string             `json:"name" validate:"required,max=255"`
	Code     string             `json:"code" validate:"required,max=50"`
	Location string             `json:"location" validate:"required,max=255"`
	Zone     *models.OfficeZone `json:"zone" validate:"omitempty,oneof=center east west"`
	ParentID *int64             `json:"parent_id" validate:"omitempty,gt=0"`
}
