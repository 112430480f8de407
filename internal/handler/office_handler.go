package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/railway-hrm-api/internal/dto"
	"github.com/noah-isme/railway-hrm-api/internal/models"
	"github.com/noah-isme/railway-hrm-api/internal/service"
	appErrors "github.com/noah-isme/railway-hrm-api/pkg/errors"
	"github.com/noah-isme/railway-hrm-api/pkg/response"
)

type officeService interface {
	List(ctx context.Context) ([]models.Office, error)
	ListByIDs(ctx context.Context, ids []int64) ([]models.Office, error)
	Get(ctx context.Context, id int64) (*models.OfficeNode, error)
	Tree(ctx context.Context) ([]*models.OfficeNode, error)
	Create(ctx context.Context, req dto.CreateOfficeRequest, actorID int64) (*models.Office, error)
	Update(ctx context.Context, id int64, req dto.UpdateOfficeRequest, actorID int64) (*models.Office, error)
	Delete(ctx context.Context, id int64, actorID int64) error
	Zones() []models.OfficeZone
}

type scopeResolver interface {
	ScopeFor(ctx context.Context, principal models.Principal) (*service.Scope, error)
}

// OfficeHandler exposes office management endpoints.
type OfficeHandler struct {
	offices officeService
	access  scopeResolver
}

// NewOfficeHandler constructs an OfficeHandler.
func NewOfficeHandler(offices officeService, access scopeResolver) *OfficeHandler {
	return &OfficeHandler{offices: offices, access: access}
}

// List godoc
// @Summary List offices
// @Tags Offices
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /offices [get]
func (h *OfficeHandler) List(c *gin.Context) {
	offices, err := h.offices.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, offices, nil)
}

// Tree godoc
// @Summary Office forest with admin coverage
// @Tags Offices
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /offices/tree [get]
func (h *OfficeHandler) Tree(c *gin.Context) {
	tree, err := h.offices.Tree(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tree, nil)
}

// Managed godoc
// @Summary Offices the caller may administer
// @Tags Offices
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /offices/managed [get]
func (h *OfficeHandler) Managed(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	scope, err := h.access.ScopeFor(c.Request.Context(), principal)
	if err != nil {
		response.Error(c, err)
		return
	}
	offices, err := h.offices.ListByIDs(c.Request.Context(), scope.ManagedOfficeIDs())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, offices, nil)
}

// Zones godoc
// @Summary Accepted office zones
// @Tags Offices
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /offices/zones [get]
func (h *OfficeHandler) Zones(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.offices.Zones(), nil)
}

// Get godoc
// @Summary Office detail
// @Tags Offices
// @Produce json
// @Param id path int true "Office ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /offices/{id} [get]
func (h *OfficeHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	office, err := h.offices.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, office, nil)
}

// Create godoc
// @Summary Create office
// @Tags Offices
// @Accept json
// @Produce json
// @Param payload body dto.CreateOfficeRequest true "Office payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /offices [post]
func (h *OfficeHandler) Create(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateOfficeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid office payload"))
		return
	}
	office, err := h.offices.Create(c.Request.Context(), req, principal.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, office)
}

// Update godoc
// @Summary Update office
// @Tags Offices
// @Accept json
// @Produce json
// @Param id path int true "Office ID"
// @Param payload body dto.UpdateOfficeRequest true "Office payload"
// @Success 200 {object} response.Envelope
// @Router /offices/{id} [put]
func (h *OfficeHandler) Update(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateOfficeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid office payload"))
		return
	}
	office, err := h.offices.Update(c.Request.Context(), id, req, principal.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, office, nil)
}

// Delete godoc
// @Summary Delete office
// @Tags Offices
// @Param id path int true "Office ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /offices/{id} [delete]
func (h *OfficeHandler) Delete(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.offices.Delete(c.Request.Context(), id, principal.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
