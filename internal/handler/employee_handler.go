package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/railway-hrm-api/internal/dto"
	"github.com/noah-isme/railway-hrm-api/internal/models"
	appErrors "github.com/noah-isme/railway-hrm-api/pkg/errors"
	"github.com/noah-isme/railway-hrm-api/pkg/response"
)

type employeeService interface {
	Get(ctx context.Context, principal models.Principal, id int64) (*models.EmployeeView, error)
	List(ctx context.Context, principal models.Principal, query dto.EmployeeQuery) ([]models.Employee, *models.Pagination, error)
	UpdateProfile(ctx context.Context, principal models.Principal, id int64, changes models.ProposedChanges) (*models.EmployeeView, error)
}

// EmployeeHandler serves employee reads and the direct admin edit.
type EmployeeHandler struct {
	employees employeeService
}

// NewEmployeeHandler constructs an EmployeeHandler.
func NewEmployeeHandler(employees employeeService) *EmployeeHandler {
	return &EmployeeHandler{employees: employees}
}

// List godoc
// @Summary List employees visible to the caller
// @Tags Employees
// @Produce json
// @Param office_id query int false "Office filter"
// @Param status query string false "Employee status"
// @Param search query string false "Name, NID or phone"
// @Param page query int false "Page number"
// @Param per_page query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /employees [get]
func (h *EmployeeHandler) List(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	query := dto.EmployeeQuery{
		OfficeID: queryInt64(c, "office_id"),
		Search:   strings.TrimSpace(c.Query("search")),
	}
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		s := models.EmployeeStatus(status)
		query.Status = &s
	}
	query.Page, query.PageSize = pageParams(c)

	employees, pagination, err := h.employees.List(c.Request.Context(), principal, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, employees, pagination)
}

// Get godoc
// @Summary Employee profile
// @Tags Employees
// @Produce json
// @Param id path int true "Employee ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /employees/{id} [get]
func (h *EmployeeHandler) Get(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	view, err := h.employees.Get(c.Request.Context(), principal, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// UpdateProfile godoc
// @Summary Edit an employee profile directly
// @Description Admins managing the employee apply changes without a request. Not allowed on one's own record.
// @Tags Employees
// @Accept json
// @Produce json
// @Param id path int true "Employee ID"
// @Param payload body models.ProposedChanges true "Profile changes"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /employees/{id}/profile [put]
func (h *EmployeeHandler) UpdateProfile(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var changes models.ProposedChanges
	if err := c.ShouldBindJSON(&changes); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid profile payload"))
		return
	}
	view, err := h.employees.UpdateProfile(c.Request.Context(), principal, id, changes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}
