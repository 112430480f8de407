package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/railway-hrm-api/internal/dto"
	"github.com/noah-isme/railway-hrm-api/internal/models"
	appErrors "github.com/noah-isme/railway-hrm-api/pkg/errors"
	"github.com/noah-isme/railway-hrm-api/pkg/response"
)

type profileRequestService interface {
	Create(ctx context.Context, principal models.Principal, req dto.CreateProfileRequest) (*models.ProfileRequest, error)
	Get(ctx context.Context, principal models.Principal, id int64) (*models.ProfileRequestView, error)
	List(ctx context.Context, principal models.Principal, query dto.ProfileRequestQuery) ([]models.ProfileRequest, *models.Pagination, error)
	Pending(ctx context.Context, principal models.Principal, query dto.ProfileRequestQuery) ([]models.ProfileRequest, *models.Pagination, error)
	Mine(ctx context.Context, principal models.Principal, query dto.ProfileRequestQuery) ([]models.ProfileRequest, *models.Pagination, error)
	Process(ctx context.Context, principal models.Principal, id int64, req dto.ProcessProfileRequest) (*models.ProfileRequest, error)
	Cancel(ctx context.Context, principal models.Principal, id int64) error
}

// ProfileRequestHandler exposes the profile change request workflow.
type ProfileRequestHandler struct {
	requests profileRequestService
	enabled  bool
}

// NewProfileRequestHandler constructs the handler. When enabled is false
// every route answers 404.
func NewProfileRequestHandler(requests profileRequestService, enabled bool) *ProfileRequestHandler {
	return &ProfileRequestHandler{requests: requests, enabled: enabled}
}

func (h *ProfileRequestHandler) ensureEnabled(c *gin.Context) bool {
	if h.enabled {
		return true
	}
	response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "profile requests are disabled"))
	return false
}

// Create godoc
// @Summary Submit a profile change request
// @Tags Profile Requests
// @Accept json
// @Produce json
// @Param payload body dto.CreateProfileRequest true "Request payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /profile-requests [post]
func (h *ProfileRequestHandler) Create(c *gin.Context) {
	if !h.ensureEnabled(c) {
		return
	}
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid profile request payload"))
		return
	}
	request, err := h.requests.Create(c.Request.Context(), principal, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// List godoc
// @Summary List profile requests visible to the caller
// @Tags Profile Requests
// @Produce json
// @Param status query string false "pending or processed"
// @Param office_id query int false "Office filter"
// @Param search query string false "Request type, details or employee name"
// @Param from query string false "Created on or after (YYYY-MM-DD)"
// @Param to query string false "Created on or before (YYYY-MM-DD)"
// @Param page query int false "Page number"
// @Param per_page query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /profile-requests [get]
func (h *ProfileRequestHandler) List(c *gin.Context) {
	h.list(c, h.requests.List)
}

// Pending godoc
// @Summary Pending requests the caller may process
// @Tags Profile Requests
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /profile-requests/pending [get]
func (h *ProfileRequestHandler) Pending(c *gin.Context) {
	h.list(c, h.requests.Pending)
}

// Mine godoc
// @Summary The caller's own requests
// @Tags Profile Requests
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /profile-requests/my [get]
func (h *ProfileRequestHandler) Mine(c *gin.Context) {
	h.list(c, h.requests.Mine)
}

type listFunc func(ctx context.Context, principal models.Principal, query dto.ProfileRequestQuery) ([]models.ProfileRequest, *models.Pagination, error)

func (h *ProfileRequestHandler) list(c *gin.Context, fn listFunc) {
	if !h.ensureEnabled(c) {
		return
	}
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	query, err := parseRequestQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	requests, pagination, err := fn(c.Request.Context(), principal, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, pagination)
}

func parseRequestQuery(c *gin.Context) (dto.ProfileRequestQuery, error) {
	query := dto.ProfileRequestQuery{
		OfficeID: queryInt64(c, "office_id"),
		Search:   strings.TrimSpace(c.Query("search")),
	}
	switch status := models.ProfileRequestStatus(strings.ToLower(c.Query("status"))); status {
	case "":
	case models.ProfileRequestPending, models.ProfileRequestProcessed:
		query.Status = &status
	default:
		return query, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "unknown status"), "field", "status")
	}
	for key, dest := range map[string]**time.Time{"from": &query.From, "to": &query.To} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		ts, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return query, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "dates must use YYYY-MM-DD"), "field", key)
		}
		if key == "to" {
			ts = ts.Add(24*time.Hour - time.Nanosecond)
		}
		*dest = &ts
	}
	query.Page, query.PageSize = pageParams(c)
	return query, nil
}

// Get godoc
// @Summary Request detail with current data and diff
// @Tags Profile Requests
// @Produce json
// @Param id path int true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /profile-requests/{id} [get]
func (h *ProfileRequestHandler) Get(c *gin.Context) {
	if !h.ensureEnabled(c) {
		return
	}
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	view, err := h.requests.Get(c.Request.Context(), principal, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Process godoc
// @Summary Approve or reject a pending request
// @Tags Profile Requests
// @Accept json
// @Produce json
// @Param id path int true "Request ID"
// @Param payload body dto.ProcessProfileRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /profile-requests/{id}/process [post]
func (h *ProfileRequestHandler) Process(c *gin.Context) {
	if !h.ensureEnabled(c) {
		return
	}
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.ProcessProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
		return
	}
	request, err := h.requests.Process(c.Request.Context(), principal, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Cancel godoc
// @Summary Cancel one's own pending request
// @Tags Profile Requests
// @Param id path int true "Request ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /profile-requests/{id} [delete]
func (h *ProfileRequestHandler) Cancel(c *gin.Context) {
	if !h.ensureEnabled(c) {
		return
	}
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.requests.Cancel(c.Request.Context(), principal, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
