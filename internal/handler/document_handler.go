package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/railway-hrm-api/internal/dto"
	"github.com/noah-isme/railway-hrm-api/internal/models"
	"github.com/noah-isme/railway-hrm-api/internal/service"
	appErrors "github.com/noah-isme/railway-hrm-api/pkg/errors"
	"github.com/noah-isme/railway-hrm-api/pkg/response"
)

type documentService interface {
	Upload(ctx context.Context, principal models.Principal, employeeID int64, req dto.UploadDocumentRequest) (*service.DocumentUploadResult, error)
	DiscardPending(ctx context.Context, principal models.Principal, employeeID int64, handle string) error
}

// DocumentHandler accepts employee document uploads.
type DocumentHandler struct {
	documents documentService
	maxBytes  int64
}

// NewDocumentHandler constructs a DocumentHandler. maxBytes caps the
// multipart part read into memory.
func NewDocumentHandler(documents documentService, maxBytes int64) *DocumentHandler {
	if maxBytes <= 0 {
		maxBytes = 5 * 1024 * 1024
	}
	return &DocumentHandler{documents: documents, maxBytes: maxBytes}
}

// Upload godoc
// @Summary Upload an employee document
// @Description The employee's own uploads are staged for review (submit=true opens a "Document Update" request); admins managing the employee store it directly.
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param id path int true "Employee ID"
// @Param kind path string true "photo, nid, birth, certificate or child"
// @Param file formData file true "Document"
// @Param academic_id formData int false "Academic record for certificates"
// @Param academic_index formData int false "Index of an academic record created by the same request"
// @Param family_member_id formData int false "Child for birth certificates"
// @Param submit formData bool false "Open a Document Update request"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /employees/{id}/documents/{kind} [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.UploadDocumentRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid upload form"))
		return
	}
	req.Kind = c.Param("kind")

	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.WithDetails(appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"), "field", "file"))
		return
	}
	if header.Size > h.maxBytes {
		response.Error(c, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "file exceeds the upload limit"), "max_bytes", h.maxBytes))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable upload"))
		return
	}
	defer file.Close()
	req.Data, err = io.ReadAll(io.LimitReader(file, h.maxBytes+1))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable upload"))
		return
	}

	result, err := h.documents.Upload(c.Request.Context(), principal, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// DiscardPending godoc
// @Summary Discard a staged document
// @Tags Documents
// @Accept json
// @Param id path int true "Employee ID"
// @Param payload body dto.DiscardDocumentRequest true "Staged path"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /employees/{id}/documents/pending [delete]
func (h *DocumentHandler) DiscardPending(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.DiscardDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid discard payload"))
		return
	}
	if err := h.documents.DiscardPending(c.Request.Context(), principal, id, req.Path); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
