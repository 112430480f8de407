package handler

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/railway-hrm-api/internal/dto"
	"github.com/noah-isme/railway-hrm-api/internal/models"
	"github.com/noah-isme/railway-hrm-api/internal/service"
	appErrors "github.com/noah-isme/railway-hrm-api/pkg/errors"
)

type documentServiceMock struct {
	lastReq     dto.UploadDocumentRequest
	lastID      int64
	discarded   string
	discardErr  error
	uploadCalls int
}

func (m *documentServiceMock) Upload(ctx context.Context, principal models.Principal, employeeID int64, req dto.UploadDocumentRequest) (*service.DocumentUploadResult, error) {
	m.uploadCalls++
	m.lastID = employeeID
	m.lastReq = req
	if _, err := service.ResolveTarget(req); err != nil {
		return nil, err
	}
	return &service.DocumentUploadResult{Staged: true, Path: "pending/employee_7/nid/x.pdf"}, nil
}

func (m *documentServiceMock) DiscardPending(ctx context.Context, principal models.Principal, employeeID int64, handle string) error {
	m.discarded = handle
	return m.discardErr
}

func multipartContext(t *testing.T, fields map[string]string, file []byte, params ...gin.Param) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != nil {
		part, err := mw.CreateFormFile("file", "upload.pdf")
		require.NoError(t, err)
		_, err = part.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	c, w := newContext(http.MethodPost, "/employees/7/documents/nid", &buf, employeeClaims(), params...)
	c.Request.Header.Set("Content-Type", mw.FormDataContentType())
	return c, w
}

func TestDocumentHandlerUpload(t *testing.T) {
	svc := &documentServiceMock{}
	h := NewDocumentHandler(svc, 1024)
	c, w := multipartContext(t, map[string]string{"submit": "true"}, []byte("%PDF-1.4 test"),
		gin.Param{Key: "id", Value: "7"}, gin.Param{Key: "kind", Value: "nid"})

	h.Upload(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, int64(7), svc.lastID)
	assert.Equal(t, "nid", svc.lastReq.Kind)
	assert.True(t, svc.lastReq.Submit)
	assert.Equal(t, []byte("%PDF-1.4 test"), svc.lastReq.Data)
}

func TestDocumentHandlerUploadCertificateIndex(t *testing.T) {
	svc := &documentServiceMock{}
	h := NewDocumentHandler(svc, 1024)
	c, w := multipartContext(t, map[string]string{"academic_index": "0"}, []byte("%PDF-1.4"),
		gin.Param{Key: "id", Value: "7"}, gin.Param{Key: "kind", Value: "certificate"})

	h.Upload(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, svc.lastReq.AcademicIndex)
	assert.Equal(t, 0, *svc.lastReq.AcademicIndex)
}

func TestDocumentHandlerUploadRejectsBadInput(t *testing.T) {
	svc := &documentServiceMock{}
	h := NewDocumentHandler(svc, 8)

	c, w := multipartContext(t, nil, nil, gin.Param{Key: "id", Value: "7"}, gin.Param{Key: "kind", Value: "nid"})
	h.Upload(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = multipartContext(t, nil, []byte("%PDF-1.4 much too large"), gin.Param{Key: "id", Value: "7"}, gin.Param{Key: "kind", Value: "nid"})
	h.Upload(c)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Zero(t, svc.uploadCalls)

	h = NewDocumentHandler(svc, 1024)
	c, w = multipartContext(t, nil, []byte("%PDF"), gin.Param{Key: "id", Value: "7"}, gin.Param{Key: "kind", Value: "passport"})
	h.Upload(c)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestDocumentHandlerDiscardPending(t *testing.T) {
	svc := &documentServiceMock{}
	h := NewDocumentHandler(svc, 0)
	c, w := newContext(http.MethodDelete, "/employees/7/documents/pending",
		jsonBody(t, dto.DiscardDocumentRequest{Path: "pending/employee_7/nid/x.pdf"}), employeeClaims(), gin.Param{Key: "id", Value: "7"})

	h.DiscardPending(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "pending/employee_7/nid/x.pdf", svc.discarded)

	svc.discardErr = appErrors.Clone(appErrors.ErrConflict, "referenced")
	c, w = newContext(http.MethodDelete, "/employees/7/documents/pending",
		jsonBody(t, dto.DiscardDocumentRequest{Path: "pending/employee_7/nid/x.pdf"}), employeeClaims(), gin.Param{Key: "id", Value: "7"})
	h.DiscardPending(c)
	assert.Equal(t, http.StatusConflict, w.Code)
}
