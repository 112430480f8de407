package middleware

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/railway-hrm-api/internal/models"
)

type auditRecorder struct {
	logs []*models.AuditLog
}

func (r *auditRecorder) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	r.logs = append(r.logs, log)
	return nil
}

func TestAuditRecordsSuccessfulRequests(t *testing.T) {
	recorder := &auditRecorder{}
	router := newProtectedRouter(Audit(recorder, nil, models.AuditActionFileDownload, "file"))

	assert.Equal(t, http.StatusOK, doRequest(router, "/employees/7", "Bearer admin").Code)
	require.Len(t, recorder.logs, 1)
	entry := recorder.logs[0]
	assert.Equal(t, models.AuditActionFileDownload, entry.Action)
	assert.Equal(t, "file", entry.Resource)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, int64(60), *entry.UserID)
	assert.Contains(t, string(entry.NewValues), `"status":200`)

	assert.Equal(t, http.StatusUnauthorized, doRequest(router, "/employees/7", "").Code)
	assert.Len(t, recorder.logs, 1)
}
