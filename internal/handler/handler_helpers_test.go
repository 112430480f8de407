package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/railway-hrm-api/internal/middleware"
	"github.com/noah-isme/railway-hrm-api/internal/models"
)

func int64Ptr(v int64) *int64 { return &v }

func employeeClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: 107, Role: models.RoleVerifiedUser, OfficeID: int64Ptr(2), EmployeeID: int64Ptr(7)}
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: 60, Role: models.RoleOfficeAdmin, OfficeID: int64Ptr(2)}
}

// newContext builds a test context for method/target carrying claims.
func newContext(method, target string, body io.Reader, claims *models.JWTClaims, params ...gin.Param) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.Request = req
	c.Params = params
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func jsonBody(t *testing.T, v interface{}) io.Reader {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(raw)
}

type envelope struct {
	Data       json.RawMessage        `json:"data"`
	Error      *envelopeError         `json:"error"`
	Pagination *models.Pagination     `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

type envelopeError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}
