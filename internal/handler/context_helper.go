package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/railway-hrm-api/internal/middleware"
	"github.com/noah-isme/railway-hrm-api/internal/models"
	appErrors "github.com/noah-isme/railway-hrm-api/pkg/errors"
	"github.com/noah-isme/railway-hrm-api/pkg/response"
)

// principalFromContext returns the acting principal, writing a 401 when the
// request carries no claims.
func principalFromContext(c *gin.Context) (models.Principal, bool) {
	claims := middleware.Claims(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Principal{}, false
	}
	return claims.Principal(), true
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, appErrors.WithDetails(appErrors.New(appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid "+name), "param", name))
		return 0, false
	}
	return id, true
}

func queryInt64(c *gin.Context, key string) *int64 {
	raw := c.Query(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("per_page", c.DefaultQuery("limit", "20")))
	return page, size
}
