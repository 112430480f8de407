package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/noah-isme/railway-hrm-api/internal/handler"
	"github.com/noah-isme/railway-hrm-api/internal/middleware"
	"github.com/noah-isme/railway-hrm-api/internal/models"
	"github.com/noah-isme/railway-hrm-api/pkg/cache"
	"github.com/noah-isme/railway-hrm-api/pkg/config"
	appErrors "github.com/noah-isme/railway-hrm-api/pkg/errors"
	"github.com/noah-isme/railway-hrm-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/railway-hrm-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/railway-hrm-api/pkg/middleware/requestid"
	"github.com/noah-isme/railway-hrm-api/pkg/response"
)

// Router builds the HTTP engine with every route registered.
func (a *App) Router() *gin.Engine {
	cfg := a.Config
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(a.Logger))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(a.Metrics))

	metricsHandler := handler.NewMetricsHandler(a.Metrics)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", a.ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(a.Auth)
	officeHandler := handler.NewOfficeHandler(a.Offices, a.Access)
	employeeHandler := handler.NewEmployeeHandler(a.Employee)
	documentHandler := handler.NewDocumentHandler(a.Uploads, cfg.Storage.MaxFileSizeBytes)
	requestHandler := handler.NewProfileRequestHandler(a.Requests, cfg.ProfileRequests.Enabled)

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)

	if a.Signer != nil {
		fileHandler := handler.NewFileHandler(a.Signer, a.Files, a.Logger)
		api.GET(DownloadPath+"/:token", middleware.Audit(a.Users, a.Logger, models.AuditActionFileDownload, "file"), fileHandler.Download)
	}

	secured := api.Group("")
	secured.Use(middleware.JWT(a.Auth))
	secured.GET("/auth/me", authHandler.Me)

	offices := secured.Group("/offices")
	offices.GET("", officeHandler.List)
	offices.GET("/tree", officeHandler.Tree)
	offices.GET("/zones", officeHandler.Zones)
	offices.GET("/managed", middleware.Admins(), officeHandler.Managed)
	offices.GET("/:id", officeHandler.Get)
	superOnly := middleware.RequireRoles(models.RoleSuperAdmin)
	offices.POST("", superOnly, officeHandler.Create)
	offices.PUT("/:id", superOnly, officeHandler.Update)
	offices.DELETE("/:id", superOnly, officeHandler.Delete)

	employees := secured.Group("/employees")
	employees.GET("", employeeHandler.List)
	employees.GET("/:id", employeeHandler.Get)
	employees.PUT("/:id/profile", middleware.Admins(), employeeHandler.UpdateProfile)
	adminOrSelf := middleware.RBAC(string(models.RoleSuperAdmin), string(models.RoleOfficeAdmin), middleware.RoleSelf)
	employees.POST("/:id/documents/:kind", adminOrSelf, documentHandler.Upload)
	employees.DELETE("/:id/documents/pending", adminOrSelf, documentHandler.DiscardPending)

	requests := secured.Group("/profile-requests")
	requests.POST("", requestHandler.Create)
	requests.GET("", middleware.Admins(), requestHandler.List)
	requests.GET("/pending", middleware.Admins(), requestHandler.Pending)
	requests.GET("/my", requestHandler.Mine)
	requests.GET("/:id", requestHandler.Get)
	requests.POST("/:id/process", middleware.Admins(), requestHandler.Process)
	requests.DELETE("/:id", requestHandler.Cancel)

	r.NoRoute(func(c *gin.Context) {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "route not found"))
	})
	return r
}

func (a *App) ready(c *gin.Context) {
	ctx := c.Request.Context()
	status := gin.H{"database": "ok"}
	code := http.StatusOK
	if err := a.DB.PingContext(ctx); err != nil {
		status["database"] = err.Error()
		code = http.StatusServiceUnavailable
	}
	if a.Redis != nil {
		status["redis"] = "ok"
		if err := cache.Ping(ctx, a.Redis); err != nil {
			status["redis"] = err.Error()
			code = http.StatusServiceUnavailable
		}
	}
	c.JSON(code, status)
}
