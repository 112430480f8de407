package app

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/railway-hrm-api/internal/repository"
	"github.com/noah-isme/railway-hrm-api/internal/service"
	"github.com/noah-isme/railway-hrm-api/pkg/cache"
	"github.com/noah-isme/railway-hrm-api/pkg/config"
	"github.com/noah-isme/railway-hrm-api/pkg/database"
	"github.com/noah-isme/railway-hrm-api/pkg/jobs"
	"github.com/noah-isme/railway-hrm-api/pkg/storage"
)

// DownloadPath is the route prefix serving signed file links.
const DownloadPath = "/files"

// App holds the wired dependency graph shared by the API server and hrmctl.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	DB     *sqlx.DB
	Redis  *redis.Client

	Files   *storage.LocalFileStore
	Signer  *storage.SignedURLSigner
	Cleanup *jobs.Queue

	Users    *repository.UserRepository
	Metrics  *service.MetricsService
	Auth     *service.AuthService
	Offices  *service.OfficeService
	Access   *service.AccessControl
	Docs     *service.PendingDocumentStore
	Employee *service.EmployeeService
	Requests *service.ProfileRequestService
	Uploads  *service.DocumentService
	Janitor  *service.StagingJanitor
}

// New connects to postgres (and redis when the office cache is enabled) and
// builds every service. The cleanup queue is created but not started.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	a := &App{Config: cfg, Logger: logger, DB: db}
	a.Metrics = service.NewMetricsService()
	validate := validator.New()

	var officeOpts []service.OfficeServiceOption
	if cfg.Offices.CacheEnabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("redis unavailable, office cache disabled", zap.Error(err))
		} else {
			a.Redis = client
			cacheSvc := service.NewCacheService(repository.NewCacheRepository(client, logger), a.Metrics, cfg.Offices.CacheTTL, logger, true)
			officeOpts = append(officeOpts, service.WithOfficeCache(cacheSvc, cfg.Offices.CacheTTL))
		}
	}

	storeOpts := []storage.Option{}
	if cfg.Storage.PublicBaseURL != "" {
		storeOpts = append(storeOpts, storage.WithPublicBaseURL(cfg.Storage.PublicBaseURL))
	} else if cfg.Storage.SignedURLSecret != "" {
		a.Signer = storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL)
		storeOpts = append(storeOpts, storage.WithSigner(a.Signer, cfg.APIPrefix+DownloadPath))
	}
	a.Files, err = storage.NewLocalFileStore(cfg.Storage.BaseDir, storeOpts...)
	if err != nil {
		db.Close()
		return nil, err
	}

	a.Users = repository.NewUserRepository(db)
	offices := repository.NewOfficeRepository(db)
	employees := repository.NewEmployeeRepository(db)
	requests := repository.NewProfileRequestRepository(db)
	tx := repository.NewTxManager(db)

	a.Auth = service.NewAuthService(a.Users, validate, logger, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.ServiceName,
		Audience:          []string{cfg.ServiceName},
	})
	a.Offices = service.NewOfficeService(offices, a.Users, validate, logger, officeOpts...)
	a.Access = service.NewAccessControl(a.Offices)

	a.Docs = service.NewPendingDocumentStore(a.Files, service.DocumentPolicy{
		MaxBytes:     cfg.Storage.MaxFileSizeBytes,
		AllowedMIMEs: cfg.Storage.AllowedMIMEs,
	}, a.Metrics, logger)
	applier := service.NewProfileChangeApplier(employees, a.Docs, logger)

	a.Employee = service.NewEmployeeService(employees, tx, applier, a.Docs, a.Access, a.Users, logger)
	a.Requests = service.NewProfileRequestService(service.ProfileRequestDeps{
		Requests:  requests,
		Employees: employees,
		Tx:        tx,
		Applier:   applier,
		Documents: a.Docs,
		Access:    a.Access,
		Audit:     a.Users,
		Metrics:   a.Metrics,
		Validator: validate,
		Logger:    logger,
	})
	a.Uploads = service.NewDocumentService(employees, requests, a.Requests, tx, a.Docs, a.Access, a.Users, logger)
	a.Janitor = service.NewStagingJanitor(a.Files, requests, a.Docs, cfg.Jobs.StagingTTL, logger)

	a.Cleanup = jobs.NewQueue("cleanup", jobs.Mux{
		service.JobDiscardDocuments: a.Docs.HandleDiscardJob,
		service.JobPruneStaging:     a.Janitor.HandleJob,
	}.Handle, jobs.QueueConfig{
		Workers:    cfg.Jobs.Workers,
		MaxRetries: cfg.Jobs.MaxRetries,
		RetryDelay: 2 * time.Second,
		Logger:     logger,
	})
	return a, nil
}

// StartBackground starts the cleanup queue, routes staged-file discards
// through it and schedules the staging janitor.
func (a *App) StartBackground(ctx context.Context) {
	a.Cleanup.Start(ctx)
	a.Docs.UseCleanupQueue(a.Cleanup)
	a.Cleanup.Every(a.Config.Jobs.StagingPruneInterval, func() jobs.Job {
		return jobs.Job{Type: service.JobPruneStaging}
	})
}

// Close stops background work and releases connections.
func (a *App) Close() {
	if a.Cleanup != nil {
		a.Cleanup.Stop()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Warn("failed to close redis", zap.Error(err))
		}
	}
	if err := a.DB.Close(); err != nil {
		a.Logger.Warn("failed to close postgres", zap.Error(err))
	}
}
