package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/railway-hrm-api/internal/dto"
	"github.com/noah-isme/railway-hrm-api/internal/models"
	"github.com/noah-isme/railway-hrm-api/internal/repository"
	"github.com/noah-isme/railway-hrm-api/pkg/cache"
	appErrors "github.com/noah-isme/railway-hrm-api/pkg/errors"
)

type officeStore interface {
	List(ctx context.Context) ([]models.Office, error)
	FindByID(ctx context.Context, id int64) (*models.Office, error)
	Create(ctx context.Context, office *models.Office) error
	Update(ctx context.Context, office *models.Office) error
	Delete(ctx context.Context, id int64) error
	Usage(ctx context.Context, id int64) (*models.OfficeUsage, error)
	ActiveAdminOfficeIDs(ctx context.Context) ([]int64, error)
	HasActiveAdmin(ctx context.Context, officeID int64) (bool, error)
	EmployeeCounts(ctx context.Context) (map[int64]int, error)
}

type officeCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

var officeForestKey = cache.Key("offices", "forest")

// OfficeService manages the office forest.
type OfficeService struct {
	repo      officeStore
	cache     officeCache
	cacheTTL  time.Duration
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// OfficeServiceOption configures the service.
type OfficeServiceOption func(*OfficeService)

// WithOfficeCache caches the office structure. Admin coverage is never cached.
func WithOfficeCache(c officeCache, ttl time.Duration) OfficeServiceOption {
	return func(s *OfficeService) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

// NewOfficeService constructs the service.
func NewOfficeService(repo officeStore, audit auditLogger, validate *validator.Validate, logger *zap.Logger, opts ...OfficeServiceOption) *OfficeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	svc := &OfficeService{repo: repo, audit: audit, validator: validate, logger: logger}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Hierarchy loads the office forest with the current admin coverage.
func (s *OfficeService) Hierarchy(ctx context.Context) (*OfficeHierarchy, error) {
	offices, err := s.forest(ctx)
	if err != nil {
		return nil, err
	}
	admins, err := s.repo.ActiveAdminOfficeIDs(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load office admins")
	}
	return NewOfficeHierarchy(offices, admins), nil
}

func (s *OfficeService) forest(ctx context.Context) ([]models.Office, error) {
	if s.cache != nil {
		var cached []models.Office
		if hit, _ := s.cache.Get(ctx, officeForestKey, &cached); hit {
			return cached, nil
		}
	}
	offices, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offices")
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, officeForestKey, offices, s.cacheTTL)
	}
	return offices, nil
}

func (s *OfficeService) invalidate(ctx context.Context) {
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, officeForestKey)
	}
}

// List returns every office ordered by name.
func (s *OfficeService) List(ctx context.Context) ([]models.Office, error) {
	return s.forest(ctx)
}

// ListByIDs returns the offices whose ids appear in ids, ordered by name.
func (s *OfficeService) ListByIDs(ctx context.Context, ids []int64) ([]models.Office, error) {
	offices, err := s.forest(ctx)
	if err != nil {
		return nil, err
	}
	wanted := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	out := make([]models.Office, 0, len(ids))
	for _, o := range offices {
		if _, ok := wanted[o.ID]; ok {
			out = append(out, o)
		}
	}
	return out, nil
}

// Get returns one office with its admin coverage and headcount.
func (s *OfficeService) Get(ctx context.Context, id int64) (*models.OfficeNode, error) {
	office, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	hasAdmin, err := s.repo.HasActiveAdmin(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check office admin")
	}
	usage, err := s.repo.Usage(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count office employees")
	}
	return &models.OfficeNode{Office: *office, HasAdmin: hasAdmin, EmployeeCount: usage.Employees, Children: []*models.OfficeNode{}}, nil
}

// Tree renders the forest with admin coverage and headcounts.
func (s *OfficeService) Tree(ctx context.Context) ([]*models.OfficeNode, error) {
	hierarchy, err := s.Hierarchy(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.repo.EmployeeCounts(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count office employees")
	}
	return hierarchy.Tree(counts), nil
}

// Create adds an office. A missing zone is inherited from the parent.
func (s *OfficeService) Create(ctx context.Context, req dto.CreateOfficeRequest, actorID int64) (*models.Office, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid office payload")
	}
	office := &models.Office{
		Name:     strings.TrimSpace(req.Name),
		Code:     strings.TrimSpace(req.Code),
		Location: strings.TrimSpace(req.Location),
		Zone:     req.Zone,
		ParentID: req.ParentID,
	}
	if office.ParentID != nil {
		hierarchy, err := s.Hierarchy(ctx)
		if err != nil {
			return nil, err
		}
		if err := hierarchy.ValidateParent(0, office.ParentID); err != nil {
			return nil, err
		}
		if office.Zone == nil {
			parent, _ := hierarchy.Office(*office.ParentID)
			office.Zone = parent.Zone
		}
	}
	if err := s.repo.Create(ctx, office); err != nil {
		return nil, s.mapWriteError(err, "failed to create office")
	}
	s.invalidate(ctx)
	emitAudit(ctx, s.audit, s.logger, "office-service", &models.AuditLog{
		UserID:     int64Ptr(actorID),
		Action:     models.AuditActionOfficeCreate,
		Resource:   "office",
		ResourceID: int64Ptr(office.ID),
		NewValues:  auditJSON(office),
	})
	return office, nil
}

// Update rewrites an office, refusing parent changes that would form a cycle.
func (s *OfficeService) Update(ctx context.Context, id int64, req dto.UpdateOfficeRequest, actorID int64) (*models.Office, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid office payload")
	}
	office, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	before := *office

	hierarchy, err := s.Hierarchy(ctx)
	if err != nil {
		return nil, err
	}
	if err := hierarchy.ValidateParent(id, req.ParentID); err != nil {
		return nil, err
	}
	office.Name = strings.TrimSpace(req.Name)
	office.Code = strings.TrimSpace(req.Code)
	office.Location = strings.TrimSpace(req.Location)
	office.ParentID = req.ParentID
	if req.Zone != nil {
		office.Zone = req.Zone
	} else if office.Zone == nil && office.ParentID != nil {
		parent, _ := hierarchy.Office(*office.ParentID)
		office.Zone = parent.Zone
	}
	if err := s.repo.Update(ctx, office); err != nil {
		return nil, s.mapWriteError(err, "failed to update office")
	}
	s.invalidate(ctx)
	emitAudit(ctx, s.audit, s.logger, "office-service", &models.AuditLog{
		UserID:     int64Ptr(actorID),
		Action:     models.AuditActionOfficeUpdate,
		Resource:   "office",
		ResourceID: int64Ptr(office.ID),
		OldValues:  auditJSON(before),
		NewValues:  auditJSON(office),
	})
	return office, nil
}

// Delete removes an office that has no children and no employees.
func (s *OfficeService) Delete(ctx context.Context, id int64, actorID int64) error {
	office, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	usage, err := s.repo.Usage(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check office usage")
	}
	if usage.Children > 0 {
		return appErrors.WithDetails(appErrors.Clone(appErrors.ErrConflict, "office has child offices"), "children", usage.Children)
	}
	if usage.Employees > 0 {
		return appErrors.WithDetails(appErrors.Clone(appErrors.ErrConflict, "office has assigned employees"), "employees", usage.Employees)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return s.mapWriteError(err, "failed to delete office")
	}
	s.invalidate(ctx)
	emitAudit(ctx, s.audit, s.logger, "office-service", &models.AuditLog{
		UserID:     int64Ptr(actorID),
		Action:     models.AuditActionOfficeDelete,
		Resource:   "office",
		ResourceID: int64Ptr(id),
		OldValues:  auditJSON(office),
	})
	return nil
}

// Zones lists the accepted office zones.
func (s *OfficeService) Zones() []models.OfficeZone {
	return []models.OfficeZone{models.ZoneCenter, models.ZoneEast, models.ZoneWest}
}

func (s *OfficeService) find(ctx context.Context, id int64) (*models.Office, error) {
	office, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "office not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load office")
	}
	return office, nil
}

func (s *OfficeService) mapWriteError(err error, message string) error {
	switch {
	case errors.Is(err, repository.ErrDuplicateOfficeCode):
		return appErrors.Clone(appErrors.ErrConflict, "office code already exists")
	case errors.Is(err, repository.ErrOfficeInUse):
		return appErrors.Clone(appErrors.ErrConflict, "office is still in use")
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "office not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
