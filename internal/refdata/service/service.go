package service

import (
	"context"
	"log/slog"
	"strings"

	"qualitrack/internal/platform/middleware"
	"qualitrack/internal/refdata/cache"
	"qualitrack/internal/refdata/models"
	"qualitrack/pkg/domain"
	dErrors "qualitrack/pkg/domain-errors"
	"qualitrack/pkg/platform/sentinel"
)

type Store interface {
	CreateDepartmentIfNameAvailable(ctx context.Context, d *models.Department) error
	UpdateDepartment(ctx context.Context, d *models.Department) error
	DeleteDepartment(ctx context.Context, id domain.DepartmentID) error
	FindDepartment(ctx context.Context, id domain.DepartmentID) (*models.Department, error)
	FindDepartmentByName(ctx context.Context, name string) (*models.Department, error)
	ListDepartments(ctx context.Context) ([]*models.Department, error)
	ListPlants(ctx context.Context) ([]*models.Plant, error)
	ListLanguages(ctx context.Context) ([]*models.Language, error)
	FindLanguageByCode(ctx context.Context, code string) (*models.Language, error)
	FindDefaultLanguage(ctx context.Context) (*models.Language, error)
}

// Service manages the reference data that criteria and users point at.
type Service struct {
	store       Store
	departments *cache.DepartmentCache
	logger      *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithDepartmentCache(c *cache.DepartmentCache) Option {
	return func(s *Service) { s.departments = c }
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) CreateDepartment(ctx context.Context, name string) (*models.Department, error) {
	d, err := models.NewDepartment(domain.NewDepartmentID(), name)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	if err := s.store.CreateDepartmentIfNameAvailable(ctx, d); err != nil {
		if dErrors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "department with this name already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create department")
	}
	s.departments.Invalidate(ctx)
	s.logAudit(ctx, "department_created", "department_id", d.ID.String(), "name", d.Name)
	return d, nil
}

func (s *Service) UpdateDepartment(ctx context.Context, id domain.DepartmentID, name string) (*models.Department, error) {
	if strings.TrimSpace(name) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "department name is required")
	}

	d, err := models.NewDepartment(id, name)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, err.Error())
	}

	if err := s.store.UpdateDepartment(ctx, d); err != nil {
		switch {
		case dErrors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "department not found")
		case dErrors.Is(err, sentinel.ErrAlreadyUsed):
			return nil, dErrors.New(dErrors.CodeConflict, "department with this name already exists")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update department")
		}
	}
	s.departments.Invalidate(ctx)
	s.logAudit(ctx, "department_updated", "department_id", id.String(), "name", name)
	return d, nil
}

func (s *Service) DeleteDepartment(ctx context.Context, id domain.DepartmentID) error {
	if err := s.store.DeleteDepartment(ctx, id); err != nil {
		if dErrors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "department not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete department")
	}
	s.departments.Invalidate(ctx)
	s.logAudit(ctx, "department_deleted", "department_id", id.String())
	return nil
}

func (s *Service) GetDepartment(ctx context.Context, id domain.DepartmentID) (*models.Department, error) {
	d, err := s.store.FindDepartment(ctx, id)
	if err != nil {
		if dErrors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "department not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load department")
	}
	return d, nil
}

// ListDepartments serves from the read-through cache when available.
func (s *Service) ListDepartments(ctx context.Context) ([]*models.Department, error) {
	if cached := s.departments.Get(ctx); cached != nil {
		return cached, nil
	}
	departments, err := s.store.ListDepartments(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list departments")
	}
	s.departments.Set(ctx, departments)
	return departments, nil
}

// DepartmentName implements the identity service's DepartmentLookup.
func (s *Service) DepartmentName(ctx context.Context, id domain.DepartmentID) (string, error) {
	d, err := s.store.FindDepartment(ctx, id)
	if err != nil {
		return "", err
	}
	return d.Name, nil
}

func (s *Service) ListPlants(ctx context.Context) ([]*models.Plant, error) {
	plants, err := s.store.ListPlants(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list plants")
	}
	return plants, nil
}

func (s *Service) ListLanguages(ctx context.Context) ([]*models.Language, error) {
	languages, err := s.store.ListLanguages(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list languages")
	}
	return languages, nil
}

func (s *Service) GetLanguageByCode(ctx context.Context, code string) (*models.Language, error) {
	l, err := s.store.FindLanguageByCode(ctx, code)
	if err != nil {
		if dErrors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "language not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load language")
	}
	return l, nil
}

func (s *Service) GetDefaultLanguage(ctx context.Context) (*models.Language, error) {
	l, err := s.store.FindDefaultLanguage(ctx)
	if err != nil {
		if dErrors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no default language configured")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load default language")
	}
	return l, nil
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := middleware.GetRequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}
