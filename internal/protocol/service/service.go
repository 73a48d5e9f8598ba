package service

import (
	"context"
	"log/slog"

	"qualitrack/internal/platform/metrics"
	"qualitrack/internal/platform/middleware"
	"qualitrack/internal/protocol/models"
	"qualitrack/pkg/domain"
	dErrors "qualitrack/pkg/domain-errors"
	"qualitrack/pkg/platform/sentinel"
)

type Store interface {
	SaveProtocol(ctx context.Context, p *models.Protocol) error
	FindProtocol(ctx context.Context, id domain.ProtocolID) (*models.Protocol, error)
	ListProtocols(ctx context.Context) ([]*models.Protocol, error)
	SaveStandardCriterion(ctx context.Context, c *models.StandardCriterion) error
	ListStandardCriteria(ctx context.Context) ([]*models.StandardCriterion, error)
}

// Service manages qualification protocols and the standard criteria catalog.
type Service struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type SpecificCriterionInput struct {
	Description                 string
	ImplementationDepartmentIDs []domain.DepartmentID
	CheckDepartmentIDs          []domain.DepartmentID
}

type CreateProtocolInput struct {
	Name     string
	Type     string
	Criteria []SpecificCriterionInput
}

// CreateProtocol registers a protocol with its specific criteria. Criteria
// whose department sets resolve to empty are skipped, not rejected; the
// protocol itself may legitimately carry zero specific criteria.
func (s *Service) CreateProtocol(ctx context.Context, actor domain.Principal, input CreateProtocolInput) (*models.Protocol, error) {
	protocolType, err := models.ParseProtocolType(input.Type)
	if err != nil {
		return nil, err
	}

	p, err := models.NewProtocol(domain.NewProtocolID(), input.Name, protocolType, actor.UserID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, err.Error())
	}

	for _, in := range input.Criteria {
		c, err := models.NewSpecificCriterion(domain.NewCriterionID(), p.ID, in.Description,
			in.ImplementationDepartmentIDs, in.CheckDepartmentIDs)
		if err != nil {
			s.logger.WarnContext(ctx, "skipping specific criterion",
				"protocol_name", p.Name,
				"reason", err.Error(),
			)
			continue
		}
		p.SpecificCriteria = append(p.SpecificCriteria, c)
	}

	if err := s.store.SaveProtocol(ctx, p); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save protocol")
	}

	if s.metrics != nil {
		s.metrics.ProtocolsCreated.Inc()
	}
	s.logAudit(ctx, "protocol_created",
		"protocol_id", p.ID.String(),
		"protocol_type", string(p.Type),
		"criteria_count", len(p.SpecificCriteria),
		"user_id", actor.UserID.String(),
	)
	return p, nil
}

func (s *Service) GetProtocol(ctx context.Context, id domain.ProtocolID) (*models.Protocol, error) {
	p, err := s.store.FindProtocol(ctx, id)
	if err != nil {
		if dErrors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "protocol not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load protocol")
	}
	return p, nil
}

func (s *Service) ListProtocols(ctx context.Context) ([]*models.Protocol, error) {
	protocols, err := s.store.ListProtocols(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list protocols")
	}
	return protocols, nil
}

// Criteria is the full checklist a report against the protocol expands to.
type Criteria struct {
	Standard []*models.StandardCriterion `json:"standard"`
	Specific []*models.SpecificCriterion `json:"specific"`
}

// ListProtocolCriteria returns the shared standard catalog together with the
// protocol's own specific criteria.
func (s *Service) ListProtocolCriteria(ctx context.Context, id domain.ProtocolID) (*Criteria, error) {
	p, err := s.GetProtocol(ctx, id)
	if err != nil {
		return nil, err
	}
	standard, err := s.store.ListStandardCriteria(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list standard criteria")
	}
	return &Criteria{Standard: standard, Specific: p.SpecificCriteria}, nil
}

type CreateStandardCriterionInput struct {
	Description                string
	ImplementationDepartmentID domain.DepartmentID
	CheckDepartmentID          domain.DepartmentID
}

// CreateStandardCriterion adds a catalog item. Administrators only; the
// catalog applies to every report in the system.
func (s *Service) CreateStandardCriterion(ctx context.Context, actor domain.Principal, input CreateStandardCriterionInput) (*models.StandardCriterion, error) {
	if !actor.IsAdmin() {
		return nil, dErrors.New(dErrors.CodeForbidden, "only administrators can manage the standard criteria catalog")
	}

	c, err := models.NewStandardCriterion(domain.NewCriterionID(), input.Description,
		input.ImplementationDepartmentID, input.CheckDepartmentID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, err.Error())
	}

	if err := s.store.SaveStandardCriterion(ctx, c); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save standard criterion")
	}
	s.logAudit(ctx, "standard_criterion_created",
		"criterion_id", c.ID.String(),
		"user_id", actor.UserID.String(),
	)
	return c, nil
}

func (s *Service) ListStandardCriteria(ctx context.Context) ([]*models.StandardCriterion, error) {
	criteria, err := s.store.ListStandardCriteria(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list standard criteria")
	}
	return criteria, nil
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := middleware.GetRequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}
