package service

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"qualitrack/internal/platform/metrics"
	"qualitrack/internal/platform/middleware"
	protocolmodels "qualitrack/internal/protocol/models"
	"qualitrack/internal/report/expand"
	"qualitrack/internal/report/models"
	"qualitrack/pkg/domain"
	dErrors "qualitrack/pkg/domain-errors"
	"qualitrack/pkg/platform/sentinel"
)

type Store interface {
	CreateReport(ctx context.Context, r *models.Report, standard []*models.StandardEntry, specific []*models.SpecificEntry, form *models.MaintenanceForm) error
	FindReport(ctx context.Context, id domain.ReportID) (*models.Report, error)
	ListReports(ctx context.Context) ([]*models.Report, error)
	ListReportsCreatedBy(ctx context.Context, userID domain.UserID) ([]*models.Report, error)
	ListReportsAssignedTo(ctx context.Context, userID domain.UserID) ([]*models.Report, error)
	ListEntries(ctx context.Context, reportID domain.ReportID) ([]*models.StandardEntry, []*models.SpecificEntry, error)
	FindStandardEntry(ctx context.Context, id domain.EntryID) (*models.StandardEntry, error)
	FindSpecificEntry(ctx context.Context, id domain.EntryID) (*models.SpecificEntry, error)
	FillStandardEntry(ctx context.Context, e *models.StandardEntry) error
	FillSpecificEntry(ctx context.Context, e *models.SpecificEntry) error
	CompleteReport(ctx context.Context, id domain.ReportID) error
	FindMaintenanceForm(ctx context.Context, reportID domain.ReportID) (*models.MaintenanceForm, error)
	UpdateMaintenanceGroup(ctx context.Context, reportID domain.ReportID, in models.MaintenanceGroupInput) error
	UpdateSafetyGroup(ctx context.Context, reportID domain.ReportID, isInOrder bool) error
}

// ProtocolDirectory is the slice of the protocol service the report
// workflow needs.
type ProtocolDirectory interface {
	GetProtocol(ctx context.Context, id domain.ProtocolID) (*protocolmodels.Protocol, error)
	ListStandardCriteria(ctx context.Context) ([]*protocolmodels.StandardCriterion, error)
}

// UserDirectory resolves assigned user ids against the identity service.
type UserDirectory interface {
	LookupPrincipal(ctx context.Context, id domain.UserID) (domain.Principal, error)
}

// Config names the two departments with special maintenance-form access.
// Matching is on the trimmed, lower-cased department name.
type Config struct {
	MaintenanceDepartment string
	SafetyDepartment      string
}

// Service drives the report workflow: creation with criteria expansion,
// one-shot entry fills, completion and the maintenance form.
type Service struct {
	store     Store
	protocols ProtocolDirectory
	users     UserDirectory
	cfg       Config
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(store Store, protocols ProtocolDirectory, users UserDirectory, cfg Config, opts ...Option) *Service {
	cfg.MaintenanceDepartment = normalizeDepartmentName(cfg.MaintenanceDepartment)
	cfg.SafetyDepartment = normalizeDepartmentName(cfg.SafetyDepartment)

	s := &Service{
		store:     store,
		protocols: protocols,
		users:     users,
		cfg:       cfg,
		logger:    slog.Default(),
		tracer:    otel.Tracer("qualitrack/internal/report"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateInput struct {
	ProtocolID  domain.ProtocolID
	Header      models.Header
	Assignments map[domain.DepartmentID]domain.UserID
}

// Detail is a report with everything attached to it.
type Detail struct {
	Report          *models.Report          `json:"report"`
	StandardEntries []*models.StandardEntry `json:"standardEntries"`
	SpecificEntries []*models.SpecificEntry `json:"specificEntries"`
	MaintenanceForm *models.MaintenanceForm `json:"maintenanceForm"`
}

// Create expands the protocol into pending entries and stores the whole
// aggregate atomically. Department managers only. The assignment map must
// cover every department any criterion names; user ids that do not resolve
// are dropped, not rejected.
func (s *Service) Create(ctx context.Context, actor domain.Principal, input CreateInput) (*Detail, error) {
	ctx, span := s.tracer.Start(ctx, "report.Create",
		trace.WithAttributes(attribute.String("protocol.id", input.ProtocolID.String())))
	defer span.End()

	if !actor.IsDepartmentManager() {
		s.denied("create_report")
		return nil, dErrors.New(dErrors.CodeForbidden, "only department managers can create reports")
	}

	protocol, err := s.protocols.GetProtocol(ctx, input.ProtocolID)
	if err != nil {
		return nil, err
	}
	standard, err := s.protocols.ListStandardCriteria(ctx)
	if err != nil {
		return nil, err
	}

	expansion := expand.Expand(standard, protocol.SpecificCriteria)

	var missing []string
	for dept := range expansion.RequiredDepartments {
		if _, ok := input.Assignments[dept]; !ok {
			missing = append(missing, dept.String())
		}
	}
	if len(missing) > 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "every responsible department needs an assigned user").
			WithDetail("missingDepartments", missing)
	}

	assigned := make([]domain.UserID, 0, len(input.Assignments))
	for dept, userID := range input.Assignments {
		if _, err := s.users.LookupPrincipal(ctx, userID); err != nil {
			// The identity service reports unknown users as unauthorized
			// when resolving principals; both spellings mean unresolved here.
			if dErrors.HasCode(err, dErrors.CodeNotFound) || dErrors.HasCode(err, dErrors.CodeUnauthorized) {
				s.logger.WarnContext(ctx, "dropping unresolved assigned user",
					"user_id", userID.String(),
					"department_id", dept.String(),
				)
				continue
			}
			return nil, err
		}
		assigned = append(assigned, userID)
	}

	report, err := models.NewReport(domain.NewReportID(), protocol.ID, input.Header, actor.UserID, assigned)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, err.Error())
	}

	standardEntries := make([]*models.StandardEntry, 0, len(expansion.Standard))
	for _, d := range expansion.Standard {
		standardEntries = append(standardEntries,
			models.NewPendingStandardEntry(domain.NewEntryID(), report.ID, d.CriterionID, d.CheckDepartmentID))
	}
	specificEntries := make([]*models.SpecificEntry, 0, len(expansion.Specific))
	for _, d := range expansion.Specific {
		specificEntries = append(specificEntries,
			models.NewPendingSpecificEntry(domain.NewEntryID(), report.ID, d.CriterionID, d.CheckDepartmentIDs))
	}
	form := &models.MaintenanceForm{ReportID: report.ID}

	if err := s.store.CreateReport(ctx, report, standardEntries, specificEntries, form); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create report")
	}

	if s.metrics != nil {
		s.metrics.ReportsCreated.Inc()
	}
	s.logAudit(ctx, "report_created",
		"report_id", report.ID.String(),
		"protocol_id", protocol.ID.String(),
		"entry_count", len(standardEntries)+len(specificEntries),
		"assigned_count", len(assigned),
		"user_id", actor.UserID.String(),
	)
	return &Detail{
		Report:          report,
		StandardEntries: standardEntries,
		SpecificEntries: specificEntries,
		MaintenanceForm: form,
	}, nil
}

// Get returns the full aggregate to its creator, an assigned user or an
// administrator.
func (s *Service) Get(ctx context.Context, actor domain.Principal, id domain.ReportID) (*Detail, error) {
	report, err := s.findReport(ctx, id)
	if err != nil {
		return nil, err
	}
	if !report.CanView(actor) {
		s.denied("get_report")
		return nil, dErrors.New(dErrors.CodeForbidden, "you do not have access to this report")
	}

	standard, specific, err := s.store.ListEntries(ctx, id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load report entries")
	}
	form, err := s.store.FindMaintenanceForm(ctx, id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load maintenance form")
	}
	return &Detail{Report: report, StandardEntries: standard, SpecificEntries: specific, MaintenanceForm: form}, nil
}

// ListAll is open to any authenticated user; the original system exposes
// the report index without scoping.
func (s *Service) ListAll(ctx context.Context) ([]*models.Report, error) {
	reports, err := s.store.ListReports(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list reports")
	}
	return reports, nil
}

func (s *Service) ListCreatedBy(ctx context.Context, actor domain.Principal) ([]*models.Report, error) {
	reports, err := s.store.ListReportsCreatedBy(ctx, actor.UserID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list created reports")
	}
	return reports, nil
}

func (s *Service) ListAssignedTo(ctx context.Context, actor domain.Principal) ([]*models.Report, error) {
	reports, err := s.store.ListReportsAssignedTo(ctx, actor.UserID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list assigned reports")
	}
	return reports, nil
}

// FillStandardEntry records the verdict on a standard entry. Guard order:
// unknown entry, authorization, already filled, then input validation.
func (s *Service) FillStandardEntry(ctx context.Context, actor domain.Principal, id domain.EntryID, input models.FillInput) (*models.StandardEntry, error) {
	ctx, span := s.tracer.Start(ctx, "report.FillStandardEntry")
	defer span.End()

	entry, err := s.store.FindStandardEntry(ctx, id)
	if err != nil {
		if dErrors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "entry not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load entry")
	}
	if err := s.guardFill(ctx, actor, entry, "fill_standard_entry"); err != nil {
		return nil, err
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}

	entry.ApplyFill(input)
	if err := s.store.FillStandardEntry(ctx, entry); err != nil {
		return nil, fillStoreError(err)
	}

	if s.metrics != nil {
		s.metrics.EntriesFilled.WithLabelValues("standard").Inc()
	}
	s.logAudit(ctx, "entry_filled",
		"entry_id", entry.ID.String(),
		"report_id", entry.ReportID.String(),
		"entry_kind", "standard",
		"user_id", actor.UserID.String(),
	)
	return entry, nil
}

// FillSpecificEntry mirrors FillStandardEntry for protocol criteria.
func (s *Service) FillSpecificEntry(ctx context.Context, actor domain.Principal, id domain.EntryID, input models.FillInput) (*models.SpecificEntry, error) {
	ctx, span := s.tracer.Start(ctx, "report.FillSpecificEntry")
	defer span.End()

	entry, err := s.store.FindSpecificEntry(ctx, id)
	if err != nil {
		if dErrors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "entry not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load entry")
	}
	if err := s.guardFill(ctx, actor, entry, "fill_specific_entry"); err != nil {
		return nil, err
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}

	entry.ApplyFill(input)
	if err := s.store.FillSpecificEntry(ctx, entry); err != nil {
		return nil, fillStoreError(err)
	}

	if s.metrics != nil {
		s.metrics.EntriesFilled.WithLabelValues("specific").Inc()
	}
	s.logAudit(ctx, "entry_filled",
		"entry_id", entry.ID.String(),
		"report_id", entry.ReportID.String(),
		"entry_kind", "specific",
		"user_id", actor.UserID.String(),
	)
	return entry, nil
}

// guardFill enforces the shared fill preconditions: the actor must be
// assigned to the report and their department must sit in the entry's
// check-responsible set, and only then does the one-shot flag matter.
// An unauthorized caller always sees Forbidden, never the entry's fill
// state.
func (s *Service) guardFill(ctx context.Context, actor domain.Principal, entry models.CheckableEntry, operation string) error {
	report, err := s.findReport(ctx, entry.OwningReport())
	if err != nil {
		return err
	}
	if !report.IsAssigned(actor.UserID) || !containsDepartment(entry.CheckDepartments(), actor.DepartmentID) {
		s.denied(operation)
		return dErrors.New(dErrors.CodeForbidden, "only an assigned user from a check-responsible department can fill this entry")
	}

	if entry.IsUpdated() {
		return dErrors.New(dErrors.CodeConflict, "entry has already been filled")
	}
	return nil
}

// Complete flips the completed flag exactly once. Completion does not
// require every entry to be filled.
func (s *Service) Complete(ctx context.Context, actor domain.Principal, id domain.ReportID) (*models.Report, error) {
	ctx, span := s.tracer.Start(ctx, "report.Complete",
		trace.WithAttributes(attribute.String("report.id", id.String())))
	defer span.End()

	report, err := s.findReport(ctx, id)
	if err != nil {
		return nil, err
	}
	if !report.CanComplete(actor) {
		s.denied("complete_report")
		return nil, dErrors.New(dErrors.CodeForbidden, "you do not have access to this report")
	}

	if err := s.store.CompleteReport(ctx, id); err != nil {
		switch {
		case dErrors.Is(err, sentinel.ErrConflict):
			return nil, dErrors.New(dErrors.CodeConflict, "report is already completed")
		case dErrors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "report not found")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to complete report")
		}
	}
	report.Completed = true

	if s.metrics != nil {
		s.metrics.ReportsCompleted.Inc()
	}
	s.logAudit(ctx, "report_completed",
		"report_id", id.String(),
		"user_id", actor.UserID.String(),
	)
	return report, nil
}

// MaintenanceFormInput carries both field groups; which one is applied
// depends on the acting user's department.
type MaintenanceFormInput struct {
	models.MaintenanceGroupInput
	IsInOrder bool `json:"isInOrder"`
}

// UpdateMaintenanceForm routes the write by department name: the
// maintenance department owns the electrical group, the safety department
// owns IsInOrder, everyone else is rejected.
func (s *Service) UpdateMaintenanceForm(ctx context.Context, actor domain.Principal, reportID domain.ReportID, input MaintenanceFormInput) (*models.MaintenanceForm, error) {
	ctx, span := s.tracer.Start(ctx, "report.UpdateMaintenanceForm",
		trace.WithAttributes(attribute.String("report.id", reportID.String())))
	defer span.End()

	report, err := s.findReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if !report.IsAssigned(actor.UserID) {
		s.denied("update_maintenance_form")
		return nil, dErrors.New(dErrors.CodeForbidden, "only assigned users can update the maintenance form")
	}

	// Each department writes only its own columns, so two departments
	// can never clobber each other's group regardless of interleaving.
	var group string
	switch normalizeDepartmentName(actor.DepartmentName) {
	case s.cfg.MaintenanceDepartment:
		group = "maintenance"
		err = s.store.UpdateMaintenanceGroup(ctx, reportID, input.MaintenanceGroupInput)
	case s.cfg.SafetyDepartment:
		group = "safety"
		err = s.store.UpdateSafetyGroup(ctx, reportID, input.IsInOrder)
	default:
		s.denied("update_maintenance_form")
		return nil, dErrors.New(dErrors.CodeForbidden, "your department cannot edit the maintenance form")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update maintenance form")
	}

	form, err := s.store.FindMaintenanceForm(ctx, reportID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load maintenance form")
	}
	s.logAudit(ctx, "maintenance_form_updated",
		"report_id", reportID.String(),
		"field_group", group,
		"user_id", actor.UserID.String(),
	)
	return form, nil
}

func (s *Service) findReport(ctx context.Context, id domain.ReportID) (*models.Report, error) {
	report, err := s.store.FindReport(ctx, id)
	if err != nil {
		if dErrors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "report not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load report")
	}
	return report, nil
}

func (s *Service) denied(operation string) {
	if s.metrics != nil {
		s.metrics.AuthorizationDenied.WithLabelValues(operation).Inc()
	}
}

func fillStoreError(err error) error {
	if dErrors.Is(err, sentinel.ErrConflict) {
		return dErrors.New(dErrors.CodeConflict, "entry has already been filled")
	}
	if dErrors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "entry not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save entry")
}

func containsDepartment(ids []domain.DepartmentID, id domain.DepartmentID) bool {
	for _, d := range ids {
		if d == id {
			return true
		}
	}
	return false
}

func normalizeDepartmentName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := middleware.GetRequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}
