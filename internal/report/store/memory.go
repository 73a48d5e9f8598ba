package store

import (
	"context"
	"sync"

	"qualitrack/internal/report/models"
	"qualitrack/pkg/domain"
	"qualitrack/pkg/platform/sentinel"
)

// InMemory keeps reports, their entries and maintenance forms in maps for
// tests and local development. One-shot and completion guarantees are
// enforced under the store lock, mirroring the conditional updates of the
// postgres store.
type InMemory struct {
	mu       sync.RWMutex
	reports  map[domain.ReportID]*models.Report
	standard map[domain.EntryID]*models.StandardEntry
	specific map[domain.EntryID]*models.SpecificEntry
	forms    map[domain.ReportID]*models.MaintenanceForm
}

func NewInMemory() *InMemory {
	return &InMemory{
		reports:  make(map[domain.ReportID]*models.Report),
		standard: make(map[domain.EntryID]*models.StandardEntry),
		specific: make(map[domain.EntryID]*models.SpecificEntry),
		forms:    make(map[domain.ReportID]*models.MaintenanceForm),
	}
}

// CreateReport stores the report with all its entries and the empty form
// as one unit.
func (s *InMemory) CreateReport(_ context.Context, r *models.Report, standard []*models.StandardEntry, specific []*models.SpecificEntry, form *models.MaintenanceForm) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reports[r.ID]; ok {
		return sentinel.ErrConflict
	}
	s.reports[r.ID] = cloneReport(r)
	for _, e := range standard {
		s.standard[e.ID] = cloneStandard(e)
	}
	for _, e := range specific {
		s.specific[e.ID] = cloneSpecific(e)
	}
	formClone := *form
	s.forms[r.ID] = &formClone
	return nil
}

func (s *InMemory) FindReport(_ context.Context, id domain.ReportID) (*models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reports[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneReport(r), nil
}

func (s *InMemory) ListReports(_ context.Context) ([]*models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Report, 0, len(s.reports))
	for _, r := range s.reports {
		out = append(out, cloneReport(r))
	}
	return out, nil
}

func (s *InMemory) ListReportsCreatedBy(_ context.Context, userID domain.UserID) ([]*models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Report
	for _, r := range s.reports {
		if r.CreatedBy == userID {
			out = append(out, cloneReport(r))
		}
	}
	return out, nil
}

func (s *InMemory) ListReportsAssignedTo(_ context.Context, userID domain.UserID) ([]*models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Report
	for _, r := range s.reports {
		if r.IsAssigned(userID) {
			out = append(out, cloneReport(r))
		}
	}
	return out, nil
}

func (s *InMemory) ListEntries(_ context.Context, reportID domain.ReportID) ([]*models.StandardEntry, []*models.SpecificEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var standard []*models.StandardEntry
	for _, e := range s.standard {
		if e.ReportID == reportID {
			standard = append(standard, cloneStandard(e))
		}
	}
	var specific []*models.SpecificEntry
	for _, e := range s.specific {
		if e.ReportID == reportID {
			specific = append(specific, cloneSpecific(e))
		}
	}
	return standard, specific, nil
}

func (s *InMemory) FindStandardEntry(_ context.Context, id domain.EntryID) (*models.StandardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.standard[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneStandard(e), nil
}

func (s *InMemory) FindSpecificEntry(_ context.Context, id domain.EntryID) (*models.SpecificEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.specific[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneSpecific(e), nil
}

// FillStandardEntry persists the filled entry only if the stored copy has
// not been filled yet. A lost race surfaces as ErrConflict.
func (s *InMemory) FillStandardEntry(_ context.Context, e *models.StandardEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.standard[e.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Updated {
		return sentinel.ErrConflict
	}
	s.standard[e.ID] = cloneStandard(e)
	return nil
}

func (s *InMemory) FillSpecificEntry(_ context.Context, e *models.SpecificEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.specific[e.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Updated {
		return sentinel.ErrConflict
	}
	s.specific[e.ID] = cloneSpecific(e)
	return nil
}

// CompleteReport flips the completed flag exactly once.
func (s *InMemory) CompleteReport(_ context.Context, id domain.ReportID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reports[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if r.Completed {
		return sentinel.ErrConflict
	}
	r.Completed = true
	return nil
}

func (s *InMemory) FindMaintenanceForm(_ context.Context, reportID domain.ReportID) (*models.MaintenanceForm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.forms[reportID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *f
	return &clone, nil
}

// UpdateMaintenanceGroup rewrites the maintenance-owned fields under the
// store lock, leaving IsInOrder as it stands.
func (s *InMemory) UpdateMaintenanceGroup(_ context.Context, reportID domain.ReportID, in models.MaintenanceGroupInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.forms[reportID]
	if !ok {
		return sentinel.ErrNotFound
	}
	f.ApplyMaintenanceGroup(in)
	return nil
}

// UpdateSafetyGroup flips only the safety-owned flag.
func (s *InMemory) UpdateSafetyGroup(_ context.Context, reportID domain.ReportID, isInOrder bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.forms[reportID]
	if !ok {
		return sentinel.ErrNotFound
	}
	f.ApplySafetyGroup(isInOrder)
	return nil
}

func cloneReport(r *models.Report) *models.Report {
	clone := *r
	clone.AssignedUserIDs = append([]domain.UserID(nil), r.AssignedUserIDs...)
	return &clone
}

func cloneStandard(e *models.StandardEntry) *models.StandardEntry {
	clone := *e
	clone.Implemented = cloneBool(e.Implemented)
	clone.Action = cloneString(e.Action)
	clone.ResponsibleAction = cloneString(e.ResponsibleAction)
	clone.Deadline = cloneString(e.Deadline)
	clone.SuccessControl = cloneString(e.SuccessControl)
	return &clone
}

func cloneSpecific(e *models.SpecificEntry) *models.SpecificEntry {
	clone := *e
	clone.CheckDepartmentIDs = append([]domain.DepartmentID(nil), e.CheckDepartmentIDs...)
	clone.Homologation = cloneBool(e.Homologation)
	clone.Action = cloneString(e.Action)
	clone.ResponsibleAction = cloneString(e.ResponsibleAction)
	clone.Deadline = cloneString(e.Deadline)
	clone.SuccessControl = cloneString(e.SuccessControl)
	return &clone
}

func cloneBool(p *bool) *bool {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
