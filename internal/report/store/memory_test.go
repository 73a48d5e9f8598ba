package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"

	"qualitrack/internal/report/models"
	"qualitrack/pkg/domain"
	"qualitrack/pkg/platform/sentinel"
)

// =============================================================================
// In-Memory Report Store Test Suite
// =============================================================================
// Justification for store tests: the one-shot fill and single completion
// guarantees live here, and they must hold under concurrent writers.

type MemoryStoreSuite struct {
	suite.Suite
	store *InMemory
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
}

func (s *MemoryStoreSuite) seedReport() (*models.Report, *models.StandardEntry, *models.SpecificEntry) {
	report, err := models.NewReport(domain.NewReportID(), domain.NewProtocolID(), models.Header{}, domain.NewUserID(),
		[]domain.UserID{domain.NewUserID()})
	s.Require().NoError(err)

	standard := models.NewPendingStandardEntry(domain.NewEntryID(), report.ID,
		domain.NewCriterionID(), domain.NewDepartmentID())
	specific := models.NewPendingSpecificEntry(domain.NewEntryID(), report.ID,
		domain.NewCriterionID(), []domain.DepartmentID{domain.NewDepartmentID()})
	form := &models.MaintenanceForm{ReportID: report.ID}

	err = s.store.CreateReport(context.Background(), report,
		[]*models.StandardEntry{standard}, []*models.SpecificEntry{specific}, form)
	s.Require().NoError(err)
	return report, standard, specific
}

func (s *MemoryStoreSuite) TestCreateAndLoad() {
	ctx := context.Background()
	report, standard, specific := s.seedReport()

	found, err := s.store.FindReport(ctx, report.ID)
	s.NoError(err)
	s.Equal(report.ID, found.ID)

	gotStandard, gotSpecific, err := s.store.ListEntries(ctx, report.ID)
	s.NoError(err)
	s.Len(gotStandard, 1)
	s.Len(gotSpecific, 1)
	s.Equal(standard.ID, gotStandard[0].ID)
	s.Equal(specific.ID, gotSpecific[0].ID)

	form, err := s.store.FindMaintenanceForm(ctx, report.ID)
	s.NoError(err)
	s.Equal(report.ID, form.ReportID)
}

func (s *MemoryStoreSuite) TestNotFound() {
	ctx := context.Background()

	_, err := s.store.FindReport(ctx, domain.NewReportID())
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.FindStandardEntry(ctx, domain.NewEntryID())
	s.ErrorIs(err, sentinel.ErrNotFound)

	err = s.store.CompleteReport(ctx, domain.NewReportID())
	s.ErrorIs(err, sentinel.ErrNotFound)

	err = s.store.UpdateMaintenanceGroup(ctx, domain.NewReportID(), models.MaintenanceGroupInput{})
	s.ErrorIs(err, sentinel.ErrNotFound)

	err = s.store.UpdateSafetyGroup(ctx, domain.NewReportID(), true)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestCloneIsolation() {
	ctx := context.Background()
	report, _, _ := s.seedReport()

	found, err := s.store.FindReport(ctx, report.ID)
	s.Require().NoError(err)
	found.AssignedUserIDs[0] = domain.NewUserID()
	found.Completed = true

	again, err := s.store.FindReport(ctx, report.ID)
	s.Require().NoError(err)
	s.Equal(report.AssignedUserIDs, again.AssignedUserIDs)
	s.False(again.Completed)
}

func (s *MemoryStoreSuite) TestConcurrentFillOneWinner() {
	ctx := context.Background()
	_, _, specific := s.seedReport()

	const goroutines = 50
	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int32
	verdict := true

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			filled := *specific
			filled.Homologation = &verdict
			filled.Updated = true
			err := s.store.FillSpecificEntry(ctx, &filled)
			if err == nil {
				successCount.Add(1)
			} else if errors.Is(err, sentinel.ErrConflict) {
				conflictCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one fill should win")
	s.Equal(int32(goroutines-1), conflictCount.Load())
}

func (s *MemoryStoreSuite) TestConcurrentCompleteOneWinner() {
	ctx := context.Background()
	report, _, _ := s.seedReport()

	const goroutines = 50
	var wg sync.WaitGroup
	var successCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.store.CompleteReport(ctx, report.ID); err == nil {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one completion should win")

	found, err := s.store.FindReport(ctx, report.ID)
	s.Require().NoError(err)
	s.True(found.Completed)
}

// TestMaintenanceGroupIsolation verifies each group write touches only
// its own fields, so neither department can clobber the other's data.
func (s *MemoryStoreSuite) TestMaintenanceGroupIsolation() {
	ctx := context.Background()
	report, _, _ := s.seedReport()

	s.Require().NoError(s.store.UpdateSafetyGroup(ctx, report.ID, true))
	s.Require().NoError(s.store.UpdateMaintenanceGroup(ctx, report.ID, models.MaintenanceGroupInput{
		ControlStandard: "EN 60204-1",
		HasTransformer:  true,
	}))

	form, err := s.store.FindMaintenanceForm(ctx, report.ID)
	s.Require().NoError(err)
	s.Equal("EN 60204-1", form.ControlStandard)
	s.True(form.HasTransformer)
	s.True(form.IsInOrder, "maintenance write must not reset the safety flag")

	s.Require().NoError(s.store.UpdateSafetyGroup(ctx, report.ID, false))
	form, err = s.store.FindMaintenanceForm(ctx, report.ID)
	s.Require().NoError(err)
	s.False(form.IsInOrder)
	s.Equal("EN 60204-1", form.ControlStandard, "safety write must not reset the maintenance group")
}

// TestConcurrentGroupWriters races both departments against the same
// form; both writes must land.
func (s *MemoryStoreSuite) TestConcurrentGroupWriters() {
	ctx := context.Background()
	report, _, _ := s.seedReport()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = s.store.UpdateMaintenanceGroup(ctx, report.ID, models.MaintenanceGroupInput{ControlStandard: "EN 60204-1"})
	}()
	go func() {
		defer wg.Done()
		_ = s.store.UpdateSafetyGroup(ctx, report.ID, true)
	}()
	wg.Wait()

	form, err := s.store.FindMaintenanceForm(ctx, report.ID)
	s.Require().NoError(err)
	s.Equal("EN 60204-1", form.ControlStandard)
	s.True(form.IsInOrder)
}

func (s *MemoryStoreSuite) TestListFilters() {
	ctx := context.Background()
	report, _, _ := s.seedReport()
	assigned := report.AssignedUserIDs[0]

	byCreator, err := s.store.ListReportsCreatedBy(ctx, report.CreatedBy)
	s.NoError(err)
	s.Len(byCreator, 1)

	byAssignee, err := s.store.ListReportsAssignedTo(ctx, assigned)
	s.NoError(err)
	s.Len(byAssignee, 1)

	none, err := s.store.ListReportsAssignedTo(ctx, domain.NewUserID())
	s.NoError(err)
	s.Empty(none)
}
