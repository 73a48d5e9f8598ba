package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	protocolservice "qualitrack/internal/protocol/service"
	protocolstore "qualitrack/internal/protocol/store"
	"qualitrack/internal/report/models"
	"qualitrack/internal/report/store"
	"qualitrack/pkg/domain"
	dErrors "qualitrack/pkg/domain-errors"
)

// =============================================================================
// Report Service Test Suite
// =============================================================================
// Justification for unit tests: the report workflow concentrates every
// authorization rule of the system (creator/assigned/admin visibility, the
// department-membership fill guard, the department-name form branch) plus the
// one-shot and completion invariants. These are exercised here against the
// in-memory stores.

type fakeUserDirectory struct {
	users map[domain.UserID]domain.Principal
}

func (f *fakeUserDirectory) LookupPrincipal(_ context.Context, id domain.UserID) (domain.Principal, error) {
	p, ok := f.users[id]
	if !ok {
		return domain.Principal{}, dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	return p, nil
}

type ReportServiceSuite struct {
	suite.Suite
	store     *store.InMemory
	protocols *protocolservice.Service
	users     *fakeUserDirectory
	service   *Service

	implDept  domain.DepartmentID
	checkDept domain.DepartmentID
	maintDept domain.DepartmentID
	sheDept   domain.DepartmentID

	manager   domain.Principal // department manager, creator of reports
	inspector domain.Principal // member of the check department
	admin     domain.Principal
	outsider  domain.Principal
}

func TestReportServiceSuite(t *testing.T) {
	suite.Run(t, new(ReportServiceSuite))
}

func (s *ReportServiceSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.protocols = protocolservice.New(protocolstore.NewInMemory())

	s.implDept = domain.NewDepartmentID()
	s.checkDept = domain.NewDepartmentID()
	s.maintDept = domain.NewDepartmentID()
	s.sheDept = domain.NewDepartmentID()

	s.manager = domain.Principal{
		UserID:         domain.NewUserID(),
		Role:           domain.RoleDepartmentManager,
		DepartmentID:   s.implDept,
		DepartmentName: "Engineering",
	}
	s.inspector = domain.Principal{
		UserID:         domain.NewUserID(),
		Role:           domain.RoleUser,
		DepartmentID:   s.checkDept,
		DepartmentName: "Quality",
	}
	s.admin = domain.Principal{
		UserID: domain.NewUserID(),
		Role:   domain.RoleAdmin,
	}
	s.outsider = domain.Principal{
		UserID:         domain.NewUserID(),
		Role:           domain.RoleUser,
		DepartmentID:   domain.NewDepartmentID(),
		DepartmentName: "Logistics",
	}

	s.users = &fakeUserDirectory{users: map[domain.UserID]domain.Principal{
		s.manager.UserID:   s.manager,
		s.inspector.UserID: s.inspector,
		s.outsider.UserID:  s.outsider,
	}}

	s.service = New(s.store, s.protocols, s.users, Config{
		MaintenanceDepartment: "Maintenance System",
		SafetyDepartment:      "SHE",
	})
}

// createProtocol registers a protocol with one specific criterion checked
// by checkDept and implemented by implDept.
func (s *ReportServiceSuite) createProtocol() domain.ProtocolID {
	p, err := s.protocols.CreateProtocol(context.Background(), s.manager, protocolservice.CreateProtocolInput{
		Name: "Press qualification",
		Type: "HOMOLOGATION",
		Criteria: []protocolservice.SpecificCriterionInput{
			{
				Description:                 "Safety light curtain response time",
				ImplementationDepartmentIDs: []domain.DepartmentID{s.implDept},
				CheckDepartmentIDs:          []domain.DepartmentID{s.checkDept},
			},
		},
	})
	s.Require().NoError(err)
	return p.ID
}

func (s *ReportServiceSuite) createReport(protocolID domain.ProtocolID) *Detail {
	detail, err := s.service.Create(context.Background(), s.manager, CreateInput{
		ProtocolID: protocolID,
		Header:     models.Header{EquipmentDescription: "Hydraulic press", SerialNumber: "HP-12"},
		Assignments: map[domain.DepartmentID]domain.UserID{
			s.implDept:  s.manager.UserID,
			s.checkDept: s.inspector.UserID,
		},
	})
	s.Require().NoError(err)
	return detail
}

func boolPtr(v bool) *bool { return &v }

// =============================================================================
// Create Tests
// =============================================================================

func (s *ReportServiceSuite) TestCreate() {
	ctx := context.Background()

	s.Run("non-manager is forbidden", func() {
		protocolID := s.createProtocol()
		_, err := s.service.Create(ctx, s.inspector, CreateInput{ProtocolID: protocolID})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("unknown protocol returns not found", func() {
		_, err := s.service.Create(ctx, s.manager, CreateInput{ProtocolID: domain.NewProtocolID()})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("missing department assignment is rejected with the missing ids", func() {
		protocolID := s.createProtocol()
		_, err := s.service.Create(ctx, s.manager, CreateInput{
			ProtocolID: protocolID,
			Assignments: map[domain.DepartmentID]domain.UserID{
				s.implDept: s.manager.UserID,
			},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		var dErr *dErrors.Error
		s.Require().True(dErrors.As(err, &dErr))
		s.Contains(dErr.Details["missingDepartments"], s.checkDept.String())
	})

	s.Run("creates pending entries and an empty form", func() {
		protocolID := s.createProtocol()
		detail := s.createReport(protocolID)

		s.Equal(s.manager.UserID, detail.Report.CreatedBy)
		s.False(detail.Report.Completed)
		s.ElementsMatch([]domain.UserID{s.manager.UserID, s.inspector.UserID}, detail.Report.AssignedUserIDs)

		s.Require().Len(detail.SpecificEntries, 1)
		entry := detail.SpecificEntries[0]
		s.Nil(entry.Homologation)
		s.False(entry.Updated)
		s.Require().NotNil(entry.Action)
		s.Empty(*entry.Action)
		s.Equal([]domain.DepartmentID{s.checkDept}, entry.CheckDepartmentIDs)

		s.NotNil(detail.MaintenanceForm)
		s.False(detail.MaintenanceForm.IsInOrder)

		stored, err := s.store.FindReport(ctx, detail.Report.ID)
		s.NoError(err)
		s.Equal(detail.Report.ID, stored.ID)
	})

	s.Run("unresolved assigned users are dropped silently", func() {
		protocolID := s.createProtocol()
		ghost := domain.NewUserID()
		detail, err := s.service.Create(ctx, s.manager, CreateInput{
			ProtocolID: protocolID,
			Assignments: map[domain.DepartmentID]domain.UserID{
				s.implDept:  ghost,
				s.checkDept: s.inspector.UserID,
			},
		})
		s.NoError(err)
		s.ElementsMatch([]domain.UserID{s.inspector.UserID}, detail.Report.AssignedUserIDs)
	})

	s.Run("duplicate user across departments appears once", func() {
		protocolID := s.createProtocol()
		detail, err := s.service.Create(ctx, s.manager, CreateInput{
			ProtocolID: protocolID,
			Assignments: map[domain.DepartmentID]domain.UserID{
				s.implDept:  s.inspector.UserID,
				s.checkDept: s.inspector.UserID,
			},
		})
		s.NoError(err)
		s.Equal([]domain.UserID{s.inspector.UserID}, detail.Report.AssignedUserIDs)
	})
}

// =============================================================================
// Get / List Tests
// =============================================================================

func (s *ReportServiceSuite) TestGet() {
	ctx := context.Background()
	protocolID := s.createProtocol()
	detail := s.createReport(protocolID)

	s.Run("unknown report returns not found", func() {
		_, err := s.service.Get(ctx, s.manager, domain.NewReportID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("outsider is forbidden", func() {
		_, err := s.service.Get(ctx, s.outsider, detail.Report.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("creator, assigned user and admin can read", func() {
		for _, p := range []domain.Principal{s.manager, s.inspector, s.admin} {
			got, err := s.service.Get(ctx, p, detail.Report.ID)
			s.NoError(err)
			s.Len(got.SpecificEntries, 1)
			s.NotNil(got.MaintenanceForm)
		}
	})
}

func (s *ReportServiceSuite) TestLists() {
	ctx := context.Background()
	protocolID := s.createProtocol()
	detail := s.createReport(protocolID)

	s.Run("list all is unscoped", func() {
		reports, err := s.service.ListAll(ctx)
		s.NoError(err)
		s.Len(reports, 1)
	})

	s.Run("created-by filters on the actor", func() {
		reports, err := s.service.ListCreatedBy(ctx, s.manager)
		s.NoError(err)
		s.Len(reports, 1)

		reports, err = s.service.ListCreatedBy(ctx, s.inspector)
		s.NoError(err)
		s.Empty(reports)
	})

	s.Run("assigned-to filters on membership", func() {
		reports, err := s.service.ListAssignedTo(ctx, s.inspector)
		s.NoError(err)
		s.Require().Len(reports, 1)
		s.Equal(detail.Report.ID, reports[0].ID)

		reports, err = s.service.ListAssignedTo(ctx, s.outsider)
		s.NoError(err)
		s.Empty(reports)
	})
}

// =============================================================================
// Entry Fill Tests
// =============================================================================

func (s *ReportServiceSuite) TestFillSpecificEntry() {
	ctx := context.Background()

	s.Run("unknown entry returns not found", func() {
		_, err := s.service.FillSpecificEntry(ctx, s.inspector, domain.NewEntryID(), models.FillInput{Verdict: boolPtr(true)})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("unassigned user is forbidden even from the right department", func() {
		detail := s.createReport(s.createProtocol())
		stranger := domain.Principal{
			UserID:       domain.NewUserID(),
			Role:         domain.RoleUser,
			DepartmentID: s.checkDept,
		}
		_, err := s.service.FillSpecificEntry(ctx, stranger, detail.SpecificEntries[0].ID, models.FillInput{Verdict: boolPtr(true)})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("assigned user from a non-check department is forbidden", func() {
		detail := s.createReport(s.createProtocol())
		// The manager is assigned but sits in the implementation department.
		_, err := s.service.FillSpecificEntry(ctx, s.manager, detail.SpecificEntries[0].ID, models.FillInput{Verdict: boolPtr(true)})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("missing verdict is rejected before persistence", func() {
		detail := s.createReport(s.createProtocol())
		_, err := s.service.FillSpecificEntry(ctx, s.inspector, detail.SpecificEntries[0].ID, models.FillInput{})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		entry, findErr := s.store.FindSpecificEntry(ctx, detail.SpecificEntries[0].ID)
		s.NoError(findErr)
		s.False(entry.Updated)
	})

	s.Run("negative verdict requires all remediation fields", func() {
		detail := s.createReport(s.createProtocol())
		_, err := s.service.FillSpecificEntry(ctx, s.inspector, detail.SpecificEntries[0].ID, models.FillInput{
			Verdict: boolPtr(false),
			Action:  "Replace light curtain",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		var dErr *dErrors.Error
		s.Require().True(dErrors.As(err, &dErr))
		s.Contains(dErr.Details["missing"], "deadline")
	})

	s.Run("negative verdict persists remediation fields", func() {
		detail := s.createReport(s.createProtocol())
		entry, err := s.service.FillSpecificEntry(ctx, s.inspector, detail.SpecificEntries[0].ID, models.FillInput{
			Verdict:           boolPtr(false),
			Action:            "Replace light curtain",
			ResponsibleAction: "Maintenance team",
			Deadline:          "2026-09-30",
			SuccessControl:    "Re-test response time",
		})
		s.NoError(err)
		s.Require().NotNil(entry.Homologation)
		s.False(*entry.Homologation)
		s.True(entry.Updated)
		s.Require().NotNil(entry.Action)
		s.Equal("Replace light curtain", *entry.Action)
	})

	s.Run("positive verdict nulls remediation fields", func() {
		detail := s.createReport(s.createProtocol())
		entry, err := s.service.FillSpecificEntry(ctx, s.inspector, detail.SpecificEntries[0].ID, models.FillInput{
			Verdict: boolPtr(true),
			Action:  "should be discarded",
		})
		s.NoError(err)
		s.Require().NotNil(entry.Homologation)
		s.True(*entry.Homologation)
		s.Nil(entry.Action)
		s.Nil(entry.Deadline)
	})

	s.Run("second fill conflicts for an authorized user", func() {
		detail := s.createReport(s.createProtocol())
		id := detail.SpecificEntries[0].ID
		_, err := s.service.FillSpecificEntry(ctx, s.inspector, id, models.FillInput{Verdict: boolPtr(true)})
		s.Require().NoError(err)

		_, err = s.service.FillSpecificEntry(ctx, s.inspector, id, models.FillInput{Verdict: boolPtr(false)})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("unauthorized retry on a filled entry stays forbidden", func() {
		detail := s.createReport(s.createProtocol())
		id := detail.SpecificEntries[0].ID
		_, err := s.service.FillSpecificEntry(ctx, s.inspector, id, models.FillInput{Verdict: boolPtr(true)})
		s.Require().NoError(err)

		// The manager is assigned but sits outside the check set; the
		// fill state must not leak through as a conflict.
		_, err = s.service.FillSpecificEntry(ctx, s.manager, id, models.FillInput{Verdict: boolPtr(true)})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

		_, err = s.service.FillSpecificEntry(ctx, s.outsider, id, models.FillInput{Verdict: boolPtr(true)})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func (s *ReportServiceSuite) TestFillStandardEntry() {
	ctx := context.Background()
	catalogImpl := s.implDept
	catalogCheck := s.checkDept

	_, err := s.protocols.CreateStandardCriterion(ctx, s.admin, protocolservice.CreateStandardCriterionInput{
		Description:                "Machine earthing verified",
		ImplementationDepartmentID: catalogImpl,
		CheckDepartmentID:          catalogCheck,
	})
	s.Require().NoError(err)

	detail := s.createReport(s.createProtocol())
	s.Require().Len(detail.StandardEntries, 1)
	entryID := detail.StandardEntries[0].ID

	s.Run("check department singleton gates the fill", func() {
		_, err := s.service.FillStandardEntry(ctx, s.manager, entryID, models.FillInput{Verdict: boolPtr(true)})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("assigned check-department user fills once", func() {
		entry, err := s.service.FillStandardEntry(ctx, s.inspector, entryID, models.FillInput{Verdict: boolPtr(true)})
		s.NoError(err)
		s.Require().NotNil(entry.Implemented)
		s.True(*entry.Implemented)

		_, err = s.service.FillStandardEntry(ctx, s.inspector, entryID, models.FillInput{Verdict: boolPtr(true)})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

// =============================================================================
// Completion Tests
// =============================================================================

func (s *ReportServiceSuite) TestComplete() {
	ctx := context.Background()

	s.Run("unknown report returns not found", func() {
		_, err := s.service.Complete(ctx, s.manager, domain.NewReportID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("outsider is forbidden", func() {
		detail := s.createReport(s.createProtocol())
		_, err := s.service.Complete(ctx, s.outsider, detail.Report.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("completion is permitted with unfilled entries", func() {
		detail := s.createReport(s.createProtocol())
		report, err := s.service.Complete(ctx, s.manager, detail.Report.ID)
		s.NoError(err)
		s.True(report.Completed)
	})

	s.Run("second completion conflicts", func() {
		detail := s.createReport(s.createProtocol())
		_, err := s.service.Complete(ctx, s.inspector, detail.Report.ID)
		s.Require().NoError(err)

		_, err = s.service.Complete(ctx, s.admin, detail.Report.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("admin can complete without being assigned", func() {
		detail := s.createReport(s.createProtocol())
		report, err := s.service.Complete(ctx, s.admin, detail.Report.ID)
		s.NoError(err)
		s.True(report.Completed)
	})
}

// =============================================================================
// Maintenance Form Tests
// =============================================================================

func (s *ReportServiceSuite) TestUpdateMaintenanceForm() {
	ctx := context.Background()

	maintenance := domain.Principal{
		UserID:         domain.NewUserID(),
		Role:           domain.RoleUser,
		DepartmentID:   s.maintDept,
		DepartmentName: "  maintenance SYSTEM ",
	}
	safety := domain.Principal{
		UserID:         domain.NewUserID(),
		Role:           domain.RoleUser,
		DepartmentID:   s.sheDept,
		DepartmentName: "She",
	}
	s.users.users[maintenance.UserID] = maintenance
	s.users.users[safety.UserID] = safety

	createWithForm := func() *Detail {
		protocolID := s.createProtocol()
		detail, err := s.service.Create(ctx, s.manager, CreateInput{
			ProtocolID: protocolID,
			Assignments: map[domain.DepartmentID]domain.UserID{
				s.implDept:  maintenance.UserID,
				s.checkDept: safety.UserID,
			},
		})
		s.Require().NoError(err)
		return detail
	}

	s.Run("unassigned user is forbidden", func() {
		detail := createWithForm()
		_, err := s.service.UpdateMaintenanceForm(ctx, s.outsider, detail.Report.ID, MaintenanceFormInput{})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("assigned user from another department is forbidden", func() {
		protocolID := s.createProtocol()
		detail, err := s.service.Create(ctx, s.manager, CreateInput{
			ProtocolID: protocolID,
			Assignments: map[domain.DepartmentID]domain.UserID{
				s.implDept:  s.manager.UserID,
				s.checkDept: s.inspector.UserID,
			},
		})
		s.Require().NoError(err)

		_, err = s.service.UpdateMaintenanceForm(ctx, s.inspector, detail.Report.ID, MaintenanceFormInput{})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("maintenance department writes its group, name matching is lax", func() {
		detail := createWithForm()
		form, err := s.service.UpdateMaintenanceForm(ctx, maintenance, detail.Report.ID, MaintenanceFormInput{
			MaintenanceGroupInput: models.MaintenanceGroupInput{
				ControlStandard: "EN 60204-1",
				CurrentType:     "AC",
				HasTransformer:  true,
			},
			IsInOrder: true,
		})
		s.NoError(err)
		s.Equal("EN 60204-1", form.ControlStandard)
		s.True(form.HasTransformer)
		// The safety-owned field is not writable by maintenance.
		s.False(form.IsInOrder)
	})

	s.Run("safety department writes only the in-order flag", func() {
		detail := createWithForm()
		_, err := s.service.UpdateMaintenanceForm(ctx, maintenance, detail.Report.ID, MaintenanceFormInput{
			MaintenanceGroupInput: models.MaintenanceGroupInput{ControlStandard: "EN 60204-1"},
		})
		s.Require().NoError(err)

		form, err := s.service.UpdateMaintenanceForm(ctx, safety, detail.Report.ID, MaintenanceFormInput{
			MaintenanceGroupInput: models.MaintenanceGroupInput{ControlStandard: "should be ignored"},
			IsInOrder:             true,
		})
		s.NoError(err)
		s.True(form.IsInOrder)
		// The maintenance group survives a safety write untouched.
		s.Equal("EN 60204-1", form.ControlStandard)
	})

	s.Run("unknown report returns not found", func() {
		_, err := s.service.UpdateMaintenanceForm(ctx, maintenance, domain.NewReportID(), MaintenanceFormInput{})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
