package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	protocolservice "qualitrack/internal/protocol/service"
	protocolstore "qualitrack/internal/protocol/store"
	"qualitrack/internal/report/service"
	"qualitrack/internal/report/store"
	"qualitrack/pkg/domain"
	dErrors "qualitrack/pkg/domain-errors"
	"qualitrack/pkg/requestcontext"
)

// =============================================================================
// Report Handler Test Suite
// =============================================================================
// Justification for handler tests: the HTTP layer owns id parsing, body
// decoding and the error-to-status mapping. The workflow rules themselves are
// covered in the service suite; here each route is driven end to end against
// the in-memory stores.

type fakeUsers struct {
	known map[domain.UserID]domain.Principal
}

func (f *fakeUsers) LookupPrincipal(_ context.Context, id domain.UserID) (domain.Principal, error) {
	p, ok := f.known[id]
	if !ok {
		return domain.Principal{}, dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	return p, nil
}

type ReportHandlerSuite struct {
	suite.Suite
	svc       *service.Service
	protocols *protocolservice.Service

	implDept  domain.DepartmentID
	checkDept domain.DepartmentID

	manager   domain.Principal
	inspector domain.Principal
}

func TestReportHandlerSuite(t *testing.T) {
	suite.Run(t, new(ReportHandlerSuite))
}

func (s *ReportHandlerSuite) SetupTest() {
	s.protocols = protocolservice.New(protocolstore.NewInMemory())

	s.implDept = domain.NewDepartmentID()
	s.checkDept = domain.NewDepartmentID()

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

	users := &fakeUsers{known: map[domain.UserID]domain.Principal{
		s.manager.UserID:   s.manager,
		s.inspector.UserID: s.inspector,
	}}
	s.svc = service.New(store.NewInMemory(), s.protocols, users, service.Config{
		MaintenanceDepartment: "maintenance system",
		SafetyDepartment:      "she",
	})
}

// router builds a chi router with the principal pre-injected, standing in
// for the auth middleware.
func (s *ReportHandlerSuite) router(principal *domain.Principal) http.Handler {
	r := chi.NewRouter()
	if principal != nil {
		p := *principal
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(requestcontext.WithPrincipal(req.Context(), p)))
			})
		})
	}
	New(s.svc, slog.Default()).Register(r)
	return r
}

func (s *ReportHandlerSuite) request(h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func (s *ReportHandlerSuite) createProtocolID() string {
	p, err := s.protocols.CreateProtocol(context.Background(), s.manager, protocolservice.CreateProtocolInput{
		Name: "Press qualification",
		Type: "HOMOLOGATION",
		Criteria: []protocolservice.SpecificCriterionInput{
			{
				Description:                 "Interlock check",
				ImplementationDepartmentIDs: []domain.DepartmentID{s.implDept},
				CheckDepartmentIDs:          []domain.DepartmentID{s.checkDept},
			},
		},
	})
	s.Require().NoError(err)
	return p.ID.String()
}

func (s *ReportHandlerSuite) createBody(protocolID string) map[string]any {
	return map[string]any{
		"protocolId": protocolID,
		"header":     map[string]any{"serialNumber": "HP-12"},
		"assignments": map[string]string{
			s.implDept.String():  s.manager.UserID.String(),
			s.checkDept.String(): s.inspector.UserID.String(),
		},
	}
}

func (s *ReportHandlerSuite) TestCreateReport() {
	s.Run("manager creates report", func() {
		rec := s.request(s.router(&s.manager), http.MethodPost, "/reports", s.createBody(s.createProtocolID()))
		s.Equal(http.StatusCreated, rec.Code)

		var detail struct {
			Report struct {
				ID string `json:"id"`
			} `json:"report"`
			SpecificEntries []struct {
				Updated bool `json:"updated"`
			} `json:"specificEntries"`
		}
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &detail))
		s.NotEmpty(detail.Report.ID)
		s.Require().Len(detail.SpecificEntries, 1)
		s.False(detail.SpecificEntries[0].Updated)
	})

	s.Run("non-manager gets 403", func() {
		rec := s.request(s.router(&s.inspector), http.MethodPost, "/reports", s.createBody(s.createProtocolID()))
		s.Equal(http.StatusForbidden, rec.Code)
	})

	s.Run("missing principal gets 401", func() {
		rec := s.request(s.router(nil), http.MethodPost, "/reports", s.createBody(s.createProtocolID()))
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("malformed protocol id gets 400", func() {
		body := s.createBody("not-a-uuid")
		rec := s.request(s.router(&s.manager), http.MethodPost, "/reports", body)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("incomplete assignments get 400 with details", func() {
		body := s.createBody(s.createProtocolID())
		body["assignments"] = map[string]string{
			s.implDept.String(): s.manager.UserID.String(),
		}
		rec := s.request(s.router(&s.manager), http.MethodPost, "/reports", body)
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Contains(rec.Body.String(), "missingDepartments")
	})
}

func (s *ReportHandlerSuite) TestEntryFill() {
	rec := s.request(s.router(&s.manager), http.MethodPost, "/reports", s.createBody(s.createProtocolID()))
	s.Require().Equal(http.StatusCreated, rec.Code)

	var detail struct {
		SpecificEntries []struct {
			ID string `json:"id"`
		} `json:"specificEntries"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &detail))
	s.Require().Len(detail.SpecificEntries, 1)
	entryPath := fmt.Sprintf("/reports/entries/specific/%s", detail.SpecificEntries[0].ID)

	s.Run("verdict required", func() {
		rec := s.request(s.router(&s.inspector), http.MethodPut, entryPath, map[string]any{})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("fill succeeds once", func() {
		rec := s.request(s.router(&s.inspector), http.MethodPut, entryPath, map[string]any{"verdict": true})
		s.Equal(http.StatusOK, rec.Code)
		s.Contains(rec.Body.String(), `"updated":true`)
	})

	s.Run("second fill gets 409", func() {
		rec := s.request(s.router(&s.inspector), http.MethodPut, entryPath, map[string]any{"verdict": false})
		s.Equal(http.StatusConflict, rec.Code)
	})

	s.Run("wrong department gets 403", func() {
		rec := s.request(s.router(&s.manager), http.MethodPut, entryPath, map[string]any{"verdict": true})
		s.Equal(http.StatusForbidden, rec.Code)
	})

	s.Run("unknown entry gets 404", func() {
		path := fmt.Sprintf("/reports/entries/specific/%s", domain.NewEntryID())
		rec := s.request(s.router(&s.inspector), http.MethodPut, path, map[string]any{"verdict": true})
		s.Equal(http.StatusNotFound, rec.Code)
	})
}

func (s *ReportHandlerSuite) TestCompleteAndGet() {
	rec := s.request(s.router(&s.manager), http.MethodPost, "/reports", s.createBody(s.createProtocolID()))
	s.Require().Equal(http.StatusCreated, rec.Code)

	var detail struct {
		Report struct {
			ID string `json:"id"`
		} `json:"report"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &detail))
	reportID := detail.Report.ID

	s.Run("get returns the aggregate", func() {
		rec := s.request(s.router(&s.inspector), http.MethodGet, "/reports/"+reportID, nil)
		s.Equal(http.StatusOK, rec.Code)
		s.Contains(rec.Body.String(), "maintenanceForm")
	})

	s.Run("list routes respond", func() {
		for _, path := range []string{"/reports", "/reports/my-created", "/reports/assigned"} {
			rec := s.request(s.router(&s.manager), http.MethodGet, path, nil)
			s.Equal(http.StatusOK, rec.Code, path)
		}
	})

	s.Run("complete flips the flag once", func() {
		rec := s.request(s.router(&s.manager), http.MethodPatch, "/reports/"+reportID+"/complete", nil)
		s.Equal(http.StatusOK, rec.Code)
		s.Contains(rec.Body.String(), `"completed":true`)

		rec = s.request(s.router(&s.manager), http.MethodPatch, "/reports/"+reportID+"/complete", nil)
		s.Equal(http.StatusConflict, rec.Code)
	})
}

func (s *ReportHandlerSuite) TestMaintenanceForm() {
	rec := s.request(s.router(&s.manager), http.MethodPost, "/reports", s.createBody(s.createProtocolID()))
	s.Require().Equal(http.StatusCreated, rec.Code)

	var detail struct {
		Report struct {
			ID string `json:"id"`
		} `json:"report"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &detail))
	formPath := "/reports/" + detail.Report.ID + "/maintenance-form"

	s.Run("assigned user outside the special departments gets 403", func() {
		rec := s.request(s.router(&s.inspector), http.MethodPut, formPath, map[string]any{"isInOrder": true})
		s.Equal(http.StatusForbidden, rec.Code)
	})

	s.Run("maintenance department updates its group", func() {
		maintenance := s.inspector
		maintenance.DepartmentName = "Maintenance System"
		rec := s.request(s.router(&maintenance), http.MethodPut, formPath, map[string]any{
			"controlStandard": "EN 60204-1",
		})
		s.Equal(http.StatusOK, rec.Code)
		s.Contains(rec.Body.String(), "EN 60204-1")
	})
}
