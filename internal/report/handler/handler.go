package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"qualitrack/internal/report/models"
	"qualitrack/internal/report/service"
	"qualitrack/pkg/domain"
	dErrors "qualitrack/pkg/domain-errors"
	"qualitrack/pkg/platform/httputil"
	"qualitrack/pkg/requestcontext"
)

// Handler is the thin HTTP layer over the report service.
type Handler struct {
	svc    *service.Service
	logger *slog.Logger
}

func New(svc *service.Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the report routes. The caller gates the router with
// RequireAuth; finer authorization lives in the service.
func (h *Handler) Register(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Get("/", h.handleListAll)
		r.Post("/", h.handleCreate)
		r.Get("/my-created", h.handleListCreated)
		r.Get("/assigned", h.handleListAssigned)
		r.Put("/entries/standard/{entryID}", h.handleFillStandard)
		r.Put("/entries/specific/{entryID}", h.handleFillSpecific)
		r.Get("/{reportID}", h.handleGet)
		r.Patch("/{reportID}/complete", h.handleComplete)
		r.Put("/{reportID}/maintenance-form", h.handleMaintenanceForm)
	})
}

type createReportRequest struct {
	ProtocolID  string            `json:"protocolId"`
	Header      models.Header     `json:"header"`
	Assignments map[string]string `json:"assignments"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	principal, ok := requestcontext.Principal(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	var req createReportRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	protocolID, err := domain.ParseProtocolID(req.ProtocolID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	assignments := make(map[domain.DepartmentID]domain.UserID, len(req.Assignments))
	for rawDept, rawUser := range req.Assignments {
		deptID, err := domain.ParseDepartmentID(rawDept)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		userID, err := domain.ParseUserID(rawUser)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		assignments[deptID] = userID
	}

	detail, err := h.svc.Create(r.Context(), principal, service.CreateInput{
		ProtocolID:  protocolID,
		Header:      req.Header,
		Assignments: assignments,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, detail)
}

func (h *Handler) handleListAll(w http.ResponseWriter, r *http.Request) {
	reports, err := h.svc.ListAll(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, reports)
}

func (h *Handler) handleListCreated(w http.ResponseWriter, r *http.Request) {
	principal, ok := requestcontext.Principal(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	reports, err := h.svc.ListCreatedBy(r.Context(), principal)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, reports)
}

func (h *Handler) handleListAssigned(w http.ResponseWriter, r *http.Request) {
	principal, ok := requestcontext.Principal(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	reports, err := h.svc.ListAssignedTo(r.Context(), principal)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, reports)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	principal, ok := requestcontext.Principal(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	id, err := domain.ParseReportID(chi.URLParam(r, "reportID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	detail, err := h.svc.Get(r.Context(), principal, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, detail)
}

func (h *Handler) handleFillStandard(w http.ResponseWriter, r *http.Request) {
	principal, ok := requestcontext.Principal(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	id, err := domain.ParseEntryID(chi.URLParam(r, "entryID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var input models.FillInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.WriteError(w, err)
		return
	}
	entry, err := h.svc.FillStandardEntry(r.Context(), principal, id, input)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entry)
}

func (h *Handler) handleFillSpecific(w http.ResponseWriter, r *http.Request) {
	principal, ok := requestcontext.Principal(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	id, err := domain.ParseEntryID(chi.URLParam(r, "entryID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var input models.FillInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.WriteError(w, err)
		return
	}
	entry, err := h.svc.FillSpecificEntry(r.Context(), principal, id, input)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entry)
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	principal, ok := requestcontext.Principal(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	id, err := domain.ParseReportID(chi.URLParam(r, "reportID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	report, err := h.svc.Complete(r.Context(), principal, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) handleMaintenanceForm(w http.ResponseWriter, r *http.Request) {
	principal, ok := requestcontext.Principal(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	id, err := domain.ParseReportID(chi.URLParam(r, "reportID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var input service.MaintenanceFormInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.WriteError(w, err)
		return
	}
	form, err := h.svc.UpdateMaintenanceForm(r.Context(), principal, id, input)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, form)
}
