package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"qualitrack/internal/protocol/models"
	"qualitrack/internal/protocol/service"
	"qualitrack/pkg/domain"
	dErrors "qualitrack/pkg/domain-errors"
	"qualitrack/pkg/platform/httputil"
	"qualitrack/pkg/requestcontext"
)

// Handler is the thin HTTP layer over the protocol service.
type Handler struct {
	svc    *service.Service
	logger *slog.Logger
}

func New(svc *service.Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the protocol routes. The caller gates the router with
// RequireAuth; standard-criterion creation is additionally restricted to
// administrators inside the service.
func (h *Handler) Register(r chi.Router) {
	r.Route("/protocols", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Get("/types", h.handleTypes)
		r.Get("/{protocolID}", h.handleGet)
		r.Get("/{protocolID}/criteria", h.handleCriteria)
	})
	r.Route("/criteria/standard", func(r chi.Router) {
		r.Get("/", h.handleListStandard)
		r.Post("/", h.handleCreateStandard)
	})
}

type specificCriterionRequest struct {
	Description                 string   `json:"description"`
	ImplementationDepartmentIDs []string `json:"implementationDepartmentIds"`
	CheckDepartmentIDs          []string `json:"checkDepartmentIds"`
}

type createProtocolRequest struct {
	Name     string                     `json:"name"`
	Type     string                     `json:"type"`
	Criteria []specificCriterionRequest `json:"criteria"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	principal, ok := requestcontext.Principal(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	var req createProtocolRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	input := service.CreateProtocolInput{Name: req.Name, Type: req.Type}
	for _, c := range req.Criteria {
		implementation, err := parseDepartmentIDs(c.ImplementationDepartmentIDs)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		check, err := parseDepartmentIDs(c.CheckDepartmentIDs)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		input.Criteria = append(input.Criteria, service.SpecificCriterionInput{
			Description:                 c.Description,
			ImplementationDepartmentIDs: implementation,
			CheckDepartmentIDs:          check,
		})
	}

	p, err := h.svc.CreateProtocol(r.Context(), principal, input)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	protocols, err := h.svc.ListProtocols(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, protocols)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseProtocolID(chi.URLParam(r, "protocolID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.svc.GetProtocol(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handleTypes(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, []models.ProtocolType{
		models.TypeHomologation,
		models.TypeRequalification,
	})
}

func (h *Handler) handleCriteria(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseProtocolID(chi.URLParam(r, "protocolID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	criteria, err := h.svc.ListProtocolCriteria(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, criteria)
}

type createStandardCriterionRequest struct {
	Description                string `json:"description"`
	ImplementationDepartmentID string `json:"implementationDepartmentId"`
	CheckDepartmentID          string `json:"checkDepartmentId"`
}

func (h *Handler) handleCreateStandard(w http.ResponseWriter, r *http.Request) {
	principal, ok := requestcontext.Principal(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	var req createStandardCriterionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	implementation, err := domain.ParseDepartmentID(req.ImplementationDepartmentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	check, err := domain.ParseDepartmentID(req.CheckDepartmentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	c, err := h.svc.CreateStandardCriterion(r.Context(), principal, service.CreateStandardCriterionInput{
		Description:                req.Description,
		ImplementationDepartmentID: implementation,
		CheckDepartmentID:          check,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, c)
}

func (h *Handler) handleListStandard(w http.ResponseWriter, r *http.Request) {
	criteria, err := h.svc.ListStandardCriteria(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, criteria)
}

func parseDepartmentIDs(raw []string) ([]domain.DepartmentID, error) {
	out := make([]domain.DepartmentID, 0, len(raw))
	for _, r := range raw {
		id, err := domain.ParseDepartmentID(r)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
