package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"qualitrack/internal/refdata/service"
	"qualitrack/pkg/domain"
	"qualitrack/pkg/platform/httputil"
)

// Handler is the thin HTTP layer over the reference-data service.
type Handler struct {
	svc    *service.Service
	logger *slog.Logger
}

func New(svc *service.Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// RegisterPublic mounts the department and plant routes. The original
// system exposes these without authentication so login screens can
// populate pickers; the same applies here.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Route("/public", func(r chi.Router) {
		r.Get("/departments", h.handleListDepartments)
		r.Post("/departments", h.handleCreateDepartment)
		r.Get("/departments/{departmentID}", h.handleGetDepartment)
		r.Put("/departments/{departmentID}", h.handleUpdateDepartment)
		r.Delete("/departments/{departmentID}", h.handleDeleteDepartment)
		r.Get("/plants", h.handleListPlants)
	})
}

// Register mounts the language routes on an authenticated router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/languages", func(r chi.Router) {
		r.Get("/", h.handleListLanguages)
		r.Get("/default", h.handleDefaultLanguage)
		r.Get("/{code}", h.handleLanguageByCode)
	})
}

type departmentRequest struct {
	Name string `json:"name"`
}

func (h *Handler) handleListDepartments(w http.ResponseWriter, r *http.Request) {
	departments, err := h.svc.ListDepartments(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, departments)
}

func (h *Handler) handleCreateDepartment(w http.ResponseWriter, r *http.Request) {
	var req departmentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	d, err := h.svc.CreateDepartment(r.Context(), req.Name)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, d)
}

func (h *Handler) handleGetDepartment(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseDepartmentID(chi.URLParam(r, "departmentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	d, err := h.svc.GetDepartment(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, d)
}

func (h *Handler) handleUpdateDepartment(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseDepartmentID(chi.URLParam(r, "departmentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req departmentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	d, err := h.svc.UpdateDepartment(r.Context(), id, req.Name)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, d)
}

func (h *Handler) handleDeleteDepartment(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseDepartmentID(chi.URLParam(r, "departmentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.svc.DeleteDepartment(r.Context(), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, nil)
}

func (h *Handler) handleListPlants(w http.ResponseWriter, r *http.Request) {
	plants, err := h.svc.ListPlants(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, plants)
}

func (h *Handler) handleListLanguages(w http.ResponseWriter, r *http.Request) {
	languages, err := h.svc.ListLanguages(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, languages)
}

func (h *Handler) handleDefaultLanguage(w http.ResponseWriter, r *http.Request) {
	l, err := h.svc.GetDefaultLanguage(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, l)
}

func (h *Handler) handleLanguageByCode(w http.ResponseWriter, r *http.Request) {
	l, err := h.svc.GetLanguageByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, l)
}
