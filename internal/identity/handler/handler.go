package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"qualitrack/internal/identity/service"
	dErrors "qualitrack/pkg/domain-errors"
	"qualitrack/pkg/platform/httputil"
	"qualitrack/pkg/requestcontext"
)

// Handler is the thin HTTP layer over the identity service.
type Handler struct {
	svc    *service.Service
	logger *slog.Logger
}

func New(svc *service.Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// RegisterPublic mounts the unauthenticated identity routes.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/auth/login", h.handleLogin)
	r.Get("/public/non-admins", h.handleListNonAdmins)
}

// RegisterAdmin mounts routes that the caller must gate with
// RequireAuth + RequireRole(ADMIN).
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/users", h.handleCreateUser)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleListNonAdmins(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListNonAdmins(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, users)
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	principal, ok := requestcontext.Principal(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	var req service.CreateUserRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	user, err := h.svc.CreateUser(r.Context(), principal, req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, user)
}
