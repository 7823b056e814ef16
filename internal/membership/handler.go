package membership

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/wildhaven/wildhaven/internal/authz"
	"github.com/wildhaven/wildhaven/internal/platform/httpx"
	"github.com/wildhaven/wildhaven/internal/shared"
)

// Handler wires HTTP endpoints for membership management.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers membership routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/me", h.me)
	r.Put("/{principalID}/role", h.setRole)
}

type membershipResponse struct {
	PrincipalID string   `json:"principal_id"`
	TenantID    string   `json:"tenant_id"`
	Role        string   `json:"role"`
	GroupIDs    []string `json:"group_ids,omitempty"`
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	tenant, err := shared.TenantFromRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service.GetRole(r.Context(), principal.ID, tenant)
	if err != nil {
		h.logger.Error("resolve role", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	resp := membershipResponse{PrincipalID: principal.ID, TenantID: tenant.String(), Role: role.String()}
	if m, err := h.service.GetMembership(r.Context(), principal.ID, tenant); err == nil {
		for _, a := range m.Assignments {
			resp.GroupIDs = append(resp.GroupIDs, a.GroupID.String())
		}
	}
	httpx.JSON(w, http.StatusOK, resp)
}

type setRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=admin coordinator carer"`
}

func (h *Handler) setRole(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	tenant, err := shared.TenantFromRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if _, err := h.service.RequirePermission(r.Context(), principal.ID, tenant, authz.PermUserManage); err != nil {
		httpx.RespondError(w, err)
		return
	}

	var req setRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	role, err := authz.ParseRole(req.Role)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	target := chi.URLParam(r, "principalID")
	m, err := h.service.SetRole(r.Context(), principal.ID, target, tenant, role)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, membershipResponse{
		PrincipalID: m.PrincipalID,
		TenantID:    m.TenantID.String(),
		Role:        m.Role.String(),
	})
}
