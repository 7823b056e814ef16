package audit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wildhaven/wildhaven/internal/authz"
	"github.com/wildhaven/wildhaven/internal/platform/httpx"
	"github.com/wildhaven/wildhaven/internal/shared"
)

// PermissionGuard asserts the caller's permission within a tenant.
// Implemented by *membership.Service.
type PermissionGuard interface {
	RequirePermission(ctx context.Context, principalID string, tenant uuid.UUID, perm authz.Permission) (authz.Role, error)
}

// Handler exposes the audit timeline.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   PermissionGuard
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, guard PermissionGuard) *Handler {
	return &Handler{logger: logger, service: service, guard: guard}
}

// MountRoutes attaches audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
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
	if _, err := h.guard.RequirePermission(r.Context(), principal.ID, tenant, authz.PermAuditView); err != nil {
		httpx.RespondError(w, err)
		return
	}

	q := r.URL.Query()
	filters := Filters{
		ActorID:    q.Get("actor"),
		Action:     q.Get("action"),
		EntityType: q.Get("entity"),
	}
	filters.Page, _ = strconv.Atoi(q.Get("page"))
	filters.PageSize, _ = strconv.Atoi(q.Get("page_size"))

	page, err := h.service.Timeline(r.Context(), tenant, filters)
	if err != nil {
		h.logger.Error("audit timeline", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}
