package scopes

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/wildhaven/wildhaven/internal/platform/httpx"
	"github.com/wildhaven/wildhaven/internal/shared"
)

// Handler wires HTTP endpoints for scope group management.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers scope group routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{groupID}", h.get)
	r.Patch("/{groupID}", h.update)
	r.Delete("/{groupID}", h.delete)
	r.Post("/{groupID}/assignments", h.assign)
	r.Delete("/{groupID}/assignments/{membershipID}", h.remove)
}

type requestContext struct {
	principal *shared.Principal
	tenant    uuid.UUID
}

func (h *Handler) requestContext(w http.ResponseWriter, r *http.Request) (requestContext, bool) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return requestContext{}, false
	}
	tenant, err := shared.TenantFromRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return requestContext{}, false
	}
	return requestContext{principal: principal, tenant: tenant}, true
}

func groupID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "groupID"))
	if err != nil {
		httpx.RespondError(w, shared.ErrNotFound)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.requestContext(w, r)
	if !ok {
		return
	}
	groups, err := h.service.ListGroups(r.Context(), rc.principal.ID, rc.tenant)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if groups == nil {
		groups = []ScopeGroup{}
	}
	httpx.JSON(w, http.StatusOK, groups)
}

type createGroupRequest struct {
	Slug           string   `json:"slug" validate:"required,max=64"`
	Name           string   `json:"name" validate:"required,max=200"`
	Description    string   `json:"description" validate:"max=1000"`
	Discriminators []string `json:"discriminators" validate:"required,min=1,dive,required"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.requestContext(w, r)
	if !ok {
		return
	}
	var req createGroupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	group, err := h.service.CreateGroup(r.Context(), rc.principal.ID, rc.tenant, CreateGroupInput{
		Slug:           req.Slug,
		Name:           req.Name,
		Description:    req.Description,
		Discriminators: req.Discriminators,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, group)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.requestContext(w, r)
	if !ok {
		return
	}
	id, ok := groupID(w, r)
	if !ok {
		return
	}
	group, err := h.service.GetGroup(r.Context(), rc.principal.ID, rc.tenant, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, group)
}

type updateGroupRequest struct {
	Name           *string   `json:"name" validate:"omitempty,max=200"`
	Description    *string   `json:"description" validate:"omitempty,max=1000"`
	Discriminators *[]string `json:"discriminators" validate:"omitempty,min=1,dive,required"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.requestContext(w, r)
	if !ok {
		return
	}
	id, ok := groupID(w, r)
	if !ok {
		return
	}
	var req updateGroupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	err := h.service.UpdateGroup(r.Context(), rc.principal.ID, rc.tenant, id, GroupPatch{
		Name:           req.Name,
		Description:    req.Description,
		Discriminators: req.Discriminators,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.requestContext(w, r)
	if !ok {
		return
	}
	id, ok := groupID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteGroup(r.Context(), rc.principal.ID, rc.tenant, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type assignRequest struct {
	MembershipID string `json:"membership_id" validate:"required,uuid"`
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.requestContext(w, r)
	if !ok {
		return
	}
	id, ok := groupID(w, r)
	if !ok {
		return
	}
	var req assignRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	membershipID, err := uuid.Parse(req.MembershipID)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "")
		return
	}
	if err := h.service.Assign(r.Context(), rc.principal.ID, rc.tenant, membershipID, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.requestContext(w, r)
	if !ok {
		return
	}
	id, ok := groupID(w, r)
	if !ok {
		return
	}
	membershipID, err := uuid.Parse(chi.URLParam(r, "membershipID"))
	if err != nil {
		httpx.RespondError(w, shared.ErrNotFound)
		return
	}
	if err := h.service.Remove(r.Context(), rc.principal.ID, rc.tenant, membershipID, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
