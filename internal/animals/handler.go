package animals

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/wildhaven/wildhaven/internal/platform/httpx"
	"github.com/wildhaven/wildhaven/internal/shared"
)

type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{animalID}", h.get)
	r.Patch("/{animalID}", h.update)
	r.Delete("/{animalID}", h.delete)
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

func animalID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "animalID"))
	if err != nil {
		httpx.RespondError(w, shared.ErrNotFound)
		return uuid.Nil, false
	}
	return id, true
}

type createAnimalRequest struct {
	Species    string     `json:"species" validate:"required,min=2,max=128"`
	Name       string     `json:"name" validate:"required,min=1,max=128"`
	CarerID    string     `json:"carer_id" validate:"omitempty,max=128"`
	IntakeDate *time.Time `json:"intake_date"`
	Notes      string     `json:"notes" validate:"max=4096"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.requestContext(w, r)
	if !ok {
		return
	}
	var req createAnimalRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Error", err.Error())
		return
	}
	input := CreateInput{
		Species: req.Species,
		Name:    req.Name,
		CarerID: req.CarerID,
		Notes:   req.Notes,
	}
	if req.IntakeDate != nil {
		input.IntakeDate = *req.IntakeDate
	}
	animal, err := h.service.Create(r.Context(), rc.principal.ID, rc.tenant, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, animal)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.requestContext(w, r)
	if !ok {
		return
	}
	id, ok := animalID(w, r)
	if !ok {
		return
	}
	animal, err := h.service.Get(r.Context(), rc.principal.ID, rc.tenant, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, animal)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.requestContext(w, r)
	if !ok {
		return
	}
	filters := ListFilters{
		Status:  Status(r.URL.Query().Get("status")),
		Species: r.URL.Query().Get("species"),
	}
	out, err := h.service.List(r.Context(), rc.principal.ID, rc.tenant, filters)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if out == nil {
		out = []Animal{}
	}
	httpx.JSON(w, http.StatusOK, out)
}

type updateAnimalRequest struct {
	Name    *string `json:"name" validate:"omitempty,min=1,max=128"`
	Status  *string `json:"status" validate:"omitempty,oneof=intake in_care released deceased"`
	CarerID *string `json:"carer_id" validate:"omitempty,max=128"`
	Notes   *string `json:"notes" validate:"omitempty,max=4096"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.requestContext(w, r)
	if !ok {
		return
	}
	id, ok := animalID(w, r)
	if !ok {
		return
	}
	var req updateAnimalRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Error", err.Error())
		return
	}
	patch := Patch{Name: req.Name, CarerID: req.CarerID, Notes: req.Notes}
	if req.Status != nil {
		status := Status(*req.Status)
		patch.Status = &status
	}
	animal, err := h.service.Update(r.Context(), rc.principal.ID, rc.tenant, id, patch)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, animal)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.requestContext(w, r)
	if !ok {
		return
	}
	id, ok := animalID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), rc.principal.ID, rc.tenant, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
