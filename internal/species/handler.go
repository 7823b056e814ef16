package species

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wildhaven/wildhaven/internal/platform/httpx"
	"github.com/wildhaven/wildhaven/internal/shared"
)

type Handler struct {
	logger *slog.Logger
	repo   RepositoryPort
}

func NewHandler(logger *slog.Logger, repo RepositoryPort) *Handler {
	return &Handler{logger: logger, repo: repo}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{speciesID}", h.get)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	out, err := h.repo.List(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if out == nil {
		out = []Species{}
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "speciesID"))
	if err != nil {
		httpx.RespondError(w, shared.ErrNotFound)
		return
	}
	sp, err := h.repo.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sp)
}
