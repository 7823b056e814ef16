package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wildhaven/wildhaven/internal/animals"
	"github.com/wildhaven/wildhaven/internal/audit"
	"github.com/wildhaven/wildhaven/internal/membership"
	"github.com/wildhaven/wildhaven/internal/observability"
	"github.com/wildhaven/wildhaven/internal/scopes"
	"github.com/wildhaven/wildhaven/internal/shared"
	"github.com/wildhaven/wildhaven/internal/species"
	"github.com/wildhaven/wildhaven/internal/tenants"
	"github.com/wildhaven/wildhaven/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	Tokens            *shared.TokenStore
	MembershipHandler *membership.Handler
	ScopesHandler     *scopes.Handler
	AuditHandler      *audit.Handler
	TenantsHandler    *tenants.Handler
	AnimalsHandler    *animals.Handler
	SpeciesHandler    *species.Handler
	JobsHandler       *jobs.Handler
	Pool              *pgxpool.Pool
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with wildhaven defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Tokens:  params.Tokens,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Handle("/metrics", params.Metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Route("/tenants", params.TenantsHandler.MountRoutes)
		r.Route("/species", params.SpeciesHandler.MountRoutes)
		r.Route("/memberships", params.MembershipHandler.MountRoutes)
		r.Route("/scope-groups", params.ScopesHandler.MountRoutes)
		r.Route("/animals", params.AnimalsHandler.MountRoutes)
		r.Route("/audit", params.AuditHandler.MountRoutes)
		if params.JobsHandler != nil {
			r.Route("/jobs", params.JobsHandler.MountRoutes)
		}
	})

	return r
}
