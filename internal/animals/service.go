package animals

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wildhaven/wildhaven/internal/audit"
	"github.com/wildhaven/wildhaven/internal/authz"
	"github.com/wildhaven/wildhaven/internal/scopes"
	"github.com/wildhaven/wildhaven/internal/shared"
)

// RoleResolver answers role and permission questions for a principal.
type RoleResolver interface {
	GetRole(ctx context.Context, principalID string, tenant uuid.UUID) (authz.Role, error)
	RequirePermission(ctx context.Context, principalID string, tenant uuid.UUID, perm authz.Permission) (authz.Role, error)
}

// AccessEvaluator narrows what a principal may see within their tenant.
type AccessEvaluator interface {
	AuthorizedScopes(ctx context.Context, principalID string, tenant uuid.UUID) ([]string, error)
	CanAccessResource(ctx context.Context, principalID string, tenant uuid.UUID, ref scopes.ResourceRef) (bool, error)
}

type Service struct {
	repo     RepositoryPort
	resolver RoleResolver
	access   AccessEvaluator
	sink     *audit.Sink
	logger   *slog.Logger
}

func NewService(repo RepositoryPort, resolver RoleResolver, access AccessEvaluator, sink *audit.Sink, logger *slog.Logger) *Service {
	return &Service{repo: repo, resolver: resolver, access: access, sink: sink, logger: logger}
}

type CreateInput struct {
	Species    string
	Name       string
	CarerID    string
	IntakeDate time.Time
	Notes      string
}

func (s *Service) Create(ctx context.Context, actorID string, tenant uuid.UUID, input CreateInput) (*Animal, error) {
	role, err := s.resolver.RequirePermission(ctx, actorID, tenant, authz.PermAnimalCreate)
	if err != nil {
		return nil, err
	}
	speciesName := strings.TrimSpace(input.Species)
	name := strings.TrimSpace(input.Name)
	if speciesName == "" || name == "" {
		return nil, shared.ErrValidation
	}
	carerID := strings.TrimSpace(input.CarerID)
	// Carers always own what they intake; only higher roles may assign
	// a record to someone else.
	if carerID == "" || role == authz.RoleCarer {
		carerID = actorID
	}
	intake := input.IntakeDate
	if intake.IsZero() {
		intake = nowUTC()
	}
	now := nowUTC()
	a := Animal{
		ID:         uuid.New(),
		TenantID:   tenant,
		Species:    speciesName,
		Name:       name,
		Status:     StatusIntake,
		CarerID:    carerID,
		IntakeDate: intake,
		Notes:      strings.TrimSpace(input.Notes),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Insert(ctx, tenant, a); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, tenant, "animal.create", a.ID, map[string]any{"species": a.Species})
	return &a, nil
}

// Get returns a record only when the principal may see it. Records outside
// the caller's scopes are reported as not found, never as forbidden.
func (s *Service) Get(ctx context.Context, actorID string, tenant, id uuid.UUID) (*Animal, error) {
	a, err := s.repo.Get(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.access.CanAccessResource(ctx, actorID, tenant, scopes.ResourceRef{
		Discriminator: a.Species,
		OwnerID:       a.CarerID,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, shared.ErrNotFound
	}
	return a, nil
}

func (s *Service) List(ctx context.Context, actorID string, tenant uuid.UUID, filters ListFilters) ([]Animal, error) {
	role, err := s.resolver.GetRole(ctx, actorID, tenant)
	if err != nil {
		return nil, err
	}
	if role == authz.RoleCarer || !authz.HasPermission(role, authz.PermAnimalViewAll) {
		filters.CarerID = actorID
		return s.repo.List(ctx, tenant, filters)
	}
	authorized, err := s.access.AuthorizedScopes(ctx, actorID, tenant)
	if err != nil {
		return nil, err
	}
	all, err := s.repo.List(ctx, tenant, filters)
	if err != nil {
		return nil, err
	}
	if authorized == nil {
		// Admin: no scope filter.
		return all, nil
	}
	out := make([]Animal, 0, len(all))
	for _, a := range all {
		if scopes.Matches(authorized, a.Species) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Service) Update(ctx context.Context, actorID string, tenant, id uuid.UUID, patch Patch) (*Animal, error) {
	role, err := s.resolver.RequirePermission(ctx, actorID, tenant, authz.PermAnimalUpdate)
	if err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, actorID, tenant, id); err != nil {
		return nil, err
	}
	if patch.CarerID != nil && !authz.HasMinimumRole(role, authz.RoleCoordinator) {
		return nil, shared.ErrForbidden
	}
	if err := s.repo.Update(ctx, tenant, id, patch); err != nil {
		return nil, err
	}
	a, err := s.repo.Get(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, tenant, "animal.update", id, nil)
	return a, nil
}

func (s *Service) Delete(ctx context.Context, actorID string, tenant, id uuid.UUID) error {
	if _, err := s.resolver.RequirePermission(ctx, actorID, tenant, authz.PermAnimalDelete); err != nil {
		return err
	}
	a, err := s.Get(ctx, actorID, tenant, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, tenant, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, tenant, "animal.delete", id, map[string]any{"species": a.Species})
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID string, tenant uuid.UUID, action string, entity uuid.UUID, metadata map[string]any) {
	id := entity.String()
	s.sink.Record(ctx, audit.Entry{
		ActorID:    actorID,
		TenantID:   tenant,
		Action:     action,
		EntityType: "animal",
		EntityID:   &id,
		Metadata:   metadata,
	})
}

func nowUTC() time.Time { return time.Now().UTC() }
