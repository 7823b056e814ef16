package tenants

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wildhaven/wildhaven/internal/authz"
	"github.com/wildhaven/wildhaven/internal/membership"
	"github.com/wildhaven/wildhaven/internal/shared"
)

// RoleWriter grants the creating principal the admin role on a fresh tenant.
type RoleWriter interface {
	SetRole(ctx context.Context, actorID, principalID string, tenant uuid.UUID, role authz.Role) (*membership.Membership, error)
}

type Service struct {
	repo   RepositoryPort
	roles  RoleWriter
	logger *slog.Logger
}

func NewService(repo RepositoryPort, roles RoleWriter, logger *slog.Logger) *Service {
	return &Service{repo: repo, roles: roles, logger: logger}
}

type CreateInput struct {
	Slug string
	Name string
}

// Create registers a tenant and bootstraps the creator as its first admin.
func (s *Service) Create(ctx context.Context, creatorID string, input CreateInput) (*Tenant, error) {
	slug := strings.TrimSpace(strings.ToLower(input.Slug))
	name := strings.TrimSpace(input.Name)
	if slug == "" || name == "" {
		return nil, shared.ErrValidation
	}
	now := time.Now().UTC()
	t := Tenant{
		ID:        uuid.New(),
		Slug:      slug,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	if _, err := s.roles.SetRole(ctx, creatorID, creatorID, t.ID, authz.RoleAdmin); err != nil {
		// The tenant exists but has no admin; surface the error so the
		// caller can retry the bootstrap.
		s.logger.Error("tenant admin bootstrap failed", "tenant_id", t.ID, "error", err)
		return nil, err
	}
	return &t, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Tenant, error) {
	return s.repo.List(ctx)
}
