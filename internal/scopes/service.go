package scopes

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wildhaven/wildhaven/internal/audit"
	"github.com/wildhaven/wildhaven/internal/authz"
	"github.com/wildhaven/wildhaven/internal/shared"
)

// RoleResolver resolves roles and asserts permissions. Implemented by
// *membership.Service.
type RoleResolver interface {
	GetRole(ctx context.Context, principalID string, tenant uuid.UUID) (authz.Role, error)
	RequirePermission(ctx context.Context, principalID string, tenant uuid.UUID, perm authz.Permission) (authz.Role, error)
}

// Service manages scope groups and evaluates scoped resource access.
type Service struct {
	repo     RepositoryPort
	resolver RoleResolver
	sink     *audit.Sink
	logger   *slog.Logger
}

// NewService constructs a Service.
func NewService(repo RepositoryPort, resolver RoleResolver, sink *audit.Sink, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, resolver: resolver, sink: sink, logger: logger}
}

// CreateGroupInput carries the fields for a new scope group.
type CreateGroupInput struct {
	Slug           string
	Name           string
	Description    string
	Discriminators []string
}

// CreateGroup creates a scope group in the actor's tenant. Admin only.
func (s *Service) CreateGroup(ctx context.Context, actorID string, tenant uuid.UUID, input CreateGroupInput) (*ScopeGroup, error) {
	if _, err := s.resolver.RequirePermission(ctx, actorID, tenant, authz.PermScopeGroupManage); err != nil {
		return nil, err
	}
	slug := strings.TrimSpace(strings.ToLower(input.Slug))
	name := strings.TrimSpace(input.Name)
	if slug == "" || name == "" {
		return nil, errors.New("scopes: slug and name required")
	}
	now := time.Now().UTC()
	group := ScopeGroup{
		ID:             uuid.New(),
		TenantID:       tenant,
		Slug:           slug,
		Name:           name,
		Description:    strings.TrimSpace(input.Description),
		Discriminators: trimAll(input.Discriminators),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.CreateGroup(ctx, group); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, tenant, "scope_group.create", group.ID, map[string]any{"slug": slug})
	return &group, nil
}

// GetGroup fetches one group.
func (s *Service) GetGroup(ctx context.Context, actorID string, tenant, id uuid.UUID) (*ScopeGroup, error) {
	if _, err := s.resolver.RequirePermission(ctx, actorID, tenant, authz.PermScopeGroupManage); err != nil {
		return nil, err
	}
	return s.repo.GetGroup(ctx, tenant, id)
}

// ListGroups lists the tenant's groups.
func (s *Service) ListGroups(ctx context.Context, actorID string, tenant uuid.UUID) ([]ScopeGroup, error) {
	if _, err := s.resolver.RequirePermission(ctx, actorID, tenant, authz.PermScopeGroupManage); err != nil {
		return nil, err
	}
	return s.repo.ListGroups(ctx, tenant)
}

// UpdateGroup patches a group within the actor's tenant. A foreign tenant's
// id reports ErrNotFound, indistinguishable from a missing row.
func (s *Service) UpdateGroup(ctx context.Context, actorID string, tenant, id uuid.UUID, patch GroupPatch) error {
	if _, err := s.resolver.RequirePermission(ctx, actorID, tenant, authz.PermScopeGroupManage); err != nil {
		return err
	}
	if patch.Discriminators != nil {
		trimmed := trimAll(*patch.Discriminators)
		patch.Discriminators = &trimmed
	}
	if err := s.repo.UpdateGroup(ctx, tenant, id, patch); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, tenant, "scope_group.update", id, nil)
	return nil
}

// DeleteGroup deletes a group and cascades its assignments.
func (s *Service) DeleteGroup(ctx context.Context, actorID string, tenant, id uuid.UUID) error {
	if _, err := s.resolver.RequirePermission(ctx, actorID, tenant, authz.PermScopeGroupManage); err != nil {
		return err
	}
	if err := s.repo.DeleteGroup(ctx, tenant, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, tenant, "scope_group.delete", id, nil)
	return nil
}

// Assign links a membership to a scope group. Both rows must belong to the
// caller's tenant; a valid-looking id from another tenant reports
// ErrNotFound whichever side it is on.
func (s *Service) Assign(ctx context.Context, actorID string, tenant, membershipID, groupID uuid.UUID) error {
	if _, err := s.resolver.RequirePermission(ctx, actorID, tenant, authz.PermScopeGroupManage); err != nil {
		return err
	}
	if err := s.verifyOwnership(ctx, tenant, membershipID, groupID); err != nil {
		return err
	}
	if err := s.repo.LinkAssignment(ctx, tenant, membershipID, groupID); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, tenant, "scope_assignment.create", groupID, map[string]any{"membership_id": membershipID.String()})
	return nil
}

// Remove unlinks a membership from a scope group, with the same dual
// ownership check as Assign.
func (s *Service) Remove(ctx context.Context, actorID string, tenant, membershipID, groupID uuid.UUID) error {
	if _, err := s.resolver.RequirePermission(ctx, actorID, tenant, authz.PermScopeGroupManage); err != nil {
		return err
	}
	if err := s.verifyOwnership(ctx, tenant, membershipID, groupID); err != nil {
		return err
	}
	if err := s.repo.UnlinkAssignment(ctx, tenant, membershipID, groupID); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, tenant, "scope_assignment.delete", groupID, map[string]any{"membership_id": membershipID.String()})
	return nil
}

func (s *Service) verifyOwnership(ctx context.Context, tenant, membershipID, groupID uuid.UUID) error {
	ok, err := s.repo.MembershipExists(ctx, tenant, membershipID)
	if err != nil {
		return err
	}
	if !ok {
		return shared.ErrNotFound
	}
	ok, err = s.repo.GroupExists(ctx, tenant, groupID)
	if err != nil {
		return err
	}
	if !ok {
		return shared.ErrNotFound
	}
	return nil
}

// AuthorizedScopes returns the discriminator values the principal may see:
// nil for admins (no filter), the normalized deduplicated union across
// assigned groups for coordinators, and an empty slice for carers or
// principals with no membership.
func (s *Service) AuthorizedScopes(ctx context.Context, principalID string, tenant uuid.UUID) ([]string, error) {
	role, err := s.resolver.GetRole(ctx, principalID, tenant)
	if err != nil {
		return nil, err
	}
	switch role {
	case authz.RoleAdmin:
		return nil, nil
	case authz.RoleCoordinator:
		values, err := s.repo.AssignedDiscriminators(ctx, tenant, principalID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return []string{}, nil
			}
			return nil, err
		}
		return normalizeSet(values), nil
	}
	return []string{}, nil
}

// CanAccessResource decides resource-level visibility: admins see
// everything, coordinators see resources whose discriminator falls in their
// assigned groups, everyone else sees only what they own.
func (s *Service) CanAccessResource(ctx context.Context, principalID string, tenant uuid.UUID, ref ResourceRef) (bool, error) {
	role, err := s.resolver.GetRole(ctx, principalID, tenant)
	if err != nil {
		return false, err
	}
	var scopes []string
	if role == authz.RoleCoordinator {
		values, err := s.repo.AssignedDiscriminators(ctx, tenant, principalID)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return false, err
		}
		scopes = normalizeSet(values)
	}
	return evaluate(role, scopes, principalID, ref), nil
}

func (s *Service) recordAudit(ctx context.Context, actorID string, tenant uuid.UUID, action string, entity uuid.UUID, metadata map[string]any) {
	entityID := entity.String()
	s.sink.Record(ctx, audit.Entry{
		ActorID:    actorID,
		TenantID:   tenant,
		Action:     action,
		EntityType: "scope_group",
		EntityID:   &entityID,
		Metadata:   metadata,
	})
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
