package membership

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/wildhaven/wildhaven/internal/audit"
	"github.com/wildhaven/wildhaven/internal/authz"
	"github.com/wildhaven/wildhaven/internal/directory"
	"github.com/wildhaven/wildhaven/internal/observability"
	"github.com/wildhaven/wildhaven/internal/shared"
)

// DirectoryPort is the external identity directory, consulted only when no
// local membership row exists.
type DirectoryPort interface {
	TenantRoles(ctx context.Context, principalID string) ([]directory.TenantRole, error)
}

// Service resolves roles and guards role mutations. Resolution always hits
// the source of truth: a cached stale decision is a privilege-escalation
// risk, so nothing here memoizes.
type Service struct {
	repo      RepositoryPort
	directory DirectoryPort
	sink      *audit.Sink
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewService constructs a Service. directory, sink and metrics may be nil.
func NewService(repo RepositoryPort, dir DirectoryPort, sink *audit.Sink, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, directory: dir, sink: sink, metrics: metrics, logger: logger}
}

// GetRole returns the principal's role within the tenant. A local row always
// wins; the directory is a fallback for unmigrated accounts only, so an
// explicitly demoted principal stays demoted whatever the directory says.
// With no row anywhere the answer is carer, never anything higher.
func (s *Service) GetRole(ctx context.Context, principalID string, tenant uuid.UUID) (authz.Role, error) {
	m, err := s.repo.GetMembership(ctx, principalID, tenant)
	if err == nil {
		return m.Role, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return 0, err
	}
	if role, ok := s.roleFromDirectory(ctx, principalID, tenant); ok {
		return role, nil
	}
	return authz.RoleCarer, nil
}

func (s *Service) roleFromDirectory(ctx context.Context, principalID string, tenant uuid.UUID) (authz.Role, bool) {
	if s.directory == nil {
		return 0, false
	}
	roles, err := s.directory.TenantRoles(ctx, principalID)
	if err != nil {
		s.logger.Warn("directory fallback lookup failed",
			slog.String("principal", principalID), slog.Any("error", err))
		return 0, false
	}
	for _, tr := range roles {
		if tr.TenantID != tenant.String() {
			continue
		}
		role, err := authz.ParseRole(tr.Role)
		if err != nil {
			s.logger.Warn("directory reported unknown role",
				slog.String("principal", principalID), slog.String("role", tr.Role))
			return 0, false
		}
		// Signal every use of this path so migration completion can be
		// tracked and the fallback eventually removed.
		s.logger.Warn("role resolved via directory fallback",
			slog.String("principal", principalID),
			slog.String("tenant", tenant.String()),
			slog.String("role", role.String()))
		s.metrics.DirectoryFallback()
		return role, true
	}
	return 0, false
}

// GetMembership returns the stored membership with its scope assignments, or
// shared.ErrNotFound when none exists.
func (s *Service) GetMembership(ctx context.Context, principalID string, tenant uuid.UUID) (*Membership, error) {
	return s.repo.GetMembership(ctx, principalID, tenant)
}

// RequirePermission resolves the caller's role and asserts the permission.
// It re-resolves on every call: roles change between requests and a stale
// authorization is a security defect.
func (s *Service) RequirePermission(ctx context.Context, principalID string, tenant uuid.UUID, perm authz.Permission) (authz.Role, error) {
	role, err := s.GetRole(ctx, principalID, tenant)
	if err != nil {
		return 0, err
	}
	allowed := authz.HasPermission(role, perm)
	s.metrics.AuthzDecision(allowed)
	if !allowed {
		return 0, shared.ErrForbidden
	}
	return role, nil
}

// RequireMinimumRole resolves the caller's role and asserts the minimum tier.
func (s *Service) RequireMinimumRole(ctx context.Context, principalID string, tenant uuid.UUID, min authz.Role) (authz.Role, error) {
	role, err := s.GetRole(ctx, principalID, tenant)
	if err != nil {
		return 0, err
	}
	allowed := authz.HasMinimumRole(role, min)
	s.metrics.AuthzDecision(allowed)
	if !allowed {
		return 0, shared.ErrForbidden
	}
	return role, nil
}

// SetRole upserts the principal's membership. Demoting an admin runs the
// last-admin check against locked rows inside the same transaction as the
// write; when the principal is the tenant's only admin the whole operation
// fails with shared.ErrLastAdmin and nothing is written.
func (s *Service) SetRole(ctx context.Context, actorID, principalID string, tenant uuid.UUID, newRole authz.Role) (*Membership, error) {
	if !newRole.Valid() {
		return nil, fmt.Errorf("membership: invalid role %d", newRole)
	}
	var out *Membership
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetMembershipForUpdate(ctx, principalID, tenant)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return err
		}
		if current != nil && current.Role == authz.RoleAdmin && newRole != authz.RoleAdmin {
			admins, err := tx.LockAdminMemberships(ctx, tenant)
			if err != nil {
				return err
			}
			if admins <= 1 {
				return shared.ErrLastAdmin
			}
		}
		out, err = tx.UpsertMembership(ctx, principalID, tenant, newRole)
		return err
	})
	if err != nil {
		return nil, err
	}

	entityID := out.ID.String()
	s.sink.Record(ctx, audit.Entry{
		ActorID:    actorID,
		TenantID:   tenant,
		Action:     "membership.set_role",
		EntityType: "membership",
		EntityID:   &entityID,
		Metadata: map[string]any{
			"principal": principalID,
			"role":      newRole.String(),
		},
	})
	return out, nil
}
