package scopes

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wildhaven/wildhaven/internal/shared"
	"github.com/wildhaven/wildhaven/internal/tenancy"
)

const (
	groupsTable      = "scope_groups"
	assignmentsTable = "scope_assignments"
	membershipsTable = "memberships"
)

var groupColumns = []string{"id", "slug", "name", "description", "discriminator_values", "created_at", "updated_at"}

// RepositoryPort defines data access for scope groups and assignments.
type RepositoryPort interface {
	CreateGroup(ctx context.Context, g ScopeGroup) error
	GetGroup(ctx context.Context, tenant, id uuid.UUID) (*ScopeGroup, error)
	ListGroups(ctx context.Context, tenant uuid.UUID) ([]ScopeGroup, error)
	UpdateGroup(ctx context.Context, tenant, id uuid.UUID, patch GroupPatch) error
	DeleteGroup(ctx context.Context, tenant, id uuid.UUID) error
	MembershipExists(ctx context.Context, tenant, membershipID uuid.UUID) (bool, error)
	GroupExists(ctx context.Context, tenant, groupID uuid.UUID) (bool, error)
	LinkAssignment(ctx context.Context, tenant, membershipID, groupID uuid.UUID) error
	UnlinkAssignment(ctx context.Context, tenant, membershipID, groupID uuid.UUID) error
	AssignedDiscriminators(ctx context.Context, tenant uuid.UUID, principalID string) ([]string, error)
}

// Repository provides PostgreSQL backed persistence through the tenancy
// scoper.
type Repository struct {
	q   tenancy.Querier
	env tenancy.Environment
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool, env tenancy.Environment) *Repository {
	return &Repository{q: pool, env: env}
}

func (r *Repository) scoper(tenant uuid.UUID) *tenancy.Scoper {
	return tenancy.NewScoper(r.q, tenancy.Scope{TenantID: tenant, Env: r.env})
}

// CreateGroup inserts a new scope group.
func (r *Repository) CreateGroup(ctx context.Context, g ScopeGroup) error {
	err := r.scoper(g.TenantID).Insert(ctx, groupsTable, tenancy.Values{
		"id":                   g.ID,
		"slug":                 g.Slug,
		"name":                 g.Name,
		"description":          g.Description,
		"discriminator_values": g.Discriminators,
		"created_at":           g.CreatedAt,
		"updated_at":           g.UpdatedAt,
	})
	if err != nil {
		if constraintHit(err, "uq_scope_groups_slug") {
			return shared.ErrDuplicate
		}
		return err
	}
	return nil
}

// GetGroup fetches one group within the tenant.
func (r *Repository) GetGroup(ctx context.Context, tenant, id uuid.UUID) (*ScopeGroup, error) {
	row := r.scoper(tenant).FindRow(ctx, groupsTable, groupColumns, tenancy.Values{"id": id})
	return scanGroup(row, tenant)
}

// ListGroups returns the tenant's groups ordered by slug.
func (r *Repository) ListGroups(ctx context.Context, tenant uuid.UUID) ([]ScopeGroup, error) {
	rows, err := r.scoper(tenant).Find(ctx, groupsTable, groupColumns, nil, tenancy.OrderBy("slug", false))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var groups []ScopeGroup
	for rows.Next() {
		g, err := scanGroupRow(rows, tenant)
		if err != nil {
			return nil, err
		}
		groups = append(groups, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return groups, nil
}

// UpdateGroup patches a group. Zero affected rows — whether the id never
// existed or belongs to another tenant — is ErrNotFound.
func (r *Repository) UpdateGroup(ctx context.Context, tenant, id uuid.UUID, patch GroupPatch) error {
	set := tenancy.Values{"updated_at": time.Now().UTC()}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Discriminators != nil {
		set["discriminator_values"] = *patch.Discriminators
	}
	affected, err := r.scoper(tenant).Update(ctx, groupsTable, set, tenancy.Values{"id": id})
	if err != nil {
		return err
	}
	if affected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeleteGroup removes a group. Its assignments cascade with it.
func (r *Repository) DeleteGroup(ctx context.Context, tenant, id uuid.UUID) error {
	s := r.scoper(tenant)
	if _, err := s.Delete(ctx, assignmentsTable, tenancy.Values{"group_id": id}); err != nil {
		return err
	}
	affected, err := s.Delete(ctx, groupsTable, tenancy.Values{"id": id})
	if err != nil {
		return err
	}
	if affected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// MembershipExists reports whether the membership row belongs to the tenant.
func (r *Repository) MembershipExists(ctx context.Context, tenant, membershipID uuid.UUID) (bool, error) {
	count, err := r.scoper(tenant).Count(ctx, membershipsTable, tenancy.Values{"id": membershipID})
	return count > 0, err
}

// GroupExists reports whether the group row belongs to the tenant.
func (r *Repository) GroupExists(ctx context.Context, tenant, groupID uuid.UUID) (bool, error) {
	count, err := r.scoper(tenant).Count(ctx, groupsTable, tenancy.Values{"id": groupID})
	return count > 0, err
}

// LinkAssignment inserts the assignment pair. Reasserting an existing pair
// is a no-op.
func (r *Repository) LinkAssignment(ctx context.Context, tenant, membershipID, groupID uuid.UUID) error {
	err := r.scoper(tenant).Insert(ctx, assignmentsTable, tenancy.Values{
		"membership_id": membershipID,
		"group_id":      groupID,
	})
	if constraintHit(err, "uq_scope_assignments_pair") {
		return nil
	}
	return err
}

// constraintHit reports whether err is a violation of the named constraint.
func constraintHit(err error, name string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.ConstraintName == name
}

// UnlinkAssignment deletes the assignment pair.
func (r *Repository) UnlinkAssignment(ctx context.Context, tenant, membershipID, groupID uuid.UUID) error {
	affected, err := r.scoper(tenant).Delete(ctx, assignmentsTable, tenancy.Values{
		"membership_id": membershipID,
		"group_id":      groupID,
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// AssignedDiscriminators returns the raw discriminator values across every
// group assigned to the principal's membership. Three scoped lookups rather
// than one join keeps every statement inside the scoper.
func (r *Repository) AssignedDiscriminators(ctx context.Context, tenant uuid.UUID, principalID string) ([]string, error) {
	s := r.scoper(tenant)

	var membershipID uuid.UUID
	err := s.FindRow(ctx, membershipsTable, []string{"id"}, tenancy.Values{"principal_id": principalID}).Scan(&membershipID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}

	rows, err := s.Find(ctx, assignmentsTable, []string{"group_id"}, tenancy.Values{"membership_id": membershipID})
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var groupIDs []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		groupIDs = append(groupIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var values []string
	for _, id := range groupIDs {
		var groupValues []string
		err := s.FindRow(ctx, groupsTable, []string{"discriminator_values"}, tenancy.Values{"id": id}).Scan(&groupValues)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			return nil, err
		}
		values = append(values, groupValues...)
	}
	return values, nil
}

func scanGroup(row pgx.Row, tenant uuid.UUID) (*ScopeGroup, error) {
	var g ScopeGroup
	err := row.Scan(&g.ID, &g.Slug, &g.Name, &g.Description, &g.Discriminators, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	g.TenantID = tenant
	return &g, nil
}

func scanGroupRow(rows pgx.Rows, tenant uuid.UUID) (*ScopeGroup, error) {
	var g ScopeGroup
	if err := rows.Scan(&g.ID, &g.Slug, &g.Name, &g.Description, &g.Discriminators, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, err
	}
	g.TenantID = tenant
	return &g, nil
}

var _ RepositoryPort = (*Repository)(nil)
