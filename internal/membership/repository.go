package membership

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wildhaven/wildhaven/internal/authz"
	"github.com/wildhaven/wildhaven/internal/platform/db"
	"github.com/wildhaven/wildhaven/internal/shared"
	"github.com/wildhaven/wildhaven/internal/tenancy"
)

const (
	membershipsTable = "memberships"
	assignmentsTable = "scope_assignments"
)

var membershipColumns = []string{"id", "principal_id", "role", "created_at", "updated_at"}

// TxRepository exposes the operations available inside the role-change
// transaction. The invariant check and the write must share this boundary.
type TxRepository interface {
	GetMembershipForUpdate(ctx context.Context, principalID string, tenant uuid.UUID) (*Membership, error)
	LockAdminMemberships(ctx context.Context, tenant uuid.UUID) (int, error)
	UpsertMembership(ctx context.Context, principalID string, tenant uuid.UUID, role authz.Role) (*Membership, error)
}

// RepositoryPort defines data access for memberships.
type RepositoryPort interface {
	GetMembership(ctx context.Context, principalID string, tenant uuid.UUID) (*Membership, error)
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
}

// Repository provides PostgreSQL backed persistence. Every statement goes
// through the tenancy scoper.
type Repository struct {
	pool *pgxpool.Pool
	env  tenancy.Environment
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool, env tenancy.Environment) *Repository {
	return &Repository{pool: pool, env: env}
}

func (r *Repository) scoper(tenant uuid.UUID) *tenancy.Scoper {
	return tenancy.NewScoper(r.pool, tenancy.Scope{TenantID: tenant, Env: r.env})
}

// GetMembership fetches the membership and its scope assignments.
func (r *Repository) GetMembership(ctx context.Context, principalID string, tenant uuid.UUID) (*Membership, error) {
	s := r.scoper(tenant)
	m, err := scanMembership(s.FindRow(ctx, membershipsTable, membershipColumns, tenancy.Values{"principal_id": principalID}), tenant)
	if err != nil {
		return nil, err
	}

	rows, err := s.Find(ctx, assignmentsTable, []string{"membership_id", "group_id"}, tenancy.Values{"membership_id": m.ID})
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var a ScopeAssignment
		if err := rows.Scan(&a.MembershipID, &a.GroupID); err != nil {
			return nil, err
		}
		m.Assignments = append(m.Assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// WithTx runs fn inside a RepeatableRead transaction with the scoper bound
// to it.
func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx, env: r.env})
	})
}

type txRepository struct {
	tx  pgx.Tx
	env tenancy.Environment
}

func (t *txRepository) scoper(tenant uuid.UUID) *tenancy.Scoper {
	return tenancy.NewScoper(t.tx, tenancy.Scope{TenantID: tenant, Env: t.env})
}

// GetMembershipForUpdate fetches and row-locks the principal's membership.
func (t *txRepository) GetMembershipForUpdate(ctx context.Context, principalID string, tenant uuid.UUID) (*Membership, error) {
	row := t.scoper(tenant).FindRow(ctx, membershipsTable, membershipColumns,
		tenancy.Values{"principal_id": principalID}, tenancy.ForUpdate())
	return scanMembership(row, tenant)
}

// LockAdminMemberships locks every admin row in the tenant and returns the
// count. The lock serializes concurrent demotions: two transactions cannot
// both observe "another admin exists" and then remove it.
func (t *txRepository) LockAdminMemberships(ctx context.Context, tenant uuid.UUID) (int, error) {
	rows, err := t.scoper(tenant).Find(ctx, membershipsTable, []string{"id"},
		tenancy.Values{"role": authz.RoleAdmin.String()}, tenancy.ForUpdate())
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	count := 0
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return 0, err
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	return count, nil
}

// UpsertMembership creates or updates the membership row.
func (t *txRepository) UpsertMembership(ctx context.Context, principalID string, tenant uuid.UUID, role authz.Role) (*Membership, error) {
	s := t.scoper(tenant)
	now := time.Now().UTC()
	err := s.Upsert(ctx, membershipsTable,
		[]string{"principal_id", "tenant_id", "environment"},
		tenancy.Values{
			"id":           uuid.New(),
			"principal_id": principalID,
			"role":         role.String(),
			"created_at":   now,
			"updated_at":   now,
		},
		[]string{"role", "updated_at"})
	if err != nil {
		return nil, err
	}
	return scanMembership(s.FindRow(ctx, membershipsTable, membershipColumns,
		tenancy.Values{"principal_id": principalID}), tenant)
}

func scanMembership(row pgx.Row, tenant uuid.UUID) (*Membership, error) {
	var (
		m    Membership
		role string
	)
	if err := row.Scan(&m.ID, &m.PrincipalID, &role, &m.CreatedAt, &m.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	parsed, err := authz.ParseRole(role)
	if err != nil {
		return nil, err
	}
	m.Role = parsed
	m.TenantID = tenant
	return &m, nil
}

var _ RepositoryPort = (*Repository)(nil)
