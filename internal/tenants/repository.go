package tenants

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wildhaven/wildhaven/internal/shared"
	"github.com/wildhaven/wildhaven/internal/tenancy"
)

type RepositoryPort interface {
	Create(ctx context.Context, t Tenant) error
	Get(ctx context.Context, id uuid.UUID) (*Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*Tenant, error)
	List(ctx context.Context) ([]Tenant, error)
}

// Repository stores the tenant registry. Tenants are root rows, so queries
// filter on environment explicitly instead of going through the scoper.
type Repository struct {
	q   tenancy.Querier
	env tenancy.Environment
}

func NewRepository(pool *pgxpool.Pool, env tenancy.Environment) *Repository {
	return &Repository{q: pool, env: env}
}

func (r *Repository) Create(ctx context.Context, t Tenant) error {
	_, err := r.q.Exec(ctx,
		`INSERT INTO tenants (id, slug, name, environment, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.Slug, t.Name, r.env, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == "uq_tenants_slug" {
			return shared.ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	row := r.q.QueryRow(ctx,
		`SELECT id, slug, name, created_at, updated_at FROM tenants WHERE id = $1 AND environment = $2`,
		id, r.env,
	)
	return scanTenant(row)
}

func (r *Repository) GetBySlug(ctx context.Context, slug string) (*Tenant, error) {
	row := r.q.QueryRow(ctx,
		`SELECT id, slug, name, created_at, updated_at FROM tenants WHERE slug = $1 AND environment = $2`,
		slug, r.env,
	)
	return scanTenant(row)
}

func (r *Repository) List(ctx context.Context) ([]Tenant, error) {
	rows, err := r.q.Query(ctx,
		`SELECT id, slug, name, created_at, updated_at FROM tenants WHERE environment = $1 ORDER BY slug`,
		r.env,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Tenant
	for rows.Next() {
		var t Tenant
		if err := rows.Scan(&t.ID, &t.Slug, &t.Name, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTenant(row pgx.Row) (*Tenant, error) {
	var t Tenant
	err := row.Scan(&t.ID, &t.Slug, &t.Name, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
