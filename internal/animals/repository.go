package animals

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wildhaven/wildhaven/internal/shared"
	"github.com/wildhaven/wildhaven/internal/tenancy"
)

const table = "animals"

var columns = []string{
	"id", "tenant_id", "species", "name", "status",
	"carer_id", "intake_date", "notes", "created_at", "updated_at",
}

type RepositoryPort interface {
	Insert(ctx context.Context, tenant uuid.UUID, a Animal) error
	Get(ctx context.Context, tenant, id uuid.UUID) (*Animal, error)
	List(ctx context.Context, tenant uuid.UUID, filters ListFilters) ([]Animal, error)
	Update(ctx context.Context, tenant, id uuid.UUID, patch Patch) error
	Delete(ctx context.Context, tenant, id uuid.UUID) error
}

// Repository persists animal records. Every statement goes through the
// scoper, so rows never leak across tenants or environments.
type Repository struct {
	pool *pgxpool.Pool
	env  tenancy.Environment
}

func NewRepository(pool *pgxpool.Pool, env tenancy.Environment) *Repository {
	return &Repository{pool: pool, env: env}
}

func (r *Repository) scoper(tenant uuid.UUID) *tenancy.Scoper {
	return tenancy.NewScoper(r.pool, tenancy.Scope{TenantID: tenant, Env: r.env})
}

func (r *Repository) Insert(ctx context.Context, tenant uuid.UUID, a Animal) error {
	return r.scoper(tenant).Insert(ctx, table, tenancy.Values{
		"id":          a.ID,
		"species":     a.Species,
		"name":        a.Name,
		"status":      string(a.Status),
		"carer_id":    a.CarerID,
		"intake_date": a.IntakeDate,
		"notes":       a.Notes,
		"created_at":  a.CreatedAt,
		"updated_at":  a.UpdatedAt,
	})
}

func (r *Repository) Get(ctx context.Context, tenant, id uuid.UUID) (*Animal, error) {
	row := r.scoper(tenant).FindRow(ctx, table, columns, tenancy.Values{"id": id})
	return scanAnimal(row)
}

func (r *Repository) List(ctx context.Context, tenant uuid.UUID, filters ListFilters) ([]Animal, error) {
	filter := tenancy.Values{}
	if filters.Status != "" {
		filter["status"] = string(filters.Status)
	}
	if filters.Species != "" {
		filter["species"] = filters.Species
	}
	if filters.CarerID != "" {
		filter["carer_id"] = filters.CarerID
	}
	rows, err := r.scoper(tenant).Find(ctx, table, columns, filter, tenancy.OrderBy("created_at", true))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Animal
	for rows.Next() {
		a, err := scanAnimal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *Repository) Update(ctx context.Context, tenant, id uuid.UUID, patch Patch) error {
	set := tenancy.Values{}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Status != nil {
		set["status"] = string(*patch.Status)
	}
	if patch.CarerID != nil {
		set["carer_id"] = *patch.CarerID
	}
	if patch.Notes != nil {
		set["notes"] = *patch.Notes
	}
	if len(set) == 0 {
		return nil
	}
	set["updated_at"] = nowUTC()
	affected, err := r.scoper(tenant).Update(ctx, table, set, tenancy.Values{"id": id})
	if err != nil {
		return err
	}
	if affected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, tenant, id uuid.UUID) error {
	affected, err := r.scoper(tenant).Delete(ctx, table, tenancy.Values{"id": id})
	if err != nil {
		return err
	}
	if affected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanAnimal(row pgx.Row) (*Animal, error) {
	var a Animal
	var status string
	err := row.Scan(
		&a.ID, &a.TenantID, &a.Species, &a.Name, &status,
		&a.CarerID, &a.IntakeDate, &a.Notes, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Status = Status(status)
	return &a, nil
}
