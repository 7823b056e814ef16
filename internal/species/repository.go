package species

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wildhaven/wildhaven/internal/shared"
)

type RepositoryPort interface {
	List(ctx context.Context, search string) ([]Species, error)
	Get(ctx context.Context, id uuid.UUID) (*Species, error)
}

// Repository reads the shared species catalogue. The table carries no tenant
// column, so queries do not go through the scoper.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) List(ctx context.Context, search string) ([]Species, error) {
	query := `SELECT id, common_name, scientific_name, category FROM species`
	args := []any{}
	if search != "" {
		query += ` WHERE common_name ILIKE $1 OR scientific_name ILIKE $1`
		args = append(args, "%"+search+"%")
	}
	query += ` ORDER BY common_name`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Species
	for rows.Next() {
		var sp Species
		if err := rows.Scan(&sp.ID, &sp.CommonName, &sp.ScientificName, &sp.Category); err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Species, error) {
	var sp Species
	err := r.pool.QueryRow(ctx,
		`SELECT id, common_name, scientific_name, category FROM species WHERE id = $1`,
		id,
	).Scan(&sp.ID, &sp.CommonName, &sp.ScientificName, &sp.Category)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sp, nil
}
