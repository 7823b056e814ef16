package tenants

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/wildhaven/wildhaven/internal/shared"
	"github.com/wildhaven/wildhaven/internal/tenancy"
)

type execStub struct {
	err error
}

func (s *execStub) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, s.err
}

func (s *execStub) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}

func (s *execStub) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

func newTenant(slug string) Tenant {
	now := time.Now().UTC()
	return Tenant{ID: uuid.New(), Slug: slug, Name: slug, CreatedAt: now, UpdatedAt: now}
}

func TestRepositoryCreateDuplicateSlug(t *testing.T) {
	repo := &Repository{
		q:   &execStub{err: &pgconn.PgError{ConstraintName: "uq_tenants_slug"}},
		env: tenancy.EnvProduction,
	}

	err := repo.Create(context.Background(), newTenant("koala-creek"))
	assert.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestCreatePropagatesOtherErrors(t *testing.T) {
	repo := &Repository{
		q:   &execStub{err: &pgconn.PgError{ConstraintName: "tenants_pkey"}},
		env: tenancy.EnvProduction,
	}

	err := repo.Create(context.Background(), newTenant("koala-creek"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, shared.ErrDuplicate)
}
