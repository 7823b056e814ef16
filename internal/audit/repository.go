package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wildhaven/wildhaven/internal/tenancy"
)

const table = "audit_entries"

var listColumns = []string{"id", "actor_id", "actor_name", "actor_email", "action", "entity_type", "entity_id", "metadata", "created_at"}

// Repository provides PostgreSQL backed persistence for audit entries.
// The table is append-only: no update or delete path exists.
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

// Insert appends one entry.
func (r *Repository) Insert(ctx context.Context, e Entry) error {
	var metadata any
	if len(e.Metadata) > 0 {
		raw, err := json.Marshal(e.Metadata)
		if err != nil {
			return err
		}
		metadata = raw
	}
	return r.scoper(e.TenantID).Insert(ctx, table, tenancy.Values{
		"id":          e.ID,
		"actor_id":    e.ActorID,
		"actor_name":  e.ActorName,
		"actor_email": e.ActorEmail,
		"action":      e.Action,
		"entity_type": e.EntityType,
		"entity_id":   e.EntityID,
		"metadata":    metadata,
		"created_at":  e.CreatedAt,
	})
}

// List returns entries for the tenant, newest first. One extra row is
// fetched to detect whether a next page exists.
func (r *Repository) List(ctx context.Context, tenant uuid.UUID, filters Filters, limit, offset int) ([]Entry, error) {
	filter := tenancy.Values{}
	if filters.ActorID != "" {
		filter["actor_id"] = filters.ActorID
	}
	if filters.Action != "" {
		filter["action"] = filters.Action
	}
	if filters.EntityType != "" {
		filter["entity_type"] = filters.EntityType
	}
	rows, err := r.scoper(tenant).Find(ctx, table, listColumns, filter,
		tenancy.OrderBy("created_at", true), tenancy.Limit(limit), tenancy.Offset(offset))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e        Entry
			metadata []byte
			created  time.Time
		)
		if err := rows.Scan(&e.ID, &e.ActorID, &e.ActorName, &e.ActorEmail, &e.Action, &e.EntityType, &e.EntityID, &metadata, &created); err != nil {
			return nil, err
		}
		e.TenantID = tenant
		e.CreatedAt = created
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, err
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
