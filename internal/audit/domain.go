package audit

import (
	"time"

	"github.com/google/uuid"
)

// Entry is one append-only record of a privileged mutation. Actor name and
// email are filled in best-effort from the directory; they stay nil when the
// lookup fails.
type Entry struct {
	ID         uuid.UUID      `json:"id"`
	ActorID    string         `json:"actor_id"`
	ActorName  *string        `json:"actor_name,omitempty"`
	ActorEmail *string        `json:"actor_email,omitempty"`
	TenantID   uuid.UUID      `json:"tenant_id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   *string        `json:"entity_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Filters narrows the audit listing. All fields are optional equality
// matches.
type Filters struct {
	ActorID    string
	Action     string
	EntityType string
	Page       int
	PageSize   int
}

// Page wraps one page of entries.
type Page struct {
	Entries  []Entry
	HasNext  bool
	Page     int
	PageSize int
}
