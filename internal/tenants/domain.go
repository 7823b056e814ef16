package tenants

import (
	"time"

	"github.com/google/uuid"
)

// Tenant is a rescue organisation registered on the platform. Tenants live in
// the root registry and are not themselves tenant-scoped rows.
type Tenant struct {
	ID        uuid.UUID `json:"id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
