package scopes

import (
	"time"

	"github.com/google/uuid"
)

// ScopeGroup is a tenant-owned named set of species values that scopes
// coordinator visibility.
type ScopeGroup struct {
	ID             uuid.UUID `json:"id"`
	TenantID       uuid.UUID `json:"tenant_id"`
	Slug           string    `json:"slug"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	Discriminators []string  `json:"discriminators"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// GroupPatch carries updatable group fields. Nil fields are left unchanged.
type GroupPatch struct {
	Name           *string
	Description    *string
	Discriminators *[]string
}

// ResourceRef is the projection of a record the evaluator needs: its species
// discriminator and its owning principal, if any.
type ResourceRef struct {
	Discriminator string
	OwnerID       string
}
