package animals

import (
	"time"

	"github.com/google/uuid"
)

// Status tracks an animal through the rescue lifecycle.
type Status string

const (
	StatusIntake   Status = "intake"
	StatusInCare   Status = "in_care"
	StatusReleased Status = "released"
	StatusDeceased Status = "deceased"
)

// Animal is a tenant-scoped rescue record. Species doubles as the access
// discriminator for coordinator scope groups; CarerID is the owning carer.
type Animal struct {
	ID         uuid.UUID `json:"id"`
	TenantID   uuid.UUID `json:"tenant_id"`
	Species    string    `json:"species"`
	Name       string    `json:"name"`
	Status     Status    `json:"status"`
	CarerID    string    `json:"carer_id"`
	IntakeDate time.Time `json:"intake_date"`
	Notes      string    `json:"notes"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Patch carries partial updates; nil fields are left unchanged.
type Patch struct {
	Name    *string
	Status  *Status
	CarerID *string
	Notes   *string
}

// ListFilters narrows List results. Zero values mean "no filter".
type ListFilters struct {
	Status  Status
	Species string
	CarerID string
}
