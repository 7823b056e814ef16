package membership

import (
	"time"

	"github.com/google/uuid"

	"github.com/wildhaven/wildhaven/internal/authz"
)

// Membership is a principal's role within exactly one tenant. Rows are
// created on first role grant and updated in place; they are never hard
// deleted — absence of a row means the carer default applies.
type Membership struct {
	ID          uuid.UUID
	PrincipalID string
	TenantID    uuid.UUID
	Role        authz.Role
	Assignments []ScopeAssignment
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ScopeAssignment links a membership to a scope group. Unique pair.
type ScopeAssignment struct {
	MembershipID uuid.UUID
	GroupID      uuid.UUID
}
