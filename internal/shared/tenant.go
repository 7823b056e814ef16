package shared

import (
	"net/http"

	"github.com/google/uuid"
)

// TenantHeader names the header carrying the caller's claimed tenant.
const TenantHeader = "X-Tenant-ID"

// TenantFromRequest parses the claimed tenant id. The claim is only a
// routing hint: every query is still scoped to it, so claiming another
// tenant yields that tenant's guards, not its data.
func TenantFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := r.Header.Get(TenantHeader)
	if raw == "" {
		return uuid.Nil, ErrUnauthorized
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, ErrUnauthorized
	}
	return id, nil
}
