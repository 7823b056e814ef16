package shared

import "errors"

var (
	// ErrNotFound indicates the row does not exist within the caller's tenant.
	// Cross-tenant hits report this same error so callers cannot probe for
	// existence of another tenant's rows.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates a permission or minimum-role check failed.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthorized indicates the request carried no valid principal.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrLastAdmin indicates a role change would leave a tenant with no admin.
	ErrLastAdmin = errors.New("cannot demote the last admin of a tenant")
	// ErrDuplicate indicates a uniqueness constraint was hit.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrValidation indicates malformed or missing request input.
	ErrValidation = errors.New("validation failed")
)
