package shared

import "context"

type principalContextKey struct{}

// Principal identifies the authenticated actor for the current request.
// The ID is the opaque identifier issued by the identity provider.
type Principal struct {
	ID string
}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}
