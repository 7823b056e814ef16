package scopes

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wildhaven/wildhaven/internal/authz"
)

func TestNormalizeValue(t *testing.T) {
	cases := map[string]string{
		"Koala":                    "koala",
		"  Eastern Grey Kangaroo ": "eastern grey kangaroo",
		"\tFOX\n":                  "fox",
		"   ":                      "",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeValue(in), "normalizeValue(%q)", in)
	}
}

func TestNormalizeSetDedupes(t *testing.T) {
	got := normalizeSet([]string{"Fox", " fox ", "OWL", "owl", "", "  "})
	assert.Equal(t, []string{"fox", "owl"}, got)
}

func TestEvaluateAdminAlwaysAllowed(t *testing.T) {
	assert.True(t, evaluate(authz.RoleAdmin, nil, "a1", ResourceRef{Discriminator: "anything", OwnerID: "other"}))
	assert.True(t, evaluate(authz.RoleAdmin, nil, "a1", ResourceRef{}))
}

func TestEvaluateCoordinatorScopeMatch(t *testing.T) {
	scopes := normalizeSet([]string{"Eastern Grey Kangaroo", "Koala"})

	assert.True(t, evaluate(authz.RoleCoordinator, scopes, "c1", ResourceRef{Discriminator: " eastern grey kangaroo "}))
	assert.True(t, evaluate(authz.RoleCoordinator, scopes, "c1", ResourceRef{Discriminator: "KOALA"}))
	assert.False(t, evaluate(authz.RoleCoordinator, scopes, "c1", ResourceRef{Discriminator: "Wombat"}))
	// Ownership does not widen a coordinator's scope.
	assert.False(t, evaluate(authz.RoleCoordinator, scopes, "c1", ResourceRef{Discriminator: "Wombat", OwnerID: "c1"}))
}

func TestEvaluateCoordinatorWithoutScopesSeesNothing(t *testing.T) {
	assert.False(t, evaluate(authz.RoleCoordinator, nil, "c1", ResourceRef{Discriminator: "Koala"}))
}

func TestEvaluateCarerOwnerOnly(t *testing.T) {
	assert.True(t, evaluate(authz.RoleCarer, nil, "k1", ResourceRef{Discriminator: "Koala", OwnerID: "k1"}))
	assert.False(t, evaluate(authz.RoleCarer, nil, "k1", ResourceRef{Discriminator: "Koala", OwnerID: "other"}))
	assert.False(t, evaluate(authz.RoleCarer, nil, "k1", ResourceRef{Discriminator: "Koala"}))
}

func TestEvaluateUnknownPrincipalNeverMatchesBlankOwner(t *testing.T) {
	assert.False(t, evaluate(authz.RoleCarer, nil, "", ResourceRef{Discriminator: "Koala", OwnerID: ""}))
}
