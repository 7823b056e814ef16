package scopes

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/wildhaven/wildhaven/internal/authz"
)

var folder = cases.Fold()

// normalizeValue trims and case-folds a discriminator so data-entry
// differences ("Koala" vs " koala ") never produce a false denial.
func normalizeValue(s string) string {
	return folder.String(strings.TrimSpace(s))
}

// normalizeSet returns the deduplicated, normalized union of values,
// preserving first-seen order. Blank values are dropped.
func normalizeSet(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		n := normalizeValue(v)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// Matches reports whether a discriminator falls inside an already-normalized
// scope list. Used by list endpoints to filter rows with the same rules the
// per-resource check applies.
func Matches(authorized []string, discriminator string) bool {
	target := normalizeValue(discriminator)
	for _, s := range authorized {
		if s == target {
			return true
		}
	}
	return false
}

// evaluate is the pure access decision. scopes must already be normalized;
// it is only consulted for coordinators.
func evaluate(role authz.Role, scopes []string, principalID string, ref ResourceRef) bool {
	switch role {
	case authz.RoleAdmin:
		return true
	case authz.RoleCoordinator:
		return Matches(scopes, ref.Discriminator)
	}
	// Carer, or no membership at all: owner-only.
	return principalID != "" && ref.OwnerID == principalID
}
