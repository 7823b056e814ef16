// Package tenancy enforces tenant isolation for every persistence operation.
// The Scoper is the sole path to tenant-owned tables: it injects the tenant
// and deployment-environment predicates into each statement it builds, so a
// repository cannot forget them.
package tenancy

import (
	"fmt"

	"github.com/google/uuid"
)

// Environment tags a deployment boundary that must never be crossed.
type Environment string

const (
	EnvProduction Environment = "production"
	EnvStaging    Environment = "staging"
)

// ParseEnvironment validates a configured environment value.
func ParseEnvironment(s string) (Environment, error) {
	switch Environment(s) {
	case EnvProduction:
		return EnvProduction, nil
	case EnvStaging:
		return EnvStaging, nil
	}
	return "", fmt.Errorf("tenancy: unknown environment %q", s)
}

// Scope identifies the tenant and environment context for an operation.
type Scope struct {
	TenantID uuid.UUID
	Env      Environment
}
