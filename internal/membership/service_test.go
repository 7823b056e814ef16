package membership

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildhaven/wildhaven/internal/authz"
	"github.com/wildhaven/wildhaven/internal/directory"
	"github.com/wildhaven/wildhaven/internal/shared"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockRepository struct {
	mu          sync.Mutex
	memberships map[string]*Membership // principal|tenant
	getError    error
	txError     error
}

func newMockRepository() *mockRepository {
	return &mockRepository{memberships: make(map[string]*Membership)}
}

func key(principalID string, tenant uuid.UUID) string {
	return principalID + "|" + tenant.String()
}

func (m *mockRepository) GetMembership(ctx context.Context, principalID string, tenant uuid.UUID) (*Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getError != nil {
		return nil, m.getError
	}
	return m.lookup(principalID, tenant)
}

func (m *mockRepository) lookup(principalID string, tenant uuid.UUID) (*Membership, error) {
	row, ok := m.memberships[key(principalID, tenant)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

// WithTx serializes transactions through the repository mutex, emulating the
// row locks the real repository takes on admin memberships.
func (m *mockRepository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	if m.txError != nil {
		return m.txError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, &mockTx{repo: m})
}

type mockTx struct {
	repo *mockRepository
}

func (t *mockTx) GetMembershipForUpdate(ctx context.Context, principalID string, tenant uuid.UUID) (*Membership, error) {
	return t.repo.lookup(principalID, tenant)
}

func (t *mockTx) LockAdminMemberships(ctx context.Context, tenant uuid.UUID) (int, error) {
	count := 0
	for _, m := range t.repo.memberships {
		if m.TenantID == tenant && m.Role == authz.RoleAdmin {
			count++
		}
	}
	return count, nil
}

func (t *mockTx) UpsertMembership(ctx context.Context, principalID string, tenant uuid.UUID, role authz.Role) (*Membership, error) {
	now := time.Now().UTC()
	k := key(principalID, tenant)
	if existing, ok := t.repo.memberships[k]; ok {
		existing.Role = role
		existing.UpdatedAt = now
		cp := *existing
		return &cp, nil
	}
	row := &Membership{
		ID:          uuid.New(),
		PrincipalID: principalID,
		TenantID:    tenant,
		Role:        role,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	t.repo.memberships[k] = row
	cp := *row
	return &cp, nil
}

type stubDirectory struct {
	roles []directory.TenantRole
	err   error
	calls int
}

func (s *stubDirectory) TenantRoles(ctx context.Context, principalID string) ([]directory.TenantRole, error) {
	s.calls++
	return s.roles, s.err
}

func newService(repo RepositoryPort, dir DirectoryPort) *Service {
	return NewService(repo, dir, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func seedMembership(repo *mockRepository, principalID string, tenant uuid.UUID, role authz.Role) {
	repo.memberships[key(principalID, tenant)] = &Membership{
		ID:          uuid.New(),
		PrincipalID: principalID,
		TenantID:    tenant,
		Role:        role,
	}
}

// ============================================================================
// RESOLUTION
// ============================================================================

func TestGetRoleDefaultsToCarer(t *testing.T) {
	repo := newMockRepository()
	svc := newService(repo, nil)

	role, err := svc.GetRole(context.Background(), "usr_1", uuid.New())
	require.NoError(t, err)
	assert.Equal(t, authz.RoleCarer, role)
}

func TestGetRoleReturnsStoredRole(t *testing.T) {
	repo := newMockRepository()
	tenant := uuid.New()
	seedMembership(repo, "usr_1", tenant, authz.RoleCoordinator)
	svc := newService(repo, nil)

	role, err := svc.GetRole(context.Background(), "usr_1", tenant)
	require.NoError(t, err)
	assert.Equal(t, authz.RoleCoordinator, role)
}

func TestGetRolePropagatesStoreErrors(t *testing.T) {
	repo := newMockRepository()
	repo.getError = errors.New("connection refused")
	svc := newService(repo, nil)

	_, err := svc.GetRole(context.Background(), "usr_1", uuid.New())
	require.Error(t, err)
}

func TestDirectoryFallbackUsedOnlyWithoutLocalRow(t *testing.T) {
	repo := newMockRepository()
	tenant := uuid.New()
	dir := &stubDirectory{roles: []directory.TenantRole{{TenantID: tenant.String(), Role: "admin"}}}
	svc := newService(repo, dir)

	role, err := svc.GetRole(context.Background(), "usr_1", tenant)
	require.NoError(t, err)
	assert.Equal(t, authz.RoleAdmin, role)
	assert.Equal(t, 1, dir.calls)
}

func TestLocalRowOverridesDirectory(t *testing.T) {
	repo := newMockRepository()
	tenant := uuid.New()
	// Explicitly demoted locally; the directory still claims admin.
	seedMembership(repo, "usr_1", tenant, authz.RoleCarer)
	dir := &stubDirectory{roles: []directory.TenantRole{{TenantID: tenant.String(), Role: "admin"}}}
	svc := newService(repo, dir)

	role, err := svc.GetRole(context.Background(), "usr_1", tenant)
	require.NoError(t, err)
	assert.Equal(t, authz.RoleCarer, role)
	assert.Equal(t, 0, dir.calls)
}

func TestDirectoryFailureDegradesToCarer(t *testing.T) {
	repo := newMockRepository()
	dir := &stubDirectory{err: errors.New("directory unavailable")}
	svc := newService(repo, dir)

	role, err := svc.GetRole(context.Background(), "usr_1", uuid.New())
	require.NoError(t, err)
	assert.Equal(t, authz.RoleCarer, role)
}

func TestDirectoryUnknownRoleDegradesToCarer(t *testing.T) {
	repo := newMockRepository()
	tenant := uuid.New()
	dir := &stubDirectory{roles: []directory.TenantRole{{TenantID: tenant.String(), Role: "admin-all"}}}
	svc := newService(repo, dir)

	role, err := svc.GetRole(context.Background(), "usr_1", tenant)
	require.NoError(t, err)
	assert.Equal(t, authz.RoleCarer, role)
}

// ============================================================================
// GUARDS
// ============================================================================

func TestRequirePermission(t *testing.T) {
	repo := newMockRepository()
	tenant := uuid.New()
	seedMembership(repo, "coord", tenant, authz.RoleCoordinator)
	svc := newService(repo, nil)
	ctx := context.Background()

	role, err := svc.RequirePermission(ctx, "coord", tenant, authz.PermAnimalViewAll)
	require.NoError(t, err)
	assert.Equal(t, authz.RoleCoordinator, role)

	_, err = svc.RequirePermission(ctx, "coord", tenant, authz.PermUserManage)
	assert.ErrorIs(t, err, shared.ErrForbidden)

	// No membership at all resolves to carer, which lacks the permission.
	_, err = svc.RequirePermission(ctx, "stranger", tenant, authz.PermAnimalViewAll)
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

func TestRequireMinimumRole(t *testing.T) {
	repo := newMockRepository()
	tenant := uuid.New()
	seedMembership(repo, "admin", tenant, authz.RoleAdmin)
	seedMembership(repo, "carer", tenant, authz.RoleCarer)
	svc := newService(repo, nil)
	ctx := context.Background()

	_, err := svc.RequireMinimumRole(ctx, "admin", tenant, authz.RoleCoordinator)
	require.NoError(t, err)

	_, err = svc.RequireMinimumRole(ctx, "carer", tenant, authz.RoleCoordinator)
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

// ============================================================================
// ROLE MUTATION GUARD
// ============================================================================

func TestSetRoleCreatesMembership(t *testing.T) {
	repo := newMockRepository()
	tenant := uuid.New()
	svc := newService(repo, nil)

	m, err := svc.SetRole(context.Background(), "actor", "usr_1", tenant, authz.RoleCoordinator)
	require.NoError(t, err)
	assert.Equal(t, authz.RoleCoordinator, m.Role)
	assert.Equal(t, "usr_1", m.PrincipalID)
}

func TestSetRoleRejectsInvalidRole(t *testing.T) {
	repo := newMockRepository()
	svc := newService(repo, nil)

	_, err := svc.SetRole(context.Background(), "actor", "usr_1", uuid.New(), authz.Role(9))
	require.Error(t, err)
}

func TestDemoteLastAdminRejected(t *testing.T) {
	repo := newMockRepository()
	tenant := uuid.New()
	seedMembership(repo, "a1", tenant, authz.RoleAdmin)
	svc := newService(repo, nil)

	_, err := svc.SetRole(context.Background(), "a1", "a1", tenant, authz.RoleCoordinator)
	assert.ErrorIs(t, err, shared.ErrLastAdmin)

	// No partial write: the stored role is untouched.
	role, err := svc.GetRole(context.Background(), "a1", tenant)
	require.NoError(t, err)
	assert.Equal(t, authz.RoleAdmin, role)
}

func TestDemoteAdminWithPeerSucceeds(t *testing.T) {
	repo := newMockRepository()
	tenant := uuid.New()
	seedMembership(repo, "a1", tenant, authz.RoleAdmin)
	seedMembership(repo, "a2", tenant, authz.RoleAdmin)
	svc := newService(repo, nil)

	m, err := svc.SetRole(context.Background(), "a2", "a1", tenant, authz.RoleCarer)
	require.NoError(t, err)
	assert.Equal(t, authz.RoleCarer, m.Role)
}

func TestPromotionNeverChecked(t *testing.T) {
	repo := newMockRepository()
	tenant := uuid.New()
	seedMembership(repo, "a1", tenant, authz.RoleAdmin)
	svc := newService(repo, nil)

	// Promoting someone else is always safe, even with a single admin.
	_, err := svc.SetRole(context.Background(), "a1", "usr_2", tenant, authz.RoleAdmin)
	require.NoError(t, err)

	// The original admin can now step down.
	_, err = svc.SetRole(context.Background(), "a1", "a1", tenant, authz.RoleCoordinator)
	require.NoError(t, err)
}

func TestAdminRoleReassertionAllowed(t *testing.T) {
	repo := newMockRepository()
	tenant := uuid.New()
	seedMembership(repo, "a1", tenant, authz.RoleAdmin)
	svc := newService(repo, nil)

	// admin -> admin is not a demotion; the guard must not fire.
	_, err := svc.SetRole(context.Background(), "a1", "a1", tenant, authz.RoleAdmin)
	require.NoError(t, err)
}

func TestConcurrentDemotionsNeverOrphanTenant(t *testing.T) {
	for i := 0; i < 50; i++ {
		repo := newMockRepository()
		tenant := uuid.New()
		seedMembership(repo, "a1", tenant, authz.RoleAdmin)
		seedMembership(repo, "a2", tenant, authz.RoleAdmin)
		svc := newService(repo, nil)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for j, principal := range []string{"a1", "a2"} {
			wg.Add(1)
			go func(idx int, p string) {
				defer wg.Done()
				_, errs[idx] = svc.SetRole(context.Background(), p, p, tenant, authz.RoleCarer)
			}(j, principal)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
			} else {
				require.ErrorIs(t, err, shared.ErrLastAdmin)
			}
		}
		require.Equal(t, 1, succeeded, "exactly one of two concurrent demotions may win")

		tx := &mockTx{repo: repo}
		admins, err := tx.LockAdminMemberships(context.Background(), tenant)
		require.NoError(t, err)
		require.Equal(t, 1, admins, "tenant must keep an admin under any interleaving")
	}
}

func TestConcurrentDemotionOfSoleAdminAlwaysRejected(t *testing.T) {
	repo := newMockRepository()
	tenant := uuid.New()
	seedMembership(repo, "a1", tenant, authz.RoleAdmin)
	svc := newService(repo, nil)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.SetRole(context.Background(), "a1", "a1", tenant, authz.RoleCoordinator)
			assert.ErrorIs(t, err, shared.ErrLastAdmin)
		}()
	}
	wg.Wait()

	role, err := svc.GetRole(context.Background(), "a1", tenant)
	require.NoError(t, err)
	assert.Equal(t, authz.RoleAdmin, role)
}
