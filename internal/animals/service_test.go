package animals

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildhaven/wildhaven/internal/authz"
	"github.com/wildhaven/wildhaven/internal/scopes"
	"github.com/wildhaven/wildhaven/internal/shared"
)

// ============================================================================
// MOCKS
// ============================================================================

type mockRepo struct {
	byID map[uuid.UUID]Animal
}

func newMockRepo() *mockRepo {
	return &mockRepo{byID: make(map[uuid.UUID]Animal)}
}

func (m *mockRepo) Insert(ctx context.Context, tenant uuid.UUID, a Animal) error {
	m.byID[a.ID] = a
	return nil
}

func (m *mockRepo) Get(ctx context.Context, tenant, id uuid.UUID) (*Animal, error) {
	a, ok := m.byID[id]
	if !ok || a.TenantID != tenant {
		return nil, shared.ErrNotFound
	}
	return &a, nil
}

func (m *mockRepo) List(ctx context.Context, tenant uuid.UUID, filters ListFilters) ([]Animal, error) {
	var out []Animal
	for _, a := range m.byID {
		if a.TenantID != tenant {
			continue
		}
		if filters.Status != "" && a.Status != filters.Status {
			continue
		}
		if filters.Species != "" && a.Species != filters.Species {
			continue
		}
		if filters.CarerID != "" && a.CarerID != filters.CarerID {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *mockRepo) Update(ctx context.Context, tenant, id uuid.UUID, patch Patch) error {
	a, ok := m.byID[id]
	if !ok || a.TenantID != tenant {
		return shared.ErrNotFound
	}
	if patch.Name != nil {
		a.Name = *patch.Name
	}
	if patch.Status != nil {
		a.Status = *patch.Status
	}
	if patch.CarerID != nil {
		a.CarerID = *patch.CarerID
	}
	if patch.Notes != nil {
		a.Notes = *patch.Notes
	}
	m.byID[id] = a
	return nil
}

func (m *mockRepo) Delete(ctx context.Context, tenant, id uuid.UUID) error {
	a, ok := m.byID[id]
	if !ok || a.TenantID != tenant {
		return shared.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

type stubResolver struct {
	roles map[string]authz.Role
}

func (s *stubResolver) GetRole(ctx context.Context, principalID string, tenant uuid.UUID) (authz.Role, error) {
	if role, ok := s.roles[principalID]; ok {
		return role, nil
	}
	return authz.RoleCarer, nil
}

func (s *stubResolver) RequirePermission(ctx context.Context, principalID string, tenant uuid.UUID, perm authz.Permission) (authz.Role, error) {
	role, _ := s.GetRole(ctx, principalID, tenant)
	if !authz.HasPermission(role, perm) {
		return 0, shared.ErrForbidden
	}
	return role, nil
}

// stubAccess applies the same role rules as the real evaluator, driven by a
// fixed scope list per principal.
type stubAccess struct {
	resolver *stubResolver
	scopes   map[string][]string // principal -> normalized scopes
}

func (s *stubAccess) AuthorizedScopes(ctx context.Context, principalID string, tenant uuid.UUID) ([]string, error) {
	role, _ := s.resolver.GetRole(ctx, principalID, tenant)
	switch role {
	case authz.RoleAdmin:
		return nil, nil
	case authz.RoleCoordinator:
		return s.scopes[principalID], nil
	}
	return []string{}, nil
}

func (s *stubAccess) CanAccessResource(ctx context.Context, principalID string, tenant uuid.UUID, ref scopes.ResourceRef) (bool, error) {
	role, _ := s.resolver.GetRole(ctx, principalID, tenant)
	switch role {
	case authz.RoleAdmin:
		return true, nil
	case authz.RoleCoordinator:
		return scopes.Matches(s.scopes[principalID], ref.Discriminator), nil
	}
	return principalID != "" && ref.OwnerID == principalID, nil
}

type fixture struct {
	repo   *mockRepo
	svc    *Service
	tenant uuid.UUID
}

func newFixture(roles map[string]authz.Role, coordScopes map[string][]string) fixture {
	repo := newMockRepo()
	resolver := &stubResolver{roles: roles}
	access := &stubAccess{resolver: resolver, scopes: coordScopes}
	svc := NewService(repo, resolver, access, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return fixture{repo: repo, svc: svc, tenant: uuid.New()}
}

func (f fixture) seed(t *testing.T, species, carerID string) Animal {
	t.Helper()
	a := Animal{
		ID:       uuid.New(),
		TenantID: f.tenant,
		Species:  species,
		Name:     species,
		Status:   StatusInCare,
		CarerID:  carerID,
	}
	require.NoError(t, f.repo.Insert(context.Background(), f.tenant, a))
	return a
}

// ============================================================================
// TESTS
// ============================================================================

func TestCreateCarerAlwaysOwnsRecord(t *testing.T) {
	f := newFixture(map[string]authz.Role{"carer": authz.RoleCarer}, nil)

	a, err := f.svc.Create(context.Background(), "carer", f.tenant, CreateInput{
		Species: "Koala",
		Name:    "Banjo",
		CarerID: "someone-else",
	})
	require.NoError(t, err)
	assert.Equal(t, "carer", a.CarerID)
	assert.Equal(t, StatusIntake, a.Status)
}

func TestCreateCoordinatorMayAssignCarer(t *testing.T) {
	f := newFixture(map[string]authz.Role{"coord": authz.RoleCoordinator}, nil)

	a, err := f.svc.Create(context.Background(), "coord", f.tenant, CreateInput{
		Species: "Koala",
		Name:    "Banjo",
		CarerID: "carer-7",
	})
	require.NoError(t, err)
	assert.Equal(t, "carer-7", a.CarerID)
}

func TestGetOutOfScopeReportsNotFound(t *testing.T) {
	f := newFixture(
		map[string]authz.Role{"coord": authz.RoleCoordinator, "carer": authz.RoleCarer},
		map[string][]string{"coord": {"koala"}},
	)
	wombat := f.seed(t, "Wombat", "someone")

	_, err := f.svc.Get(context.Background(), "coord", f.tenant, wombat.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound, "out of scope must be indistinguishable from missing")

	_, err = f.svc.Get(context.Background(), "carer", f.tenant, wombat.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = f.svc.Get(context.Background(), "coord", f.tenant, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGetWithinScopeSucceeds(t *testing.T) {
	f := newFixture(
		map[string]authz.Role{"coord": authz.RoleCoordinator},
		map[string][]string{"coord": {"koala"}},
	)
	koala := f.seed(t, " Koala ", "someone")

	got, err := f.svc.Get(context.Background(), "coord", f.tenant, koala.ID)
	require.NoError(t, err)
	assert.Equal(t, koala.ID, got.ID)
}

func TestListFiltersByRole(t *testing.T) {
	f := newFixture(
		map[string]authz.Role{
			"admin": authz.RoleAdmin,
			"coord": authz.RoleCoordinator,
			"carer": authz.RoleCarer,
		},
		map[string][]string{"coord": {"koala"}},
	)
	ctx := context.Background()
	f.seed(t, "Koala", "carer")
	f.seed(t, "Koala", "other")
	f.seed(t, "Wombat", "carer")

	adminList, err := f.svc.List(ctx, "admin", f.tenant, ListFilters{})
	require.NoError(t, err)
	assert.Len(t, adminList, 3)

	coordList, err := f.svc.List(ctx, "coord", f.tenant, ListFilters{})
	require.NoError(t, err)
	require.Len(t, coordList, 2)
	for _, a := range coordList {
		assert.Equal(t, "Koala", a.Species)
	}

	carerList, err := f.svc.List(ctx, "carer", f.tenant, ListFilters{})
	require.NoError(t, err)
	require.Len(t, carerList, 2)
	for _, a := range carerList {
		assert.Equal(t, "carer", a.CarerID)
	}
}

func TestUpdateCarerCannotReassignOwnership(t *testing.T) {
	f := newFixture(map[string]authz.Role{"carer": authz.RoleCarer}, nil)
	a := f.seed(t, "Koala", "carer")

	newCarer := "other"
	_, err := f.svc.Update(context.Background(), "carer", f.tenant, a.ID, Patch{CarerID: &newCarer})
	assert.ErrorIs(t, err, shared.ErrForbidden)

	name := "Banjo"
	updated, err := f.svc.Update(context.Background(), "carer", f.tenant, a.ID, Patch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Banjo", updated.Name)
}

func TestDeleteDeniedForCarer(t *testing.T) {
	f := newFixture(map[string]authz.Role{"carer": authz.RoleCarer}, nil)
	a := f.seed(t, "Koala", "carer")

	err := f.svc.Delete(context.Background(), "carer", f.tenant, a.ID)
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

func TestDeleteCoordinatorWithinScope(t *testing.T) {
	f := newFixture(
		map[string]authz.Role{"coord": authz.RoleCoordinator},
		map[string][]string{"coord": {"koala"}},
	)
	ctx := context.Background()
	koala := f.seed(t, "Koala", "someone")
	wombat := f.seed(t, "Wombat", "someone")

	require.NoError(t, f.svc.Delete(ctx, "coord", f.tenant, koala.ID))

	err := f.svc.Delete(ctx, "coord", f.tenant, wombat.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, stillThere := f.repo.byID[wombat.ID]
	assert.True(t, stillThere)
}
