package rbac_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekeeper-auth/gatekeeper/internal/platform/httpx"
	"github.com/gatekeeper-auth/gatekeeper/internal/rbac"
	"github.com/gatekeeper-auth/gatekeeper/internal/shared"
	_ "github.com/gatekeeper-auth/gatekeeper/testing"
)

type mockGraph struct {
	users       map[uuid.UUID]bool // userID -> isSuperuser
	roles       map[uuid.UUID]rbac.Role
	rolePerms   map[uuid.UUID][]string // roleID -> permission codes
	userRoles   map[uuid.UUID][]uuid.UUID
	permissions map[string]struct{}
}

func newMockGraph() *mockGraph {
	return &mockGraph{
		users:       make(map[uuid.UUID]bool),
		roles:       make(map[uuid.UUID]rbac.Role),
		rolePerms:   make(map[uuid.UUID][]string),
		userRoles:   make(map[uuid.UUID][]uuid.UUID),
		permissions: make(map[string]struct{}),
	}
}

func (m *mockGraph) addUser(isSuperuser bool) uuid.UUID {
	id := uuid.New()
	m.users[id] = isSuperuser
	return id
}

func (m *mockGraph) addRole(code string, perms ...string) uuid.UUID {
	id := uuid.New()
	m.roles[id] = rbac.Role{ID: id, Code: code, Description: code, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	m.rolePerms[id] = perms
	return id
}

func (m *mockGraph) ListRoles(ctx context.Context) ([]rbac.Role, error) {
	roles := make([]rbac.Role, 0, len(m.roles))
	for _, role := range m.roles {
		roles = append(roles, role)
	}
	return roles, nil
}

func (m *mockGraph) GetRole(ctx context.Context, id uuid.UUID) (rbac.Role, error) {
	role, ok := m.roles[id]
	if !ok {
		return rbac.Role{}, fmt.Errorf("%w: role is not found", httpx.ErrNotFound)
	}
	return role, nil
}

func (m *mockGraph) CreateRole(ctx context.Context, code, description string) (rbac.Role, error) {
	for _, role := range m.roles {
		if role.Code == code {
			return rbac.Role{}, fmt.Errorf("%w: role is already existed", httpx.ErrDuplicate)
		}
	}
	role := rbac.Role{ID: uuid.New(), Code: code, Description: description, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	m.roles[role.ID] = role
	return role, nil
}

func (m *mockGraph) UpdateRole(ctx context.Context, role rbac.Role) (rbac.Role, error) {
	if _, ok := m.roles[role.ID]; !ok {
		return rbac.Role{}, fmt.Errorf("%w: role is not found", httpx.ErrNotFound)
	}
	role.UpdatedAt = time.Now()
	m.roles[role.ID] = role
	return role, nil
}

func (m *mockGraph) DeleteRole(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.roles[id]; !ok {
		return fmt.Errorf("%w: role is not found", httpx.ErrNotFound)
	}
	delete(m.roles, id)
	delete(m.rolePerms, id)
	for userID, roleIDs := range m.userRoles {
		kept := roleIDs[:0]
		for _, roleID := range roleIDs {
			if roleID != id {
				kept = append(kept, roleID)
			}
		}
		m.userRoles[userID] = kept
	}
	return nil
}

func (m *mockGraph) AssignRoles(ctx context.Context, userID uuid.UUID, roleIDs []uuid.UUID) ([]rbac.UserRole, error) {
	if _, ok := m.users[userID]; !ok {
		return nil, fmt.Errorf("%w: user not found", httpx.ErrNotFound)
	}
	for _, roleID := range roleIDs {
		if _, ok := m.roles[roleID]; !ok {
			return nil, fmt.Errorf("%w: role not found", httpx.ErrNotFound)
		}
	}
	links := make([]rbac.UserRole, 0, len(roleIDs))
	for _, roleID := range roleIDs {
		held := false
		for _, existing := range m.userRoles[userID] {
			if existing == roleID {
				held = true
				break
			}
		}
		if !held {
			m.userRoles[userID] = append(m.userRoles[userID], roleID)
		}
		links = append(links, rbac.UserRole{UserID: userID, RoleID: roleID})
	}
	return links, nil
}

func (m *mockGraph) UserHasAnyRole(ctx context.Context, userID uuid.UUID, roleIDs []uuid.UUID) (bool, error) {
	for _, held := range m.userRoles[userID] {
		for _, roleID := range roleIDs {
			if held == roleID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (m *mockGraph) EffectivePermissions(ctx context.Context, userID uuid.UUID) ([]string, error) {
	seen := make(map[string]struct{})
	perms := []string{}
	for _, roleID := range m.userRoles[userID] {
		for _, code := range m.rolePerms[roleID] {
			if _, ok := seen[code]; ok {
				continue
			}
			seen[code] = struct{}{}
			perms = append(perms, code)
		}
	}
	return perms, nil
}

func (m *mockGraph) IsSuperuser(ctx context.Context, userID uuid.UUID) (bool, error) {
	isSuper, ok := m.users[userID]
	if !ok {
		return false, fmt.Errorf("%w: user not found", httpx.ErrNotFound)
	}
	return isSuper, nil
}

func (m *mockGraph) EnsurePermission(ctx context.Context, code string) error {
	m.permissions[code] = struct{}{}
	return nil
}

var _ rbac.Repository = (*mockGraph)(nil)

func TestEffectivePermissionsUnion(t *testing.T) {
	graph := newMockGraph()
	svc := rbac.NewService(graph)

	userID := graph.addUser(false)
	support := graph.addRole("support", "users", "personal_data")
	admin := graph.addRole("admin", "users", "roles")

	_, err := svc.AssignRoles(context.Background(), userID, []uuid.UUID{support, admin})
	require.NoError(t, err)

	perms, err := svc.PermissionsForUser(context.Background(), userID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"users", "personal_data", "roles"}, perms)
}

func TestEffectivePermissionsEmptyForRolelessUser(t *testing.T) {
	graph := newMockGraph()
	svc := rbac.NewService(graph)
	userID := graph.addUser(false)

	perms, err := svc.PermissionsForUser(context.Background(), userID)
	require.NoError(t, err)
	assert.NotNil(t, perms)
	assert.Empty(t, perms)
}

func TestHasAnyPermission(t *testing.T) {
	graph := newMockGraph()
	svc := rbac.NewService(graph)

	userID := graph.addUser(false)
	support := graph.addRole("support", "personal_data")
	_, err := svc.AssignRoles(context.Background(), userID, []uuid.UUID{support})
	require.NoError(t, err)

	has, err := svc.HasAnyPermission(context.Background(), userID, []string{"roles", "personal_data"})
	require.NoError(t, err)
	assert.True(t, has)

	has, err = svc.HasAnyPermission(context.Background(), userID, []string{"roles"})
	require.NoError(t, err)
	assert.False(t, has)
}

func TestHasAnyPermissionSuperuserBypass(t *testing.T) {
	graph := newMockGraph()
	svc := rbac.NewService(graph)
	superID := graph.addUser(true)

	has, err := svc.HasAnyPermission(context.Background(), superID, []string{"roles"})
	require.NoError(t, err)
	assert.True(t, has)
}

func TestCreateRoleValidation(t *testing.T) {
	svc := rbac.NewService(newMockGraph())

	_, err := svc.CreateRole(context.Background(), "  ", "desc")
	assert.ErrorIs(t, err, httpx.ErrValidation)
	_, err = svc.CreateRole(context.Background(), "admin", "")
	assert.ErrorIs(t, err, httpx.ErrValidation)

	role, err := svc.CreateRole(context.Background(), " admin ", " Full access ")
	require.NoError(t, err)
	assert.Equal(t, "admin", role.Code)
	assert.Equal(t, "Full access", role.Description)

	_, err = svc.CreateRole(context.Background(), "admin", "again")
	assert.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestUpdateRolePatchMerge(t *testing.T) {
	graph := newMockGraph()
	svc := rbac.NewService(graph)
	roleID := graph.addRole("support")

	desc := "Handles member accounts"
	role, err := svc.UpdateRole(context.Background(), roleID, rbac.RolePatch{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "support", role.Code, "unpatched fields stay untouched")
	assert.Equal(t, desc, role.Description)

	empty := " "
	_, err = svc.UpdateRole(context.Background(), roleID, rbac.RolePatch{Code: &empty})
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.UpdateRole(context.Background(), uuid.New(), rbac.RolePatch{Description: &desc})
	assert.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestAssignRolesValidation(t *testing.T) {
	graph := newMockGraph()
	svc := rbac.NewService(graph)
	userID := graph.addUser(false)
	roleID := graph.addRole("support")

	_, err := svc.AssignRoles(context.Background(), userID, nil)
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.AssignRoles(context.Background(), uuid.New(), []uuid.UUID{roleID})
	assert.ErrorIs(t, err, httpx.ErrNotFound)

	_, err = svc.AssignRoles(context.Background(), userID, []uuid.UUID{uuid.New()})
	assert.ErrorIs(t, err, httpx.ErrNotFound)

	// Re-assigning a held role is a no-op, not an error.
	_, err = svc.AssignRoles(context.Background(), userID, []uuid.UUID{roleID})
	require.NoError(t, err)
	_, err = svc.AssignRoles(context.Background(), userID, []uuid.UUID{roleID})
	require.NoError(t, err)
	assert.Len(t, graph.userRoles[userID], 1)
}

func TestHasAnyRole(t *testing.T) {
	graph := newMockGraph()
	svc := rbac.NewService(graph)
	userID := graph.addUser(false)
	roleID := graph.addRole("support")

	has, err := svc.HasAnyRole(context.Background(), userID, []uuid.UUID{roleID})
	require.NoError(t, err)
	assert.False(t, has)

	_, err = svc.AssignRoles(context.Background(), userID, []uuid.UUID{roleID})
	require.NoError(t, err)

	has, err = svc.HasAnyRole(context.Background(), userID, []uuid.UUID{roleID, uuid.New()})
	require.NoError(t, err)
	assert.True(t, has)

	has, err = svc.HasAnyRole(context.Background(), userID, nil)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestClaimsSnapshot(t *testing.T) {
	graph := newMockGraph()
	svc := rbac.NewService(graph)

	userID := graph.addUser(false)
	roleID := graph.addRole("support", "personal_data")
	_, err := svc.AssignRoles(context.Background(), userID, []uuid.UUID{roleID})
	require.NoError(t, err)

	snap, err := svc.ClaimsSnapshot(context.Background(), userID)
	require.NoError(t, err)
	assert.False(t, snap.IsSuperuser)
	assert.Equal(t, []string{"personal_data"}, snap.Permissions)

	superID := graph.addUser(true)
	snap, err = svc.ClaimsSnapshot(context.Background(), superID)
	require.NoError(t, err)
	assert.True(t, snap.IsSuperuser)
}

func TestSeedCreatesVocabulary(t *testing.T) {
	graph := newMockGraph()
	svc := rbac.NewService(graph)

	require.NoError(t, svc.Seed(context.Background()))
	for _, code := range shared.CoreVocabulary() {
		_, ok := graph.permissions[code]
		assert.True(t, ok, "missing permission %q", code)
	}
}
