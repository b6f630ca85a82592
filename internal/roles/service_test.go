package roles

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tekni-portal/tekni-portal/internal/shared"
	_ "github.com/tekni-portal/tekni-portal/testing"
)

type memoryRepo struct {
	roles map[string]Role
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{roles: make(map[string]Role)}
}

func (r *memoryRepo) ListRoles(ctx context.Context) ([]Role, error) {
	out := make([]Role, 0, len(r.roles))
	for _, role := range r.roles {
		out = append(out, role)
	}
	return out, nil
}

func (r *memoryRepo) GetRole(ctx context.Context, id string) (Role, error) {
	role, ok := r.roles[id]
	if !ok {
		return Role{}, shared.ErrNotFound
	}
	return role, nil
}

func (r *memoryRepo) CreateRole(ctx context.Context, role Role) (Role, error) {
	if _, ok := r.roles[role.ID]; ok {
		return Role{}, shared.ErrDuplicateRole
	}
	r.roles[role.ID] = role
	return role, nil
}

func (r *memoryRepo) UpdateRole(ctx context.Context, role Role) (Role, error) {
	if _, ok := r.roles[role.ID]; !ok {
		return Role{}, shared.ErrNotFound
	}
	r.roles[role.ID] = role
	return role, nil
}

func (r *memoryRepo) DeleteRole(ctx context.Context, id string) error {
	if _, ok := r.roles[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.roles, id)
	return nil
}

var _ RepositoryPort = (*memoryRepo)(nil)

func TestNormalizeID(t *testing.T) {
	require.Equal(t, "admin", NormalizeID("  ADMIN "))
	require.Equal(t, "shift-manager", NormalizeID("Shift  Manager"))
	require.Equal(t, "", NormalizeID("   "))
}

func TestCreateRole(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)

	created, err := svc.CreateRole(context.Background(), "actor", CreateRoleInput{
		ID:       "Shift Manager",
		Name:     "אחראי משמרת",
		Color:    "#f0ad4e",
		Priority: 2,
	})
	require.NoError(t, err)
	require.Equal(t, "shift-manager", created.ID)
	require.Equal(t, "אחראי משמרת", created.Name)

	_, err = svc.CreateRole(context.Background(), "actor", CreateRoleInput{ID: "shift-manager", Priority: 2})
	require.ErrorIs(t, err, shared.ErrDuplicateRole)
}

func TestCreateRoleValidation(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil, nil)

	_, err := svc.CreateRole(context.Background(), "actor", CreateRoleInput{ID: "", Priority: 1})
	require.Error(t, err)

	_, err = svc.CreateRole(context.Background(), "actor", CreateRoleInput{ID: "editor", Priority: 0})
	require.Error(t, err)
}

func TestUpdateRoleKeepsID(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.CreateRole(context.Background(), "actor", CreateRoleInput{ID: "editor", Name: "עורך", Priority: 2})
	require.NoError(t, err)

	updated, err := svc.UpdateRole(context.Background(), "actor", "EDITOR", UpdateRoleInput{Name: "עורך ראשי", Priority: 1})
	require.NoError(t, err)
	require.Equal(t, "editor", updated.ID)
	require.Equal(t, "עורך ראשי", updated.Name)
	require.Equal(t, 1, updated.Priority)
}

func TestDeleteRoleProtectsBaseline(t *testing.T) {
	repo := newMemoryRepo()
	repo.roles["user"] = Role{ID: "user", Name: "משתמש", Priority: 3}
	svc := NewService(repo, nil, nil, nil)

	err := svc.DeleteRole(context.Background(), "actor", "User")
	require.ErrorIs(t, err, ErrBaselineRole)
	require.Contains(t, repo.roles, "user")
}

func TestDeleteRole(t *testing.T) {
	repo := newMemoryRepo()
	repo.roles["editor"] = Role{ID: "editor", Priority: 2}
	svc := NewService(repo, nil, nil, nil)

	require.NoError(t, svc.DeleteRole(context.Background(), "actor", "editor"))
	require.ErrorIs(t, svc.DeleteRole(context.Background(), "actor", "editor"), shared.ErrNotFound)
}
