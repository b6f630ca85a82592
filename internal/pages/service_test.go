package pages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tekni-portal/tekni-portal/internal/authz"
	"github.com/tekni-portal/tekni-portal/internal/shared"
	_ "github.com/tekni-portal/tekni-portal/testing"
)

type memoryRepo struct {
	pages map[string]authz.Page
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{pages: make(map[string]authz.Page)}
}

func (r *memoryRepo) ListPages(ctx context.Context) ([]authz.Page, error) {
	out := make([]authz.Page, 0, len(r.pages))
	for _, p := range r.pages {
		out = append(out, p)
	}
	return out, nil
}

func (r *memoryRepo) GetPage(ctx context.Context, id string) (authz.Page, error) {
	p, ok := r.pages[id]
	if !ok {
		return authz.Page{}, shared.ErrNotFound
	}
	return p, nil
}

func (r *memoryRepo) CreatePage(ctx context.Context, page authz.Page) (authz.Page, error) {
	for _, existing := range r.pages {
		if existing.Path == page.Path {
			return authz.Page{}, shared.ErrDuplicatePath
		}
	}
	r.pages[page.ID] = page
	return page, nil
}

func (r *memoryRepo) UpdatePage(ctx context.Context, page authz.Page) (authz.Page, error) {
	if _, ok := r.pages[page.ID]; !ok {
		return authz.Page{}, shared.ErrNotFound
	}
	for id, existing := range r.pages {
		if id != page.ID && existing.Path == page.Path {
			return authz.Page{}, shared.ErrDuplicatePath
		}
	}
	r.pages[page.ID] = page
	return page, nil
}

func (r *memoryRepo) DeletePage(ctx context.Context, id string) error {
	if _, ok := r.pages[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.pages, id)
	return nil
}

var _ RepositoryPort = (*memoryRepo)(nil)

func TestNormalizePath(t *testing.T) {
	path, err := NormalizePath(" /reports/ ")
	require.NoError(t, err)
	require.Equal(t, "/reports", path)

	path, err = NormalizePath("/")
	require.NoError(t, err)
	require.Equal(t, "/", path)

	_, err = NormalizePath("reports")
	require.Error(t, err)

	_, err = NormalizePath("/reports?x=1")
	require.Error(t, err)

	_, err = NormalizePath("")
	require.Error(t, err)
}

func TestCreatePageStartsClosed(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)

	created, err := svc.CreatePage(context.Background(), "actor", CreatePageInput{DisplayName: "דוחות", Path: "/reports"})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.Empty(t, created.Permissions.Role)
	require.Empty(t, created.Permissions.Users)

	// Nobody resolves view on a fresh page.
	snap := authz.Snapshot{Pages: []authz.Page{created}}
	d := authz.Resolve("u1", authz.Profile{Roles: []string{"admin"}}, "/reports", snap)
	require.False(t, d.View)
}

func TestCreatePageDuplicatePath(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.CreatePage(context.Background(), "actor", CreatePageInput{Path: "/reports"})
	require.NoError(t, err)
	_, err = svc.CreatePage(context.Background(), "actor", CreatePageInput{Path: "/reports/"})
	require.ErrorIs(t, err, shared.ErrDuplicatePath)
}

func TestSetAndClearRolePermission(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)

	created, err := svc.CreatePage(context.Background(), "actor", CreatePageInput{Path: "/reports"})
	require.NoError(t, err)

	err = svc.SetRolePermission(context.Background(), "actor", created.ID, " Editor ", authz.Permission{View: true})
	require.NoError(t, err)

	page, err := svc.GetPage(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, authz.Permission{View: true}, page.Permissions.Role["editor"])

	err = svc.ClearRolePermission(context.Background(), "actor", created.ID, "editor")
	require.NoError(t, err)

	page, err = svc.GetPage(context.Background(), created.ID)
	require.NoError(t, err)
	require.NotContains(t, page.Permissions.Role, "editor")
}

func TestSetAndClearUserOverride(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)

	created, err := svc.CreatePage(context.Background(), "actor", CreatePageInput{Path: "/reports"})
	require.NoError(t, err)
	require.NoError(t, svc.SetRolePermission(context.Background(), "actor", created.ID, "admin", authz.Permission{View: true, Edit: true}))

	// Override denies a user the admin role would otherwise admit.
	require.NoError(t, svc.SetUserOverride(context.Background(), "actor", created.ID, "u1", authz.Permission{}))

	page, err := svc.GetPage(context.Background(), created.ID)
	require.NoError(t, err)
	snap := authz.Snapshot{Pages: []authz.Page{page}, Roles: map[string]authz.Role{"admin": {ID: "admin", Priority: 1}}}
	require.False(t, authz.Resolve("u1", authz.Profile{Roles: []string{"admin"}}, "/reports", snap).View)
	require.True(t, authz.Resolve("u2", authz.Profile{Roles: []string{"admin"}}, "/reports", snap).View)

	require.NoError(t, svc.ClearUserOverride(context.Background(), "actor", created.ID, "u1"))
	page, err = svc.GetPage(context.Background(), created.ID)
	require.NoError(t, err)
	snap.Pages = []authz.Page{page}
	require.True(t, authz.Resolve("u1", authz.Profile{Roles: []string{"admin"}}, "/reports", snap).View)
}

func TestUpdatePageMovesPath(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)

	created, err := svc.CreatePage(context.Background(), "actor", CreatePageInput{DisplayName: "דוחות", Path: "/reports"})
	require.NoError(t, err)

	updated, err := svc.UpdatePage(context.Background(), "actor", created.ID, UpdatePageInput{DisplayName: "דוחות", Path: "/analytics/"})
	require.NoError(t, err)
	require.Equal(t, "/analytics", updated.Path)
}
