package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubPages struct {
	pages []Page
	err   error
}

func (s stubPages) ListPages(ctx context.Context) ([]Page, error) { return s.pages, s.err }

type stubRoles struct {
	roles map[string]Role
	err   error
}

func (s stubRoles) ListRoles(ctx context.Context) (map[string]Role, error) { return s.roles, s.err }

func TestVisiblePagesFiltersAndKeepsOrder(t *testing.T) {
	snap := Snapshot{
		Pages: []Page{
			{ID: "home", Path: "/", Permissions: PagePermissions{Role: map[string]Permission{"user": {View: true}}}},
			{ID: "admin", Path: "/admin", Permissions: PagePermissions{Role: map[string]Permission{"admin": {View: true}}}},
			{ID: "reports", Path: "/reports", Permissions: PagePermissions{Role: map[string]Permission{"user": {View: true}}}},
		},
		Roles: rolesByID(Role{ID: "user", Priority: 3}, Role{ID: "admin", Priority: 1}),
	}

	visible := VisiblePages("u1", Profile{Roles: []string{"user"}}, snap)
	require.Len(t, visible, 2)
	require.Equal(t, "home", visible[0].ID)
	require.Equal(t, "reports", visible[1].ID)
}

func TestVisiblePagesAppliesUserOverrides(t *testing.T) {
	snap := Snapshot{
		Pages: []Page{
			{ID: "secret", Path: "/secret", Permissions: PagePermissions{
				Users: map[string]Permission{"u1": {View: true}},
			}},
		},
	}
	require.Len(t, VisiblePages("u1", Profile{Roles: []string{"user"}}, snap), 1)
	require.Empty(t, VisiblePages("u2", Profile{Roles: []string{"user"}}, snap))
}

func TestVisiblePagesEmptyIdentity(t *testing.T) {
	snap := Snapshot{Pages: []Page{{Path: "/", Permissions: PagePermissions{Role: map[string]Permission{"user": {View: true}}}}}}
	require.Nil(t, VisiblePages("", Profile{}, snap))
}

func TestNavigatorEmptyMenuOnLoadFailure(t *testing.T) {
	loader := NewSnapshotLoader(stubPages{err: errors.New("boom")}, stubRoles{}, nil)
	nav := NewNavigator(loader)
	require.Nil(t, nav.Visible(context.Background(), "u1", Profile{Roles: []string{"user"}}))
}

func TestNavigatorVisible(t *testing.T) {
	loader := NewSnapshotLoader(
		stubPages{pages: []Page{{ID: "home", Path: "/", Permissions: PagePermissions{Role: map[string]Permission{"user": {View: true}}}}}},
		stubRoles{roles: rolesByID(Role{ID: "user", Priority: 3})},
		nil,
	)
	nav := NewNavigator(loader)
	visible := nav.Visible(context.Background(), "u1", Profile{Roles: []string{"user"}})
	require.Len(t, visible, 1)
	require.Equal(t, "home", visible[0].ID)
}
