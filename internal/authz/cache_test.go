package authz

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewCache(client, time.Minute)
}

func TestCacheVersionInitialises(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	ver, err := cache.Version(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), ver)

	key, err := cache.SnapshotKey(ctx)
	require.NoError(t, err)
	require.Equal(t, "authz:snapshot:1", key)
}

func TestCacheBumpChangesSnapshotKey(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	before, err := cache.SnapshotKey(ctx)
	require.NoError(t, err)

	require.NoError(t, cache.Bump(ctx))

	after, err := cache.SnapshotKey(ctx)
	require.NoError(t, err)
	require.NotEqual(t, before, after)
}

func TestCacheFetchSnapshotPopulatesAndServes(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	loads := 0
	loader := func(ctx context.Context) (Snapshot, error) {
		loads++
		return Snapshot{
			Pages: []Page{{ID: "home", Path: "/"}},
			Roles: rolesByID(Role{ID: "admin", Priority: 1}),
		}, nil
	}

	key, err := cache.SnapshotKey(ctx)
	require.NoError(t, err)

	snap, err := cache.FetchSnapshot(ctx, key, loader)
	require.NoError(t, err)
	require.Len(t, snap.Pages, 1)
	require.Equal(t, 1, loads)

	// Second fetch for the same version hits the cached payload.
	snap, err = cache.FetchSnapshot(ctx, key, loader)
	require.NoError(t, err)
	require.Equal(t, "/", snap.Pages[0].Path)
	require.Equal(t, 1, loads)

	// A bump moves the key, forcing a reload.
	require.NoError(t, cache.Bump(ctx))
	key, err = cache.SnapshotKey(ctx)
	require.NoError(t, err)
	_, err = cache.FetchSnapshot(ctx, key, loader)
	require.NoError(t, err)
	require.Equal(t, 2, loads)
}

func TestSnapshotLoaderReadsThroughWithoutCache(t *testing.T) {
	loader := NewSnapshotLoader(
		stubPages{pages: []Page{{ID: "home", Path: "/"}}},
		stubRoles{roles: rolesByID(Role{ID: "user", Priority: 3})},
		nil,
	)
	snap, err := loader.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Pages, 1)
	require.Len(t, snap.Roles, 1)
}

func TestSnapshotLoaderCachesAcrossCalls(t *testing.T) {
	cache := newTestCache(t)
	pages := &countingPages{pages: []Page{{ID: "home", Path: "/"}}}
	loader := NewSnapshotLoader(pages, stubRoles{roles: rolesByID(Role{ID: "user", Priority: 3})}, cache)
	ctx := context.Background()

	_, err := loader.Snapshot(ctx)
	require.NoError(t, err)
	_, err = loader.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, pages.calls)

	require.NoError(t, cache.Bump(ctx))
	_, err = loader.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, pages.calls)
}

type countingPages struct {
	pages []Page
	calls int
}

func (c *countingPages) ListPages(ctx context.Context) ([]Page, error) {
	c.calls++
	return c.pages, nil
}
