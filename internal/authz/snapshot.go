package authz

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// SnapshotLoader assembles registry snapshots. Pages and roles are fetched
// concurrently and joined before the resolver runs; ordering between the
// two fetches is irrelevant because Resolve is pure over the joined result.
type SnapshotLoader struct {
	pages PageRegistry
	roles RoleRegistry
	cache *Cache // optional
	group singleflight.Group
}

// NewSnapshotLoader constructs a SnapshotLoader. cache may be nil, in which
// case every call reads through to the registries.
func NewSnapshotLoader(pages PageRegistry, roles RoleRegistry, cache *Cache) *SnapshotLoader {
	return &SnapshotLoader{pages: pages, roles: roles, cache: cache}
}

// Snapshot returns the current registry snapshot, served from cache while
// the version is unchanged. Concurrent cache misses for the same version
// collapse into a single registry read.
func (l *SnapshotLoader) Snapshot(ctx context.Context) (Snapshot, error) {
	if l.cache == nil {
		return l.load(ctx)
	}
	key, err := l.cache.SnapshotKey(ctx)
	if err != nil {
		// Cache unreachable; fall back to a direct read rather than denying.
		return l.load(ctx)
	}
	result, err, _ := l.group.Do(key, func() (any, error) {
		return l.cache.FetchSnapshot(ctx, key, l.load)
	})
	if err != nil {
		return Snapshot{}, err
	}
	return result.(Snapshot), nil
}

func (l *SnapshotLoader) load(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		pages, err := l.pages.ListPages(ctx)
		if err != nil {
			return fmt.Errorf("authz: snapshot pages: %w", err)
		}
		snap.Pages = pages
		return nil
	})
	g.Go(func() error {
		roles, err := l.roles.ListRoles(ctx)
		if err != nil {
			return fmt.Errorf("authz: snapshot roles: %w", err)
		}
		snap.Roles = roles
		return nil
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}
