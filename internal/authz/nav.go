package authz

import "context"

// VisiblePages returns the pages the identity may view, in registry
// iteration order. It applies the same override and priority rules as
// Resolve; it feeds the navigation menu and never grants access by itself,
// the route guard stays authoritative.
func VisiblePages(identityID string, profile Profile, snap Snapshot) []Page {
	if identityID == "" {
		return nil
	}
	var visible []Page
	for _, page := range snap.Pages {
		if resolvePage(identityID, profile, page, snap.Roles).View {
			visible = append(visible, page)
		}
	}
	return visible
}

// Navigator exposes menu filtering backed by the shared snapshot loader.
type Navigator struct {
	loader *SnapshotLoader
}

// NewNavigator constructs a Navigator.
func NewNavigator(loader *SnapshotLoader) *Navigator {
	return &Navigator{loader: loader}
}

// Visible loads the current snapshot and filters it for the identity.
// A load failure yields an empty menu rather than an error page; the menu
// is advisory only.
func (n *Navigator) Visible(ctx context.Context, identityID string, profile Profile) []Page {
	if n == nil || n.loader == nil {
		return nil
	}
	snap, err := n.loader.Snapshot(ctx)
	if err != nil {
		return nil
	}
	return VisiblePages(identityID, profile, snap)
}
