package authz

import "strings"

// Resolve computes the view/edit decision for an identity on a path.
//
// Pure function: identical inputs always produce identical output, and no
// I/O happens here. Fetching and caching of the snapshot is the loader's
// concern.
func Resolve(identityID string, profile Profile, path string, snap Snapshot) Decision {
	if identityID == "" {
		// Callers redirect unauthenticated requests before resolving; this
		// is the deny-by-default safety net.
		return Decision{}
	}
	page, ok := MatchPage(snap.Pages, path)
	if !ok {
		return Decision{}
	}
	return resolvePage(identityID, profile, page, snap.Roles)
}

// MatchPage finds the page whose path is the longest registered prefix of
// the requested path. Ties go to the longer literal; among equal paths the
// first registered page wins (the registry enforces path uniqueness, so
// equal paths only occur on corrupt data).
func MatchPage(pages []Page, path string) (Page, bool) {
	var best Page
	found := false
	for _, page := range pages {
		if page.Path == "" || !strings.HasPrefix(path, page.Path) {
			continue
		}
		if !found || len(page.Path) > len(best.Path) {
			best = page
			found = true
		}
	}
	return best, found
}

// resolvePage applies the precedence rules for a single page:
//
//  1. A per-user entry wins unconditionally, grant or deny; roles are not
//     consulted at all.
//  2. Otherwise, among the identity's roles that have an entry on the page,
//     the entry of the role with the lowest priority number governs. This
//     lets a high-precedence restrictive role deny what a broader role
//     would grant. View and edit both come from the governing entry since
//     absent sub-fields already defaulted to false at deserialization.
//
// Roles missing from the registry participate with the sentinel priority.
// Equal priorities are broken by lexicographic role id so resolution stays
// deterministic.
func resolvePage(identityID string, profile Profile, page Page, registry map[string]Role) Decision {
	if entry, ok := page.Permissions.Users[identityID]; ok {
		return Decision{View: entry.View, Edit: entry.Edit}
	}

	var (
		governing     Permission
		governingRole string
		priority      int
		found         bool
	)
	for _, roleID := range NormalizeRoles(profile.Roles) {
		entry, ok := page.Permissions.Role[roleID]
		if !ok {
			continue
		}
		rank := SentinelPriority
		if role, ok := registry[roleID]; ok {
			rank = role.Priority
		}
		switch {
		case !found,
			rank < priority,
			rank == priority && roleID < governingRole:
			governing = entry
			governingRole = roleID
			priority = rank
			found = true
		}
	}
	if !found {
		return Decision{}
	}
	return Decision{View: governing.View, Edit: governing.Edit}
}
