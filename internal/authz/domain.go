package authz

import (
	"strings"
	"time"
)

const (
	// BaselineRole is assumed for profiles created before roles existed.
	BaselineRole = "user"
	// SentinelPriority ranks roles that are referenced by a profile but
	// missing from the role registry. Lower numbers win conflicts, so the
	// sentinel puts unknown roles at the lowest precedence.
	SentinelPriority = 999
)

// Permission is a single view/edit grant. Absent fields deserialize to
// false; defaulting happens here, at the record boundary, not at call sites.
type Permission struct {
	View bool `json:"view"`
	Edit bool `json:"edit"`
}

// PagePermissions holds the two permission sub-maps of a page. Role keys
// are role ids (lowercase); user keys are identity ids.
type PagePermissions struct {
	Role  map[string]Permission `json:"role,omitempty"`
	Users map[string]Permission `json:"users,omitempty"`
}

// Page is a protected navigable resource.
type Page struct {
	ID          string
	DisplayName string
	Path        string
	Permissions PagePermissions
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Role is a named, prioritized permission group. Priority breaks conflicts
// between roles; Color is presentation only.
type Role struct {
	ID        string
	Name      string
	Color     string
	Priority  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Profile is the authorization-relevant facet of a user record.
type Profile struct {
	ID                  string
	Roles               []string
	NeedsPasswordChange bool
}

// Decision is the resolver output for one identity on one path.
type Decision struct {
	View bool
	Edit bool
}

// Snapshot is a consistent read of both registries, taken once per
// resolution. The resolver is a pure function of a snapshot.
type Snapshot struct {
	Pages []Page          `json:"pages"`
	Roles map[string]Role `json:"roles"`
}

// NormalizeRoles lowercases and deduplicates role ids, preserving first
// occurrence order. An empty set collapses to the baseline role so that
// profiles predating role support keep their original access.
func NormalizeRoles(roles []string) []string {
	normalized := make([]string, 0, len(roles))
	seen := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		role = strings.ToLower(strings.TrimSpace(role))
		if role == "" {
			continue
		}
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		normalized = append(normalized, role)
	}
	if len(normalized) == 0 {
		return []string{BaselineRole}
	}
	return normalized
}
