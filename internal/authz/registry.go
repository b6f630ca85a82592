package authz

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PageRegistry is the read contract the resolver side depends on. Writes
// go through the pages management module.
type PageRegistry interface {
	ListPages(ctx context.Context) ([]Page, error)
}

// RoleRegistry provides read-only access to known roles keyed by id.
type RoleRegistry interface {
	ListRoles(ctx context.Context) (map[string]Role, error)
}

// PGPageRegistry reads pages from PostgreSQL.
type PGPageRegistry struct {
	pool *pgxpool.Pool
}

// NewPGPageRegistry constructs a PGPageRegistry.
func NewPGPageRegistry(pool *pgxpool.Pool) *PGPageRegistry {
	return &PGPageRegistry{pool: pool}
}

// ListPages returns all registered pages in registry order.
func (r *PGPageRegistry) ListPages(ctx context.Context) ([]Page, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, display_name, path, permissions, created_at, updated_at FROM pages ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("authz: list pages: %w", err)
	}
	defer rows.Close()

	var pages []Page
	for rows.Next() {
		var page Page
		if err := rows.Scan(&page.ID, &page.DisplayName, &page.Path, &page.Permissions, &page.CreatedAt, &page.UpdatedAt); err != nil {
			return nil, fmt.Errorf("authz: scan page: %w", err)
		}
		pages = append(pages, page)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("authz: list pages: %w", err)
	}
	return pages, nil
}

// PGRoleRegistry reads roles from PostgreSQL.
type PGRoleRegistry struct {
	pool *pgxpool.Pool
}

// NewPGRoleRegistry constructs a PGRoleRegistry.
func NewPGRoleRegistry(pool *pgxpool.Pool) *PGRoleRegistry {
	return &PGRoleRegistry{pool: pool}
}

// ListRoles returns the role registry keyed by role id.
func (r *PGRoleRegistry) ListRoles(ctx context.Context) (map[string]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, color, priority, created_at, updated_at FROM roles`)
	if err != nil {
		return nil, fmt.Errorf("authz: list roles: %w", err)
	}
	defer rows.Close()

	roles := make(map[string]Role)
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Color, &role.Priority, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, fmt.Errorf("authz: scan role: %w", err)
		}
		roles[role.ID] = role
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("authz: list roles: %w", err)
	}
	return roles, nil
}

var (
	_ PageRegistry = (*PGPageRegistry)(nil)
	_ RoleRegistry = (*PGRoleRegistry)(nil)
)
