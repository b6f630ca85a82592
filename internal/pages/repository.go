package pages

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tekni-portal/tekni-portal/internal/authz"
	"github.com/tekni-portal/tekni-portal/internal/shared"
)

// RepositoryPort defines data access methods for pages. The page record is
// the authz.Page the resolver consumes; this module owns the writes.
type RepositoryPort interface {
	ListPages(ctx context.Context) ([]authz.Page, error)
	GetPage(ctx context.Context, id string) (authz.Page, error)
	CreatePage(ctx context.Context, page authz.Page) (authz.Page, error)
	UpdatePage(ctx context.Context, page authz.Page) (authz.Page, error)
	DeletePage(ctx context.Context, id string) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const pageColumns = `id, display_name, path, permissions, created_at, updated_at`

// ListPages returns all pages in registry order.
func (r *Repository) ListPages(ctx context.Context) ([]authz.Page, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+pageColumns+` FROM pages ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("pages: list: %w", err)
	}
	defer rows.Close()
	var pages []authz.Page
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("pages: scan: %w", err)
		}
		pages = append(pages, page)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pages: list: %w", err)
	}
	return pages, nil
}

// GetPage fetches a single page by id.
func (r *Repository) GetPage(ctx context.Context, id string) (authz.Page, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+pageColumns+` FROM pages WHERE id = $1`, id)
	page, err := scanPage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authz.Page{}, shared.ErrNotFound
		}
		return authz.Page{}, fmt.Errorf("pages: get: %w", err)
	}
	return page, nil
}

// CreatePage inserts a new page.
func (r *Repository) CreatePage(ctx context.Context, page authz.Page) (authz.Page, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO pages (id, display_name, path, permissions, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NOW(), NOW())
		 RETURNING `+pageColumns,
		page.ID, page.DisplayName, page.Path, page.Permissions)
	created, err := scanPage(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return authz.Page{}, fmt.Errorf("pages: create: %w", shared.ErrDuplicatePath)
		}
		return authz.Page{}, fmt.Errorf("pages: create: %w", err)
	}
	return created, nil
}

// UpdatePage rewrites display name, path and the full permission document.
func (r *Repository) UpdatePage(ctx context.Context, page authz.Page) (authz.Page, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE pages SET display_name = $2, path = $3, permissions = $4, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+pageColumns,
		page.ID, page.DisplayName, page.Path, page.Permissions)
	updated, err := scanPage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authz.Page{}, shared.ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return authz.Page{}, fmt.Errorf("pages: update: %w", shared.ErrDuplicatePath)
		}
		return authz.Page{}, fmt.Errorf("pages: update: %w", err)
	}
	return updated, nil
}

// DeletePage removes a page; its path simply stops resolving.
func (r *Repository) DeletePage(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM pages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pages: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanPage(row pgx.Row) (authz.Page, error) {
	var page authz.Page
	err := row.Scan(
		&page.ID,
		&page.DisplayName,
		&page.Path,
		&page.Permissions,
		&page.CreatedAt,
		&page.UpdatedAt,
	)
	return page, err
}

var _ RepositoryPort = (*Repository)(nil)
