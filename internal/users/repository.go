package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tekni-portal/tekni-portal/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id string) (User, error)
	CreateUser(ctx context.Context, user User, passwordHash string) (User, error)
	UpdateUser(ctx context.Context, user User) (User, error)
	DeleteUser(ctx context.Context, id string) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, email, first_name, last_name, roles, needs_password_change, is_active, created_at, updated_at`

// ListUsers returns all users.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("users: scan: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	return users, nil
}

// GetUser fetches a single user by id.
func (r *Repository) GetUser(ctx context.Context, id string) (User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, fmt.Errorf("users: get: %w", err)
	}
	return user, nil
}

// CreateUser inserts a new account.
func (r *Repository) CreateUser(ctx context.Context, user User, passwordHash string) (User, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO users (id, email, first_name, last_name, password_hash, roles, needs_password_change, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, NOW(), NOW())
		 RETURNING `+userColumns,
		user.ID, user.Email, user.FirstName, user.LastName, passwordHash, user.Roles, user.NeedsPasswordChange)
	created, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, fmt.Errorf("users: create: %w", shared.ErrDuplicateEmail)
		}
		return User{}, fmt.Errorf("users: create: %w", err)
	}
	return created, nil
}

// UpdateUser updates mutable account fields.
func (r *Repository) UpdateUser(ctx context.Context, user User) (User, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE users SET first_name = $2, last_name = $3, roles = $4, needs_password_change = $5, is_active = $6, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+userColumns,
		user.ID, user.FirstName, user.LastName, user.Roles, user.NeedsPasswordChange, user.IsActive)
	updated, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, fmt.Errorf("users: update: %w", err)
	}
	return updated, nil
}

// DeleteUser removes an account. Per-user page overrides referencing the
// id become dead entries the resolver simply never matches.
func (r *Repository) DeleteUser(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("users: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var user User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.Roles,
		&user.NeedsPasswordChange,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

var _ RepositoryPort = (*Repository)(nil)
