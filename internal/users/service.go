package users

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/tekni-portal/tekni-portal/internal/authz"
	"github.com/tekni-portal/tekni-portal/internal/shared"
)

// Service handles user management business logic. Every mutation bumps the
// authorization snapshot version so the route guard observes role changes
// on the next resolution, and leaves an audit record.
type Service struct {
	repo   RepositoryPort
	audit  *shared.AuditLogger
	cache  *authz.Cache
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit *shared.AuditLogger, cache *authz.Cache, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, cache: cache, logger: logger}
}

// ListUsers returns all users sorted by display name with Hebrew collation.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	col := collate.New(language.Hebrew)
	sort.SliceStable(users, func(i, j int) bool {
		return col.CompareString(users[i].FullName(), users[j].FullName()) < 0
	})
	return users, nil
}

// GetUser fetches one user.
func (s *Service) GetUser(ctx context.Context, id string) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// CreateUserInput carries the create form fields.
type CreateUserInput struct {
	Email     string
	FirstName string
	LastName  string
	Password  string
	Roles     []string
}

// CreateUser provisions a new account with a temporary password; the user
// must change it on first login.
func (s *Service) CreateUser(ctx context.Context, actorID string, input CreateUserInput) (User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return User{}, errors.New("users: email required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	user := User{
		ID:                  uuid.NewString(),
		Email:               email,
		FirstName:           strings.TrimSpace(input.FirstName),
		LastName:            strings.TrimSpace(input.LastName),
		Roles:               authz.NormalizeRoles(input.Roles),
		NeedsPasswordChange: true,
	}
	created, err := s.repo.CreateUser(ctx, user, string(hash))
	if err != nil {
		return User{}, err
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, actorID, "user.create", created.ID, map[string]any{"email": created.Email, "roles": created.Roles})
	return created, nil
}

// UpdateUserInput carries the edit form fields.
type UpdateUserInput struct {
	FirstName           string
	LastName            string
	Roles               []string
	NeedsPasswordChange bool
	IsActive            bool
}

// UpdateUser applies profile edits, including role assignment.
func (s *Service) UpdateUser(ctx context.Context, actorID, id string, input UpdateUserInput) (User, error) {
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	user.FirstName = strings.TrimSpace(input.FirstName)
	user.LastName = strings.TrimSpace(input.LastName)
	user.Roles = authz.NormalizeRoles(input.Roles)
	user.NeedsPasswordChange = input.NeedsPasswordChange
	user.IsActive = input.IsActive
	updated, err := s.repo.UpdateUser(ctx, user)
	if err != nil {
		return User{}, err
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, actorID, "user.update", updated.ID, map[string]any{"roles": updated.Roles, "active": updated.IsActive})
	return updated, nil
}

// DeleteUser removes an account.
func (s *Service) DeleteUser(ctx context.Context, actorID, id string) error {
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, actorID, "user.delete", id, nil)
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil && s.logger != nil {
		s.logger.Warn("bump authz cache", slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "user", EntityID: entityID, Meta: meta}); err != nil && s.logger != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
