package roles

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/tekni-portal/tekni-portal/internal/authz"
	"github.com/tekni-portal/tekni-portal/internal/shared"
)

// ErrBaselineRole is returned for attempts to delete the fallback role
// that profiles without explicit roles collapse to.
var ErrBaselineRole = errors.New("roles: baseline role cannot be deleted")

// Service handles role management business logic. Role mutations change
// how every page resolves, so each one bumps the authorization snapshot
// version and leaves an audit record.
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

// ListRoles returns all roles ordered by priority.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole fetches one role.
func (s *Service) GetRole(ctx context.Context, id string) (Role, error) {
	return s.repo.GetRole(ctx, NormalizeID(id))
}

// CreateRoleInput carries the create form fields.
type CreateRoleInput struct {
	ID       string
	Name     string
	Color    string
	Priority int
}

// CreateRole registers a new role under a normalized id.
func (s *Service) CreateRole(ctx context.Context, actorID string, input CreateRoleInput) (Role, error) {
	id := NormalizeID(input.ID)
	if id == "" {
		return Role{}, errors.New("roles: id required")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = id
	}
	if input.Priority < 1 {
		return Role{}, errors.New("roles: priority must be positive")
	}
	created, err := s.repo.CreateRole(ctx, Role{ID: id, Name: name, Color: input.Color, Priority: input.Priority})
	if err != nil {
		return Role{}, err
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, actorID, "role.create", created.ID, map[string]any{"name": created.Name, "priority": created.Priority})
	return created, nil
}

// UpdateRoleInput carries the edit form fields.
type UpdateRoleInput struct {
	Name     string
	Color    string
	Priority int
}

// UpdateRole applies display and priority edits to an existing role.
func (s *Service) UpdateRole(ctx context.Context, actorID, id string, input UpdateRoleInput) (Role, error) {
	role, err := s.repo.GetRole(ctx, NormalizeID(id))
	if err != nil {
		return Role{}, err
	}
	if input.Priority < 1 {
		return Role{}, errors.New("roles: priority must be positive")
	}
	role.Name = strings.TrimSpace(input.Name)
	if role.Name == "" {
		role.Name = role.ID
	}
	role.Color = input.Color
	role.Priority = input.Priority
	updated, err := s.repo.UpdateRole(ctx, role)
	if err != nil {
		return Role{}, err
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, actorID, "role.update", updated.ID, map[string]any{"name": updated.Name, "priority": updated.Priority})
	return updated, nil
}

// DeleteRole removes a role. The baseline role stays: without it, legacy
// profiles with no explicit roles would lose all access.
func (s *Service) DeleteRole(ctx context.Context, actorID, id string) error {
	id = NormalizeID(id)
	if id == authz.BaselineRole {
		return ErrBaselineRole
	}
	if err := s.repo.DeleteRole(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, actorID, "role.delete", id, nil)
	return nil
}

// NormalizeID lowercases a role id and collapses inner whitespace to
// hyphens, matching the keys pages store in their role permission map.
func NormalizeID(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	return strings.Join(strings.Fields(id), "-")
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
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "role", EntityID: entityID, Meta: meta}); err != nil && s.logger != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
