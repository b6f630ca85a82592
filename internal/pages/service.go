package pages

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/tekni-portal/tekni-portal/internal/authz"
	"github.com/tekni-portal/tekni-portal/internal/shared"
)

// Service handles page registry business logic. Pages carry the permission
// maps the resolver reads, so every mutation bumps the authorization
// snapshot version and leaves an audit record.
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

// ListPages returns all pages in registry order.
func (s *Service) ListPages(ctx context.Context) ([]authz.Page, error) {
	return s.repo.ListPages(ctx)
}

// GetPage fetches one page.
func (s *Service) GetPage(ctx context.Context, id string) (authz.Page, error) {
	return s.repo.GetPage(ctx, id)
}

// CreatePageInput carries the create form fields.
type CreatePageInput struct {
	DisplayName string
	Path        string
}

// CreatePage registers a new page with empty permission maps; until grants
// are added only per-user overrides could open it, so it starts closed.
func (s *Service) CreatePage(ctx context.Context, actorID string, input CreatePageInput) (authz.Page, error) {
	path, err := NormalizePath(input.Path)
	if err != nil {
		return authz.Page{}, err
	}
	name := strings.TrimSpace(input.DisplayName)
	if name == "" {
		name = path
	}
	created, err := s.repo.CreatePage(ctx, authz.Page{
		ID:          uuid.NewString(),
		DisplayName: name,
		Path:        path,
		Permissions: authz.PagePermissions{},
	})
	if err != nil {
		return authz.Page{}, err
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, actorID, "page.create", created.ID, map[string]any{"path": created.Path})
	return created, nil
}

// UpdatePageInput carries the edit form fields.
type UpdatePageInput struct {
	DisplayName string
	Path        string
}

// UpdatePage renames a page or moves it to a new path.
func (s *Service) UpdatePage(ctx context.Context, actorID, id string, input UpdatePageInput) (authz.Page, error) {
	page, err := s.repo.GetPage(ctx, id)
	if err != nil {
		return authz.Page{}, err
	}
	path, err := NormalizePath(input.Path)
	if err != nil {
		return authz.Page{}, err
	}
	page.DisplayName = strings.TrimSpace(input.DisplayName)
	if page.DisplayName == "" {
		page.DisplayName = path
	}
	page.Path = path
	updated, err := s.repo.UpdatePage(ctx, page)
	if err != nil {
		return authz.Page{}, err
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, actorID, "page.update", updated.ID, map[string]any{"path": updated.Path})
	return updated, nil
}

// DeletePage removes a page from the registry.
func (s *Service) DeletePage(ctx context.Context, actorID, id string) error {
	if err := s.repo.DeletePage(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, actorID, "page.delete", id, nil)
	return nil
}

// SetRolePermission writes the role's view/edit entry on a page.
func (s *Service) SetRolePermission(ctx context.Context, actorID, pageID, roleID string, perm authz.Permission) error {
	roleID = strings.ToLower(strings.TrimSpace(roleID))
	if roleID == "" {
		return errors.New("pages: role id required")
	}
	return s.mutatePermissions(ctx, actorID, pageID, "page.permission.role.set",
		map[string]any{"role": roleID, "view": perm.View, "edit": perm.Edit},
		func(p *authz.PagePermissions) {
			if p.Role == nil {
				p.Role = make(map[string]authz.Permission)
			}
			p.Role[roleID] = perm
		})
}

// ClearRolePermission removes the role's entry, returning the page to
// whatever the remaining roles resolve to.
func (s *Service) ClearRolePermission(ctx context.Context, actorID, pageID, roleID string) error {
	roleID = strings.ToLower(strings.TrimSpace(roleID))
	return s.mutatePermissions(ctx, actorID, pageID, "page.permission.role.clear",
		map[string]any{"role": roleID},
		func(p *authz.PagePermissions) {
			delete(p.Role, roleID)
		})
}

// SetUserOverride writes a per-user entry that beats every role grant on
// this page, in both directions.
func (s *Service) SetUserOverride(ctx context.Context, actorID, pageID, userID string, perm authz.Permission) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errors.New("pages: user id required")
	}
	return s.mutatePermissions(ctx, actorID, pageID, "page.permission.user.set",
		map[string]any{"user": userID, "view": perm.View, "edit": perm.Edit},
		func(p *authz.PagePermissions) {
			if p.Users == nil {
				p.Users = make(map[string]authz.Permission)
			}
			p.Users[userID] = perm
		})
}

// ClearUserOverride removes a per-user entry so role resolution applies
// again for that user.
func (s *Service) ClearUserOverride(ctx context.Context, actorID, pageID, userID string) error {
	userID = strings.TrimSpace(userID)
	return s.mutatePermissions(ctx, actorID, pageID, "page.permission.user.clear",
		map[string]any{"user": userID},
		func(p *authz.PagePermissions) {
			delete(p.Users, userID)
		})
}

func (s *Service) mutatePermissions(ctx context.Context, actorID, pageID, action string, meta map[string]any, mutate func(*authz.PagePermissions)) error {
	page, err := s.repo.GetPage(ctx, pageID)
	if err != nil {
		return err
	}
	mutate(&page.Permissions)
	if _, err := s.repo.UpdatePage(ctx, page); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, actorID, action, pageID, meta)
	return nil
}

// NormalizePath canonicalizes a page path: leading slash required, no
// query or fragment, trailing slash trimmed except for the root.
func NormalizePath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" || !strings.HasPrefix(path, "/") {
		return "", errors.New("pages: path must start with /")
	}
	if strings.ContainsAny(path, "?#") {
		return "", errors.New("pages: path must not carry query or fragment")
	}
	if path != "/" {
		path = strings.TrimRight(path, "/")
	}
	return path, nil
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
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "page", EntityID: entityID, Meta: meta}); err != nil && s.logger != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
