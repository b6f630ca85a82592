package pages

import (
	"context"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/tekni-portal/tekni-portal/internal/authz"
	"github.com/tekni-portal/tekni-portal/internal/shared"
	"github.com/tekni-portal/tekni-portal/internal/users"
	"github.com/tekni-portal/tekni-portal/internal/view"
)

// UserDirectory lists accounts for the per-user override picker.
type UserDirectory interface {
	ListUsers(ctx context.Context) ([]users.User, error)
}

// Handler manages page registry endpoints, including the permission
// editor.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	roles     authz.RoleRegistry
	directory UserDirectory
	templates *view.Engine
	csrf      *shared.CSRFManager
	guard     *authz.Guard
	nav       *authz.Navigator
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, roles authz.RoleRegistry, directory UserDirectory, templates *view.Engine, csrf *shared.CSRFManager, guard *authz.Guard, nav *authz.Navigator) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		roles:     roles,
		directory: directory,
		templates: templates,
		csrf:      csrf,
		guard:     guard,
		nav:       nav,
	}
}

// MountRoutes registers page routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listPages)
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireEdit)
		r.Get("/new", h.showCreateForm)
		r.Post("/", h.createPage)
		r.Get("/{pageID}/edit", h.showEditForm)
		r.Post("/{pageID}", h.updatePage)
		r.Post("/{pageID}/delete", h.deletePage)
		r.Get("/{pageID}/permissions", h.showPermissions)
		r.Post("/{pageID}/permissions/role", h.setRolePermission)
		r.Post("/{pageID}/permissions/role/clear", h.clearRolePermission)
		r.Post("/{pageID}/permissions/user", h.setUserOverride)
		r.Post("/{pageID}/permissions/user/clear", h.clearUserOverride)
	})
}

type formErrors map[string]string

func (h *Handler) listPages(w http.ResponseWriter, r *http.Request) {
	pages, err := h.service.ListPages(r.Context())
	if err != nil {
		h.logger.Error("list pages", slog.Any("error", err))
		h.render(w, r, "pages/pages/list.html", map[string]any{"Errors": formErrors{"general": shared.UserSafeMessage(err)}}, http.StatusInternalServerError)
		return
	}
	canEdit := authz.DecisionFromContext(r.Context()).Edit
	h.render(w, r, "pages/pages/list.html", map[string]any{"Pages": pages, "CanEdit": canEdit}, http.StatusOK)
}

func (h *Handler) showCreateForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/pages/form.html", map[string]any{"Errors": formErrors{}}, http.StatusOK)
}

func (h *Handler) createPage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	_, err := h.service.CreatePage(r.Context(), h.actorID(r), CreatePageInput{
		DisplayName: r.PostFormValue("display_name"),
		Path:        r.PostFormValue("path"),
	})
	if err != nil {
		h.render(w, r, "pages/pages/form.html", map[string]any{
			"Form":   map[string]string{"DisplayName": r.PostFormValue("display_name"), "Path": r.PostFormValue("path")},
			"Errors": formErrors{"general": shared.UserSafeMessage(err)},
		}, http.StatusBadRequest)
		return
	}
	h.redirectWithFlash(w, r, "/pages", "success", "הדף נוצר")
}

func (h *Handler) showEditForm(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.GetPage(r.Context(), chi.URLParam(r, "pageID"))
	if err != nil {
		h.render(w, r, "pages/pages/form.html", map[string]any{"Errors": formErrors{"general": shared.UserSafeMessage(err)}}, http.StatusNotFound)
		return
	}
	h.render(w, r, "pages/pages/form.html", map[string]any{"Page": page, "Errors": formErrors{}}, http.StatusOK)
}

func (h *Handler) updatePage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "pageID")
	_, err := h.service.UpdatePage(r.Context(), h.actorID(r), id, UpdatePageInput{
		DisplayName: r.PostFormValue("display_name"),
		Path:        r.PostFormValue("path"),
	})
	if err != nil {
		h.logger.Error("update page", slog.String("id", id), slog.Any("error", err))
		h.redirectWithFlash(w, r, "/pages", "error", shared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, "/pages", "success", "הדף עודכן")
}

func (h *Handler) deletePage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "pageID")
	if err := h.service.DeletePage(r.Context(), h.actorID(r), id); err != nil {
		h.logger.Error("delete page", slog.String("id", id), slog.Any("error", err))
		h.redirectWithFlash(w, r, "/pages", "error", shared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, "/pages", "success", "הדף נמחק")
}

func (h *Handler) showPermissions(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.GetPage(r.Context(), chi.URLParam(r, "pageID"))
	if err != nil {
		h.redirectWithFlash(w, r, "/pages", "error", shared.UserSafeMessage(err))
		return
	}
	accounts, err := h.directory.ListUsers(r.Context())
	if err != nil {
		h.logger.Warn("list users for overrides", slog.Any("error", err))
	}
	h.render(w, r, "pages/pages/permissions.html", map[string]any{
		"Page":   page,
		"Roles":  h.sortedRoles(r),
		"Users":  accounts,
		"Errors": formErrors{},
	}, http.StatusOK)
}

func (h *Handler) setRolePermission(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	pageID := chi.URLParam(r, "pageID")
	perm := authz.Permission{
		View: r.PostFormValue("view") == "on",
		Edit: r.PostFormValue("edit") == "on",
	}
	if err := h.service.SetRolePermission(r.Context(), h.actorID(r), pageID, r.PostFormValue("role_id"), perm); err != nil {
		h.redirectToPermissions(w, r, pageID, "error", shared.UserSafeMessage(err))
		return
	}
	h.redirectToPermissions(w, r, pageID, "success", "ההרשאה נשמרה")
}

func (h *Handler) clearRolePermission(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	pageID := chi.URLParam(r, "pageID")
	if err := h.service.ClearRolePermission(r.Context(), h.actorID(r), pageID, r.PostFormValue("role_id")); err != nil {
		h.redirectToPermissions(w, r, pageID, "error", shared.UserSafeMessage(err))
		return
	}
	h.redirectToPermissions(w, r, pageID, "success", "ההרשאה הוסרה")
}

func (h *Handler) setUserOverride(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	pageID := chi.URLParam(r, "pageID")
	perm := authz.Permission{
		View: r.PostFormValue("view") == "on",
		Edit: r.PostFormValue("edit") == "on",
	}
	if err := h.service.SetUserOverride(r.Context(), h.actorID(r), pageID, r.PostFormValue("user_id"), perm); err != nil {
		h.redirectToPermissions(w, r, pageID, "error", shared.UserSafeMessage(err))
		return
	}
	h.redirectToPermissions(w, r, pageID, "success", "ההחרגה נשמרה")
}

func (h *Handler) clearUserOverride(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	pageID := chi.URLParam(r, "pageID")
	if err := h.service.ClearUserOverride(r.Context(), h.actorID(r), pageID, r.PostFormValue("user_id")); err != nil {
		h.redirectToPermissions(w, r, pageID, "error", shared.UserSafeMessage(err))
		return
	}
	h.redirectToPermissions(w, r, pageID, "success", "ההחרגה הוסרה")
}

func (h *Handler) redirectToPermissions(w http.ResponseWriter, r *http.Request, pageID, kind, message string) {
	h.redirectWithFlash(w, r, "/pages/"+pageID+"/permissions", kind, message)
}

func (h *Handler) actorID(r *http.Request) string {
	if identity := authz.IdentityFromContext(r.Context()); identity != nil {
		return identity.ID
	}
	return ""
}

func (h *Handler) sortedRoles(r *http.Request) []authz.Role {
	byID, err := h.roles.ListRoles(r.Context())
	if err != nil {
		h.logger.Warn("list roles for form", slog.Any("error", err))
		return nil
	}
	roles := make([]authz.Role, 0, len(byID))
	for _, role := range byID {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool {
		if roles[i].Priority != roles[j].Priority {
			return roles[i].Priority < roles[j].Priority
		}
		return roles[i].ID < roles[j].ID
	})
	return roles
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template string, data map[string]any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	identity := authz.IdentityFromContext(r.Context())
	viewData := view.TemplateData{
		Title:       "ניהול דפים",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		UserName:    identity.FullName(),
		Nav:         navItems(r, h.nav, identity),
		Data:        data,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, template, viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

func navItems(r *http.Request, nav *authz.Navigator, identity *authz.Identity) []view.NavItem {
	if identity == nil {
		return nil
	}
	pages := nav.Visible(r.Context(), identity.ID, identity.Profile)
	items := make([]view.NavItem, 0, len(pages))
	for _, page := range pages {
		items = append(items, view.NavItem{Label: page.DisplayName, Path: page.Path, Active: r.URL.Path == page.Path})
	}
	return items
}
