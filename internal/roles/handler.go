package roles

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tekni-portal/tekni-portal/internal/authz"
	"github.com/tekni-portal/tekni-portal/internal/shared"
	"github.com/tekni-portal/tekni-portal/internal/view"
)

// Handler manages role management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	guard     *authz.Guard
	nav       *authz.Navigator
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, guard *authz.Guard, nav *authz.Navigator) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		templates: templates,
		csrf:      csrf,
		guard:     guard,
		nav:       nav,
	}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listRoles)
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireEdit)
		r.Get("/new", h.showCreateForm)
		r.Post("/", h.createRole)
		r.Get("/{roleID}/edit", h.showEditForm)
		r.Post("/{roleID}", h.updateRole)
		r.Post("/{roleID}/delete", h.deleteRole)
	})
}

type formErrors map[string]string

type roleForm struct {
	ID       string
	Name     string
	Color    string
	Priority string
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		h.render(w, r, "pages/roles/list.html", map[string]any{"Errors": formErrors{"general": shared.UserSafeMessage(err)}}, http.StatusInternalServerError)
		return
	}
	canEdit := authz.DecisionFromContext(r.Context()).Edit
	h.render(w, r, "pages/roles/list.html", map[string]any{"Roles": roles, "CanEdit": canEdit}, http.StatusOK)
}

func (h *Handler) showCreateForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/roles/form.html", map[string]any{"Errors": formErrors{}}, http.StatusOK)
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := roleForm{
		ID:       NormalizeID(r.PostFormValue("id")),
		Name:     r.PostFormValue("name"),
		Color:    r.PostFormValue("color"),
		Priority: r.PostFormValue("priority"),
	}
	errs := make(formErrors)
	priority, convErr := strconv.Atoi(form.Priority)
	if convErr != nil || priority < 1 {
		errs["Priority"] = "עדיפות חייבת להיות מספר חיובי"
	}
	if form.ID == "" {
		errs["ID"] = "נדרש מזהה תפקיד"
	}
	if len(errs) == 0 {
		_, err := h.service.CreateRole(r.Context(), h.actorID(r), CreateRoleInput{
			ID:       form.ID,
			Name:     form.Name,
			Color:    form.Color,
			Priority: priority,
		})
		if err != nil {
			errs["general"] = shared.UserSafeMessage(err)
		}
	}
	if len(errs) > 0 {
		h.render(w, r, "pages/roles/form.html", map[string]any{"Form": form, "Errors": errs}, http.StatusBadRequest)
		return
	}
	h.redirectWithFlash(w, r, "/roles", "success", "התפקיד נוצר")
}

func (h *Handler) showEditForm(w http.ResponseWriter, r *http.Request) {
	role, err := h.service.GetRole(r.Context(), chi.URLParam(r, "roleID"))
	if err != nil {
		h.render(w, r, "pages/roles/form.html", map[string]any{"Errors": formErrors{"general": shared.UserSafeMessage(err)}}, http.StatusNotFound)
		return
	}
	h.render(w, r, "pages/roles/form.html", map[string]any{"Role": role, "Errors": formErrors{}}, http.StatusOK)
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "roleID")
	priority, convErr := strconv.Atoi(r.PostFormValue("priority"))
	if convErr != nil || priority < 1 {
		h.redirectWithFlash(w, r, "/roles", "error", "עדיפות חייבת להיות מספר חיובי")
		return
	}
	_, err := h.service.UpdateRole(r.Context(), h.actorID(r), id, UpdateRoleInput{
		Name:     r.PostFormValue("name"),
		Color:    r.PostFormValue("color"),
		Priority: priority,
	})
	if err != nil {
		h.logger.Error("update role", slog.String("id", id), slog.Any("error", err))
		h.redirectWithFlash(w, r, "/roles", "error", shared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, "/roles", "success", "התפקיד עודכן")
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "roleID")
	err := h.service.DeleteRole(r.Context(), h.actorID(r), id)
	switch {
	case errors.Is(err, ErrBaselineRole):
		h.redirectWithFlash(w, r, "/roles", "error", "לא ניתן למחוק את תפקיד הבסיס")
	case err != nil:
		h.logger.Error("delete role", slog.String("id", id), slog.Any("error", err))
		h.redirectWithFlash(w, r, "/roles", "error", shared.UserSafeMessage(err))
	default:
		h.redirectWithFlash(w, r, "/roles", "success", "התפקיד נמחק")
	}
}

func (h *Handler) actorID(r *http.Request) string {
	if identity := authz.IdentityFromContext(r.Context()); identity != nil {
		return identity.ID
	}
	return ""
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
		Title:       "ניהול תפקידים",
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
