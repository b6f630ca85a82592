package users

import (
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tekni-portal/tekni-portal/internal/authz"
	"github.com/tekni-portal/tekni-portal/internal/shared"
	"github.com/tekni-portal/tekni-portal/internal/view"
)

// Handler manages user management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	roles     authz.RoleRegistry
	templates *view.Engine
	csrf      *shared.CSRFManager
	guard     *authz.Guard
	nav       *authz.Navigator
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, roles authz.RoleRegistry, templates *view.Engine, csrf *shared.CSRFManager, guard *authz.Guard, nav *authz.Navigator) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		roles:     roles,
		templates: templates,
		csrf:      csrf,
		guard:     guard,
		nav:       nav,
		validator: validator.New(),
	}
}

// MountRoutes registers user routes. View access is already settled by the
// route guard wrapping this subtree; mutations additionally require edit.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listUsers)
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireEdit)
		r.Get("/new", h.showCreateForm)
		r.Post("/", h.createUser)
		r.Get("/{userID}/edit", h.showEditForm)
		r.Post("/{userID}", h.updateUser)
		r.Post("/{userID}/delete", h.deleteUser)
	})
}

type formErrors map[string]string

type createUserForm struct {
	Email     string `validate:"required,email"`
	FirstName string `validate:"required"`
	LastName  string `validate:"required"`
	Password  string `validate:"required,min=8"`
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		h.render(w, r, "pages/users/list.html", map[string]any{"Errors": formErrors{"general": shared.UserSafeMessage(err)}}, http.StatusInternalServerError)
		return
	}
	canEdit := authz.DecisionFromContext(r.Context()).Edit
	h.render(w, r, "pages/users/list.html", map[string]any{"Users": users, "CanEdit": canEdit}, http.StatusOK)
}

func (h *Handler) showCreateForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/users/form.html", map[string]any{"Roles": h.sortedRoles(r), "Errors": formErrors{}}, http.StatusOK)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := createUserForm{
		Email:     r.PostFormValue("email"),
		FirstName: r.PostFormValue("first_name"),
		LastName:  r.PostFormValue("last_name"),
		Password:  r.PostFormValue("password"),
	}
	errors := make(formErrors)
	if err := h.validator.Struct(form); err != nil {
		for _, fieldErr := range err.(validator.ValidationErrors) {
			errors[fieldErr.Field()] = fieldErr.Error()
		}
	}
	if len(errors) == 0 {
		_, err := h.service.CreateUser(r.Context(), h.actorID(r), CreateUserInput{
			Email:     form.Email,
			FirstName: form.FirstName,
			LastName:  form.LastName,
			Password:  form.Password,
			Roles:     r.PostForm["roles"],
		})
		if err != nil {
			errors["general"] = shared.UserSafeMessage(err)
		}
	}
	if len(errors) > 0 {
		h.render(w, r, "pages/users/form.html", map[string]any{"Roles": h.sortedRoles(r), "Form": form, "Errors": errors}, http.StatusBadRequest)
		return
	}
	h.redirectWithFlash(w, r, "/user-management", "success", "המשתמש נוצר")
}

func (h *Handler) showEditForm(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.render(w, r, "pages/users/form.html", map[string]any{"Errors": formErrors{"general": shared.UserSafeMessage(err)}}, http.StatusNotFound)
		return
	}
	h.render(w, r, "pages/users/form.html", map[string]any{"User": user, "Roles": h.sortedRoles(r), "Errors": formErrors{}}, http.StatusOK)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "userID")
	_, err := h.service.UpdateUser(r.Context(), h.actorID(r), id, UpdateUserInput{
		FirstName:           r.PostFormValue("first_name"),
		LastName:            r.PostFormValue("last_name"),
		Roles:               r.PostForm["roles"],
		NeedsPasswordChange: r.PostFormValue("needs_password_change") == "on",
		IsActive:            r.PostFormValue("is_active") == "on",
	})
	if err != nil {
		h.logger.Error("update user", slog.String("id", id), slog.Any("error", err))
		h.redirectWithFlash(w, r, "/user-management", "error", shared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, "/user-management", "success", "המשתמש עודכן")
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "userID")
	if err := h.service.DeleteUser(r.Context(), h.actorID(r), id); err != nil {
		h.logger.Error("delete user", slog.String("id", id), slog.Any("error", err))
		h.redirectWithFlash(w, r, "/user-management", "error", shared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, "/user-management", "success", "המשתמש נמחק")
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
		Title:       "ניהול משתמשים",
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
