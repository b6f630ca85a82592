package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tekni-portal/tekni-portal/internal/auth"
	"github.com/tekni-portal/tekni-portal/internal/authz"
	"github.com/tekni-portal/tekni-portal/internal/observability"
	"github.com/tekni-portal/tekni-portal/internal/pages"
	"github.com/tekni-portal/tekni-portal/internal/platform/httpx"
	"github.com/tekni-portal/tekni-portal/internal/roles"
	"github.com/tekni-portal/tekni-portal/internal/shared"
	"github.com/tekni-portal/tekni-portal/internal/users"
	"github.com/tekni-portal/tekni-portal/internal/view"
	"github.com/tekni-portal/tekni-portal/jobs"
	"github.com/tekni-portal/tekni-portal/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Templates      *view.Engine
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Metrics        *observability.Metrics

	AuthHandler  *auth.Handler
	UsersHandler *users.Handler
	RolesHandler *roles.Handler
	PagesHandler *pages.Handler
	JobHandler   *jobs.Handler

	Guard     *authz.Guard
	Navigator *authz.Navigator
}

// NewRouter constructs the chi.Router. Everything except the auth flows,
// health, metrics and static assets sits behind the route guard, so no
// protected page renders before its authorization decision resolves.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Group(func(r chi.Router) {
		r.Use(params.Guard.Protect)
		r.Use(auth.RequirePasswordChange)

		r.Get("/", homeHandler(params))
		if params.UsersHandler != nil {
			r.Route("/user-management", params.UsersHandler.MountRoutes)
		}
		if params.RolesHandler != nil {
			r.Route("/roles", params.RolesHandler.MountRoutes)
		}
		if params.PagesHandler != nil {
			r.Route("/pages", params.PagesHandler.MountRoutes)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

func homeHandler(params RouterParams) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		csrfToken, _ := params.CSRFManager.EnsureToken(r.Context(), sess)
		var flash *shared.FlashMessage
		if sess != nil {
			flash = sess.PopFlash()
		}
		identity := authz.IdentityFromContext(r.Context())
		var nav []view.NavItem
		if identity != nil {
			for _, page := range params.Navigator.Visible(r.Context(), identity.ID, identity.Profile) {
				nav = append(nav, view.NavItem{Label: page.DisplayName, Path: page.Path, Active: r.URL.Path == page.Path})
			}
		}
		data := view.TemplateData{
			Title:       "פורטל טכני",
			CSRFToken:   csrfToken,
			Flash:       flash,
			CurrentPath: r.URL.Path,
			UserName:    identity.FullName(),
			Nav:         nav,
			Data: map[string]any{
				"AppEnv": params.Config.AppEnv,
			},
		}
		if err := params.Templates.Render(w, "pages/home.html", data); err != nil {
			params.Logger.Error("render home", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	}
}

// staticCacheHandler wraps a file server with Cache-Control headers.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
