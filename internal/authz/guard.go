package authz

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tekni-portal/tekni-portal/internal/observability"
	"github.com/tekni-portal/tekni-portal/internal/shared"
	"github.com/tekni-portal/tekni-portal/internal/view"
)

// Guard enforces page authorization on navigation. Outcomes:
//
//   - no session identity: 303 redirect to the login route, carrying the
//     originally requested path as the `next` query parameter;
//   - identity/registry fetch failure or timeout: a retryable 503 page,
//     deliberately distinct from denial so the user knows it is transient;
//   - view denied: a 403 access-denied page, staying on the denying path;
//   - view allowed: decision and identity stored in the request context,
//     protected handler served.
//
// The guard runs strictly before its children, so protected content can
// never be written before resolution completes. In-flight resolutions for
// abandoned navigations die with the request context.
type Guard struct {
	identities IdentityProvider
	loader     *SnapshotLoader
	templates  *view.Engine
	logger     *slog.Logger
	metrics    *observability.Metrics
	loginPath  string
	timeout    time.Duration
}

// GuardConfig collects Guard dependencies.
type GuardConfig struct {
	Identities IdentityProvider
	Loader     *SnapshotLoader
	Templates  *view.Engine
	Logger     *slog.Logger
	Metrics    *observability.Metrics
	LoginPath  string
	Timeout    time.Duration
}

// NewGuard constructs a Guard.
func NewGuard(cfg GuardConfig) *Guard {
	loginPath := cfg.LoginPath
	if loginPath == "" {
		loginPath = "/auth/login"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Guard{
		identities: cfg.Identities,
		loader:     cfg.Loader,
		templates:  cfg.Templates,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		loginPath:  loginPath,
		timeout:    timeout,
	}
}

// Protect wraps a handler subtree with the authorization check.
func (g *Guard) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil || sess.User() == "" {
			g.metrics.ObserveAuthzDecision("unauthenticated")
			g.redirectToLogin(w, r)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), g.timeout)
		defer cancel()

		var (
			identity *Identity
			snap     Snapshot
		)
		eg, egCtx := errgroup.WithContext(ctx)
		eg.Go(func() error {
			var err error
			identity, err = g.identities.Current(egCtx)
			return err
		})
		eg.Go(func() error {
			var err error
			snap, err = g.loader.Snapshot(egCtx)
			return err
		})
		if err := eg.Wait(); err != nil {
			// Never silently grant; also never report a transient failure
			// as a permissions decision.
			g.logger.Error("authz: resolution failed", slog.String("path", r.URL.Path), slog.Any("error", err))
			g.metrics.ObserveAuthzDecision("error")
			g.renderUnavailable(w, r)
			return
		}
		if identity == nil {
			// Session expired between the cookie check and the profile read.
			g.metrics.ObserveAuthzDecision("unauthenticated")
			g.redirectToLogin(w, r)
			return
		}

		decision := Resolve(identity.ID, identity.Profile, r.URL.Path, snap)
		if !decision.View {
			g.metrics.ObserveAuthzDecision("denied")
			g.renderDenied(w, r)
			return
		}

		g.metrics.ObserveAuthzDecision("allowed")
		reqCtx := ContextWithIdentity(r.Context(), identity)
		reqCtx = ContextWithDecision(reqCtx, decision)
		next.ServeHTTP(w, r.WithContext(reqCtx))
	})
}

// RequireEdit gates mutation routes on the edit half of the decision made
// by Protect. It must be mounted inside a Protect chain.
func (g *Guard) RequireEdit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !DecisionFromContext(r.Context()).Edit {
			g.metrics.ObserveAuthzDecision("denied")
			g.renderDenied(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (g *Guard) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	target := g.loginPath
	if requested := r.URL.RequestURI(); requested != "" && requested != "/" {
		target += "?next=" + url.QueryEscape(requested)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (g *Guard) renderDenied(w http.ResponseWriter, r *http.Request) {
	g.renderStatus(w, r, "pages/denied.html", "אין גישה", http.StatusForbidden)
}

func (g *Guard) renderUnavailable(w http.ResponseWriter, r *http.Request) {
	g.renderStatus(w, r, "pages/unavailable.html", "שגיאה זמנית", http.StatusServiceUnavailable)
}

func (g *Guard) renderStatus(w http.ResponseWriter, r *http.Request, template, title string, status int) {
	data := view.TemplateData{Title: title, CurrentPath: r.URL.Path}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := g.templates.Render(w, template, data); err != nil {
		g.logger.Error("authz: render guard page", slog.String("template", template), slog.Any("error", err))
	}
}
