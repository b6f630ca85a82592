package authz

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/tekni-portal/tekni-portal/internal/observability"
	"github.com/tekni-portal/tekni-portal/internal/shared"
	"github.com/tekni-portal/tekni-portal/internal/view"
	_ "github.com/tekni-portal/tekni-portal/testing"
)

type stubIdentities struct {
	identity *Identity
	err      error
}

func (s stubIdentities) Current(ctx context.Context) (*Identity, error) {
	return s.identity, s.err
}

func testSnapshotLoader() *SnapshotLoader {
	return NewSnapshotLoader(
		stubPages{pages: []Page{
			{ID: "home", Path: "/", Permissions: PagePermissions{Role: map[string]Permission{"user": {View: true}}}},
			{ID: "admin", Path: "/admin", Permissions: PagePermissions{Role: map[string]Permission{"admin": {View: true, Edit: true}}}},
		}},
		stubRoles{roles: rolesByID(Role{ID: "user", Priority: 3}, Role{ID: "admin", Priority: 1})},
		nil,
	)
}

func newTestGuard(t *testing.T, identities IdentityProvider, loader *SnapshotLoader) *Guard {
	t.Helper()
	templates, err := view.NewEngine()
	require.NoError(t, err)
	return NewGuard(GuardConfig{
		Identities: identities,
		Loader:     loader,
		Templates:  templates,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:    observability.NewMetrics(),
		Timeout:    time.Second,
	})
}

func requestWithSession(t *testing.T, target, userID string) *http.Request {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	manager := shared.NewSessionManager(client, "test_session", "secret", time.Hour, false)

	req := httptest.NewRequest(http.MethodGet, target, nil)
	sess, err := manager.Load(req.Context(), req)
	require.NoError(t, err)
	if userID != "" {
		sess.SetUser(userID)
	}
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func TestGuardRedirectsWithoutSession(t *testing.T) {
	guard := newTestGuard(t, stubIdentities{}, testSnapshotLoader())
	handler := guard.Protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("protected handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin?tab=2", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/auth/login?next=%2Fadmin%3Ftab%3D2", rec.Header().Get("Location"))
}

func TestGuardRedirectsSignedOutSession(t *testing.T) {
	guard := newTestGuard(t, stubIdentities{}, testSnapshotLoader())
	handler := guard.Protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("protected handler must not run")
	}))

	req := requestWithSession(t, "/", "")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestGuardRendersUnavailableOnResolutionFailure(t *testing.T) {
	guard := newTestGuard(t, stubIdentities{err: errors.New("db down")}, testSnapshotLoader())
	handler := guard.Protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("protected handler must not run")
	}))

	req := requestWithSession(t, "/", "u1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	// Transient failure is a 503, never a permissions denial.
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGuardRendersDenied(t *testing.T) {
	identity := &Identity{ID: "u1", Profile: Profile{ID: "u1", Roles: []string{"user"}}}
	guard := newTestGuard(t, stubIdentities{identity: identity}, testSnapshotLoader())
	handler := guard.Protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("protected handler must not run")
	}))

	req := requestWithSession(t, "/admin", "u1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGuardAllowsAndStoresDecision(t *testing.T) {
	identity := &Identity{ID: "u1", Profile: Profile{ID: "u1", Roles: []string{"admin"}}}
	guard := newTestGuard(t, stubIdentities{identity: identity}, testSnapshotLoader())

	var seenDecision Decision
	var seenIdentity *Identity
	handler := guard.Protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenDecision = DecisionFromContext(r.Context())
		seenIdentity = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := requestWithSession(t, "/admin", "u1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, seenDecision.View)
	require.True(t, seenDecision.Edit)
	require.NotNil(t, seenIdentity)
	require.Equal(t, "u1", seenIdentity.ID)
}

func TestRequireEdit(t *testing.T) {
	guard := newTestGuard(t, stubIdentities{}, testSnapshotLoader())

	protected := guard.RequireEdit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	// View-only decision cannot mutate.
	req := httptest.NewRequest(http.MethodPost, "/admin", nil)
	req = req.WithContext(ContextWithDecision(req.Context(), Decision{View: true}))
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	// Edit decision passes through.
	req = httptest.NewRequest(http.MethodPost, "/admin", nil)
	req = req.WithContext(ContextWithDecision(req.Context(), Decision{View: true, Edit: true}))
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
}
