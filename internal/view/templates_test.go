package view

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tekni-portal/tekni-portal/internal/shared"
	_ "github.com/tekni-portal/tekni-portal/testing"
)

func TestEngineParsesAllTemplates(t *testing.T) {
	_, err := NewEngine()
	require.NoError(t, err)
}

func TestRenderDeniedPage(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	err = engine.Render(rec, "pages/denied.html", TemplateData{Title: "אין גישה", CurrentPath: "/reports"})
	require.NoError(t, err)
	require.Contains(t, rec.Body.String(), "/reports")
	require.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
}

func TestRenderHomeWithNavAndFlash(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	err = engine.Render(rec, "pages/home.html", TemplateData{
		Title:       "דף הבית",
		UserName:    "דנה לוי",
		CurrentPath: "/",
		Flash:       &shared.FlashMessage{Kind: "success", Message: "ברוכים השבים"},
		Nav: []NavItem{
			{Label: "דף הבית", Path: "/", Active: true},
			{Label: "ניהול משתמשים", Path: "/user-management"},
		},
	})
	require.NoError(t, err)
	body := rec.Body.String()
	require.Contains(t, body, "דנה לוי")
	require.Contains(t, body, "ברוכים השבים")
	require.Contains(t, body, `href="/user-management"`)
}

func TestRenderNilEngine(t *testing.T) {
	var engine *Engine
	err := engine.Render(httptest.NewRecorder(), "pages/home.html", TemplateData{})
	require.Error(t, err)
}
