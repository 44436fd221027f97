package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-marine/internal/service"
)

func newServer(t *testing.T, dataDir string) *Server {
	t.Helper()
	srv, err := New(Config{
		Host:          "127.0.0.1",
		Port:          "0",
		DataDir:       dataDir,
		LightStyle:    "light-style",
		DarkStyle:     "dark-style",
		FPS:           30,
		AutosaveDelay: 20 * time.Millisecond,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return srv
}

func start(t *testing.T, srv *Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	srv.Start(ctx)
	t.Cleanup(func() {
		cancel()
		srv.Stop()
	})
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func ready(t *testing.T, srv *Server) bool {
	t.Helper()
	var ok bool
	err := srv.Services().Call(context.Background(), func() error {
		ok = srv.Services().Overlays.Ready()
		return nil
	})
	return err == nil && ok
}

func TestRootAndMetrics(t *testing.T) {
	srv := newServer(t, t.TempDir())
	start(t, srv)

	rec := do(t, srv, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "plat-marine")

	rec = do(t, srv, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "marine_active_overlays")

	rec = do(t, srv, http.MethodGet, "/api/v1/info", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"store":"file"`)

	rec = do(t, srv, http.MethodGet, "/api/v1/tables", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestInitialStyleLoads(t *testing.T) {
	srv := newServer(t, t.TempDir())
	start(t, srv)
	require.Eventually(t, func() bool { return ready(t, srv) }, 2*time.Second, 10*time.Millisecond)

	rec := do(t, srv, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ready":true`)
}

func TestAutosaveOnThemeChange(t *testing.T) {
	dir := t.TempDir()
	srv := newServer(t, dir)
	start(t, srv)
	require.Eventually(t, func() bool { return ready(t, srv) }, 2*time.Second, 10*time.Millisecond)

	rec := do(t, srv, http.MethodPut, "/api/v1/theme", `{"theme":"dark"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "dark-style")

	file := filepath.Join(dir, "overlays.json")
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(file)
		if err != nil {
			return false
		}
		var snap service.Snapshot
		return json.Unmarshal(data, &snap) == nil && snap.Theme == "dark"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRestoreFromSnapshot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "overlays.json"), []byte(`{
		"theme": "dark",
		"active": ["nautical"],
		"configs": {"nautical": {"rasterOpacity": 0.3}}
	}`), 0644))

	srv := newServer(t, dir)
	start(t, srv)

	svc := srv.Services()
	require.Eventually(t, func() bool {
		var active []string
		_ = svc.Call(context.Background(), func() error {
			active = svc.Overlays.Active()
			return nil
		})
		return len(active) == 1 && active[0] == "nautical"
	}, 2*time.Second, 10*time.Millisecond)

	var styleURL string
	require.NoError(t, svc.Call(context.Background(), func() error {
		styleURL, _ = svc.Surface.Style()
		return nil
	}))
	assert.Equal(t, "dark-style", styleURL)
	assert.Equal(t, 0.3, svc.Store.Get("nautical")["rasterOpacity"])
}

func TestUnknownStore(t *testing.T) {
	_, err := New(Config{DataDir: t.TempDir(), Store: "redis"})
	assert.ErrorContains(t, err, "unknown store")
}

func TestReloadTemplates(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "theme.html")
	require.NoError(t, os.WriteFile(tmpl, []byte(`{{define "theme-toggle"}}<div id="theme">v1 {{.}}</div>{{end}}`), 0644))

	srv, err := New(Config{
		DataDir:      t.TempDir(),
		TemplatesDir: dir,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	t.Cleanup(srv.Stop)
	assert.Contains(t, srv.renderer.MustRender("theme-toggle", "dark"), "v1 dark")

	require.NoError(t, os.WriteFile(tmpl, []byte(`{{define "theme-toggle"}}<div id="theme">v2 {{.}}</div>{{end}}`), 0644))
	require.NoError(t, srv.ReloadTemplates())
	assert.Contains(t, srv.renderer.MustRender("theme-toggle", "dark"), "v2 dark")

	require.NoError(t, os.WriteFile(tmpl, []byte(`{{define "theme-toggle"}}{{.Broken`), 0644))
	assert.Error(t, srv.ReloadTemplates())
	assert.Contains(t, srv.renderer.MustRender("theme-toggle", "dark"), "v2 dark")
}
