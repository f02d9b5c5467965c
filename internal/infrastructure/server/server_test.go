package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/infrastructure/config"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	root := t.TempDir()
	appDir := filepath.Join(root, "apps", "notes")
	require.NoError(t, os.MkdirAll(appDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(appDir, "app.config.json"),
		[]byte(`{"id":"notes","name":"Notes","html":"index.html"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(appDir, "index.html"),
		[]byte(`<div id="n">notes</div><script src="main.js"></script>`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(appDir, "main.js"),
		[]byte(`document.getElementById("n").textContent = "ready";`), 0o644))

	cfg := config.Default()
	cfg.Apps.Dir = filepath.Join(root, "apps")
	cfg.RateLimit.Enabled = false
	cfg.Sandbox.PoolSize = 1

	srv, err := NewServer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv
}

func TestServerHealth(t *testing.T) {
	srv := newTestServer(t)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestServerSeedsAppsFromDisk(t *testing.T) {
	srv := newTestServer(t)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/apps/notes", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "notes", body["id"])
}

func TestServerOpensSeededApp(t *testing.T) {
	srv := newTestServer(t)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/apps/notes/open?viewer=main", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/viewers/main/document", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ready")
	assert.Contains(t, w.Body.String(), "shadowrootmode")
}

func TestServerMetrics(t *testing.T) {
	srv := newTestServer(t)

	srv.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "go_goroutines"))
	assert.Contains(t, w.Body.String(), "apphost_http_requests_total")

	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics/json", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
