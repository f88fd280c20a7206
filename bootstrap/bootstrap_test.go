package bootstrap_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/schemagate/adapters/auth"
	"github.com/artpar/schemagate/bootstrap"
	"github.com/artpar/schemagate/config"
)

const catalogYAML = `
package: notes
apis:
  - name: notes
    version: v1
    roots: [Note]
types:
  Note:
    properties:
      id: { type: String, required: true }
      tags: Map<String, Integer>
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func setup(t *testing.T, extra string) (*bootstrap.App, string) {
	t.Helper()

	dir := t.TempDir()
	catalogDir := filepath.Join(dir, "apis")
	require.NoError(t, os.Mkdir(catalogDir, 0755))
	writeFile(t, filepath.Join(catalogDir, "notes.yaml"), catalogYAML)

	cfgPath := filepath.Join(dir, "schemagate.yaml")
	writeFile(t, cfgPath, "catalog:\n  dir: "+catalogDir+"\n"+
		"database:\n  driver: sqlite\n  dsn: "+filepath.Join(dir, "snap.db")+"\n"+
		"snapshots:\n  enabled: true\n"+extra)

	a, err := bootstrap.New(bootstrap.Options{
		ConfigPath: cfgPath,
		Registerer: prometheus.NewRegistry(),
		LogOutput:  &bytes.Buffer{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { a.Shutdown() })
	return a, cfgPath
}

func TestNew(t *testing.T) {
	a, _ := setup(t, "")

	assert.NotNil(t, a.DB)
	assert.NotNil(t, a.Metrics)
	assert.NotNil(t, a.Schemas)
	assert.NotNil(t, a.OpenAPI)
	assert.Equal(t, []string{"discovery", "jsonschema", "openapi", "swagger"}, a.Exporters.Names())
}

func TestNew_MemorySnapshots(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "schemagate.yaml")
	writeFile(t, cfgPath, "catalog:\n  dir: "+dir+"\ndatabase:\n  driver: memory\nsnapshots:\n  enabled: true\nmetrics:\n  enabled: false\n")

	a, err := bootstrap.New(bootstrap.Options{ConfigPath: cfgPath, LogOutput: &bytes.Buffer{}})
	require.NoError(t, err)
	defer a.Shutdown()

	assert.Nil(t, a.DB)
	assert.Nil(t, a.Metrics)
}

func TestNew_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "schemagate.yaml")
	writeFile(t, cfgPath, "database:\n  driver: postgres\n")

	_, err := bootstrap.New(bootstrap.Options{ConfigPath: cfgPath, LogOutput: &bytes.Buffer{}})
	assert.Error(t, err)
}

func TestHandler_ServesCatalog(t *testing.T) {
	a, _ := setup(t, "")
	require.NoError(t, a.LoadCatalog(context.Background()))

	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/apis/notes/v1/discovery")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc struct {
		Schemas map[string]any `json:"schemas"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Contains(t, doc.Schemas, "Note")
	assert.Contains(t, doc.Schemas, "Map_String_Integer")

	resp2, err := http.Post(srv.URL+"/snapshots", "application/json", nil)
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode)

	token, _, err := a.Tokens.GenerateToken("bootstrap-test", auth.RoleWriter)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/snapshots", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp3, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp3.Body.Close()
	assert.Equal(t, http.StatusOK, resp3.StatusCode)
}

func TestNew_AuthSecret(t *testing.T) {
	t.Setenv("SCHEMAGATE_AUTH_SECRET", "")

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "schemagate.yaml")
	base := "catalog:\n  dir: " + dir + "\ndatabase:\n  driver: memory\nsnapshots:\n  enabled: true\nmetrics:\n  enabled: false\n"

	writeFile(t, cfgPath, base)
	var logs bytes.Buffer
	a, err := bootstrap.New(bootstrap.Options{ConfigPath: cfgPath, LogOutput: &logs})
	require.NoError(t, err)
	defer a.Shutdown()
	require.NotNil(t, a.Tokens)
	assert.True(t, a.Tokens.Ephemeral())
	assert.Contains(t, logs.String(), "auth.secret not set")

	writeFile(t, cfgPath, base+"auth:\n  secret: shared\n")
	b, err := bootstrap.New(bootstrap.Options{ConfigPath: cfgPath, LogOutput: &bytes.Buffer{}})
	require.NoError(t, err)
	defer b.Shutdown()
	assert.False(t, b.Tokens.Ephemeral())

	token, _, err := auth.NewTokenService("shared", time.Hour).GenerateToken("ci", auth.RoleWriter)
	require.NoError(t, err)
	_, err = b.Tokens.ValidateToken(token)
	assert.NoError(t, err)
}

func TestConfigReload_RebuildsCatalog(t *testing.T) {
	a, cfgPath := setup(t, "")
	require.NoError(t, a.LoadCatalog(context.Background()))
	require.Equal(t, uint64(1), a.Schemas.Generation())

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	writeFile(t, cfgPath, string(data)+"schema:\n  force_json_map_schema: true\n")

	require.NoError(t, a.Config.Reload())
	assert.Equal(t, uint64(2), a.Schemas.Generation())
	assert.Equal(t, float64(1), testutil.ToFloat64(a.Metrics.ConfigReloads))

	doc, _, err := a.Schemas.Document("notes", "v1")
	require.NoError(t, err)
	for _, s := range doc.Schemas {
		assert.NotEqual(t, "Map_String_Integer", s.Name())
	}

	writeFile(t, cfgPath, "logging:\n  level: loud\n")
	assert.Error(t, a.Config.Reload())
	assert.Equal(t, float64(1), testutil.ToFloat64(a.Metrics.ConfigReloadErrors))
	assert.Equal(t, uint64(2), a.Schemas.Generation())
}

func TestNewLogger(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	logger := bootstrap.NewLogger(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)
	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"message":"shown"`)

	buf.Reset()
	logger = bootstrap.NewLogger(config.LoggingConfig{Level: "bogus", Format: "console"}, &buf)
	logger.Info().Msg("console line")
	assert.Contains(t, buf.String(), "console line")
	assert.False(t, strings.HasPrefix(buf.String(), "{"))
}

type recordingReloader struct {
	mu    sync.Mutex
	dirs  []string
	calls atomic.Int32
	err   error
}

func (r *recordingReloader) ReloadFrom(ctx context.Context, dir string) error {
	r.mu.Lock()
	r.dirs = append(r.dirs, dir)
	r.mu.Unlock()
	r.calls.Add(1)
	return r.err
}

func TestCatalogWatcher(t *testing.T) {
	dir := t.TempDir()
	target := &recordingReloader{}

	w := bootstrap.NewCatalogWatcher(target, zerolog.Nop())
	results := make(chan error, 4)
	w.OnReload(func(err error) { results <- err })
	require.NoError(t, w.Watch(dir))
	defer w.Stop()

	writeFile(t, filepath.Join(dir, "a.txt"), "ignored")
	writeFile(t, filepath.Join(dir, "a.yaml"), "types: {}\n")
	writeFile(t, filepath.Join(dir, "b.yml"), "types: {}\n")

	select {
	case err := <-results:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("catalog watcher did not reload")
	}

	assert.Eventually(t, func() bool { return target.calls.Load() >= 1 }, time.Second, 10*time.Millisecond)
	target.mu.Lock()
	assert.Equal(t, dir, target.dirs[0])
	target.mu.Unlock()
}

func TestCatalogWatcher_ReportsErrors(t *testing.T) {
	dir := t.TempDir()
	target := &recordingReloader{err: errors.New("bad catalog")}

	w := bootstrap.NewCatalogWatcher(target, zerolog.Nop())
	results := make(chan error, 4)
	w.OnReload(func(err error) { results <- err })
	require.NoError(t, w.Watch(dir))
	defer w.Stop()

	writeFile(t, filepath.Join(dir, "a.yaml"), "types: {}\n")

	select {
	case err := <-results:
		assert.EqualError(t, err, "bad catalog")
	case <-time.After(5 * time.Second):
		t.Fatal("catalog watcher did not reload")
	}
}

func TestCatalogWatcher_MissingDir(t *testing.T) {
	w := bootstrap.NewCatalogWatcher(&recordingReloader{}, zerolog.Nop())
	assert.Error(t, w.Watch(filepath.Join(t.TempDir(), "missing")))
}
