// Package e2e provides end-to-end tests for the complete schemagate flow:
// config file, catalog directory, sqlite history and the HTTP surface.
package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/schemagate/adapters/auth"
	"github.com/artpar/schemagate/bootstrap"
)

const shopCatalog = `
package: shop
apis:
  - name: shop
    version: v1
    root: https://shop.example.com
    transformers:
      - when: 'name == "Instant"'
        target: String
    roots: [Order]
types:
  Status:
    enum: [OPEN, {name: SHIPPED, wire: shipped}]
  Instant:
    package: time
  Item:
    properties:
      sku: { type: String, required: true }
  Order:
    properties:
      id: { type: Long, required: true }
      status: Status
      items: List<Item>
      placed: Instant
`

type workspace struct {
	dir        string
	catalogDir string
	configPath string
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()

	ws := &workspace{dir: t.TempDir()}
	ws.catalogDir = filepath.Join(ws.dir, "apis")
	ws.configPath = filepath.Join(ws.dir, "schemagate.yaml")
	require.NoError(t, os.Mkdir(ws.catalogDir, 0755))
	ws.writeCatalog(t, shopCatalog)

	cfg := "catalog:\n  dir: " + ws.catalogDir + "\n" +
		"database:\n  driver: sqlite\n  dsn: " + filepath.Join(ws.dir, "history.db") + "\n" +
		"snapshots:\n  enabled: true\n" +
		"auth:\n  secret: e2e-signing-secret\n" +
		"logging:\n  level: error\n  format: json\n" +
		"metrics:\n  enabled: true\n"
	require.NoError(t, os.WriteFile(ws.configPath, []byte(cfg), 0644))
	return ws
}

func (ws *workspace) writeCatalog(t *testing.T, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(ws.catalogDir, "shop.yaml"), []byte(content), 0644))
}

// start boots the application from the workspace and serves it on a real
// listener.
func (ws *workspace) start(t *testing.T) (*bootstrap.App, *httptest.Server) {
	t.Helper()

	a, err := bootstrap.New(bootstrap.Options{
		ConfigPath: ws.configPath,
		Registerer: prometheus.NewRegistry(),
		LogOutput:  io.Discard,
	})
	require.NoError(t, err)
	require.NoError(t, a.LoadCatalog(context.Background()))

	srv := httptest.NewServer(a.Handler())
	t.Cleanup(func() {
		srv.Close()
		a.Shutdown()
	})
	return a, srv
}

func getJSON(t *testing.T, url string, v any) *http.Response {
	t.Helper()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if v != nil && len(body) > 0 {
		require.NoError(t, json.Unmarshal(body, v), string(body))
	}
	return resp
}

// postSnapshots records snapshots, authenticating with token when set.
func postSnapshots(t *testing.T, url, token string, v any) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, url, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp
}

type discoveryDoc struct {
	Kind    string `json:"kind"`
	RootURL string `json:"rootUrl"`
	Schemas map[string]struct {
		Type       string   `json:"type"`
		Enum       []string `json:"enum"`
		Properties map[string]struct {
			Type     string `json:"type"`
			Format   string `json:"format"`
			Ref      string `json:"$ref"`
			Required bool   `json:"required"`
			Items    *struct {
				Ref string `json:"$ref"`
			} `json:"items"`
		} `json:"properties"`
	} `json:"schemas"`
}

func TestE2E_ServeCatalog(t *testing.T) {
	ws := newWorkspace(t)
	_, srv := ws.start(t)

	var list struct {
		Data []struct {
			Name    string   `json:"name"`
			Version string   `json:"version"`
			Schemas []string `json:"schemas"`
		} `json:"data"`
	}
	resp := getJSON(t, srv.URL+"/apis", &list)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, list.Data, 2)
	assert.Equal(t, "shop", list.Data[0].Name)
	assert.ElementsMatch(t, []string{"Order", "Status", "Item"}, list.Data[0].Schemas)

	var doc discoveryDoc
	resp = getJSON(t, srv.URL+"/apis/shop/v1/discovery", &doc)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "discovery#restDescription", doc.Kind)
	assert.Equal(t, "https://shop.example.com", doc.RootURL)

	order := doc.Schemas["Order"]
	assert.Equal(t, "object", order.Type)
	assert.True(t, order.Properties["id"].Required)
	assert.Equal(t, "int64", order.Properties["id"].Format)
	assert.Equal(t, "Status", order.Properties["status"].Ref)
	require.NotNil(t, order.Properties["items"].Items)
	assert.Equal(t, "Item", order.Properties["items"].Items.Ref)
	assert.Equal(t, "string", order.Properties["placed"].Type, "Instant is transformed to String")
	assert.NotContains(t, doc.Schemas, "Instant")

	assert.Equal(t, []string{"OPEN", "shipped"}, doc.Schemas["Status"].Enum)

	var spec struct {
		OpenAPI    string `json:"openapi"`
		Components struct {
			Schemas map[string]any `json:"schemas"`
		} `json:"components"`
	}
	resp = getJSON(t, srv.URL+"/apis/shop/v1/openapi.json", &spec)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, spec.Components.Schemas, "Order")

	resp = getJSON(t, srv.URL+"/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestE2E_SnapshotHistorySurvivesRestart(t *testing.T) {
	ws := newWorkspace(t)
	a, srv := ws.start(t)

	resp := postSnapshots(t, srv.URL+"/snapshots?format=discovery", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, _, err := a.Tokens.GenerateToken("e2e", auth.RoleWriter)
	require.NoError(t, err)

	var recorded struct {
		Meta map[string]any `json:"meta"`
	}
	resp = postSnapshots(t, srv.URL+"/snapshots?format=discovery&format=openapi", token, &recorded)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(4), recorded.Meta["stored"])

	// A second process over the same database sees the history and
	// accepts tokens signed with the configured secret.
	_, srv2 := ws.start(t)

	var page struct {
		Data struct {
			Items []struct {
				ID     string `json:"id"`
				API    string `json:"api"`
				Format string `json:"format"`
				Digest string `json:"digest"`
			} `json:"items"`
		} `json:"data"`
	}
	resp = getJSON(t, srv2.URL+"/snapshots?api=shop:v1", &page)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, page.Data.Items, 2)
	formats := []string{page.Data.Items[0].Format, page.Data.Items[1].Format}
	assert.ElementsMatch(t, []string{"discovery", "openapi"}, formats)

	var snap struct {
		Data struct {
			Document discoveryDoc `json:"document"`
		} `json:"data"`
	}
	for _, item := range page.Data.Items {
		if item.Format != "discovery" {
			continue
		}
		resp = getJSON(t, srv2.URL+"/snapshots/"+item.ID, &snap)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, snap.Data.Document.Schemas, "Order")
	}

	// Unchanged documents are not stored again.
	resp = postSnapshots(t, srv2.URL+"/snapshots?format=discovery", token, &recorded)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(0), recorded.Meta["stored"])
}

func TestE2E_CatalogHotReload(t *testing.T) {
	ws := newWorkspace(t)
	a, srv := ws.start(t)

	resp := getJSON(t, srv.URL+"/apis/shop/v1/discovery", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	etag := resp.Header.Get("ETag")
	require.NotEmpty(t, etag)

	reloaded := make(chan error, 4)
	watcher := bootstrap.NewCatalogWatcher(a.Schemas, a.Logger)
	watcher.OnReload(func(err error) { reloaded <- err })
	require.NoError(t, watcher.Watch(a.Schemas.CatalogDir()))
	t.Cleanup(watcher.Stop)

	ws.writeCatalog(t, shopCatalog+"      note: String\n")

	// A reload may observe a partially written file; wait for a good one.
	deadline := time.After(5 * time.Second)
	for ok := false; !ok; {
		select {
		case err := <-reloaded:
			ok = err == nil
		case <-deadline:
			t.Fatal("catalog change was not picked up")
		}
	}

	var doc discoveryDoc
	resp = getJSON(t, srv.URL+"/apis/shop/v1/discovery", &doc)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEqual(t, "1", resp.Header.Get("X-Schemagate-Generation"))
	assert.NotEqual(t, etag, resp.Header.Get("ETag"))
	assert.Equal(t, "string", doc.Schemas["Order"].Properties["note"].Type)
}
