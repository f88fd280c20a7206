package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/schemagate/adapters/auth"
	"github.com/artpar/schemagate/adapters/clock"
	apihttp "github.com/artpar/schemagate/adapters/http"
	"github.com/artpar/schemagate/adapters/idgen"
	"github.com/artpar/schemagate/adapters/memory"
	"github.com/artpar/schemagate/adapters/metrics"
	"github.com/artpar/schemagate/app"
	"github.com/artpar/schemagate/core/exporter"
	"github.com/artpar/schemagate/core/openapi"
)

const petCatalog = `
package: pets
apis:
  - name: pets
    version: v1
    root: https://pets.example.com
    roots: [Pet]
types:
  Kind:
    enum: [DOG, CAT]
  Pet:
    properties:
      name: { type: String, required: true }
      kind: Kind
      age: Integer
`

type testServer struct {
	router  http.Handler
	service *app.SchemaService
	metrics *metrics.Collector
	tokens  *auth.TokenService
}

// bearer returns an Authorization header carrying a token for role.
func (s *testServer) bearer(t *testing.T, role string) http.Header {
	t.Helper()
	token, _, err := s.tokens.GenerateToken("ci", role)
	require.NoError(t, err)
	return http.Header{"Authorization": {"Bearer " + token}}
}

func setupServer(t *testing.T, load, snapshots bool) *testServer {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pets.yaml"), []byte(petCatalog), 0644))

	gen := openapi.NewGenerator()
	reg, err := exporter.NewRegistry(exporter.NewDiscovery(), exporter.NewSwagger(), exporter.NewJSONSchema(), gen)
	require.NoError(t, err)

	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	cfg := app.SchemaServiceConfig{
		CatalogDir: dir,
		Exporters:  reg,
		Clock:      clock.NewFake(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)),
		IDs:        idgen.NewSequential("snap-"),
		Renders:    m,
		Logger:     zerolog.Nop(),
	}
	if snapshots {
		cfg.Snapshots = memory.NewSnapshotStore()
	}
	svc := app.NewSchemaService(cfg)
	if load {
		require.NoError(t, svc.Reload(context.Background()))
	}

	specs := openapi.NewService(openapi.ServiceConfig{Source: svc, Generator: gen, Logger: zerolog.Nop()})

	tokens := auth.NewTokenService("handler-test-secret", time.Hour)
	var snaps *apihttp.SnapshotHandler
	if snapshots {
		snaps = apihttp.NewSnapshotHandler(svc, tokens, zerolog.Nop())
	}

	router := apihttp.NewRouter(
		apihttp.NewSchemaHandler(svc, specs, zerolog.Nop()),
		snaps,
		apihttp.NewHealthHandler(svc),
		zerolog.Nop(),
		apihttp.RouterConfig{
			Metrics:         m,
			EnableSwaggerUI: true,
			SwaggerSpecURL:  "/apis/pets/v1/openapi.json",
		},
	)
	return &testServer{router: router, service: svc, metrics: m, tokens: tokens}
}

func (s *testServer) do(t *testing.T, method, target string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Data   json.RawMessage `json:"data"`
	Meta   map[string]any  `json:"meta"`
	Errors []struct {
		ID     string         `json:"id"`
		Status string         `json:"status"`
		Code   string         `json:"code"`
		Detail string         `json:"detail"`
		Meta   map[string]any `json:"meta"`
	} `json:"errors"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func TestHealth(t *testing.T) {
	s := setupServer(t, false, false)

	rec := s.do(t, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, "GET", "/health/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	require.NoError(t, s.service.Reload(context.Background()))
	rec = s.do(t, "GET", "/health/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestVersion(t *testing.T) {
	s := setupServer(t, false, false)

	rec := s.do(t, "GET", "/version", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var v apihttp.VersionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, "schemagate", v.Service)
	assert.Equal(t, apihttp.ServiceVersion, v.Version)
}

func TestListAPIs(t *testing.T) {
	s := setupServer(t, true, false)

	rec := s.do(t, "GET", "/apis", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)
	var apis []app.APISummary
	require.NoError(t, json.Unmarshal(env.Data, &apis))
	require.Len(t, apis, 2)
	assert.Equal(t, "pets", apis[0].Name)
	assert.ElementsMatch(t, []string{"Kind", "Pet"}, apis[0].Schemas)
	assert.Equal(t, app.SelfAPI.Name, apis[1].Name)
	assert.Equal(t, float64(1), env.Meta["generation"])
}

func TestListAPIs_NotLoaded(t *testing.T) {
	s := setupServer(t, false, false)

	rec := s.do(t, "GET", "/apis", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	env := decodeEnvelope(t, rec)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "service_unavailable", env.Errors[0].Code)
	assert.NotEmpty(t, env.Errors[0].ID)
}

func TestGetAPI(t *testing.T) {
	s := setupServer(t, true, false)

	rec := s.do(t, "GET", "/apis/pets/v1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var sum app.APISummary
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &sum))
	assert.Equal(t, "https://pets.example.com", sum.Root)
	assert.Equal(t, app.StatusOK, sum.Status)

	rec = s.do(t, "GET", "/apis/pets/v9", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decodeEnvelope(t, rec).Errors[0].Detail, "pets:v9")
}

func TestRender(t *testing.T) {
	s := setupServer(t, true, false)

	tests := []struct {
		format      string
		contentType string
		key         string
	}{
		{"discovery", "application/json", "schemas"},
		{"swagger", "application/json", "definitions"},
		{"jsonschema", "application/schema+json", "$defs"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			rec := s.do(t, "GET", "/apis/pets/v1/"+tt.format, nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, tt.contentType, rec.Header().Get("Content-Type"))
			assert.Equal(t, "1", rec.Header().Get(apihttp.GenerationHeader))
			assert.NotEmpty(t, rec.Header().Get("ETag"))

			var doc map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
			assert.Contains(t, doc, tt.key)
		})
	}
}

func TestRender_NotModified(t *testing.T) {
	s := setupServer(t, true, false)

	rec := s.do(t, "GET", "/apis/pets/v1/discovery", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	etag := rec.Header().Get("ETag")

	rec = s.do(t, "GET", "/apis/pets/v1/discovery", http.Header{"If-None-Match": {etag}})
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.Bytes())
}

func TestRender_UnknownFormat(t *testing.T) {
	s := setupServer(t, true, false)

	rec := s.do(t, "GET", "/apis/pets/v1/wsdl", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	env := decodeEnvelope(t, rec)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "unknown_format", env.Errors[0].Code)
	assert.Contains(t, env.Errors[0].Detail, "wsdl")
}

func TestOpenAPI_UsesRequestOrigin(t *testing.T) {
	s := setupServer(t, true, false)

	req := httptest.NewRequest("GET", "http://docs.internal:8080/apis/pets/v1/openapi.json", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var spec openapi.Spec
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &spec))
	assert.Equal(t, "3.0.3", spec.OpenAPI)
	require.NotEmpty(t, spec.Servers)
	assert.Equal(t, "http://docs.internal:8080", spec.Servers[0].URL)
	assert.Contains(t, spec.Components.Schemas, "Pet")
}

func TestSwaggerUI(t *testing.T) {
	s := setupServer(t, true, false)

	rec := s.do(t, "GET", "/swagger/index.html", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSnapshots_Disabled(t *testing.T) {
	s := setupServer(t, true, false)

	rec := s.do(t, "GET", "/snapshots", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSnapshots_RecordListGet(t *testing.T) {
	s := setupServer(t, true, true)

	writer := s.bearer(t, auth.RoleWriter)

	rec := s.do(t, "POST", "/snapshots?format=discovery", writer)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	env := decodeEnvelope(t, rec)
	assert.Equal(t, float64(2), env.Meta["stored"])

	rec = s.do(t, "POST", "/snapshots?format=discovery", writer)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decodeEnvelope(t, rec).Meta["stored"])

	rec = s.do(t, "GET", "/snapshots?api=pets:v1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Items []app.SnapshotSummary `json:"items"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, "discovery", page.Items[0].Format)

	rec = s.do(t, "GET", "/snapshots/"+page.Items[0].ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap struct {
		ID       string         `json:"id"`
		Document map[string]any `json:"document"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &snap))
	assert.Equal(t, page.Items[0].ID, snap.ID)
	assert.Equal(t, "discovery#restDescription", snap.Document["kind"])
}

func TestSnapshots_Errors(t *testing.T) {
	s := setupServer(t, true, true)

	rec := s.do(t, "GET", "/snapshots/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decodeEnvelope(t, rec).Errors[0].Detail, "missing")

	rec = s.do(t, "GET", "/snapshots?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_parameter", decodeEnvelope(t, rec).Errors[0].Code)
}

func TestSnapshots_RecordRequiresWriterToken(t *testing.T) {
	s := setupServer(t, true, true)
	reqID := http.Header{"X-Request-Id": {"req-42"}}

	rec := s.do(t, "POST", "/snapshots", reqID)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "unauthorized", env.Errors[0].Code)
	assert.Equal(t, "req-42", env.Errors[0].ID)

	rec = s.do(t, "POST", "/snapshots", http.Header{"Authorization": {"Basic dXNlcjpwYXNz"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_request", decodeEnvelope(t, rec).Errors[0].Code)

	forged, _, err := auth.NewTokenService("another-secret", time.Hour).GenerateToken("ci", auth.RoleWriter)
	require.NoError(t, err)
	rec = s.do(t, "POST", "/snapshots", http.Header{"Authorization": {"Bearer " + forged}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, "POST", "/snapshots", s.bearer(t, "reader"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	env = decodeEnvelope(t, rec)
	assert.Equal(t, "forbidden", env.Errors[0].Code)
	assert.Equal(t, auth.RoleWriter, env.Errors[0].Meta["required_role"])

	// Nothing was recorded and reads stay open.
	rec = s.do(t, "GET", "/snapshots", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Items []app.SnapshotSummary `json:"items"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &page))
	assert.Empty(t, page.Items)
}

func TestErrors_CarryRequestID(t *testing.T) {
	s := setupServer(t, true, false)
	reqID := http.Header{"X-Request-Id": {"req-7"}}

	rec := s.do(t, "GET", "/apis/missing/v1", reqID)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "req-7", decodeEnvelope(t, rec).Errors[0].ID)

	rec = s.do(t, "GET", "/apis/pets/v1/yaml", reqID)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "unknown_format", env.Errors[0].Code)
	assert.Equal(t, "req-7", env.Errors[0].ID)
}

func TestUnknownRoute(t *testing.T) {
	s := setupServer(t, true, false)

	rec := s.do(t, "GET", "/nowhere", http.Header{"X-Request-Id": {"req-1"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/vnd.api+json", rec.Header().Get("Content-Type"))
	env := decodeEnvelope(t, rec)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "not_found", env.Errors[0].Code)
	assert.Equal(t, "req-1", env.Errors[0].ID)

	rec = s.do(t, "DELETE", "/version", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "method_not_allowed", decodeEnvelope(t, rec).Errors[0].Code)
}

func TestMetricsMiddleware(t *testing.T) {
	s := setupServer(t, true, false)

	s.do(t, "GET", "/apis/pets/v1", nil)
	s.do(t, "GET", "/apis/pets/v1", nil)
	s.do(t, "GET", "/health", nil)

	// Both requests share one route series; health checks are not recorded.
	require.Equal(t, 1, testutil.CollectAndCount(s.metrics.RequestsTotal))
	assert.Equal(t, float64(2), testutil.ToFloat64(s.metrics.RequestsTotal))

	rec := s.do(t, "GET", "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
