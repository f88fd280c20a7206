package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/artpar/schemagate/adapters/auth"
	"github.com/artpar/schemagate/adapters/gotype"
	"github.com/artpar/schemagate/app"
	"github.com/artpar/schemagate/core/openapi"
	"github.com/artpar/schemagate/domain/snapshot"
	"github.com/artpar/schemagate/pkg/jsonapi"
)

// GenerationHeader carries the catalog generation a document was rendered
// from.
const GenerationHeader = "X-Schemagate-Generation"

// SchemaHandler serves API summaries and rendered documents.
type SchemaHandler struct {
	service *app.SchemaService
	specs   *openapi.Service
	logger  zerolog.Logger
}

// NewSchemaHandler creates a schema handler. specs may be nil, in which case
// OpenAPI documents are rendered through the generic format route.
func NewSchemaHandler(service *app.SchemaService, specs *openapi.Service, logger zerolog.Logger) *SchemaHandler {
	return &SchemaHandler{service: service, specs: specs, logger: logger}
}

// Routes returns the router mounted at /apis.
func (h *SchemaHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Route("/{name}/{version}", func(r chi.Router) {
		r.Get("/", h.Get)
		if h.specs != nil {
			r.Get("/openapi.json", h.OpenAPI)
		}
		r.Get("/{format}", h.Render)
	})
	return r
}

// List returns every API of the current generation.
func (h *SchemaHandler) List(w http.ResponseWriter, r *http.Request) {
	apis, err := h.service.APIs()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	jsonapi.WriteData(w, http.StatusOK, apis, h.meta())
}

// Get returns one API summary.
func (h *SchemaHandler) Get(w http.ResponseWriter, r *http.Request) {
	sum, err := h.service.API(chi.URLParam(r, "name"), chi.URLParam(r, "version"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	jsonapi.WriteData(w, http.StatusOK, sum, h.meta())
}

// Render returns the document of an API in the requested format. The
// response carries the document digest as its ETag.
func (h *SchemaHandler) Render(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.Render(r.Context(),
		chi.URLParam(r, "name"), chi.URLParam(r, "version"), chi.URLParam(r, "format"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	etag := strconv.Quote(snapshot.Digest(doc.Data))
	w.Header().Set("ETag", etag)
	w.Header().Set(GenerationHeader, strconv.FormatUint(doc.Generation, 10))
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", doc.ContentType)
	w.Write(doc.Data)
}

// OpenAPI returns the OpenAPI document of an API with the request's origin
// as its server.
func (h *SchemaHandler) OpenAPI(w http.ResponseWriter, r *http.Request) {
	spec, err := h.specs.GetSpec(chi.URLParam(r, "name"), chi.URLParam(r, "version"), baseURL(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	data, err := spec.ToJSON()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Write(data)
}

func (h *SchemaHandler) meta() jsonapi.Meta {
	return jsonapi.Meta{
		"generation": h.service.Generation(),
		"loadedAt":   h.service.LoadedAt(),
	}
}

func (h *SchemaHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	writeServiceError(w, r, h.logger, err)
}

// SnapshotHandler serves stored snapshots.
type SnapshotHandler struct {
	service *app.SchemaService
	tokens  *auth.TokenService
	logger  zerolog.Logger
}

// NewSnapshotHandler creates a snapshot handler. Recording requires a
// bearer token with the writer role issued by tokens.
func NewSnapshotHandler(service *app.SchemaService, tokens *auth.TokenService, logger zerolog.Logger) *SnapshotHandler {
	return &SnapshotHandler{service: service, tokens: tokens, logger: logger}
}

// Routes returns the router mounted at /snapshots.
func (h *SnapshotHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.With(RequireRole(h.tokens, auth.RoleWriter)).Post("/", h.Record)
	r.Get("/{id}", h.Get)
	return r
}

// SnapshotDocument is a stored snapshot including its document.
type SnapshotDocument struct {
	app.SnapshotSummary
	Document json.RawMessage `json:"document"`
}

const defaultSnapshotLimit = 50

// List returns stored snapshots, newest first.
func (h *SnapshotHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := snapshot.Filter{
		API:    q.Get("api"),
		Format: q.Get("format"),
		Limit:  defaultSnapshotLimit,
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSONError(w, r, jsonapi.ErrInvalidParameter("limit", "must be a positive integer"))
			return
		}
		f.Limit = n
	}

	items, err := h.service.Snapshots(r.Context(), f)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	jsonapi.WriteData(w, http.StatusOK, gotype.Page[app.SnapshotSummary]{Items: items}, nil)
}

// Record snapshots every API of the current generation.
func (h *SnapshotHandler) Record(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.SnapshotAll(r.Context(), r.URL.Query()["format"])
	if err != nil && len(results) == 0 {
		writeServiceError(w, r, h.logger, err)
		return
	}

	stored := 0
	items := make([]app.SnapshotSummary, 0, len(results))
	for _, res := range results {
		if res.Stored {
			stored++
		}
		items = append(items, summaryOf(res.Snapshot))
	}

	meta := jsonapi.Meta{"stored": stored}
	if err != nil {
		meta["errors"] = err.Error()
	}
	jsonapi.WriteData(w, http.StatusOK, gotype.Page[app.SnapshotSummary]{Items: items}, meta)
}

// Get returns one snapshot with its document.
func (h *SnapshotHandler) Get(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.GetSnapshot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	doc := json.RawMessage(snap.Document)
	if !json.Valid(doc) {
		raw, _ := json.Marshal(string(snap.Document))
		doc = raw
	}
	jsonapi.WriteData(w, http.StatusOK, SnapshotDocument{
		SnapshotSummary: summaryOf(snap),
		Document:        doc,
	}, nil)
}

func summaryOf(s snapshot.Snapshot) app.SnapshotSummary {
	return app.SnapshotSummary{
		ID:        s.ID,
		API:       s.API,
		Format:    s.Format,
		Digest:    s.Digest,
		Size:      len(s.Document),
		CreatedAt: s.CreatedAt,
	}
}

// writeServiceError maps service errors onto JSON:API error responses.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, err error) {
	var b *jsonapi.ErrorBuilder
	switch {
	case errors.Is(err, app.ErrNotLoaded):
		b = jsonapi.ErrServiceUnavailable("catalog not loaded")
	case errors.Is(err, app.ErrAPINotFound):
		b = jsonapi.ErrNotFoundWithID("api", chi.URLParam(r, "name")+":"+chi.URLParam(r, "version"))
	case errors.Is(err, app.ErrUnknownFormat):
		b = jsonapi.NewError(http.StatusNotFound, "unknown_format", "Not Found").
			Detailf("No exporter is registered for format '%s'", chi.URLParam(r, "format")).
			Parameter("format")
	case errors.Is(err, app.ErrSnapshotsDisabled):
		b = jsonapi.NewError(http.StatusNotFound, "snapshots_disabled", "Not Found").
			Detail("Snapshots are not enabled")
	case errors.Is(err, snapshot.ErrNotFound):
		b = jsonapi.ErrNotFoundWithID("snapshot", chi.URLParam(r, "id"))
	default:
		logger.Error().Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		b = jsonapi.ErrInternal("")
	}
	writeJSONError(w, r, b)
}

// writeJSONError stamps the request ID on the error and writes it.
func writeJSONError(w http.ResponseWriter, r *http.Request, b *jsonapi.ErrorBuilder) {
	if reqID := middleware.GetReqID(r.Context()); reqID != "" {
		b.ID(reqID)
	}
	jsonapi.WriteError(w, b.Build())
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}
	return scheme + "://" + r.Host
}
