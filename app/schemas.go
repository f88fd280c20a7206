// Package app contains the application services that sit between the
// transports and the core schema engine.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/schemagate/core/catalog"
	"github.com/artpar/schemagate/core/exporter"
	"github.com/artpar/schemagate/core/repository"
	"github.com/artpar/schemagate/core/schema"
	"github.com/artpar/schemagate/domain/flags"
	"github.com/artpar/schemagate/domain/snapshot"
	"github.com/artpar/schemagate/domain/typedesc"
	"github.com/artpar/schemagate/ports"
)

var (
	// ErrNotLoaded is returned before the first successful load.
	ErrNotLoaded = errors.New("catalog not loaded")

	// ErrAPINotFound is returned for an unknown API name and version.
	ErrAPINotFound = errors.New("api not found")

	// ErrUnknownFormat is returned for an exporter name that is not registered.
	ErrUnknownFormat = errors.New("unknown format")

	// ErrSnapshotsDisabled is returned when no snapshot store is configured.
	ErrSnapshotsDisabled = errors.New("snapshots disabled")
)

// SchemaServiceConfig wires a SchemaService.
type SchemaServiceConfig struct {
	// CatalogDir is read by Reload.
	CatalogDir string

	// Flags is consulted once per top-level derivation.
	Flags flags.Source

	Exporters *exporter.Registry

	// Snapshots is optional.
	Snapshots ports.SnapshotStore

	Clock ports.Clock
	IDs   ports.IDGenerator

	Observer ports.DerivationObserver
	Renders  ports.RenderObserver
	Logger   zerolog.Logger
}

// SchemaService derives the schemas of every API declared in a catalog and
// renders them as documents. Each load builds a fresh repository; readers
// always see one complete generation.
type SchemaService struct {
	cfg     SchemaServiceConfig
	current atomic.Pointer[generation]
	counter atomic.Uint64
	dir     atomic.Pointer[string]
	reload  sync.Mutex
}

// generation is one immutable load of the catalog.
type generation struct {
	number   uint64
	loadedAt time.Time
	repo     *repository.Repository
	apis     []apiState
}

type apiState struct {
	key         schema.APIKey
	description string
	errors      []error
}

// NewSchemaService creates a service. Call Reload or Use before serving.
func NewSchemaService(cfg SchemaServiceConfig) *SchemaService {
	if cfg.Flags == nil {
		cfg.Flags = flags.Static(flags.Defaults())
	}
	return &SchemaService{cfg: cfg}
}

// Reload reads the catalog directory and swaps in a new generation. A
// catalog that fails to parse leaves the current generation in place.
func (s *SchemaService) Reload(ctx context.Context) error {
	return s.ReloadFrom(ctx, s.CatalogDir())
}

// ReloadFrom is Reload for another directory. On success dir becomes the
// directory of later Reload calls.
func (s *SchemaService) ReloadFrom(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c, err := catalog.Load(dir)
	if err != nil {
		s.cfg.Logger.Error().Err(err).Str("dir", dir).Msg("catalog load failed")
		return fmt.Errorf("load catalog: %w", err)
	}

	s.dir.Store(&dir)
	s.Use(c)
	return nil
}

// CatalogDir returns the directory read by Reload.
func (s *SchemaService) CatalogDir() string {
	if dir := s.dir.Load(); dir != nil {
		return *dir
	}
	return s.cfg.CatalogDir
}

// Use derives every API of c and makes the result current.
func (s *SchemaService) Use(c *catalog.Catalog) {
	s.reload.Lock()
	defer s.reload.Unlock()

	start := time.Now()
	gen := s.build(c)
	s.current.Store(gen)

	failed := 0
	for _, a := range gen.apis {
		if len(a.errors) > 0 {
			failed++
		}
	}
	s.cfg.Logger.Info().
		Uint64("generation", gen.number).
		Int("apis", len(gen.apis)).
		Int("degraded", failed).
		Dur("took", time.Since(start)).
		Msg("catalog loaded")
}

func (s *SchemaService) build(c *catalog.Catalog) *generation {
	repo := repository.New(
		repository.WithFlags(s.cfg.Flags),
		repository.WithLogger(s.cfg.Logger),
		repository.WithObserver(s.cfg.Observer),
	)

	gen := &generation{
		number:   s.counter.Add(1),
		loadedAt: s.now(),
		repo:     repo,
	}

	declared := make(map[schema.APIKey]bool)
	for _, api := range c.APIs() {
		declared[api.Key.WithoutRoot()] = true
		repo.RegisterTransformers(api.Key, api.Transformers)
		gen.apis = append(gen.apis, s.derive(repo, api.Key, api.Description, api.Roots))
	}

	if !declared[SelfAPI] {
		gen.apis = append(gen.apis, s.derive(repo, SelfAPI, "Response types of the schemagate service", selfRoots()))
	}
	return gen
}

func (s *SchemaService) derive(repo *repository.Repository, key schema.APIKey, desc string, roots []typedesc.Type) apiState {
	state := apiState{key: key, description: desc}
	for _, root := range roots {
		if _, err := repo.GetOrAdd(root, key); err != nil {
			s.cfg.Logger.Warn().
				Err(err).
				Str("api", key.String()).
				Str("root", typedesc.Format(root)).
				Msg("root derivation failed")
			state.errors = append(state.errors, fmt.Errorf("root %s: %w", typedesc.Format(root), err))
		}
	}
	return state
}

// Generation returns the number of the current generation, zero before
// the first load.
func (s *SchemaService) Generation() uint64 {
	if gen := s.current.Load(); gen != nil {
		return gen.number
	}
	return 0
}

// LoadedAt returns when the current generation was built.
func (s *SchemaService) LoadedAt() time.Time {
	if gen := s.current.Load(); gen != nil {
		return gen.loadedAt
	}
	return time.Time{}
}

// APIs summarizes every API of the current generation.
func (s *SchemaService) APIs() ([]APISummary, error) {
	gen := s.current.Load()
	if gen == nil {
		return nil, ErrNotLoaded
	}

	var formats []string
	if s.cfg.Exporters != nil {
		formats = s.cfg.Exporters.Names()
	}

	out := make([]APISummary, 0, len(gen.apis))
	for _, a := range gen.apis {
		out = append(out, summarize(gen, a, formats))
	}
	return out, nil
}

// API summarizes one API.
func (s *SchemaService) API(name, version string) (APISummary, error) {
	apis, err := s.APIs()
	if err != nil {
		return APISummary{}, err
	}
	for _, a := range apis {
		if a.Name == name && a.Version == version {
			return a, nil
		}
	}
	return APISummary{}, fmt.Errorf("%w: %s:%s", ErrAPINotFound, name, version)
}

func summarize(gen *generation, a apiState, formats []string) APISummary {
	sum := APISummary{
		Name:        a.key.Name,
		Version:     a.key.Version,
		Root:        a.key.Root,
		Description: a.description,
		Status:      StatusOK,
		Schemas:     []string{},
		Formats:     formats,
	}
	for _, sc := range gen.repo.AllSchemas(a.key) {
		sum.Schemas = append(sum.Schemas, sc.Name())
	}
	for _, err := range a.errors {
		sum.Status = StatusDegraded
		sum.Errors = append(sum.Errors, err.Error())
	}
	return sum
}

// Errors returns the derivation errors of every degraded API, keyed by
// "name:version".
func (s *SchemaService) Errors() (map[string][]error, error) {
	gen := s.current.Load()
	if gen == nil {
		return nil, ErrNotLoaded
	}
	out := make(map[string][]error)
	for _, a := range gen.apis {
		if len(a.errors) > 0 {
			out[a.key.String()] = append([]error(nil), a.errors...)
		}
	}
	return out, nil
}

// Document returns the render input of an API together with the generation
// it belongs to.
func (s *SchemaService) Document(name, version string) (exporter.Document, uint64, error) {
	gen := s.current.Load()
	if gen == nil {
		return exporter.Document{}, 0, ErrNotLoaded
	}
	for _, a := range gen.apis {
		if a.key.Name == name && a.key.Version == version {
			return exporter.Document{
				API:         a.key,
				Title:       a.key.Name,
				Description: a.description,
				Schemas:     gen.repo.AllSchemas(a.key),
			}, gen.number, nil
		}
	}
	return exporter.Document{}, 0, fmt.Errorf("%w: %s:%s", ErrAPINotFound, name, version)
}

// Rendered is a rendered document.
type Rendered struct {
	API         string
	Format      string
	ContentType string
	Data        []byte
	Generation  uint64
}

// Render renders an API in the given exporter format.
func (s *SchemaService) Render(ctx context.Context, name, version, format string) (Rendered, error) {
	var exp exporter.Exporter
	if s.cfg.Exporters != nil {
		exp, _ = s.cfg.Exporters.Get(format)
	}
	if exp == nil {
		return Rendered{}, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}

	doc, number, err := s.Document(name, version)
	if err != nil {
		return Rendered{}, err
	}

	start := time.Now()
	data, err := exp.Render(doc)
	if s.cfg.Renders != nil {
		s.cfg.Renders.DocumentRendered(doc.API.String(), format, time.Since(start), err)
	}
	if err != nil {
		return Rendered{}, fmt.Errorf("render %s as %s: %w", doc.API, format, err)
	}

	return Rendered{
		API:         doc.API.String(),
		Format:      format,
		ContentType: exp.ContentType(),
		Data:        data,
		Generation:  number,
	}, nil
}

// SnapshotResult reports the outcome of recording one document.
type SnapshotResult struct {
	Snapshot snapshot.Snapshot
	// Stored is false when the latest snapshot already held this document.
	Stored bool
}

// Snapshot renders a document and stores it unless the latest snapshot of
// the same API and format has the same digest.
func (s *SchemaService) Snapshot(ctx context.Context, name, version, format string) (SnapshotResult, error) {
	if s.cfg.Snapshots == nil {
		return SnapshotResult{}, ErrSnapshotsDisabled
	}

	r, err := s.Render(ctx, name, version, format)
	if err != nil {
		return SnapshotResult{}, err
	}

	snap := snapshot.New(s.newID(), r.API, r.Format, r.Data, s.now())

	latest, ok, err := s.cfg.Snapshots.Latest(ctx, r.API, r.Format)
	if err != nil {
		return SnapshotResult{}, fmt.Errorf("latest snapshot: %w", err)
	}
	if ok && latest.Same(snap) {
		return SnapshotResult{Snapshot: latest}, nil
	}

	if err := s.cfg.Snapshots.Save(ctx, snap); err != nil {
		return SnapshotResult{}, fmt.Errorf("save snapshot: %w", err)
	}

	s.cfg.Logger.Info().
		Str("id", snap.ID).
		Str("api", snap.API).
		Str("format", snap.Format).
		Str("digest", snap.Digest[:12]).
		Msg("snapshot stored")

	return SnapshotResult{Snapshot: snap, Stored: true}, nil
}

// SnapshotAll records every API of the current generation in each format.
// An empty format list means every registered exporter.
func (s *SchemaService) SnapshotAll(ctx context.Context, formats []string) ([]SnapshotResult, error) {
	apis, err := s.APIs()
	if err != nil {
		return nil, err
	}
	if len(formats) == 0 && s.cfg.Exporters != nil {
		formats = s.cfg.Exporters.Names()
	}

	var (
		results []SnapshotResult
		errs    []error
	)
	for _, a := range apis {
		for _, format := range formats {
			if err := ctx.Err(); err != nil {
				return results, err
			}
			r, err := s.Snapshot(ctx, a.Name, a.Version, format)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			results = append(results, r)
		}
	}
	return results, errors.Join(errs...)
}

// Snapshots lists stored snapshots.
func (s *SchemaService) Snapshots(ctx context.Context, f snapshot.Filter) ([]SnapshotSummary, error) {
	if s.cfg.Snapshots == nil {
		return nil, ErrSnapshotsDisabled
	}

	snaps, err := s.cfg.Snapshots.List(ctx, f)
	if err != nil {
		return nil, err
	}

	out := make([]SnapshotSummary, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, SnapshotSummary{
			ID:        snap.ID,
			API:       snap.API,
			Format:    snap.Format,
			Digest:    snap.Digest,
			Size:      len(snap.Document),
			CreatedAt: snap.CreatedAt,
		})
	}
	return out, nil
}

// GetSnapshot returns a stored snapshot including its document.
func (s *SchemaService) GetSnapshot(ctx context.Context, id string) (snapshot.Snapshot, error) {
	if s.cfg.Snapshots == nil {
		return snapshot.Snapshot{}, ErrSnapshotsDisabled
	}
	return s.cfg.Snapshots.Get(ctx, id)
}

func (s *SchemaService) now() time.Time {
	if s.cfg.Clock != nil {
		return s.cfg.Clock.Now()
	}
	return time.Now().UTC()
}

func (s *SchemaService) newID() string {
	if s.cfg.IDs != nil {
		return s.cfg.IDs.New()
	}
	return fmt.Sprintf("snap-%d", time.Now().UnixNano())
}

// HealthCheck reports ErrNotLoaded until the first generation is built.
func (s *SchemaService) HealthCheck(ctx context.Context) error {
	if s.current.Load() == nil {
		return ErrNotLoaded
	}
	return nil
}
