package openapi

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/artpar/schemagate/core/exporter"
)

// Source provides the schema document of an API together with the catalog
// generation it was derived from.
type Source interface {
	Document(name, version string) (exporter.Document, uint64, error)
}

// Service serves OpenAPI specs with caching. A cached spec stays valid
// until the source reports a new generation.
type Service struct {
	source    Source
	generator *Generator
	logger    zerolog.Logger

	mu    sync.Mutex
	cache map[string]cachedSpec
}

// cachedSpec holds a cached OpenAPI spec with metadata.
type cachedSpec struct {
	spec       *Spec
	generation uint64
}

// ServiceConfig contains configuration for the OpenAPI service.
type ServiceConfig struct {
	Source    Source
	Generator *Generator
	Logger    zerolog.Logger
}

// NewService creates a new OpenAPI service.
func NewService(cfg ServiceConfig) *Service {
	gen := cfg.Generator
	if gen == nil {
		gen = NewGenerator()
	}

	return &Service{
		source:    cfg.Source,
		generator: gen,
		logger:    cfg.Logger,
		cache:     make(map[string]cachedSpec),
	}
}

// GetSpec returns the spec for an API. When baseURL is set it replaces the
// first server entry.
func (s *Service) GetSpec(name, version, baseURL string) (*Spec, error) {
	doc, generation, err := s.source.Document(name, version)
	if err != nil {
		return nil, err
	}

	key := name + ":" + version

	s.mu.Lock()
	defer s.mu.Unlock()

	cached, ok := s.cache[key]
	if !ok || cached.generation != generation {
		cached = cachedSpec{
			spec:       s.generator.Generate(doc),
			generation: generation,
		}
		s.cache[key] = cached
		s.logger.Debug().
			Str("api", key).
			Uint64("generation", generation).
			Msg("OpenAPI spec generated")
	}

	if baseURL == "" {
		return cached.spec, nil
	}
	return s.cloneSpecWithServer(cached.spec, baseURL)
}

// InvalidateCache forces the next GetSpec call to regenerate every spec.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	s.cache = make(map[string]cachedSpec)
	s.mu.Unlock()
	s.logger.Debug().Msg("OpenAPI cache invalidated")
}

// cloneSpecWithServer creates a copy of the spec with the given server URL.
func (s *Service) cloneSpecWithServer(spec *Spec, baseURL string) (*Spec, error) {
	data, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("clone spec: %w", err)
	}

	var cloned Spec
	if err := json.Unmarshal(data, &cloned); err != nil {
		return nil, fmt.Errorf("clone spec: %w", err)
	}

	if len(cloned.Servers) > 0 {
		cloned.Servers[0].URL = baseURL
	} else {
		cloned.Servers = []Server{{URL: baseURL, Description: "Current server"}}
	}

	return &cloned, nil
}
