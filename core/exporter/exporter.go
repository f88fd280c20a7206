// Package exporter renders the schemas of one API namespace as documents.
// Implementations include a discovery document, Swagger 2.0 definitions and
// JSON Schema.
package exporter

import (
	"fmt"
	"sort"
	"sync"

	"github.com/artpar/schemagate/core/schema"
)

// Exporter renders a schema document.
type Exporter interface {
	// Name returns the exporter identifier (e.g., "discovery", "swagger").
	Name() string

	// ContentType returns the media type of rendered documents.
	ContentType() string

	// Render produces the document for one API namespace.
	Render(doc Document) ([]byte, error)
}

// Document is the input of a render: the schemas registered for one API.
type Document struct {
	API         schema.APIKey
	Title       string
	Description string
	Schemas     []*schema.Schema
}

// All returns the document schemas followed by the sentinel schemas they
// reference. Sentinels are never registered as ordinary entries, so they
// are only emitted when some field points at them.
func (d Document) All() []*schema.Schema {
	out := append([]*schema.Schema(nil), d.Schemas...)
	seen := make(map[string]bool, len(out))
	for _, s := range out {
		seen[s.Name()] = true
	}

	var visit func(f schema.Field)
	visit = func(f schema.Field) {
		if item := f.Item(); item != nil {
			visit(*item)
		}
		ref := f.Reference()
		if ref == nil || seen[ref.Name()] {
			return
		}
		if s := sentinel(ref.Name()); s != nil {
			seen[ref.Name()] = true
			out = append(out, s)
		}
	}
	for _, s := range d.Schemas {
		for _, f := range s.Fields() {
			visit(f)
		}
		if mv := s.MapValue(); mv != nil {
			visit(*mv)
		}
	}
	return out
}

func sentinel(name string) *schema.Schema {
	switch name {
	case schema.AnyName:
		return schema.Any
	case schema.JSONMapName:
		return schema.JSONMap
	}
	return nil
}

// Registry holds exporters by name.
type Registry struct {
	mu        sync.RWMutex
	exporters map[string]Exporter
}

// NewRegistry creates a registry holding the given exporters.
func NewRegistry(exporters ...Exporter) (*Registry, error) {
	r := &Registry{exporters: make(map[string]Exporter, len(exporters))}
	for _, e := range exporters {
		if err := r.Register(e); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds an exporter. Names must be unique.
func (r *Registry) Register(e Exporter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := e.Name()
	if name == "" {
		return fmt.Errorf("exporter name is required")
	}
	if _, exists := r.exporters[name]; exists {
		return fmt.Errorf("exporter %q already registered", name)
	}
	r.exporters[name] = e
	return nil
}

// Get returns the exporter registered under name.
func (r *Registry) Get(name string) (Exporter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.exporters[name]
	return e, ok
}

// Names returns the registered exporter names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.exporters))
	for name := range r.exporters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// scalarFormat maps a scalar field type to a JSON type and format. 64-bit
// integers are encoded as strings.
func scalarFormat(t schema.FieldType) (typ, format string) {
	switch t {
	case schema.FieldTypeBoolean:
		return "boolean", ""
	case schema.FieldTypeInt32:
		return "integer", "int32"
	case schema.FieldTypeInt64:
		return "string", "int64"
	case schema.FieldTypeFloat:
		return "number", "float"
	case schema.FieldTypeDouble:
		return "number", "double"
	default:
		return "string", ""
	}
}

// requiredNames returns the names of fields marked required.
func requiredNames(s *schema.Schema) []string {
	var names []string
	for _, f := range s.Fields() {
		if f.Required() {
			names = append(names, f.Name())
		}
	}
	return names
}
