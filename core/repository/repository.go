// Package repository derives and caches schemas for type descriptors.
//
// Schemas are grouped per API namespace. Each namespace owns an arena of
// schema slots indexed by canonical type key. A slot is allocated with a
// placeholder before the type's properties are walked, so self-referential
// and mutually referential type graphs resolve to references instead of
// recursing forever.
package repository

import (
	"sync"
	"time"

	"github.com/artpar/schemagate/core/schema"
	"github.com/artpar/schemagate/domain/flags"
	"github.com/artpar/schemagate/domain/typedesc"
	"github.com/artpar/schemagate/ports"
	"github.com/rs/zerolog"
)

// Keys under which the shared sentinel schemas resolve in every namespace.
const (
	anyKey     = "sentinel:" + schema.AnyName
	jsonMapKey = "sentinel:" + schema.JSONMapName
)

// Transformers looks up the wire type registered for a source type.
type Transformers interface {
	TransformerFor(t typedesc.Type) (typedesc.Type, bool)
}

// Option configures a Repository.
type Option func(*Repository)

// WithFlags sets the policy flag source. It is read once per top-level
// derivation.
func WithFlags(src flags.Source) Option {
	return func(r *Repository) {
		if src != nil {
			r.flags = src
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Repository) { r.logger = l }
}

// WithObserver sets the derivation observer.
func WithObserver(o ports.DerivationObserver) Option {
	return func(r *Repository) {
		if o != nil {
			r.observer = o
		}
	}
}

// Repository is the long-lived schema cache.
type Repository struct {
	mu         sync.RWMutex
	namespaces map[schema.APIKey]*namespace
	order      []schema.APIKey

	flags    flags.Source
	logger   zerolog.Logger
	observer ports.DerivationObserver
}

type namespace struct {
	mu           sync.RWMutex
	api          schema.APIKey
	transformers Transformers
	entries      []entry
	index        map[string]int
	// owners maps each canonical name to the key that holds it.
	owners map[string]string
}

type entry struct {
	key    string
	schema *schema.Schema
}

// New creates an empty repository.
func New(opts ...Option) *Repository {
	r := &Repository{
		namespaces: make(map[schema.APIKey]*namespace),
		flags:      flags.Static(flags.Defaults()),
		logger:     zerolog.Nop(),
		observer:   nopObserver{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterTransformers installs the transformer lookup of an API. It
// replaces any lookup registered before and affects later derivations only.
func (r *Repository) RegisterTransformers(api schema.APIKey, tr Transformers) {
	ns := r.namespace(api)
	ns.mu.Lock()
	defer ns.mu.Unlock()
	ns.transformers = tr
}

// GetOrAdd returns the schema of t in api, deriving and registering it
// (and every schema it references) on first use.
func (r *Repository) GetOrAdd(t typedesc.Type, api schema.APIKey) (*schema.Schema, error) {
	return r.GetOrAddWithFlags(t, api, r.flags())
}

// GetOrAddWithFlags is GetOrAdd with explicit policy flags.
func (r *Repository) GetOrAddWithFlags(t typedesc.Type, api schema.APIKey, f flags.Flags) (*schema.Schema, error) {
	ns := r.namespace(api)
	ns.mu.Lock()
	defer ns.mu.Unlock()

	mark := len(ns.entries)
	d := r.newDeriver(ns, f)
	s, err := d.root(t)
	if err != nil {
		// Nothing from a failed derivation stays registered.
		ns.truncate(mark)
		r.observer.UnsupportedType(ns.api.String())
		r.logger.Debug().
			Str("api", ns.api.String()).
			Str("type", typedesc.Format(t)).
			Err(err).
			Msg("schema derivation rejected")
		return nil, err
	}
	return s, nil
}

// Get returns the cached schema of t in api without deriving it.
func (r *Repository) Get(t typedesc.Type, api schema.APIKey) (*schema.Schema, bool) {
	ns, ok := r.lookupNamespace(api)
	if !ok {
		return nil, false
	}
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	d := r.newDeriver(ns, r.flags())
	rt, err := d.resolveRoot(t)
	if err != nil {
		return nil, false
	}
	i, ok := ns.index[typedesc.Key(rt)]
	if !ok {
		return nil, false
	}
	return ns.entries[i].schema, true
}

// Lookup resolves a canonical key in api. It implements schema.Resolver.
func (r *Repository) Lookup(api schema.APIKey, key string) (*schema.Schema, bool) {
	switch key {
	case anyKey:
		return schema.Any, true
	case jsonMapKey:
		return schema.JSONMap, true
	}
	ns, ok := r.lookupNamespace(api)
	if !ok {
		return nil, false
	}
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	i, ok := ns.index[key]
	if !ok {
		return nil, false
	}
	return ns.entries[i].schema, true
}

// Reference builds the reference a field of type t would carry in api. It
// does not derive anything. A map that has not been derived as a typed map
// is referenced as the opaque map schema.
func (r *Repository) Reference(t typedesc.Type, api schema.APIKey) *schema.Reference {
	ns := r.namespace(api)
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	d := r.newDeriver(ns, r.flags())
	rt := d.resolveProperty(t)
	switch rt.Kind() {
	case typedesc.KindAny, typedesc.KindTypeVar:
		return d.ref(anyTarget)
	case typedesc.KindMap:
		if _, ok := ns.index[typedesc.Key(rt)]; !ok {
			return d.ref(jsonMapTarget)
		}
	}
	return d.ref(target{key: typedesc.Key(rt), name: d.namer.Name(rt)})
}

// AllSchemas returns the schemas registered in api in insertion order.
// Names are unique within a namespace. The shared sentinels are not
// included.
func (r *Repository) AllSchemas(api schema.APIKey) []*schema.Schema {
	ns, ok := r.lookupNamespace(api)
	if !ok {
		return nil
	}
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	out := make([]*schema.Schema, 0, len(ns.entries))
	for _, e := range ns.entries {
		out = append(out, e.schema)
	}
	return out
}

// APIs returns the known namespaces in creation order.
func (r *Repository) APIs() []schema.APIKey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]schema.APIKey(nil), r.order...)
}

func (r *Repository) namespace(api schema.APIKey) *namespace {
	api = api.WithoutRoot()
	if ns, ok := r.lookupNamespace(api); ok {
		return ns
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if ns, ok := r.namespaces[api]; ok {
		return ns
	}
	ns := &namespace{api: api, index: make(map[string]int), owners: make(map[string]string)}
	r.namespaces[api] = ns
	r.order = append(r.order, api)
	return ns
}

func (r *Repository) lookupNamespace(api schema.APIKey) (*namespace, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ns, ok := r.namespaces[api.WithoutRoot()]
	return ns, ok
}

// allocate reserves a slot for key holding a placeholder schema.
func (ns *namespace) allocate(key string, placeholder *schema.Schema) int {
	ns.entries = append(ns.entries, entry{key: key, schema: placeholder})
	slot := len(ns.entries) - 1
	ns.index[key] = slot
	ns.owners[placeholder.Name()] = key
	return slot
}

func (ns *namespace) truncate(mark int) {
	for _, e := range ns.entries[mark:] {
		delete(ns.index, e.key)
		delete(ns.owners, e.schema.Name())
	}
	ns.entries = ns.entries[:mark]
}

type nopObserver struct{}

func (nopObserver) SchemaDerived(string, string, time.Duration) {}
func (nopObserver) CacheLookup(string, bool)                    {}
func (nopObserver) UnsupportedType(string)                      {}
func (nopObserver) MapFallback(string, string)                  {}

var _ schema.Resolver = (*Repository)(nil)
