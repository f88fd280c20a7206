package schema

import "fmt"

// APIKey identifies an API namespace.
type APIKey struct {
	Name    string
	Version string
	// Root is the serving root. It does not take part in namespacing.
	Root string
}

// WithoutRoot returns the key used to group schemas.
func (k APIKey) WithoutRoot() APIKey {
	return APIKey{Name: k.Name, Version: k.Version}
}

// String returns name:version.
func (k APIKey) String() string {
	return fmt.Sprintf("%s:%s", k.Name, k.Version)
}

// Resolver looks up registered schemas by canonical type key.
type Resolver interface {
	Lookup(api APIKey, key string) (*Schema, bool)
}

// Reference is a deferred pointer to a schema registered in a resolver.
type Reference struct {
	resolver Resolver
	api      APIKey
	key      string
	name     string
}

// NewReference creates a reference to the schema registered under key.
// name is the canonical schema name the key resolves to.
func NewReference(r Resolver, api APIKey, key, name string) *Reference {
	return &Reference{resolver: r, api: api.WithoutRoot(), key: key, name: name}
}

// Name returns the canonical name of the referenced schema.
func (r *Reference) Name() string { return r.name }

// API returns the namespace the reference points into.
func (r *Reference) API() APIKey { return r.api }

// Key returns the canonical type key.
func (r *Reference) Key() string { return r.key }

// Resolve returns the referenced schema.
func (r *Reference) Resolve() (*Schema, bool) {
	if r == nil || r.resolver == nil {
		return nil, false
	}
	return r.resolver.Lookup(r.api, r.key)
}

// Equal compares by canonical name and namespace. Nil references are only
// equal to each other.
func (r *Reference) Equal(o *Reference) bool {
	if r == nil || o == nil {
		return r == o
	}
	return r.name == o.name && r.api == o.api
}

// String returns the referenced name.
func (r *Reference) String() string {
	if r == nil {
		return "<nil>"
	}
	return r.name
}
