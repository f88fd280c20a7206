// Package typedesc defines the type descriptor contract consumed by the
// schema repository.
//
// A descriptor carries the raw identity of a host type (package and simple
// name), its ordered bound generic arguments, its declared properties and
// enum constants, and the markers the derivation engine needs (collection
// wrappers, nullability, explicit required overrides). Descriptors are
// produced by loaders (YAML catalogs, Go reflection) and are treated as
// read-only once handed to the repository.
package typedesc

import (
	"sync"
)

// Kind classifies the structural shape of a type.
type Kind int

const (
	// KindAny is an unconstrained type (Object, any).
	KindAny Kind = iota
	// KindScalar is a primitive wire value (string, integer, ...).
	KindScalar
	// KindEnum is an enumeration of named constants.
	KindEnum
	// KindObject is a plain or generic object with properties.
	KindObject
	// KindArray is an array or indexable collection; Args()[0] is the element.
	KindArray
	// KindMap is a map; Args() is [key, value].
	KindMap
	// KindOptional is an optional wrapper; Args()[0] is the wrapped type.
	KindOptional
	// KindTypeVar is an unbound generic type variable.
	KindTypeVar
)

// String returns the lower-case kind name.
func (k Kind) String() string {
	switch k {
	case KindAny:
		return "any"
	case KindScalar:
		return "scalar"
	case KindEnum:
		return "enum"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	case KindOptional:
		return "optional"
	case KindTypeVar:
		return "typevar"
	default:
		return "unknown"
	}
}

// Scalar is the wire kind of a scalar type.
type Scalar string

const (
	ScalarBoolean Scalar = "boolean"
	ScalarInt32   Scalar = "int32"
	ScalarInt64   Scalar = "int64"
	ScalarFloat   Scalar = "float"
	ScalarDouble  Scalar = "double"
	ScalarString  Scalar = "string"
)

// Wrapper marks object types recognized as response collection wrappers.
type Wrapper int

const (
	// WrapperNone is an ordinary object.
	WrapperNone Wrapper = iota
	// WrapperCollection is a single-field wrapper carrying an element sequence.
	WrapperCollection
	// WrapperPaged is the paged collection wrapper (items + nextPageToken).
	WrapperPaged
)

// Tristate is an explicit boolean override that may be left unset.
type Tristate int

const (
	Unset Tristate = iota
	True
	False
)

// Bool returns the tristate for b.
func Bool(b bool) Tristate {
	if b {
		return True
	}
	return False
}

// Type is the polymorphic descriptor of a host type.
type Type interface {
	Kind() Kind
	// Name is the raw simple name, without generic arguments.
	Name() string
	// Package qualifies Name; two types with equal package and name share
	// an identity.
	Package() string
	Scalar() Scalar
	// Args holds bound generic arguments for objects, [key, value] for
	// maps and the element for arrays and optionals.
	Args() []Type
	Properties() []Property
	Constants() []EnumConstant
	Wrapper() Wrapper
	Description() string
}

// Property is a declared readable/writable property of an object type.
type Property struct {
	Name        string
	Type        Type
	Description string

	// Required is the explicit required override.
	Required Tristate
	// Nullable and NonNull are declarative nullability markers.
	Nullable bool
	NonNull  bool
	// Ignored properties are not serialized.
	Ignored bool
}

// EnumConstant is one constant of an enum type.
type EnumConstant struct {
	// Name is the raw identifier.
	Name string
	// WireName overrides Name on the wire when non-empty.
	WireName    string
	Description string
}

// Enumerated is implemented by host enum types that can list their constants.
type Enumerated interface {
	EnumConstants() []EnumConstant
}

// Descriptor is the concrete Type used by every loader.
//
// Properties may be supplied lazily through a resolver so that
// self-referential generic instantiations can be described without
// expanding them eagerly.
type Descriptor struct {
	kind        Kind
	name        string
	pkg         string
	scalar      Scalar
	args        []Type
	constants   []EnumConstant
	wrapper     Wrapper
	description string

	mu       sync.Mutex
	props    []Property
	resolver func() []Property
	resolved bool
}

// Kind implements Type.
func (d *Descriptor) Kind() Kind { return d.kind }

// Name implements Type.
func (d *Descriptor) Name() string { return d.name }

// Package implements Type.
func (d *Descriptor) Package() string { return d.pkg }

// Scalar implements Type.
func (d *Descriptor) Scalar() Scalar { return d.scalar }

// Args implements Type.
func (d *Descriptor) Args() []Type { return d.args }

// Constants implements Type.
func (d *Descriptor) Constants() []EnumConstant { return d.constants }

// Wrapper implements Type.
func (d *Descriptor) Wrapper() Wrapper { return d.wrapper }

// Description implements Type.
func (d *Descriptor) Description() string { return d.description }

// Properties implements Type. A resolver, if any, runs once.
func (d *Descriptor) Properties() []Property {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.resolved && d.resolver != nil {
		d.props = append(d.props, d.resolver()...)
		d.resolved = true
	}
	return d.props
}

// AddProperty appends a property. It is meant for building descriptors
// before they are shared.
func (d *Descriptor) AddProperty(p Property) *Descriptor {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.props = append(d.props, p)
	return d
}

// SetResolver installs a lazy property resolver.
func (d *Descriptor) SetResolver(fn func() []Property) *Descriptor {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resolver = fn
	d.resolved = false
	return d
}

// WithDescription sets the type description.
func (d *Descriptor) WithDescription(desc string) *Descriptor {
	d.description = desc
	return d
}

// WithWrapper marks the descriptor as a collection wrapper.
func (d *Descriptor) WithWrapper(w Wrapper) *Descriptor {
	d.wrapper = w
	return d
}

// String returns the display form of the type, e.g. Map<String, Foo>.
func (d *Descriptor) String() string {
	return Format(d)
}
