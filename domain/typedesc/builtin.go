package typedesc

import "strings"

// Built-in scalar descriptors. Several host spellings may map onto one of
// these (int and Integer are both Integer).
var (
	String  = NewScalar("String", ScalarString)
	Integer = NewScalar("Integer", ScalarInt32)
	Long    = NewScalar("Long", ScalarInt64)
	Short   = NewScalar("Short", ScalarInt32)
	Byte    = NewScalar("Byte", ScalarInt32)
	Boolean = NewScalar("Boolean", ScalarBoolean)
	Float   = NewScalar("Float", ScalarFloat)
	Double  = NewScalar("Double", ScalarDouble)

	// Any is the unconstrained type.
	Any Type = &Descriptor{kind: KindAny, name: "Object"}
)

// NewScalar creates a scalar descriptor.
func NewScalar(name string, s Scalar) *Descriptor {
	return &Descriptor{kind: KindScalar, name: name, scalar: s, resolved: true}
}

// NewEnum creates an enum descriptor.
func NewEnum(pkg, name string, constants ...EnumConstant) *Descriptor {
	return &Descriptor{kind: KindEnum, pkg: pkg, name: name, constants: constants, resolved: true}
}

// NewObject creates an object descriptor with bound generic arguments.
// Properties are added with AddProperty or SetResolver.
func NewObject(pkg, name string, args ...Type) *Descriptor {
	return &Descriptor{kind: KindObject, pkg: pkg, name: name, args: args}
}

// ArrayOf describes an array or collection of elem.
func ArrayOf(elem Type) *Descriptor {
	return &Descriptor{kind: KindArray, name: "Array", args: []Type{elem}, resolved: true}
}

// MapOf describes a map from key to value.
func MapOf(key, value Type) *Descriptor {
	return &Descriptor{kind: KindMap, name: "Map", args: []Type{key, value}, resolved: true}
}

// NewMap describes a named map type, such as a declared subtype of
// Map<K, V>. It shares its identity with the unnamed map of the same key
// and value types.
func NewMap(pkg, name string, key, value Type) *Descriptor {
	return &Descriptor{kind: KindMap, pkg: pkg, name: name, args: []Type{key, value}, resolved: true}
}

// RawMap describes a map without bound key and value types.
func RawMap() *Descriptor {
	return &Descriptor{kind: KindMap, name: "Map", resolved: true}
}

// OptionalOf describes an optional wrapper around t.
func OptionalOf(t Type) *Descriptor {
	return &Descriptor{kind: KindOptional, name: "Optional", args: []Type{t}, resolved: true}
}

// TypeVar describes an unbound generic type variable.
func TypeVar(name string) *Descriptor {
	return &Descriptor{kind: KindTypeVar, name: name, resolved: true}
}

// CollectionResponse describes the paged collection wrapper of elem.
func CollectionResponse(elem Type) *Descriptor {
	d := NewObject("", "CollectionResponse", elem).WithWrapper(WrapperPaged)
	d.resolved = true
	return d
}

// Key returns the canonical identity of t: the raw identity plus the
// recursively canonicalized bound arguments. Two descriptors with the same
// key describe the same type.
func Key(t Type) string {
	var b strings.Builder
	writeKey(&b, t)
	return b.String()
}

func writeKey(b *strings.Builder, t Type) {
	switch t.Kind() {
	case KindAny:
		b.WriteString("any")
	case KindScalar:
		b.WriteString("scalar:")
		b.WriteString(t.Name())
	case KindTypeVar:
		b.WriteString("var:")
		b.WriteString(t.Name())
	case KindArray:
		writeArgKey(b, t, 0)
		b.WriteString("[]")
	case KindMap:
		b.WriteString("map")
		writeArgList(b, t.Args())
	case KindOptional:
		b.WriteString("optional")
		writeArgList(b, t.Args())
	default:
		if t.Package() != "" {
			b.WriteString(t.Package())
			b.WriteByte('.')
		}
		b.WriteString(t.Name())
		writeArgList(b, t.Args())
	}
}

func writeArgKey(b *strings.Builder, t Type, i int) {
	args := t.Args()
	if i >= len(args) {
		b.WriteString("?")
		return
	}
	writeKey(b, args[i])
}

func writeArgList(b *strings.Builder, args []Type) {
	if len(args) == 0 {
		return
	}
	b.WriteByte('<')
	for i, a := range args {
		if i > 0 {
			b.WriteByte(',')
		}
		writeKey(b, a)
	}
	b.WriteByte('>')
}

// Format renders t the way it would be written in a catalog file.
func Format(t Type) string {
	switch t.Kind() {
	case KindArray:
		if len(t.Args()) == 0 {
			return "Array"
		}
		return Format(t.Args()[0]) + "[]"
	case KindMap, KindOptional, KindObject, KindEnum:
		args := t.Args()
		if len(args) == 0 {
			return t.Name()
		}
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = Format(a)
		}
		return t.Name() + "<" + strings.Join(parts, ", ") + ">"
	default:
		return t.Name()
	}
}

// Unbound reports whether t or any of its arguments is an unbound type
// variable.
func Unbound(t Type) bool {
	if t.Kind() == KindTypeVar {
		return true
	}
	for _, a := range t.Args() {
		if Unbound(a) {
			return true
		}
	}
	return false
}
