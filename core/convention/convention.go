// Package convention derives canonical names and defaults from type
// descriptors. It applies the naming scheme for schemas, the wire naming of
// enum constants and the precedence rules for the required marker.
package convention

import (
	"strings"

	"github.com/artpar/schemagate/domain/typedesc"
)

// Suffixes and prefixes used by canonical names.
const (
	CollectionSuffix = "Collection"
	MapPrefix        = "Map"
	nameSeparator    = "_"
)

// Normalizer maps a type to the type it is actually derived as (optional
// unwrapping, transformer substitution). A nil Normalizer is the identity.
type Normalizer func(typedesc.Type) typedesc.Type

// Namer computes canonical schema names.
type Namer struct {
	Normalize Normalizer
}

// Name returns the canonical name of t:
//
//	Foo                 -> Foo
//	Parameterized<Int>  -> Parameterized_Integer
//	String[]            -> StringCollection
//	Map<String, Foo>    -> Map_String_Foo
//
// Generic arguments are normalized before they are named, so a transformed
// argument contributes its target's name.
func (n Namer) Name(t typedesc.Type) string {
	return n.ResolvedName(n.normalize(t))
}

// ResolvedName names a type that is already normalized. Only its
// arguments and elements are normalized.
func (n Namer) ResolvedName(t typedesc.Type) string {
	switch t.Kind() {
	case typedesc.KindArray:
		return n.CollectionName(elem(t, 0))
	case typedesc.KindMap:
		return n.MapName(elem(t, 0), elem(t, 1))
	case typedesc.KindOptional:
		return n.Name(elem(t, 0))
	case typedesc.KindObject, typedesc.KindEnum:
		return n.GenericName(t.Name(), t.Args())
	default:
		return t.Name()
	}
}

// CollectionName returns <Elem>Collection.
func (n Namer) CollectionName(elem typedesc.Type) string {
	return n.Name(elem) + CollectionSuffix
}

// MapName returns Map_<Key>_<Value>.
func (n Namer) MapName(key, value typedesc.Type) string {
	return strings.Join([]string{MapPrefix, n.Name(key), n.Name(value)}, nameSeparator)
}

// GenericName joins a raw name with its bound argument names. Unbound type
// variables contribute nothing, so raw usage yields the raw name alone.
func (n Namer) GenericName(raw string, args []typedesc.Type) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, raw)
	for _, a := range args {
		if a.Kind() == typedesc.KindTypeVar {
			continue
		}
		parts = append(parts, n.Name(a))
	}
	return strings.Join(parts, nameSeparator)
}

func (n Namer) normalize(t typedesc.Type) typedesc.Type {
	if n.Normalize == nil {
		return t
	}
	return n.Normalize(t)
}

func elem(t typedesc.Type, i int) typedesc.Type {
	args := t.Args()
	if i < len(args) {
		return args[i]
	}
	return typedesc.Any
}

// EnumWireName returns the wire name of an enum constant.
func EnumWireName(c typedesc.EnumConstant, useDeclared bool) string {
	if useDeclared && c.WireName != "" {
		return c.WireName
	}
	return c.Name
}

// Required resolves the required marker of a property. The explicit
// override beats the non-null marker, which beats the nullable marker.
// ok is false when nothing was declared.
func Required(p typedesc.Property) (required bool, ok bool) {
	switch {
	case p.Required == typedesc.True:
		return true, true
	case p.Required == typedesc.False:
		return false, true
	case p.NonNull:
		return true, true
	case p.Nullable:
		return false, true
	default:
		return false, false
	}
}

// MapDescription describes a map whose values reference valueName.
func MapDescription(valueName string) string {
	return "A collection of name / " + valueName + " pairs"
}
