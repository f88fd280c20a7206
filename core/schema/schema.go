package schema

import (
	"errors"
	"fmt"
)

// Schema types.
const (
	TypeObject = "object"
	TypeString = "string"
	TypeAny    = "any"
)

// Reserved schema names.
const (
	AnyName     = "_any"
	JSONMapName = "JsonMap"
)

// Sentinel schemas shared by every namespace.
var (
	Any     = NewBuilder(AnyName, TypeAny).Build()
	JSONMap = NewBuilder(JSONMapName, TypeObject).Build()
)

// Shape is the structural shape of a schema.
type Shape int

const (
	ShapeObject Shape = iota
	ShapeEnum
	ShapeMap
)

// Schema is an immutable, value-comparable schema description.
type Schema struct {
	name             string
	typ              string
	description      string
	fields           []Field
	enumValues       []string
	enumDescriptions []string
	mapValue         *Field
}

// Name returns the canonical name.
func (s *Schema) Name() string { return s.name }

// Type returns "object", "string" for enums, or "any".
func (s *Schema) Type() string { return s.typ }

// Description returns the optional description.
func (s *Schema) Description() string { return s.description }

// Fields returns the ordered fields of an object schema.
func (s *Schema) Fields() []Field {
	return append([]Field(nil), s.fields...)
}

// Field returns the field with the given name.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.fields {
		if f.name == name {
			return f, true
		}
	}
	return Field{}, false
}

// EnumValues returns the enum wire names in declaration order.
func (s *Schema) EnumValues() []string {
	return append([]string(nil), s.enumValues...)
}

// EnumDescriptions returns descriptions parallel to EnumValues.
func (s *Schema) EnumDescriptions() []string {
	return append([]string(nil), s.enumDescriptions...)
}

// MapValue returns the value field of a map schema.
func (s *Schema) MapValue() *Field { return s.mapValue }

// Shape classifies the schema.
func (s *Schema) Shape() Shape {
	switch {
	case len(s.enumValues) > 0:
		return ShapeEnum
	case s.mapValue != nil:
		return ShapeMap
	default:
		return ShapeObject
	}
}

// Validate checks the single-shape and field invariants.
func (s *Schema) Validate() error {
	var errs []error
	if s.name == "" {
		errs = append(errs, errors.New("schema name is required"))
	}
	shapes := 0
	if len(s.fields) > 0 {
		shapes++
	}
	if len(s.enumValues) > 0 {
		shapes++
	}
	if s.mapValue != nil {
		shapes++
	}
	if shapes > 1 {
		errs = append(errs, fmt.Errorf("schema %q mixes object, enum and map shapes", s.name))
	}
	if len(s.enumValues) != len(s.enumDescriptions) {
		errs = append(errs, fmt.Errorf("schema %q has %d enum values but %d descriptions",
			s.name, len(s.enumValues), len(s.enumDescriptions)))
	}
	for _, f := range s.fields {
		if err := validateField(f); err != nil {
			errs = append(errs, fmt.Errorf("schema %q: %w", s.name, err))
		}
	}
	if s.mapValue != nil {
		if err := validateField(*s.mapValue); err != nil {
			errs = append(errs, fmt.Errorf("schema %q map value: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}

func validateField(f Field) error {
	if f.typ.HasReference() != (f.ref != nil) {
		return fmt.Errorf("field %q: reference must be present iff type is enum or object", f.name)
	}
	if (f.typ == FieldTypeArray) != (f.item != nil) {
		return fmt.Errorf("field %q: item must be present iff type is array", f.name)
	}
	if f.item != nil {
		return validateField(*f.item)
	}
	return nil
}

// Equal compares two schemas by value.
func (s *Schema) Equal(o *Schema) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.name != o.name || s.typ != o.typ || s.description != o.description {
		return false
	}
	if len(s.fields) != len(o.fields) ||
		!equalStrings(s.enumValues, o.enumValues) ||
		!equalStrings(s.enumDescriptions, o.enumDescriptions) {
		return false
	}
	for i := range s.fields {
		if !s.fields[i].Equal(o.fields[i]) {
			return false
		}
	}
	if (s.mapValue == nil) != (o.mapValue == nil) {
		return false
	}
	return s.mapValue == nil || s.mapValue.Equal(*o.mapValue)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// String returns the schema name.
func (s *Schema) String() string { return s.name }

// Builder assembles a Schema. A builder must not be reused after Build.
type Builder struct {
	s Schema
}

// NewBuilder starts a schema with a name and type.
func NewBuilder(name, typ string) *Builder {
	return &Builder{s: Schema{name: name, typ: typ}}
}

// Description sets the description.
func (b *Builder) Description(desc string) *Builder {
	b.s.description = desc
	return b
}

// AddField appends a field, replacing an existing field of the same name
// in place.
func (b *Builder) AddField(f Field) *Builder {
	for i := range b.s.fields {
		if b.s.fields[i].name == f.name {
			b.s.fields[i] = f
			return b
		}
	}
	b.s.fields = append(b.s.fields, f)
	return b
}

// AddEnumValue appends an enum constant and its description.
func (b *Builder) AddEnumValue(value, desc string) *Builder {
	b.s.enumValues = append(b.s.enumValues, value)
	b.s.enumDescriptions = append(b.s.enumDescriptions, desc)
	return b
}

// MapValue sets the map value field.
func (b *Builder) MapValue(f Field) *Builder {
	b.s.mapValue = &f
	return b
}

// Build returns the finished schema.
func (b *Builder) Build() *Schema {
	s := b.s
	return &s
}
