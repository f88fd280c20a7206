package schema

import "github.com/artpar/schemagate/domain/typedesc"

// FieldType represents the wire type of a field.
type FieldType string

const (
	// Scalar types
	FieldTypeBoolean FieldType = "boolean"
	FieldTypeInt32   FieldType = "int32"
	FieldTypeInt64   FieldType = "int64"
	FieldTypeFloat   FieldType = "float"
	FieldTypeDouble  FieldType = "double"
	FieldTypeString  FieldType = "string"

	// Reference types
	FieldTypeEnum   FieldType = "enum"   // Requires Reference
	FieldTypeObject FieldType = "object" // Requires Reference

	FieldTypeArray FieldType = "array" // Requires Item
)

// Reserved field names for fields that only exist to carry a type.
const (
	ArrayItemName = "unused for array items"
	MapValueName  = "unused for map values"
)

// FieldTypeOf returns the field type for a scalar wire kind.
func FieldTypeOf(s typedesc.Scalar) FieldType {
	switch s {
	case typedesc.ScalarBoolean:
		return FieldTypeBoolean
	case typedesc.ScalarInt32:
		return FieldTypeInt32
	case typedesc.ScalarInt64:
		return FieldTypeInt64
	case typedesc.ScalarFloat:
		return FieldTypeFloat
	case typedesc.ScalarDouble:
		return FieldTypeDouble
	default:
		return FieldTypeString
	}
}

// IsScalar reports whether t is carried inline without a reference.
func (t FieldType) IsScalar() bool {
	switch t {
	case FieldTypeBoolean, FieldTypeInt32, FieldTypeInt64,
		FieldTypeFloat, FieldTypeDouble, FieldTypeString:
		return true
	}
	return false
}

// HasReference reports whether fields of type t point at another schema.
func (t FieldType) HasReference() bool {
	return t == FieldTypeEnum || t == FieldTypeObject
}

// StringCompatible reports whether values of type t can be map keys.
func (t FieldType) StringCompatible() bool {
	return t.IsScalar() || t == FieldTypeEnum
}

// Field is an immutable field description. Build one with NewField,
// NewRefField or NewArrayField and refine it with the With* methods,
// which return modified copies.
type Field struct {
	name        string
	typ         FieldType
	required    *bool
	description string
	ref         *Reference
	item        *Field
}

// NewField creates a scalar field.
func NewField(name string, typ FieldType) Field {
	return Field{name: name, typ: typ}
}

// NewRefField creates an enum or object field pointing at ref.
func NewRefField(name string, typ FieldType, ref *Reference) Field {
	return Field{name: name, typ: typ, ref: ref}
}

// NewArrayField creates an array field whose items are described by item.
func NewArrayField(name string, item Field) Field {
	return Field{name: name, typ: FieldTypeArray, item: &item}
}

// WithRequired returns a copy with the required marker set.
func (f Field) WithRequired(required bool) Field {
	f.required = &required
	return f
}

// WithDescription returns a copy with a description.
func (f Field) WithDescription(desc string) Field {
	f.description = desc
	return f
}

// WithName returns a copy under another name.
func (f Field) WithName(name string) Field {
	f.name = name
	return f
}

// Name returns the wire name.
func (f Field) Name() string { return f.name }

// Type returns the wire type.
func (f Field) Type() FieldType { return f.typ }

// Description returns the optional description.
func (f Field) Description() string { return f.description }

// Required returns the required marker, false when unspecified.
func (f Field) Required() bool {
	return f.required != nil && *f.required
}

// RequiredSpecified reports whether the required marker was set at all.
func (f Field) RequiredSpecified() bool {
	return f.required != nil
}

// Reference returns the referenced schema for enum and object fields.
func (f Field) Reference() *Reference { return f.ref }

// Item returns the item description for array fields.
func (f Field) Item() *Field { return f.item }

// Equal compares two fields by value. References compare by name and
// namespace.
func (f Field) Equal(o Field) bool {
	if f.name != o.name || f.typ != o.typ || f.description != o.description {
		return false
	}
	if f.RequiredSpecified() != o.RequiredSpecified() || f.Required() != o.Required() {
		return false
	}
	if !f.ref.Equal(o.ref) {
		return false
	}
	if (f.item == nil) != (o.item == nil) {
		return false
	}
	return f.item == nil || f.item.Equal(*o.item)
}
