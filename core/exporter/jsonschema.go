package exporter

import (
	"encoding/json"

	"github.com/invopop/jsonschema"

	"github.com/artpar/schemagate/core/schema"
)

const jsonSchemaDefs = "#/$defs/"

// JSONSchema renders a JSON Schema (draft 2020-12) document holding every
// schema under $defs.
type JSONSchema struct{}

// NewJSONSchema creates a JSON Schema exporter.
func NewJSONSchema() *JSONSchema { return &JSONSchema{} }

func (*JSONSchema) Name() string        { return "jsonschema" }
func (*JSONSchema) ContentType() string { return "application/schema+json" }

// Render implements Exporter.
func (x *JSONSchema) Render(doc Document) ([]byte, error) {
	root := &jsonschema.Schema{
		Version:     jsonschema.Version,
		ID:          jsonschema.ID("urn:schemagate:" + doc.API.Name + ":" + doc.API.Version),
		Title:       doc.Title,
		Description: doc.Description,
		Definitions: jsonschema.Definitions{},
	}

	for _, s := range doc.All() {
		root.Definitions[s.Name()] = x.schema(s)
	}

	return json.MarshalIndent(root, "", "  ")
}

func (x *JSONSchema) schema(s *schema.Schema) *jsonschema.Schema {
	if s.Type() == schema.TypeAny {
		return &jsonschema.Schema{Description: s.Description()}
	}

	out := &jsonschema.Schema{
		Title:       s.Name(),
		Description: s.Description(),
	}

	switch s.Shape() {
	case schema.ShapeEnum:
		out.Type = "string"
		for _, v := range s.EnumValues() {
			out.Enum = append(out.Enum, v)
		}
		out.Extras = map[string]any{"enumDescriptions": s.EnumDescriptions()}
	case schema.ShapeMap:
		out.Type = "object"
		out.AdditionalProperties = x.field(*s.MapValue())
	default:
		out.Type = "object"
		if fields := s.Fields(); len(fields) > 0 {
			out.Properties = jsonschema.NewProperties()
			for _, f := range fields {
				out.Properties.Set(f.Name(), x.field(f))
			}
		}
		out.Required = requiredNames(s)
	}
	return out
}

func (x *JSONSchema) field(f schema.Field) *jsonschema.Schema {
	out := &jsonschema.Schema{Description: f.Description()}

	switch {
	case f.Type() == schema.FieldTypeArray:
		out.Type = "array"
		out.Items = x.field(*f.Item())
	case f.Type().HasReference():
		out.Ref = jsonSchemaDefs + f.Reference().Name()
	case f.Type() == schema.FieldTypeInt64:
		out.Type, out.Format = "integer", "int64"
	default:
		out.Type, out.Format = scalarFormat(f.Type())
	}
	return out
}
