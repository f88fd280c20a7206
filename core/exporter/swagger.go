package exporter

import (
	"encoding/json"

	"github.com/go-openapi/spec"

	"github.com/artpar/schemagate/core/schema"
)

const swaggerDefinitions = "#/definitions/"

// Swagger renders a Swagger 2.0 document whose definitions hold the schemas.
type Swagger struct{}

// NewSwagger creates a Swagger 2.0 exporter.
func NewSwagger() *Swagger { return &Swagger{} }

func (*Swagger) Name() string        { return "swagger" }
func (*Swagger) ContentType() string { return "application/json" }

// Render implements Exporter.
func (x *Swagger) Render(doc Document) ([]byte, error) {
	title := doc.Title
	if title == "" {
		title = doc.API.Name
	}

	sw := &spec.Swagger{
		SwaggerProps: spec.SwaggerProps{
			Swagger: "2.0",
			Info: &spec.Info{
				InfoProps: spec.InfoProps{
					Title:       title,
					Version:     doc.API.Version,
					Description: doc.Description,
				},
			},
			BasePath:    doc.API.Root,
			Paths:       &spec.Paths{Paths: map[string]spec.PathItem{}},
			Definitions: spec.Definitions{},
		},
	}

	for _, s := range doc.All() {
		sw.Definitions[s.Name()] = *x.schema(s)
	}

	return json.MarshalIndent(sw, "", "  ")
}

func (x *Swagger) schema(s *schema.Schema) *spec.Schema {
	var out *spec.Schema

	switch {
	case s.Type() == schema.TypeAny:
		out = &spec.Schema{}
	case s.Shape() == schema.ShapeEnum:
		values := s.EnumValues()
		enum := make([]interface{}, len(values))
		for i, v := range values {
			enum[i] = v
		}
		out = spec.StringProperty().WithEnum(enum...)
		out.AddExtension("x-enum-descriptions", s.EnumDescriptions())
	case s.Shape() == schema.ShapeMap:
		out = spec.MapProperty(x.field(*s.MapValue()))
	default:
		out = new(spec.Schema).Typed("object", "")
		for _, f := range s.Fields() {
			out.SetProperty(f.Name(), *x.field(f))
		}
		if req := requiredNames(s); len(req) > 0 {
			out.WithRequired(req...)
		}
	}

	return out.WithTitle(s.Name()).WithDescription(s.Description())
}

func (x *Swagger) field(f schema.Field) *spec.Schema {
	var out *spec.Schema

	switch f.Type() {
	case schema.FieldTypeArray:
		out = spec.ArrayProperty(x.field(*f.Item()))
	case schema.FieldTypeEnum, schema.FieldTypeObject:
		// Siblings of $ref are ignored in Swagger 2.0.
		return spec.RefSchema(swaggerDefinitions + f.Reference().Name())
	case schema.FieldTypeBoolean:
		out = spec.BoolProperty()
	case schema.FieldTypeInt32:
		out = spec.Int32Property()
	case schema.FieldTypeInt64:
		out = spec.Int64Property()
	case schema.FieldTypeFloat:
		out = spec.Float32Property()
	case schema.FieldTypeDouble:
		out = spec.Float64Property()
	default:
		out = spec.StringProperty()
	}

	return out.WithDescription(f.Description())
}
