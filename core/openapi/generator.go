// Package openapi generates OpenAPI 3.0 documents from derived schemas.
// Every schema of an API namespace becomes an entry in components.schemas.
package openapi

import (
	"encoding/json"

	"github.com/artpar/schemagate/core/exporter"
	"github.com/artpar/schemagate/core/schema"
)

const componentsPrefix = "#/components/schemas/"

// Spec represents an OpenAPI 3.0 specification.
type Spec struct {
	OpenAPI    string         `json:"openapi"`
	Info       Info           `json:"info"`
	Servers    []Server       `json:"servers,omitempty"`
	Paths      map[string]any `json:"paths"`
	Components Components     `json:"components"`
}

// Info provides API metadata.
type Info struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Version     string   `json:"version"`
	Contact     *Contact `json:"contact,omitempty"`
	License     *License `json:"license,omitempty"`
}

// Contact provides contact information.
type Contact struct {
	Name  string `json:"name,omitempty"`
	URL   string `json:"url,omitempty"`
	Email string `json:"email,omitempty"`
}

// License provides license information.
type License struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// Server represents a server URL.
type Server struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// Components contains reusable schemas.
type Components struct {
	Schemas map[string]*Schema `json:"schemas"`
}

// Schema represents an OpenAPI schema object.
type Schema struct {
	Type                 string             `json:"type,omitempty"`
	Format               string             `json:"format,omitempty"`
	Title                string             `json:"title,omitempty"`
	Description          string             `json:"description,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	Required             []string           `json:"required,omitempty"`
	Items                *Schema            `json:"items,omitempty"`
	AdditionalProperties *Schema            `json:"additionalProperties,omitempty"`
	Enum                 []string           `json:"enum,omitempty"`
	EnumDescriptions     []string           `json:"x-enumDescriptions,omitempty"`
	Ref                  string             `json:"$ref,omitempty"`
}

// Generator renders OpenAPI documents. It implements exporter.Exporter.
type Generator struct {
	info    Info
	servers []Server
}

// NewGenerator creates a new OpenAPI generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// SetInfo sets contact and license details shared by every document.
// Title, description and version still come from the API.
func (g *Generator) SetInfo(info Info) {
	g.info = info
}

// AddServer adds a server URL.
func (g *Generator) AddServer(url, description string) {
	g.servers = append(g.servers, Server{
		URL:         url,
		Description: description,
	})
}

// Name implements exporter.Exporter.
func (g *Generator) Name() string { return "openapi" }

// ContentType implements exporter.Exporter.
func (g *Generator) ContentType() string { return "application/json" }

// Render implements exporter.Exporter.
func (g *Generator) Render(doc exporter.Document) ([]byte, error) {
	return g.Generate(doc).ToJSON()
}

// Generate creates the OpenAPI specification for one API namespace.
func (g *Generator) Generate(doc exporter.Document) *Spec {
	info := g.info
	info.Title = doc.Title
	if info.Title == "" {
		info.Title = doc.API.Name
	}
	info.Description = doc.Description
	info.Version = doc.API.Version

	servers := append([]Server(nil), g.servers...)
	if len(servers) == 0 && doc.API.Root != "" {
		servers = []Server{{URL: doc.API.Root}}
	}

	spec := &Spec{
		OpenAPI: "3.0.3",
		Info:    info,
		Servers: servers,
		Paths:   map[string]any{},
		Components: Components{
			Schemas: make(map[string]*Schema),
		},
	}

	for _, s := range doc.All() {
		spec.Components.Schemas[s.Name()] = g.schemaToSchema(s)
	}

	return spec
}

// schemaToSchema converts a derived schema to a component schema.
func (g *Generator) schemaToSchema(s *schema.Schema) *Schema {
	// OpenAPI 3.0 has no "any" type; an empty schema accepts every value.
	if s.Type() == schema.TypeAny {
		return &Schema{Description: s.Description()}
	}

	out := &Schema{
		Type:        s.Type(),
		Title:       s.Name(),
		Description: s.Description(),
	}

	switch s.Shape() {
	case schema.ShapeEnum:
		out.Enum = s.EnumValues()
		out.EnumDescriptions = s.EnumDescriptions()
	case schema.ShapeMap:
		out.AdditionalProperties = g.fieldToSchema(*s.MapValue())
	default:
		for _, f := range s.Fields() {
			if out.Properties == nil {
				out.Properties = make(map[string]*Schema)
			}
			out.Properties[f.Name()] = g.fieldToSchema(f)
			if f.Required() {
				out.Required = append(out.Required, f.Name())
			}
		}
	}

	return out
}

// fieldToSchema converts a field to an OpenAPI schema.
func (g *Generator) fieldToSchema(f schema.Field) *Schema {
	s := &Schema{
		Description: f.Description(),
	}

	switch f.Type() {
	case schema.FieldTypeBoolean:
		s.Type = "boolean"
	case schema.FieldTypeInt32:
		s.Type = "integer"
		s.Format = "int32"
	case schema.FieldTypeInt64:
		s.Type = "integer"
		s.Format = "int64"
	case schema.FieldTypeFloat:
		s.Type = "number"
		s.Format = "float"
	case schema.FieldTypeDouble:
		s.Type = "number"
		s.Format = "double"
	case schema.FieldTypeArray:
		s.Type = "array"
		s.Items = g.fieldToSchema(*f.Item())
	case schema.FieldTypeEnum, schema.FieldTypeObject:
		// $ref siblings are ignored in 3.0
		return &Schema{Ref: componentsPrefix + f.Reference().Name()}
	default:
		s.Type = "string"
	}

	return s
}

// ToJSON converts the spec to JSON.
func (spec *Spec) ToJSON() ([]byte, error) {
	return json.MarshalIndent(spec, "", "  ")
}

// ToJSONCompact converts the spec to compact JSON.
func (spec *Spec) ToJSONCompact() ([]byte, error) {
	return json.Marshal(spec)
}
