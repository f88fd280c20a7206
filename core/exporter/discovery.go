package exporter

import (
	"encoding/json"

	"github.com/artpar/schemagate/core/schema"
)

// Discovery renders a discovery-style REST description holding only the
// schemas section.
type Discovery struct{}

// NewDiscovery creates a discovery exporter.
func NewDiscovery() *Discovery { return &Discovery{} }

func (*Discovery) Name() string        { return "discovery" }
func (*Discovery) ContentType() string { return "application/json" }

type restDescription struct {
	Kind             string                      `json:"kind"`
	DiscoveryVersion string                      `json:"discoveryVersion"`
	ID               string                      `json:"id"`
	Name             string                      `json:"name"`
	Version          string                      `json:"version"`
	Title            string                      `json:"title,omitempty"`
	Description      string                      `json:"description,omitempty"`
	RootURL          string                      `json:"rootUrl,omitempty"`
	Schemas          map[string]*discoverySchema `json:"schemas"`
}

type discoverySchema struct {
	ID                   string                      `json:"id,omitempty"`
	Type                 string                      `json:"type,omitempty"`
	Format               string                      `json:"format,omitempty"`
	Description          string                      `json:"description,omitempty"`
	Ref                  string                      `json:"$ref,omitempty"`
	Required             bool                        `json:"required,omitempty"`
	Properties           map[string]*discoverySchema `json:"properties,omitempty"`
	Items                *discoverySchema            `json:"items,omitempty"`
	AdditionalProperties *discoverySchema            `json:"additionalProperties,omitempty"`
	Enum                 []string                    `json:"enum,omitempty"`
	EnumDescriptions     []string                    `json:"enumDescriptions,omitempty"`
}

// Render implements Exporter.
func (d *Discovery) Render(doc Document) ([]byte, error) {
	out := restDescription{
		Kind:             "discovery#restDescription",
		DiscoveryVersion: "v1",
		ID:               doc.API.String(),
		Name:             doc.API.Name,
		Version:          doc.API.Version,
		Title:            doc.Title,
		Description:      doc.Description,
		RootURL:          doc.API.Root,
		Schemas:          make(map[string]*discoverySchema),
	}
	for _, s := range doc.All() {
		out.Schemas[s.Name()] = d.schema(s)
	}
	return json.MarshalIndent(out, "", "  ")
}

func (d *Discovery) schema(s *schema.Schema) *discoverySchema {
	ds := &discoverySchema{
		ID:          s.Name(),
		Type:        s.Type(),
		Description: s.Description(),
	}

	switch s.Shape() {
	case schema.ShapeEnum:
		ds.Enum = s.EnumValues()
		ds.EnumDescriptions = s.EnumDescriptions()
	case schema.ShapeMap:
		ds.AdditionalProperties = d.field(*s.MapValue())
	default:
		for _, f := range s.Fields() {
			if ds.Properties == nil {
				ds.Properties = make(map[string]*discoverySchema)
			}
			ds.Properties[f.Name()] = d.field(f)
		}
	}
	return ds
}

func (d *Discovery) field(f schema.Field) *discoverySchema {
	ds := &discoverySchema{
		Description: f.Description(),
		Required:    f.Required(),
	}
	switch {
	case f.Type() == schema.FieldTypeArray:
		ds.Type = "array"
		ds.Items = d.field(*f.Item())
	case f.Type().HasReference():
		ds.Ref = f.Reference().Name()
	default:
		ds.Type, ds.Format = scalarFormat(f.Type())
	}
	return ds
}
