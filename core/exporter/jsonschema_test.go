package exporter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONSchema_Render(t *testing.T) {
	data, err := NewJSONSchema().Render(testDocument())
	require.NoError(t, err)
	doc := decode(t, data)

	assert.Equal(t, "https://json-schema.org/draft/2020-12/schema", doc["$schema"])
	assert.Equal(t, "urn:schemagate:foo:v1", doc["$id"])
	assert.Equal(t, "Foo API", doc["title"])

	item := path(doc, "$defs", "Item").(map[string]any)
	assert.Equal(t, "object", item["type"])
	assert.Equal(t, []any{"id"}, item["required"])
	assert.Equal(t, map[string]any{"type": "integer", "format": "int64"}, path(item, "properties", "id"))
	assert.Equal(t, map[string]any{"type": "number", "format": "double"}, path(item, "properties", "ratio"))
	assert.Equal(t, map[string]any{"$ref": "#/$defs/Color"}, path(item, "properties", "color"))
	assert.Equal(t, map[string]any{"$ref": "#/$defs/_any"}, path(item, "properties", "extra"))
}

func TestJSONSchema_PropertyOrder(t *testing.T) {
	data, err := NewJSONSchema().Render(testDocument())
	require.NoError(t, err)

	// Ordered properties keep declaration order in the encoded text.
	text := string(data)
	assert.Less(t, strings.Index(text, `"id": {`), strings.Index(text, `"title": {`))
	assert.Less(t, strings.Index(text, `"title": {`), strings.Index(text, `"ratio": {`))
}

func TestJSONSchema_Shapes(t *testing.T) {
	data, err := NewJSONSchema().Render(testDocument())
	require.NoError(t, err)
	doc := decode(t, data)

	assert.Equal(t, map[string]any{
		"title":            "Color",
		"type":             "string",
		"enum":             []any{"RED", "BLUE"},
		"enumDescriptions": []any{"", "Sky"},
	}, path(doc, "$defs", "Color"))

	labels := path(doc, "$defs", "Map_String_Integer").(map[string]any)
	assert.Equal(t, map[string]any{"type": "integer", "format": "int32"}, labels["additionalProperties"])

	assert.Equal(t, true, path(doc, "$defs", "_any"))
}
