package formatter

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONFormatter formats output as JSON.
type JSONFormatter struct{}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// Name returns the formatter name.
func (f *JSONFormatter) Name() string {
	return "json"
}

// Description returns the formatter description.
func (f *JSONFormatter) Description() string {
	return "JSON output format"
}

// FormatList formats a list of records as JSON.
func (f *JSONFormatter) FormatList(w io.Writer, res Resource, records []map[string]any, opts FormatOptions) error {
	columns := opts.columns(res)
	data := make([]map[string]any, len(records))
	for i, record := range records {
		data[i] = project(record, columns)
	}

	return f.encode(w, map[string]any{
		"kind":  res.Kind,
		"count": len(data),
		"data":  data,
	}, opts.Compact)
}

// FormatRecord formats a single record as JSON.
func (f *JSONFormatter) FormatRecord(w io.Writer, res Resource, record map[string]any, opts FormatOptions) error {
	var data map[string]any
	if record != nil {
		data = project(record, opts.columns(res))
	}
	return f.encode(w, map[string]any{
		"kind": res.Kind,
		"data": data,
	}, opts.Compact)
}

// FormatError formats an error as JSON.
func (f *JSONFormatter) FormatError(w io.Writer, err error) error {
	return f.encode(w, map[string]any{"error": err.Error()}, false)
}

// encode writes JSON to the writer.
func (f *JSONFormatter) encode(w io.Writer, data any, compact bool) error {
	encoder := json.NewEncoder(w)
	if !compact {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(data)
}

func init() {
	if err := Register(NewJSONFormatter()); err != nil {
		fmt.Printf("failed to register json formatter: %v\n", err)
	}
}
