package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// File is one catalog document.
type File struct {
	// Package qualifies the types declared in this file unless a type
	// declares its own package.
	Package string   `yaml:"package"`
	APIs    []APIDef `yaml:"apis"`
	Types   TypeDefs `yaml:"types"`

	// Path is the file the document was read from, if any.
	Path string `yaml:"-"`
}

// APIDef declares an API namespace.
type APIDef struct {
	Name         string           `yaml:"name"`
	Version      string           `yaml:"version"`
	Root         string           `yaml:"root"`
	Description  string           `yaml:"description"`
	Transformers []TransformerDef `yaml:"transformers"`
	Roots        []string         `yaml:"roots"`
}

// TransformerDef declares a transformer. Exactly one of Source and When is
// set.
type TransformerDef struct {
	Source string `yaml:"source"`
	When   string `yaml:"when"`
	Target string `yaml:"target"`
}

// Wrapper kinds accepted in TypeDef.Wrapper.
const (
	WrapperCollection = "collection"
	WrapperPaged      = "paged"
)

// TypeDef declares an object, enum or named map type.
type TypeDef struct {
	Name        string         `yaml:"-"`
	Package     string         `yaml:"package"`
	Description string         `yaml:"description"`
	Params      []string       `yaml:"params"`
	Enum        []EnumValueDef `yaml:"enum"`
	Map         string         `yaml:"map"`
	Wrapper     string         `yaml:"wrapper"`
	Properties  Properties     `yaml:"properties"`
}

// IsEnum reports whether the type declares enum constants.
func (t TypeDef) IsEnum() bool { return len(t.Enum) > 0 }

// TypeDefs keeps type declarations in document order.
type TypeDefs []TypeDef

// UnmarshalYAML decodes a mapping of type name to declaration.
func (ts *TypeDefs) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: types must be a mapping", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		var td TypeDef
		if err := node.Content[i+1].Decode(&td); err != nil {
			return fmt.Errorf("type %q: %w", node.Content[i].Value, err)
		}
		td.Name = node.Content[i].Value
		*ts = append(*ts, td)
	}
	return nil
}

// EnumValueDef is one enum constant. It is written either as a bare name
// or as a mapping with name, wire and description.
type EnumValueDef struct {
	Name        string `yaml:"name"`
	Wire        string `yaml:"wire"`
	Description string `yaml:"description"`
}

// UnmarshalYAML accepts both the scalar and the mapping form.
func (e *EnumValueDef) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		e.Name = node.Value
		return nil
	}
	type plain EnumValueDef
	return node.Decode((*plain)(e))
}

// PropertyDef declares one property.
type PropertyDef struct {
	// Name is the wire name.
	Name        string
	Type        string
	Description string
	Required    *bool
	Nullable    bool
	NonNull     bool
	Ignored     bool
}

type propertyFields struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
	Required    *bool  `yaml:"required"`
	Nullable    bool   `yaml:"nullable"`
	NonNull     bool   `yaml:"nonnull"`
	Ignored     bool   `yaml:"ignored"`
}

// Properties keeps property declarations in document order.
type Properties []PropertyDef

// UnmarshalYAML decodes a mapping of property name to either a type
// expression or a property mapping.
func (ps *Properties) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: properties must be a mapping", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		p := PropertyDef{Name: key.Value}

		switch value.Kind {
		case yaml.ScalarNode:
			p.Type = value.Value
		case yaml.MappingNode:
			var f propertyFields
			if err := value.Decode(&f); err != nil {
				return fmt.Errorf("property %q: %w", key.Value, err)
			}
			if f.Name != "" {
				p.Name = f.Name
			}
			p.Type = f.Type
			p.Description = f.Description
			p.Required = f.Required
			p.Nullable = f.Nullable
			p.NonNull = f.NonNull
			p.Ignored = f.Ignored
		default:
			return fmt.Errorf("line %d: property %q must be a type or a mapping", value.Line, key.Value)
		}
		*ps = append(*ps, p)
	}
	return nil
}

// ParseFile parses a catalog document from a YAML file.
func ParseFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read file %s: %w", path, err)
	}

	f, err := Parse(data)
	if err != nil {
		return File{}, fmt.Errorf("%s: %w", path, err)
	}
	f.Path = path
	return f, nil
}

// Parse parses a catalog document from YAML bytes.
func Parse(data []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parse yaml: %w", err)
	}

	if err := Validate(f); err != nil {
		return File{}, err
	}

	return f, nil
}

// ParseDir parses all catalog documents from a directory, including
// subdirectories.
func ParseDir(dir string) ([]File, error) {
	var files []File

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		if entry.IsDir() {
			sub, err := ParseDir(path)
			if err != nil {
				return nil, err
			}
			files = append(files, sub...)
			continue
		}

		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		f, err := ParseFile(path)
		if err != nil {
			return nil, err
		}

		files = append(files, f)
	}

	return files, nil
}

// Validate checks a single document in isolation. References between
// documents are checked when the catalog is assembled.
func Validate(f File) error {
	var errs []string

	for i, api := range f.APIs {
		label := fmt.Sprintf("api %q", api.Name)
		if api.Name == "" {
			label = fmt.Sprintf("api #%d", i+1)
			errs = append(errs, label+": name is required")
		}
		if api.Version == "" {
			errs = append(errs, label+": version is required")
		}
		for _, root := range api.Roots {
			if _, err := ParseExpr(root); err != nil {
				errs = append(errs, fmt.Sprintf("%s: root: %v", label, err))
			}
		}
		for j, tr := range api.Transformers {
			if msg := validateTransformer(tr); msg != "" {
				errs = append(errs, fmt.Sprintf("%s: transformer #%d: %s", label, j+1, msg))
			}
		}
	}

	seen := make(map[string]bool, len(f.Types))
	for _, td := range f.Types {
		if seen[td.Name] {
			errs = append(errs, fmt.Sprintf("type %q declared twice", td.Name))
		}
		seen[td.Name] = true
		errs = append(errs, validateType(td)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

func validateTransformer(tr TransformerDef) string {
	if tr.Target == "" {
		return "target is required"
	}
	if (tr.Source == "") == (tr.When == "") {
		return "exactly one of source or when is required"
	}
	if _, err := ParseExpr(tr.Target); err != nil {
		return err.Error()
	}
	if tr.Source != "" {
		if _, err := ParseExpr(tr.Source); err != nil {
			return err.Error()
		}
	}
	return ""
}

func validateType(td TypeDef) []string {
	var errs []string
	label := fmt.Sprintf("type %q", td.Name)

	if !isValidIdentifier(td.Name) {
		errs = append(errs, fmt.Sprintf("type name %q is not a valid identifier", td.Name))
	}
	if _, builtin := builtins[td.Name]; builtin {
		errs = append(errs, label+": name is reserved for a built-in type")
	}

	shapes := 0
	if td.IsEnum() {
		shapes++
	}
	if td.Map != "" {
		shapes++
	}
	if len(td.Properties) > 0 || td.Wrapper != "" {
		shapes++
	}
	if shapes > 1 {
		errs = append(errs, label+": enum, map and properties/wrapper are mutually exclusive")
	}

	switch td.Wrapper {
	case "", WrapperCollection, WrapperPaged:
	default:
		errs = append(errs, fmt.Sprintf("%s: unknown wrapper %q", label, td.Wrapper))
	}
	if td.Wrapper != "" && len(td.Params) != 1 {
		errs = append(errs, label+": collection wrappers take exactly one type parameter")
	}

	for _, p := range td.Params {
		if !isValidIdentifier(p) {
			errs = append(errs, fmt.Sprintf("%s: type parameter %q is not a valid identifier", label, p))
		}
	}

	wire := make(map[string]bool, len(td.Enum))
	for _, c := range td.Enum {
		if !isValidIdentifier(c.Name) {
			errs = append(errs, fmt.Sprintf("%s: enum constant %q is not a valid identifier", label, c.Name))
		}
		name := c.Name
		if c.Wire != "" {
			name = c.Wire
		}
		if wire[name] {
			errs = append(errs, fmt.Sprintf("%s: enum wire name %q is not unique", label, name))
		}
		wire[name] = true
	}

	if td.Map != "" {
		if e, err := ParseExpr(td.Map); err != nil {
			errs = append(errs, fmt.Sprintf("%s: map: %v", label, err))
		} else if e.Name != "Map" || e.Dims != 0 {
			errs = append(errs, fmt.Sprintf("%s: map must be a Map<K, V> expression", label))
		}
	}

	names := make(map[string]bool, len(td.Properties))
	for _, p := range td.Properties {
		if names[p.Name] {
			errs = append(errs, fmt.Sprintf("%s: property %q declared twice", label, p.Name))
		}
		names[p.Name] = true
		if p.Type == "" {
			errs = append(errs, fmt.Sprintf("%s: property %q: type is required", label, p.Name))
			continue
		}
		if _, err := ParseExpr(p.Type); err != nil {
			errs = append(errs, fmt.Sprintf("%s: property %q: %v", label, p.Name, err))
		}
	}

	return errs
}
