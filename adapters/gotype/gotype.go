// Package gotype describes Go types for the schema repository.
//
// Structs become object descriptors whose properties are the exported
// fields, named by their json tag. A schema tag refines a field:
//
//	ID    string  `json:"id" schema:"required"`
//	Note  *string `json:"note" schema:"description=Free text"`
//	Debug string  `schema:"-"`
//
// Recognized schema tag options are required, optional, nullable, nonnull,
// description=<text> and "-". Pointer fields are nullable unless the tag
// says otherwise. Anonymous structs are named Anonymous followed by eight
// hex digits derived from their field list. Types implementing typedesc.Enumerated become enums and
// Page[T] is the paged collection wrapper.
package gotype

import (
	"encoding/hex"
	"reflect"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/artpar/schemagate/domain/typedesc"
)

// Page is the paged collection wrapper. It is described as
// CollectionResponse<T>.
type Page[T any] struct {
	Items         []T    `json:"items"`
	NextPageToken string `json:"nextPageToken,omitempty"`
}

var (
	enumeratedType = reflect.TypeOf((*typedesc.Enumerated)(nil)).Elem()
	timeType       = reflect.TypeOf(time.Time{})
	durationType   = reflect.TypeOf(time.Duration(0))
	pagePkgPath    = reflect.TypeOf(Page[int]{}).PkgPath()
)

// Describer turns reflect types into descriptors. Descriptors are memoized
// per reflect.Type, so describing a type twice yields the same descriptor
// and recursive structs terminate.
type Describer struct {
	cache sync.Map // reflect.Type -> typedesc.Type
}

// New creates a Describer.
func New() *Describer {
	return &Describer{}
}

var defaultDescriber = New()

// Of describes T using the shared Describer.
func Of[T any]() typedesc.Type {
	return defaultDescriber.Describe(reflect.TypeOf((*T)(nil)).Elem())
}

// DescribeValue describes the dynamic type of v.
func (d *Describer) DescribeValue(v any) typedesc.Type {
	if v == nil {
		return typedesc.Any
	}
	return d.Describe(reflect.TypeOf(v))
}

// Describe returns the descriptor of t.
func (d *Describer) Describe(t reflect.Type) typedesc.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if cached, ok := d.cache.Load(t); ok {
		return cached.(typedesc.Type)
	}

	desc := d.describe(t)
	actual, _ := d.cache.LoadOrStore(t, desc)
	return actual.(typedesc.Type)
}

func (d *Describer) describe(t reflect.Type) typedesc.Type {
	if enum, ok := enumConstants(t); ok {
		return typedesc.NewEnum(t.PkgPath(), t.Name(), enum...)
	}

	switch t {
	case timeType:
		return typedesc.String
	case durationType:
		return typedesc.Long
	}

	switch t.Kind() {
	case reflect.String:
		return typedesc.String
	case reflect.Bool:
		return typedesc.Boolean
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Uint8, reflect.Uint16:
		return typedesc.Integer
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint32, reflect.Uint64:
		return typedesc.Long
	case reflect.Float32:
		return typedesc.Float
	case reflect.Float64:
		return typedesc.Double
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			// Byte slices travel as base64 strings.
			return typedesc.String
		}
		return typedesc.ArrayOf(d.Describe(t.Elem()))
	case reflect.Map:
		key, value := d.Describe(t.Key()), d.Describe(t.Elem())
		if t.Name() != "" {
			return typedesc.NewMap(t.PkgPath(), t.Name(), key, value)
		}
		return typedesc.MapOf(key, value)
	case reflect.Struct:
		return d.describeStruct(t)
	default:
		return typedesc.Any
	}
}

func (d *Describer) describeStruct(t reflect.Type) typedesc.Type {
	raw, argNames := splitGenericName(t.Name())
	args := d.typeArgs(t, argNames)

	if raw == "Page" && t.PkgPath() == pagePkgPath && len(args) == 1 {
		return typedesc.CollectionResponse(args[0])
	}

	name := raw
	if name == "" {
		name = anonymousName(t)
	}
	desc := typedesc.NewObject(t.PkgPath(), name, args...)
	desc.SetResolver(func() []typedesc.Property {
		return d.properties(t)
	})
	return desc
}

// anonymousName names an unnamed struct after a digest of its full type
// string, so structurally different anonymous structs never share a schema
// and identical ones always do.
func anonymousName(t reflect.Type) string {
	sum := blake2b.Sum256([]byte(t.String()))
	return "Anonymous" + hex.EncodeToString(sum[:4])
}

func (d *Describer) properties(t reflect.Type) []typedesc.Property {
	var props []typedesc.Property
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}
		jsonName := strings.Split(jsonTag, ",")[0]

		// Embedded structs without a json name are flattened.
		if field.Anonymous && jsonName == "" {
			ft := field.Type
			for ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				props = append(props, d.properties(ft)...)
				continue
			}
		}

		if !field.IsExported() {
			continue
		}

		name := field.Name
		if jsonName != "" {
			name = jsonName
		}

		p := typedesc.Property{
			Name:     name,
			Type:     d.Describe(field.Type),
			Nullable: field.Type.Kind() == reflect.Pointer,
		}
		parseSchemaTag(field.Tag.Get("schema"), &p)
		props = append(props, p)
	}
	return props
}

func parseSchemaTag(tag string, p *typedesc.Property) {
	if tag == "" {
		return
	}
	if tag == "-" {
		p.Ignored = true
		return
	}

	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		switch {
		case part == "required":
			p.Required = typedesc.True
		case part == "optional":
			p.Required = typedesc.False
		case part == "nullable":
			p.Nullable = true
		case part == "nonnull":
			p.NonNull = true
			p.Nullable = false
		case strings.HasPrefix(part, "description="):
			p.Description = strings.TrimPrefix(part, "description=")
		}
	}
}

func enumConstants(t reflect.Type) ([]typedesc.EnumConstant, bool) {
	switch {
	case t.Implements(enumeratedType):
		return reflect.Zero(t).Interface().(typedesc.Enumerated).EnumConstants(), true
	case reflect.PointerTo(t).Implements(enumeratedType):
		return reflect.New(t).Interface().(typedesc.Enumerated).EnumConstants(), true
	}
	return nil, false
}

// splitGenericName splits "Box[pkg.Item,int]" into "Box" and its argument
// names.
func splitGenericName(name string) (string, []string) {
	open := strings.IndexByte(name, '[')
	if open < 0 || !strings.HasSuffix(name, "]") {
		return name, nil
	}

	var args []string
	depth, start := 0, open+1
	inner := name[:len(name)-1]
	for i := open + 1; i < len(inner); i++ {
		switch inner[i] {
		case '[':
			depth++
		case ']':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, inner[start:i])
				start = i + 1
			}
		}
	}
	args = append(args, inner[start:])
	return name[:open], args
}

// typeArgs recovers the descriptors of a generic instantiation's type
// arguments. reflect only exposes their names, so each name is matched
// against the types reachable from the struct's fields. Arguments that no
// field uses are described as plain objects of that name.
func (d *Describer) typeArgs(t reflect.Type, names []string) []typedesc.Type {
	if len(names) == 0 {
		return nil
	}

	candidates := map[string]reflect.Type{}
	visited := map[reflect.Type]bool{}
	var collect func(reflect.Type)
	collect = func(ft reflect.Type) {
		if visited[ft] {
			return
		}
		visited[ft] = true
		candidates[qualifiedName(ft)] = ft
		switch ft.Kind() {
		case reflect.Pointer, reflect.Slice, reflect.Array:
			collect(ft.Elem())
		case reflect.Map:
			collect(ft.Key())
			collect(ft.Elem())
		}
	}
	for i := 0; i < t.NumField(); i++ {
		collect(t.Field(i).Type)
	}

	args := make([]typedesc.Type, len(names))
	for i, n := range names {
		if ft, ok := candidates[n]; ok {
			args[i] = d.Describe(ft)
			continue
		}
		pkg, simple := "", n
		if dot := strings.LastIndexByte(n, '.'); dot >= 0 && !strings.Contains(n[dot:], "]") {
			pkg, simple = n[:dot], n[dot+1:]
		}
		args[i] = typedesc.NewObject(pkg, simple)
	}
	return args
}

// qualifiedName renders t the way reflect spells it inside the brackets of
// an instantiated generic type name.
func qualifiedName(t reflect.Type) string {
	if t.Name() != "" && t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}
