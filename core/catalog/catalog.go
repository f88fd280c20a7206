// Package catalog loads API and type declarations from YAML documents and
// turns them into type descriptors for the schema repository.
//
// A catalog file declares API namespaces (with their transformers and root
// types) and the types those APIs use:
//
//	package: test
//	apis:
//	  - name: foo
//	    version: v1
//	    transformers:
//	      - source: Parameterized<Short>
//	        target: Parameterized<String>
//	    roots: [Parameterized<Integer>, CollectionResponse<Integer>]
//	types:
//	  TestEnum:
//	    enum: [VALUE1, {name: VALUE2, wire: value_2}]
//	  Parameterized:
//	    params: [T]
//	    properties:
//	      foo: T
//	      next: Parameterized<T>
//	      testEnum: TestEnum
//
// Type expressions name built-in types (String, Integer/int, Long/long,
// Short/short, Byte/byte, Boolean/boolean, Float/float, Double/double,
// Any/Object, Map<K, V>, List/Set/Collection<T>, Optional<T>,
// CollectionResponse<T>), declared types, type parameters and arrays (T[]).
//
// Inside YAML flow collections ({...} and [...]) a comma ends the value, so
// a multi-argument type there must be quoted:
//
//	payload: { type: "Map<String, Object>", nullable: true }
//	roots: ["Map<String, Foo>", Bar]
//
// Block style values need no quotes.
package catalog

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/artpar/schemagate/core/schema"
	"github.com/artpar/schemagate/core/transform"
	"github.com/artpar/schemagate/domain/typedesc"
)

type builtin struct {
	// arity is the number of type arguments. A negative arity -n accepts
	// either raw usage or n arguments.
	arity int
	build func(args []typedesc.Type) typedesc.Type
}

func scalar(t typedesc.Type) builtin {
	return builtin{arity: 0, build: func([]typedesc.Type) typedesc.Type { return t }}
}

func collection(args []typedesc.Type) typedesc.Type {
	if len(args) == 0 {
		return typedesc.ArrayOf(typedesc.Any)
	}
	return typedesc.ArrayOf(args[0])
}

var builtins = map[string]builtin{
	"String":  scalar(typedesc.String),
	"string":  scalar(typedesc.String),
	"Integer": scalar(typedesc.Integer),
	"int":     scalar(typedesc.Integer),
	"Long":    scalar(typedesc.Long),
	"long":    scalar(typedesc.Long),
	"Short":   scalar(typedesc.Short),
	"short":   scalar(typedesc.Short),
	"Byte":    scalar(typedesc.Byte),
	"byte":    scalar(typedesc.Byte),
	"Boolean": scalar(typedesc.Boolean),
	"boolean": scalar(typedesc.Boolean),
	"Float":   scalar(typedesc.Float),
	"float":   scalar(typedesc.Float),
	"Double":  scalar(typedesc.Double),
	"double":  scalar(typedesc.Double),
	"Any":     scalar(typedesc.Any),
	"Object":  scalar(typedesc.Any),

	"Map": {arity: -2, build: func(args []typedesc.Type) typedesc.Type {
		if len(args) == 0 {
			return typedesc.RawMap()
		}
		return typedesc.MapOf(args[0], args[1])
	}},
	"List":       {arity: -1, build: collection},
	"Set":        {arity: -1, build: collection},
	"Collection": {arity: -1, build: collection},
	"Optional": {arity: 1, build: func(args []typedesc.Type) typedesc.Type {
		return typedesc.OptionalOf(args[0])
	}},
	"CollectionResponse": {arity: -1, build: func(args []typedesc.Type) typedesc.Type {
		if len(args) == 0 {
			return typedesc.CollectionResponse(typedesc.Any)
		}
		return typedesc.CollectionResponse(args[0])
	}},
}

// accepts reports whether b takes n type arguments.
func (b builtin) accepts(n int) bool {
	if b.arity >= 0 {
		return n == b.arity
	}
	return n == 0 || n == -b.arity
}

// API is a resolved API declaration.
type API struct {
	Key          schema.APIKey
	Description  string
	Transformers *transform.Registry
	Roots        []typedesc.Type
}

// Catalog is an assembled set of catalog documents.
type Catalog struct {
	apis  []API
	types map[string]typeEntry

	mu   sync.Mutex
	memo map[string]typedesc.Type
}

type typeEntry struct {
	def TypeDef
	pkg string
}

// Load parses every document under dir and assembles them.
func Load(dir string) (*Catalog, error) {
	files, err := ParseDir(dir)
	if err != nil {
		return nil, err
	}
	return New(files...)
}

// New assembles documents into a catalog, checking every reference between
// declarations, and resolves the declared APIs.
func New(files ...File) (*Catalog, error) {
	c := &Catalog{
		types: make(map[string]typeEntry),
		memo:  make(map[string]typedesc.Type),
	}

	var errs []string
	for _, f := range files {
		for _, td := range f.Types {
			if _, exists := c.types[td.Name]; exists {
				errs = append(errs, fmt.Sprintf("type %q declared more than once", td.Name))
				continue
			}
			pkg := td.Package
			if pkg == "" {
				pkg = f.Package
			}
			c.types[td.Name] = typeEntry{def: td, pkg: pkg}
		}
	}

	for _, name := range c.typeNames() {
		td := c.types[name].def
		params := paramSet(td.Params)
		for _, p := range td.Properties {
			if err := c.check(p.Type, params); err != nil {
				errs = append(errs, fmt.Sprintf("type %q: property %q: %v", name, p.Name, err))
			}
		}
		if td.Map != "" {
			if err := c.check(td.Map, params); err != nil {
				errs = append(errs, fmt.Sprintf("type %q: map: %v", name, err))
			}
		}
	}

	seen := make(map[schema.APIKey]bool)
	for _, f := range files {
		for _, def := range f.APIs {
			api, apiErrs := c.resolveAPI(def)
			if seen[api.Key.WithoutRoot()] {
				apiErrs = append(apiErrs, fmt.Sprintf("api %s declared more than once", api.Key))
			}
			seen[api.Key.WithoutRoot()] = true
			if len(apiErrs) > 0 {
				errs = append(errs, apiErrs...)
				continue
			}
			c.apis = append(c.apis, api)
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return c, nil
}

func (c *Catalog) resolveAPI(def APIDef) (API, []string) {
	api := API{
		Key:          schema.APIKey{Name: def.Name, Version: def.Version, Root: def.Root},
		Description:  def.Description,
		Transformers: transform.NewRegistry(),
	}
	var errs []string
	label := fmt.Sprintf("api %s", api.Key)

	for _, tr := range def.Transformers {
		target, err := c.Resolve(tr.Target)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: transformer target: %v", label, err))
			continue
		}
		rule := transform.Rule{When: tr.When, Target: target}
		if tr.Source != "" {
			if rule.Source, err = c.Resolve(tr.Source); err != nil {
				errs = append(errs, fmt.Sprintf("%s: transformer source: %v", label, err))
				continue
			}
		}
		if err := api.Transformers.Add(rule); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", label, err))
		}
	}

	for _, root := range def.Roots {
		t, err := c.Resolve(root)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: root: %v", label, err))
			continue
		}
		api.Roots = append(api.Roots, t)
	}
	return api, errs
}

// APIs returns the resolved APIs in declaration order.
func (c *Catalog) APIs() []API {
	return append([]API(nil), c.apis...)
}

// API returns the API with the given name and version.
func (c *Catalog) API(name, version string) (API, bool) {
	for _, a := range c.apis {
		if a.Key.Name == name && a.Key.Version == version {
			return a, true
		}
	}
	return API{}, false
}

// Types returns the declared type names in sorted order.
func (c *Catalog) Types() []string {
	return c.typeNames()
}

// Resolve turns a type expression into a descriptor. Declared generic
// types are instantiated once per distinct argument list, so repeated
// resolution yields the same descriptor.
func (c *Catalog) Resolve(expr string) (typedesc.Type, error) {
	e, err := ParseExpr(expr)
	if err != nil {
		return nil, err
	}
	if err := c.checkExpr(e, nil); err != nil {
		return nil, err
	}
	return c.resolve(e, nil), nil
}

// check parses expr and verifies every name it uses.
func (c *Catalog) check(expr string, params map[string]bool) error {
	e, err := ParseExpr(expr)
	if err != nil {
		return err
	}
	return c.checkExpr(e, params)
}

func (c *Catalog) checkExpr(e Expr, params map[string]bool) error {
	var errs []string
	e.Walk(func(x Expr) {
		switch {
		case params[x.Name]:
			if len(x.Args) > 0 {
				errs = append(errs, fmt.Sprintf("type parameter %s takes no arguments", x.Name))
			}
		case builtins[x.Name].build != nil:
			if !builtins[x.Name].accepts(len(x.Args)) {
				errs = append(errs, fmt.Sprintf("%s: wrong number of type arguments", x))
			}
		default:
			entry, ok := c.types[x.Name]
			if !ok {
				errs = append(errs, fmt.Sprintf("unknown type %s", x.Name))
				return
			}
			if n := len(x.Args); n != 0 && n != len(entry.def.Params) {
				errs = append(errs, fmt.Sprintf("%s: %s takes %d type arguments", x, x.Name, len(entry.def.Params)))
			}
		}
	})
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// resolve builds the descriptor of a checked expression. env binds type
// parameters of the enclosing declaration.
func (c *Catalog) resolve(e Expr, env map[string]typedesc.Type) typedesc.Type {
	t := c.resolveBase(e, env)
	for i := 0; i < e.Dims; i++ {
		t = typedesc.ArrayOf(t)
	}
	return t
}

func (c *Catalog) resolveBase(e Expr, env map[string]typedesc.Type) typedesc.Type {
	if bound, ok := env[e.Name]; ok {
		return bound
	}

	args := make([]typedesc.Type, len(e.Args))
	for i, a := range e.Args {
		args[i] = c.resolve(a, env)
	}

	if b, ok := builtins[e.Name]; ok {
		return b.build(args)
	}

	entry, ok := c.types[e.Name]
	if !ok {
		// Unchecked names only reach here through a lazily resolved
		// property of a declaration that failed validation.
		return typedesc.Any
	}
	if len(args) == 0 {
		for _, p := range entry.def.Params {
			args = append(args, typedesc.TypeVar(p))
		}
	}
	return c.instantiate(entry, args)
}

// instantiate returns the memoized descriptor of a declared type bound to
// args. Object properties resolve lazily so that self-referencing
// declarations such as Parameterized<T>.next terminate.
func (c *Catalog) instantiate(entry typeEntry, args []typedesc.Type) typedesc.Type {
	td := entry.def
	key := entry.pkg + "." + td.Name
	for _, a := range args {
		key += "|" + typedesc.Key(a)
	}

	c.mu.Lock()
	if t, ok := c.memo[key]; ok {
		c.mu.Unlock()
		return t
	}
	c.mu.Unlock()

	env := make(map[string]typedesc.Type, len(td.Params))
	for i, p := range td.Params {
		if i < len(args) {
			env[p] = args[i]
		}
	}

	var t typedesc.Type
	switch {
	case td.IsEnum():
		consts := make([]typedesc.EnumConstant, len(td.Enum))
		for i, v := range td.Enum {
			consts[i] = typedesc.EnumConstant{Name: v.Name, WireName: v.Wire, Description: v.Description}
		}
		t = typedesc.NewEnum(entry.pkg, td.Name, consts...).WithDescription(td.Description)
	case td.Map != "":
		m := c.mustResolve(td.Map, env)
		if margs := m.Args(); len(margs) == 2 {
			t = typedesc.NewMap(entry.pkg, td.Name, margs[0], margs[1])
		} else {
			t = m
		}
	default:
		d := typedesc.NewObject(entry.pkg, td.Name, args...).WithDescription(td.Description)
		switch td.Wrapper {
		case WrapperCollection:
			d.WithWrapper(typedesc.WrapperCollection)
		case WrapperPaged:
			d.WithWrapper(typedesc.WrapperPaged)
		}
		props := td.Properties
		d.SetResolver(func() []typedesc.Property {
			out := make([]typedesc.Property, 0, len(props))
			for _, p := range props {
				prop := typedesc.Property{
					Name:        p.Name,
					Type:        c.mustResolve(p.Type, env),
					Description: p.Description,
					Nullable:    p.Nullable,
					NonNull:     p.NonNull,
					Ignored:     p.Ignored,
				}
				if p.Required != nil {
					prop.Required = typedesc.Bool(*p.Required)
				}
				out = append(out, prop)
			}
			return out
		})
		t = d
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.memo[key]; ok {
		return existing
	}
	c.memo[key] = t
	return t
}

func (c *Catalog) mustResolve(expr string, env map[string]typedesc.Type) typedesc.Type {
	e, err := ParseExpr(expr)
	if err != nil {
		return typedesc.Any
	}
	return c.resolve(e, env)
}

func (c *Catalog) typeNames() []string {
	names := make([]string, 0, len(c.types))
	for name := range c.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func paramSet(params []string) map[string]bool {
	set := make(map[string]bool, len(params))
	for _, p := range params {
		set[p] = true
	}
	return set
}
