package repository

import (
	"fmt"
	"time"

	"github.com/artpar/schemagate/core/convention"
	"github.com/artpar/schemagate/core/schema"
	"github.com/artpar/schemagate/domain/flags"
	"github.com/artpar/schemagate/domain/typedesc"
)

// Names of the fields synthesized for collection wrappers.
const (
	itemsField         = "items"
	nextPageTokenField = "nextPageToken"
)

// target identifies a derived schema by canonical key and name.
type target struct {
	key    string
	name   string
	schema *schema.Schema
}

var (
	anyTarget     = target{key: anyKey, name: schema.AnyName, schema: schema.Any}
	jsonMapTarget = target{key: jsonMapKey, name: schema.JSONMapName, schema: schema.JSONMap}
)

// deriver carries the state of one top-level derivation. The namespace lock
// is held by the caller for the deriver's whole lifetime.
type deriver struct {
	repo  *Repository
	ns    *namespace
	flags flags.Flags
	namer convention.Namer
}

func (r *Repository) newDeriver(ns *namespace, f flags.Flags) *deriver {
	d := &deriver{repo: r, ns: ns, flags: f}
	d.namer = convention.Namer{Normalize: d.substitute}
	return d
}

func (d *deriver) root(t typedesc.Type) (*schema.Schema, error) {
	rt, err := d.resolveRoot(t)
	if err != nil {
		return nil, err
	}
	switch rt.Kind() {
	case typedesc.KindScalar:
		return nil, unsupported(rt, "primitive types cannot be standalone schemas")
	case typedesc.KindOptional:
		return nil, unsupported(t, "optional types cannot be nested")
	}
	tg, err := d.derive(rt)
	if err != nil {
		return nil, err
	}
	return tg.schema, nil
}

// resolveRoot strips a single optional wrapper and applies transformers.
// Only scalars, enums and objects may be wrapped.
func (d *deriver) resolveRoot(t typedesc.Type) (typedesc.Type, error) {
	for i := 0; i < 2; i++ {
		if t.Kind() == typedesc.KindOptional {
			inner := elem(t)
			switch inner.Kind() {
			case typedesc.KindScalar, typedesc.KindEnum, typedesc.KindObject:
				t = inner
			default:
				return nil, unsupported(t, fmt.Sprintf("optional cannot wrap %s types", inner.Kind()))
			}
		}
		t = d.substitute(t)
		if t.Kind() != typedesc.KindOptional {
			break
		}
	}
	return t, nil
}

// resolveProperty is the lenient form of resolveRoot used for property,
// item and map value types: every optional layer is stripped.
func (d *deriver) resolveProperty(t typedesc.Type) typedesc.Type {
	for i := 0; i < 4; i++ {
		for t.Kind() == typedesc.KindOptional {
			t = elem(t)
		}
		t = d.substitute(t)
		if t.Kind() != typedesc.KindOptional {
			break
		}
	}
	return t
}

// substitute follows the transformer chain of t until no rule applies.
// When the chain loops, every member of the loop resolves to the member
// with the smallest canonical key, so substitute(substitute(t)) equals
// substitute(t).
func (d *deriver) substitute(t typedesc.Type) typedesc.Type {
	tr := d.ns.transformers
	if tr == nil {
		return t
	}
	var chain []typedesc.Type
	seen := map[string]int{}
	for {
		seen[typedesc.Key(t)] = len(chain)
		chain = append(chain, t)
		next, ok := tr.TransformerFor(t)
		if !ok || next == nil {
			return t
		}
		if i, loop := seen[typedesc.Key(next)]; loop {
			return loopRepresentative(chain[i:])
		}
		t = next
	}
}

func loopRepresentative(loop []typedesc.Type) typedesc.Type {
	best := loop[0]
	for _, t := range loop[1:] {
		if typedesc.Key(t) < typedesc.Key(best) {
			best = t
		}
	}
	return best
}

// derive returns the schema for an already resolved non-scalar type.
func (d *deriver) derive(t typedesc.Type) (target, error) {
	switch t.Kind() {
	case typedesc.KindAny, typedesc.KindTypeVar, typedesc.KindOptional:
		return anyTarget, nil
	case typedesc.KindEnum:
		return d.entry(t, "enum", schema.TypeString, d.enumSchema(t))
	case typedesc.KindMap:
		return d.mapSchema(t)
	case typedesc.KindArray:
		return d.entry(t, "collection", schema.TypeObject, d.collectionSchema(elem(t), false))
	case typedesc.KindObject:
		switch t.Wrapper() {
		case typedesc.WrapperCollection:
			return d.entry(t, "collection", schema.TypeObject, d.collectionSchema(elem(t), false))
		case typedesc.WrapperPaged:
			return d.entry(t, "collection", schema.TypeObject, d.collectionSchema(elem(t), true))
		}
		return d.entry(t, "object", schema.TypeObject, d.objectSchema(t))
	default:
		return target{}, unsupported(t, "primitive types cannot be standalone schemas")
	}
}

// entry returns the cached schema of t or allocates a slot for it and
// fills the slot with build.
func (d *deriver) entry(t typedesc.Type, shape, typ string, build func(name string) (*schema.Schema, error)) (target, error) {
	key := typedesc.Key(t)
	api := d.ns.api.String()
	if i, ok := d.ns.index[key]; ok {
		d.repo.observer.CacheLookup(api, true)
		s := d.ns.entries[i].schema
		return target{key: key, name: s.Name(), schema: s}, nil
	}
	d.repo.observer.CacheLookup(api, false)

	start := time.Now()
	name := d.namer.ResolvedName(t)
	if owner, taken := d.ns.owners[name]; taken {
		return target{}, unsupported(t, fmt.Sprintf("schema name %s is already used by %s", name, owner))
	}
	slot := d.ns.allocate(key, schema.NewBuilder(name, typ).Build())

	s, err := build(name)
	if err != nil {
		return target{}, err
	}
	d.ns.entries[slot].schema = s

	d.repo.observer.SchemaDerived(api, shape, time.Since(start))
	d.repo.logger.Debug().
		Str("api", api).
		Str("schema", name).
		Str("key", key).
		Str("shape", shape).
		Msg("schema derived")
	return target{key: key, name: name, schema: s}, nil
}

func (d *deriver) enumSchema(t typedesc.Type) func(string) (*schema.Schema, error) {
	return func(name string) (*schema.Schema, error) {
		b := schema.NewBuilder(name, schema.TypeString).Description(t.Description())
		for _, c := range t.Constants() {
			b.AddEnumValue(convention.EnumWireName(c, d.flags.UseDeclaredEnumNaming), c.Description)
		}
		return b.Build(), nil
	}
}

func (d *deriver) collectionSchema(elemType typedesc.Type, paged bool) func(string) (*schema.Schema, error) {
	return func(name string) (*schema.Schema, error) {
		item, err := d.field(schema.ArrayItemName, elemType)
		if err != nil {
			return nil, err
		}
		b := schema.NewBuilder(name, schema.TypeObject).
			AddField(schema.NewArrayField(itemsField, item))
		if paged {
			b.AddField(schema.NewField(nextPageTokenField, schema.FieldTypeString))
		}
		return b.Build(), nil
	}
}

func (d *deriver) objectSchema(t typedesc.Type) func(string) (*schema.Schema, error) {
	return func(name string) (*schema.Schema, error) {
		b := schema.NewBuilder(name, schema.TypeObject).Description(t.Description())
		for _, p := range t.Properties() {
			if p.Ignored {
				continue
			}
			f, err := d.field(p.Name, p.Type)
			if err != nil {
				return nil, fmt.Errorf("property %s.%s: %w", t.Name(), p.Name, err)
			}
			if required, ok := convention.Required(p); ok {
				f = f.WithRequired(required)
			}
			if p.Description != "" {
				f = f.WithDescription(p.Description)
			}
			b.AddField(f)
		}
		return b.Build(), nil
	}
}

// mapSchema classifies a map type. Fallbacks to the opaque map schema are
// checked before the key type is rejected.
func (d *deriver) mapSchema(t typedesc.Type) (target, error) {
	if d.flags.ForceJSONMapSchema {
		return d.jsonMap(t, "forced")
	}
	args := t.Args()
	if len(args) != 2 {
		return d.jsonMap(t, "raw map")
	}
	key := d.resolveProperty(args[0])
	value := d.resolveProperty(args[1])

	keyOK := stringCompatible(key)
	if !keyOK && d.flags.IgnoreUnsupportedKeyTypes {
		return d.jsonMap(t, "unsupported key type")
	}
	if reason := d.unstructured(key, value); reason != "" {
		return d.jsonMap(t, reason)
	}
	if !keyOK {
		return target{}, unsupported(t, fmt.Sprintf("map key type %s is not serializable to a string", typedesc.Format(key)))
	}

	return d.entry(t, "map", schema.TypeObject, func(name string) (*schema.Schema, error) {
		f, err := d.field(schema.MapValueName, value)
		if err != nil {
			return nil, err
		}
		b := schema.NewBuilder(name, schema.TypeObject).MapValue(f)
		if ref := f.Reference(); ref != nil {
			b.Description(convention.MapDescription(ref.Name()))
		}
		return b.Build(), nil
	})
}

// unstructured returns why a map cannot be described field by field, or
// "" when it can.
func (d *deriver) unstructured(key, value typedesc.Type) string {
	switch {
	case key.Kind() == typedesc.KindTypeVar || value.Kind() == typedesc.KindTypeVar:
		return "unbound type variable"
	case value.Kind() == typedesc.KindArray && !d.flags.SupportArrayValues:
		return "array values not supported"
	}
	return ""
}

func (d *deriver) jsonMap(t typedesc.Type, reason string) (target, error) {
	d.repo.observer.MapFallback(d.ns.api.String(), reason)
	ev := d.repo.logger.Warn()
	if reason == "forced" {
		ev = d.repo.logger.Debug()
	}
	ev.Str("api", d.ns.api.String()).
		Str("type", typedesc.Format(t)).
		Str("reason", reason).
		Msg("map described as " + schema.JSONMapName)
	return jsonMapTarget, nil
}

// field derives the field description of a property, array item or map
// value of type t.
func (d *deriver) field(name string, t typedesc.Type) (schema.Field, error) {
	rt := d.resolveProperty(t)
	switch rt.Kind() {
	case typedesc.KindScalar:
		return schema.NewField(name, schema.FieldTypeOf(rt.Scalar())), nil
	case typedesc.KindArray:
		item, err := d.field(schema.ArrayItemName, elem(rt))
		if err != nil {
			return schema.Field{}, err
		}
		return schema.NewArrayField(name, item), nil
	}

	tg, err := d.derive(rt)
	if err != nil {
		return schema.Field{}, err
	}
	typ := schema.FieldTypeObject
	if rt.Kind() == typedesc.KindEnum {
		typ = schema.FieldTypeEnum
	}
	return schema.NewRefField(name, typ, d.ref(tg)), nil
}

func (d *deriver) ref(tg target) *schema.Reference {
	return schema.NewReference(d.repo, d.ns.api, tg.key, tg.name)
}

func stringCompatible(t typedesc.Type) bool {
	return t.Kind() == typedesc.KindScalar || t.Kind() == typedesc.KindEnum
}

func elem(t typedesc.Type) typedesc.Type {
	if args := t.Args(); len(args) > 0 {
		return args[0]
	}
	return typedesc.Any
}

func unsupported(t typedesc.Type, reason string) error {
	return &UnsupportedTypeError{Type: typedesc.Format(t), Reason: reason}
}
