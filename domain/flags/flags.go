// Package flags provides the policy switches that steer schema derivation.
package flags

import (
	"os"
	"strings"
)

// Flags is the set of derivation policy switches (immutable value type).
type Flags struct {
	// ForceJSONMapSchema renders every map as the opaque JsonMap schema.
	ForceJSONMapSchema bool

	// IgnoreUnsupportedKeyTypes falls back to JsonMap for maps whose key
	// cannot be serialized as a string instead of failing.
	IgnoreUnsupportedKeyTypes bool

	// SupportArrayValues analyses array-valued maps structurally.
	SupportArrayValues bool

	// UseDeclaredEnumNaming takes enum wire names from declared overrides.
	UseDeclaredEnumNaming bool
}

// Defaults returns the documented default flags.
func Defaults() Flags {
	return Flags{UseDeclaredEnumNaming: true}
}

// Source supplies the flags in effect for one top-level derivation call.
type Source func() Flags

// Static returns a Source that always yields f.
func Static(f Flags) Source {
	return func() Flags { return f }
}

// Environment variable names, one per flag.
const (
	EnvForceJSONMapSchema        = "SCHEMAGATE_MAP_SCHEMA_FORCE_JSON_MAP_SCHEMA"
	EnvIgnoreUnsupportedKeyTypes = "SCHEMAGATE_MAP_SCHEMA_IGNORE_UNSUPPORTED_KEY_TYPES"
	EnvSupportArrayValues        = "SCHEMAGATE_MAP_SCHEMA_SUPPORT_ARRAYS_VALUES"
	EnvUseDeclaredEnumNaming     = "SCHEMAGATE_JSON_USE_DECLARED_ENUM_NAMING"
)

// FromEnv applies environment overrides on top of base. Unset variables
// leave the base value untouched.
func FromEnv(base Flags) Flags {
	apply := func(name string, dst *bool) {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			*dst = parseBool(v)
		}
	}
	apply(EnvForceJSONMapSchema, &base.ForceJSONMapSchema)
	apply(EnvIgnoreUnsupportedKeyTypes, &base.IgnoreUnsupportedKeyTypes)
	apply(EnvSupportArrayValues, &base.SupportArrayValues)
	apply(EnvUseDeclaredEnumNaming, &base.UseDeclaredEnumNaming)
	return base
}

func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}
