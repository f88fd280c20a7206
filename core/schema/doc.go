/*
Package schema defines the immutable output model of schema derivation.

A Schema is the canonical wire description of one type within one API
namespace. It has exactly one shape:

  - object: ordered Fields (possibly none)
  - enum:   parallel EnumValues / EnumDescriptions, type "string"
  - map:    a single MapValue field describing every value of the map

Fields describe properties, array items and map values:

	name      string   wire name ("unused for array items" for array items)
	type      boolean | int32 | int64 | float | double | string | enum | object | array
	required  tri-state, reads as false when unspecified
	reference present for enum and object fields
	item      present for array fields

References are deferred pointers into a repository. They compare by the
referenced canonical name and namespace, so two references built
independently for the same logical type are equal:

	ref := schema.NewReference(repo, api, key, "Parameterized_Integer")
	s, ok := ref.Resolve()

Two schemas are reserved and shared verbatim by every namespace: Any
("_any") for unconstrained types and JSONMap ("JsonMap") for maps whose
structure is not analysed.
*/
package schema
