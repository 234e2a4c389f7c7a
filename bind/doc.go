// Package bind binds Go types to record schemas and executes the bindings.
//
// A Compiler pairs every schema field with the struct field that stores it
// and picks a strategy for it:
//
//	Direct        primitive stored in a scalar field, widening if needed
//	NestedRecord  anything else, through the schema-driven datum codec
//	Array         slice of elements, read block by block
//	Union         branch selected by index, null into nil
//	Custom        custom encoding or nested record binding
//	Default       struct field missing from the schema, left at zero
//
// Incompatible scalar types, schema fields without a struct field and
// failing custom encodings are reported when compiling, not per value.
//
// Bindings are executed by one of two equivalent engines. The generic
// executor walks them with reflection on every call. The specialized
// generator turns them once into a chain of closures over field offsets.
// The engine is chosen per Compiler through Options.Mode, defaulting to the
// process-wide DefaultMode, which honours RECBIND_GENERATE_BINDING.
//
// Polymorphic encodes an interface as one of a closed set of variants, with
// the variant's ordinal as the union branch index.
package bind
