// Package datum encodes and decodes values of any Go type against any schema
// by walking both with reflection on every call.
//
// It backs the fallback strategy of package bind for subtrees that have no
// precompiled binding, and the command line tool:
//
//	v, err := datum.Read(dec, s, reflect.TypeOf(User{}))
//	err = datum.Write(enc, s, reflect.ValueOf(user))
//
// ReadAny and WriteAny work with natural Go values (maps, slices and
// scalars) and need no Go type at all.
//
// Records decode into structs or string-keyed maps. Struct fields are matched
// to schema fields by the avro tag, then by name ignoring case, then by the
// snake_case or kebab-case form of the Go name. Schema fields with no struct
// field are skipped on read and rejected on write. Unions decode into
// pointers, interfaces or plain values, and a nil value selects the null
// branch on write.
package datum
