// Package schema provides the schema tree that values are bound against.
//
// Schemas are parsed from Avro JSON (Parse), from YAML documents of the same
// shape (ParseYAML), built with constructors, or derived from WebAssembly
// Interface Types (FromWIT). A Schema is immutable once built and may be
// shared between goroutines.
//
//	s := schema.MustParse(`{"type":"record","name":"User","fields":[
//		{"name":"id","type":"long"},
//		{"name":"email","type":["null","string"]}
//	]}`)
//	f, _ := s.Field("email")
//	f.Type.NullIndex() // 0
package schema
