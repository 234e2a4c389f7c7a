// Package recbind binds Go struct types to self-describing binary record
// schemas so that values can be encoded to and decoded from the compact Avro
// binary wire format while tolerating schema evolution.
//
// # Architecture Overview
//
// The module is organized into several packages with distinct responsibilities:
//
//	recbind/             Root package with the Decoder and Encoder interfaces
//	├── bind/            Field binder, generic and specialized executors,
//	│                    polymorphic (closed variant) encoding
//	├── binary/          Avro binary wire Decoder/Encoder
//	├── schema/          Immutable schema tree, JSON/YAML parsing, WIT import
//	├── datum/           Schema-driven generic encoder for any Go value
//	├── errors/          Structured error types for debugging
//	└── cmd/recbind/     Command line inspector
//
// # Quick Start
//
//	type User struct {
//	    Name string `avro:"name"`
//	    Age  int32  `avro:"age"`
//	}
//
//	c := bind.NewCompiler()
//	s, _ := c.SchemaFor(reflect.TypeOf(User{}))
//
//	data, err := bind.MarshalWith(c, s, User{Name: "ada", Age: 36})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	u, err := bind.UnmarshalWith[User](c, s, data)
//
// # Binding Modes
//
// Every (Go type, schema) pair is bound once into a list of field bindings.
// The bindings are executed either by the generic executor, which
// interprets them per call through reflection, or by the specialized
// generator, which resolves every field into a fixed chain of closures over
// unsafe field offsets. Both produce identical bytes and values.
//
// The process-wide default is the generic executor; set
// RECBIND_GENERATE_BINDING=true or call bind.SetDefaultMode to switch.
//
// # Schema Evolution
//
//   - Fields present in the struct but not in the schema decode to their zero value
//   - Fields present in the schema but not in the struct fail with a missing_field error
//   - Numeric fields may widen: int to long/float/double, long to float/double,
//     float to double
package recbind
