package bind

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/wippyai/recbind/binary"
	"github.com/wippyai/recbind/errors"
	"github.com/wippyai/recbind/schema"
)

var modes = []Mode{ModeGeneric, ModeSpecialized}

func forEachMode(t *testing.T, fn func(t *testing.T, c *Compiler)) {
	t.Helper()
	for _, m := range modes {
		t.Run(m.String(), func(t *testing.T) {
			fn(t, NewCompilerWithOptions(Options{Mode: m}))
		})
	}
}

func encode(t *testing.T, c *Compiler, typ reflect.Type, s *schema.Schema, v any) []byte {
	t.Helper()
	codec, err := c.Compile(typ, s)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	enc := binary.NewEncoder()
	if err := codec.Write(enc, v); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	return enc.Bytes()
}

func decode(t *testing.T, c *Compiler, typ reflect.Type, s *schema.Schema, data []byte) any {
	t.Helper()
	codec, err := c.Compile(typ, s)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	v, err := codec.Read(binary.NewBytesDecoder(data))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	return v
}

func kindOf(err error) errors.Kind {
	var e *errors.Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func ptr[T any](v T) *T { return &v }

const personSchema = `{
	"type": "record", "name": "Person",
	"fields": [
		{"name": "name", "type": "string"},
		{"name": "age", "type": "int"},
		{"name": "score", "type": "double"},
		{"name": "active", "type": "boolean"},
		{"name": "avatar", "type": "bytes"},
		{"name": "tags", "type": {"type": "array", "items": "string"}},
		{"name": "counts", "type": {"type": "array", "items": {"type": "int", "go.type": "int16"}}},
		{"name": "nick", "type": ["null", "string"]},
		{"name": "home", "type": ["null", {
			"type": "record", "name": "Address",
			"fields": [
				{"name": "street", "type": "string"},
				{"name": "zip", "type": "int"}
			]
		}]},
		{"name": "work", "type": "Address"},
		{"name": "history", "type": {"type": "array", "items": "Address"}},
		{"name": "labels", "type": {"type": "map", "values": "long"}}
	]
}`

type address struct {
	Street string
	Zip    int32
}

type person struct {
	Name    string           `avro:"name"`
	Age     int32            `avro:"age"`
	Score   float64          `avro:"score"`
	Active  bool             `avro:"active"`
	Avatar  []byte           `avro:"avatar"`
	Tags    []string         `avro:"tags"`
	Counts  []int16          `avro:"counts"`
	Nick    *string          `avro:"nick"`
	Home    *address         `avro:"home"`
	Work    address          `avro:"work"`
	History []address        `avro:"history"`
	Labels  map[string]int64 `avro:"labels"`
}

var personType = reflect.TypeOf(person{})

func samplePeople() []person {
	return []person{
		{
			Name:    "Ada",
			Age:     36,
			Score:   99.5,
			Active:  true,
			Avatar:  []byte{0xde, 0xad},
			Tags:    []string{"math", "engines"},
			Counts:  []int16{-3, 0, 32767},
			Nick:    ptr("countess"),
			Home:    &address{Street: "St James's Square", Zip: 10},
			Work:    address{Street: "Analytical Row", Zip: 42},
			History: []address{{Street: "a", Zip: 1}, {Street: "b", Zip: 2}},
			Labels:  map[string]int64{"x": 1, "y": -1},
		},
		{Name: "empty"},
		{
			Name:    "unicode ✓",
			Age:     -1,
			Score:   -0.25,
			Counts:  []int16{-32768},
			History: []address{{}},
		},
	}
}

func TestRoundTrip(t *testing.T) {
	s := schema.MustParse(personSchema)
	forEachMode(t, func(t *testing.T, c *Compiler) {
		for _, want := range samplePeople() {
			data := encode(t, c, personType, s, want)
			got := decode(t, c, personType, s, data)
			if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("round trip of %q mismatch (-want +got):\n%s", want.Name, diff)
			}
		}
	})
}

func TestPathEquivalence(t *testing.T) {
	s := schema.MustParse(personSchema)
	generic := NewCompilerWithOptions(Options{Mode: ModeGeneric})
	specialized := NewCompilerWithOptions(Options{Mode: ModeSpecialized})

	for _, v := range samplePeople() {
		gb := encode(t, generic, personType, s, v)
		sb := encode(t, specialized, personType, s, v)
		if !bytes.Equal(gb, sb) {
			t.Errorf("%q: generic bytes %x, specialized bytes %x", v.Name, gb, sb)
		}

		gv := decode(t, generic, personType, s, gb)
		sv := decode(t, specialized, personType, s, gb)
		if diff := cmp.Diff(gv, sv); diff != "" {
			t.Errorf("%q: decoded values differ (-generic +specialized):\n%s", v.Name, diff)
		}
	}
}

func TestWireBytes(t *testing.T) {
	s := schema.MustParse(`{"type": "record", "name": "R", "fields": [
		{"name": "a", "type": "int"},
		{"name": "b", "type": "string"},
		{"name": "c", "type": ["null", "long"]}
	]}`)
	type r struct {
		A int32
		B string
		C *int64
	}

	tests := []struct {
		name string
		v    r
		want []byte
	}{
		{"null branch", r{A: 1, B: "hi"}, []byte{0x02, 0x04, 'h', 'i', 0x00}},
		{"long branch", r{A: -1, C: ptr(int64(64))}, []byte{0x01, 0x00, 0x02, 0x80, 0x01}},
	}

	forEachMode(t, func(t *testing.T, c *Compiler) {
		for _, tt := range tests {
			got := encode(t, c, reflect.TypeOf(r{}), s, tt.v)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("%s: bytes = %x, want %x", tt.name, got, tt.want)
			}
		}
	})
}

func TestBindings(t *testing.T) {
	s := schema.MustParse(personSchema)
	bindings, err := NewCompiler().Bind(personType, s)
	if err != nil {
		t.Fatalf("Bind failed: %v", err)
	}

	want := map[string]Strategy{
		"name":    Direct,
		"age":     Direct,
		"avatar":  Direct,
		"tags":    Array,
		"counts":  Array,
		"nick":    Union,
		"home":    Union,
		"work":    Custom,
		"history": Array,
		"labels":  NestedRecord,
	}
	if len(bindings) != len(s.Fields) {
		t.Fatalf("got %d bindings, want %d", len(bindings), len(s.Fields))
	}
	slots := make(map[int]bool)
	for i, b := range bindings {
		if b.Name != s.Fields[i].Name {
			t.Errorf("binding %d is %q, want schema order %q", i, b.Name, s.Fields[i].Name)
		}
		if strategy, ok := want[b.Name]; ok && b.Strategy != strategy {
			t.Errorf("%s: strategy = %v, want %v", b.Name, b.Strategy, strategy)
		}
		slots[b.Slot] = true
	}
	for i := range bindings {
		if !slots[i] {
			t.Errorf("slot %d not bound; slots must be a permutation", i)
		}
	}
}

func TestWideningRead(t *testing.T) {
	s := schema.MustParse(`{"type": "record", "name": "Nums", "fields": [
		{"name": "a", "type": "int"},
		{"name": "b", "type": "long"},
		{"name": "c", "type": "float"},
		{"name": "d", "type": "int"},
		{"name": "e", "type": "boolean"}
	]}`)
	type written struct {
		A int32
		B int64
		C float32
		D int32
		E bool
	}
	type widened struct {
		A int64
		B float64
		C float64
		D float32
		E int32
	}

	forEachMode(t, func(t *testing.T, c *Compiler) {
		data := encode(t, c, reflect.TypeOf(written{}), s, written{A: -7, B: 1 << 40, C: 1.5, D: 3, E: true})
		got := decode(t, c, reflect.TypeOf(widened{}), s, data)
		want := widened{A: -7, B: 1 << 40, C: 1.5, D: 3, E: 1}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("widened read mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestNarrowingRejected(t *testing.T) {
	tests := []struct {
		name   string
		schema string
		typ    reflect.Type
	}{
		{"double to int32", `"double"`, reflect.TypeOf(struct{ V int32 }{})},
		{"long to int32", `"long"`, reflect.TypeOf(struct{ V int32 }{})},
		{"float to int64", `"float"`, reflect.TypeOf(struct{ V int64 }{})},
		{"string to int32", `"string"`, reflect.TypeOf(struct{ V int32 }{})},
		{"int to bool", `"int"`, reflect.TypeOf(struct{ V bool }{})},
		{"boolean to int8", `"boolean"`, reflect.TypeOf(struct{ V int8 }{})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := schema.MustParse(`{"type": "record", "name": "R", "fields": [{"name": "v", "type": ` + tt.schema + `}]}`)
			_, err := NewCompiler().Compile(tt.typ, s)
			if !errors.Is(err, errors.ErrTypeMismatch) {
				t.Fatalf("err = %v, want type mismatch", err)
			}
			var e *errors.Error
			errors.As(err, &e)
			if e.Phase != errors.PhaseBind {
				t.Errorf("Phase = %v, want bind", e.Phase)
			}
			if diff := cmp.Diff([]string{"v"}, e.Path); diff != "" {
				t.Errorf("Path mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSchemaEvolution(t *testing.T) {
	s := schema.MustParse(`{"type": "record", "name": "R", "fields": [
		{"name": "a", "type": "int"},
		{"name": "b", "type": "string", "default": "ignored"}
	]}`)

	t.Run("added field", func(t *testing.T) {
		type abc struct {
			A int32  `avro:"a"`
			B string `avro:"b"`
			C int64  `avro:"c"`
		}
		forEachMode(t, func(t *testing.T, c *Compiler) {
			codec, err := c.Compile(reflect.TypeOf(abc{}), s)
			if err != nil {
				t.Fatalf("Compile failed: %v", err)
			}
			bindings := codec.Bindings()
			if len(bindings) != 3 {
				t.Fatalf("got %d bindings, want 3", len(bindings))
			}
			if last := bindings[2]; last.Name != "c" || last.Strategy != Default || last.Field != nil {
				t.Errorf("last binding = %+v, want Default for c", last)
			}

			data := encode(t, c, reflect.TypeOf(abc{}), s, abc{A: 1, B: "x", C: 99})
			if want := []byte{0x02, 0x02, 'x'}; !bytes.Equal(data, want) {
				t.Errorf("bytes = %x, want %x", data, want)
			}
			got := decode(t, c, reflect.TypeOf(abc{}), s, data)
			if diff := cmp.Diff(abc{A: 1, B: "x"}, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	})

	t.Run("removed field", func(t *testing.T) {
		type onlyA struct {
			A int32 `avro:"a"`
		}
		forEachMode(t, func(t *testing.T, c *Compiler) {
			_, err := c.Compile(reflect.TypeOf(onlyA{}), s)
			if !errors.Is(err, errors.ErrMissingField) {
				t.Fatalf("err = %v, want missing field", err)
			}
			var e *errors.Error
			errors.As(err, &e)
			if e.Value != "b" {
				t.Errorf("missing field = %v, want b", e.Value)
			}
		})
	})

	t.Run("reordered fields", func(t *testing.T) {
		type ba struct {
			B string `avro:"b"`
			A int32  `avro:"a"`
		}
		forEachMode(t, func(t *testing.T, c *Compiler) {
			got := decode(t, c, reflect.TypeOf(ba{}), s, []byte{0x04, 0x02, 'y'})
			if diff := cmp.Diff(ba{B: "y", A: 2}, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	})
}

func TestArrays(t *testing.T) {
	ints := schema.MustParse(`{"type": "record", "name": "R", "fields": [
		{"name": "items", "type": {"type": "array", "items": "int"}}]}`)
	records := schema.MustParse(`{"type": "record", "name": "R", "fields": [
		{"name": "items", "type": {"type": "array", "items": {
			"type": "record", "name": "Item", "fields": [{"name": "n", "type": "int"}]}}}]}`)

	type int32s struct{ Items []int32 }
	type int64s struct{ Items []int64 }
	type item struct{ N int32 }
	type items struct{ Items []item }

	twoBlocks := []byte{0x04, 0x02, 0x04, 0x06, 0x06, 0x08, 0x0a, 0x00}
	sizedBlock := []byte{0x03, 0x04, 0x02, 0x04, 0x00}

	tests := []struct {
		name   string
		schema *schema.Schema
		typ    reflect.Type
		data   []byte
		want   any
	}{
		{"empty", ints, reflect.TypeOf(int32s{}), []byte{0x00}, int32s{Items: []int32{}}},
		{"blocks of 2 and 3", ints, reflect.TypeOf(int32s{}), twoBlocks, int32s{Items: []int32{1, 2, 3, 4, 5}}},
		{"widened elements", ints, reflect.TypeOf(int64s{}), twoBlocks, int64s{Items: []int64{1, 2, 3, 4, 5}}},
		{"record elements", records, reflect.TypeOf(items{}), twoBlocks, items{Items: []item{{1}, {2}, {3}, {4}, {5}}}},
		{"negative block count", ints, reflect.TypeOf(int32s{}), sizedBlock, int32s{Items: []int32{1, 2}}},
		{"empty records", records, reflect.TypeOf(items{}), []byte{0x00}, items{Items: []item{}}},
	}

	forEachMode(t, func(t *testing.T, c *Compiler) {
		for _, tt := range tests {
			got := decode(t, c, tt.typ, tt.schema, tt.data)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("%s: mismatch (-want +got):\n%s", tt.name, diff)
			}
			if reflect.ValueOf(got).Field(0).IsNil() {
				t.Errorf("%s: decoded a nil slice", tt.name)
			}
		}

		if data := encode(t, c, reflect.TypeOf(int32s{}), ints, int32s{}); !bytes.Equal(data, []byte{0x00}) {
			t.Errorf("empty array bytes = %x, want 00", data)
		}
		want := []byte{0x0a, 0x02, 0x04, 0x06, 0x08, 0x0a, 0x00}
		if data := encode(t, c, reflect.TypeOf(int32s{}), ints, int32s{Items: []int32{1, 2, 3, 4, 5}}); !bytes.Equal(data, want) {
			t.Errorf("array bytes = %x, want %x", data, want)
		}
	})
}

func TestUnionIndexOutOfRange(t *testing.T) {
	s := schema.MustParse(`{"type": "record", "name": "R", "fields": [
		{"name": "nick", "type": ["null", "string"]}]}`)
	type r struct{ Nick *string }

	forEachMode(t, func(t *testing.T, c *Compiler) {
		codec, err := c.Compile(reflect.TypeOf(r{}), s)
		if err != nil {
			t.Fatalf("Compile failed: %v", err)
		}
		_, err = codec.Read(binary.NewBytesDecoder([]byte{0x04}))
		if !errors.Is(err, errors.ErrIndexOutOfRange) {
			t.Fatalf("err = %v, want index out of range", err)
		}
		var e *errors.Error
		errors.As(err, &e)
		if diff := cmp.Diff([]string{"nick"}, e.Path); diff != "" {
			t.Errorf("Path mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestReadErrorPaths(t *testing.T) {
	s := schema.MustParse(personSchema)
	full := encode(t, NewCompiler(), personType, s, samplePeople()[0])

	forEachMode(t, func(t *testing.T, c *Compiler) {
		codec, err := c.Compile(personType, s)
		if err != nil {
			t.Fatalf("Compile failed: %v", err)
		}
		// "Ada" is 4 bytes, age 1 byte, score 8 bytes: cut inside score.
		_, err = codec.Read(binary.NewBytesDecoder(full[:7]))
		if err == nil {
			t.Fatal("expected error for truncated data")
		}
		var e *errors.Error
		if !errors.As(err, &e) {
			t.Fatalf("err = %T, want *errors.Error", err)
		}
		if e.Phase != errors.PhaseDecode {
			t.Errorf("Phase = %v, want decode", e.Phase)
		}
		if diff := cmp.Diff([]string{"score"}, e.Path); diff != "" {
			t.Errorf("Path mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestReadIntoFailureLeavesDestination(t *testing.T) {
	type pair struct {
		A string `avro:"a"`
		B int64  `avro:"b"`
	}
	s := schema.MustParse(`{"type": "record", "name": "Pair", "fields": [
		{"name": "a", "type": "string"},
		{"name": "b", "type": "long"}
	]}`)

	forEachMode(t, func(t *testing.T, c *Compiler) {
		codec, err := c.Compile(reflect.TypeOf(pair{}), s)
		if err != nil {
			t.Fatalf("Compile failed: %v", err)
		}

		dst := pair{A: "keep", B: 42}
		if err := codec.ReadInto(binary.NewBytesDecoder([]byte{0x02, 'x'}), &dst); err == nil {
			t.Fatal("expected error for missing long")
		}
		if diff := cmp.Diff(pair{A: "keep", B: 42}, dst); diff != "" {
			t.Errorf("dst changed by failed read (-want +got):\n%s", diff)
		}

		if err := codec.ReadInto(binary.NewBytesDecoder([]byte{0x02, 'x', 0x06}), &dst); err != nil {
			t.Fatalf("ReadInto failed: %v", err)
		}
		if diff := cmp.Diff(pair{A: "x", B: 3}, dst); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestWriteErrors(t *testing.T) {
	t.Run("overflow of the written type", func(t *testing.T) {
		s := schema.MustParse(`{"type": "record", "name": "R", "fields": [
			{"name": "v", "type": {"type": "int", "go.type": "int8"}}]}`)
		type r struct{ V int32 }
		forEachMode(t, func(t *testing.T, c *Compiler) {
			codec, err := c.Compile(reflect.TypeOf(r{}), s)
			if err != nil {
				t.Fatalf("Compile failed: %v", err)
			}
			err = codec.Write(binary.NewEncoder(), r{V: 300})
			if !errors.Is(err, errors.ErrOverflow) {
				t.Fatalf("err = %v, want overflow", err)
			}
		})
	})

	t.Run("nil record pointer", func(t *testing.T) {
		s := schema.MustParse(`{"type": "record", "name": "R", "fields": [
			{"name": "home", "type": {"type": "record", "name": "Address", "fields": [
				{"name": "street", "type": "string"}, {"name": "zip", "type": "int"}]}}]}`)
		type r struct{ Home *address }
		forEachMode(t, func(t *testing.T, c *Compiler) {
			codec, err := c.Compile(reflect.TypeOf(r{}), s)
			if err != nil {
				t.Fatalf("Compile failed: %v", err)
			}
			if err := codec.Write(binary.NewEncoder(), r{}); kindOf(err) != errors.KindNilPointer {
				t.Fatalf("err = %v, want nil pointer", err)
			}
			got := decode(t, c, reflect.TypeOf(r{}), s,
				encode(t, c, reflect.TypeOf(r{}), s, r{Home: &address{Street: "x", Zip: 1}}))
			if diff := cmp.Diff(r{Home: &address{Street: "x", Zip: 1}}, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	})

	t.Run("wrong value type", func(t *testing.T) {
		s := schema.MustParse(personSchema)
		codec, err := NewCompiler().Compile(personType, s)
		if err != nil {
			t.Fatalf("Compile failed: %v", err)
		}
		if err := codec.Write(binary.NewEncoder(), address{}); !errors.Is(err, errors.ErrTypeMismatch) {
			t.Fatalf("err = %v, want type mismatch", err)
		}
	})
}

type node struct {
	Value int32
	Next  *node
}

func TestRecursiveRecord(t *testing.T) {
	parsed := schema.MustParse(`{"type": "record", "name": "Node", "fields": [
		{"name": "value", "type": "int"},
		{"name": "next", "type": ["null", "Node"]}
	]}`)
	list := node{Value: 1, Next: &node{Value: 2, Next: &node{Value: 3}}}

	forEachMode(t, func(t *testing.T, c *Compiler) {
		derived, err := c.SchemaFor(reflect.TypeOf(node{}))
		if err != nil {
			t.Fatalf("SchemaFor failed: %v", err)
		}
		for name, s := range map[string]*schema.Schema{"parsed": parsed, "derived": derived} {
			data := encode(t, c, reflect.TypeOf(node{}), s, list)
			got := decode(t, c, reflect.TypeOf(node{}), s, data)
			if diff := cmp.Diff(list, got); diff != "" {
				t.Errorf("%s: mismatch (-want +got):\n%s", name, diff)
			}
		}
	})
}

func TestPointerRoot(t *testing.T) {
	s := schema.MustParse(personSchema)
	want := samplePeople()[0]
	forEachMode(t, func(t *testing.T, c *Compiler) {
		typ := reflect.TypeOf(&person{})
		data := encode(t, c, typ, s, &want)
		got, ok := decode(t, c, typ, s, data).(*person)
		if !ok {
			t.Fatal("decoded value is not *person")
		}
		if diff := cmp.Diff(&want, got); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})
}
