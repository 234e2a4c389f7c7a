package coerce

import (
	"bytes"
	stderrors "errors"
	"math"
	"reflect"
	"testing"
	"unsafe"

	"github.com/wippyai/recbind/binary"
	"github.com/wippyai/recbind/errors"
	"github.com/wippyai/recbind/schema"
)

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func TestResolveWidening(t *testing.T) {
	tests := []struct {
		name     string
		written  schema.Kind
		hint     string
		declared reflect.Type
		ok       bool
	}{
		{"int to int32", schema.Int, "", typeOf[int32](), true},
		{"int to long", schema.Int, "", typeOf[int64](), true},
		{"int to float", schema.Int, "", typeOf[float32](), true},
		{"int to double", schema.Int, "", typeOf[float64](), true},
		{"long to float", schema.Long, "", typeOf[float32](), true},
		{"long to double", schema.Long, "", typeOf[float64](), true},
		{"long to int", schema.Long, "", typeOf[int](), true},
		{"float to double", schema.Float, "", typeOf[float64](), true},
		{"double to int", schema.Double, "", typeOf[int32](), false},
		{"long to int32", schema.Long, "", typeOf[int32](), false},
		{"float to int32", schema.Float, "", typeOf[int32](), false},
		{"double to float", schema.Double, "", typeOf[float32](), false},
		{"int to int16 without hint", schema.Int, "", typeOf[int16](), false},
		{"int8 to int16", schema.Int, "int8", typeOf[int16](), true},
		{"uint8 to int16", schema.Int, "uint8", typeOf[int16](), true},
		{"uint8 to uint16", schema.Int, "uint8", typeOf[uint16](), true},
		{"int8 to uint8", schema.Int, "int8", typeOf[uint8](), false},
		{"int16 to int8", schema.Int, "int16", typeOf[int8](), false},
		{"uint16 to int32", schema.Int, "uint16", typeOf[int32](), true},
		{"int16 to double", schema.Int, "int16", typeOf[float64](), true},
		{"boolean to bool", schema.Boolean, "", typeOf[bool](), true},
		{"boolean to int", schema.Boolean, "", typeOf[int32](), true},
		{"boolean to double", schema.Boolean, "", typeOf[float64](), true},
		{"boolean to int8", schema.Boolean, "", typeOf[int8](), false},
		{"boolean to string", schema.Boolean, "", typeOf[string](), false},
		{"int to bool", schema.Int, "", typeOf[bool](), false},
		{"string to string", schema.String, "", typeOf[string](), true},
		{"string to bytes", schema.String, "", typeOf[[]byte](), false},
		{"bytes to bytes", schema.Bytes, "", typeOf[[]byte](), true},
		{"record is not scalar", schema.Record, "", typeOf[int32](), false},
		{"struct is not scalar", schema.Int, "", typeOf[struct{}](), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(tt.written, tt.hint, tt.declared, []string{"R", "f"})
			if tt.ok {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !stderrors.Is(err, errors.ErrTypeMismatch) {
				t.Fatalf("expected type mismatch, got %v", err)
			}
			var e *errors.Error
			stderrors.As(err, &e)
			if e.Phase != errors.PhaseBind || len(e.Path) != 2 || e.Path[1] != "f" {
				t.Errorf("unexpected error context: %v", err)
			}
		})
	}
}

func TestNamedScalar(t *testing.T) {
	type celsius float64
	c, err := Resolve(schema.Float, "", typeOf[celsius](), nil)
	if err != nil {
		t.Fatal(err)
	}
	if c.IsIdentity() {
		t.Error("float into float64 is a widening")
	}
	if !IsScalar(typeOf[celsius]()) || IsScalar(typeOf[[]int]()) {
		t.Error("IsScalar")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		typ  reflect.Type
		kind schema.Kind
		hint string
	}{
		{typeOf[bool](), schema.Boolean, ""},
		{typeOf[int8](), schema.Int, "int8"},
		{typeOf[uint16](), schema.Int, "uint16"},
		{typeOf[int32](), schema.Int, ""},
		{typeOf[int](), schema.Long, ""},
		{typeOf[int64](), schema.Long, ""},
		{typeOf[float32](), schema.Float, ""},
		{typeOf[float64](), schema.Double, ""},
		{typeOf[string](), schema.String, ""},
		{typeOf[[]byte](), schema.Bytes, ""},
	}
	for _, tt := range tests {
		kind, hint, ok := KindOf(tt.typ)
		if !ok || kind != tt.kind || hint != tt.hint {
			t.Errorf("KindOf(%s) = %s %q %v", tt.typ, kind, hint, ok)
		}
		if kind != schema.Long && Natural(kind, hint) != tt.typ {
			t.Errorf("Natural(%s, %q) = %s, want %s", kind, hint, Natural(kind, hint), tt.typ)
		}
	}
	if _, _, ok := KindOf(typeOf[uint64]()); ok {
		t.Error("uint64 has no natural kind")
	}
}

// roundTrip encodes value with kind and decodes it into declared through both
// the reflective and the precompiled paths.
func roundTrip(t *testing.T, written schema.Kind, hint string, value any, declared reflect.Type) (reflect.Value, reflect.Value) {
	t.Helper()
	src := reflect.ValueOf(value)
	wc, err := Resolve(written, hint, src.Type(), nil)
	if err != nil {
		t.Fatalf("resolve write: %v", err)
	}
	enc := binary.NewEncoder()
	if err := wc.WriteValue(enc, src); err != nil {
		t.Fatalf("WriteValue: %v", err)
	}

	rc, err := Resolve(written, hint, declared, nil)
	if err != nil {
		t.Fatalf("resolve read: %v", err)
	}
	generic, err := rc.ReadValue(binary.NewBytesDecoder(enc.Bytes()))
	if err != nil {
		t.Fatalf("ReadValue: %v", err)
	}
	fast := reflect.New(declared)
	if err := rc.Reader()(binary.NewBytesDecoder(enc.Bytes()), fast.UnsafePointer()); err != nil {
		t.Fatalf("Reader: %v", err)
	}
	return generic, fast.Elem()
}

func TestReadPathsAgree(t *testing.T) {
	tests := []struct {
		name     string
		written  schema.Kind
		hint     string
		value    any
		declared reflect.Type
		want     any
	}{
		{"int to long", schema.Int, "", int32(-7), typeOf[int64](), int64(-7)},
		{"int to float", schema.Int, "", int32(16777217), typeOf[float32](), float32(16777217)},
		{"long to double", schema.Long, "", int64(1) << 53, typeOf[float64](), float64(1 << 53)},
		{"long to float", schema.Long, "", int64(math.MaxInt64), typeOf[float32](), float32(math.MaxInt64)},
		{"long to int", schema.Long, "", int64(-1), typeOf[int](), -1},
		{"float to double", schema.Float, "", float32(0.1), typeOf[float64](), float64(float32(0.1))},
		{"int8 to int16", schema.Int, "int8", int8(-128), typeOf[int16](), int16(-128)},
		{"uint8 to uint16", schema.Int, "uint8", uint8(255), typeOf[uint16](), uint16(255)},
		{"bool", schema.Boolean, "", true, typeOf[bool](), true},
		{"bool to int", schema.Boolean, "", true, typeOf[int32](), int32(1)},
		{"bool to long", schema.Boolean, "", false, typeOf[int64](), int64(0)},
		{"string", schema.String, "", "héllo", typeOf[string](), "héllo"},
		{"bytes", schema.Bytes, "", []byte{1, 2}, typeOf[[]byte](), []byte{1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			generic, fast := roundTrip(t, tt.written, tt.hint, tt.value, tt.declared)
			if !reflect.DeepEqual(generic.Interface(), tt.want) {
				t.Errorf("generic: got %#v, want %#v", generic.Interface(), tt.want)
			}
			if !reflect.DeepEqual(fast.Interface(), tt.want) {
				t.Errorf("specialized: got %#v, want %#v", fast.Interface(), tt.want)
			}
		})
	}
}

func TestWritePathsAgree(t *testing.T) {
	tests := []struct {
		name    string
		written schema.Kind
		hint    string
		value   any
	}{
		{"int64 as int", schema.Int, "", int64(42)},
		{"float64 as float", schema.Float, "", 0.1},
		{"float32 as int", schema.Int, "", float32(3)},
		{"uint16 as int", schema.Int, "uint8", uint16(200)},
		{"int as long", schema.Long, "", 1 << 40},
		{"double as long", schema.Long, "", float64(-9)},
		{"int32 as boolean", schema.Boolean, "", int32(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := reflect.ValueOf(tt.value)
			c := Conversion{Written: tt.written, Hint: tt.hint, Declared: v.Type(), Target: v.Kind()}
			c.Source, _ = sourceKind(tt.written, tt.hint)

			generic := binary.NewEncoder()
			if err := c.WriteValue(generic, v); err != nil {
				t.Fatalf("WriteValue: %v", err)
			}
			ptr := reflect.New(v.Type())
			ptr.Elem().Set(v)
			fast := binary.NewEncoder()
			if err := c.Writer()(fast, ptr.UnsafePointer()); err != nil {
				t.Fatalf("Writer: %v", err)
			}
			if !bytes.Equal(generic.Bytes(), fast.Bytes()) {
				t.Errorf("bytes differ: generic %x, specialized %x", generic.Bytes(), fast.Bytes())
			}
		})
	}
}

func TestWriteOverflow(t *testing.T) {
	tests := []struct {
		name    string
		written schema.Kind
		hint    string
		value   any
	}{
		{"int64 into int", schema.Int, "", int64(math.MaxInt32) + 1},
		{"int32 into int8 hint", schema.Int, "int8", int32(200)},
		{"fraction into int", schema.Int, "", 1.5},
		{"nan into long", schema.Long, "", math.NaN()},
		{"two into boolean", schema.Boolean, "", int64(2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := reflect.ValueOf(tt.value)
			c := Conversion{Written: tt.written, Hint: tt.hint, Declared: v.Type(), Target: v.Kind()}
			c.Source, _ = sourceKind(tt.written, tt.hint)

			if err := c.WriteValue(binary.NewEncoder(), v); !stderrors.Is(err, errors.ErrOverflow) {
				t.Errorf("generic: expected overflow, got %v", err)
			}
			ptr := reflect.New(v.Type())
			ptr.Elem().Set(v)
			if err := c.Writer()(binary.NewEncoder(), ptr.UnsafePointer()); !stderrors.Is(err, errors.ErrOverflow) {
				t.Errorf("specialized: expected overflow, got %v", err)
			}
		})
	}
}

func TestReadOverflow(t *testing.T) {
	// An int8-hinted value outside int8 can only come from a corrupt datum.
	enc := binary.NewEncoder()
	_ = enc.WriteInt(1000)

	c, err := Resolve(schema.Int, "int8", typeOf[int8](), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.ReadValue(binary.NewBytesDecoder(enc.Bytes())); !stderrors.Is(err, errors.ErrOverflow) {
		t.Errorf("generic: expected overflow, got %v", err)
	}
	var x int8
	if err := c.Reader()(binary.NewBytesDecoder(enc.Bytes()), unsafe.Pointer(&x)); !stderrors.Is(err, errors.ErrOverflow) {
		t.Errorf("specialized: expected overflow, got %v", err)
	}
}
