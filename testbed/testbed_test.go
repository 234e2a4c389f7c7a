package testbed

import (
	"bytes"
	"math/rand/v2"
	"reflect"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/wippyai/recbind/binary"
	"github.com/wippyai/recbind/bind"
	"github.com/wippyai/recbind/datum"
	"github.com/wippyai/recbind/schema"
)

const readingSchema = `{"type": "record", "name": "Reading", "fields": [
	{"name": "sensor", "type": "string"},
	{"name": "seq", "type": "long"},
	{"name": "level", "type": {"type": "int", "go.type": "int16"}},
	{"name": "values", "type": {"type": "array", "items": "double"}},
	{"name": "flags", "type": {"type": "array", "items": "boolean"}},
	{"name": "tag", "type": ["null", "string"]},
	{"name": "raw", "type": "bytes"},
	{"name": "attrs", "type": {"type": "map", "values": "int"}},
	{"name": "child", "type": ["null", "Reading"]}
]}`

type reading struct {
	Sensor string           `avro:"sensor"`
	Seq    int64            `avro:"seq"`
	Level  int16            `avro:"level"`
	Values []float64        `avro:"values"`
	Flags  []bool           `avro:"flags"`
	Tag    *string          `avro:"tag"`
	Raw    []byte           `avro:"raw"`
	Attrs  map[string]int32 `avro:"attrs"`
	Child  *reading         `avro:"child"`
}

var modes = []bind.Mode{bind.ModeGeneric, bind.ModeSpecialized}

func randomReading(r *rand.Rand, depth int) reading {
	v := reading{
		Sensor: "s-" + strconv.Itoa(r.IntN(1000)),
		Seq:    r.Int64() - r.Int64(),
		Level:  int16(r.IntN(1<<16) - 1<<15),
	}
	for i, n := 0, r.IntN(6); i < n; i++ {
		v.Values = append(v.Values, r.NormFloat64())
	}
	for i, n := 0, r.IntN(4); i < n; i++ {
		v.Flags = append(v.Flags, r.IntN(2) == 0)
	}
	if r.IntN(2) == 0 {
		tag := strconv.Itoa(r.IntN(50))
		v.Tag = &tag
	}
	for i, n := 0, r.IntN(5); i < n; i++ {
		v.Raw = append(v.Raw, byte(r.IntN(256)))
	}
	for i, n := 0, r.IntN(3); i < n; i++ {
		if v.Attrs == nil {
			v.Attrs = make(map[string]int32)
		}
		v.Attrs["k"+strconv.Itoa(i)] = r.Int32() - r.Int32()
	}
	if depth > 0 && r.IntN(2) == 0 {
		child := randomReading(r, depth-1)
		v.Child = &child
	}
	return v
}

func compile(t *testing.T, m bind.Mode, typ reflect.Type, s *schema.Schema) *bind.Codec {
	t.Helper()
	codec, err := bind.NewCompilerWithOptions(bind.Options{Mode: m}).Compile(typ, s)
	if err != nil {
		t.Fatalf("Compile(%v) failed: %v", m, err)
	}
	return codec
}

// TestEngines_Agree checks that both binding engines and the reflective
// datum codec write identical bytes and read back the same values.
func TestEngines_Agree(t *testing.T) {
	s := schema.MustParse(readingSchema)
	r := rand.New(rand.NewPCG(1, 2))
	typ := reflect.TypeOf(reading{})

	codecs := make([]*bind.Codec, len(modes))
	for i, m := range modes {
		codecs[i] = compile(t, m, typ, s)
	}

	for i := 0; i < 200; i++ {
		want := randomReading(r, 3)

		ref := binary.NewEncoder()
		if err := datum.Write(ref, s, reflect.ValueOf(want)); err != nil {
			t.Fatalf("datum.Write failed: %v", err)
		}

		for _, codec := range codecs {
			enc := binary.NewEncoder()
			if err := codec.Write(enc, want); err != nil {
				t.Fatalf("%v: Write failed: %v", codec.Mode(), err)
			}
			if !bytes.Equal(enc.Bytes(), ref.Bytes()) {
				t.Fatalf("%v: bytes differ from datum encoding\n got %x\nwant %x", codec.Mode(), enc.Bytes(), ref.Bytes())
			}

			got, err := codec.Read(binary.NewBytesDecoder(enc.Bytes()))
			if err != nil {
				t.Fatalf("%v: Read failed: %v", codec.Mode(), err)
			}
			if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Fatalf("%v: round trip %d mismatch (-want +got):\n%s", codec.Mode(), i, diff)
			}
		}

		back, err := datum.Read(binary.NewBytesDecoder(ref.Bytes()), s, typ)
		if err != nil {
			t.Fatalf("datum.Read failed: %v", err)
		}
		if diff := cmp.Diff(want, back.Interface(), cmpopts.EquateEmpty()); diff != "" {
			t.Fatalf("datum round trip %d mismatch (-want +got):\n%s", i, diff)
		}
	}
}

type series struct {
	Points []int64 `avro:"points"`
}

const seriesSchema = `{"type": "record", "name": "Series", "fields": [
	{"name": "points", "type": {"type": "array", "items": "long"}}
]}`

// frame encodes points as an array split into random blocks, half of them
// carrying a byte size.
func frame(r *rand.Rand, points []int64) []byte {
	enc := binary.NewEncoder()
	for rest := points; len(rest) > 0; {
		n := 1 + r.IntN(len(rest))
		if r.IntN(2) == 0 {
			size := binary.NewEncoder()
			for _, p := range rest[:n] {
				_ = size.WriteLong(p)
			}
			_ = enc.WriteLong(-int64(n))
			_ = enc.WriteLong(int64(size.Len()))
		} else {
			_ = enc.WriteLong(int64(n))
		}
		for _, p := range rest[:n] {
			_ = enc.WriteLong(p)
		}
		rest = rest[n:]
	}
	_ = enc.WriteLong(0)
	return enc.Bytes()
}

func TestArrayBlocks(t *testing.T) {
	s := schema.MustParse(seriesSchema)
	r := rand.New(rand.NewPCG(3, 4))
	typ := reflect.TypeOf(series{})

	for i := 0; i < 100; i++ {
		want := series{Points: make([]int64, r.IntN(40))}
		for j := range want.Points {
			want.Points[j] = r.Int64N(1<<40) - 1<<39
		}
		data := frame(r, want.Points)

		for _, m := range modes {
			got, err := compile(t, m, typ, s).Read(binary.NewBytesDecoder(data))
			if err != nil {
				t.Fatalf("%v: Read of %x failed: %v", m, data, err)
			}
			if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Fatalf("%v: mismatch (-want +got):\n%s", m, diff)
			}
		}
	}
}

const sampleV1 = `{"type": "record", "name": "Sample", "fields": [
	{"name": "count", "type": "int"},
	{"name": "label", "type": "string"},
	{"name": "ratio", "type": "float"}
]}`

// sampleV2 reads data written with sampleV1: fields are reordered, count and
// ratio are widened, and note did not exist yet.
type sampleV2 struct {
	Ratio float64 `avro:"ratio"`
	Note  string  `avro:"note"`
	Count int64   `avro:"count"`
	Label string  `avro:"label"`
}

func TestSchemaEvolution(t *testing.T) {
	s := schema.MustParse(sampleV1)
	r := rand.New(rand.NewPCG(5, 6))
	typ := reflect.TypeOf(sampleV2{})

	for _, m := range modes {
		t.Run(m.String(), func(t *testing.T) {
			codec := compile(t, m, typ, s)
			for i := 0; i < 100; i++ {
				count := r.Int32() - r.Int32()
				ratio := float32(r.NormFloat64())
				label := strconv.Itoa(r.IntN(1 << 20))

				enc := binary.NewEncoder()
				err := datum.WriteAny(enc, s, map[string]any{"count": count, "label": label, "ratio": ratio})
				if err != nil {
					t.Fatalf("WriteAny failed: %v", err)
				}
				got, err := codec.Read(binary.NewBytesDecoder(enc.Bytes()))
				if err != nil {
					t.Fatalf("Read failed: %v", err)
				}
				want := sampleV2{Ratio: float64(ratio), Count: int64(count), Label: label}
				if diff := cmp.Diff(want, got); diff != "" {
					t.Fatalf("mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}
