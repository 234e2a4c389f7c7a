package datum

import (
	"reflect"

	"github.com/wippyai/recbind"
	"github.com/wippyai/recbind/errors"
	"github.com/wippyai/recbind/schema"
)

// ReadAny decodes a datum into natural Go values: nil, bool, int32, int64,
// float32, float64, string, []byte, []any and map[string]any. Records become
// maps keyed by field name and enums their symbol.
func ReadAny(dec recbind.Decoder, s *schema.Schema) (any, error) {
	return readAny(dec, s, nil)
}

// WriteAny encodes v with schema s. v may hold natural values as produced by
// ReadAny or by a JSON decoder. A Branch selects a union branch explicitly.
func WriteAny(enc recbind.Encoder, s *schema.Schema, v any) error {
	return writeValue(enc, s, reflect.ValueOf(v), nil)
}

func readAny(dec recbind.Decoder, s *schema.Schema, path []string) (any, error) {
	var (
		v   any
		err error
	)
	switch s.Kind {
	case schema.Null:
		return nil, nil
	case schema.Boolean:
		v, err = dec.ReadBoolean()
	case schema.Int:
		v, err = dec.ReadInt()
	case schema.Long:
		v, err = dec.ReadLong()
	case schema.Float:
		v, err = dec.ReadFloat()
	case schema.Double:
		v, err = dec.ReadDouble()
	case schema.String:
		v, err = dec.ReadString()
	case schema.Bytes:
		v, err = dec.ReadBytes()
	case schema.Fixed:
		v, err = dec.ReadFixed(s.Size)
	case schema.Enum:
		var idx int
		idx, err = dec.ReadEnum()
		if err == nil {
			if idx < 0 || idx >= len(s.Symbols) {
				return nil, errors.IndexOutOfRange(errors.PhaseDecode, path, int64(idx), len(s.Symbols))
			}
			v = s.Symbols[idx]
		}
	case schema.Union:
		var idx int64
		idx, err = dec.ReadIndex()
		if err == nil {
			if idx < 0 || idx >= int64(len(s.Branches)) {
				return nil, errors.IndexOutOfRange(errors.PhaseDecode, path, idx, len(s.Branches))
			}
			return readAny(dec, s.Branches[idx], path)
		}
	case schema.Record:
		m := make(map[string]any, len(s.Fields))
		for _, f := range s.Fields {
			x, err := readAny(dec, f.Type, append(append([]string{}, path...), f.Name))
			if err != nil {
				return nil, err
			}
			m[f.Name] = x
		}
		return m, nil
	case schema.Array:
		out := []any{}
		var n int64
		n, err = dec.ReadArrayStart()
		for ; err == nil && n > 0; n, err = dec.ArrayNext() {
			for i := int64(0); i < n; i++ {
				x, err := readAny(dec, s.Items, path)
				if err != nil {
					return nil, err
				}
				out = append(out, x)
			}
		}
		v = out
	case schema.Map:
		out := map[string]any{}
		var n int64
		n, err = dec.ReadMapStart()
		for ; err == nil && n > 0; n, err = dec.MapNext() {
			for i := int64(0); i < n; i++ {
				key, err := dec.ReadString()
				if err != nil {
					return nil, errors.ReadFailed(path, err)
				}
				x, err := readAny(dec, s.Values, append(append([]string{}, path...), key))
				if err != nil {
					return nil, err
				}
				out[key] = x
			}
		}
		v = out
	}
	if err != nil {
		return nil, errors.ReadFailed(path, err)
	}
	return v, nil
}
