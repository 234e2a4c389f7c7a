package main

import (
	"fmt"
	"math"
	"strconv"

	json "github.com/goccy/go-json"

	"github.com/wippyai/recbind/datum"
	"github.com/wippyai/recbind/errors"
	"github.com/wippyai/recbind/schema"
)

// fromJSON converts a decoded JSON document into the natural Go values of
// schema s, ready for datum.WriteAny. Numbers are expected as json.Number.
// A union value may be wrapped as {"branch type name": value}; otherwise the
// first branch that accepts it is used. Bytes and fixed values are strings
// whose code points are the byte values.
func fromJSON(v any, s *schema.Schema, path []string) (any, error) {
	switch s.Kind {
	case schema.Null:
		if v != nil {
			return nil, mismatch(v, s, path)
		}
		return nil, nil
	case schema.Boolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case schema.Int:
		n, err := integer(v, s, path, 32)
		return int32(n), err
	case schema.Long:
		return integer(v, s, path, 64)
	case schema.Float:
		f, err := float(v, s, path, 32)
		return float32(f), err
	case schema.Double:
		return float(v, s, path, 64)
	case schema.String, schema.Enum:
		if str, ok := v.(string); ok {
			return str, nil
		}
	case schema.Bytes, schema.Fixed:
		if str, ok := v.(string); ok {
			return latin1(str, path)
		}
	case schema.Array:
		items, ok := v.([]any)
		if !ok {
			break
		}
		out := make([]any, len(items))
		for i, item := range items {
			conv, err := fromJSON(item, s.Items, append(path, fmt.Sprintf("[%d]", i)))
			if err != nil {
				return nil, err
			}
			out[i] = conv
		}
		return out, nil
	case schema.Map:
		m, ok := v.(map[string]any)
		if !ok {
			break
		}
		out := make(map[string]any, len(m))
		for k, item := range m {
			conv, err := fromJSON(item, s.Values, append(path, k))
			if err != nil {
				return nil, err
			}
			out[k] = conv
		}
		return out, nil
	case schema.Record:
		return record(v, s, path)
	case schema.Union:
		return union(v, s, path)
	}
	return nil, mismatch(v, s, path)
}

func record(v any, s *schema.Schema, path []string) (any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, mismatch(v, s, path)
	}
	for k := range m {
		if _, ok := s.Field(k); !ok {
			return nil, errors.InvalidData(errors.PhaseEncode, path, fmt.Sprintf("unknown field %q of %s", k, s.FullName()))
		}
	}
	out := make(map[string]any, len(s.Fields))
	for _, f := range s.Fields {
		item, ok := m[f.Name]
		if !ok {
			if !f.HasDefault {
				return nil, errors.MissingField(errors.PhaseEncode, path, f.Name, "JSON object")
			}
			item = f.Default
		}
		conv, err := fromJSON(item, f.Type, append(path, f.Name))
		if err != nil {
			return nil, err
		}
		out[f.Name] = conv
	}
	return out, nil
}

func union(v any, s *schema.Schema, path []string) (any, error) {
	if v == nil {
		idx := s.NullIndex()
		if idx < 0 {
			return nil, errors.NilPointer(errors.PhaseEncode, path, s.TypeName())
		}
		return datum.Branch{Index: idx}, nil
	}

	if m, ok := v.(map[string]any); ok && len(m) == 1 {
		for name, inner := range m {
			for i, b := range s.Branches {
				if name != b.TypeName() && name != b.FullName() && name != b.Kind.String() {
					continue
				}
				conv, err := fromJSON(inner, b, path)
				if err != nil {
					return nil, err
				}
				return datum.Branch{Index: i, Value: conv}, nil
			}
		}
	}

	for i, b := range s.Branches {
		if b.Kind == schema.Null {
			continue
		}
		if conv, err := fromJSON(v, b, path); err == nil {
			return datum.Branch{Index: i, Value: conv}, nil
		}
	}
	return nil, mismatch(v, s, path)
}

func integer(v any, s *schema.Schema, path []string, bits int) (int64, error) {
	var (
		n   int64
		err error
	)
	switch x := v.(type) {
	case json.Number:
		n, err = strconv.ParseInt(x.String(), 10, 64)
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) {
			return 0, mismatch(v, s, path)
		}
		n = int64(x)
	case int:
		n = int64(x)
	case int64:
		n = x
	default:
		return 0, mismatch(v, s, path)
	}
	if err != nil {
		return 0, errors.Overflow(errors.PhaseEncode, path, v, s.TypeName())
	}
	if bits == 32 && (n < math.MinInt32 || n > math.MaxInt32) {
		return 0, errors.Overflow(errors.PhaseEncode, path, n, s.TypeName())
	}
	return n, nil
}

func float(v any, s *schema.Schema, path []string, bits int) (float64, error) {
	switch x := v.(type) {
	case json.Number:
		f, err := strconv.ParseFloat(x.String(), bits)
		if err != nil {
			return 0, errors.Overflow(errors.PhaseEncode, path, v, s.TypeName())
		}
		return f, nil
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case string:
		switch x {
		case "NaN":
			return math.NaN(), nil
		case "Infinity":
			return math.Inf(1), nil
		case "-Infinity":
			return math.Inf(-1), nil
		}
	}
	return 0, mismatch(v, s, path)
}

func latin1(str string, path []string) ([]byte, error) {
	out := make([]byte, 0, len(str))
	for _, r := range str {
		if r > 0xff {
			return nil, errors.InvalidData(errors.PhaseEncode, path, fmt.Sprintf("code point %U is not a byte", r))
		}
		out = append(out, byte(r))
	}
	return out, nil
}

func mismatch(v any, s *schema.Schema, path []string) error {
	return errors.TypeMismatch(errors.PhaseEncode, path, fmt.Sprintf("%T", v), s.TypeName())
}

// toJSON prepares a value returned by datum.ReadAny for JSON output, the
// inverse of fromJSON.
func toJSON(v any) any {
	switch x := v.(type) {
	case []byte:
		runes := make([]rune, len(x))
		for i, b := range x {
			runes[i] = rune(b)
		}
		return string(runes)
	case float32:
		return toJSON(float64(x))
	case float64:
		switch {
		case math.IsNaN(x):
			return "NaN"
		case math.IsInf(x, 1):
			return "Infinity"
		case math.IsInf(x, -1):
			return "-Infinity"
		}
		return x
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = toJSON(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = toJSON(item)
		}
		return out
	}
	return v
}
