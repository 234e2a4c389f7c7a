package datum

import (
	"reflect"
	"sort"
	"strconv"

	"github.com/wippyai/recbind"
	"github.com/wippyai/recbind/errors"
	"github.com/wippyai/recbind/internal/coerce"
	"github.com/wippyai/recbind/internal/structure"
	"github.com/wippyai/recbind/schema"
)

// Write encodes v with schema s.
func Write(enc recbind.Encoder, s *schema.Schema, v reflect.Value) error {
	return writeValue(enc, s, v, nil)
}

// WriteAt is like Write but reports errors relative to path.
func WriteAt(enc recbind.Encoder, s *schema.Schema, v reflect.Value, path []string) error {
	return writeValue(enc, s, v, path)
}

// indirect strips interfaces and pointers. It reports false for nil.
func indirect(v reflect.Value) (reflect.Value, bool) {
	for v.IsValid() && (v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer) {
		if v.IsNil() {
			return v, false
		}
		v = v.Elem()
	}
	return v, v.IsValid()
}

func writeValue(enc recbind.Encoder, s *schema.Schema, v reflect.Value, path []string) error {
	if s.Kind == schema.Union {
		return writeUnion(enc, s, v, path)
	}
	if s.Kind == schema.Null {
		return enc.WriteNull()
	}
	v, ok := indirect(v)
	if !ok {
		return errors.NilPointer(errors.PhaseEncode, path, s.TypeName())
	}

	switch s.Kind {
	case schema.Record:
		return writeRecord(enc, s, v, path)
	case schema.Enum:
		return writeEnum(enc, s, v, path)
	case schema.Fixed:
		return writeFixed(enc, s, v, path)
	case schema.Array:
		return writeArray(enc, s, v, path)
	case schema.Map:
		return writeMap(enc, s, v, path)
	case schema.Bytes:
		if v.Kind() == reflect.String {
			return wrapWrite(path, enc.WriteBytes([]byte(v.String())))
		}
	case schema.String:
		if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8 {
			return wrapWrite(path, enc.WriteString(string(v.Bytes())))
		}
	}

	hint := s.Prop(schema.PropGoType)
	conv, err := coerce.Resolve(s.Kind, hint, v.Type(), path)
	if err != nil {
		natural, ok := widens(s, v.Type())
		if !ok {
			e := err.(*errors.Error)
			e.Phase = errors.PhaseEncode
			return e
		}
		v = v.Convert(natural)
		if conv, err = coerce.Resolve(s.Kind, hint, natural, path); err != nil {
			return err
		}
	}
	return wrapWrite(path, conv.WriteValue(enc, v))
}

// widens reports whether a Go scalar of type t widens into the natural type
// of primitive schema s, returning that type.
func widens(s *schema.Schema, t reflect.Type) (reflect.Type, bool) {
	kind, hint, ok := coerce.KindOf(t)
	if !ok {
		return nil, false
	}
	natural := coerce.Natural(s.Kind, s.Prop(schema.PropGoType))
	if natural == nil {
		return nil, false
	}
	if _, err := coerce.Resolve(kind, hint, natural, nil); err != nil {
		return nil, false
	}
	return natural, true
}

func wrapWrite(path []string, err error) error {
	if err != nil {
		return errors.WriteFailed(path, err)
	}
	return nil
}

// Branch pins a union value to an explicit branch, skipping SelectBranch.
type Branch struct {
	Index int
	Value any
}

func writeUnion(enc recbind.Encoder, s *schema.Schema, v reflect.Value, path []string) error {
	if v.IsValid() && v.CanInterface() {
		if b, ok := v.Interface().(Branch); ok {
			if b.Index < 0 || b.Index >= len(s.Branches) {
				return errors.IndexOutOfRange(errors.PhaseEncode, path, int64(b.Index), len(s.Branches))
			}
			if err := enc.WriteIndex(b.Index); err != nil {
				return errors.WriteFailed(path, err)
			}
			return writeValue(enc, s.Branches[b.Index], reflect.ValueOf(b.Value), path)
		}
	}
	idx := SelectBranch(s, v)
	if idx < 0 {
		typeName := "<nil>"
		if v.IsValid() {
			typeName = v.Type().String()
		}
		return errors.TypeMismatch(errors.PhaseEncode, path, typeName, s.TypeName())
	}
	if err := enc.WriteIndex(idx); err != nil {
		return errors.WriteFailed(path, err)
	}
	return writeValue(enc, s.Branches[idx], v, path)
}

// SelectBranch picks the union branch for v: the null branch for nil values,
// otherwise the first branch whose natural Go type is v's type, otherwise
// the first branch v can be written as. It returns -1 when none fits.
func SelectBranch(s *schema.Schema, v reflect.Value) int {
	v, ok := indirect(v)
	if !ok {
		return s.NullIndex()
	}
	t := v.Type()

	if v.Kind() == reflect.Struct {
		for i, b := range s.Branches {
			if b.Kind == schema.Record && b.Name == t.Name() {
				return i
			}
		}
	}
	for i, b := range s.Branches {
		if b.Kind.IsPrimitive() && coerce.Natural(b.Kind, b.Prop(schema.PropGoType)) == t {
			return i
		}
	}
	for i, b := range s.Branches {
		if Compatible(b, t) {
			return i
		}
	}
	return -1
}

// Compatible reports whether values of type t can be written with schema s.
func Compatible(s *schema.Schema, t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch s.Kind {
	case schema.Null:
		return false
	case schema.Record:
		return t.Kind() == reflect.Struct || (t.Kind() == reflect.Map && t.Key().Kind() == reflect.String)
	case schema.Map:
		return t.Kind() == reflect.Map && t.Key().Kind() == reflect.String
	case schema.Array:
		return t.Kind() == reflect.Slice && t.Elem().Kind() != reflect.Uint8
	case schema.Enum:
		switch t.Kind() {
		case reflect.String, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return true
		}
		return false
	case schema.Fixed:
		return (t.Kind() == reflect.Slice || t.Kind() == reflect.Array) && t.Elem().Kind() == reflect.Uint8
	case schema.Union:
		for _, b := range s.Branches {
			if Compatible(b, t) {
				return true
			}
		}
		return false
	default:
		if _, err := coerce.Resolve(s.Kind, s.Prop(schema.PropGoType), t, nil); err == nil {
			return true
		}
		_, ok := widens(s, t)
		return ok
	}
}

func writeRecord(enc recbind.Encoder, s *schema.Schema, v reflect.Value, path []string) error {
	switch v.Kind() {
	case reflect.Struct:
		st, err := structure.Of(v.Type())
		if err != nil {
			return err
		}
		for _, f := range s.Fields {
			fieldPath := append(append([]string{}, path...), f.Name)
			sf, ok := st.Lookup(f.Name)
			if !ok {
				return errors.MissingField(errors.PhaseEncode, path, f.Name, v.Type().String())
			}
			if err := writeValue(enc, f.Type, v.Field(sf.Index), fieldPath); err != nil {
				return err
			}
		}
		return nil
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			break
		}
		for _, f := range s.Fields {
			fieldPath := append(append([]string{}, path...), f.Name)
			fv := v.MapIndex(reflect.ValueOf(f.Name).Convert(v.Type().Key()))
			if !fv.IsValid() {
				if f.Type.Kind == schema.Union && f.Type.NullIndex() >= 0 {
					if err := enc.WriteIndex(f.Type.NullIndex()); err != nil {
						return errors.WriteFailed(fieldPath, err)
					}
					continue
				}
				return errors.MissingField(errors.PhaseEncode, path, f.Name, v.Type().String())
			}
			if err := writeValue(enc, f.Type, fv, fieldPath); err != nil {
				return err
			}
		}
		return nil
	}
	return errors.TypeMismatch(errors.PhaseEncode, path, v.Type().String(), s.TypeName())
}

func writeEnum(enc recbind.Encoder, s *schema.Schema, v reflect.Value, path []string) error {
	var idx int64 = -1
	switch v.Kind() {
	case reflect.String:
		sym := v.String()
		for i, candidate := range s.Symbols {
			if candidate == sym {
				idx = int64(i)
				break
			}
		}
		if idx < 0 {
			return errors.New(errors.PhaseEncode, errors.KindInvalidData).
				Path(path...).
				SchemaType(s.TypeName()).
				Value(sym).
				Detail("unknown enum symbol %q", sym).
				Build()
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		idx = v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if v.Uint() < uint64(len(s.Symbols)) {
			idx = int64(v.Uint())
		}
	case reflect.Float64:
		if f := v.Float(); f == float64(int64(f)) {
			idx = int64(f)
		}
	default:
		return errors.TypeMismatch(errors.PhaseEncode, path, v.Type().String(), s.TypeName())
	}
	if idx < 0 || idx >= int64(len(s.Symbols)) {
		return errors.IndexOutOfRange(errors.PhaseEncode, path, idx, len(s.Symbols))
	}
	return wrapWrite(path, enc.WriteEnum(int(idx)))
}

func writeFixed(enc recbind.Encoder, s *schema.Schema, v reflect.Value, path []string) error {
	var data []byte
	switch {
	case v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8:
		data = v.Bytes()
	case v.Kind() == reflect.Array && v.Type().Elem().Kind() == reflect.Uint8:
		data = make([]byte, v.Len())
		for i := range data {
			data[i] = byte(v.Index(i).Uint())
		}
	case v.Kind() == reflect.String:
		data = []byte(v.String())
	default:
		return errors.TypeMismatch(errors.PhaseEncode, path, v.Type().String(), s.TypeName())
	}
	if len(data) != s.Size {
		return errors.New(errors.PhaseEncode, errors.KindInvalidData).
			Path(path...).
			SchemaType(s.TypeName()).
			Detail("fixed size %d, got %d bytes", s.Size, len(data)).
			Build()
	}
	return wrapWrite(path, enc.WriteFixed(data))
}

func writeArray(enc recbind.Encoder, s *schema.Schema, v reflect.Value, path []string) error {
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return errors.TypeMismatch(errors.PhaseEncode, path, v.Type().String(), s.TypeName())
	}
	if err := enc.WriteArrayStart(); err != nil {
		return errors.WriteFailed(path, err)
	}
	n := v.Len()
	if n > 0 {
		if err := enc.SetItemCount(int64(n)); err != nil {
			return errors.WriteFailed(path, err)
		}
		for i := 0; i < n; i++ {
			if err := enc.StartItem(); err != nil {
				return errors.WriteFailed(path, err)
			}
			elemPath := append(append([]string{}, path...), "["+strconv.Itoa(i)+"]")
			if err := writeValue(enc, s.Items, v.Index(i), elemPath); err != nil {
				return err
			}
		}
	}
	return wrapWrite(path, enc.WriteArrayEnd())
}

func writeMap(enc recbind.Encoder, s *schema.Schema, v reflect.Value, path []string) error {
	if v.Kind() != reflect.Map || v.Type().Key().Kind() != reflect.String {
		return errors.TypeMismatch(errors.PhaseEncode, path, v.Type().String(), s.TypeName())
	}
	if err := enc.WriteMapStart(); err != nil {
		return errors.WriteFailed(path, err)
	}
	keys := v.MapKeys()
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	if len(keys) > 0 {
		if err := enc.SetItemCount(int64(len(keys))); err != nil {
			return errors.WriteFailed(path, err)
		}
		for _, k := range keys {
			if err := enc.StartItem(); err != nil {
				return errors.WriteFailed(path, err)
			}
			if err := enc.WriteString(k.String()); err != nil {
				return errors.WriteFailed(path, err)
			}
			if err := writeValue(enc, s.Values, v.MapIndex(k), append(append([]string{}, path...), k.String())); err != nil {
				return err
			}
		}
	}
	return wrapWrite(path, enc.WriteMapEnd())
}
