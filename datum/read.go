package datum

import (
	"reflect"
	"strconv"

	"github.com/wippyai/recbind"
	"github.com/wippyai/recbind/errors"
	"github.com/wippyai/recbind/internal/coerce"
	"github.com/wippyai/recbind/internal/structure"
	"github.com/wippyai/recbind/schema"
)

// growStep bounds how far a slice is grown ahead of the elements decoded.
const growStep = 1024

// Read decodes a datum written with schema s into a new value of type t.
func Read(dec recbind.Decoder, s *schema.Schema, t reflect.Type) (reflect.Value, error) {
	v := reflect.New(t).Elem()
	if err := readInto(dec, s, v, nil); err != nil {
		return reflect.Value{}, err
	}
	return v, nil
}

// ReadInto decodes a datum written with schema s into the settable value v.
func ReadInto(dec recbind.Decoder, s *schema.Schema, v reflect.Value, path []string) error {
	return readInto(dec, s, v, path)
}

func readInto(dec recbind.Decoder, s *schema.Schema, v reflect.Value, path []string) error {
	if v.Kind() == reflect.Interface {
		x, err := readAny(dec, s, path)
		if err != nil {
			return err
		}
		if x == nil {
			v.SetZero()
			return nil
		}
		xv := reflect.ValueOf(x)
		if !xv.Type().AssignableTo(v.Type()) {
			return errors.TypeMismatch(errors.PhaseDecode, path, v.Type().String(), s.TypeName())
		}
		v.Set(xv)
		return nil
	}

	if s.Kind == schema.Union {
		return readUnion(dec, s, v, path)
	}
	if s.Kind == schema.Null {
		v.SetZero()
		return nil
	}
	if v.Kind() == reflect.Pointer {
		elem := reflect.New(v.Type().Elem())
		if err := readInto(dec, s, elem.Elem(), path); err != nil {
			return err
		}
		v.Set(elem)
		return nil
	}

	switch s.Kind {
	case schema.Record:
		return readRecord(dec, s, v, path)
	case schema.Enum:
		return readEnum(dec, s, v, path)
	case schema.Fixed:
		return readFixed(dec, s, v, path)
	case schema.Array:
		return readArray(dec, s, v, path)
	case schema.Map:
		return readMap(dec, s, v, path)
	default:
		if s.Kind == schema.String && v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8 {
			str, err := dec.ReadString()
			if err != nil {
				return errors.ReadFailed(path, err)
			}
			v.SetBytes([]byte(str))
			return nil
		}
		conv, err := coerce.Resolve(s.Kind, s.Prop(schema.PropGoType), v.Type(), path)
		if err != nil {
			e := err.(*errors.Error)
			e.Phase = errors.PhaseDecode
			return e
		}
		if err := conv.ReadInto(dec, v); err != nil {
			return errors.ReadFailed(path, err)
		}
		return nil
	}
}

func readUnion(dec recbind.Decoder, s *schema.Schema, v reflect.Value, path []string) error {
	idx, err := dec.ReadIndex()
	if err != nil {
		return errors.ReadFailed(path, err)
	}
	if idx < 0 || idx >= int64(len(s.Branches)) {
		return errors.IndexOutOfRange(errors.PhaseDecode, path, idx, len(s.Branches))
	}
	branch := s.Branches[idx]
	if branch.Kind == schema.Null {
		v.SetZero()
		return nil
	}
	return readInto(dec, branch, v, path)
}

func readRecord(dec recbind.Decoder, s *schema.Schema, v reflect.Value, path []string) error {
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
				if _, err := readAny(dec, f.Type, fieldPath); err != nil {
					return err
				}
				continue
			}
			if err := readInto(dec, f.Type, v.Field(sf.Index), fieldPath); err != nil {
				return err
			}
		}
		return nil
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return errors.TypeMismatch(errors.PhaseDecode, path, v.Type().String(), s.TypeName())
		}
		if v.IsNil() {
			v.Set(reflect.MakeMapWithSize(v.Type(), len(s.Fields)))
		}
		for _, f := range s.Fields {
			fieldPath := append(append([]string{}, path...), f.Name)
			elem := reflect.New(v.Type().Elem()).Elem()
			if err := readInto(dec, f.Type, elem, fieldPath); err != nil {
				return err
			}
			v.SetMapIndex(reflect.ValueOf(f.Name).Convert(v.Type().Key()), elem)
		}
		return nil
	}
	return errors.TypeMismatch(errors.PhaseDecode, path, v.Type().String(), s.TypeName())
}

func readEnum(dec recbind.Decoder, s *schema.Schema, v reflect.Value, path []string) error {
	idx, err := dec.ReadEnum()
	if err != nil {
		return errors.ReadFailed(path, err)
	}
	if idx < 0 || idx >= len(s.Symbols) {
		return errors.IndexOutOfRange(errors.PhaseDecode, path, int64(idx), len(s.Symbols))
	}
	switch v.Kind() {
	case reflect.String:
		v.SetString(s.Symbols[idx])
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if v.OverflowInt(int64(idx)) {
			return errors.Overflow(errors.PhaseDecode, path, idx, v.Type().String())
		}
		v.SetInt(int64(idx))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if v.OverflowUint(uint64(idx)) {
			return errors.Overflow(errors.PhaseDecode, path, idx, v.Type().String())
		}
		v.SetUint(uint64(idx))
	default:
		return errors.TypeMismatch(errors.PhaseDecode, path, v.Type().String(), s.TypeName())
	}
	return nil
}

func readFixed(dec recbind.Decoder, s *schema.Schema, v reflect.Value, path []string) error {
	data, err := dec.ReadFixed(s.Size)
	if err != nil {
		return errors.ReadFailed(path, err)
	}
	switch {
	case v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8:
		v.SetBytes(data)
	case v.Kind() == reflect.Array && v.Type().Elem().Kind() == reflect.Uint8 && v.Len() == s.Size:
		reflect.Copy(v, reflect.ValueOf(data))
	default:
		return errors.TypeMismatch(errors.PhaseDecode, path, v.Type().String(), s.TypeName())
	}
	return nil
}

func readArray(dec recbind.Decoder, s *schema.Schema, v reflect.Value, path []string) error {
	if v.Kind() != reflect.Slice {
		return errors.TypeMismatch(errors.PhaseDecode, path, v.Type().String(), s.TypeName())
	}
	out := reflect.New(v.Type()).Elem()
	out.Set(reflect.MakeSlice(v.Type(), 0, 0))
	n, err := dec.ReadArrayStart()
	for ; err == nil && n > 0; n, err = dec.ArrayNext() {
		for ; n > 0; n-- {
			i := out.Len()
			if i == out.Cap() {
				out.Grow(int(min(n, growStep)))
			}
			out.SetLen(i + 1)
			elemPath := append(append([]string{}, path...), "["+strconv.Itoa(i)+"]")
			if err := readInto(dec, s.Items, out.Index(i), elemPath); err != nil {
				return err
			}
		}
	}
	if err != nil {
		return errors.ReadFailed(path, err)
	}
	v.Set(out)
	return nil
}

func readMap(dec recbind.Decoder, s *schema.Schema, v reflect.Value, path []string) error {
	if v.Kind() != reflect.Map || v.Type().Key().Kind() != reflect.String {
		return errors.TypeMismatch(errors.PhaseDecode, path, v.Type().String(), s.TypeName())
	}
	out := reflect.MakeMap(v.Type())
	n, err := dec.ReadMapStart()
	for ; err == nil && n > 0; n, err = dec.MapNext() {
		for i := int64(0); i < n; i++ {
			key, err := dec.ReadString()
			if err != nil {
				return errors.ReadFailed(path, err)
			}
			elem := reflect.New(v.Type().Elem()).Elem()
			if err := readInto(dec, s.Values, elem, append(append([]string{}, path...), key)); err != nil {
				return err
			}
			out.SetMapIndex(reflect.ValueOf(key).Convert(v.Type().Key()), elem)
		}
	}
	if err != nil {
		return errors.ReadFailed(path, err)
	}
	v.Set(out)
	return nil
}
