// Package coerce decides which written primitive kinds may be stored in which
// declared Go types, and performs the conversions.
//
// The legal widenings are int to long, float or double; long to float or
// double; and float to double. Narrow integer types (int8, int16, uint8,
// uint16) travel as int, with a go.type schema property naming the type
// they were written from. An int-family value may be read into another
// int-family type only if every value of the written type fits. A boolean
// promotes to an int of 0 or 1 and widens from there.
package coerce

import (
	"math"
	"reflect"

	"github.com/wippyai/recbind/errors"
	"github.com/wippyai/recbind/schema"
)

var bytesType = reflect.TypeOf([]byte(nil))

// Conversion is the resolved mapping between a written primitive and a
// declared Go type. It is immutable and safe for concurrent use.
type Conversion struct {
	Written  schema.Kind
	Hint     string
	Declared reflect.Type
	Source   reflect.Kind // natural Go kind of the written value
	Target   reflect.Kind // kind of Declared, with []byte reported as Slice
}

// IsIdentity reports whether the value is stored without conversion.
func (c Conversion) IsIdentity() bool {
	return c.Source == c.Target || (isLong(c.Source) && isLong(c.Target))
}

// Resolve checks that a value written as kind (with the go.type hint) can be
// stored in declared, once, at bind time.
func Resolve(written schema.Kind, hint string, declared reflect.Type, path []string) (Conversion, error) {
	c := Conversion{Written: written, Hint: hint, Declared: declared}
	target, ok := scalarKind(declared)
	if !ok {
		return c, mismatch(written, hint, declared, path, "not a scalar type")
	}
	source, ok := sourceKind(written, hint)
	if !ok {
		return c, mismatch(written, hint, declared, path, "not a primitive kind")
	}
	c.Source, c.Target = source, target
	if !legal(source, target) {
		return c, mismatch(written, hint, declared, path, "no widening path")
	}
	return c, nil
}

// IsScalar reports whether t can hold a primitive schema value directly.
func IsScalar(t reflect.Type) bool {
	_, ok := scalarKind(t)
	return ok
}

// Natural returns the Go type a value of kind naturally decodes to.
func Natural(kind schema.Kind, hint string) reflect.Type {
	switch kind {
	case schema.Boolean:
		return reflect.TypeOf(false)
	case schema.Int:
		switch hint {
		case "int8":
			return reflect.TypeOf(int8(0))
		case "int16":
			return reflect.TypeOf(int16(0))
		case "uint8":
			return reflect.TypeOf(uint8(0))
		case "uint16":
			return reflect.TypeOf(uint16(0))
		}
		return reflect.TypeOf(int32(0))
	case schema.Long:
		return reflect.TypeOf(int64(0))
	case schema.Float:
		return reflect.TypeOf(float32(0))
	case schema.Double:
		return reflect.TypeOf(float64(0))
	case schema.String:
		return reflect.TypeOf("")
	case schema.Bytes:
		return bytesType
	}
	return nil
}

// KindOf returns the natural schema kind and go.type hint for a Go scalar.
func KindOf(t reflect.Type) (schema.Kind, string, bool) {
	k, ok := scalarKind(t)
	if !ok {
		return 0, "", false
	}
	switch k {
	case reflect.Bool:
		return schema.Boolean, "", true
	case reflect.Int8:
		return schema.Int, "int8", true
	case reflect.Int16:
		return schema.Int, "int16", true
	case reflect.Uint8:
		return schema.Int, "uint8", true
	case reflect.Uint16:
		return schema.Int, "uint16", true
	case reflect.Int32:
		return schema.Int, "", true
	case reflect.Int, reflect.Int64:
		return schema.Long, "", true
	case reflect.Float32:
		return schema.Float, "", true
	case reflect.Float64:
		return schema.Double, "", true
	case reflect.String:
		return schema.String, "", true
	default:
		return schema.Bytes, "", true
	}
}

func scalarKind(t reflect.Type) (reflect.Kind, bool) {
	if t == nil {
		return 0, false
	}
	switch k := t.Kind(); k {
	case reflect.Bool, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int,
		reflect.Uint8, reflect.Uint16, reflect.Float32, reflect.Float64, reflect.String:
		return k, true
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return reflect.Slice, true
		}
	}
	return 0, false
}

func sourceKind(written schema.Kind, hint string) (reflect.Kind, bool) {
	switch written {
	case schema.Boolean:
		return reflect.Bool, true
	case schema.Int:
		return Natural(written, hint).Kind(), true
	case schema.Long:
		return reflect.Int64, true
	case schema.Float:
		return reflect.Float32, true
	case schema.Double:
		return reflect.Float64, true
	case schema.String:
		return reflect.String, true
	case schema.Bytes:
		return reflect.Slice, true
	}
	return 0, false
}

func legal(source, target reflect.Kind) bool {
	if source == target {
		return true
	}
	switch {
	case isIntFamily(source):
		if isIntFamily(target) {
			smin, smax := intRange(source)
			tmin, tmax := intRange(target)
			return tmin <= smin && smax <= tmax
		}
		return isLong(target) || target == reflect.Float32 || target == reflect.Float64
	case isLong(source):
		return isLong(target) || target == reflect.Float32 || target == reflect.Float64
	case source == reflect.Bool:
		return legal(reflect.Int32, target)
	case source == reflect.Float32:
		return target == reflect.Float64
	}
	return false
}

func isIntFamily(k reflect.Kind) bool {
	switch k {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Uint8, reflect.Uint16:
		return true
	}
	return false
}

func isLong(k reflect.Kind) bool {
	return k == reflect.Int64 || k == reflect.Int
}

func intRange(k reflect.Kind) (int64, int64) {
	switch k {
	case reflect.Int8:
		return math.MinInt8, math.MaxInt8
	case reflect.Int16:
		return math.MinInt16, math.MaxInt16
	case reflect.Uint8:
		return 0, math.MaxUint8
	case reflect.Uint16:
		return 0, math.MaxUint16
	case reflect.Int32:
		return math.MinInt32, math.MaxInt32
	default:
		return math.MinInt64, math.MaxInt64
	}
}

// wireName names the written type for messages.
func wireName(written schema.Kind, hint string) string {
	if hint != "" {
		return written.String() + "(" + hint + ")"
	}
	return written.String()
}

func mismatch(written schema.Kind, hint string, declared reflect.Type, path []string, detail string) error {
	goType := "<nil>"
	if declared != nil {
		goType = declared.String()
	}
	return errors.New(errors.PhaseBind, errors.KindTypeMismatch).
		Path(path...).
		GoType(goType).
		SchemaType(wireName(written, hint)).
		Detail("%s", detail).
		Build()
}
