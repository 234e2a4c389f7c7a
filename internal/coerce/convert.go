package coerce

import (
	"math"
	"reflect"
	"unsafe"

	"github.com/wippyai/recbind"
	"github.com/wippyai/recbind/errors"
	"github.com/wippyai/recbind/schema"
)

// ReadFunc decodes one value into the memory at p.
type ReadFunc func(dec recbind.Decoder, p unsafe.Pointer) error

// WriteFunc encodes the value at p.
type WriteFunc func(enc recbind.Encoder, p unsafe.Pointer) error

// ReadValue decodes a value of the written kind and returns it converted to
// the declared type. The conversion is chosen on every call.
func (c Conversion) ReadValue(dec recbind.Decoder) (reflect.Value, error) {
	v := reflect.New(c.Declared).Elem()
	if err := c.ReadInto(dec, v); err != nil {
		return reflect.Value{}, err
	}
	return v, nil
}

// ReadInto decodes into the settable value v of the declared type.
func (c Conversion) ReadInto(dec recbind.Decoder, v reflect.Value) error {
	switch c.Written {
	case schema.Boolean:
		b, err := dec.ReadBoolean()
		if err != nil {
			return err
		}
		if c.Target != reflect.Bool {
			return c.storeInt(v, boolInt(b))
		}
		v.SetBool(b)
	case schema.Int:
		n, err := dec.ReadInt()
		if err != nil {
			return err
		}
		return c.storeInt(v, int64(n))
	case schema.Long:
		n, err := dec.ReadLong()
		if err != nil {
			return err
		}
		return c.storeInt(v, n)
	case schema.Float:
		f, err := dec.ReadFloat()
		if err != nil {
			return err
		}
		v.SetFloat(float64(f))
	case schema.Double:
		f, err := dec.ReadDouble()
		if err != nil {
			return err
		}
		v.SetFloat(f)
	case schema.String:
		s, err := dec.ReadString()
		if err != nil {
			return err
		}
		v.SetString(s)
	case schema.Bytes:
		b, err := dec.ReadBytes()
		if err != nil {
			return err
		}
		v.SetBytes(b)
	}
	return nil
}

func (c Conversion) storeInt(v reflect.Value, n int64) error {
	switch c.Target {
	case reflect.Float32:
		v.SetFloat(float64(float32(n)))
	case reflect.Float64:
		v.SetFloat(float64(n))
	case reflect.Uint8, reflect.Uint16:
		if n < 0 || v.OverflowUint(uint64(n)) {
			return c.readOverflow(n)
		}
		v.SetUint(uint64(n))
	default:
		if v.OverflowInt(n) {
			return c.readOverflow(n)
		}
		v.SetInt(n)
	}
	return nil
}

// WriteValue encodes v, a value of the declared type, as the written kind.
func (c Conversion) WriteValue(enc recbind.Encoder, v reflect.Value) error {
	switch c.Written {
	case schema.Boolean:
		if c.Target == reflect.Bool {
			return enc.WriteBoolean(v.Bool())
		}
		n, err := c.intOf(v)
		if err != nil {
			return err
		}
		if n != 0 && n != 1 {
			return c.writeOverflow(n)
		}
		return enc.WriteBoolean(n == 1)
	case schema.Int:
		n, err := c.intOf(v)
		if err != nil {
			return err
		}
		lo, hi := intRange(c.Source)
		if n < lo || n > hi {
			return c.writeOverflow(n)
		}
		return enc.WriteInt(int32(n))
	case schema.Long:
		n, err := c.intOf(v)
		if err != nil {
			return err
		}
		return enc.WriteLong(n)
	case schema.Float:
		return enc.WriteFloat(float32(v.Float()))
	case schema.Double:
		return enc.WriteDouble(v.Float())
	case schema.String:
		return enc.WriteString(v.String())
	case schema.Bytes:
		return enc.WriteBytes(v.Bytes())
	}
	return nil
}

func (c Conversion) intOf(v reflect.Value) (int64, error) {
	switch c.Target {
	case reflect.Uint8, reflect.Uint16:
		return int64(v.Uint()), nil
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		n, ok := floatToInt(f)
		if !ok {
			return 0, c.writeOverflow(f)
		}
		return n, nil
	default:
		return v.Int(), nil
	}
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// floatToInt converts an integral float inside the int64 range.
func floatToInt(f float64) (int64, bool) {
	if f != math.Trunc(f) || f < -(1<<63) || f >= 1<<63 {
		return 0, false
	}
	return int64(f), true
}

// Reader returns a decoder for the declared type with the conversion fixed
// ahead of time. p must point at a value of the declared type.
func (c Conversion) Reader() ReadFunc {
	switch c.Written {
	case schema.Boolean:
		if c.Target != reflect.Bool {
			return c.intReader(func(dec recbind.Decoder) (int64, error) {
				b, err := dec.ReadBoolean()
				return boolInt(b), err
			})
		}
		return func(dec recbind.Decoder, p unsafe.Pointer) error {
			b, err := dec.ReadBoolean()
			if err != nil {
				return err
			}
			*(*bool)(p) = b
			return nil
		}
	case schema.String:
		return func(dec recbind.Decoder, p unsafe.Pointer) error {
			s, err := dec.ReadString()
			if err != nil {
				return err
			}
			*(*string)(p) = s
			return nil
		}
	case schema.Bytes:
		return func(dec recbind.Decoder, p unsafe.Pointer) error {
			b, err := dec.ReadBytes()
			if err != nil {
				return err
			}
			*(*[]byte)(p) = b
			return nil
		}
	case schema.Double:
		return func(dec recbind.Decoder, p unsafe.Pointer) error {
			f, err := dec.ReadDouble()
			if err != nil {
				return err
			}
			*(*float64)(p) = f
			return nil
		}
	case schema.Float:
		if c.Target == reflect.Float64 {
			return func(dec recbind.Decoder, p unsafe.Pointer) error {
				f, err := dec.ReadFloat()
				if err != nil {
					return err
				}
				*(*float64)(p) = float64(f)
				return nil
			}
		}
		return func(dec recbind.Decoder, p unsafe.Pointer) error {
			f, err := dec.ReadFloat()
			if err != nil {
				return err
			}
			*(*float32)(p) = f
			return nil
		}
	case schema.Int:
		return c.intReader(func(dec recbind.Decoder) (int64, error) {
			n, err := dec.ReadInt()
			return int64(n), err
		})
	case schema.Long:
		return c.intReader(func(dec recbind.Decoder) (int64, error) {
			return dec.ReadLong()
		})
	}
	return nil
}

func (c Conversion) intReader(read func(recbind.Decoder) (int64, error)) ReadFunc {
	lo, hi := intRange(c.Target)
	switch c.Target {
	case reflect.Int64:
		return func(dec recbind.Decoder, p unsafe.Pointer) error {
			n, err := read(dec)
			if err != nil {
				return err
			}
			*(*int64)(p) = n
			return nil
		}
	case reflect.Int:
		return func(dec recbind.Decoder, p unsafe.Pointer) error {
			n, err := read(dec)
			if err != nil {
				return err
			}
			*(*int)(p) = int(n)
			return nil
		}
	case reflect.Int32:
		return func(dec recbind.Decoder, p unsafe.Pointer) error {
			n, err := read(dec)
			if err != nil {
				return err
			}
			if n < lo || n > hi {
				return c.readOverflow(n)
			}
			*(*int32)(p) = int32(n)
			return nil
		}
	case reflect.Int16:
		return func(dec recbind.Decoder, p unsafe.Pointer) error {
			n, err := read(dec)
			if err != nil {
				return err
			}
			if n < lo || n > hi {
				return c.readOverflow(n)
			}
			*(*int16)(p) = int16(n)
			return nil
		}
	case reflect.Int8:
		return func(dec recbind.Decoder, p unsafe.Pointer) error {
			n, err := read(dec)
			if err != nil {
				return err
			}
			if n < lo || n > hi {
				return c.readOverflow(n)
			}
			*(*int8)(p) = int8(n)
			return nil
		}
	case reflect.Uint16:
		return func(dec recbind.Decoder, p unsafe.Pointer) error {
			n, err := read(dec)
			if err != nil {
				return err
			}
			if n < lo || n > hi {
				return c.readOverflow(n)
			}
			*(*uint16)(p) = uint16(n)
			return nil
		}
	case reflect.Uint8:
		return func(dec recbind.Decoder, p unsafe.Pointer) error {
			n, err := read(dec)
			if err != nil {
				return err
			}
			if n < lo || n > hi {
				return c.readOverflow(n)
			}
			*(*uint8)(p) = uint8(n)
			return nil
		}
	case reflect.Float32:
		return func(dec recbind.Decoder, p unsafe.Pointer) error {
			n, err := read(dec)
			if err != nil {
				return err
			}
			*(*float32)(p) = float32(n)
			return nil
		}
	case reflect.Float64:
		return func(dec recbind.Decoder, p unsafe.Pointer) error {
			n, err := read(dec)
			if err != nil {
				return err
			}
			*(*float64)(p) = float64(n)
			return nil
		}
	}
	return nil
}

// Writer returns an encoder for the declared type with the conversion fixed
// ahead of time. p must point at a value of the declared type.
func (c Conversion) Writer() WriteFunc {
	switch c.Written {
	case schema.Boolean:
		if c.Target != reflect.Bool {
			load := c.intLoader()
			return func(enc recbind.Encoder, p unsafe.Pointer) error {
				n, err := load(p)
				if err != nil {
					return err
				}
				if n != 0 && n != 1 {
					return c.writeOverflow(n)
				}
				return enc.WriteBoolean(n == 1)
			}
		}
		return func(enc recbind.Encoder, p unsafe.Pointer) error {
			return enc.WriteBoolean(*(*bool)(p))
		}
	case schema.String:
		return func(enc recbind.Encoder, p unsafe.Pointer) error {
			return enc.WriteString(*(*string)(p))
		}
	case schema.Bytes:
		return func(enc recbind.Encoder, p unsafe.Pointer) error {
			return enc.WriteBytes(*(*[]byte)(p))
		}
	case schema.Double:
		return func(enc recbind.Encoder, p unsafe.Pointer) error {
			return enc.WriteDouble(*(*float64)(p))
		}
	case schema.Float:
		if c.Target == reflect.Float64 {
			return func(enc recbind.Encoder, p unsafe.Pointer) error {
				return enc.WriteFloat(float32(*(*float64)(p)))
			}
		}
		return func(enc recbind.Encoder, p unsafe.Pointer) error {
			return enc.WriteFloat(*(*float32)(p))
		}
	case schema.Int:
		lo, hi := intRange(c.Source)
		load := c.intLoader()
		return func(enc recbind.Encoder, p unsafe.Pointer) error {
			n, err := load(p)
			if err != nil {
				return err
			}
			if n < lo || n > hi {
				return c.writeOverflow(n)
			}
			return enc.WriteInt(int32(n))
		}
	case schema.Long:
		if c.Target == reflect.Int64 {
			return func(enc recbind.Encoder, p unsafe.Pointer) error {
				return enc.WriteLong(*(*int64)(p))
			}
		}
		load := c.intLoader()
		return func(enc recbind.Encoder, p unsafe.Pointer) error {
			n, err := load(p)
			if err != nil {
				return err
			}
			return enc.WriteLong(n)
		}
	}
	return nil
}

func (c Conversion) intLoader() func(p unsafe.Pointer) (int64, error) {
	switch c.Target {
	case reflect.Int8:
		return func(p unsafe.Pointer) (int64, error) { return int64(*(*int8)(p)), nil }
	case reflect.Int16:
		return func(p unsafe.Pointer) (int64, error) { return int64(*(*int16)(p)), nil }
	case reflect.Int32:
		return func(p unsafe.Pointer) (int64, error) { return int64(*(*int32)(p)), nil }
	case reflect.Int:
		return func(p unsafe.Pointer) (int64, error) { return int64(*(*int)(p)), nil }
	case reflect.Uint8:
		return func(p unsafe.Pointer) (int64, error) { return int64(*(*uint8)(p)), nil }
	case reflect.Uint16:
		return func(p unsafe.Pointer) (int64, error) { return int64(*(*uint16)(p)), nil }
	case reflect.Float32:
		return func(p unsafe.Pointer) (int64, error) {
			f := float64(*(*float32)(p))
			n, ok := floatToInt(f)
			if !ok {
				return 0, c.writeOverflow(f)
			}
			return n, nil
		}
	case reflect.Float64:
		return func(p unsafe.Pointer) (int64, error) {
			f := *(*float64)(p)
			n, ok := floatToInt(f)
			if !ok {
				return 0, c.writeOverflow(f)
			}
			return n, nil
		}
	default:
		return func(p unsafe.Pointer) (int64, error) { return *(*int64)(p), nil }
	}
}

func (c Conversion) readOverflow(v any) error {
	return errors.Overflow(errors.PhaseDecode, nil, v, c.Declared.String())
}

func (c Conversion) writeOverflow(v any) error {
	return errors.Overflow(errors.PhaseEncode, nil, v, wireName(c.Written, c.Hint))
}
