package bind

import (
	"reflect"
	"slices"
	"unsafe"

	"github.com/wippyai/recbind"
	"github.com/wippyai/recbind/datum"
	"github.com/wippyai/recbind/errors"
	"github.com/wippyai/recbind/internal/coerce"
	"github.com/wippyai/recbind/schema"
)

// The specialized executor resolves every binding once into a closure over
// raw memory. Reads decode straight into the destination value; there is no
// per-call dispatch on strategy.

type (
	readFunc  = coerce.ReadFunc
	writeFunc = coerce.WriteFunc
)

type fieldOp struct {
	name   string
	offset uintptr
	read   readFunc
	write  writeFunc
}

func (p *recordPlan) generate() {
	ops := make([]fieldOp, 0, len(p.bindings))
	for i := range p.bindings {
		b := &p.bindings[i]
		if b.Strategy == Default {
			continue
		}
		ops = append(ops, fieldOp{
			name:   b.Name,
			offset: b.Struct.Offset,
			read:   b.codec.read,
			write:  b.codec.write,
		})
	}

	p.reader = func(dec recbind.Decoder, base unsafe.Pointer) error {
		for i := range ops {
			op := &ops[i]
			if err := op.read(dec, unsafe.Add(base, op.offset)); err != nil {
				return errors.ReadFailed([]string{op.name}, err)
			}
		}
		return nil
	}
	p.writer = func(enc recbind.Encoder, base unsafe.Pointer) error {
		for i := range ops {
			op := &ops[i]
			if err := op.write(enc, unsafe.Add(base, op.offset)); err != nil {
				return errors.WriteFailed([]string{op.name}, err)
			}
		}
		return nil
	}
}

// readInto and writeFrom go through the plan so that codecs generated while
// a recursive plan is still being bound see its final closures.
func (p *recordPlan) readInto(dec recbind.Decoder, base unsafe.Pointer) error {
	return p.reader(dec, base)
}

func (p *recordPlan) writeFrom(enc recbind.Encoder, base unsafe.Pointer) error {
	return p.writer(enc, base)
}

func (vc *valueCodec) generate() {
	switch vc.strategy {
	case Direct:
		vc.read, vc.write = vc.conv.Reader(), vc.conv.Writer()
	case Custom:
		if vc.plan != nil {
			vc.generateRecord()
		} else {
			vc.generateCustom()
		}
	case Array:
		vc.generateArray()
	case Union:
		vc.generateUnion()
	default:
		vc.generateDatum()
	}
}

func (vc *valueCodec) generateRecord() {
	plan := vc.plan
	if !vc.indirect {
		vc.read, vc.write = plan.readInto, plan.writeFrom
		return
	}
	typ := plan.typ
	vc.read = func(dec recbind.Decoder, p unsafe.Pointer) error {
		np := reflect.New(typ).UnsafePointer()
		if err := plan.readInto(dec, np); err != nil {
			return err
		}
		*(*unsafe.Pointer)(p) = np
		return nil
	}
	ptrType := vc.typ.String()
	vc.write = func(enc recbind.Encoder, p unsafe.Pointer) error {
		np := *(*unsafe.Pointer)(p)
		if np == nil {
			return errors.NilPointer(errors.PhaseEncode, nil, ptrType)
		}
		return plan.writeFrom(enc, np)
	}
}

func (vc *valueCodec) generateCustom() {
	custom, typ := vc.custom, vc.typ
	vc.read = func(dec recbind.Decoder, p unsafe.Pointer) error {
		x, err := custom.Read(dec)
		if err != nil {
			return err
		}
		v, err := vc.customValue(x)
		if err != nil {
			return err
		}
		reflect.NewAt(typ, p).Elem().Set(v)
		return nil
	}
	vc.write = func(enc recbind.Encoder, p unsafe.Pointer) error {
		return custom.Write(enc, reflect.NewAt(typ, p).Elem().Interface())
	}
}

func (vc *valueCodec) generateDatum() {
	s, typ := vc.schema, vc.typ
	vc.read = func(dec recbind.Decoder, p unsafe.Pointer) error {
		return datum.ReadInto(dec, s, reflect.NewAt(typ, p).Elem(), nil)
	}
	vc.write = func(enc recbind.Encoder, p unsafe.Pointer) error {
		return datum.Write(enc, s, reflect.NewAt(typ, p).Elem())
	}
}

func (vc *valueCodec) generateArray() {
	if vc.bulk && vc.conv.IsIdentity() && vc.typ.Elem().Kind() != reflect.Interface {
		if r, w, ok := bulkFuncs(vc.conv); ok {
			vc.read, vc.write = r, w
			return
		}
	}

	typ := vc.typ
	size := typ.Elem().Size()
	elemRead, elemWrite := vc.elem.read, vc.elem.write

	vc.read = func(dec recbind.Decoder, p unsafe.Pointer) error {
		out := reflect.NewAt(typ, p).Elem()
		out.Set(reflect.MakeSlice(typ, 0, 0))

		n, err := dec.ReadArrayStart()
		for ; err == nil && n > 0; n, err = dec.ArrayNext() {
			for ; n > 0; n-- {
				i := out.Len()
				if i == out.Cap() {
					out.Grow(int(min(n, growStep)))
				}
				out.SetLen(i + 1)
				if err := elemRead(dec, unsafe.Add(out.UnsafePointer(), uintptr(i)*size)); err != nil {
					return errors.ReadFailed([]string{elemSeg(i)}, err)
				}
			}
		}
		return err
	}
	vc.write = func(enc recbind.Encoder, p unsafe.Pointer) error {
		v := reflect.NewAt(typ, p).Elem()
		if err := enc.WriteArrayStart(); err != nil {
			return err
		}
		if n := v.Len(); n > 0 {
			if err := enc.SetItemCount(int64(n)); err != nil {
				return err
			}
			base := v.UnsafePointer()
			for i := 0; i < n; i++ {
				if err := enc.StartItem(); err != nil {
					return err
				}
				if err := elemWrite(enc, unsafe.Add(base, uintptr(i)*size)); err != nil {
					return errors.WriteFailed([]string{elemSeg(i)}, err)
				}
			}
		}
		return enc.WriteArrayEnd()
	}
}

// bulkFuncs returns typed slice codecs for arrays of primitives stored
// without conversion.
func bulkFuncs(c coerce.Conversion) (readFunc, writeFunc, bool) {
	switch {
	case c.Written == schema.Boolean:
		return bulkReader(recbind.Decoder.ReadBoolean), bulkWriter(recbind.Encoder.WriteBoolean), true
	case c.Written == schema.Int && c.Target == reflect.Int32:
		return bulkReader(recbind.Decoder.ReadInt), bulkWriter(recbind.Encoder.WriteInt), true
	case c.Written == schema.Long && c.Target == reflect.Int64:
		return bulkReader(recbind.Decoder.ReadLong), bulkWriter(recbind.Encoder.WriteLong), true
	case c.Written == schema.Float && c.Target == reflect.Float32:
		return bulkReader(recbind.Decoder.ReadFloat), bulkWriter(recbind.Encoder.WriteFloat), true
	case c.Written == schema.Double && c.Target == reflect.Float64:
		return bulkReader(recbind.Decoder.ReadDouble), bulkWriter(recbind.Encoder.WriteDouble), true
	case c.Written == schema.String && c.Target == reflect.String:
		return bulkReader(recbind.Decoder.ReadString), bulkWriter(recbind.Encoder.WriteString), true
	}
	return nil, nil, false
}

// bulkReader decodes into a []T, or a slice of any type with T's layout.
func bulkReader[T any](read func(recbind.Decoder) (T, error)) readFunc {
	return func(dec recbind.Decoder, p unsafe.Pointer) error {
		out := make([]T, 0)
		n, err := dec.ReadArrayStart()
		for ; err == nil && n > 0; n, err = dec.ArrayNext() {
			out = slices.Grow(out, int(min(n, growStep)))
			for ; n > 0; n-- {
				x, err := read(dec)
				if err != nil {
					return errors.ReadFailed([]string{elemSeg(len(out))}, err)
				}
				out = append(out, x)
			}
		}
		if err != nil {
			return err
		}
		*(*[]T)(p) = out
		return nil
	}
}

func bulkWriter[T any](write func(recbind.Encoder, T) error) writeFunc {
	return func(enc recbind.Encoder, p unsafe.Pointer) error {
		s := *(*[]T)(p)
		if err := enc.WriteArrayStart(); err != nil {
			return err
		}
		if len(s) > 0 {
			if err := enc.SetItemCount(int64(len(s))); err != nil {
				return err
			}
			for i, x := range s {
				if err := enc.StartItem(); err != nil {
					return err
				}
				if err := write(enc, x); err != nil {
					return errors.WriteFailed([]string{elemSeg(i)}, err)
				}
			}
		}
		return enc.WriteArrayEnd()
	}
}

func (vc *valueCodec) generateUnion() {
	count := len(vc.branches)
	reads := make([]readFunc, count)
	for i, br := range vc.branches {
		if br != nil {
			reads[i] = br.read
		}
	}
	typ, indirect := vc.typ, vc.indirect
	zero := zeroFunc(typ)

	vc.read = func(dec recbind.Decoder, p unsafe.Pointer) error {
		idx, err := dec.ReadIndex()
		if err != nil {
			return err
		}
		if idx < 0 || idx >= int64(count) {
			return errors.IndexOutOfRange(errors.PhaseDecode, nil, idx, count)
		}
		r := reads[idx]
		if r == nil {
			zero(p)
			return nil
		}
		if indirect {
			np := reflect.New(typ.Elem()).UnsafePointer()
			if err := r(dec, np); err != nil {
				return err
			}
			*(*unsafe.Pointer)(p) = np
			return nil
		}
		return r(dec, p)
	}

	nilAt := nilFunc(typ)
	nullBranch, branch := vc.nullBranch, vc.writeBranch
	var write writeFunc
	if branch >= 0 {
		write = vc.branches[branch].write
	}
	schemaName := vc.schema.TypeName()
	vc.write = func(enc recbind.Encoder, p unsafe.Pointer) error {
		if nilAt(p) {
			if nullBranch < 0 {
				return errors.NilPointer(errors.PhaseEncode, nil, typ.String())
			}
			return enc.WriteIndex(nullBranch)
		}
		if write == nil {
			return errors.TypeMismatch(errors.PhaseEncode, nil, typ.String(), schemaName)
		}
		if err := enc.WriteIndex(branch); err != nil {
			return err
		}
		if indirect {
			p = *(*unsafe.Pointer)(p)
		}
		return write(enc, p)
	}
}

// nilFunc reports whether the value of type t at p is nil. Pointers, maps
// and slices all start with a data pointer that is nil only for nil values.
func nilFunc(t reflect.Type) func(unsafe.Pointer) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice:
		return func(p unsafe.Pointer) bool { return *(*unsafe.Pointer)(p) == nil }
	case reflect.Interface:
		return func(p unsafe.Pointer) bool { return reflect.NewAt(t, p).Elem().IsNil() }
	}
	return func(unsafe.Pointer) bool { return false }
}

func zeroFunc(t reflect.Type) func(unsafe.Pointer) {
	if t.Kind() == reflect.Pointer {
		return func(p unsafe.Pointer) { *(*unsafe.Pointer)(p) = nil }
	}
	return func(p unsafe.Pointer) { reflect.NewAt(t, p).Elem().SetZero() }
}
