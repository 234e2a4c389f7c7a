package bind

import (
	"reflect"
	"strconv"

	"github.com/wippyai/recbind"
	"github.com/wippyai/recbind/datum"
	"github.com/wippyai/recbind/errors"
)

// The generic executor walks the bindings with reflection on every call.

// growStep bounds how far a slice is grown ahead of the elements actually
// decoded, so that a corrupt block count cannot force a huge allocation.
const growStep = 1024

func elemSeg(i int) string {
	return "[" + strconv.Itoa(i) + "]"
}

func (p *recordPlan) readValue(dec recbind.Decoder) (reflect.Value, error) {
	args := make([]reflect.Value, p.st.NumSlots())
	for i := range p.bindings {
		b := &p.bindings[i]
		if b.Strategy == Default {
			args[b.Slot] = b.zero
			continue
		}
		v, err := b.codec.readValue(dec)
		if err != nil {
			return reflect.Value{}, errors.ReadFailed([]string{b.Name}, err)
		}
		args[b.Slot] = v
	}
	return p.construct(args), nil
}

// construct builds a struct value from values ordered by slot.
func (p *recordPlan) construct(args []reflect.Value) reflect.Value {
	out := reflect.New(p.typ).Elem()
	for slot := range p.st.Fields {
		out.Field(p.st.Fields[slot].Index).Set(args[slot])
	}
	return out
}

func (p *recordPlan) writeValue(enc recbind.Encoder, v reflect.Value) error {
	for i := range p.bindings {
		b := &p.bindings[i]
		if b.Strategy == Default {
			continue
		}
		if err := b.codec.writeValue(enc, v.Field(b.Struct.Index)); err != nil {
			return errors.WriteFailed([]string{b.Name}, err)
		}
	}
	return nil
}

func (vc *valueCodec) readValue(dec recbind.Decoder) (reflect.Value, error) {
	switch vc.strategy {
	case Direct:
		return vc.conv.ReadValue(dec)
	case Custom:
		if vc.plan == nil {
			x, err := vc.custom.Read(dec)
			if err != nil {
				return reflect.Value{}, err
			}
			return vc.customValue(x)
		}
		v, err := vc.plan.readValue(dec)
		if err != nil {
			return reflect.Value{}, err
		}
		if vc.indirect {
			ptr := reflect.New(vc.plan.typ)
			ptr.Elem().Set(v)
			return ptr, nil
		}
		return v, nil
	case Array:
		return vc.readArray(dec)
	case Union:
		return vc.readUnion(dec)
	default:
		return datum.Read(dec, vc.schema, vc.typ)
	}
}

func (vc *valueCodec) readArray(dec recbind.Decoder) (reflect.Value, error) {
	out := reflect.New(vc.typ).Elem()
	out.Set(reflect.MakeSlice(vc.typ, 0, 0))

	n, err := dec.ReadArrayStart()
	for ; err == nil && n > 0; n, err = dec.ArrayNext() {
		for ; n > 0; n-- {
			i := out.Len()
			if i == out.Cap() {
				out.Grow(int(min(n, growStep)))
			}
			out.SetLen(i + 1)
			if vc.bulk {
				if err := vc.conv.ReadInto(dec, out.Index(i)); err != nil {
					return reflect.Value{}, errors.ReadFailed([]string{elemSeg(i)}, err)
				}
				continue
			}
			v, err := vc.elem.readValue(dec)
			if err != nil {
				return reflect.Value{}, errors.ReadFailed([]string{elemSeg(i)}, err)
			}
			out.Index(i).Set(v)
		}
	}
	if err != nil {
		return reflect.Value{}, err
	}
	return out, nil
}

func (vc *valueCodec) readUnion(dec recbind.Decoder) (reflect.Value, error) {
	idx, err := dec.ReadIndex()
	if err != nil {
		return reflect.Value{}, err
	}
	if idx < 0 || idx >= int64(len(vc.branches)) {
		return reflect.Value{}, errors.IndexOutOfRange(errors.PhaseDecode, nil, idx, len(vc.branches))
	}
	br := vc.branches[idx]
	if br == nil {
		return reflect.Zero(vc.typ), nil
	}
	v, err := br.readValue(dec)
	if err != nil {
		return reflect.Value{}, err
	}
	if vc.indirect {
		ptr := reflect.New(vc.typ.Elem())
		ptr.Elem().Set(v)
		return ptr, nil
	}
	return v, nil
}

// customValue converts what a custom encoding returned to the bound type.
func (vc *valueCodec) customValue(x any) (reflect.Value, error) {
	if x == nil {
		return reflect.Zero(vc.typ), nil
	}
	xv := reflect.ValueOf(x)
	switch {
	case xv.Type().AssignableTo(vc.typ):
		out := reflect.New(vc.typ).Elem()
		out.Set(xv)
		return out, nil
	case vc.typ.Kind() != reflect.Interface && xv.Type().ConvertibleTo(vc.typ):
		return xv.Convert(vc.typ), nil
	}
	return reflect.Value{}, errors.New(errors.PhaseDecode, errors.KindTypeMismatch).
		GoType(vc.typ.String()).
		SchemaType(vc.schema.TypeName()).
		Detail("custom encoding returned %T", x).
		Build()
}

func (vc *valueCodec) writeValue(enc recbind.Encoder, v reflect.Value) error {
	switch vc.strategy {
	case Direct:
		return vc.conv.WriteValue(enc, v)
	case Custom:
		if vc.plan == nil {
			return vc.custom.Write(enc, v.Interface())
		}
		if vc.indirect {
			if v.IsNil() {
				return errors.NilPointer(errors.PhaseEncode, nil, vc.typ.String())
			}
			v = v.Elem()
		}
		return vc.plan.writeValue(enc, v)
	case Array:
		return vc.writeArray(enc, v)
	case Union:
		return vc.writeUnion(enc, v)
	default:
		return datum.Write(enc, vc.schema, v)
	}
}

func (vc *valueCodec) writeArray(enc recbind.Encoder, v reflect.Value) error {
	if err := enc.WriteArrayStart(); err != nil {
		return err
	}
	if n := v.Len(); n > 0 {
		if err := enc.SetItemCount(int64(n)); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			if err := enc.StartItem(); err != nil {
				return err
			}
			var err error
			if vc.bulk {
				err = vc.conv.WriteValue(enc, v.Index(i))
			} else {
				err = vc.elem.writeValue(enc, v.Index(i))
			}
			if err != nil {
				return errors.WriteFailed([]string{elemSeg(i)}, err)
			}
		}
	}
	return enc.WriteArrayEnd()
}

func (vc *valueCodec) writeUnion(enc recbind.Encoder, v reflect.Value) error {
	if isNil(v) {
		if vc.nullBranch < 0 {
			return errors.NilPointer(errors.PhaseEncode, nil, vc.typ.String())
		}
		return enc.WriteIndex(vc.nullBranch)
	}
	if vc.writeBranch < 0 {
		return errors.TypeMismatch(errors.PhaseEncode, nil, vc.typ.String(), vc.schema.TypeName())
	}
	if err := enc.WriteIndex(vc.writeBranch); err != nil {
		return err
	}
	if vc.indirect {
		v = v.Elem()
	}
	return vc.branches[vc.writeBranch].writeValue(enc, v)
}
