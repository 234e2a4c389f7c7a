package schema

import (
	"fmt"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/recbind/errors"
)

// FromWIT converts a WebAssembly Interface Type into a schema.
//
// Records, tuples and variant cases become records; lists become arrays
// (list<u8> becomes bytes); options become [null, T] unions; results and
// variants become unions of single-field records; enums map directly and
// flags become arrays of an enum. Narrow integers carry the go.type property.
func FromWIT(t wit.Type) (*Schema, error) {
	c := &witConverter{defs: make(map[*wit.TypeDef]*Schema)}
	return c.convert(t, nil)
}

type witConverter struct {
	defs map[*wit.TypeDef]*Schema
	anon int
}

func (c *witConverter) convert(t wit.Type, path []string) (*Schema, error) {
	switch t := t.(type) {
	case wit.Bool:
		return Primitive(Boolean), nil
	case wit.S8:
		return Primitive(Int).WithProp(PropGoType, "int8"), nil
	case wit.U8:
		return Primitive(Int).WithProp(PropGoType, "uint8"), nil
	case wit.S16:
		return Primitive(Int).WithProp(PropGoType, "int16"), nil
	case wit.U16:
		return Primitive(Int).WithProp(PropGoType, "uint16"), nil
	case wit.S32, wit.Char:
		return Primitive(Int), nil
	case wit.U32, wit.S64, wit.U64:
		return Primitive(Long), nil
	case wit.F32:
		return Primitive(Float), nil
	case wit.F64:
		return Primitive(Double), nil
	case wit.String:
		return Primitive(String), nil
	case *wit.TypeDef:
		if s, ok := c.defs[t]; ok {
			return s, nil
		}
		s, err := c.convertDef(t, path)
		if err != nil {
			return nil, err
		}
		c.defs[t] = s
		return s, nil
	default:
		return nil, errors.New(errors.PhaseSchema, errors.KindUnsupported).
			Path(path...).
			Detail("unsupported WIT type: %T", t).
			Build()
	}
}

func (c *witConverter) convertDef(td *wit.TypeDef, path []string) (*Schema, error) {
	label := "<anon>"
	if td.Name != nil {
		label = *td.Name
	}
	path = append(append([]string{}, path...), label)

	switch k := td.Kind.(type) {
	case *wit.Record:
		name := c.name(td)
		fields := make([]*Field, len(k.Fields))
		for i, f := range k.Fields {
			ft, err := c.convert(f.Type, append(append([]string{}, path...), f.Name))
			if err != nil {
				return nil, err
			}
			fields[i] = NewField(f.Name, ft)
		}
		return NewRecord(name, fields...)
	case *wit.Tuple:
		name := c.name(td)
		fields := make([]*Field, len(k.Types))
		for i, typ := range k.Types {
			ft, err := c.convert(typ, append(append([]string{}, path...), fmt.Sprintf("f%d", i)))
			if err != nil {
				return nil, err
			}
			fields[i] = NewField(fmt.Sprintf("f%d", i), ft)
		}
		return NewRecord(name, fields...)
	case *wit.List:
		if _, ok := k.Type.(wit.U8); ok {
			return Primitive(Bytes), nil
		}
		items, err := c.convert(k.Type, path)
		if err != nil {
			return nil, err
		}
		return NewArray(items), nil
	case *wit.Option:
		inner, err := c.convert(k.Type, path)
		if err != nil {
			return nil, err
		}
		return NewUnion(Primitive(Null), inner)
	case *wit.Enum:
		name := c.name(td)
		symbols := make([]string, len(k.Cases))
		for i, ec := range k.Cases {
			symbols[i] = ec.Name
		}
		return NewEnum(name, symbols...), nil
	case *wit.Flags:
		name := c.name(td)
		symbols := make([]string, len(k.Flags))
		for i, f := range k.Flags {
			symbols[i] = f.Name
		}
		return NewArray(NewEnum(name, symbols...)), nil
	case *wit.Result:
		name := c.name(td)
		ok, err := c.caseRecord(name+"_ok", k.OK, path)
		if err != nil {
			return nil, err
		}
		fail, err := c.caseRecord(name+"_err", k.Err, path)
		if err != nil {
			return nil, err
		}
		return NewUnion(ok, fail)
	case *wit.Variant:
		name := c.name(td)
		branches := make([]*Schema, len(k.Cases))
		for i, vc := range k.Cases {
			b, err := c.caseRecord(name+"_"+vc.Name, vc.Type, path)
			if err != nil {
				return nil, err
			}
			branches[i] = b
		}
		return NewUnion(branches...)
	default:
		if alias, ok := td.Kind.(wit.Type); ok {
			return c.convert(alias, path)
		}
		return nil, errors.New(errors.PhaseSchema, errors.KindUnsupported).
			Path(path...).
			Detail("unsupported WIT type definition: %T", td.Kind).
			Build()
	}
}

// caseRecord wraps an optional payload in a record with a single "value"
// field. A case without payload becomes an empty record.
func (c *witConverter) caseRecord(name string, payload wit.Type, path []string) (*Schema, error) {
	if payload == nil {
		return NewRecord(name)
	}
	vt, err := c.convert(payload, append(append([]string{}, path...), name))
	if err != nil {
		return nil, err
	}
	return NewRecord(name, NewField("value", vt))
}

func (c *witConverter) name(td *wit.TypeDef) string {
	if td.Name != nil && *td.Name != "" {
		return *td.Name
	}
	c.anon++
	return fmt.Sprintf("anon%d", c.anon)
}
