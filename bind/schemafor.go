package bind

import (
	"reflect"
	"strconv"

	"github.com/wippyai/recbind/errors"
	"github.com/wippyai/recbind/internal/coerce"
	"github.com/wippyai/recbind/schema"
)

// SchemaFor derives a schema from Go type t. Structs become records named
// after the type with fields in declaration order, pointers become unions
// with null, slices become arrays and string-keyed maps become maps. Types
// registered with a schema use that schema. The result is cached per type.
func (c *Compiler) SchemaFor(t reflect.Type) (*schema.Schema, error) {
	if t == nil {
		return nil, errors.InvalidData(errors.PhaseSchema, nil, "nil type")
	}
	if cached, ok := c.schemas.Load(t); ok {
		return cached.(*schema.Schema), nil
	}
	d := &deriver{registry: c.registry, records: make(map[reflect.Type]*schema.Schema)}
	s, err := d.derive(t, nil)
	if err != nil {
		return nil, err
	}
	actual, _ := c.schemas.LoadOrStore(t, s)
	return actual.(*schema.Schema), nil
}

type deriver struct {
	registry *Registry
	records  map[reflect.Type]*schema.Schema
	anon     int
}

func (d *deriver) derive(t reflect.Type, path []string) (*schema.Schema, error) {
	if e, ok := d.registry.lookupType(t); ok {
		if e.schema == nil {
			return nil, d.unsupported(t, path, "registered encoding has no schema")
		}
		return e.schema, nil
	}
	if kind, hint, ok := coerce.KindOf(t); ok {
		s := schema.Primitive(kind)
		if hint != "" {
			s = s.WithProp(schema.PropGoType, hint)
		}
		return s, nil
	}

	switch t.Kind() {
	case reflect.Pointer:
		elem, err := d.derive(t.Elem(), path)
		if err != nil {
			return nil, err
		}
		if elem.Kind == schema.Union {
			if elem.NullIndex() >= 0 {
				return elem, nil
			}
			return nil, d.unsupported(t, path, "pointer to a union without null")
		}
		return schema.NewUnion(schema.Primitive(schema.Null), elem)
	case reflect.Slice:
		items, err := d.derive(t.Elem(), sub(path, "[]"))
		if err != nil {
			return nil, err
		}
		return schema.NewArray(items), nil
	case reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return schema.NewFixed(d.name(t), t.Len()), nil
		}
	case reflect.Map:
		if t.Key().Kind() == reflect.String {
			values, err := d.derive(t.Elem(), sub(path, "{}"))
			if err != nil {
				return nil, err
			}
			return schema.NewMap(values), nil
		}
	case reflect.Struct:
		return d.record(t, path)
	}
	return nil, d.unsupported(t, path, "no schema for Go kind "+t.Kind().String())
}

func (d *deriver) record(t reflect.Type, path []string) (*schema.Schema, error) {
	if rec, ok := d.records[t]; ok {
		return rec, nil
	}
	st, err := StructureOf(t)
	if err != nil {
		return nil, err
	}
	rec, err := schema.NewRecord(d.name(t))
	if err != nil {
		return nil, err
	}
	d.records[t] = rec

	fields := make([]*schema.Field, 0, len(st.Fields))
	for i := range st.Fields {
		sf := &st.Fields[i]
		fieldPath := sub(path, sf.Name)
		var fs *schema.Schema
		if sf.Codec != "" {
			e, ok := d.registry.lookupName(sf.Codec)
			if !ok || e.schema == nil {
				return nil, d.unsupported(sf.Type, fieldPath, "custom encoding "+strconv.Quote(sf.Codec)+" has no schema")
			}
			fs = e.schema
		} else if fs, err = d.derive(sf.Type, fieldPath); err != nil {
			return nil, err
		}
		fields = append(fields, schema.NewField(sf.Name, fs))
	}
	if err := rec.DefineFields(fields...); err != nil {
		return nil, err
	}
	return rec, nil
}

func (d *deriver) name(t reflect.Type) string {
	if t.Name() != "" {
		return t.Name()
	}
	d.anon++
	return "anon" + strconv.Itoa(d.anon)
}

func (d *deriver) unsupported(t reflect.Type, path []string, detail string) error {
	return errors.New(errors.PhaseSchema, errors.KindUnsupported).
		Path(path...).
		GoType(t.String()).
		Detail("%s", detail).
		Build()
}
