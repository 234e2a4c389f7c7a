package bind

import (
	"reflect"

	"go.uber.org/zap"

	"github.com/wippyai/recbind"
	"github.com/wippyai/recbind/errors"
	"github.com/wippyai/recbind/schema"
)

// polymorphicField is the single field of the wrapper record that carries
// the variant union.
const polymorphicField = "type"

// OrdinalSchema is one variant of a Polymorphic encoder.
type OrdinalSchema struct {
	Ordinal int
	Type    reflect.Type
	Schema  *schema.Schema
}

// Polymorphic encodes values of an interface type as one of a closed set of
// concrete variants. On the wire a value is its variant's ordinal as a union
// branch index followed by the variant's own record encoding. Ordinals are
// assigned in the order the variants are given.
//
// A Polymorphic is immutable and safe for concurrent use.
type Polymorphic struct {
	compiler *Compiler
	iface    reflect.Type
	schema   *schema.Schema
	variants []reflect.Type
	ordinals map[reflect.Type]int
	codecs   []*Codec
}

// NewPolymorphic builds an encoder for interface type iface with the given
// variants. Variant schemas are derived with the compiler's SchemaFor and
// wrapped in a record called name.
func NewPolymorphic(c *Compiler, name string, iface reflect.Type, variants ...reflect.Type) (*Polymorphic, error) {
	if iface == nil || iface.Kind() != reflect.Interface {
		return nil, errors.New(errors.PhaseBind, errors.KindTypeMismatch).
			GoType(typeName(iface)).
			Detail("polymorphic type must be an interface").
			Build()
	}
	if len(variants) == 0 {
		return nil, errors.InvalidData(errors.PhaseBind, []string{name}, "no variants")
	}

	p := &Polymorphic{
		compiler: c,
		iface:    iface,
		variants: variants,
		ordinals: make(map[reflect.Type]int, len(variants)),
	}
	branches := make([]*schema.Schema, len(variants))
	for i, v := range variants {
		if v == nil || !v.Implements(iface) {
			return nil, errors.New(errors.PhaseBind, errors.KindTypeMismatch).
				Path(name).
				GoType(typeName(v)).
				Detail("variant does not implement %s", iface).
				Build()
		}
		if _, dup := p.ordinals[v]; dup {
			return nil, errors.New(errors.PhaseBind, errors.KindInvalidData).
				Path(name).
				GoType(v.String()).
				Detail("variant listed twice").
				Build()
		}
		p.ordinals[v] = i

		target := v
		if target.Kind() == reflect.Pointer {
			target = target.Elem()
		}
		s, err := c.SchemaFor(target)
		if err != nil {
			return nil, err
		}
		branches[i] = s
	}

	union, err := schema.NewUnion(branches...)
	if err != nil {
		return nil, err
	}
	wrapper, err := schema.NewRecord(name, schema.NewField(polymorphicField, union))
	if err != nil {
		return nil, err
	}
	p.schema = wrapper.WithProp(schema.PropPolymorphic, "true")

	if err := p.compile(union); err != nil {
		return nil, err
	}
	return p, nil
}

// NewPolymorphicOf is NewPolymorphic with the interface given as a type
// parameter and the variants given as sample values.
func NewPolymorphicOf[I any](c *Compiler, name string, variants ...I) (*Polymorphic, error) {
	types := make([]reflect.Type, len(variants))
	for i, v := range variants {
		types[i] = reflect.TypeOf(v)
	}
	return NewPolymorphic(c, name, reflect.TypeFor[I](), types...)
}

func (p *Polymorphic) compile(union *schema.Schema) error {
	p.codecs = make([]*Codec, len(p.variants))
	for i, v := range p.variants {
		codec, err := p.compiler.Compile(v, union.Branches[i])
		if err != nil {
			if e, ok := err.(*errors.Error); ok {
				return e.WithPath(p.schema.FullName(), union.Branches[i].FullName())
			}
			return err
		}
		p.codecs[i] = codec
	}
	Logger().Debug("polymorphic encoder bound",
		zap.Stringer("interface", p.iface),
		zap.String("schema", p.schema.FullName()),
		zap.Int("variants", len(p.variants)))
	return nil
}

// Schema returns the wrapper record schema.
func (p *Polymorphic) Schema() *schema.Schema {
	return p.schema
}

// Interface returns the interface type the encoder reads and writes.
func (p *Polymorphic) Interface() reflect.Type {
	return p.iface
}

// Ordinal returns the ordinal of variant type t.
func (p *Polymorphic) Ordinal(t reflect.Type) (int, bool) {
	ord, ok := p.ordinals[t]
	return ord, ok
}

// Branches returns the ordinal table, ordered by ordinal.
func (p *Polymorphic) Branches() []OrdinalSchema {
	out := make([]OrdinalSchema, len(p.variants))
	for i, v := range p.variants {
		out[i] = OrdinalSchema{Ordinal: i, Type: v, Schema: p.codecs[i].Schema()}
	}
	return out
}

// Read decodes a branch index and the variant it selects.
func (p *Polymorphic) Read(dec recbind.Decoder) (any, error) {
	idx, err := dec.ReadIndex()
	if err != nil {
		return nil, errors.ReadFailed(nil, err)
	}
	if idx < 0 || idx >= int64(len(p.codecs)) {
		return nil, errors.IndexOutOfRange(errors.PhaseDecode, nil, idx, len(p.codecs))
	}
	return p.codecs[idx].Read(dec)
}

// Write encodes v, which must be one of the registered variants.
func (p *Polymorphic) Write(enc recbind.Encoder, v any) error {
	if v == nil {
		return errors.NilPointer(errors.PhaseEncode, nil, p.iface.String())
	}
	t := reflect.TypeOf(v)
	ord, ok := p.ordinals[t]
	if !ok {
		return errors.UnregisteredSubtype(errors.PhaseEncode, nil, t.String(), p.schema.FullName())
	}
	if err := enc.WriteIndex(ord); err != nil {
		return errors.WriteFailed(nil, err)
	}
	return p.codecs[ord].Write(enc, v)
}

// WithSchema rebinds the encoder to another schema produced by
// NewPolymorphic, keeping the ordinal table. The new union must have one
// branch per variant.
func (p *Polymorphic) WithSchema(s *schema.Schema) (CustomEncoding, error) {
	if s == p.schema {
		return p, nil
	}
	if s == nil || !s.IsPolymorphic() {
		return nil, p.rejected(s, "not a polymorphic schema")
	}
	f, ok := s.Field(polymorphicField)
	if !ok || len(s.Fields) != 1 || f.Type.Kind != schema.Union {
		return nil, p.rejected(s, "polymorphic record must hold a single union field")
	}
	if len(f.Type.Branches) != len(p.variants) {
		return nil, p.rejected(s, "union branch count does not match the variants")
	}

	np := &Polymorphic{
		compiler: p.compiler,
		iface:    p.iface,
		schema:   s,
		variants: p.variants,
		ordinals: p.ordinals,
	}
	if err := np.compile(f.Type); err != nil {
		return nil, err
	}
	return np, nil
}

func (p *Polymorphic) rejected(s *schema.Schema, detail string) error {
	return errors.New(errors.PhaseBind, errors.KindSchemaRejected).
		GoType(p.iface.String()).
		SchemaType(s.TypeName()).
		Detail("%s", detail).
		Build()
}

// Register makes struct fields of the interface type bind through this
// encoder. Fields whose schema differs from Schema are rebound with
// WithSchema.
func (p *Polymorphic) Register(reg *Registry) {
	reg.RegisterType(p.iface, p.schema, func(s *schema.Schema) (CustomEncoding, error) {
		return p.WithSchema(s)
	})
}
