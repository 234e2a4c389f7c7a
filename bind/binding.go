package bind

import (
	"reflect"
	"strconv"

	"go.uber.org/zap"

	"github.com/wippyai/recbind/datum"
	"github.com/wippyai/recbind/errors"
	"github.com/wippyai/recbind/internal/coerce"
	"github.com/wippyai/recbind/schema"
)

// Strategy is the way a single binding moves its value.
type Strategy uint8

const (
	// Direct reads and writes a primitive, widening where needed.
	Direct Strategy = iota
	// NestedRecord delegates to the schema-driven datum codec.
	NestedRecord
	// Array reads blocks of elements through an element binding.
	Array
	// Union selects a branch binding by index.
	Union
	// Custom delegates to a custom encoding or a nested record binding.
	Custom
	// Default consumes nothing from the wire and stores the zero value.
	Default
)

var strategyNames = [...]string{
	Direct:       "direct",
	NestedRecord: "nested-record",
	Array:        "array",
	Union:        "union",
	Custom:       "custom",
	Default:      "default",
}

func (s Strategy) String() string {
	if int(s) < len(strategyNames) {
		return strategyNames[s]
	}
	return "strategy(" + strconv.Itoa(int(s)) + ")"
}

// FieldBinding pairs a schema field with the struct field that stores it.
// Bindings of a record are ordered like the schema's fields, followed by
// Default bindings for struct fields the schema does not mention.
type FieldBinding struct {
	Name     string        // schema field name, or wire name for Default bindings
	Field    *schema.Field // nil for Default bindings
	Struct   *StructField
	Strategy Strategy
	Slot     int

	codec *valueCodec
	zero  reflect.Value
}

// valueCodec moves one value of type typ written with schema. It is built
// once per (schema fragment, Go type) and never modified after the build.
type valueCodec struct {
	typ      reflect.Type
	schema   *schema.Schema
	strategy Strategy

	conv   coerce.Conversion // Direct, and elements of bulk arrays
	custom CustomEncoding
	plan   *recordPlan // Custom backed by a nested record binding

	elem *valueCodec // Array
	bulk bool        // Array of Direct elements

	branches    []*valueCodec // Union; nil entries are null branches
	nullBranch  int
	writeBranch int // branch used for non-nil values, -1 if none

	indirect bool // typ is a pointer to the bound type

	read  readFunc
	write writeFunc
}

// recordPlan is the binding of one record schema to one struct type.
type recordPlan struct {
	typ      reflect.Type
	schema   *schema.Schema
	st       *Structure
	bindings []FieldBinding

	reader readFunc
	writer writeFunc
}

type planKey struct {
	typ    reflect.Type
	schema *schema.Schema
}

// build collects the plans of one top-level bind. Plans are visible to the
// recursion before their fields are bound, and published to the compiler
// only when the whole build succeeded.
type build struct {
	plans       map[planKey]*recordPlan
	specialized bool
}

func sub(path []string, seg string) []string {
	return append(append(make([]string, 0, len(path)+1), path...), seg)
}

// Bind resolves how each field of schema s is stored in struct type t.
func (c *Compiler) Bind(t reflect.Type, s *schema.Schema) ([]FieldBinding, error) {
	if t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	b := c.newBuild()
	plan, err := c.bindRecord(t, s, b, nil)
	if err != nil {
		return nil, err
	}
	c.publish(b)
	return append([]FieldBinding(nil), plan.bindings...), nil
}

func (c *Compiler) newBuild() *build {
	return &build{
		plans:       make(map[planKey]*recordPlan),
		specialized: c.mode == ModeSpecialized,
	}
}

func (c *Compiler) publish(b *build) {
	for k, p := range b.plans {
		c.plans.LoadOrStore(k, p)
	}
}

func (c *Compiler) bindRecord(t reflect.Type, s *schema.Schema, b *build, path []string) (*recordPlan, error) {
	key := planKey{typ: t, schema: s}
	if p, ok := b.plans[key]; ok {
		return p, nil
	}
	if p, ok := c.plans.Load(key); ok {
		return p.(*recordPlan), nil
	}
	if s == nil || s.Kind != schema.Record {
		return nil, errors.TypeMismatch(errors.PhaseBind, path, typeName(t), s.TypeName())
	}
	st, err := StructureOf(t)
	if err != nil {
		if e, ok := err.(*errors.Error); ok {
			return nil, e.WithPath(path...)
		}
		return nil, err
	}

	p := &recordPlan{typ: t, schema: s, st: st}
	b.plans[key] = p

	consumed := make([]bool, st.NumSlots())
	for _, f := range s.Fields {
		sf, ok := st.Lookup(f.Name)
		if !ok {
			return nil, errors.MissingField(errors.PhaseBind, path, f.Name, t.String())
		}
		if consumed[sf.Slot] {
			return nil, errors.New(errors.PhaseBind, errors.KindInvalidData).
				Path(sub(path, f.Name)...).
				GoType(t.String()).
				Detail("struct field %s is bound to more than one schema field", sf.GoName).
				Build()
		}
		consumed[sf.Slot] = true

		vc, err := c.bindValue(f.Type, sf.Type, sf.Codec, b, sub(path, f.Name))
		if err != nil {
			return nil, err
		}
		p.bindings = append(p.bindings, FieldBinding{
			Name:     f.Name,
			Field:    f,
			Struct:   sf,
			Strategy: vc.strategy,
			Slot:     sf.Slot,
			codec:    vc,
		})
	}
	for i := range st.Fields {
		sf := &st.Fields[i]
		if consumed[sf.Slot] {
			continue
		}
		p.bindings = append(p.bindings, FieldBinding{
			Name:     sf.Name,
			Struct:   sf,
			Strategy: Default,
			Slot:     sf.Slot,
			zero:     reflect.Zero(sf.Type),
		})
	}

	if b.specialized {
		p.generate()
	}
	return p, nil
}

func (c *Compiler) bindValue(s *schema.Schema, t reflect.Type, codecName string, b *build, path []string) (*valueCodec, error) {
	if s == nil {
		return nil, errors.InvalidData(errors.PhaseBind, path, "nil schema")
	}
	vc := &valueCodec{typ: t, schema: s, nullBranch: -1, writeBranch: -1}

	if codecName != "" {
		e, ok := c.registry.lookupName(codecName)
		if !ok {
			return nil, errors.CustomEncoding(path, codecName, errors.NotFound(errors.PhaseBind, "custom encoding", codecName))
		}
		enc, err := e.construct(s, codecName, path)
		if err != nil {
			return nil, err
		}
		vc.strategy, vc.custom = Custom, enc
		return vc.finish(b), nil
	}
	if e, ok := c.registry.lookupType(t); ok {
		enc, err := e.construct(s, t.String(), path)
		if err != nil {
			return nil, err
		}
		vc.strategy, vc.custom = Custom, enc
		return vc.finish(b), nil
	}

	switch {
	case s.Kind.IsPrimitive() && s.Kind != schema.Null && coerce.IsScalar(t):
		conv, err := coerce.Resolve(s.Kind, s.Prop(schema.PropGoType), t, path)
		if err != nil {
			return nil, err
		}
		vc.strategy, vc.conv = Direct, conv
		return vc.finish(b), nil

	case s.Kind == schema.Union && t.Kind() != reflect.Interface:
		return c.bindUnion(vc, b, path)

	case s.Kind == schema.Array && t.Kind() == reflect.Slice && t.Elem().Kind() != reflect.Uint8:
		elem, err := c.bindValue(s.Items, t.Elem(), "", b, sub(path, "[]"))
		if err != nil {
			return nil, err
		}
		vc.strategy, vc.elem = Array, elem
		if elem.strategy == Direct {
			vc.bulk, vc.conv = true, elem.conv
		}
		return vc.finish(b), nil

	case s.Kind == schema.Record && isStruct(t):
		target := t
		if t.Kind() == reflect.Pointer {
			target, vc.indirect = t.Elem(), true
		}
		plan, err := c.bindRecord(target, s, b, path)
		if err != nil {
			return nil, err
		}
		vc.strategy, vc.plan = Custom, plan
		return vc.finish(b), nil
	}

	if t.Kind() != reflect.Interface && !datum.Compatible(s, t) {
		return nil, errors.TypeMismatch(errors.PhaseBind, path, t.String(), s.TypeName())
	}
	vc.strategy = NestedRecord
	return vc.finish(b), nil
}

// bindUnion binds every non-null branch against the pointed-to type. A
// branch whose kind cannot hold the type at all falls back to the datum
// codec; any other binding failure is fatal.
func (c *Compiler) bindUnion(vc *valueCodec, b *build, path []string) (*valueCodec, error) {
	s, t := vc.schema, vc.typ
	target := t
	if t.Kind() == reflect.Pointer {
		target, vc.indirect = t.Elem(), true
	}
	vc.strategy = Union
	vc.nullBranch = s.NullIndex()
	vc.branches = make([]*valueCodec, len(s.Branches))

	bound := make([]bool, len(s.Branches))
	nonNull, usable := 0, 0
	for i, br := range s.Branches {
		if br.Kind == schema.Null {
			continue
		}
		nonNull++
		bc, err := c.bindValue(br, target, "", b, path)
		if err != nil {
			if !errors.Is(err, errors.ErrTypeMismatch) || datum.Compatible(br, target) {
				return nil, err
			}
			Logger().Warn("union branch falls back to generic encoding",
				zap.Strings("path", path),
				zap.String("branch", br.TypeName()),
				zap.Stringer("type", target),
				zap.Error(err))
			bc = (&valueCodec{typ: target, schema: br, strategy: NestedRecord, nullBranch: -1, writeBranch: -1}).finish(b)
		} else {
			bound[i] = true
			usable++
		}
		vc.branches[i] = bc
	}
	if nonNull > 0 && usable == 0 {
		return nil, errors.TypeMismatch(errors.PhaseBind, path, t.String(), s.TypeName())
	}
	vc.writeBranch = writeBranch(s, target, bound)
	return vc.finish(b), nil
}

// writeBranch picks the branch used for non-nil values: the first branch
// whose natural type is t, then a record named like t, then the first bound
// branch.
func writeBranch(s *schema.Schema, t reflect.Type, bound []bool) int {
	for i, br := range s.Branches {
		if bound[i] && br.Kind.IsPrimitive() && coerce.Natural(br.Kind, br.Prop(schema.PropGoType)) == t {
			return i
		}
	}
	if t.Kind() == reflect.Struct {
		for i, br := range s.Branches {
			if bound[i] && br.Kind == schema.Record && br.Name == t.Name() {
				return i
			}
		}
	}
	for i := range s.Branches {
		if bound[i] {
			return i
		}
	}
	return -1
}

func (vc *valueCodec) finish(b *build) *valueCodec {
	if b.specialized {
		vc.generate()
	}
	return vc
}

func isStruct(t reflect.Type) bool {
	return t.Kind() == reflect.Struct || (t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct)
}

func isNil(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return v.IsNil()
	}
	return false
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
