package schema

import (
	"strings"

	"github.com/wippyai/recbind/errors"
)

// Well-known schema properties.
const (
	// PropGoType names the narrow Go integer type an int was written from.
	PropGoType = "go.type"
	// PropPolymorphic marks a union record built from a closed variant set.
	PropPolymorphic = "polymorphic"
)

// Schema is a node of an immutable schema tree. Record schemas may refer to
// themselves through Fields, Items, Values or Branches.
type Schema struct {
	Kind      Kind
	Name      string
	Namespace string
	Doc       string
	Fields    []*Field
	Items     *Schema
	Values    *Schema
	Branches  []*Schema
	Symbols   []string
	Size      int
	Props     map[string]string

	fieldIndex map[string]int
}

// Field is a record field.
type Field struct {
	Name       string
	Type       *Schema
	Pos        int
	Doc        string
	Default    any
	HasDefault bool
}

// Primitive returns a new primitive schema.
func Primitive(k Kind) *Schema {
	if !k.IsPrimitive() {
		panic("schema: " + k.String() + " is not a primitive kind")
	}
	return &Schema{Kind: k}
}

// NewField creates a record field. Positions are assigned by NewRecord.
func NewField(name string, typ *Schema) *Field {
	return &Field{Name: name, Type: typ}
}

// NewFieldWithDefault creates a record field carrying a default value.
func NewFieldWithDefault(name string, typ *Schema, def any) *Field {
	return &Field{Name: name, Type: typ, Default: def, HasDefault: true}
}

// NewRecord creates a record schema. fullName may include a namespace
// separated by dots.
func NewRecord(fullName string, fields ...*Field) (*Schema, error) {
	s := &Schema{Kind: Record}
	s.Name, s.Namespace = splitName(fullName, "")
	if err := s.setFields(fields); err != nil {
		return nil, err
	}
	return s, nil
}

// MustRecord is like NewRecord but panics on error.
func MustRecord(fullName string, fields ...*Field) *Schema {
	s, err := NewRecord(fullName, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// DefineFields sets the fields of a record created with no fields, so that
// recursive records can refer to themselves. It must be called before the
// schema is shared.
func (s *Schema) DefineFields(fields ...*Field) error {
	if s.Kind != Record || len(s.Fields) > 0 {
		return errors.New(errors.PhaseSchema, errors.KindInvalidData).
			Path(s.FullName()).
			Detail("fields already defined").
			Build()
	}
	return s.setFields(fields)
}

func (s *Schema) setFields(fields []*Field) error {
	s.Fields = fields
	s.fieldIndex = make(map[string]int, len(fields))
	for i, f := range fields {
		if f == nil || f.Type == nil {
			return errors.New(errors.PhaseSchema, errors.KindInvalidData).
				Path(s.FullName()).
				Detail("field %d has no type", i).
				Build()
		}
		if _, dup := s.fieldIndex[f.Name]; dup {
			return errors.New(errors.PhaseSchema, errors.KindInvalidData).
				Path(s.FullName(), f.Name).
				Detail("duplicate field name").
				Build()
		}
		f.Pos = i
		s.fieldIndex[f.Name] = i
	}
	return nil
}

// NewArray creates an array schema.
func NewArray(items *Schema) *Schema {
	return &Schema{Kind: Array, Items: items}
}

// NewMap creates a map schema with string keys.
func NewMap(values *Schema) *Schema {
	return &Schema{Kind: Map, Values: values}
}

// NewUnion creates a union schema. Unions may not directly contain unions.
func NewUnion(branches ...*Schema) (*Schema, error) {
	if len(branches) == 0 {
		return nil, errors.New(errors.PhaseSchema, errors.KindInvalidData).
			Detail("union has no branches").
			Build()
	}
	for i, b := range branches {
		if b == nil {
			return nil, errors.New(errors.PhaseSchema, errors.KindInvalidData).
				Detail("union branch %d is nil", i).
				Build()
		}
		if b.Kind == Union {
			return nil, errors.New(errors.PhaseSchema, errors.KindInvalidData).
				Detail("union branch %d is itself a union", i).
				Build()
		}
	}
	return &Schema{Kind: Union, Branches: branches}, nil
}

// MustUnion is like NewUnion but panics on error.
func MustUnion(branches ...*Schema) *Schema {
	s, err := NewUnion(branches...)
	if err != nil {
		panic(err)
	}
	return s
}

// NewEnum creates an enum schema.
func NewEnum(fullName string, symbols ...string) *Schema {
	s := &Schema{Kind: Enum, Symbols: symbols}
	s.Name, s.Namespace = splitName(fullName, "")
	return s
}

// NewFixed creates a fixed-size bytes schema.
func NewFixed(fullName string, size int) *Schema {
	s := &Schema{Kind: Fixed, Size: size}
	s.Name, s.Namespace = splitName(fullName, "")
	return s
}

// WithProp returns a shallow copy of s with the property set.
func (s *Schema) WithProp(key, value string) *Schema {
	cp := *s
	cp.Props = make(map[string]string, len(s.Props)+1)
	for k, v := range s.Props {
		cp.Props[k] = v
	}
	cp.Props[key] = value
	return &cp
}

// FullName returns the namespace-qualified name of a named schema, or the
// kind name for anonymous schemas.
func (s *Schema) FullName() string {
	if s.Name == "" {
		return s.Kind.String()
	}
	if s.Namespace == "" {
		return s.Name
	}
	return s.Namespace + "." + s.Name
}

// Field returns the record field with the given name.
func (s *Schema) Field(name string) (*Field, bool) {
	i, ok := s.fieldIndex[name]
	if !ok {
		return nil, false
	}
	return s.Fields[i], true
}

// Prop returns a string property, or "" when unset.
func (s *Schema) Prop(key string) string {
	return s.Props[key]
}

// IsPolymorphic reports whether s is a union record produced from a closed
// variant set.
func (s *Schema) IsPolymorphic() bool {
	return s.Kind == Record && s.Props[PropPolymorphic] == "true"
}

// NullIndex returns the branch index of null in a union, or -1.
func (s *Schema) NullIndex() int {
	for i, b := range s.Branches {
		if b.Kind == Null {
			return i
		}
	}
	return -1
}

// TypeName describes s for error messages.
func (s *Schema) TypeName() string {
	if s == nil {
		return "<nil>"
	}
	switch s.Kind {
	case Array:
		return "array<" + s.Items.TypeName() + ">"
	case Map:
		return "map<" + s.Values.TypeName() + ">"
	case Union:
		names := make([]string, len(s.Branches))
		for i, b := range s.Branches {
			names[i] = b.TypeName()
		}
		return "union<" + strings.Join(names, ",") + ">"
	case Record, Enum, Fixed:
		return s.FullName()
	default:
		if hint := s.Props[PropGoType]; hint != "" {
			return s.Kind.String() + "(" + hint + ")"
		}
		return s.Kind.String()
	}
}

func splitName(name, enclosing string) (string, string) {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:], name[:i]
	}
	return name, enclosing
}
