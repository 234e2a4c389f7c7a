// Package structure builds the field tables of Go struct types.
package structure

import (
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/wippyai/recbind/errors"
)

// TagName is the struct tag key read by Of.
const TagName = "avro"

// Field describes one bound struct field.
type Field struct {
	Name   string // wire name
	GoName string
	Index  int // index in reflect.Type.Field
	Offset uintptr
	Type   reflect.Type
	Slot   int    // position among bound fields, in declaration order
	Codec  string // custom encoding named by the codec= tag option
	Tagged bool   // wire name taken from the tag
}

// Structure is the field table of a struct type. It is immutable.
type Structure struct {
	Type   reflect.Type
	Fields []Field

	byName map[string]int
}

var cache sync.Map // reflect.Type -> *Structure

// Of returns the field table of struct type t. Unexported fields and fields
// tagged avro:"-" are not bound.
func Of(t reflect.Type) (*Structure, error) {
	if cached, ok := cache.Load(t); ok {
		return cached.(*Structure), nil
	}
	if t == nil || t.Kind() != reflect.Struct {
		name := "<nil>"
		if t != nil {
			name = t.String()
		}
		return nil, errors.TypeMismatch(errors.PhaseBind, nil, name, "struct")
	}

	s := &Structure{Type: t, byName: make(map[string]int)}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		f := Field{
			Name:   sf.Name,
			GoName: sf.Name,
			Index:  i,
			Offset: sf.Offset,
			Type:   sf.Type,
			Slot:   len(s.Fields),
		}
		if tag, ok := sf.Tag.Lookup(TagName); ok {
			name, opts, _ := strings.Cut(tag, ",")
			if name == "-" && opts == "" {
				continue
			}
			if name != "" {
				f.Name = name
				f.Tagged = true
			}
			for _, opt := range strings.Split(opts, ",") {
				if id, ok := strings.CutPrefix(opt, "codec="); ok {
					f.Codec = id
				}
			}
		}
		if prev, dup := s.byName[f.Name]; dup {
			return nil, errors.New(errors.PhaseBind, errors.KindInvalidData).
				Path(t.Name(), f.GoName).
				GoType(t.String()).
				Detail("wire name %q already used by field %s", f.Name, s.Fields[prev].GoName).
				Build()
		}
		s.byName[f.Name] = len(s.Fields)
		s.Fields = append(s.Fields, f)
	}

	actual, _ := cache.LoadOrStore(t, s)
	return actual.(*Structure), nil
}

// Lookup finds the field bound to a wire name: an exact wire name first,
// then a case-insensitive Go name, then the snake_case or kebab-case form of
// the Go name.
func (s *Structure) Lookup(name string) (*Field, bool) {
	if i, ok := s.byName[name]; ok {
		return &s.Fields[i], true
	}
	for i := range s.Fields {
		f := &s.Fields[i]
		if f.Tagged {
			continue
		}
		if strings.EqualFold(f.GoName, name) {
			return f, true
		}
		if separated(f.GoName, '_') == name || separated(f.GoName, '-') == name {
			return f, true
		}
	}
	return nil, false
}

// NumSlots returns the number of constructor slots.
func (s *Structure) NumSlots() int {
	return len(s.Fields)
}

// separated converts a Go name to lower case words joined by sep.
func separated(s string, sep byte) string {
	var result strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				result.WriteByte(sep)
			}
			result.WriteRune(unicode.ToLower(r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}
