package schema

import (
	"bytes"
	"fmt"
	"io"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/recbind/errors"
)

// Parse parses an Avro JSON schema.
func Parse(data []byte) (*Schema, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(errors.PhaseSchema, errors.KindInvalidData, err, "invalid schema JSON")
	}
	return newParser().parse(raw, "", nil)
}

// MustParse is like Parse but panics on error.
func MustParse(text string) *Schema {
	s, err := Parse([]byte(text))
	if err != nil {
		panic(err)
	}
	return s
}

// ParseYAML parses a schema written as YAML with the same structure as the
// JSON form. Only the first document is read.
func ParseYAML(data []byte) (*Schema, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var raw any
	if err := dec.Decode(&raw); err != nil {
		if err == io.EOF {
			return nil, errors.New(errors.PhaseSchema, errors.KindInvalidData).
				Detail("empty YAML document").
				Build()
		}
		return nil, errors.Wrap(errors.PhaseSchema, errors.KindInvalidData, err, "invalid schema YAML")
	}
	return newParser().parse(normalizeYAML(raw), "", nil)
}

// normalizeYAML converts map[any]any nodes to map[string]any.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeYAML(e)
		}
		return t
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[fmt.Sprint(k)] = normalizeYAML(e)
		}
		return m
	case []any:
		for i, e := range t {
			t[i] = normalizeYAML(e)
		}
		return t
	default:
		return v
	}
}

type parser struct {
	names map[string]*Schema
}

func newParser() *parser {
	return &parser{names: make(map[string]*Schema)}
}

// reserved attributes are not copied into Props.
var reserved = map[string]bool{
	"type": true, "name": true, "namespace": true, "doc": true, "fields": true,
	"items": true, "values": true, "symbols": true, "size": true, "aliases": true,
	"default": true, "order": true,
}

func (p *parser) parse(raw any, ns string, path []string) (*Schema, error) {
	switch t := raw.(type) {
	case string:
		return p.parseName(t, ns, path)
	case []any:
		return p.parseUnion(t, ns, path)
	case map[string]any:
		return p.parseObject(t, ns, path)
	default:
		return nil, p.invalid(path, "unexpected schema value %T", raw)
	}
}

func (p *parser) parseName(name, ns string, path []string) (*Schema, error) {
	if k, ok := primitiveKind(name); ok {
		return &Schema{Kind: k}, nil
	}
	if s, ok := p.names[qualify(name, ns)]; ok {
		return s, nil
	}
	if s, ok := p.names[name]; ok {
		return s, nil
	}
	return nil, errors.New(errors.PhaseSchema, errors.KindNotFound).
		Path(path...).
		Detail("unknown type %q", name).
		Build()
}

func (p *parser) parseUnion(items []any, ns string, path []string) (*Schema, error) {
	branches := make([]*Schema, len(items))
	for i, item := range items {
		b, err := p.parse(item, ns, append(append([]string{}, path...), fmt.Sprintf("[%d]", i)))
		if err != nil {
			return nil, err
		}
		branches[i] = b
	}
	s, err := NewUnion(branches...)
	if err != nil {
		return nil, err.(*errors.Error).WithPath(path...)
	}
	return s, nil
}

func (p *parser) parseObject(m map[string]any, ns string, path []string) (*Schema, error) {
	var s *Schema
	var err error

	switch typ := m["type"].(type) {
	case string:
		switch typ {
		case "record", "error":
			s, err = p.parseRecord(m, ns, path)
		case "enum":
			s, err = p.parseEnum(m, ns, path)
		case "fixed":
			s, err = p.parseFixed(m, ns, path)
		case "array":
			items, ok := m["items"]
			if !ok {
				return nil, p.invalid(path, "array without items")
			}
			s = &Schema{Kind: Array}
			s.Items, err = p.parse(items, ns, append(append([]string{}, path...), "[items]"))
		case "map":
			values, ok := m["values"]
			if !ok {
				return nil, p.invalid(path, "map without values")
			}
			s = &Schema{Kind: Map}
			s.Values, err = p.parse(values, ns, append(append([]string{}, path...), "[values]"))
		default:
			s, err = p.parseName(typ, ns, path)
			if err == nil && s.Kind.IsPrimitive() {
				s = &Schema{Kind: s.Kind}
			} else if err == nil {
				// A reference to a named type; props cannot be attached.
				return s, nil
			}
		}
	case map[string]any, []any:
		return p.parse(typ, ns, path)
	default:
		return nil, p.invalid(path, "missing or invalid \"type\" attribute")
	}
	if err != nil {
		return nil, err
	}

	if doc, ok := m["doc"].(string); ok && s.Kind != Record {
		s.Doc = doc
	}
	s.Props = props(m)
	return s, nil
}

func (p *parser) define(m map[string]any, k Kind, ns string, path []string) (*Schema, string, error) {
	name, _ := m["name"].(string)
	if name == "" {
		return nil, "", p.invalid(path, "%s without a name", k)
	}
	if explicit, ok := m["namespace"].(string); ok {
		ns = explicit
	}
	s := &Schema{Kind: k}
	s.Name, s.Namespace = splitName(name, ns)
	full := s.FullName()
	if _, dup := p.names[full]; dup {
		return nil, "", p.invalid(path, "type %q redefined", full)
	}
	p.names[full] = s
	return s, s.Namespace, nil
}

func (p *parser) parseRecord(m map[string]any, ns string, path []string) (*Schema, error) {
	s, ns, err := p.define(m, Record, ns, path)
	if err != nil {
		return nil, err
	}
	s.Doc, _ = m["doc"].(string)
	recPath := append(append([]string{}, path...), s.FullName())

	rawFields, ok := m["fields"].([]any)
	if !ok {
		return nil, p.invalid(recPath, "record without fields")
	}
	fields := make([]*Field, 0, len(rawFields))
	for i, rf := range rawFields {
		fm, ok := rf.(map[string]any)
		if !ok {
			return nil, p.invalid(recPath, "field %d is not an object", i)
		}
		name, _ := fm["name"].(string)
		if name == "" {
			return nil, p.invalid(recPath, "field %d has no name", i)
		}
		typ, ok := fm["type"]
		if !ok {
			return nil, p.invalid(append(recPath, name), "field has no type")
		}
		ft, err := p.parse(typ, ns, append(append([]string{}, recPath...), name))
		if err != nil {
			return nil, err
		}
		f := &Field{Name: name, Type: ft}
		f.Doc, _ = fm["doc"].(string)
		f.Default, f.HasDefault = fm["default"]
		fields = append(fields, f)
	}
	if err := s.setFields(fields); err != nil {
		return nil, err
	}
	return s, nil
}

func (p *parser) parseEnum(m map[string]any, ns string, path []string) (*Schema, error) {
	s, _, err := p.define(m, Enum, ns, path)
	if err != nil {
		return nil, err
	}
	raw, ok := m["symbols"].([]any)
	if !ok {
		return nil, p.invalid(path, "enum %s without symbols", s.FullName())
	}
	seen := make(map[string]bool, len(raw))
	for _, r := range raw {
		sym, ok := r.(string)
		if !ok || seen[sym] {
			return nil, p.invalid(path, "enum %s has an invalid or duplicate symbol", s.FullName())
		}
		seen[sym] = true
		s.Symbols = append(s.Symbols, sym)
	}
	return s, nil
}

func (p *parser) parseFixed(m map[string]any, ns string, path []string) (*Schema, error) {
	s, _, err := p.define(m, Fixed, ns, path)
	if err != nil {
		return nil, err
	}
	size, ok := toInt(m["size"])
	if !ok || size < 0 {
		return nil, p.invalid(path, "fixed %s needs a non-negative size", s.FullName())
	}
	s.Size = size
	return s, nil
}

func (p *parser) invalid(path []string, format string, args ...any) error {
	return errors.New(errors.PhaseSchema, errors.KindInvalidData).
		Path(path...).
		Detail(format, args...).
		Build()
}

func props(m map[string]any) map[string]string {
	var out map[string]string
	for k, raw := range m {
		if reserved[k] {
			continue
		}
		var v string
		switch t := raw.(type) {
		case string:
			v = t
		case bool, float64, int, int64:
			v = fmt.Sprint(t)
		default:
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[k] = v
	}
	return out
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	default:
		return 0, false
	}
}

func qualify(name, ns string) string {
	if ns == "" {
		return name
	}
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			return name
		}
	}
	return ns + "." + name
}
