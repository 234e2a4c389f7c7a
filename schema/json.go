package schema

import (
	"bytes"
	"sort"

	json "github.com/goccy/go-json"
)

// MarshalJSON encodes s as Avro JSON. Named types are written in full on
// first occurrence and by name afterwards.
func (s *Schema) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	w := &jsonWriter{buf: &buf, seen: make(map[*Schema]bool)}
	if err := w.write(s, ""); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// String returns the JSON form of s.
func (s *Schema) String() string {
	data, err := s.MarshalJSON()
	if err != nil {
		return s.TypeName()
	}
	return string(data)
}

type jsonWriter struct {
	buf  *bytes.Buffer
	seen map[*Schema]bool
}

func (w *jsonWriter) str(v string) {
	data, _ := json.Marshal(v)
	w.buf.Write(data)
}

func (w *jsonWriter) key(k string) {
	w.buf.WriteByte(',')
	w.str(k)
	w.buf.WriteByte(':')
}

func (w *jsonWriter) write(s *Schema, ns string) error {
	if s.Kind.IsNamed() && w.seen[s] {
		if s.Namespace == ns {
			w.str(s.Name)
		} else {
			w.str(s.FullName())
		}
		return nil
	}

	switch s.Kind {
	case Union:
		w.buf.WriteByte('[')
		for i, b := range s.Branches {
			if i > 0 {
				w.buf.WriteByte(',')
			}
			if err := w.write(b, ns); err != nil {
				return err
			}
		}
		w.buf.WriteByte(']')
		return nil
	case Null, Boolean, Int, Long, Float, Double, String, Bytes:
		if len(s.Props) == 0 {
			w.str(s.Kind.String())
			return nil
		}
	}

	w.buf.WriteString(`{"type":`)
	w.str(s.Kind.String())

	if s.Kind.IsNamed() {
		w.seen[s] = true
		w.key("name")
		w.str(s.Name)
		if s.Namespace != ns {
			w.key("namespace")
			w.str(s.Namespace)
		}
		ns = s.Namespace
		if s.Doc != "" {
			w.key("doc")
			w.str(s.Doc)
		}
	}

	switch s.Kind {
	case Record:
		w.key("fields")
		w.buf.WriteByte('[')
		for i, f := range s.Fields {
			if i > 0 {
				w.buf.WriteByte(',')
			}
			w.buf.WriteString(`{"name":`)
			w.str(f.Name)
			w.key("type")
			if err := w.write(f.Type, ns); err != nil {
				return err
			}
			if f.Doc != "" {
				w.key("doc")
				w.str(f.Doc)
			}
			if f.HasDefault {
				data, err := json.Marshal(f.Default)
				if err != nil {
					return err
				}
				w.key("default")
				w.buf.Write(data)
			}
			w.buf.WriteByte('}')
		}
		w.buf.WriteByte(']')
	case Enum:
		w.key("symbols")
		data, err := json.Marshal(s.Symbols)
		if err != nil {
			return err
		}
		w.buf.Write(data)
	case Fixed:
		w.key("size")
		data, _ := json.Marshal(s.Size)
		w.buf.Write(data)
	case Array:
		w.key("items")
		if err := w.write(s.Items, ns); err != nil {
			return err
		}
	case Map:
		w.key("values")
		if err := w.write(s.Values, ns); err != nil {
			return err
		}
	}

	keys := make([]string, 0, len(s.Props))
	for k := range s.Props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		w.key(k)
		w.str(s.Props[k])
	}
	w.buf.WriteByte('}')
	return nil
}
