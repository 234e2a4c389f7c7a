package bind

import (
	"reflect"
	"sync"

	"github.com/wippyai/recbind"
	"github.com/wippyai/recbind/errors"
	"github.com/wippyai/recbind/schema"
)

// CustomEncoding reads and writes a value in place of structural binding.
type CustomEncoding interface {
	Read(dec recbind.Decoder) (any, error)
	Write(enc recbind.Encoder, v any) error
}

// SchemaAware is implemented by custom encodings that can rebind to a
// different schema.
type SchemaAware interface {
	WithSchema(s *schema.Schema) (CustomEncoding, error)
}

// Factory constructs a custom encoding for the schema fragment it will be
// used with.
type Factory func(s *schema.Schema) (CustomEncoding, error)

type entry struct {
	factory Factory
	schema  *schema.Schema
}

// Registry holds custom encodings addressable by name from struct tags
// (avro:"field,codec=name") and by Go type. Thread-safe.
type Registry struct {
	mu     sync.RWMutex
	named  map[string]entry
	byType map[reflect.Type]entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		named:  make(map[string]entry),
		byType: make(map[reflect.Type]entry),
	}
}

// Register adds a named encoding. s is the schema reported for fields using
// it when schemas are derived from Go types; it may be nil.
func (r *Registry) Register(name string, s *schema.Schema, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.named[name] = entry{factory: f, schema: s}
}

// RegisterType adds an encoding used for every value of type t.
func (r *Registry) RegisterType(t reflect.Type, s *schema.Schema, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byType[t] = entry{factory: f, schema: s}
}

func (r *Registry) lookupName(name string) (entry, bool) {
	if r == nil {
		return entry{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.named[name]
	return e, ok
}

func (r *Registry) lookupType(t reflect.Type) (entry, bool) {
	if r == nil {
		return entry{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byType[t]
	return e, ok
}

// construct runs a factory. A failing or panicking factory is reported as a
// custom encoding error.
func (e entry) construct(s *schema.Schema, name string, path []string) (enc CustomEncoding, err error) {
	defer func() {
		if r := recover(); r != nil {
			enc, err = nil, errors.CustomEncoding(path, name, errors.New(errors.PhaseBind, errors.KindCustomEncoding).
				Detail("factory panicked: %v", r).
				Build())
		}
	}()
	enc, err = e.factory(s)
	if err != nil {
		return nil, errors.CustomEncoding(path, name, err)
	}
	if enc == nil {
		return nil, errors.CustomEncoding(path, name, errors.New(errors.PhaseBind, errors.KindCustomEncoding).
			Detail("factory returned nil").
			Build())
	}
	return enc, nil
}
