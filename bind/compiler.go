package bind

import (
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/wippyai/recbind"
	"github.com/wippyai/recbind/errors"
	"github.com/wippyai/recbind/schema"
)

// Compiler binds Go types to schemas and caches the resulting codecs.
// It is safe for concurrent use; each (type, schema) pair is built at most
// once even when requested from several goroutines at the same time.
type Compiler struct {
	registry *Registry
	mode     Mode

	codecs  sync.Map // planKey -> *Codec
	plans   sync.Map // planKey -> *recordPlan
	schemas sync.Map // reflect.Type -> *schema.Schema
	group   singleflight.Group
}

// NewCompiler creates a compiler with default options.
func NewCompiler() *Compiler {
	return NewCompilerWithOptions(DefaultOptions())
}

// NewCompilerWithOptions creates a compiler with the given options.
func NewCompilerWithOptions(opts Options) *Compiler {
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}
	mode := opts.Mode
	if mode == ModeDefault {
		mode = DefaultMode()
	}
	return &Compiler{registry: reg, mode: mode}
}

// Registry returns the registry custom encodings are looked up in.
func (c *Compiler) Registry() *Registry {
	return c.registry
}

// Mode returns the execution mode of codecs built by this compiler.
func (c *Compiler) Mode() Mode {
	return c.mode
}

// Compile returns the codec for values of type t written with schema s.
func (c *Compiler) Compile(t reflect.Type, s *schema.Schema) (*Codec, error) {
	if t == nil {
		return nil, errors.InvalidData(errors.PhaseBind, nil, "nil type")
	}
	if s == nil {
		return nil, errors.InvalidData(errors.PhaseBind, nil, "nil schema")
	}
	key := planKey{typ: t, schema: s}
	if cached, ok := c.codecs.Load(key); ok {
		return cached.(*Codec), nil
	}

	v, err, shared := c.group.Do(fmt.Sprintf("%p/%p", t, s), func() (any, error) {
		if cached, ok := c.codecs.Load(key); ok {
			return cached, nil
		}
		codec, err := c.build(t, s)
		if err != nil {
			return nil, err
		}
		actual, _ := c.codecs.LoadOrStore(key, codec)
		return actual, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		Logger().Debug("shared codec build",
			zap.Stringer("type", t),
			zap.String("schema", s.FullName()))
	}
	return v.(*Codec), nil
}

func (c *Compiler) build(t reflect.Type, s *schema.Schema) (*Codec, error) {
	b := c.newBuild()
	root, err := c.bindValue(s, t, "", b, nil)
	if err != nil {
		return nil, err
	}
	c.publish(b)

	codec := &Codec{typ: t, schema: s, mode: c.mode, root: root, plan: root.plan}
	Logger().Debug("compiled codec",
		zap.Stringer("type", t),
		zap.String("schema", s.TypeName()),
		zap.Stringer("mode", c.mode),
		zap.Stringer("strategy", root.strategy),
		zap.Int("bindings", len(codec.Bindings())))
	return codec, nil
}

// Codec reads and writes values of one Go type with one schema.
// It is immutable and safe for concurrent use.
type Codec struct {
	typ    reflect.Type
	schema *schema.Schema
	mode   Mode
	root   *valueCodec
	plan   *recordPlan // set when the root binds a record
}

// Type returns the Go type the codec was compiled for.
func (c *Codec) Type() reflect.Type {
	return c.typ
}

// Schema returns the schema the codec was compiled for.
func (c *Codec) Schema() *schema.Schema {
	return c.schema
}

// Mode returns the execution mode.
func (c *Codec) Mode() Mode {
	return c.mode
}

// Bindings returns the field bindings when the codec binds a record.
func (c *Codec) Bindings() []FieldBinding {
	if c.plan == nil {
		return nil
	}
	return append([]FieldBinding(nil), c.plan.bindings...)
}

// Read decodes one value. The result has the codec's Go type.
func (c *Codec) Read(dec recbind.Decoder) (any, error) {
	if c.mode == ModeSpecialized {
		ptr := reflect.New(c.typ)
		if err := c.root.read(dec, ptr.UnsafePointer()); err != nil {
			return nil, errors.ReadFailed(nil, err)
		}
		return ptr.Elem().Interface(), nil
	}
	v, err := c.root.readValue(dec)
	if err != nil {
		return nil, errors.ReadFailed(nil, err)
	}
	return v.Interface(), nil
}

// ReadInto decodes one value into dst, which must be a non-nil pointer to
// the codec's Go type. dst is left untouched when the read fails.
func (c *Codec) ReadInto(dec recbind.Decoder, dst any) error {
	dv := reflect.ValueOf(dst)
	if dv.Kind() != reflect.Pointer || dv.IsNil() || dv.Type().Elem() != c.typ {
		return errors.TypeMismatch(errors.PhaseDecode, nil, fmt.Sprintf("%T", dst), c.schema.TypeName())
	}
	if c.mode == ModeSpecialized {
		tmp := reflect.New(c.typ)
		if err := c.root.read(dec, tmp.UnsafePointer()); err != nil {
			return errors.ReadFailed(nil, err)
		}
		dv.Elem().Set(tmp.Elem())
		return nil
	}
	v, err := c.root.readValue(dec)
	if err != nil {
		return errors.ReadFailed(nil, err)
	}
	dv.Elem().Set(v)
	return nil
}

// Write encodes v, a value of the codec's Go type or a pointer to one.
func (c *Codec) Write(enc recbind.Encoder, v any) error {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return errors.NilPointer(errors.PhaseEncode, nil, c.typ.String())
	}
	byRef := false
	switch rv.Type() {
	case c.typ:
	case reflect.PointerTo(c.typ):
		if rv.IsNil() {
			return errors.NilPointer(errors.PhaseEncode, nil, rv.Type().String())
		}
		byRef = true
	default:
		if c.typ.Kind() != reflect.Interface || !rv.Type().Implements(c.typ) {
			return errors.TypeMismatch(errors.PhaseEncode, nil, rv.Type().String(), c.schema.TypeName())
		}
		iv := reflect.New(c.typ).Elem()
		iv.Set(rv)
		rv = iv
	}

	var err error
	if c.mode == ModeSpecialized {
		var p reflect.Value
		if byRef {
			p = rv
		} else {
			p = reflect.New(c.typ)
			p.Elem().Set(rv)
		}
		err = c.root.write(enc, p.UnsafePointer())
	} else {
		if byRef {
			rv = rv.Elem()
		}
		err = c.root.writeValue(enc, rv)
	}
	if err != nil {
		return errors.WriteFailed(nil, err)
	}
	return nil
}
