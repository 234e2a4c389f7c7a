package bind

import (
	"reflect"
	"sync"

	"github.com/wippyai/recbind/binary"
	"github.com/wippyai/recbind/schema"
)

var (
	defaultCompiler     *Compiler
	defaultCompilerOnce sync.Once
)

// DefaultCompiler returns the package-wide compiler used by Marshal and Unmarshal.
// It is created on first use with DefaultOptions.
func DefaultCompiler() *Compiler {
	defaultCompilerOnce.Do(func() {
		defaultCompiler = NewCompiler()
	})
	return defaultCompiler
}

// Marshal encodes v with schema s using the default compiler. A nil schema
// is derived from T with SchemaFor.
func Marshal[T any](s *schema.Schema, v T) ([]byte, error) {
	return MarshalWith(DefaultCompiler(), s, v)
}

// Unmarshal decodes data written with schema s into a T using the default
// compiler. A nil schema is derived from T with SchemaFor.
func Unmarshal[T any](s *schema.Schema, data []byte) (T, error) {
	return UnmarshalWith[T](DefaultCompiler(), s, data)
}

// MarshalWith is Marshal with an explicit compiler.
func MarshalWith[T any](c *Compiler, s *schema.Schema, v T) ([]byte, error) {
	codec, err := compileFor[T](c, s)
	if err != nil {
		return nil, err
	}
	enc := binary.GetEncoder()
	defer binary.PutEncoder(enc)
	if err := codec.Write(enc, &v); err != nil {
		return nil, err
	}
	return append([]byte(nil), enc.Bytes()...), nil
}

// UnmarshalWith is Unmarshal with an explicit compiler.
func UnmarshalWith[T any](c *Compiler, s *schema.Schema, data []byte) (T, error) {
	var out T
	codec, err := compileFor[T](c, s)
	if err != nil {
		return out, err
	}
	if err := codec.ReadInto(binary.NewBytesDecoder(data), &out); err != nil {
		return out, err
	}
	return out, nil
}

func compileFor[T any](c *Compiler, s *schema.Schema) (*Codec, error) {
	t := reflect.TypeFor[T]()
	if s == nil {
		var err error
		if s, err = c.SchemaFor(t); err != nil {
			return nil, err
		}
	}
	return c.Compile(t, s)
}
