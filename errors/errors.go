package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseBind   Phase = "bind"   // binding a Go type to a schema
	PhaseEncode Phase = "encode" // Go value to wire
	PhaseDecode Phase = "decode" // wire to Go value
	PhaseSchema Phase = "schema" // schema parsing and construction
)

// Kind categorizes the error
type Kind string

const (
	KindMissingField        Kind = "missing_field"
	KindTypeMismatch        Kind = "type_mismatch"
	KindUnregisteredSubtype Kind = "unregistered_subtype"
	KindIndexOutOfRange     Kind = "index_out_of_range"
	KindCustomEncoding      Kind = "custom_encoding"
	KindSchemaRejected      Kind = "schema_rejected"
	KindOverflow            Kind = "overflow"
	KindInvalidData         Kind = "invalid_data"
	KindInvalidUTF8         Kind = "invalid_utf8"
	KindUnsupported         Kind = "unsupported"
	KindNilPointer          Kind = "nil_pointer"
	KindNotFound            Kind = "not_found"
)

// Sentinels for errors.Is. They match any error of the same kind.
var (
	ErrMissingField        = &Error{Kind: KindMissingField}
	ErrTypeMismatch        = &Error{Kind: KindTypeMismatch}
	ErrUnregisteredSubtype = &Error{Kind: KindUnregisteredSubtype}
	ErrIndexOutOfRange     = &Error{Kind: KindIndexOutOfRange}
	ErrCustomEncoding      = &Error{Kind: KindCustomEncoding}
	ErrSchemaRejected      = &Error{Kind: KindSchemaRejected}
	ErrOverflow            = &Error{Kind: KindOverflow}
	ErrInvalidData         = &Error{Kind: KindInvalidData}
)

// Error is the structured error type used throughout the module
type Error struct {
	Value      any
	Cause      error
	Phase      Phase
	Kind       Kind
	GoType     string
	SchemaType string
	Detail     string
	Path       []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.GoType != "" || e.SchemaType != "" {
		b.WriteString(": ")
		if e.GoType != "" && e.SchemaType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
			b.WriteString(", schema type ")
			b.WriteString(e.SchemaType)
		} else if e.GoType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
		} else {
			b.WriteString("schema type ")
			b.WriteString(e.SchemaType)
		}
	}

	if e.Detail != "" {
		if e.GoType != "" || e.SchemaType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. Kinds must be equal; the
// phase is compared only when the target sets one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Kind != t.Kind {
		return false
	}
	return t.Phase == "" || e.Phase == t.Phase
}

// WithPath returns a copy of the error with prefix prepended to its path.
func (e *Error) WithPath(prefix ...string) *Error {
	if len(prefix) == 0 {
		return e
	}
	cp := *e
	cp.Path = append(append(make([]string, 0, len(prefix)+len(e.Path)), prefix...), e.Path...)
	return &cp
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// SchemaType sets the schema type name
func (b *Builder) SchemaType(t string) *Builder {
	b.err.SchemaType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, goType, schemaType string) *Error {
	return &Error{
		Phase:      phase,
		Kind:       KindTypeMismatch,
		Path:       path,
		GoType:     goType,
		SchemaType: schemaType,
	}
}

// MissingField reports a schema field the Go structure cannot satisfy
func MissingField(phase Phase, path []string, fieldName, goType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindMissingField,
		Path:   path,
		GoType: goType,
		Detail: fmt.Sprintf("schema field %q has no matching struct field", fieldName),
		Value:  fieldName,
	}
}

// UnregisteredSubtype reports a value outside a closed variant set
func UnregisteredSubtype(phase Phase, path []string, goType, union string) *Error {
	return &Error{
		Phase:      phase,
		Kind:       KindUnregisteredSubtype,
		Path:       path,
		GoType:     goType,
		SchemaType: union,
		Detail:     "type is not a registered variant",
	}
}

// IndexOutOfRange reports a union branch index outside [0, count)
func IndexOutOfRange(phase Phase, path []string, index int64, count int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindIndexOutOfRange,
		Path:   path,
		Detail: fmt.Sprintf("branch index %d out of range [0, %d)", index, count),
		Value:  index,
	}
}

// CustomEncoding reports a custom encoding that could not be constructed
func CustomEncoding(path []string, name string, cause error) *Error {
	return &Error{
		Phase:  PhaseBind,
		Kind:   KindCustomEncoding,
		Path:   path,
		Detail: fmt.Sprintf("construct custom encoding %q", name),
		Cause:  cause,
	}
}

// InvalidUTF8 creates an invalid UTF-8 error
func InvalidUTF8(phase Phase, path []string, data []byte) *Error {
	preview := data
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidUTF8,
		Path:   path,
		Detail: fmt.Sprintf("invalid UTF-8 sequence: %x", preview),
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// NilPointer creates a nil pointer error
func NilPointer(phase Phase, path []string, goType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNilPointer,
		Path:   path,
		GoType: goType,
		Detail: "nil pointer",
	}
}

// Overflow creates an overflow error
func Overflow(phase Phase, path []string, value any, targetType string) *Error {
	return &Error{
		Phase:      phase,
		Kind:       KindOverflow,
		Path:       path,
		SchemaType: targetType,
		Detail:     fmt.Sprintf("value %v overflows %s", value, targetType),
		Value:      value,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// ReadFailed wraps a decoder failure at path
func ReadFailed(path []string, cause error) *Error {
	if e, ok := cause.(*Error); ok {
		return e.WithPath(path...)
	}
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: "read failed",
		Cause:  cause,
	}
}

// WriteFailed wraps an encoder failure at path
func WriteFailed(path []string, cause error) *Error {
	if e, ok := cause.(*Error); ok {
		return e.WithPath(path...)
	}
	return &Error{
		Phase:  PhaseEncode,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: "write failed",
		Cause:  cause,
	}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
