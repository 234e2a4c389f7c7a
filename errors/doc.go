// Package errors provides structured error types for the recbind module.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: field path, Go/schema type names, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseBind, errors.KindTypeMismatch).
//		Path("User", "age").
//		GoType("int32").
//		SchemaType("double").
//		Detail("narrowing is not allowed").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.MissingField(errors.PhaseBind, path, "email", "User")
//	err := errors.IndexOutOfRange(errors.PhaseDecode, path, 5, 2)
//
// All errors implement the standard error interface and support errors.Is/As.
// The Err* sentinels match by kind regardless of phase:
//
//	if errors.Is(err, errors.ErrMissingField) { ... }
package errors
