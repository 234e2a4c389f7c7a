package bind

import (
	"reflect"

	"github.com/wippyai/recbind/internal/structure"
)

// Structure is the field table of a struct type.
type Structure = structure.Structure

// StructField is one bound struct field: its wire name, Go name, field
// index, offset, type, constructor slot and custom encoding directive.
type StructField = structure.Field

// StructureOf returns the cached field table of struct type t.
func StructureOf(t reflect.Type) (*Structure, error) {
	return structure.Of(t)
}
