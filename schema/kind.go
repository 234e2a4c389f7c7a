package schema

// Kind identifies the shape of a schema node.
type Kind uint8

const (
	Null Kind = iota
	Boolean
	Int
	Long
	Float
	Double
	String
	Bytes
	Array
	Map
	Union
	Record
	Enum
	Fixed
)

var kindNames = [...]string{
	Null:    "null",
	Boolean: "boolean",
	Int:     "int",
	Long:    "long",
	Float:   "float",
	Double:  "double",
	String:  "string",
	Bytes:   "bytes",
	Array:   "array",
	Map:     "map",
	Union:   "union",
	Record:  "record",
	Enum:    "enum",
	Fixed:   "fixed",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsPrimitive reports whether k is one of the eight primitive kinds.
func (k Kind) IsPrimitive() bool {
	return k <= Bytes
}

// IsNamed reports whether schemas of kind k carry a full name.
func (k Kind) IsNamed() bool {
	return k == Record || k == Enum || k == Fixed
}

// primitiveKind looks up a primitive type name.
func primitiveKind(name string) (Kind, bool) {
	for k := Null; k <= Bytes; k++ {
		if kindNames[k] == name {
			return k, true
		}
	}
	return 0, false
}
