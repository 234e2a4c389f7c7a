package recbind

// Decoder reads primitive values from a wire-encoded datum.
//
// Arrays and maps are framed in blocks: ReadArrayStart returns the length of
// the first block and ArrayNext the length of each following block. A zero
// length ends the sequence.
type Decoder interface {
	ReadNull() error
	ReadBoolean() (bool, error)
	ReadInt() (int32, error)
	ReadLong() (int64, error)
	ReadFloat() (float32, error)
	ReadDouble() (float64, error)
	ReadString() (string, error)
	ReadBytes() ([]byte, error)
	ReadFixed(size int) ([]byte, error)
	ReadEnum() (int, error)

	// ReadIndex reads a union branch selector.
	ReadIndex() (int64, error)

	ReadArrayStart() (int64, error)
	ArrayNext() (int64, error)
	ReadMapStart() (int64, error)
	MapNext() (int64, error)
}

// Encoder writes primitive values of a datum to the wire.
//
// Arrays and maps are written as WriteArrayStart, then one SetItemCount per
// block followed by StartItem and the item value for each element, then
// WriteArrayEnd which emits the terminating zero-length block.
type Encoder interface {
	WriteNull() error
	WriteBoolean(v bool) error
	WriteInt(v int32) error
	WriteLong(v int64) error
	WriteFloat(v float32) error
	WriteDouble(v float64) error
	WriteString(v string) error
	WriteBytes(v []byte) error
	WriteFixed(v []byte) error
	WriteEnum(v int) error

	// WriteIndex writes a union branch selector.
	WriteIndex(v int) error

	WriteArrayStart() error
	SetItemCount(n int64) error
	StartItem() error
	WriteArrayEnd() error
	WriteMapStart() error
	WriteMapEnd() error
}
