// Package binary implements the Avro binary encoding of primitive values.
//
// Decoder and Encoder satisfy recbind.Decoder and recbind.Encoder:
//
//	int, long     zig-zag variable length integers
//	float, double little-endian IEEE 754
//	bytes, string long length followed by the raw bytes
//	boolean       a single byte, 0 or 1
//	union         long branch index followed by the branch value
//	enum          int symbol index
//	fixed         raw bytes of the declared size
//
// Arrays and maps are written as a series of blocks, each a long item count
// followed by the items, terminated by a zero count. A negative count is
// followed by the block's size in bytes; the decoder accepts both forms.
package binary
