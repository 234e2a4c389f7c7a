package binary

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/wippyai/recbind/errors"
)

// Encoder writes the Avro binary encoding into an in-memory buffer.
// It is not safe for concurrent use.
type Encoder struct {
	buf     bytes.Buffer
	scratch [binary.MaxVarintLen64]byte
	blocks  []int64 // pending item counts of open arrays and maps
}

// NewEncoder creates a new Encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Bytes returns the written bytes. The slice is valid until the next write
// or Reset.
func (e *Encoder) Bytes() []byte {
	return e.buf.Bytes()
}

// Len returns the number of bytes written.
func (e *Encoder) Len() int {
	return e.buf.Len()
}

// Reset discards all written bytes and open blocks.
func (e *Encoder) Reset() {
	e.buf.Reset()
	e.blocks = e.blocks[:0]
}

// WriteTo writes the buffered bytes to w.
func (e *Encoder) WriteTo(w io.Writer) (int64, error) {
	return e.buf.WriteTo(w)
}

func (e *Encoder) writeVarint(v int64) {
	n := binary.PutVarint(e.scratch[:], v)
	e.buf.Write(e.scratch[:n])
}

func (e *Encoder) WriteNull() error {
	return nil
}

func (e *Encoder) WriteBoolean(v bool) error {
	if v {
		e.buf.WriteByte(1)
	} else {
		e.buf.WriteByte(0)
	}
	return nil
}

func (e *Encoder) WriteInt(v int32) error {
	e.writeVarint(int64(v))
	return nil
}

func (e *Encoder) WriteLong(v int64) error {
	e.writeVarint(v)
	return nil
}

func (e *Encoder) WriteFloat(v float32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], math.Float32bits(v))
	e.buf.Write(b[:])
	return nil
}

func (e *Encoder) WriteDouble(v float64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	e.buf.Write(b[:])
	return nil
}

func (e *Encoder) WriteBytes(v []byte) error {
	if len(v) > MaxStringSize {
		return errors.Overflow(errors.PhaseEncode, nil, len(v), "bytes")
	}
	e.writeVarint(int64(len(v)))
	e.buf.Write(v)
	return nil
}

func (e *Encoder) WriteString(v string) error {
	if len(v) > MaxStringSize {
		return errors.Overflow(errors.PhaseEncode, nil, len(v), "string")
	}
	e.writeVarint(int64(len(v)))
	e.buf.WriteString(v)
	return nil
}

func (e *Encoder) WriteFixed(v []byte) error {
	e.buf.Write(v)
	return nil
}

func (e *Encoder) WriteEnum(v int) error {
	if v < 0 || v > math.MaxInt32 {
		return errors.Overflow(errors.PhaseEncode, nil, v, "enum")
	}
	e.writeVarint(int64(v))
	return nil
}

func (e *Encoder) WriteIndex(v int) error {
	if v < 0 {
		return errors.InvalidData(errors.PhaseEncode, nil, "negative union index")
	}
	e.writeVarint(int64(v))
	return nil
}

func (e *Encoder) WriteArrayStart() error {
	e.blocks = append(e.blocks, 0)
	return nil
}

// SetItemCount starts a block of n items. Blocks of zero items are not
// written since a zero count terminates the sequence.
func (e *Encoder) SetItemCount(n int64) error {
	if len(e.blocks) == 0 {
		return errors.InvalidData(errors.PhaseEncode, nil, "SetItemCount outside array or map")
	}
	if n < 0 || n > MaxBlockCount {
		return errors.Overflow(errors.PhaseEncode, nil, n, "block count")
	}
	top := len(e.blocks) - 1
	if e.blocks[top] != 0 {
		return errors.InvalidData(errors.PhaseEncode, nil, "previous block has unwritten items")
	}
	if n > 0 {
		e.writeVarint(n)
	}
	e.blocks[top] = n
	return nil
}

func (e *Encoder) StartItem() error {
	if len(e.blocks) == 0 {
		return errors.InvalidData(errors.PhaseEncode, nil, "StartItem outside array or map")
	}
	top := len(e.blocks) - 1
	if e.blocks[top] == 0 {
		return errors.InvalidData(errors.PhaseEncode, nil, "more items than the block count")
	}
	e.blocks[top]--
	return nil
}

func (e *Encoder) WriteArrayEnd() error {
	return e.endBlocks()
}

func (e *Encoder) WriteMapStart() error {
	return e.WriteArrayStart()
}

func (e *Encoder) WriteMapEnd() error {
	return e.endBlocks()
}

func (e *Encoder) endBlocks() error {
	if len(e.blocks) == 0 {
		return errors.InvalidData(errors.PhaseEncode, nil, "end without matching start")
	}
	top := len(e.blocks) - 1
	if e.blocks[top] != 0 {
		return errors.InvalidData(errors.PhaseEncode, nil, "block ended with unwritten items")
	}
	e.blocks = e.blocks[:top]
	e.buf.WriteByte(0)
	return nil
}
