package binary

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"slices"
	"unicode/utf8"

	"github.com/wippyai/recbind/errors"
)

// Safety limits to prevent memory exhaustion from malformed input.
const (
	MaxStringSize = 1 << 30 // 1 GB max string or bytes length
	MaxBlockCount = 1 << 27 // 128M max items in a single block

	readChunk = 64 << 10
)

// Decoder reads the Avro binary encoding from an io.ByteReader with position
// tracking. It is not safe for concurrent use.
type Decoder struct {
	r   io.ByteReader
	rd  io.Reader // same stream as r when it also implements io.Reader
	pos int
}

// NewDecoder creates a new Decoder wrapping the given io.ByteReader.
func NewDecoder(r io.ByteReader) *Decoder {
	d := &Decoder{r: r}
	if rd, ok := r.(io.Reader); ok {
		d.rd = rd
	}
	return d
}

// NewBytesDecoder creates a Decoder over an in-memory datum.
func NewBytesDecoder(data []byte) *Decoder {
	return NewDecoder(bytes.NewReader(data))
}

// Position returns the current byte position.
func (d *Decoder) Position() int {
	return d.pos
}

func (d *Decoder) readByte() (byte, error) {
	b, err := d.r.ReadByte()
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return 0, d.wrapError(err, "read byte")
	}
	d.pos++
	return b, nil
}

// readFull reads n bytes, growing the buffer at most readChunk bytes ahead of
// the input actually consumed.
func (d *Decoder) readFull(n int) ([]byte, error) {
	buf := make([]byte, 0, min(n, readChunk))
	for len(buf) < n {
		start := len(buf)
		buf = slices.Grow(buf, min(n-start, readChunk))
		buf = buf[:start+min(n-start, readChunk)]
		if d.rd == nil {
			for i := start; i < len(buf); i++ {
				b, err := d.readByte()
				if err != nil {
					return nil, err
				}
				buf[i] = b
			}
			continue
		}
		read, err := io.ReadFull(d.rd, buf[start:])
		d.pos += read
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, d.wrapError(err, "read bytes")
		}
	}
	return buf, nil
}

// readVarint reads a zig-zag encoded variable length integer spanning at
// most maxBytes bytes.
func (d *Decoder) readVarint(maxBytes int) (int64, error) {
	var result uint64
	var shift uint
	for i := 0; ; i++ {
		if i == maxBytes {
			return 0, d.invalid("varint longer than %d bytes", maxBytes)
		}
		b, err := d.readByte()
		if err != nil {
			return 0, err
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
	}
	return int64(result>>1) ^ -int64(result&1), nil
}

func (d *Decoder) ReadNull() error {
	return nil
}

func (d *Decoder) ReadBoolean() (bool, error) {
	b, err := d.readByte()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, d.invalid("invalid boolean byte 0x%02x", b)
	}
}

func (d *Decoder) ReadInt() (int32, error) {
	v, err := d.readVarint(5)
	if err != nil {
		return 0, err
	}
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, d.invalid("int value %d out of range", v)
	}
	return int32(v), nil
}

func (d *Decoder) ReadLong() (int64, error) {
	return d.readVarint(10)
}

func (d *Decoder) ReadFloat() (float32, error) {
	buf, err := d.readFull(4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(buf)), nil
}

func (d *Decoder) ReadDouble() (float64, error) {
	buf, err := d.readFull(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(buf)), nil
}

func (d *Decoder) ReadBytes() ([]byte, error) {
	n, err := d.readLength()
	if err != nil {
		return nil, err
	}
	return d.readFull(n)
}

func (d *Decoder) ReadString() (string, error) {
	data, err := d.ReadBytes()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", errors.InvalidUTF8(errors.PhaseDecode, nil, data)
	}
	return string(data), nil
}

func (d *Decoder) ReadFixed(size int) ([]byte, error) {
	if size < 0 {
		return nil, d.invalid("negative fixed size %d", size)
	}
	return d.readFull(size)
}

func (d *Decoder) ReadEnum() (int, error) {
	v, err := d.ReadInt()
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

func (d *Decoder) ReadIndex() (int64, error) {
	return d.ReadLong()
}

func (d *Decoder) ReadArrayStart() (int64, error) {
	return d.readBlockCount()
}

func (d *Decoder) ArrayNext() (int64, error) {
	return d.readBlockCount()
}

func (d *Decoder) ReadMapStart() (int64, error) {
	return d.readBlockCount()
}

func (d *Decoder) MapNext() (int64, error) {
	return d.readBlockCount()
}

// readBlockCount reads a block item count. A negative count is followed by
// the block's byte size, which is skipped over.
func (d *Decoder) readBlockCount() (int64, error) {
	n, err := d.ReadLong()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		if n == math.MinInt64 {
			return 0, d.invalid("invalid block count %d", n)
		}
		n = -n
		if _, err := d.ReadLong(); err != nil {
			return 0, err
		}
	}
	if n > MaxBlockCount {
		return 0, d.invalid("block count %d exceeds limit %d", n, MaxBlockCount)
	}
	return n, nil
}

func (d *Decoder) readLength() (int, error) {
	n, err := d.ReadLong()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, d.invalid("negative length %d", n)
	}
	if n > MaxStringSize {
		return 0, d.invalid("length %d exceeds limit %d", n, MaxStringSize)
	}
	return int(n), nil
}

func (d *Decoder) invalid(format string, args ...any) error {
	return errors.New(errors.PhaseDecode, errors.KindInvalidData).
		Detail("at position %d: "+format, append([]any{d.pos}, args...)...).
		Build()
}

func (d *Decoder) wrapError(err error, what string) error {
	return errors.New(errors.PhaseDecode, errors.KindInvalidData).
		Detail("at position %d: %s", d.pos, what).
		Cause(err).
		Build()
}
