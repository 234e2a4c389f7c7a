package binary

import "sync"

const (
	// Pool limits to prevent memory bloat
	poolMaxBuf = 64 << 10 // max retained buffer bytes
)

var encoderPool = sync.Pool{
	New: func() any {
		return NewEncoder()
	},
}

// GetEncoder returns an empty Encoder from the pool.
func GetEncoder() *Encoder {
	return encoderPool.Get().(*Encoder)
}

// PutEncoder returns e to the pool. Encoders holding oversized buffers are
// dropped. Bytes previously returned by e must not be used afterwards.
func PutEncoder(e *Encoder) {
	if e == nil || e.buf.Cap() > poolMaxBuf {
		return // reject oversized
	}
	e.Reset()
	encoderPool.Put(e)
}
