// Package pool provides byte buffers tuned for the ULog codec: the parser's
// message reassembly buffer and pooled scratch buffers for serialization.
package pool

import "sync"

const (
	// ReassemblyBufferSize is the initial capacity of the parser's
	// reassembly buffer.
	ReassemblyBufferSize = 2048

	// MessageBufferSize is the default capacity of pooled serialization
	// buffers. Most ULog messages are far smaller.
	MessageBufferSize = 512

	// messageBufferMaxThreshold drops oversized buffers instead of pooling
	// them, to avoid retaining one-off large messages.
	messageBufferMaxThreshold = 64 * 1024
)

// ByteBuffer is a resizable byte buffer with cheap front-trimming, used as
// the parser's message reassembly area. Messages split across read chunks
// are collected here; once decoded, the consumed prefix is trimmed off.
type ByteBuffer struct {
	// B is the underlying byte slice.
	B []byte
}

// NewByteBuffer creates a new ByteBuffer with the specified capacity.
func NewByteBuffer(capacity int) *ByteBuffer {
	return &ByteBuffer{
		B: make([]byte, 0, capacity),
	}
}

// Bytes returns the underlying byte slice.
func (bb *ByteBuffer) Bytes() []byte {
	return bb.B
}

// Len returns the number of buffered bytes.
func (bb *ByteBuffer) Len() int {
	return len(bb.B)
}

// Cap returns the buffer capacity.
func (bb *ByteBuffer) Cap() int {
	return cap(bb.B)
}

// Reset empties the buffer but retains the allocated memory.
func (bb *ByteBuffer) Reset() {
	bb.B = bb.B[:0]
}

// Append adds data to the buffer, growing it as needed.
func (bb *ByteBuffer) Append(data []byte) {
	bb.B = append(bb.B, data...)
}

// AppendCapped adds at most as many bytes of data as fit in the current
// capacity and returns the number of bytes taken. The buffer never grows.
// The recovery scanner relies on this bound: a full buffer means the scan
// must make progress by discarding, not by growing.
func (bb *ByteBuffer) AppendCapped(data []byte) int {
	n := min(len(data), cap(bb.B)-len(bb.B))
	bb.B = append(bb.B, data[:n]...)

	return n
}

// TrimFront discards the first n buffered bytes, shifting the remainder to
// the front. Panics if n exceeds the buffered length.
func (bb *ByteBuffer) TrimFront(n int) {
	if n < 0 || n > len(bb.B) {
		panic("TrimFront: invalid length")
	}

	remaining := copy(bb.B, bb.B[n:])
	bb.B = bb.B[:remaining]
}

// ByteBufferPool is a pool of ByteBuffers to minimize allocations during
// message serialization.
type ByteBufferPool struct {
	pool         sync.Pool
	maxThreshold int
}

// NewByteBufferPool creates a pool handing out buffers of the given default
// capacity. Buffers above maxThreshold are dropped on Put.
func NewByteBufferPool(defaultSize int, maxThreshold int) *ByteBufferPool {
	return &ByteBufferPool{
		pool: sync.Pool{
			New: func() any {
				return NewByteBuffer(defaultSize)
			},
		},
		maxThreshold: maxThreshold,
	}
}

// Get retrieves an empty ByteBuffer from the pool.
func (bbp *ByteBufferPool) Get() *ByteBuffer {
	bb, _ := bbp.pool.Get().(*ByteBuffer)
	return bb
}

// Put returns a ByteBuffer to the pool for reuse.
func (bbp *ByteBufferPool) Put(bb *ByteBuffer) {
	if bb == nil {
		return
	}

	if bbp.maxThreshold > 0 && cap(bb.B) > bbp.maxThreshold {
		// Discard overly large buffers to prevent memory bloat
		return
	}

	bb.Reset()
	bbp.pool.Put(bb)
}

var messagePool = NewByteBufferPool(MessageBufferSize, messageBufferMaxThreshold)

// GetMessageBuffer retrieves a serialization scratch buffer.
func GetMessageBuffer() *ByteBuffer {
	return messagePool.Get()
}

// PutMessageBuffer returns a serialization scratch buffer to the pool.
func PutMessageBuffer(bb *ByteBuffer) {
	messagePool.Put(bb)
}
