package pool

import "sync"

const (
	StagingBufferDefaultSize  = 1024 * 64        // 64KiB
	StagingBufferMaxThreshold = 1024 * 1024 * 64 // 64MiB
	HeapBufferDefaultSize     = 1024 * 16        // 16KiB
	HeapBufferMaxThreshold    = 1024 * 1024 * 16 // 16MiB
)

type ByteBuffer struct {
	// B is the underlying byte slice.
	B []byte
}

// NewByteBuffer creates a new ByteBuffer with the specified default capacity.
func NewByteBuffer(defaultSize int) *ByteBuffer {
	return &ByteBuffer{
		B: make([]byte, 0, defaultSize),
	}
}

// Bytes returns the underlying byte slice.
func (bb *ByteBuffer) Bytes() []byte {
	return bb.B
}

// Reset resets the buffer to be empty, but retains the allocated memory for reuse.
func (bb *ByteBuffer) Reset() {
	bb.B = bb.B[:0]
}

// Len returns the length of the buffer.
func (bb *ByteBuffer) Len() int {
	return len(bb.B)
}

// Cap returns the capacity of the buffer.
func (bb *ByteBuffer) Cap() int {
	return cap(bb.B)
}

// Resize sets the length of the buffer to n, reallocating when the capacity is short.
// The contents are unspecified after a reallocation.
func (bb *ByteBuffer) Resize(n int) {
	if cap(bb.B) < n {
		bb.B = make([]byte, n)
		return
	}

	bb.B = bb.B[:n]
}

// Write appends the contents of data to the buffer, growing it as needed.
func (bb *ByteBuffer) Write(data []byte) (int, error) {
	bb.B = append(bb.B, data...)
	return len(data), nil
}

// ByteBufferPool is a pool of ByteBuffers to minimize allocations.
//
// Buffers whose capacity exceeds maxThreshold are dropped on Put so a single huge
// array does not pin memory for the rest of the process.
type ByteBufferPool struct {
	pool         sync.Pool
	maxThreshold int
}

// NewByteBufferPool creates a new ByteBufferPool with buffers of the specified default size.
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

// Get retrieves a ByteBuffer from the pool.
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
		return
	}

	bb.Reset()
	bbp.pool.Put(bb)
}

var (
	stagingPool = NewByteBufferPool(StagingBufferDefaultSize, StagingBufferMaxThreshold)
	heapPool    = NewByteBufferPool(HeapBufferDefaultSize, HeapBufferMaxThreshold)
)

// GetStagingBuffer retrieves a buffer sized to n bytes for contiguous copies of caller arrays.
func GetStagingBuffer(n int) *ByteBuffer {
	bb := stagingPool.Get()
	bb.Resize(n)

	return bb
}

// PutStagingBuffer returns a staging buffer to the pool.
func PutStagingBuffer(bb *ByteBuffer) {
	stagingPool.Put(bb)
}

// GetHeapBuffer retrieves an empty buffer backing a reference-codec allocation.
func GetHeapBuffer() *ByteBuffer {
	return heapPool.Get()
}

// PutHeapBuffer returns a reference-codec allocation to the pool.
func PutHeapBuffer(bb *ByteBuffer) {
	heapPool.Put(bb)
}
