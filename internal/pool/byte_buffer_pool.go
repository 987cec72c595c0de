// Package pool provides reusable byte buffers for building container files.
package pool

import (
	"io"
	"sync"
)

const (
	DirectoryBufferDefaultSize  = 1024 * 4         // 4KiB, enough for a few dozen directory entries
	DirectoryBufferMaxThreshold = 1024 * 64        // 64KiB
	FileBufferDefaultSize       = 1024 * 256       // 256KiB
	FileBufferMaxThreshold      = 1024 * 1024 * 16 // 16MiB
)

// ByteBuffer is an append-only byte slice with an amortised growth strategy.
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

// Reset empties the buffer but keeps its capacity.
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

// MustWrite appends data to the buffer.
func (bb *ByteBuffer) MustWrite(data []byte) {
	bb.B = append(bb.B, data...)
}

// Grow ensures the buffer can hold requiredBytes more bytes without reallocating.
//
// Small buffers grow by DirectoryBufferDefaultSize; buffers above four times that
// grow by 25% of their capacity, and never by less than requiredBytes.
func (bb *ByteBuffer) Grow(requiredBytes int) {
	available := cap(bb.B) - len(bb.B)
	if available >= requiredBytes {
		return
	}

	growBy := DirectoryBufferDefaultSize
	if cap(bb.B) > 4*DirectoryBufferDefaultSize {
		growBy = cap(bb.B) / 4
	}
	if growBy < requiredBytes {
		growBy = requiredBytes
	}

	newBuf := make([]byte, len(bb.B), len(bb.B)+growBy)
	copy(newBuf, bb.B)
	bb.B = newBuf
}

// Write appends data to the buffer, growing it as needed.
func (bb *ByteBuffer) Write(data []byte) (int, error) {
	bb.Grow(len(data))
	bb.B = append(bb.B, data...)

	return len(data), nil
}

// WriteTo writes the contents of the buffer to w.
func (bb *ByteBuffer) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(bb.B)
	return int64(n), err
}

// ByteBufferPool is a sync.Pool of ByteBuffers that drops buffers grown past maxThreshold.
type ByteBufferPool struct {
	pool         sync.Pool
	maxThreshold int
}

// NewByteBufferPool creates a pool whose buffers start with defaultSize capacity.
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
	directoryPool = NewByteBufferPool(DirectoryBufferDefaultSize, DirectoryBufferMaxThreshold)
	filePool      = NewByteBufferPool(FileBufferDefaultSize, FileBufferMaxThreshold)
)

// GetDirectoryBuffer retrieves a buffer sized for a container directory.
func GetDirectoryBuffer() *ByteBuffer {
	return directoryPool.Get()
}

// PutDirectoryBuffer returns a directory buffer to its pool.
func PutDirectoryBuffer(bb *ByteBuffer) {
	directoryPool.Put(bb)
}

// GetFileBuffer retrieves a buffer sized for a whole container file.
func GetFileBuffer() *ByteBuffer {
	return filePool.Get()
}

// PutFileBuffer returns a file buffer to its pool.
func PutFileBuffer(bb *ByteBuffer) {
	filePool.Put(bb)
}
