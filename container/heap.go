package container

import (
	"github.com/arloliu/h5col/dtype"
	"github.com/arloliu/h5col/endian"
)

// HeapBuilder accumulates the out-of-line payloads of variable-length values
// while records are being laid out for a Writer.
type HeapBuilder struct {
	engine endian.EndianEngine
	data   []byte
}

// NewHeapBuilder creates an empty heap whose headers use engine.
func NewHeapBuilder(engine endian.EndianEngine) *HeapBuilder {
	return &HeapBuilder{engine: engine}
}

// PutVar appends payload to the heap and writes the in-line header for a value
// of count elements into dst, which must hold dtype.VarHeaderSize bytes.
func (h *HeapBuilder) PutVar(dst []byte, payload []byte, count int) {
	off := len(h.data)
	h.data = append(h.data, payload...)

	_ = dst[dtype.VarHeaderSize-1]
	h.engine.PutUint64(dst[0:8], uint64(count)) //nolint: gosec
	h.engine.PutUint64(dst[8:16], uint64(off))  //nolint: gosec
}

// PutText stores s as a variable-length text value.
func (h *HeapBuilder) PutText(dst []byte, s string) {
	h.PutVar(dst, []byte(s), len(s))
}

// Bytes returns the heap contents.
func (h *HeapBuilder) Bytes() []byte {
	return h.data
}

// Len returns the heap size in bytes.
func (h *HeapBuilder) Len() int {
	return len(h.data)
}
