// Package decode appends values laid out by a dtype.Descriptor to Arrow builders.
//
// Multi-byte scalars are assembled through an endian engine from arbitrary
// offsets; record bytes are never cast to typed pointers. Variable-length
// values read a 16-byte in-line header (count, heap offset) and take their
// payload from the dataset heap. Text is emitted as valid UTF-8: invalid
// sequences become U+FFFD.
//
// Decoding has no error path. The row cursor checks record bounds once per
// record, so a source slice shorter than its descriptor, or a heap reference
// past the end of the heap, is a defect and panics.
package decode

import (
	"bytes"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/arloliu/h5col/dtype"
	"github.com/arloliu/h5col/endian"
)

// Decoder holds the byte order and heap shared by all values of a dataset.
// It is stateless and safe for concurrent use.
type Decoder struct {
	engine endian.EndianEngine
	heap   []byte
}

// New creates a Decoder. heap may be nil when the dataset has no
// variable-length values.
func New(engine endian.EndianEngine, heap []byte) *Decoder {
	return &Decoder{engine: engine, heap: heap}
}

// Engine returns the byte order engine.
func (dec *Decoder) Engine() endian.EndianEngine {
	return dec.engine
}

// Decode appends the value of type d found at the start of src to b.
//
// b must be the builder matching schema.DataType(d). Compound fields are read
// at src[field.Offset:], independent of field order.
func (dec *Decoder) Decode(d *dtype.Descriptor, src []byte, b array.Builder) {
	if size := d.Size(); len(src) < size {
		panic(fmt.Sprintf("decode: %s needs %d bytes, source has %d", d, size, len(src)))
	}

	switch d.Kind {
	case dtype.KindInt:
		dec.decodeInt(d.Width, src, b)
	case dtype.KindUint:
		dec.decodeUint(d.Width, src, b)
	case dtype.KindFloat:
		if d.Width == 4 {
			b.(*array.Float32Builder).Append(math.Float32frombits(dec.engine.Uint32(src)))
		} else {
			b.(*array.Float64Builder).Append(math.Float64frombits(dec.engine.Uint64(src)))
		}
	case dtype.KindBool:
		b.(*array.BooleanBuilder).Append(src[0] != 0)
	case dtype.KindEnum:
		dec.Decode(d.Base, src, b)
	case dtype.KindCompound:
		sb := b.(*array.StructBuilder)
		sb.Append(true)
		for i, f := range d.Fields {
			dec.Decode(f.Type, src[f.Offset:], sb.FieldBuilder(i))
		}
	case dtype.KindFixedArray:
		fb := b.(*array.FixedSizeListBuilder)
		fb.Append(true)
		dec.decodeElems(d.Elem, d.Len, src, fb.ValueBuilder())
	case dtype.KindVarArray:
		count, payload := dec.heapSpan(d, src, d.Elem.Size())
		lb := b.(*array.ListBuilder)
		lb.Append(true)
		dec.decodeElems(d.Elem, count, payload, lb.ValueBuilder())
	case dtype.KindFixedText:
		appendText(b, bytes.TrimRight(src[:d.Len], "\x00"))
	case dtype.KindVarText:
		_, payload := dec.heapSpan(d, src, 1)
		appendText(b, payload)
	case dtype.KindReference:
		b.(*array.BinaryBuilder).Append(src[:d.Ref.Size()])
	default:
		panic(fmt.Sprintf("decode: unsupported descriptor %s", d))
	}
}

var replacementChar = []byte("\uFFFD")

// appendText appends text as an Arrow string. Invalid UTF-8 sequences are
// replaced with U+FFFD.
func appendText(b array.Builder, text []byte) {
	if !utf8.Valid(text) {
		text = bytes.ToValidUTF8(text, replacementChar)
	}
	b.(*array.StringBuilder).BinaryBuilder.Append(text)
}

func (dec *Decoder) decodeInt(width int, src []byte, b array.Builder) {
	switch width {
	case 1:
		b.(*array.Int8Builder).Append(int8(src[0]))
	case 2:
		b.(*array.Int16Builder).Append(int16(dec.engine.Uint16(src))) //nolint: gosec
	case 4:
		b.(*array.Int32Builder).Append(int32(dec.engine.Uint32(src))) //nolint: gosec
	case 8:
		b.(*array.Int64Builder).Append(int64(dec.engine.Uint64(src))) //nolint: gosec
	default:
		panic(fmt.Sprintf("decode: int width %d", width))
	}
}

func (dec *Decoder) decodeUint(width int, src []byte, b array.Builder) {
	switch width {
	case 1:
		b.(*array.Uint8Builder).Append(src[0])
	case 2:
		b.(*array.Uint16Builder).Append(dec.engine.Uint16(src))
	case 4:
		b.(*array.Uint32Builder).Append(dec.engine.Uint32(src))
	case 8:
		b.(*array.Uint64Builder).Append(dec.engine.Uint64(src))
	default:
		panic(fmt.Sprintf("decode: uint width %d", width))
	}
}

func (dec *Decoder) decodeElems(elem *dtype.Descriptor, n int, src []byte, b array.Builder) {
	size := elem.Size()
	b.Reserve(n)
	for i := range n {
		dec.Decode(elem, src[i*size:], b)
	}
}

// heapSpan reads the variable-length header at src and returns the element
// count and the heap bytes holding count elements of elemSize bytes.
func (dec *Decoder) heapSpan(d *dtype.Descriptor, src []byte, elemSize int) (int, []byte) {
	count := dec.engine.Uint64(src[0:8])
	off := dec.engine.Uint64(src[8:16])

	heapLen := uint64(len(dec.heap))
	if elemSize > 0 && count > heapLen/uint64(elemSize) {
		panic(fmt.Sprintf("decode: %s count %d exceeds heap of %d bytes", d, count, heapLen))
	}
	n := count * uint64(elemSize)
	if off > heapLen || n > heapLen-off {
		panic(fmt.Sprintf("decode: %s payload [%d, %d) outside heap of %d bytes", d, off, off+n, heapLen))
	}

	return int(count), dec.heap[off : off+n] //nolint: gosec
}
