package section

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/arloliu/h5col/dtype"
	"github.com/arloliu/h5col/endian"
	"github.com/arloliu/h5col/errs"
	"github.com/arloliu/h5col/format"
	"github.com/arloliu/h5col/internal/hash"
)

// Payload locates one compressed byte range in the container.
type Payload struct {
	// Offset is the absolute file offset of the stored bytes.
	Offset uint64
	// StoredLength is the length of the bytes as stored, after compression.
	StoredLength uint64
	// RawLength is the length after decompression.
	RawLength uint64
}

// End returns Offset+StoredLength and false if the sum overflows.
func (p Payload) End() (uint64, bool) {
	end := p.Offset + p.StoredLength
	if end < p.Offset {
		return 0, false
	}

	return end, true
}

func (p Payload) appendTo(dst []byte, engine endian.EndianEngine) []byte {
	dst = engine.AppendUint64(dst, p.Offset)
	dst = engine.AppendUint64(dst, p.StoredLength)

	return engine.AppendUint64(dst, p.RawLength)
}

func parsePayload(data []byte, engine endian.EndianEngine) Payload {
	return Payload{
		Offset:       engine.Uint64(data[0:8]),
		StoredLength: engine.Uint64(data[8:16]),
		RawLength:    engine.Uint64(data[16:24]),
	}
}

// DatasetEntry records one dataset in the container directory.
//
// On disk an entry is variable sized:
//
//	uvarint name length, name bytes
//	uvarint descriptor length, descriptor bytes (dtype binary form)
//	uint64  Count
//	uint8   Compression
//	3×uint64 Records payload (offset, stored length, raw length)
//	3×uint64 Heap payload
//	uint64  Checksum
//
// Fixed-width fields use the container byte order.
type DatasetEntry struct {
	// Name is the dataset path, for example "/group/table".
	Name string
	// Type describes one record.
	Type *dtype.Descriptor
	// Count is the number of records.
	Count uint64
	// Compression applies to both payloads.
	Compression format.CompressionType
	// Records holds Count fixed-stride records.
	Records Payload
	// Heap holds the out-of-line bytes of variable-length values. It may be empty.
	Heap Payload
	// Checksum is the xxHash64 of the raw record bytes followed by the raw heap bytes.
	Checksum uint64
}

// ID returns the xxHash64 of the dataset name, the key of the reader's index.
func (e *DatasetEntry) ID() uint64 {
	return hash.ID(e.Name)
}

// AppendTo appends the entry to dst using the specified endian engine.
//
// Parameters:
//   - dst: Destination slice (grown as needed)
//   - engine: Endian engine for byte order
//
// Returns:
//   - []byte: dst with the encoded entry appended
func (e *DatasetEntry) AppendTo(dst []byte, engine endian.EndianEngine) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(e.Name)))
	dst = append(dst, e.Name...)

	typ := e.Type.AppendBinary(nil)
	dst = binary.AppendUvarint(dst, uint64(len(typ)))
	dst = append(dst, typ...)

	dst = engine.AppendUint64(dst, e.Count)
	dst = append(dst, byte(e.Compression))
	dst = e.Records.appendTo(dst, engine)
	dst = e.Heap.appendTo(dst, engine)

	return engine.AppendUint64(dst, e.Checksum)
}

// ParseDatasetEntry parses one entry from the front of data.
//
// The descriptor is parsed but not validated; callers validate it before
// building a schema.
//
// Parameters:
//   - data: Byte slice starting at the entry
//   - engine: Endian engine for byte order
//
// Returns:
//   - DatasetEntry: Parsed entry
//   - int: Number of bytes consumed
//   - error: ErrInvalidDirectory on truncation, ErrUnsupportedCompressor on an
//     unknown compression byte, or a descriptor parse error
func ParseDatasetEntry(data []byte, engine endian.EndianEngine) (DatasetEntry, int, error) {
	var e DatasetEntry
	pos := 0

	name, n, err := readBytes(data)
	if err != nil {
		return e, 0, fmt.Errorf("%w: dataset name: %w", errs.ErrInvalidDirectory, err)
	}
	e.Name = string(name)
	pos += n

	typ, n, err := readBytes(data[pos:])
	if err != nil {
		return e, 0, fmt.Errorf("%w: dataset %q type: %w", errs.ErrInvalidDirectory, e.Name, err)
	}
	pos += n

	d, used, err := dtype.Parse(typ)
	if err != nil {
		return e, 0, fmt.Errorf("dataset %q: %w", e.Name, err)
	}
	if used != len(typ) {
		return e, 0, fmt.Errorf("%w: dataset %q type has %d trailing bytes", errs.ErrInvalidDirectory, e.Name, len(typ)-used)
	}
	e.Type = d

	const fixed = 8 + 1 + 2*PayloadTripleSize + 8
	if len(data)-pos < fixed {
		return e, 0, fmt.Errorf("%w: dataset %q entry truncated", errs.ErrInvalidDirectory, e.Name)
	}

	e.Count = engine.Uint64(data[pos:])
	pos += 8
	e.Compression = format.CompressionType(data[pos])
	pos++
	if !e.Compression.Valid() {
		return e, 0, fmt.Errorf("%w: dataset %q compression 0x%02x", errs.ErrUnsupportedCompressor, e.Name, uint8(e.Compression))
	}
	e.Records = parsePayload(data[pos:], engine)
	pos += PayloadTripleSize
	e.Heap = parsePayload(data[pos:], engine)
	pos += PayloadTripleSize
	e.Checksum = engine.Uint64(data[pos:])
	pos += 8

	return e, pos, nil
}

func readBytes(data []byte) ([]byte, int, error) {
	l, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, 0, errors.New("bad length prefix")
	}
	if l > math.MaxInt32 || int(l) > len(data)-n {
		return nil, 0, fmt.Errorf("length %d exceeds %d remaining bytes", l, len(data)-n)
	}
	end := n + int(l)

	return data[n:end], end, nil
}
