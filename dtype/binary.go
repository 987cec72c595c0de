package dtype

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/arloliu/h5col/errs"
)

// maxDepth bounds descriptor nesting when parsing untrusted input.
const maxDepth = 64

// AppendBinary appends the binary form of d to dst.
//
// The form is a kind byte followed by kind specific fields. Lengths, sizes and
// offsets are uvarints, enum values are varints, and nested descriptors follow
// inline. The encoding carries no byte order dependent fields.
func (d *Descriptor) AppendBinary(dst []byte) []byte {
	dst = append(dst, byte(d.Kind))

	switch d.Kind {
	case KindInt, KindUint, KindFloat, KindBool:
		dst = append(dst, byte(d.Width))
	case KindEnum:
		dst = d.Base.AppendBinary(dst)
		dst = binary.AppendUvarint(dst, uint64(len(d.Members)))
		for _, m := range d.Members {
			dst = appendString(dst, m.Name)
			dst = binary.AppendVarint(dst, m.Value)
		}
	case KindCompound:
		dst = binary.AppendUvarint(dst, uint64(d.ByteSize)) //nolint: gosec
		dst = binary.AppendUvarint(dst, uint64(len(d.Fields)))
		for _, f := range d.Fields {
			dst = appendString(dst, f.Name)
			dst = binary.AppendUvarint(dst, uint64(f.Offset)) //nolint: gosec
			dst = f.Type.AppendBinary(dst)
		}
	case KindFixedArray:
		dst = binary.AppendUvarint(dst, uint64(d.Len)) //nolint: gosec
		dst = d.Elem.AppendBinary(dst)
	case KindVarArray:
		dst = d.Elem.AppendBinary(dst)
	case KindFixedText:
		dst = append(dst, byte(d.Encoding))
		dst = binary.AppendUvarint(dst, uint64(d.Len)) //nolint: gosec
	case KindVarText:
		dst = append(dst, byte(d.Encoding))
	case KindReference:
		dst = append(dst, byte(d.Ref))
	}

	return dst
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (d *Descriptor) MarshalBinary() ([]byte, error) {
	return d.AppendBinary(nil), nil
}

// Parse decodes a descriptor from the front of data.
//
// Returns:
//   - *Descriptor: the decoded descriptor, not yet validated
//   - int: number of bytes consumed
//   - error: errs.ErrFormat on truncated or malformed input,
//     errs.ErrUnsupportedType on an unknown kind byte
func Parse(data []byte) (*Descriptor, int, error) {
	r := reader{data: data}
	d, err := r.descriptor(0)
	if err != nil {
		return nil, 0, err
	}

	return d, r.pos, nil
}

type reader struct {
	data []byte
	pos  int
}

func (r *reader) byte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, fmt.Errorf("%w: descriptor truncated at byte %d", errs.ErrFormat, r.pos)
	}
	b := r.data[r.pos]
	r.pos++

	return b, nil
}

func (r *reader) uvarint() (int, error) {
	v, n := binary.Uvarint(r.data[r.pos:])
	if n <= 0 || v > math.MaxInt32 {
		return 0, fmt.Errorf("%w: bad uvarint at byte %d", errs.ErrFormat, r.pos)
	}
	r.pos += n

	return int(v), nil //nolint: gosec
}

func (r *reader) varint() (int64, error) {
	v, n := binary.Varint(r.data[r.pos:])
	if n <= 0 {
		return 0, fmt.Errorf("%w: bad varint at byte %d", errs.ErrFormat, r.pos)
	}
	r.pos += n

	return v, nil
}

func (r *reader) string() (string, error) {
	n, err := r.uvarint()
	if err != nil {
		return "", err
	}
	if n > len(r.data)-r.pos {
		return "", fmt.Errorf("%w: name of %d bytes truncated", errs.ErrFormat, n)
	}
	s := string(r.data[r.pos : r.pos+n])
	r.pos += n

	return s, nil
}

// count reads a collection length and rejects values that cannot possibly fit
// in the remaining input, each element needing at least one byte.
func (r *reader) count() (int, error) {
	n, err := r.uvarint()
	if err != nil {
		return 0, err
	}
	if n > len(r.data)-r.pos {
		return 0, fmt.Errorf("%w: count %d exceeds remaining input", errs.ErrFormat, n)
	}

	return n, nil
}

func (r *reader) descriptor(depth int) (*Descriptor, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("%w: descriptor nested deeper than %d", errs.ErrFormat, maxDepth)
	}

	k, err := r.byte()
	if err != nil {
		return nil, err
	}

	d := &Descriptor{Kind: Kind(k)}
	switch d.Kind {
	case KindInt, KindUint, KindFloat, KindBool:
		w, err := r.byte()
		if err != nil {
			return nil, err
		}
		d.Width = int(w)
	case KindEnum:
		if d.Base, err = r.descriptor(depth + 1); err != nil {
			return nil, err
		}
		n, err := r.count()
		if err != nil {
			return nil, err
		}
		d.Members = make([]EnumMember, n)
		for i := range d.Members {
			if d.Members[i].Name, err = r.string(); err != nil {
				return nil, err
			}
			if d.Members[i].Value, err = r.varint(); err != nil {
				return nil, err
			}
		}
	case KindCompound:
		if d.ByteSize, err = r.uvarint(); err != nil {
			return nil, err
		}
		n, err := r.count()
		if err != nil {
			return nil, err
		}
		d.Fields = make([]Field, n)
		for i := range d.Fields {
			f := &d.Fields[i]
			if f.Name, err = r.string(); err != nil {
				return nil, err
			}
			if f.Offset, err = r.uvarint(); err != nil {
				return nil, err
			}
			if f.Type, err = r.descriptor(depth + 1); err != nil {
				return nil, err
			}
		}
	case KindFixedArray:
		if d.Len, err = r.uvarint(); err != nil {
			return nil, err
		}
		if d.Elem, err = r.descriptor(depth + 1); err != nil {
			return nil, err
		}
	case KindVarArray:
		if d.Elem, err = r.descriptor(depth + 1); err != nil {
			return nil, err
		}
	case KindFixedText:
		enc, err := r.byte()
		if err != nil {
			return nil, err
		}
		d.Encoding = TextEncoding(enc)
		if d.Len, err = r.uvarint(); err != nil {
			return nil, err
		}
	case KindVarText:
		enc, err := r.byte()
		if err != nil {
			return nil, err
		}
		d.Encoding = TextEncoding(enc)
	case KindReference:
		ref, err := r.byte()
		if err != nil {
			return nil, err
		}
		d.Ref = RefKind(ref)
	default:
		return nil, fmt.Errorf("%w: kind byte 0x%02x", errs.ErrUnsupportedType, k)
	}

	return d, nil
}

func appendString(dst []byte, s string) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(s)))

	return append(dst, s...)
}
