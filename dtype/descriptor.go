// Package dtype describes the binary shape of one record.
//
// A Descriptor is a closed tagged variant: scalars, enumerations, compounds,
// fixed and variable-length arrays, fixed and variable-length text, and
// opaque references. Every variant has a computable in-line size; variable
// length variants store a fixed 16-byte header in-line and address their
// payload in a separate heap.
//
// Descriptors are values. Nothing in h5col mutates a descriptor after it has
// been built or parsed; projection derives new ones.
package dtype

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/arloliu/h5col/errs"
)

// VarHeaderSize is the in-line size of a variable-length array or text value:
// an 8-byte element (or byte) count followed by an 8-byte heap offset, both in
// the dataset byte order.
const VarHeaderSize = 16

// MaxTypeSize bounds the in-line size of any descriptor. Validate rejects
// larger layouts, so Size never overflows on a validated tree.
const MaxTypeSize = math.MaxInt32

// Kind identifies the variant of a Descriptor.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInt
	KindUint
	KindFloat
	KindBool
	KindEnum
	KindCompound
	KindFixedArray
	KindVarArray
	KindFixedText
	KindVarText
	KindReference
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindEnum:
		return "enum"
	case KindCompound:
		return "compound"
	case KindFixedArray:
		return "array"
	case KindVarArray:
		return "vlen-array"
	case KindFixedText:
		return "text"
	case KindVarText:
		return "vlen-text"
	case KindReference:
		return "reference"
	default:
		return "invalid"
	}
}

// TextEncoding is the character set of a text value. Both encodings decode to
// the same output text type.
type TextEncoding uint8

const (
	ASCII TextEncoding = iota
	UTF8
)

func (e TextEncoding) String() string {
	switch e {
	case ASCII:
		return "ascii"
	case UTF8:
		return "utf8"
	default:
		return "unknown"
	}
}

// RefKind is the flavour of an opaque reference token.
type RefKind uint8

const (
	ObjectRef RefKind = iota // 8-byte object address
	RegionRef                // 12-byte dataset region reference
	StdRef                   // 64-byte standard reference
)

// Size returns the token size in bytes, or 0 for an unknown kind.
func (r RefKind) Size() int {
	switch r {
	case ObjectRef:
		return 8
	case RegionRef:
		return 12
	case StdRef:
		return 64
	default:
		return 0
	}
}

func (r RefKind) String() string {
	switch r {
	case ObjectRef:
		return "object"
	case RegionRef:
		return "region"
	case StdRef:
		return "std"
	default:
		return "unknown"
	}
}

// EnumMember is a symbolic enum label. Labels are metadata only; enum values
// decode as their base integer.
type EnumMember struct {
	Name  string
	Value int64
}

// Field is a named member of a compound. Offset is absolute within the
// compound, not relative to the previous field.
type Field struct {
	Name   string
	Offset int
	Type   *Descriptor
}

// Descriptor is the type of one value. Which fields are meaningful depends on Kind:
//
//   - KindInt, KindUint, KindFloat, KindBool: Width
//   - KindEnum: Base, Members
//   - KindCompound: Fields, ByteSize
//   - KindFixedArray: Elem, Len
//   - KindVarArray: Elem
//   - KindFixedText: Encoding, Len
//   - KindVarText: Encoding
//   - KindReference: Ref
type Descriptor struct {
	Kind     Kind
	Width    int
	Base     *Descriptor
	Members  []EnumMember
	Fields   []Field
	ByteSize int
	Elem     *Descriptor
	Len      int
	Encoding TextEncoding
	Ref      RefKind
}

func Int(width int) *Descriptor   { return &Descriptor{Kind: KindInt, Width: width} }
func Uint(width int) *Descriptor  { return &Descriptor{Kind: KindUint, Width: width} }
func Float(width int) *Descriptor { return &Descriptor{Kind: KindFloat, Width: width} }
func Bool() *Descriptor           { return &Descriptor{Kind: KindBool, Width: 1} }

// Enum wraps an integer base type with symbolic labels.
func Enum(base *Descriptor, members ...EnumMember) *Descriptor {
	return &Descriptor{Kind: KindEnum, Base: base, Members: members}
}

// Compound builds a compound of the given total byte size. size is the record
// stride and may include padding not covered by any field.
func Compound(size int, fields ...Field) *Descriptor {
	return &Descriptor{Kind: KindCompound, ByteSize: size, Fields: fields}
}

// FixedArray builds an array of n contiguous elements.
func FixedArray(elem *Descriptor, n int) *Descriptor {
	return &Descriptor{Kind: KindFixedArray, Elem: elem, Len: n}
}

// VarArray builds a variable-length array whose elements live in the heap.
func VarArray(elem *Descriptor) *Descriptor {
	return &Descriptor{Kind: KindVarArray, Elem: elem}
}

// FixedText builds a NUL padded text value of capacity n bytes.
func FixedText(enc TextEncoding, n int) *Descriptor {
	return &Descriptor{Kind: KindFixedText, Encoding: enc, Len: n}
}

// VarText builds a variable-length text value whose bytes live in the heap.
func VarText(enc TextEncoding) *Descriptor {
	return &Descriptor{Kind: KindVarText, Encoding: enc}
}

// Reference builds an opaque reference token.
func Reference(kind RefKind) *Descriptor {
	return &Descriptor{Kind: KindReference, Ref: kind}
}

// Size returns the in-line byte size of one instance.
//
// For a compound it is the declared ByteSize, which is the authoritative
// record stride. Variable-length kinds return VarHeaderSize.
func (d *Descriptor) Size() int {
	switch d.Kind {
	case KindInt, KindUint, KindFloat, KindBool:
		return d.Width
	case KindEnum:
		return d.Base.Size()
	case KindCompound:
		return d.ByteSize
	case KindFixedArray:
		return d.Len * d.Elem.Size()
	case KindVarArray, KindVarText:
		return VarHeaderSize
	case KindFixedText:
		return d.Len
	case KindReference:
		return d.Ref.Size()
	default:
		return 0
	}
}

// IsVariable reports whether the value keeps its payload out of line.
func (d *Descriptor) IsVariable() bool {
	return d.Kind == KindVarArray || d.Kind == KindVarText
}

// Field returns the compound field named name.
func (d *Descriptor) Field(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}

	return Field{}, false
}

// Validate checks the descriptor tree.
//
// Returns:
//   - errs.ErrUnsupportedType for variants the model cannot decode (odd widths,
//     half floats, non-integer enum bases, unknown kinds or reference flavours)
//   - errs.ErrFormat for inconsistent layouts (fields overrunning the compound,
//     empty or duplicate names, zero-length arrays, sizes above MaxTypeSize)
func (d *Descriptor) Validate() error {
	return d.validate("")
}

func (d *Descriptor) validate(path string) error {
	if d == nil {
		return fmt.Errorf("%w: %snil descriptor", errs.ErrFormat, at(path))
	}

	switch d.Kind {
	case KindInt, KindUint:
		switch d.Width {
		case 1, 2, 4, 8:
			return nil
		}

		return fmt.Errorf("%w: %s%s of width %d", errs.ErrUnsupportedType, at(path), d.Kind, d.Width)
	case KindFloat:
		if d.Width == 4 || d.Width == 8 {
			return nil
		}

		return fmt.Errorf("%w: %sfloat of width %d", errs.ErrUnsupportedType, at(path), d.Width)
	case KindBool:
		if d.Width != 1 {
			return fmt.Errorf("%w: %sbool of width %d", errs.ErrUnsupportedType, at(path), d.Width)
		}

		return nil
	case KindEnum:
		if d.Base == nil || (d.Base.Kind != KindInt && d.Base.Kind != KindUint) {
			return fmt.Errorf("%w: %senum base must be an integer", errs.ErrUnsupportedType, at(path))
		}

		return d.Base.validate(path)
	case KindCompound:
		return d.validateCompound(path)
	case KindFixedArray:
		if d.Len <= 0 {
			return fmt.Errorf("%w: %sarray length %d", errs.ErrFormat, at(path), d.Len)
		}
		if err := d.Elem.validate(path + "[]"); err != nil {
			return err
		}
		if elem := d.Elem.Size(); d.Len > MaxTypeSize/elem {
			return fmt.Errorf("%w: %sarray of %d x %d bytes exceeds %d bytes",
				errs.ErrFormat, at(path), d.Len, elem, MaxTypeSize)
		}

		return nil
	case KindVarArray:
		return d.Elem.validate(path + "[]")
	case KindFixedText:
		if d.Len <= 0 || d.Len > MaxTypeSize {
			return fmt.Errorf("%w: %stext capacity %d", errs.ErrFormat, at(path), d.Len)
		}

		return validateEncoding(d.Encoding, path)
	case KindVarText:
		return validateEncoding(d.Encoding, path)
	case KindReference:
		if d.Ref.Size() == 0 {
			return fmt.Errorf("%w: %sreference kind %d", errs.ErrUnsupportedType, at(path), d.Ref)
		}

		return nil
	default:
		return fmt.Errorf("%w: %skind %d", errs.ErrUnsupportedType, at(path), d.Kind)
	}
}

func (d *Descriptor) validateCompound(path string) error {
	if len(d.Fields) == 0 {
		return fmt.Errorf("%w: %scompound without fields", errs.ErrFormat, at(path))
	}
	if d.ByteSize <= 0 || d.ByteSize > MaxTypeSize {
		return fmt.Errorf("%w: %scompound size %d", errs.ErrFormat, at(path), d.ByteSize)
	}

	seen := make(map[string]struct{}, len(d.Fields))
	for _, f := range d.Fields {
		if f.Name == "" {
			return fmt.Errorf("%w: %sempty field name", errs.ErrFormat, at(path))
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("%w: %sduplicate field %q", errs.ErrFormat, at(path), f.Name)
		}
		seen[f.Name] = struct{}{}

		fieldPath := f.Name
		if path != "" {
			fieldPath = path + "." + f.Name
		}
		if err := f.Type.validate(fieldPath); err != nil {
			return err
		}

		if f.Offset < 0 || f.Offset > d.ByteSize-f.Type.Size() {
			return fmt.Errorf("%w: field %q at offset %d size %d overruns compound of %d bytes",
				errs.ErrFormat, fieldPath, f.Offset, f.Type.Size(), d.ByteSize)
		}
	}

	return nil
}

func validateEncoding(enc TextEncoding, path string) error {
	if enc != ASCII && enc != UTF8 {
		return fmt.Errorf("%w: %stext encoding %d", errs.ErrUnsupportedType, at(path), enc)
	}

	return nil
}

func at(path string) string {
	if path == "" {
		return ""
	}

	return path + ": "
}

// Equal reports whether two descriptors describe the same layout, including
// field names and enum labels.
func (d *Descriptor) Equal(other *Descriptor) bool {
	if d == nil || other == nil {
		return d == other
	}
	if d.Kind != other.Kind {
		return false
	}

	switch d.Kind {
	case KindInt, KindUint, KindFloat, KindBool:
		return d.Width == other.Width
	case KindEnum:
		if len(d.Members) != len(other.Members) {
			return false
		}
		for i := range d.Members {
			if d.Members[i] != other.Members[i] {
				return false
			}
		}

		return d.Base.Equal(other.Base)
	case KindCompound:
		if d.ByteSize != other.ByteSize || len(d.Fields) != len(other.Fields) {
			return false
		}
		for i, f := range d.Fields {
			g := other.Fields[i]
			if f.Name != g.Name || f.Offset != g.Offset || !f.Type.Equal(g.Type) {
				return false
			}
		}

		return true
	case KindFixedArray:
		return d.Len == other.Len && d.Elem.Equal(other.Elem)
	case KindVarArray:
		return d.Elem.Equal(other.Elem)
	case KindFixedText:
		return d.Len == other.Len && d.Encoding == other.Encoding
	case KindVarText:
		return d.Encoding == other.Encoding
	case KindReference:
		return d.Ref == other.Ref
	default:
		return true
	}
}

// String renders the descriptor compactly, for example
// compound<8>{id:uint32@0,flag:bool@4}.
func (d *Descriptor) String() string {
	var sb strings.Builder
	d.writeTo(&sb)

	return sb.String()
}

func (d *Descriptor) writeTo(sb *strings.Builder) {
	if d == nil {
		sb.WriteString("<nil>")
		return
	}

	switch d.Kind {
	case KindInt, KindUint, KindFloat:
		sb.WriteString(d.Kind.String())
		sb.WriteString(strconv.Itoa(d.Width * 8))
	case KindBool:
		sb.WriteString("bool")
	case KindEnum:
		sb.WriteString("enum<")
		d.Base.writeTo(sb)
		sb.WriteString(">{")
		for i, m := range d.Members {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(m.Name)
			sb.WriteByte('=')
			sb.WriteString(strconv.FormatInt(m.Value, 10))
		}
		sb.WriteByte('}')
	case KindCompound:
		sb.WriteString("compound<")
		sb.WriteString(strconv.Itoa(d.ByteSize))
		sb.WriteString(">{")
		for i, f := range d.Fields {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(f.Name)
			sb.WriteByte(':')
			f.Type.writeTo(sb)
			sb.WriteByte('@')
			sb.WriteString(strconv.Itoa(f.Offset))
		}
		sb.WriteByte('}')
	case KindFixedArray:
		sb.WriteByte('[')
		sb.WriteString(strconv.Itoa(d.Len))
		sb.WriteByte(']')
		d.Elem.writeTo(sb)
	case KindVarArray:
		sb.WriteString("[]")
		d.Elem.writeTo(sb)
	case KindFixedText:
		sb.WriteString("text<")
		sb.WriteString(d.Encoding.String())
		sb.WriteByte(',')
		sb.WriteString(strconv.Itoa(d.Len))
		sb.WriteByte('>')
	case KindVarText:
		sb.WriteString("vtext<")
		sb.WriteString(d.Encoding.String())
		sb.WriteByte('>')
	case KindReference:
		sb.WriteString("ref<")
		sb.WriteString(d.Ref.String())
		sb.WriteByte('>')
	default:
		sb.WriteString("invalid")
	}
}
