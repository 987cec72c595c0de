// Package schema maps record descriptors to Apache Arrow columns and narrows
// descriptors to a requested column subset.
//
// A top-level compound flattens into one column per field, in field order.
// Compounds nested anywhere below the top level become a single struct column.
// Every other top-level descriptor yields one column named DefaultColumnName.
package schema

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/arloliu/h5col/dtype"
	"github.com/arloliu/h5col/errs"
	"github.com/arloliu/h5col/sink"
)

// DefaultColumnName names the single column of a non-compound dataset.
const DefaultColumnName = "result"

// TypeMetadataKey is the Arrow field metadata key holding the source descriptor text.
const TypeMetadataKey = "h5col.type"

// Column is one output column and where its values live in a record.
type Column struct {
	Name   string
	Type   arrow.DataType
	Source *dtype.Descriptor
	// Offset is the byte offset of the value within the record.
	Offset int
}

// Project derives the output columns of d.
//
// The descriptor is validated first, so an unsupported variant anywhere in the
// tree fails here, once, before any row is decoded.
//
// Returns:
//   - []Column: output columns in a stable order
//   - error: errs.ErrUnsupportedType or errs.ErrFormat from validation
func Project(d *dtype.Descriptor) ([]Column, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	if d.Kind != dtype.KindCompound {
		typ, err := DataType(d)
		if err != nil {
			return nil, err
		}

		return []Column{{Name: DefaultColumnName, Type: typ, Source: d}}, nil
	}

	cols := make([]Column, 0, len(d.Fields))
	for _, f := range d.Fields {
		typ, err := DataType(f.Type)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		cols = append(cols, Column{Name: f.Name, Type: typ, Source: f.Type, Offset: f.Offset})
	}

	return cols, nil
}

// DataType maps one descriptor to its Arrow type. Compounds map to structs.
func DataType(d *dtype.Descriptor) (arrow.DataType, error) {
	switch d.Kind {
	case dtype.KindInt:
		switch d.Width {
		case 1:
			return arrow.PrimitiveTypes.Int8, nil
		case 2:
			return arrow.PrimitiveTypes.Int16, nil
		case 4:
			return arrow.PrimitiveTypes.Int32, nil
		case 8:
			return arrow.PrimitiveTypes.Int64, nil
		}
	case dtype.KindUint:
		switch d.Width {
		case 1:
			return arrow.PrimitiveTypes.Uint8, nil
		case 2:
			return arrow.PrimitiveTypes.Uint16, nil
		case 4:
			return arrow.PrimitiveTypes.Uint32, nil
		case 8:
			return arrow.PrimitiveTypes.Uint64, nil
		}
	case dtype.KindFloat:
		switch d.Width {
		case 4:
			return arrow.PrimitiveTypes.Float32, nil
		case 8:
			return arrow.PrimitiveTypes.Float64, nil
		}
	case dtype.KindBool:
		return arrow.FixedWidthTypes.Boolean, nil
	case dtype.KindEnum:
		return DataType(d.Base)
	case dtype.KindCompound:
		fields := make([]arrow.Field, 0, len(d.Fields))
		for _, f := range d.Fields {
			typ, err := DataType(f.Type)
			if err != nil {
				return nil, err
			}
			fields = append(fields, arrow.Field{Name: f.Name, Type: typ})
		}

		return arrow.StructOf(fields...), nil
	case dtype.KindFixedArray:
		elem, err := DataType(d.Elem)
		if err != nil {
			return nil, err
		}

		return arrow.FixedSizeListOf(int32(d.Len), elem), nil //nolint: gosec
	case dtype.KindVarArray:
		elem, err := DataType(d.Elem)
		if err != nil {
			return nil, err
		}

		return arrow.ListOf(elem), nil
	case dtype.KindFixedText, dtype.KindVarText:
		return arrow.BinaryTypes.String, nil
	case dtype.KindReference:
		return arrow.BinaryTypes.Binary, nil
	case dtype.KindInvalid:
	}

	return nil, fmt.Errorf("%w: %s", errs.ErrUnsupportedType, d)
}

// ArrowSchema builds the Arrow schema of cols. Fields are non-nullable and
// carry the source descriptor under TypeMetadataKey.
func ArrowSchema(cols []Column) *arrow.Schema {
	fields := make([]arrow.Field, len(cols))
	for i, c := range cols {
		fields[i] = arrow.Field{
			Name:     c.Name,
			Type:     c.Type,
			Nullable: false,
			Metadata: arrow.NewMetadata([]string{TypeMetadataKey}, []string{c.Source.String()}),
		}
	}

	return arrow.NewSchema(fields, nil)
}

// Emit registers cols with s in order.
func Emit(cols []Column, s sink.Sink) error {
	for _, c := range cols {
		if err := s.AddColumn(c.Name, c.Type); err != nil {
			return err
		}
	}

	return nil
}

// Describe renders cols as one line per column: index, name, Arrow type,
// source type and byte offset.
func Describe(cols []Column) string {
	var sb strings.Builder
	for i, c := range cols {
		fmt.Fprintf(&sb, "%d\t%s\t%s\t%s@%d\n", i, c.Name, c.Type, c.Source, c.Offset)
	}

	return sb.String()
}
