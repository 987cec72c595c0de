// Package sink defines the columnar destination that receives decoded rows and
// its Apache Arrow implementation.
package sink

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/arloliu/h5col/errs"
)

// Sink receives output columns at schema time and values at decode time.
//
// Columns are registered with AddColumn before any value is written. The
// decoder appends exactly one value per row to each column's Builder, and the
// producer finalizes a batch with SetRowCount. A batch of zero rows is valid
// and signals end of data.
type Sink interface {
	AddColumn(name string, typ arrow.DataType) error
	Builder(col int) array.Builder
	SetRowCount(n int) error
}

// RecordSink is a Sink that accumulates rows into Arrow records.
//
// The column set is sealed by the first call to Builder, SetRowCount or
// NewRecord. A RecordSink is not safe for concurrent use; parallel scans give
// each worker its own sink.
type RecordSink struct {
	mem    memory.Allocator
	fields []arrow.Field
	rb     *array.RecordBuilder
	rows   int
}

var _ Sink = (*RecordSink)(nil)

// NewRecordSink creates a sink allocating from mem. A nil mem uses the Go allocator.
func NewRecordSink(mem memory.Allocator) *RecordSink {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}

	return &RecordSink{mem: mem}
}

// AddColumn registers a non-nullable output column.
//
// Returns:
//   - errs.ErrSinkSealed if rows have already been written
func (s *RecordSink) AddColumn(name string, typ arrow.DataType) error {
	if s.rb != nil {
		return fmt.Errorf("%w: cannot add column %q", errs.ErrSinkSealed, name)
	}
	s.fields = append(s.fields, arrow.Field{Name: name, Type: typ, Nullable: false})

	return nil
}

// Builder returns the builder of column col.
func (s *RecordSink) Builder(col int) array.Builder {
	return s.builder().Field(col)
}

// SetRowCount finalizes the current batch at n rows.
//
// Returns:
//   - errs.ErrRowCountMismatch if any column holds a different number of values
func (s *RecordSink) SetRowCount(n int) error {
	rb := s.builder()
	for i, b := range rb.Fields() {
		if b.Len() != n {
			return fmt.Errorf("%w: column %q has %d values, batch has %d rows",
				errs.ErrRowCountMismatch, s.fields[i].Name, b.Len(), n)
		}
	}
	s.rows = n

	return nil
}

// Rows returns the row count set by the last SetRowCount.
func (s *RecordSink) Rows() int {
	return s.rows
}

// NumColumns returns the number of registered columns.
func (s *RecordSink) NumColumns() int {
	return len(s.fields)
}

// Schema returns the Arrow schema of the registered columns.
func (s *RecordSink) Schema() *arrow.Schema {
	return s.builder().Schema()
}

// NewRecord hands out the accumulated batch and resets the builders for the
// next one. The caller owns the record and must release it.
func (s *RecordSink) NewRecord() arrow.Record {
	rec := s.builder().NewRecord()
	s.rows = 0

	return rec
}

// Release frees the builders. The sink must not be used afterwards.
func (s *RecordSink) Release() {
	if s.rb != nil {
		s.rb.Release()
		s.rb = nil
	}
	s.fields = nil
}

func (s *RecordSink) builder() *array.RecordBuilder {
	if s.rb == nil {
		s.rb = array.NewRecordBuilder(s.mem, arrow.NewSchema(s.fields, nil))
	}

	return s.rb
}
