// Package scan implements the row cursor that walks fixed-stride records and
// feeds decoded rows to a sink.
//
// Several cursors may share one Position to pull disjoint records from the
// same buffer concurrently. Each claimed index is handed to exactly one
// cursor; no other synchronization is needed because the record buffer and
// descriptor are never written during a scan.
package scan

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/arloliu/h5col/decode"
	"github.com/arloliu/h5col/dtype"
	"github.com/arloliu/h5col/errs"
	"github.com/arloliu/h5col/internal/options"
	"github.com/arloliu/h5col/sink"
)

// Position is the shared record counter of a scan.
// The zero value starts at record 0.
type Position struct {
	next atomic.Int64
}

// Claim reserves the next record index and returns it. Indices are handed out
// exactly once, in increasing order.
func (p *Position) Claim() int64 {
	return p.next.Add(1) - 1
}

// Load returns the next unclaimed index. It may exceed the record count once
// the scan is exhausted.
func (p *Position) Load() int64 {
	return p.next.Load()
}

type column struct {
	typ    *dtype.Descriptor
	offset int
}

// Cursor decodes one record per Next call. It is not safe for concurrent use;
// concurrent scans use one Cursor per goroutine sharing a Position.
type Cursor struct {
	records   []byte
	stride    int
	rows      int64
	cols      []column
	dec       *decode.Decoder
	pos       *Position
	exhausted bool
}

// Option configures a Cursor.
type Option = options.Option[*Cursor]

// WithPosition makes the cursor claim records from a shared counter.
func WithPosition(p *Position) Option {
	return options.New(func(c *Cursor) error {
		if p == nil {
			return errors.New("scan: nil position")
		}
		c.pos = p

		return nil
	})
}

// WithLimit caps the number of records the cursor considers.
func WithLimit(n int64) Option {
	return options.New(func(c *Cursor) error {
		if n < 0 {
			return fmt.Errorf("scan: negative limit %d", n)
		}
		c.rows = min(c.rows, n)

		return nil
	})
}

// NewCursor creates a cursor over records, which must hold whole records of typ.
//
// typ is usually a projected descriptor: its top-level fields select the
// output columns while its size keeps the original stride.
//
// Returns:
//   - *Cursor: a cursor in the active state at the position's next index
//   - error: errs.ErrInvalidBufferSize for a zero stride or a buffer that is
//     not a multiple of the stride, or a validation error for typ
func NewCursor(typ *dtype.Descriptor, records []byte, dec *decode.Decoder, opts ...Option) (*Cursor, error) {
	if err := typ.Validate(); err != nil {
		return nil, err
	}

	stride := typ.Size()
	if stride <= 0 {
		return nil, fmt.Errorf("%w: stride %d", errs.ErrInvalidBufferSize, stride)
	}
	if len(records)%stride != 0 {
		return nil, fmt.Errorf("%w: %d bytes, stride %d", errs.ErrInvalidBufferSize, len(records), stride)
	}

	c := &Cursor{
		records: records,
		stride:  stride,
		rows:    int64(len(records) / stride),
		dec:     dec,
		pos:     &Position{},
	}

	if typ.Kind == dtype.KindCompound {
		c.cols = make([]column, len(typ.Fields))
		for i, f := range typ.Fields {
			c.cols[i] = column{typ: f.Type, offset: f.Offset}
		}
	} else {
		c.cols = []column{{typ: typ}}
	}

	if err := options.Apply(c, opts...); err != nil {
		return nil, err
	}

	return c, nil
}

// Next decodes one record into s, writing one value to each of the cursor's
// columns, and returns 1. It returns 0 once the records are exhausted, and
// keeps returning 0 afterwards.
func (c *Cursor) Next(s sink.Sink) int {
	if c.exhausted {
		return 0
	}

	idx := c.pos.Claim()
	if idx >= c.rows {
		c.exhausted = true
		return 0
	}

	start := int(idx) * c.stride
	rec := c.records[start : start+c.stride]
	for i, col := range c.cols {
		c.dec.Decode(col.typ, rec[col.offset:], s.Builder(i))
	}

	return 1
}

// NextBatch decodes up to k records into s and finalizes the batch with
// s.SetRowCount. A result of 0 signals end of data.
//
// Returns:
//   - int: rows produced, 0 <= n <= k
//   - error: errs.ErrInvalidBatchSize for k <= 0, or the sink's SetRowCount error
func (c *Cursor) NextBatch(s sink.Sink, k int) (int, error) {
	if k <= 0 {
		return 0, fmt.Errorf("%w: %d", errs.ErrInvalidBatchSize, k)
	}

	produced := 0
	for produced < k && c.Next(s) == 1 {
		produced++
	}

	if err := s.SetRowCount(produced); err != nil {
		return produced, err
	}

	return produced, nil
}

// Rows returns the number of records the cursor considers.
func (c *Cursor) Rows() int64 {
	return c.rows
}

// Stride returns the record size in bytes.
func (c *Cursor) Stride() int {
	return c.stride
}

// Exhausted reports whether the cursor has reached its terminal state.
func (c *Cursor) Exhausted() bool {
	return c.exhausted
}
