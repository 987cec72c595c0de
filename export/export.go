// Package export writes scanned Arrow records to Arrow IPC streams or Parquet files.
package export

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	pqcompress "github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/arloliu/h5col/internal/options"
)

// Format selects the output encoding.
type Format uint8

const (
	FormatArrow   Format = iota + 1 // FormatArrow is the Arrow IPC stream format.
	FormatParquet                   // FormatParquet is a Parquet file.
)

func (f Format) String() string {
	switch f {
	case FormatArrow:
		return "arrow"
	case FormatParquet:
		return "parquet"
	default:
		return fmt.Sprintf("Format(%d)", uint8(f))
	}
}

// ErrUnknownFormat is returned by ParseFormat for an unrecognized name.
var ErrUnknownFormat = errors.New("unknown export format")

// ParseFormat parses "arrow" (or "ipc") and "parquet", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "arrow", "ipc":
		return FormatArrow, nil
	case "parquet":
		return FormatParquet, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

type recordWriter interface {
	Write(rec arrow.Record) error
	Close() error
}

// Writer encodes records of one schema. Write is safe for concurrent use, so a
// Writer can serve as the callback target of a parallel scan.
type Writer struct {
	format      Format
	mem         memory.Allocator
	compression pqcompress.Compression

	mu      sync.Mutex
	w       recordWriter
	rows    int64
	batches int64
	closed  bool
}

// Option configures a Writer.
type Option = options.Option[*Writer]

// WithAllocator sets the allocator used while encoding.
func WithAllocator(mem memory.Allocator) Option {
	return options.NoError(func(w *Writer) {
		if mem != nil {
			w.mem = mem
		}
	})
}

// WithParquetCompression sets the Parquet column codec. The default is Zstd.
// It has no effect on Arrow output.
func WithParquetCompression(c pqcompress.Compression) Option {
	return options.NoError(func(w *Writer) {
		w.compression = c
	})
}

// NewWriter starts an output of format f on dst for records of schema.
// dst is not closed by Close.
func NewWriter(f Format, dst io.Writer, schema *arrow.Schema, opts ...Option) (*Writer, error) {
	w := &Writer{
		format:      f,
		mem:         memory.DefaultAllocator,
		compression: pqcompress.Codecs.Zstd,
	}
	if err := options.Apply(w, opts...); err != nil {
		return nil, err
	}

	switch f {
	case FormatArrow:
		w.w = ipc.NewWriter(dst, ipc.WithSchema(schema), ipc.WithAllocator(w.mem))
	case FormatParquet:
		props := parquet.NewWriterProperties(
			parquet.WithCompression(w.compression),
			parquet.WithAllocator(w.mem),
		)
		arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())
		fw, err := pqarrow.NewFileWriter(schema, nopCloser{dst}, props, arrowProps)
		if err != nil {
			return nil, fmt.Errorf("parquet writer: %w", err)
		}
		w.w = fw
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, f)
	}

	return w, nil
}

// Write appends rec. Empty records are skipped.
func (w *Writer) Write(rec arrow.Record) error {
	if rec.NumRows() == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.New("export: write after close")
	}
	if err := w.w.Write(rec); err != nil {
		return fmt.Errorf("export %s: %w", w.format, err)
	}
	w.rows += rec.NumRows()
	w.batches++

	return nil
}

// Rows returns the number of rows written so far.
func (w *Writer) Rows() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.rows
}

// Batches returns the number of non-empty records written so far.
func (w *Writer) Batches() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.batches
}

// Close finishes the output: the end-of-stream marker for Arrow, the footer
// for Parquet. Calling Close more than once is a no-op.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	return w.w.Close()
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
