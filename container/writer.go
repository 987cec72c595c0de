package container

import (
	"fmt"
	"io"
	"os"
	"path"

	"github.com/arloliu/h5col/compress"
	"github.com/arloliu/h5col/dtype"
	"github.com/arloliu/h5col/endian"
	"github.com/arloliu/h5col/errs"
	"github.com/arloliu/h5col/format"
	"github.com/arloliu/h5col/internal/collision"
	"github.com/arloliu/h5col/internal/hash"
	"github.com/arloliu/h5col/internal/options"
	"github.com/arloliu/h5col/internal/pool"
	"github.com/arloliu/h5col/section"
)

// CleanName normalizes a dataset name to an absolute slash-separated path.
// An empty name stays empty.
func CleanName(name string) string {
	if name == "" {
		return ""
	}

	return path.Clean("/" + name)
}

type pendingDataset struct {
	entry   section.DatasetEntry
	records []byte // stored form
	heap    []byte // stored form
}

// Writer packs datasets into a new container file.
//
// Record and heap bytes are taken as-is: the caller lays them out in the
// writer's byte order, which Engine reports. A Writer is not safe for
// concurrent use.
type Writer struct {
	header      *section.Header
	engine      endian.EndianEngine
	compression format.CompressionType
	codec       compress.Codec
	tracker     *collision.Tracker
	datasets    []pendingDataset
}

// WriterOption configures a Writer.
type WriterOption = options.Option[*Writer]

// WithLittleEndian writes the container little-endian. It is the default option.
func WithLittleEndian() WriterOption {
	return options.NoError(func(w *Writer) {
		w.header.Flag.WithLittleEndian()
	})
}

// WithBigEndian writes the container big-endian.
func WithBigEndian() WriterOption {
	return options.NoError(func(w *Writer) {
		w.header.Flag.WithBigEndian()
	})
}

// WithCompression sets the payload filter applied to every dataset.
// The default is format.CompressionZstd.
func WithCompression(c format.CompressionType) WriterOption {
	return options.New(func(w *Writer) error {
		codec, err := compress.CreateCodec(c, "dataset payload")
		if err != nil {
			return err
		}
		w.compression = c
		w.codec = codec

		return nil
	})
}

// NewWriter creates an empty container writer.
func NewWriter(opts ...WriterOption) (*Writer, error) {
	w := &Writer{
		header:  section.NewHeader(endian.GetLittleEndianEngine()),
		tracker: collision.NewTracker(),
	}

	defaults := []WriterOption{WithCompression(format.CompressionZstd)}
	if err := options.Apply(w, append(defaults, opts...)...); err != nil {
		return nil, err
	}
	w.engine = w.header.Engine()

	return w, nil
}

// Engine returns the byte order record and heap bytes must be written in.
func (w *Writer) Engine() endian.EndianEngine {
	return w.engine
}

// Compression returns the configured payload filter.
func (w *Writer) Compression() format.CompressionType {
	return w.compression
}

// Add appends a dataset.
//
// Parameters:
//   - name: dataset path, normalized with CleanName
//   - typ: record descriptor
//   - records: whole records of typ, in the writer's byte order
//   - heap: payloads of variable-length values, may be nil
//
// Returns:
//   - errs.ErrInvalidDatasetName, errs.ErrDuplicateDataset, a descriptor
//     validation error, errs.ErrInvalidBufferSize, or a compression error
func (w *Writer) Add(name string, typ *dtype.Descriptor, records, heap []byte) error {
	name = CleanName(name)
	if name == "" || name == "/" {
		return fmt.Errorf("%w: %q", errs.ErrInvalidDatasetName, name)
	}
	if err := typ.Validate(); err != nil {
		return fmt.Errorf("dataset %q: %w", name, err)
	}
	stride := typ.Size()
	if len(records)%stride != 0 {
		return fmt.Errorf("%w: dataset %q has %d bytes, stride %d", errs.ErrInvalidBufferSize, name, len(records), stride)
	}
	if _, err := w.tracker.Track(name); err != nil {
		return err
	}

	storedRecords, err := w.compress(records)
	if err != nil {
		return fmt.Errorf("dataset %q records: %w", name, err)
	}
	storedHeap, err := w.compress(heap)
	if err != nil {
		return fmt.Errorf("dataset %q heap: %w", name, err)
	}

	w.datasets = append(w.datasets, pendingDataset{
		entry: section.DatasetEntry{
			Name:        name,
			Type:        typ,
			Count:       uint64(len(records) / stride),
			Compression: w.compression,
			Records:     section.Payload{StoredLength: uint64(len(storedRecords)), RawLength: uint64(len(records))},
			Heap:        section.Payload{StoredLength: uint64(len(storedHeap)), RawLength: uint64(len(heap))},
			Checksum:    hash.Checksum(records, heap),
		},
		records: storedRecords,
		heap:    storedHeap,
	})

	return nil
}

func (w *Writer) compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	out, err := w.codec.Compress(data)
	if err != nil {
		return nil, err
	}
	if w.compression == format.CompressionNone {
		// The no-op codec shares memory with its input.
		out = append([]byte(nil), out...)
	}

	return out, nil
}

// Len returns the number of datasets added.
func (w *Writer) Len() int {
	return len(w.datasets)
}

// Bytes assembles the container: header, 8-byte aligned payloads, directory.
//
// Returns:
//   - errs.ErrNoDatasets if nothing was added
func (w *Writer) Bytes() ([]byte, error) {
	if len(w.datasets) == 0 {
		return nil, errs.ErrNoDatasets
	}

	buf := pool.GetFileBuffer()
	defer pool.PutFileBuffer(buf)

	buf.MustWrite(make([]byte, section.HeaderSize))

	for i := range w.datasets {
		ds := &w.datasets[i]
		ds.entry.Records.Offset = appendPayload(buf, ds.records)
		ds.entry.Heap.Offset = appendPayload(buf, ds.heap)
	}

	dir := pool.GetDirectoryBuffer()
	defer pool.PutDirectoryBuffer(dir)

	for i := range w.datasets {
		dir.B = w.datasets[i].entry.AppendTo(dir.B, w.engine)
	}

	w.header.DatasetCount = uint32(len(w.datasets)) //nolint: gosec
	w.header.DirectoryOffset = uint64(buf.Len())
	w.header.DirectoryLength = uint64(dir.Len())
	buf.MustWrite(dir.Bytes())
	copy(buf.B[:section.HeaderSize], w.header.Bytes())

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())

	return out, nil
}

// appendPayload pads buf to the payload alignment, appends data and returns its offset.
func appendPayload(buf *pool.ByteBuffer, data []byte) uint64 {
	if pad := buf.Len() % section.PayloadAlignment; pad != 0 {
		buf.MustWrite(make([]byte, section.PayloadAlignment-pad))
	}
	off := uint64(buf.Len())
	buf.MustWrite(data)

	return off
}

// WriteTo writes the assembled container to dst.
func (w *Writer) WriteTo(dst io.Writer) (int64, error) {
	data, err := w.Bytes()
	if err != nil {
		return 0, err
	}
	n, err := dst.Write(data)

	return int64(n), err
}

// WriteFile writes the container to filename, replacing any existing file.
func (w *Writer) WriteFile(filename string) error {
	data, err := w.Bytes()
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0o644) //nolint: gosec
}
