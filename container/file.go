package container

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/edsrzf/mmap-go"

	"github.com/arloliu/h5col/compress"
	"github.com/arloliu/h5col/endian"
	"github.com/arloliu/h5col/errs"
	"github.com/arloliu/h5col/internal/hash"
	"github.com/arloliu/h5col/internal/options"
	"github.com/arloliu/h5col/section"
)

// Dataset is one dataset materialized from a container: decompressed record
// and heap bytes plus the directory entry describing them.
//
// With CompressionNone the byte slices alias the file mapping and are valid
// until the File is closed.
type Dataset struct {
	Entry   section.DatasetEntry
	Records []byte
	Heap    []byte
	Engine  endian.EndianEngine
}

// File is an open container. Its methods are safe for concurrent use.
type File struct {
	data    []byte
	mapped  mmap.MMap
	header  section.Header
	entries []section.DatasetEntry
	index   map[uint64][]int
	verify  bool

	closeOnce sync.Once
	closeErr  error
}

// FileOption configures a File.
type FileOption = options.Option[*File]

// WithVerifyChecksum enables or disables payload checksum verification in
// Dataset. Verification is on by default.
func WithVerifyChecksum(verify bool) FileOption {
	return options.NoError(func(f *File) {
		f.verify = verify
	})
}

// Open memory-maps the container at path read-only and parses its directory.
//
// Returns:
//   - errs.ErrNotFound if path does not exist
//   - header and directory errors from section, or errs.ErrPayloadOutOfRange
func Open(path string, opts ...FileOption) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", errs.ErrNotFound, err)
		}

		return nil, err
	}
	defer fh.Close()

	st, err := fh.Stat()
	if err != nil {
		return nil, err
	}
	if st.Size() < section.HeaderSize {
		return nil, fmt.Errorf("%w: file of %d bytes", errs.ErrInvalidHeaderSize, st.Size())
	}

	m, err := mmap.Map(fh, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}

	f, err := newFile(m, opts)
	if err != nil {
		_ = m.Unmap()
		return nil, err
	}
	f.mapped = m

	return f, nil
}

// NewReader parses a container held in memory. data must stay unmodified
// while the File and its datasets are in use.
func NewReader(data []byte, opts ...FileOption) (*File, error) {
	return newFile(data, opts)
}

func newFile(data []byte, opts []FileOption) (*File, error) {
	f := &File{data: data, verify: true}
	if err := options.Apply(f, opts...); err != nil {
		return nil, err
	}
	if err := f.parse(); err != nil {
		return nil, err
	}

	return f, nil
}

func (f *File) parse() error {
	h, err := section.ParseHeader(f.data)
	if err != nil {
		return err
	}
	f.header = h

	size := uint64(len(f.data))
	dirEnd := h.DirectoryOffset + h.DirectoryLength
	if h.DirectoryOffset < section.HeaderSize || dirEnd < h.DirectoryOffset || dirEnd > size {
		return fmt.Errorf("%w: directory [%d, +%d) outside file of %d bytes",
			errs.ErrInvalidDirectory, h.DirectoryOffset, h.DirectoryLength, size)
	}

	engine := h.Engine()
	dir := f.data[h.DirectoryOffset:dirEnd]
	f.entries = make([]section.DatasetEntry, 0, min(int(h.DatasetCount), len(dir)))
	f.index = make(map[uint64][]int, len(f.entries))

	for i := range h.DatasetCount {
		e, n, err := section.ParseDatasetEntry(dir, engine)
		if err != nil {
			return fmt.Errorf("directory entry %d: %w", i, err)
		}
		dir = dir[n:]

		for _, p := range []section.Payload{e.Records, e.Heap} {
			end, ok := p.End()
			if !ok || p.Offset < section.HeaderSize || end > h.DirectoryOffset {
				return fmt.Errorf("%w: dataset %q payload [%d, +%d)", errs.ErrPayloadOutOfRange, e.Name, p.Offset, p.StoredLength)
			}
		}

		id := e.ID()
		f.index[id] = append(f.index[id], len(f.entries))
		f.entries = append(f.entries, e)
	}

	if len(dir) != 0 {
		return fmt.Errorf("%w: %d trailing directory bytes", errs.ErrInvalidDirectory, len(dir))
	}

	return nil
}

// Header returns the parsed container header.
func (f *File) Header() section.Header {
	return f.header
}

// Engine returns the container byte order.
func (f *File) Engine() endian.EndianEngine {
	return f.header.Engine()
}

// Size returns the container size in bytes.
func (f *File) Size() int {
	return len(f.data)
}

// Datasets returns the directory entries in file order.
func (f *File) Datasets() []section.DatasetEntry {
	out := make([]section.DatasetEntry, len(f.entries))
	copy(out, f.entries)

	return out
}

// Entry looks up a directory entry by name. The name is normalized with CleanName.
//
// Returns:
//   - errs.ErrNotFound if no dataset has that name
func (f *File) Entry(name string) (section.DatasetEntry, error) {
	name = CleanName(name)
	for _, i := range f.index[hash.ID(name)] {
		if f.entries[i].Name == name {
			return f.entries[i], nil
		}
	}

	return section.DatasetEntry{}, fmt.Errorf("%w: dataset %q", errs.ErrNotFound, name)
}

// Dataset decompresses and returns the named dataset.
//
// Returns:
//   - errs.ErrNotFound for an unknown name
//   - errs.ErrFormat when a payload does not decompress to its recorded length
//     or the record bytes do not hold Count records
//   - errs.ErrChecksumMismatch when verification is enabled and the payload
//     checksum differs
func (f *File) Dataset(name string) (*Dataset, error) {
	e, err := f.Entry(name)
	if err != nil {
		return nil, err
	}

	codec, err := compress.GetCodec(e.Compression)
	if err != nil {
		return nil, err
	}

	records, err := f.payload(codec, e.Records)
	if err != nil {
		return nil, fmt.Errorf("dataset %q records: %w", e.Name, err)
	}
	heap, err := f.payload(codec, e.Heap)
	if err != nil {
		return nil, fmt.Errorf("dataset %q heap: %w", e.Name, err)
	}

	if stride := uint64(e.Type.Size()); stride == 0 || uint64(len(records)) != e.Count*stride {
		return nil, fmt.Errorf("%w: dataset %q has %d record bytes for %d records of %d bytes",
			errs.ErrFormat, e.Name, len(records), e.Count, stride)
	}

	if f.verify {
		if sum := hash.Checksum(records, heap); sum != e.Checksum {
			return nil, fmt.Errorf("%w: dataset %q stored 0x%016x, computed 0x%016x",
				errs.ErrChecksumMismatch, e.Name, e.Checksum, sum)
		}
	}

	return &Dataset{Entry: e, Records: records, Heap: heap, Engine: f.Engine()}, nil
}

func (f *File) payload(codec compress.Codec, p section.Payload) ([]byte, error) {
	if p.StoredLength == 0 {
		if p.RawLength != 0 {
			return nil, fmt.Errorf("%w: empty payload with raw length %d", errs.ErrFormat, p.RawLength)
		}

		return nil, nil
	}

	stored := f.data[p.Offset : p.Offset+p.StoredLength]
	raw, err := codec.Decompress(stored)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrFormat, err)
	}
	if uint64(len(raw)) != p.RawLength {
		return nil, fmt.Errorf("%w: decompressed %d bytes, expected %d", errs.ErrFormat, len(raw), p.RawLength)
	}

	return raw, nil
}

// Close unmaps the file. Datasets returned with CompressionNone must not be
// used afterwards. Close is idempotent.
func (f *File) Close() error {
	f.closeOnce.Do(func() {
		if f.mapped != nil {
			f.closeErr = f.mapped.Unmap()
			f.mapped = nil
		}
		f.data = nil
	})

	return f.closeErr
}
