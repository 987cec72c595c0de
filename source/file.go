package source

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/arloliu/h5col/container"
	"github.com/arloliu/h5col/errs"
	"github.com/arloliu/h5col/internal/options"
)

// FileSource opens datasets stored in container files on the local disk.
type FileSource struct {
	logger *zap.Logger
	verify bool
}

var _ Source = (*FileSource)(nil)

// FileSourceOption configures a FileSource.
type FileSourceOption = options.Option[*FileSource]

// WithLogger sets the logger used for open diagnostics.
func WithLogger(logger *zap.Logger) FileSourceOption {
	return options.NoError(func(s *FileSource) {
		if logger != nil {
			s.logger = logger
		}
	})
}

// WithVerifyChecksum toggles payload checksum verification. It is on by default.
func WithVerifyChecksum(verify bool) FileSourceOption {
	return options.NoError(func(s *FileSource) {
		s.verify = verify
	})
}

// NewFileSource creates a file source.
func NewFileSource(opts ...FileSourceOption) (*FileSource, error) {
	s := &FileSource{logger: zap.NewNop(), verify: true}
	if err := options.Apply(s, opts...); err != nil {
		return nil, err
	}

	return s, nil
}

// Open maps loc.Path and materializes loc.Dataset. The returned dataset keeps
// the file mapped until its Close is called.
func (s *FileSource) Open(ctx context.Context, loc Locator) (*Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.NewSourceError(loc.String(), err)
	}

	f, err := container.Open(loc.Path, container.WithVerifyChecksum(s.verify))
	if err != nil {
		return nil, errs.NewSourceError(loc.String(), err)
	}

	ds, err := s.open(f, loc)
	if err != nil {
		_ = f.Close()
		return nil, errs.NewSourceError(loc.String(), err)
	}

	return ds, nil
}

func (s *FileSource) open(f *container.File, loc Locator) (*Dataset, error) {
	name := loc.Dataset
	if name == "" {
		entries := f.Datasets()
		if len(entries) != 1 {
			return nil, fmt.Errorf("%w: %d datasets in %s, name one with %s/path",
				errs.ErrNotFound, len(entries), loc.Path, LocatorSeparator)
		}
		name = entries[0].Name
	}

	cds, err := f.Dataset(name)
	if err != nil {
		return nil, err
	}

	ds := fromContainer(cds, f)
	if err := ds.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrFormat, err)
	}

	s.logger.Debug("dataset opened",
		zap.String("path", loc.Path),
		zap.String("dataset", ds.Name),
		zap.Stringer("type", ds.Type),
		zap.Int64("records", ds.Count),
		zap.String("compression", cds.Entry.Compression.String()),
		zap.String("stored", humanize.Bytes(cds.Entry.Records.StoredLength+cds.Entry.Heap.StoredLength)),
		zap.String("raw", humanize.Bytes(cds.Entry.Records.RawLength+cds.Entry.Heap.RawLength)),
		zap.String("file", humanize.Bytes(uint64(f.Size()))), //nolint: gosec
	)

	return ds, nil
}
