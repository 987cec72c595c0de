// Package h5col exposes HDF5-style compound datasets as Apache Arrow record
// batches.
//
// A dataset is a run of fixed-stride binary records described by a nested
// type descriptor (package dtype). Opening a dataset derives its Arrow schema
// once; a scan then decodes records straight from the source bytes into Arrow
// builders, batch by batch, optionally across several goroutines.
//
// # Basic Usage
//
//	sch, err := h5col.OpenSchema(ctx, "plant.h5c#/sensors")
//	if err != nil {
//	    return err
//	}
//	defer sch.Close()
//
//	scan, err := sch.BeginScan(nil, h5col.WithColumns("id", "temp"))
//	if err != nil {
//	    return err
//	}
//	defer scan.Close()
//
//	for {
//	    rec, err := scan.Next(1024)
//	    if err != nil {
//	        return err
//	    }
//	    if rec.NumRows() == 0 {
//	        rec.Release()
//	        break
//	    }
//	    consume(rec)
//	    rec.Release()
//	}
//
// # Package Structure
//
// This package wires the lower level packages together: source opens
// datasets, schema projects descriptors to Arrow types, decode and scan turn
// records into column values, and sink accumulates them into records. Use
// those packages directly for finer control.
package h5col

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/arloliu/h5col/errs"
	"github.com/arloliu/h5col/internal/options"
	"github.com/arloliu/h5col/schema"
	"github.com/arloliu/h5col/source"
)

type config struct {
	source source.Source
	mem    memory.Allocator
	logger *zap.Logger
	verify bool
}

// Option configures OpenSchema and NewSchema.
type Option = options.Option[*config]

// WithSource sets the dataset source. The default is a source.FileSource.
func WithSource(src source.Source) Option {
	return options.NoError(func(c *config) {
		c.source = src
	})
}

// WithAllocator sets the allocator of every Arrow buffer built by scans.
func WithAllocator(mem memory.Allocator) Option {
	return options.NoError(func(c *config) {
		if mem != nil {
			c.mem = mem
		}
	})
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return options.NoError(func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	})
}

// WithVerifyChecksum toggles payload checksum verification of the default
// file source. It is on by default.
func WithVerifyChecksum(verify bool) Option {
	return options.NoError(func(c *config) {
		c.verify = verify
	})
}

func newConfig(opts []Option) (*config, error) {
	cfg := &config{
		mem:    memory.DefaultAllocator,
		logger: zap.NewNop(),
		verify: true,
	}
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Schema is an opened dataset together with its projected columns.
type Schema struct {
	ds     *source.Dataset
	cols   []schema.Column
	schema *arrow.Schema
	cfg    *config
}

// OpenSchema opens the dataset named by locator ("path#/group/dataset") and
// derives its columns.
//
// Parameters:
//   - ctx: cancels the open
//   - locator: container path, optionally followed by "#" and a dataset name
//   - opts: source, allocator, logger and checksum options
//
// Returns:
//   - *Schema: the opened schema; Close releases the dataset
//   - error: a *errs.SourceError wrapping errs.ErrNotFound, errs.ErrFormat or
//     errs.ErrUnsupportedType. No scan can start after a failure.
func OpenSchema(ctx context.Context, locator string, opts ...Option) (*Schema, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}

	loc, err := source.ParseLocator(locator)
	if err != nil {
		return nil, err
	}

	src := cfg.source
	if src == nil {
		src, err = source.NewFileSource(
			source.WithLogger(cfg.logger),
			source.WithVerifyChecksum(cfg.verify),
		)
		if err != nil {
			return nil, err
		}
	}

	ds, err := src.Open(ctx, loc)
	if err != nil {
		return nil, errs.NewSourceError(loc.String(), err)
	}

	s, err := newSchema(ds, cfg)
	if err != nil {
		_ = ds.Close()
		return nil, errs.NewSourceError(loc.String(), err)
	}

	return s, nil
}

// NewSchema derives the columns of an already materialized dataset.
//
// Returns:
//   - error: a validation error of the dataset, errs.ErrUnsupportedType among them
func NewSchema(ds *source.Dataset, opts ...Option) (*Schema, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}

	return newSchema(ds, cfg)
}

func newSchema(ds *source.Dataset, cfg *config) (*Schema, error) {
	if err := ds.Validate(); err != nil {
		return nil, err
	}

	cols, err := schema.Project(ds.Type)
	if err != nil {
		return nil, err
	}

	cfg.logger.Debug("schema projected",
		zap.String("dataset", ds.Name),
		zap.Int("columns", len(cols)),
		zap.Int64("records", ds.Count),
	)

	return &Schema{
		ds:     ds,
		cols:   cols,
		schema: schema.ArrowSchema(cols),
		cfg:    cfg,
	}, nil
}

// Columns returns the output columns in schema order.
func (s *Schema) Columns() []schema.Column {
	out := make([]schema.Column, len(s.cols))
	copy(out, s.cols)

	return out
}

// Arrow returns the Arrow schema, with each field's source descriptor in its
// metadata under schema.TypeMetadataKey.
func (s *Schema) Arrow() *arrow.Schema {
	return s.schema
}

// Dataset returns the underlying dataset.
func (s *Schema) Dataset() *source.Dataset {
	return s.ds
}

// Close releases the dataset. Scans started from s must be finished first.
func (s *Schema) Close() error {
	return s.ds.Close()
}
