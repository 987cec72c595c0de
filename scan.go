package h5col

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/arloliu/h5col/decode"
	"github.com/arloliu/h5col/dtype"
	"github.com/arloliu/h5col/errs"
	"github.com/arloliu/h5col/internal/options"
	"github.com/arloliu/h5col/scan"
	"github.com/arloliu/h5col/schema"
	"github.com/arloliu/h5col/sink"
)

// DefaultBatchSize is the number of rows per record when no batch size is given.
const DefaultBatchSize = 4096

type scanConfig struct {
	batchSize int
	columns   []string
	pos       *scan.Position
	limit     int64
}

// ScanOption configures BeginScan.
type ScanOption = options.Option[*scanConfig]

// WithBatchSize sets the default number of rows per record.
func WithBatchSize(n int) ScanOption {
	return options.New(func(c *scanConfig) error {
		if n <= 0 {
			return fmt.Errorf("%w: %d", errs.ErrInvalidBatchSize, n)
		}
		c.batchSize = n

		return nil
	})
}

// WithColumns selects output columns by name, in the given order. It cannot be
// combined with a non-empty index projection.
func WithColumns(names ...string) ScanOption {
	return options.NoError(func(c *scanConfig) {
		c.columns = names
	})
}

// WithPosition makes the scan claim records from p, which may be shared with
// other scans over the same dataset.
func WithPosition(p *scan.Position) ScanOption {
	return options.New(func(c *scanConfig) error {
		if p == nil {
			return errors.New("h5col: nil scan position")
		}
		c.pos = p

		return nil
	})
}

// WithLimit stops the scan after the first n records.
func WithLimit(n int64) ScanOption {
	return options.New(func(c *scanConfig) error {
		if n < 0 {
			return fmt.Errorf("h5col: negative limit %d", n)
		}
		c.limit = n

		return nil
	})
}

// Scan decodes a dataset into Arrow records.
//
// Next is not safe for concurrent use. Parallel runs its own workers and may
// be combined with Next: both claim records from the same position.
type Scan struct {
	id      uuid.UUID
	typ     *dtype.Descriptor
	cols    []schema.Column
	records []byte
	dec     *decode.Decoder
	pos     *scan.Position
	cursor  *scan.Cursor
	sink    *sink.RecordSink
	schema  *arrow.Schema
	batch   int
	cfg     *scanConfig
	parent  *config
	closed  atomic.Bool
}

// BeginScan prepares a scan over the columns selected by projection, a list of
// indices into Columns. An empty projection selects every column.
//
// Returns:
//   - *Scan: the scan; Close releases its builders
//   - error: errs.ErrInvalidProjection, errs.ErrColumnNotFound or an option error
func (s *Schema) BeginScan(projection []int, opts ...ScanOption) (*Scan, error) {
	cfg := &scanConfig{batchSize: DefaultBatchSize, pos: &scan.Position{}, limit: -1}
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	if len(cfg.columns) > 0 {
		if len(projection) > 0 {
			return nil, fmt.Errorf("%w: both indices and column names given", errs.ErrInvalidProjection)
		}
		idx, err := schema.ResolveNames(s.cols, cfg.columns)
		if err != nil {
			return nil, err
		}
		projection = idx
	}

	typ, err := schema.ProjectColumns(s.ds.Type, projection)
	if err != nil {
		return nil, err
	}
	cols, err := schema.Project(typ)
	if err != nil {
		return nil, err
	}

	sc := &Scan{
		id:      uuid.New(),
		typ:     typ,
		cols:    cols,
		records: s.ds.Records,
		dec:     decode.New(s.ds.Engine, s.ds.Heap),
		pos:     cfg.pos,
		batch:   cfg.batchSize,
		cfg:     cfg,
		parent:  s.cfg,
	}

	sc.cursor, sc.sink, err = sc.newWorker()
	if err != nil {
		return nil, err
	}
	sc.schema = sc.sink.Schema()

	s.cfg.logger.Debug("scan started",
		zap.Stringer("scan_id", sc.id),
		zap.String("dataset", s.ds.Name),
		zap.Int("columns", len(cols)),
		zap.Int64("rows", sc.cursor.Rows()),
		zap.Int("batch_size", sc.batch),
	)

	return sc, nil
}

func (sc *Scan) newWorker() (*scan.Cursor, *sink.RecordSink, error) {
	opts := []scan.Option{scan.WithPosition(sc.pos)}
	if sc.cfg.limit >= 0 {
		opts = append(opts, scan.WithLimit(sc.cfg.limit))
	}

	cur, err := scan.NewCursor(sc.typ, sc.records, sc.dec, opts...)
	if err != nil {
		return nil, nil, err
	}

	rs := sink.NewRecordSink(sc.parent.mem)
	if err := schema.Emit(sc.cols, rs); err != nil {
		rs.Release()
		return nil, nil, err
	}

	return cur, rs, nil
}

// ID returns the scan id carried in log fields.
func (sc *Scan) ID() uuid.UUID {
	return sc.id
}

// Columns returns the projected output columns.
func (sc *Scan) Columns() []schema.Column {
	out := make([]schema.Column, len(sc.cols))
	copy(out, sc.cols)

	return out
}

// Schema returns the schema of the records the scan produces.
func (sc *Scan) Schema() *arrow.Schema {
	return sc.schema
}

// Rows returns the number of records the scan covers.
func (sc *Scan) Rows() int64 {
	return sc.cursor.Rows()
}

// Next decodes up to maxRows records into a new record. A maxRows of zero or
// less uses the scan batch size. A record with zero rows signals the end of
// data, and every later call returns one too. The caller releases the record.
//
// Returns:
//   - errs.ErrScanClosed after Close
func (sc *Scan) Next(maxRows int) (arrow.Record, error) {
	if sc.closed.Load() {
		return nil, errs.ErrScanClosed
	}
	if maxRows <= 0 {
		maxRows = sc.batch
	}

	if _, err := sc.cursor.NextBatch(sc.sink, maxRows); err != nil {
		return nil, err
	}

	return sc.sink.NewRecord(), nil
}

// Parallel decodes the remaining records with workers goroutines, each with
// its own cursor and builders, and passes every non-empty record to fn.
//
// fn is called concurrently and must not keep the record after it returns
// unless it retains it. Record order across workers is unspecified. The first
// error from fn, or ctx cancellation observed between batches, stops every
// worker. A workers value of zero or less uses GOMAXPROCS.
func (sc *Scan) Parallel(ctx context.Context, workers int, fn func(arrow.Record) error) error {
	if sc.closed.Load() {
		return errs.ErrScanClosed
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	start := time.Now()
	var rows atomic.Int64
	var batches atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	for range workers {
		cur, rs, err := sc.newWorker()
		if err != nil {
			_ = g.Wait()
			return err
		}

		g.Go(func() error {
			defer rs.Release()

			for {
				if err := ctx.Err(); err != nil {
					return err
				}

				n, err := cur.NextBatch(rs, sc.batch)
				if err != nil {
					return err
				}
				rec := rs.NewRecord()
				if n == 0 {
					rec.Release()
					return nil
				}

				err = fn(rec)
				rec.Release()
				if err != nil {
					return err
				}
				rows.Add(int64(n))
				batches.Add(1)
			}
		})
	}

	err := g.Wait()

	sc.parent.logger.Debug("parallel scan finished",
		zap.Stringer("scan_id", sc.id),
		zap.Int("workers", workers),
		zap.Int64("rows", rows.Load()),
		zap.Int64("batches", batches.Load()),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err),
	)

	return err
}

// Close releases the scan builders. Calling Close more than once is a no-op.
func (sc *Scan) Close() error {
	if sc.closed.Swap(true) {
		return nil
	}
	sc.sink.Release()

	return nil
}
