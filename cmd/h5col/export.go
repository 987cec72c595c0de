package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	pqcompress "github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/arloliu/h5col"
	"github.com/arloliu/h5col/container"
	"github.com/arloliu/h5col/export"
	"github.com/arloliu/h5col/format"
	"github.com/arloliu/h5col/internal/sample"
)

type exportArgs struct {
	locator   string
	output    string
	format    string
	workers   int
	batchSize int
	columns   []string
}

// merge fills unset flag values from the configuration file.
func (a *exportArgs) merge(cfg ExportConfig) {
	if a.format == "" {
		a.format = cfg.Format
	}
	if a.workers == 0 {
		a.workers = cfg.Workers
	}
	if a.batchSize == 0 {
		a.batchSize = cfg.BatchSize
	}
}

func exportCommand(app *kingpin.Application) (*kingpin.CmdClause, handler) {
	cmd := app.Command("export", "write a dataset as an Arrow IPC stream or a Parquet file")
	a := &exportArgs{}
	cmd.Arg("locator", "file.h5c#/dataset").Required().StringVar(&a.locator)
	cmd.Flag("output", "output file").Short('o').Required().StringVar(&a.output)
	cmd.Flag("format", "arrow or parquet (default arrow)").StringVar(&a.format)
	cmd.Flag("workers", "decode workers, 0 for one per CPU").IntVar(&a.workers)
	cmd.Flag("batch-size", "rows per record batch (default 4096)").IntVar(&a.batchSize)
	cmd.Flag("column", "column to export, repeatable; all by default").Short('c').StringsVar(&a.columns)

	return cmd, func(ctx context.Context, e *env) error {
		a.merge(e.cfg.Export)
		return runExport(ctx, e, a)
	}
}

var parquetCodecs = map[string]pqcompress.Compression{
	"none":   pqcompress.Codecs.Uncompressed,
	"snappy": pqcompress.Codecs.Snappy,
	"gzip":   pqcompress.Codecs.Gzip,
	"brotli": pqcompress.Codecs.Brotli,
	"zstd":   pqcompress.Codecs.Zstd,
}

func runExport(ctx context.Context, e *env, a *exportArgs) error {
	f, err := export.ParseFormat(a.format)
	if err != nil {
		return err
	}
	codec, ok := parquetCodecs[strings.ToLower(e.cfg.Export.ParquetCompression)]
	if !ok {
		return fmt.Errorf("unknown parquet compression %q", e.cfg.Export.ParquetCompression)
	}

	sch, err := openSchema(ctx, e, a.locator)
	if err != nil {
		return err
	}
	defer sch.Close()

	opts := []h5col.ScanOption{h5col.WithColumns(a.columns...)}
	if a.batchSize > 0 {
		opts = append(opts, h5col.WithBatchSize(a.batchSize))
	}
	sc, err := sch.BeginScan(nil, opts...)
	if err != nil {
		return err
	}
	defer sc.Close()

	out, err := os.Create(a.output)
	if err != nil {
		return err
	}
	defer out.Close()

	w, err := export.NewWriter(f, out, sc.Schema(), export.WithParquetCompression(codec))
	if err != nil {
		return err
	}

	if err := sc.Parallel(ctx, a.workers, w.Write); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	st, err := out.Stat()
	if err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	e.logger.Info("export finished",
		zap.Stringer("scan_id", sc.ID()),
		zap.String("format", f.String()),
		zap.Int64("rows", w.Rows()),
		zap.Int64("batches", w.Batches()),
	)
	_, err = fmt.Fprintf(e.out, "wrote %s rows in %d batches to %s (%s, %s)\n",
		humanize.Comma(w.Rows()), w.Batches(), a.output, f, humanize.Bytes(uint64(st.Size()))) //nolint: gosec

	return err
}

func demoCommand(app *kingpin.Application) (*kingpin.CmdClause, handler) {
	cmd := app.Command("demo", "write a sample container with a sensors and an events dataset")
	output := cmd.Arg("file", "container file to create").Required().String()
	records := cmd.Flag("records", "records per dataset").Default("1000").Int()
	compression := cmd.Flag("compression", "payload compression: none, zstd, s2, lz4, deflate, snappy or brotli").Default("zstd").String()
	bigEndian := cmd.Flag("big-endian", "write big-endian records").Bool()

	return cmd, func(_ context.Context, e *env) error {
		return runDemo(e, *output, *records, *compression, *bigEndian)
	}
}

func runDemo(e *env, output string, records int, compression string, bigEndian bool) error {
	if records < 0 {
		return fmt.Errorf("records must not be negative, got %d", records)
	}
	ct, ok := format.ParseCompressionType(compression)
	if !ok {
		return fmt.Errorf("unknown compression %q", compression)
	}

	opts := []container.WriterOption{container.WithCompression(ct)}
	if bigEndian {
		opts = append(opts, container.WithBigEndian())
	}
	w, err := container.NewWriter(opts...)
	if err != nil {
		return err
	}
	if err := sample.Write(w, records); err != nil {
		return err
	}
	if err := w.WriteFile(output); err != nil {
		return err
	}

	_, err = fmt.Fprintf(e.out, "wrote %s and %s, %d records each, to %s\n",
		sample.SensorsName, sample.EventsName, records, output)

	return err
}
