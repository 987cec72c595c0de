package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/arloliu/h5col"
	"github.com/arloliu/h5col/container"
	"github.com/arloliu/h5col/endian"
)

func lsCommand(app *kingpin.Application) (*kingpin.CmdClause, handler) {
	cmd := app.Command("ls", "list the datasets of a container")
	path := cmd.Arg("file", "container file").Required().String()

	return cmd, func(_ context.Context, e *env) error {
		return runLs(e, *path)
	}
}

func runLs(e *env, path string) error {
	f, err := container.Open(path, container.WithVerifyChecksum(e.cfg.Verify()))
	if err != nil {
		return err
	}
	defer f.Close()

	table := tablewriter.NewWriter(e.out)
	table.Header("Dataset", "Records", "Type", "Compression", "Stored", "Raw")
	for _, d := range f.Datasets() {
		stored := d.Records.StoredLength + d.Heap.StoredLength
		raw := d.Records.RawLength + d.Heap.RawLength
		if err := table.Append([]string{
			d.Name,
			humanize.Comma(int64(d.Count)), //nolint: gosec
			d.Type.String(),
			d.Compression.String(),
			humanize.Bytes(stored),
			humanize.Bytes(raw),
		}); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	h := f.Header()
	_, err = fmt.Fprintf(e.out, "%d datasets, %s, %s endian, format version %d\n",
		h.DatasetCount, humanize.Bytes(uint64(f.Size())), endian.Name(f.Engine()), h.Version) //nolint: gosec

	return err
}

func schemaCommand(app *kingpin.Application) (*kingpin.CmdClause, handler) {
	cmd := app.Command("schema", "show the Arrow columns of a dataset")
	locator := cmd.Arg("locator", "file.h5c#/dataset").Required().String()

	return cmd, func(ctx context.Context, e *env) error {
		return runSchema(ctx, e, *locator)
	}
}

func openSchema(ctx context.Context, e *env, locator string) (*h5col.Schema, error) {
	return h5col.OpenSchema(ctx, locator,
		h5col.WithLogger(e.logger),
		h5col.WithVerifyChecksum(e.cfg.Verify()),
	)
}

func runSchema(ctx context.Context, e *env, locator string) error {
	sch, err := openSchema(ctx, e, locator)
	if err != nil {
		return err
	}
	defer sch.Close()

	table := tablewriter.NewWriter(e.out)
	table.Header("#", "Column", "Arrow Type", "Source Type", "Offset")
	for i, c := range sch.Columns() {
		if err := table.Append([]string{strconv.Itoa(i), c.Name, c.Type.String(), c.Source.String(), strconv.Itoa(c.Offset)}); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	ds := sch.Dataset()
	_, err = fmt.Fprintf(e.out, "%s: %s records of %d bytes\n", ds.Name, humanize.Comma(ds.Count), ds.Type.Size())

	return err
}

func headCommand(app *kingpin.Application) (*kingpin.CmdClause, handler) {
	cmd := app.Command("head", "print the first rows of a dataset")
	locator := cmd.Arg("locator", "file.h5c#/dataset").Required().String()
	n := cmd.Flag("rows", "number of rows").Short('n').Default("10").Int()
	cols := cmd.Flag("column", "column to print, repeatable; all by default").Short('c').Strings()

	return cmd, func(ctx context.Context, e *env) error {
		return runHead(ctx, e, *locator, *n, *cols)
	}
}

func runHead(ctx context.Context, e *env, locator string, n int, cols []string) error {
	if n <= 0 {
		return fmt.Errorf("rows must be positive, got %d", n)
	}

	sch, err := openSchema(ctx, e, locator)
	if err != nil {
		return err
	}
	defer sch.Close()

	sc, err := sch.BeginScan(nil, h5col.WithColumns(cols...), h5col.WithLimit(int64(n)))
	if err != nil {
		return err
	}
	defer sc.Close()

	rec, err := sc.Next(n)
	if err != nil {
		return err
	}
	defer rec.Release()

	table := tablewriter.NewWriter(e.out)
	header := make([]any, rec.NumCols())
	for i := range header {
		header[i] = rec.ColumnName(i)
	}
	table.Header(header...)

	for row := range int(rec.NumRows()) {
		if err := table.Append(rowStrings(rec, row)); err != nil {
			return err
		}
	}

	return table.Render()
}

func rowStrings(rec arrow.Record, row int) []string {
	out := make([]string, rec.NumCols())
	for i, col := range rec.Columns() {
		out[i] = col.ValueStr(row)
	}

	return out
}
