package h5col

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/h5col/container"
	"github.com/arloliu/h5col/dtype"
	"github.com/arloliu/h5col/endian"
	"github.com/arloliu/h5col/errs"
	"github.com/arloliu/h5col/format"
	"github.com/arloliu/h5col/scan"
	"github.com/arloliu/h5col/schema"
	"github.com/arloliu/h5col/source"
)

var le = endian.GetLittleEndianEngine()

func idFlagDataset() *source.Dataset {
	typ := dtype.Compound(8,
		dtype.Field{Name: "id", Offset: 0, Type: dtype.Uint(4)},
		dtype.Field{Name: "flag", Offset: 4, Type: dtype.Bool()},
	)
	buf := make([]byte, 16)
	le.PutUint32(buf[0:], 1)
	buf[4] = 1
	le.PutUint32(buf[8:], 2)

	return source.NewDataset("/flags", typ, buf, nil, le)
}

func checkedAllocator(t *testing.T) *memory.CheckedAllocator {
	t.Helper()

	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	t.Cleanup(func() { mem.AssertSize(t, 0) })

	return mem
}

func TestScan_RoundTrip(t *testing.T) {
	mem := checkedAllocator(t)

	sch, err := NewSchema(idFlagDataset(), WithAllocator(mem))
	require.NoError(t, err)
	defer sch.Close()

	require.Len(t, sch.Columns(), 2)
	require.Equal(t, "id", sch.Arrow().Field(0).Name)

	sc, err := sch.BeginScan(nil)
	require.NoError(t, err)
	defer sc.Close()
	require.Equal(t, int64(2), sc.Rows())

	rec, err := sc.Next(1)
	require.NoError(t, err)
	require.Equal(t, int64(1), rec.NumRows())
	require.Equal(t, uint32(1), rec.Column(0).(*array.Uint32).Value(0))
	require.True(t, rec.Column(1).(*array.Boolean).Value(0))
	rec.Release()

	rec, err = sc.Next(1)
	require.NoError(t, err)
	require.Equal(t, uint32(2), rec.Column(0).(*array.Uint32).Value(0))
	require.False(t, rec.Column(1).(*array.Boolean).Value(0))
	rec.Release()

	for range 3 {
		rec, err = sc.Next(10)
		require.NoError(t, err)
		require.Equal(t, int64(0), rec.NumRows())
		rec.Release()
	}
}

func TestScan_Projection(t *testing.T) {
	sch, err := NewSchema(idFlagDataset())
	require.NoError(t, err)

	t.Run("ByIndex", func(t *testing.T) {
		sc, err := sch.BeginScan([]int{1})
		require.NoError(t, err)
		defer sc.Close()

		require.Equal(t, 1, sc.Schema().NumFields())
		rec, err := sc.Next(0)
		require.NoError(t, err)
		defer rec.Release()
		require.Equal(t, "flag", rec.ColumnName(0))
		require.Equal(t, int64(2), rec.NumRows())
	})

	t.Run("ByName", func(t *testing.T) {
		sc, err := sch.BeginScan(nil, WithColumns("flag", "id"), WithBatchSize(1))
		require.NoError(t, err)
		defer sc.Close()

		rec, err := sc.Next(0)
		require.NoError(t, err)
		defer rec.Release()
		require.Equal(t, int64(1), rec.NumRows())
		require.Equal(t, "flag", rec.ColumnName(0))
		require.Equal(t, "id", rec.ColumnName(1))
	})

	t.Run("Errors", func(t *testing.T) {
		_, err := sch.BeginScan([]int{5})
		require.ErrorIs(t, err, errs.ErrInvalidProjection)

		_, err = sch.BeginScan([]int{0}, WithColumns("id"))
		require.ErrorIs(t, err, errs.ErrInvalidProjection)

		_, err = sch.BeginScan(nil, WithColumns("missing"))
		require.ErrorIs(t, err, errs.ErrColumnNotFound)

		_, err = sch.BeginScan(nil, WithBatchSize(0))
		require.ErrorIs(t, err, errs.ErrInvalidBatchSize)

		_, err = sch.BeginScan(nil, WithPosition(nil))
		require.Error(t, err)

		_, err = sch.BeginScan(nil, WithLimit(-1))
		require.Error(t, err)
	})
}

func TestScan_VariableLengthText(t *testing.T) {
	typ := dtype.Compound(24,
		dtype.Field{Name: "n", Offset: 0, Type: dtype.Int(8)},
		dtype.Field{Name: "text", Offset: 8, Type: dtype.VarText(dtype.UTF8)},
	)

	heap := container.NewHeapBuilder(le)
	records := make([]byte, 24)
	le.PutUint64(records, 7)
	heap.PutText(records[8:], "hello")
	heapBytes := append(heap.Bytes(), "world and more trailing bytes"...)

	sch, err := NewSchema(source.NewDataset("t", typ, records, heapBytes, le))
	require.NoError(t, err)

	sc, err := sch.BeginScan(nil)
	require.NoError(t, err)
	defer sc.Close()

	rec, err := sc.Next(0)
	require.NoError(t, err)
	defer rec.Release()
	require.Equal(t, "hello", rec.Column(1).(*array.String).Value(0))
}

func TestScan_Limit(t *testing.T) {
	sch, err := NewSchema(idFlagDataset())
	require.NoError(t, err)

	sc, err := sch.BeginScan(nil, WithLimit(1))
	require.NoError(t, err)
	defer sc.Close()

	rec, err := sc.Next(10)
	require.NoError(t, err)
	defer rec.Release()
	require.Equal(t, int64(1), rec.NumRows())
}

func TestScan_Closed(t *testing.T) {
	sch, err := NewSchema(idFlagDataset())
	require.NoError(t, err)

	sc, err := sch.BeginScan(nil)
	require.NoError(t, err)
	require.NoError(t, sc.Close())
	require.NoError(t, sc.Close())

	_, err = sc.Next(1)
	require.ErrorIs(t, err, errs.ErrScanClosed)
	require.ErrorIs(t, sc.Parallel(context.Background(), 2, nil), errs.ErrScanClosed)
}

func counterDataset(n int) *source.Dataset {
	typ := dtype.Compound(8, dtype.Field{Name: "id", Offset: 0, Type: dtype.Uint(4)})
	buf := make([]byte, n*8)
	for i := range n {
		le.PutUint32(buf[i*8:], uint32(i)) //nolint: gosec
	}

	return source.NewDataset("/counter", typ, buf, nil, le)
}

func TestScan_Parallel(t *testing.T) {
	const records = 1000
	mem := checkedAllocator(t)

	sch, err := NewSchema(counterDataset(records), WithAllocator(mem))
	require.NoError(t, err)

	sc, err := sch.BeginScan(nil, WithBatchSize(13))
	require.NoError(t, err)
	defer sc.Close()

	var (
		mu  sync.Mutex
		ids []uint32
	)
	err = sc.Parallel(context.Background(), 8, func(rec arrow.Record) error {
		vals := rec.Column(0).(*array.Uint32).Uint32Values()
		mu.Lock()
		ids = append(ids, vals...)
		mu.Unlock()

		return nil
	})
	require.NoError(t, err)

	require.Len(t, ids, records)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for i, id := range ids {
		require.Equal(t, uint32(i), id)
	}

	rec, err := sc.Next(0)
	require.NoError(t, err)
	require.Equal(t, int64(0), rec.NumRows())
	rec.Release()
}

func TestScan_ParallelStops(t *testing.T) {
	sch, err := NewSchema(counterDataset(500))
	require.NoError(t, err)

	t.Run("CallbackError", func(t *testing.T) {
		sc, err := sch.BeginScan(nil, WithBatchSize(10))
		require.NoError(t, err)
		defer sc.Close()

		boom := errors.New("boom")
		err = sc.Parallel(context.Background(), 4, func(arrow.Record) error { return boom })
		require.ErrorIs(t, err, boom)
	})

	t.Run("Canceled", func(t *testing.T) {
		sc, err := sch.BeginScan(nil)
		require.NoError(t, err)
		defer sc.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err = sc.Parallel(ctx, 2, func(arrow.Record) error { return nil })
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestScan_SharedPosition(t *testing.T) {
	sch, err := NewSchema(counterDataset(10))
	require.NoError(t, err)

	pos := &scan.Position{}
	a, err := sch.BeginScan(nil, WithPosition(pos))
	require.NoError(t, err)
	defer a.Close()
	b, err := sch.BeginScan(nil, WithPosition(pos))
	require.NoError(t, err)
	defer b.Close()

	ra, err := a.Next(4)
	require.NoError(t, err)
	defer ra.Release()
	rb, err := b.Next(100)
	require.NoError(t, err)
	defer rb.Release()

	require.Equal(t, []uint32{0, 1, 2, 3}, ra.Column(0).(*array.Uint32).Uint32Values())
	require.Equal(t, []uint32{4, 5, 6, 7, 8, 9}, rb.Column(0).(*array.Uint32).Uint32Values())
}

func TestNewSchema_Unsupported(t *testing.T) {
	typ := dtype.Compound(2, dtype.Field{Name: "h", Offset: 0, Type: dtype.Float(2)})
	_, err := NewSchema(source.NewDataset("half", typ, make([]byte, 4), nil, le))
	require.ErrorIs(t, err, errs.ErrUnsupportedType)
}

func TestOpenSchema(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "flags.h5c")

	ds := idFlagDataset()
	w, err := container.NewWriter(container.WithCompression(format.CompressionDeflate))
	require.NoError(t, err)
	require.NoError(t, w.Add(ds.Name, ds.Type, ds.Records, nil))
	require.NoError(t, w.WriteFile(path))

	sch, err := OpenSchema(ctx, path+"#/flags")
	require.NoError(t, err)
	require.Equal(t, "/flags", sch.Dataset().Name)
	md := sch.Arrow().Field(0).Metadata
	idx := md.FindKey(schema.TypeMetadataKey)
	require.GreaterOrEqual(t, idx, 0)
	require.Equal(t, "uint32", md.Values()[idx])

	sc, err := sch.BeginScan(nil)
	require.NoError(t, err)
	rec, err := sc.Next(0)
	require.NoError(t, err)
	require.Equal(t, int64(2), rec.NumRows())
	rec.Release()
	require.NoError(t, sc.Close())
	require.NoError(t, sch.Close())

	t.Run("NotFound", func(t *testing.T) {
		_, err := OpenSchema(ctx, path+"#/missing")
		var se *errs.SourceError
		require.ErrorAs(t, err, &se)
		require.ErrorIs(t, err, errs.ErrNotFound)

		_, err = OpenSchema(ctx, filepath.Join(t.TempDir(), "none.h5c"))
		require.ErrorIs(t, err, errs.ErrNotFound)
	})

	t.Run("MemorySource", func(t *testing.T) {
		sch, err := OpenSchema(ctx, "mem#/flags", WithSource(source.NewMemorySource(idFlagDataset())))
		require.NoError(t, err)
		require.Len(t, sch.Columns(), 2)
		require.NoError(t, sch.Close())
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		typ := dtype.Compound(2, dtype.Field{Name: "h", Offset: 0, Type: dtype.Float(2)})
		bad := &source.Dataset{Name: "/half", Type: typ, Records: make([]byte, 2), Count: 1, Engine: le}
		_, err := OpenSchema(ctx, "mem#/half", WithSource(source.NewMemorySource(bad)))
		var se *errs.SourceError
		require.ErrorAs(t, err, &se)
		require.ErrorIs(t, err, errs.ErrUnsupportedType)
	})
}
