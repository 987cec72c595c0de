package scan

import (
	"sort"
	"sync"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/h5col/decode"
	"github.com/arloliu/h5col/dtype"
	"github.com/arloliu/h5col/endian"
	"github.com/arloliu/h5col/errs"
	"github.com/arloliu/h5col/schema"
	"github.com/arloliu/h5col/sink"
)

var le = endian.GetLittleEndianEngine()

func newSink(t *testing.T, typ *dtype.Descriptor) *sink.RecordSink {
	t.Helper()

	cols, err := schema.Project(typ)
	require.NoError(t, err)

	s := sink.NewRecordSink(memory.DefaultAllocator)
	require.NoError(t, schema.Emit(cols, s))
	t.Cleanup(s.Release)

	return s
}

func idFlagRecords() (*dtype.Descriptor, []byte) {
	typ := dtype.Compound(8,
		dtype.Field{Name: "id", Offset: 0, Type: dtype.Uint(4)},
		dtype.Field{Name: "flag", Offset: 4, Type: dtype.Bool()},
	)

	buf := make([]byte, 16)
	le.PutUint32(buf[0:], 1)
	buf[4] = 1
	le.PutUint32(buf[8:], 2)
	buf[12] = 0

	return typ, buf
}

func TestCursor_RoundTrip(t *testing.T) {
	typ, buf := idFlagRecords()
	s := newSink(t, typ)

	c, err := NewCursor(typ, buf, decode.New(le, nil))
	require.NoError(t, err)
	require.Equal(t, int64(2), c.Rows())
	require.Equal(t, 8, c.Stride())

	require.Equal(t, 1, c.Next(s))
	require.Equal(t, 1, c.Next(s))
	require.Equal(t, 0, c.Next(s))
	require.True(t, c.Exhausted())

	require.NoError(t, s.SetRowCount(2))
	rec := s.NewRecord()
	defer rec.Release()

	require.Equal(t, []uint32{1, 2}, rec.Column(0).(*array.Uint32).Values())
	flags := rec.Column(1).(*array.Boolean)
	require.True(t, flags.Value(0))
	require.False(t, flags.Value(1))
}

func TestCursor_ExhaustionIsIdempotent(t *testing.T) {
	typ, buf := idFlagRecords()
	s := newSink(t, typ)

	c, err := NewCursor(typ, buf, decode.New(le, nil))
	require.NoError(t, err)

	n, err := c.NextBatch(s, 10)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	s.NewRecord().Release()

	for range 5 {
		n, err := c.NextBatch(s, 10)
		require.NoError(t, err)
		require.Equal(t, 0, n)
		require.Equal(t, 0, c.Next(s))
		s.NewRecord().Release()
	}
}

func TestCursor_StrideIntegrity(t *testing.T) {
	// Two int32 fields at 0 and 4 plus 4 bytes of padding.
	typ := dtype.Compound(12,
		dtype.Field{Name: "a", Offset: 0, Type: dtype.Int(4)},
		dtype.Field{Name: "b", Offset: 4, Type: dtype.Int(4)},
	)
	buf := make([]byte, 36)
	for i := range 3 {
		le.PutUint32(buf[i*12:], uint32(i*10))
		le.PutUint32(buf[i*12+4:], uint32(i*10+1))
		le.PutUint32(buf[i*12+8:], 0xFFFFFFFF) // padding
	}

	s := newSink(t, typ)
	c, err := NewCursor(typ, buf, decode.New(le, nil))
	require.NoError(t, err)
	require.Equal(t, 12, c.Stride())

	n, err := c.NextBatch(s, 100)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	rec := s.NewRecord()
	defer rec.Release()
	require.Equal(t, []int32{0, 10, 20}, rec.Column(0).(*array.Int32).Values())
	require.Equal(t, []int32{1, 11, 21}, rec.Column(1).(*array.Int32).Values())
}

func TestCursor_ProjectionOffsets(t *testing.T) {
	typ := dtype.Compound(12,
		dtype.Field{Name: "a", Offset: 0, Type: dtype.Uint(4)},
		dtype.Field{Name: "b", Offset: 4, Type: dtype.Uint(4)},
		dtype.Field{Name: "c", Offset: 8, Type: dtype.Uint(4)},
	)
	buf := make([]byte, 24)
	for i := range 2 {
		le.PutUint32(buf[i*12:], uint32(100+i))
		le.PutUint32(buf[i*12+4:], uint32(200+i))
		le.PutUint32(buf[i*12+8:], uint32(300+i))
	}

	projected, err := schema.ProjectColumns(typ, []int{0, 2})
	require.NoError(t, err)

	s := newSink(t, projected)
	c, err := NewCursor(projected, buf, decode.New(le, nil))
	require.NoError(t, err)
	require.Equal(t, 12, c.Stride())

	n, err := c.NextBatch(s, 10)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	rec := s.NewRecord()
	defer rec.Release()
	require.Equal(t, int64(2), rec.NumCols())
	require.Equal(t, "c", rec.ColumnName(1))
	require.Equal(t, []uint32{100, 101}, rec.Column(0).(*array.Uint32).Values())
	require.Equal(t, []uint32{300, 301}, rec.Column(1).(*array.Uint32).Values())
}

func TestCursor_SingleColumn(t *testing.T) {
	typ := dtype.Float(8)
	buf := le.AppendUint64(nil, 0x3FF0000000000000) // 1.0
	buf = le.AppendUint64(buf, 0x4000000000000000)  // 2.0

	s := newSink(t, typ)
	c, err := NewCursor(typ, buf, decode.New(le, nil))
	require.NoError(t, err)

	n, err := c.NextBatch(s, 1)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	rec := s.NewRecord()
	defer rec.Release()
	require.Equal(t, schema.DefaultColumnName, rec.ColumnName(0))
	require.Equal(t, []float64{1.0}, rec.Column(0).(*array.Float64).Values())
}

func TestCursor_Limit(t *testing.T) {
	typ, buf := idFlagRecords()
	s := newSink(t, typ)

	c, err := NewCursor(typ, buf, decode.New(le, nil), WithLimit(1))
	require.NoError(t, err)
	require.Equal(t, int64(1), c.Rows())

	n, err := c.NextBatch(s, 10)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	s.NewRecord().Release()
}

func TestNewCursor_Errors(t *testing.T) {
	typ, buf := idFlagRecords()
	dec := decode.New(le, nil)

	_, err := NewCursor(typ, buf[:12], dec)
	require.ErrorIs(t, err, errs.ErrInvalidBufferSize)

	_, err = NewCursor(dtype.Float(2), nil, dec)
	require.ErrorIs(t, err, errs.ErrUnsupportedType)

	_, err = NewCursor(typ, buf, dec, WithPosition(nil))
	require.Error(t, err)

	_, err = NewCursor(typ, buf, dec, WithLimit(-1))
	require.Error(t, err)

	c, err := NewCursor(typ, nil, dec)
	require.NoError(t, err)
	require.Equal(t, int64(0), c.Rows())

	_, err = c.NextBatch(newSink(t, typ), 0)
	require.ErrorIs(t, err, errs.ErrInvalidBatchSize)
}

func TestPosition(t *testing.T) {
	var p Position
	require.Equal(t, int64(0), p.Load())
	require.Equal(t, int64(0), p.Claim())
	require.Equal(t, int64(1), p.Claim())
	require.Equal(t, int64(2), p.Load())
}

func TestCursor_ConcurrentWorkers(t *testing.T) {
	const records = 1000
	const workers = 8

	typ := dtype.Compound(8,
		dtype.Field{Name: "id", Offset: 0, Type: dtype.Uint(4)},
	)
	buf := make([]byte, records*8)
	for i := range records {
		le.PutUint32(buf[i*8:], uint32(i))
	}

	dec := decode.New(le, nil)
	pos := &Position{}

	var (
		mu  sync.Mutex
		ids []uint32
		wg  sync.WaitGroup
	)

	for range workers {
		c, err := NewCursor(typ, buf, dec, WithPosition(pos))
		require.NoError(t, err)

		s := sink.NewRecordSink(memory.DefaultAllocator)
		require.NoError(t, s.AddColumn("id", arrow.PrimitiveTypes.Uint32))
		t.Cleanup(s.Release)

		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				n, err := c.NextBatch(s, 7)
				if err != nil || n == 0 {
					return
				}
				rec := s.NewRecord()
				vals := rec.Column(0).(*array.Uint32).Values()
				mu.Lock()
				ids = append(ids, vals...)
				mu.Unlock()
				rec.Release()
			}
		}()
	}
	wg.Wait()

	require.Len(t, ids, records)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for i, id := range ids {
		require.Equal(t, uint32(i), id, "no duplicate and no skipped index")
	}
	require.GreaterOrEqual(t, pos.Load(), int64(records))
}
