package sample

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/h5col"
	"github.com/arloliu/h5col/container"
	"github.com/arloliu/h5col/format"
	"github.com/arloliu/h5col/source"
)

func TestSensorType(t *testing.T) {
	typ := SensorType()
	require.NoError(t, typ.Validate())
	require.Equal(t, SensorStride, typ.Size())
}

func TestWrite_ScansBack(t *testing.T) {
	const n = 50

	for _, big := range []bool{false, true} {
		opts := []container.WriterOption{container.WithCompression(format.CompressionBrotli)}
		if big {
			opts = append(opts, container.WithBigEndian())
		}
		w, err := container.NewWriter(opts...)
		require.NoError(t, err)
		require.NoError(t, Write(w, n))

		data, err := w.Bytes()
		require.NoError(t, err)
		f, err := container.NewReader(data)
		require.NoError(t, err)
		cds, err := f.Dataset(SensorsName)
		require.NoError(t, err)

		ds := source.NewDataset(cds.Entry.Name, cds.Entry.Type, cds.Records, cds.Heap, cds.Engine)
		sch, err := h5col.NewSchema(ds)
		require.NoError(t, err)

		sc, err := sch.BeginScan(nil)
		require.NoError(t, err)

		rec, err := sc.Next(n)
		require.NoError(t, err)
		require.Equal(t, int64(n), rec.NumRows())

		for _, i := range []int{0, 7, 49} {
			require.Equal(t, uint32(i), rec.Column(0).(*array.Uint32).Value(i))
			require.Equal(t, uint8(i%3), rec.Column(1).(*array.Uint8).Value(i))
			require.Equal(t, i%2 == 0, rec.Column(2).(*array.Boolean).Value(i))
			require.InDelta(t, Temp(i), rec.Column(3).(*array.Float64).Value(i), 0)
			require.Equal(t, Tag(i), rec.Column(5).(*array.String).Value(i))
			require.Equal(t, Label(i), rec.Column(6).(*array.String).Value(i))

			list := rec.Column(7).(*array.List)
			start, end := list.ValueOffsets(i)
			got := list.ListValues().(*array.Int16).Int16Values()[start:end]
			require.Equal(t, Samples(i), append([]int16{}, got...))
		}

		pos := rec.Column(4).(*array.FixedSizeList).ListValues().(*array.Float32)
		require.InDelta(t, float32(7*3), pos.Value(7*3+2), 0)

		rec.Release()
		require.NoError(t, sc.Close())
	}
}
