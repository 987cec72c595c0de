package schema

import (
	"fmt"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/h5col/dtype"
	"github.com/arloliu/h5col/errs"
	"github.com/arloliu/h5col/sink"
)

func nestedRecord() *dtype.Descriptor {
	return dtype.Compound(8,
		dtype.Field{Name: "a", Offset: 0, Type: dtype.Int(4)},
		dtype.Field{Name: "b", Offset: 4, Type: dtype.Compound(2,
			dtype.Field{Name: "x", Offset: 0, Type: dtype.Int(1)},
			dtype.Field{Name: "y", Offset: 1, Type: dtype.Int(1)},
		)},
	)
}

func TestProject_Flattening(t *testing.T) {
	cols, err := Project(nestedRecord())
	require.NoError(t, err)
	require.Len(t, cols, 2)

	require.Equal(t, "a", cols[0].Name)
	require.True(t, arrow.TypeEqual(arrow.PrimitiveTypes.Int32, cols[0].Type))
	require.Equal(t, 0, cols[0].Offset)

	require.Equal(t, "b", cols[1].Name)
	require.Equal(t, 4, cols[1].Offset)
	want := arrow.StructOf(
		arrow.Field{Name: "x", Type: arrow.PrimitiveTypes.Int8},
		arrow.Field{Name: "y", Type: arrow.PrimitiveTypes.Int8},
	)
	require.True(t, arrow.TypeEqual(want, cols[1].Type), "got %s", cols[1].Type)
}

func TestProject_Deterministic(t *testing.T) {
	d := nestedRecord()

	first, err := Project(d)
	require.NoError(t, err)
	second, err := Project(d)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		require.Equal(t, first[i].Name, second[i].Name)
		require.True(t, arrow.TypeEqual(first[i].Type, second[i].Type))
		require.Equal(t, first[i].Offset, second[i].Offset)
	}
}

func TestProject_SingleColumn(t *testing.T) {
	tests := []struct {
		name string
		d    *dtype.Descriptor
		want arrow.DataType
	}{
		{"float", dtype.Float(8), arrow.PrimitiveTypes.Float64},
		{"enum", dtype.Enum(dtype.Uint(2), dtype.EnumMember{Name: "A", Value: 0}), arrow.PrimitiveTypes.Uint16},
		{"fixed text", dtype.FixedText(dtype.ASCII, 8), arrow.BinaryTypes.String},
		{"var text", dtype.VarText(dtype.UTF8), arrow.BinaryTypes.String},
		{"reference", dtype.Reference(dtype.ObjectRef), arrow.BinaryTypes.Binary},
		{"fixed array", dtype.FixedArray(dtype.Int(2), 3), arrow.FixedSizeListOf(3, arrow.PrimitiveTypes.Int16)},
		{"var array", dtype.VarArray(dtype.Bool()), arrow.ListOf(arrow.FixedWidthTypes.Boolean)},
		{
			"array of compounds stays atomic",
			dtype.FixedArray(dtype.Compound(2,
				dtype.Field{Name: "p", Offset: 0, Type: dtype.Uint(1)},
				dtype.Field{Name: "q", Offset: 1, Type: dtype.Uint(1)},
			), 2),
			arrow.FixedSizeListOf(2, arrow.StructOf(
				arrow.Field{Name: "p", Type: arrow.PrimitiveTypes.Uint8},
				arrow.Field{Name: "q", Type: arrow.PrimitiveTypes.Uint8},
			)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cols, err := Project(tt.d)
			require.NoError(t, err)
			require.Len(t, cols, 1)
			require.Equal(t, DefaultColumnName, cols[0].Name)
			require.Equal(t, 0, cols[0].Offset)
			require.True(t, arrow.TypeEqual(tt.want, cols[0].Type), "got %s want %s", cols[0].Type, tt.want)
		})
	}
}

func TestProject_Unsupported(t *testing.T) {
	d := dtype.Compound(4,
		dtype.Field{Name: "ok", Offset: 0, Type: dtype.Int(2)},
		dtype.Field{Name: "half", Offset: 2, Type: dtype.Float(2)},
	)

	_, err := Project(d)
	require.ErrorIs(t, err, errs.ErrUnsupportedType)

	_, err = DataType(&dtype.Descriptor{Kind: dtype.KindInvalid})
	require.ErrorIs(t, err, errs.ErrUnsupportedType)
}

func TestProject_OversizedArray(t *testing.T) {
	d := dtype.Compound(8, dtype.Field{Name: "a", Offset: 0, Type: dtype.FixedArray(dtype.Int(8), 1<<61)})

	require.NotPanics(t, func() {
		_, err := Project(d)
		require.ErrorIs(t, err, errs.ErrFormat)
	})
}

func TestArrowSchema(t *testing.T) {
	cols, err := Project(nestedRecord())
	require.NoError(t, err)

	s := ArrowSchema(cols)
	require.Equal(t, 2, s.NumFields())
	for i, f := range s.Fields() {
		require.False(t, f.Nullable)
		v, ok := f.Metadata.GetValue(TypeMetadataKey)
		require.True(t, ok)
		require.Equal(t, cols[i].Source.String(), v)
	}
}

func TestEmit(t *testing.T) {
	cols, err := Project(nestedRecord())
	require.NoError(t, err)

	s := sink.NewRecordSink(nil)
	defer s.Release()

	require.NoError(t, Emit(cols, s))
	require.Equal(t, 2, s.NumColumns())
	require.Equal(t, "b", s.Schema().Field(1).Name)
}

func TestDescribe(t *testing.T) {
	d := dtype.Compound(40,
		dtype.Field{Name: "id", Offset: 0, Type: dtype.Uint(4)},
		dtype.Field{Name: "flag", Offset: 4, Type: dtype.Bool()},
		dtype.Field{Name: "value", Offset: 8, Type: dtype.Float(8)},
		dtype.Field{Name: "name", Offset: 16, Type: dtype.VarText(dtype.UTF8)},
		dtype.Field{Name: "ref", Offset: 32, Type: dtype.Reference(dtype.ObjectRef)},
	)

	cols, err := Project(d)
	require.NoError(t, err)

	want := "0\tid\tuint32\tuint32@0\n" +
		"1\tflag\tbool\tbool@4\n" +
		"2\tvalue\tfloat64\tfloat64@8\n" +
		"3\tname\tutf8\tvtext<utf8>@16\n" +
		"4\tref\tbinary\tref<object>@32\n"

	got := Describe(cols)
	if got != want {
		edits := myers.ComputeEdits(span.URIFromPath("want.txt"), want, got)
		diff := fmt.Sprint(gotextdiff.ToUnified("want.txt", "got.txt", want, edits))
		t.Errorf("\n%s", diff)
	}
}
