package tableio

import (
	"bytes"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fieldMeta(t *testing.T, f arrow.Field, key string) string {
	t.Helper()
	i := f.Metadata.FindKey(key)
	if i < 0 {
		return ""
	}
	return f.Metadata.Values()[i]
}

func TestReadTable_CarriesUnits(t *testing.T) {
	t.Parallel()
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	typ := eventType(t)
	store := NewMemoryStore()
	require.NoError(t, WithWriter(store.Open(), "dl1", Overwrite, func(w *Writer) error {
		for i := 0; i < 3; i++ {
			if err := w.Write("events", fullEvent(t, typ, i)); err != nil {
				return err
			}
		}
		return nil
	}, WithAttributes(map[string]string{"site": "La Palma"})))

	r, err := NewReader(store.Open(), ReadOnly, WithAllocator(mem))
	require.NoError(t, err)
	defer r.Close()

	rec, err := r.ReadTable("dl1/events")
	require.NoError(t, err)
	defer rec.Release()

	assert.Equal(t, int64(3), rec.NumRows())
	assert.Equal(t, int64(13), rec.NumCols())

	schema := rec.Schema()
	idx := schema.FieldIndices("hillas.length")
	require.Len(t, idx, 1)
	length := schema.Field(idx[0])
	assert.Equal(t, "m", fieldMeta(t, length, ArrowUnitKey))
	assert.Equal(t, "major axis", fieldMeta(t, length, ArrowDescriptionKey))
	assert.Equal(t, "hillas/length", fieldMeta(t, length, ArrowPathKey))

	lengths := rec.Column(idx[0]).(*array.Float64)
	assert.InDelta(t, 0.02, lengths.Value(2), 1e-12)

	site := schema.Metadata().FindKey("site")
	require.GreaterOrEqual(t, site, 0)
	assert.Equal(t, "La Palma", schema.Metadata().Values()[site])

	idx = schema.FieldIndices("tel.2.mask")
	require.Len(t, idx, 1)
	assert.Equal(t, "2x2", fieldMeta(t, schema.Field(idx[0]), ArrowShapeKey))
	mask := rec.Column(idx[0]).(*array.FixedSizeList)
	values := mask.ListValues().(*array.Boolean)
	assert.Equal(t, 12, values.Len())
	assert.True(t, values.Value(0))
	assert.True(t, values.Value(3), "row 0 has an even event id")
	assert.False(t, values.Value(7), "row 1 has an odd event id")
}

func TestReadTableChunked(t *testing.T) {
	t.Parallel()
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	typ := simpleType(t)
	store := NewMemoryStore()
	writeRows(t, store, "data", "table", Overwrite, typ, 5)

	r, err := NewReader(store.Open(), ReadOnly, WithAllocator(mem))
	require.NoError(t, err)
	defer r.Close()

	var sizes []int64
	var ids []int64
	for rec, err := range r.ReadTableChunked("data/table", 2) {
		require.NoError(t, err)
		sizes = append(sizes, rec.NumRows())
		col := rec.Column(0).(*array.Int64)
		ids = append(ids, col.Int64Values()...)
	}
	assert.Equal(t, []int64{2, 2, 1}, sizes)
	assert.Equal(t, []int64{0, 1, 2, 3, 4}, ids)

	for _, err := range r.ReadTableChunked("data/table", 0) {
		assert.Error(t, err)
	}
}

func TestReadTable_Truncate(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	writeRows(t, store, "data", "table", Overwrite, simpleType(t), 5)

	r, err := NewReader(store.Open(), Truncate)
	require.NoError(t, err)
	defer r.Close()

	rec, err := r.ReadTable("data/table")
	require.NoError(t, err)
	defer rec.Release()
	assert.Zero(t, rec.NumRows())
	assert.Equal(t, int64(3), rec.NumCols())

	n := 0
	for range r.ReadTableChunked("data/table", 10) {
		n++
	}
	assert.Zero(t, n)
}

func TestExportCSV(t *testing.T) {
	t.Parallel()
	typ := eventType(t)
	store := NewMemoryStore()
	require.NoError(t, WithWriter(store.Open(), "dl1", Overwrite, func(w *Writer) error {
		return w.Write("events", fullEvent(t, typ, 4))
	}))

	r, err := NewReader(store.Open(), ReadOnly)
	require.NoError(t, err)
	defer r.Close()
	rec, err := r.ReadTable("dl1/events")
	require.NoError(t, err)
	defer rec.Release()

	var buf bytes.Buffer
	require.NoError(t, ExportCSV(&buf, rec))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "event_id,origin,hillas.intensity,hillas.length,"))
	assert.Contains(t, lines[1], "4,Crab,402,0.04,")
	assert.Contains(t, lines[1], "[70 4]")
	assert.Contains(t, lines[1], "[4 2 3]")
	assert.Contains(t, lines[1], "[true false false true]")
	assert.NotContains(t, buf.String(), "deg", "units are not exported")
}

func TestReader_ExportTableCSV(t *testing.T) {
	t.Parallel()
	typ := eventType(t)
	store := NewMemoryStore()
	require.NoError(t, WithWriter(store.Open(), "dl1", Overwrite, func(w *Writer) error {
		for i := 0; i < 5; i++ {
			if err := w.Write("events", fullEvent(t, typ, i)); err != nil {
				return err
			}
		}
		return nil
	}))

	r, err := NewReader(store.Open(), ReadOnly)
	require.NoError(t, err)
	defer r.Close()

	rec, err := r.ReadTable("dl1/events")
	require.NoError(t, err)
	defer rec.Release()
	var whole bytes.Buffer
	require.NoError(t, ExportCSV(&whole, rec))

	for _, chunk := range []int{1, 2, 5, 1000} {
		var buf bytes.Buffer
		n, err := r.ExportTableCSV(&buf, "dl1/events", chunk)
		require.NoError(t, err)
		assert.EqualValues(t, 5, n)
		assert.Equal(t, whole.String(), buf.String(), "chunk size %d", chunk)
		assert.Equal(t, 1, strings.Count(buf.String(), "event_id,"), "header written once")
	}

	_, err = r.ExportTableCSV(&bytes.Buffer{}, "dl1/events", 0)
	assert.Error(t, err)
	_, err = r.ExportTableCSV(&bytes.Buffer{}, "dl1/missing", 10)
	assert.ErrorIs(t, err, ErrNoTable)

	tr, err := NewReader(store.Open(), Truncate)
	require.NoError(t, err)
	defer tr.Close()
	var empty bytes.Buffer
	n, err := tr.ExportTableCSV(&empty, "dl1/events", 2)
	require.NoError(t, err)
	assert.Zero(t, n)
	lines := strings.Split(strings.TrimSpace(empty.String()), "\n")
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "event_id,origin,"))
}
