package tableio

import (
	"encoding/csv"
	"fmt"
	"io"
	"iter"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/banshee-data/containerio/internal/units"
)

// Arrow field metadata keys.
const (
	ArrowUnitKey        = "unit"
	ArrowDescriptionKey = "description"
	ArrowPathKey        = "path"
	ArrowShapeKey       = "shape"
)

// ArrowSchema converts a table schema and its metadata into an Arrow
// schema. Column units, descriptions, source paths and array shapes become
// field metadata; table attributes become schema metadata.
func ArrowSchema(s Schema, md Metadata) *arrow.Schema {
	fields := make([]arrow.Field, len(s.Columns))
	for i, c := range s.Columns {
		keys := []string{ArrowPathKey}
		vals := []string{strings.Join(c.Path, "/")}
		if c.Unit != units.None {
			keys, vals = append(keys, ArrowUnitKey), append(vals, string(c.Unit))
		}
		if c.Description != "" {
			keys, vals = append(keys, ArrowDescriptionKey), append(vals, c.Description)
		}
		if c.Type.IsArray() {
			shape := strings.TrimSuffix(strings.TrimPrefix(c.Type.String(), string(c.Type.Base)+"["), "]")
			keys, vals = append(keys, ArrowShapeKey), append(vals, shape)
		}
		fields[i] = arrow.Field{
			Name:     c.Name,
			Type:     arrowType(c.Type),
			Metadata: arrow.NewMetadata(keys, vals),
		}
	}

	var keys, vals []string
	if s.Container != "" {
		keys, vals = append(keys, MetaContainerType), append(vals, s.Container)
	}
	attrs := md.Attributes()
	for _, k := range Metadata(attrs).Keys() {
		keys, vals = append(keys, k), append(vals, attrs[k])
	}
	meta := arrow.NewMetadata(keys, vals)
	return arrow.NewSchema(fields, &meta)
}

func arrowType(st StorageType) arrow.DataType {
	var elem arrow.DataType
	switch st.Base {
	case Int64:
		elem = arrow.PrimitiveTypes.Int64
	case Float64:
		elem = arrow.PrimitiveTypes.Float64
	case Bool:
		elem = arrow.FixedWidthTypes.Boolean
	default:
		elem = arrow.BinaryTypes.String
	}
	if st.IsArray() {
		return arrow.FixedSizeListOf(int32(st.Len()), elem)
	}
	return elem
}

// ReadTable loads a whole table into one Arrow record. The caller must
// Release it.
func (r *Reader) ReadTable(tablePath string) (arrow.Record, error) {
	var rec arrow.Record
	for chunk, err := range r.chunks(tablePath, 0) {
		if err != nil {
			return nil, err
		}
		chunk.Retain()
		rec = chunk
	}
	return rec, nil
}

// ReadTableChunked streams a table as Arrow records of at most n rows.
// Each record is released once the loop body returns; call Retain to
// keep one.
func (r *Reader) ReadTableChunked(tablePath string, n int) iter.Seq2[arrow.Record, error] {
	if n < 1 {
		return func(yield func(arrow.Record, error) bool) {
			yield(nil, fmt.Errorf("chunk size must be positive, got %d", n))
		}
	}
	return r.chunks(tablePath, n)
}

// chunks yields records of n rows; n == 0 means one record holding every
// row, emitted even when the table is empty.
func (r *Reader) chunks(tablePath string, n int) iter.Seq2[arrow.Record, error] {
	return func(yield func(arrow.Record, error) bool) {
		if r.closed {
			yield(nil, ErrResourceClosed)
			return
		}
		s, err := r.Schema(tablePath)
		if err != nil {
			yield(nil, err)
			return
		}
		md, err := r.Metadata(tablePath)
		if err != nil {
			yield(nil, err)
			return
		}
		rb := array.NewRecordBuilder(r.mem, ArrowSchema(s, md))
		defer rb.Release()

		emit := func() bool {
			rec := rb.NewRecord()
			defer rec.Release()
			return yield(rec, nil)
		}

		if r.mode == Truncate {
			if n == 0 {
				emit()
			}
			return
		}

		rows, err := r.backend.ReadRows(tablePath)
		if err != nil {
			yield(nil, err)
			return
		}
		defer rows.Close()

		pending := 0
		for rows.Next() {
			if r.closed {
				yield(nil, ErrResourceClosed)
				return
			}
			if err := appendArrowRow(rb, s, rows.Row()); err != nil {
				yield(nil, fmt.Errorf("%s: %w", tablePath, err))
				return
			}
			pending++
			if n > 0 && pending == n {
				pending = 0
				if !emit() {
					return
				}
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("failed to read %s: %w", tablePath, err))
			return
		}
		if pending > 0 || n == 0 {
			emit()
		}
	}
}

func appendArrowRow(rb *array.RecordBuilder, s Schema, row Row) error {
	if len(row) != len(s.Columns) {
		return fmt.Errorf("%w: stored row has %d values, schema has %d columns", ErrSchemaMismatch, len(row), len(s.Columns))
	}
	for i, v := range row {
		if err := appendArrowValue(rb.Field(i), v); err != nil {
			return fmt.Errorf("column %s: %w", s.Columns[i].Name, err)
		}
	}
	return nil
}

func appendArrowValue(b array.Builder, v any) error {
	ok := false
	switch bb := b.(type) {
	case *array.Int64Builder:
		var x int64
		if x, ok = v.(int64); ok {
			bb.Append(x)
		}
	case *array.Float64Builder:
		var x float64
		if x, ok = v.(float64); ok {
			bb.Append(x)
		}
	case *array.BooleanBuilder:
		var x bool
		if x, ok = v.(bool); ok {
			bb.Append(x)
		}
	case *array.StringBuilder:
		var x string
		if x, ok = v.(string); ok {
			bb.Append(x)
		}
	case *array.FixedSizeListBuilder:
		switch vb := bb.ValueBuilder().(type) {
		case *array.Int64Builder:
			var x []int64
			if x, ok = v.([]int64); ok {
				bb.Append(true)
				vb.AppendValues(x, nil)
			}
		case *array.Float64Builder:
			var x []float64
			if x, ok = v.([]float64); ok {
				bb.Append(true)
				vb.AppendValues(x, nil)
			}
		case *array.BooleanBuilder:
			var x []bool
			if x, ok = v.([]bool); ok {
				bb.Append(true)
				vb.AppendValues(x, nil)
			}
		}
	}
	if !ok {
		return fmt.Errorf("%w: cannot append %T to %s", ErrSchemaMismatch, v, b.Type())
	}
	return nil
}

// ExportCSV writes rec as CSV with a header row. Arrays are rendered as
// space-separated values in brackets. Units, descriptions and attributes
// are dropped, so the output cannot be read back into containers.
func ExportCSV(w io.Writer, rec arrow.Record) error {
	cw := csv.NewWriter(w)
	if err := writeCSVHeader(cw, rec.Schema()); err != nil {
		return err
	}
	if err := writeCSVRows(cw, rec, 0); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// ExportTableCSV streams a table to w as CSV, reading at most chunkSize
// rows into memory at a time. The header is written even for an empty
// table. It returns the number of data rows written.
func (r *Reader) ExportTableCSV(w io.Writer, tablePath string, chunkSize int) (int64, error) {
	s, err := r.Schema(tablePath)
	if err != nil {
		return 0, err
	}
	md, err := r.Metadata(tablePath)
	if err != nil {
		return 0, err
	}
	cw := csv.NewWriter(w)
	if err := writeCSVHeader(cw, ArrowSchema(s, md)); err != nil {
		return 0, err
	}
	var n int64
	for rec, err := range r.ReadTableChunked(tablePath, chunkSize) {
		if err != nil {
			return n, err
		}
		if err := writeCSVRows(cw, rec, n); err != nil {
			return n, err
		}
		n += rec.NumRows()
		cw.Flush()
		if err := cw.Error(); err != nil {
			return n, err
		}
	}
	cw.Flush()
	return n, cw.Error()
}

func writeCSVHeader(cw *csv.Writer, schema *arrow.Schema) error {
	header := make([]string, schema.NumFields())
	for i, f := range schema.Fields() {
		header[i] = f.Name
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	return nil
}

// writeCSVRows writes the rows of rec; offset only numbers rows in errors.
func writeCSVRows(cw *csv.Writer, rec arrow.Record, offset int64) error {
	line := make([]string, rec.NumCols())
	for row := 0; row < int(rec.NumRows()); row++ {
		for c := 0; c < int(rec.NumCols()); c++ {
			line[c] = formatCell(rec.Column(c), row)
		}
		if err := cw.Write(line); err != nil {
			return fmt.Errorf("failed to write csv row %d: %w", offset+int64(row), err)
		}
	}
	return nil
}

func formatCell(a arrow.Array, i int) string {
	if a.IsNull(i) {
		return ""
	}
	switch x := a.(type) {
	case *array.Int64:
		return strconv.FormatInt(x.Value(i), 10)
	case *array.Float64:
		return strconv.FormatFloat(x.Value(i), 'g', -1, 64)
	case *array.Boolean:
		return strconv.FormatBool(x.Value(i))
	case *array.String:
		return x.Value(i)
	case *array.FixedSizeList:
		n := int(x.DataType().(*arrow.FixedSizeListType).Len())
		start := (x.Data().Offset() + i) * n
		parts := make([]string, n)
		for j := range parts {
			parts[j] = formatCell(x.ListValues(), start+j)
		}
		return "[" + strings.Join(parts, " ") + "]"
	}
	return a.ValueStr(i)
}
