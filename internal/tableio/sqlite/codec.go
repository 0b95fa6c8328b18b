package sqlite

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/banshee-data/containerio/internal/tableio"
)

// quoteIdent quotes a table or column name for use in SQL text.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func sqlType(st tableio.StorageType) string {
	if st.IsArray() {
		return "BLOB"
	}
	switch st.Base {
	case tableio.Int64, tableio.Bool:
		return "INTEGER"
	case tableio.Float64:
		return "REAL"
	default:
		return "TEXT"
	}
}

// physicalTable names the SQL table backing the catalog entry with the
// given rowid. Logical table paths and column names live only in the
// catalog and metadata, so case or reserved-name clashes between them
// never reach SQL.
func physicalTable(id int64) string {
	return fmt.Sprintf("ct_t%d", id)
}

// physicalColumn names the SQL column holding schema column i.
func physicalColumn(i int) string {
	return fmt.Sprintf("c%d", i)
}

func createTableSQL(table string, s tableio.Schema) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (%s INTEGER PRIMARY KEY AUTOINCREMENT", quoteIdent(table), rowIDColumn)
	for i, c := range s.Columns {
		fmt.Fprintf(&b, ", %s %s", physicalColumn(i), sqlType(c.Type))
	}
	b.WriteString(")")
	return b.String()
}

func insertSQL(table string, s tableio.Schema) string {
	cols := make([]string, len(s.Columns))
	marks := make([]string, len(s.Columns))
	for i := range s.Columns {
		cols[i] = physicalColumn(i)
		marks[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quoteIdent(table), strings.Join(cols, ", "), strings.Join(marks, ", "))
}

func selectSQL(table string, s tableio.Schema) string {
	cols := make([]string, len(s.Columns))
	for i := range s.Columns {
		cols[i] = physicalColumn(i)
	}
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", strings.Join(cols, ", "), quoteIdent(table), rowIDColumn)
}

// encodeValue converts one stored value into its SQL argument. Arrays are
// packed little-endian: 8 bytes per int64 or float64, one byte per bool.
func encodeValue(c tableio.Column, v any) (any, error) {
	n := c.Type.Len()
	ok := false
	var out any
	switch x := v.(type) {
	case int64:
		ok, out = c.Type.Base == tableio.Int64 && !c.Type.IsArray(), x
	case float64:
		ok, out = c.Type.Base == tableio.Float64 && !c.Type.IsArray(), x
	case bool:
		ok = c.Type.Base == tableio.Bool && !c.Type.IsArray()
		if x {
			out = int64(1)
		} else {
			out = int64(0)
		}
	case string:
		ok, out = c.Type.Base == tableio.String, x
	case []int64:
		if ok = c.Type.Base == tableio.Int64 && c.Type.IsArray() && len(x) == n; ok {
			buf := make([]byte, 0, 8*n)
			for _, e := range x {
				buf = binary.LittleEndian.AppendUint64(buf, uint64(e))
			}
			out = buf
		}
	case []float64:
		if ok = c.Type.Base == tableio.Float64 && c.Type.IsArray() && len(x) == n; ok {
			buf := make([]byte, 0, 8*n)
			for _, e := range x {
				buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(e))
			}
			out = buf
		}
	case []bool:
		if ok = c.Type.Base == tableio.Bool && c.Type.IsArray() && len(x) == n; ok {
			buf := make([]byte, n)
			for i, e := range x {
				if e {
					buf[i] = 1
				}
			}
			out = buf
		}
	}
	if !ok {
		return nil, fmt.Errorf("%w: column %s (%s) cannot store %T", tableio.ErrSchemaMismatch, c.Name, c.Type, v)
	}
	return out, nil
}

// scanTarget returns a destination for rows.Scan matching c.
func scanTarget(c tableio.Column) any {
	if c.Type.IsArray() {
		return new([]byte)
	}
	switch c.Type.Base {
	case tableio.Int64, tableio.Bool:
		return new(sql.NullInt64)
	case tableio.Float64:
		return new(sql.NullFloat64)
	default:
		return new(sql.NullString)
	}
}

// decodeValue turns a scanned destination back into a stored value.
// SQLite stores NaN as NULL, so NULL reals read back as NaN.
func decodeValue(c tableio.Column, dst any) (any, error) {
	switch d := dst.(type) {
	case *sql.NullInt64:
		if c.Type.Base == tableio.Bool {
			return d.Int64 != 0, nil
		}
		return d.Int64, nil
	case *sql.NullFloat64:
		if !d.Valid {
			return math.NaN(), nil
		}
		return d.Float64, nil
	case *sql.NullString:
		return d.String, nil
	case *[]byte:
		return decodeArray(c, *d)
	}
	return nil, fmt.Errorf("column %s: unexpected scan target %T", c.Name, dst)
}

func decodeArray(c tableio.Column, buf []byte) (any, error) {
	n := c.Type.Len()
	size := 8
	if c.Type.Base == tableio.Bool {
		size = 1
	}
	if len(buf) != n*size {
		return nil, fmt.Errorf("%w: column %s holds %d bytes, want %d", tableio.ErrSchemaMismatch, c.Name, len(buf), n*size)
	}
	switch c.Type.Base {
	case tableio.Int64:
		out := make([]int64, n)
		for i := range out {
			out[i] = int64(binary.LittleEndian.Uint64(buf[8*i:]))
		}
		return out, nil
	case tableio.Float64:
		out := make([]float64, n)
		for i := range out {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*i:]))
		}
		return out, nil
	case tableio.Bool:
		out := make([]bool, n)
		for i := range out {
			out[i] = buf[i] != 0
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: array of %s", tableio.ErrUnsupportedType, c.Type.Base)
}
