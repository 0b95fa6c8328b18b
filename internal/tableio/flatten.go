package tableio

import (
	"fmt"

	"github.com/banshee-data/containerio/internal/container"
	"github.com/banshee-data/containerio/internal/units"
)

// flattenRow reads every column of s out of c. Unit-tagged values are
// converted into the column unit.
func flattenRow(s Schema, c *container.Container) (Row, error) {
	row := make(Row, len(s.Columns))
	for i, col := range s.Columns {
		v, err := c.GetPath(col.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: column %s: %v", ErrSchemaMismatch, col.Name, err)
		}
		sv, err := toStored(col, v)
		if err != nil {
			return nil, err
		}
		row[i] = sv
	}
	return row, nil
}

func toStored(col Column, v any) (any, error) {
	switch x := v.(type) {
	case int64:
		if col.Type.Base == Int64 && !col.Type.IsArray() {
			return x, nil
		}
	case bool:
		if col.Type.Base == Bool && !col.Type.IsArray() {
			return x, nil
		}
	case string:
		if col.Type.Base == String {
			return x, nil
		}
	case float64:
		if col.Type.Base == Float64 && !col.Type.IsArray() && col.Unit == units.None {
			return x, nil
		}
	case units.Quantity:
		if col.Type.Base == Float64 && !col.Type.IsArray() {
			q, err := x.To(col.Unit)
			if err != nil {
				return nil, fmt.Errorf("%w: column %s: %v", ErrSchemaMismatch, col.Name, err)
			}
			return q.Value, nil
		}
	case []int64:
		if col.Type.Base == Int64 && col.Type.IsArray() && len(x) == col.Type.Len() {
			return x, nil
		}
	case []bool:
		if col.Type.Base == Bool && col.Type.IsArray() && len(x) == col.Type.Len() {
			return x, nil
		}
	case []float64:
		if col.Type.Base == Float64 && col.Type.IsArray() && col.Unit == units.None && len(x) == col.Type.Len() {
			return x, nil
		}
	case units.Vector:
		if col.Type.Base == Float64 && col.Type.IsArray() && len(x.Values) == col.Type.Len() {
			vec, err := x.To(col.Unit)
			if err != nil {
				return nil, fmt.Errorf("%w: column %s: %v", ErrSchemaMismatch, col.Name, err)
			}
			return vec.Values, nil
		}
	}
	return nil, fmt.Errorf("%w: column %s (%s) cannot store %T", ErrSchemaMismatch, col.Name, col.Type, v)
}

// unflattenRow builds a new instance of t from a stored row, reattaching
// the column unit to unit-tagged values.
func unflattenRow(s Schema, t *container.Type, row Row) (*container.Container, error) {
	if len(row) != len(s.Columns) {
		return nil, fmt.Errorf("%w: stored row has %d values, schema has %d columns", ErrSchemaMismatch, len(row), len(s.Columns))
	}
	c := t.New()
	for i, col := range s.Columns {
		v := row[i]
		if col.Unit != units.None {
			switch x := v.(type) {
			case float64:
				v = units.Q(x, col.Unit)
			case []float64:
				v = units.Vector{Values: x, Unit: col.Unit}
			}
		}
		if err := c.SetPath(col.Path, v); err != nil {
			return nil, fmt.Errorf("%w: column %s: %v", ErrSchemaMismatch, col.Name, err)
		}
	}
	return c, nil
}
