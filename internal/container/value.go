package container

import (
	"fmt"
	"math"
	"unicode/utf8"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/banshee-data/containerio/internal/monitoring"
	"github.com/banshee-data/containerio/internal/units"
)

// Relative tolerance used when comparing values carried in different units.
const unitTolerance = 1e-9

// normalize checks v against f and returns the canonical Go representation:
//
//	KindInt             int64
//	KindFloat           float64, or units.Quantity when f carries a unit
//	KindBool            bool
//	KindString          string
//	KindArray<int>      []int64
//	KindArray<float>    []float64, or units.Vector when f carries a unit
//	KindArray<bool>     []bool
//	KindContainer       *Container of f.Type
//	KindMap             *Map of f.Type with exactly f.Keys
//
// Slices are always copied so the container never aliases caller memory.
func normalize(f Field, v any) (any, error) {
	switch f.Kind {
	case KindInt:
		if i, ok := toInt64(v); ok {
			return i, nil
		}
	case KindFloat:
		if f.Unit != units.None {
			q, ok := v.(units.Quantity)
			if !ok {
				return nil, fmt.Errorf("%w: field %q needs a quantity in %s, got %T", ErrTypeMismatch, f.Name, f.Unit, v)
			}
			if !units.Compatible(q.Unit, f.Unit) {
				return nil, fmt.Errorf("%w: field %q: unit %q is not convertible to %q", ErrTypeMismatch, f.Name, q.Unit, f.Unit)
			}
			return q, nil
		}
		if q, ok := v.(units.Quantity); ok && q.Unit == units.None {
			return q.Value, nil
		}
		if x, ok := toFloat64(v); ok {
			return x, nil
		}
	case KindBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case KindString:
		if s, ok := v.(string); ok {
			if f.MaxLength > 0 && utf8.RuneCountInString(s) > f.MaxLength {
				monitoring.Logf("container: value for %q is longer than %d characters, truncating", f.Name, f.MaxLength)
				s = truncateRunes(s, f.MaxLength)
			}
			return s, nil
		}
	case KindArray:
		return normalizeArray(f, v)
	case KindContainer:
		if c, ok := v.(*Container); ok && c != nil && c.typ == f.Type {
			return c, nil
		}
	case KindMap:
		if m, ok := v.(*Map); ok && m != nil && m.typ == f.Type && sameKeys(m.keys, f.Keys) {
			return m, nil
		}
	default:
		return nil, fmt.Errorf("%w: field %q has kind %s", ErrUnsupportedType, f.Name, f.Kind)
	}
	return nil, fmt.Errorf("%w: field %q (%s) cannot hold %T", ErrTypeMismatch, f.Name, f.Kind, v)
}

func normalizeArray(f Field, v any) (any, error) {
	n := f.Len()
	check := func(got int) error {
		if got != n {
			return fmt.Errorf("%w: field %q expects %d elements (shape %v), got %d", ErrTypeMismatch, f.Name, n, f.Shape, got)
		}
		return nil
	}
	switch f.Elem {
	case KindInt:
		var out []int64
		switch a := v.(type) {
		case []int64:
			out = append([]int64(nil), a...)
		case []int:
			out = make([]int64, len(a))
			for i, x := range a {
				out[i] = int64(x)
			}
		case []int32:
			out = make([]int64, len(a))
			for i, x := range a {
				out[i] = int64(x)
			}
		default:
			return nil, fmt.Errorf("%w: field %q (int array) cannot hold %T", ErrTypeMismatch, f.Name, v)
		}
		return out, check(len(out))
	case KindFloat:
		if f.Unit != units.None {
			vec, ok := v.(units.Vector)
			if !ok {
				return nil, fmt.Errorf("%w: field %q needs a vector in %s, got %T", ErrTypeMismatch, f.Name, f.Unit, v)
			}
			if !units.Compatible(vec.Unit, f.Unit) {
				return nil, fmt.Errorf("%w: field %q: unit %q is not convertible to %q", ErrTypeMismatch, f.Name, vec.Unit, f.Unit)
			}
			out := units.Vector{Values: append([]float64(nil), vec.Values...), Unit: vec.Unit}
			return out, check(len(out.Values))
		}
		var out []float64
		switch a := v.(type) {
		case []float64:
			out = append([]float64(nil), a...)
		case []float32:
			out = make([]float64, len(a))
			for i, x := range a {
				out[i] = float64(x)
			}
		case units.Vector:
			if a.Unit != units.None {
				return nil, fmt.Errorf("%w: field %q is dimensionless, got unit %q", ErrTypeMismatch, f.Name, a.Unit)
			}
			out = append([]float64(nil), a.Values...)
		default:
			return nil, fmt.Errorf("%w: field %q (float array) cannot hold %T", ErrTypeMismatch, f.Name, v)
		}
		return out, check(len(out))
	case KindBool:
		a, ok := v.([]bool)
		if !ok {
			return nil, fmt.Errorf("%w: field %q (bool array) cannot hold %T", ErrTypeMismatch, f.Name, v)
		}
		out := append([]bool(nil), a...)
		return out, check(len(out))
	}
	return nil, fmt.Errorf("%w: field %q: array of %s", ErrUnsupportedType, f.Name, f.Elem)
}

// truncateRunes cuts s after n characters, never inside a multi-byte rune.
func truncateRunes(s string, n int) string {
	i := 0
	for ; n > 0 && i < len(s); n-- {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return s[:i]
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		if x <= math.MaxInt64 {
			return int64(x), true
		}
	case uint:
		if uint64(x) <= math.MaxInt64 {
			return int64(x), true
		}
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	}
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}

// zeroValue is the value a field takes when no default is declared.
func zeroValue(f Field) any {
	if f.Default != nil {
		return cloneValue(f.Default)
	}
	switch f.Kind {
	case KindInt:
		return int64(0)
	case KindFloat:
		if f.Unit != units.None {
			return units.Quantity{Unit: f.Unit}
		}
		return float64(0)
	case KindBool:
		return false
	case KindString:
		return ""
	case KindArray:
		n := f.Len()
		switch f.Elem {
		case KindInt:
			return make([]int64, n)
		case KindBool:
			return make([]bool, n)
		default:
			if f.Unit != units.None {
				return units.Vector{Values: make([]float64, n), Unit: f.Unit}
			}
			return make([]float64, n)
		}
	case KindContainer:
		return f.Type.New()
	case KindMap:
		return newMap(f.Type, f.Keys)
	}
	return nil
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case []int64:
		return append([]int64(nil), x...)
	case []float64:
		return append([]float64(nil), x...)
	case []bool:
		return append([]bool(nil), x...)
	case units.Vector:
		return units.Vector{Values: append([]float64(nil), x.Values...), Unit: x.Unit}
	case *Container:
		return x.Clone()
	case *Map:
		return x.clone()
	}
	return v
}

func floatEqual(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return a == b || scalar.EqualWithinAbsOrRel(a, b, unitTolerance, unitTolerance)
}

func floatsEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !floatEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// valueEqual compares two normalised values of the same field. Quantities
// and vectors are compared after converting b into a's unit.
func valueEqual(a, b any) bool {
	switch x := a.(type) {
	case int64, bool, string:
		return a == b
	case float64:
		y, ok := b.(float64)
		return ok && floatEqual(x, y)
	case units.Quantity:
		y, ok := b.(units.Quantity)
		if !ok {
			return false
		}
		y, err := y.To(x.Unit)
		return err == nil && floatEqual(x.Value, y.Value)
	case []int64:
		y, ok := b.([]int64)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if x[i] != y[i] {
				return false
			}
		}
		return true
	case []bool:
		y, ok := b.([]bool)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if x[i] != y[i] {
				return false
			}
		}
		return true
	case []float64:
		y, ok := b.([]float64)
		return ok && floatsEqual(x, y)
	case units.Vector:
		y, ok := b.(units.Vector)
		if !ok {
			return false
		}
		y, err := y.To(x.Unit)
		return err == nil && floatsEqual(x.Values, y.Values)
	case *Container:
		y, ok := b.(*Container)
		return ok && x.Equal(y)
	case *Map:
		y, ok := b.(*Map)
		return ok && x.equal(y)
	}
	return false
}
