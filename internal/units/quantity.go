package units

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Quantity is a scalar value tagged with its unit.
type Quantity struct {
	Value float64
	Unit  Unit
}

// Q is shorthand for Quantity{v, u}.
func Q(v float64, u Unit) Quantity {
	return Quantity{Value: v, Unit: u}
}

// To returns q expressed in u.
func (q Quantity) To(u Unit) (Quantity, error) {
	v, err := Convert(q.Value, q.Unit, u)
	if err != nil {
		return Quantity{}, err
	}
	return Quantity{Value: v, Unit: u}, nil
}

func (q Quantity) String() string {
	if q.Unit == None {
		return fmt.Sprintf("%g", q.Value)
	}
	return fmt.Sprintf("%g %s", q.Value, q.Unit)
}

// Vector is a fixed-length float array tagged with one unit.
type Vector struct {
	Values []float64
	Unit   Unit
}

// V is shorthand for Vector{vs, u}.
func V(u Unit, vs ...float64) Vector {
	return Vector{Values: vs, Unit: u}
}

// To returns a copy of v expressed in u. The receiver is not modified.
func (v Vector) To(u Unit) (Vector, error) {
	out, err := ConvertSlice(v.Values, v.Unit, u)
	if err != nil {
		return Vector{}, err
	}
	return Vector{Values: out, Unit: u}, nil
}

func (v Vector) String() string {
	return fmt.Sprintf("%v %s", v.Values, v.Unit)
}

// ConvertSlice returns a converted copy of vs.
func ConvertSlice(vs []float64, from, to Unit) ([]float64, error) {
	f, err := Factor(from, to)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(vs))
	copy(out, vs)
	if f != 1 {
		floats.Scale(f, out)
	}
	return out, nil
}
