// Package units provides the unit tags attached to container fields and
// table columns, and the multiplicative conversions between them.
package units

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Unit is a physical unit tag as stored in table metadata.
// The empty Unit is dimensionless.
type Unit string

// Dimension groups units that can be converted into one another.
type Dimension string

const (
	Dimensionless Dimension = ""
	Length        Dimension = "length"
	Time          Dimension = "time"
	Angle         Dimension = "angle"
	Energy        Dimension = "energy"
	Speed         Dimension = "speed"
)

// Unit constants
const (
	None Unit = ""

	Meter      Unit = "m"
	Centimeter Unit = "cm"
	Millimeter Unit = "mm"
	Kilometer  Unit = "km"

	Second      Unit = "s"
	Millisecond Unit = "ms"
	Microsecond Unit = "us"
	Nanosecond  Unit = "ns"

	Radian Unit = "rad"
	Degree Unit = "deg"

	Electronvolt     Unit = "eV"
	Kiloelectronvolt Unit = "keV"
	Megaelectronvolt Unit = "MeV"
	Gigaelectronvolt Unit = "GeV"
	Teraelectronvolt Unit = "TeV"

	MPS  Unit = "mps"
	MPH  Unit = "mph"
	KMPH Unit = "kmph"
	KPH  Unit = "kph"
)

var (
	// ErrUnknownUnit is returned when a unit tag is not registered.
	ErrUnknownUnit = errors.New("unknown unit")
	// ErrIncompatibleUnits is returned when converting across dimensions.
	ErrIncompatibleUnits = errors.New("incompatible units")
)

type unitInfo struct {
	dim   Dimension
	scale float64 // multiply to reach the base unit of dim
}

var registry = map[Unit]unitInfo{
	None: {Dimensionless, 1},

	Meter:      {Length, 1},
	Centimeter: {Length, 1e-2},
	Millimeter: {Length, 1e-3},
	Kilometer:  {Length, 1e3},

	Second:      {Time, 1},
	Millisecond: {Time, 1e-3},
	Microsecond: {Time, 1e-6},
	Nanosecond:  {Time, 1e-9},

	Radian: {Angle, 1},
	Degree: {Angle, 0.017453292519943295},

	Electronvolt:     {Energy, 1},
	Kiloelectronvolt: {Energy, 1e3},
	Megaelectronvolt: {Energy, 1e6},
	Gigaelectronvolt: {Energy, 1e9},
	Teraelectronvolt: {Energy, 1e12},

	MPS:  {Speed, 1},
	MPH:  {Speed, 0.44704},
	KMPH: {Speed, 1 / 3.6},
	KPH:  {Speed, 1 / 3.6},
}

// ValidUnits contains all registered unit tags, sorted.
var ValidUnits = func() []Unit {
	out := make([]Unit, 0, len(registry))
	for u := range registry {
		if u != None {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}()

// IsValid checks if the given unit is registered. The dimensionless unit is valid.
func IsValid(u Unit) bool {
	_, ok := registry[u]
	return ok
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	names := make([]string, len(ValidUnits))
	for i, u := range ValidUnits {
		names[i] = string(u)
	}
	return strings.Join(names, ", ")
}

// Parse validates a stored unit tag.
func Parse(s string) (Unit, error) {
	u := Unit(strings.TrimSpace(s))
	if !IsValid(u) {
		return None, fmt.Errorf("%w %q (valid: %s)", ErrUnknownUnit, s, GetValidUnitsString())
	}
	return u, nil
}

// DimensionOf returns the dimension of a registered unit.
func DimensionOf(u Unit) (Dimension, error) {
	info, ok := registry[u]
	if !ok {
		return Dimensionless, fmt.Errorf("%w %q", ErrUnknownUnit, u)
	}
	return info.dim, nil
}

// Compatible reports whether values in a can be expressed in b.
func Compatible(a, b Unit) bool {
	ia, okA := registry[a]
	ib, okB := registry[b]
	return okA && okB && ia.dim == ib.dim
}

// Factor returns the multiplier that converts a value in from into to.
func Factor(from, to Unit) (float64, error) {
	if from == to {
		if !IsValid(from) {
			return 0, fmt.Errorf("%w %q", ErrUnknownUnit, from)
		}
		return 1, nil
	}
	fi, ok := registry[from]
	if !ok {
		return 0, fmt.Errorf("%w %q", ErrUnknownUnit, from)
	}
	ti, ok := registry[to]
	if !ok {
		return 0, fmt.Errorf("%w %q", ErrUnknownUnit, to)
	}
	if fi.dim != ti.dim {
		return 0, fmt.Errorf("%w: %q (%s) to %q (%s)", ErrIncompatibleUnits, from, dimName(fi.dim), to, dimName(ti.dim))
	}
	return fi.scale / ti.scale, nil
}

// Convert expresses v, given in from, in to.
func Convert(v float64, from, to Unit) (float64, error) {
	f, err := Factor(from, to)
	if err != nil {
		return 0, err
	}
	if f == 1 {
		return v, nil
	}
	return v * f, nil
}

func dimName(d Dimension) string {
	if d == Dimensionless {
		return "dimensionless"
	}
	return string(d)
}
