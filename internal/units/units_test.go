package units

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValid(t *testing.T) {
	tests := []struct {
		name     string
		unit     Unit
		expected bool
	}{
		{"meter", Meter, true},
		{"mph", MPH, true},
		{"TeV", Teraelectronvolt, true},
		{"dimensionless", None, true},
		{"invalid unit", "parsec", false},
		{"case sensitive", "M", false},
		{"case sensitive tev", "tev", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValid(tt.unit); got != tt.expected {
				t.Errorf("IsValid(%q) = %v, want %v", tt.unit, got, tt.expected)
			}
		})
	}
}

func TestGetValidUnitsString(t *testing.T) {
	s := GetValidUnitsString()
	assert.Contains(t, s, "cm")
	assert.Contains(t, s, "kmph")
	assert.NotContains(t, s, ", ,")
}

func TestConvert(t *testing.T) {
	tests := []struct {
		name     string
		v        float64
		from, to Unit
		want     float64
	}{
		{"cm to m", 5, Centimeter, Meter, 0.05},
		{"m to cm", 0.05, Meter, Centimeter, 5},
		{"km to mm", 1, Kilometer, Millimeter, 1e6},
		{"ns to s", 1, Nanosecond, Second, 1e-9},
		{"deg to rad", 180, Degree, Radian, math.Pi},
		{"TeV to GeV", 1, Teraelectronvolt, Gigaelectronvolt, 1000},
		{"mph to kmph", 1, MPH, KMPH, 1.609344},
		{"same unit", 3, Meter, Meter, 3},
		{"dimensionless", 3, None, None, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Convert(tt.v, tt.from, tt.to)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9*math.Max(1, math.Abs(tt.want)))
		})
	}
}

func TestConvert_Errors(t *testing.T) {
	_, err := Convert(1, Meter, Second)
	assert.True(t, errors.Is(err, ErrIncompatibleUnits), "got %v", err)

	_, err = Convert(1, Meter, None)
	assert.ErrorIs(t, err, ErrIncompatibleUnits)

	_, err = Convert(1, "furlong", Meter)
	assert.ErrorIs(t, err, ErrUnknownUnit)

	_, err = Convert(1, "furlong", "furlong")
	assert.ErrorIs(t, err, ErrUnknownUnit)
}

func TestParse(t *testing.T) {
	u, err := Parse(" cm ")
	require.NoError(t, err)
	assert.Equal(t, Centimeter, u)

	u, err = Parse("")
	require.NoError(t, err)
	assert.Equal(t, None, u)

	_, err = Parse("lightyear")
	assert.ErrorIs(t, err, ErrUnknownUnit)
}

func TestCompatible(t *testing.T) {
	assert.True(t, Compatible(Meter, Centimeter))
	assert.True(t, Compatible(MPH, KPH))
	assert.False(t, Compatible(Meter, Second))
	assert.False(t, Compatible(Meter, "bogus"))
	assert.True(t, Compatible(None, None))

	d, err := DimensionOf(Degree)
	require.NoError(t, err)
	assert.Equal(t, Angle, d)
}

func TestQuantityAndVector(t *testing.T) {
	q, err := Q(250, Centimeter).To(Meter)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, q.Value, 1e-12)
	assert.Equal(t, Meter, q.Unit)
	assert.Equal(t, "2.5 m", q.String())
	assert.Equal(t, "3", Q(3, None).String())

	_, err = Q(1, Meter).To(Second)
	assert.ErrorIs(t, err, ErrIncompatibleUnits)

	src := V(Millimeter, 1, 2, 3)
	v, err := src.To(Meter)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.001, 0.002, 0.003}, v.Values, 1e-15)
	// the source vector is left untouched
	assert.Equal(t, []float64{1, 2, 3}, src.Values)
}
