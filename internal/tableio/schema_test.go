package tableio

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/containerio/internal/container"
	"github.com/banshee-data/containerio/internal/units"
)

func TestBuildSchema_DepthFirstOrder(t *testing.T) {
	t.Parallel()
	s, err := BuildSchema(eventType(t))
	require.NoError(t, err)

	want := []string{
		"event_id", "origin",
		"hillas.intensity", "hillas.length", "hillas.psi",
		"tel.1.triggered", "tel.1.pointing", "tel.1.trigger_pixels", "tel.1.mask",
		"tel.2.triggered", "tel.2.pointing", "tel.2.trigger_pixels", "tel.2.mask",
	}
	if diff := cmp.Diff(want, s.Names()); diff != "" {
		t.Errorf("column order mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "EventContainer", s.Container)
	assert.Equal(t, DefaultSeparator, s.Separator)

	length := s.Columns[s.Index("hillas.length")]
	assert.Equal(t, units.Meter, length.Unit)
	assert.Equal(t, "major axis", length.Description)
	assert.Equal(t, []string{"hillas", "length"}, length.Path)

	mask := s.Columns[s.Index("tel.2.mask")]
	assert.Equal(t, "bool[2x2]", mask.Type.String())
	assert.Equal(t, 4, mask.Type.Len())
	assert.Equal(t, []string{"tel", "2", "mask"}, mask.Path)

	assert.Equal(t, "string", s.Columns[s.Index("origin")].Type.String())
	assert.Equal(t, -1, s.Index("hillas"))
}

func TestBuildSchema_Separator(t *testing.T) {
	t.Parallel()
	s, err := BuildSchema(eventType(t), WithSeparator("_"))
	require.NoError(t, err)
	assert.Equal(t, "hillas_length", s.Columns[3].Name)
	assert.Equal(t, "_", s.Separator)
}

func TestBuildSchema_DuplicateColumn(t *testing.T) {
	t.Parallel()
	sub, err := container.NewType("Sub", container.Int("x", ""))
	require.NoError(t, err)
	typ, err := container.NewType("Clash",
		container.Int("hillas_x", ""),
		container.Nested("hillas", "", sub),
	)
	require.NoError(t, err)

	_, err = BuildSchema(typ)
	require.NoError(t, err, "dotted names do not collide")

	_, err = BuildSchema(typ, WithSeparator("_"))
	assert.ErrorIs(t, err, ErrDuplicateColumn)
}

func TestStorageType_Parse(t *testing.T) {
	t.Parallel()
	for _, s := range []string{"int64", "float64", "bool", "string", "float64[3]", "int64[2x4]"} {
		st, err := ParseStorageType(s)
		require.NoError(t, err, s)
		assert.Equal(t, s, st.String())
	}
	for _, s := range []string{"int32", "string[2]", "float64[0]", "float64[2", "float64[ax2]"} {
		_, err := ParseStorageType(s)
		assert.ErrorIs(t, err, ErrUnsupportedType, s)
	}
}

func TestSchema_Diff(t *testing.T) {
	t.Parallel()
	a, err := BuildSchema(simpleType(t))
	require.NoError(t, err)
	assert.True(t, a.Equal(a))

	sameLayout, err := container.NewType("Renamed",
		container.Int("a_int", "different description"),
		container.Float("a_float", "").WithUnit(units.Meter),
		container.Bool("a_bool", ""),
	)
	require.NoError(t, err)
	b, err := BuildSchema(sameLayout)
	require.NoError(t, err)
	assert.Empty(t, a.Diff(b), "descriptions and type names are not part of the layout")

	cm, err := container.NewType("Centimetres",
		container.Int("a_int", ""),
		container.Float("a_float", "").WithUnit(units.Centimeter),
		container.Bool("a_bool", ""),
	)
	require.NoError(t, err)
	c, err := BuildSchema(cm)
	require.NoError(t, err)
	assert.Contains(t, a.Diff(c), `column a_float has unit "m", got "cm"`)

	o, err := BuildSchema(otherType(t))
	require.NoError(t, err)
	diff := a.Diff(o)
	assert.Contains(t, diff, "unexpected column label")
	assert.Contains(t, diff, "missing column a_float")

	reordered, err := container.NewType("Reordered",
		container.Float("a_float", "").WithUnit(units.Meter),
		container.Int("a_int", ""),
		container.Bool("a_bool", ""),
	)
	require.NoError(t, err)
	r, err := BuildSchema(reordered)
	require.NoError(t, err)
	assert.Contains(t, a.Diff(r), "column 0 is a_int, got a_float")
}

func TestSchemaMetadata_RoundTrip(t *testing.T) {
	t.Parallel()
	s, err := BuildSchema(eventType(t))
	require.NoError(t, err)

	md, err := EncodeSchema(s)
	require.NoError(t, err)
	assert.Equal(t, "m", md["column.hillas.length.unit"])
	assert.Equal(t, "major axis", md["column.hillas.length.description"])
	assert.Equal(t, "EventContainer", md[MetaContainerType])
	assert.NotContains(t, md, "column.event_id.unit")

	got, ok, err := DecodeSchema(md)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, s.Equal(got))
	if diff := cmp.Diff(s, got); diff != "" {
		t.Errorf("decoded schema mismatch (-want +got):\n%s", diff)
	}

	_, ok, err = DecodeSchema(Metadata{})
	assert.NoError(t, err)
	assert.False(t, ok)

	_, _, err = DecodeSchema(Metadata{MetaSchema: "{"})
	assert.Error(t, err)
}

func TestMetadata_Attributes(t *testing.T) {
	t.Parallel()
	md := Metadata{MetaSchema: "{}"}
	md.SetAttributes(map[string]string{"observer": "night shift", "site": "La Palma"})
	assert.Equal(t, "La Palma", md["attr.site"])
	assert.Equal(t, map[string]string{"observer": "night shift", "site": "La Palma"}, md.Attributes())
	assert.Equal(t, []string{"attr.observer", "attr.site", "schema"}, md.Keys())
}
