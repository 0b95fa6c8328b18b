package tableio

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/banshee-data/containerio/internal/container"
	"github.com/banshee-data/containerio/internal/units"
)

// simpleType has one field of each scalar kind.
func simpleType(t *testing.T) *container.Type {
	t.Helper()
	typ, err := container.NewType("SimpleContainer",
		container.Int("a_int", "some int value"),
		container.Float("a_float", "some float value with a unit").WithUnit(units.Meter),
		container.Bool("a_bool", "some bool value"),
	)
	require.NoError(t, err)
	return typ
}

func otherType(t *testing.T) *container.Type {
	t.Helper()
	typ, err := container.NewType("OtherContainer",
		container.Int("a_int", ""),
		container.String("label", ""),
	)
	require.NoError(t, err)
	return typ
}

// eventType nests a container, a keyed map, arrays and a string.
func eventType(t *testing.T) *container.Type {
	t.Helper()
	hillas, err := container.NewType("HillasParametersContainer",
		container.Float("intensity", "total intensity"),
		container.Float("length", "major axis").WithUnit(units.Meter),
		container.Float("psi", "rotation angle").WithUnit(units.Degree),
	)
	require.NoError(t, err)
	tel, err := container.NewType("TelEventContainer",
		container.Bool("triggered", "telescope triggered"),
		container.Array("pointing", "alt/az pointing", container.KindFloat, 2).WithUnit(units.Degree),
		container.Array("trigger_pixels", "triggered pixel ids", container.KindInt, 3),
		container.Array("mask", "cleaning mask", container.KindBool, 2, 2),
	)
	require.NoError(t, err)
	typ, err := container.NewType("EventContainer",
		container.Int("event_id", "event identifier"),
		container.String("origin", "source name").WithMaxLength(16),
		container.Nested("hillas", "image parameters", hillas),
		container.MapOf("tel", "per-telescope data", tel, "1", "2"),
	)
	require.NoError(t, err)
	return typ
}

func simpleEvent(t *testing.T, typ *container.Type, i int) *container.Container {
	t.Helper()
	c := typ.New()
	require.NoError(t, c.Update(map[string]any{
		"a_int":   i,
		"a_float": units.Q(float64(100*i), units.Centimeter),
		"a_bool":  i%2 == 0,
	}))
	return c
}

func fullEvent(t *testing.T, typ *container.Type, i int) *container.Container {
	t.Helper()
	c := typ.New()
	require.NoError(t, c.Set("event_id", i))
	require.NoError(t, c.Set("origin", "Crab"))
	require.NoError(t, c.SetPath([]string{"hillas", "intensity"}, 100.5*float64(i)))
	require.NoError(t, c.SetPath([]string{"hillas", "length"}, units.Q(float64(i), units.Centimeter)))
	require.NoError(t, c.SetPath([]string{"hillas", "psi"}, units.Q(0.5, units.Radian)))
	require.NoError(t, c.SetPath([]string{"tel", "1", "triggered"}, true))
	require.NoError(t, c.SetPath([]string{"tel", "1", "pointing"}, units.V(units.Degree, 70, float64(i))))
	require.NoError(t, c.SetPath([]string{"tel", "2", "trigger_pixels"}, []int64{int64(i), 2, 3}))
	require.NoError(t, c.SetPath([]string{"tel", "2", "mask"}, []bool{true, false, false, i%2 == 0}))
	return c
}

// writeRows writes n rows of simpleType to group/table in one session.
func writeRows(t *testing.T, store *MemoryStore, group, table string, mode WriteMode, typ *container.Type, n int) {
	t.Helper()
	err := WithWriter(store.Open(), group, mode, func(w *Writer) error {
		for i := 0; i < n; i++ {
			if err := w.Write(table, simpleEvent(t, typ, i)); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func countRows(t *testing.T, store *MemoryStore, path string) int {
	t.Helper()
	b := store.Open()
	defer b.Close()
	n, err := CountRows(b, path)
	require.NoError(t, err)
	return n
}

// rawRows returns the stored rows of a table as the backend holds them.
func rawRows(t *testing.T, b Backend, path string) []Row {
	t.Helper()
	it, err := b.ReadRows(path)
	require.NoError(t, err)
	defer it.Close()
	var out []Row
	for it.Next() {
		out = append(out, it.Row())
	}
	require.NoError(t, it.Err())
	return out
}
