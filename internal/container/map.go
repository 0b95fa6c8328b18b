package container

// Map is a fixed-key collection of sub-containers of one type, e.g. one
// per telescope id. Keys are fixed by the field declaration so that the
// flattened table layout stays well defined; adding keys per row is not
// supported.
type Map struct {
	typ     *Type
	keys    []string
	entries map[string]*Container
}

func newMap(t *Type, keys []string) *Map {
	m := &Map{
		typ:     t,
		keys:    append([]string(nil), keys...),
		entries: make(map[string]*Container, len(keys)),
	}
	for _, k := range keys {
		m.entries[k] = t.New()
	}
	return m
}

// Type returns the type of every entry.
func (m *Map) Type() *Type { return m.typ }

// Keys returns the keys in declaration order.
func (m *Map) Keys() []string { return append([]string(nil), m.keys...) }

// Len returns the number of entries.
func (m *Map) Len() int { return len(m.keys) }

// Get returns the entry for key.
func (m *Map) Get(key string) (*Container, bool) {
	c, ok := m.entries[key]
	return c, ok
}

func (m *Map) clone() *Map {
	out := &Map{
		typ:     m.typ,
		keys:    append([]string(nil), m.keys...),
		entries: make(map[string]*Container, len(m.keys)),
	}
	for _, k := range m.keys {
		out.entries[k] = m.entries[k].Clone()
	}
	return out
}

func (m *Map) equal(other *Map) bool {
	if other == nil || m.typ != other.typ || !sameKeys(m.keys, other.keys) {
		return false
	}
	for _, k := range m.keys {
		if !m.entries[k].Equal(other.entries[k]) {
			return false
		}
	}
	return true
}

func sameKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
