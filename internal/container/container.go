package container

import (
	"fmt"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Container is one instance of a Type. Producers own an instance while
// they fill it; the table writer only reads it.
type Container struct {
	typ    *Type
	values []any

	// Meta holds free-form key/value metadata attached to this instance.
	// The table writer stores the Meta of the first instance written to a
	// table as table attributes.
	Meta map[string]string
}

// New creates an instance with every field at its default. Nested
// containers, and one sub-container per declared map key, are created too.
func (t *Type) New() *Container {
	c := &Container{
		typ:    t,
		values: make([]any, len(t.fields)),
		Meta:   map[string]string{},
	}
	for i, f := range t.fields {
		c.values[i] = zeroValue(f)
	}
	return c
}

// Type returns the container's type.
func (c *Container) Type() *Type { return c.typ }

// Get returns the current value of a field. Array values are copies;
// nested containers and maps are returned by reference.
func (c *Container) Get(name string) (any, error) {
	i, ok := c.typ.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no field %q", ErrUnknownField, c.typ.name, name)
	}
	switch v := c.values[i].(type) {
	case *Container, *Map:
		return v, nil
	default:
		return cloneValue(v), nil
	}
}

// Set replaces the value of a field. Values that do not fit the field
// declaration are rejected with ErrTypeMismatch and leave c unchanged.
func (c *Container) Set(name string, v any) error {
	i, ok := c.typ.index[name]
	if !ok {
		return fmt.Errorf("%w: %s has no field %q", ErrUnknownField, c.typ.name, name)
	}
	nv, err := normalize(c.typ.fields[i], v)
	if err != nil {
		return fmt.Errorf("%s: %w", c.typ.name, err)
	}
	c.values[i] = nv
	return nil
}

// MustSet is Set for test fixtures and examples; it panics on error.
func (c *Container) MustSet(name string, v any) *Container {
	if err := c.Set(name, v); err != nil {
		panic(err)
	}
	return c
}

// Update sets several fields at once, in declaration order. It stops at
// the first error; fields set before the error keep their new values.
func (c *Container) Update(values map[string]any) error {
	for name := range values {
		if _, ok := c.typ.index[name]; !ok {
			return fmt.Errorf("%w: %s has no field %q", ErrUnknownField, c.typ.name, name)
		}
	}
	for _, f := range c.typ.fields {
		v, ok := values[f.Name]
		if !ok {
			continue
		}
		if err := c.Set(f.Name, v); err != nil {
			return err
		}
	}
	return nil
}

// Sub returns the nested container held by a KindContainer field.
func (c *Container) Sub(name string) (*Container, error) {
	f, ok := c.typ.Field(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no field %q", ErrUnknownField, c.typ.name, name)
	}
	if f.Kind != KindContainer {
		return nil, fmt.Errorf("%w: field %q is %s, not container", ErrTypeMismatch, name, f.Kind)
	}
	return c.values[c.typ.index[name]].(*Container), nil
}

// MapField returns the sub-container collection held by a KindMap field.
func (c *Container) MapField(name string) (*Map, error) {
	f, ok := c.typ.Field(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no field %q", ErrUnknownField, c.typ.name, name)
	}
	if f.Kind != KindMap {
		return nil, fmt.Errorf("%w: field %q is %s, not map", ErrTypeMismatch, name, f.Kind)
	}
	return c.values[c.typ.index[name]].(*Map), nil
}

// Entry returns the sub-container stored under key in a KindMap field.
func (c *Container) Entry(name, key string) (*Container, error) {
	m, err := c.MapField(name)
	if err != nil {
		return nil, err
	}
	sub, ok := m.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: map %q has no key %q", ErrUnknownField, name, key)
	}
	return sub, nil
}

// GetPath resolves a path of field names (and map keys after map fields)
// from c down to a leaf value.
func (c *Container) GetPath(path []string) (any, error) {
	owner, leaf, err := c.walk(path)
	if err != nil {
		return nil, err
	}
	return owner.Get(leaf)
}

// SetPath sets the leaf value addressed by path.
func (c *Container) SetPath(path []string, v any) error {
	owner, leaf, err := c.walk(path)
	if err != nil {
		return err
	}
	return owner.Set(leaf, v)
}

// walk descends through nested containers and map entries and returns the
// container owning the last path element.
func (c *Container) walk(path []string) (*Container, string, error) {
	if len(path) == 0 {
		return nil, "", fmt.Errorf("%w: empty path", ErrUnknownField)
	}
	cur := c
	for i := 0; i < len(path)-1; i++ {
		f, ok := cur.typ.Field(path[i])
		if !ok {
			return nil, "", fmt.Errorf("%w: %s has no field %q (path %s)", ErrUnknownField, cur.typ.name, path[i], strings.Join(path, "."))
		}
		switch f.Kind {
		case KindContainer:
			cur = cur.values[cur.typ.index[f.Name]].(*Container)
		case KindMap:
			if i+1 >= len(path)-1 {
				return nil, "", fmt.Errorf("%w: path %s ends inside map %q", ErrUnknownField, strings.Join(path, "."), f.Name)
			}
			m := cur.values[cur.typ.index[f.Name]].(*Map)
			sub, ok := m.Get(path[i+1])
			if !ok {
				return nil, "", fmt.Errorf("%w: map %q has no key %q", ErrUnknownField, f.Name, path[i+1])
			}
			cur = sub
			i++
		default:
			return nil, "", fmt.Errorf("%w: field %q is %s and has no children", ErrTypeMismatch, f.Name, f.Kind)
		}
	}
	return cur, path[len(path)-1], nil
}

// Reset puts every field back to its default value.
func (c *Container) Reset() {
	for i, f := range c.typ.fields {
		c.values[i] = zeroValue(f)
	}
	c.Meta = map[string]string{}
}

// Clone returns a deep copy of c.
func (c *Container) Clone() *Container {
	out := &Container{
		typ:    c.typ,
		values: make([]any, len(c.values)),
		Meta:   make(map[string]string, len(c.Meta)),
	}
	for i, v := range c.values {
		out.values[i] = cloneValue(v)
	}
	for k, v := range c.Meta {
		out.Meta[k] = v
	}
	return out
}

// Equal reports whether both containers have the same type and equal
// field values. Unit-tagged values compare equal when they describe the
// same quantity, whatever unit each side was supplied in. Meta is ignored.
func (c *Container) Equal(other *Container) bool {
	if c == nil || other == nil {
		return c == other
	}
	if c.typ != other.typ {
		return false
	}
	for i := range c.values {
		if !valueEqual(c.values[i], other.values[i]) {
			return false
		}
	}
	return true
}

// Items returns the current values keyed by field name in declaration
// order. With recursive set, nested containers and maps become nested
// ordered maps; with flatten also set, the result is a single level keyed
// by dotted paths.
func (c *Container) Items(recursive, flatten bool) *orderedmap.OrderedMap[string, any] {
	out := orderedmap.New[string, any]()
	c.items(out, "", recursive, flatten)
	return out
}

func (c *Container) items(out *orderedmap.OrderedMap[string, any], prefix string, recursive, flatten bool) {
	for i, f := range c.typ.fields {
		key := prefix + f.Name
		v := c.values[i]
		if !recursive {
			out.Set(key, v)
			continue
		}
		switch x := v.(type) {
		case *Container:
			if flatten {
				x.items(out, key+".", true, true)
			} else {
				out.Set(key, x.Items(true, false))
			}
		case *Map:
			if flatten {
				for _, k := range x.keys {
					x.entries[k].items(out, key+"."+k+".", true, true)
				}
			} else {
				nested := orderedmap.New[string, any]()
				for _, k := range x.keys {
					nested.Set(k, x.entries[k].Items(true, false))
				}
				out.Set(key, nested)
			}
		default:
			out.Set(key, cloneValue(v))
		}
	}
}

func (c *Container) String() string {
	var b strings.Builder
	b.WriteString(c.typ.name)
	b.WriteString("{")
	items := c.Items(true, true)
	first := true
	for pair := items.Oldest(); pair != nil; pair = pair.Next() {
		if !first {
			b.WriteString(", ")
		}
		first = false
		fmt.Fprintf(&b, "%s: %v", pair.Key, pair.Value)
	}
	b.WriteString("}")
	return b.String()
}
