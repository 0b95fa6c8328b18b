package tableio

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/containerio/internal/container"
	"github.com/banshee-data/containerio/internal/units"
)

// DefaultSeparator joins path elements into flat column names.
const DefaultSeparator = "."

// BaseType is the primitive storage type of a column or array element.
type BaseType string

const (
	Int64   BaseType = "int64"
	Float64 BaseType = "float64"
	Bool    BaseType = "bool"
	String  BaseType = "string"
)

// StorageType is a column's physical type: a base type plus, for arrays,
// a fixed shape.
type StorageType struct {
	Base  BaseType
	Shape []int
}

// IsArray reports whether the column holds a fixed-shape array.
func (s StorageType) IsArray() bool { return len(s.Shape) > 0 }

// Len is the number of elements per row (1 for scalars).
func (s StorageType) Len() int {
	n := 1
	for _, d := range s.Shape {
		n *= d
	}
	return n
}

// String renders "float64" or "float64[2x3]".
func (s StorageType) String() string {
	if !s.IsArray() {
		return string(s.Base)
	}
	dims := make([]string, len(s.Shape))
	for i, d := range s.Shape {
		dims[i] = strconv.Itoa(d)
	}
	return string(s.Base) + "[" + strings.Join(dims, "x") + "]"
}

// Equal compares base type and shape.
func (s StorageType) Equal(o StorageType) bool {
	if s.Base != o.Base || len(s.Shape) != len(o.Shape) {
		return false
	}
	for i := range s.Shape {
		if s.Shape[i] != o.Shape[i] {
			return false
		}
	}
	return true
}

// ParseStorageType parses the String form.
func ParseStorageType(s string) (StorageType, error) {
	base, dims, hasShape := strings.Cut(s, "[")
	st := StorageType{Base: BaseType(base)}
	switch st.Base {
	case Int64, Float64, Bool, String:
	default:
		return StorageType{}, fmt.Errorf("%w: storage type %q", ErrUnsupportedType, s)
	}
	if !hasShape {
		return st, nil
	}
	if st.Base == String || !strings.HasSuffix(dims, "]") {
		return StorageType{}, fmt.Errorf("%w: storage type %q", ErrUnsupportedType, s)
	}
	for _, d := range strings.Split(strings.TrimSuffix(dims, "]"), "x") {
		n, err := strconv.Atoi(d)
		if err != nil || n < 1 {
			return StorageType{}, fmt.Errorf("%w: storage type %q has a bad shape", ErrUnsupportedType, s)
		}
		st.Shape = append(st.Shape, n)
	}
	return st, nil
}

// MarshalText implements encoding.TextMarshaler.
func (s StorageType) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *StorageType) UnmarshalText(b []byte) error {
	st, err := ParseStorageType(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// Column describes one flat column and the field path it came from.
type Column struct {
	Name        string      `json:"name"`
	Type        StorageType `json:"type"`
	Unit        units.Unit  `json:"unit,omitempty"`
	Description string      `json:"description,omitempty"`
	Path        []string    `json:"path"`
}

func (c Column) String() string {
	if c.Unit == units.None {
		return fmt.Sprintf("%s %s", c.Name, c.Type)
	}
	return fmt.Sprintf("%s %s [%s]", c.Name, c.Type, c.Unit)
}

// Schema is the ordered, fixed column layout of one table.
type Schema struct {
	Columns   []Column `json:"columns"`
	Separator string   `json:"separator"`
	Container string   `json:"container,omitempty"` // type name that fixed the schema
}

// Len returns the number of columns.
func (s Schema) Len() int { return len(s.Columns) }

// Names returns the column names in order.
func (s Schema) Names() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

// Index returns the position of a column, or -1.
func (s Schema) Index(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Equal reports whether both schemas describe the same layout.
func (s Schema) Equal(other Schema) bool {
	return s.Diff(other) == ""
}

// Diff describes the first differences between s and other in column
// set, order, storage type, unit or source path. An empty result means
// the layouts are interchangeable. Descriptions are not compared.
func (s Schema) Diff(other Schema) string {
	var problems []string
	have := make(map[string]int, len(s.Columns))
	for i, c := range s.Columns {
		have[c.Name] = i
	}
	want := make(map[string]bool, len(other.Columns))
	for _, c := range other.Columns {
		want[c.Name] = true
		i, ok := have[c.Name]
		if !ok {
			problems = append(problems, fmt.Sprintf("unexpected column %s", c.Name))
			continue
		}
		sc := s.Columns[i]
		if !sc.Type.Equal(c.Type) {
			problems = append(problems, fmt.Sprintf("column %s is %s, got %s", c.Name, sc.Type, c.Type))
		}
		if sc.Unit != c.Unit {
			problems = append(problems, fmt.Sprintf("column %s has unit %q, got %q", c.Name, sc.Unit, c.Unit))
		}
		if strings.Join(sc.Path, "\x00") != strings.Join(c.Path, "\x00") {
			problems = append(problems, fmt.Sprintf("column %s maps to %v, got %v", c.Name, sc.Path, c.Path))
		}
	}
	for _, c := range s.Columns {
		if !want[c.Name] {
			problems = append(problems, fmt.Sprintf("missing column %s", c.Name))
		}
	}
	if len(problems) == 0 && len(s.Columns) == len(other.Columns) {
		for i := range s.Columns {
			if s.Columns[i].Name != other.Columns[i].Name {
				problems = append(problems, fmt.Sprintf("column %d is %s, got %s", i, s.Columns[i].Name, other.Columns[i].Name))
				break
			}
		}
	}
	const maxProblems = 5
	if len(problems) > maxProblems {
		problems = append(problems[:maxProblems], fmt.Sprintf("and %d more", len(problems)-maxProblems))
	}
	return strings.Join(problems, "; ")
}

// SchemaOption configures BuildSchema.
type SchemaOption func(*schemaConfig)

type schemaConfig struct {
	separator string
}

// WithSeparator joins path elements with sep instead of ".". Using "_"
// reproduces prefix_field style names, at the price of more collisions.
func WithSeparator(sep string) SchemaOption {
	return func(c *schemaConfig) {
		if sep != "" {
			c.separator = sep
		}
	}
}

// BuildSchema flattens a container type depth-first in declaration order.
// Scalar, string and array fields emit one column each; nested containers
// recurse with the path extended by the field name; map fields recurse
// once per declared key, in key order.
func BuildSchema(t *container.Type, opts ...SchemaOption) (Schema, error) {
	cfg := schemaConfig{separator: DefaultSeparator}
	for _, o := range opts {
		o(&cfg)
	}
	b := &schemaBuilder{sep: cfg.separator, seen: map[string][]string{}}
	if err := b.walk(t, nil); err != nil {
		return Schema{}, err
	}
	return Schema{Columns: b.cols, Separator: cfg.separator, Container: t.Name()}, nil
}

type schemaBuilder struct {
	sep  string
	cols []Column
	seen map[string][]string
}

func (b *schemaBuilder) walk(t *container.Type, prefix []string) error {
	for i := 0; i < t.NumFields(); i++ {
		f := t.FieldAt(i)
		path := append(prefix[:len(prefix):len(prefix)], f.Name)
		switch f.Kind {
		case container.KindContainer:
			if err := b.walk(f.Type, path); err != nil {
				return err
			}
		case container.KindMap:
			for _, key := range f.Keys {
				if err := b.walk(f.Type, append(path[:len(path):len(path)], key)); err != nil {
					return err
				}
			}
		default:
			st, err := storageTypeOf(f)
			if err != nil {
				return fmt.Errorf("%s: %w", strings.Join(path, b.sep), err)
			}
			if err := b.add(Column{
				Name:        strings.Join(path, b.sep),
				Type:        st,
				Unit:        f.Unit,
				Description: f.Description,
				Path:        path,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *schemaBuilder) add(c Column) error {
	if prev, dup := b.seen[c.Name]; dup {
		return fmt.Errorf("%w: %q from both %v and %v", ErrDuplicateColumn, c.Name, prev, c.Path)
	}
	b.seen[c.Name] = c.Path
	b.cols = append(b.cols, c)
	return nil
}

func baseTypeOf(k container.Kind) (BaseType, bool) {
	switch k {
	case container.KindInt:
		return Int64, true
	case container.KindFloat:
		return Float64, true
	case container.KindBool:
		return Bool, true
	case container.KindString:
		return String, true
	}
	return "", false
}

func storageTypeOf(f container.Field) (StorageType, error) {
	if f.Kind == container.KindArray {
		base, ok := baseTypeOf(f.Elem)
		if !ok || base == String {
			return StorageType{}, fmt.Errorf("%w: array of %s", ErrUnsupportedType, f.Elem)
		}
		return StorageType{Base: base, Shape: append([]int(nil), f.Shape...)}, nil
	}
	base, ok := baseTypeOf(f.Kind)
	if !ok {
		return StorageType{}, fmt.Errorf("%w: field kind %s", ErrUnsupportedType, f.Kind)
	}
	return StorageType{Base: base}, nil
}
