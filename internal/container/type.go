package container

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Type is a registered container type: a name plus its ordered field list.
// A Type is immutable once created.
type Type struct {
	name   string
	fields []Field
	index  map[string]int
}

var (
	registryMu sync.RWMutex
	registry   = map[string]*Type{}
)

// NewType validates a field list and builds an unregistered Type.
// Defaults are checked and normalised here, once, so instance creation
// never has to re-validate them.
func NewType(name string, fields ...Field) (*Type, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty type name", ErrInvalidDeclaration)
	}
	t := &Type{
		name:   name,
		fields: make([]Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		if err := f.validate(); err != nil {
			return nil, fmt.Errorf("type %s: %w", name, err)
		}
		if _, dup := t.index[f.Name]; dup {
			return nil, fmt.Errorf("%w: type %s declares %q twice", ErrInvalidDeclaration, name, f.Name)
		}
		f.Shape = append([]int(nil), f.Shape...)
		f.Keys = append([]string(nil), f.Keys...)
		if f.Default != nil {
			v, err := normalize(f, f.Default)
			if err != nil {
				return nil, fmt.Errorf("%w: type %s default for %q: %w", ErrInvalidDeclaration, name, f.Name, err)
			}
			f.Default = v
		}
		t.index[f.Name] = len(t.fields)
		t.fields = append(t.fields, f)
	}
	return t, nil
}

// Register creates a Type and records it under name. Registering a name
// twice fails with ErrTypeRegistered.
func Register(name string, fields ...Field) (*Type, error) {
	t, err := NewType(name, fields...)
	if err != nil {
		return nil, err
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrTypeRegistered, name)
	}
	registry[name] = t
	return t, nil
}

// MustRegister is Register for package-level declarations; it panics on error.
func MustRegister(name string, fields ...Field) *Type {
	t, err := Register(name, fields...)
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup returns a registered type by name.
func Lookup(name string) (*Type, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	t, ok := registry[name]
	return t, ok
}

// Registered lists the names of all registered types, sorted.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Name returns the type name.
func (t *Type) Name() string { return t.name }

// NumFields returns the number of declared fields.
func (t *Type) NumFields() int { return len(t.fields) }

// Fields returns the field declarations in declaration order.
func (t *Type) Fields() []Field {
	out := make([]Field, len(t.fields))
	copy(out, t.fields)
	return out
}

// FieldAt returns the i-th declared field.
func (t *Type) FieldAt(i int) Field { return t.fields[i] }

// Field returns the declaration of name.
func (t *Type) Field(name string) (Field, bool) {
	i, ok := t.index[name]
	if !ok {
		return Field{}, false
	}
	return t.fields[i], true
}

// Describe renders the field declarations, one per line.
func (t *Type) Describe() string {
	var b strings.Builder
	b.WriteString(t.name)
	b.WriteString(":\n")
	for _, f := range t.fields {
		fmt.Fprintf(&b, "  %-30s %s\n", f.String(), f.Description)
	}
	return b.String()
}

func (t *Type) String() string { return t.name }
