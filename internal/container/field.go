// Package container defines the declared, unit-annotated field model that
// the table engine flattens into rows.
//
// A Type is an explicit, ordered list of Field declarations registered once
// at start-up. A Container is one mutable instance of a Type holding the
// current value of every field. Types may nest other types, either directly
// (KindContainer) or as a fixed-key collection of sub-containers (KindMap),
// for example one sub-container per telescope id.
package container

import (
	"errors"
	"fmt"
	"strings"

	"github.com/banshee-data/containerio/internal/units"
)

var (
	// ErrTypeMismatch is returned when a value does not fit a field declaration.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrUnknownField is returned for names that are not declared on the type.
	ErrUnknownField = errors.New("unknown field")
	// ErrUnsupportedType is returned for kinds with no flatten/unflatten mapping.
	ErrUnsupportedType = errors.New("unsupported type")
	// ErrInvalidDeclaration is returned by NewType for malformed field lists.
	ErrInvalidDeclaration = errors.New("invalid field declaration")
	// ErrTypeRegistered is returned when a type name is registered twice.
	ErrTypeRegistered = errors.New("container type already registered")
)

// Kind is the semantic type of a field.
type Kind int

const (
	KindInvalid Kind = iota
	KindInt
	KindFloat
	KindBool
	KindString
	KindArray
	KindContainer
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindContainer:
		return "container"
	case KindMap:
		return "map"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Field is the static declaration of one named slot of a container type.
// Fields are values; the With* helpers return modified copies so they can
// be chained inside a Register call.
type Field struct {
	Name        string
	Kind        Kind
	Elem        Kind  // element kind of an array: KindInt, KindFloat or KindBool
	Shape       []int // fixed array shape
	Unit        units.Unit
	Description string
	Default     any
	MaxLength   int      // strings only; longer values are truncated, 0 means unlimited
	Type        *Type    // nested type for KindContainer and KindMap
	Keys        []string // the full key set of a KindMap field
}

// Int declares a 64-bit integer field.
func Int(name, description string) Field {
	return Field{Name: name, Kind: KindInt, Description: description}
}

// Float declares a 64-bit floating point field.
func Float(name, description string) Field {
	return Field{Name: name, Kind: KindFloat, Description: description}
}

// Bool declares a boolean field.
func Bool(name, description string) Field {
	return Field{Name: name, Kind: KindBool, Description: description}
}

// String declares a string field.
func String(name, description string) Field {
	return Field{Name: name, Kind: KindString, Description: description}
}

// Array declares a fixed-shape numeric or boolean array field.
func Array(name, description string, elem Kind, shape ...int) Field {
	return Field{Name: name, Kind: KindArray, Elem: elem, Shape: append([]int(nil), shape...), Description: description}
}

// Nested declares a field holding one sub-container of type t.
func Nested(name, description string, t *Type) Field {
	return Field{Name: name, Kind: KindContainer, Type: t, Description: description}
}

// MapOf declares a field holding one sub-container of type t per key.
// The key set is fixed at declaration time.
func MapOf(name, description string, t *Type, keys ...string) Field {
	return Field{Name: name, Kind: KindMap, Type: t, Keys: append([]string(nil), keys...), Description: description}
}

// WithUnit returns a copy of f tagged with u.
func (f Field) WithUnit(u units.Unit) Field {
	f.Unit = u
	return f
}

// WithDefault returns a copy of f with a default value.
func (f Field) WithDefault(v any) Field {
	f.Default = v
	return f
}

// WithMaxLength returns a copy of f limited to n characters.
func (f Field) WithMaxLength(n int) Field {
	f.MaxLength = n
	return f
}

// Len is the number of elements of an array field, 1 otherwise.
func (f Field) Len() int {
	if f.Kind != KindArray {
		return 1
	}
	n := 1
	for _, d := range f.Shape {
		n *= d
	}
	return n
}

func (f Field) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", f.Name, f.Kind)
	if f.Kind == KindArray {
		fmt.Fprintf(&b, "<%s>%v", f.Elem, f.Shape)
	}
	if f.Type != nil {
		fmt.Fprintf(&b, "<%s>", f.Type.Name())
	}
	if f.Kind == KindMap {
		fmt.Fprintf(&b, "[%s]", strings.Join(f.Keys, ","))
	}
	if f.Unit != units.None {
		fmt.Fprintf(&b, " [%s]", f.Unit)
	}
	return b.String()
}

func (f Field) validate() error {
	if f.Name == "" {
		return fmt.Errorf("%w: empty field name", ErrInvalidDeclaration)
	}
	if strings.ContainsAny(f.Name, "./") {
		return fmt.Errorf("%w: field name %q must not contain '.' or '/'", ErrInvalidDeclaration, f.Name)
	}
	if !units.IsValid(f.Unit) {
		return fmt.Errorf("%w: field %q: %w", ErrInvalidDeclaration, f.Name, units.ErrUnknownUnit)
	}
	if f.MaxLength < 0 || (f.MaxLength > 0 && f.Kind != KindString) {
		return fmt.Errorf("%w: field %q: max length applies to strings only", ErrInvalidDeclaration, f.Name)
	}

	switch f.Kind {
	case KindInt, KindBool, KindString:
		if f.Unit != units.None {
			return fmt.Errorf("%w: field %q: %s fields cannot carry a unit", ErrInvalidDeclaration, f.Name, f.Kind)
		}
	case KindFloat:
	case KindArray:
		switch f.Elem {
		case KindInt, KindBool:
			if f.Unit != units.None {
				return fmt.Errorf("%w: field %q: %s arrays cannot carry a unit", ErrInvalidDeclaration, f.Name, f.Elem)
			}
		case KindFloat:
		default:
			return fmt.Errorf("%w: field %q: array of %s", ErrUnsupportedType, f.Name, f.Elem)
		}
		if len(f.Shape) == 0 {
			return fmt.Errorf("%w: field %q: arrays need a fixed shape", ErrInvalidDeclaration, f.Name)
		}
		for _, d := range f.Shape {
			if d < 1 {
				return fmt.Errorf("%w: field %q: invalid shape %v", ErrInvalidDeclaration, f.Name, f.Shape)
			}
		}
	case KindContainer, KindMap:
		if f.Type == nil {
			return fmt.Errorf("%w: field %q: nested type is nil", ErrInvalidDeclaration, f.Name)
		}
		if f.Unit != units.None || f.Default != nil {
			return fmt.Errorf("%w: field %q: nested fields take neither unit nor default", ErrInvalidDeclaration, f.Name)
		}
		if f.Kind == KindMap {
			if len(f.Keys) == 0 {
				return fmt.Errorf("%w: field %q: map fields need their full key set", ErrInvalidDeclaration, f.Name)
			}
			seen := make(map[string]bool, len(f.Keys))
			for _, k := range f.Keys {
				if k == "" || seen[k] {
					return fmt.Errorf("%w: field %q: empty or repeated key %q", ErrInvalidDeclaration, f.Name, k)
				}
				seen[k] = true
			}
		}
	default:
		return fmt.Errorf("%w: field %q has kind %s", ErrUnsupportedType, f.Name, f.Kind)
	}
	return nil
}
