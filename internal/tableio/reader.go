package tableio

import (
	"fmt"
	"iter"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/banshee-data/containerio/internal/container"
	"github.com/banshee-data/containerio/internal/monitoring"
)

// ReadMode mirrors the physical open modes of a sink. None of them lets
// the reader modify data; Truncate reads as an empty sink.
type ReadMode int

const (
	ReadOnly ReadMode = iota
	ReadWrite
	Append
	Truncate
)

func (m ReadMode) String() string {
	switch m {
	case ReadOnly:
		return "read-only"
	case ReadWrite:
		return "read-write"
	case Append:
		return "append"
	case Truncate:
		return "truncate"
	default:
		return fmt.Sprintf("ReadMode(%d)", int(m))
	}
}

// ParseReadMode parses the String form of a ReadMode.
func ParseReadMode(s string) (ReadMode, error) {
	for _, m := range []ReadMode{ReadOnly, ReadWrite, Append, Truncate} {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown read mode %q (valid: read-only, read-write, append, truncate)", s)
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithAllocator sets the allocator used for Arrow records.
func WithAllocator(mem memory.Allocator) ReaderOption {
	return func(r *Reader) {
		if mem != nil {
			r.mem = mem
		}
	}
}

// Reader reconstructs containers from stored tables.
type Reader struct {
	backend Backend
	mode    ReadMode
	mem     memory.Allocator
	meta    map[string]Metadata
	schemas map[string]Schema
	closed  bool
}

// NewReader wraps b. The reader owns b and closes it on Close, or right
// away if mode is invalid.
func NewReader(b Backend, mode ReadMode, opts ...ReaderOption) (*Reader, error) {
	if mode < ReadOnly || mode > Truncate {
		b.Close()
		return nil, fmt.Errorf("unknown read mode %d", int(mode))
	}
	r := &Reader{
		backend: b,
		mode:    mode,
		mem:     memory.NewGoAllocator(),
		meta:    map[string]Metadata{},
		schemas: map[string]Schema{},
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Mode returns the mode the reader was opened with.
func (r *Reader) Mode() ReadMode { return r.mode }

// Metadata returns the stored metadata of a table.
func (r *Reader) Metadata(tablePath string) (Metadata, error) {
	if r.closed {
		return nil, ErrResourceClosed
	}
	if md, ok := r.meta[tablePath]; ok {
		return md.Clone(), nil
	}
	md, err := r.backend.TableMetadata(tablePath)
	if err != nil {
		return nil, err
	}
	r.meta[tablePath] = md
	return md.Clone(), nil
}

// Schema returns the stored schema of a table.
func (r *Reader) Schema(tablePath string) (Schema, error) {
	if r.closed {
		return Schema{}, ErrResourceClosed
	}
	if s, ok := r.schemas[tablePath]; ok {
		return s, nil
	}
	md, err := r.Metadata(tablePath)
	if err != nil {
		return Schema{}, err
	}
	s, ok, err := DecodeSchema(md)
	if err != nil {
		return Schema{}, fmt.Errorf("%s: %w", tablePath, err)
	}
	if !ok {
		return Schema{}, fmt.Errorf("%w: %s has no stored schema", ErrSchemaMismatch, tablePath)
	}
	r.schemas[tablePath] = s
	return s, nil
}

// Read checks that t matches the stored schema of tablePath and returns a
// lazy sequence of reconstructed containers. Every range over the
// sequence starts again from the first stored row. Each yielded
// container is a fresh instance owned by the caller.
func (r *Reader) Read(tablePath string, t *container.Type) (iter.Seq2[*container.Container, error], error) {
	if r.closed {
		return nil, ErrResourceClosed
	}
	if r.mode == Truncate {
		return func(func(*container.Container, error) bool) {}, nil
	}
	stored, err := r.Schema(tablePath)
	if err != nil {
		return nil, err
	}
	want, err := BuildSchema(t, WithSeparator(stored.Separator))
	if err != nil {
		return nil, err
	}
	if diff := stored.Diff(want); diff != "" {
		return nil, fmt.Errorf("%w: reading %s as %s: %s", ErrSchemaMismatch, tablePath, t.Name(), diff)
	}
	monitoring.Debugf("[tableio] reading %s as %s", tablePath, t.Name())

	return func(yield func(*container.Container, error) bool) {
		if r.closed {
			yield(nil, ErrResourceClosed)
			return
		}
		rows, err := r.backend.ReadRows(tablePath)
		if err != nil {
			yield(nil, err)
			return
		}
		defer rows.Close()
		for rows.Next() {
			if r.closed {
				yield(nil, ErrResourceClosed)
				return
			}
			c, err := unflattenRow(stored, t, rows.Row())
			if err != nil {
				yield(nil, fmt.Errorf("%s: %w", tablePath, err))
				return
			}
			if !yield(c, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("failed to read %s: %w", tablePath, err))
		}
	}, nil
}

// ReadAll collects a whole table into memory.
func (r *Reader) ReadAll(tablePath string, t *container.Type) ([]*container.Container, error) {
	seq, err := r.Read(tablePath, t)
	if err != nil {
		return nil, err
	}
	var out []*container.Container
	for c, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Close releases the backend. Calling Close again is a no-op; sequences
// obtained earlier report ErrResourceClosed.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if err := r.backend.Close(); err != nil {
		return fmt.Errorf("failed to close reader: %w", err)
	}
	return nil
}

// WithReader opens a reader, runs fn and closes the reader on every exit
// path, including a panic in fn.
func WithReader(b Backend, mode ReadMode, fn func(*Reader) error, opts ...ReaderOption) (err error) {
	r, err := NewReader(b, mode, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := r.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(r)
}
