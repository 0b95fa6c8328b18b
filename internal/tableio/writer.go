package tableio

import (
	"fmt"
	"sort"

	"github.com/banshee-data/containerio/internal/container"
	"github.com/banshee-data/containerio/internal/monitoring"
	"github.com/banshee-data/containerio/internal/provenance"
)

// WriteMode selects how a writer treats an existing group.
type WriteMode int

const (
	// Overwrite replaces the group's previous contents.
	Overwrite WriteMode = iota
	// AppendCreateOnly refuses to open a group that already exists.
	AppendCreateOnly
	// AppendOrExtend opens the group and appends to its tables, provided
	// the schemas match.
	AppendOrExtend
)

func (m WriteMode) String() string {
	switch m {
	case Overwrite:
		return "overwrite"
	case AppendCreateOnly:
		return "append-create-only"
	case AppendOrExtend:
		return "append-or-extend"
	default:
		return fmt.Sprintf("WriteMode(%d)", int(m))
	}
}

// ParseWriteMode parses the String form of a WriteMode.
func ParseWriteMode(s string) (WriteMode, error) {
	for _, m := range []WriteMode{Overwrite, AppendCreateOnly, AppendOrExtend} {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown write mode %q (valid: overwrite, append-create-only, append-or-extend)", s)
}

func (m WriteMode) groupMode() (GroupMode, error) {
	switch m {
	case Overwrite:
		return GroupOverwrite, nil
	case AppendCreateOnly:
		return GroupCreateOnly, nil
	case AppendOrExtend:
		return GroupOpenOrCreate, nil
	}
	return 0, fmt.Errorf("unknown write mode %d", int(m))
}

// WriterOption configures a Writer.
type WriterOption func(*writerConfig)

type writerConfig struct {
	attrs     map[string]string
	separator string
}

// WithAttributes adds attributes to every table the writer creates.
func WithAttributes(attrs map[string]string) WriterOption {
	return func(c *writerConfig) {
		for k, v := range attrs {
			c.attrs[k] = v
		}
	}
}

// WithProvenance records an activity's attributes on every table the
// writer creates.
func WithProvenance(a *provenance.Activity) WriterOption {
	return func(c *writerConfig) {
		if a == nil {
			return
		}
		for k, v := range a.Attributes() {
			c.attrs[k] = v
		}
	}
}

// WithColumnSeparator sets the separator used to build column names.
func WithColumnSeparator(sep string) WriterOption {
	return func(c *writerConfig) {
		if sep != "" {
			c.separator = sep
		}
	}
}

// Writer appends container instances as rows of tables in one group.
// Each table's schema is fixed by the first container written to it.
type Writer struct {
	backend Backend
	group   string
	mode    WriteMode
	cfg     writerConfig
	tables  map[string]*tableState
	closed  bool
}

type tableState struct {
	schema  Schema
	typ     *container.Type // type whose schema is known to match
	written int
}

// NewWriter opens group on b according to mode. The writer owns b from
// here on: b is closed when the writer is, or right away if the group
// cannot be opened.
func NewWriter(b Backend, group string, mode WriteMode, opts ...WriterOption) (*Writer, error) {
	cfg := writerConfig{attrs: map[string]string{}, separator: DefaultSeparator}
	for _, o := range opts {
		o(&cfg)
	}
	gm, err := mode.groupMode()
	if err != nil {
		b.Close()
		return nil, err
	}
	if err := b.CreateOrOpenGroup(group, gm); err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to open group %s (%s): %w", group, mode, err)
	}
	monitoring.Debugf("[tableio] opened group %s mode=%s", group, mode)
	return &Writer{
		backend: b,
		group:   group,
		mode:    mode,
		cfg:     cfg,
		tables:  map[string]*tableState{},
	}, nil
}

// Group returns the group the writer appends to.
func (w *Writer) Group() string { return w.group }

// Write appends c as one row of table. On the first write to a table its
// schema is derived from c's type, checked against any schema the table
// already has, and stored. Rows whose layout differs from the fixed
// schema fail with ErrSchemaMismatch and leave the table untouched.
func (w *Writer) Write(table string, c *container.Container) error {
	if w.closed {
		return ErrResourceClosed
	}
	if c == nil {
		return fmt.Errorf("%w: nil container", ErrSchemaMismatch)
	}
	if err := validateTableName(table); err != nil {
		return err
	}
	path := TablePath(w.group, table)

	st, ok := w.tables[table]
	if !ok {
		var err error
		if st, err = w.setup(path, c); err != nil {
			return err
		}
		w.tables[table] = st
	} else if c.Type() != st.typ {
		s, err := BuildSchema(c.Type(), WithSeparator(st.schema.Separator))
		if err != nil {
			return err
		}
		if diff := st.schema.Diff(s); diff != "" {
			return fmt.Errorf("%w: %s: %s", ErrSchemaMismatch, path, diff)
		}
	}

	row, err := flattenRow(st.schema, c)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := w.backend.AppendRow(path, row); err != nil {
		return fmt.Errorf("failed to append to %s: %w", path, err)
	}
	st.written++
	monitoring.Debugf("[tableio] %s: wrote row %d", path, st.written)
	return nil
}

// setup fixes the schema of a table on its first write in this session.
func (w *Writer) setup(path string, c *container.Container) (*tableState, error) {
	s, err := BuildSchema(c.Type(), WithSeparator(w.cfg.separator))
	if err != nil {
		return nil, err
	}

	md, err := w.backend.TableMetadata(path)
	switch {
	case err == nil:
		stored, ok, derr := DecodeSchema(md)
		if derr != nil {
			return nil, fmt.Errorf("%s: %w", path, derr)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s exists but has no stored schema", ErrSchemaMismatch, path)
		}
		if diff := stored.Diff(s); diff != "" {
			return nil, fmt.Errorf("%w: %s: %s", ErrSchemaMismatch, path, diff)
		}
		monitoring.Logf("[tableio] extending %s (%d columns)", path, stored.Len())
		return &tableState{schema: stored, typ: c.Type()}, nil
	case isNoTable(err):
	default:
		return nil, fmt.Errorf("failed to read metadata of %s: %w", path, err)
	}

	md, err = EncodeSchema(s)
	if err != nil {
		return nil, err
	}
	md.SetAttributes(c.Meta)
	md.SetAttributes(w.cfg.attrs)
	if err := w.backend.SetTableMetadata(path, md); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	monitoring.Logf("[tableio] created %s from %s (%d columns)", path, c.Type().Name(), s.Len())
	return &tableState{schema: s, typ: c.Type()}, nil
}

// Schema returns the fixed schema of a table written in this session.
func (w *Writer) Schema(table string) (Schema, bool) {
	st, ok := w.tables[table]
	if !ok {
		return Schema{}, false
	}
	return st.schema, true
}

// Tables returns the tables written in this session, sorted.
func (w *Writer) Tables() []string {
	out := make([]string, 0, len(w.tables))
	for t := range w.tables {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// RowCount returns the rows appended to table in this session.
func (w *Writer) RowCount(table string) int {
	if st, ok := w.tables[table]; ok {
		return st.written
	}
	return 0
}

// Close releases the backend. Calling Close again is a no-op.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.backend.Close(); err != nil {
		return fmt.Errorf("failed to close writer for %s: %w", w.group, err)
	}
	monitoring.Debugf("[tableio] closed writer for %s", w.group)
	return nil
}

// WithWriter opens a writer, runs fn and closes the writer on every exit
// path, including a panic in fn, which is re-raised after the close.
func WithWriter(b Backend, group string, mode WriteMode, fn func(*Writer) error, opts ...WriterOption) (err error) {
	w, err := NewWriter(b, group, mode, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(w)
}
