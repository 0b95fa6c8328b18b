package tableio

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-memory sink. Every handle returned by Open shares
// the same contents, so data written through one handle is visible to
// readers opened later, the way a file on disk would be.
type MemoryStore struct {
	mu     sync.Mutex
	groups map[string]bool
	tables map[string]*memTable
	closes int
}

type memTable struct {
	md   Metadata
	rows []Row
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		groups: map[string]bool{},
		tables: map[string]*memTable{},
	}
}

// Open returns a new backend handle on the store.
func (s *MemoryStore) Open() *MemoryBackend {
	return &MemoryBackend{store: s}
}

// Closes reports how many handles have been released.
func (s *MemoryStore) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// MemoryBackend is one handle on a MemoryStore.
type MemoryBackend struct {
	store  *MemoryStore
	closed bool
}

var (
	_ Backend = (*MemoryBackend)(nil)
	_ Catalog = (*MemoryBackend)(nil)
)

// lock acquires the store lock, failing if the handle is released.
func (b *MemoryBackend) lock() error {
	b.store.mu.Lock()
	if b.closed {
		b.store.mu.Unlock()
		return ErrResourceClosed
	}
	return nil
}

func (b *MemoryBackend) CreateOrOpenGroup(group string, mode GroupMode) error {
	if err := ValidateGroup(group); err != nil {
		return err
	}
	if err := b.lock(); err != nil {
		return err
	}
	defer b.store.mu.Unlock()

	s := b.store
	if s.groups[group] {
		switch mode {
		case GroupCreateOnly:
			return fmt.Errorf("%w: %s", ErrGroupExists, group)
		case GroupOverwrite:
			for path := range s.tables {
				if g, _, err := SplitTablePath(path); err == nil && (g == group || strings.HasPrefix(g, group+"/")) {
					delete(s.tables, path)
				}
			}
			for g := range s.groups {
				if strings.HasPrefix(g, group+"/") {
					delete(s.groups, g)
				}
			}
		}
	}
	s.groups[group] = true
	return nil
}

func (b *MemoryBackend) AppendRow(tablePath string, row Row) error {
	if err := b.lock(); err != nil {
		return err
	}
	defer b.store.mu.Unlock()

	t, ok := b.store.tables[tablePath]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoTable, tablePath)
	}
	t.rows = append(t.rows, copyRow(row))
	return nil
}

func (b *MemoryBackend) ReadRows(tablePath string) (RowIterator, error) {
	if err := b.lock(); err != nil {
		return nil, err
	}
	defer b.store.mu.Unlock()

	t, ok := b.store.tables[tablePath]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoTable, tablePath)
	}
	// rows are never modified after append, so sharing the slice header
	// gives a stable snapshot
	return &memRows{rows: t.rows[:len(t.rows):len(t.rows)], pos: -1}, nil
}

func (b *MemoryBackend) TableMetadata(tablePath string) (Metadata, error) {
	if err := b.lock(); err != nil {
		return nil, err
	}
	defer b.store.mu.Unlock()

	t, ok := b.store.tables[tablePath]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoTable, tablePath)
	}
	return t.md.Clone(), nil
}

func (b *MemoryBackend) SetTableMetadata(tablePath string, md Metadata) error {
	group, table, err := SplitTablePath(tablePath)
	if err != nil {
		return err
	}
	if err := validateTableName(table); err != nil {
		return err
	}
	if err := b.lock(); err != nil {
		return err
	}
	defer b.store.mu.Unlock()

	s := b.store
	if !s.groups[group] {
		return fmt.Errorf("%w: %s", ErrNoGroup, group)
	}
	t, ok := s.tables[tablePath]
	if !ok {
		if _, hasSchema := md[MetaSchema]; !hasSchema {
			return fmt.Errorf("%w: %s", ErrNoTable, tablePath)
		}
		t = &memTable{md: Metadata{}}
		s.tables[tablePath] = t
	}
	for k, v := range md {
		t.md[k] = v
	}
	return nil
}

func (b *MemoryBackend) Groups() ([]string, error) {
	if err := b.lock(); err != nil {
		return nil, err
	}
	defer b.store.mu.Unlock()

	out := make([]string, 0, len(b.store.groups))
	for g := range b.store.groups {
		out = append(out, g)
	}
	sort.Strings(out)
	return out, nil
}

func (b *MemoryBackend) Tables(group string) ([]string, error) {
	if err := b.lock(); err != nil {
		return nil, err
	}
	defer b.store.mu.Unlock()

	if !b.store.groups[group] {
		return nil, fmt.Errorf("%w: %s", ErrNoGroup, group)
	}
	var out []string
	for path := range b.store.tables {
		if g, t, err := SplitTablePath(path); err == nil && g == group {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Close releases the handle. Only the first call counts.
func (b *MemoryBackend) Close() error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	b.store.closes++
	return nil
}

type memRows struct {
	rows   []Row
	pos    int
	closed bool
}

func (r *memRows) Next() bool {
	if r.closed || r.pos+1 >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *memRows) Row() Row {
	if r.pos < 0 || r.pos >= len(r.rows) {
		return nil
	}
	return copyRow(r.rows[r.pos])
}

func (r *memRows) Err() error { return nil }

func (r *memRows) Close() error {
	r.closed = true
	return nil
}

func copyRow(row Row) Row {
	out := make(Row, len(row))
	for i, v := range row {
		switch x := v.(type) {
		case []int64:
			out[i] = append([]int64(nil), x...)
		case []float64:
			out[i] = append([]float64(nil), x...)
		case []bool:
			out[i] = append([]bool(nil), x...)
		default:
			out[i] = v
		}
	}
	return out
}
