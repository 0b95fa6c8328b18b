package tableio

import (
	"errors"
	"fmt"
	"strings"
)

// GroupMode controls CreateOrOpenGroup.
type GroupMode int

const (
	// GroupOpenOrCreate creates the group if absent and keeps it otherwise.
	GroupOpenOrCreate GroupMode = iota
	// GroupCreateOnly fails with ErrGroupExists if the group is present,
	// leaving it untouched.
	GroupCreateOnly
	// GroupOverwrite drops every table of an existing group, then opens it.
	GroupOverwrite
)

func (m GroupMode) String() string {
	switch m {
	case GroupOpenOrCreate:
		return "open-or-create"
	case GroupCreateOnly:
		return "create-only"
	case GroupOverwrite:
		return "overwrite"
	default:
		return fmt.Sprintf("GroupMode(%d)", int(m))
	}
}

// Row is one stored row. Values line up positionally with the table's
// schema columns and are one of int64, float64, bool, string, []int64,
// []float64 or []bool.
type Row []any

// Backend is the storage capability the engine needs. Implementations map
// a group to a physical namespace and a table to one columnar dataset in it.
//
// SetTableMetadata merges keys into the table's metadata. Storing the
// MetaSchema key for a table that has no physical dataset yet creates it;
// rows can only be appended to tables created that way. TableMetadata and
// ReadRows return ErrNoTable for unknown paths. After Close every method
// returns ErrResourceClosed.
type Backend interface {
	CreateOrOpenGroup(group string, mode GroupMode) error
	AppendRow(tablePath string, row Row) error
	ReadRows(tablePath string) (RowIterator, error)
	TableMetadata(tablePath string) (Metadata, error)
	SetTableMetadata(tablePath string, md Metadata) error
	Close() error
}

// RowIterator walks stored rows in append order, in the manner of
// database/sql.Rows.
type RowIterator interface {
	Next() bool
	Row() Row
	Err() error
	Close() error
}

// Catalog is implemented by backends that can list their contents.
type Catalog interface {
	Groups() ([]string, error)
	Tables(group string) ([]string, error)
}

// TablePath joins a group and a table name.
func TablePath(group, table string) string {
	return group + "/" + table
}

// SplitTablePath splits "group/table" at the last slash. Groups may be
// hierarchical ("dl1/event/telescope"); table names may not contain '/'.
func SplitTablePath(p string) (group, table string, err error) {
	i := strings.LastIndex(p, "/")
	if i <= 0 || i == len(p)-1 {
		return "", "", fmt.Errorf("%w: %q is not of the form group/table", ErrInvalidPath, p)
	}
	group, table = p[:i], p[i+1:]
	if err := ValidateGroup(group); err != nil {
		return "", "", err
	}
	return group, table, nil
}

// ValidateGroup checks a group name: non-empty slash-separated segments.
func ValidateGroup(group string) error {
	if group == "" {
		return fmt.Errorf("%w: empty group name", ErrInvalidPath)
	}
	for _, seg := range strings.Split(group, "/") {
		if seg == "" {
			return fmt.Errorf("%w: group %q has an empty segment", ErrInvalidPath, group)
		}
	}
	return nil
}

func validateTableName(table string) error {
	if table == "" || strings.Contains(table, "/") {
		return fmt.Errorf("%w: table name %q must be non-empty and contain no '/'", ErrInvalidPath, table)
	}
	return nil
}

// CountRows drains a table's rows and returns how many there are.
func CountRows(b Backend, tablePath string) (int, error) {
	it, err := b.ReadRows(tablePath)
	if err != nil {
		return 0, err
	}
	defer it.Close()
	n := 0
	for it.Next() {
		n++
	}
	return n, it.Err()
}

func isNoTable(err error) bool { return errors.Is(err, ErrNoTable) }
