// Package tableio converts container instances into rows of flat,
// schema-fixed tables and reconstructs containers from stored rows.
//
// The engine is written entirely against the Backend interface; physical
// storage lives in backend packages (see internal/tableio/sqlite) or in the
// in-memory MemoryStore used by tests.
//
// All operations are synchronous. A Writer or Reader handle must be driven
// by one goroutine at a time. Handles own their backend and release it
// exactly once; WithWriter and WithReader guarantee that release on every
// exit path, including panics raised by the caller's function.
package tableio

import (
	"errors"

	"github.com/banshee-data/containerio/internal/container"
)

var (
	// ErrSchemaMismatch: a container's flattened layout differs from a
	// table's fixed schema, or from the type requested on read.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrGroupExists: a create-only open found the group already present.
	ErrGroupExists = errors.New("group exists")
	// ErrDuplicateColumn: two field paths flatten to the same column name.
	ErrDuplicateColumn = errors.New("duplicate column")
	// ErrUnsupportedType: a field kind has no flatten/unflatten mapping.
	ErrUnsupportedType = container.ErrUnsupportedType
	// ErrResourceClosed: an operation was attempted on a released handle.
	ErrResourceClosed = errors.New("resource closed")

	// ErrNoTable is returned by backends for unknown table paths.
	ErrNoTable = errors.New("no such table")
	// ErrNoGroup is returned by backends for unknown groups.
	ErrNoGroup = errors.New("no such group")
	// ErrInvalidPath is returned for malformed group or table names.
	ErrInvalidPath = errors.New("invalid table path")
)
