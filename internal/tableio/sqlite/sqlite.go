// Package sqlite is the reference table backend. One sink is one SQLite
// database file; groups and tables are recorded in catalog tables and each
// table is one physical SQL table with one typed column per schema column.
// Physical tables and columns are named by catalog rowid and column
// position. Fixed-shape arrays are stored as little-endian BLOBs.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/containerio/internal/config"
	"github.com/banshee-data/containerio/internal/fsutil"
	"github.com/banshee-data/containerio/internal/monitoring"
	"github.com/banshee-data/containerio/internal/tableio"
)

// ErrReadOnly is returned for writes through a read-only handle.
var ErrReadOnly = errors.New("sink opened read-only")

// ErrNotSink is returned when a file holds no table catalog.
var ErrNotSink = errors.New("not a table sink")

// rowIDColumn orders rows by append position.
const rowIDColumn = "ct_row"

// FileMode is the physical open mode of a sink file.
type FileMode int

const (
	// ModeReadOnly opens an existing sink and rejects writes.
	ModeReadOnly FileMode = iota
	// ModeReadWrite opens an existing sink.
	ModeReadWrite
	// ModeAppend opens a sink, creating it if absent.
	ModeAppend
	// ModeTruncate deletes any existing sink and creates an empty one.
	ModeTruncate
)

func (m FileMode) String() string {
	switch m {
	case ModeReadOnly:
		return "r"
	case ModeReadWrite:
		return "r+"
	case ModeAppend:
		return "a"
	case ModeTruncate:
		return "w"
	default:
		return fmt.Sprintf("FileMode(%d)", int(m))
	}
}

// Option configures Open.
type Option func(*options)

type options struct {
	cfg *config.SinkConfig
	fs  fsutil.FileSystem
}

// WithConfig sets the pragmas and engine defaults. A nil config means
// config.DefaultSinkConfig.
func WithConfig(cfg *config.SinkConfig) Option {
	return func(o *options) {
		if cfg != nil {
			o.cfg = cfg
		}
	}
}

// WithFileSystem sets the filesystem used for existence checks and
// truncation.
func WithFileSystem(fs fsutil.FileSystem) Option {
	return func(o *options) {
		if fs != nil {
			o.fs = fs
		}
	}
}

// Backend is a tableio.Backend on one SQLite file. A Backend must be
// driven by one goroutine at a time.
type Backend struct {
	db     *sql.DB
	path   string
	mode   FileMode
	tables map[string]*tableInfo
	closed bool
}

type tableInfo struct {
	schema   tableio.Schema
	physical string
	insert   *sql.Stmt
}

var (
	_ tableio.Backend = (*Backend)(nil)
	_ tableio.Catalog = (*Backend)(nil)
)

// Open opens the sink at path in the given mode.
func Open(path string, mode FileMode, opts ...Option) (*Backend, error) {
	o := options{cfg: config.DefaultSinkConfig(), fs: fsutil.OSFileSystem{}}
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sink config: %w", err)
	}

	switch mode {
	case ModeTruncate:
		for _, p := range []string{path, path + "-wal", path + "-shm", path + "-journal"} {
			if !o.fs.Exists(p) {
				continue
			}
			if err := o.fs.Remove(p); err != nil {
				return nil, fmt.Errorf("failed to truncate %s: %w", p, err)
			}
		}
	case ModeReadOnly, ModeReadWrite:
		if !o.fs.Exists(path) {
			return nil, fmt.Errorf("sink %s: %w", path, os.ErrNotExist)
		}
	case ModeAppend:
	default:
		return nil, fmt.Errorf("unknown file mode %d", int(mode))
	}

	db, err := sql.Open("sqlite", dsn(path, mode, o.cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open sink %s: %w", path, err)
	}
	b := &Backend{db: db, path: path, mode: mode, tables: map[string]*tableInfo{}}

	if mode == ModeReadOnly {
		var n int
		err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'ct_tables'`).Scan(&n)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to inspect sink %s: %w", path, err)
		}
		if n == 0 {
			db.Close()
			return nil, fmt.Errorf("%w: %s", ErrNotSink, path)
		}
	} else {
		if _, err := db.Exec("PRAGMA journal_mode=" + o.cfg.GetJournalMode()); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set journal mode: %w", err)
		}
		if err := migrateUp(db); err != nil {
			db.Close()
			return nil, err
		}
	}
	monitoring.Debugf("[sqlite] opened %s mode=%s", path, mode)
	return b, nil
}

// dsn builds a URI filename. Per-connection pragmas ride along as _pragma
// parameters so that every pooled connection gets them.
func dsn(path string, mode FileMode, cfg *config.SinkConfig) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", cfg.GetBusyTimeout().Milliseconds()))
	q.Add("_pragma", "synchronous("+cfg.GetSynchronous()+")")
	switch mode {
	case ModeReadOnly:
		// query_only rather than mode=ro: a WAL database needs its -shm
		// file even for readers
		q.Set("mode", "rw")
		q.Add("_pragma", "query_only(1)")
	case ModeReadWrite:
		q.Set("mode", "rw")
	default:
		q.Set("mode", "rwc")
	}
	return "file:" + (&url.URL{Path: path}).EscapedPath() + "?" + q.Encode()
}

// Path returns the sink file path.
func (b *Backend) Path() string { return b.path }

// Mode returns the mode the sink was opened with.
func (b *Backend) Mode() FileMode { return b.mode }

// CatalogVersion returns the applied catalog migration version.
func (b *Backend) CatalogVersion() (uint, bool, error) {
	if err := b.check(true); err != nil {
		return 0, false, err
	}
	return catalogVersion(b.db)
}

func (b *Backend) check(write bool) error {
	if b.closed {
		return tableio.ErrResourceClosed
	}
	if write && b.mode == ModeReadOnly {
		return ErrReadOnly
	}
	return nil
}

// Close releases the database. Calling Close again is a no-op.
func (b *Backend) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	for _, ti := range b.tables {
		if ti.insert != nil {
			ti.insert.Close()
		}
	}
	b.tables = nil
	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close sink %s: %w", b.path, err)
	}
	monitoring.Debugf("[sqlite] closed %s", b.path)
	return nil
}
