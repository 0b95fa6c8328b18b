package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/banshee-data/containerio/internal/monitoring"
	"github.com/banshee-data/containerio/internal/tableio"
)

// inTx runs fn in a transaction, committing on success.
func (b *Backend) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := b.db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (b *Backend) CreateOrOpenGroup(group string, mode tableio.GroupMode) error {
	if err := b.check(true); err != nil {
		return err
	}
	if err := tableio.ValidateGroup(group); err != nil {
		return err
	}

	var dropped []string
	err := retryOnBusy(func() error {
		dropped = nil
		return b.inTx(func(tx *sql.Tx) error {
			var exists bool
			if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM ct_groups WHERE name = ?)`, group).Scan(&exists); err != nil {
				return err
			}
			if exists {
				switch mode {
				case tableio.GroupCreateOnly:
					return fmt.Errorf("%w: %s", tableio.ErrGroupExists, group)
				case tableio.GroupOverwrite:
					var err error
					if dropped, err = dropGroup(tx, group); err != nil {
						return err
					}
				}
			}
			_, err := tx.Exec(`INSERT OR IGNORE INTO ct_groups (name) VALUES (?)`, group)
			return err
		})
	})
	if err != nil {
		return fmt.Errorf("failed to open group %s: %w", group, err)
	}
	for _, path := range dropped {
		b.forget(path)
	}
	if len(dropped) > 0 {
		monitoring.Logf("[sqlite] overwrote group %s (%d tables dropped)", group, len(dropped))
	}
	return nil
}

// dropGroup removes every table of group and of its subgroups, and the
// subgroups themselves. The group entry is kept.
func dropGroup(tx *sql.Tx, group string) ([]string, error) {
	const under = `(group_name = ? OR substr(group_name, 1, length(?) + 1) = ? || '/')`
	rows, err := tx.Query(`SELECT rowid, path FROM ct_tables WHERE `+under, group, group, group)
	if err != nil {
		return nil, err
	}
	var paths []string
	var ids []int64
	for rows.Next() {
		var id int64
		var p string
		if err := rows.Scan(&id, &p); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
		paths = append(paths, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, p := range paths {
		if _, err := tx.Exec(`DROP TABLE IF EXISTS ` + quoteIdent(physicalTable(ids[i]))); err != nil {
			return nil, err
		}
		if _, err := tx.Exec(`DELETE FROM ct_table_metadata WHERE path = ?`, p); err != nil {
			return nil, err
		}
		if _, err := tx.Exec(`DELETE FROM ct_tables WHERE path = ?`, p); err != nil {
			return nil, err
		}
	}
	if _, err := tx.Exec(`DELETE FROM ct_groups WHERE substr(name, 1, length(?) + 1) = ? || '/'`, group, group); err != nil {
		return nil, err
	}
	return paths, nil
}

func (b *Backend) forget(path string) {
	if ti, ok := b.tables[path]; ok {
		if ti.insert != nil {
			ti.insert.Close()
		}
		delete(b.tables, path)
	}
}

func (b *Backend) SetTableMetadata(tablePath string, md tableio.Metadata) error {
	if err := b.check(true); err != nil {
		return err
	}
	group, table, err := tableio.SplitTablePath(tablePath)
	if err != nil {
		return err
	}

	created := false
	err = retryOnBusy(func() error {
		created = false
		return b.inTx(func(tx *sql.Tx) error {
			var groupExists, tableExists bool
			if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM ct_groups WHERE name = ?)`, group).Scan(&groupExists); err != nil {
				return err
			}
			if !groupExists {
				return fmt.Errorf("%w: %s", tableio.ErrNoGroup, group)
			}
			if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM ct_tables WHERE path = ?)`, tablePath).Scan(&tableExists); err != nil {
				return err
			}
			if !tableExists {
				s, ok, err := tableio.DecodeSchema(md)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%w: %s", tableio.ErrNoTable, tablePath)
				}
				res, err := tx.Exec(`INSERT INTO ct_tables (path, group_name, name) VALUES (?, ?, ?)`, tablePath, group, table)
				if err != nil {
					return err
				}
				id, err := res.LastInsertId()
				if err != nil {
					return err
				}
				if _, err := tx.Exec(createTableSQL(physicalTable(id), s)); err != nil {
					return fmt.Errorf("failed to create table: %w", err)
				}
				created = true
			}
			for _, k := range md.Keys() {
				_, err := tx.Exec(`INSERT INTO ct_table_metadata (path, key, value) VALUES (?, ?, ?)
					ON CONFLICT (path, key) DO UPDATE SET value = excluded.value`, tablePath, k, md[k])
				if err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("failed to store metadata of %s: %w", tablePath, err)
	}
	b.forget(tablePath)
	if created {
		monitoring.Debugf("[sqlite] created table %s", tablePath)
	}
	return nil
}

func (b *Backend) TableMetadata(tablePath string) (tableio.Metadata, error) {
	if err := b.check(false); err != nil {
		return nil, err
	}
	var exists bool
	if err := b.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM ct_tables WHERE path = ?)`, tablePath).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to look up %s: %w", tablePath, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", tableio.ErrNoTable, tablePath)
	}
	rows, err := b.db.Query(`SELECT key, value FROM ct_table_metadata WHERE path = ?`, tablePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata of %s: %w", tablePath, err)
	}
	defer rows.Close()
	md := tableio.Metadata{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		md[k] = v
	}
	return md, rows.Err()
}

// table returns the cached schema of a table, loading it on first use.
func (b *Backend) table(tablePath string) (*tableInfo, error) {
	if ti, ok := b.tables[tablePath]; ok {
		return ti, nil
	}
	md, err := b.TableMetadata(tablePath)
	if err != nil {
		return nil, err
	}
	s, ok, err := tableio.DecodeSchema(md)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", tablePath, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s has no stored schema", tableio.ErrSchemaMismatch, tablePath)
	}
	var id int64
	if err := b.db.QueryRow(`SELECT rowid FROM ct_tables WHERE path = ?`, tablePath).Scan(&id); err != nil {
		return nil, fmt.Errorf("failed to look up %s: %w", tablePath, err)
	}
	ti := &tableInfo{schema: s, physical: physicalTable(id)}
	b.tables[tablePath] = ti
	return ti, nil
}

func (b *Backend) AppendRow(tablePath string, row tableio.Row) error {
	if err := b.check(true); err != nil {
		return err
	}
	ti, err := b.table(tablePath)
	if err != nil {
		return err
	}
	if len(row) != len(ti.schema.Columns) {
		return fmt.Errorf("%w: %s has %d columns, row has %d values", tableio.ErrSchemaMismatch, tablePath, len(ti.schema.Columns), len(row))
	}
	args := make([]any, len(row))
	for i, c := range ti.schema.Columns {
		if args[i], err = encodeValue(c, row[i]); err != nil {
			return err
		}
	}
	if ti.insert == nil {
		if ti.insert, err = b.db.Prepare(insertSQL(ti.physical, ti.schema)); err != nil {
			return fmt.Errorf("failed to prepare insert into %s: %w", tablePath, err)
		}
	}
	return retryOnBusy(func() error {
		_, err := ti.insert.Exec(args...)
		return err
	})
}

func (b *Backend) ReadRows(tablePath string) (tableio.RowIterator, error) {
	if err := b.check(false); err != nil {
		return nil, err
	}
	ti, err := b.table(tablePath)
	if err != nil {
		return nil, err
	}
	rows, err := b.db.Query(selectSQL(ti.physical, ti.schema))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", tablePath, err)
	}
	dest := make([]any, len(ti.schema.Columns))
	for i, c := range ti.schema.Columns {
		dest[i] = scanTarget(c)
	}
	return &rowIter{rows: rows, schema: ti.schema, dest: dest}, nil
}

func (b *Backend) Groups() ([]string, error) {
	if err := b.check(false); err != nil {
		return nil, err
	}
	return b.strings(`SELECT name FROM ct_groups ORDER BY name`)
}

func (b *Backend) Tables(group string) ([]string, error) {
	if err := b.check(false); err != nil {
		return nil, err
	}
	var exists bool
	if err := b.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM ct_groups WHERE name = ?)`, group).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", tableio.ErrNoGroup, group)
	}
	return b.strings(`SELECT name FROM ct_tables WHERE group_name = ? ORDER BY name`, group)
}

func (b *Backend) strings(query string, args ...any) ([]string, error) {
	rows, err := b.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type rowIter struct {
	rows   *sql.Rows
	schema tableio.Schema
	dest   []any
	cur    tableio.Row
	err    error
}

func (it *rowIter) Next() bool {
	if it.err != nil || !it.rows.Next() {
		return false
	}
	if err := it.rows.Scan(it.dest...); err != nil {
		it.err = err
		return false
	}
	row := make(tableio.Row, len(it.dest))
	for i, c := range it.schema.Columns {
		v, err := decodeValue(c, it.dest[i])
		if err != nil {
			it.err = err
			return false
		}
		row[i] = v
	}
	it.cur = row
	return true
}

func (it *rowIter) Row() tableio.Row { return it.cur }

func (it *rowIter) Err() error {
	if it.err != nil {
		return it.err
	}
	return it.rows.Err()
}

func (it *rowIter) Close() error { return it.rows.Close() }
