package sqlite

import (
	"fmt"

	"github.com/banshee-data/containerio/internal/config"
	"github.com/banshee-data/containerio/internal/tableio"
)

// WriterFileMode maps a writer mode onto a physical file mode: Overwrite
// truncates the sink, the append modes keep it.
func WriterFileMode(mode tableio.WriteMode) FileMode {
	if mode == tableio.Overwrite {
		return ModeTruncate
	}
	return ModeAppend
}

// ReaderFileMode maps a reader mode onto a physical file mode. No reader
// mode writes: Truncate only makes the reader see nothing.
func ReaderFileMode(mode tableio.ReadMode) (FileMode, error) {
	switch mode {
	case tableio.ReadOnly, tableio.Truncate:
		return ModeReadOnly, nil
	case tableio.ReadWrite:
		return ModeReadWrite, nil
	case tableio.Append:
		return ModeAppend, nil
	}
	return 0, fmt.Errorf("unknown read mode %d", int(mode))
}

// OpenWriter opens the sink at path and a writer on group. The column
// separator comes from cfg unless opts override it.
func OpenWriter(path, group string, mode tableio.WriteMode, cfg *config.SinkConfig, opts ...tableio.WriterOption) (*tableio.Writer, error) {
	if cfg == nil {
		cfg = config.DefaultSinkConfig()
	}
	b, err := Open(path, WriterFileMode(mode), WithConfig(cfg))
	if err != nil {
		return nil, err
	}
	opts = append([]tableio.WriterOption{tableio.WithColumnSeparator(cfg.GetColumnSeparator())}, opts...)
	return tableio.NewWriter(b, group, mode, opts...)
}

// OpenReader opens the sink at path for reading.
func OpenReader(path string, mode tableio.ReadMode, cfg *config.SinkConfig, opts ...tableio.ReaderOption) (*tableio.Reader, error) {
	fm, err := ReaderFileMode(mode)
	if err != nil {
		return nil, err
	}
	b, err := Open(path, fm, WithConfig(cfg))
	if err != nil {
		return nil, err
	}
	return tableio.NewReader(b, mode, opts...)
}
