// Command containerio inspects and exports table sinks.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/containerio/internal/config"
	"github.com/banshee-data/containerio/internal/container"
	"github.com/banshee-data/containerio/internal/fsutil"
	"github.com/banshee-data/containerio/internal/monitoring"
	"github.com/banshee-data/containerio/internal/provenance"
	"github.com/banshee-data/containerio/internal/tableio"
	"github.com/banshee-data/containerio/internal/tableio/sqlite"
	"github.com/banshee-data/containerio/internal/units"
	"github.com/banshee-data/containerio/internal/version"
)

var (
	dbPath      = flag.String("db", "sink.db", "Sink file")
	configPath  = flag.String("config", "", "Sink config JSON file")
	listTables  = flag.Bool("list", false, "List groups and tables")
	schemaTable = flag.String("schema", "", "Print the columns of group/table")
	csvTable    = flag.String("csv", "", "Export group/table as CSV")
	outPath     = flag.String("out", "", "CSV output file (default stdout)")
	demo        = flag.Bool("demo", false, "Write a demo table into the sink")
	demoRows    = flag.Int("demo-rows", 10, "Rows written by -demo")
	writeMode   = flag.String("write-mode", tableio.Overwrite.String(), "Writer mode for -demo: overwrite, append-create-only, append-or-extend")
	readMode    = flag.String("read-mode", tableio.ReadOnly.String(), "Reader mode: read-only, read-write, append, truncate")
	debug       = flag.Bool("debug", false, "Enable debug logging")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// command collects the parsed flags so that run can be driven from tests.
type command struct {
	db, schema, csv, out string
	list, demo           bool
	demoRows             int
	writeMode            tableio.WriteMode
	readMode             tableio.ReadMode
	cfg                  *config.SinkConfig
	fs                   fsutil.FileSystem
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg := config.DefaultSinkConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadSinkConfig(*configPath); err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	monitoring.SetDebug(*debug || cfg.GetDebug())

	wm, err := tableio.ParseWriteMode(*writeMode)
	if err != nil {
		log.Fatalf("invalid -write-mode: %v", err)
	}
	rm, err := tableio.ParseReadMode(*readMode)
	if err != nil {
		log.Fatalf("invalid -read-mode: %v", err)
	}

	cmd := command{
		db:        *dbPath,
		schema:    *schemaTable,
		csv:       *csvTable,
		out:       *outPath,
		list:      *listTables,
		demo:      *demo,
		demoRows:  *demoRows,
		writeMode: wm,
		readMode:  rm,
		cfg:       cfg,
		fs:        fsutil.OSFileSystem{},
	}
	if !cmd.list && !cmd.demo && cmd.schema == "" && cmd.csv == "" {
		flag.Usage()
		os.Exit(2)
	}
	if err := cmd.run(os.Stdout); err != nil {
		log.Fatalf("containerio: %v", err)
	}
}

func (c command) run(stdout io.Writer) error {
	if c.demo {
		if err := c.writeDemo(); err != nil {
			return fmt.Errorf("demo: %w", err)
		}
	}
	if c.list {
		if err := c.listSink(stdout); err != nil {
			return fmt.Errorf("list: %w", err)
		}
	}
	if c.schema != "" {
		if err := c.printSchema(stdout); err != nil {
			return fmt.Errorf("schema: %w", err)
		}
	}
	if c.csv != "" {
		if err := c.exportCSV(stdout); err != nil {
			return fmt.Errorf("csv: %w", err)
		}
	}
	return nil
}

// demoType is the three-column container used by -demo.
func demoType() (*container.Type, error) {
	return container.NewType("SimpleContainer",
		container.Int("a_int", "some int value"),
		container.Float("a_float", "some float value with a unit").WithUnit(units.Meter),
		container.Bool("a_bool", "some bool value"),
	)
}

// writeDemo writes demoRows rows of i, i cm and i%2 == 0, counting from 0.
func (c command) writeDemo() error {
	typ, err := demoType()
	if err != nil {
		return err
	}
	tracker := provenance.NewTracker(nil)
	return tracker.Run("containerio-demo", func(a *provenance.Activity) error {
		tracker.AddOutput(c.db)
		b, err := sqlite.Open(c.db, sqlite.WriterFileMode(c.writeMode), sqlite.WithConfig(c.cfg), sqlite.WithFileSystem(c.fs))
		if err != nil {
			return err
		}
		return tableio.WithWriter(b, "data", c.writeMode, func(w *tableio.Writer) error {
			for i := 0; i < c.demoRows; i++ {
				row := typ.New()
				if err := row.Update(map[string]any{
					"a_int":   i,
					"a_float": units.Q(float64(i), units.Centimeter),
					"a_bool":  i%2 == 0,
				}); err != nil {
					return err
				}
				if err := w.Write("table", row); err != nil {
					return err
				}
			}
			monitoring.Logf("[cli] wrote %d rows to %s:data/table (%s)", w.RowCount("table"), c.db, c.writeMode)
			return nil
		},
			tableio.WithColumnSeparator(c.cfg.GetColumnSeparator()),
			tableio.WithProvenance(a),
			tableio.WithAttributes(map[string]string{"generator": version.String()}))
	})
}

func (c command) listSink(stdout io.Writer) error {
	b, err := c.openForRead()
	if err != nil {
		return err
	}
	defer b.Close()

	groups, err := b.Groups()
	if err != nil {
		return err
	}
	for _, g := range groups {
		tables, err := b.Tables(g)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s/\n", g)
		for _, t := range tables {
			n, err := tableio.CountRows(b, tableio.TablePath(g, t))
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "  %s (%d rows)\n", t, n)
		}
	}
	return nil
}

func (c command) printSchema(stdout io.Writer) error {
	return c.withReader(func(r *tableio.Reader) error {
		s, err := r.Schema(c.schema)
		if err != nil {
			return err
		}
		md, err := r.Metadata(c.schema)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s (%s, %d columns)\n", c.schema, s.Container, s.Len())
		for _, col := range s.Columns {
			fmt.Fprintf(stdout, "  %s\n", col)
		}
		if attrs := md.Attributes(); len(attrs) > 0 {
			fmt.Fprintln(stdout, "attributes:")
			for _, k := range tableio.Metadata(attrs).Keys() {
				fmt.Fprintf(stdout, "  %s = %s\n", k, attrs[k])
			}
		}
		return nil
	})
}

func (c command) exportCSV(stdout io.Writer) error {
	return c.withReader(func(r *tableio.Reader) error {
		chunk := c.cfg.GetChunkSize()
		if c.out == "" {
			_, err := r.ExportTableCSV(stdout, c.csv, chunk)
			return err
		}
		f, err := fsutil.CreateAll(c.fs, c.out)
		if err != nil {
			return err
		}
		n, err := r.ExportTableCSV(f, c.csv, chunk)
		if err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		monitoring.Logf("[cli] exported %d rows of %s to %s in chunks of %d", n, c.csv, c.out, chunk)
		return nil
	})
}

func (c command) openForRead() (*sqlite.Backend, error) {
	fm, err := sqlite.ReaderFileMode(c.readMode)
	if err != nil {
		return nil, err
	}
	return sqlite.Open(c.db, fm, sqlite.WithConfig(c.cfg), sqlite.WithFileSystem(c.fs))
}

func (c command) withReader(fn func(*tableio.Reader) error) error {
	b, err := c.openForRead()
	if err != nil {
		return err
	}
	return tableio.WithReader(b, c.readMode, fn)
}
