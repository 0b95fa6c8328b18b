package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/containerio/internal/config"
	"github.com/banshee-data/containerio/internal/fsutil"
	"github.com/banshee-data/containerio/internal/tableio"
	"github.com/banshee-data/containerio/internal/testutil"
)

func newCommand(t *testing.T) command {
	t.Helper()
	return command{
		db:       testutil.TempSinkPath(t),
		demoRows: 10,
		cfg:      config.DefaultSinkConfig(),
		fs:       fsutil.OSFileSystem{},
	}
}

func TestFlagDefaults(t *testing.T) {
	if *dbPath != "sink.db" {
		t.Errorf("expected -db default sink.db, got %q", *dbPath)
	}
	if *demoRows != 10 {
		t.Errorf("expected -demo-rows default 10, got %d", *demoRows)
	}
	if *writeMode != "overwrite" || *readMode != "read-only" {
		t.Errorf("unexpected mode defaults %q, %q", *writeMode, *readMode)
	}
	if *listTables || *demo || *debug {
		t.Error("boolean flags should default to false")
	}
}

func TestRun_DemoThenList(t *testing.T) {
	cmd := newCommand(t)
	cmd.demo = true
	cmd.list = true

	var out bytes.Buffer
	require.NoError(t, cmd.run(&out))
	assert.Equal(t, "data/\n  table (10 rows)\n", out.String())
}

func TestRun_Schema(t *testing.T) {
	cmd := newCommand(t)
	cmd.demo = true
	require.NoError(t, cmd.run(&bytes.Buffer{}))

	cmd.demo = false
	cmd.schema = "data/table"
	var out bytes.Buffer
	require.NoError(t, cmd.run(&out))

	text := out.String()
	assert.True(t, strings.HasPrefix(text, "data/table (SimpleContainer, 3 columns)\n"), text)
	assert.Contains(t, text, "  a_int int64\n")
	assert.Contains(t, text, "  a_float float64 [m]\n")
	assert.Contains(t, text, "  a_bool bool\n")
	assert.Contains(t, text, "generator = containerio ")
}

func TestRun_CSVToFile(t *testing.T) {
	cmd := newCommand(t)
	cmd.demo = true
	require.NoError(t, cmd.run(&bytes.Buffer{}))

	cmd.demo = false
	cmd.csv = "data/table"
	cmd.out = filepath.Join(t.TempDir(), "exports", "table.csv")
	var stdout bytes.Buffer
	require.NoError(t, cmd.run(&stdout))
	assert.Empty(t, stdout.String())

	data, err := os.ReadFile(cmd.out)
	require.NoError(t, err)
	assert.Equal(t, demoCSV, string(data))
}

const demoCSV = "a_int,a_float,a_bool\n" +
	"0,0,true\n1,0.01,false\n2,0.02,true\n3,0.03,false\n4,0.04,true\n" +
	"5,0.05,false\n6,0.06,true\n7,0.07,false\n8,0.08,true\n9,0.09,false\n"

func TestRun_CSVChunkSizes(t *testing.T) {
	for _, chunk := range []int{1, 3, 10, 1000} {
		cmd := newCommand(t)
		size := chunk
		cmd.cfg.ChunkSize = &size
		cmd.demo = true
		require.NoError(t, cmd.run(&bytes.Buffer{}))

		cmd.demo = false
		cmd.csv = "data/table"
		var stdout bytes.Buffer
		require.NoError(t, cmd.run(&stdout))
		assert.Equal(t, demoCSV, stdout.String(), "chunk size %d", chunk)
	}
}

func TestRun_WriteModes(t *testing.T) {
	cmd := newCommand(t)
	cmd.demoRows = 2
	cmd.demo = true
	require.NoError(t, cmd.run(&bytes.Buffer{}))

	cmd.writeMode = tableio.AppendOrExtend
	require.NoError(t, cmd.run(&bytes.Buffer{}))

	cmd.demo = false
	cmd.csv = "data/table"
	var out bytes.Buffer
	require.NoError(t, cmd.run(&out))
	assert.Equal(t, "a_int,a_float,a_bool\n0,0,true\n1,0.01,false\n0,0,true\n1,0.01,false\n", out.String())

	cmd.csv = ""
	cmd.demo = true
	cmd.writeMode = tableio.AppendCreateOnly
	assert.ErrorIs(t, cmd.run(&bytes.Buffer{}), tableio.ErrGroupExists)

	cmd.writeMode = tableio.Overwrite
	cmd.demo = true
	cmd.list = true
	out.Reset()
	require.NoError(t, cmd.run(&out))
	assert.Equal(t, "data/\n  table (2 rows)\n", out.String())
}

func TestRun_ReadModes(t *testing.T) {
	cmd := newCommand(t)
	cmd.demoRows = 2
	cmd.demo = true
	require.NoError(t, cmd.run(&bytes.Buffer{}))
	cmd.demo = false
	cmd.csv = "data/table"

	cmd.readMode = tableio.Truncate
	var out bytes.Buffer
	require.NoError(t, cmd.run(&out))
	assert.Equal(t, "a_int,a_float,a_bool\n", out.String(), "truncate reads an empty table")

	cmd.readMode = tableio.ReadWrite
	out.Reset()
	require.NoError(t, cmd.run(&out))
	assert.Equal(t, "a_int,a_float,a_bool\n0,0,true\n1,0.01,false\n", out.String())

	mode, err := tableio.ParseReadMode("read-write")
	require.NoError(t, err)
	assert.Equal(t, cmd.readMode, mode)
	_, err = tableio.ParseWriteMode("replace")
	assert.Error(t, err)
}

func TestRun_MissingSink(t *testing.T) {
	cmd := newCommand(t)
	cmd.list = true
	err := cmd.run(&bytes.Buffer{})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)

	cmd.list = false
	cmd.csv = "data/table"
	assert.ErrorIs(t, cmd.run(&bytes.Buffer{}), os.ErrNotExist)
}
