package fsutil

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
)

func TestOSFileSystem_Exists(t *testing.T) {
	fsys := OSFileSystem{}

	if !fsys.Exists("filesystem.go") {
		t.Error("expected filesystem.go to exist")
	}
	if fsys.Exists("nonexistent_file_xyz.go") {
		t.Error("expected nonexistent file to not exist")
	}
}

func TestOSFileSystem_CreateAllAndRemove(t *testing.T) {
	fsys := OSFileSystem{}
	name := filepath.Join(t.TempDir(), "exports", "dl1", "events.csv")

	w, err := CreateAll(fsys, name)
	if err != nil {
		t.Fatalf("CreateAll failed: %v", err)
	}
	if _, err := w.Write([]byte("event_id\n1\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := fsys.ReadFile(name)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "event_id\n1\n" {
		t.Errorf("unexpected content %q", data)
	}

	if err := fsys.Remove(name); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if fsys.Exists(name) {
		t.Error("expected file to be removed")
	}
}

func TestMemoryFileSystem_WriteAndRead(t *testing.T) {
	mfs := NewMemoryFileSystem()

	testData := []byte("hello, world")
	if err := mfs.WriteFile("/test.txt", testData, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	testData[0] = 'j'

	data, err := mfs.ReadFile("/test.txt")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "hello, world" {
		t.Errorf("expected stored copy, got %q", data)
	}

	if _, err := mfs.ReadFile("/missing.txt"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}

func TestMemoryFileSystem_CreateTruncates(t *testing.T) {
	mfs := NewMemoryFileSystem()
	if err := mfs.WriteFile("/sink.db", []byte("old contents"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := mfs.Create("/sink.db")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	data, _ := mfs.ReadFile("/sink.db")
	if len(data) != 0 {
		t.Errorf("expected truncated file before close, got %q", data)
	}

	if _, err := w.Write([]byte("new")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	data, _ = mfs.ReadFile("/sink.db")
	if string(data) != "new" {
		t.Errorf("expected 'new', got %q", data)
	}
}

func TestMemoryFileSystem_Dirs(t *testing.T) {
	mfs := NewMemoryFileSystem()

	w, err := CreateAll(mfs, "/out/csv/events.csv")
	if err != nil {
		t.Fatalf("CreateAll failed: %v", err)
	}
	w.Close()

	for _, dir := range []string{"/out", "/out/csv"} {
		if !mfs.Exists(dir) {
			t.Errorf("expected %s to exist", dir)
		}
	}
	if err := mfs.Remove("/out/csv"); !errors.Is(err, fs.ErrExist) {
		t.Errorf("expected non-empty directory error, got %v", err)
	}
	if err := mfs.Remove("/out/csv/events.csv"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := mfs.Remove("/out/csv"); err != nil {
		t.Fatalf("Remove of empty dir failed: %v", err)
	}
	if err := mfs.Remove("/out/csv"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}

func TestMemoryFileSystem_ImplementsFileSystem(t *testing.T) {
	var _ FileSystem = NewMemoryFileSystem()
	var _ FileSystem = OSFileSystem{}
}
