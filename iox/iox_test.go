package iox

import (
	"errors"
	"io"
	"os"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
)

func TestWriteFile_Writes(t *testing.T) {
	fs := memfs.New()
	if err := WriteFile(fs, "a.txt", []byte("hello"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	f, err := fs.Open("a.txt")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer DiscardClose(f)
	data, _ := io.ReadAll(f)
	if string(data) != "hello" {
		t.Errorf("content = %q", data)
	}
}

func TestWriteFile_Truncates(t *testing.T) {
	fs := memfs.New()
	_ = WriteFile(fs, "a.txt", []byte("long content"), 0o644)
	_ = WriteFile(fs, "a.txt", []byte("x"), 0o644)
	fi, err := fs.Stat("a.txt")
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if fi.Size() != 1 {
		t.Errorf("size = %d, want 1", fi.Size())
	}
}

// failingFS fails every write.
type failingFS struct {
	billy.Filesystem
}

type failingFile struct {
	billy.File
}

func (f failingFile) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func (fs failingFS) OpenFile(name string, flag int, perm os.FileMode) (billy.File, error) {
	f, err := fs.Filesystem.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return failingFile{f}, nil
}

func TestWriteFile_RemovesOnFailure(t *testing.T) {
	fs := failingFS{memfs.New()}
	err := WriteFile(fs, "snap.sav", []byte("data"), 0o644)
	if err == nil {
		t.Fatal("expected error")
	}
	if Exists(fs, "snap.sav") {
		t.Error("partial file should have been removed")
	}
}

func TestRemoveIfExists(t *testing.T) {
	fs := memfs.New()
	if err := RemoveIfExists(fs, "missing"); err != nil {
		t.Errorf("missing file: %v", err)
	}
	_ = WriteFile(fs, "x", nil, 0o644)
	if err := RemoveIfExists(fs, "x"); err != nil {
		t.Errorf("remove: %v", err)
	}
	if Exists(fs, "x") {
		t.Error("file still exists")
	}
}
