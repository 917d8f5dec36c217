// Package iox provides I/O helpers for resource cleanup and file authoring.
package iox

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-git/go-billy/v5"
)

// DiscardClose closes c and discards the error.
// Use in defer statements where close errors are unactionable:
//
//	defer iox.DiscardClose(f)
func DiscardClose(c io.Closer) { _ = c.Close() }

// DiscardErr calls fn and discards the returned error.
func DiscardErr(fn func() error) { _ = fn() }

// WriteFile writes data to name on fs, truncating any existing file.
// If the write or close fails the file is removed so no partial artifact
// survives for a later reader.
func WriteFile(fs billy.Filesystem, name string, data []byte, perm os.FileMode) (err error) {
	f, err := fs.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}

	defer func() {
		if err != nil {
			_ = fs.Remove(name)
		}
	}()

	if _, werr := f.Write(data); werr != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", name, werr)
	}
	if cerr := f.Close(); cerr != nil {
		return fmt.Errorf("close %s: %w", name, cerr)
	}
	return nil
}

// RemoveIfExists removes name from fs, treating a missing file as success.
func RemoveIfExists(fs billy.Filesystem, name string) error {
	if err := fs.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Exists reports whether name exists on fs.
func Exists(fs billy.Filesystem, name string) bool {
	_, err := fs.Stat(name)
	return err == nil
}
