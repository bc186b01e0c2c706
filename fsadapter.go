// Copyright 2024 The CAR Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package car

import (
	"io"
	"os"
	"path/filepath"

	"github.com/google/renameio"
)

// FileKind classifies a filesystem entry as seen by lstat, independent of
// the archive's own EntryType — kept distinct because the adapter must
// also report kinds (sockets, devices, fifos) the archive format has no
// entry type for.
type FileKind int

const (
	KindRegular FileKind = iota
	KindDirectory
	KindSymlink
	KindOther
)

// Stat is what the filesystem adapter's Lstat reports about a path.
type Stat struct {
	Kind   FileKind
	Size   int64
	CanRX  bool // has read+execute access (directories)
	CanR   bool // has read access (files)
}

// FSAdapter is the filesystem boundary the engine consumes. The engine
// never calls OS APIs directly; every read from or write to a live
// filesystem goes through this interface.
type FSAdapter interface {
	Lstat(path string) (Stat, error)
	ReadDir(path string) ([]string, error)
	ReadFile(path string, buf []byte) (int, error)
	ReadLink(path string, buf []byte) (int, error)
	CreateDir(path string) error
	CreateFile(path string, data []byte) error
	CreateSymlink(path, target string) error
	FileExistsNonEmpty(path string) bool
	DirExists(path string) bool
}

// OSAdapter is the production FSAdapter backed by the local filesystem.
type OSAdapter struct{}

var _ FSAdapter = OSAdapter{}

// Lstat reports the kind and size of path without following a terminal
// symlink.
func (OSAdapter) Lstat(path string) (Stat, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		return Stat{}, &IoError{Op: "lstat", Path: path, Err: err}
	}
	st := Stat{}
	switch {
	case fi.Mode()&os.ModeSymlink != 0:
		st.Kind = KindSymlink
		target, err := os.Readlink(path)
		if err != nil {
			return Stat{}, &IoError{Op: "readlink", Path: path, Err: err}
		}
		st.Size = int64(len(target))
	case fi.IsDir():
		st.Kind = KindDirectory
		st.CanRX = unixAccess(path, true)
	case fi.Mode().IsRegular():
		st.Kind = KindRegular
		st.Size = fi.Size()
		st.CanR = unixAccess(path, false)
	default:
		st.Kind = KindOther
	}
	return st, nil
}

// unixAccess reports whether path is readable (and, if requireExec,
// executable) by this process. os.Open is the portable proxy for "can
// read"; a directory additionally needs list (execute) permission, probed
// by attempting to read its entries.
func unixAccess(path string, requireExec bool) bool {
	if requireExec {
		f, err := os.Open(path)
		if err != nil {
			return false
		}
		defer f.Close()
		_, err = f.Readdirnames(1)
		return err == nil || err == io.EOF
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// ReadDir lists the names of path's direct children, in the order the OS
// returns them. Callers are responsible for skipping ".", "..", and
// ".DS_Store" (dirmodel.go's Walk does this).
func (OSAdapter) ReadDir(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, &IoError{Op: "readdir", Path: path, Err: err}
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names, nil
}

// ReadFile fills buf with path's contents and returns the number of bytes
// read.
func (OSAdapter) ReadFile(path string, buf []byte) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, &IoError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return n, &IoError{Op: "read", Path: path, Err: err}
	}
	return n, nil
}

// ReadLink fills buf with path's symlink target and returns the number of
// bytes written, with no terminator.
func (OSAdapter) ReadLink(path string, buf []byte) (int, error) {
	target, err := os.Readlink(path)
	if err != nil {
		return 0, &IoError{Op: "readlink", Path: path, Err: err}
	}
	n := copy(buf, target)
	return n, nil
}

// CreateDir creates path and any missing parents, matching the original
// ARCreateDirectories' component-by-component mkdir.
func (OSAdapter) CreateDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return &IoError{Op: "mkdir", Path: path, Err: err}
	}
	return nil
}

// CreateFile writes data to path, creating parent directories as needed.
// It uses renameio so a reader can never observe a partially-written
// regular file at its final path: the data lands in a sibling temp file
// that is atomically renamed into place only after every byte is flushed.
func (OSAdapter) CreateFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &IoError{Op: "mkdir", Path: path, Err: err}
	}
	t, err := renameio.TempFile("", path)
	if err != nil {
		return &IoError{Op: "create", Path: path, Err: err}
	}
	defer t.Cleanup()
	if _, err := t.Write(data); err != nil {
		return &IoError{Op: "write", Path: path, Err: err}
	}
	if err := t.CloseAtomicallyReplace(); err != nil {
		return &IoError{Op: "rename", Path: path, Err: err}
	}
	return nil
}

// CreateSymlink creates a symlink at path pointing at target.
func (OSAdapter) CreateSymlink(path, target string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &IoError{Op: "mkdir", Path: path, Err: err}
	}
	if err := os.Symlink(target, path); err != nil {
		return &IoError{Op: "symlink", Path: path, Err: err}
	}
	return nil
}

// FileExistsNonEmpty is a strict predicate: a missing file and an empty
// file both report false, an actual non-empty file reports true. This
// intentionally diverges from the original ARFileHasDataAtPath, which
// conflated "missing" and "empty".
func (OSAdapter) FileExistsNonEmpty(path string) bool {
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}
	return fi.Size() > 0
}

// DirExists reports whether path itself names a directory. This
// intentionally diverges from the original ARDirectoryExistsAtPath, which
// returned true if any path component stat'd at all, even a regular file.
func (OSAdapter) DirExists(path string) bool {
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}
	return fi.IsDir()
}
