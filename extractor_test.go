// Copyright 2024 The CAR Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package car

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExtractorRoundTrip(t *testing.T) {
	root := writeTestTree(t)
	archivePath := filepath.Join(t.TempDir(), "archive.car")

	w := NewWriter(OSAdapter{}, nil)
	if err := w.Create(CreateParams{
		RootDirectory: root,
		OutputPath:    archivePath,
		Subtype:       Subtype2,
		Modifiers:     &CreateDataModifiers{},
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	dest := t.TempDir()
	x := NewExtractor(OSAdapter{}, nil)
	if err := x.Extract(ExtractParams{ArchivePath: archivePath, Destination: dest}); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dest, "hello.txt"))
	if err != nil {
		t.Fatalf("ReadFile hello.txt: %v", err)
	}
	if string(data) != "hello, world" {
		t.Errorf("hello.txt = %q, want %q", data, "hello, world")
	}

	nested, err := os.ReadFile(filepath.Join(dest, "sub", "nested.bin"))
	if err != nil {
		t.Fatalf("ReadFile nested.bin: %v", err)
	}
	if len(nested) != 5 {
		t.Errorf("nested.bin len = %d, want 5", len(nested))
	}

	target, err := os.Readlink(filepath.Join(dest, "link"))
	if err != nil {
		t.Fatalf("Readlink: %v", err)
	}
	if target != "hello.txt" {
		t.Errorf("link target = %q, want %q", target, "hello.txt")
	}

	fi, err := os.Stat(filepath.Join(dest, "sub"))
	if err != nil {
		t.Fatalf("Stat sub: %v", err)
	}
	if !fi.IsDir() {
		t.Errorf("sub is not a directory")
	}
}

func TestExtractorRefusesToOverwriteNonEmptyFile(t *testing.T) {
	root := writeTestTree(t)
	archivePath := filepath.Join(t.TempDir(), "archive.car")

	w := NewWriter(OSAdapter{}, nil)
	if err := w.Create(CreateParams{
		RootDirectory: root,
		OutputPath:    archivePath,
		Subtype:       Subtype1,
		Modifiers:     &CreateDataModifiers{},
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	dest := t.TempDir()
	if err := os.WriteFile(filepath.Join(dest, "hello.txt"), []byte("already here"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	x := NewExtractor(OSAdapter{}, nil)
	err := x.Extract(ExtractParams{ArchivePath: archivePath, Destination: dest})
	if _, ok := err.(*DestinationExistsError); !ok {
		t.Errorf("Extract over existing file = %v, want *DestinationExistsError", err)
	}
}

func TestExtractorOverwriteFlag(t *testing.T) {
	root := writeTestTree(t)
	archivePath := filepath.Join(t.TempDir(), "archive.car")

	w := NewWriter(OSAdapter{}, nil)
	if err := w.Create(CreateParams{
		RootDirectory: root,
		OutputPath:    archivePath,
		Subtype:       Subtype1,
		Modifiers:     &CreateDataModifiers{},
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	dest := t.TempDir()
	if err := os.WriteFile(filepath.Join(dest, "hello.txt"), []byte("already here"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	x := NewExtractor(OSAdapter{}, nil)
	if err := x.Extract(ExtractParams{ArchivePath: archivePath, Destination: dest, Overwrite: true}); err != nil {
		t.Fatalf("Extract with Overwrite: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dest, "hello.txt"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "hello, world" {
		t.Errorf("hello.txt = %q, want %q", data, "hello, world")
	}
}
