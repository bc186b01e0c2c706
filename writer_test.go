// Copyright 2024 The CAR Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package car

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTestTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "hello.txt"), []byte("hello, world"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "sub", "nested.bin"), []byte{1, 2, 3, 4, 5}, 0o644); err != nil {
		t.Fatalf("WriteFile nested: %v", err)
	}
	if err := os.Symlink("hello.txt", filepath.Join(root, "link")); err != nil {
		t.Fatalf("Symlink: %v", err)
	}
	return root
}

func TestWriterReaderRoundTripAllSubtypes(t *testing.T) {
	subtypes := []Subtype{Subtype1, Subtype2, SubtypeBootX, SubtypeSystemImage}

	for _, st := range subtypes {
		st := st
		t.Run(st.String(), func(t *testing.T) {
			root := writeTestTree(t)
			out := filepath.Join(t.TempDir(), "archive.car")

			w := NewWriter(OSAdapter{}, nil)
			err := w.Create(CreateParams{
				RootDirectory: root,
				OutputPath:    out,
				Subtype:       st,
				Modifiers:     &CreateDataModifiers{},
			})
			if err != nil {
				t.Fatalf("Create: %v", err)
			}

			a, err := Open(out, nil)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer a.Close()

			if a.Subtype != st {
				t.Errorf("Subtype = %v, want %v", a.Subtype, st)
			}
			if err := a.Verify(); err != nil {
				t.Errorf("Verify: %v", err)
			}
			if a.EntryCount() != 4 {
				t.Errorf("EntryCount = %d, want 4", a.EntryCount())
			}

			var sawFile, sawLink, sawDir bool
			for i := 0; i < a.EntryCount(); i++ {
				e, err := a.Entry(i)
				if err != nil {
					t.Fatalf("Entry(%d): %v", i, err)
				}
				switch e.Path {
				case "/hello.txt":
					sawFile = true
					if e.DataSize != 12 {
						t.Errorf("hello.txt DataSize = %d, want 12", e.DataSize)
					}
					data, err := a.readData(e.DataOffset, e.DataSize)
					if err != nil {
						t.Fatalf("readData: %v", err)
					}
					if string(data) != "hello, world" {
						t.Errorf("hello.txt data = %q, want %q", data, "hello, world")
					}
				case "/link":
					sawLink = true
					if e.Type != EntryTypeLink {
						t.Errorf("link type = %v, want EntryTypeLink", e.Type)
					}
					data, err := a.readData(e.DataOffset, e.DataSize)
					if err != nil {
						t.Fatalf("readData: %v", err)
					}
					if string(data) != "hello.txt" {
						t.Errorf("link target = %q, want %q", data, "hello.txt")
					}
				case "/sub":
					sawDir = true
					if e.Type != EntryTypeDirectory {
						t.Errorf("sub type = %v, want EntryTypeDirectory", e.Type)
					}
				}
			}
			if !sawFile || !sawLink || !sawDir {
				t.Errorf("missing expected entries: file=%v link=%v dir=%v", sawFile, sawLink, sawDir)
			}
		})
	}
}

func TestWriterCorruptionIsDetected(t *testing.T) {
	root := writeTestTree(t)
	out := filepath.Join(t.TempDir(), "archive.car")

	w := NewWriter(OSAdapter{}, nil)
	if err := w.Create(CreateParams{
		RootDirectory: root,
		OutputPath:    out,
		Subtype:       Subtype1,
		Modifiers:     &CreateDataModifiers{},
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	// Flip a byte well past the header, inside the data region.
	data[len(data)-1] ^= 0xFF
	if err := os.WriteFile(out, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	a, err := Open(out, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer a.Close()

	err = a.Verify()
	if _, ok := err.(*CorruptDataError); !ok {
		t.Errorf("Verify after corruption = %v, want *CorruptDataError", err)
	}
}

func TestWriterRefusesExistingNonEmptyOutput(t *testing.T) {
	root := writeTestTree(t)
	out := filepath.Join(t.TempDir(), "archive.car")
	if err := os.WriteFile(out, []byte("not empty"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	w := NewWriter(OSAdapter{}, nil)
	err := w.Create(CreateParams{
		RootDirectory: root,
		OutputPath:    out,
		Subtype:       Subtype1,
		Modifiers:     &CreateDataModifiers{},
	})
	if _, ok := err.(*InvalidArgumentError); !ok {
		t.Errorf("Create over existing output = %v, want *InvalidArgumentError", err)
	}
}

func TestWriterBootXRoleResolution(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "boot"), 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "boot", "loader.bin"), []byte("loader"), 0o644); err != nil {
		t.Fatalf("WriteFile loader: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "boot", "kernel.bin"), []byte("kernel-bytes"), 0o644); err != nil {
		t.Fatalf("WriteFile kernel: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "boot.cfg"), []byte("cfg=1"), 0o644); err != nil {
		t.Fatalf("WriteFile cfg: %v", err)
	}

	out := filepath.Join(t.TempDir(), "boot.car")
	w := NewWriter(OSAdapter{}, nil)
	err := w.Create(CreateParams{
		RootDirectory:    root,
		OutputPath:       out,
		Subtype:          SubtypeBootX,
		Modifiers:        &CreateDataModifiers{},
		Architecture:     ProcessorX86_64,
		BootID:           7,
		KernelLoaderPath: filepath.Join(root, "boot", "loader.bin"),
		KernelPath:       filepath.Join(root, "boot", "kernel.bin"),
		BootConfigPath:   filepath.Join(root, "boot.cfg"),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	a, err := Open(out, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer a.Close()
	if err := a.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	h := a.HeaderBootX
	if h.KernelLoaderEntry == noRoleEntry {
		t.Errorf("KernelLoaderEntry unresolved")
	}
	if h.KernelEntry == noRoleEntry {
		t.Errorf("KernelEntry unresolved")
	}
	if h.BootConfigEntry == noRoleEntry {
		t.Errorf("BootConfigEntry unresolved")
	}

	loaderEntry, err := a.Entry(int(h.KernelLoaderEntry))
	if err != nil {
		t.Fatalf("Entry(KernelLoaderEntry): %v", err)
	}
	if loaderEntry.Path != "/boot/loader.bin" {
		t.Errorf("resolved loader path = %q, want /boot/loader.bin", loaderEntry.Path)
	}
}

func TestWriterSystemImageBootEntryResolution(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "boot.car"), []byte("nested-archive-bytes"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	out := filepath.Join(t.TempDir(), "system.car")
	w := NewWriter(OSAdapter{}, nil)
	err := w.Create(CreateParams{
		RootDirectory:   root,
		OutputPath:      out,
		Subtype:         SubtypeSystemImage,
		Modifiers:       &CreateDataModifiers{},
		SystemVersion:   SystemVersionInternal{SystemType: uint8(SystemTypeCoronaX), BuildType: uint8(BuildTypeStable), Revision: 0, MajorVersion: 1},
		BootArchivePath: filepath.Join(root, "boot.car"),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	a, err := Open(out, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer a.Close()
	if err := a.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	h := a.HeaderSystemImage
	if h.BootEntry == noBootEntry {
		t.Fatalf("BootEntry unresolved")
	}
	e, err := a.Entry(int(h.BootEntry))
	if err != nil {
		t.Fatalf("Entry(BootEntry): %v", err)
	}
	if e.Path != "/boot.car" {
		t.Errorf("resolved boot entry path = %q, want /boot.car", e.Path)
	}
}
