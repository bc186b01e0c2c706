// Copyright 2024 The CAR Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package car

import (
	"fmt"
	"io"
)

// RenderHeader writes a human-readable summary of the archive's header to
// w: subtype, entry count, stored checksums, and any role fields the
// subtype carries.
func (a *File) RenderHeader(w io.Writer) error {
	fmt.Fprintf(w, "subtype:      %s\n", a.Subtype)
	fmt.Fprintf(w, "entries:      %d\n", a.entryCount)

	switch a.Subtype {
	case Subtype1:
		h := a.HeaderS1
		fmt.Fprintf(w, "dataChecksum:   %#08x\n", h.DataChecksum)
		fmt.Fprintf(w, "headerChecksum: %#08x\n", h.HeaderChecksum)

	case Subtype2:
		h := a.HeaderS2
		fmt.Fprintf(w, "entryTableOffset:  %d\n", h.EntryTableOffset)
		fmt.Fprintf(w, "dataSectionOffset: %d\n", h.DataSectionOffset)
		fmt.Fprintf(w, "tocOffset:         %d\n", h.TocOffset)
		fmt.Fprintf(w, "archiveSignature:  %#016x\n", h.ArchiveSignature)
		fmt.Fprintf(w, "dataChecksum:      %#08x\n", h.DataChecksum)
		fmt.Fprintf(w, "headerChecksum:    %#08x\n", h.HeaderChecksum)

	case SubtypeBootX:
		h := a.HeaderBootX
		fmt.Fprintf(w, "entryTableOffset:  %d\n", h.EntryTableOffset)
		fmt.Fprintf(w, "dataSectionOffset: %d\n", h.DataSectionOffset)
		fmt.Fprintf(w, "processorType:     %d\n", h.ProcessorType)
		fmt.Fprintf(w, "bootID:            %d\n", h.BootID)
		fmt.Fprintf(w, "kernelLoaderEntry: %s\n", renderRole(h.KernelLoaderEntry))
		fmt.Fprintf(w, "kernelEntry:       %s\n", renderRole(h.KernelEntry))
		fmt.Fprintf(w, "bootConfigEntry:   %s\n", renderRole(h.BootConfigEntry))
		fmt.Fprintf(w, "dataChecksum:      %#08x\n", h.DataChecksum)
		fmt.Fprintf(w, "headerChecksum:    %#08x\n", h.HeaderChecksum)

	case SubtypeSystemImage:
		h := a.HeaderSystemImage
		fmt.Fprintf(w, "entryTableOffset:  %d\n", h.EntryTableOffset)
		fmt.Fprintf(w, "dataSectionOffset: %d\n", h.DataSectionOffset)
		fmt.Fprintf(w, "systemType:        %d\n", h.SystemVersion.SystemType)
		fmt.Fprintf(w, "buildType:         %d\n", h.SystemVersion.BuildType)
		fmt.Fprintf(w, "revision:          %d\n", h.SystemVersion.Revision)
		fmt.Fprintf(w, "majorVersion:      %d\n", h.SystemVersion.MajorVersion)
		fmt.Fprintf(w, "buildID:           %d\n", h.SystemVersion.BuildID)
		if h.BootEntry == noBootEntry {
			fmt.Fprintf(w, "bootEntry:         none\n")
		} else {
			fmt.Fprintf(w, "bootEntry:         %d\n", h.BootEntry)
		}
		fmt.Fprintf(w, "dataChecksum:      %#08x\n", h.DataChecksum)
		fmt.Fprintf(w, "headerChecksum:    %#08x\n", h.HeaderChecksum)
	}

	return nil
}

func renderRole(slot uint16) string {
	if slot == noRoleEntry {
		return "none"
	}
	return fmt.Sprintf("%d", slot)
}

// RenderList writes one line per ToC entry to w, in ToC order: a type
// letter, the entry's size (files and links only), and its archive path.
func (a *File) RenderList(w io.Writer) error {
	for i := 0; i < a.entryCount; i++ {
		e, err := a.Entry(i)
		if err != nil {
			return err
		}
		if e.Type == EntryTypeDirectory {
			fmt.Fprintf(w, "%c %10s  %s\n", e.Type.Letter(), "-", e.Path)
		} else {
			fmt.Fprintf(w, "%c %10d  %s\n", e.Type.Letter(), e.DataSize, e.Path)
		}
	}
	return nil
}
