// Copyright 2024 The CAR Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package car

import (
	"os"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/go-kratos/kratos/v2/log"
)

// CreateDataModifiers carries the compression/encryption/signing
// declarations the writer must preserve verbatim without acting on them.
type CreateDataModifiers struct {
	CompressionCount uint8
	EncryptionCount  uint8
	ArchiveSignature uint64

	// SigningCertificate is accepted for interface completeness but never
	// written to the archive: signing is reserved but not implemented in
	// the source this format was distilled from.
	SigningCertificate []byte
}

// CreateParams is the validated parameter bundle the driver (cmd/car)
// hands to Writer.Create.
type CreateParams struct {
	RootDirectory string
	OutputPath    string
	Subtype       Subtype
	Verbose       bool
	Modifiers     *CreateDataModifiers
	Policy        EnumerationPolicy

	// BootX-only.
	Architecture      Processor
	BootID            uint32
	KernelLoaderPath  string
	KernelPath        string
	BootConfigPath    string

	// SystemImage-only.
	SystemVersion     SystemVersionInternal
	PartitionInfoPath string
	BootArchivePath   string
}

// Writer builds a CAR archive from a live filesystem tree. A Writer owns
// the directory model exclusively for the duration of one Create call and
// releases it before returning.
type Writer struct {
	fs     FSAdapter
	logger *log.Helper
}

// NewWriter returns a Writer that reads the source tree through fs.
func NewWriter(fs FSAdapter, logger log.Logger) *Writer {
	if logger == nil {
		logger = log.NewStdLogger(os.Stdout)
	}
	return &Writer{
		fs:     fs,
		logger: log.NewHelper(log.NewFilter(logger, log.FilterLevel(log.LevelDebug))),
	}
}

// layout is the result of the writer's offset-planning pass.
type layout struct {
	headerSize       uint64
	tocStart         uint64
	tocLen           uint64
	entryTableStart  uint64
	dataSectionStart uint64
	fileSize         uint64
	dataAlign        uint64
}

func planLayout(subtype Subtype, entryCount int, entryTableLen uint64, totalDataSize uint64) layout {
	var l layout
	switch subtype {
	case Subtype1:
		l.headerSize = headerS1Size
		l.tocStart = l.headerSize
		l.dataAlign = 8
	case Subtype2:
		l.headerSize = headerS2Size
		l.tocStart = l.headerSize + dataModificationSize
		l.dataAlign = 8
	case SubtypeBootX:
		l.headerSize = headerBootXSize
		l.tocStart = l.headerSize + dataModificationSize
		l.dataAlign = 8
	case SubtypeSystemImage:
		l.headerSize = headerSystemImageSize
		l.tocStart = 2 * BlockSize
		l.dataAlign = BlockSize
	}

	l.tocLen = 8 * uint64(entryCount)

	entryTableBase := l.tocStart + l.tocLen
	if subtype == SubtypeSystemImage {
		entryTableBase = alignUp(entryTableBase, BlockSize)
	}
	l.entryTableStart = entryTableBase + 4

	dataBase := l.entryTableStart + entryTableLen
	l.dataSectionStart = alignUp(dataBase, l.dataAlign)
	l.fileSize = l.dataSectionStart + totalDataSize
	return l
}

func alignUp(v, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}

// headerChecksumOffset is the byte offset of the headerChecksum field
// within the on-disk header, which falls at a fixed spot (right after
// dataChecksum) for every subtype.
func headerChecksumOffset(subtype Subtype) uint64 {
	if subtype == Subtype1 {
		return 16
	}
	return 32
}

// headerRegionSize is the span of bytes headerChecksum/dataChecksum treat
// as "the header": the fixed struct size for S1/S2/BootX, and one block
// for SystemImage.
func headerRegionSize(subtype Subtype) uint64 {
	switch subtype {
	case Subtype1:
		return headerS1Size
	case Subtype2:
		return headerS2Size
	case SubtypeBootX:
		return headerBootXSize
	case SubtypeSystemImage:
		return BlockSize
	default:
		return 0
	}
}

// builtEntry is one entry's fully-encoded on-disk record plus the
// bookkeeping the data-emission pass needs.
type builtEntry struct {
	tocSlot    uint64 // offset of the record relative to entryTableStart
	record     []byte // fixed-prefix record bytes, without the path and its padding
	dataOffset uint64 // valid for File/Link entries
}

// Create builds a CAR archive of subtype params.Subtype from
// params.RootDirectory and writes it to params.OutputPath.
func (w *Writer) Create(params CreateParams) error {
	if w.fs.FileExistsNonEmpty(params.OutputPath) {
		return &InvalidArgumentError{Reason: "output archive already exists and is not empty: " + params.OutputPath}
	}
	if !w.fs.DirExists(params.RootDirectory) {
		return &InvalidArgumentError{Reason: "root directory does not exist: " + params.RootDirectory}
	}

	trackTopology := params.Subtype == SubtypeSystemImage
	model, err := Walk(w.fs, params.RootDirectory, trackTopology, params.Policy, w.logger)
	if err != nil {
		return err
	}

	if params.Modifiers == nil {
		params.Modifiers = &CreateDataModifiers{}
	}

	built, entryTableBuf, err := w.buildEntryTable(params.Subtype, model, params.Verbose)
	if err != nil {
		return err
	}

	l := planLayout(params.Subtype, model.EntryCount, uint64(len(entryTableBuf)), model.TotalDataSize)

	f, err := os.Create(params.OutputPath)
	if err != nil {
		return &IoError{Op: "create", Path: params.OutputPath, Err: err}
	}
	if err := f.Truncate(int64(l.fileSize)); err != nil {
		f.Close()
		os.Remove(params.OutputPath)
		return &IoError{Op: "truncate", Path: params.OutputPath, Err: err}
	}

	data, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		os.Remove(params.OutputPath)
		return &IoError{Op: "mmap", Path: params.OutputPath, Err: err}
	}
	// The descriptor is not needed once the mapping is live; the mapping
	// owns the file until Unmap flushes and releases it.
	if err := f.Close(); err != nil {
		data.Unmap()
		return &IoError{Op: "close", Path: params.OutputPath, Err: err}
	}

	defer func() {
		data.Flush()
		data.Unmap()
	}()

	// ToC.
	for i, be := range built {
		putUint64(data, l.tocStart+8*uint64(i), be.tocSlot)
	}

	// Entry table.
	copy(data[l.entryTableStart:], entryTableBuf)

	// Data region.
	if err := w.writeDataSection(data, l.dataSectionStart, model, built, params.Verbose); err != nil {
		return err
	}

	// Header skeleton, subtype extras, role-entry resolution.
	if err := w.writeHeader(data, l, params, model, built); err != nil {
		return err
	}

	// Checksums.
	dataChecksum := CRC32OneShot(data[headerRegionSize(params.Subtype):l.fileSize])
	putUint32(data, dataChecksumOffset(params.Subtype), dataChecksum)

	region := headerRegionSize(params.Subtype)
	offs := headerChecksumOffset(params.Subtype)
	zero := make([]byte, 4)
	saved := append([]byte(nil), data[offs:offs+4]...)
	copy(data[offs:offs+4], zero)
	headerChecksum := CRC32OneShot(data[:region])
	copy(data[offs:offs+4], saved)
	putUint32(data, offs, headerChecksum)

	return nil
}

// dataChecksumOffset is the byte offset of the dataChecksum field: S1 has
// no entryTableOffset/dataSectionOffset fields ahead of it, so it sits at
// byte 12 there instead of byte 28.
func dataChecksumOffset(subtype Subtype) uint64 {
	if subtype == Subtype1 {
		return 12
	}
	return 28
}

func putUint64(b []byte, off, v uint64) {
	for i := 0; i < 8; i++ {
		b[off+uint64(i)] = byte(v >> (8 * i))
	}
}

func putUint32(b []byte, off uint64, v uint32) {
	for i := 0; i < 4; i++ {
		b[off+uint64(i)] = byte(v >> (8 * i))
	}
}

// buildEntryTable encodes every entry's record + path + padding in model
// order, returning each entry's relative ToC slot alongside the
// concatenated entry-table bytes.
func (w *Writer) buildEntryTable(subtype Subtype, model *Model, verbose bool) ([]builtEntry, []byte, error) {
	built := make([]builtEntry, 0, len(model.Entries))
	var buf []byte
	var dataOffset uint64

	for i := range model.Entries {
		e := &model.Entries[i]
		slot := uint64(len(buf))

		var record []byte
		switch subtype {
		case Subtype1:
			rec := &EntryS1{Type: e.Type}
			if e.Type != EntryTypeDirectory {
				rec.DataOffset = dataOffset
				rec.DataSize = e.Size
			}
			record = rec.marshal()
		case Subtype2, SubtypeBootX:
			rec := &EntryS2{Type: e.Type}
			if e.Type != EntryTypeDirectory {
				rec.DataOffset = dataOffset
				rec.DataSize = e.Size
			}
			record = rec.marshal()
		case SubtypeSystemImage:
			if e.Type == EntryTypeDirectory {
				record = (&SystemDirectoryEntry{
					Type:        e.Type,
					ParentEntry: e.Parent,
					NextEntry:   e.NextSibling,
					FirstEntry:  e.FirstChild,
					EntryCount:  e.Children,
				}).marshal()
			} else {
				record = (&SystemFileEntry{
					Type:        e.Type,
					ParentEntry: e.Parent,
					NextEntry:   e.NextSibling,
					DataOffset:  dataOffset,
					DataSize:    e.Size,
				}).marshal()
			}
		}

		thisDataOffset := dataOffset
		if e.Type != EntryTypeDirectory {
			dataOffset += e.Size
		}

		buf = append(buf, record...)
		buf, _ = appendPath(buf, e.Path, uint64(len(buf)))

		if verbose {
			w.logger.Debugf("E %s", e.Path)
		}

		built = append(built, builtEntry{tocSlot: slot, record: record, dataOffset: thisDataOffset})
	}

	return built, buf, nil
}

func (w *Writer) writeDataSection(data mmap.MMap, dataStart uint64, model *Model, built []builtEntry, verbose bool) error {
	for i := range model.Entries {
		e := &model.Entries[i]
		if e.Type == EntryTypeDirectory {
			continue
		}
		off := dataStart + built[i].dataOffset
		buf := make([]byte, e.Size)
		switch e.Type {
		case EntryTypeFile:
			if _, err := w.fs.ReadFile(e.AbsPath, buf); err != nil {
				return err
			}
		case EntryTypeLink:
			if _, err := w.fs.ReadLink(e.AbsPath, buf); err != nil {
				return err
			}
		}
		copy(data[off:off+e.Size], buf)
		if verbose {
			w.logger.Debugf("D %s (%d bytes)", e.Path, e.Size)
		}
	}
	return nil
}

func (w *Writer) writeHeader(data mmap.MMap, l layout, params CreateParams, model *Model, built []builtEntry) error {
	subtype := params.Subtype

	switch subtype {
	case Subtype1:
		h := &HeaderS1{Magic: Magic, Version: VersionS1, EntryCount: uint32(model.EntryCount)}
		copy(data[:headerS1Size], h.Marshal())

	case Subtype2:
		h := &HeaderS2{
			Magic:                  Magic,
			Version:                VersionS2,
			EntryCount:             uint32(model.EntryCount),
			EntryTableOffset:       l.entryTableStart,
			DataSectionOffset:      l.dataSectionStart,
			TocOffset:              l.tocStart,
			DataModificationOffset: headerS2Size,
			ArchiveSignature:       params.Modifiers.ArchiveSignature,
		}
		copy(data[:headerS2Size], h.Marshal())
		dm := &DataModification{
			CompressionCount: params.Modifiers.CompressionCount,
			EncryptionCount:  params.Modifiers.EncryptionCount,
		}
		copy(data[headerS2Size:headerS2Size+dataModificationSize], dm.Marshal())

	case SubtypeBootX:
		h := &HeaderBootX{
			HeaderS2: HeaderS2{
				Magic:                  Magic,
				Version:                VersionBootX,
				EntryCount:             uint32(model.EntryCount),
				EntryTableOffset:       l.entryTableStart,
				DataSectionOffset:      l.dataSectionStart,
				TocOffset:              l.tocStart,
				DataModificationOffset: headerBootXSize,
				ArchiveSignature:       params.Modifiers.ArchiveSignature,
			},
			ProcessorType: uint16(params.Architecture),
			BootID:        params.BootID,
			LockA:         bootLockA,
			LockB:         bootLockB,
		}
		resolveBootXRoles(h, params, model, built)
		copy(data[:headerBootXSize], h.Marshal())
		dm := &DataModification{
			CompressionCount: params.Modifiers.CompressionCount,
			EncryptionCount:  params.Modifiers.EncryptionCount,
		}
		copy(data[headerBootXSize:headerBootXSize+dataModificationSize], dm.Marshal())

	case SubtypeSystemImage:
		h := &HeaderSystemImage{
			Magic:             Magic,
			Version:           VersionSystemImage,
			EntryCount:        uint32(model.EntryCount),
			EntryTableOffset:  l.entryTableStart,
			DataSectionOffset: l.dataSectionStart,
			SystemVersion:     params.SystemVersion,
			BootEntry:         noBootEntry,
		}
		resolveSystemImageBootEntry(h, params, model, built)
		copy(data[:headerSystemImageSize], h.Marshal())
	}
	return nil
}

// resolveBootXRoles walks the ToC looking for the three role paths,
// storing the matching ToC slot index (not byte offset) the first time
// each is found.
func resolveBootXRoles(h *HeaderBootX, params CreateParams, model *Model, built []builtEntry) {
	skip := len(params.RootDirectory)
	for i := range model.Entries {
		e := &model.Entries[i]
		if e.Type != EntryTypeFile {
			continue
		}
		rel := e.AbsPath[skip:]
		switch {
		case h.KernelLoaderEntry == noRoleEntry && rel == relOf(params.KernelLoaderPath, skip):
			h.KernelLoaderEntry = uint16(i)
		case h.KernelEntry == noRoleEntry && rel == relOf(params.KernelPath, skip):
			h.KernelEntry = uint16(i)
		case h.BootConfigEntry == noRoleEntry && rel == relOf(params.BootConfigPath, skip):
			h.BootConfigEntry = uint16(i)
		}
	}
}

// resolveSystemImageBootEntry mirrors resolveBootXRoles for the single
// SystemImage boot-archive role.
func resolveSystemImageBootEntry(h *HeaderSystemImage, params CreateParams, model *Model, built []builtEntry) {
	if params.BootArchivePath == "" {
		return
	}
	skip := len(params.RootDirectory)
	want := relOf(params.BootArchivePath, skip)
	for i := range model.Entries {
		e := &model.Entries[i]
		if e.Type != EntryTypeFile {
			continue
		}
		if e.AbsPath[skip:] == want {
			h.BootEntry = uint64(i)
			return
		}
	}
}

// relOf extracts the archive-relative suffix of an absolute path the same
// way the walk does, guarding against paths shorter than the skip length.
func relOf(absPath string, skip int) string {
	if len(absPath) < skip {
		return absPath
	}
	return absPath[skip:]
}
