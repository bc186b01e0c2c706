// Copyright 2024 The CAR Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package car

import (
	"os"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/go-kratos/kratos/v2/log"
)

// File is an open, memory-mapped CAR archive. A File holds a read-only
// mapping with exclusive logical ownership for its lifetime; Close
// releases it on every exit path.
type File struct {
	data    mmap.MMap
	f       *os.File
	logger  *log.Helper
	Subtype Subtype
	size    uint64

	entryTableOffset  uint64
	dataSectionOffset uint64
	tocOffset         uint64
	entryCount        int

	HeaderS1          *HeaderS1
	HeaderS2          *HeaderS2
	HeaderBootX       *HeaderBootX
	HeaderSystemImage *HeaderSystemImage
}

// Open memory-maps path read-only, detects its subtype, and decodes its
// header. It does not verify checksums; call Verify for that.
func Open(path string, logger log.Logger) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &IoError{Op: "open", Path: path, Err: err}
	}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, &IoError{Op: "stat", Path: path, Err: err}
	}

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, &IoError{Op: "mmap", Path: path, Err: err}
	}

	// The descriptor is not needed once the mapping is live.
	if err := f.Close(); err != nil {
		data.Unmap()
		return nil, &IoError{Op: "close", Path: path, Err: err}
	}

	if logger == nil {
		logger = log.NewStdLogger(os.Stdout)
	}

	archive := &File{
		data:   data,
		size:   uint64(st.Size()),
		logger: log.NewHelper(log.NewFilter(logger, log.FilterLevel(log.LevelInfo))),
	}

	if err := archive.parseHeader(); err != nil {
		data.Unmap()
		return nil, err
	}

	return archive, nil
}

// Close releases the archive's memory mapping.
func (a *File) Close() error {
	if a.data == nil {
		return nil
	}
	err := a.data.Unmap()
	a.data = nil
	if err != nil {
		return &IoError{Op: "munmap", Err: err}
	}
	return nil
}

func (a *File) parseHeader() error {
	if uint64(len(a.data)) < 8 {
		return &InvalidFormatError{Reason: "archive shorter than the magic+version preamble"}
	}
	a.Subtype = DetectSubtype(a.data[:8])
	if a.Subtype == SubtypeInvalid {
		return &InvalidFormatError{Reason: "unrecognized magic or version tag"}
	}

	switch a.Subtype {
	case Subtype1:
		h, err := UnmarshalHeaderS1(a.data)
		if err != nil {
			return err
		}
		a.HeaderS1 = h
		a.entryCount = int(h.EntryCount)
		a.tocOffset = headerS1Size
		a.entryTableOffset = a.tocOffset + 8*uint64(a.entryCount) + 4

	case Subtype2:
		h, err := UnmarshalHeaderS2(a.data)
		if err != nil {
			return err
		}
		a.HeaderS2 = h
		a.entryCount = int(h.EntryCount)
		a.tocOffset = h.TocOffset
		a.entryTableOffset = h.EntryTableOffset
		a.dataSectionOffset = h.DataSectionOffset

	case SubtypeBootX:
		h, err := UnmarshalHeaderBootX(a.data)
		if err != nil {
			return err
		}
		a.HeaderBootX = h
		a.entryCount = int(h.EntryCount)
		a.tocOffset = h.TocOffset
		a.entryTableOffset = h.EntryTableOffset
		a.dataSectionOffset = h.DataSectionOffset

	case SubtypeSystemImage:
		h, err := UnmarshalHeaderSystemImage(a.data)
		if err != nil {
			return err
		}
		a.HeaderSystemImage = h
		a.entryCount = int(h.EntryCount)
		a.tocOffset = 2 * BlockSize
		a.entryTableOffset = h.EntryTableOffset
		a.dataSectionOffset = h.DataSectionOffset
	}

	if a.Subtype == Subtype1 {
		// S1 never stores dataSectionOffset; recompute it with the exact
		// algorithm the writer used, since the entry table's total byte
		// length is only known once every record has been walked.
		end, err := a.scanEntryTableEnd()
		if err != nil {
			return err
		}
		a.dataSectionOffset = alignUp(end, 8)
	}

	if a.entryTableOffset > a.size || a.dataSectionOffset > a.size {
		return &InvalidFormatError{Reason: "header offsets exceed file size"}
	}

	return nil
}

// scanEntryTableEnd walks every ToC slot to find the byte immediately
// past the last entry's path padding, relative to the start of the file.
func (a *File) scanEntryTableEnd() (uint64, error) {
	var end uint64
	for i := 0; i < a.entryCount; i++ {
		_, recEnd, err := a.decodeEntryAt(i)
		if err != nil {
			return 0, err
		}
		if recEnd > end {
			end = recEnd
		}
	}
	if a.entryCount == 0 {
		return a.entryTableOffset, nil
	}
	return end, nil
}

// EntryCount returns the number of entries in the archive's ToC.
func (a *File) EntryCount() int { return a.entryCount }

// DecodedEntry is the reader's subtype-agnostic view of one entry record,
// used by render.go and extractor.go alike.
type DecodedEntry struct {
	Type        EntryType
	Path        string
	DataOffset  uint64
	DataSize    uint64
	Parent      uint64
	NextEntry   uint64
	FirstEntry  uint64
	Children    uint32
}

// Entry decodes the i'th ToC slot's entry record.
func (a *File) Entry(i int) (DecodedEntry, error) {
	e, _, err := a.decodeEntryAt(i)
	return e, err
}

func (a *File) tocSlot(i int) (uint64, error) {
	off := a.tocOffset + 8*uint64(i)
	if i < 0 || i >= a.entryCount || off+8 > a.size {
		return 0, &InvalidFormatError{Reason: "ToC slot index out of range"}
	}
	return getUint64(a.data, off), nil
}

// decodeEntryAt decodes the i'th ToC entry, returning both the entry and
// the file-relative offset immediately past its path padding (used by
// scanEntryTableEnd for S1's recomputed data-section offset).
func (a *File) decodeEntryAt(i int) (DecodedEntry, uint64, error) {
	slot, err := a.tocSlot(i)
	if err != nil {
		return DecodedEntry{}, 0, err
	}
	recOffset := a.entryTableOffset + slot
	if recOffset > a.size {
		return DecodedEntry{}, 0, &InvalidFormatError{Reason: "entry record offset exceeds file size"}
	}
	buf := a.data[recOffset:]

	var e DecodedEntry
	var fixedLen int

	switch a.Subtype {
	case Subtype1:
		rec, err := unmarshalEntryS1(buf)
		if err != nil {
			return DecodedEntry{}, 0, err
		}
		e = DecodedEntry{Type: rec.Type, DataOffset: rec.DataOffset, DataSize: rec.DataSize}
		fixedLen = entryS1FixedSize

	case Subtype2, SubtypeBootX:
		rec, n, err := unmarshalEntryS2(buf)
		if err != nil {
			return DecodedEntry{}, 0, err
		}
		e = DecodedEntry{Type: rec.Type, DataOffset: rec.DataOffset, DataSize: rec.DataSize}
		fixedLen = n

	case SubtypeSystemImage:
		if len(buf) < 1 {
			return DecodedEntry{}, 0, ErrShortHeader
		}
		if EntryType(buf[0]) == EntryTypeDirectory {
			rec, err := unmarshalSystemDirectoryEntry(buf)
			if err != nil {
				return DecodedEntry{}, 0, err
			}
			e = DecodedEntry{
				Type:       rec.Type,
				Parent:     rec.ParentEntry,
				NextEntry:  rec.NextEntry,
				FirstEntry: rec.FirstEntry,
				Children:   rec.EntryCount,
			}
			fixedLen = systemDirectoryEntryFixedSize
		} else {
			rec, err := unmarshalSystemFileEntry(buf)
			if err != nil {
				return DecodedEntry{}, 0, err
			}
			e = DecodedEntry{
				Type:       rec.Type,
				Parent:     rec.ParentEntry,
				NextEntry:  rec.NextEntry,
				DataOffset: rec.DataOffset,
				DataSize:   rec.DataSize,
			}
			fixedLen = systemFileEntryFixedSize
		}
	}

	pathStart := recOffset + uint64(fixedLen)
	nulAt := pathStart
	for nulAt < a.size && a.data[nulAt] != 0 {
		nulAt++
	}
	if nulAt >= a.size {
		return DecodedEntry{}, 0, &InvalidFormatError{Reason: "entry path is not NUL-terminated within file bounds"}
	}
	e.Path = string(a.data[pathStart:nulAt])

	relAfterTerm := (nulAt + 1) - a.entryTableOffset
	pad := pathPadding(relAfterTerm)
	recEnd := nulAt + 1 + pad

	return e, recEnd, nil
}

func getUint64(b []byte, off uint64) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[off+uint64(i)]) << (8 * i)
	}
	return v
}

// Verify recomputes headerChecksum and dataChecksum and compares them
// against the stored values. The original C implementation this format
// comes from never did this on open.
func (a *File) Verify() error {
	region := headerRegionSize(a.Subtype)
	if region > a.size {
		return &InvalidFormatError{Reason: "header region exceeds file size"}
	}

	offs := headerChecksumOffset(a.Subtype)
	stored := getUint32(a.data, offs)

	scratch := append([]byte(nil), a.data[:region]...)
	scratch[offs], scratch[offs+1], scratch[offs+2], scratch[offs+3] = 0, 0, 0, 0
	got := CRC32OneShot(scratch)
	if got != stored {
		return &CorruptHeaderError{Want: stored, Got: got}
	}

	storedData := getUint32(a.data, dataChecksumOffset(a.Subtype))
	gotData := CRC32OneShot(a.data[region:])
	if gotData != storedData {
		return &CorruptDataError{Want: storedData, Got: gotData}
	}

	return nil
}

func getUint32(b []byte, off uint64) uint32 {
	return uint32(b[off]) | uint32(b[off+1])<<8 | uint32(b[off+2])<<16 | uint32(b[off+3])<<24
}
