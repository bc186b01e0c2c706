// Copyright 2024 The CAR Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package car

import (
	"encoding/binary"
)

// Fixed-prefix sizes of the on-disk entry record shapes, excluding the
// trailing NUL-terminated path and its padding.
const (
	entryS1FixedSize             = 1 + 8 + 8                // type, dataOffset, dataSize
	entryS2FixedSize             = 1 + 8 + 8 + 4             // type, dataOffset, dataSize, flags
	entryS2ShortFixedSize        = entryS2FixedSize - 16     // directories: no dataOffset/dataSize
	systemDirectoryEntryFixedSize = 1 + 1 + 8 + 8 + 8 + 4    // type, specialFlags, parent, next, first, count
	systemFileEntryFixedSize      = 1 + 1 + 8 + 8 + 8 + 8    // type, specialFlags, parent, next, dataOffset, dataSize
)

// EntryS1 is the fixed prefix of an S1 entry record. The path follows
// immediately after, NUL-terminated and zero-padded per alignPathEnd.
type EntryS1 struct {
	Type       EntryType
	DataOffset uint64
	DataSize   uint64
}

func (e *EntryS1) marshal() []byte {
	b := make([]byte, entryS1FixedSize)
	b[0] = byte(e.Type)
	binary.LittleEndian.PutUint64(b[1:9], e.DataOffset)
	binary.LittleEndian.PutUint64(b[9:17], e.DataSize)
	return b
}

func unmarshalEntryS1(b []byte) (*EntryS1, error) {
	if len(b) < entryS1FixedSize {
		return nil, ErrShortHeader
	}
	return &EntryS1{
		Type:       EntryType(b[0]),
		DataOffset: binary.LittleEndian.Uint64(b[1:9]),
		DataSize:   binary.LittleEndian.Uint64(b[9:17]),
	}, nil
}

// EntryS2 is the fixed prefix of an S2/BootX entry record. For directory
// entries the writer emits the shortened form (entryS2ShortFixedSize
// bytes: type + flags only, DataOffset/DataSize omitted) to save space.
type EntryS2 struct {
	Type       EntryType
	DataOffset uint64
	DataSize   uint64
	Flags      EntryFlags
}

func (e *EntryS2) marshal() []byte {
	if e.Type == EntryTypeDirectory {
		b := make([]byte, entryS2ShortFixedSize)
		b[0] = byte(e.Type)
		binary.LittleEndian.PutUint32(b[1:5], uint32(e.Flags))
		return b
	}
	b := make([]byte, entryS2FixedSize)
	b[0] = byte(e.Type)
	binary.LittleEndian.PutUint64(b[1:9], e.DataOffset)
	binary.LittleEndian.PutUint64(b[9:17], e.DataSize)
	binary.LittleEndian.PutUint32(b[17:21], uint32(e.Flags))
	return b
}

// unmarshalEntryS2 decodes an S2/BootX entry record. Because directory
// records are shortened on disk, the type byte must be inspected before
// the fixed size is known; callers peek b[0] first.
func unmarshalEntryS2(b []byte) (*EntryS2, int, error) {
	if len(b) < 1 {
		return nil, 0, ErrShortHeader
	}
	typ := EntryType(b[0])
	if typ == EntryTypeDirectory {
		if len(b) < entryS2ShortFixedSize {
			return nil, 0, ErrShortHeader
		}
		return &EntryS2{
			Type:  typ,
			Flags: EntryFlags(binary.LittleEndian.Uint32(b[1:5])),
		}, entryS2ShortFixedSize, nil
	}
	if len(b) < entryS2FixedSize {
		return nil, 0, ErrShortHeader
	}
	return &EntryS2{
		Type:       typ,
		DataOffset: binary.LittleEndian.Uint64(b[1:9]),
		DataSize:   binary.LittleEndian.Uint64(b[9:17]),
		Flags:      EntryFlags(binary.LittleEndian.Uint32(b[17:21])),
	}, entryS2FixedSize, nil
}

// SystemDirectoryEntry is a SystemImage directory entry record.
type SystemDirectoryEntry struct {
	Type         EntryType
	ParentEntry  uint64
	NextEntry    uint64
	FirstEntry   uint64
	EntryCount   uint32
}

func (e *SystemDirectoryEntry) marshal() []byte {
	b := make([]byte, systemDirectoryEntryFixedSize)
	b[0] = byte(e.Type)
	b[1] = systemSpecialFlagsDirectory
	binary.LittleEndian.PutUint64(b[2:10], e.ParentEntry)
	binary.LittleEndian.PutUint64(b[10:18], e.NextEntry)
	binary.LittleEndian.PutUint64(b[18:26], e.FirstEntry)
	binary.LittleEndian.PutUint32(b[26:30], e.EntryCount)
	return b
}

func unmarshalSystemDirectoryEntry(b []byte) (*SystemDirectoryEntry, error) {
	if len(b) < systemDirectoryEntryFixedSize {
		return nil, ErrShortHeader
	}
	return &SystemDirectoryEntry{
		Type:        EntryType(b[0]),
		ParentEntry: binary.LittleEndian.Uint64(b[2:10]),
		NextEntry:   binary.LittleEndian.Uint64(b[10:18]),
		FirstEntry:  binary.LittleEndian.Uint64(b[18:26]),
		EntryCount:  binary.LittleEndian.Uint32(b[26:30]),
	}, nil
}

// SystemFileEntry is a SystemImage file or link entry record.
type SystemFileEntry struct {
	Type        EntryType
	ParentEntry uint64
	NextEntry   uint64
	DataOffset  uint64
	DataSize    uint64
}

func (e *SystemFileEntry) marshal() []byte {
	b := make([]byte, systemFileEntryFixedSize)
	b[0] = byte(e.Type)
	b[1] = systemSpecialFlagsFile
	binary.LittleEndian.PutUint64(b[2:10], e.ParentEntry)
	binary.LittleEndian.PutUint64(b[10:18], e.NextEntry)
	binary.LittleEndian.PutUint64(b[18:26], e.DataOffset)
	binary.LittleEndian.PutUint64(b[26:34], e.DataSize)
	return b
}

func unmarshalSystemFileEntry(b []byte) (*SystemFileEntry, error) {
	if len(b) < systemFileEntryFixedSize {
		return nil, ErrShortHeader
	}
	return &SystemFileEntry{
		Type:        EntryType(b[0]),
		ParentEntry: binary.LittleEndian.Uint64(b[2:10]),
		NextEntry:   binary.LittleEndian.Uint64(b[10:18]),
		DataOffset:  binary.LittleEndian.Uint64(b[18:26]),
		DataSize:    binary.LittleEndian.Uint64(b[26:34]),
	}, nil
}

// pathPadding returns the number of zero bytes that must follow a path's
// NUL terminator so the next record begins on an 8-byte boundary relative
// to the entry-table anchor. currentOffset is the write-head position
// immediately after the terminator; the result is in [0, 7] — the
// terminator itself is always the zero byte directly following the path,
// padding only closes the remaining gap to the boundary.
func pathPadding(currentOffset uint64) uint64 {
	aligned := ((currentOffset - 1) &^ 7) + 8
	return aligned - currentOffset
}

// appendPath writes a NUL-terminated path followed by its alignment
// padding to buf, returning the new write-head offset relative to the
// entry-table anchor.
func appendPath(buf []byte, path string, entryTableRelativeOffset uint64) ([]byte, uint64) {
	buf = append(buf, path...)
	buf = append(buf, 0)
	offset := entryTableRelativeOffset + uint64(len(path)) + 1
	pad := pathPadding(offset)
	for i := uint64(0); i < pad; i++ {
		buf = append(buf, 0)
	}
	return buf, offset + pad
}
