// Copyright 2024 The CAR Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package car implements the CAR family of binary container formats: a
// single sealed file packaging a directory tree (files, symlinks,
// subdirectories) with CRC32 integrity checksums and, for two of the
// four subtypes, boot or system metadata.
package car

// BlockSize is the alignment unit used by SystemImage headers, ToC start,
// and data-region start.
const BlockSize = 512

// Magic is the 4-byte signature shared by every CAR subtype.
var Magic = [4]byte{'C', 'A', 'R', 0x00}

// Version tags distinguish the four subtypes once the magic matches.
var (
	VersionS1          = [4]byte{'1', '.', '0', 0x00}
	VersionS2          = [4]byte{'2', '.', '0', 0x00}
	VersionBootX       = [4]byte{'B', 'T', 'X', 0x00}
	VersionSystemImage = [4]byte{'S', 'Y', 'S', 0x00}
)

// Subtype identifies one of the four CAR container variants.
type Subtype int

const (
	SubtypeInvalid Subtype = iota - 1
	Subtype1
	Subtype2
	SubtypeBootX
	SubtypeSystemImage
)

func (s Subtype) String() string {
	switch s {
	case Subtype1:
		return "S1"
	case Subtype2:
		return "S2"
	case SubtypeBootX:
		return "BootX"
	case SubtypeSystemImage:
		return "SystemImage"
	default:
		return "Invalid"
	}
}

// EntryType is the 1-byte tag at the head of every entry record.
type EntryType uint8

const (
	EntryTypeDirectory EntryType = 0x01
	EntryTypeFile       EntryType = 0x02
	EntryTypeLink       EntryType = 0x03
	EntryTypeMeta       EntryType = 0x04
)

func (t EntryType) String() string {
	switch t {
	case EntryTypeDirectory:
		return "directory"
	case EntryTypeFile:
		return "file"
	case EntryTypeLink:
		return "link"
	case EntryTypeMeta:
		return "meta"
	default:
		return "unknown"
	}
}

// Letter returns the single-character tag render.go prints next to a path.
func (t EntryType) Letter() byte {
	switch t {
	case EntryTypeDirectory:
		return 'd'
	case EntryTypeFile:
		return 'f'
	case EntryTypeLink:
		return 'l'
	case EntryTypeMeta:
		return 'm'
	default:
		return '?'
	}
}

// specialFlags values tag SystemImage entry records as directory or
// file/link shaped, independent of the EntryType byte that precedes them.
const (
	systemSpecialFlagsDirectory = 0xDD
	systemSpecialFlagsFile      = 0xFF
)

// EntryFlags are the S2/BootX entry record flag bits.
type EntryFlags uint32

// MetaHasData marks a Meta entry as carrying a data-region payload; without
// it a Meta record is descriptive only and occupies no data-region bytes.
const MetaHasData EntryFlags = 0x01

// Processor identifies the target CPU architecture for a BootX archive.
type Processor uint16

const (
	ProcessorX86_64 Processor = 1
	ProcessorARMv8  Processor = 2
)

// Boot-header lock sentinels. Two fixed non-zero values a reader can use to
// sanity-check it has landed on a real BootX header.
const (
	bootLockA uint16 = 0xA10C
	bootLockB uint16 = 0xB10C
)

// SystemType identifies the target OS family for a SystemImage archive.
type SystemType uint8

const (
	SystemTypeCoronaX SystemType = 1
	SystemTypeCorOS   SystemType = 2
)

// BuildType identifies the build configuration baked into a SystemImage.
type BuildType uint8

const (
	BuildTypeDebug       BuildType = 1
	BuildTypeDevelopment BuildType = 2
	BuildTypeRelease     BuildType = 3
	BuildTypeStable      BuildType = 4
)

// RevisionValue maps a revision letter 'A'-'Z' to its 0-25 numeric value,
// per the revision-letter convention every build tool uses.
func RevisionValue(letter byte) (uint8, bool) {
	if letter < 'A' || letter > 'Z' {
		return 0, false
	}
	return letter - 'A', true
}

// noBootEntry is the SystemImage header's bootEntry sentinel meaning "no
// boot archive configured."
const noBootEntry uint64 = ^uint64(0)

// noRoleEntry is the BootX header's role-field sentinel meaning "no match
// found for this role during resolution."
const noRoleEntry uint16 = 0
