// Copyright 2024 The CAR Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package car

import (
	"bytes"
	"encoding/binary"
)

// HeaderS1 is the on-disk header for the S1 subtype: no stored
// entryTableOffset/dataSectionOffset since the ToC always starts
// immediately after the header and the data section is recomputed from
// the entry table the same way the writer computed it. EntryCount is
// stored explicitly — with no other offset field to derive it from, S1
// needs it spelled out rather than computed. See SPEC_FULL.md's Open
// Question Resolutions.
type HeaderS1 struct {
	Magic          [4]byte
	Version        [4]byte
	EntryCount     uint32
	DataChecksum   uint32
	HeaderChecksum uint32
}

const headerS1Size = 20

// HeaderS2 is the on-disk header shape shared, byte for byte, by S2 and
// BootX (BootX appends its own role fields after this struct).
type HeaderS2 struct {
	Magic                  [4]byte
	Version                [4]byte
	EntryCount             uint32
	EntryTableOffset       uint64
	DataSectionOffset      uint64
	DataChecksum           uint32
	HeaderChecksum         uint32
	TocOffset              uint64
	DataModificationOffset uint64
	ArchiveSignature       uint64
}

const headerS2Size = 60

// HeaderBootX extends HeaderS2 with processor and boot-role fields.
type HeaderBootX struct {
	HeaderS2
	ProcessorType     uint16
	BootID            uint32
	LockA             uint16
	KernelLoaderEntry uint16
	KernelEntry       uint16
	BootConfigEntry   uint16
	LockB             uint16
}

const headerBootXSize = headerS2Size + 16 // 76

// SystemVersionInternal describes the build baked into a SystemImage.
type SystemVersionInternal struct {
	SystemType   uint8
	BuildType    uint8
	Revision     uint8
	MajorVersion uint8
	BuildID      uint64
}

const systemVersionInternalSize = 12

// HeaderSystemImage is the on-disk header for the SystemImage subtype.
// Its ToC always starts at byte 2*BlockSize regardless of header size.
type HeaderSystemImage struct {
	Magic             [4]byte
	Version           [4]byte
	EntryCount        uint32
	EntryTableOffset  uint64
	DataSectionOffset uint64
	DataChecksum      uint32
	HeaderChecksum    uint32
	SystemVersion     SystemVersionInternal
	BootEntry         uint64
}

const headerSystemImageSize = 4 + 4 + 4 + 8 + 8 + 4 + 4 + systemVersionInternalSize + 8 // 56

// DataModification records compression/encryption intent. It is parsed and
// preserved by the engine but never acted upon: compression, encryption,
// and signing are reserved but functionally inert.
type DataModification struct {
	CompressionCount uint8
	EncryptionCount  uint8
	Reserved         [6]byte
}

const dataModificationSize = 8

func marshalFixed(v interface{}) []byte {
	buf := new(bytes.Buffer)
	// binary.Write cannot fail for fixed-size little-endian values built
	// from the basic integer types and byte arrays used throughout this
	// package.
	if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func unmarshalFixed(b []byte, v interface{}) error {
	return binary.Read(bytes.NewReader(b), binary.LittleEndian, v)
}

// Marshal encodes the S1 header to its fixed 20-byte form.
func (h *HeaderS1) Marshal() []byte { return marshalFixed(h) }

// UnmarshalHeaderS1 decodes a HeaderS1 from the first headerS1Size bytes
// of buf.
func UnmarshalHeaderS1(buf []byte) (*HeaderS1, error) {
	if len(buf) < headerS1Size {
		return nil, ErrShortHeader
	}
	h := &HeaderS1{}
	if err := unmarshalFixed(buf[:headerS1Size], h); err != nil {
		return nil, err
	}
	return h, nil
}

// Marshal encodes the S2 header to its fixed 60-byte form.
func (h *HeaderS2) Marshal() []byte { return marshalFixed(h) }

// UnmarshalHeaderS2 decodes a HeaderS2 from the first headerS2Size bytes
// of buf.
func UnmarshalHeaderS2(buf []byte) (*HeaderS2, error) {
	if len(buf) < headerS2Size {
		return nil, ErrShortHeader
	}
	h := &HeaderS2{}
	if err := unmarshalFixed(buf[:headerS2Size], h); err != nil {
		return nil, err
	}
	return h, nil
}

// Marshal encodes the BootX header to its fixed 76-byte form.
func (h *HeaderBootX) Marshal() []byte { return marshalFixed(h) }

// UnmarshalHeaderBootX decodes a HeaderBootX from the first
// headerBootXSize bytes of buf.
func UnmarshalHeaderBootX(buf []byte) (*HeaderBootX, error) {
	if len(buf) < headerBootXSize {
		return nil, ErrShortHeader
	}
	h := &HeaderBootX{}
	if err := unmarshalFixed(buf[:headerBootXSize], h); err != nil {
		return nil, err
	}
	return h, nil
}

// Marshal encodes the SystemImage header to its fixed 56-byte form.
func (h *HeaderSystemImage) Marshal() []byte { return marshalFixed(h) }

// UnmarshalHeaderSystemImage decodes a HeaderSystemImage from the first
// headerSystemImageSize bytes of buf.
func UnmarshalHeaderSystemImage(buf []byte) (*HeaderSystemImage, error) {
	if len(buf) < headerSystemImageSize {
		return nil, ErrShortHeader
	}
	h := &HeaderSystemImage{}
	if err := unmarshalFixed(buf[:headerSystemImageSize], h); err != nil {
		return nil, err
	}
	return h, nil
}

// Marshal encodes the data-modification record to its fixed 8-byte form.
func (d *DataModification) Marshal() []byte { return marshalFixed(d) }

// UnmarshalDataModification decodes a DataModification from the first
// dataModificationSize bytes of buf.
func UnmarshalDataModification(buf []byte) (*DataModification, error) {
	if len(buf) < dataModificationSize {
		return nil, ErrShortHeader
	}
	d := &DataModification{}
	if err := unmarshalFixed(buf[:dataModificationSize], d); err != nil {
		return nil, err
	}
	return d, nil
}
