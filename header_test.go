// Copyright 2024 The CAR Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package car

import "testing"

func TestHeaderS1RoundTrip(t *testing.T) {
	want := &HeaderS1{
		Magic:          Magic,
		Version:        VersionS1,
		EntryCount:     7,
		DataChecksum:   0xDEADBEEF,
		HeaderChecksum: 0xCAFEBABE,
	}
	buf := want.Marshal()
	if len(buf) != headerS1Size {
		t.Fatalf("Marshal() produced %d bytes, want %d", len(buf), headerS1Size)
	}
	got, err := UnmarshalHeaderS1(buf)
	if err != nil {
		t.Fatalf("UnmarshalHeaderS1: %v", err)
	}
	if *got != *want {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestHeaderS2RoundTrip(t *testing.T) {
	want := &HeaderS2{
		Magic:                  Magic,
		Version:                VersionS2,
		EntryCount:             3,
		EntryTableOffset:       100,
		DataSectionOffset:      200,
		DataChecksum:           1,
		HeaderChecksum:         2,
		TocOffset:              68,
		DataModificationOffset: 60,
		ArchiveSignature:       0x0102030405060708,
	}
	buf := want.Marshal()
	if len(buf) != headerS2Size {
		t.Fatalf("Marshal() produced %d bytes, want %d", len(buf), headerS2Size)
	}
	got, err := UnmarshalHeaderS2(buf)
	if err != nil {
		t.Fatalf("UnmarshalHeaderS2: %v", err)
	}
	if *got != *want {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestHeaderBootXRoundTrip(t *testing.T) {
	want := &HeaderBootX{
		HeaderS2: HeaderS2{
			Magic:            Magic,
			Version:          VersionBootX,
			EntryCount:       2,
			EntryTableOffset: 200,
		},
		ProcessorType:     uint16(ProcessorARMv8),
		BootID:            42,
		LockA:             bootLockA,
		KernelLoaderEntry: 1,
		KernelEntry:       2,
		BootConfigEntry:   3,
		LockB:             bootLockB,
	}
	buf := want.Marshal()
	if len(buf) != headerBootXSize {
		t.Fatalf("Marshal() produced %d bytes, want %d", len(buf), headerBootXSize)
	}
	got, err := UnmarshalHeaderBootX(buf)
	if err != nil {
		t.Fatalf("UnmarshalHeaderBootX: %v", err)
	}
	if *got != *want {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestHeaderSystemImageRoundTrip(t *testing.T) {
	want := &HeaderSystemImage{
		Magic:            Magic,
		Version:          VersionSystemImage,
		EntryCount:       5,
		EntryTableOffset: 1028,
		SystemVersion: SystemVersionInternal{
			SystemType:   uint8(SystemTypeCoronaX),
			BuildType:    uint8(BuildTypeStable),
			Revision:     3,
			MajorVersion: 9,
			BuildID:      123456,
		},
		BootEntry: noBootEntry,
	}
	buf := want.Marshal()
	if len(buf) != headerSystemImageSize {
		t.Fatalf("Marshal() produced %d bytes, want %d", len(buf), headerSystemImageSize)
	}
	got, err := UnmarshalHeaderSystemImage(buf)
	if err != nil {
		t.Fatalf("UnmarshalHeaderSystemImage: %v", err)
	}
	if *got != *want {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestUnmarshalHeaderTooShort(t *testing.T) {
	if _, err := UnmarshalHeaderS1(make([]byte, headerS1Size-1)); err != ErrShortHeader {
		t.Errorf("UnmarshalHeaderS1 on short buffer = %v, want ErrShortHeader", err)
	}
	if _, err := UnmarshalHeaderS2(make([]byte, headerS2Size-1)); err != ErrShortHeader {
		t.Errorf("UnmarshalHeaderS2 on short buffer = %v, want ErrShortHeader", err)
	}
	if _, err := UnmarshalHeaderBootX(make([]byte, headerBootXSize-1)); err != ErrShortHeader {
		t.Errorf("UnmarshalHeaderBootX on short buffer = %v, want ErrShortHeader", err)
	}
	if _, err := UnmarshalHeaderSystemImage(make([]byte, headerSystemImageSize-1)); err != ErrShortHeader {
		t.Errorf("UnmarshalHeaderSystemImage on short buffer = %v, want ErrShortHeader", err)
	}
}
