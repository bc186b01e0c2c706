// Copyright 2024 The CAR Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package car

import "hash/crc32"

// crc32Table is the standard IEEE polynomial (0xEDB88320) table, reflected
// in/out, which is bit for bit the stdlib's own IEEE table.
var crc32Table = crc32.IEEETable

// CRC32Init returns the initial checksum state.
func CRC32Init() uint32 {
	return 0xFFFFFFFF
}

// CRC32Update folds buf into the running checksum state.
func CRC32Update(state uint32, buf []byte) uint32 {
	// crc32.Update takes and returns finalized values, so undo and redo its
	// own inversion to keep state a raw register.
	return ^crc32.Update(^state, crc32Table, buf)
}

// CRC32Finalize applies the final XOR to a running checksum state.
func CRC32Finalize(state uint32) uint32 {
	return state ^ 0xFFFFFFFF
}

// CRC32OneShot computes the checksum of buf in a single call; equivalent to
// CRC32Finalize(CRC32Update(CRC32Init(), buf)).
func CRC32OneShot(buf []byte) uint32 {
	return CRC32Finalize(CRC32Update(CRC32Init(), buf))
}
