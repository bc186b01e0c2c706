// Copyright 2024 The CAR Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package car

import "bytes"

// DetectSubtype classifies a candidate archive by its first 8 bytes:
// 4 bytes of magic followed by 4 bytes of version tag. It never touches
// bytes beyond the first 8, and is a pure function of those bytes.
func DetectSubtype(header []byte) Subtype {
	if len(header) < 8 {
		return SubtypeInvalid
	}
	if !bytes.Equal(header[0:4], Magic[:]) {
		return SubtypeInvalid
	}
	switch {
	case bytes.Equal(header[4:8], VersionS1[:]):
		return Subtype1
	case bytes.Equal(header[4:8], VersionS2[:]):
		return Subtype2
	case bytes.Equal(header[4:8], VersionBootX[:]):
		return SubtypeBootX
	case bytes.Equal(header[4:8], VersionSystemImage[:]):
		return SubtypeSystemImage
	default:
		return SubtypeInvalid
	}
}
