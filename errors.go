// Copyright 2024 The CAR Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package car

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions that carry no further payload.
var (
	ErrShortHeader  = errors.New("car: buffer shorter than the smallest valid header")
	ErrOutOfMemory  = errors.New("car: out of memory")
	ErrNoRootEntry  = errors.New("car: directory model has no root entry")
)

// IoError wraps a failed filesystem or memory-mapping operation.
type IoError struct {
	Op   string
	Path string
	Err  error
}

func (e *IoError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("car: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("car: %s %q: %v", e.Op, e.Path, e.Err)
}

func (e *IoError) Unwrap() error { return e.Err }

// InvalidFormatError reports bad magic, an unknown version tag, or an
// offset/length that cannot be a valid archive layout.
type InvalidFormatError struct {
	Reason string
}

func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("car: invalid format: %s", e.Reason)
}

// CorruptHeaderError reports a headerChecksum mismatch.
type CorruptHeaderError struct {
	Want, Got uint32
}

func (e *CorruptHeaderError) Error() string {
	return fmt.Sprintf("car: corrupt header: checksum mismatch (want %#08x, got %#08x)", e.Want, e.Got)
}

// CorruptDataError reports a dataChecksum mismatch.
type CorruptDataError struct {
	Want, Got uint32
}

func (e *CorruptDataError) Error() string {
	return fmt.Sprintf("car: corrupt data: checksum mismatch (want %#08x, got %#08x)", e.Want, e.Got)
}

// AccessDeniedError reports a permission failure on a specific path.
type AccessDeniedError struct {
	Path string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("car: access denied: %q", e.Path)
}

// EnumerationFailureError reports a directory-walk failure. It is the only
// error in the taxonomy that the caller may recover from, via the
// EnumerationPolicy callback passed to Walk.
type EnumerationFailureError struct {
	Path string
	Err  error
}

func (e *EnumerationFailureError) Error() string {
	return fmt.Sprintf("car: could not enumerate %q: %v", e.Path, e.Err)
}

func (e *EnumerationFailureError) Unwrap() error { return e.Err }

// DestinationExistsError reports that extraction refused to overwrite a
// non-empty existing file.
type DestinationExistsError struct {
	Path string
}

func (e *DestinationExistsError) Error() string {
	return fmt.Sprintf("car: destination exists and is not empty: %q", e.Path)
}

// InvalidArgumentError reports a parameter the driver passed that the
// engine cannot act on.
type InvalidArgumentError struct {
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("car: invalid argument: %s", e.Reason)
}
