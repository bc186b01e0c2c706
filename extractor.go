// Copyright 2024 The CAR Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package car

import (
	"os"
	"path"

	"github.com/go-kratos/kratos/v2/log"
)

// ExtractParams is the validated parameter bundle the driver hands to
// Extractor.Extract.
type ExtractParams struct {
	ArchivePath string
	Destination string
	Verbose     bool
	// Overwrite permits replacing a non-empty destination file instead of
	// failing with DestinationExistsError.
	Overwrite bool
}

// Extractor restores an archive's ToC onto a live filesystem.
type Extractor struct {
	fs     FSAdapter
	logger *log.Helper
}

// NewExtractor returns an Extractor that writes through fs.
func NewExtractor(fs FSAdapter, logger log.Logger) *Extractor {
	if logger == nil {
		logger = log.NewStdLogger(os.Stdout)
	}
	return &Extractor{
		fs:     fs,
		logger: log.NewHelper(log.NewFilter(logger, log.FilterLevel(log.LevelDebug))),
	}
}

// Extract walks every ToC slot in order and recreates it under
// params.Destination. Entries are processed in ToC order, which for every
// subtype this package writes is directory-before-children, so a
// directory always exists before any entry is created beneath it.
func (x *Extractor) Extract(params ExtractParams) error {
	archive, err := Open(params.ArchivePath, nil)
	if err != nil {
		return err
	}
	defer archive.Close()

	if err := archive.Verify(); err != nil {
		return err
	}

	if !x.fs.DirExists(params.Destination) {
		if err := x.fs.CreateDir(params.Destination); err != nil {
			return err
		}
	}

	for i := 0; i < archive.EntryCount(); i++ {
		e, err := archive.Entry(i)
		if err != nil {
			return err
		}
		dest := path.Join(params.Destination, e.Path)

		switch e.Type {
		case EntryTypeDirectory:
			if err := x.fs.CreateDir(dest); err != nil {
				return err
			}

		case EntryTypeFile:
			if !params.Overwrite && x.fs.FileExistsNonEmpty(dest) {
				return &DestinationExistsError{Path: dest}
			}
			data, err := archive.readData(e.DataOffset, e.DataSize)
			if err != nil {
				return err
			}
			if err := x.fs.CreateFile(dest, data); err != nil {
				return err
			}

		case EntryTypeLink:
			if !params.Overwrite && x.fs.FileExistsNonEmpty(dest) {
				return &DestinationExistsError{Path: dest}
			}
			data, err := archive.readData(e.DataOffset, e.DataSize)
			if err != nil {
				return err
			}
			if err := x.fs.CreateSymlink(dest, string(data)); err != nil {
				return err
			}
		}

		if params.Verbose {
			x.logger.Debugf("X %s %s", e.Type, e.Path)
		}
	}

	return nil
}

// readData returns a copy of the data region bytes at [offset, offset+size)
// relative to the file's data section.
func (a *File) readData(offset, size uint64) ([]byte, error) {
	start := a.dataSectionOffset + offset
	end := start + size
	if end > a.size || end < start {
		return nil, &InvalidFormatError{Reason: "entry data extends past end of archive"}
	}
	buf := make([]byte, size)
	copy(buf, a.data[start:end])
	return buf, nil
}
