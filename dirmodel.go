// Copyright 2024 The CAR Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package car

import (
	"path"
	"sort"
	"strings"

	"github.com/go-kratos/kratos/v2/log"
)

// skippedNames are never emitted as entries.
var skippedNames = map[string]bool{
	".":          true,
	"..":         true,
	".DS_Store":  true,
}

// EnumerationDecision is returned by an EnumerationPolicy to say whether a
// failed directory listing should be tolerated.
type EnumerationDecision int

const (
	// EnumerationContinue drops the partially-enumerated subtree and lets
	// the walk proceed with the directory's siblings.
	EnumerationContinue EnumerationDecision = iota
	// EnumerationQuit aborts the entire walk.
	EnumerationQuit
)

// EnumerationPolicy is consulted whenever ReadDir fails mid-walk. It is
// the only point at which dirmodel.go recovers from an otherwise-fatal
// error.
type EnumerationPolicy func(path string, err error) EnumerationDecision

// AlwaysQuit is an EnumerationPolicy that aborts on the first failure.
func AlwaysQuit(string, error) EnumerationDecision { return EnumerationQuit }

// AlwaysContinue is an EnumerationPolicy that tolerates every failure.
func AlwaysContinue(string, error) EnumerationDecision { return EnumerationContinue }

// Entry is one node of the in-memory directory model: the linear,
// enumeration-ordered stream dirmodel.Walk produces and writer.go
// consumes. Parent/NextSibling/FirstChild/ID are only meaningful when the
// model was built with trackTopology=true (SystemImage).
type Entry struct {
	Type EntryType

	// AbsPath is the path on the walked filesystem; writer.go reads file
	// bytes and symlink targets through it via the FSAdapter.
	AbsPath string
	// Path is the archive-relative path stored on disk: always begins
	// with '/', stripped of the root directory's own absolute prefix.
	Path string
	Size uint64

	ID          uint64
	Parent      uint64
	NextSibling uint64
	FirstChild  uint64
	Children    uint32
}

// Model is the output of Walk: a linear, root-first stream of entries plus
// the aggregates writer.go's layout planner needs.
type Model struct {
	Entries       []Entry
	EntryCount    int
	TotalDataSize uint64
}

type walkFrame struct {
	entryID      uint64
	childNames   []string
	absDir       string
	relDir       string
	idx          int
	prevSibling  uint64
}

// Walk builds a directory model rooted at root. trackTopology must be true
// only when the model feeds a SystemImage archive: it is the only subtype
// whose entry records carry parent/sibling/child links.
//
// Traversal is depth-first and directory-first: a directory's entry
// precedes its children, and a directory's full subtree is emitted before
// its next sibling. It is implemented with an explicit
// stack rather than recursion so pathological trees cannot blow the Go
// call stack.
func Walk(fs FSAdapter, root string, trackTopology bool, policy EnumerationPolicy, logger *log.Helper) (*Model, error) {
	if trimmed := strings.TrimRight(root, "/"); trimmed != "" {
		root = trimmed
	}
	if policy == nil {
		policy = AlwaysQuit
	}
	if logger == nil {
		logger = log.NewHelper(log.NewFilter(log.DefaultLogger, log.FilterLevel(log.LevelError)))
	}

	rootStat, err := fs.Lstat(root)
	if err != nil {
		return nil, err
	}
	if rootStat.Kind != KindDirectory {
		return nil, &InvalidArgumentError{Reason: "root directory is not a directory: " + root}
	}

	m := &Model{}
	m.Entries = append(m.Entries, Entry{
		Type:    EntryTypeDirectory,
		AbsPath: root,
		Path:    "/",
		ID:      1,
	})

	names, rerr := readDirSorted(fs, root)
	if rerr != nil {
		if policy(root, rerr) == EnumerationQuit {
			return nil, &EnumerationFailureError{Path: root, Err: rerr}
		}
		logger.Errorf("car: dropping subtree at %q after enumeration failure: %v", root, rerr)
		names = nil
	}

	stack := []*walkFrame{{entryID: 1, childNames: names, absDir: root}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.idx >= len(top.childNames) {
			stack = stack[:len(stack)-1]
			continue
		}
		name := top.childNames[top.idx]
		top.idx++

		if skippedNames[name] {
			continue
		}

		childAbs := path.Join(top.absDir, name)
		st, err := fs.Lstat(childAbs)
		if err != nil {
			return nil, err
		}

		var entryType EntryType
		switch st.Kind {
		case KindRegular:
			if !st.CanR {
				return nil, &AccessDeniedError{Path: childAbs}
			}
			entryType = EntryTypeFile
		case KindSymlink:
			entryType = EntryTypeLink
		case KindDirectory:
			if !st.CanRX {
				return nil, &AccessDeniedError{Path: childAbs}
			}
			entryType = EntryTypeDirectory
		default:
			// Anything else (socket, device, fifo) is silently skipped.
			continue
		}

		newID := uint64(len(m.Entries) + 1)
		e := Entry{
			Type:    entryType,
			AbsPath: childAbs,
			Path:    top.relDir + "/" + name,
			Size:    uint64(st.Size),
		}
		if trackTopology {
			e.Parent = top.entryID
			if top.prevSibling == 0 {
				m.Entries[top.entryID-1].FirstChild = newID
			} else {
				m.Entries[top.prevSibling-1].NextSibling = newID
			}
			top.prevSibling = newID
			m.Entries[top.entryID-1].Children++
		}
		e.ID = newID
		m.Entries = append(m.Entries, e)

		if entryType != EntryTypeDirectory {
			m.TotalDataSize += e.Size
			continue
		}

		childNames, rerr := readDirSorted(fs, childAbs)
		if rerr != nil {
			if policy(childAbs, rerr) == EnumerationQuit {
				return nil, &EnumerationFailureError{Path: childAbs, Err: rerr}
			}
			logger.Errorf("car: dropping subtree at %q after enumeration failure: %v", childAbs, rerr)
			continue
		}
		stack = append(stack, &walkFrame{entryID: newID, childNames: childNames, absDir: childAbs, relDir: e.Path})
	}

	m.EntryCount = len(m.Entries)
	return m, nil
}

// readDirSorted lists directory entries in a stable, deterministic order
// so two walks of the same tree always produce byte-identical archives.
func readDirSorted(fs FSAdapter, dir string) ([]string, error) {
	names, err := fs.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}
