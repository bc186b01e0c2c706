// Copyright 2024 The CAR Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package car

import "path"

// fakeFS is a minimal in-memory FSAdapter used to drive dirmodel.go's Walk
// through shapes that are awkward to set up with real files (enumeration
// failures).
type fakeFS struct {
	kind       map[string]FileKind
	size       map[string]int64
	children   map[string][]string
	fileData   map[string][]byte
	linkTarget map[string]string
	failRD     map[string]bool
}

var _ FSAdapter = (*fakeFS)(nil)

func newFakeFS() *fakeFS {
	return &fakeFS{
		kind:       map[string]FileKind{},
		size:       map[string]int64{},
		children:   map[string][]string{},
		fileData:   map[string][]byte{},
		linkTarget: map[string]string{},
		failRD:     map[string]bool{},
	}
}

func (f *fakeFS) register(p string) {
	if p == "/" {
		return
	}
	parent := path.Dir(p)
	name := path.Base(p)
	f.children[parent] = append(f.children[parent], name)
}

func (f *fakeFS) addDir(p string) {
	f.kind[p] = KindDirectory
	f.register(p)
}

func (f *fakeFS) addFile(p string, data []byte) {
	f.kind[p] = KindRegular
	f.size[p] = int64(len(data))
	f.fileData[p] = data
	f.register(p)
}

func (f *fakeFS) addSymlink(p, target string) {
	f.kind[p] = KindSymlink
	f.size[p] = int64(len(target))
	f.linkTarget[p] = target
	f.register(p)
}

func (f *fakeFS) failReadDir(p string) { f.failRD[p] = true }

func (f *fakeFS) Lstat(p string) (Stat, error) {
	k, ok := f.kind[p]
	if !ok {
		return Stat{}, &IoError{Op: "lstat", Path: p, Err: ErrShortHeader}
	}
	return Stat{
		Kind:  k,
		Size:  f.size[p],
		CanRX: k == KindDirectory,
		CanR:  k == KindRegular,
	}, nil
}

func (f *fakeFS) ReadDir(p string) ([]string, error) {
	if f.failRD[p] {
		return nil, &IoError{Op: "readdir", Path: p, Err: ErrShortHeader}
	}
	return append([]string(nil), f.children[p]...), nil
}

func (f *fakeFS) ReadFile(p string, buf []byte) (int, error) {
	return copy(buf, f.fileData[p]), nil
}

func (f *fakeFS) ReadLink(p string, buf []byte) (int, error) {
	return copy(buf, f.linkTarget[p]), nil
}

func (f *fakeFS) CreateDir(p string) error {
	f.addDir(p)
	return nil
}

func (f *fakeFS) CreateFile(p string, data []byte) error {
	f.addFile(p, data)
	return nil
}

func (f *fakeFS) CreateSymlink(p, target string) error {
	f.addSymlink(p, target)
	return nil
}

func (f *fakeFS) FileExistsNonEmpty(p string) bool {
	return f.kind[p] == KindRegular && f.size[p] > 0
}

func (f *fakeFS) DirExists(p string) bool {
	return f.kind[p] == KindDirectory
}
