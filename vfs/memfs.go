// Copyright 2012 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vfs

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

const sep = "/"

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewMem returns a new memory-backed FS. It never touches persistent
// storage, which makes it useful for deterministic crash and corruption
// tests.
func NewMem() FS {
	return &memFS{
		root: &memNode{
			name:     sep,
			children: make(map[string]*memNode),
			isDir:    true,
		},
	}
}

type memFS struct {
	mu   sync.Mutex
	root *memNode
}

// walk walks the directory tree for fullname, calling f at each step. The
// whole walk is atomic: the filesystem mutex is held for its duration.
func (y *memFS) walk(fullname string, f func(dir *memNode, frag string, final bool) error) error {
	y.mu.Lock()
	defer y.mu.Unlock()

	fullname = strings.ReplaceAll(fullname, "\\", sep)
	for len(fullname) > 0 && fullname[0] == '/' {
		fullname = fullname[1:]
	}
	dir := y.root

	for {
		frag, remaining := fullname, ""
		i := strings.IndexRune(fullname, '/')
		final := i < 0
		if !final {
			frag, remaining = fullname[:i], fullname[i+1:]
			for len(remaining) > 0 && remaining[0] == '/' {
				remaining = remaining[1:]
			}
		}
		if err := f(dir, frag, final); err != nil {
			return err
		}
		if final {
			break
		}
		child := dir.children[frag]
		if child == nil {
			return errors.Newf("vfs: no such directory: %q", fullname)
		}
		if !child.isDir {
			return errors.Newf("vfs: not a directory: %q", frag)
		}
		dir, fullname = child, remaining
	}
	return nil
}

func (y *memFS) Create(fullname string) (File, error) {
	var ret *memNode
	err := y.walk(fullname, func(dir *memNode, frag string, final bool) error {
		if final {
			if frag == "" {
				return errors.New("vfs: empty file name")
			}
			ret = &memNode{name: frag}
			dir.children[frag] = ret
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &memFile{node: ret}, nil
}

func (y *memFS) open(fullname string) (*memNode, error) {
	var ret *memNode
	err := y.walk(fullname, func(dir *memNode, frag string, final bool) error {
		if final {
			if frag == "" {
				return errors.New("vfs: empty file name")
			}
			ret = dir.children[frag]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if ret == nil {
		return nil, &os.PathError{Op: "open", Path: fullname, Err: os.ErrNotExist}
	}
	return ret, nil
}

func (y *memFS) Open(fullname string) (File, error) {
	n, err := y.open(fullname)
	if err != nil {
		return nil, err
	}
	return &memFile{node: n}, nil
}

func (y *memFS) OpenForReading(fullname string) (File, error) {
	return y.Open(fullname)
}

func (y *memFS) Remove(fullname string) error {
	return y.walk(fullname, func(dir *memNode, frag string, final bool) error {
		if final {
			if frag == "" {
				return errors.New("vfs: empty file name")
			}
			if _, ok := dir.children[frag]; !ok {
				return &os.PathError{Op: "remove", Path: fullname, Err: os.ErrNotExist}
			}
			delete(dir.children, frag)
		}
		return nil
	})
}

func (y *memFS) Rename(oldname, newname string) error {
	n, err := y.open(oldname)
	if err != nil {
		return err
	}
	if err := y.Remove(oldname); err != nil {
		return err
	}
	return y.walk(newname, func(dir *memNode, frag string, final bool) error {
		if final {
			if frag == "" {
				return errors.New("vfs: empty file name")
			}
			n.name = frag
			dir.children[frag] = n
		}
		return nil
	})
}

func (y *memFS) MkdirAll(dirname string, perm os.FileMode) error {
	return y.walk(dirname, func(dir *memNode, frag string, final bool) error {
		if frag == "" {
			if final {
				return nil
			}
			return errors.New("vfs: empty file name")
		}
		child := dir.children[frag]
		if child == nil {
			dir.children[frag] = &memNode{
				name:     frag,
				children: make(map[string]*memNode),
				isDir:    true,
			}
			return nil
		}
		if !child.isDir {
			return errors.Newf("vfs: not a directory: %q", frag)
		}
		return nil
	})
}

func (y *memFS) Lock(fullname string) (io.Closer, error) {
	// Other processes cannot see this process' memory, so there is nothing
	// to exclude against.
	return nopCloser{}, nil
}

func (y *memFS) Stat(fullname string) (os.FileInfo, error) {
	n, err := y.open(fullname)
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (y *memFS) List(dirname string) ([]string, error) {
	if !strings.HasSuffix(dirname, sep) {
		dirname += sep
	}
	var ret []string
	err := y.walk(dirname, func(dir *memNode, frag string, final bool) error {
		if final {
			ret = make([]string, 0, len(dir.children))
			for s := range dir.children {
				ret = append(ret, s)
			}
		}
		return nil
	})
	return ret, err
}

// memNode is a node in the in-memory filesystem tree; it implements
// os.FileInfo for directories and files alike.
type memNode struct {
	name     string
	data     []byte
	modTime  time.Time
	children map[string]*memNode
	isDir    bool
}

func (f *memNode) IsDir() bool        { return f.isDir }
func (f *memNode) ModTime() time.Time { return f.modTime }
func (f *memNode) Mode() os.FileMode  { return 0644 }
func (f *memNode) Name() string       { return f.name }
func (f *memNode) Size() int64        { return int64(len(f.data)) }
func (f *memNode) Sys() interface{}   { return nil }

// memFile is an open handle onto a memNode; it carries its own read cursor
// so that multiple concurrent opens of the same node do not interfere.
type memFile struct {
	node *memNode
	rpos int
}

func (f *memFile) Close() error { return nil }

func (f *memFile) Stat() (os.FileInfo, error) { return f.node, nil }

func (f *memFile) Sync() error { return nil }

func (f *memFile) Read(p []byte) (int, error) {
	if f.node.isDir {
		return 0, errors.New("vfs: cannot read a directory")
	}
	if f.rpos >= len(f.node.data) {
		return 0, io.EOF
	}
	n := copy(p, f.node.data[f.rpos:])
	f.rpos += n
	return n, nil
}

func (f *memFile) ReadAt(p []byte, off int64) (int, error) {
	if f.node.isDir {
		return 0, errors.New("vfs: cannot read a directory")
	}
	if off >= int64(len(f.node.data)) {
		return 0, io.EOF
	}
	n := copy(p, f.node.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (f *memFile) Write(p []byte) (int, error) {
	if f.node.isDir {
		return 0, errors.New("vfs: cannot write a directory")
	}
	f.node.modTime = time.Now()
	f.node.data = append(f.node.data, p...)
	return len(p), nil
}
