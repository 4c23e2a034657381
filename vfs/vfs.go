// Copyright 2012 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vfs defines the filesystem capability interfaces the storage
// engine is built on: a readable/writable/syncable file, and a namespace of
// such files supporting creation, renaming, locking and directory listing.
// The default implementation forwards to the operating system; memfs
// provides an in-memory implementation for tests.
package vfs

import (
	"io"
	"os"
)

// File is a readable, writable, syncable sequence of bytes.
//
// Typically it is backed by an *os.File, but test code may substitute a
// memory-backed implementation.
type File interface {
	io.Closer
	io.Reader
	io.ReaderAt
	io.Writer
	Stat() (os.FileInfo, error)
	Sync() error
}

// FS is a namespace of files.
//
// Names are filepath names: they may be / or \ separated, depending on the
// underlying operating system.
type FS interface {
	Create(name string) (File, error)
	Open(name string) (File, error)
	OpenForReading(name string) (File, error)
	Remove(name string) error
	Rename(oldname, newname string) error

	// MkdirAll creates a directory and all necessary parents. It is a no-op
	// if the directory already exists.
	MkdirAll(dir string, perm os.FileMode) error

	// Lock locks the named file, creating it if necessary; an existing
	// file's contents are left as they are. The lock is exclusive (a write lock); locked
	// files should be neither read nor written, they exist only to
	// co-ordinate ownership across processes.
	//
	// Close the returned io.Closer to release the lock. A nil Closer is
	// returned alongside a non-nil error.
	Lock(name string) (io.Closer, error)

	// List returns the names of the entries of dir, relative to dir.
	List(dir string) ([]string, error)

	// Stat returns file info for name without opening it.
	Stat(name string) (os.FileInfo, error)
}

// Default is the FS backed by the host operating system.
var Default FS = osFS{}

type osFS struct{}

func (osFS) Create(name string) (File, error) { return os.Create(name) }

func (osFS) Open(name string) (File, error) { return os.OpenFile(name, os.O_RDWR, 0) }

func (osFS) OpenForReading(name string) (File, error) { return os.Open(name) }

func (osFS) Remove(name string) error { return os.Remove(name) }

func (osFS) Rename(oldname, newname string) error { return os.Rename(oldname, newname) }

func (osFS) MkdirAll(dir string, perm os.FileMode) error { return os.MkdirAll(dir, perm) }

func (osFS) Stat(name string) (os.FileInfo, error) { return os.Stat(name) }

func (osFS) List(dir string) ([]string, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.Readdirnames(-1)
}
