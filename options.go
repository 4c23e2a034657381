// Copyright 2012 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ldb

import (
	"github.com/FrankFSM/ldb/base"
	"github.com/FrankFSM/ldb/internal/cache"
	"github.com/FrankFSM/ldb/internal/metrics"
	"github.com/FrankFSM/ldb/sstable"
	"github.com/FrankFSM/ldb/vfs"
)

// Default configuration values, per spec section 6.
const (
	DefaultWriteBufferSize      = 4 << 20
	DefaultMaxOpenFiles         = 1000
	DefaultBlockSize            = 4096
	DefaultBlockRestartInterval = 16
	DefaultMaxFileSize          = 2 << 20
	DefaultBlockCacheSize       = 8 << 20
)

// Options holds the recognised configuration set from spec section 6. The
// zero value is not directly usable; call EnsureDefaults (Open does this
// automatically) to fill in defaults.
type Options struct {
	// Comparer orders user keys. Persisted by name in the manifest; a
	// mismatched name on reopen is reported as Corruption.
	Comparer *base.Comparer

	// FileSystem is the environment capability used for all file I/O. Tests
	// pass vfs.NewMem() for a deterministic, in-memory database.
	FileSystem vfs.FS

	CreateIfMissing bool
	ErrorIfExists   bool
	ParanoidChecks  bool

	WriteBufferSize      int
	MaxOpenFiles         int
	BlockSize            int
	BlockRestartInterval int
	MaxFileSize          int

	Compression  sstable.Compression
	FilterPolicy sstable.FilterPolicy

	// BlockCacheSize bounds the total size, in bytes, of the shared cache of
	// decoded data/index/filter blocks (spec section 4.5). A nil Cache is
	// allocated with this size by EnsureDefaults.
	BlockCacheSize int64
	Cache          *cache.Cache

	// Metrics collects compaction/cache/WAL counters. EnsureDefaults
	// constructs one against its own private registry when unset, so
	// multiple databases in one process never collide on metric names.
	Metrics *metrics.Metrics

	// Logger receives textual diagnostics written to the LOG file.
	Logger Logger
}

// EnsureDefaults returns a copy of o with every unset field given its
// spec-mandated default. A nil receiver returns an Options populated
// entirely with defaults.
func (o *Options) EnsureDefaults() *Options {
	var out Options
	if o != nil {
		out = *o
	}
	if out.Comparer == nil {
		out.Comparer = base.DefaultComparer
	}
	if out.FileSystem == nil {
		out.FileSystem = vfs.Default
	}
	if out.WriteBufferSize <= 0 {
		out.WriteBufferSize = DefaultWriteBufferSize
	}
	if out.MaxOpenFiles <= 0 {
		out.MaxOpenFiles = DefaultMaxOpenFiles
	}
	if out.BlockSize <= 0 {
		out.BlockSize = DefaultBlockSize
	}
	if out.BlockRestartInterval <= 0 {
		out.BlockRestartInterval = DefaultBlockRestartInterval
	}
	if out.MaxFileSize <= 0 {
		out.MaxFileSize = DefaultMaxFileSize
	}
	if out.BlockCacheSize <= 0 {
		out.BlockCacheSize = DefaultBlockCacheSize
	}
	if out.Cache == nil {
		out.Cache = cache.New(out.BlockCacheSize)
	}
	if out.Metrics == nil {
		out.Metrics = metrics.New(nil)
	}
	if out.Logger == nil {
		out.Logger = discardLogger{}
	}
	return &out
}

func (o *Options) writerOptions() sstable.WriterOptions {
	return sstable.WriterOptions{
		BlockSize:       o.BlockSize,
		RestartInterval: o.BlockRestartInterval,
		Compression:     o.Compression,
		FilterPolicy:    o.FilterPolicy,
		Comparer:        o.Comparer,
	}
}

// readerOptions builds the options for opening the table with the given
// file number, so its blocks are cached under a key that won't collide
// with any other table's.
func (o *Options) readerOptions(fileNum uint64) sstable.ReaderOptions {
	return sstable.ReaderOptions{
		Comparer:     o.Comparer,
		FilterPolicy: o.FilterPolicy,
		Cache:        o.Cache,
		FileNum:      fileNum,
		Metrics:      o.Metrics,
	}
}

// WriteOptions controls a single write's durability.
type WriteOptions struct {
	// Sync forces the WAL write to be fsynced before the call returns.
	Sync bool
}

// ReadOptions controls a single read's consistency.
type ReadOptions struct {
	// Snapshot, if non-nil, restricts the read to the database state as of
	// when the snapshot was taken.
	Snapshot *Snapshot
}
