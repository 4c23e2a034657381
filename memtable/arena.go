// Copyright 2011 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package memtable implements the in-memory sorted structure that buffers
// recent writes ahead of flush to a table file, per spec section 4.3: a
// skip list over internal keys, backed by an arena that is released in one
// shot when the memtable is discarded.
package memtable

import (
	"sync/atomic"

	"github.com/FrankFSM/ldb/base"
)

// arena is a bump-pointer byte allocator. Keys and values copied into a
// memtable are appended here rather than kept as independent heap
// allocations, so the whole memtable's backing storage can be dropped in
// one GC-collectible chunk once it is flushed and discarded.
type arena struct {
	buf []byte
	n   uint32
}

var errArenaFull = base.Errorf(base.KindInvalidArgument, "memtable: arena full")

func newArena(size uint32) *arena {
	return &arena{buf: make([]byte, size)}
}

// alloc reserves size bytes and returns the slice backing them. Safe for a
// single concurrent writer; the memtable's write path is already serialized
// by the DB's write mutex, per spec section 4.3.
func (a *arena) alloc(size uint32) ([]byte, error) {
	newN := atomic.AddUint32(&a.n, size)
	if int(newN) > len(a.buf) {
		return nil, errArenaFull
	}
	return a.buf[newN-size : newN : newN], nil
}

// size returns the number of bytes allocated so far, used to approximate
// the memtable's total memory usage.
func (a *arena) size() uint32 {
	return atomic.LoadUint32(&a.n)
}

func (a *arena) capacity() uint32 {
	return uint32(len(a.buf))
}
