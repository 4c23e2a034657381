// Copyright 2011 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memtable

import "github.com/FrankFSM/ldb/base"

// Memtable is the in-memory sorted buffer described by spec section 4.3.
// At most one goroutine may call Add at a time (the DB serializes writers
// under its write mutex); Get and NewIter may run concurrently with Add and
// with each other.
type Memtable struct {
	arena *arena
	list  *skiplist
	cmp   base.Compare
}

// New returns an empty memtable that allocates entries from an arena of the
// given size. cmp orders user keys.
func New(arenaSize uint32, cmp base.Compare) *Memtable {
	a := newArena(arenaSize)
	return &Memtable{
		arena: a,
		list:  newSkiplist(a, cmp),
		cmp:   cmp,
	}
}

// Add inserts key (seq, kind, userKey) with the given value (empty for a
// deletion tombstone). Keys may be added in any order; the skip list places
// each one at its sorted internal-key position.
func (m *Memtable) Add(seq base.SeqNum, kind base.InternalKeyKind, userKey, value []byte) error {
	return m.list.add(base.MakeInternalKey(userKey, seq, kind), value)
}

// Get implements the lookup contract of spec section 4.3: it returns the
// newest entry for userKey with a sequence number <= seq. A Set entry
// returns its value and found=true; a Delete entry returns found=true,
// isTombstone=true (the caller must not fall through to older tables).
// found=false means this memtable holds no entry for userKey with a
// sequence number <= seq, and the caller should continue searching older
// sources.
func (m *Memtable) Get(userKey []byte, seq base.SeqNum) (value []byte, found, isTombstone bool) {
	nd := m.list.seek(base.MakeSearchKey(userKey, seq))
	if nd == nil || m.cmp(nd.key.UserKey, userKey) != 0 {
		return nil, false, false
	}
	if nd.key.Kind() == base.InternalKeyKindDelete {
		return nil, true, true
	}
	return nd.value, true, false
}

// NewIter returns an iterator over every entry in the memtable, in
// internal-key order, used as one input to a merging iterator.
func (m *Memtable) NewIter() *Iterator {
	return &Iterator{s: m.list}
}

// Empty reports whether the memtable holds no entries.
func (m *Memtable) Empty() bool {
	return !m.NewIter().First()
}

// ApproximateMemoryUsage returns the number of bytes allocated from the
// memtable's arena so far. The DB flushes the memtable once this exceeds
// write_buffer_size, per spec section 4.3.
func (m *Memtable) ApproximateMemoryUsage() uint32 {
	return m.arena.size()
}

// ShouldFlush reports whether the memtable has grown past capacity and
// should be swapped out for a new mutable memtable.
func (m *Memtable) ShouldFlush() bool {
	return m.arena.size() >= m.arena.capacity()
}
